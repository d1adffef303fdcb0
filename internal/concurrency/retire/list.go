// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package retire provides deferred reclamation bookkeeping for superseded snapshots.
//
// A writer that replaces a snapshot cannot recycle the old one immediately:
// a concurrent reader may still hold a hazard claim on it. The old snapshot is
// retired instead, and a later scan returns it to storage once no claim
// references it.
//
// # Components
//
//   - List: a single writer's retired entries. Not safe for concurrent use;
//     each writer session owns one.
//   - Orphans: a shared lock-free pool of entries handed off by sessions that
//     terminated before their entries could be proven unreferenced.
//
// # Usage Examples
//
//	list := retire.NewList[snapshot](10)
//
//	if list.Push(old) {
//	    claimed := make(map[*snapshot]struct{})
//	    registry.Claimed(claimed)
//	    list.Sweep(claimed, func(s *snapshot) { bank.Store(s) })
//	}
//
// # Dangers and Warnings
//
//   - **Ownership**: A List belongs to exactly one goroutine at a time.
//   - **Drain**: Drain hands entries out without consulting any claim set; the
//     caller decides whether they are safe to recycle.
package retire

// DefaultThreshold is the number of retired entries that triggers a scan.
const DefaultThreshold = 10

// List is an append-only queue of retired entries, swept in place.
type List[T any] struct {
	entries   []*T
	threshold int
}

// NewList creates a list that asks for a scan once threshold entries accumulate.
func NewList[T any](threshold int) *List[T] {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &List[T]{
		entries:   make([]*T, 0, threshold),
		threshold: threshold,
	}
}

// Push appends p and reports whether the scan threshold is reached.
func (l *List[T]) Push(p *T) bool {
	l.entries = append(l.entries, p)
	return len(l.entries) >= l.threshold
}

// Len returns the number of pending entries.
func (l *List[T]) Len() int { return len(l.entries) }

// Threshold returns the scan threshold.
func (l *List[T]) Threshold() int { return l.threshold }

// Sweep hands every entry absent from claimed to reclaim and removes it by
// swapping with the last entry. Claimed entries are kept. It returns the
// number of entries reclaimed.
func (l *List[T]) Sweep(claimed map[*T]struct{}, reclaim func(*T)) int {
	n := 0
	for i := 0; i < len(l.entries); {
		p := l.entries[i]
		if _, ok := claimed[p]; ok {
			i++
			continue
		}
		reclaim(p)
		n++
		last := len(l.entries) - 1
		l.entries[i] = l.entries[last]
		l.entries[last] = nil
		l.entries = l.entries[:last]
	}
	return n
}

// Drain hands every entry to fn and empties the list.
func (l *List[T]) Drain(fn func(*T)) int {
	n := len(l.entries)
	for i, p := range l.entries {
		fn(p)
		l.entries[i] = nil
	}
	l.entries = l.entries[:0]
	return n
}

// Take removes and returns every entry.
func (l *List[T]) Take() []*T {
	if len(l.entries) == 0 {
		return nil
	}
	out := make([]*T, len(l.entries))
	copy(out, l.entries)
	clear(l.entries)
	l.entries = l.entries[:0]
	return out
}
