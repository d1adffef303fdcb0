// Licensed under the MIT License. See LICENSE file in the project root for details.

package retire

import "sync/atomic"

type batch[T any] struct {
	entries []*T
	next    *batch[T]
}

// Orphans is a lock-free stack of retired entries whose owner has exited.
type Orphans[T any] struct {
	head  atomic.Pointer[batch[T]]
	count atomic.Int64
}

// NewOrphans creates an empty pool.
func NewOrphans[T any]() *Orphans[T] {
	return &Orphans[T]{}
}

// Adopt pushes entries onto the pool. The slice is owned by the pool afterwards.
func (o *Orphans[T]) Adopt(entries []*T) {
	if len(entries) == 0 {
		return
	}
	b := &batch[T]{entries: entries}
	o.count.Add(int64(len(entries)))
	for {
		old := o.head.Load()
		b.next = old
		if o.head.CompareAndSwap(old, b) {
			return
		}
	}
}

// Take detaches every pending entry.
func (o *Orphans[T]) Take() []*T {
	b := o.head.Swap(nil)
	var out []*T
	for ; b != nil; b = b.next {
		out = append(out, b.entries...)
	}
	o.count.Add(-int64(len(out)))
	return out
}

// Sweep takes every pending entry, reclaims the unclaimed ones and re-adopts
// the rest. It returns the number reclaimed.
func (o *Orphans[T]) Sweep(claimed map[*T]struct{}, reclaim func(*T)) int {
	entries := o.Take()
	if len(entries) == 0 {
		return 0
	}
	kept := entries[:0]
	n := 0
	for _, p := range entries {
		if _, ok := claimed[p]; ok {
			kept = append(kept, p)
			continue
		}
		reclaim(p)
		n++
	}
	o.Adopt(kept)
	return n
}

// Len returns the number of pending entries.
func (o *Orphans[T]) Len() int {
	return int(o.count.Load())
}
