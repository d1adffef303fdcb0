// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package hazard provides hazard-pointer based protection for lock-free readers.
//
// A hazard pointer is a published claim by a goroutine that it may still be
// dereferencing a specific object. Reclaimers consult the registry before
// recycling a retired object and leave every claimed object alone.
//
// The registry is a shared, append-mostly, lock-free linked list of records.
// Records are never freed while the registry is in use; a released record is
// marked inactive and reused by the next Claim.
//
// # Usage Examples
//
// Protecting an atomically published pointer:
//
//	reg := hazard.NewRegistry[snapshot]()
//
//	rec := reg.Claim()
//	defer reg.Release(rec)
//
//	snap, _ := rec.Protect(&current) // current is an atomic.Pointer[snapshot]
//	// snap cannot be reclaimed until Release
//
// Collecting claimed addresses during a reclamation scan:
//
//	claimed := make(map[*snapshot]struct{})
//	reg.Claimed(claimed)
//
// # Protection Protocol
//
// Protection is two steps: publish the address into the record (Set), then
// re-read the authoritative source and confirm it still holds the same address
// (Reconfirm). If it changed, the published address may already be retired and
// the caller must retry. Protect runs both steps in a loop.
//
// # Dangers and Warnings
//
//   - **Release**: Every Claim must be paired with Release on every exit path.
//     A missing Release leaks a record forever (a liveness defect, not a safety one).
//   - **ClearAll**: Only valid when no goroutine can Claim or Release concurrently.
//   - **Protected address**: Only meaningful while the record is active.
//
// # Thread Safety
//
// Claim, Release, Protect and Claimed are safe for concurrent use.
package hazard

import (
	"sync/atomic"

	"golang.org/x/sys/cpu"
)

// Source is anything that publishes a pointer atomically.
// *atomic.Pointer[T] satisfies it.
type Source[T any] interface {
	Load() *T
}

// Record is a single hazard pointer.
type Record[T any] struct {
	_         cpu.CacheLinePad
	active    atomic.Bool
	protected atomic.Pointer[T]
	next      *Record[T] // immutable once pushed
	_         cpu.CacheLinePad
}

// Set publishes p as protected by this record.
func (r *Record[T]) Set(p *T) {
	r.protected.Store(p)
}

// Protected returns the currently published address.
func (r *Record[T]) Protected() *T {
	return r.protected.Load()
}

// Active reports whether the record is claimed.
func (r *Record[T]) Active() bool {
	return r.active.Load()
}

// Reconfirm reports whether src still publishes p.
func (r *Record[T]) Reconfirm(src Source[T], p *T) bool {
	return src.Load() == p
}

// Protect loads src, publishes the value and reconfirms it, retrying until the
// published value was current at the instant of publication. It returns the
// protected pointer and the number of failed reconfirmations.
func (r *Record[T]) Protect(src Source[T]) (*T, int) {
	retries := 0
	for {
		p := src.Load()
		r.Set(p)
		if r.Reconfirm(src, p) {
			return p, retries
		}
		retries++
	}
}

// Registry is the shared list of hazard records.
type Registry[T any] struct {
	head    atomic.Pointer[Record[T]]
	created atomic.Int64
}

// NewRegistry creates an empty registry.
func NewRegistry[T any]() *Registry[T] {
	return &Registry[T]{}
}

// Claim returns an active record, reusing a released one when possible.
func (g *Registry[T]) Claim() *Record[T] {
	for rec := g.head.Load(); rec != nil; rec = rec.next {
		if rec.active.Load() || !rec.active.CompareAndSwap(false, true) {
			continue
		}
		return rec
	}

	rec := &Record[T]{}
	rec.active.Store(true)
	g.created.Add(1)

	for {
		old := g.head.Load()
		rec.next = old
		if g.head.CompareAndSwap(old, rec) {
			return rec
		}
	}
}

// Release clears the record and makes it reusable.
func (g *Registry[T]) Release(rec *Record[T]) {
	if rec == nil {
		return
	}
	rec.protected.Store(nil)
	rec.active.Store(false)
}

// Claimed adds every non-nil protected address to into.
func (g *Registry[T]) Claimed(into map[*T]struct{}) {
	for rec := g.head.Load(); rec != nil; rec = rec.next {
		if p := rec.protected.Load(); p != nil {
			into[p] = struct{}{}
		}
	}
}

// isClaimed reports whether any record currently protects p.
func (g *Registry[T]) isClaimed(p *T) bool {
	for rec := g.head.Load(); rec != nil; rec = rec.next {
		if rec.protected.Load() == p {
			return true
		}
	}
	return false
}

// Len returns the number of records ever created.
func (g *Registry[T]) Len() int {
	return int(g.created.Load())
}

// ActiveCount returns the number of currently claimed records.
func (g *Registry[T]) ActiveCount() int {
	n := 0
	for rec := g.head.Load(); rec != nil; rec = rec.next {
		if rec.active.Load() {
			n++
		}
	}
	return n
}

// ClearAll drops every record. Not safe with concurrent users.
func (g *Registry[T]) ClearAll() {
	g.head.Store(nil)
	g.created.Store(0)
}
