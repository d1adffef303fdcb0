// Licensed under the MIT License. See LICENSE file in the project root for details.

package core

import (
	"context"
	"sync/atomic"

	"golang.org/x/sys/cpu"

	"github.com/kianostad/lfsv/internal/concurrency/retire"
	"github.com/kianostad/lfsv/internal/monitoring/logging"
	"github.com/kianostad/lfsv/internal/storage/bank"
)

// sessionRecord owns one retired list. Exactly one goroutine holds a record
// at a time; the active flag is claimed with a compare-and-swap, the same way
// hazard records are.
type sessionRecord[T any] struct {
	_       cpu.CacheLinePad
	active  atomic.Bool
	id      uint64
	retired *retire.List[bank.Slot[T]]
	next    *sessionRecord[T] // immutable once pushed
	_       cpu.CacheLinePad
}

// sessionPool is the lock-free list of every session record ever created.
type sessionPool[T any] struct {
	head      atomic.Pointer[sessionRecord[T]]
	created   atomic.Uint64
	threshold int
}

func (p *sessionPool[T]) acquire() *sessionRecord[T] {
	for rec := p.head.Load(); rec != nil; rec = rec.next {
		if rec.active.Load() || !rec.active.CompareAndSwap(false, true) {
			continue
		}
		return rec
	}

	rec := &sessionRecord[T]{
		id:      p.created.Add(1),
		retired: retire.NewList[bank.Slot[T]](p.threshold),
	}
	rec.active.Store(true)
	for {
		old := p.head.Load()
		rec.next = old
		if p.head.CompareAndSwap(old, rec) {
			return rec
		}
	}
}

func (p *sessionPool[T]) release(rec *sessionRecord[T]) {
	rec.active.Store(false)
}

// idle calls fn for every record it manages to claim, then releases it.
func (p *sessionPool[T]) idle(fn func(*sessionRecord[T])) {
	for rec := p.head.Load(); rec != nil; rec = rec.next {
		if rec.active.Load() || !rec.active.CompareAndSwap(false, true) {
			continue
		}
		fn(rec)
		p.release(rec)
	}
}

// each calls fn for every record regardless of ownership. Teardown only.
func (p *sessionPool[T]) each(fn func(*sessionRecord[T])) {
	for rec := p.head.Load(); rec != nil; rec = rec.next {
		fn(rec)
	}
}

func (p *sessionPool[T]) len() int {
	return int(p.created.Load())
}

// Session is a writer's handle with its own retired list, the counterpart of
// a thread in a thread-local reclamation scheme. A Session must not be used
// by more than one goroutine at a time.
//
// Session.Close applies the container's ExitPolicy to entries the session
// retired but could not reclaim.
type Session[T any] struct {
	v      *Vector[T]
	rec    *sessionRecord[T]
	logger *logging.Logger
	closed bool
}

// Session opens a writer session.
func (v *Vector[T]) Session() (*Session[T], error) {
	if v.closed.Load() {
		return nil, ErrClosed
	}
	rec := v.sessions.acquire()
	return &Session[T]{
		v:      v,
		rec:    rec,
		logger: v.logger.WithSession(rec.id),
	}, nil
}

// ID returns the identifier of the underlying session record.
func (s *Session[T]) ID() uint64 { return s.rec.id }

// Pending returns the number of entries retired by this session and not yet
// reclaimed.
func (s *Session[T]) Pending() int { return s.rec.retired.Len() }

// Insert adds x in order.
func (s *Session[T]) Insert(ctx context.Context, x T) error {
	if s.closed {
		return ErrSessionClosed
	}
	return s.v.insertWith(ctx, s.rec, s.logger, x)
}

// ExecuteBatch publishes every value of b with one snapshot.
func (s *Session[T]) ExecuteBatch(ctx context.Context, b *Batch[T]) error {
	if s.closed {
		return ErrSessionClosed
	}
	return s.v.executeBatch(ctx, s.rec, s.logger, b)
}

// At returns the element at index i.
func (s *Session[T]) At(ctx context.Context, i int) (T, error) {
	if s.closed {
		var zero T
		return zero, ErrSessionClosed
	}
	return s.v.At(ctx, i)
}

// Scan reclaims every entry of this session, and of the shared hand-off
// pool, that no hazard record claims. It returns the number reclaimed.
func (s *Session[T]) Scan(ctx context.Context) (int, error) {
	if s.closed {
		return 0, ErrSessionClosed
	}
	if s.v.closed.Load() {
		return 0, ErrClosed
	}
	return s.v.scan(ctx, s.rec, s.logger), nil
}

// Close ends the session. Entries still pending are handed to the shared
// pool (ExitHandOff) or returned to the bank unchecked (ExitUnchecked).
func (s *Session[T]) Close(ctx context.Context) error {
	if s.closed {
		return nil
	}
	s.closed = true

	v := s.v
	if v.closed.Load() {
		// Close already drained every list.
		return nil
	}

	var n int
	switch v.cfg.Exit {
	case ExitUnchecked:
		n = s.rec.retired.Drain(v.reclaim)
		v.metrics.RecordReclaimed(n)
	default:
		entries := s.rec.retired.Take()
		n = len(entries)
		v.orphans.Adopt(entries)
		v.metrics.RecordOrphaned(n)
	}
	s.logger.LogSessionExit(ctx, v.cfg.Exit.String(), n)
	v.sessions.release(s.rec)
	return nil
}
