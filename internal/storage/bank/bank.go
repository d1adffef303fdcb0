// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package bank provides a fixed-capacity pool of preallocated snapshot slots.
//
// The bank replaces per-operation allocation: every snapshot the container
// ever publishes lives in one of the bank's slots, and superseded snapshots
// are recycled back into the bank instead of being dropped for the garbage
// collector.
//
// # Slot Lifecycle
//
// Each slot is owned by exactly one party at any instant:
//
//	Free  --Get-->     Live      (working clone, then current snapshot)
//	Live  --Retire-->  Retired   (superseded, possibly still read)
//	Retired --Store--> Free      (proven unreferenced)
//	Live  --Store-->   Free      (discarded clone, or teardown)
//
// Transitions are enforced with an atomic state word; an illegal transition
// (double store, retiring a free slot) returns ErrIllegalTransition.
//
// # Usage Examples
//
//	b, err := bank.New[int](6000, 0)
//	if err != nil {
//	    return err
//	}
//
//	slot, err := b.Get()
//	if errors.Is(err, bank.ErrExhausted) {
//	    // every slot is in use
//	}
//	slot.Append(42)
//	...
//	b.Store(slot)
//
// # Dangers and Warnings
//
//   - **Capacity**: The bank never grows. Get returns ErrExhausted when empty.
//   - **Store**: Only store slots that no reader can still reach.
//   - **Locking**: Get and Store take a mutex. It is the only blocking point of
//     the container and is held for O(1) work.
//
// # Thread Safety
//
// Get, Store, Free and Cap are safe for concurrent use.
package bank

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrExhausted is returned by Get when every slot is in use.
	ErrExhausted = errors.New("bank exhausted")
	// ErrIllegalTransition is returned when a slot is moved out of order.
	ErrIllegalTransition = errors.New("illegal slot transition")
	// ErrForeignSlot is returned when storing a slot that belongs to another bank.
	ErrForeignSlot = errors.New("slot belongs to another bank")
	// ErrReclaimed is returned when a read observes a slot that was returned
	// to the bank while still being read.
	ErrReclaimed = errors.New("slot reclaimed while in use")
	// ErrInvalidCapacity is returned by New for a non-positive capacity.
	ErrInvalidCapacity = errors.New("bank capacity must be positive")
)

// Bank is a fixed-capacity FIFO of free slots.
type Bank[T any] struct {
	mu    sync.Mutex
	free  []*Slot[T] // ring buffer
	head  int
	count int
	slots []*Slot[T]
}

// New preallocates capacity slots, each with room for hint elements.
func New[T any](capacity, hint int) (*Bank[T], error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("capacity %d: %w", capacity, ErrInvalidCapacity)
	}
	if hint < 0 {
		hint = 0
	}

	b := &Bank[T]{
		free:  make([]*Slot[T], capacity),
		slots: make([]*Slot[T], capacity),
		count: capacity,
	}
	for i := range b.slots {
		s := &Slot[T]{id: i, owner: b, items: make([]T, 0, hint)}
		b.slots[i] = s
		b.free[i] = s
	}
	return b, nil
}

// Get removes the oldest free slot and marks it live.
func (b *Bank[T]) Get() (*Slot[T], error) {
	b.mu.Lock()
	if b.count == 0 {
		b.mu.Unlock()
		return nil, ErrExhausted
	}
	s := b.free[b.head]
	b.free[b.head] = nil
	b.head = (b.head + 1) % len(b.free)
	b.count--
	b.mu.Unlock()

	if err := s.transition(StateFree, StateLive); err != nil {
		panic(err)
	}
	s.gen.Add(1)
	return s, nil
}

// Store resets a live or retired slot and returns it to the free queue.
func (b *Bank[T]) Store(s *Slot[T]) error {
	if s == nil || s.owner != b {
		return ErrForeignSlot
	}

	st := s.State()
	if st == StateFree {
		return fmt.Errorf("slot %d: store of %s slot: %w", s.id, st, ErrIllegalTransition)
	}
	if err := s.transition(st, StateFree); err != nil {
		return err
	}
	s.reset()

	b.mu.Lock()
	defer b.mu.Unlock()
	tail := (b.head + b.count) % len(b.free)
	b.free[tail] = s
	b.count++
	return nil
}

// Free returns the number of slots in the free queue.
func (b *Bank[T]) Free() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Cap returns the total number of slots.
func (b *Bank[T]) Cap() int {
	return len(b.slots)
}

// InUse returns the number of slots outside the free queue.
func (b *Bank[T]) InUse() int {
	return b.Cap() - b.Free()
}

// Count returns how many slots are currently in state st.
func (b *Bank[T]) Count(st State) int {
	n := 0
	for _, s := range b.slots {
		if s.State() == st {
			n++
		}
	}
	return n
}
