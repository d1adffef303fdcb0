// Licensed under the MIT License. See LICENSE file in the project root for details.

package bank

import (
	"fmt"
	"sync/atomic"
)

// State is the ownership state of a slot.
type State uint32

const (
	// StateFree means the slot sits in the bank's free queue.
	StateFree State = iota
	// StateLive means the slot holds a working clone or the current snapshot.
	StateLive
	// StateRetired means the slot was superseded and awaits reclamation.
	StateRetired
)

func (s State) String() string {
	switch s {
	case StateFree:
		return "free"
	case StateLive:
		return "live"
	case StateRetired:
		return "retired"
	default:
		return fmt.Sprintf("state(%d)", uint32(s))
	}
}

// Slot is a handle to one preallocated unit of snapshot storage.
// Its contents are written only while it is Live and unpublished; once
// published they are immutable until the slot is stored back in the bank.
type Slot[T any] struct {
	id    int
	owner *Bank[T]
	state atomic.Uint32
	gen   atomic.Uint64
	items []T
}

// ID returns the slot's index in its bank.
func (s *Slot[T]) ID() int { return s.id }

// State returns the current ownership state.
func (s *Slot[T]) State() State { return State(s.state.Load()) }

// Generation counts how many times the slot has left the bank. Two
// observations of the same slot with equal generations saw the same contents.
func (s *Slot[T]) Generation() uint64 { return s.gen.Load() }

// Valid reports whether the slot has not been returned to the bank.
func (s *Slot[T]) Valid() bool { return s.State() != StateFree }

func (s *Slot[T]) transition(from, to State) error {
	if !s.state.CompareAndSwap(uint32(from), uint32(to)) {
		return fmt.Errorf("slot %d: %s -> %s from %s: %w", s.id, from, to, s.State(), ErrIllegalTransition)
	}
	return nil
}

// Retire moves a live slot to the retired state.
func (s *Slot[T]) Retire() error {
	return s.transition(StateLive, StateRetired)
}

// Len returns the number of stored elements.
func (s *Slot[T]) Len() int { return len(s.items) }

// Items returns the stored elements. The slice must not be modified once the
// slot is published.
func (s *Slot[T]) Items() []T { return s.items }

// Load returns the element at i after checking the slot was not reclaimed
// underneath the caller. The caller performs the bounds check against the
// length it observed; an index past the current length means the slot was
// reset since.
func (s *Slot[T]) Load(i int) (T, error) {
	var v T
	items := s.items
	if i < len(items) {
		v = items[i]
	}
	if i >= len(items) || !s.Valid() {
		var zero T
		return zero, fmt.Errorf("slot %d: %w", s.id, ErrReclaimed)
	}
	return v, nil
}

// CopyFrom replaces the contents with a copy of src, reusing capacity.
func (s *Slot[T]) CopyFrom(src *Slot[T]) {
	s.items = append(s.items[:0], src.items...)
}

// Append adds v at the end.
func (s *Slot[T]) Append(v T) {
	s.items = append(s.items, v)
}

// InsertAt places v before the element currently at index i.
func (s *Slot[T]) InsertAt(i int, v T) {
	var zero T
	s.items = append(s.items, zero)
	copy(s.items[i+1:], s.items[i:])
	s.items[i] = v
}

func (s *Slot[T]) reset() {
	clear(s.items)
	s.items = s.items[:0]
}
