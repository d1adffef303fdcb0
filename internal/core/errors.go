// Licensed under the MIT License. See LICENSE file in the project root for details.

package core

import (
	"errors"
	"fmt"
)

var (
	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("vector closed")
	// ErrSessionClosed is returned by operations on a closed Session.
	ErrSessionClosed = errors.New("session closed")
	// ErrBankExhausted is returned when no slot is free for a new snapshot.
	ErrBankExhausted = errors.New("memory bank exhausted")
	// ErrContention is returned when a bounded retry policy gives up.
	ErrContention = errors.New("insert abandoned under contention")
	// ErrIndexOutOfRange is matched by every *IndexError.
	ErrIndexOutOfRange = errors.New("index out of range")
	// ErrBatchAlreadyCommitted is returned when a batch is executed twice.
	ErrBatchAlreadyCommitted = errors.New("batch already committed")
)

// IndexError reports an indexed read outside the snapshot it observed.
type IndexError struct {
	Index int
	Len   int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("index %d out of range [0:%d]", e.Index, e.Len)
}

// Is makes errors.Is(err, ErrIndexOutOfRange) hold.
func (e *IndexError) Is(target error) bool {
	return target == ErrIndexOutOfRange
}
