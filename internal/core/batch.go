// Licensed under the MIT License. See LICENSE file in the project root for details.

package core

import (
	"context"
	"time"

	"github.com/kianostad/lfsv/internal/monitoring/logging"
)

// Batch collects values that are published together: ExecuteBatch copies the
// current snapshot once, inserts every value and publishes the result with a
// single compare-and-swap. Readers observe either none or all of the batch.
//
// Batches are not safe for concurrent use. Once executed a batch cannot be
// executed again until Clear.
//
//	b := core.NewBatch[int]()
//	b.Add(4)
//	b.Add(1)
//	if err := v.ExecuteBatch(ctx, b); err != nil {
//	    // ErrBankExhausted, ErrContention, ErrBatchAlreadyCommitted
//	}
type Batch[T any] struct {
	values    []T
	committed bool
}

// NewBatch creates an empty batch.
func NewBatch[T any]() *Batch[T] {
	return &Batch[T]{
		values: make([]T, 0, 16),
	}
}

// Add queues x for insertion.
func (b *Batch[T]) Add(x T) {
	b.values = append(b.values, x)
}

// AddAll queues every element of xs.
func (b *Batch[T]) AddAll(xs ...T) {
	b.values = append(b.values, xs...)
}

// Size returns the number of queued values.
func (b *Batch[T]) Size() int {
	return len(b.values)
}

// Clear drops every queued value and makes the batch reusable.
func (b *Batch[T]) Clear() {
	clear(b.values)
	b.values = b.values[:0]
	b.committed = false
}

// IsCommitted reports whether the batch has been executed.
func (b *Batch[T]) IsCommitted() bool {
	return b.committed
}

// ExecuteBatch inserts every value of b with one snapshot publication.
func (v *Vector[T]) ExecuteBatch(ctx context.Context, b *Batch[T]) error {
	rec := v.sessions.acquire()
	defer v.sessions.release(rec)
	return v.executeBatch(ctx, rec, v.logger, b)
}

func (v *Vector[T]) executeBatch(ctx context.Context, rec *sessionRecord[T], logger *logging.Logger, b *Batch[T]) error {
	if b.committed {
		return ErrBatchAlreadyCommitted
	}
	if len(b.values) == 0 {
		b.committed = true
		return nil
	}

	start := time.Now()
	retries, err := v.publish(ctx, rec, logger, func(clone *snapshot[T]) {
		for _, x := range b.values {
			v.place(clone, x)
		}
	})
	if err != nil {
		return err
	}
	v.metrics.RecordBatch(time.Since(start), retries)
	b.committed = true
	return nil
}
