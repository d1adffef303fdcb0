// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package lfsv provides a lock-free, self-sorting vector with hazard-pointer
// memory reclamation.
//
// This is the main public API for the LFSV library. Writers publish immutable
// sorted snapshots with a single compare-and-swap; readers protect the
// snapshot they read with a hazard pointer. Superseded snapshots are recycled
// through a fixed-capacity memory bank once no reader can still reach them.
//
// # Quick Start
//
//	import "github.com/kianostad/lfsv"
//
//	v, err := lfsv.New[int]()
//	if err != nil {
//	    return err
//	}
//	defer v.Close(ctx)
//
//	v.Insert(ctx, 5)
//	v.Insert(ctx, 3)
//	x, err := v.At(ctx, 0) // 3
//
// # Key Features
//
//   - Lock-free inserts and reads
//   - Linearizable insert history
//   - Bounded memory through a preallocated bank
//   - Hazard-pointer reclamation with per-session retired lists
//   - Optional bounded retry with exponential backoff
//   - Structured logging and Prometheus-ready metrics
//
// # Usage Examples
//
// Configuration:
//
//	v, err := lfsv.New[int64](
//	    lfsv.WithCapacity(1024),
//	    lfsv.WithScanThreshold(16),
//	    lfsv.WithRetryPolicy(lfsv.RetryPolicy{MaxAttempts: 64, BaseDelay: time.Microsecond}),
//	    lfsv.WithLogger(lfsv.NewTextLogger(slog.LevelDebug)),
//	)
//
// Custom ordering:
//
//	v, err := lfsv.NewFunc(func(a, b float64) int { return cmp.Compare(b, a) })
//
// Writer sessions:
//
//	s, err := v.Session()
//	defer s.Close(ctx)
//	s.Insert(ctx, 42)
//
// Batches:
//
//	b := lfsv.NewBatch[int]()
//	b.AddAll(3, 1, 2)
//	err := v.ExecuteBatch(ctx, b)
//
// # Error Handling
//
//	if err := v.Insert(ctx, x); errors.Is(err, lfsv.ErrBankExhausted) {
//	    v.Reclaim(ctx)
//	}
//
//	if _, err := v.At(ctx, i); errors.Is(err, lfsv.ErrIndexOutOfRange) {
//	    // i was outside the snapshot the read observed
//	}
//
// # See Also
//
// For the container internals, see the core package.
package lfsv

import (
	"cmp"
	"log/slog"

	"github.com/kianostad/lfsv/internal/concurrency/retry"
	core "github.com/kianostad/lfsv/internal/core"
	"github.com/kianostad/lfsv/internal/monitoring/logging"
	"github.com/kianostad/lfsv/internal/monitoring/metrics"
)

// Re-export core types
type (
	// Vector is the lock-free sorted container
	Vector[T any] = core.Vector[T]

	// Session is a writer handle with its own retired list
	Session[T any] = core.Session[T]

	// Batch groups values published with one snapshot
	Batch[T any] = core.Batch[T]

	// Stats describes resource usage
	Stats = core.Stats

	// IndexError reports an out-of-range read
	IndexError = core.IndexError

	// Config holds container settings
	Config = core.Config

	// Option modifies a Config
	Option = core.Option

	// ExitPolicy decides what a closing session does with pending entries
	ExitPolicy = core.ExitPolicy

	// ExhaustionPolicy decides how inserts react to an empty bank
	ExhaustionPolicy = core.ExhaustionPolicy

	// RetryPolicy bounds the publish loop
	RetryPolicy = retry.Policy

	// Logger is the structured logger
	Logger = logging.Logger

	// Metrics collects operation metrics
	Metrics = metrics.Metrics

	// MetricsSnapshot is a point-in-time copy of Metrics
	MetricsSnapshot = metrics.MetricsSnapshot
)

const (
	ExitHandOff     = core.ExitHandOff
	ExitUnchecked   = core.ExitUnchecked
	ExhaustionError = core.ExhaustionError
	ExhaustionPanic = core.ExhaustionPanic
	DefaultCapacity = core.DefaultCapacity
)

var (
	ErrClosed                = core.ErrClosed
	ErrSessionClosed         = core.ErrSessionClosed
	ErrBankExhausted         = core.ErrBankExhausted
	ErrContention            = core.ErrContention
	ErrIndexOutOfRange       = core.ErrIndexOutOfRange
	ErrBatchAlreadyCommitted = core.ErrBatchAlreadyCommitted
)

// New creates a vector ordered by cmp.Compare.
func New[T cmp.Ordered](opts ...Option) (*Vector[T], error) {
	return core.New[T](opts...)
}

// NewFunc creates a vector ordered by compare.
func NewFunc[T any](compare func(a, b T) int, opts ...Option) (*Vector[T], error) {
	return core.NewFunc(compare, opts...)
}

// NewBatch creates an empty batch.
func NewBatch[T any]() *Batch[T] {
	return core.NewBatch[T]()
}

// DefaultConfig returns the default settings.
func DefaultConfig() Config {
	return core.DefaultConfig()
}

// Options, re-exported from core.
var (
	WithCapacity          = core.WithCapacity
	WithSizeHint          = core.WithSizeHint
	WithScanThreshold     = core.WithScanThreshold
	WithRetryPolicy       = core.WithRetryPolicy
	WithExhaustionPolicy  = core.WithExhaustionPolicy
	WithExitPolicy        = core.WithExitPolicy
	WithLogger            = core.WithLogger
	WithMetrics           = core.WithMetrics
	WithBackgroundReclaim = core.WithBackgroundReclaim
)

// NewTextLogger creates a logger writing text to stderr.
func NewTextLogger(level slog.Level) *Logger {
	return logging.NewTextLogger(level)
}

// NewJSONLogger creates a logger writing JSON to stderr.
func NewJSONLogger(level slog.Level) *Logger {
	return logging.NewJSONLogger(level)
}

// NewMetrics creates a metrics instance that can be shared between vectors.
func NewMetrics() *Metrics {
	return metrics.NewMetrics()
}

// Common instantiations
type (
	IntVector     = Vector[int]
	Int64Vector   = Vector[int64]
	Float64Vector = Vector[float64]
	StringVector  = Vector[string]
)

// NewIntVector creates an int vector.
func NewIntVector(opts ...Option) (*IntVector, error) {
	return New[int](opts...)
}

// NewInt64Vector creates an int64 vector.
func NewInt64Vector(opts ...Option) (*Int64Vector, error) {
	return New[int64](opts...)
}

// NewFloat64Vector creates a float64 vector.
func NewFloat64Vector(opts ...Option) (*Float64Vector, error) {
	return New[float64](opts...)
}

// NewStringVector creates a string vector.
func NewStringVector(opts ...Option) (*StringVector, error) {
	return New[string](opts...)
}
