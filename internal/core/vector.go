// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package core provides a lock-free, self-sorting vector with hazard-pointer
// memory reclamation.
//
// The vector keeps its elements in immutable snapshots. A writer copies the
// current snapshot into a fresh slot from a fixed-capacity bank, inserts into
// the copy and publishes it with a compare-and-swap on a single atomic
// pointer. The superseded snapshot is retired, not recycled: a concurrent
// reader may still hold a hazard claim on it. Retired snapshots return to the
// bank once a scan proves no claim references them.
//
// # Key Features
//
//   - Lock-free Insert and At; the bank mutex is the only blocking point
//   - Linearizable history: every publication is ordered at one pointer
//   - Bounded memory: the bank never grows
//   - Comparator-parameterized ordering
//   - Optional bounded retry with backoff
//   - Structured logging and metrics
//
// # Usage Examples
//
// Basic operations:
//
//	v, err := core.New[int]()
//	if err != nil {
//	    return err
//	}
//	defer v.Close(ctx)
//
//	v.Insert(ctx, 5)
//	v.Insert(ctx, 3)
//	first, err := v.At(ctx, 0) // 3
//
// Custom ordering:
//
//	v, _ := core.NewFunc(func(a, b string) int {
//	    return cmp.Compare(len(a), len(b))
//	})
//
// Writer sessions:
//
//	s, _ := v.Session()
//	defer s.Close(ctx)
//	for _, x := range values {
//	    if err := s.Insert(ctx, x); err != nil {
//	        return err
//	    }
//	}
//
// # Dangers and Warnings
//
//   - **Capacity**: Every snapshot, current or retired, occupies a bank slot.
//     Insert returns ErrBankExhausted when the bank is empty.
//   - **Copy cost**: Each insert copies the whole snapshot. The vector suits
//     read-mostly workloads of modest size.
//   - **Close**: Close is only valid once every other goroutine has stopped
//     using the vector.
//   - **ExitUnchecked**: Recycles a closing session's entries without checking
//     for readers. Use only when sessions close after all readers finish.
//
// # Thread Safety
//
// Every Vector method except Close is safe for concurrent use. A Session must
// be confined to one goroutine at a time.
package core

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync/atomic"
	"time"

	"github.com/kianostad/lfsv/internal/concurrency/hazard"
	"github.com/kianostad/lfsv/internal/concurrency/retire"
	"github.com/kianostad/lfsv/internal/monitoring/logging"
	"github.com/kianostad/lfsv/internal/monitoring/metrics"
	"github.com/kianostad/lfsv/internal/storage/bank"
)

type snapshot[T any] = bank.Slot[T]

// Vector is a sorted sequence of T.
type Vector[T any] struct {
	compare func(a, b T) int
	cfg     Config

	current  atomic.Pointer[snapshot[T]]
	bank     *bank.Bank[T]
	hazards  *hazard.Registry[snapshot[T]]
	sessions sessionPool[T]
	orphans  *retire.Orphans[snapshot[T]]

	logger     *logging.Logger
	metrics    *metrics.Metrics
	ownMetrics bool
	reclaimer  *reclaimer

	retired    atomic.Int64 // slots in state Retired
	violations atomic.Uint64
	closed     atomic.Bool
}

// New creates a vector ordered by cmp.Compare.
func New[T cmp.Ordered](opts ...Option) (*Vector[T], error) {
	return NewFunc(cmp.Compare[T], opts...)
}

// NewFunc creates a vector ordered by compare, which must define a strict
// weak ordering and return a negative number, zero or a positive number.
func NewFunc[T any](compare func(a, b T) int, opts ...Option) (*Vector[T], error) {
	if compare == nil {
		return nil, errors.New("nil comparator")
	}
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	b, err := bank.New[T](cfg.Capacity, cfg.SizeHint)
	if err != nil {
		return nil, fmt.Errorf("create bank: %w", err)
	}

	v := &Vector[T]{
		compare: compare,
		cfg:     cfg,
		bank:    b,
		hazards: hazard.NewRegistry[snapshot[T]](),
		orphans: retire.NewOrphans[snapshot[T]](),
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
	}
	v.sessions.threshold = cfg.ScanThreshold
	if v.logger == nil {
		v.logger = logging.NoopLogger()
	}
	if v.metrics == nil {
		v.metrics = metrics.NewMetrics()
		v.ownMetrics = true
	}

	initial, err := b.Get()
	if err != nil {
		v.closeMetrics()
		return nil, fmt.Errorf("initial snapshot: %w", err)
	}
	v.current.Store(initial)
	v.metrics.SetOccupancy(b.Free(), b.Cap(), 0, 0)

	if cfg.ReclaimInterval > 0 {
		v.reclaimer = newReclaimer(cfg.ReclaimInterval, func() {
			_, _ = v.Reclaim(context.Background())
		})
		v.reclaimer.Start()
	}
	return v, nil
}

// Insert adds x in order. A value not ordered before the last element is
// appended, after any equal ones; otherwise it goes before the first element
// not ordered before it.
func (v *Vector[T]) Insert(ctx context.Context, x T) error {
	rec := v.sessions.acquire()
	defer v.sessions.release(rec)
	return v.insertWith(ctx, rec, v.logger, x)
}

func (v *Vector[T]) insertWith(ctx context.Context, rec *sessionRecord[T], logger *logging.Logger, x T) error {
	start := time.Now()
	retries, err := v.publish(ctx, rec, logger, func(clone *snapshot[T]) {
		v.place(clone, x)
	})
	if err == nil {
		v.metrics.RecordInsert(time.Since(start), retries)
	}
	return err
}

// publish runs the copy/insert/compare-and-swap loop. build is applied to a
// fresh copy of the protected snapshot and must leave it sorted.
func (v *Vector[T]) publish(ctx context.Context, rec *sessionRecord[T], logger *logging.Logger, build func(*snapshot[T])) (int, error) {
	if v.closed.Load() {
		return 0, ErrClosed
	}

	hp := v.hazards.Claim()
	attempt := v.cfg.Retry.Start()

	var (
		clone, base *snapshot[T]
		baseGen     uint64
		protects    int
	)
	for {
		old, n := hp.Protect(&v.current)
		protects += n
		if old == nil {
			v.hazards.Release(hp)
			v.discard(ctx, clone)
			return attempt.Count(), ErrClosed
		}

		if clone == nil || old != base || old.Generation() != baseGen {
			v.discard(ctx, clone)
			clone = nil

			fresh, err := v.bank.Get()
			if err != nil {
				v.hazards.Release(hp)
				return attempt.Count(), v.exhausted(ctx, rec, logger, err)
			}
			fresh.CopyFrom(old)
			build(fresh)
			clone, base, baseGen = fresh, old, old.Generation()
			v.metrics.RecordClone()
		}

		if v.current.CompareAndSwap(old, clone) {
			break
		}
		if err := attempt.Next(); err != nil {
			v.hazards.Release(hp)
			v.discard(ctx, clone)
			v.metrics.RecordError("contention")
			return attempt.Count(), fmt.Errorf("%w after %d attempts", ErrContention, attempt.Count())
		}
	}
	v.hazards.Release(hp)
	v.metrics.RecordProtectRetries(protects)

	v.retire(ctx, rec, logger, base)
	return attempt.Count(), nil
}

// place inserts x into an unpublished snapshot.
func (v *Vector[T]) place(s *snapshot[T], x T) {
	items := s.Items()
	n := len(items)
	if n == 0 || v.compare(x, items[n-1]) >= 0 {
		s.Append(x)
		return
	}
	i := 0
	for i < n && v.compare(items[i], x) < 0 {
		i++
	}
	s.InsertAt(i, x)
}

// discard returns an unpublished clone to the bank.
func (v *Vector[T]) discard(ctx context.Context, s *snapshot[T]) {
	if s == nil {
		return
	}
	if err := v.bank.Store(s); err != nil {
		v.violation(ctx, "discard", err)
	}
}

func (v *Vector[T]) retire(ctx context.Context, rec *sessionRecord[T], logger *logging.Logger, old *snapshot[T]) {
	if err := old.Retire(); err != nil {
		// A published snapshot is Live until exactly one writer replaces it.
		panic(fmt.Errorf("retire superseded snapshot: %w", err))
	}
	v.retired.Add(1)
	if rec.retired.Push(old) {
		v.scan(ctx, rec, logger)
	}
}

func (v *Vector[T]) exhausted(ctx context.Context, rec *sessionRecord[T], logger *logging.Logger, cause error) error {
	err := fmt.Errorf("%w: %w", ErrBankExhausted, cause)
	v.metrics.RecordError("exhausted")
	logger.LogExhausted(ctx, v.bank.Cap(), rec.retired.Len(), v.orphans.Len())
	if v.cfg.Exhaustion == ExhaustionPanic {
		panic(err)
	}
	return err
}

// reclaim returns a retired snapshot to the bank.
func (v *Vector[T]) reclaim(s *snapshot[T]) {
	if err := v.bank.Store(s); err != nil {
		v.violation(context.Background(), "reclaim", err)
		return
	}
	v.retired.Add(-1)
}

func (v *Vector[T]) violation(ctx context.Context, op string, err error) {
	v.violations.Add(1)
	v.metrics.RecordError("violation")
	v.logger.LogInvariant(ctx, op, err)
}

// scan reclaims unclaimed entries of rec and of the orphan pool.
func (v *Vector[T]) scan(ctx context.Context, rec *sessionRecord[T], logger *logging.Logger) int {
	start := time.Now()
	claimed := make(map[*snapshot[T]]struct{})
	v.hazards.Claimed(claimed)

	n := rec.retired.Sweep(claimed, v.reclaim)
	n += v.orphans.Sweep(claimed, v.reclaim)

	v.metrics.RecordScan(time.Since(start), n)
	logger.LogScan(ctx, len(claimed), n, rec.retired.Len())
	return n
}

// view protects the current snapshot and passes it to fn.
func (v *Vector[T]) view(fn func(s *snapshot[T]) error) error {
	if v.closed.Load() {
		return ErrClosed
	}
	hp := v.hazards.Claim()
	defer v.hazards.Release(hp)

	s, n := hp.Protect(&v.current)
	if n > 0 {
		v.metrics.RecordProtectRetries(n)
	}
	if s == nil {
		return ErrClosed
	}
	return fn(s)
}

// checked verifies a snapshot was not recycled while it was being read.
func (v *Vector[T]) checked(ctx context.Context, op string, s *snapshot[T]) error {
	if s.Valid() {
		return nil
	}
	err := fmt.Errorf("%s: %w", op, bank.ErrReclaimed)
	v.violation(ctx, op, err)
	return err
}

// At returns the element at index i of the current snapshot.
func (v *Vector[T]) At(ctx context.Context, i int) (T, error) {
	start := time.Now()
	var out T
	err := v.view(func(s *snapshot[T]) error {
		n := s.Len()
		if i < 0 || i >= n {
			if err := v.checked(ctx, "at", s); err != nil {
				return err
			}
			return &IndexError{Index: i, Len: n}
		}
		x, err := s.Load(i)
		if err != nil {
			v.violation(ctx, "at", err)
			return err
		}
		out = x
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrIndexOutOfRange) {
			v.metrics.RecordError("out_of_range")
		}
		var zero T
		return zero, err
	}
	v.metrics.RecordAt(time.Since(start))
	return out, nil
}

// Len returns the number of elements in the current snapshot.
func (v *Vector[T]) Len(ctx context.Context) (int, error) {
	var n int
	err := v.view(func(s *snapshot[T]) error {
		n = s.Len()
		return v.checked(ctx, "len", s)
	})
	return n, err
}

// Values returns a copy of the current snapshot.
func (v *Vector[T]) Values(ctx context.Context) ([]T, error) {
	var out []T
	err := v.view(func(s *snapshot[T]) error {
		out = slices.Clone(s.Items())
		return v.checked(ctx, "values", s)
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []T{}
	}
	return out, nil
}

// Search returns the index of the first element not ordered before x, and
// whether that element equals x.
func (v *Vector[T]) Search(ctx context.Context, x T) (int, bool, error) {
	var (
		i     int
		found bool
	)
	err := v.view(func(s *snapshot[T]) error {
		i, found = slices.BinarySearchFunc(s.Items(), x, v.compare)
		return v.checked(ctx, "search", s)
	})
	return i, found, err
}

// Reclaim scans the hand-off pool and every idle session. It returns the
// number of snapshots returned to the bank.
func (v *Vector[T]) Reclaim(ctx context.Context) (int, error) {
	if v.closed.Load() {
		return 0, ErrClosed
	}
	start := time.Now()
	claimed := make(map[*snapshot[T]]struct{})
	v.hazards.Claimed(claimed)

	n := v.orphans.Sweep(claimed, v.reclaim)
	v.sessions.idle(func(rec *sessionRecord[T]) {
		n += rec.retired.Sweep(claimed, v.reclaim)
	})

	v.metrics.RecordScan(time.Since(start), n)
	v.logger.LogScan(ctx, len(claimed), n, int(v.retired.Load()))
	v.publishOccupancy()
	return n, nil
}

// Stats describes the container's resource usage.
type Stats struct {
	Len           int
	HazardRecords int
	ActiveClaims  int
	Sessions      int
	BankFree      int
	BankInUse     int
	BankCapacity  int
	Retired       int
	Orphans       int
	Violations    uint64
	Metrics       metrics.MetricsSnapshot
}

// Stats returns current resource usage.
func (v *Vector[T]) Stats(ctx context.Context) (Stats, error) {
	n, err := v.Len(ctx)
	if err != nil {
		return Stats{}, err
	}
	v.publishOccupancy()
	return Stats{
		Len:           n,
		HazardRecords: v.hazards.Len(),
		ActiveClaims:  v.hazards.ActiveCount(),
		Sessions:      v.sessions.len(),
		BankFree:      v.bank.Free(),
		BankInUse:     v.bank.InUse(),
		BankCapacity:  v.bank.Cap(),
		Retired:       int(v.retired.Load()),
		Orphans:       v.orphans.Len(),
		Violations:    v.violations.Load(),
		Metrics:       v.metrics.GetStats(),
	}, nil
}

// Violations returns how many reads observed a recycled snapshot or how many
// slots moved out of order. It is zero unless the reclamation protocol broke.
func (v *Vector[T]) Violations() uint64 {
	return v.violations.Load()
}

// Metrics returns the metrics instance.
func (v *Vector[T]) Metrics() *metrics.Metrics {
	return v.metrics
}

func (v *Vector[T]) publishOccupancy() {
	v.metrics.SetOccupancy(v.bank.Free(), v.bank.Cap(), v.hazards.Len(), int(v.retired.Load()))
}

// Close recycles the current snapshot and every retired one, drops the hazard
// registry and stops background work. No other goroutine may use the vector
// concurrently. Every slot is back in the bank afterwards.
func (v *Vector[T]) Close(ctx context.Context) error {
	if !v.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	if v.reclaimer != nil {
		v.reclaimer.Stop()
	}

	var errs []error
	if cur := v.current.Swap(nil); cur != nil {
		if err := v.bank.Store(cur); err != nil {
			errs = append(errs, fmt.Errorf("store current snapshot: %w", err))
		}
	}
	v.hazards.ClearAll()

	reclaimed := 0
	v.sessions.each(func(rec *sessionRecord[T]) {
		reclaimed += rec.retired.Drain(v.reclaim)
	})
	for _, s := range v.orphans.Take() {
		v.reclaim(s)
		reclaimed++
	}

	err := errors.Join(errs...)
	v.metrics.RecordReclaimed(reclaimed)
	v.publishOccupancy()
	v.logger.LogClose(ctx, reclaimed, v.bank.Free(), v.bank.Cap(), err)
	v.closeMetrics()
	return err
}

func (v *Vector[T]) closeMetrics() {
	if v.ownMetrics {
		v.metrics.Close()
	}
}
