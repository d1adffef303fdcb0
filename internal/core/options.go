// Licensed under the MIT License. See LICENSE file in the project root for details.

package core

import (
	"errors"
	"fmt"
	"time"

	"github.com/kianostad/lfsv/internal/concurrency/retire"
	"github.com/kianostad/lfsv/internal/concurrency/retry"
	"github.com/kianostad/lfsv/internal/monitoring/logging"
	"github.com/kianostad/lfsv/internal/monitoring/metrics"
)

// DefaultCapacity is the number of bank slots preallocated by default.
const DefaultCapacity = 6000

// ExitPolicy decides what a closing Session does with the snapshots it
// retired but could not yet reclaim.
type ExitPolicy int

const (
	// ExitHandOff moves remaining entries to a shared pool. Later scans
	// reclaim them once no hazard claim references them.
	ExitHandOff ExitPolicy = iota
	// ExitUnchecked returns remaining entries to the bank without consulting
	// the hazard registry. A concurrent reader may still be using one.
	ExitUnchecked
)

func (p ExitPolicy) String() string {
	switch p {
	case ExitHandOff:
		return "handoff"
	case ExitUnchecked:
		return "unchecked"
	default:
		return fmt.Sprintf("exit(%d)", int(p))
	}
}

// ExhaustionPolicy decides how an insert reacts to an empty bank.
type ExhaustionPolicy int

const (
	// ExhaustionError returns ErrBankExhausted.
	ExhaustionError ExhaustionPolicy = iota
	// ExhaustionPanic panics with an error wrapping ErrBankExhausted.
	ExhaustionPanic
)

func (p ExhaustionPolicy) String() string {
	switch p {
	case ExhaustionError:
		return "error"
	case ExhaustionPanic:
		return "panic"
	default:
		return fmt.Sprintf("exhaustion(%d)", int(p))
	}
}

// Config holds the container settings.
type Config struct {
	Capacity        int              // bank slots, fixed for the container's lifetime
	SizeHint        int              // initial element capacity of each slot
	ScanThreshold   int              // retired entries that trigger a session scan
	Retry           retry.Policy     // publish loop policy; zero value retries forever
	Exhaustion      ExhaustionPolicy // empty bank behaviour
	Exit            ExitPolicy       // Session.Close behaviour
	ReclaimInterval time.Duration    // background reclaim period; 0 disables it
	Logger          *logging.Logger
	Metrics         *metrics.Metrics // nil creates a private instance
}

// DefaultConfig returns the default container settings.
func DefaultConfig() Config {
	return Config{
		Capacity:      DefaultCapacity,
		ScanThreshold: retire.DefaultThreshold,
		Retry:         retry.Unbounded(),
		Exhaustion:    ExhaustionError,
		Exit:          ExitHandOff,
	}
}

// Validate reports every invalid setting.
func (c Config) Validate() error {
	var errs []error
	if c.Capacity <= 0 {
		errs = append(errs, fmt.Errorf("capacity %d must be positive", c.Capacity))
	}
	if c.SizeHint < 0 {
		errs = append(errs, fmt.Errorf("size hint %d must not be negative", c.SizeHint))
	}
	if c.ScanThreshold <= 0 {
		errs = append(errs, fmt.Errorf("scan threshold %d must be positive", c.ScanThreshold))
	}
	if c.Retry.MaxAttempts < 0 {
		errs = append(errs, fmt.Errorf("max attempts %d must not be negative", c.Retry.MaxAttempts))
	}
	if c.ReclaimInterval < 0 {
		errs = append(errs, fmt.Errorf("reclaim interval %v must not be negative", c.ReclaimInterval))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// Option modifies a Config.
type Option func(*Config)

// WithCapacity sets the number of bank slots.
func WithCapacity(n int) Option {
	return func(c *Config) { c.Capacity = n }
}

// WithSizeHint preallocates room for n elements in every slot.
func WithSizeHint(n int) Option {
	return func(c *Config) { c.SizeHint = n }
}

// WithScanThreshold sets how many retired entries a session accumulates
// before it scans.
func WithScanThreshold(n int) Option {
	return func(c *Config) { c.ScanThreshold = n }
}

// WithRetryPolicy bounds the publish loop.
func WithRetryPolicy(p retry.Policy) Option {
	return func(c *Config) { c.Retry = p }
}

// WithExhaustionPolicy sets the empty bank behaviour.
func WithExhaustionPolicy(p ExhaustionPolicy) Option {
	return func(c *Config) { c.Exhaustion = p }
}

// WithExitPolicy sets what Session.Close does with leftover entries.
func WithExitPolicy(p ExitPolicy) Option {
	return func(c *Config) { c.Exit = p }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// WithMetrics shares an existing metrics instance. The caller keeps
// ownership and closes it.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Config) { c.Metrics = m }
}

// WithBackgroundReclaim starts a goroutine that calls Reclaim every interval.
func WithBackgroundReclaim(interval time.Duration) Option {
	return func(c *Config) { c.ReclaimInterval = interval }
}
