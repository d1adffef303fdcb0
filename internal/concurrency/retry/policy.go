// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package retry bounds compare-and-swap retry loops.
//
// The zero Policy retries forever without pausing, which keeps writers
// lock-free. A bounded policy trades that for a predictable worst case: it
// pauses with exponential backoff between attempts and gives up after
// MaxAttempts.
//
// # Usage Examples
//
//	p := retry.Policy{MaxAttempts: 64, BaseDelay: time.Microsecond, MaxDelay: time.Millisecond}
//
//	a := p.Start()
//	for !tryPublish() {
//	    if err := a.Next(); err != nil {
//	        return err // retry.ErrExhausted
//	    }
//	}
package retry

import (
	"errors"
	"runtime"
	"time"
)

// ErrExhausted is returned by Next when the policy allows no more attempts.
var ErrExhausted = errors.New("retry attempts exhausted")

// Policy configures a retry loop.
type Policy struct {
	MaxAttempts int           // 0 means unbounded
	BaseDelay   time.Duration // first pause; 0 yields the processor instead of sleeping
	MaxDelay    time.Duration // cap on the pause; 0 means no cap
}

// Unbounded returns the default policy.
func Unbounded() Policy {
	return Policy{}
}

// Bounded reports whether the policy can give up.
func (p Policy) Bounded() bool {
	return p.MaxAttempts > 0
}

// Start begins a retry loop.
func (p Policy) Start() *Attempt {
	return &Attempt{policy: p, delay: p.BaseDelay}
}

// Attempt tracks one retry loop.
type Attempt struct {
	policy Policy
	n      int
	delay  time.Duration
}

// Count returns the number of retries so far.
func (a *Attempt) Count() int {
	return a.n
}

// Next records a failed attempt, pauses, and reports whether another is allowed.
func (a *Attempt) Next() error {
	a.n++
	if a.policy.MaxAttempts > 0 && a.n >= a.policy.MaxAttempts {
		return ErrExhausted
	}
	if !a.policy.Bounded() {
		return nil
	}

	if a.delay <= 0 {
		runtime.Gosched()
		return nil
	}
	time.Sleep(a.delay)
	a.delay *= 2
	if a.policy.MaxDelay > 0 && a.delay > a.policy.MaxDelay {
		a.delay = a.policy.MaxDelay
	}
	return nil
}
