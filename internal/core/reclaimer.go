// Licensed under the MIT License. See LICENSE file in the project root for details.

package core

import (
	"sync"
	"sync/atomic"
	"time"
)

// reclaimer runs a reclamation pass on a fixed interval.
type reclaimer struct {
	interval time.Duration
	collect  func()

	started atomic.Bool
	stopped atomic.Bool
	stop    chan struct{}
	wg      sync.WaitGroup
}

func newReclaimer(interval time.Duration, collect func()) *reclaimer {
	return &reclaimer{
		interval: interval,
		collect:  collect,
		stop:     make(chan struct{}),
	}
}

// Start launches the loop. Subsequent calls do nothing.
func (r *reclaimer) Start() {
	if r.stopped.Load() || !r.started.CompareAndSwap(false, true) {
		return
	}
	r.wg.Add(1)
	go r.run()
}

// Stop ends the loop and waits for an in-flight pass to finish.
func (r *reclaimer) Stop() {
	if !r.stopped.CompareAndSwap(false, true) {
		return
	}
	close(r.stop)
	r.wg.Wait()
}

func (r *reclaimer) run() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			r.collect()
		}
	}
}
