package ring

import (
	"sync"
	"sync/atomic"
	"time"
)

// waitTimeout bounds how long the threaded consumer sleeps on the
// condition variable before re-checking availability (SPEC_FULL.md §5).
const waitTimeout = time.Second

// Start begins consuming the ring. In Threaded mode it spawns a
// dedicated goroutine that loops: check availability, and if empty,
// wait on the ring's condition variable (re-checking under the lock)
// with a 1s timeout; otherwise invoke process. process is expected to be
// dispatch.Decoder.DecodeAll bound to this ring. In both modes Start
// marks the ring running and sets its status word to StatusRunning. In
// Polled mode it does nothing more and never calls process: the caller
// drives process itself whenever the outer scheduler's virtio-gpu
// notification fires (SPEC_FULL.md §5). Grounded
// on the teacher's Server.loop (fuse/server.go): check, timed wait,
// process, repeat, with a running flag and a WaitGroup join on Stop.
func (r *Ring) Start(process func()) {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return
	}
	r.running = true
	r.mu.Unlock()

	r.setStatus(StatusRunning)

	if r.mode != Threaded {
		return
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		r.loop(process)
	}()
	r.loopWG = &wg
}

func (r *Ring) loop(process func()) {
	for {
		r.mu.Lock()
		for r.running && r.Available() == 0 {
			atomic.AddUint64(&r.stats.Waits, 1)
			r.condWaitTimeout(waitTimeout)
		}
		running := r.running
		r.mu.Unlock()

		if !running || r.Status() == StatusError {
			return
		}
		process()
	}
}

// condWaitTimeout waits on r.cond for at most d, or until Notify/Stop
// signals it. Must be called with r.mu held; Wait releases and
// reacquires it internally.
func (r *Ring) condWaitTimeout(d time.Duration) {
	timer := time.AfterFunc(d, func() {
		r.mu.Lock()
		r.cond.Broadcast()
		r.mu.Unlock()
	})
	defer timer.Stop()
	r.cond.Wait()
}

// Notify wakes a blocked threaded consumer, or in Polled mode records an
// edge-triggered flag the outer scheduler can consume via
// ConsumeNotification (SPEC_FULL.md §4.1, §5).
func (r *Ring) Notify() {
	if r.mode == Threaded {
		r.mu.Lock()
		r.cond.Broadcast()
		r.mu.Unlock()
		return
	}
	atomic.StoreInt32(&r.notified, 1)
}

// ConsumeNotification reports and clears the Polled-mode edge-triggered
// notification flag. No-op (always false) in Threaded mode.
func (r *Ring) ConsumeNotification() bool {
	return atomic.SwapInt32(&r.notified, 0) == 1
}

// Stop requests the consumer to exit at the next wait-wake boundary and
// blocks until it has quiesced. It is idempotent (SPEC_FULL.md §4.1,
// §5.4).
func (r *Ring) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	r.cond.Broadcast()
	wg := r.loopWG
	r.mu.Unlock()

	if wg != nil {
		wg.Wait()
	}
}
