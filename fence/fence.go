// Package fence replaces the native reference's callback-cookie fence
// notification (a C function pointer plus an opaque void* registered per
// wait) with a Go channel fan-out: QueueSubmit publishes a Signal for
// every fence it resolves, and anything that cares — a WaitForFences
// poller, a metrics sink, a future vsock bridge — subscribes for its own
// channel (SPEC_FULL.md §4.4, §9).
package fence

import "sync"

// Signal reports that a fence owned by a guest reached the signaled
// state.
type Signal struct {
	RingIdx uint32 // which ring's handler table raised this, for multi-ring hosts
	FenceID uint64 // the guest id of the signaled fence
}

// Publisher fans a Signal out to every live Subscriber. The zero value
// is not usable; construct with NewPublisher.
type Publisher struct {
	mu   sync.Mutex
	subs map[*Subscriber]struct{}
}

// NewPublisher returns a ready Publisher.
func NewPublisher() *Publisher {
	return &Publisher{subs: make(map[*Subscriber]struct{})}
}

// Subscribe registers a new Subscriber with the given channel buffer
// depth. Callers must call Close when done to avoid leaking the
// registration.
func (p *Publisher) Subscribe(buffer int) *Subscriber {
	s := &Subscriber{ch: make(chan Signal, buffer), p: p}
	p.mu.Lock()
	p.subs[s] = struct{}{}
	p.mu.Unlock()
	return s
}

// Publish fans s out to every live subscriber. A subscriber whose
// channel is full drops the signal rather than blocking the dispatch
// path; WaitForFences handlers poll the backend directly, so a dropped
// notification only delays an observer, it never loses correctness.
func (p *Publisher) Publish(s Signal) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for sub := range p.subs {
		select {
		case sub.ch <- s:
		default:
		}
	}
}

func (p *Publisher) remove(s *Subscriber) {
	p.mu.Lock()
	delete(p.subs, s)
	p.mu.Unlock()
}

// Subscriber is a single observer's view of fence signals.
type Subscriber struct {
	ch chan Signal
	p  *Publisher
}

// C returns the channel Signals arrive on.
func (s *Subscriber) C() <-chan Signal { return s.ch }

// Close unregisters the subscriber from its Publisher.
func (s *Subscriber) Close() {
	s.p.remove(s)
}
