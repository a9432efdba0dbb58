package prefstore

import (
	"context"
	"sync"
	"sync/atomic"
)

// notifier fans change identities out to the subscribers registered for
// them.
type notifier struct {
	mu   sync.Mutex
	subs map[string]map[*subscriber]struct{}
}

func newNotifier() *notifier {
	return &notifier{subs: make(map[string]map[*subscriber]struct{})}
}

func (n *notifier) add(id string, s *subscriber) {
	n.mu.Lock()
	defer n.mu.Unlock()
	set, ok := n.subs[id]
	if !ok {
		set = make(map[*subscriber]struct{})
		n.subs[id] = set
	}
	set[s] = struct{}{}
}

func (n *notifier) remove(id string, s *subscriber) {
	n.mu.Lock()
	defer n.mu.Unlock()
	set := n.subs[id]
	delete(set, s)
	if len(set) == 0 {
		delete(n.subs, id)
	}
}

// publish holds n.mu for the whole fan-out so concurrent publishers are
// observed in the same order by every subscriber.
func (n *notifier) publish(id string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for s := range n.subs[id] {
		s.notify()
	}
}

func (n *notifier) count(id string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.subs[id])
}

// subscriber counts pending notifications. notify never blocks.
type subscriber struct {
	mu        sync.Mutex
	pending   int
	cancelled bool
	signal    chan struct{}
	done      chan struct{}
}

func newSubscriber() *subscriber {
	return &subscriber{
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

func (s *subscriber) notify() {
	s.mu.Lock()
	if s.cancelled {
		s.mu.Unlock()
		return
	}
	s.pending++
	s.mu.Unlock()
	select {
	case s.signal <- struct{}{}:
	default:
	}
}

// wait consumes one pending notification, blocking until one arrives. It
// returns false once the subscriber is cancelled or ctx is done.
func (s *subscriber) wait(ctx context.Context) bool {
	for {
		s.mu.Lock()
		if s.cancelled {
			s.mu.Unlock()
			return false
		}
		if s.pending > 0 {
			s.pending--
			s.mu.Unlock()
			return true
		}
		s.mu.Unlock()

		select {
		case <-s.signal:
		case <-s.done:
			return false
		case <-ctx.Done():
			return false
		}
	}
}

func (s *subscriber) isCancelled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelled
}

// cancel reports whether this call performed the cancellation.
func (s *subscriber) cancel() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelled {
		return false
	}
	s.cancelled = true
	s.pending = 0
	close(s.done)
	return true
}

// Subscription observes one binding. It is Active until Cancel is called
// or the context given to Subscribe is done; Cancelled is terminal.
//
// Next is meant for a single consumer goroutine, which is where values are
// delivered in notification order.
type Subscription[T any] struct {
	binding *Binding[T]
	s       *subscriber
	started atomic.Bool
	stop    func() bool
}

// Next returns the current value on the first call, then blocks until the
// binding changes and returns the new value. It returns false when the
// subscription is cancelled or ctx is done.
func (sub *Subscription[T]) Next(ctx context.Context) (T, bool) {
	var zero T
	if ctx.Err() != nil {
		return zero, false
	}
	if sub.started.CompareAndSwap(false, true) {
		if sub.s.isCancelled() {
			return zero, false
		}
	} else if !sub.s.wait(ctx) {
		return zero, false
	}
	v := sub.binding.Get(ctx)
	if sub.s.isCancelled() {
		return zero, false
	}
	return v, true
}

// Cancel stops the subscription. No value is returned by Next after Cancel
// returns. Calling Cancel again is a no-op.
func (sub *Subscription[T]) Cancel() {
	if sub.stop != nil {
		sub.stop()
	}
	sub.cancel()
}

// cancel is what the context hook runs; it must not touch sub.stop.
func (sub *Subscription[T]) cancel() {
	if sub.s.cancel() {
		sub.binding.prefs.notifier.remove(sub.binding.key, sub.s)
	}
}

// Done is closed when the subscription is cancelled.
func (sub *Subscription[T]) Done() <-chan struct{} {
	return sub.s.done
}

// Active reports whether the subscription still receives notifications.
func (sub *Subscription[T]) Active() bool {
	return !sub.s.isCancelled()
}
