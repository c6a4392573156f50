package eventbus

import (
	"sync"

	"commsync/internal/domain/event"
	"commsync/pkg/logger"
)

// subscriberBuffer bounds the per-subscriber queue. Delivery is best-effort:
// a subscriber that cannot drain its channel loses events and is expected to
// reconcile with a pull refresh.
const subscriberBuffer = 64

// Predicate decides, per event, whether a subscriber may receive it. It runs
// on the publisher's goroutine and must not block.
type Predicate func(ev event.Event) bool

type Subscription struct {
	ch     chan event.Event
	topics map[string]struct{}
	pred   Predicate
	bus    *Bus

	mu     sync.Mutex
	closed bool
}

// Events is the live stream for this subscription. The channel is closed
// after Cancel.
func (s *Subscription) Events() <-chan event.Event {
	return s.ch
}

func (s *Subscription) Cancel() {
	s.bus.remove(s)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}

func (s *Subscription) matches(ev event.Event) bool {
	if _, ok := s.topics[ev.Topic()]; !ok {
		return false
	}
	if s.pred != nil && !s.pred(ev) {
		return false
	}
	return true
}

func (s *Subscription) deliver(ev event.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- ev:
	default:
		logger.Warn("eventbus: dropping %s event for slow subscriber", ev.Topic())
	}
}

// Bus is an in-process topic-addressed publish/subscribe broker. Publish is
// fire-and-forget; subscribers get an independent, cancellable stream.
type Bus struct {
	mu   sync.RWMutex
	subs map[*Subscription]struct{}
}

func New() *Bus {
	return &Bus{
		subs: make(map[*Subscription]struct{}),
	}
}

// Subscribe attaches a live stream for the given topics, optionally filtered
// by pred. The caller owns the returned subscription and must Cancel it.
func (b *Bus) Subscribe(topics []string, pred Predicate) *Subscription {
	sub := &Subscription{
		ch:     make(chan event.Event, subscriberBuffer),
		topics: make(map[string]struct{}, len(topics)),
		pred:   pred,
		bus:    b,
	}
	for _, t := range topics {
		sub.topics[t] = struct{}{}
	}

	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	return sub
}

// Publish delivers ev to every matching subscriber. It never blocks the
// publisher; events to a full subscriber queue are dropped.
func (b *Bus) Publish(ev event.Event) {
	b.mu.RLock()
	targets := make([]*Subscription, 0, len(b.subs))
	for sub := range b.subs {
		if sub.matches(ev) {
			targets = append(targets, sub)
		}
	}
	b.mu.RUnlock()

	for _, sub := range targets {
		sub.deliver(ev)
	}
}

func (b *Bus) remove(sub *Subscription) {
	b.mu.Lock()
	delete(b.subs, sub)
	b.mu.Unlock()
}
