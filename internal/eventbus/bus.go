package eventbus

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Subscriber receives events published on a topic. Implementations must be
// safe to call concurrently with other subscribers' Handle calls and should
// not block for long, since Publish waits for every subscriber on a topic
// to finish (or fail) before returning.
type Subscriber interface {
	Handle(ctx context.Context, e Event) error
}

// SubscriberFunc adapts a function to the Subscriber interface.
type SubscriberFunc func(ctx context.Context, e Event) error

// Handle calls the wrapped function.
func (f SubscriberFunc) Handle(ctx context.Context, e Event) error { return f(ctx, e) }

// Bus is an in-process, topic-keyed publish/subscribe hub. The zero value
// is not usable; construct with New.
type Bus struct {
	mu     sync.RWMutex
	subs   map[string]map[int]Subscriber
	nextID int
	logger *slog.Logger
}

// New constructs an empty Bus.
func New(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default().With("component", "eventbus")
	}
	return &Bus{
		subs:   make(map[string]map[int]Subscriber),
		logger: logger,
	}
}

// Subscription identifies one Subscribe call so it can be cancelled.
type Subscription struct {
	bus   *Bus
	topic string
	id    int
}

// Unsubscribe removes the subscriber. Calling it more than once is a no-op.
// Topics are removed from the bus entirely once their last subscriber
// leaves, so subscriptions are cheap and never accumulate empty topic
// entries.
func (s *Subscription) Unsubscribe() {
	if s == nil || s.bus == nil {
		return
	}
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	subs, ok := s.bus.subs[s.topic]
	if !ok {
		return
	}
	delete(subs, s.id)
	if len(subs) == 0 {
		delete(s.bus.subs, s.topic)
	}
}

// Subscribe registers sub to receive every Event published to topic.
func (b *Bus) Subscribe(topic string, sub Subscriber) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[int]Subscriber)
	}
	id := b.nextID
	b.nextID++
	b.subs[topic][id] = sub
	return &Subscription{bus: b, topic: topic, id: id}
}

// Publish fans e out to every subscriber of e.Topic concurrently. A slow or
// failing subscriber never blocks or cancels the others: each Handle call
// runs in its own goroutine with its error captured independently: Publish
// returns only once every subscriber has finished.
func (b *Bus) Publish(ctx context.Context, e Event) {
	b.mu.RLock()
	subs := make([]Subscriber, 0, len(b.subs[e.Topic]))
	for _, s := range b.subs[e.Topic] {
		subs = append(subs, s)
	}
	b.mu.RUnlock()

	if len(subs) == 0 {
		return
	}

	var g errgroup.Group
	for _, sub := range subs {
		sub := sub
		g.Go(func() error {
			if err := sub.Handle(ctx, e); err != nil {
				b.logger.Warn("subscriber handler failed",
					"topic", e.Topic,
					"type", e.Type,
					"error", err,
				)
			}
			return nil
		})
	}
	_ = g.Wait()
}

// SubscriberCount returns the number of live subscribers on topic, mostly
// useful for tests and diagnostics.
func (b *Bus) SubscriberCount(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}
