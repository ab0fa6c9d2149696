// Package bus is the in-process event channel between cognitive components.
// Delivery is at-least-once and unordered: a publish never blocks the
// publishing cycle, and a slow subscriber never stalls forecasting. When a
// subscriber's buffer is full the delivery completes on a background
// goroutine, so ordering across events is not guaranteed.
package bus

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Topic string

const (
	TopicPrecisionProfile Topic = "precision.profile"
	TopicCycleCompleted   Topic = "cycle.completed"
	TopicBeliefArchived   Topic = "belief.archived"
)

// Event is one published message.
type Event struct {
	ID          uuid.UUID
	Topic       Topic
	Payload     any
	PublishedAt time.Time
}

type subscriber struct {
	ch     chan Event
	closed chan struct{}
}

// Bus fans events out to in-process subscribers.
type Bus struct {
	mu     sync.RWMutex
	subs   map[Topic][]*subscriber
	logger *zap.Logger
	wg     sync.WaitGroup
}

func New(logger *zap.Logger) *Bus {
	return &Bus{
		subs:   make(map[Topic][]*subscriber),
		logger: logger,
	}
}

// Subscribe registers for a topic and returns the receive channel plus a
// cancel func. The buffer bounds how far the subscriber may lag before
// deliveries spill onto background goroutines.
func (b *Bus) Subscribe(topic Topic, buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	sub := &subscriber{
		ch:     make(chan Event, buffer),
		closed: make(chan struct{}),
	}

	b.mu.Lock()
	b.subs[topic] = append(b.subs[topic], sub)
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.subs[topic]
		for i, s := range subs {
			if s == sub {
				b.subs[topic] = append(subs[:i], subs[i+1:]...)
				close(sub.closed)
				return
			}
		}
	}
	return sub.ch, cancel
}

// Publish delivers the payload to every subscriber of the topic without ever
// blocking the caller. Fast subscribers receive inline; lagging ones receive
// from a background goroutine.
func (b *Bus) Publish(topic Topic, payload any) {
	ev := Event{
		ID:          uuid.New(),
		Topic:       topic,
		Payload:     payload,
		PublishedAt: time.Now().UTC(),
	}

	b.mu.RLock()
	subs := make([]*subscriber, len(b.subs[topic]))
	copy(subs, b.subs[topic])
	b.mu.RUnlock()

	for _, sub := range subs {
		select {
		case sub.ch <- ev:
		case <-sub.closed:
		default:
			// Buffer full. Hand off so the publisher is never stalled;
			// delivery still happens unless the subscription is cancelled.
			b.wg.Add(1)
			go func(s *subscriber) {
				defer b.wg.Done()
				select {
				case s.ch <- ev:
				case <-s.closed:
				}
			}(sub)
			b.logger.Debug("slow subscriber, delivering in background",
				zap.String("topic", string(topic)),
				zap.String("event_id", ev.ID.String()))
		}
	}
}

// Drain waits for in-flight background deliveries, for orderly shutdown.
func (b *Bus) Drain() {
	b.wg.Wait()
}
