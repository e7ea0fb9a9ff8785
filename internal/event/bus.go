package event

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

const subscriberBuffer = 64

// Subscription delivers events in publish order. Close is idempotent.
type Subscription struct {
	ID string
	C  <-chan Event

	ch    chan Event
	close func()
}

func (s *Subscription) Close() {
	s.close()
}

// InMemoryBus fans session events out to subscribers. A subscriber that
// falls behind loses its oldest queued events, never the newest one, so every
// listener ends on the latest session state.
type InMemoryBus struct {
	mu          sync.Mutex
	seq         uint64
	subscribers map[string]*Subscription
	logger      *slog.Logger
}

func NewBus(logger *slog.Logger) *InMemoryBus {
	if logger == nil {
		logger = slog.Default()
	}

	return &InMemoryBus{
		subscribers: make(map[string]*Subscription),
		logger:      logger.With("component", "event_bus"),
	}
}

func (b *InMemoryBus) Publish(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.seq++
	e.Seq = b.seq

	for id, sub := range b.subscribers {
		select {
		case sub.ch <- e:
			continue
		default:
		}

		// Only Publish sends and it holds mu, so one receive frees a slot.
		select {
		case stale := <-sub.ch:
			b.logger.Warn("subscriber behind, dropping stale event",
				"subscriber", id, "seq", stale.Seq, "type", string(stale.Type))
		default:
		}
		sub.ch <- e
	}
}

func (b *InMemoryBus) Subscribe() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := uuid.NewString()
	ch := make(chan Event, subscriberBuffer)
	sub := &Subscription{ID: id, C: ch, ch: ch}

	var once sync.Once
	sub.close = func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subscribers, id)
			close(ch)
		})
	}
	b.subscribers[id] = sub

	return sub
}
