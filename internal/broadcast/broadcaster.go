package broadcast

import (
	"log"
	"sync"

	"github.com/google/uuid"
	"github.com/iago/ai-webhook-back/internal/domain"
)

const (
	// DefaultHistoryCap bounds the replay backlog sent to late-joining
	// clients. Oldest events are evicted first.
	DefaultHistoryCap = 20

	defaultSubscriberBuffer = 64
)

// Subscriber is one connected streaming client. Events arrive on C in the
// exact order Publish was called, starting with the history snapshot taken
// at subscription time.
type Subscriber struct {
	ID string
	C  chan domain.ResultEvent
}

// Broadcaster owns the client registry and the bounded event history. Both
// are mutated only under its mutex, so Publish, Subscribe and Unsubscribe
// are serialized relative to each other: a subscriber receives either the
// full snapshot before a new event or the new event on its channel, never a
// duplicate and never a gap.
type Broadcaster struct {
	mu          sync.Mutex
	subscribers map[string]*Subscriber
	history     []domain.ResultEvent
	historyCap  int
	buffer      int
	logger      *log.Logger
}

type Config struct {
	HistoryCap       int
	SubscriberBuffer int
	Logger           *log.Logger
}

func New(config Config) *Broadcaster {
	if config.HistoryCap <= 0 {
		config.HistoryCap = DefaultHistoryCap
	}
	if config.SubscriberBuffer <= 0 {
		config.SubscriberBuffer = defaultSubscriberBuffer
	}
	return &Broadcaster{
		subscribers: make(map[string]*Subscriber),
		history:     make([]domain.ResultEvent, 0, config.HistoryCap),
		historyCap:  config.HistoryCap,
		buffer:      config.SubscriberBuffer,
		logger:      config.Logger,
	}
}

// Subscribe registers a new client and preloads its channel with the full
// current history, oldest first. The snapshot and the registration happen
// under the same lock as Publish, so no event can slip between them.
func (b *Broadcaster) Subscribe() *Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	subscriber := &Subscriber{
		ID: uuid.NewString(),
		C:  make(chan domain.ResultEvent, b.historyCap+b.buffer),
	}
	for _, event := range b.history {
		subscriber.C <- event
	}
	b.subscribers[subscriber.ID] = subscriber
	return subscriber
}

// Unsubscribe removes a client. It is idempotent; removing an already
// absent subscriber is a no-op.
func (b *Broadcaster) Unsubscribe(subscriber *Subscriber) {
	if subscriber == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dropLocked(subscriber.ID)
}

// Publish appends the event to history, evicting the oldest entry at
// capacity, then delivers it to every registered client. A client whose
// buffer is full is treated as gone: it is dropped and its channel closed,
// without delaying or failing delivery to the others.
func (b *Broadcaster) Publish(event domain.ResultEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.history) >= b.historyCap {
		b.history = append(b.history[1:], event)
	} else {
		b.history = append(b.history, event)
	}

	for id, subscriber := range b.subscribers {
		select {
		case subscriber.C <- event:
		default:
			b.dropLocked(id)
			if b.logger != nil {
				b.logger.Printf("dropped unresponsive subscriber id=%s", id)
			}
		}
	}
}

// History returns a copy of the buffered events in publish order.
func (b *Broadcaster) History() []domain.ResultEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]domain.ResultEvent(nil), b.history...)
}

// SubscriberCount reports the number of currently registered clients.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers)
}

func (b *Broadcaster) dropLocked(id string) {
	subscriber, ok := b.subscribers[id]
	if !ok {
		return
	}
	delete(b.subscribers, id)
	close(subscriber.C)
}
