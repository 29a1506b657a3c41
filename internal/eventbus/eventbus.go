package eventbus

import (
	"sync"
	"time"
)

// EventType identifies a cross-service event
type EventType string

const (
	AuthorDeleted     EventType = "AuthorDeleted"
	BooksDeleted      EventType = "BooksDeleted"
	DownloadGrabbed   EventType = "DownloadGrabbed"
	DownloadCompleted EventType = "DownloadCompleted"
	DownloadFailed    EventType = "DownloadFailed"
	DownloadIgnored   EventType = "DownloadIgnored"
	TrackedRefreshed  EventType = "TrackedRefreshed"
	PendingUpdated    EventType = "PendingUpdated"
)

// Event carries the identity of what changed. Durable state lives in the
// history and blocklist ledgers; events only notify.
type Event struct {
	Type       EventType
	AuthorID   uint64
	BookIDs    []uint64
	DownloadID string
	Data       map[string]string
	Time       time.Time
}

// Publisher is the capability services depend on. The concrete bus can be
// swapped for a recording fake in tests.
type Publisher interface {
	Publish(event Event)
	Subscribe(eventType EventType, handler func(Event))
}

var _ Publisher = (*Bus)(nil)

// Bus is a synchronous in-process event bus. Handlers run on the publisher's
// goroutine: decision batches are single-threaded, and subscribers must
// observe ledger writes in publish order.
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]func(Event)
}

func New() *Bus {
	return &Bus{
		handlers: make(map[EventType][]func(Event)),
	}
}

func (b *Bus) Publish(event Event) {
	if event.Time.IsZero() {
		event.Time = time.Now()
	}

	b.mu.RLock()
	handlers := make([]func(Event), len(b.handlers[event.Type]))
	copy(handlers, b.handlers[event.Type])
	b.mu.RUnlock()

	for _, handler := range handlers {
		handler(event)
	}
}

func (b *Bus) Subscribe(eventType EventType, handler func(Event)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
}
