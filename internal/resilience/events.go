package resilience

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vietddude/absenta/internal/core/domain"
)

// Handler receives published events. Handlers run synchronously on the
// publishing goroutine and must not block.
type Handler func(domain.Event)

// RetryQueued is the payload of EventRetryQueued.
type RetryQueued struct {
	ID         string
	Key        string
	Attempts   int
	Err        error
	QueueDepth int
}

// RetrySucceeded is the payload of EventRetrySuccess.
type RetrySucceeded struct {
	ID           string
	Key          string
	AttemptCount int
	EnqueuedAt   time.Time
}

// RetryFailed is the payload of EventRetryFailed. The operation has been
// dropped from the queue.
type RetryFailed struct {
	ID           string
	Key          string
	AttemptCount int
	Err          error
}

// DataChanged is the payload of EventOfflineDataStored and EventOfflineDataCleared.
type DataChanged struct {
	Key string
	At  time.Time
}

// Performance is the payload of EventPerformanceMeasured and EventPerformanceError.
type Performance struct {
	Name     string
	Duration time.Duration
	Err      error
}

type eventBus struct {
	mu       sync.RWMutex
	nextID   int
	handlers map[domain.EventType]map[int]Handler
	log      *slog.Logger
}

func newEventBus(log *slog.Logger) *eventBus {
	return &eventBus{
		handlers: make(map[domain.EventType]map[int]Handler),
		log:      log,
	}
}

func (b *eventBus) subscribe(t domain.EventType, h Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.handlers[t] == nil {
		b.handlers[t] = make(map[int]Handler)
	}
	id := b.nextID
	b.nextID++
	b.handlers[t][id] = h

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.handlers[t], id)
			b.mu.Unlock()
		})
	}
}

func (b *eventBus) emit(t domain.EventType, payload any) {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.handlers[t]))
	for _, h := range b.handlers[t] {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	if len(handlers) == 0 {
		return
	}

	event := domain.Event{Type: t, EmittedAt: time.Now(), Payload: payload}
	for _, h := range handlers {
		b.dispatch(h, event)
	}
}

func (b *eventBus) dispatch(h Handler, event domain.Event) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("Event handler panicked", "event", event.Type, "panic", fmt.Sprint(r))
		}
	}()
	h(event)
}

// On subscribes fn to events of type t whose payload is a P. Events with a
// different payload type are ignored.
func On[P any](h *Helper, t domain.EventType, fn func(P)) (unsubscribe func()) {
	return h.Subscribe(t, func(e domain.Event) {
		if p, ok := e.Payload.(P); ok {
			fn(p)
		}
	})
}
