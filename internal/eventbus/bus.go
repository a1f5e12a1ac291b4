// Package eventbus is an in-memory, asynchronous event bus. Events go through
// a buffered channel and are dispatched to every listener by a worker pool.
package eventbus

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	defaultWorkers    = 3
	defaultBufferSize = 100
)

// Publisher is the write side of the bus. Components that only emit events
// depend on this rather than on EventBus.
type Publisher interface {
	Publish(eventType string, payload map[string]string)
}

// EventBus publishes events and manages subscribers.
type EventBus interface {
	Publisher

	// Subscribe registers a listener called for every published event. It
	// must be called before the first Publish.
	Subscribe(listener Listener)

	// Close stops accepting events and waits for pending ones to be handled.
	Close()
}

// Option configures the bus.
type Option func(*inMemoryBus)

// WithLogger sets the logger used for dropped events and listener panics.
func WithLogger(l *slog.Logger) Option {
	return func(b *inMemoryBus) { b.logger = l }
}

// WithBufferSize sets the channel capacity.
func WithBufferSize(n int) Option {
	return func(b *inMemoryBus) {
		if n > 0 {
			b.size = n
		}
	}
}

type inMemoryBus struct {
	ch        chan Event
	listeners []Listener
	mu        sync.RWMutex
	wg        sync.WaitGroup
	workers   int
	size      int
	logger    *slog.Logger

	closeOnce sync.Once
	closed    chan struct{}
}

// New creates a bus with the given number of workers. workers <= 0 means
// defaultWorkers.
func New(workers int, opts ...Option) EventBus {
	if workers <= 0 {
		workers = defaultWorkers
	}
	b := &inMemoryBus{
		workers: workers,
		size:    defaultBufferSize,
		logger:  slog.Default(),
		closed:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.ch = make(chan Event, b.size)
	b.startWorkers()
	return b
}

func (b *inMemoryBus) startWorkers() {
	for i := 0; i < b.workers; i++ {
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			for e := range b.ch {
				b.dispatch(e)
			}
		}()
	}
}

// dispatch calls every listener, recovering from panics so one bad listener
// cannot starve the others.
func (b *inMemoryBus) dispatch(e Event) {
	b.mu.RLock()
	listeners := make([]Listener, len(b.listeners))
	copy(listeners, b.listeners)
	b.mu.RUnlock()

	for _, l := range listeners {
		func() {
			defer func() {
				if r := recover(); r != nil {
					b.logger.Error("eventbus listener panicked",
						slog.String("event_type", e.Type),
						slog.Any("panic", r),
					)
				}
			}()
			l(e)
		}()
	}
}

// Publish enqueues an event. It never blocks; when the buffer is full or the
// bus is closed the event is dropped.
func (b *inMemoryBus) Publish(eventType string, payload map[string]string) {
	e := Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now(),
		Payload:   payload,
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	select {
	case <-b.closed:
		b.logger.Warn("eventbus closed, dropping event", slog.String("event_type", eventType))
		return
	default:
	}

	select {
	case b.ch <- e:
	default:
		b.logger.Warn("eventbus buffer full, dropping event", slog.String("event_type", eventType))
	}
}

func (b *inMemoryBus) Subscribe(listener Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = append(b.listeners, listener)
}

// Close is safe to call more than once.
func (b *inMemoryBus) Close() {
	b.closeOnce.Do(func() {
		b.mu.Lock()
		close(b.closed)
		close(b.ch)
		b.mu.Unlock()
		b.wg.Wait()
	})
}
