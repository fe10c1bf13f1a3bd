// Package events provides a lightweight pub/sub event bus for session
// observability. Metrics, tracing and results storage subscribe to it so
// the session core never depends on them directly.
package events

import (
	"sync"
	"sync/atomic"

	"github.com/glosings0n/Vut-Elimu/logger"
)

// DefaultBufferSize is the number of events queued before Publish drops.
const DefaultBufferSize = 256

// Listener is a function that handles events.
type Listener func(*Event)

// Bus delivers events to listeners on a single goroutine, in publish order.
type Bus struct {
	mu              sync.RWMutex
	listeners       map[EventType][]Listener
	globalListeners []Listener

	queue   chan *Event
	closed  bool
	dropped atomic.Uint64
	wg      sync.WaitGroup
}

// NewBus creates a bus and starts its delivery goroutine.
func NewBus() *Bus {
	return NewBusWithBuffer(DefaultBufferSize)
}

// NewBusWithBuffer creates a bus with a custom queue size.
func NewBusWithBuffer(size int) *Bus {
	if size <= 0 {
		size = DefaultBufferSize
	}
	b := &Bus{
		listeners: make(map[EventType][]Listener),
		queue:     make(chan *Event, size),
	}
	b.wg.Add(1)
	go b.run()
	return b
}

// Subscribe registers a listener for a specific event type.
func (b *Bus) Subscribe(eventType EventType, listener Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners[eventType] = append(b.listeners[eventType], listener)
}

// SubscribeAll registers a listener for all event types.
func (b *Bus) SubscribeAll(listener Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.globalListeners = append(b.globalListeners, listener)
}

// Publish queues an event without blocking. Events published after Close or
// while the queue is full are dropped.
func (b *Bus) Publish(event *Event) {
	if b == nil || event == nil {
		return
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	select {
	case b.queue <- event:
	default:
		b.dropped.Add(1)
		logger.Warn("event bus full, dropping event", "type", string(event.Type))
	}
}

// Close stops accepting events and waits for queued ones to be delivered.
// It is idempotent.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	close(b.queue)
	b.mu.Unlock()
	b.wg.Wait()
}

// Dropped returns the number of events dropped because the queue was full.
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}

func (b *Bus) run() {
	defer b.wg.Done()
	for event := range b.queue {
		b.mu.RLock()
		specific := append([]Listener(nil), b.listeners[event.Type]...)
		global := append([]Listener(nil), b.globalListeners...)
		b.mu.RUnlock()

		for _, listener := range specific {
			safeInvoke(listener, event)
		}
		for _, listener := range global {
			safeInvoke(listener, event)
		}
	}
}

func safeInvoke(listener Listener, event *Event) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("event listener panicked", "type", string(event.Type), "panic", r)
		}
	}()
	listener(event)
}
