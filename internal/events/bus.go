// Package events provides an in-process publish/subscribe bus for domain
// events, with optional persistence of every emitted event.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Event is a single domain occurrence.
type Event struct {
	Topic      string
	Payload    map[string]any
	OccurredAt time.Time
}

// Handler consumes one event. Handlers must not block for long; they run on
// the emitter's goroutine pool.
type Handler func(ctx context.Context, evt Event)

// Recorder persists emitted events for audit.
type Recorder interface {
	Record(ctx context.Context, evt Event) error
}

// Bus fans out events to subscribed handlers.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	recorder Recorder
	logger   zerolog.Logger
	wg       sync.WaitGroup
}

// NewBus constructs a bus. The recorder may be nil.
func NewBus(recorder Recorder, logger zerolog.Logger) *Bus {
	return &Bus{
		handlers: map[string][]Handler{},
		recorder: recorder,
		logger:   logger,
	}
}

// Subscribe registers a handler for a topic.
func (b *Bus) Subscribe(topic string, h Handler) {
	if b == nil || h == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[topic] = append(b.handlers[topic], h)
}

// Emit records and dispatches an event asynchronously. Emission never fails
// the calling operation; recorder errors are logged.
func (b *Bus) Emit(ctx context.Context, topic string, payload map[string]any) {
	if b == nil {
		return
	}
	evt := Event{Topic: topic, Payload: payload, OccurredAt: time.Now()}
	if b.recorder != nil {
		if err := b.recorder.Record(ctx, evt); err != nil {
			b.logger.Warn().Err(err).Str("topic", topic).Msg("event_record_failed")
		}
	}
	b.mu.RLock()
	subs := append([]Handler(nil), b.handlers[topic]...)
	b.mu.RUnlock()

	for _, h := range subs {
		b.wg.Add(1)
		go func(h Handler) {
			defer b.wg.Done()
			defer func() {
				if r := recover(); r != nil {
					b.logger.Error().Any("panic", r).Str("topic", topic).Msg("event_handler_panic")
				}
			}()
			h(context.WithoutCancel(ctx), evt)
		}(h)
	}
}

// Drain waits for all in-flight handlers to finish. Intended for shutdown and
// tests.
func (b *Bus) Drain() {
	if b == nil {
		return
	}
	b.wg.Wait()
}
