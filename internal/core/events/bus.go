package events

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
)

type Event interface {
	EventType() string
	EventID() string
	OccurredAt() time.Time
	Payload() interface{}
}

type BaseEvent struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) EventID() string {
	return e.ID
}

func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

func (e BaseEvent) Payload() interface{} {
	return e.Data
}

type Handler func(ctx context.Context, event Event) error

// EventBus fans events out to subscribers. Publish runs handlers on a bounded
// ants pool; PublishSync runs them inline and stops at the first failure.
type EventBus struct {
	handlers map[string][]Handler
	logger   *slog.Logger
	pool     *ants.Pool
	wg       sync.WaitGroup
	mu       sync.RWMutex
}

const DefaultPoolSize = 16

func NewEventBus(logger *slog.Logger, poolSize int) (*EventBus, error) {
	if poolSize <= 0 {
		poolSize = DefaultPoolSize
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create event worker pool: %w", err)
	}
	return &EventBus{
		handlers: make(map[string][]Handler),
		logger:   logger,
		pool:     pool,
	}, nil
}

func (eb *EventBus) Subscribe(eventType string, handler Handler) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.handlers[eventType] = append(eb.handlers[eventType], handler)
	eb.logger.Info("event handler registered",
		"event_type", eventType,
		"total_handlers", len(eb.handlers[eventType]))
}

func (eb *EventBus) handlersFor(eventType string) []Handler {
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	return append([]Handler(nil), eb.handlers[eventType]...)
}

// Publish dispatches asynchronously. Handlers get a context detached from the
// caller's cancellation so a finished HTTP request does not abort delivery.
func (eb *EventBus) Publish(ctx context.Context, event Event) error {
	handlers := eb.handlersFor(event.EventType())
	if len(handlers) == 0 {
		eb.logger.Debug("no handlers for event type", "event_type", event.EventType())
		return nil
	}

	eb.logger.Debug("publishing event",
		"event_type", event.EventType(),
		"event_id", event.EventID(),
		"handlers_count", len(handlers))

	hctx := context.WithoutCancel(ctx)
	for _, handler := range handlers {
		h := handler
		eb.wg.Add(1)
		err := eb.pool.Submit(func() {
			defer eb.wg.Done()
			if err := h(hctx, event); err != nil {
				eb.logger.Error("event handler failed",
					"event_type", event.EventType(),
					"event_id", event.EventID(),
					"error", err)
			}
		})
		if err != nil {
			eb.wg.Done()
			eb.logger.Error("failed to submit event handler to pool",
				"event_type", event.EventType(),
				"event_id", event.EventID(),
				"error", err)
			return fmt.Errorf("dispatch event %s: %w", event.EventType(), err)
		}
	}

	return nil
}

func (eb *EventBus) PublishSync(ctx context.Context, event Event) error {
	handlers := eb.handlersFor(event.EventType())
	if len(handlers) == 0 {
		eb.logger.Debug("no handlers for event type", "event_type", event.EventType())
		return nil
	}

	eb.logger.Info("publishing event synchronously",
		"event_type", event.EventType(),
		"event_id", event.EventID(),
		"handlers_count", len(handlers))

	for _, handler := range handlers {
		if err := handler(ctx, event); err != nil {
			eb.logger.Error("event handler failed",
				"event_type", event.EventType(),
				"event_id", event.EventID(),
				"error", err)
			return fmt.Errorf("handler failed for event %s: %w", event.EventType(), err)
		}
	}

	return nil
}

// Drain waits for in-flight asynchronous handlers.
func (eb *EventBus) Drain() {
	eb.wg.Wait()
}

// Shutdown drains pending handlers and releases the pool.
func (eb *EventBus) Shutdown() {
	eb.logger.Info("shutting down event bus", "running_workers", eb.pool.Running())
	eb.Drain()
	eb.pool.Release()
}
