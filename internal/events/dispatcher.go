package events

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Handler processes events delivered in-process. Errors are logged by the
// dispatcher and never propagate to the publisher.
type Handler func(ctx context.Context, p Payload) error

// Dispatcher is the in-process fan-out half of the bus. Handlers for a given
// event type run synchronously in registration order; a failing or panicking
// handler never prevents the remaining handlers from running.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	logger   *zap.Logger
}

func NewDispatcher(logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		handlers: make(map[string][]Handler),
		logger:   logger,
	}
}

// On registers an additional handler for the event type. Registration has no
// side effect on any broker subscription.
func (d *Dispatcher) On(eventType string, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[eventType] = append(d.handlers[eventType], h)
}

// Dispatch invokes every registered handler for the payload's event type.
func (d *Dispatcher) Dispatch(ctx context.Context, p Payload) {
	d.mu.RLock()
	handlers := make([]Handler, len(d.handlers[p.EventType]))
	copy(handlers, d.handlers[p.EventType])
	d.mu.RUnlock()

	for i, h := range handlers {
		d.invoke(ctx, p, i, h)
	}
}

func (d *Dispatcher) invoke(ctx context.Context, p Payload, idx int, h Handler) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("event handler panicked",
				zap.String("event_type", p.EventType),
				zap.Int("handler_index", idx),
				zap.Any("panic", r))
		}
	}()

	if err := h(ctx, p); err != nil {
		d.logger.Error("event handler failed",
			zap.String("event_type", p.EventType),
			zap.String("correlation_id", p.CorrelationID),
			zap.Int("handler_index", idx),
			zap.Error(err))
	}
}
