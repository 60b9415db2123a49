package events

import (
	"context"

	"go.uber.org/zap"

	"github.com/quantarc/riskguard/pkg/metrics"
)

// AuditSink is the append-only audit store consumed by PublishAndLog. Append
// must be transactional: a returned error means nothing was persisted.
type AuditSink interface {
	Append(ctx context.Context, p Payload) error
}

// Bus composes the broker (cross-process fan-out, best-effort) with the local
// dispatcher (in-process fan-out, unconditional). A downed broker degrades
// cross-process visibility but never blocks the trading cycle; the audit path
// in PublishAndLog is the one failure mode surfaced to callers.
type Bus struct {
	broker     Broker
	dispatcher *Dispatcher
	logger     *zap.Logger
}

// NewBus creates a bus. broker may be nil for processes that only need local
// dispatch (tests, single-process deployments).
func NewBus(broker Broker, logger *zap.Logger) *Bus {
	return &Bus{
		broker:     broker,
		dispatcher: NewDispatcher(logger),
		logger:     logger,
	}
}

// Connect establishes the broker connection. Idempotent.
func (b *Bus) Connect(ctx context.Context) error {
	if b.broker == nil {
		return nil
	}
	return b.broker.Connect(ctx)
}

// Disconnect tears down the broker connection. Never raises, even if Connect
// was never called.
func (b *Bus) Disconnect() {
	if b.broker == nil {
		return
	}
	if err := b.broker.Close(); err != nil {
		b.logger.Warn("broker close failed", zap.Error(err))
	}
}

// On registers an in-process handler for the event type. Handlers run in
// registration order on every matching publish and broker delivery.
func (b *Bus) On(eventType string, h Handler) {
	b.dispatcher.On(eventType, h)
}

// Publish constructs an envelope, writes it to the broker channel best-effort,
// then invokes local handlers. Broker failures are logged and counted, never
// returned; the only error is an invalid envelope (empty event type).
func (b *Bus) Publish(ctx context.Context, eventType string, data map[string]any, source string, severity Severity) error {
	p, err := NewPayload(eventType, source, data, severity)
	if err != nil {
		return err
	}
	b.PublishPayload(ctx, p)
	return nil
}

// PublishPayload delivers an already-constructed envelope, preserving its
// correlation id. Used when propagating an event chain across components.
func (b *Bus) PublishPayload(ctx context.Context, p Payload) {
	if b.broker != nil {
		raw, err := p.Encode()
		if err == nil {
			err = b.broker.Publish(ctx, raw)
		}
		if err != nil {
			metrics.BrokerPublishFailures.Inc()
			b.logger.Warn("broker publish failed, local handlers still run",
				zap.String("event_type", p.EventType),
				zap.String("correlation_id", p.CorrelationID),
				zap.Error(err))
		}
	}

	metrics.EventsPublished.WithLabelValues(string(p.Severity)).Inc()
	b.dispatcher.Dispatch(ctx, p)
}

// PublishAndLog behaves like Publish and additionally persists the event to
// the audit sink. Local handlers have already run by the time the sink is
// written; a persistence failure is rolled back by the sink and returned, so
// callers must not consider the event logged when this errors.
func (b *Bus) PublishAndLog(ctx context.Context, eventType string, data map[string]any, source string, severity Severity, sink AuditSink) error {
	p, err := NewPayload(eventType, source, data, severity)
	if err != nil {
		return err
	}
	b.PublishPayload(ctx, p)

	if err := sink.Append(ctx, p); err != nil {
		metrics.AuditWriteFailures.Inc()
		b.logger.Error("audit append failed",
			zap.String("event_type", p.EventType),
			zap.String("correlation_id", p.CorrelationID),
			zap.Error(err))
		return err
	}
	return nil
}

// Listen runs the broker subscription loop until ctx is cancelled, dispatching
// each decoded message to local handlers. Undecodable messages are logged and
// skipped. Listen is not on the trade-decision path and must never be awaited
// by it.
func (b *Bus) Listen(ctx context.Context) error {
	if b.broker == nil {
		<-ctx.Done()
		return ctx.Err()
	}

	msgs, err := b.broker.Subscribe(ctx)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case raw, ok := <-msgs:
			if !ok {
				return nil
			}
			p, err := DecodePayload(raw)
			if err != nil {
				b.logger.Warn("skipping undecodable broker message", zap.Error(err))
				continue
			}
			b.dispatcher.Dispatch(ctx, p)
		}
	}
}
