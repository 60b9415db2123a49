// Package events provides the event envelope, the broker channel transports,
// and the in-process dispatch that together distribute trade, regime and risk
// state changes across the API, engine and bridge processes.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Severity classifies events for routing and audit retention.
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityError    Severity = "ERROR"
	SeverityCritical Severity = "CRITICAL"
)

// Event type constants for cross-process coordination. These are wire values
// shared with every process on the broker channel.
const (
	EventKillSwitchTriggered = "KILL_SWITCH_TRIGGERED"
	EventTradeOpened         = "TRADE_OPENED"
	EventTradeClosed         = "TRADE_CLOSED"
	EventRegimeChanged       = "REGIME_CHANGED"
	EventRiskLimitBreached   = "RISK_LIMIT_BREACHED"
	EventDailyLimitHit       = "DAILY_LIMIT_HIT"
)

// Payload is the immutable event envelope. Timestamp and CorrelationID are set
// at construction; publishers never supply them except when explicitly
// propagating an existing correlation id via WithCorrelationID.
type Payload struct {
	EventType     string         `json:"event_type"`
	Source        string         `json:"source"`
	Data          map[string]any `json:"data"`
	Timestamp     time.Time      `json:"timestamp"`
	CorrelationID string         `json:"correlation_id"`
	Severity      Severity       `json:"severity"`
}

// NewPayload constructs an envelope with a fresh correlation id and a UTC
// creation timestamp. An empty event type is rejected.
func NewPayload(eventType, source string, data map[string]any, severity Severity) (Payload, error) {
	if eventType == "" {
		return Payload{}, fmt.Errorf("events: event type must not be empty")
	}
	if severity == "" {
		severity = SeverityInfo
	}
	return Payload{
		EventType:     eventType,
		Source:        source,
		Data:          data,
		Timestamp:     time.Now().UTC(),
		CorrelationID: uuid.NewString(),
		Severity:      severity,
	}, nil
}

// WithCorrelationID returns a copy of the payload carrying an existing
// correlation id, so related events across processes can be joined.
func (p Payload) WithCorrelationID(id string) Payload {
	p.CorrelationID = id
	return p
}

// Encode serializes the payload to its JSON wire form.
func (p Payload) Encode() ([]byte, error) {
	return json.Marshal(p)
}

// DecodePayload parses a wire message back into an envelope. Messages without
// an event type are rejected so the listen loop can skip them.
func DecodePayload(raw []byte) (Payload, error) {
	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return Payload{}, fmt.Errorf("events: decode payload: %w", err)
	}
	if p.EventType == "" {
		return Payload{}, fmt.Errorf("events: decoded payload has empty event type")
	}
	if p.Severity == "" {
		p.Severity = SeverityInfo
	}
	return p, nil
}
