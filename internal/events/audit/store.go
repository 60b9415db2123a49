// Package audit persists severity-tagged events to an append-only store for
// compliance and forensics. It is consumed by the event bus through the
// AuditSink contract: writes are transactional and failures surface loudly.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/quantarc/riskguard/internal/events"
)

// Event is the audit row for a single published event.
type Event struct {
	ID            uuid.UUID `json:"id" gorm:"primaryKey;type:uuid"`
	EventType     string    `json:"event_type" gorm:"not null;index"`
	Severity      string    `json:"severity" gorm:"not null;index"`
	Source        string    `json:"source" gorm:"not null"`
	Payload       string    `json:"payload" gorm:"type:text"`
	CorrelationID string    `json:"correlation_id" gorm:"index"`
	OccurredAt    time.Time `json:"occurred_at" gorm:"not null;index"`
	CreatedAt     time.Time `json:"created_at" gorm:"not null"`
}

// TableName sets the audit table name.
func (Event) TableName() string {
	return "audit_events"
}

// Store writes audit rows through GORM. It implements events.AuditSink.
type Store struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewStore(db *gorm.DB, logger *zap.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// Migrate creates or updates the audit table.
func (s *Store) Migrate() error {
	return s.db.AutoMigrate(&Event{})
}

// Append persists the event inside a transaction. Any failure rolls the
// transaction back and is returned to the caller.
func (s *Store) Append(ctx context.Context, p events.Payload) error {
	data, err := json.Marshal(p.Data)
	if err != nil {
		return fmt.Errorf("audit: marshal payload data: %w", err)
	}

	row := &Event{
		ID:            uuid.New(),
		EventType:     p.EventType,
		Severity:      string(p.Severity),
		Source:        p.Source,
		Payload:       string(data),
		CorrelationID: p.CorrelationID,
		OccurredAt:    p.Timestamp,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(row).Error
	})
	if err != nil {
		return fmt.Errorf("audit: append event: %w", err)
	}

	s.logger.Debug("audit event persisted",
		zap.String("event_type", p.EventType),
		zap.String("correlation_id", p.CorrelationID))
	return nil
}

// Recent returns the newest audit rows, most recent first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Event, error) {
	var rows []Event
	err := s.db.WithContext(ctx).
		Order("occurred_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("audit: query recent events: %w", err)
	}
	return rows, nil
}

// CountByType returns the number of audited events for one event type,
// used by compliance reporting.
func (s *Store) CountByType(ctx context.Context, eventType string) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).
		Model(&Event{}).
		Where("event_type = ?", eventType).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("audit: count events: %w", err)
	}
	return n, nil
}
