package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/heraerp/hera-api/pkg/enums"
)

// OutboxEvent is an append-only domain event written in the same transaction
// as the sacred-table rows it describes.
type OutboxEvent struct {
	ID             uuid.UUID                 `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrganizationID uuid.UUID                 `gorm:"column:organization_id;type:uuid;not null"`
	EventType      enums.OutboxEventType     `gorm:"column:event_type;not null"`
	AggregateType  enums.OutboxAggregateType `gorm:"column:aggregate_type;not null"`
	AggregateID    uuid.UUID                 `gorm:"column:aggregate_id;type:uuid;not null"`
	Payload        json.RawMessage           `gorm:"column:payload;type:jsonb;not null"`
	CreatedAt      time.Time                 `gorm:"column:created_at;autoCreateTime"`
	PublishedAt    *time.Time                `gorm:"column:published_at"`
	AttemptCount   int                       `gorm:"column:attempt_count;not null;default:0"`
	NextAttemptAt  *time.Time                `gorm:"column:next_attempt_at"`
	LastError      *string                   `gorm:"column:last_error"`
}

func (OutboxEvent) TableName() string { return "outbox_events" }
