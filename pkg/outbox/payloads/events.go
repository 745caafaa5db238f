package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/heraerp/hera-api/pkg/enums"
)

// EntityChangedEvent is emitted when a core entity is created or updated.
type EntityChangedEvent struct {
	EntityID       uuid.UUID          `json:"entity_id"`
	OrganizationID uuid.UUID          `json:"organization_id"`
	EntityType     string             `json:"entity_type"`
	EntityName     string             `json:"entity_name"`
	EntityCode     *string            `json:"entity_code,omitempty"`
	SmartCode      string             `json:"smart_code"`
	Status         enums.EntityStatus `json:"status"`
}

// DynamicFieldSetEvent is emitted when a dynamic attribute is written.
type DynamicFieldSetEvent struct {
	EntityID       uuid.UUID       `json:"entity_id"`
	OrganizationID uuid.UUID       `json:"organization_id"`
	FieldName      string          `json:"field_name"`
	FieldType      enums.FieldType `json:"field_type"`
	SmartCode      string          `json:"smart_code"`
}

// RelationshipCreatedEvent links two entities of one organization.
type RelationshipCreatedEvent struct {
	RelationshipID   uuid.UUID `json:"relationship_id"`
	OrganizationID   uuid.UUID `json:"organization_id"`
	FromEntityID     uuid.UUID `json:"from_entity_id"`
	ToEntityID       uuid.UUID `json:"to_entity_id"`
	RelationshipType string    `json:"relationship_type"`
	SmartCode        string    `json:"smart_code"`
}

// TransactionPostedEvent is emitted once a universal transaction and its lines
// have been committed.
type TransactionPostedEvent struct {
	TransactionID   uuid.UUID               `json:"transaction_id"`
	OrganizationID  uuid.UUID               `json:"organization_id"`
	TransactionType string                  `json:"transaction_type"`
	TransactionCode *string                 `json:"transaction_code,omitempty"`
	TransactionDate time.Time               `json:"transaction_date"`
	SmartCode       string                  `json:"smart_code"`
	Status          enums.TransactionStatus `json:"status"`
	TotalAmount     decimal.Decimal         `json:"total_amount"`
	Currency        *string                 `json:"currency,omitempty"`
	LineCount       int                     `json:"line_count"`
	Lines           []TransactionLineRef    `json:"lines"`
}

// TransactionLineRef is the per-line summary carried by TransactionPostedEvent.
type TransactionLineRef struct {
	LineNumber int             `json:"line_number"`
	SmartCode  string          `json:"smart_code"`
	LineAmount decimal.Decimal `json:"line_amount"`
	Side       string          `json:"side,omitempty"`
}
