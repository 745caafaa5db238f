package entities

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/heraerp/hera-api/pkg/db/models"
	"github.com/heraerp/hera-api/pkg/enums"
)

// CreateEntityInput carries a new core entity. OrganizationID is the tenant
// id as submitted and is checked against the caller's organization.
type CreateEntityInput struct {
	OrganizationID string
	EntityType     string
	EntityName     string
	EntityCode     *string
	SmartCode      string
	Status         enums.EntityStatus
	Metadata       json.RawMessage
}

// UpdateEntityInput applies a partial update; nil fields are left untouched.
type UpdateEntityInput struct {
	OrganizationID string
	EntityName     *string
	EntityCode     *string
	SmartCode      *string
	Status         *enums.EntityStatus
	Metadata       json.RawMessage
}

// ListFilter narrows List results.
type ListFilter struct {
	EntityType string
	SmartCode  string
	Status     *enums.EntityStatus
	Cursor     string
	Limit      int
}

// SetDynamicFieldInput writes one typed attribute. Only the value matching
// FieldType may be set.
type SetDynamicFieldInput struct {
	OrganizationID string
	FieldName      string
	FieldType      enums.FieldType
	SmartCode      string
	Text           *string
	Number         *decimal.Decimal
	Boolean        *bool
	Date           *time.Time
	JSON           json.RawMessage
}

type EntityDTO struct {
	ID             uuid.UUID          `json:"id"`
	OrganizationID uuid.UUID          `json:"organization_id"`
	EntityType     string             `json:"entity_type"`
	EntityName     string             `json:"entity_name"`
	EntityCode     *string            `json:"entity_code,omitempty"`
	SmartCode      string             `json:"smart_code"`
	Status         enums.EntityStatus `json:"status"`
	Metadata       json.RawMessage    `json:"metadata,omitempty"`
	CreatedBy      *uuid.UUID         `json:"created_by,omitempty"`
	UpdatedBy      *uuid.UUID         `json:"updated_by,omitempty"`
	CreatedAt      time.Time          `json:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
}

type EntityList struct {
	Entities   []EntityDTO `json:"entities"`
	NextCursor string      `json:"next_cursor,omitempty"`
}

type DynamicFieldDTO struct {
	ID        uuid.UUID       `json:"id"`
	EntityID  uuid.UUID       `json:"entity_id"`
	FieldName string          `json:"field_name"`
	FieldType enums.FieldType `json:"field_type"`
	Value     any             `json:"value"`
	SmartCode string          `json:"smart_code"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func entityToDTO(e *models.Entity) EntityDTO {
	return EntityDTO{
		ID:             e.ID,
		OrganizationID: e.OrganizationID,
		EntityType:     e.EntityType,
		EntityName:     e.EntityName,
		EntityCode:     e.EntityCode,
		SmartCode:      e.SmartCode,
		Status:         e.Status,
		Metadata:       e.Metadata,
		CreatedBy:      e.CreatedBy,
		UpdatedBy:      e.UpdatedBy,
		CreatedAt:      e.CreatedAt,
		UpdatedAt:      e.UpdatedAt,
	}
}

func dynamicFieldToDTO(d *models.DynamicData) DynamicFieldDTO {
	dto := DynamicFieldDTO{
		ID:        d.ID,
		EntityID:  d.EntityID,
		FieldName: d.FieldName,
		FieldType: d.FieldType,
		SmartCode: d.SmartCode,
		UpdatedAt: d.UpdatedAt,
	}
	switch d.FieldType {
	case enums.FieldTypeText:
		if d.FieldValueText != nil {
			dto.Value = *d.FieldValueText
		}
	case enums.FieldTypeNumber:
		if d.FieldValueNumber != nil && d.FieldValueNumber.Valid {
			dto.Value = d.FieldValueNumber.Decimal
		}
	case enums.FieldTypeBoolean:
		if d.FieldValueBoolean != nil {
			dto.Value = *d.FieldValueBoolean
		}
	case enums.FieldTypeDate:
		if d.FieldValueDate != nil {
			dto.Value = d.FieldValueDate.UTC()
		}
	case enums.FieldTypeJSON:
		if len(d.FieldValueJSON) > 0 {
			dto.Value = d.FieldValueJSON
		}
	}
	return dto
}
