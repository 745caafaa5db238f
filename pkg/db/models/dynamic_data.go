package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/heraerp/hera-api/pkg/enums"
)

// DynamicData stores one typed attribute of an entity. Exactly one value
// column is populated, selected by FieldType.
type DynamicData struct {
	ID                uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrganizationID    uuid.UUID            `gorm:"column:organization_id;type:uuid;not null"`
	EntityID          uuid.UUID            `gorm:"column:entity_id;type:uuid;not null"`
	FieldName         string               `gorm:"column:field_name;not null"`
	FieldType         enums.FieldType      `gorm:"column:field_type;not null"`
	FieldValueText    *string              `gorm:"column:field_value_text"`
	FieldValueNumber  *decimal.NullDecimal `gorm:"column:field_value_number;type:numeric"`
	FieldValueBoolean *bool                `gorm:"column:field_value_boolean"`
	FieldValueDate    *time.Time           `gorm:"column:field_value_date"`
	FieldValueJSON    json.RawMessage      `gorm:"column:field_value_json;type:jsonb"`
	SmartCode         string               `gorm:"column:smart_code;not null"`
	CreatedBy         *uuid.UUID           `gorm:"column:created_by;type:uuid"`
	UpdatedBy         *uuid.UUID           `gorm:"column:updated_by;type:uuid"`
	CreatedAt         time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

func (DynamicData) TableName() string { return "core_dynamic_data" }
