package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/heraerp/hera-api/pkg/enums"
)

// Entity is a row of core_entities: customers, products, accounts, staff and
// anything else a tenant models, discriminated by entity_type and smart_code.
type Entity struct {
	ID             uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrganizationID uuid.UUID          `gorm:"column:organization_id;type:uuid;not null"`
	EntityType     string             `gorm:"column:entity_type;not null"`
	EntityName     string             `gorm:"column:entity_name;not null"`
	EntityCode     *string            `gorm:"column:entity_code"`
	SmartCode      string             `gorm:"column:smart_code;not null"`
	Status         enums.EntityStatus `gorm:"column:status;not null;default:active"`
	Metadata       json.RawMessage    `gorm:"column:metadata;type:jsonb"`
	CreatedBy      *uuid.UUID         `gorm:"column:created_by;type:uuid"`
	UpdatedBy      *uuid.UUID         `gorm:"column:updated_by;type:uuid"`
	CreatedAt      time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

func (Entity) TableName() string { return "core_entities" }
