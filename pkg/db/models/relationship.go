package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Relationship links two entities of the same organization.
type Relationship struct {
	ID               uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrganizationID   uuid.UUID       `gorm:"column:organization_id;type:uuid;not null"`
	FromEntityID     uuid.UUID       `gorm:"column:from_entity_id;type:uuid;not null"`
	ToEntityID       uuid.UUID       `gorm:"column:to_entity_id;type:uuid;not null"`
	RelationshipType string          `gorm:"column:relationship_type;not null"`
	RelationshipData json.RawMessage `gorm:"column:relationship_data;type:jsonb"`
	SmartCode        string          `gorm:"column:smart_code;not null"`
	IsActive         bool            `gorm:"column:is_active;not null;default:true"`
	CreatedBy        *uuid.UUID      `gorm:"column:created_by;type:uuid"`
	CreatedAt        time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (Relationship) TableName() string { return "core_relationships" }
