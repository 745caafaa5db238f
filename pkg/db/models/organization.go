package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Organization is the tenant partition every other sacred table is scoped to.
type Organization struct {
	ID               uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrganizationName string          `gorm:"column:organization_name;not null"`
	OrganizationCode string          `gorm:"column:organization_code;not null"`
	OrganizationType string          `gorm:"column:organization_type;not null"`
	Settings         json.RawMessage `gorm:"column:settings;type:jsonb"`
	Status           string          `gorm:"column:status;not null;default:active"`
	CreatedAt        time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (Organization) TableName() string { return "core_organizations" }
