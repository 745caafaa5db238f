package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/heraerp/hera-api/pkg/enums"
)

// UniversalTransaction is the header row of any business event: sales,
// purchases, journal entries, appointments.
type UniversalTransaction struct {
	ID                      uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrganizationID          uuid.UUID               `gorm:"column:organization_id;type:uuid;not null"`
	TransactionType         string                  `gorm:"column:transaction_type;not null"`
	TransactionCode         *string                 `gorm:"column:transaction_code"`
	TransactionDate         time.Time               `gorm:"column:transaction_date;not null"`
	SourceEntityID          *uuid.UUID              `gorm:"column:source_entity_id;type:uuid"`
	TargetEntityID          *uuid.UUID              `gorm:"column:target_entity_id;type:uuid"`
	TotalAmount             decimal.Decimal         `gorm:"column:total_amount;type:numeric;not null"`
	TransactionCurrencyCode *string                 `gorm:"column:transaction_currency_code"`
	SmartCode               string                  `gorm:"column:smart_code;not null"`
	TransactionStatus       enums.TransactionStatus `gorm:"column:transaction_status;not null"`
	Metadata                json.RawMessage         `gorm:"column:metadata;type:jsonb"`
	CreatedBy               *uuid.UUID              `gorm:"column:created_by;type:uuid"`
	CreatedAt               time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt               time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}

func (UniversalTransaction) TableName() string { return "universal_transactions" }

// UniversalTransactionLine is one line of a UniversalTransaction. GL lines carry
// their DR/CR side in line_data.side.
type UniversalTransactionLine struct {
	ID                      uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrganizationID          uuid.UUID       `gorm:"column:organization_id;type:uuid;not null"`
	TransactionID           uuid.UUID       `gorm:"column:transaction_id;type:uuid;not null"`
	LineNumber              int             `gorm:"column:line_number;not null"`
	EntityID                *uuid.UUID      `gorm:"column:entity_id;type:uuid"`
	LineType                string          `gorm:"column:line_type;not null"`
	Description             *string         `gorm:"column:description"`
	Quantity                decimal.Decimal `gorm:"column:quantity;type:numeric;not null"`
	UnitAmount              decimal.Decimal `gorm:"column:unit_amount;type:numeric;not null"`
	LineAmount              decimal.Decimal `gorm:"column:line_amount;type:numeric;not null"`
	DiscountAmount          decimal.Decimal `gorm:"column:discount_amount;type:numeric;not null"`
	TaxAmount               decimal.Decimal `gorm:"column:tax_amount;type:numeric;not null"`
	TransactionCurrencyCode *string         `gorm:"column:transaction_currency_code"`
	SmartCode               string          `gorm:"column:smart_code;not null"`
	LineData                json.RawMessage `gorm:"column:line_data;type:jsonb"`
	CreatedAt               time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt               time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (UniversalTransactionLine) TableName() string { return "universal_transaction_lines" }
