package transactions

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/heraerp/hera-api/pkg/db/models"
	"github.com/heraerp/hera-api/pkg/enums"
	"github.com/heraerp/hera-api/pkg/guardrails"
)

// CreateInput is a universal transaction header plus its lines.
type CreateInput struct {
	OrganizationID          string
	TransactionType         string
	TransactionCode         *string
	TransactionDate         time.Time
	SourceEntityID          *uuid.UUID
	TargetEntityID          *uuid.UUID
	TransactionCurrencyCode *string
	SmartCode               string
	Status                  enums.TransactionStatus
	Metadata                json.RawMessage
	Lines                   []LineInput
}

// LineInput is one submitted line. Side and Currency are stored in line_data.
type LineInput struct {
	EntityID                *uuid.UUID
	LineType                string
	Description             *string
	Quantity                *decimal.Decimal
	UnitAmount              *decimal.Decimal
	LineAmount              decimal.Decimal
	DiscountAmount          *decimal.Decimal
	TaxAmount               *decimal.Decimal
	TransactionCurrencyCode *string
	Currency                *string
	SmartCode               string
	Side                    string
	LineData                map[string]any
}

// WithLineData fills Side and Currency from line_data when the top-level
// fields are empty. Clients may send either shape.
func (l LineInput) WithLineData() LineInput {
	if l.Side == "" {
		if side, ok := l.LineData[lineDataSide].(string); ok {
			l.Side = side
		}
	}
	if l.Currency == nil || *l.Currency == "" {
		if currency, ok := l.LineData[lineDataCurrency].(string); ok && currency != "" {
			l.Currency = &currency
		}
	}
	return l
}

func (in CreateInput) withLineData() CreateInput {
	lines := make([]LineInput, len(in.Lines))
	for i, line := range in.Lines {
		lines[i] = line.WithLineData()
	}
	in.Lines = lines
	return in
}

// ListFilter narrows List results.
type ListFilter struct {
	TransactionType string
	SmartCode       string
	Status          *enums.TransactionStatus
	From            *time.Time
	To              *time.Time
	Cursor          string
	Limit           int
}

type TransactionDTO struct {
	ID                      uuid.UUID               `json:"id"`
	OrganizationID          uuid.UUID               `json:"organization_id"`
	TransactionType         string                  `json:"transaction_type"`
	TransactionCode         *string                 `json:"transaction_code,omitempty"`
	TransactionDate         time.Time               `json:"transaction_date"`
	SourceEntityID          *uuid.UUID              `json:"source_entity_id,omitempty"`
	TargetEntityID          *uuid.UUID              `json:"target_entity_id,omitempty"`
	TotalAmount             decimal.Decimal         `json:"total_amount"`
	TransactionCurrencyCode *string                 `json:"transaction_currency_code,omitempty"`
	SmartCode               string                  `json:"smart_code"`
	Status                  enums.TransactionStatus `json:"transaction_status"`
	Metadata                json.RawMessage         `json:"metadata,omitempty"`
	CreatedBy               *uuid.UUID              `json:"created_by,omitempty"`
	CreatedAt               time.Time               `json:"created_at"`
	Lines                   []LineDTO               `json:"lines,omitempty"`
}

type LineDTO struct {
	ID                      uuid.UUID       `json:"id"`
	LineNumber              int             `json:"line_number"`
	EntityID                *uuid.UUID      `json:"entity_id,omitempty"`
	LineType                string          `json:"line_type"`
	Description             *string         `json:"description,omitempty"`
	Quantity                decimal.Decimal `json:"quantity"`
	UnitAmount              decimal.Decimal `json:"unit_amount"`
	LineAmount              decimal.Decimal `json:"line_amount"`
	DiscountAmount          decimal.Decimal `json:"discount_amount"`
	TaxAmount               decimal.Decimal `json:"tax_amount"`
	TransactionCurrencyCode *string         `json:"transaction_currency_code,omitempty"`
	SmartCode               string          `json:"smart_code"`
	LineData                json.RawMessage `json:"line_data,omitempty"`
}

type TransactionList struct {
	Transactions []TransactionDTO `json:"transactions"`
	NextCursor   string           `json:"next_cursor,omitempty"`
}

// ValidationReport is returned by a successful dry run.
type ValidationReport struct {
	Valid       bool            `json:"valid"`
	LineCount   int             `json:"line_count"`
	GLLineCount int             `json:"gl_line_count"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Currencies  []string        `json:"gl_currencies,omitempty"`
}

const (
	lineDataSide     = "side"
	lineDataCurrency = "currency"
)

// StoredGuardrailLines rebuilds the guardrail view of persisted lines. Side
// and currency are read back from line_data.
func StoredGuardrailLines(rows []models.UniversalTransactionLine) []guardrails.Line {
	out := make([]guardrails.Line, 0, len(rows))
	for _, row := range rows {
		var data map[string]any
		if len(row.LineData) > 0 {
			_ = json.Unmarshal(row.LineData, &data)
		}
		side, _ := data[lineDataSide].(string)
		currency, _ := data[lineDataCurrency].(string)
		out = append(out, guardrails.Line{
			SmartCode:               row.SmartCode,
			LineAmount:              row.LineAmount,
			Side:                    side,
			TransactionCurrencyCode: deref(row.TransactionCurrencyCode),
			Currency:                currency,
		})
	}
	return out
}

// guardrailLines projects submitted lines onto the guardrail view.
func guardrailLines(lines []LineInput) []guardrails.Line {
	out := make([]guardrails.Line, 0, len(lines))
	for _, line := range lines {
		out = append(out, guardrails.Line{
			SmartCode:               line.SmartCode,
			LineAmount:              line.LineAmount,
			Side:                    line.Side,
			TransactionCurrencyCode: deref(line.TransactionCurrencyCode),
			Currency:                deref(line.Currency),
		})
	}
	return out
}

func transactionToDTO(txn *models.UniversalTransaction, lines []models.UniversalTransactionLine) TransactionDTO {
	dto := TransactionDTO{
		ID:                      txn.ID,
		OrganizationID:          txn.OrganizationID,
		TransactionType:         txn.TransactionType,
		TransactionCode:         txn.TransactionCode,
		TransactionDate:         txn.TransactionDate,
		SourceEntityID:          txn.SourceEntityID,
		TargetEntityID:          txn.TargetEntityID,
		TotalAmount:             txn.TotalAmount,
		TransactionCurrencyCode: txn.TransactionCurrencyCode,
		SmartCode:               txn.SmartCode,
		Status:                  txn.TransactionStatus,
		Metadata:                txn.Metadata,
		CreatedBy:               txn.CreatedBy,
		CreatedAt:               txn.CreatedAt,
	}
	if len(lines) > 0 {
		dto.Lines = make([]LineDTO, 0, len(lines))
		for i := range lines {
			dto.Lines = append(dto.Lines, lineToDTO(&lines[i]))
		}
	}
	return dto
}

func lineToDTO(line *models.UniversalTransactionLine) LineDTO {
	return LineDTO{
		ID:                      line.ID,
		LineNumber:              line.LineNumber,
		EntityID:                line.EntityID,
		LineType:                line.LineType,
		Description:             line.Description,
		Quantity:                line.Quantity,
		UnitAmount:              line.UnitAmount,
		LineAmount:              line.LineAmount,
		DiscountAmount:          line.DiscountAmount,
		TaxAmount:               line.TaxAmount,
		TransactionCurrencyCode: line.TransactionCurrencyCode,
		SmartCode:               line.SmartCode,
		LineData:                line.LineData,
	}
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
