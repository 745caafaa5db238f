package controllers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/heraerp/hera-api/api/responses"
	"github.com/heraerp/hera-api/api/validators"
	"github.com/heraerp/hera-api/internal/transactions"
	"github.com/heraerp/hera-api/pkg/enums"
	pkgerrors "github.com/heraerp/hera-api/pkg/errors"
	"github.com/heraerp/hera-api/pkg/logger"
	"github.com/heraerp/hera-api/pkg/pagination"
)

type transactionLineRequest struct {
	EntityID                *uuid.UUID       `json:"entity_id,omitempty"`
	LineType                string           `json:"line_type" validate:"required,max=50"`
	Description             *string          `json:"description,omitempty" validate:"omitempty,max=500"`
	Quantity                *decimal.Decimal `json:"quantity,omitempty"`
	UnitAmount              *decimal.Decimal `json:"unit_amount,omitempty"`
	LineAmount              decimal.Decimal  `json:"line_amount"`
	DiscountAmount          *decimal.Decimal `json:"discount_amount,omitempty"`
	TaxAmount               *decimal.Decimal `json:"tax_amount,omitempty"`
	TransactionCurrencyCode *string          `json:"transaction_currency_code,omitempty" validate:"omitempty,max=8"`
	Currency                *string          `json:"currency,omitempty" validate:"omitempty,max=8"`
	SmartCode               string           `json:"smart_code" validate:"required"`
	Side                    string           `json:"side,omitempty"`
	LineData                map[string]any   `json:"line_data,omitempty"`
}

type transactionRequest struct {
	OrganizationID          string                   `json:"organization_id"`
	TransactionType         string                   `json:"transaction_type" validate:"required,max=100"`
	TransactionCode         *string                  `json:"transaction_code,omitempty" validate:"omitempty,max=100"`
	TransactionDate         *time.Time               `json:"transaction_date,omitempty"`
	SourceEntityID          *uuid.UUID               `json:"source_entity_id,omitempty"`
	TargetEntityID          *uuid.UUID               `json:"target_entity_id,omitempty"`
	TransactionCurrencyCode *string                  `json:"transaction_currency_code,omitempty" validate:"omitempty,max=8"`
	SmartCode               string                   `json:"smart_code"`
	TransactionStatus       string                   `json:"transaction_status,omitempty" validate:"omitempty,oneof=draft posted voided"`
	Metadata                json.RawMessage          `json:"metadata,omitempty"`
	Lines                   []transactionLineRequest `json:"lines" validate:"max=500,dive"`
}

func (r transactionRequest) toInput() transactions.CreateInput {
	input := transactions.CreateInput{
		OrganizationID:          r.OrganizationID,
		TransactionType:         r.TransactionType,
		TransactionCode:         r.TransactionCode,
		SourceEntityID:          r.SourceEntityID,
		TargetEntityID:          r.TargetEntityID,
		TransactionCurrencyCode: r.TransactionCurrencyCode,
		SmartCode:               r.SmartCode,
		Status:                  enums.TransactionStatus(r.TransactionStatus),
		Metadata:                r.Metadata,
		Lines:                   make([]transactions.LineInput, 0, len(r.Lines)),
	}
	if r.TransactionDate != nil {
		input.TransactionDate = r.TransactionDate.UTC()
	}
	for _, line := range r.Lines {
		input.Lines = append(input.Lines, transactions.LineInput{
			EntityID:                line.EntityID,
			LineType:                line.LineType,
			Description:             line.Description,
			Quantity:                line.Quantity,
			UnitAmount:              line.UnitAmount,
			LineAmount:              line.LineAmount,
			DiscountAmount:          line.DiscountAmount,
			TaxAmount:               line.TaxAmount,
			TransactionCurrencyCode: line.TransactionCurrencyCode,
			Currency:                line.Currency,
			SmartCode:               line.SmartCode,
			Side:                    line.Side,
			LineData:                line.LineData,
		}.WithLineData())
	}
	return input
}

// TransactionCreate posts a universal transaction with its lines in one
// database transaction. Guardrail failures return 422 (403 for org scope).
func TransactionCreate(svc transactions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "transaction service unavailable"))
			return
		}

		var payload transactionRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		txn, err := svc.Create(r.Context(), guardContext(r), payload.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, txn)
	}
}

// TransactionValidate runs every check Create would run without writing.
func TransactionValidate(svc transactions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "transaction service unavailable"))
			return
		}

		var payload transactionRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		report, err := svc.Validate(r.Context(), guardContext(r), payload.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, report)
	}
}

func TransactionGet(svc transactions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "transaction service unavailable"))
			return
		}

		orgID, err := organizationID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		txnID, err := validators.ParseURLUUID(r, "transactionId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		txn, err := svc.Get(r.Context(), orgID, txnID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, txn)
	}
}

func TransactionList(svc transactions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "transaction service unavailable"))
			return
		}

		orgID, err := organizationID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		from, err := validators.ParseQueryTime(r, "from")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		to, err := validators.ParseQueryTime(r, "to")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		filter := transactions.ListFilter{
			From:   from,
			To:     to,
			Cursor: validators.QueryValue(r, "cursor", 512),
			Limit:  limit,
		}
		if v := validators.ParseQueryString(r, "transaction_type", 100); v != nil {
			filter.TransactionType = *v
		}
		if v := validators.ParseQueryString(r, "smart_code", 256); v != nil {
			filter.SmartCode = *v
		}
		if v := validators.ParseQueryString(r, "status", 32); v != nil {
			status, err := enums.ParseTransactionStatus(*v)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
				return
			}
			filter.Status = &status
		}

		list, err := svc.List(r.Context(), orgID, filter)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}
