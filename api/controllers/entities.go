package controllers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/heraerp/hera-api/api/responses"
	"github.com/heraerp/hera-api/api/validators"
	"github.com/heraerp/hera-api/internal/entities"
	"github.com/heraerp/hera-api/pkg/enums"
	pkgerrors "github.com/heraerp/hera-api/pkg/errors"
	"github.com/heraerp/hera-api/pkg/logger"
	"github.com/heraerp/hera-api/pkg/pagination"
)

type entityCreateRequest struct {
	OrganizationID string          `json:"organization_id"`
	EntityType     string          `json:"entity_type" validate:"required,max=100"`
	EntityName     string          `json:"entity_name" validate:"required,max=255"`
	EntityCode     *string         `json:"entity_code,omitempty" validate:"omitempty,max=100"`
	SmartCode      string          `json:"smart_code"`
	Status         string          `json:"status,omitempty" validate:"omitempty,oneof=active inactive archived"`
	Metadata       json.RawMessage `json:"metadata,omitempty"`
}

func (r entityCreateRequest) toInput() entities.CreateEntityInput {
	return entities.CreateEntityInput{
		OrganizationID: r.OrganizationID,
		EntityType:     r.EntityType,
		EntityName:     r.EntityName,
		EntityCode:     r.EntityCode,
		SmartCode:      r.SmartCode,
		Status:         enums.EntityStatus(r.Status),
		Metadata:       r.Metadata,
	}
}

type entityUpdateRequest struct {
	OrganizationID string          `json:"organization_id"`
	EntityName     *string         `json:"entity_name,omitempty" validate:"omitempty,min=1,max=255"`
	EntityCode     *string         `json:"entity_code,omitempty" validate:"omitempty,max=100"`
	SmartCode      *string         `json:"smart_code,omitempty"`
	Status         *string         `json:"status,omitempty" validate:"omitempty,oneof=active inactive archived"`
	Metadata       json.RawMessage `json:"metadata,omitempty"`
}

func (r entityUpdateRequest) toInput() entities.UpdateEntityInput {
	input := entities.UpdateEntityInput{
		OrganizationID: r.OrganizationID,
		EntityName:     r.EntityName,
		EntityCode:     r.EntityCode,
		SmartCode:      r.SmartCode,
		Metadata:       r.Metadata,
	}
	if r.Status != nil {
		status := enums.EntityStatus(*r.Status)
		input.Status = &status
	}
	return input
}

type dynamicFieldRequest struct {
	OrganizationID    string           `json:"organization_id"`
	FieldName         string           `json:"field_name" validate:"required,max=100"`
	FieldType         string           `json:"field_type" validate:"required,oneof=text number boolean date json"`
	SmartCode         string           `json:"smart_code"`
	FieldValueText    *string          `json:"field_value_text,omitempty"`
	FieldValueNumber  *decimal.Decimal `json:"field_value_number,omitempty"`
	FieldValueBoolean *bool            `json:"field_value_boolean,omitempty"`
	FieldValueDate    *time.Time       `json:"field_value_date,omitempty"`
	FieldValueJSON    json.RawMessage  `json:"field_value_json,omitempty"`
}

func (r dynamicFieldRequest) toInput() entities.SetDynamicFieldInput {
	return entities.SetDynamicFieldInput{
		OrganizationID: r.OrganizationID,
		FieldName:      r.FieldName,
		FieldType:      enums.FieldType(r.FieldType),
		SmartCode:      r.SmartCode,
		Text:           r.FieldValueText,
		Number:         r.FieldValueNumber,
		Boolean:        r.FieldValueBoolean,
		Date:           r.FieldValueDate,
		JSON:           r.FieldValueJSON,
	}
}

// EntityCreate writes a new core entity for the caller's organization.
func EntityCreate(svc entities.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "entity service unavailable"))
			return
		}

		var payload entityCreateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		entity, err := svc.Create(r.Context(), guardContext(r), payload.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, entity)
	}
}

func EntityUpdate(svc entities.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "entity service unavailable"))
			return
		}

		entityID, err := validators.ParseURLUUID(r, "entityId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload entityUpdateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		entity, err := svc.Update(r.Context(), guardContext(r), entityID, payload.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, entity)
	}
}

func EntityGet(svc entities.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "entity service unavailable"))
			return
		}

		orgID, err := organizationID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		entityID, err := validators.ParseURLUUID(r, "entityId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		entity, err := svc.Get(r.Context(), orgID, entityID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, entity)
	}
}

// EntityList pages through the organization's entities, newest first.
func EntityList(svc entities.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "entity service unavailable"))
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

		filter := entities.ListFilter{
			Cursor: validators.QueryValue(r, "cursor", 512),
			Limit:  limit,
		}
		if v := validators.ParseQueryString(r, "entity_type", 100); v != nil {
			filter.EntityType = *v
		}
		if v := validators.ParseQueryString(r, "smart_code", 256); v != nil {
			filter.SmartCode = *v
		}
		if v := validators.ParseQueryString(r, "status", 32); v != nil {
			status, err := enums.ParseEntityStatus(*v)
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

// EntitySetDynamicField upserts one typed attribute on an entity.
func EntitySetDynamicField(svc entities.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "entity service unavailable"))
			return
		}

		entityID, err := validators.ParseURLUUID(r, "entityId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload dynamicFieldRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		field, err := svc.SetDynamicField(r.Context(), guardContext(r), entityID, payload.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, field)
	}
}

func EntityDynamicFields(svc entities.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "entity service unavailable"))
			return
		}

		orgID, err := organizationID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		entityID, err := validators.ParseURLUUID(r, "entityId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		fields, err := svc.ListDynamicFields(r.Context(), orgID, entityID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"fields": fields})
	}
}
