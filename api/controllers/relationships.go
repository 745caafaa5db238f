package controllers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/heraerp/hera-api/api/responses"
	"github.com/heraerp/hera-api/api/validators"
	"github.com/heraerp/hera-api/internal/relationships"
	pkgerrors "github.com/heraerp/hera-api/pkg/errors"
	"github.com/heraerp/hera-api/pkg/guardrails"
	"github.com/heraerp/hera-api/pkg/logger"
)

// RelationshipService is implemented by *relationships.Service.
type RelationshipService interface {
	Create(ctx context.Context, gctx guardrails.Context, input relationships.CreateInput) (*relationships.RelationshipDTO, error)
	ListForEntity(ctx context.Context, orgID, entityID uuid.UUID) ([]relationships.RelationshipDTO, error)
}

type relationshipCreateRequest struct {
	OrganizationID   string          `json:"organization_id"`
	FromEntityID     uuid.UUID       `json:"from_entity_id" validate:"required"`
	ToEntityID       uuid.UUID       `json:"to_entity_id" validate:"required"`
	RelationshipType string          `json:"relationship_type" validate:"required,max=100"`
	SmartCode        string          `json:"smart_code"`
	RelationshipData json.RawMessage `json:"relationship_data,omitempty"`
}

func RelationshipCreate(svc RelationshipService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "relationship service unavailable"))
			return
		}

		var payload relationshipCreateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rel, err := svc.Create(r.Context(), guardContext(r), relationships.CreateInput{
			OrganizationID:   payload.OrganizationID,
			FromEntityID:     payload.FromEntityID,
			ToEntityID:       payload.ToEntityID,
			RelationshipType: payload.RelationshipType,
			SmartCode:        payload.SmartCode,
			RelationshipData: payload.RelationshipData,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, rel)
	}
}

// EntityRelationships lists active relationships touching the entity on either side.
func EntityRelationships(svc RelationshipService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "relationship service unavailable"))
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

		rels, err := svc.ListForEntity(r.Context(), orgID, entityID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"relationships": rels})
	}
}
