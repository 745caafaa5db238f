package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/heraerp/hera-api/api/middleware"
	pkgerrors "github.com/heraerp/hera-api/pkg/errors"
	"github.com/heraerp/hera-api/pkg/guardrails"
)

// guardContext builds the guardrail context from the values Auth and
// OrganizationContext placed on the request. Services fill in SmartCode.
func guardContext(r *http.Request) guardrails.Context {
	ctx := r.Context()
	return guardrails.Context{
		OrganizationID: middleware.OrganizationIDFromContext(ctx),
		ActorID:        middleware.UserIDFromContext(ctx),
	}
}

func organizationID(r *http.Request) (uuid.UUID, error) {
	raw := middleware.OrganizationIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeForbidden, "organization context missing")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeForbidden, err, "organization context invalid")
	}
	return id, nil
}
