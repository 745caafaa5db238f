package guard

import (
	"github.com/google/uuid"

	pkgerrors "github.com/heraerp/hera-api/pkg/errors"
	"github.com/heraerp/hera-api/pkg/guardrails"
	"github.com/heraerp/hera-api/pkg/outbox"
)

// Scope is the parsed tenant identity of a guarded write.
type Scope struct {
	OrganizationID uuid.UUID
	ActorID        uuid.UUID
}

// ScopeFrom parses the identifiers carried by a guardrail context. Call it
// after Check has approved the request.
func ScopeFrom(gctx guardrails.Context) (Scope, error) {
	orgID, err := uuid.Parse(gctx.OrganizationID)
	if err != nil || orgID == uuid.Nil {
		return Scope{}, pkgerrors.New(pkgerrors.CodeForbidden, "organization context invalid")
	}
	scope := Scope{OrganizationID: orgID}
	if gctx.ActorID != "" {
		actorID, err := uuid.Parse(gctx.ActorID)
		if err != nil {
			return Scope{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor identity invalid")
		}
		scope.ActorID = actorID
	}
	return scope, nil
}

// Actor returns the outbox actor reference, or nil for anonymous writes.
func (s Scope) Actor() *outbox.ActorRef {
	if s.ActorID == uuid.Nil {
		return nil
	}
	return &outbox.ActorRef{UserID: s.ActorID, OrganizationID: s.OrganizationID}
}

// CreatedBy is the nullable audit column value.
func (s Scope) CreatedBy() *uuid.UUID {
	if s.ActorID == uuid.Nil {
		return nil
	}
	id := s.ActorID
	return &id
}
