package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/heraerp/hera-api/api/responses"
	"github.com/heraerp/hera-api/api/validators"
	"github.com/heraerp/hera-api/pkg/enums"
	pkgerrors "github.com/heraerp/hera-api/pkg/errors"
	"github.com/heraerp/hera-api/pkg/logger"
	"github.com/heraerp/hera-api/pkg/outbox"
	"github.com/heraerp/hera-api/pkg/pagination"
)

// DeadLetterLister reads an organization's undeliverable outbox events.
type DeadLetterLister interface {
	ListForOrganization(ctx context.Context, orgID uuid.UUID, cursor *pagination.Cursor, limit int) (outbox.DeadLetterPage, error)
}

type deadLetterDTO struct {
	EventID       uuid.UUID                  `json:"event_id"`
	EventType     enums.OutboxEventType      `json:"event_type"`
	AggregateType enums.OutboxAggregateType  `json:"aggregate_type"`
	AggregateID   uuid.UUID                  `json:"aggregate_id"`
	ErrorReason   enums.OutboxDLQErrorReason `json:"error_reason"`
	ErrorMessage  *string                    `json:"error_message,omitempty"`
	AttemptCount  int                        `json:"attempt_count"`
	FailedAt      time.Time                  `json:"failed_at"`
}

type deadLetterList struct {
	DeadLetters []deadLetterDTO `json:"dead_letters"`
	NextCursor  string          `json:"next_cursor,omitempty"`
}

// OutboxDeadLetters lists events the publisher gave up on for the caller's
// organization, newest first.
func OutboxDeadLetters(store DeadLetterLister, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "dead letter store unavailable"))
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
		cursor, err := pagination.ParseCursor(validators.QueryValue(r, "cursor", 512))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor"))
			return
		}

		page, err := store.ListForOrganization(r.Context(), orgID, cursor, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list dead letters"))
			return
		}

		out := deadLetterList{DeadLetters: make([]deadLetterDTO, 0, len(page.Items)), NextCursor: page.NextCursor}
		for _, row := range page.Items {
			out.DeadLetters = append(out.DeadLetters, deadLetterDTO{
				EventID:       row.EventID,
				EventType:     row.EventType,
				AggregateType: row.AggregateType,
				AggregateID:   row.AggregateID,
				ErrorReason:   row.ErrorReason,
				ErrorMessage:  row.ErrorMessage,
				AttemptCount:  row.AttemptCount,
				FailedAt:      row.FailedAt,
			})
		}
		responses.WriteSuccess(w, out)
	}
}
