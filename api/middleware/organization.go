package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/heraerp/hera-api/api/responses"
	pkgerrors "github.com/heraerp/hera-api/pkg/errors"
	"github.com/heraerp/hera-api/pkg/logger"
)

// OrganizationContext rejects requests whose token resolved no organization.
func OrganizationContext(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			orgID := OrganizationIDFromContext(r.Context())
			if orgID == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "organization context missing"))
				return
			}
			if _, err := uuid.Parse(orgID); err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "organization context invalid"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
