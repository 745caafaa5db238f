package middleware

import (
	"net/http"

	"github.com/heraerp/hera-api/api/responses"
	"github.com/heraerp/hera-api/pkg/enums"
	pkgerrors "github.com/heraerp/hera-api/pkg/errors"
	"github.com/heraerp/hera-api/pkg/logger"
)

// RequireRole admits callers whose organization role ranks at or above min.
func RequireRole(logg *logger.Logger, min enums.MemberRole) func(http.Handler) http.Handler {
	return requireRole(logg, func(role enums.MemberRole) bool { return role.AtLeast(min) }, min.String()+" role required")
}

// RequireWrite blocks read-only roles from mutating routes.
func RequireWrite(logg *logger.Logger) func(http.Handler) http.Handler {
	return requireRole(logg, enums.MemberRole.CanWrite, "write access required")
}

func requireRole(logg *logger.Logger, allow func(enums.MemberRole) bool, denied string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := enums.MemberRole(RoleFromContext(r.Context()))
			if !allow(role) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, denied))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
