package middleware

import (
	"net/http"
	"strings"

	"github.com/heraerp/hera-api/api/responses"
	pkgAuth "github.com/heraerp/hera-api/pkg/auth"
	"github.com/heraerp/hera-api/pkg/config"
	pkgerrors "github.com/heraerp/hera-api/pkg/errors"
	"github.com/heraerp/hera-api/pkg/logger"
)

// Auth validates a bearer token and seeds the request context with the actor,
// organization and role it carries.
func Auth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get("Authorization"))
			if raw == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			scheme, token, found := strings.Cut(raw, " ")
			if !found || !strings.EqualFold(scheme, "bearer") {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "bearer token required"))
				return
			}
			token = strings.TrimSpace(token)
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := pkgAuth.ParseAccessToken(cfg, token)
			if err != nil {
				msg := "invalid token"
				if pkgAuth.IsExpired(err) {
					msg = "token expired"
				}
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, msg))
				return
			}

			// Tokens without an organization still authenticate; OrganizationContext
			// rejects them on tenant routes.
			tenant, err := claims.Tenant()
			orgID := ""
			if err == nil {
				orgID = tenant.OrganizationID.String()
			}
			ctx := WithUserID(r.Context(), tenant.ActorID.String())
			ctx = WithRole(ctx, string(tenant.Role))
			if orgID != "" {
				ctx = WithOrganizationID(ctx, orgID)
			}
			if logg != nil {
				ctx = logg.WithTenant(ctx, tenant.ActorID.String(), string(tenant.Role), orgID)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
