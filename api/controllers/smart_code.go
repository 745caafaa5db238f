package controllers

import (
	"net/http"

	"github.com/heraerp/hera-api/api/responses"
	"github.com/heraerp/hera-api/api/validators"
	"github.com/heraerp/hera-api/pkg/guardrails"
	"github.com/heraerp/hera-api/pkg/logger"
	"github.com/heraerp/hera-api/pkg/metrics"
)

const opPublicSmartCode = "public.smart_code"

type smartCodeRequest struct {
	SmartCode string `json:"smart_code" validate:"max=256"`
}

type smartCodeResult struct {
	SmartCode string `json:"smart_code"`
	Valid     bool   `json:"valid"`
	Reason    string `json:"reason,omitempty"`
	Message   string `json:"message,omitempty"`
}

// ValidateSmartCode checks a smart code against the grammar. A malformed code
// is a successful call that reports valid=false.
func ValidateSmartCode(logg *logger.Logger, m *metrics.GuardrailMetrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body smartCodeRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result := smartCodeResult{SmartCode: body.SmartCode, Valid: true}
		if v, ok := guardrails.AsViolation(guardrails.ValidateSmartCode(body.SmartCode)); ok {
			result.Valid = false
			result.Reason = string(v.Reason)
			result.Message = v.Message
			m.ObserveRejected(opPublicSmartCode, string(v.Reason), 0)
		} else {
			m.ObserveAccepted(opPublicSmartCode, 0)
		}

		responses.WriteSuccess(w, result)
	}
}
