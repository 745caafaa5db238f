// Package guard runs the guardrails on behalf of the write services and turns
// violations into API errors.
package guard

import (
	"context"

	pkgerrors "github.com/heraerp/hera-api/pkg/errors"
	"github.com/heraerp/hera-api/pkg/guardrails"
	"github.com/heraerp/hera-api/pkg/logger"
	"github.com/heraerp/hera-api/pkg/metrics"
)

// Request describes one write the guardrails must approve.
type Request struct {
	// Operation labels logs and metrics, e.g. "transactions.create".
	Operation string
	Context   guardrails.Context
	Payload   guardrails.Payload
	// RequireSmartCode rejects an empty Context.SmartCode with
	// SMARTCODE_MISSING instead of skipping the grammar check.
	RequireSmartCode bool
}

// Checker is the surface services depend on.
type Checker interface {
	Check(ctx context.Context, req Request) error
}

// Options configures a Guard.
type Options struct {
	Logger  *logger.Logger
	Metrics *metrics.GuardrailMetrics
	// StrictLineSmartCodes validates every non-empty line smart code after
	// the composite check passes.
	StrictLineSmartCodes bool
}

type Guard struct {
	logg        *logger.Logger
	metrics     *metrics.GuardrailMetrics
	strictLines bool
}

func New(opts Options) *Guard {
	return &Guard{
		logg:        opts.Logger,
		metrics:     opts.Metrics,
		strictLines: opts.StrictLineSmartCodes,
	}
}

// Check returns nil when the request passes, otherwise a *pkgerrors.Error
// carrying the violation reason.
func (g *Guard) Check(ctx context.Context, req Request) error {
	err := g.evaluate(req)
	lineCount := len(req.Payload.Lines)
	if err == nil {
		g.metrics.ObserveAccepted(req.Operation, lineCount)
		return nil
	}

	violation, ok := guardrails.AsViolation(err)
	if !ok {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "guardrail evaluation failed")
	}
	g.metrics.ObserveRejected(req.Operation, string(violation.Reason), lineCount)

	if g.logg != nil {
		fields := map[string]any{
			"operation":        req.Operation,
			"guardrail_reason": string(violation.Reason),
			"line_count":       lineCount,
		}
		if violation.LineIndex >= 0 {
			fields["line_index"] = violation.LineIndex
		}
		if violation.Imbalance != nil {
			fields["currency"] = violation.Imbalance.Currency
			fields["diff"] = violation.Imbalance.Difference.String()
		}
		logCtx := g.logg.WithFields(ctx, fields)
		if req.Context.SmartCode != "" {
			logCtx = g.logg.WithSmartCode(logCtx, req.Context.SmartCode)
		}
		g.logg.Warn(logCtx, "guardrail rejected payload")
	}

	return Translate(violation)
}

func (g *Guard) evaluate(req Request) error {
	if req.RequireSmartCode && req.Context.SmartCode == "" {
		return guardrails.ValidateSmartCode("")
	}
	if err := guardrails.ValidatePayload(req.Context, req.Payload); err != nil {
		return err
	}
	if g.strictLines {
		return guardrails.ValidateLineSmartCodes(req.Payload.Lines)
	}
	return nil
}

// Translate maps a violation onto the API error taxonomy. Organization scope
// failures are authorization errors; everything else is a 422.
func Translate(v *guardrails.Violation) *pkgerrors.Error {
	if v == nil {
		return nil
	}
	switch v.Reason {
	case guardrails.ReasonOrgFilterMissing, guardrails.ReasonOrgFilterMismatch:
		return pkgerrors.New(pkgerrors.CodeForbidden, v.Error()).WithDetails(v.Details())
	default:
		return pkgerrors.New(pkgerrors.CodeGuardrail, v.Error()).WithDetails(v.Details())
	}
}
