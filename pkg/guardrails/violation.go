package guardrails

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Reason is the machine-readable code attached to a rejected payload.
type Reason string

const (
	ReasonSmartCodeMissing   Reason = "SMARTCODE_MISSING"
	ReasonSmartCodeRegexFail Reason = "SMARTCODE_REGEX_FAIL"
	ReasonOrgFilterMissing   Reason = "ORG_FILTER_MISSING"
	ReasonOrgFilterMismatch  Reason = "ORG_FILTER_MISMATCH"
	ReasonGLSideRequired     Reason = "GL_SIDE_REQUIRED"
	ReasonNegativeGLAmount   Reason = "NEGATIVE_GL_AMOUNT"
	ReasonGLNotBalanced      Reason = "GL_NOT_BALANCED"
)

var validReasons = []Reason{
	ReasonSmartCodeMissing,
	ReasonSmartCodeRegexFail,
	ReasonOrgFilterMissing,
	ReasonOrgFilterMismatch,
	ReasonGLSideRequired,
	ReasonNegativeGLAmount,
	ReasonGLNotBalanced,
}

// IsValid reports whether the reason belongs to the closed guardrail enumeration.
func (r Reason) IsValid() bool {
	for _, candidate := range validReasons {
		if candidate == r {
			return true
		}
	}
	return false
}

// Imbalance describes the first currency whose GL lines do not net to zero.
type Imbalance struct {
	Currency   string          `json:"currency"`
	Debit      decimal.Decimal `json:"dr"`
	Credit     decimal.Decimal `json:"cr"`
	Difference decimal.Decimal `json:"diff"`
}

// Violation is the failure value returned by every check in this package.
// A nil error means the payload passed.
type Violation struct {
	Reason  Reason
	Message string
	// LineIndex points into the submitted lines for per-line failures; -1 otherwise.
	LineIndex int
	Imbalance *Imbalance
}

func newViolation(reason Reason, message string) *Violation {
	return &Violation{Reason: reason, Message: message, LineIndex: -1}
}

func (v *Violation) Error() string {
	if v == nil {
		return ""
	}
	if v.LineIndex >= 0 {
		return fmt.Sprintf("%s: %s (line %d)", v.Reason, v.Message, v.LineIndex)
	}
	return fmt.Sprintf("%s: %s", v.Reason, v.Message)
}

// Details returns the structured context a caller can expose in an API response.
func (v *Violation) Details() map[string]any {
	if v == nil {
		return nil
	}
	details := map[string]any{"reason": string(v.Reason)}
	if v.LineIndex >= 0 {
		details["line_index"] = v.LineIndex
	}
	if v.Imbalance != nil {
		details["currency"] = v.Imbalance.Currency
		details["dr"] = v.Imbalance.Debit.String()
		details["cr"] = v.Imbalance.Credit.String()
		details["diff"] = v.Imbalance.Difference.String()
	}
	return details
}

// AsViolation unwraps err into a *Violation when possible.
func AsViolation(err error) (*Violation, bool) {
	if err == nil {
		return nil, false
	}
	var v *Violation
	if errors.As(err, &v) && v != nil {
		return v, true
	}
	return nil, false
}

// ReasonOf returns the violation reason carried by err, or "" for nil/foreign errors.
func ReasonOf(err error) Reason {
	if v, ok := AsViolation(err); ok {
		return v.Reason
	}
	return ""
}
