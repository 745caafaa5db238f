// Package guardrails approves HERA write payloads before they reach the
// database: Smart Code grammar, organization scope and GL double entry.
//
// Every function here is pure. Failures are returned as *Violation values and
// nothing is logged; callers decide how to report them.
package guardrails

// Context is the caller identity resolved for one inbound request.
type Context struct {
	OrganizationID string
	ActorID        string
	// SmartCode of the top-level operation, if any.
	SmartCode string
}

// Payload is the part of a write request the guardrails inspect.
type Payload struct {
	OrganizationID string
	Lines          []Line
}

// ValidatePayload runs the checks in fixed order and returns the first
// violation: context smart code, organization scope, then GL balance.
func ValidatePayload(gctx Context, payload Payload) error {
	if gctx.SmartCode != "" {
		if err := ValidateSmartCode(gctx.SmartCode); err != nil {
			return err
		}
	}
	if err := ValidateOrgScope(payload.OrganizationID, gctx.OrganizationID); err != nil {
		return err
	}
	if len(payload.Lines) > 0 {
		if err := ValidateGLBalance(payload.Lines); err != nil {
			return err
		}
	}
	return nil
}
