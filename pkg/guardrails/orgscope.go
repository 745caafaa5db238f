package guardrails

// ValidateOrgScope requires the payload organization to equal the caller's
// resolved tenant. Identifiers are compared byte for byte.
func ValidateOrgScope(payloadOrgID, contextOrgID string) error {
	if payloadOrgID == "" {
		return newViolation(ReasonOrgFilterMissing, "organization_id is required")
	}
	if payloadOrgID != contextOrgID {
		return newViolation(ReasonOrgFilterMismatch, "organization_id does not match caller organization")
	}
	return nil
}
