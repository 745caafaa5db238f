package guardrails

import "regexp"

// smartCodePattern is HERA.<DOMAIN>.<3..8 segments>.v<N>, anchored and case sensitive.
var smartCodePattern = regexp.MustCompile(`^HERA\.[A-Z0-9]{3,15}(?:\.[A-Z0-9_]{2,30}){3,8}\.v[0-9]+$`)

// ValidateSmartCode rejects empty codes and codes outside the Smart Code grammar.
func ValidateSmartCode(code string) error {
	if code == "" {
		return newViolation(ReasonSmartCodeMissing, "smart code is required")
	}
	if !smartCodePattern.MatchString(code) {
		return newViolation(ReasonSmartCodeRegexFail, "smart code does not match HERA grammar")
	}
	return nil
}

// ValidateLineSmartCodes checks every line that carries a smart code. Lines
// without one are skipped.
func ValidateLineSmartCodes(lines []Line) error {
	for i, line := range lines {
		if line.SmartCode == "" {
			continue
		}
		if err := ValidateSmartCode(line.SmartCode); err != nil {
			v, _ := AsViolation(err)
			v.LineIndex = i
			return v
		}
	}
	return nil
}
