package redis

import "strings"

const (
	keyNamespace      = "hera"
	idempotencyPrefix = "idempotency"
	rateLimitPrefix   = "rate_limit"
	processedPrefix   = "processed"
)

// IdempotencyKey namespaces an Idempotency-Key under its request scope.
func (c *Client) IdempotencyKey(scope, id string) string {
	return buildKey(idempotencyPrefix, scope, id)
}

// RateLimitKey namespaces a rate-limit window counter.
func (c *Client) RateLimitKey(scope string) string {
	return buildKey(rateLimitPrefix, scope)
}

// buildKey joins parts under the hera namespace, skipping empty parts.
func buildKey(parts ...string) string {
	clean := []string{keyNamespace}
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			clean = append(clean, part)
		}
	}
	return strings.Join(clean, ":")
}
