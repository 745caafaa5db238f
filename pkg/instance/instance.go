package instance

import (
	"os"
	"strings"
)

// GetID returns the process instance identifier used in worker log context.
// HERA_INSTANCE_ID wins, then the platform-provided HOSTNAME, then fallback.
func GetID(fallback string) string {
	for _, key := range []string{"HERA_INSTANCE_ID", "HOSTNAME"} {
		if id := strings.TrimSpace(os.Getenv(key)); id != "" {
			return id
		}
	}
	return fallback
}
