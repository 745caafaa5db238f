package enums

import "fmt"

// EntityStatus maps to core_entities.status.
type EntityStatus string

const (
	EntityStatusActive   EntityStatus = "active"
	EntityStatusInactive EntityStatus = "inactive"
	EntityStatusArchived EntityStatus = "archived"
)

var validEntityStatuses = []EntityStatus{
	EntityStatusActive,
	EntityStatusInactive,
	EntityStatusArchived,
}

func (s EntityStatus) IsValid() bool {
	for _, candidate := range validEntityStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseEntityStatus converts raw input into EntityStatus.
func ParseEntityStatus(value string) (EntityStatus, error) {
	for _, candidate := range validEntityStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid entity status %q", value)
}
