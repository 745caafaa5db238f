package outbox

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EnvelopeVersion is written into every new row. Subscribers branch on it
// when the envelope shape changes.
const EnvelopeVersion = 1

// ActorRef identifies who triggered the write behind an event.
type ActorRef struct {
	UserID         uuid.UUID `json:"userId"`
	OrganizationID uuid.UUID `json:"organizationId"`
	Role           string    `json:"role,omitempty"`
}

// PayloadEnvelope is the JSON stored in outbox_events.payload and published
// verbatim as the Pub/Sub message body. Data holds the event-specific body.
type PayloadEnvelope struct {
	Version        int             `json:"version"`
	EventID        string          `json:"eventId"`
	OrganizationID uuid.UUID       `json:"organizationId"`
	SmartCode      string          `json:"smartCode,omitempty"`
	OccurredAt     time.Time       `json:"occurredAt"`
	Actor          *ActorRef       `json:"actor,omitempty"`
	Data           json.RawMessage `json:"data"`
}

// DecodeEnvelope parses a stored payload and rejects versions newer than this
// build understands.
func DecodeEnvelope(raw []byte) (PayloadEnvelope, error) {
	var env PayloadEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return env, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Version > EnvelopeVersion {
		return env, fmt.Errorf("unsupported envelope version %d", env.Version)
	}
	return env, nil
}
