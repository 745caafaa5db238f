package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/heraerp/hera-api/pkg/db/models"
	"github.com/heraerp/hera-api/pkg/enums"
	"github.com/heraerp/hera-api/pkg/logger"
)

// DomainEvent is what services hand to Emit. Data is marshalled into the
// envelope's data field.
type DomainEvent struct {
	EventType      enums.OutboxEventType
	AggregateType  enums.OutboxAggregateType
	AggregateID    uuid.UUID
	OrganizationID uuid.UUID
	SmartCode      string
	Actor          *ActorRef
	Data           interface{}
	Version        int
	OccurredAt     time.Time
}

// Emitter is the surface write services depend on.
type Emitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event DomainEvent) error
}

type Service struct {
	repo *Repository
	logg *logger.Logger
}

func NewService(repo *Repository, logg *logger.Logger) *Service {
	return &Service{repo: repo, logg: logg}
}

// Emit writes the event inside tx so it commits or rolls back with the rows it
// describes.
func (s *Service) Emit(ctx context.Context, tx *gorm.DB, event DomainEvent) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if !event.EventType.IsValid() {
		return errors.New("invalid outbox event type " + string(event.EventType))
	}
	if event.AggregateType == "" {
		event.AggregateType = event.EventType.Aggregate()
	}
	if event.AggregateType != event.EventType.Aggregate() {
		return fmt.Errorf("event %s is not emitted for aggregate %s", event.EventType, event.AggregateType)
	}
	if event.AggregateID == uuid.Nil {
		return errors.New("outbox event requires aggregate id")
	}
	if event.OrganizationID == uuid.Nil {
		return errors.New("outbox event requires organization id")
	}
	payload, err := json.Marshal(event.Data)
	if err != nil {
		return err
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	if event.Version == 0 {
		event.Version = EnvelopeVersion
	}
	envelope := PayloadEnvelope{
		Version:        event.Version,
		EventID:        uuid.NewString(),
		OrganizationID: event.OrganizationID,
		SmartCode:      event.SmartCode,
		OccurredAt:     event.OccurredAt,
		Actor:          event.Actor,
		Data:           payload,
	}
	payloadJSON, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	row := models.OutboxEvent{
		ID:             uuid.New(),
		OrganizationID: event.OrganizationID,
		EventType:      event.EventType,
		AggregateType:  event.AggregateType,
		AggregateID:    event.AggregateID,
		Payload:        json.RawMessage(payloadJSON),
	}
	if err := s.repo.Insert(tx, row); err != nil {
		return err
	}
	if s.logg != nil {
		s.logg.Debug(s.logg.WithFields(ctx, map[string]any{
			"event_id":       envelope.EventID,
			"event_type":     string(event.EventType),
			"aggregate_id":   event.AggregateID.String(),
			"aggregate_type": string(event.AggregateType),
			"smart_code":     event.SmartCode,
		}), "outbox.event.queued")
	}
	return nil
}
