package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/heraerp/hera-api/pkg/db/models"
	"github.com/heraerp/hera-api/pkg/enums"
	"github.com/heraerp/hera-api/pkg/outbox"
	"github.com/heraerp/hera-api/pkg/outbox/registry"
)

type outcomeKind int

const (
	outcomePublished outcomeKind = iota
	outcomeRetry
	outcomeDeadLetter
)

// outcome is what one publish attempt decided for a claimed row.
type outcome struct {
	kind     outcomeKind
	reason   enums.OutboxDLQErrorReason
	err      error
	topic    string
	envelope outbox.PayloadEnvelope
}

// processBatch claims due rows and records one outcome per row. Once a row of
// an aggregate is scheduled for retry, later rows of the same aggregate in
// the batch are held until that retry so subscribers never see them early.
func (s *Service) processBatch(ctx context.Context) (bool, error) {
	processed := false
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		events, err := s.repo.FetchUnpublishedForPublish(tx, s.batchSize, s.maxAttempts)
		if err != nil {
			return err
		}
		s.metrics.ObserveBatch(len(events))
		if len(events) == 0 {
			return nil
		}
		processed = true

		held := map[uuid.UUID]time.Time{}
		for _, event := range events {
			if until, ok := held[event.AggregateID]; ok {
				if err := s.repo.DeferTx(tx, event.ID, until); err != nil {
					return fmt.Errorf("defer %s: %w", event.ID, err)
				}
				s.logg.Debug(s.logg.WithFields(ctx, s.eventFields(event, outcome{})), "outbox.event.held")
				continue
			}

			out := s.attempt(ctx, event)
			retryAt, err := s.record(ctx, tx, event, out)
			if err != nil {
				return err
			}
			if !retryAt.IsZero() {
				held[event.AggregateID] = retryAt
			}
		}
		return nil
	})
	return processed, err
}

func (s *Service) attempt(ctx context.Context, event models.OutboxEvent) outcome {
	resolved, err := s.registry.Resolve(event)
	if err != nil {
		reason := enums.OutboxDLQReasonNonRetryable
		if errors.Is(err, registry.ErrUnsupportedEvent) {
			reason = enums.OutboxDLQReasonUnroutable
		}
		return outcome{kind: outcomeDeadLetter, reason: reason, err: err}
	}

	out := outcome{topic: resolved.Descriptor.Topic, envelope: resolved.Envelope}
	pub := s.publishers(out.topic)
	if pub == nil {
		out.kind = outcomeDeadLetter
		out.reason = enums.OutboxDLQReasonUnroutable
		out.err = fmt.Errorf("no publisher for topic %s", out.topic)
		return out
	}

	started := time.Now()
	err = send(ctx, pub, buildMessage(event, resolved))
	s.metrics.ObserveDuration(string(event.EventType), time.Since(started))

	var nonRetry registry.NonRetryableError
	switch {
	case err == nil:
		out.kind = outcomePublished
	case errors.As(err, &nonRetry):
		out.kind = outcomeDeadLetter
		out.reason = enums.OutboxDLQReasonNonRetryable
		out.err = err
	case event.AttemptCount+1 >= s.maxAttempts:
		out.kind = outcomeDeadLetter
		out.reason = enums.OutboxDLQReasonMaxAttempts
		out.err = fmt.Errorf("max publish attempts reached: %w", err)
	default:
		out.kind = outcomeRetry
		out.err = err
	}
	return out
}

func send(ctx context.Context, pub publisher, msg *gcppubsub.Message) error {
	ctx, cancel := context.WithTimeout(ctx, defaultPublishTimeout)
	defer cancel()
	result := pub.Publish(ctx, msg)
	if result == nil {
		return registry.NewNonRetryableError(errNilPublishResult)
	}
	_, err := result.Get(ctx)
	return err
}

// record persists the outcome inside tx. It returns the scheduled retry time
// for retried rows and the zero time otherwise.
func (s *Service) record(ctx context.Context, tx *gorm.DB, event models.OutboxEvent, out outcome) (time.Time, error) {
	fields := s.eventFields(event, out)
	eventType := string(event.EventType)

	switch out.kind {
	case outcomePublished:
		if err := s.repo.MarkPublishedTx(tx, event.ID); err != nil {
			return time.Time{}, fmt.Errorf("mark published %s: %w", event.ID, err)
		}
		s.metrics.IncPublished(eventType)
		s.logg.Info(s.logg.WithFields(ctx, fields), "outbox.event.published")
		return time.Time{}, nil

	case outcomeRetry:
		attempt := event.AttemptCount + 1
		retryAt := s.now().Add(s.backoff.retry(attempt))
		fields["attempt_count"] = attempt
		fields["next_attempt_at"] = retryAt.Format(time.RFC3339Nano)
		fields["error"] = out.err.Error()
		if err := s.repo.MarkFailedTx(tx, event.ID, out.err, retryAt); err != nil {
			return time.Time{}, fmt.Errorf("mark failure %s: %w", event.ID, err)
		}
		s.metrics.IncFailed(eventType)
		s.logg.Warn(s.logg.WithFields(ctx, fields), "outbox.event.retry_scheduled")
		return retryAt, nil

	default:
		fields["error_reason"] = string(out.reason)
		fields["error"] = out.err.Error()
		if err := s.deadLetter(tx, event, out); err != nil {
			return time.Time{}, err
		}
		s.metrics.IncDeadLettered(eventType, string(out.reason))
		s.logg.Warn(s.logg.WithFields(ctx, fields), "outbox.event.dead_lettered")
		return time.Time{}, nil
	}
}

// deadLetter copies the row into outbox_dlq and removes it from the queue in
// the same transaction.
func (s *Service) deadLetter(tx *gorm.DB, event models.OutboxEvent, out outcome) error {
	msg := out.err.Error()
	entry := models.OutboxDLQ{
		ID:             uuid.New(),
		EventID:        event.ID,
		OrganizationID: event.OrganizationID,
		EventType:      event.EventType,
		AggregateType:  event.AggregateType,
		AggregateID:    event.AggregateID,
		Payload:        event.Payload,
		ErrorReason:    out.reason,
		ErrorMessage:   &msg,
		AttemptCount:   event.AttemptCount,
		FailedAt:       s.now(),
	}
	if err := s.dlq.InsertTx(tx, entry); err != nil {
		return fmt.Errorf("insert dlq %s: %w", event.ID, err)
	}
	if err := s.repo.MarkTerminalTx(tx, event.ID); err != nil {
		return fmt.Errorf("mark terminal %s: %w", event.ID, err)
	}
	return nil
}

func (s *Service) eventFields(event models.OutboxEvent, out outcome) map[string]any {
	fields := map[string]any{
		"outbox_id":       event.ID.String(),
		"organization_id": event.OrganizationID.String(),
		"event_type":      string(event.EventType),
		"aggregate_type":  string(event.AggregateType),
		"aggregate_id":    event.AggregateID.String(),
		"attempt_count":   event.AttemptCount,
	}
	if out.envelope.EventID != "" {
		fields["event_id"] = out.envelope.EventID
		fields["smart_code"] = out.envelope.SmartCode
	}
	if out.topic != "" {
		fields["topic"] = out.topic
	}
	if event.LastError != nil {
		fields["last_error"] = *event.LastError
	}
	return fields
}
