// Package ledgeraudit re-checks posted transactions against the GL balance
// guardrail using the rows actually stored, independent of the write path.
package ledgeraudit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/heraerp/hera-api/internal/transactions"
	"github.com/heraerp/hera-api/pkg/db/models"
	"github.com/heraerp/hera-api/pkg/enums"
	"github.com/heraerp/hera-api/pkg/guardrails"
	"github.com/heraerp/hera-api/pkg/logger"
	"github.com/heraerp/hera-api/pkg/metrics"
	"github.com/heraerp/hera-api/pkg/outbox"
	"github.com/heraerp/hera-api/pkg/outbox/payloads"
)

const (
	consumerName = "ledger_audit"
	opAudit      = "audit.transaction_posted"

	reasonLineCountMismatch = "LINE_COUNT_MISMATCH"
)

type lineReader interface {
	FindLines(ctx context.Context, orgID, transactionID uuid.UUID) ([]models.UniversalTransactionLine, error)
}

type idempotencyChecker interface {
	CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	Delete(ctx context.Context, consumer string, eventID uuid.UUID) error
}

// Consumer audits transaction_posted events from the domain subscription.
type Consumer struct {
	lines        lineReader
	manager      idempotencyChecker
	subscription *pubsub.Subscriber
	metrics      *metrics.GuardrailMetrics
	logg         *logger.Logger
}

func NewConsumer(lines lineReader, manager idempotencyChecker, subscription *pubsub.Subscriber, m *metrics.GuardrailMetrics, logg *logger.Logger) (*Consumer, error) {
	if lines == nil {
		return nil, errors.New("transaction line reader required")
	}
	if manager == nil {
		return nil, errors.New("idempotency manager required")
	}
	if logg == nil {
		return nil, errors.New("logger required")
	}
	return &Consumer{
		lines:        lines,
		manager:      manager,
		subscription: subscription,
		metrics:      m,
		logg:         logg,
	}, nil
}

// Run processes messages until the context is canceled or the subscription errors.
func (c *Consumer) Run(ctx context.Context) error {
	if c.subscription == nil {
		return errors.New("domain subscription not configured")
	}
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if c.process(ctx, msg).nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	nack bool
	// finding is the audit outcome reason; empty means balanced or skipped.
	finding string
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	eventType := enums.OutboxEventType(msg.Attributes["event_type"])
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": string(eventType),
		"event_id":   msg.Attributes["event_id"],
	})
	if eventType != enums.EventTransactionPosted {
		return processResult{}
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return processResult{}
	}
	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "envelope event id invalid", err)
		return processResult{}
	}

	var event payloads.TransactionPostedEvent
	if err := json.Unmarshal(envelope.Data, &event); err != nil {
		c.logg.Error(logCtx, "failed to decode transaction payload", err)
		return processResult{}
	}
	logCtx = c.logg.WithOrganizationID(logCtx, envelope.OrganizationID.String())
	logCtx = c.logg.WithFields(logCtx, map[string]any{
		"transaction_id": event.TransactionID.String(),
		"smart_code":     event.SmartCode,
	})

	already, err := c.manager.CheckAndMarkProcessed(ctx, consumerName, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		c.logg.Debug(logCtx, "event already audited")
		return processResult{}
	}

	rows, err := c.lines.FindLines(ctx, envelope.OrganizationID, event.TransactionID)
	if err != nil {
		c.logg.Error(logCtx, "failed to load transaction lines", err)
		_ = c.manager.Delete(ctx, consumerName, eventID)
		return processResult{nack: true}
	}

	if len(rows) != event.LineCount {
		c.logg.Error(c.logg.WithFields(logCtx, map[string]any{
			"stored_lines":   len(rows),
			"expected_lines": event.LineCount,
		}), "ledger audit found missing lines", fmt.Errorf("stored %d lines, event announced %d", len(rows), event.LineCount))
		c.metrics.ObserveRejected(opAudit, reasonLineCountMismatch, len(rows))
		return processResult{finding: reasonLineCountMismatch}
	}

	if err := guardrails.ValidateGLBalance(transactions.StoredGuardrailLines(rows)); err != nil {
		v, ok := guardrails.AsViolation(err)
		if !ok {
			c.logg.Error(logCtx, "ledger audit failed", err)
			return processResult{}
		}
		c.logg.Error(c.logg.WithFields(logCtx, v.Details()), "ledger audit found stored transaction out of balance", err)
		c.metrics.ObserveRejected(opAudit, string(v.Reason), len(rows))
		return processResult{finding: string(v.Reason)}
	}

	c.metrics.ObserveAccepted(opAudit, len(rows))
	c.logg.Info(logCtx, "ledger audit passed")
	return processResult{}
}
