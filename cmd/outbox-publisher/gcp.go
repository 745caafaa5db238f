package main

import (
	"context"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"

	"github.com/heraerp/hera-api/pkg/db/models"
	"github.com/heraerp/hera-api/pkg/outbox/registry"
)

type publisherFactory func(topic string) publisher

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(context.Context) (string, error)
}

func gcpPublisherFactory(client pubSubClient) publisherFactory {
	return func(topic string) publisher {
		p := client.Publisher(topic)
		if p == nil {
			return nil
		}
		return gcpPublisher{p}
	}
}

type gcpPublisher struct {
	p *gcppubsub.Publisher
}

func (g gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	return gcpResult{r: g.p.Publish(ctx, msg), p: g.p, key: msg.OrderingKey}
}

type gcpResult struct {
	r   *gcppubsub.PublishResult
	p   *gcppubsub.Publisher
	key string
}

// Get waits for the server id. A failed ordered publish pauses its key, so the
// key is resumed for the retry the outbox schedules.
func (g gcpResult) Get(ctx context.Context) (string, error) {
	if g.r == nil {
		return "", errNilPublishResult
	}
	id, err := g.r.Get(ctx)
	if err != nil && g.key != "" {
		g.p.ResumePublish(g.key)
	}
	return id, err
}

// buildMessage carries the stored envelope as the body. Attributes let
// subscribers filter by tenant and smart code without decoding it. Messages
// for one aggregate share an ordering key.
func buildMessage(event models.OutboxEvent, resolved *registry.ResolvedEvent) *gcppubsub.Message {
	return &gcppubsub.Message{
		Data:        event.Payload,
		OrderingKey: event.AggregateID.String(),
		Attributes: map[string]string{
			"event_id":        resolved.Envelope.EventID,
			"organization_id": event.OrganizationID.String(),
			"smart_code":      resolved.Envelope.SmartCode,
			"event_type":      string(event.EventType),
			"aggregate_type":  string(event.AggregateType),
			"aggregate_id":    event.AggregateID.String(),
			"created_at":      event.CreatedAt.Format(time.RFC3339Nano),
		},
	}
}
