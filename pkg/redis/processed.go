package redis

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// DefaultProcessedTTL covers Pub/Sub's maximum redelivery window.
const DefaultProcessedTTL = 7 * 24 * time.Hour

// ProcessedMarker records consumed event ids so redelivered messages are
// handled once per consumer.
type ProcessedMarker struct {
	client *Client
	ttl    time.Duration
}

func NewProcessedMarker(client *Client, ttl time.Duration) (*ProcessedMarker, error) {
	if client == nil {
		return nil, errors.New("redis client required")
	}
	if ttl <= 0 {
		ttl = DefaultProcessedTTL
	}
	return &ProcessedMarker{client: client, ttl: ttl}, nil
}

// CheckAndMarkProcessed reports whether the event was already seen and marks
// it when it was not.
func (m *ProcessedMarker) CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error) {
	set, err := m.client.SetNX(ctx, m.key(consumer, eventID), time.Now().UTC().Format(time.RFC3339), m.ttl)
	if err != nil {
		return false, err
	}
	return !set, nil
}

// Delete clears the marker so a failed attempt can be retried.
func (m *ProcessedMarker) Delete(ctx context.Context, consumer string, eventID uuid.UUID) error {
	return m.client.Del(ctx, m.key(consumer, eventID))
}

func (m *ProcessedMarker) key(consumer string, eventID uuid.UUID) string {
	return buildKey(processedPrefix, consumer, eventID.String())
}
