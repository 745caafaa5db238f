package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateEntity       OutboxAggregateType = "entity"
	AggregateRelationship OutboxAggregateType = "relationship"
	AggregateTransaction  OutboxAggregateType = "transaction"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateEntity,
	AggregateRelationship,
	AggregateTransaction,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventEntityCreated       OutboxEventType = "entity_created"
	EventEntityUpdated       OutboxEventType = "entity_updated"
	EventDynamicFieldSet     OutboxEventType = "dynamic_field_set"
	EventRelationshipCreated OutboxEventType = "relationship_created"
	EventTransactionPosted   OutboxEventType = "transaction_posted"
)

var validOutboxEventTypes = []OutboxEventType{
	EventEntityCreated,
	EventEntityUpdated,
	EventDynamicFieldSet,
	EventRelationshipCreated,
	EventTransactionPosted,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}

// Aggregate returns the aggregate an event type is emitted for.
func (e OutboxEventType) Aggregate() OutboxAggregateType {
	switch e {
	case EventEntityCreated, EventEntityUpdated, EventDynamicFieldSet:
		return AggregateEntity
	case EventRelationshipCreated:
		return AggregateRelationship
	case EventTransactionPosted:
		return AggregateTransaction
	default:
		return ""
	}
}

// OutboxDLQErrorReason records why a row left the outbox without publishing.
type OutboxDLQErrorReason string

const (
	OutboxDLQReasonMaxAttempts  OutboxDLQErrorReason = "max_attempts"
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
	OutboxDLQReasonUnroutable   OutboxDLQErrorReason = "unroutable"
)

// IsValid reports whether the value is a known dead-letter reason.
func (r OutboxDLQErrorReason) IsValid() bool {
	switch r {
	case OutboxDLQReasonMaxAttempts, OutboxDLQReasonNonRetryable, OutboxDLQReasonUnroutable:
		return true
	}
	return false
}
