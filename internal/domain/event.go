package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType enumerates the domain event types this system emits.
type EventType string

const (
	EventWalletTransactionCreated EventType = "wallet.transaction.created"
	EventAMLAlertCreated          EventType = "aml.alert.created"

	// EventAMLAnalysisDeadLettered marks a wallet.transaction.created event
	// the AML analyzer could not process after exhausting every retry (spec
	// §4.6.4). Carries the original event's payload for later replay.
	EventAMLAnalysisDeadLettered EventType = "aml.analysis.dead_lettered"
)

// AggregateType enumerates the aggregate root types for outbox events.
type AggregateType string

const (
	AggregateWallet AggregateType = "wallet"
	AggregateAML    AggregateType = "aml"
)

// OutboxDraft is the payload written to the event_outbox table, and also
// the message type carried on the in-process event bus before it is
// persisted. Column naming follows the camelCase convention of the
// event_outbox schema.
type OutboxDraft struct {
	EventID       uuid.UUID       `json:"eventId"`
	AggregateType AggregateType   `json:"aggregateType"`
	AggregateID   string          `json:"aggregateId"`
	EventType     EventType       `json:"eventType"`
	PartitionKey  string          `json:"partitionKey"`
	Headers       json.RawMessage `json:"headers"`
	Payload       json.RawMessage `json:"payload"`
	OccurredAt    time.Time       `json:"occurredAt"`
}

// NewWalletTransactionCreatedEvent builds the outbox draft emitted on every
// committed wallet operation. Never fails the operation that produced it;
// callers that cannot marshal tx still get a draft with an empty payload.
func NewWalletTransactionCreatedEvent(tx *Transaction) OutboxDraft {
	payload, _ := json.Marshal(tx)
	return OutboxDraft{
		EventID:       uuid.New(),
		AggregateType: AggregateWallet,
		AggregateID:   tx.ID.String(),
		EventType:     EventWalletTransactionCreated,
		PartitionKey:  tx.PlayerID,
		Headers:       json.RawMessage(`{}`),
		Payload:       payload,
		OccurredAt:    time.Now(),
	}
}

// NewAMLAlertCreatedEvent builds the outbox draft for a freshly raised alert.
func NewAMLAlertCreatedEvent(alert *AMLAlert) OutboxDraft {
	payload, _ := json.Marshal(alert)
	return OutboxDraft{
		EventID:       uuid.New(),
		AggregateType: AggregateAML,
		AggregateID:   alert.ID.String(),
		EventType:     EventAMLAlertCreated,
		PartitionKey:  alert.PlayerID,
		Headers:       json.RawMessage(`{}`),
		Payload:       payload,
		OccurredAt:    time.Now(),
	}
}

// NewAMLDeadLetterEvent wraps an event the AML analyzer could not process
// after exhausting retries, preserving its original payload so an operator
// can inspect or replay it later.
func NewAMLDeadLetterEvent(original OutboxDraft, failureReason string) OutboxDraft {
	headers, _ := json.Marshal(map[string]string{
		"originalEventId":   original.EventID.String(),
		"originalEventType": string(original.EventType),
		"failureReason":     failureReason,
	})
	return OutboxDraft{
		EventID:       uuid.New(),
		AggregateType: AggregateAML,
		AggregateID:   original.AggregateID,
		EventType:     EventAMLAnalysisDeadLettered,
		PartitionKey:  original.PartitionKey,
		Headers:       headers,
		Payload:       original.Payload,
		OccurredAt:    time.Now(),
	}
}
