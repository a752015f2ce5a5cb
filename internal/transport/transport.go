// Package transport adapts the event bus: it consumes request topics,
// delivers envelopes to registered handlers, and publishes response topics.
// Delivery is at-least-once; handlers must be idempotent with respect to
// the correlation identifier.
package transport

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Logical topic names.
const (
	TopicDocumentIndexRequested = "intelligence.document-index-requested"
	TopicDocumentIndexCompleted = "intelligence.document-index-completed"
	TopicDocumentIndexFailed    = "intelligence.document-index-failed"
	TopicSearchRequested        = "intelligence.search-requested"
	TopicSearchCompleted        = "intelligence.search-completed"
	TopicSearchFailed           = "intelligence.search-failed"
	TopicTreeIndex              = "intelligence.tree-index"
)

// DLQSuffix is appended to a topic to form its dead-letter subject.
const DLQSuffix = ".dlq"

// Envelope is the unit of transport. The core treats it as opaque except
// for these fields.
type Envelope struct {
	EventType       string          `json:"event_type"`
	CorrelationID   string          `json:"correlation_id"`
	Payload         json.RawMessage `json:"payload"`
	EmittedAt       time.Time       `json:"emitted_at"`
	SourceComponent string          `json:"source_component"`
}

// NewEnvelope wraps payload for publication, marshalling it and stamping
// the emission time. A missing correlation ID gets a fresh one.
func NewEnvelope(eventType, correlationID, sourceComponent string, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	if correlationID == "" {
		correlationID = uuid.New().String()
	}
	return Envelope{
		EventType:       eventType,
		CorrelationID:   correlationID,
		Payload:         raw,
		EmittedAt:       time.Now().UTC(),
		SourceComponent: sourceComponent,
	}, nil
}

// Handler processes one delivered envelope. On the NATS transport a non-nil
// error triggers redelivery up to its redelivery budget, then
// dead-lettering; the memory transport discards handler errors.
type Handler func(ctx context.Context, env Envelope) error

// Subscription is a live topic subscription.
type Subscription interface {
	Unsubscribe() error
}

// Transport is the event bus contract.
type Transport interface {
	Publish(ctx context.Context, topic string, env Envelope) error
	// Subscribe registers handler for topic within a queue group: envelopes
	// are delivered to one member of the group (worker semantics).
	Subscribe(topic, group string, handler Handler) (Subscription, error)
	Close() error
}
