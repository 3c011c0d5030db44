// Package registry decodes outbox rows into typed order events and decides
// how each one is addressed on Pub/Sub.
package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/angelmondragon/trailpack-backend/pkg/config"
	"github.com/angelmondragon/trailpack-backend/pkg/db/models"
	"github.com/angelmondragon/trailpack-backend/pkg/enums"
	"github.com/angelmondragon/trailpack-backend/pkg/outbox"
	"github.com/angelmondragon/trailpack-backend/pkg/outbox/payloads"
)

// OrderEvent is a decoded payload published on the orders topic.
type OrderEvent interface {
	OrderRef() int64
	Attributes() map[string]string
}

// EventDescriptor binds an event type to its topic and payload decoder.
type EventDescriptor struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	Topic         string
	decode        func(json.RawMessage) (OrderEvent, error)
}

// ResolvedEvent is an outbox row that passed validation.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	OrderID    int64
	Payload    OrderEvent
}

// OrderingKey groups all events of one order so subscribers see them in
// commit order.
func (r *ResolvedEvent) OrderingKey() string {
	if r == nil || r.OrderID <= 0 {
		return ""
	}
	return "order-" + strconv.FormatInt(r.OrderID, 10)
}

// Attributes merges the routing attributes with the payload's own.
// Routing keys win on collision.
func (r *ResolvedEvent) Attributes() map[string]string {
	attrs := map[string]string{}
	if r.Payload != nil {
		for k, v := range r.Payload.Attributes() {
			attrs[k] = v
		}
	}
	attrs["event_type"] = string(r.Descriptor.EventType)
	attrs["aggregate_type"] = string(r.Descriptor.AggregateType)
	attrs["order_id"] = strconv.FormatInt(r.OrderID, 10)
	attrs["schema_version"] = strconv.Itoa(r.Envelope.Version)
	if r.Envelope.EventID != "" {
		attrs["event_id"] = r.Envelope.EventID
	}
	if !r.Envelope.OccurredAt.IsZero() {
		attrs["occurred_at"] = r.Envelope.OccurredAt.UTC().Format(time.RFC3339Nano)
	}
	return attrs
}

// NonRetryableError marks a row that can never be published as stored.
type NonRetryableError struct {
	Err error
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error {
	return e.Err
}

// NewNonRetryableError wraps err so the publisher dead-letters the row.
func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

// IsNonRetryable reports whether err carries a NonRetryableError.
func IsNonRetryable(err error) bool {
	var target NonRetryableError
	return errors.As(err, &target)
}

// EventRegistry knows every order event the storefront writes.
type EventRegistry struct {
	entries map[enums.OutboxEventType]EventDescriptor
}

// NewEventRegistry routes all order events to the configured orders topic.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	topic := cfg.OrdersTopic
	if topic == "" {
		return nil, fmt.Errorf("orders topic is required")
	}

	reg := &EventRegistry{entries: map[enums.OutboxEventType]EventDescriptor{}}
	for _, desc := range []EventDescriptor{
		orderEvent[payloads.OrderCreatedEvent](enums.EventOrderCreated, topic),
		orderEvent[payloads.OrderPaidEvent](enums.EventOrderPaid, topic),
		orderEvent[payloads.OrderClaimedEvent](enums.EventOrderClaimed, topic),
		orderEvent[payloads.OrderStatusChangedEvent](enums.EventOrderStatusChanged, topic),
	} {
		reg.entries[desc.EventType] = desc
	}
	return reg, nil
}

func orderEvent[T any, P interface {
	*T
	OrderEvent
}](eventType enums.OutboxEventType, topic string) EventDescriptor {
	return EventDescriptor{
		EventType:     eventType,
		AggregateType: enums.AggregateOrder,
		Topic:         topic,
		decode: func(data json.RawMessage) (OrderEvent, error) {
			payload := P(new(T))
			if err := json.Unmarshal(data, payload); err != nil {
				return nil, err
			}
			return payload, nil
		},
	}
}

// Resolve validates the row and decodes its payload. Every failure is
// non-retryable: the row will not change on its own.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.entries[event.EventType]
	if !ok {
		return nil, NewNonRetryableError(fmt.Errorf("unsupported event type %s", event.EventType))
	}
	if desc.AggregateType != event.AggregateType {
		return nil, NewNonRetryableError(fmt.Errorf("%s belongs to %s, row says %s", event.EventType, desc.AggregateType, event.AggregateType))
	}
	if event.AggregateID <= 0 {
		return nil, NewNonRetryableError(fmt.Errorf("%s has no order id", event.EventType))
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(event.Payload, &envelope); err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode envelope: %w", err))
	}
	data := bytes.TrimSpace(envelope.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, NewNonRetryableError(fmt.Errorf("%s has an empty payload", event.EventType))
	}

	payload, err := desc.decode(data)
	if err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode %s payload: %w", event.EventType, err))
	}
	if ref := payload.OrderRef(); ref != event.AggregateID {
		return nil, NewNonRetryableError(fmt.Errorf("%s payload names order %d, row names %d", event.EventType, ref, event.AggregateID))
	}

	return &ResolvedEvent{
		Descriptor: desc,
		Envelope:   envelope,
		OrderID:    event.AggregateID,
		Payload:    payload,
	}, nil
}
