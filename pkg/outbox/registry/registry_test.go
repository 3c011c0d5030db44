package registry

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/angelmondragon/trailpack-backend/pkg/config"
	"github.com/angelmondragon/trailpack-backend/pkg/db/models"
	"github.com/angelmondragon/trailpack-backend/pkg/enums"
	"github.com/angelmondragon/trailpack-backend/pkg/outbox"
	"github.com/angelmondragon/trailpack-backend/pkg/outbox/payloads"
	"github.com/google/uuid"
)

func TestEventRegistryResolveSuccess(t *testing.T) {
	reg := newTestEventRegistry(t)

	productID := int64(4)
	payloadBytes := mustMarshal(t, payloads.OrderCreatedEvent{
		OrderID:       12,
		Guest:         true,
		Currency:      enums.CurrencyGBP,
		SubtotalCents: 2500,
		TotalCents:    2500,
		Items:         []payloads.OrderLine{{ProductID: &productID, Quantity: 1, PriceCents: 2500}},
	})

	event := models.OutboxEvent{
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   12,
		Payload:       mustEnvelope(t, payloadBytes),
	}

	resolved, err := reg.Resolve(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved.Descriptor.Topic != "orders-topic" {
		t.Fatalf("unexpected topic %q", resolved.Descriptor.Topic)
	}
	payload, ok := resolved.Payload.(*payloads.OrderCreatedEvent)
	if !ok {
		t.Fatalf("unexpected payload type %T", resolved.Payload)
	}
	if payload.OrderID != 12 || len(payload.Items) != 1 || *payload.Items[0].ProductID != productID {
		t.Fatalf("payload mismatch %+v", payload)
	}
	if resolved.Envelope.EventID == "" {
		t.Fatalf("envelope missing event id")
	}
	if key := resolved.OrderingKey(); key != "order-12" {
		t.Fatalf("unexpected ordering key %q", key)
	}
}

func TestResolvedEventAttributesCarryPayloadFields(t *testing.T) {
	reg := newTestEventRegistry(t)
	event := models.OutboxEvent{
		EventType:     enums.EventOrderStatusChanged,
		AggregateType: enums.AggregateOrder,
		AggregateID:   31,
		Payload: mustEnvelope(t, mustMarshal(t, payloads.OrderStatusChangedEvent{
			OrderID: 31,
			From:    enums.OrderStatusPaid,
			To:      enums.OrderStatusShipped,
		})),
	}

	resolved, err := reg.Resolve(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	attrs := resolved.Attributes()
	want := map[string]string{
		"event_type":     string(enums.EventOrderStatusChanged),
		"aggregate_type": string(enums.AggregateOrder),
		"order_id":       "31",
		"schema_version": "1",
		"from_status":    string(enums.OrderStatusPaid),
		"to_status":      string(enums.OrderStatusShipped),
		"event_id":       resolved.Envelope.EventID,
	}
	for k, v := range want {
		if attrs[k] != v {
			t.Fatalf("attribute %s: want %q got %q", k, v, attrs[k])
		}
	}
	if attrs["occurred_at"] == "" {
		t.Fatalf("occurred_at attribute missing")
	}
}

func TestResolvedEventAttributesPerEventType(t *testing.T) {
	paidAt := time.Date(2025, 1, 5, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		name    string
		payload OrderEvent
		want    map[string]string
	}{
		{
			name:    "created by guest",
			payload: &payloads.OrderCreatedEvent{OrderID: 1, Guest: true, Currency: enums.CurrencyGBP, TotalCents: 2499, Items: make([]payloads.OrderLine, 2)},
			want:    map[string]string{"buyer": "guest", "total_cents": "2499", "item_count": "2", "currency": string(enums.CurrencyGBP)},
		},
		{
			name:    "paid",
			payload: &payloads.OrderPaidEvent{OrderID: 1, TotalCents: 500, Currency: enums.CurrencyGBP, PaidAt: paidAt},
			want:    map[string]string{"total_cents": "500", "paid_at": "2025-01-05T12:00:00Z"},
		},
		{
			name:    "claimed",
			payload: &payloads.OrderClaimedEvent{OrderID: 1, UserID: 9},
			want:    map[string]string{"user_id": "9"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resolved := &ResolvedEvent{OrderID: 1, Payload: tc.payload}
			attrs := resolved.Attributes()
			for k, v := range tc.want {
				if attrs[k] != v {
					t.Fatalf("attribute %s: want %q got %q", k, v, attrs[k])
				}
			}
		})
	}
}

func TestOrderingKeyRequiresOrder(t *testing.T) {
	var missing *ResolvedEvent
	if key := missing.OrderingKey(); key != "" {
		t.Fatalf("expected empty key, got %q", key)
	}
	if key := (&ResolvedEvent{}).OrderingKey(); key != "" {
		t.Fatalf("expected empty key, got %q", key)
	}
}

func TestEventRegistryCoversEveryOrderEvent(t *testing.T) {
	reg := newTestEventRegistry(t)
	for _, eventType := range []enums.OutboxEventType{
		enums.EventOrderCreated,
		enums.EventOrderPaid,
		enums.EventOrderClaimed,
		enums.EventOrderStatusChanged,
	} {
		desc, ok := reg.entries[eventType]
		if !ok {
			t.Fatalf("missing descriptor for %s", eventType)
		}
		if desc.Topic != "orders-topic" || desc.AggregateType != enums.AggregateOrder {
			t.Fatalf("unexpected descriptor %+v", desc)
		}
	}
}

func TestEventRegistryRejectsBadRows(t *testing.T) {
	reg := newTestEventRegistry(t)

	cases := []struct {
		name  string
		event models.OutboxEvent
	}{
		{
			name: "unknown event",
			event: models.OutboxEvent{
				EventType:     enums.OutboxEventType("cart_abandoned"),
				AggregateType: enums.AggregateOrder,
				AggregateID:   1,
				Payload:       mustEnvelope(t, []byte(`{}`)),
			},
		},
		{
			name: "aggregate mismatch",
			event: models.OutboxEvent{
				EventType:     enums.EventOrderPaid,
				AggregateType: enums.OutboxAggregateType("cart"),
				AggregateID:   1,
				Payload:       mustEnvelope(t, []byte(`{"order_id":1}`)),
			},
		},
		{
			name: "missing aggregate id",
			event: models.OutboxEvent{
				EventType:     enums.EventOrderPaid,
				AggregateType: enums.AggregateOrder,
				Payload:       mustEnvelope(t, []byte(`{"order_id":1}`)),
			},
		},
		{
			name: "null payload",
			event: models.OutboxEvent{
				EventType:     enums.EventOrderClaimed,
				AggregateType: enums.AggregateOrder,
				AggregateID:   1,
				Payload:       mustEnvelope(t, []byte("null")),
			},
		},
		{
			name: "payload names another order",
			event: models.OutboxEvent{
				EventType:     enums.EventOrderClaimed,
				AggregateType: enums.AggregateOrder,
				AggregateID:   1,
				Payload:       mustEnvelope(t, []byte(`{"order_id":2,"user_id":5}`)),
			},
		},
		{
			name: "broken envelope",
			event: models.OutboxEvent{
				EventType:     enums.EventOrderClaimed,
				AggregateType: enums.AggregateOrder,
				AggregateID:   1,
				Payload:       json.RawMessage(`{not json`),
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := reg.Resolve(tc.event)
			if err == nil {
				t.Fatalf("expected error")
			}
			if !IsNonRetryable(err) {
				t.Fatalf("expected non-retryable error, got %T", err)
			}
		})
	}
}

func TestNewEventRegistryRequiresTopic(t *testing.T) {
	if _, err := NewEventRegistry(config.PubSubConfig{}); err == nil {
		t.Fatal("expected missing orders topic to fail")
	}
}

func newTestEventRegistry(t *testing.T) *EventRegistry {
	t.Helper()
	reg, err := NewEventRegistry(config.PubSubConfig{OrdersTopic: "orders-topic"})
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}
	return reg
}

func mustMarshal(t *testing.T, v interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return data
}

func mustEnvelope(t *testing.T, payload []byte) json.RawMessage {
	t.Helper()
	envelope := outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       payload,
	}
	data, err := json.Marshal(envelope)
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return data
}
