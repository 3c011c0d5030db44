package payloads

import (
	"strconv"
	"time"
)

// Every order payload names its order and exposes the Pub/Sub attributes
// subscribers filter on without decoding the body.

func (e OrderCreatedEvent) OrderRef() int64 { return e.OrderID }

func (e OrderCreatedEvent) Attributes() map[string]string {
	buyer := "user"
	if e.Guest {
		buyer = "guest"
	}
	return map[string]string{
		"buyer":       buyer,
		"currency":    string(e.Currency),
		"total_cents": strconv.FormatInt(e.TotalCents, 10),
		"item_count":  strconv.Itoa(len(e.Items)),
	}
}

func (e OrderPaidEvent) OrderRef() int64 { return e.OrderID }

func (e OrderPaidEvent) Attributes() map[string]string {
	attrs := map[string]string{
		"currency":    string(e.Currency),
		"total_cents": strconv.FormatInt(e.TotalCents, 10),
	}
	if !e.PaidAt.IsZero() {
		attrs["paid_at"] = e.PaidAt.UTC().Format(time.RFC3339)
	}
	return attrs
}

func (e OrderClaimedEvent) OrderRef() int64 { return e.OrderID }

func (e OrderClaimedEvent) Attributes() map[string]string {
	return map[string]string{"user_id": strconv.FormatInt(e.UserID, 10)}
}

func (e OrderStatusChangedEvent) OrderRef() int64 { return e.OrderID }

func (e OrderStatusChangedEvent) Attributes() map[string]string {
	return map[string]string{
		"from_status": string(e.From),
		"to_status":   string(e.To),
	}
}
