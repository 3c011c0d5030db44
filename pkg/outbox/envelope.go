package outbox

import (
	"encoding/json"
	"time"
)

// ActorRef identifies who produced the event. Guest actors carry no user id.
type ActorRef struct {
	UserID *int64 `json:"userId,omitempty"`
	Guest  bool   `json:"guest,omitempty"`
}

// PayloadEnvelope is the stable payload structure stored in outbox_events.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}

// ActorFor builds the actor reference for an optional user.
func ActorFor(userID *int64) *ActorRef {
	if userID == nil {
		return &ActorRef{Guest: true}
	}
	id := *userID
	return &ActorRef{UserID: &id}
}
