package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/packfinderz-orderdesk/internal/orders"
	"github.com/angelmondragon/packfinderz-orderdesk/pkg/enums"
)

const (
	// EventItemTransitioned is published after the backend confirms a dispatch.
	EventItemTransitioned = "order.item.transitioned"

	envelopeVersion = 1
)

// ActorRef identifies who produced the event.
type ActorRef struct {
	UserID  uuid.UUID       `json:"userId"`
	StoreID *uuid.UUID      `json:"storeId,omitempty"`
	Kind    enums.ActorKind `json:"kind"`
}

// Envelope is the stable payload structure published on the transitions topic.
type Envelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}

// Transition describes a confirmed change to an order or one of its items.
type Transition struct {
	Operation      enums.OperationKind  `json:"operation"`
	OrderID        string               `json:"orderId"`
	ItemID         string               `json:"itemId,omitempty"`
	Status         enums.LineItemStatus `json:"status,omitempty"`
	TrackingNumber string               `json:"trackingNumber,omitempty"`
}

func newEnvelope(actor orders.Actor, transition Transition, now time.Time) (Envelope, error) {
	data, err := json.Marshal(transition)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		Version:    envelopeVersion,
		EventID:    uuid.NewString(),
		OccurredAt: now.UTC(),
		Actor: &ActorRef{
			UserID:  actor.UserID,
			StoreID: actor.StoreID,
			Kind:    actor.Kind,
		},
		Data: data,
	}, nil
}
