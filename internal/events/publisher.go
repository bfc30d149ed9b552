package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"

	"github.com/angelmondragon/packfinderz-orderdesk/internal/orders"
)

const defaultPublishTimeout = 5 * time.Second

// Publisher announces confirmed transitions.
type Publisher interface {
	PublishTransition(ctx context.Context, actor orders.Actor, transition Transition) error
}

type topicPublisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(context.Context) (string, error)
}

// PubSubPublisher publishes transition envelopes to a Pub/Sub topic.
type PubSubPublisher struct {
	topic   topicPublisher
	timeout time.Duration
	now     func() time.Time
}

// NewPubSubPublisher wraps a Pub/Sub publisher handle.
func NewPubSubPublisher(p *gcppubsub.Publisher) (*PubSubPublisher, error) {
	if p == nil {
		return nil, errors.New("pubsub publisher is required")
	}
	return newPublisher(&gcpPublisher{Publisher: p}), nil
}

func newPublisher(topic topicPublisher) *PubSubPublisher {
	return &PubSubPublisher{topic: topic, timeout: defaultPublishTimeout, now: time.Now}
}

func (p *PubSubPublisher) PublishTransition(ctx context.Context, actor orders.Actor, transition Transition) error {
	envelope, err := newEnvelope(actor, transition, p.now())
	if err != nil {
		return fmt.Errorf("build envelope: %w", err)
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}

	msg := &gcppubsub.Message{
		Data:        payload,
		OrderingKey: transition.OrderID,
		Attributes: map[string]string{
			"event_id":     envelope.EventID,
			"event_type":   EventItemTransitioned,
			"aggregate_id": transition.OrderID,
			"operation":    transition.Operation.String(),
			"created_at":   envelope.OccurredAt.Format(time.RFC3339Nano),
		},
	}

	publishCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	result := p.topic.Publish(publishCtx, msg)
	if result == nil {
		return errors.New("publisher returned nil result")
	}
	if _, err := result.Get(publishCtx); err != nil {
		return fmt.Errorf("publish %s: %w", EventItemTransitioned, err)
	}
	return nil
}

// Noop drops every event.
type Noop struct{}

func (Noop) PublishTransition(context.Context, orders.Actor, Transition) error { return nil }

type gcpPublisher struct {
	*gcppubsub.Publisher
}

func (p *gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	if p == nil || p.Publisher == nil {
		return nil
	}
	if !p.Publisher.EnableMessageOrdering {
		msg.OrderingKey = ""
	}
	return &gcpPublishResult{PublishResult: p.Publisher.Publish(ctx, msg), publisher: p.Publisher, key: msg.OrderingKey}
}

type gcpPublishResult struct {
	*gcppubsub.PublishResult
	publisher *gcppubsub.Publisher
	key       string
}

// Get waits for the server ack. A failed ordered publish pauses its key until resumed, so
// the key is resumed here to let the next transition of that order through.
func (r *gcpPublishResult) Get(ctx context.Context) (string, error) {
	if r == nil || r.PublishResult == nil {
		return "", errors.New("publish result is nil")
	}
	id, err := r.PublishResult.Get(ctx)
	if err != nil && r.key != "" {
		r.publisher.ResumePublish(r.key)
	}
	return id, err
}
