package events

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"cloud.google.com/go/pubsub"

	"github.com/hanko-field/orders/internal/services"
)

// PubSubPublisher publishes each event type to its own Pub/Sub topic.
type PubSubPublisher struct {
	client *pubsub.Client
	prefix string

	mu     sync.Mutex
	topics map[string]*pubsub.Topic
}

var _ services.OrderEventPublisher = (*PubSubPublisher)(nil)

// NewPubSubPublisher constructs a publisher over an existing client. Topics must already exist.
func NewPubSubPublisher(client *pubsub.Client, topicPrefix string) (*PubSubPublisher, error) {
	if client == nil {
		return nil, errors.New("pubsub publisher: client is required")
	}
	return &PubSubPublisher{
		client: client,
		prefix: topicPrefix,
		topics: make(map[string]*pubsub.Topic),
	}, nil
}

// PublishOrderEvent publishes the event and waits for the server acknowledgement.
func (p *PubSubPublisher) PublishOrderEvent(ctx context.Context, event services.OrderEvent) error {
	if p == nil || p.client == nil {
		return errNotInitialised
	}
	data, attrs, err := encode(event)
	if err != nil {
		return err
	}

	result := p.topic(event.Type).Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish %s event: %w", event.Type, err)
	}
	return nil
}

// Close flushes pending messages and stops every topic handle.
func (p *PubSubPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for name, topic := range p.topics {
		topic.Stop()
		delete(p.topics, name)
	}
	return nil
}

// Ping verifies that every order event topic exists.
func (p *PubSubPublisher) Ping(ctx context.Context) error {
	if p == nil || p.client == nil {
		return errNotInitialised
	}
	for _, eventType := range services.OrderEventTypes {
		ok, err := p.topic(eventType).Exists(ctx)
		if err != nil {
			return fmt.Errorf("check topic for %s: %w", eventType, err)
		}
		if !ok {
			return fmt.Errorf("topic %s does not exist", topicName(p.prefix, eventType))
		}
	}
	return nil
}

func (p *PubSubPublisher) topic(eventType string) *pubsub.Topic {
	p.mu.Lock()
	defer p.mu.Unlock()
	name := topicName(p.prefix, eventType)
	topic, ok := p.topics[name]
	if !ok {
		topic = p.client.Topic(name)
		p.topics[name] = topic
	}
	return topic
}
