package events

import (
	"context"
	"errors"
	"fmt"
	"strings"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/hanko-field/orders/internal/services"
)

const amqpExchangeType = "topic"

// Channel is the subset of *amqp.Channel the publisher needs.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// DialAMQP connects to the broker, opens a channel and declares the durable topic exchange.
func DialAMQP(url, exchange string) (*amqp.Connection, *amqp.Channel, error) {
	if strings.TrimSpace(url) == "" {
		return nil, nil, errors.New("amqp publisher: url is required")
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("amqp publisher: dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("amqp publisher: open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, amqpExchangeType, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, nil, fmt.Errorf("amqp publisher: declare exchange %s: %w", exchange, err)
	}
	return conn, ch, nil
}

// AMQPPublisher publishes to a topic exchange using the event type as the routing key.
type AMQPPublisher struct {
	channel  Channel
	exchange string
	prefix   string
}

var _ services.OrderEventPublisher = (*AMQPPublisher)(nil)

// NewAMQPPublisher wraps an open channel.
func NewAMQPPublisher(channel Channel, exchange, routingPrefix string) (*AMQPPublisher, error) {
	if channel == nil {
		return nil, errors.New("amqp publisher: channel is required")
	}
	if strings.TrimSpace(exchange) == "" {
		return nil, errors.New("amqp publisher: exchange is required")
	}
	return &AMQPPublisher{channel: channel, exchange: exchange, prefix: routingPrefix}, nil
}

// PublishOrderEvent publishes a persistent JSON message.
func (p *AMQPPublisher) PublishOrderEvent(ctx context.Context, event services.OrderEvent) error {
	if p == nil || p.channel == nil {
		return errNotInitialised
	}
	data, attrs, err := encode(event)
	if err != nil {
		return err
	}

	headers := make(amqp.Table, len(attrs))
	for key, value := range attrs {
		headers[key] = value
	}

	msg := amqp.Publishing{
		ContentType:  contentType,
		DeliveryMode: amqp.Persistent,
		MessageId:    event.OrderID + ":" + event.Type,
		Timestamp:    event.OccurredAt,
		Type:         event.Type,
		Headers:      headers,
		Body:         data,
	}
	if err := p.channel.PublishWithContext(ctx, p.exchange, topicName(p.prefix, event.Type), false, false, msg); err != nil {
		return fmt.Errorf("publish %s event: %w", event.Type, err)
	}
	return nil
}

// Close closes the channel.
func (p *AMQPPublisher) Close() error {
	return p.channel.Close()
}
