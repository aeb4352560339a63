// Package events publishes order events to the configured message bus. Every publisher sends the
// JSON order representation as the body and carries the event type and order id as metadata.
package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/hanko-field/orders/internal/services"
)

const (
	attrEventType  = "eventType"
	attrOrderID    = "orderId"
	attrOccurredAt = "occurredAt"
	contentType    = "application/json"
)

var errNotInitialised = errors.New("events: publisher not initialised")

// topicName maps an event type to its destination; the prefix lets environments share a broker.
func topicName(prefix, eventType string) string {
	return strings.TrimSpace(prefix) + eventType
}

func encode(event services.OrderEvent) ([]byte, map[string]string, error) {
	if strings.TrimSpace(event.Type) == "" {
		return nil, nil, errors.New("events: event type is required")
	}
	data, err := json.Marshal(event.Order)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal %s event: %w", event.Type, err)
	}
	attrs := map[string]string{
		attrEventType: event.Type,
		attrOrderID:   event.OrderID,
	}
	if !event.OccurredAt.IsZero() {
		attrs[attrOccurredAt] = event.OccurredAt.UTC().Format("2006-01-02T15:04:05.000Z07:00")
	}
	return data, attrs, nil
}
