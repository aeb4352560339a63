package services

import (
	"errors"
	"testing"

	domain "github.com/hanko-field/orders/internal/domain"
)

func statusPtr(s OrderStatus) *OrderStatus { return &s }

func stringPtr(s string) *string { return &s }

func TestCheckTransitionShippedFreezesOrder(t *testing.T) {
	shipped := Order{ID: "ord-1", Status: domain.OrderStatusShipped}

	cases := map[string]OrderChange{
		"status":  {Status: statusPtr(domain.OrderStatusDelivered)},
		"address": {ShippingAddress: stringPtr("1 New Street")},
		"items":   {ReplaceItems: true, Items: []RequestedItem{{ProductID: "A", Quantity: 1}}},
	}
	for name, change := range cases {
		t.Run(name, func(t *testing.T) {
			if err := CheckTransition(shipped, change); !errors.Is(err, ErrOrderIllegalTransition) {
				t.Fatalf("expected ErrOrderIllegalTransition, got %v", err)
			}
		})
	}
}

func TestCheckTransitionShippedAllowsNotesOnly(t *testing.T) {
	shipped := Order{ID: "ord-1", Status: domain.OrderStatusShipped}
	if err := CheckTransition(shipped, OrderChange{}); err != nil {
		t.Fatalf("expected notes-only change to be accepted, got %v", err)
	}
}

func TestCheckTransitionRejectsUnknownStatus(t *testing.T) {
	pending := Order{ID: "ord-1", Status: domain.OrderStatusPending}
	err := CheckTransition(pending, OrderChange{Status: statusPtr(OrderStatus("LOST"))})
	if !errors.Is(err, ErrOrderIllegalTransition) {
		t.Fatalf("expected ErrOrderIllegalTransition, got %v", err)
	}
}

func TestCheckTransitionRejectsEmptyItemReplacement(t *testing.T) {
	pending := Order{ID: "ord-1", Status: domain.OrderStatusPending}
	err := CheckTransition(pending, OrderChange{ReplaceItems: true, Items: []RequestedItem{}})
	if !errors.Is(err, ErrOrderInvalidInput) || !errors.Is(err, ErrOrderIllegalTransition) {
		t.Fatalf("expected ErrOrderInvalidInput wrapping ErrOrderIllegalTransition, got %v", err)
	}
}

func TestCheckTransitionAllowsSkippingStates(t *testing.T) {
	pending := Order{ID: "ord-1", Status: domain.OrderStatusPending}
	if err := CheckTransition(pending, OrderChange{Status: statusPtr(domain.OrderStatusDelivered)}); err != nil {
		t.Fatalf("expected PENDING to DELIVERED to be allowed, got %v", err)
	}

	canceled := Order{ID: "ord-2", Status: domain.OrderStatusCanceled}
	if err := CheckTransition(canceled, OrderChange{Status: statusPtr(domain.OrderStatusPending)}); err != nil {
		t.Fatalf("expected CANCELED to PENDING to be allowed, got %v", err)
	}
}

func TestCheckTransitionShippedCheckedBeforeStatusValidity(t *testing.T) {
	shipped := Order{ID: "ord-1", Status: domain.OrderStatusShipped}
	err := CheckTransition(shipped, OrderChange{Status: statusPtr(OrderStatus("LOST"))})
	if !errors.Is(err, ErrOrderIllegalTransition) {
		t.Fatalf("expected ErrOrderIllegalTransition, got %v", err)
	}
}
