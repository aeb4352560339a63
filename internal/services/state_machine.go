package services

import (
	"fmt"
	"strings"

	domain "github.com/hanko-field/orders/internal/domain"
)

// OrderChange describes the mutation requested against an order.
type OrderChange struct {
	Status          *OrderStatus
	ShippingAddress *string
	// ReplaceItems is set when the caller supplied an item list, even an empty one.
	ReplaceItems bool
	Items        []RequestedItem
}

// mutatesFrozenFields reports whether the change touches anything other than notes.
func (c OrderChange) mutatesFrozenFields() bool {
	return c.Status != nil || c.ShippingAddress != nil || c.ReplaceItems
}

// CheckTransition applies the transition rules in order: a shipped order only accepts notes, a
// target status must be known, and a replacement item list must not be empty. Status progression
// is otherwise unconstrained; PENDING may move straight to DELIVERED.
func CheckTransition(current Order, change OrderChange) error {
	if current.Status == domain.OrderStatusShipped && change.mutatesFrozenFields() {
		return fmt.Errorf("%w: order %s is shipped; only notes may change", ErrOrderIllegalTransition, current.ID)
	}
	if change.Status != nil && !change.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrOrderIllegalTransition, strings.TrimSpace(string(*change.Status)))
	}
	if change.ReplaceItems && len(change.Items) == 0 {
		return fmt.Errorf("%w: %w: item list must not be empty", ErrOrderInvalidInput, ErrOrderIllegalTransition)
	}
	return nil
}
