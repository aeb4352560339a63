package services

import (
	"fmt"
	"strings"
)

// ReconcilePlan is the three-way diff between an order's items and a requested item set.
type ReconcilePlan struct {
	// ToKeepUpdated holds existing items matched by product; identity and captured price are kept.
	ToKeepUpdated []OrderItem
	// ToCreate holds requested items with no existing match. They carry a fresh ID and no price.
	ToCreate []OrderItem
	// ToRemove holds existing items whose product is no longer requested.
	ToRemove []OrderItem

	quantityChanged map[string]bool
}

// Items returns the resulting item set: kept items followed by created items.
func (p ReconcilePlan) Items() []OrderItem {
	items := make([]OrderItem, 0, len(p.ToKeepUpdated)+len(p.ToCreate))
	items = append(items, p.ToKeepUpdated...)
	items = append(items, p.ToCreate...)
	return items
}

// NeedsQuote lists the items that must be re-verified: every created item and every kept item
// whose quantity changed.
func (p ReconcilePlan) NeedsQuote() []RequestedItem {
	requested := make([]RequestedItem, 0, len(p.ToCreate)+len(p.quantityChanged))
	for _, item := range p.ToKeepUpdated {
		if p.quantityChanged[item.ProductID] {
			requested = append(requested, RequestedItem{ProductID: item.ProductID, Quantity: item.Quantity})
		}
	}
	for _, item := range p.ToCreate {
		requested = append(requested, RequestedItem{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return requested
}

// Reconcile diffs existing against requested keyed by product ID. newID assigns identities to
// created items. Duplicate product IDs in the request are rejected.
func Reconcile(orderID string, existing []OrderItem, requested []RequestedItem, newID func() string) (ReconcilePlan, error) {
	if err := validateRequestedItems(requested); err != nil {
		return ReconcilePlan{}, err
	}

	byProduct := make(map[string]OrderItem, len(existing))
	for _, item := range existing {
		byProduct[item.ProductID] = item
	}

	plan := ReconcilePlan{quantityChanged: make(map[string]bool)}
	requestedProducts := make(map[string]struct{}, len(requested))
	for _, req := range requested {
		productID := strings.TrimSpace(req.ProductID)
		requestedProducts[productID] = struct{}{}

		if current, ok := byProduct[productID]; ok {
			if current.Quantity != req.Quantity {
				plan.quantityChanged[productID] = true
			}
			current.Quantity = req.Quantity
			plan.ToKeepUpdated = append(plan.ToKeepUpdated, current)
			continue
		}
		plan.ToCreate = append(plan.ToCreate, OrderItem{
			ID:        newID(),
			OrderID:   orderID,
			ProductID: productID,
			Quantity:  req.Quantity,
		})
	}

	for _, item := range existing {
		if _, ok := requestedProducts[item.ProductID]; !ok {
			plan.ToRemove = append(plan.ToRemove, item)
		}
	}
	return plan, nil
}

func validateRequestedItems(items []RequestedItem) error {
	seen := make(map[string]struct{}, len(items))
	for i, item := range items {
		productID := strings.TrimSpace(item.ProductID)
		if productID == "" {
			return fmt.Errorf("%w: item %d product id is required", ErrOrderInvalidInput, i)
		}
		if item.Quantity <= 0 {
			return fmt.Errorf("%w: item %d quantity must be positive", ErrOrderInvalidInput, i)
		}
		if _, dup := seen[productID]; dup {
			return fmt.Errorf("%w: product %s requested more than once", ErrOrderInvalidInput, productID)
		}
		seen[productID] = struct{}{}
	}
	return nil
}
