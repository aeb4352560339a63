package clients

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/hanko-field/orders/internal/services"
)

type availabilityPayload struct {
	Available bool `json:"available"`
}

// InventoryClient implements services.InventoryChecker against GET /api/inventory/check.
type InventoryClient struct {
	base *baseClient
}

var _ services.InventoryChecker = (*InventoryClient)(nil)

// NewInventoryClient builds a client rooted at baseURL.
func NewInventoryClient(baseURL string, opts ...Option) (*InventoryClient, error) {
	base, err := newBaseClient(baseURL, opts...)
	if err != nil {
		return nil, err
	}
	return &InventoryClient{base: base}, nil
}

// CheckAvailability reports whether quantity units of the product are in stock. An answer without
// a payload is a collaborator failure, not a "no".
func (c *InventoryClient) CheckAvailability(ctx context.Context, productID string, quantity int64) (bool, error) {
	query := url.Values{}
	query.Set("productId", strings.TrimSpace(productID))
	query.Set("quantity", strconv.FormatInt(quantity, 10))

	resp, found, err := getJSON[availabilityPayload](ctx, c.base, "/api/inventory/check", query)
	if err != nil {
		return false, err
	}
	if !found || resp.Payload == nil {
		msg := strings.TrimSpace(resp.Message)
		if msg == "" {
			msg = "no availability payload"
		}
		return false, fmt.Errorf("inventory: product %s: %s", productID, msg)
	}
	return resp.Payload.Available, nil
}
