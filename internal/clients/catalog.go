package clients

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	domain "github.com/hanko-field/orders/internal/domain"
	"github.com/hanko-field/orders/internal/services"
)

type productPayload struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Code        string          `json:"code"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
}

// CatalogClient implements services.ProductCatalog against GET /api/products/{id}.
type CatalogClient struct {
	base *baseClient
}

var _ services.ProductCatalog = (*CatalogClient)(nil)

// NewCatalogClient builds a client rooted at baseURL.
func NewCatalogClient(baseURL string, opts ...Option) (*CatalogClient, error) {
	base, err := newBaseClient(baseURL, opts...)
	if err != nil {
		return nil, err
	}
	return &CatalogClient{base: base}, nil
}

// GetProduct returns services.ErrProductNotFound for a 404 or an answer without a payload.
func (c *CatalogClient) GetProduct(ctx context.Context, productID string) (domain.Product, error) {
	resp, found, err := getJSON[productPayload](ctx, c.base, "/api/products/"+strings.TrimSpace(productID), nil)
	if err != nil {
		return domain.Product{}, err
	}
	if !found || resp.Payload == nil || strings.TrimSpace(resp.Payload.ID) == "" {
		return domain.Product{}, services.ErrProductNotFound
	}
	p := resp.Payload
	return domain.Product{
		ID:          p.ID,
		Name:        p.Name,
		Code:        p.Code,
		Description: p.Description,
		Price:       p.Price,
	}, nil
}
