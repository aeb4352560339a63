package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hanko-field/orders/internal/platform/breaker"
)

type stubCatalog struct {
	getFn func(context.Context, string) (Product, error)
	calls atomic.Int32
}

func (s *stubCatalog) GetProduct(ctx context.Context, productID string) (Product, error) {
	s.calls.Add(1)
	if s.getFn != nil {
		return s.getFn(ctx, productID)
	}
	return Product{ID: productID, Name: productID, Price: decimal.RequireFromString("10.00")}, nil
}

type stubInventory struct {
	checkFn func(context.Context, string, int64) (bool, error)
	calls   atomic.Int32
}

func (s *stubInventory) CheckAvailability(ctx context.Context, productID string, quantity int64) (bool, error) {
	s.calls.Add(1)
	if s.checkFn != nil {
		return s.checkFn(ctx, productID, quantity)
	}
	return true, nil
}

func newTestGateway(t *testing.T, catalog ProductCatalog, inventory InventoryChecker) *VerificationGateway {
	t.Helper()
	gateway, err := NewVerificationGateway(VerificationGatewayDeps{
		Catalog:   catalog,
		Inventory: inventory,
	})
	if err != nil {
		t.Fatalf("NewVerificationGateway: %v", err)
	}
	return gateway
}

func TestVerificationGatewayQuotesAvailableItem(t *testing.T) {
	gateway := newTestGateway(t, &stubCatalog{}, &stubInventory{})

	quote, err := gateway.PriceAndAvailability(context.Background(), "p-1", 3)
	if err != nil {
		t.Fatalf("PriceAndAvailability: %v", err)
	}
	if !quote.Available || !quote.UnitPrice.Equal(decimal.RequireFromString("10")) || quote.Quantity != 3 {
		t.Fatalf("unexpected quote %+v", quote)
	}
}

func TestVerificationGatewayProductFailure(t *testing.T) {
	inventory := &stubInventory{}
	gateway := newTestGateway(t, &stubCatalog{getFn: func(context.Context, string) (Product, error) {
		return Product{}, errors.New("connection refused")
	}}, inventory)

	_, err := gateway.PriceAndAvailability(context.Background(), "p-1", 1)
	var unavailable *UnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("expected UnavailableError, got %v", err)
	}
	if unavailable.Reason != ReasonProductServiceDown {
		t.Fatalf("expected product service down, got %s", unavailable.Reason)
	}
	if !errors.Is(err, ErrProductUnavailable) || !errors.Is(err, ErrCollaboratorDown) {
		t.Fatalf("expected product unavailable and collaborator down classification, got %v", err)
	}
	if inventory.calls.Load() != 0 {
		t.Fatalf("inventory must not be called after product failure")
	}
}

func TestVerificationGatewayProductMissingPayload(t *testing.T) {
	gateway := newTestGateway(t, &stubCatalog{getFn: func(context.Context, string) (Product, error) {
		return Product{}, nil
	}}, &stubInventory{})

	_, err := gateway.PriceAndAvailability(context.Background(), "p-1", 1)
	if !errors.Is(err, ErrProductUnavailable) {
		t.Fatalf("expected ErrProductUnavailable, got %v", err)
	}
	if errors.Is(err, ErrCollaboratorDown) {
		t.Fatalf("missing payload is not a collaborator outage")
	}
}

func TestVerificationGatewayInventoryFailure(t *testing.T) {
	gateway := newTestGateway(t, &stubCatalog{}, &stubInventory{checkFn: func(context.Context, string, int64) (bool, error) {
		return false, errors.New("503")
	}})

	_, err := gateway.PriceAndAvailability(context.Background(), "p-1", 1)
	var unavailable *UnavailableError
	if !errors.As(err, &unavailable) || unavailable.Reason != ReasonInventoryServiceDown {
		t.Fatalf("expected inventory service down, got %v", err)
	}
	if !errors.Is(err, ErrInventoryUnavailable) || !errors.Is(err, ErrCollaboratorDown) {
		t.Fatalf("unexpected classification %v", err)
	}
}

func TestVerificationGatewayInsufficientStock(t *testing.T) {
	gateway := newTestGateway(t, &stubCatalog{}, &stubInventory{checkFn: func(context.Context, string, int64) (bool, error) {
		return false, nil
	}})

	_, err := gateway.PriceAndAvailability(context.Background(), "p-1", 100)
	var unavailable *UnavailableError
	if !errors.As(err, &unavailable) || unavailable.Reason != ReasonInsufficientStock {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
	if errors.Is(err, ErrCollaboratorDown) {
		t.Fatalf("insufficient stock is not a collaborator outage")
	}
}

func TestVerificationGatewayOpenBreakerShortCircuits(t *testing.T) {
	catalog := &stubCatalog{getFn: func(context.Context, string) (Product, error) {
		return Product{}, errors.New("timeout")
	}}
	gateway, err := NewVerificationGateway(VerificationGatewayDeps{
		Catalog:        catalog,
		Inventory:      &stubInventory{},
		CatalogBreaker: breaker.New(breaker.Settings{Name: "product-service", MinRequests: 2, FailureRatio: 0.5, Cooldown: time.Hour}),
	})
	if err != nil {
		t.Fatalf("NewVerificationGateway: %v", err)
	}

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		_, _ = gateway.PriceAndAvailability(ctx, "p-1", 1)
	}
	calls := catalog.calls.Load()

	_, err = gateway.PriceAndAvailability(ctx, "p-1", 1)
	if !errors.Is(err, breaker.ErrOpen) {
		t.Fatalf("expected breaker.ErrOpen, got %v", err)
	}
	if !errors.Is(err, ErrProductUnavailable) || !errors.Is(err, ErrCollaboratorDown) {
		t.Fatalf("expected fallback classification, got %v", err)
	}
	if catalog.calls.Load() != calls {
		t.Fatalf("expected no catalog call while open")
	}
}

func TestVerificationGatewayQuoteAllPreservesOrder(t *testing.T) {
	prices := map[string]string{"p-1": "1.00", "p-2": "2.00", "p-3": "3.00"}
	gateway := newTestGateway(t, &stubCatalog{getFn: func(_ context.Context, id string) (Product, error) {
		return Product{ID: id, Price: decimal.RequireFromString(prices[id])}, nil
	}}, &stubInventory{})

	quotes, err := gateway.QuoteAll(context.Background(), []RequestedItem{
		{ProductID: "p-3", Quantity: 1},
		{ProductID: "p-1", Quantity: 2},
		{ProductID: "p-2", Quantity: 3},
	})
	if err != nil {
		t.Fatalf("QuoteAll: %v", err)
	}
	want := []string{"p-3", "p-1", "p-2"}
	for i, quote := range quotes {
		if quote.ProductID != want[i] {
			t.Fatalf("quote %d: expected %s, got %s", i, want[i], quote.ProductID)
		}
		if !quote.UnitPrice.Equal(decimal.RequireFromString(prices[want[i]])) {
			t.Fatalf("quote %d: unexpected price %s", i, quote.UnitPrice)
		}
	}
}

func TestVerificationGatewayQuoteAllFailsFast(t *testing.T) {
	var mu sync.Mutex
	seen := map[string]bool{}
	gateway := newTestGateway(t, &stubCatalog{}, &stubInventory{checkFn: func(_ context.Context, id string, _ int64) (bool, error) {
		mu.Lock()
		seen[id] = true
		mu.Unlock()
		return id != "p-2", nil
	}})

	_, err := gateway.QuoteAll(context.Background(), []RequestedItem{
		{ProductID: "p-1", Quantity: 1},
		{ProductID: "p-2", Quantity: 1},
		{ProductID: "p-3", Quantity: 1},
	})
	var unavailable *UnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("expected UnavailableError, got %v", err)
	}
	if unavailable.ProductID != "p-2" || unavailable.Reason != ReasonInsufficientStock {
		t.Fatalf("unexpected failure %+v", unavailable)
	}
}

func TestVerificationGatewayProductPassthrough(t *testing.T) {
	gateway := newTestGateway(t, &stubCatalog{getFn: func(_ context.Context, id string) (Product, error) {
		if id == "missing" {
			return Product{}, ErrProductNotFound
		}
		return Product{ID: id, Name: "Widget", Price: decimal.RequireFromString("4.99")}, nil
	}}, &stubInventory{})

	product, err := gateway.Product(context.Background(), "p-1")
	if err != nil {
		t.Fatalf("Product: %v", err)
	}
	if product.Name != "Widget" {
		t.Fatalf("unexpected product %+v", product)
	}
	if _, err := gateway.Product(context.Background(), "missing"); !errors.Is(err, ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}
}
