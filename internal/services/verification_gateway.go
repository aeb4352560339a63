package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/hanko-field/orders/internal/platform/breaker"
)

const defaultVerificationConcurrency = 4

var tracer = otel.Tracer("github.com/hanko-field/orders/internal/services")

// Quote is the verified price and availability of one requested item.
type Quote struct {
	ProductID string
	Quantity  int64
	UnitPrice decimal.Decimal
	Available bool
}

// VerificationGatewayDeps bundles the collaborators guarded by the gateway.
type VerificationGatewayDeps struct {
	Catalog          ProductCatalog
	Inventory        InventoryChecker
	CatalogBreaker   *breaker.Breaker
	InventoryBreaker *breaker.Breaker
	Concurrency      int
	Logger           func(ctx context.Context, event string, fields map[string]any)
}

// VerificationGateway normalises catalog and inventory failures into UnavailableError values.
type VerificationGateway struct {
	catalog          ProductCatalog
	inventory        InventoryChecker
	catalogBreaker   *breaker.Breaker
	inventoryBreaker *breaker.Breaker
	concurrency      int
	logger           func(context.Context, string, map[string]any)
}

// NewVerificationGateway validates dependencies and builds a gateway. Missing breakers get defaults.
func NewVerificationGateway(deps VerificationGatewayDeps) (*VerificationGateway, error) {
	if deps.Catalog == nil {
		return nil, errors.New("verification gateway: product catalog is required")
	}
	if deps.Inventory == nil {
		return nil, errors.New("verification gateway: inventory checker is required")
	}

	catalogBreaker := deps.CatalogBreaker
	if catalogBreaker == nil {
		catalogBreaker = breaker.New(breaker.Settings{Name: "product-service"}, breaker.WithSuccessClassifier(IsProductNotFound))
	}
	inventoryBreaker := deps.InventoryBreaker
	if inventoryBreaker == nil {
		inventoryBreaker = breaker.New(breaker.Settings{Name: "inventory-service"})
	}

	concurrency := deps.Concurrency
	if concurrency <= 0 {
		concurrency = defaultVerificationConcurrency
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &VerificationGateway{
		catalog:          deps.Catalog,
		inventory:        deps.Inventory,
		catalogBreaker:   catalogBreaker,
		inventoryBreaker: inventoryBreaker,
		concurrency:      concurrency,
		logger:           logger,
	}, nil
}

// PriceAndAvailability looks the product up, then checks inventory for the quantity.
func (g *VerificationGateway) PriceAndAvailability(ctx context.Context, productID string, quantity int64) (Quote, error) {
	ctx, span := tracer.Start(ctx, "verification.price_and_availability")
	defer span.End()
	span.SetAttributes(
		attribute.String("product.id", productID),
		attribute.Int64("product.quantity", quantity),
	)

	quote, err := g.priceAndAvailability(ctx, productID, quantity)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "item unavailable")
	}
	return quote, err
}

func (g *VerificationGateway) priceAndAvailability(ctx context.Context, productID string, quantity int64) (Quote, error) {
	product, err := breaker.Call(ctx, g.catalogBreaker, func(ctx context.Context) (Product, error) {
		return g.catalog.GetProduct(ctx, productID)
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Quote{}, ctxErr
		}
		g.logger(ctx, "verification.product.failed", map[string]any{
			"productId": productID,
			"error":     err.Error(),
		})
		return Quote{}, &UnavailableError{ProductID: productID, Quantity: quantity, Reason: ReasonProductServiceDown, Err: err}
	}
	if strings.TrimSpace(product.ID) == "" {
		return Quote{}, &UnavailableError{ProductID: productID, Quantity: quantity, Reason: ReasonProductServiceDown, Err: ErrProductNotFound}
	}

	available, err := breaker.Call(ctx, g.inventoryBreaker, func(ctx context.Context) (bool, error) {
		return g.inventory.CheckAvailability(ctx, productID, quantity)
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Quote{}, ctxErr
		}
		g.logger(ctx, "verification.inventory.failed", map[string]any{
			"productId": productID,
			"quantity":  quantity,
			"error":     err.Error(),
		})
		return Quote{}, &UnavailableError{ProductID: productID, Quantity: quantity, Reason: ReasonInventoryServiceDown, Err: err}
	}
	if !available {
		return Quote{}, &UnavailableError{ProductID: productID, Quantity: quantity, Reason: ReasonInsufficientStock}
	}

	return Quote{
		ProductID: productID,
		Quantity:  quantity,
		UnitPrice: product.Price,
		Available: true,
	}, nil
}

// QuoteAll verifies every item concurrently. The first unavailable item cancels the rest and is
// returned; quotes come back in request order.
func (g *VerificationGateway) QuoteAll(ctx context.Context, items []RequestedItem) ([]Quote, error) {
	quotes := make([]Quote, len(items))
	if len(items) == 0 {
		return quotes, nil
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(g.concurrency)
	for i, item := range items {
		group.Go(func() error {
			quote, err := g.PriceAndAvailability(groupCtx, item.ProductID, item.Quantity)
			if err != nil {
				return err
			}
			quotes[i] = quote
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return quotes, nil
}

// Product returns catalog details through the catalog breaker.
func (g *VerificationGateway) Product(ctx context.Context, productID string) (Product, error) {
	product, err := breaker.Call(ctx, g.catalogBreaker, func(ctx context.Context) (Product, error) {
		return g.catalog.GetProduct(ctx, productID)
	})
	switch {
	case err == nil && strings.TrimSpace(product.ID) == "":
		return Product{}, ErrProductNotFound
	case err == nil:
		return product, nil
	case IsProductNotFound(err), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return Product{}, err
	default:
		return Product{}, fmt.Errorf("%w: product service: %v", ErrCollaboratorDown, err)
	}
}

// IsProductNotFound reports a definitive "no such product" answer from the catalog.
func IsProductNotFound(err error) bool {
	return errors.Is(err, ErrProductNotFound)
}
