package services

import (
	"context"
	"errors"
	"time"

	domain "github.com/hanko-field/orders/internal/domain"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Pagination    = domain.Pagination
	Order         = domain.Order
	OrderItem     = domain.OrderItem
	OrderView     = domain.OrderView
	OrderStatus   = domain.OrderStatus
	PaymentMethod = domain.PaymentMethod
	OrderSource   = domain.OrderSource
	Product       = domain.Product
)

// ErrProductNotFound is returned by ProductCatalog implementations when the catalog has no such
// product or answers without a payload.
var ErrProductNotFound = errors.New("catalog: product not found")

// OrderService exposes the order lifecycle to transports.
type OrderService interface {
	CreateOrder(ctx context.Context, cmd CreateOrderCommand) (OrderView, error)
	GetOrder(ctx context.Context, orderID string) (OrderView, error)
	ListOrders(ctx context.Context, filter OrderListFilter) (domain.CursorPage[OrderView], error)
	UpdateOrder(ctx context.Context, cmd UpdateOrderCommand) (OrderView, error)
	DeleteOrder(ctx context.Context, orderID string) (OrderView, error)
	GetProduct(ctx context.Context, productID string) (Product, error)
}

// HealthService reports readiness of the service's dependencies.
type HealthService interface {
	HealthReport(ctx context.Context) (domain.SystemHealthReport, error)
}

// RequestedItem is a product and quantity supplied by the caller.
type RequestedItem struct {
	ProductID string
	Quantity  int64
}

// CreateOrderCommand carries the input for a new order.
type CreateOrderCommand struct {
	CustomerID      string
	ShippingAddress string
	PaymentMethod   PaymentMethod
	Source          OrderSource
	Notes           string
	Items           []RequestedItem
}

// UpdateOrderCommand carries a partial update. Nil fields are left untouched; a non-nil Items
// slice replaces the item set.
type UpdateOrderCommand struct {
	OrderID         string
	ShippingAddress *string
	Status          *OrderStatus
	Notes           *string
	Items           []RequestedItem
	ExpectedVersion *int64
}

// OrderListFilter narrows order listings.
type OrderListFilter struct {
	Pagination Pagination
}

// ProductCatalog looks up products in the catalog collaborator.
type ProductCatalog interface {
	GetProduct(ctx context.Context, productID string) (Product, error)
}

// InventoryChecker asks the inventory collaborator whether a quantity is in stock.
type InventoryChecker interface {
	CheckAvailability(ctx context.Context, productID string, quantity int64) (bool, error)
}

// ItemVerifier prices and checks availability of requested items.
type ItemVerifier interface {
	QuoteAll(ctx context.Context, items []RequestedItem) ([]Quote, error)
	Product(ctx context.Context, productID string) (Product, error)
}

// CacheStore is the byte-oriented cache substrate behind the order cache.
type CacheStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// OrderEventPublisher publishes order domain events for downstream consumers.
type OrderEventPublisher interface {
	PublishOrderEvent(ctx context.Context, event OrderEvent) error
}

// OrderEvent is emitted after every durable order mutation. Type doubles as the topic name.
type OrderEvent struct {
	Type       string
	OrderID    string
	Order      OrderView
	OccurredAt time.Time
}

const (
	OrderEventCreated  = "order-created"
	OrderEventUpdated  = "order-updated"
	OrderEventCanceled = "order-canceled"
	OrderEventDeleted  = "order-deleted"
)

// OrderEventTypes lists every topic the service publishes to.
var OrderEventTypes = []string{OrderEventCreated, OrderEventUpdated, OrderEventCanceled, OrderEventDeleted}
