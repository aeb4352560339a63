package repositories

import (
	"context"

	domain "github.com/hanko-field/orders/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error
	// Ping reports whether the backing store is reachable.
	Ping(ctx context.Context) error

	Orders() OrderRepository
	Counters() CounterRepository
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// OrderRepository persists the order aggregate. Every method writes the order and its items as
// one atomic unit.
type OrderRepository interface {
	// Insert stores a new order with its items. An existing ID is a conflict.
	Insert(ctx context.Context, order domain.Order) error
	// Update writes the aggregate and the item diff when the stored version equals
	// update.ExpectedVersion; otherwise it returns a conflict.
	Update(ctx context.Context, update OrderUpdate) error
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	// Delete removes the order and all of its items.
	Delete(ctx context.Context, orderID string) error
	ExistsByOrderNumber(ctx context.Context, orderNumber string) (bool, error)
	List(ctx context.Context, filter OrderListFilter) (domain.CursorPage[domain.Order], error)
}

// OrderUpdate is an aggregate write with its item-level diff.
type OrderUpdate struct {
	// Order is the full resulting aggregate, including its new version.
	Order           domain.Order
	CreatedItems    []domain.OrderItem
	UpdatedItems    []domain.OrderItem
	RemovedItems    []domain.OrderItem
	ExpectedVersion int64
}

// CounterRepository manages named monotonic sequences.
type CounterRepository interface {
	Next(ctx context.Context, counterID string, step int64) (int64, error)
	Configure(ctx context.Context, counterID string, cfg CounterConfig) error
}

// OrderListFilter pages through orders newest first.
type OrderListFilter struct {
	Pagination domain.Pagination
}

// CounterConfig customises a counter's step, ceiling or starting value.
type CounterConfig struct {
	Step         int64
	MaxValue     *int64
	InitialValue *int64
}
