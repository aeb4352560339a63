package memory

import (
	"context"

	"github.com/hanko-field/orders/internal/repositories"
)

// Registry bundles the in-memory repositories.
type Registry struct {
	orders   *OrderRepository
	counters *CounterRepository
}

var _ repositories.Registry = (*Registry)(nil)

// NewRegistry returns a registry with empty repositories.
func NewRegistry() *Registry {
	return &Registry{
		orders:   NewOrderRepository(),
		counters: NewCounterRepository(),
	}
}

func (r *Registry) Orders() repositories.OrderRepository     { return r.orders }
func (r *Registry) Counters() repositories.CounterRepository { return r.counters }

// Close is a no-op.
func (r *Registry) Close(context.Context) error { return nil }

// Ping always succeeds.
func (r *Registry) Ping(context.Context) error { return nil }
