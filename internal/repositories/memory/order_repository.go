package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	domain "github.com/hanko-field/orders/internal/domain"
	"github.com/hanko-field/orders/internal/platform/pagination"
	"github.com/hanko-field/orders/internal/repositories"
)

// OrderRepository keeps orders in process memory. It backs local runs and tests; every method holds
// the lock for the whole aggregate write, so it has the same atomicity as the Firestore store.
type OrderRepository struct {
	mu      sync.RWMutex
	orders  map[string]domain.Order
	numbers map[string]string
}

var _ repositories.OrderRepository = (*OrderRepository)(nil)

// NewOrderRepository returns an empty repository.
func NewOrderRepository() *OrderRepository {
	return &OrderRepository{
		orders:  make(map[string]domain.Order),
		numbers: make(map[string]string),
	}
}

// Insert stores a new order.
func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(order.ID) == "" {
		return repositories.NewStoreError("order.insert", repositories.StoreErrorConflict, "order id is required", nil)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.orders[order.ID]; exists {
		return repositories.NewStoreError("order.insert", repositories.StoreErrorConflict, "order "+order.ID+" already exists", nil)
	}
	if owner, taken := r.numbers[order.OrderNumber]; taken && owner != order.ID {
		return repositories.NewStoreError("order.insert", repositories.StoreErrorConflict, "order number "+order.OrderNumber+" already assigned", nil)
	}
	r.orders[order.ID] = order.Clone()
	r.numbers[order.OrderNumber] = order.ID
	return nil
}

// Update replaces the aggregate when the stored version matches.
func (r *OrderRepository) Update(ctx context.Context, update repositories.OrderUpdate) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.orders[update.Order.ID]
	if !ok {
		return repositories.NewStoreError("order.update", repositories.StoreErrorNotFound, "order "+update.Order.ID+" not found", nil)
	}
	if current.Version != update.ExpectedVersion {
		return repositories.NewStoreError("order.update", repositories.StoreErrorConflict, "order "+update.Order.ID+" was modified concurrently", nil)
	}
	if current.OrderNumber != update.Order.OrderNumber {
		return repositories.NewStoreError("order.update", repositories.StoreErrorConflict, "order number is immutable", nil)
	}
	r.orders[update.Order.ID] = update.Order.Clone()
	return nil
}

// FindByID returns a copy of the stored order.
func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return domain.Order{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.orders[orderID]
	if !ok {
		return domain.Order{}, repositories.NewStoreError("order.find", repositories.StoreErrorNotFound, "order "+orderID+" not found", nil)
	}
	return order.Clone(), nil
}

// Delete removes the order with its items.
func (r *OrderRepository) Delete(ctx context.Context, orderID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[orderID]
	if !ok {
		return repositories.NewStoreError("order.delete", repositories.StoreErrorNotFound, "order "+orderID+" not found", nil)
	}
	delete(r.orders, orderID)
	delete(r.numbers, order.OrderNumber)
	return nil
}

// ExistsByOrderNumber reports whether an order already holds the number.
func (r *OrderRepository) ExistsByOrderNumber(ctx context.Context, orderNumber string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.numbers[orderNumber]
	return ok, nil
}

// List pages through orders newest first.
func (r *OrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	if err := ctx.Err(); err != nil {
		return domain.CursorPage[domain.Order]{}, err
	}
	cursor, err := pagination.DecodeToken(filter.Pagination.PageToken)
	if err != nil {
		return domain.CursorPage[domain.Order]{}, repositories.NewStoreError("order.list", repositories.StoreErrorConflict, "invalid page token", err)
	}
	pageSize := pagination.NormalizePageSize(filter.Pagination.PageSize)

	r.mu.RLock()
	all := make([]domain.Order, 0, len(r.orders))
	for _, order := range r.orders {
		all = append(all, order.Clone())
	}
	r.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID > all[j].ID
	})

	page := domain.CursorPage[domain.Order]{}
	for _, order := range all {
		if !cursor.After(order.CreatedAt, order.ID) {
			continue
		}
		if len(page.Items) == pageSize {
			last := page.Items[len(page.Items)-1]
			token, err := pagination.EncodeToken(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
			if err != nil {
				return domain.CursorPage[domain.Order]{}, err
			}
			page.NextPageToken = token
			break
		}
		page.Items = append(page.Items, order)
	}
	return page, nil
}
