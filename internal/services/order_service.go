package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	domain "github.com/hanko-field/orders/internal/domain"
	"github.com/hanko-field/orders/internal/platform/pagination"
	"github.com/hanko-field/orders/internal/repositories"
)

const (
	orderNumberPrefix   = "ORD"
	orderCounterID      = "orders"
	orderNumberAttempts = 3
)

// OrderServiceDeps bundles collaborators required to construct the order service.
type OrderServiceDeps struct {
	Orders      repositories.OrderRepository
	Counters    repositories.CounterRepository
	Verifier    ItemVerifier
	Pricing     *OrderPricingEngine
	Cache       *OrderCache
	Events      OrderEventPublisher
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type orderService struct {
	orders   repositories.OrderRepository
	counters repositories.CounterRepository
	verifier ItemVerifier
	pricing  *OrderPricingEngine
	cache    *OrderCache
	events   OrderEventPublisher
	clock    func() time.Time
	newID    func() string
	logger   func(context.Context, string, map[string]any)
}

// NewOrderService wires dependencies into a concrete OrderService implementation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}
	if deps.Counters == nil {
		return nil, errors.New("order service: counter repository is required")
	}
	if deps.Verifier == nil {
		return nil, errors.New("order service: item verifier is required")
	}
	if deps.Pricing == nil {
		return nil, errors.New("order service: pricing engine is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &orderService{
		orders:   deps.Orders,
		counters: deps.Counters,
		verifier: deps.Verifier,
		pricing:  deps.Pricing,
		cache:    deps.Cache,
		events:   deps.Events,
		// Firestore keeps microseconds.
		clock: func() time.Time {
			return clock().UTC().Truncate(time.Microsecond)
		},
		newID:  idGen,
		logger: logger,
	}, nil
}

func (s *orderService) CreateOrder(ctx context.Context, cmd CreateOrderCommand) (OrderView, error) {
	ctx, span := tracer.Start(ctx, "order.create")
	defer span.End()

	view, err := s.createOrder(ctx, cmd)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create failed")
		return OrderView{}, err
	}
	span.SetAttributes(attribute.String("order.id", view.ID))
	return view, nil
}

func (s *orderService) createOrder(ctx context.Context, cmd CreateOrderCommand) (OrderView, error) {
	if err := validateCreateCommand(cmd); err != nil {
		return OrderView{}, err
	}

	// Verification runs before the sequence is touched so an unavailable item burns no number.
	requested := make([]RequestedItem, 0, len(cmd.Items))
	for _, item := range cmd.Items {
		requested = append(requested, RequestedItem{ProductID: strings.TrimSpace(item.ProductID), Quantity: item.Quantity})
	}
	quotes, err := s.verifier.QuoteAll(ctx, requested)
	if err != nil {
		return OrderView{}, err
	}

	orderNumber, err := s.allocateOrderNumber(ctx)
	if err != nil {
		return OrderView{}, err
	}

	now := s.now()
	order := Order{
		ID:              s.newID(),
		OrderNumber:     orderNumber,
		CustomerID:      strings.TrimSpace(cmd.CustomerID),
		Status:          domain.OrderStatusPending,
		ShippingAddress: strings.TrimSpace(cmd.ShippingAddress),
		PaymentMethod:   domain.ParsePaymentMethod(string(cmd.PaymentMethod)),
		Source:          domain.ParseOrderSource(string(cmd.Source)),
		Notes:           strings.TrimSpace(cmd.Notes),
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	order.Items = make([]OrderItem, 0, len(quotes))
	for _, quote := range quotes {
		order.Items = append(order.Items, OrderItem{
			ID:        s.newID(),
			OrderID:   order.ID,
			ProductID: quote.ProductID,
			Quantity:  quote.Quantity,
			UnitPrice: quote.UnitPrice,
		})
	}
	s.pricing.Apply(&order)

	if err := s.orders.Insert(ctx, order); err != nil {
		return OrderView{}, s.mapRepositoryError(err)
	}

	view := order.View()
	s.cache.Put(ctx, view)
	s.publishEvent(ctx, OrderEventCreated, view)
	return view, nil
}

func (s *orderService) GetOrder(ctx context.Context, orderID string) (OrderView, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return OrderView{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	return s.cache.Load(ctx, orderID, func(ctx context.Context) (OrderView, error) {
		order, err := s.orders.FindByID(ctx, orderID)
		if err != nil {
			return OrderView{}, s.mapRepositoryError(err)
		}
		return order.View(), nil
	})
}

func (s *orderService) ListOrders(ctx context.Context, filter OrderListFilter) (domain.CursorPage[OrderView], error) {
	pager := filter.Pagination
	pager.PageSize = pagination.NormalizePageSize(pager.PageSize)

	page, err := s.orders.List(ctx, repositories.OrderListFilter{Pagination: pager})
	if err != nil {
		if errors.Is(err, pagination.ErrInvalidPageToken) {
			return domain.CursorPage[OrderView]{}, fmt.Errorf("%w: %v", ErrOrderInvalidInput, err)
		}
		return domain.CursorPage[OrderView]{}, s.mapRepositoryError(err)
	}

	views := make([]OrderView, 0, len(page.Items))
	for _, order := range page.Items {
		views = append(views, order.View())
	}
	return domain.CursorPage[OrderView]{Items: views, NextPageToken: page.NextPageToken}, nil
}

func (s *orderService) UpdateOrder(ctx context.Context, cmd UpdateOrderCommand) (OrderView, error) {
	ctx, span := tracer.Start(ctx, "order.update")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", cmd.OrderID))

	view, err := s.updateOrder(ctx, cmd)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		return OrderView{}, err
	}
	return view, nil
}

func (s *orderService) updateOrder(ctx context.Context, cmd UpdateOrderCommand) (OrderView, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if err := validateUpdateCommand(orderID, cmd); err != nil {
		return OrderView{}, err
	}

	// Writes always start from the store; the cached projection is for readers only.
	current, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return OrderView{}, s.mapRepositoryError(err)
	}
	if cmd.ExpectedVersion != nil && *cmd.ExpectedVersion != current.Version {
		return OrderView{}, fmt.Errorf("%w: order %s is at version %d, not %d", ErrOrderConflict, orderID, current.Version, *cmd.ExpectedVersion)
	}

	var status *OrderStatus
	if cmd.Status != nil {
		parsed := domain.ParseOrderStatus(string(*cmd.Status))
		status = &parsed
	}
	change := OrderChange{
		Status:          status,
		ShippingAddress: cmd.ShippingAddress,
		ReplaceItems:    cmd.Items != nil,
		Items:           cmd.Items,
	}
	if err := CheckTransition(current, change); err != nil {
		return OrderView{}, err
	}

	next := current.Clone()
	update := repositories.OrderUpdate{ExpectedVersion: current.Version}

	if change.ReplaceItems {
		plan, err := Reconcile(current.ID, current.Items, cmd.Items, s.newID)
		if err != nil {
			return OrderView{}, err
		}
		quotes, err := s.verifier.QuoteAll(ctx, plan.NeedsQuote())
		if err != nil {
			return OrderView{}, err
		}
		prices := make(map[string]decimal.Decimal, len(quotes))
		for _, quote := range quotes {
			prices[quote.ProductID] = quote.UnitPrice
		}
		update.UpdatedItems = applyQuotes(plan.ToKeepUpdated, prices)
		update.CreatedItems = applyQuotes(plan.ToCreate, prices)
		update.RemovedItems = plan.ToRemove

		next.Items = make([]OrderItem, 0, len(update.UpdatedItems)+len(update.CreatedItems))
		next.Items = append(next.Items, update.UpdatedItems...)
		next.Items = append(next.Items, update.CreatedItems...)
		s.pricing.Apply(&next)
	}

	if cmd.ShippingAddress != nil {
		next.ShippingAddress = strings.TrimSpace(*cmd.ShippingAddress)
	}
	if status != nil {
		next.Status = *status
	}
	if cmd.Notes != nil {
		next.Notes = strings.TrimSpace(*cmd.Notes)
	}
	next.UpdatedAt = s.now()
	next.Version = current.Version + 1
	update.Order = next

	if err := s.orders.Update(ctx, update); err != nil {
		return OrderView{}, s.mapRepositoryError(err)
	}
	s.cache.Invalidate(ctx, orderID)

	view := next.View()
	eventType := OrderEventUpdated
	if next.Status == domain.OrderStatusCanceled {
		eventType = OrderEventCanceled
	}
	s.publishEvent(ctx, eventType, view)
	return view, nil
}

func (s *orderService) DeleteOrder(ctx context.Context, orderID string) (OrderView, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return OrderView{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	current, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return OrderView{}, s.mapRepositoryError(err)
	}
	if err := s.orders.Delete(ctx, orderID); err != nil {
		return OrderView{}, s.mapRepositoryError(err)
	}
	s.cache.Invalidate(ctx, orderID)

	view := current.View()
	s.publishEvent(ctx, OrderEventDeleted, view)
	return view, nil
}

func (s *orderService) GetProduct(ctx context.Context, productID string) (Product, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return Product{}, fmt.Errorf("%w: product id is required", ErrOrderInvalidInput)
	}
	return s.verifier.Product(ctx, productID)
}

// allocateOrderNumber draws from the order sequence, skipping values an existing order already holds.
func (s *orderService) allocateOrderNumber(ctx context.Context) (string, error) {
	for attempt := 0; attempt < orderNumberAttempts; attempt++ {
		seq, err := s.counters.Next(ctx, orderCounterID, 1)
		if err != nil {
			return "", s.mapRepositoryError(err)
		}
		number := fmt.Sprintf("%s%d", orderNumberPrefix, seq)
		exists, err := s.orders.ExistsByOrderNumber(ctx, number)
		if err != nil {
			return "", s.mapRepositoryError(err)
		}
		if !exists {
			return number, nil
		}
		s.logger(ctx, "order.number.collision", map[string]any{"orderNumber": number})
	}
	return "", fmt.Errorf("%w: could not allocate a unique order number", ErrOrderConflict)
}

func (s *orderService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrOrderNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrOrderConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("%w: repository unavailable: %v", ErrOrderPersistence, err)
		}
	}

	return fmt.Errorf("%w: %v", ErrOrderPersistence, err)
}

func (s *orderService) now() time.Time {
	return s.clock()
}

func (s *orderService) publishEvent(ctx context.Context, eventType string, view OrderView) {
	if s.events == nil {
		return
	}
	event := OrderEvent{
		Type:       eventType,
		OrderID:    view.ID,
		Order:      view,
		OccurredAt: s.now(),
	}
	if err := s.events.PublishOrderEvent(ctx, event); err != nil {
		s.logger(ctx, "order.event.publish.failed", map[string]any{
			"type":   event.Type,
			"order":  event.OrderID,
			"error":  err.Error(),
			"status": string(view.Status),
		})
	}
}

func applyQuotes(items []OrderItem, prices map[string]decimal.Decimal) []OrderItem {
	out := make([]OrderItem, len(items))
	copy(out, items)
	for i := range out {
		if price, ok := prices[out[i].ProductID]; ok {
			out[i].UnitPrice = price
		}
	}
	return out
}

func validateCreateCommand(cmd CreateOrderCommand) error {
	if strings.TrimSpace(cmd.CustomerID) == "" {
		return fmt.Errorf("%w: customer id is required", ErrOrderInvalidInput)
	}
	if strings.TrimSpace(cmd.ShippingAddress) == "" {
		return fmt.Errorf("%w: shipping address is required", ErrOrderInvalidInput)
	}
	if !domain.ParsePaymentMethod(string(cmd.PaymentMethod)).Valid() {
		return fmt.Errorf("%w: unsupported payment method %q", ErrOrderInvalidInput, cmd.PaymentMethod)
	}
	if !domain.ParseOrderSource(string(cmd.Source)).Valid() {
		return fmt.Errorf("%w: unsupported order source %q", ErrOrderInvalidInput, cmd.Source)
	}
	if err := validateNotes(cmd.Notes); err != nil {
		return err
	}
	if len(cmd.Items) == 0 {
		return fmt.Errorf("%w: at least one item is required", ErrOrderInvalidInput)
	}
	return validateRequestedItems(cmd.Items)
}

func validateUpdateCommand(orderID string, cmd UpdateOrderCommand) error {
	if orderID == "" {
		return fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	if cmd.ShippingAddress != nil && strings.TrimSpace(*cmd.ShippingAddress) == "" {
		return fmt.Errorf("%w: shipping address must not be blank", ErrOrderInvalidInput)
	}
	if cmd.Notes != nil {
		if err := validateNotes(*cmd.Notes); err != nil {
			return err
		}
	}
	if cmd.Items != nil {
		return validateRequestedItems(cmd.Items)
	}
	return nil
}

func validateNotes(notes string) error {
	if utf8.RuneCountInString(strings.TrimSpace(notes)) > domain.MaxNotesLength {
		return fmt.Errorf("%w: notes exceed %d characters", ErrOrderInvalidInput, domain.MaxNotesLength)
	}
	return nil
}
