package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/shopspring/decimal"
	"google.golang.org/api/iterator"

	domain "github.com/hanko-field/orders/internal/domain"
	pfirestore "github.com/hanko-field/orders/internal/platform/firestore"
	"github.com/hanko-field/orders/internal/platform/pagination"
	"github.com/hanko-field/orders/internal/repositories"
)

const (
	ordersCollection       = "orders"
	orderItemsCollection   = "items"
	orderNumbersCollection = "orderNumbers"
)

type orderDocument struct {
	OrderNumber     string    `firestore:"orderNumber"`
	CustomerID      string    `firestore:"customerId"`
	Status          string    `firestore:"status"`
	ShippingAddress string    `firestore:"shippingAddress"`
	PaymentMethod   string    `firestore:"paymentMethod"`
	Source          string    `firestore:"orderSource"`
	Notes           string    `firestore:"notes,omitempty"`
	ShippingCost    string    `firestore:"shippingCost"`
	Discount        string    `firestore:"discount"`
	TaxAmount       string    `firestore:"taxAmount"`
	TotalAmount     string    `firestore:"totalAmount"`
	Version         int64     `firestore:"version"`
	CreatedAt       time.Time `firestore:"createdAt"`
	UpdatedAt       time.Time `firestore:"updatedAt"`
}

type orderItemDocument struct {
	ProductID string `firestore:"productId"`
	Quantity  int64  `firestore:"quantity"`
	UnitPrice string `firestore:"unitPrice"`
}

type orderNumberDocument struct {
	OrderID string `firestore:"orderId"`
}

// OrderRepository persists orders with their items as a subcollection. Each write runs in one
// Firestore transaction covering the order document, its items and its order-number claim.
type OrderRepository struct {
	provider *pfirestore.Provider
	orders   *pfirestore.BaseRepository[orderDocument]
	numbers  *pfirestore.BaseRepository[orderNumberDocument]
}

var _ repositories.OrderRepository = (*OrderRepository)(nil)

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	return &OrderRepository{
		provider: provider,
		orders:   pfirestore.NewBaseRepository[orderDocument](provider, ordersCollection),
		numbers:  pfirestore.NewBaseRepository[orderNumberDocument](provider, orderNumbersCollection),
	}, nil
}

// Insert creates the order, its items and the order-number claim atomically.
func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) error {
	orderRef, err := r.orders.DocumentRef(ctx, order.ID)
	if err != nil {
		return err
	}
	numberRef, err := r.numbers.DocumentRef(ctx, order.OrderNumber)
	if err != nil {
		return err
	}

	return r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if err := tx.Create(orderRef, encodeOrder(order)); err != nil {
			return pfirestore.WrapError("orders.insert", err)
		}
		if err := tx.Create(numberRef, orderNumberDocument{OrderID: order.ID}); err != nil {
			return pfirestore.WrapError("orders.insert.number", err)
		}
		for _, item := range order.Items {
			if err := tx.Create(orderRef.Collection(orderItemsCollection).Doc(item.ID), encodeItem(item)); err != nil {
				return pfirestore.WrapError("orders.insert.item", err)
			}
		}
		return nil
	}, pfirestore.WithTxOperation("orders.insert"))
}

// Update writes the aggregate and its item diff when the stored version matches.
func (r *OrderRepository) Update(ctx context.Context, update repositories.OrderUpdate) error {
	orderRef, err := r.orders.DocumentRef(ctx, update.Order.ID)
	if err != nil {
		return err
	}
	items := orderRef.Collection(orderItemsCollection)

	return r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snapshot, err := tx.Get(orderRef)
		if err != nil {
			return pfirestore.WrapError("orders.update", err)
		}
		current, err := r.orders.Decode(ctx, snapshot)
		if err != nil {
			return err
		}
		if current.Data.Version != update.ExpectedVersion {
			return pfirestore.ConflictError("orders.update", fmt.Errorf("order %s is at version %d, expected %d", update.Order.ID, current.Data.Version, update.ExpectedVersion))
		}
		if current.Data.OrderNumber != update.Order.OrderNumber {
			return pfirestore.ConflictError("orders.update", errors.New("order number is immutable"))
		}

		if err := tx.Set(orderRef, encodeOrder(update.Order)); err != nil {
			return pfirestore.WrapError("orders.update", err)
		}
		for _, item := range update.CreatedItems {
			if err := tx.Create(items.Doc(item.ID), encodeItem(item)); err != nil {
				return pfirestore.WrapError("orders.update.item", err)
			}
		}
		for _, item := range update.UpdatedItems {
			if err := tx.Set(items.Doc(item.ID), encodeItem(item)); err != nil {
				return pfirestore.WrapError("orders.update.item", err)
			}
		}
		for _, item := range update.RemovedItems {
			if err := tx.Delete(items.Doc(item.ID)); err != nil {
				return pfirestore.WrapError("orders.update.item", err)
			}
		}
		return nil
	}, pfirestore.WithTxOperation("orders.update"))
}

// FindByID reads the order and its items from one consistent snapshot.
func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	orderRef, err := r.orders.DocumentRef(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}

	var order domain.Order
	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snapshot, err := tx.Get(orderRef)
		if err != nil {
			return pfirestore.WrapError("orders.get", err)
		}
		itemSnaps, err := tx.Documents(orderRef.Collection(orderItemsCollection)).GetAll()
		if err != nil {
			return pfirestore.WrapError("orders.get.items", err)
		}
		order, err = r.decodeOrder(ctx, snapshot, itemSnaps)
		return err
	}, pfirestore.WithReadOnly(), pfirestore.WithTxOperation("orders.get"))
	if err != nil {
		return domain.Order{}, err
	}
	return order, nil
}

// Delete removes the order, every item and the order-number claim.
func (r *OrderRepository) Delete(ctx context.Context, orderID string) error {
	orderRef, err := r.orders.DocumentRef(ctx, orderID)
	if err != nil {
		return err
	}

	return r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snapshot, err := tx.Get(orderRef)
		if err != nil {
			return pfirestore.WrapError("orders.delete", err)
		}
		current, err := r.orders.Decode(ctx, snapshot)
		if err != nil {
			return err
		}
		itemRefs, err := tx.DocumentRefs(orderRef.Collection(orderItemsCollection)).GetAll()
		if err != nil {
			return pfirestore.WrapError("orders.delete.items", err)
		}
		numberRef, err := r.numbers.DocumentRef(ctx, current.Data.OrderNumber)
		if err != nil {
			return err
		}

		for _, ref := range itemRefs {
			if err := tx.Delete(ref); err != nil {
				return pfirestore.WrapError("orders.delete.item", err)
			}
		}
		if err := tx.Delete(numberRef); err != nil {
			return pfirestore.WrapError("orders.delete.number", err)
		}
		if err := tx.Delete(orderRef); err != nil {
			return pfirestore.WrapError("orders.delete", err)
		}
		return nil
	}, pfirestore.WithTxOperation("orders.delete"))
}

// ExistsByOrderNumber checks the order-number claim collection.
func (r *OrderRepository) ExistsByOrderNumber(ctx context.Context, orderNumber string) (bool, error) {
	if strings.TrimSpace(orderNumber) == "" {
		return false, nil
	}
	_, err := r.numbers.Get(ctx, orderNumber)
	if err == nil {
		return true, nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) && repoErr.IsNotFound() {
		return false, nil
	}
	return false, err
}

// List pages through orders newest first, ties broken by descending document ID.
func (r *OrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	cursor, err := pagination.DecodeToken(filter.Pagination.PageToken)
	if err != nil {
		return domain.CursorPage[domain.Order]{}, err
	}
	pageSize := pagination.NormalizePageSize(filter.Pagination.PageSize)

	coll, err := r.orders.Collection(ctx)
	if err != nil {
		return domain.CursorPage[domain.Order]{}, err
	}
	query := coll.OrderBy("createdAt", firestore.Desc).OrderBy(firestore.DocumentID, firestore.Desc)
	if !cursor.IsZero() {
		query = query.StartAfter(cursor.CreatedAt, cursor.ID)
	}
	query = query.Limit(pageSize + 1)

	iter := query.Documents(ctx)
	defer iter.Stop()

	page := domain.CursorPage[domain.Order]{}
	for {
		snapshot, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return domain.CursorPage[domain.Order]{}, pfirestore.WrapError("orders.list", err)
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
		itemSnaps, err := snapshot.Ref.Collection(orderItemsCollection).Documents(ctx).GetAll()
		if err != nil {
			return domain.CursorPage[domain.Order]{}, pfirestore.WrapError("orders.list.items", err)
		}
		order, err := r.decodeOrder(ctx, snapshot, itemSnaps)
		if err != nil {
			return domain.CursorPage[domain.Order]{}, err
		}
		page.Items = append(page.Items, order)
	}
	return page, nil
}

func (r *OrderRepository) decodeOrder(ctx context.Context, snapshot *firestore.DocumentSnapshot, itemSnaps []*firestore.DocumentSnapshot) (domain.Order, error) {
	doc, err := r.orders.Decode(ctx, snapshot)
	if err != nil {
		return domain.Order{}, err
	}
	order, err := decodeOrder(doc.ID, doc.Data)
	if err != nil {
		return domain.Order{}, err
	}
	order.Items = make([]domain.OrderItem, 0, len(itemSnaps))
	for _, itemSnap := range itemSnaps {
		var itemDoc orderItemDocument
		if err := itemSnap.DataTo(&itemDoc); err != nil {
			return domain.Order{}, fmt.Errorf("firestore order items decode %s: %w", itemSnap.Ref.ID, err)
		}
		item, err := decodeItem(order.ID, itemSnap.Ref.ID, itemDoc)
		if err != nil {
			return domain.Order{}, err
		}
		order.Items = append(order.Items, item)
	}
	return order, nil
}

func encodeOrder(order domain.Order) orderDocument {
	return orderDocument{
		OrderNumber:     order.OrderNumber,
		CustomerID:      order.CustomerID,
		Status:          string(order.Status),
		ShippingAddress: order.ShippingAddress,
		PaymentMethod:   string(order.PaymentMethod),
		Source:          string(order.Source),
		Notes:           order.Notes,
		ShippingCost:    order.ShippingCost.String(),
		Discount:        order.Discount.String(),
		TaxAmount:       order.TaxAmount.String(),
		TotalAmount:     order.TotalAmount.String(),
		Version:         order.Version,
		CreatedAt:       order.CreatedAt.UTC(),
		UpdatedAt:       order.UpdatedAt.UTC(),
	}
}

func decodeOrder(id string, doc orderDocument) (domain.Order, error) {
	amounts := make([]decimal.Decimal, 4)
	for i, raw := range []string{doc.ShippingCost, doc.Discount, doc.TaxAmount, doc.TotalAmount} {
		value, err := parseAmount(raw)
		if err != nil {
			return domain.Order{}, fmt.Errorf("order %s amounts: %w", id, err)
		}
		amounts[i] = value
	}
	return domain.Order{
		ID:              id,
		OrderNumber:     doc.OrderNumber,
		CustomerID:      doc.CustomerID,
		Status:          domain.OrderStatus(doc.Status),
		ShippingAddress: doc.ShippingAddress,
		PaymentMethod:   domain.PaymentMethod(doc.PaymentMethod),
		Source:          domain.OrderSource(doc.Source),
		Notes:           doc.Notes,
		ShippingCost:    amounts[0],
		Discount:        amounts[1],
		TaxAmount:       amounts[2],
		TotalAmount:     amounts[3],
		Version:         doc.Version,
		CreatedAt:       doc.CreatedAt.UTC(),
		UpdatedAt:       doc.UpdatedAt.UTC(),
	}, nil
}

func encodeItem(item domain.OrderItem) orderItemDocument {
	return orderItemDocument{
		ProductID: item.ProductID,
		Quantity:  item.Quantity,
		UnitPrice: item.UnitPrice.String(),
	}
}

func decodeItem(orderID, itemID string, doc orderItemDocument) (domain.OrderItem, error) {
	price, err := parseAmount(doc.UnitPrice)
	if err != nil {
		return domain.OrderItem{}, fmt.Errorf("firestore order item decode %s: %w", itemID, err)
	}
	return domain.OrderItem{
		ID:        itemID,
		OrderID:   orderID,
		ProductID: doc.ProductID,
		Quantity:  doc.Quantity,
		UnitPrice: price,
	}, nil
}

func parseAmount(raw string) (decimal.Decimal, error) {
	if strings.TrimSpace(raw) == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(raw)
}
