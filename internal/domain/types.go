package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// MaxNotesLength bounds the free-text notes stored on an order.
const MaxNotesLength = 1000

// Pagination defines standard cursor-based paging inputs for list operations.
type Pagination struct {
	PageSize  int
	PageToken string
}

// CursorPage packages list results with an encoded next token.
type CursorPage[T any] struct {
	Items         []T
	NextPageToken string
}

// OrderStatus enumerates the lifecycle states of an order.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusConfirmed OrderStatus = "CONFIRMED"
	OrderStatusShipped   OrderStatus = "SHIPPED"
	OrderStatusDelivered OrderStatus = "DELIVERED"
	OrderStatusCanceled  OrderStatus = "CANCELED"
)

// OrderStatuses lists every valid status in lifecycle order.
var OrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusConfirmed,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCanceled,
}

// Valid reports whether the status is one of the known values.
func (s OrderStatus) Valid() bool {
	for _, candidate := range OrderStatuses {
		if s == candidate {
			return true
		}
	}
	return false
}

// PaymentMethod enumerates accepted payment methods.
type PaymentMethod string

const (
	PaymentMethodCreditCard   PaymentMethod = "CREDIT_CARD"
	PaymentMethodPayPal       PaymentMethod = "PAYPAL"
	PaymentMethodCash         PaymentMethod = "CASH"
	PaymentMethodBankTransfer PaymentMethod = "BANK_TRANSFER"
)

// Valid reports whether the payment method is part of the closed set.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCreditCard, PaymentMethodPayPal, PaymentMethodCash, PaymentMethodBankTransfer:
		return true
	}
	return false
}

// OrderSource identifies the channel an order was placed through.
type OrderSource string

const (
	OrderSourceWebsite   OrderSource = "WEBSITE"
	OrderSourceInStore   OrderSource = "IN_STORE"
	OrderSourceMobileApp OrderSource = "MOBILE_APP"
)

// Valid reports whether the source is part of the closed set.
func (s OrderSource) Valid() bool {
	switch s {
	case OrderSourceWebsite, OrderSourceInStore, OrderSourceMobileApp:
		return true
	}
	return false
}

// ParseOrderStatus normalises raw input into an OrderStatus. The result may be invalid.
func ParseOrderStatus(raw string) OrderStatus {
	return OrderStatus(strings.ToUpper(strings.TrimSpace(raw)))
}

// ParsePaymentMethod normalises raw input into a PaymentMethod. The result may be invalid.
func ParsePaymentMethod(raw string) PaymentMethod {
	return PaymentMethod(strings.ToUpper(strings.TrimSpace(raw)))
}

// ParseOrderSource normalises raw input into an OrderSource. The result may be invalid.
func ParseOrderSource(raw string) OrderSource {
	return OrderSource(strings.ToUpper(strings.TrimSpace(raw)))
}

// Order is the aggregate root persisted by the order store.
type Order struct {
	ID              string
	OrderNumber     string
	CustomerID      string
	Status          OrderStatus
	ShippingAddress string
	PaymentMethod   PaymentMethod
	Source          OrderSource
	Notes           string
	Items           []OrderItem
	ShippingCost    decimal.Decimal
	Discount        decimal.Decimal
	TaxAmount       decimal.Decimal
	TotalAmount     decimal.Decimal
	Version         int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// OrderItem is a line item owned by an order.
type OrderItem struct {
	ID        string
	OrderID   string
	ProductID string
	Quantity  int64
	UnitPrice decimal.Decimal
}

// Clone returns a deep copy of the order so callers can mutate it safely.
func (o Order) Clone() Order {
	clone := o
	if o.Items != nil {
		clone.Items = make([]OrderItem, len(o.Items))
		copy(clone.Items, o.Items)
	}
	return clone
}

// View projects the order into its external representation.
func (o Order) View() OrderView {
	items := make([]OrderItemView, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, OrderItemView{
			ID:        item.ID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}
	return OrderView{
		ID:              o.ID,
		OrderNumber:     o.OrderNumber,
		CustomerID:      o.CustomerID,
		Status:          o.Status,
		ShippingAddress: o.ShippingAddress,
		PaymentMethod:   o.PaymentMethod,
		Source:          o.Source,
		Notes:           o.Notes,
		Items:           items,
		ShippingCost:    o.ShippingCost,
		Discount:        o.Discount,
		TaxAmount:       o.TaxAmount,
		TotalAmount:     o.TotalAmount,
		Version:         o.Version,
		CreatedAt:       o.CreatedAt.UTC(),
		UpdatedAt:       o.UpdatedAt.UTC(),
	}
}

// OrderView is the external representation of an order. It is what readers receive, what the
// cache stores and what events carry.
type OrderView struct {
	ID              string          `json:"id"`
	OrderNumber     string          `json:"orderNumber"`
	CustomerID      string          `json:"customerId"`
	Status          OrderStatus     `json:"status"`
	ShippingAddress string          `json:"shippingAddress"`
	PaymentMethod   PaymentMethod   `json:"paymentMethod"`
	Source          OrderSource     `json:"orderSource"`
	Notes           string          `json:"notes,omitempty"`
	Items           []OrderItemView `json:"orderItems"`
	ShippingCost    decimal.Decimal `json:"shippingCost"`
	Discount        decimal.Decimal `json:"discount"`
	TaxAmount       decimal.Decimal `json:"taxAmount"`
	TotalAmount     decimal.Decimal `json:"totalAmount"`
	Version         int64           `json:"version"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// OrderItemView is the external representation of an order item.
type OrderItemView struct {
	ID        string          `json:"id"`
	ProductID string          `json:"productId"`
	Quantity  int64           `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

// Product is the catalog record returned by the product collaborator.
type Product struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Code        string          `json:"code,omitempty"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
}
