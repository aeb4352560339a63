package services

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	domain "github.com/hanko-field/orders/internal/domain"
)

// moneyPlaces is the currency precision used for stored amounts.
const moneyPlaces = 2

// ErrPricingInvalidRates signals negative or otherwise unusable pricing configuration.
var ErrPricingInvalidRates = errors.New("pricing: invalid rates")

// ComputeTotal applies discount, then tax, then flat shipping to the subtotal. Intermediate values
// keep full precision; only the result is rounded with banker's rounding.
func ComputeTotal(subtotal decimal.Decimal, rates domain.PricingRates) decimal.Decimal {
	discounted := subtotal.Sub(subtotal.Mul(rates.DiscountRate))
	taxed := discounted.Add(discounted.Mul(rates.TaxRate))
	return taxed.Add(rates.ShippingCost).RoundBank(moneyPlaces)
}

// ComputeBreakdown returns the total along with the discount and tax amounts stored on an order.
func ComputeBreakdown(subtotal decimal.Decimal, rates domain.PricingRates) domain.PricingBreakdown {
	discount := subtotal.Mul(rates.DiscountRate)
	tax := subtotal.Sub(discount).Mul(rates.TaxRate)
	return domain.PricingBreakdown{
		Subtotal: subtotal.RoundBank(moneyPlaces),
		Discount: discount.RoundBank(moneyPlaces),
		Tax:      tax.RoundBank(moneyPlaces),
		Shipping: rates.ShippingCost.RoundBank(moneyPlaces),
		Total:    ComputeTotal(subtotal, rates),
	}
}

// Subtotal sums unit price times quantity across the items.
func Subtotal(items []domain.OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.UnitPrice.Mul(decimal.NewFromInt(item.Quantity)))
	}
	return total
}

// OrderPricingEngine prices orders using rates fixed at construction.
type OrderPricingEngine struct {
	rates domain.PricingRates
}

// NewOrderPricingEngine validates the rates and returns an engine bound to them.
func NewOrderPricingEngine(rates domain.PricingRates) (*OrderPricingEngine, error) {
	if err := ValidatePricingRates(rates); err != nil {
		return nil, err
	}
	return &OrderPricingEngine{rates: rates}, nil
}

// ValidatePricingRates rejects negative rates and discounts above 100%.
func ValidatePricingRates(rates domain.PricingRates) error {
	switch {
	case rates.DiscountRate.IsNegative():
		return fmt.Errorf("%w: discount rate must not be negative", ErrPricingInvalidRates)
	case rates.DiscountRate.GreaterThan(decimal.NewFromInt(1)):
		return fmt.Errorf("%w: discount rate must not exceed 1", ErrPricingInvalidRates)
	case rates.TaxRate.IsNegative():
		return fmt.Errorf("%w: tax rate must not be negative", ErrPricingInvalidRates)
	case rates.ShippingCost.IsNegative():
		return fmt.Errorf("%w: shipping cost must not be negative", ErrPricingInvalidRates)
	}
	return nil
}

// Rates returns the configured rates.
func (e *OrderPricingEngine) Rates() domain.PricingRates {
	return e.rates
}

// Price computes the breakdown for the given items.
func (e *OrderPricingEngine) Price(items []domain.OrderItem) domain.PricingBreakdown {
	return ComputeBreakdown(Subtotal(items), e.rates)
}

// Apply recomputes the monetary fields of the order from its items.
func (e *OrderPricingEngine) Apply(order *domain.Order) {
	if order == nil {
		return
	}
	breakdown := e.Price(order.Items)
	order.Discount = breakdown.Discount
	order.TaxAmount = breakdown.Tax
	order.ShippingCost = breakdown.Shipping
	order.TotalAmount = breakdown.Total
}
