package domain

import "github.com/shopspring/decimal"

// PricingRates holds the process-wide rates applied to every order total.
type PricingRates struct {
	DiscountRate decimal.Decimal
	TaxRate      decimal.Decimal
	ShippingCost decimal.Decimal
}

// PricingBreakdown captures the monetary results of pricing an order.
type PricingBreakdown struct {
	Subtotal decimal.Decimal
	Discount decimal.Decimal
	Tax      decimal.Decimal
	Shipping decimal.Decimal
	Total    decimal.Decimal
}
