package models

import "github.com/shopspring/decimal"

type LineItem struct {
	WeightKg decimal.Decimal `json:"weight_kg"`
	Quantity int             `json:"quantity"`
}

type ShippingQuote struct {
	TotalWeightKg   decimal.Decimal `json:"total_weight_kg"`
	RoundedWeightKg int64           `json:"rounded_weight_kg"`
	Charge          decimal.Decimal `json:"charge"`
}

// Rate is the tariff a quote was computed with.
type Rate struct {
	PerKg   decimal.Decimal `json:"per_kg_rate"`
	Minimum decimal.Decimal `json:"minimum_charge"`
}

// Quote is what the service hands back to checkout: the computed quote,
// the rate that produced it and a stable identifier.
type Quote struct {
	ID string `json:"quote_id"`
	ShippingQuote
	Rate
}
