package models

import "github.com/shopspring/decimal"

// CartLine is one persisted cart or order row joined with its product weight.
// WeightKg is nil when the product has no weight recorded.
type CartLine struct {
	ProductID string           `json:"product_id"`
	Quantity  int              `json:"quantity"`
	WeightKg  *decimal.Decimal `json:"weight_kg,omitempty"`
}

type QuoteRequest struct {
	Items         []LineItem       `json:"items"`
	PerKgRate     *decimal.Decimal `json:"per_kg_rate,omitempty"`
	MinimumCharge *decimal.Decimal `json:"minimum_charge,omitempty"`
}
