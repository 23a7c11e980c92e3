package shipping

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/Cheertaboi/Billing-system-shipping-microservice/internal/models"
)

// WeightMode selects how persisted lines become a billable weight.
type WeightMode string

const (
	// WeightActual uses each product's recorded weight, falling back to
	// DefaultItemWeightKg. The empty mode means actual.
	WeightActual WeightMode = "actual"
	// WeightPerItem bills DefaultItemWeightKg per unit, whatever the product.
	WeightPerItem WeightMode = "per_item"
	// WeightFixed bills every non-empty parcel at FixedWeightKg.
	WeightFixed WeightMode = "fixed"
	// WeightMinimum bills every non-empty parcel at MinimumWeightKg.
	WeightMinimum WeightMode = "minimum"
)

// WeightPolicy turns persisted cart/order lines into calculator input.
// Lines whose product has no recorded weight take DefaultItemWeightKg;
// a zero default disables the fallback. In actual and per_item modes a
// positive MinimumWeightKg is the lightest parcel billed.
type WeightPolicy struct {
	Mode                WeightMode
	DefaultItemWeightKg decimal.Decimal
	FixedWeightKg       decimal.Decimal
	MinimumWeightKg     decimal.Decimal
}

func (p WeightPolicy) Resolve(lines []models.CartLine) ([]models.LineItem, error) {
	var units int64
	for _, l := range lines {
		if l.Quantity < 1 || l.Quantity > MaxQuantity {
			return nil, fmt.Errorf("%w: product %s quantity must be between 1 and %d, got %d",
				ErrInvalidInput, l.ProductID, MaxQuantity, l.Quantity)
		}
		units += int64(l.Quantity)
	}
	if len(lines) == 0 {
		return []models.LineItem{}, nil
	}

	switch p.Mode {
	case "", WeightActual:
		return p.actual(lines)
	case WeightPerItem:
		if !p.DefaultItemWeightKg.IsPositive() {
			return nil, fmt.Errorf("%w: per-item weight is not configured", ErrInvalidInput)
		}
		return p.atLeastMinimum(p.DefaultItemWeightKg.Mul(decimal.NewFromInt(units))), nil
	case WeightFixed:
		return parcel(p.FixedWeightKg), nil
	case WeightMinimum:
		return parcel(p.MinimumWeightKg), nil
	default:
		return nil, fmt.Errorf("unknown weight calculation %q", p.Mode)
	}
}

func (p WeightPolicy) actual(lines []models.CartLine) ([]models.LineItem, error) {
	items := make([]models.LineItem, 0, len(lines))
	for _, l := range lines {
		w := p.DefaultItemWeightKg
		if l.WeightKg != nil && !l.WeightKg.IsZero() {
			w = *l.WeightKg
		}
		if !w.IsPositive() {
			return nil, fmt.Errorf("%w: no usable weight for product %s", ErrInvalidInput, l.ProductID)
		}
		items = append(items, models.LineItem{WeightKg: w, Quantity: l.Quantity})
	}
	if !p.MinimumWeightKg.IsPositive() {
		return items, nil
	}

	if err := ValidateItems(items); err != nil {
		return nil, err
	}
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.WeightKg.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	if total.LessThan(p.MinimumWeightKg) {
		return parcel(p.MinimumWeightKg), nil
	}
	return items, nil
}

func (p WeightPolicy) atLeastMinimum(w decimal.Decimal) []models.LineItem {
	return parcel(decimal.Max(w, p.MinimumWeightKg))
}

// parcel is a single line carrying the whole billed weight.
func parcel(w decimal.Decimal) []models.LineItem {
	return []models.LineItem{{WeightKg: w, Quantity: 1}}
}
