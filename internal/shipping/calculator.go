package shipping

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/Cheertaboi/Billing-system-shipping-microservice/internal/models"
)

var ErrInvalidInput = errors.New("invalid input")

const (
	// MaxScale is the most fractional digits accepted on any input decimal.
	MaxScale = 18
	// MaxExponent bounds positive exponents ("1e9") before any value is expanded.
	MaxExponent = 9
	// MaxQuantity is the largest quantity accepted on a single line.
	MaxQuantity = 1_000_000
)

var (
	// MaxWeightKg is the heaviest unit weight accepted on a single line.
	MaxWeightKg = decimal.NewFromInt(1_000_000)
	// MaxRateValue bounds both the per-kg rate and the minimum charge.
	MaxRateValue = decimal.NewFromInt(1_000_000_000)
)

// DefaultRate is 60 per kilogram with a 60 floor.
func DefaultRate() models.Rate {
	return models.Rate{
		PerKg:   decimal.NewFromInt(60),
		Minimum: decimal.NewFromInt(60),
	}
}

// checkBounds rejects decimals whose representation is too large to expand
// safely, then anything above max. The exponent is checked first: comparing
// or printing "1e10000000" would materialize every digit.
func checkBounds(field string, d, max decimal.Decimal) error {
	exp := d.Exponent()
	if exp < -MaxScale || exp > MaxExponent {
		return fmt.Errorf("%w: %s is out of range", ErrInvalidInput, field)
	}
	if d.Coefficient().BitLen() > 128 {
		return fmt.Errorf("%w: %s has too many digits", ErrInvalidInput, field)
	}
	if d.GreaterThan(max) {
		return fmt.Errorf("%w: %s must not exceed %s", ErrInvalidInput, field, max)
	}
	return nil
}

// ValidateRate rejects a non-positive per-kg rate or a negative minimum.
func ValidateRate(rate models.Rate) error {
	if err := checkBounds("per_kg_rate", rate.PerKg, MaxRateValue); err != nil {
		return err
	}
	if err := checkBounds("minimum_charge", rate.Minimum, MaxRateValue); err != nil {
		return err
	}
	if !rate.PerKg.IsPositive() {
		return fmt.Errorf("%w: per_kg_rate must be positive, got %s", ErrInvalidInput, rate.PerKg)
	}
	if rate.Minimum.IsNegative() {
		return fmt.Errorf("%w: minimum_charge must not be negative, got %s", ErrInvalidInput, rate.Minimum)
	}
	return nil
}

// ValidateItems checks every line: positive bounded weight, quantity in [1, MaxQuantity].
func ValidateItems(items []models.LineItem) error {
	for i, it := range items {
		if err := checkBounds(fmt.Sprintf("item %d weight_kg", i), it.WeightKg, MaxWeightKg); err != nil {
			return err
		}
		if !it.WeightKg.IsPositive() {
			return fmt.Errorf("%w: item %d weight_kg must be positive, got %s", ErrInvalidInput, i, it.WeightKg)
		}
		if it.Quantity < 1 || it.Quantity > MaxQuantity {
			return fmt.Errorf("%w: item %d quantity must be between 1 and %d, got %d", ErrInvalidInput, i, MaxQuantity, it.Quantity)
		}
	}
	return nil
}

// Validate checks items and rate together.
func Validate(items []models.LineItem, rate models.Rate) error {
	if err := ValidateRate(rate); err != nil {
		return err
	}
	return ValidateItems(items)
}

// ComputeCharge sums weight*quantity over items, rounds the total up to the
// next whole kilogram once, and bills max(minimum, rounded*perKg).
func ComputeCharge(items []models.LineItem, rate models.Rate) (models.ShippingQuote, error) {
	if err := Validate(items, rate); err != nil {
		return models.ShippingQuote{}, err
	}

	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.WeightKg.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}

	rounded, roundedKg, err := ceilKg(total)
	if err != nil {
		return models.ShippingQuote{}, err
	}
	charge := decimal.Max(rate.Minimum, rounded.Mul(rate.PerKg))

	return models.ShippingQuote{
		TotalWeightKg:   total,
		RoundedWeightKg: roundedKg,
		Charge:          charge,
	}, nil
}

// ceilKg rounds total up to whole kilograms and fails when the result does
// not fit the int64 reported on the quote.
func ceilKg(total decimal.Decimal) (decimal.Decimal, int64, error) {
	rounded := total.Ceil()
	n := rounded.BigInt()
	if !n.IsInt64() {
		return decimal.Zero, 0, fmt.Errorf("%w: total weight %s kg is too large", ErrInvalidInput, rounded)
	}
	return rounded, n.Int64(), nil
}
