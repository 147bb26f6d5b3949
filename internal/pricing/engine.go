// Package pricing computes delivery price estimates from a partner rate
// card. All money is fixed-point decimal; rounding to two places happens
// once, on the final total, never on intermediate terms.
package pricing

import (
	"github.com/shopspring/decimal"

	"service-dispatch/internal/apperr"
)

// Surcharge is one named add-on amount, individually toggled.
type Surcharge struct {
	Name    string
	Amount  decimal.Decimal
	Enabled bool
}

// RateCard holds a partner's pricing terms.
type RateCard struct {
	PerKmRate  decimal.Decimal
	PerKgRate  decimal.Decimal
	MinCharge  decimal.Decimal
	Surcharges []Surcharge
}

// Engine computes estimates. Stateless; safe for concurrent use.
type Engine struct{}

// NewEngine creates a pricing Engine.
func NewEngine() *Engine { return &Engine{} }

// Estimate returns max(minCharge, km*perKm + kg*perKg) plus enabled
// surcharges, rounded to 2 decimals at the end.
func (e *Engine) Estimate(distanceKm, weightKg float64, card RateCard) (decimal.Decimal, error) {
	if distanceKm < 0 || weightKg < 0 {
		return decimal.Zero, apperr.ErrInvalid
	}

	base := card.PerKmRate.Mul(decimal.NewFromFloat(distanceKm)).
		Add(card.PerKgRate.Mul(decimal.NewFromFloat(weightKg)))
	if base.Cmp(card.MinCharge) < 0 {
		base = card.MinCharge
	}

	total := base
	for _, s := range card.Surcharges {
		if s.Enabled {
			total = total.Add(s.Amount)
		}
	}

	return total.Round(2), nil
}
