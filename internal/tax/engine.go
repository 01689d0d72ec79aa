package tax

import (
	"errors"
	"math"
)

var ErrNegativeSubtotal = errors.New("subtotal cannot be negative")

// Config is the tenant-level tax configuration a bill is computed against.
// Rates are percentages (2.5 means 2.5%). CGST and SGST are configured
// independently even though most tenants use symmetric rates.
type Config struct {
	CGSTRate             float64 `json:"cgst_rate"`
	SGSTRate             float64 `json:"sgst_rate"`
	ServiceChargeEnabled bool    `json:"service_charge_enabled"`
	ServiceChargeRate    float64 `json:"service_charge_rate"`
	RoundOffEnabled      bool    `json:"round_off_enabled"`
	TaxIncludedInPrice   bool    `json:"tax_included_in_price"`
}

// Breakdown is the result of computing taxes over a subtotal. When the tenant
// prices are tax-inclusive, CGST/SGST are still reported as an informational
// breakdown but are not part of GrandTotal.
type Breakdown struct {
	ServiceCharge float64
	CGST          float64
	SGST          float64
	RoundOff      float64
	GrandTotal    float64
}

// Compute derives the tax breakdown and grand total for a subtotal. It is a
// pure function: identical inputs always produce identical outputs. Discounts
// and packing charges are not its concern; the billing caller composes those
// and re-applies rounding over the final amount (see ComputeRaw).
func Compute(subtotal float64, cfg Config) (Breakdown, error) {
	b, err := ComputeRaw(subtotal, cfg)
	if err != nil {
		return Breakdown{}, err
	}
	if cfg.RoundOffEnabled {
		rounded := RoundHalfUp(b.GrandTotal)
		b.RoundOff = rounded - b.GrandTotal
		b.GrandTotal = rounded
	}
	return b, nil
}

// ComputeRaw is Compute without the round-off step. Callers that subtract a
// discount or add packing charges afterward use this and round the composed
// total instead, so the stored round-off reflects the amount actually billed.
func ComputeRaw(subtotal float64, cfg Config) (Breakdown, error) {
	if subtotal < 0 {
		return Breakdown{}, ErrNegativeSubtotal
	}

	var serviceCharge float64
	if cfg.ServiceChargeEnabled {
		serviceCharge = subtotal * cfg.ServiceChargeRate / 100
	}

	taxableBase := subtotal + serviceCharge
	cgst := taxableBase * cfg.CGSTRate / 100
	sgst := taxableBase * cfg.SGSTRate / 100

	grand := subtotal + serviceCharge
	if !cfg.TaxIncludedInPrice {
		grand += cgst + sgst
	}

	return Breakdown{
		ServiceCharge: serviceCharge,
		CGST:          cgst,
		SGST:          sgst,
		GrandTotal:    grand,
	}, nil
}

// RoundHalfUp rounds to the nearest whole currency unit, halves away from
// zero's positive side (the convention printed on Indian restaurant bills).
func RoundHalfUp(v float64) float64 {
	return math.Floor(v + 0.5)
}
