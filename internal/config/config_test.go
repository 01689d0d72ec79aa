package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orderstack/pos-ledger/internal/tax"
)

// The rate fields feed tax.Config unchanged, and the engine divides by 100.
// Defaults therefore have to be percentages: a 1000 bill under the stock
// configuration carries 25 CGST + 25 SGST, not 0.25.
func TestLoadDefaultTaxRatesArePercentages(t *testing.T) {
	require.NoError(t, Load(""))
	c := Get()

	assert.InDelta(t, 2.5, c.TaxCGSTRate, 1e-9)
	assert.InDelta(t, 2.5, c.TaxSGSTRate, 1e-9)
	assert.InDelta(t, 10.0, c.TaxServiceChargeRate, 1e-9)

	b, err := tax.ComputeRaw(1000, tax.Config{
		CGSTRate: c.TaxCGSTRate,
		SGSTRate: c.TaxSGSTRate,
	})
	require.NoError(t, err)
	assert.InDelta(t, 25.0, b.CGST, 1e-9)
	assert.InDelta(t, 25.0, b.SGST, 1e-9)
	assert.InDelta(t, 1050.0, b.GrandTotal, 1e-9)
}
