package decision

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/aristath/wheel-trader/internal/domain"
	"github.com/aristath/wheel-trader/internal/modules/bands"
)

// testBands centers the bands on 100 with sigma 5 and the default
// 2.0 / 2.5 / 3.0 multipliers.
func testBands() bands.Bands {
	sma := decimal.NewFromInt(100)
	sigma := decimal.NewFromInt(5)
	mk := func(k float64) (decimal.Decimal, decimal.Decimal) {
		offset := sigma.Mul(decimal.NewFromFloat(k))
		return sma.Add(offset), sma.Sub(offset)
	}
	b := bands.Bands{SimpleMovingAverage: sma, OneStandardDev: sigma}
	b.Upper1, b.Lower1 = mk(2.0)
	b.Upper2, b.Lower2 = mk(2.5)
	b.Upper3, b.Lower3 = mk(3.0)
	return b
}

func uptrend() domain.MovingAverages {
	return domain.MovingAverages{
		Twenty:     decimal.NewFromInt(100),
		Fifty:      decimal.NewFromInt(100),
		TwoHundred: decimal.NewFromInt(95),
	}
}

func downtrend() domain.MovingAverages {
	return domain.MovingAverages{
		Twenty:     decimal.NewFromInt(100),
		Fifty:      decimal.NewFromInt(95),
		TwoHundred: decimal.NewFromInt(100),
	}
}

func TestDecide_WithinBandsNotActionable(t *testing.T) {
	e := New(10, zerolog.Nop())
	nav := decimal.NewFromInt(1000000)

	// Anywhere strictly inside the 1-sigma bands produces no action,
	// whatever the exposure.
	for _, price := range []float64{90.01, 95, 100, 105, 109.99} {
		a := e.Decide(decimal.NewFromFloat(price), testBands(), uptrend(), Exposure{LongShares: 1000}, nav)
		assert.False(t, a.Actionable(), "price %.2f should not be actionable", price)
	}
}

func TestDecide_SellCallTiers(t *testing.T) {
	e := New(10, zerolog.Nop())
	nav := decimal.NewFromInt(1000000)

	tests := []struct {
		name      string
		price     float64
		exp       Exposure
		kind      ActionKind
		contracts int64
	}{
		{
			name:      "above 2 sigma with uncovered shares",
			price:     113,
			exp:       Exposure{LongShares: 300},
			kind:      ActionSellCalls,
			contracts: 3,
		},
		{
			name:      "above 1 sigma routes to the same sizing",
			price:     110,
			exp:       Exposure{LongShares: 300},
			kind:      ActionSellCalls,
			contracts: 3,
		},
		{
			name:      "capped at five contracts",
			price:     113,
			exp:       Exposure{LongShares: 2000},
			kind:      ActionSellCalls,
			contracts: 5,
		},
		{
			name:  "fully covered already",
			price: 113,
			exp:   Exposure{LongShares: 300, ShortCallContracts: 3},
			kind:  ActionNone,
		},
		{
			name:  "no long shares",
			price: 113,
			exp:   Exposure{},
			kind:  ActionNone,
		},
		{
			name:  "odd lot under one contract",
			price: 113,
			exp:   Exposure{LongShares: 99},
			kind:  ActionNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := e.Decide(decimal.NewFromFloat(tt.price), testBands(), uptrend(), tt.exp, nav)
			assert.Equal(t, tt.kind, a.Kind)
			if tt.kind != ActionNone {
				assert.Equal(t, tt.contracts, a.Contracts)
			}
		})
	}
}

func TestDecide_SellPutTiers(t *testing.T) {
	e := New(10, zerolog.Nop())

	// 10% of 1M NAV = 100k budget; price 87.5 -> max = floor(100000/8750) = 11
	nav := decimal.NewFromInt(1000000)

	tests := []struct {
		name      string
		price     float64
		exp       Exposure
		kind      ActionKind
		contracts int64
	}{
		{
			name:      "below 3 sigma sells up to max",
			price:     85,
			exp:       Exposure{ShortPutContracts: 10},
			kind:      ActionSellPuts,
			contracts: 2,
		},
		{
			name:  "below 3 sigma but already at max",
			price: 85,
			exp:   Exposure{ShortPutContracts: 11},
			kind:  ActionNone,
		},
		{
			name:      "below 2 sigma allows up to half of max",
			price:     87.5,
			exp:       Exposure{ShortPutContracts: 4},
			kind:      ActionSellPuts,
			contracts: 2,
		},
		{
			name:  "below 2 sigma at half of max",
			price: 87.5,
			exp:   Exposure{ShortPutContracts: 5},
			kind:  ActionNone,
		},
		{
			name:      "below 1 sigma allows up to a quarter of max",
			price:     90,
			exp:       Exposure{ShortPutContracts: 1},
			kind:      ActionSellPuts,
			contracts: 2,
		},
		{
			name:  "below 1 sigma at quarter of max",
			price: 90,
			exp:   Exposure{ShortPutContracts: 2},
			kind:  ActionNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := e.Decide(decimal.NewFromFloat(tt.price), testBands(), uptrend(), tt.exp, nav)
			assert.Equal(t, tt.kind, a.Kind, "contracts %d", a.Contracts)
			if tt.kind != ActionNone {
				assert.Equal(t, tt.contracts, a.Contracts)
			}
		})
	}
}

func TestDecide_DowntrendSuppressesPuts(t *testing.T) {
	e := New(10, zerolog.Nop())
	nav := decimal.NewFromInt(1000000)

	a := e.Decide(decimal.NewFromFloat(85), testBands(), downtrend(), Exposure{}, nav)
	assert.False(t, a.Actionable())

	// Call selling is not affected by the trend filter
	a = e.Decide(decimal.NewFromFloat(113), testBands(), downtrend(), Exposure{LongShares: 300}, nav)
	assert.Equal(t, ActionSellCalls, a.Kind)
}

func TestDecide_MinimumOneContract(t *testing.T) {
	e := New(10, zerolog.Nop())

	// Small NAV: budget 1000, price 85 -> max = floor(1000/8500) = 0
	a := e.Decide(decimal.NewFromFloat(85), testBands(), uptrend(), Exposure{}, decimal.NewFromInt(10000))
	assert.False(t, a.Actionable())

	// max = 2 -> quarter rounds down to 0, floored to a single contract
	a = e.Decide(decimal.NewFromFloat(85), testBands(), uptrend(), Exposure{}, decimal.NewFromInt(200000))
	assert.Equal(t, ActionSellPuts, a.Kind)
	assert.Equal(t, int64(1), a.Contracts)
}
