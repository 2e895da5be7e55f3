package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

func testStock(t *testing.T, ticker string) *Security {
	t.Helper()
	sec, err := NewStock(ticker)
	require.NoError(t, err)
	return sec
}

func testOption(t *testing.T, secType SecurityType, underlying string, strike float64) *Security {
	t.Helper()
	expiry := time.Date(2026, 3, 6, 0, 0, 0, 0, time.UTC)
	sec, err := NewOption(secType, underlying, decimal.NewFromFloat(strike), expiry)
	require.NoError(t, err)
	return sec
}

func TestNewOrder_ClaimAgainstCash(t *testing.T) {
	tests := []struct {
		name     string
		sec      func(t *testing.T) *Security
		side     Side
		limit    float64
		quantity int64
		claim    string
	}{
		{
			name:     "buy stock claims limit x quantity",
			sec:      func(t *testing.T) *Security { return testStock(t, "AAPL") },
			side:     SideBuy,
			limit:    150.25,
			quantity: 10,
			claim:    "1502.5",
		},
		{
			name:     "buy option claims limit x quantity x 100",
			sec:      func(t *testing.T) *Security { return testOption(t, SecurityTypeCall, "AAPL", 160) },
			side:     SideBuy,
			limit:    2.50,
			quantity: 2,
			claim:    "500",
		},
		{
			name:     "sell put claims strike minus premium",
			sec:      func(t *testing.T) *Security { return testOption(t, SecurityTypePut, "AAPL", 100) },
			side:     SideSell,
			limit:    1.00,
			quantity: 1,
			claim:    "9900",
		},
		{
			name:     "sell put claim scales with quantity",
			sec:      func(t *testing.T) *Security { return testOption(t, SecurityTypePut, "AAPL", 100) },
			side:     SideSell,
			limit:    1.00,
			quantity: 3,
			claim:    "29700",
		},
		{
			name:     "sell call claims nothing",
			sec:      func(t *testing.T) *Security { return testOption(t, SecurityTypeCall, "AAPL", 160) },
			side:     SideSell,
			limit:    2.50,
			quantity: 5,
			claim:    "0",
		},
		{
			name:     "sell stock claims nothing",
			sec:      func(t *testing.T) *Security { return testStock(t, "AAPL") },
			side:     SideSell,
			limit:    150.00,
			quantity: 100,
			claim:    "0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, err := NewOrder(1, tt.sec(t), tt.side, decimal.NewFromFloat(tt.limit), tt.quantity, TIFGoodTilCancelled, testNow)
			require.NoError(t, err)
			assert.True(t, o.ClaimAgainstCash.Equal(decimal.RequireFromString(tt.claim)),
				"claim = %s, want %s", o.ClaimAgainstCash, tt.claim)
			assert.True(t, o.IsOpen)
		})
	}
}

func TestNewOrder_Validation(t *testing.T) {
	sec := testStock(t, "AAPL")
	limit := decimal.NewFromInt(100)

	_, err := NewOrder(1, nil, SideBuy, limit, 1, TIFGoodTilCancelled, testNow)
	assert.Error(t, err)
	_, err = NewOrder(1, sec, "HOLD", limit, 1, TIFGoodTilCancelled, testNow)
	assert.Error(t, err)
	_, err = NewOrder(1, sec, SideBuy, limit, 1, "FOREVER", testNow)
	assert.Error(t, err)
	_, err = NewOrder(1, sec, SideBuy, limit, 0, TIFGoodTilCancelled, testNow)
	assert.Error(t, err)
	_, err = NewOrder(1, sec, SideBuy, decimal.Zero, 1, TIFGoodTilCancelled, testNow)
	assert.Error(t, err)
}

// A sell-put premium at or above the strike would invert the cash claim and
// let the order drive reserved cash negative.
func TestNewOrder_RejectsSellPutLimitAtOrAboveStrike(t *testing.T) {
	put := testOption(t, SecurityTypePut, "AAPL", 100)

	_, err := NewOrder(1, put, SideSell, decimal.NewFromInt(101), 1, TIFGoodTilCancelled, testNow)
	assert.Error(t, err)
	_, err = NewOrder(1, put, SideSell, decimal.NewFromInt(100), 1, TIFGoodTilCancelled, testNow)
	assert.Error(t, err)

	// Below the strike is the normal case; buys and calls are unaffected
	o, err := NewOrder(1, put, SideSell, decimal.NewFromFloat(99.99), 1, TIFGoodTilCancelled, testNow)
	require.NoError(t, err)
	assert.True(t, o.ClaimAgainstCash.IsPositive())
	_, err = NewOrder(2, put, SideBuy, decimal.NewFromInt(101), 1, TIFGoodTilCancelled, testNow)
	assert.NoError(t, err)
	call := testOption(t, SecurityTypeCall, "AAPL", 100)
	_, err = NewOrder(3, call, SideSell, decimal.NewFromInt(101), 1, TIFGoodTilCancelled, testNow)
	assert.NoError(t, err)
}

func TestOrder_CanBeFilled(t *testing.T) {
	sec := testOption(t, SecurityTypePut, "AAPL", 100)

	buy, err := NewOrder(1, sec, SideBuy, decimal.NewFromInt(2), 1, TIFGoodTilCancelled, testNow)
	require.NoError(t, err)
	sell, err := NewOrder(2, sec, SideSell, decimal.NewFromInt(2), 1, TIFGoodTilCancelled, testNow)
	require.NoError(t, err)

	// Buy fills at or below the limit, sell at or above
	assert.True(t, buy.CanBeFilled(decimal.NewFromFloat(1.95)))
	assert.True(t, buy.CanBeFilled(decimal.NewFromInt(2)))
	assert.False(t, buy.CanBeFilled(decimal.NewFromFloat(2.05)))

	assert.False(t, sell.CanBeFilled(decimal.NewFromFloat(1.95)))
	assert.True(t, sell.CanBeFilled(decimal.NewFromInt(2)))
	assert.True(t, sell.CanBeFilled(decimal.NewFromFloat(2.05)))

	// A non-positive tick means no price and never fills
	assert.False(t, buy.CanBeFilled(decimal.Zero))
	assert.False(t, sell.CanBeFilled(decimal.NewFromInt(-1)))

	// Closed orders never fill
	require.NoError(t, sell.Fill(decimal.NewFromFloat(2.05), testNow))
	assert.False(t, sell.CanBeFilled(decimal.NewFromInt(3)))
}

func TestOrder_Transitions(t *testing.T) {
	sec := testStock(t, "AAPL")

	o, err := NewOrder(1, sec, SideBuy, decimal.NewFromInt(100), 1, TIFGoodForDay, testNow)
	require.NoError(t, err)

	require.NoError(t, o.Fill(decimal.NewFromInt(99), testNow))
	assert.False(t, o.IsOpen)
	assert.Equal(t, CloseReasonFilled, o.CloseReason)
	assert.True(t, o.FillPrice.Equal(decimal.NewFromInt(99)))

	// Terminal states reject further transitions
	assert.Error(t, o.Fill(decimal.NewFromInt(98), testNow))
	assert.Error(t, o.CloseExpired(testNow))
	assert.Error(t, o.CloseCancelled(testNow))

	o2, err := NewOrder(2, sec, SideBuy, decimal.NewFromInt(100), 1, TIFGoodForDay, testNow)
	require.NoError(t, err)
	require.NoError(t, o2.CloseExpired(testNow))
	assert.Equal(t, CloseReasonExpired, o2.CloseReason)
	assert.True(t, o2.FillPrice.IsZero())

	o3, err := NewOrder(3, sec, SideBuy, decimal.NewFromInt(100), 1, TIFGoodForDay, testNow)
	require.NoError(t, err)
	require.NoError(t, o3.CloseCancelled(testNow))
	assert.Equal(t, CloseReasonCancelled, o3.CloseReason)
}
