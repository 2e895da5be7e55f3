package store

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/wheel-trader/internal/domain"
)

var testNow = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

func testPut(t *testing.T, underlying string, strike float64) *domain.Security {
	t.Helper()
	expiry := time.Date(2026, 3, 6, 0, 0, 0, 0, time.UTC)
	sec, err := domain.NewOption(domain.SecurityTypePut, underlying, decimal.NewFromFloat(strike), expiry)
	require.NoError(t, err)
	return sec
}

func TestOrderRecord_RoundTrip(t *testing.T) {
	sec := testPut(t, "AAPL", 100)
	o, err := domain.NewOrder(42, sec, domain.SideSell, decimal.NewFromInt(1), 2, domain.TIFGoodTilCancelled, testNow)
	require.NoError(t, err)

	got, err := orderToRecord("main", o).toOrder()
	require.NoError(t, err)

	assert.Equal(t, o.ID, got.ID)
	assert.Equal(t, o.Security.Ticker, got.Security.Ticker)
	assert.Equal(t, o.Security.Type, got.Security.Type)
	assert.Equal(t, o.Security.Underlying, got.Security.Underlying)
	assert.True(t, got.Security.Strike.Equal(o.Security.Strike))
	assert.True(t, got.Security.Expiry.Equal(o.Security.Expiry))
	assert.Equal(t, o.Side, got.Side)
	assert.True(t, got.Limit.Equal(o.Limit))
	assert.Equal(t, o.Quantity, got.Quantity)
	assert.Equal(t, o.TIF, got.TIF)
	assert.True(t, got.ClaimAgainstCash.Equal(o.ClaimAgainstCash))
	assert.True(t, got.IsOpen)
	assert.True(t, got.OpenedAt.Equal(o.OpenedAt))
	assert.True(t, got.ClosedAt.IsZero())
	assert.True(t, got.FillPrice.IsZero())
}

func TestOrderRecord_RoundTripFilled(t *testing.T) {
	sec := testPut(t, "AAPL", 100)
	o, err := domain.NewOrder(43, sec, domain.SideSell, decimal.NewFromInt(1), 1, domain.TIFGoodForDay, testNow)
	require.NoError(t, err)
	require.NoError(t, o.Fill(decimal.NewFromFloat(1.05), testNow.Add(time.Hour)))

	got, err := orderToRecord("main", o).toOrder()
	require.NoError(t, err)

	assert.False(t, got.IsOpen)
	assert.Equal(t, domain.CloseReasonFilled, got.CloseReason)
	assert.True(t, got.FillPrice.Equal(decimal.NewFromFloat(1.05)))
	assert.True(t, got.ClosedAt.Equal(o.ClosedAt))
}

func TestOrderRecord_RejectsBadFields(t *testing.T) {
	sec := testPut(t, "AAPL", 100)
	o, err := domain.NewOrder(44, sec, domain.SideSell, decimal.NewFromInt(1), 1, domain.TIFGoodTilCancelled, testNow)
	require.NoError(t, err)

	base := orderToRecord("main", o)

	tests := []struct {
		name   string
		mutate func(r *orderRecord)
	}{
		{"bad limit", func(r *orderRecord) { r.Limit = "not-a-number" }},
		{"bad claim", func(r *orderRecord) { r.Claim = "x" }},
		{"bad opened_at", func(r *orderRecord) { r.OpenedAt = "yesterday" }},
		{"bad strike", func(r *orderRecord) { r.Strike = "??" }},
		{"bad expiry", func(r *orderRecord) { r.Expiry = "03/06/2026" }},
		{"invalid side", func(r *orderRecord) { r.Side = "HOLD" }},
		{"invalid tif", func(r *orderRecord) { r.TIF = "FOK" }},
		{"zero quantity", func(r *orderRecord) { r.Quantity = 0 }},
		{"option missing underlying", func(r *orderRecord) { r.Underlying = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := base
			tt.mutate(&rec)
			_, err := rec.toOrder()
			assert.Error(t, err)
		})
	}
}

func TestPositionRecord_RoundTrip(t *testing.T) {
	sec := testPut(t, "AAPL", 100)
	p, err := domain.NewPosition(7, 42, sec, true, 1, decimal.NewFromFloat(1.05), testNow)
	require.NoError(t, err)
	p.MarkToMarket(decimal.NewFromFloat(0.40))

	got, err := positionToRecord("main", p).toPosition()
	require.NoError(t, err)

	assert.Equal(t, p.ID, got.ID)
	assert.Equal(t, p.OrderID, got.OrderID)
	assert.Equal(t, p.Security.Ticker, got.Security.Ticker)
	assert.True(t, got.Short)
	assert.Equal(t, p.Quantity, got.Quantity)
	assert.True(t, got.PriceAtOpen.Equal(p.PriceAtOpen))
	assert.True(t, got.CostBasis.Equal(p.CostBasis))
	assert.True(t, got.ClaimAgainstCash.Equal(p.ClaimAgainstCash))
	assert.True(t, got.LastPrice.Equal(p.LastPrice))
	assert.True(t, got.NetAssetValue.Equal(p.NetAssetValue))
	assert.True(t, got.Profit.Equal(p.Profit))
	assert.True(t, got.IsOpen)
	assert.True(t, got.OpenedAt.Equal(p.OpenedAt))
}

func TestPositionRecord_RoundTripClosedStock(t *testing.T) {
	sec, err := domain.NewStock("AAPL")
	require.NoError(t, err)
	p, err := domain.NewPosition(8, 42, sec, false, 100, decimal.NewFromInt(150), testNow)
	require.NoError(t, err)
	require.NoError(t, p.Close(decimal.NewFromInt(160), testNow.Add(24*time.Hour)))

	rec := positionToRecord("main", p)
	assert.Equal(t, "", rec.Strike)
	assert.Equal(t, "", rec.Expiry)

	got, err := rec.toPosition()
	require.NoError(t, err)

	assert.False(t, got.IsOpen)
	assert.False(t, got.Security.IsOption())
	assert.True(t, got.Security.Strike.IsZero())
	assert.True(t, got.Security.Expiry.IsZero())
	assert.True(t, got.PriceAtClose.Equal(decimal.NewFromInt(160)))
	assert.True(t, got.Profit.Equal(p.Profit))
	assert.True(t, got.ClosedAt.Equal(p.ClosedAt))
}

func TestPositionRecord_RejectsBadFields(t *testing.T) {
	sec := testPut(t, "AAPL", 100)
	p, err := domain.NewPosition(9, 42, sec, true, 1, decimal.NewFromFloat(1.05), testNow)
	require.NoError(t, err)
	base := positionToRecord("main", p)

	tests := []struct {
		name   string
		mutate func(r *positionRecord)
	}{
		{"bad cost basis", func(r *positionRecord) { r.CostBasis = "nan" }},
		{"bad nav", func(r *positionRecord) { r.NAV = "nan" }},
		{"bad closed_at", func(r *positionRecord) { r.ClosedAt = "later" }},
		{"negative quantity", func(r *positionRecord) { r.Quantity = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := base
			tt.mutate(&rec)
			_, err := rec.toPosition()
			assert.Error(t, err)
		})
	}
}
