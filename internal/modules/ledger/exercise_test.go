package ledger

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/wheel-trader/internal/domain"
)

// sellPut opens and fills a short put so exercise tests start from the
// post-fill cash state.
func sellPut(t *testing.T, l *Ledger, strike, premium float64, contracts int64) *domain.Position {
	t.Helper()
	o, err := l.NewOrder(putSecurity(t, strike), domain.SideSell, decimal.NewFromFloat(premium), contracts, domain.TIFGoodTilCancelled)
	require.NoError(t, err)
	require.NoError(t, l.AddOrder(o))
	pos, err := l.FillOrder(o, decimal.NewFromFloat(premium))
	require.NoError(t, err)
	return pos
}

func sellCall(t *testing.T, l *Ledger, strike, premium float64, contracts int64) *domain.Position {
	t.Helper()
	o, err := l.NewOrder(callSecurity(t, strike), domain.SideSell, decimal.NewFromFloat(premium), contracts, domain.TIFGoodTilCancelled)
	require.NoError(t, err)
	require.NoError(t, l.AddOrder(o))
	pos, err := l.FillOrder(o, decimal.NewFromFloat(premium))
	require.NoError(t, err)
	return pos
}

func buyOption(t *testing.T, l *Ledger, sec *domain.Security, premium float64, contracts int64) *domain.Position {
	t.Helper()
	o, err := l.NewOrder(sec, domain.SideBuy, decimal.NewFromFloat(premium), contracts, domain.TIFGoodTilCancelled)
	require.NoError(t, err)
	require.NoError(t, l.AddOrder(o))
	pos, err := l.FillOrder(o, decimal.NewFromFloat(premium))
	require.NoError(t, err)
	return pos
}

func TestExercise_ShortPutAssignment(t *testing.T) {
	l := newTestLedger(t, 1000000)
	put := sellPut(t, l, 100, 1.05, 1)

	// Post-fill: free 990105, reserved 10000
	require.Equal(t, "990105", l.FreeCash().String())

	res, err := l.ExerciseOption(put, decimal.NewFromInt(97))
	require.NoError(t, err)

	// The reserved collateral pays for the shares; free cash does not move
	assert.Equal(t, "990105", l.FreeCash().String())
	assert.True(t, l.ReservedCash().IsZero())
	checkReserved(t, l)

	// Option position closes at zero, keeping the premium as profit
	assert.False(t, put.IsOpen)
	assert.True(t, put.PriceAtClose.IsZero())
	assert.Equal(t, "105", put.Profit.String())

	// Assigned shares: 100 per contract at the strike, marked at the tick
	require.Len(t, res.Created, 1)
	stock := res.Created[0]
	assert.Equal(t, domain.SecurityTypeStock, stock.Security.Type)
	assert.Equal(t, "AAPL", stock.Security.Ticker)
	assert.Equal(t, int64(100), stock.Quantity)
	assert.Equal(t, "100", stock.PriceAtOpen.String())
	assert.Equal(t, "9700", stock.NetAssetValue.String())

	// NAV: cash 990105 + shares 9700
	assert.Equal(t, "999805", l.NetAssetValue().String())
}

func TestExercise_ShortPutMultipleContracts(t *testing.T) {
	l := newTestLedger(t, 1000000)
	put := sellPut(t, l, 100, 1.00, 3)

	res, err := l.ExerciseOption(put, decimal.NewFromInt(95))
	require.NoError(t, err)

	require.Len(t, res.Created, 1)
	assert.Equal(t, int64(300), res.Created[0].Quantity)
	assert.True(t, l.ReservedCash().IsZero())
	checkReserved(t, l)
}

func TestExpireOptionPosition_ReleasesCollateral(t *testing.T) {
	l := newTestLedger(t, 1000000)
	put := sellPut(t, l, 100, 1.05, 1)

	require.NoError(t, l.ExpireOptionPosition(put))

	// Collateral back to free cash, premium kept
	assert.Equal(t, "1000105", l.FreeCash().String())
	assert.True(t, l.ReservedCash().IsZero())
	assert.False(t, put.IsOpen)
	assert.Equal(t, "105", put.Profit.String())
	checkReserved(t, l)

	assert.Error(t, l.ExpireOptionPosition(put))
}

func TestExercise_ShortCallCovered(t *testing.T) {
	l := newTestLedger(t, 1000000)
	stock := buyStock(t, l, 200, 90)
	call := sellCall(t, l, 95, 2.50, 1)

	freeBefore := l.FreeCash()

	res, err := l.ExerciseOption(call, decimal.NewFromInt(99))
	require.NoError(t, err)

	// 100 shares delivered at the strike
	assert.Equal(t, int64(100), stock.Quantity)
	require.Len(t, res.Updated, 1)
	assert.Equal(t, stock.ID, res.Updated[0].ID)
	assert.Empty(t, res.Created)

	assert.True(t, l.FreeCash().Equal(freeBefore.Add(decimal.NewFromInt(9500))),
		"free = %s", l.FreeCash())
	assert.False(t, call.IsOpen)
	checkReserved(t, l)
}

func TestExercise_ShortCallDeliversLowestBasisFirst(t *testing.T) {
	l := newTestLedger(t, 1000000)
	expensive := buyStock(t, l, 100, 120)
	cheap := buyStock(t, l, 100, 80)
	call := sellCall(t, l, 95, 2.50, 1)

	res, err := l.ExerciseOption(call, decimal.NewFromInt(99))
	require.NoError(t, err)

	// The cheaper lot is consumed and closed at the strike
	assert.False(t, cheap.IsOpen)
	assert.Equal(t, int64(0), cheap.Quantity)
	assert.Equal(t, "95", cheap.PriceAtClose.String())

	assert.True(t, expensive.IsOpen)
	assert.Equal(t, int64(100), expensive.Quantity)

	require.Len(t, res.Updated, 1)
	assert.Equal(t, cheap.ID, res.Updated[0].ID)
}

func TestExercise_ShortCallNaked(t *testing.T) {
	l := newTestLedger(t, 1000000)
	call := sellCall(t, l, 95, 2.50, 1)

	freeBefore := l.FreeCash()

	res, err := l.ExerciseOption(call, decimal.NewFromInt(99))
	require.NoError(t, err)
	assert.Empty(t, res.Created)
	assert.Empty(t, res.Updated)

	// Bought at the 99 tick, delivered at the 95 strike: 400 loss
	assert.True(t, l.FreeCash().Equal(freeBefore.Sub(decimal.NewFromInt(400))),
		"free = %s", l.FreeCash())
	checkReserved(t, l)
}

func TestExercise_LongPutSellsHeldShares(t *testing.T) {
	l := newTestLedger(t, 1000000)
	stock := buyStock(t, l, 100, 100)
	put := buyOption(t, l, putSecurity(t, 95), 1.50, 1)

	freeBefore := l.FreeCash()

	_, err := l.ExerciseOption(put, decimal.NewFromInt(90))
	require.NoError(t, err)

	assert.False(t, stock.IsOpen)
	assert.Equal(t, int64(0), stock.Quantity)
	assert.True(t, l.FreeCash().Equal(freeBefore.Add(decimal.NewFromInt(9500))))
	assert.False(t, put.IsOpen)
	checkReserved(t, l)
}

func TestExercise_LongCallTakesDelivery(t *testing.T) {
	l := newTestLedger(t, 1000000)
	call := buyOption(t, l, callSecurity(t, 95), 2.00, 1)

	freeBefore := l.FreeCash()

	res, err := l.ExerciseOption(call, decimal.NewFromInt(99))
	require.NoError(t, err)

	require.Len(t, res.Created, 1)
	stock := res.Created[0]
	assert.Equal(t, int64(100), stock.Quantity)
	assert.Equal(t, "95", stock.PriceAtOpen.String())
	assert.Equal(t, "9900", stock.NetAssetValue.String())

	// Paid strike x 100 for the shares
	assert.True(t, l.FreeCash().Equal(freeBefore.Sub(decimal.NewFromInt(9500))))
	assert.False(t, call.IsOpen)
	checkReserved(t, l)
}

func TestExercise_RejectsNonOptionAndClosed(t *testing.T) {
	l := newTestLedger(t, 1000000)
	stock := buyStock(t, l, 100, 100)

	_, err := l.ExerciseOption(stock, decimal.NewFromInt(100))
	assert.Error(t, err)

	put := sellPut(t, l, 95, 1.00, 1)
	_, err = l.ExerciseOption(put, decimal.NewFromInt(90))
	require.NoError(t, err)
	_, err = l.ExerciseOption(put, decimal.NewFromInt(90))
	assert.Error(t, err)
}
