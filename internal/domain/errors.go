package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrNoPrice is returned by the market port when no tick is available for a
// security. Callers skip the ticker for the cycle instead of failing.
var ErrNoPrice = errors.New("no price available")

// InsufficientFundsError is returned when an order's cash claim exceeds the
// portfolio's free cash. The ledger is left unmodified.
type InsufficientFundsError struct {
	Required  decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: need %s, have %s", e.Required, e.Available)
}

// InsufficientHistoryError is returned when fewer closes are available than
// the Bollinger lookback period requires. The ticker is excluded from
// decisioning until history backfills.
type InsufficientHistoryError struct {
	Ticker string
	Have   int
	Need   int
}

func (e *InsufficientHistoryError) Error() string {
	return fmt.Sprintf("insufficient history for %s: have %d closes, need %d", e.Ticker, e.Have, e.Need)
}
