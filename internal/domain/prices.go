package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DailyClose is one trading day's adjusted close for a ticker
type DailyClose struct {
	Date  time.Time
	Close decimal.Decimal
}

// MovingAverages holds the 20/50/200-day simple moving averages used by the
// decision engine's trend filter.
type MovingAverages struct {
	Twenty     decimal.Decimal
	Fifty      decimal.Decimal
	TwoHundred decimal.Decimal
}
