package market

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/aristath/wheel-trader/internal/domain"
)

// Market is the port through which the core consumes market data. A missing
// quote is reported as domain.ErrNoPrice, never as a panic or a crash of the
// polling loop. Retry and backoff behavior belongs to implementations.
type Market interface {
	// TickerValid reports whether the ticker is known and tradable
	TickerValid(ticker string) bool

	// LastTick returns the most recent price for a security, or
	// domain.ErrNoPrice when none is available.
	LastTick(sec *domain.Security) (decimal.Decimal, error)

	// HistoricalPrices returns daily closes from earliest onward, ascending
	HistoricalPrices(ticker string, earliest time.Time) ([]domain.DailyClose, error)

	// MovingAverages returns the 20/50/200-day simple moving averages
	MovingAverages(ticker string) (domain.MovingAverages, error)

	// IsOpenToday reports whether the market opens at all today
	IsOpenToday() bool

	// IsOpenNow reports whether the market is open right now
	IsOpenNow() bool

	// UntilOpen returns the duration until the next market open
	UntilOpen() time.Duration

	// ClosingTime returns today's closing timestamp
	ClosingTime() time.Time
}
