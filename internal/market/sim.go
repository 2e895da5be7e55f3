package market

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/aristath/wheel-trader/internal/domain"
	"github.com/aristath/wheel-trader/pkg/formulas"
)

// HistorySource supplies stored daily closes, normally the per-ticker history
// database.
type HistorySource interface {
	DailyCloses(ticker string, earliest time.Time) ([]domain.DailyClose, error)
	LatestClose(ticker string) (*domain.DailyClose, error)
}

// SimMarket is a Market implementation for simulated runs, fed entirely from
// stored price history. Stock ticks are the latest stored close; option ticks
// follow a flat premium model of intrinsic value plus a small time-value
// fraction of the underlying.
type SimMarket struct {
	history      HistorySource
	calendar     *Calendar
	tickers      map[string]struct{}
	timeValuePct decimal.Decimal
	now          func() time.Time
	log          zerolog.Logger
}

// NewSimMarket creates a simulated market over the given watch list.
// timeValuePct is the option time-value fraction (e.g. 0.01 for 1% of the
// underlying price).
func NewSimMarket(history HistorySource, calendar *Calendar, tickers []string, timeValuePct float64, log zerolog.Logger) *SimMarket {
	set := make(map[string]struct{}, len(tickers))
	for _, t := range tickers {
		set[t] = struct{}{}
	}
	return &SimMarket{
		history:      history,
		calendar:     calendar,
		tickers:      set,
		timeValuePct: decimal.NewFromFloat(timeValuePct),
		now:          time.Now,
		log:          log.With().Str("component", "sim_market").Logger(),
	}
}

// WithClock overrides the market's time source, for tests
func (m *SimMarket) WithClock(now func() time.Time) *SimMarket {
	m.now = now
	return m
}

// TickerValid reports whether the ticker is on the watch list
func (m *SimMarket) TickerValid(ticker string) bool {
	_, ok := m.tickers[ticker]
	return ok
}

// LastTick returns the latest price for a security, domain.ErrNoPrice when
// no close is stored for the (underlying) ticker.
func (m *SimMarket) LastTick(sec *domain.Security) (decimal.Decimal, error) {
	underlying, err := m.latest(sec.UnderlyingTicker())
	if err != nil {
		return decimal.Zero, err
	}
	if !sec.IsOption() {
		return underlying, nil
	}

	var intrinsic decimal.Decimal
	if sec.Type == domain.SecurityTypeCall {
		intrinsic = underlying.Sub(sec.Strike)
	} else {
		intrinsic = sec.Strike.Sub(underlying)
	}
	if intrinsic.IsNegative() {
		intrinsic = decimal.Zero
	}
	return intrinsic.Add(underlying.Mul(m.timeValuePct)).Round(2), nil
}

func (m *SimMarket) latest(ticker string) (decimal.Decimal, error) {
	dc, err := m.history.LatestClose(ticker)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to read latest close for %s: %w", ticker, err)
	}
	if dc == nil {
		return decimal.Zero, domain.ErrNoPrice
	}
	return dc.Close, nil
}

// HistoricalPrices returns stored daily closes from earliest onward
func (m *SimMarket) HistoricalPrices(ticker string, earliest time.Time) ([]domain.DailyClose, error) {
	return m.history.DailyCloses(ticker, earliest)
}

// MovingAverages computes the 20/50/200-day SMAs from stored closes
func (m *SimMarket) MovingAverages(ticker string) (domain.MovingAverages, error) {
	earliest := m.now().AddDate(0, 0, -400)
	closes, err := m.history.DailyCloses(ticker, earliest)
	if err != nil {
		return domain.MovingAverages{}, err
	}

	values := make([]float64, len(closes))
	for i, c := range closes {
		values[i], _ = c.Close.Float64()
	}

	twenty, err := formulas.LatestSMA(values, 20)
	if err != nil {
		return domain.MovingAverages{}, &domain.InsufficientHistoryError{Ticker: ticker, Have: len(values), Need: 20}
	}
	fifty, err := formulas.LatestSMA(values, 50)
	if err != nil {
		return domain.MovingAverages{}, &domain.InsufficientHistoryError{Ticker: ticker, Have: len(values), Need: 50}
	}
	twoHundred, err := formulas.LatestSMA(values, 200)
	if err != nil {
		return domain.MovingAverages{}, &domain.InsufficientHistoryError{Ticker: ticker, Have: len(values), Need: 200}
	}

	return domain.MovingAverages{
		Twenty:     decimal.NewFromFloat(twenty).Round(3),
		Fifty:      decimal.NewFromFloat(fifty).Round(3),
		TwoHundred: decimal.NewFromFloat(twoHundred).Round(3),
	}, nil
}

// IsOpenToday reports whether today is a trading day
func (m *SimMarket) IsOpenToday() bool {
	return m.calendar.IsTradingDay(m.now())
}

// IsOpenNow reports whether the market is inside its trading window
func (m *SimMarket) IsOpenNow() bool {
	return m.calendar.IsOpenAt(m.now())
}

// UntilOpen returns the wait until the next market open
func (m *SimMarket) UntilOpen() time.Duration {
	now := m.now()
	return m.calendar.NextOpen(now).Sub(now)
}

// ClosingTime returns today's closing timestamp
func (m *SimMarket) ClosingTime() time.Time {
	return m.calendar.CloseTime(m.now())
}
