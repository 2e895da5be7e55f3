package bands

import (
	"math"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/aristath/wheel-trader/internal/domain"
)

// DefaultPeriod is the Bollinger lookback window in trading days
const DefaultPeriod = 20

// Multipliers holds the three standard-deviation band multipliers
type Multipliers struct {
	SD1 float64
	SD2 float64
	SD3 float64
}

// DefaultMultipliers are the standard 2.0 / 2.5 / 3.0 sigma bands
func DefaultMultipliers() Multipliers {
	return Multipliers{SD1: 2.0, SD2: 2.5, SD3: 3.0}
}

// Bands is the computed Bollinger band set for one refresh cycle
type Bands struct {
	SimpleMovingAverage decimal.Decimal
	OneStandardDev      decimal.Decimal
	Upper1, Upper2, Upper3 decimal.Decimal
	Lower1, Lower2, Lower3 decimal.Decimal
}

// Engine computes Bollinger bands over a fixed lookback window
type Engine struct {
	period      int
	multipliers Multipliers
	log         zerolog.Logger
}

// New creates a band engine
func New(period int, multipliers Multipliers, log zerolog.Logger) *Engine {
	if period <= 0 {
		period = DefaultPeriod
	}
	return &Engine{
		period:      period,
		multipliers: multipliers,
		log:         log.With().Str("component", "bands").Logger(),
	}
}

// Period returns the lookback window length
func (e *Engine) Period() int {
	return e.period
}

// Compute derives bands from exactly period open-market closes, most recent
// last. Fewer closes than the period is an InsufficientHistoryError; the
// engine never computes over a partial window.
//
// SMA is the mean of the closes, sigma the population standard deviation
// (sum of squared deviations divided by period). Both are rounded half-up to
// 3 fractional digits before the bands are derived.
func (e *Engine) Compute(ticker string, closes []domain.DailyClose) (Bands, error) {
	if len(closes) < e.period {
		return Bands{}, &domain.InsufficientHistoryError{Ticker: ticker, Have: len(closes), Need: e.period}
	}
	window := closes[len(closes)-e.period:]

	sum := decimal.Zero
	for _, c := range window {
		sum = sum.Add(c.Close)
	}
	periodDec := decimal.NewFromInt(int64(e.period))
	sma := sum.Div(periodDec).Round(3)

	sumSq := decimal.Zero
	for _, c := range window {
		dev := c.Close.Sub(sma)
		sumSq = sumSq.Add(dev.Mul(dev))
	}
	variance, _ := sumSq.Div(periodDec).Float64()
	sigma := decimal.NewFromFloat(math.Sqrt(variance)).Round(3)

	b := Bands{
		SimpleMovingAverage: sma,
		OneStandardDev:      sigma,
	}
	b.Upper1, b.Lower1 = band(sma, sigma, e.multipliers.SD1)
	b.Upper2, b.Lower2 = band(sma, sigma, e.multipliers.SD2)
	b.Upper3, b.Lower3 = band(sma, sigma, e.multipliers.SD3)

	e.log.Debug().
		Str("ticker", ticker).
		Str("sma", sma.String()).
		Str("sigma", sigma.String()).
		Msg("Bollinger bands computed")

	return b, nil
}

func band(sma, sigma decimal.Decimal, k float64) (upper, lower decimal.Decimal) {
	offset := sigma.Mul(decimal.NewFromFloat(k))
	return sma.Add(offset), sma.Sub(offset)
}
