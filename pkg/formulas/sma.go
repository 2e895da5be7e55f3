package formulas

import (
	"fmt"

	"github.com/markcheno/go-talib"
)

// LatestSMA returns the most recent simple moving average over the given
// period.
//
// Args:
//
//	values: Array of closing prices, oldest first
//	period: SMA window (20, 50 and 200 are the ones the strategy uses)
func LatestSMA(values []float64, period int) (float64, error) {
	if len(values) < period {
		return 0, fmt.Errorf("need %d values for SMA, have %d", period, len(values))
	}

	sma := talib.Sma(values, period)
	last := sma[len(sma)-1]
	if isNaN(last) {
		return 0, fmt.Errorf("SMA produced no value for period %d", period)
	}
	return last, nil
}

// isNaN checks if a float64 is NaN
func isNaN(f float64) bool {
	return f != f
}
