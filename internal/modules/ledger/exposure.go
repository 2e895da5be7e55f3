package ledger

import (
	"github.com/aristath/wheel-trader/internal/domain"
	"github.com/aristath/wheel-trader/internal/modules/decision"
)

// ExposureFor returns the committed exposure for a ticker. Open positions and
// open same-direction orders both count, so a pending sell is already treated
// as sold and the decision engine cannot over-sell while an order waits for
// a fill.
func (l *Ledger) ExposureFor(ticker string) decision.Exposure {
	var exp decision.Exposure

	for _, p := range l.positions {
		if !p.IsOpen || p.Security.UnderlyingTicker() != ticker {
			continue
		}
		switch {
		case p.Security.Type == domain.SecurityTypeStock && !p.Short:
			exp.LongShares += p.Quantity
		case p.Security.Type == domain.SecurityTypeCall && p.Short:
			exp.ShortCallContracts += p.Quantity
		case p.Security.Type == domain.SecurityTypePut && p.Short:
			exp.ShortPutContracts += p.Quantity
		}
	}

	for _, o := range l.orders {
		if !o.IsOpen || o.Security.UnderlyingTicker() != ticker {
			continue
		}
		switch {
		case o.Security.Type == domain.SecurityTypeStock && o.Side == domain.SideBuy:
			exp.LongShares += o.Quantity
		case o.Security.Type == domain.SecurityTypeCall && o.Side == domain.SideSell:
			exp.ShortCallContracts += o.Quantity
		case o.Security.Type == domain.SecurityTypePut && o.Side == domain.SideSell:
			exp.ShortPutContracts += o.Quantity
		}
	}

	return exp
}

// NumberOfOpenPutShorts counts short-put contracts for a ticker, pending
// orders included.
func (l *Ledger) NumberOfOpenPutShorts(ticker string) int64 {
	return l.ExposureFor(ticker).ShortPutContracts
}

// CountUncoveredLongStock returns long shares not yet covering a short call,
// in whole contracts worth of shares.
func (l *Ledger) CountUncoveredLongStock(ticker string) int64 {
	exp := l.ExposureFor(ticker)
	return exp.LongShares/100 - exp.ShortCallContracts
}
