package settlement

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/aristath/wheel-trader/internal/domain"
	"github.com/aristath/wheel-trader/internal/market"
	"github.com/aristath/wheel-trader/internal/modules/ledger"
	"github.com/aristath/wheel-trader/internal/store"
)

// Engine reconciles expiring option positions: in-the-money positions are
// exercised or assigned through the ledger, out-of-the-money positions expire
// worthless. Triggered on Friday poll cycles and at session end; a position
// settles no earlier than its expiry day, and positions already past expiry
// (stale on load) settle on first sight.
type Engine struct {
	ledger *ledger.Ledger
	market market.Market
	store  store.DataStore
	log    zerolog.Logger
}

// New creates a settlement engine
func New(l *ledger.Ledger, m market.Market, ds store.DataStore, log zerolog.Logger) *Engine {
	return &Engine{
		ledger: l,
		market: m,
		store:  ds,
		log:    log.With().Str("component", "settlement").Logger(),
	}
}

// Reconcile settles every open option position at or past its expiry date.
// A position expiring later this week stays open until its expiry day; a
// ticker with no price is skipped and retried on the next reconciliation,
// and the loop never aborts on a single position.
func (e *Engine) Reconcile(now time.Time) error {
	today := dateOnly(now)
	var firstErr error

	for _, p := range e.ledger.OpenOptionPositions() {
		expiry := dateOnly(p.Security.Expiry)
		if expiry.After(today) {
			continue
		}

		stock, err := domain.NewStock(p.Security.Underlying)
		if err != nil {
			return fmt.Errorf("position %d has no valid underlying: %w", p.ID, err)
		}
		tick, err := e.market.LastTick(stock)
		if errors.Is(err, domain.ErrNoPrice) {
			e.log.Warn().
				Int64("position_id", p.ID).
				Str("underlying", p.Security.Underlying).
				Msg("No underlying price, settlement deferred")
			continue
		}
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		if err := e.settle(p, tick); err != nil {
			e.log.Error().Err(err).Int64("position_id", p.ID).Msg("Settlement failed")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (e *Engine) settle(p *domain.Position, tick decimal.Decimal) error {
	if !InTheMoney(p.Security, tick) {
		if err := e.ledger.ExpireOptionPosition(p); err != nil {
			return err
		}
		_ = e.store.ClosePosition(p)
		return nil
	}

	res, err := e.ledger.ExerciseOption(p, tick)
	if err != nil {
		return err
	}
	_ = e.store.ClosePosition(p)
	for _, created := range res.Created {
		_ = e.store.WritePosition(created)
	}
	for _, updated := range res.Updated {
		_ = e.store.WritePosition(updated)
	}
	return nil
}

// InTheMoney applies the moneyness test at expiry: a put is ITM when the
// underlying is at or below the strike, a call when at or above.
func InTheMoney(sec *domain.Security, underlying decimal.Decimal) bool {
	if sec.Type == domain.SecurityTypePut {
		return underlying.LessThanOrEqual(sec.Strike)
	}
	return underlying.GreaterThanOrEqual(sec.Strike)
}

// ThisFriday returns the Friday of the current week at day granularity,
// today when today is Friday.
func ThisFriday(now time.Time) time.Time {
	d := dateOnly(now)
	offset := (int(time.Friday) - int(d.Weekday()) + 7) % 7
	return d.AddDate(0, 0, offset)
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
