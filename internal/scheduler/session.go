package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/aristath/wheel-trader/internal/domain"
	"github.com/aristath/wheel-trader/internal/market"
	"github.com/aristath/wheel-trader/internal/modules/bands"
	"github.com/aristath/wheel-trader/internal/modules/decision"
	"github.com/aristath/wheel-trader/internal/modules/ledger"
	"github.com/aristath/wheel-trader/internal/modules/settlement"
	"github.com/aristath/wheel-trader/internal/store"
)

// Strike offsets for new option orders: puts are written 5% below the
// current price, calls 5% above, rounded to whole dollars away from it.
var (
	putStrikeOffset  = decimal.NewFromFloat(0.95)
	callStrikeOffset = decimal.NewFromFloat(1.05)
)

// SessionConfig holds the per-run knobs of the trading session
type SessionConfig struct {
	Tickers   []string
	PollDelay time.Duration
	TIF       domain.TimeInForce
}

// Session is the daily trading loop: poll the watch list one ticker per
// cycle, decide, submit, fill, mark, persist, and settle expiring options.
// It is the single logical thread of control that mutates the ledger.
type Session struct {
	cfg        SessionConfig
	market     market.Market
	store      store.DataStore
	ledger     *ledger.Ledger
	bands      *bands.Engine
	decision   *decision.Engine
	settlement *settlement.Engine
	clock      Clock
	idx        int
	log        zerolog.Logger
}

// NewSession wires a trading session
func NewSession(
	cfg SessionConfig,
	m market.Market,
	ds store.DataStore,
	l *ledger.Ledger,
	be *bands.Engine,
	de *decision.Engine,
	se *settlement.Engine,
	clock Clock,
	log zerolog.Logger,
) *Session {
	return &Session{
		cfg:        cfg,
		market:     m,
		store:      ds,
		ledger:     l,
		bands:      be,
		decision:   de,
		settlement: se,
		clock:      clock,
		log:        log.With().Str("component", "session").Logger(),
	}
}

// Run executes one trading day. The only suspension points are the
// wait-for-open sleep and the inter-cycle pause; both return promptly when
// the context is cancelled. Expiry reconciliation and the final NAV persist
// run even when the market never opened.
func (s *Session) Run(ctx context.Context) error {
	if s.market.IsOpenToday() {
		if err := s.waitForOpen(ctx); err != nil {
			return err
		}
		if err := s.pollLoop(ctx); err != nil {
			return err
		}
		s.closeGoodForDayOrders()
		s.persistClosingPrices()
	} else {
		s.log.Info().Msg("Market closed today, skipping poll loop")
	}

	if err := s.settlement.Reconcile(s.clock.Now()); err != nil {
		s.log.Error().Err(err).Msg("Expiry reconciliation reported errors")
	}
	s.persistSummary()
	return ctx.Err()
}

func (s *Session) waitForOpen(ctx context.Context) error {
	if s.market.IsOpenNow() {
		return nil
	}
	wait := s.market.UntilOpen()
	s.log.Info().Dur("wait", wait).Msg("Waiting for market open")
	return s.clock.Sleep(ctx, wait)
}

func (s *Session) pollLoop(ctx context.Context) error {
	for s.market.IsOpenNow() {
		if err := ctx.Err(); err != nil {
			return err
		}

		ticker := s.nextTicker()
		s.evaluate(ticker)
		s.checkOpenOrders()
		s.markPositions()
		s.persistSummary()

		if s.clock.Now().Weekday() == time.Friday {
			if err := s.settlement.Reconcile(s.clock.Now()); err != nil {
				s.log.Error().Err(err).Msg("Friday settlement reported errors")
			}
		}

		wait := s.cfg.PollDelay
		if untilClose := s.market.ClosingTime().Sub(s.clock.Now()); untilClose < wait {
			wait = untilClose
		}
		if err := s.clock.Sleep(ctx, wait); err != nil {
			return err
		}
	}
	return nil
}

// nextTicker advances the watch-list iterator, wrapping at the end
func (s *Session) nextTicker() string {
	t := s.cfg.Tickers[s.idx%len(s.cfg.Tickers)]
	s.idx++
	return t
}

// evaluate runs the decision engine for one ticker and submits the
// resulting order, if any. Missing prices and short history skip the ticker
// for this cycle; they are never fatal.
func (s *Session) evaluate(ticker string) {
	stock, err := domain.NewStock(ticker)
	if err != nil {
		s.log.Error().Err(err).Str("ticker", ticker).Msg("Bad watch-list ticker")
		return
	}
	tick, err := s.market.LastTick(stock)
	if err != nil {
		s.skip(ticker, "no price", err)
		return
	}

	earliest := s.clock.Now().AddDate(0, 0, -(s.bands.Period()*2 + 10))
	closes, err := s.store.HistoricalPrices(ticker, earliest)
	if err != nil {
		s.skip(ticker, "history read failed", err)
		return
	}
	b, err := s.bands.Compute(ticker, closes)
	if err != nil {
		s.skip(ticker, "bands not computable", err)
		return
	}
	avgs, err := s.market.MovingAverages(ticker)
	if err != nil {
		s.skip(ticker, "moving averages not computable", err)
		return
	}

	exposure := s.ledger.ExposureFor(ticker)
	nav := s.ledger.NetAssetValue()
	action := s.decision.Decide(tick, b, avgs, exposure, nav)
	if !action.Actionable() {
		return
	}
	s.submit(ticker, tick, action)
}

func (s *Session) skip(ticker, reason string, err error) {
	var histErr *domain.InsufficientHistoryError
	if errors.Is(err, domain.ErrNoPrice) || errors.As(err, &histErr) {
		s.log.Debug().Str("ticker", ticker).Str("reason", reason).Msg("Ticker skipped this cycle")
		return
	}
	s.log.Warn().Err(err).Str("ticker", ticker).Str("reason", reason).Msg("Ticker skipped this cycle")
}

func (s *Session) submit(ticker string, tick decimal.Decimal, action decision.Action) {
	expiry := s.nextExpiry()

	var sec *domain.Security
	var err error
	switch action.Kind {
	case decision.ActionSellCalls:
		strike := tick.Mul(callStrikeOffset).Ceil()
		sec, err = domain.NewOption(domain.SecurityTypeCall, ticker, strike, expiry)
	case decision.ActionSellPuts:
		strike := tick.Mul(putStrikeOffset).Floor()
		if !strike.IsPositive() {
			return
		}
		sec, err = domain.NewOption(domain.SecurityTypePut, ticker, strike, expiry)
	default:
		return
	}
	if err != nil {
		s.log.Error().Err(err).Str("ticker", ticker).Msg("Cannot build option security")
		return
	}

	quote, err := s.market.LastTick(sec)
	if err != nil || !quote.IsPositive() {
		s.skip(ticker, "no option quote", err)
		return
	}

	order, err := s.ledger.NewOrder(sec, domain.SideSell, quote, action.Contracts, s.cfg.TIF)
	if err != nil {
		s.log.Error().Err(err).Str("ticker", ticker).Msg("Cannot build order")
		return
	}
	if err := s.ledger.AddOrder(order); err != nil {
		var insufficient *domain.InsufficientFundsError
		if errors.As(err, &insufficient) {
			s.log.Warn().
				Str("ticker", ticker).
				Str("required", insufficient.Required.String()).
				Str("available", insufficient.Available.String()).
				Msg("Order skipped, insufficient free cash")
			return
		}
		s.log.Error().Err(err).Str("ticker", ticker).Msg("Order rejected")
		return
	}
	_ = s.store.WriteOrder(order)
}

// nextExpiry returns the Friday the strategy writes against: this week's
// Friday, or next week's when that is already today or past.
func (s *Session) nextExpiry() time.Time {
	now := s.clock.Now()
	friday := settlement.ThisFriday(now)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if !friday.After(today) {
		friday = friday.AddDate(0, 0, 7)
	}
	return friday
}

// checkOpenOrders fills every open order whose limit trades against the
// latest tick.
func (s *Session) checkOpenOrders() {
	for _, o := range s.ledger.OpenOrders() {
		tick, err := s.market.LastTick(o.Security)
		if err != nil {
			continue
		}
		if !o.CanBeFilled(tick) {
			continue
		}
		pos, err := s.ledger.FillOrder(o, tick)
		if err != nil {
			s.log.Error().Err(err).Int64("order_id", o.ID).Msg("Fill failed")
			continue
		}
		_ = s.store.CloseOrder(o)
		_ = s.store.WritePosition(pos)
	}
}

// markPositions marks all open positions to the latest ticks
func (s *Session) markPositions() {
	for _, p := range s.ledger.OpenPositions() {
		tick, err := s.market.LastTick(p.Security)
		if err != nil {
			continue
		}
		s.ledger.MarkPosition(p, tick)
	}
}

// closeGoodForDayOrders expires unfilled GFD orders at session end
func (s *Session) closeGoodForDayOrders() {
	for _, o := range s.ledger.OpenOrders() {
		if o.TIF != domain.TIFGoodForDay {
			continue
		}
		if err := s.ledger.ExpireOrder(o); err != nil {
			s.log.Error().Err(err).Int64("order_id", o.ID).Msg("GFD expiry failed")
			continue
		}
		_ = s.store.CloseOrder(o)
	}
}

// persistClosingPrices writes the marked open positions at session end
func (s *Session) persistClosingPrices() {
	for _, p := range s.ledger.OpenPositions() {
		_ = s.store.WritePosition(p)
	}
}

func (s *Session) persistSummary() {
	_ = s.store.WritePortfolioSummary(s.ledger.Snapshot())
}
