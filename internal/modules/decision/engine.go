package decision

import (
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/aristath/wheel-trader/internal/domain"
	"github.com/aristath/wheel-trader/internal/modules/bands"
)

// ActionKind classifies the outcome of a decision
type ActionKind string

const (
	ActionNone      ActionKind = "NONE"
	ActionSellCalls ActionKind = "SELL_CALLS"
	ActionSellPuts  ActionKind = "SELL_PUTS"
)

// Action is the price-based action produced for one ticker poll
type Action struct {
	Kind      ActionKind
	Contracts int64
}

// None is the not-actionable result
func None() Action {
	return Action{Kind: ActionNone}
}

// Actionable returns true when the action calls for an order
func (a Action) Actionable() bool {
	return a.Kind != ActionNone
}

// Exposure is the portfolio's committed exposure for a ticker. Counts include
// open positions AND open same-direction orders, so a pending order already
// blocks further selling.
type Exposure struct {
	LongShares         int64
	ShortCallContracts int64
	ShortPutContracts  int64
}

// Engine maps price vs. Bollinger bands plus current exposure to an action
type Engine struct {
	stockPctOfPortfolio decimal.Decimal // percent of NAV allowed in one ticker's put exposure
	log                 zerolog.Logger
}

// New creates a decision engine. stockPctOfPortfolio is a percentage
// (e.g. 10 means 10% of NAV).
func New(stockPctOfPortfolio float64, log zerolog.Logger) *Engine {
	return &Engine{
		stockPctOfPortfolio: decimal.NewFromFloat(stockPctOfPortfolio),
		log:                 log.With().Str("component", "decision").Logger(),
	}
}

// Decide runs the decision tree top to bottom, first match wins.
//
// The two upper-band branches are intentionally identical: crossing the 2-sigma
// band and crossing the 1-sigma band both route to the same call-selling
// logic with the same sizing. Kept as two branches to match the strategy as
// originally written.
func (e *Engine) Decide(price decimal.Decimal, b bands.Bands, avgs domain.MovingAverages, exp Exposure, nav decimal.Decimal) Action {
	switch {
	case price.GreaterThanOrEqual(b.Upper2):
		return e.sellCalls(exp)
	case price.GreaterThanOrEqual(b.Upper1):
		return e.sellCalls(exp)
	case avgs.Fifty.LessThan(avgs.TwoHundred):
		// Downtrend filter: 50-day below 200-day suppresses put selling
		return None()
	case price.LessThanOrEqual(b.Lower3):
		return e.sellPuts(exp, nav, price, func(max int64) bool { return exp.ShortPutContracts < max })
	case price.LessThanOrEqual(b.Lower2):
		return e.sellPuts(exp, nav, price, func(max int64) bool { return exp.ShortPutContracts < max/2 })
	case price.LessThanOrEqual(b.Lower1):
		return e.sellPuts(exp, nav, price, func(max int64) bool { return exp.ShortPutContracts < max/4 })
	default:
		return None()
	}
}

// sellCalls sizes a covered-call sale against uncovered long shares
func (e *Engine) sellCalls(exp Exposure) Action {
	uncovered := exp.LongShares/100 - exp.ShortCallContracts
	if uncovered < 1 {
		return None()
	}
	contracts := exp.LongShares / 100
	if contracts > 5 {
		contracts = 5
	}
	return Action{Kind: ActionSellCalls, Contracts: contracts}
}

// sellPuts sizes a cash-secured-put sale against the per-ticker NAV budget.
// maxContracts is recomputed fresh from the current NAV and price at every
// tier, never cached.
func (e *Engine) sellPuts(exp Exposure, nav, price decimal.Decimal, allowed func(max int64) bool) Action {
	max := e.maxContracts(nav, price)
	if max < 1 || !allowed(max) {
		return None()
	}
	contracts := max / 4
	if contracts < 1 {
		contracts = 1
	}
	return Action{Kind: ActionSellPuts, Contracts: contracts}
}

// maxContracts = floor(stockPct% of NAV / (price x 100))
func (e *Engine) maxContracts(nav, price decimal.Decimal) int64 {
	if !price.IsPositive() {
		return 0
	}
	budget := nav.Mul(e.stockPctOfPortfolio).Div(decimal.NewFromInt(100))
	return budget.Div(price.Mul(decimal.NewFromInt(100))).IntPart()
}
