package ledger

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/aristath/wheel-trader/internal/domain"
)

// Ledger is the portfolio's cash and bookkeeping authority. Every cash
// mutation in the system happens through its methods, which maintain the
// invariant freeCash + reservedCash == totalCash after every operation.
//
// The ledger assumes a single logical thread of control (the trading
// session loop); it carries no internal locking.
type Ledger struct {
	name         string
	freeCash     decimal.Decimal
	reservedCash decimal.Decimal
	orders       []*domain.Order
	positions    []*domain.Position
	ids          *domain.TxIDGenerator
	now          func() time.Time
	log          zerolog.Logger
}

// New creates a ledger with all cash free
func New(name string, startingCash decimal.Decimal, ids *domain.TxIDGenerator, log zerolog.Logger) (*Ledger, error) {
	if !startingCash.IsPositive() {
		return nil, fmt.Errorf("starting cash must be positive, got %s", startingCash)
	}
	return &Ledger{
		name:     name,
		freeCash: startingCash,
		ids:      ids,
		now:      time.Now,
		log:      log.With().Str("component", "ledger").Str("portfolio", name).Logger(),
	}, nil
}

// WithClock overrides the ledger's time source, for tests
func (l *Ledger) WithClock(now func() time.Time) *Ledger {
	l.now = now
	return l
}

// Name returns the portfolio name
func (l *Ledger) Name() string { return l.name }

// FreeCash returns cash available for new claims
func (l *Ledger) FreeCash() decimal.Decimal { return l.freeCash }

// ReservedCash returns cash held against open claims
func (l *Ledger) ReservedCash() decimal.Decimal { return l.reservedCash }

// TotalCash returns free plus reserved cash
func (l *Ledger) TotalCash() decimal.Decimal { return l.freeCash.Add(l.reservedCash) }

// NewOrder builds an order with a ledger-issued transaction id
func (l *Ledger) NewOrder(sec *domain.Security, side domain.Side, limit decimal.Decimal, quantity int64, tif domain.TimeInForce) (*domain.Order, error) {
	return domain.NewOrder(l.ids.Next(), sec, side, limit, quantity, tif, l.now())
}

// AddOrder records an open order and moves its cash claim from free to
// reserved. On InsufficientFundsError the ledger is left untouched.
func (l *Ledger) AddOrder(o *domain.Order) error {
	if l.freeCash.LessThan(o.ClaimAgainstCash) {
		return &domain.InsufficientFundsError{Required: o.ClaimAgainstCash, Available: l.freeCash}
	}
	l.freeCash = l.freeCash.Sub(o.ClaimAgainstCash)
	l.reservedCash = l.reservedCash.Add(o.ClaimAgainstCash)
	l.orders = append(l.orders, o)

	l.log.Info().
		Int64("order_id", o.ID).
		Str("ticker", o.Security.Ticker).
		Str("side", string(o.Side)).
		Int64("quantity", o.Quantity).
		Str("limit", o.Limit.String()).
		Str("claim", o.ClaimAgainstCash.String()).
		Msg("Order opened")
	return nil
}

// FillOrder transitions the order to FILLED and atomically creates the
// resulting position: the order's claim is released, the position's own claim
// (nonzero only for short puts) is reserved, and free cash is debited by the
// position's signed cost basis.
func (l *Ledger) FillOrder(o *domain.Order, price decimal.Decimal) (*domain.Position, error) {
	now := l.now()
	if err := o.Fill(price, now); err != nil {
		return nil, err
	}
	l.reservedCash = l.reservedCash.Sub(o.ClaimAgainstCash)
	l.freeCash = l.freeCash.Add(o.ClaimAgainstCash)

	pos, err := domain.NewPositionFromOrder(l.ids.Next(), o, price, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create position from order %d: %w", o.ID, err)
	}
	l.freeCash = l.freeCash.Sub(pos.ClaimAgainstCash)
	l.reservedCash = l.reservedCash.Add(pos.ClaimAgainstCash)
	l.freeCash = l.freeCash.Sub(pos.CostBasis)
	l.positions = append(l.positions, pos)

	l.log.Info().
		Int64("order_id", o.ID).
		Int64("position_id", pos.ID).
		Str("ticker", o.Security.Ticker).
		Str("fill_price", price.String()).
		Str("cost_basis", pos.CostBasis.String()).
		Msg("Order filled")
	return pos, nil
}

// ExpireOrder closes an unfilled order as EXPIRED and releases its claim
func (l *Ledger) ExpireOrder(o *domain.Order) error {
	if err := o.CloseExpired(l.now()); err != nil {
		return err
	}
	l.releaseOrderClaim(o)
	l.log.Info().Int64("order_id", o.ID).Str("ticker", o.Security.Ticker).Msg("Order expired")
	return nil
}

// CancelOrder closes an unfilled order as CANCELLED and releases its claim
func (l *Ledger) CancelOrder(o *domain.Order) error {
	if err := o.CloseCancelled(l.now()); err != nil {
		return err
	}
	l.releaseOrderClaim(o)
	l.log.Info().Int64("order_id", o.ID).Str("ticker", o.Security.Ticker).Msg("Order cancelled")
	return nil
}

func (l *Ledger) releaseOrderClaim(o *domain.Order) {
	l.reservedCash = l.reservedCash.Sub(o.ClaimAgainstCash)
	l.freeCash = l.freeCash.Add(o.ClaimAgainstCash)
}

// MarkPosition marks an open position to the latest tick
func (l *Ledger) MarkPosition(p *domain.Position, price decimal.Decimal) {
	p.MarkToMarket(price)
}

// NetAssetValue returns total cash plus the mark-to-market value of all open
// positions. Idempotent; computing it never mutates the ledger.
func (l *Ledger) NetAssetValue() decimal.Decimal {
	nav := l.TotalCash()
	for _, p := range l.positions {
		if p.IsOpen {
			nav = nav.Add(p.NetAssetValue)
		}
	}
	return nav
}

// OpenOrders returns all orders still in the OPEN state
func (l *Ledger) OpenOrders() []*domain.Order {
	var open []*domain.Order
	for _, o := range l.orders {
		if o.IsOpen {
			open = append(open, o)
		}
	}
	return open
}

// OpenPositions returns all open positions
func (l *Ledger) OpenPositions() []*domain.Position {
	var open []*domain.Position
	for _, p := range l.positions {
		if p.IsOpen {
			open = append(open, p)
		}
	}
	return open
}

// OpenOptionPositions returns open positions in calls or puts
func (l *Ledger) OpenOptionPositions() []*domain.Position {
	var open []*domain.Position
	for _, p := range l.positions {
		if p.IsOpen && p.Security.IsOption() {
			open = append(open, p)
		}
	}
	return open
}
