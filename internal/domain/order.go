package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Side represents the order direction (BUY or SELL)
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// IsValid checks if the side is valid
func (s Side) IsValid() bool {
	return s == SideBuy || s == SideSell
}

// TimeInForce represents the order lifetime
type TimeInForce string

const (
	TIFGoodTilCancelled TimeInForce = "GTC"
	TIFGoodForDay       TimeInForce = "GFD"
)

// IsValid checks if the time-in-force is valid
func (t TimeInForce) IsValid() bool {
	return t == TIFGoodTilCancelled || t == TIFGoodForDay
}

// CloseReason records why an order left the OPEN state
type CloseReason string

const (
	CloseReasonFilled    CloseReason = "FILLED"
	CloseReasonExpired   CloseReason = "EXPIRED"
	CloseReasonCancelled CloseReason = "CANCELLED"
)

// Order is a limit order in the OPEN -> {FILLED|EXPIRED|CANCELLED} state
// machine. ClaimAgainstCash is computed once at creation and never changes
// while the order is open.
type Order struct {
	ID               int64
	Security         *Security
	Side             Side
	Limit            decimal.Decimal
	Quantity         int64
	TIF              TimeInForce
	ClaimAgainstCash decimal.Decimal
	IsOpen           bool
	CloseReason      CloseReason
	FillPrice        decimal.Decimal
	OpenedAt         time.Time
	ClosedAt         time.Time
}

// NewOrder creates an open order and computes its cash claim:
//   - BUY: limit x quantity x multiplier (cash needed to take delivery)
//   - SELL PUT: (strike - limit) x quantity x 100 (assignment cost net of premium)
//   - SELL CALL, SELL STOCK: zero (short liability left uncollateralized)
func NewOrder(id int64, sec *Security, side Side, limit decimal.Decimal, quantity int64, tif TimeInForce, now time.Time) (*Order, error) {
	if sec == nil {
		return nil, fmt.Errorf("order requires a security")
	}
	if !side.IsValid() {
		return nil, fmt.Errorf("invalid order side: %s", side)
	}
	if !tif.IsValid() {
		return nil, fmt.Errorf("invalid time-in-force: %s", tif)
	}
	if quantity <= 0 {
		return nil, fmt.Errorf("order quantity must be positive, got %d", quantity)
	}
	if !limit.IsPositive() {
		return nil, fmt.Errorf("order limit price must be positive, got %s", limit)
	}
	// A premium at or above the strike would make the assignment claim
	// zero or negative, leaving the short put uncollateralized.
	if side == SideSell && sec.Type == SecurityTypePut && limit.GreaterThanOrEqual(sec.Strike) {
		return nil, fmt.Errorf("sell put limit %s must be below the strike %s", limit, sec.Strike)
	}

	o := &Order{
		ID:       id,
		Security: sec,
		Side:     side,
		Limit:    limit,
		Quantity: quantity,
		TIF:      tif,
		IsOpen:   true,
		OpenedAt: now,
	}
	o.ClaimAgainstCash = o.computeClaim()
	return o, nil
}

func (o *Order) computeClaim() decimal.Decimal {
	qty := decimal.NewFromInt(o.Quantity)
	mult := decimal.NewFromInt(o.Security.Multiplier())

	if o.Side == SideBuy {
		return o.Limit.Mul(qty).Mul(mult)
	}
	if o.Security.Type == SecurityTypePut {
		return o.Security.Strike.Sub(o.Limit).Mul(qty).Mul(mult)
	}
	return decimal.Zero
}

// CanBeFilled reports whether the order fills against the last tick. A
// non-positive tick is the "no price" sentinel and never fills.
func (o *Order) CanBeFilled(lastTick decimal.Decimal) bool {
	if !o.IsOpen || !lastTick.IsPositive() {
		return false
	}
	if o.Side == SideBuy {
		return lastTick.LessThanOrEqual(o.Limit)
	}
	return lastTick.GreaterThanOrEqual(o.Limit)
}

// Fill transitions the order to FILLED, recording the fill price
func (o *Order) Fill(price decimal.Decimal, now time.Time) error {
	if err := o.close(CloseReasonFilled, now); err != nil {
		return err
	}
	o.FillPrice = price
	return nil
}

// CloseExpired transitions the order to EXPIRED with a zero fill price
func (o *Order) CloseExpired(now time.Time) error {
	return o.close(CloseReasonExpired, now)
}

// CloseCancelled transitions the order to CANCELLED with a zero fill price
func (o *Order) CloseCancelled(now time.Time) error {
	return o.close(CloseReasonCancelled, now)
}

func (o *Order) close(reason CloseReason, now time.Time) error {
	if !o.IsOpen {
		return fmt.Errorf("order %d is already closed (%s)", o.ID, o.CloseReason)
	}
	o.IsOpen = false
	o.CloseReason = reason
	o.ClosedAt = now
	return nil
}
