package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Position is an open or closed holding. Cost basis is signed: positive for
// long, negative for short. ClaimAgainstCash is nonzero only for short puts;
// short calls and short stock carry no collateral.
type Position struct {
	ID               int64
	OrderID          int64 // zero when seeded by settlement
	Security         *Security
	Short            bool
	Quantity         int64
	PriceAtOpen      decimal.Decimal
	CostBasis        decimal.Decimal
	ClaimAgainstCash decimal.Decimal
	LastPrice        decimal.Decimal
	NetAssetValue    decimal.Decimal
	IsOpen           bool
	PriceAtClose     decimal.Decimal
	Profit           decimal.Decimal
	OpenedAt         time.Time
	ClosedAt         time.Time
}

// NewPosition creates an open position, marked at its opening price
func NewPosition(id, orderID int64, sec *Security, short bool, quantity int64, priceAtOpen decimal.Decimal, now time.Time) (*Position, error) {
	if sec == nil {
		return nil, fmt.Errorf("position requires a security")
	}
	if quantity <= 0 {
		return nil, fmt.Errorf("position quantity must be positive, got %d", quantity)
	}
	if priceAtOpen.IsNegative() {
		return nil, fmt.Errorf("position open price must not be negative, got %s", priceAtOpen)
	}

	p := &Position{
		ID:          id,
		OrderID:     orderID,
		Security:    sec,
		Short:       short,
		Quantity:    quantity,
		PriceAtOpen: priceAtOpen,
		IsOpen:      true,
		OpenedAt:    now,
	}
	p.CostBasis = priceAtOpen.Mul(p.scale())
	if short && sec.Type == SecurityTypePut {
		p.ClaimAgainstCash = sec.Strike.Mul(decimal.NewFromInt(quantity * 100))
	}
	p.MarkToMarket(priceAtOpen)
	return p, nil
}

// NewPositionFromOrder creates the position resulting from an order fill
func NewPositionFromOrder(id int64, o *Order, fillPrice decimal.Decimal, now time.Time) (*Position, error) {
	return NewPosition(id, o.ID, o.Security, o.Side == SideSell, o.Quantity, fillPrice, now)
}

// scale returns quantity x multiplier x sign as a decimal
func (p *Position) scale() decimal.Decimal {
	scale := decimal.NewFromInt(p.Quantity * p.Security.Multiplier())
	if p.Short {
		return scale.Neg()
	}
	return scale
}

// MarkToMarket updates last price, NAV and unrealized profit
func (p *Position) MarkToMarket(price decimal.Decimal) {
	if !p.IsOpen {
		return
	}
	p.LastPrice = price
	p.NetAssetValue = price.Mul(p.scale())
	p.Profit = p.NetAssetValue.Sub(p.CostBasis)
}

// ReduceQuantity removes delivered shares from a long stock position,
// shrinking cost basis and NAV proportionally.
func (p *Position) ReduceQuantity(shares int64) error {
	if !p.IsOpen {
		return fmt.Errorf("position %d is closed", p.ID)
	}
	if p.Short || p.Security.Type != SecurityTypeStock {
		return fmt.Errorf("position %d is not long stock", p.ID)
	}
	if shares <= 0 || shares > p.Quantity {
		return fmt.Errorf("cannot deliver %d shares from position of %d", shares, p.Quantity)
	}
	p.Quantity -= shares
	p.CostBasis = p.PriceAtOpen.Mul(p.scale())
	p.NetAssetValue = p.LastPrice.Mul(p.scale())
	p.Profit = p.NetAssetValue.Sub(p.CostBasis)
	return nil
}

// Close transitions the position to its terminal CLOSED state, freezing
// profit at the closing price.
func (p *Position) Close(price decimal.Decimal, now time.Time) error {
	if !p.IsOpen {
		return fmt.Errorf("position %d is already closed", p.ID)
	}
	p.IsOpen = false
	p.PriceAtClose = price
	p.LastPrice = price
	p.NetAssetValue = price.Mul(p.scale())
	p.Profit = p.NetAssetValue.Sub(p.CostBasis)
	p.ClosedAt = now
	return nil
}
