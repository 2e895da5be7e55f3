package store

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/aristath/wheel-trader/internal/domain"
)

// Flat row representations shared by the SQLite adapter and the retry
// journal's msgpack encoding. All money fields travel as strings so decimal
// values survive the round trip exactly.

const expiryFormat = "2006-01-02"

type orderRecord struct {
	ID          int64  `msgpack:"id"`
	Portfolio   string `msgpack:"portfolio"`
	Ticker      string `msgpack:"ticker"`
	SecType     string `msgpack:"sec_type"`
	Underlying  string `msgpack:"underlying"`
	Strike      string `msgpack:"strike"`
	Expiry      string `msgpack:"expiry"`
	Side        string `msgpack:"side"`
	Limit       string `msgpack:"limit_price"`
	Quantity    int64  `msgpack:"quantity"`
	TIF         string `msgpack:"tif"`
	Claim       string `msgpack:"claim"`
	Open        bool   `msgpack:"open"`
	CloseReason string `msgpack:"close_reason"`
	FillPrice   string `msgpack:"fill_price"`
	OpenedAt    string `msgpack:"opened_at"`
	ClosedAt    string `msgpack:"closed_at"`
}

type positionRecord struct {
	ID           int64  `msgpack:"id"`
	OrderID      int64  `msgpack:"order_id"`
	Portfolio    string `msgpack:"portfolio"`
	Ticker       string `msgpack:"ticker"`
	SecType      string `msgpack:"sec_type"`
	Underlying   string `msgpack:"underlying"`
	Strike       string `msgpack:"strike"`
	Expiry       string `msgpack:"expiry"`
	Short        bool   `msgpack:"short"`
	Quantity     int64  `msgpack:"quantity"`
	PriceAtOpen  string `msgpack:"price_at_open"`
	CostBasis    string `msgpack:"cost_basis"`
	Claim        string `msgpack:"claim"`
	LastPrice    string `msgpack:"last_price"`
	NAV          string `msgpack:"nav"`
	Open         bool   `msgpack:"open"`
	PriceAtClose string `msgpack:"price_at_close"`
	Profit       string `msgpack:"profit"`
	OpenedAt     string `msgpack:"opened_at"`
	ClosedAt     string `msgpack:"closed_at"`
}

func orderToRecord(portfolio string, o *domain.Order) orderRecord {
	return orderRecord{
		ID:          o.ID,
		Portfolio:   portfolio,
		Ticker:      o.Security.Ticker,
		SecType:     string(o.Security.Type),
		Underlying:  o.Security.Underlying,
		Strike:      decimalString(o.Security.Strike),
		Expiry:      timeString(o.Security.Expiry, expiryFormat),
		Side:        string(o.Side),
		Limit:       o.Limit.String(),
		Quantity:    o.Quantity,
		TIF:         string(o.TIF),
		Claim:       o.ClaimAgainstCash.String(),
		Open:        o.IsOpen,
		CloseReason: string(o.CloseReason),
		FillPrice:   decimalString(o.FillPrice),
		OpenedAt:    timeString(o.OpenedAt, time.RFC3339Nano),
		ClosedAt:    timeString(o.ClosedAt, time.RFC3339Nano),
	}
}

func (r orderRecord) toOrder() (*domain.Order, error) {
	sec, err := r.security()
	if err != nil {
		return nil, err
	}
	limit, err := parseDecimal(r.Limit)
	if err != nil {
		return nil, fmt.Errorf("order %d has bad limit price: %w", r.ID, err)
	}
	claim, err := parseDecimal(r.Claim)
	if err != nil {
		return nil, fmt.Errorf("order %d has bad claim: %w", r.ID, err)
	}
	fillPrice, err := parseDecimal(r.FillPrice)
	if err != nil {
		return nil, fmt.Errorf("order %d has bad fill price: %w", r.ID, err)
	}
	openedAt, err := parseTime(r.OpenedAt, time.RFC3339Nano)
	if err != nil {
		return nil, fmt.Errorf("order %d has bad opened_at: %w", r.ID, err)
	}
	closedAt, err := parseTime(r.ClosedAt, time.RFC3339Nano)
	if err != nil {
		return nil, fmt.Errorf("order %d has bad closed_at: %w", r.ID, err)
	}

	side := domain.Side(r.Side)
	tif := domain.TimeInForce(r.TIF)
	if !side.IsValid() || !tif.IsValid() || r.Quantity <= 0 {
		return nil, fmt.Errorf("order %d has invalid side, tif or quantity", r.ID)
	}

	return &domain.Order{
		ID:               r.ID,
		Security:         sec,
		Side:             side,
		Limit:            limit,
		Quantity:         r.Quantity,
		TIF:              tif,
		ClaimAgainstCash: claim,
		IsOpen:           r.Open,
		CloseReason:      domain.CloseReason(r.CloseReason),
		FillPrice:        fillPrice,
		OpenedAt:         openedAt,
		ClosedAt:         closedAt,
	}, nil
}

func positionToRecord(portfolio string, p *domain.Position) positionRecord {
	return positionRecord{
		ID:           p.ID,
		OrderID:      p.OrderID,
		Portfolio:    portfolio,
		Ticker:       p.Security.Ticker,
		SecType:      string(p.Security.Type),
		Underlying:   p.Security.Underlying,
		Strike:       decimalString(p.Security.Strike),
		Expiry:       timeString(p.Security.Expiry, expiryFormat),
		Short:        p.Short,
		Quantity:     p.Quantity,
		PriceAtOpen:  p.PriceAtOpen.String(),
		CostBasis:    p.CostBasis.String(),
		Claim:        p.ClaimAgainstCash.String(),
		LastPrice:    p.LastPrice.String(),
		NAV:          p.NetAssetValue.String(),
		Open:         p.IsOpen,
		PriceAtClose: decimalString(p.PriceAtClose),
		Profit:       p.Profit.String(),
		OpenedAt:     timeString(p.OpenedAt, time.RFC3339Nano),
		ClosedAt:     timeString(p.ClosedAt, time.RFC3339Nano),
	}
}

func (r positionRecord) toPosition() (*domain.Position, error) {
	sec, err := r.security()
	if err != nil {
		return nil, err
	}
	priceAtOpen, err := parseDecimal(r.PriceAtOpen)
	if err != nil {
		return nil, fmt.Errorf("position %d has bad price_at_open: %w", r.ID, err)
	}
	costBasis, err := parseDecimal(r.CostBasis)
	if err != nil {
		return nil, fmt.Errorf("position %d has bad cost_basis: %w", r.ID, err)
	}
	claim, err := parseDecimal(r.Claim)
	if err != nil {
		return nil, fmt.Errorf("position %d has bad claim: %w", r.ID, err)
	}
	lastPrice, err := parseDecimal(r.LastPrice)
	if err != nil {
		return nil, fmt.Errorf("position %d has bad last_price: %w", r.ID, err)
	}
	nav, err := parseDecimal(r.NAV)
	if err != nil {
		return nil, fmt.Errorf("position %d has bad nav: %w", r.ID, err)
	}
	priceAtClose, err := parseDecimal(r.PriceAtClose)
	if err != nil {
		return nil, fmt.Errorf("position %d has bad price_at_close: %w", r.ID, err)
	}
	profit, err := parseDecimal(r.Profit)
	if err != nil {
		return nil, fmt.Errorf("position %d has bad profit: %w", r.ID, err)
	}
	openedAt, err := parseTime(r.OpenedAt, time.RFC3339Nano)
	if err != nil {
		return nil, fmt.Errorf("position %d has bad opened_at: %w", r.ID, err)
	}
	closedAt, err := parseTime(r.ClosedAt, time.RFC3339Nano)
	if err != nil {
		return nil, fmt.Errorf("position %d has bad closed_at: %w", r.ID, err)
	}
	if r.Quantity < 0 {
		return nil, fmt.Errorf("position %d has negative quantity", r.ID)
	}

	return &domain.Position{
		ID:               r.ID,
		OrderID:          r.OrderID,
		Security:         sec,
		Short:            r.Short,
		Quantity:         r.Quantity,
		PriceAtOpen:      priceAtOpen,
		CostBasis:        costBasis,
		ClaimAgainstCash: claim,
		LastPrice:        lastPrice,
		NetAssetValue:    nav,
		IsOpen:           r.Open,
		PriceAtClose:     priceAtClose,
		Profit:           profit,
		OpenedAt:         openedAt,
		ClosedAt:         closedAt,
	}, nil
}

func (r orderRecord) security() (*domain.Security, error) {
	return securityFromFields(r.Ticker, r.SecType, r.Underlying, r.Strike, r.Expiry)
}

func (r positionRecord) security() (*domain.Security, error) {
	return securityFromFields(r.Ticker, r.SecType, r.Underlying, r.Strike, r.Expiry)
}

func securityFromFields(ticker, secType, underlying, strike, expiry string) (*domain.Security, error) {
	strikeDec, err := parseDecimal(strike)
	if err != nil {
		return nil, fmt.Errorf("security %s has bad strike: %w", ticker, err)
	}
	expiryTime, err := parseTime(expiry, expiryFormat)
	if err != nil {
		return nil, fmt.Errorf("security %s has bad expiry: %w", ticker, err)
	}
	return domain.SecurityFromRow(ticker, domain.SecurityType(secType), underlying, strikeDec, expiryTime)
}

func decimalString(d decimal.Decimal) string {
	if d.IsZero() {
		return ""
	}
	return d.String()
}

func parseDecimal(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

func timeString(t time.Time, layout string) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(layout)
}

func parseTime(s, layout string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(layout, s)
}
