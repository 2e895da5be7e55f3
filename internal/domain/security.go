package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// SecurityType identifies what kind of instrument a Security is
type SecurityType string

const (
	SecurityTypeStock SecurityType = "STOCK"
	SecurityTypeCall  SecurityType = "CALL"
	SecurityTypePut   SecurityType = "PUT"
)

// IsValid checks if the security type is one of the known types
func (st SecurityType) IsValid() bool {
	return st == SecurityTypeStock || st == SecurityTypeCall || st == SecurityTypePut
}

// Security is an immutable description of a tradable instrument. Orders and
// positions share Security values by pointer and must never mutate them.
type Security struct {
	Ticker     string
	Type       SecurityType
	Underlying string          // option underlying ticker, empty for stock
	Strike     decimal.Decimal // zero for stock
	Expiry     time.Time       // zero for stock
}

// NewStock creates a stock security
func NewStock(ticker string) (*Security, error) {
	if ticker == "" {
		return nil, fmt.Errorf("stock security requires a ticker")
	}
	return &Security{
		Ticker: ticker,
		Type:   SecurityTypeStock,
	}, nil
}

// NewOption creates a call or put security. The ticker is synthesized in
// OCC-style format: underlying + yymmdd + C/P + strike in mills.
func NewOption(secType SecurityType, underlying string, strike decimal.Decimal, expiry time.Time) (*Security, error) {
	if secType != SecurityTypeCall && secType != SecurityTypePut {
		return nil, fmt.Errorf("invalid option type: %s", secType)
	}
	if underlying == "" {
		return nil, fmt.Errorf("option security requires an underlying ticker")
	}
	if !strike.IsPositive() {
		return nil, fmt.Errorf("option strike must be positive, got %s", strike)
	}
	if expiry.IsZero() {
		return nil, fmt.Errorf("option security requires an expiry date")
	}

	cp := "C"
	if secType == SecurityTypePut {
		cp = "P"
	}
	mills := strike.Mul(decimal.NewFromInt(1000)).IntPart()
	ticker := fmt.Sprintf("%s%s%s%08d", underlying, expiry.Format("060102"), cp, mills)

	return &Security{
		Ticker:     ticker,
		Type:       secType,
		Underlying: underlying,
		Strike:     strike,
		Expiry:     expiry,
	}, nil
}

// SecurityFromRow reconstructs a persisted security, validating the fields
// required for its type tag.
func SecurityFromRow(ticker string, secType SecurityType, underlying string, strike decimal.Decimal, expiry time.Time) (*Security, error) {
	if !secType.IsValid() {
		return nil, fmt.Errorf("unknown security type: %s", secType)
	}
	if ticker == "" {
		return nil, fmt.Errorf("security requires a ticker")
	}
	if secType != SecurityTypeStock {
		if underlying == "" || !strike.IsPositive() || expiry.IsZero() {
			return nil, fmt.Errorf("option %s is missing underlying, strike or expiry", ticker)
		}
	}
	return &Security{
		Ticker:     ticker,
		Type:       secType,
		Underlying: underlying,
		Strike:     strike,
		Expiry:     expiry,
	}, nil
}

// IsOption returns true for calls and puts
func (s *Security) IsOption() bool {
	return s.Type == SecurityTypeCall || s.Type == SecurityTypePut
}

// Multiplier returns the contract multiplier: 100 for options, 1 for stock
func (s *Security) Multiplier() int64 {
	if s.IsOption() {
		return 100
	}
	return 1
}

// UnderlyingTicker returns the ticker exposure belongs to: the underlying for
// options, the ticker itself for stock.
func (s *Security) UnderlyingTicker() string {
	if s.IsOption() {
		return s.Underlying
	}
	return s.Ticker
}
