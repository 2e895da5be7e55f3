package store

import (
	"time"

	"github.com/aristath/wheel-trader/internal/domain"
	"github.com/aristath/wheel-trader/internal/modules/ledger"
)

// DataStore is the persistence port the core writes through. Implementations
// are bound to a single portfolio (multi-account is out of scope). Writes are
// fire-and-forget from the core's perspective: callers log failures and keep
// the in-memory ledger authoritative. The Reliable decorator adds
// at-least-once delivery on top of any implementation.
type DataStore interface {
	// PortfolioExists reports whether a portfolio row exists
	PortfolioExists(name string) (bool, error)

	// LoadPortfolio reads the portfolio's cash figures plus its open orders
	// and positions into a ledger snapshot.
	LoadPortfolio(name string) (*ledger.Snapshot, error)

	// WritePortfolioSummary upserts the portfolio row and appends a summary
	WritePortfolioSummary(snap ledger.Snapshot) error

	// WriteOrder upserts an order
	WriteOrder(o *domain.Order) error

	// CloseOrder persists an order's terminal state
	CloseOrder(o *domain.Order) error

	// WritePosition upserts a position
	WritePosition(p *domain.Position) error

	// ClosePosition persists a position's terminal state
	ClosePosition(p *domain.Position) error

	// HistoricalPrices reads stored daily closes from earliest onward
	HistoricalPrices(ticker string, earliest time.Time) ([]domain.DailyClose, error)

	// WriteHistoricalPrice stores one daily close for backfill
	WriteHistoricalPrice(ticker string, dc domain.DailyClose) error
}
