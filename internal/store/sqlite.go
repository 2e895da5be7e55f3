package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/wheel-trader/internal/database"
	"github.com/aristath/wheel-trader/internal/domain"
	"github.com/aristath/wheel-trader/internal/modules/ledger"
)

// SQLiteStore is the DataStore implementation on the state database, bound
// to a single portfolio. Historical prices live in per-ticker files behind
// the HistoryDB.
type SQLiteStore struct {
	db        *database.DB
	history   *HistoryDB
	portfolio string
	log       zerolog.Logger
}

// NewSQLite creates a SQLite-backed data store
func NewSQLite(db *database.DB, history *HistoryDB, portfolio string, log zerolog.Logger) *SQLiteStore {
	return &SQLiteStore{
		db:        db,
		history:   history,
		portfolio: portfolio,
		log:       log.With().Str("component", "store").Str("portfolio", portfolio).Logger(),
	}
}

// PortfolioExists reports whether a portfolio row exists
func (s *SQLiteStore) PortfolioExists(name string) (bool, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM portfolios WHERE name = ?", name).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check portfolio existence: %w", err)
	}
	return count > 0, nil
}

// LoadPortfolio reads the portfolio row plus its open orders and positions
func (s *SQLiteStore) LoadPortfolio(name string) (*ledger.Snapshot, error) {
	var (
		freeCash, reservedCash, nav string
		updatedAt                   string
	)
	err := s.db.QueryRow(
		"SELECT free_cash, reserved_cash, nav, updated_at FROM portfolios WHERE name = ?", name,
	).Scan(&freeCash, &reservedCash, &nav, &updatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to load portfolio %s: %w", name, err)
	}

	snap := &ledger.Snapshot{Name: name}
	if snap.FreeCash, err = parseDecimal(freeCash); err != nil {
		return nil, fmt.Errorf("portfolio %s has bad free_cash: %w", name, err)
	}
	if snap.ReservedCash, err = parseDecimal(reservedCash); err != nil {
		return nil, fmt.Errorf("portfolio %s has bad reserved_cash: %w", name, err)
	}
	if snap.NetAssetValue, err = parseDecimal(nav); err != nil {
		return nil, fmt.Errorf("portfolio %s has bad nav: %w", name, err)
	}
	if snap.TakenAt, err = parseTime(updatedAt, time.RFC3339Nano); err != nil {
		return nil, fmt.Errorf("portfolio %s has bad updated_at: %w", name, err)
	}

	if snap.OpenOrders, err = s.openOrders(name); err != nil {
		return nil, err
	}
	if snap.OpenPositions, err = s.openPositions(name); err != nil {
		return nil, err
	}
	return snap, nil
}

func (s *SQLiteStore) openOrders(name string) ([]*domain.Order, error) {
	rows, err := s.db.Query(`
		SELECT id, ticker, sec_type, underlying, strike, expiry, side, limit_price,
		       quantity, tif, claim, open, close_reason, fill_price, opened_at, closed_at
		FROM orders
		WHERE portfolio = ? AND open = 1
		ORDER BY id
	`, name)
	if err != nil {
		return nil, fmt.Errorf("failed to query open orders: %w", err)
	}
	defer rows.Close()

	var orders []*domain.Order
	for rows.Next() {
		rec, err := scanOrderRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		o, err := rec.toOrder()
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating orders: %w", err)
	}
	return orders, nil
}

func (s *SQLiteStore) openPositions(name string) ([]*domain.Position, error) {
	rows, err := s.db.Query(`
		SELECT id, order_id, ticker, sec_type, underlying, strike, expiry, short, quantity,
		       price_at_open, cost_basis, claim, last_price, nav, open, price_at_close,
		       profit, opened_at, closed_at
		FROM positions
		WHERE portfolio = ? AND open = 1
		ORDER BY id
	`, name)
	if err != nil {
		return nil, fmt.Errorf("failed to query open positions: %w", err)
	}
	defer rows.Close()

	var positions []*domain.Position
	for rows.Next() {
		rec, err := scanPositionRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}
		p, err := rec.toPosition()
		if err != nil {
			return nil, err
		}
		positions = append(positions, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating positions: %w", err)
	}
	return positions, nil
}

// WritePortfolioSummary upserts the portfolio row and appends a summary row
func (s *SQLiteStore) WritePortfolioSummary(snap ledger.Snapshot) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := snap.TakenAt.Format(time.RFC3339Nano)
	_, err = tx.Exec(`
		INSERT OR REPLACE INTO portfolios (name, free_cash, reserved_cash, nav, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, snap.Name, snap.FreeCash.String(), snap.ReservedCash.String(), snap.NetAssetValue.String(), now)
	if err != nil {
		return fmt.Errorf("failed to upsert portfolio: %w", err)
	}

	_, err = tx.Exec(`
		INSERT INTO portfolio_summaries (portfolio, free_cash, reserved_cash, nav, open_orders, open_positions, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, snap.Name, snap.FreeCash.String(), snap.ReservedCash.String(), snap.NetAssetValue.String(),
		len(snap.OpenOrders), len(snap.OpenPositions), now)
	if err != nil {
		return fmt.Errorf("failed to insert portfolio summary: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.log.Debug().
		Str("nav", snap.NetAssetValue.String()).
		Int("open_orders", len(snap.OpenOrders)).
		Int("open_positions", len(snap.OpenPositions)).
		Msg("Portfolio summary written")
	return nil
}

// WriteOrder upserts an order row
func (s *SQLiteStore) WriteOrder(o *domain.Order) error {
	return s.upsertOrder(orderToRecord(s.portfolio, o))
}

// CloseOrder persists an order's terminal state
func (s *SQLiteStore) CloseOrder(o *domain.Order) error {
	return s.upsertOrder(orderToRecord(s.portfolio, o))
}

func (s *SQLiteStore) upsertOrder(rec orderRecord) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO orders
		(id, portfolio, ticker, sec_type, underlying, strike, expiry, side, limit_price,
		 quantity, tif, claim, open, close_reason, fill_price, opened_at, closed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.Portfolio, rec.Ticker, rec.SecType, rec.Underlying, rec.Strike, rec.Expiry,
		rec.Side, rec.Limit, rec.Quantity, rec.TIF, rec.Claim, rec.Open, rec.CloseReason,
		rec.FillPrice, rec.OpenedAt, rec.ClosedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert order %d: %w", rec.ID, err)
	}
	return nil
}

// WritePosition upserts a position row
func (s *SQLiteStore) WritePosition(p *domain.Position) error {
	return s.upsertPosition(positionToRecord(s.portfolio, p))
}

// ClosePosition persists a position's terminal state
func (s *SQLiteStore) ClosePosition(p *domain.Position) error {
	return s.upsertPosition(positionToRecord(s.portfolio, p))
}

func (s *SQLiteStore) upsertPosition(rec positionRecord) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO positions
		(id, order_id, portfolio, ticker, sec_type, underlying, strike, expiry, short, quantity,
		 price_at_open, cost_basis, claim, last_price, nav, open, price_at_close, profit,
		 opened_at, closed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.OrderID, rec.Portfolio, rec.Ticker, rec.SecType, rec.Underlying, rec.Strike,
		rec.Expiry, rec.Short, rec.Quantity, rec.PriceAtOpen, rec.CostBasis, rec.Claim,
		rec.LastPrice, rec.NAV, rec.Open, rec.PriceAtClose, rec.Profit, rec.OpenedAt, rec.ClosedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert position %d: %w", rec.ID, err)
	}
	return nil
}

// HistoricalPrices reads stored daily closes from earliest onward
func (s *SQLiteStore) HistoricalPrices(ticker string, earliest time.Time) ([]domain.DailyClose, error) {
	return s.history.DailyCloses(ticker, earliest)
}

// WriteHistoricalPrice stores one daily close for backfill
func (s *SQLiteStore) WriteHistoricalPrice(ticker string, dc domain.DailyClose) error {
	return s.history.WriteDailyClose(ticker, dc)
}

func scanOrderRecord(rows *sql.Rows) (orderRecord, error) {
	var rec orderRecord
	var underlying, strike, expiry, closeReason, fillPrice, closedAt sql.NullString
	err := rows.Scan(
		&rec.ID, &rec.Ticker, &rec.SecType, &underlying, &strike, &expiry, &rec.Side,
		&rec.Limit, &rec.Quantity, &rec.TIF, &rec.Claim, &rec.Open, &closeReason,
		&fillPrice, &rec.OpenedAt, &closedAt,
	)
	if err != nil {
		return rec, err
	}
	rec.Underlying = underlying.String
	rec.Strike = strike.String
	rec.Expiry = expiry.String
	rec.CloseReason = closeReason.String
	rec.FillPrice = fillPrice.String
	rec.ClosedAt = closedAt.String
	return rec, nil
}

func scanPositionRecord(rows *sql.Rows) (positionRecord, error) {
	var rec positionRecord
	var underlying, strike, expiry, priceAtClose, closedAt sql.NullString
	err := rows.Scan(
		&rec.ID, &rec.OrderID, &rec.Ticker, &rec.SecType, &underlying, &strike, &expiry,
		&rec.Short, &rec.Quantity, &rec.PriceAtOpen, &rec.CostBasis, &rec.Claim,
		&rec.LastPrice, &rec.NAV, &rec.Open, &priceAtClose, &rec.Profit,
		&rec.OpenedAt, &closedAt,
	)
	if err != nil {
		return rec, err
	}
	rec.Underlying = underlying.String
	rec.Strike = strike.String
	rec.Expiry = expiry.String
	rec.PriceAtClose = priceAtClose.String
	rec.ClosedAt = closedAt.String
	return rec, nil
}
