package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/aristath/wheel-trader/internal/domain"
)

// HistoryDB provides access to historical price data, one SQLite file per
// ticker under the history directory.
type HistoryDB struct {
	historyDir string
	log        zerolog.Logger
}

// NewHistoryDB creates a new history database accessor
func NewHistoryDB(historyDir string, log zerolog.Logger) (*HistoryDB, error) {
	if err := os.MkdirAll(historyDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}
	return &HistoryDB{
		historyDir: historyDir,
		log:        log.With().Str("component", "history_db").Logger(),
	}, nil
}

// DailyCloses fetches daily closes for a ticker from earliest onward,
// ascending by date.
func (h *HistoryDB) DailyCloses(ticker string, earliest time.Time) ([]domain.DailyClose, error) {
	db, err := h.open(ticker)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.Query(`
		SELECT date, adj_close
		FROM daily_prices
		WHERE date >= ?
		ORDER BY date ASC
	`, earliest.Format(expiryFormat))
	if err != nil {
		return nil, fmt.Errorf("failed to query daily prices: %w", err)
	}
	defer rows.Close()

	var closes []domain.DailyClose
	for rows.Next() {
		dc, err := scanDailyClose(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan daily price: %w", err)
		}
		closes = append(closes, dc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating daily prices: %w", err)
	}
	return closes, nil
}

// LatestClose returns the most recent stored close, or nil when the ticker
// has no history yet.
func (h *HistoryDB) LatestClose(ticker string) (*domain.DailyClose, error) {
	db, err := h.open(ticker)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.Query(`
		SELECT date, adj_close
		FROM daily_prices
		ORDER BY date DESC
		LIMIT 1
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest close: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	dc, err := scanDailyClose(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan latest close: %w", err)
	}
	return &dc, nil
}

// WriteDailyClose upserts one daily close for a ticker
func (h *HistoryDB) WriteDailyClose(ticker string, dc domain.DailyClose) error {
	db, err := h.open(ticker)
	if err != nil {
		return err
	}
	defer db.Close()

	_, err = db.Exec(`
		INSERT OR REPLACE INTO daily_prices (date, adj_close)
		VALUES (?, ?)
	`, dc.Date.Format(expiryFormat), dc.Close.String())
	if err != nil {
		return fmt.Errorf("failed to write daily price: %w", err)
	}
	return nil
}

// open opens (creating if needed) the history file for a ticker
func (h *HistoryDB) open(ticker string) (*sql.DB, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return nil, fmt.Errorf("history requires a ticker")
	}
	path := filepath.Join(h.historyDir, ticker+".db")

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history db for %s: %w", ticker, err)
	}
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS daily_prices (
			date      TEXT PRIMARY KEY,
			adj_close TEXT NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init history schema for %s: %w", ticker, err)
	}
	return db, nil
}

func scanDailyClose(rows *sql.Rows) (domain.DailyClose, error) {
	var dateStr, closeStr string
	if err := rows.Scan(&dateStr, &closeStr); err != nil {
		return domain.DailyClose{}, err
	}
	date, err := time.Parse(expiryFormat, dateStr)
	if err != nil {
		return domain.DailyClose{}, err
	}
	adjClose, err := decimal.NewFromString(closeStr)
	if err != nil {
		return domain.DailyClose{}, err
	}
	return domain.DailyClose{Date: date, Close: adjClose}, nil
}
