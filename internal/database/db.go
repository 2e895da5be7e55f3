package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// DB wraps the state database connection
type DB struct {
	conn *sql.DB
	path string
}

// New creates a new database connection
func New(dbPath string) (*DB, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Use WAL mode for better concurrency
	conn, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)

	return &DB{
		conn: conn,
		path: dbPath,
	}, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// Conn returns the underlying sql.DB connection
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Migrate creates the portfolio schema when absent. Monetary columns are
// stored as TEXT so decimal values round-trip without float drift.
func (db *DB) Migrate() error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS portfolios (
			name          TEXT PRIMARY KEY,
			free_cash     TEXT NOT NULL,
			reserved_cash TEXT NOT NULL,
			nav           TEXT NOT NULL,
			updated_at    TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS orders (
			id           INTEGER PRIMARY KEY,
			portfolio    TEXT NOT NULL,
			ticker       TEXT NOT NULL,
			sec_type     TEXT NOT NULL,
			underlying   TEXT,
			strike       TEXT,
			expiry       TEXT,
			side         TEXT NOT NULL,
			limit_price  TEXT NOT NULL,
			quantity     INTEGER NOT NULL,
			tif          TEXT NOT NULL,
			claim        TEXT NOT NULL,
			open         INTEGER NOT NULL,
			close_reason TEXT,
			fill_price   TEXT,
			opened_at    TEXT NOT NULL,
			closed_at    TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_portfolio_open ON orders(portfolio, open)`,
		`CREATE TABLE IF NOT EXISTS positions (
			id             INTEGER PRIMARY KEY,
			order_id       INTEGER,
			portfolio      TEXT NOT NULL,
			ticker         TEXT NOT NULL,
			sec_type       TEXT NOT NULL,
			underlying     TEXT,
			strike         TEXT,
			expiry         TEXT,
			short          INTEGER NOT NULL,
			quantity       INTEGER NOT NULL,
			price_at_open  TEXT NOT NULL,
			cost_basis     TEXT NOT NULL,
			claim          TEXT NOT NULL,
			last_price     TEXT NOT NULL,
			nav            TEXT NOT NULL,
			open           INTEGER NOT NULL,
			price_at_close TEXT,
			profit         TEXT NOT NULL,
			opened_at      TEXT NOT NULL,
			closed_at      TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_positions_portfolio_open ON positions(portfolio, open)`,
		`CREATE TABLE IF NOT EXISTS portfolio_summaries (
			id             INTEGER PRIMARY KEY AUTOINCREMENT,
			portfolio      TEXT NOT NULL,
			free_cash      TEXT NOT NULL,
			reserved_cash  TEXT NOT NULL,
			nav            TEXT NOT NULL,
			open_orders    INTEGER NOT NULL,
			open_positions INTEGER NOT NULL,
			created_at     TEXT NOT NULL
		)`,
	}

	for _, stmt := range schema {
		if _, err := db.conn.Exec(stmt); err != nil {
			return fmt.Errorf("failed to run migration: %w", err)
		}
	}
	return nil
}

// Begin starts a new transaction
func (db *DB) Begin() (*sql.Tx, error) {
	return db.conn.Begin()
}

// Exec executes a query without returning rows
func (db *DB) Exec(query string, args ...interface{}) (sql.Result, error) {
	return db.conn.Exec(query, args...)
}

// Query executes a query that returns rows
func (db *DB) Query(query string, args ...interface{}) (*sql.Rows, error) {
	return db.conn.Query(query, args...)
}

// QueryRow executes a query that returns at most one row
func (db *DB) QueryRow(query string, args ...interface{}) *sql.Row {
	return db.conn.QueryRow(query, args...)
}
