// Package db is the SQLite store behind the availd mirror backend.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when a market or order does not exist.
var ErrNotFound = errors.New("not found")

// DB wraps sql.DB for the mirror backend.
type DB struct {
	*sql.DB
}

// NewDB opens database at path and runs migrations. Transactions take the
// write lock up front so concurrent check-ins serialize.
func NewDB(path string) (*DB, error) {
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000&_txlock=immediate", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := createTables(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &DB{db}, nil
}

func createTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS markets (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			resource_booking_mode TEXT NOT NULL DEFAULT '',
			checkin_requires_approval BOOLEAN NOT NULL DEFAULT 0,
			concurrent_slots INTEGER NOT NULL DEFAULT 0,
			work_duration_per_client INTEGER NOT NULL DEFAULT 0,
			owner_chat_id INTEGER NOT NULL DEFAULT 0,
			pattern TEXT NOT NULL,
			config_pattern TEXT NOT NULL DEFAULT '',
			is_active BOOLEAN NOT NULL DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS market_members (
			market_id TEXT NOT NULL,
			id TEXT NOT NULL,
			name TEXT NOT NULL DEFAULT '',
			avatar TEXT NOT NULL DEFAULT '',
			role TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT 1,
			position INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (market_id, id),
			FOREIGN KEY (market_id) REFERENCES markets(id)
		)`,

		`CREATE TABLE IF NOT EXISTS orders (
			id TEXT PRIMARY KEY,
			market_id TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (market_id) REFERENCES markets(id)
		)`,

		`CREATE TABLE IF NOT EXISTS break_exclusions (
			market_id TEXT NOT NULL,
			date TEXT NOT NULL,
			start_time TEXT NOT NULL,
			end_time TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (market_id, date, start_time, end_time),
			FOREIGN KEY (market_id) REFERENCES markets(id)
		)`,

		`CREATE TABLE IF NOT EXISTS closed_dates (
			market_id TEXT NOT NULL,
			date TEXT NOT NULL,
			PRIMARY KEY (market_id, date),
			FOREIGN KEY (market_id) REFERENCES markets(id)
		)`,

		`CREATE TABLE IF NOT EXISTS bookings (
			id TEXT PRIMARY KEY,
			market_id TEXT NOT NULL,
			order_id TEXT NOT NULL,
			date TEXT NOT NULL,
			start_time TEXT NOT NULL,
			end_time TEXT NOT NULL,
			member_id TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'pending',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (market_id) REFERENCES markets(id),
			FOREIGN KEY (order_id) REFERENCES orders(id)
		)`,

		`CREATE INDEX IF NOT EXISTS idx_bookings_market_date ON bookings(market_id, date)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_order ON bookings(order_id)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_market ON orders(market_id)`,
	}

	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			return fmt.Errorf("exec migration %s: %w", trimSQL(q), err)
		}
	}
	return nil
}

func trimSQL(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > 60 {
		return s[:60] + "..."
	}
	return s
}

// HealthCheck pings the database.
func (db *DB) HealthCheck(ctx context.Context) error {
	return db.PingContext(ctx)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
