package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"marketbook/internal/model"
)

const bookingColumns = `id, order_id, date, start_time, end_time, member_id, status`

// ListBookings returns the bookings of a market on dates in [from, to],
// ordered by date and start time.
func (db *DB) ListBookings(ctx context.Context, marketID string, from, to model.Date) ([]model.Booking, error) {
	return listBookings(ctx, db, marketID, from, to)
}

// ListOrderBookings returns the bookings made under one order.
func (db *DB) ListOrderBookings(ctx context.Context, orderID string) ([]model.Booking, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+bookingColumns+` FROM bookings
		WHERE order_id = ? ORDER BY date, start_time`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanBookings(rows)
}

func listBookings(ctx context.Context, q queryer, marketID string, from, to model.Date) ([]model.Booking, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+bookingColumns+` FROM bookings
		WHERE market_id = ? AND date >= ? AND date <= ?
		ORDER BY date, start_time, end_time`,
		marketID, from.String(), to.String(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanBookings(rows)
}

type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanBookings(rows rowScanner) ([]model.Booking, error) {
	out := []model.Booking{}
	for rows.Next() {
		var (
			b                model.Booking
			orderID          string
			date, start, end string
		)
		if err := rows.Scan(&b.ID, &orderID, &date, &start, &end, &b.ResourceID, &b.Status); err != nil {
			return nil, err
		}
		var err error
		if b.Date, err = model.ParseDate(date); err != nil {
			return nil, err
		}
		if b.StartTime, err = model.ParseClock(start); err != nil {
			return nil, err
		}
		if b.EndTime, err = model.ParseClock(end); err != nil {
			return nil, err
		}
		b.ClientID = orderID
		out = append(out, b)
	}
	return out, rows.Err()
}

// CheckInDecision turns the market's current bookings into the bookings to
// insert. Returning an error aborts the whole check-in.
type CheckInDecision func(rec *MarketRecord, existing []model.Booking) ([]model.Booking, error)

// CheckIn runs decide and inserts its result inside one write transaction,
// so concurrent check-ins for the same market cannot both take a slot.
// existing covers [from, to] of the order's market.
func (db *DB) CheckIn(ctx context.Context, orderID string, from, to model.Date, decide CheckInDecision) ([]model.Booking, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	marketID, err := marketIDForOrder(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	rec, err := loadMarket(ctx, tx, marketID, true)
	if err != nil {
		return nil, err
	}
	existing, err := listBookings(ctx, tx, marketID, from, to)
	if err != nil {
		return nil, err
	}

	created, err := decide(rec, existing)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	for i := range created {
		b := &created[i]
		if b.ID == "" {
			b.ID = uuid.NewString()
		}
		b.ClientID = orderID
		_, err := tx.ExecContext(ctx, `
			INSERT INTO bookings (id, market_id, order_id, date, start_time, end_time, member_id, status, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			b.ID, marketID, orderID, b.Date.String(), b.StartTime.String(), b.EndTime.String(), b.ResourceID, b.Status, now, now,
		)
		if err != nil {
			return nil, fmt.Errorf("insert booking: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return created, nil
}

// UpdateBookingStatus changes the status of one booking, e.g. when an owner
// approves or cancels it.
func (db *DB) UpdateBookingStatus(ctx context.Context, bookingID, status string) error {
	res, err := db.ExecContext(ctx, `UPDATE bookings SET status = ?, updated_at = ? WHERE id = ?`, status, time.Now(), bookingID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("booking %s: %w", bookingID, ErrNotFound)
	}
	return nil
}

// BookingMarketID returns the market a booking belongs to.
func (db *DB) BookingMarketID(ctx context.Context, bookingID string) (string, error) {
	var marketID string
	err := db.QueryRowContext(ctx, `SELECT market_id FROM bookings WHERE id = ?`, bookingID).Scan(&marketID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("booking %s: %w", bookingID, ErrNotFound)
	}
	return marketID, err
}
