package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"marketbook/internal/config"
	"marketbook/internal/model"
	"marketbook/internal/pattern"
)

// SyncMarketsFromConfig applies markets.yaml to the database.
// It upserts markets and members, registers orders, replaces closed dates,
// adds configured exclusions and marks missing markets inactive. A stored
// pattern is only replaced when the configured pattern itself changed, so
// edits made through the API survive restarts.
func (db *DB) SyncMarketsFromConfig(ctx context.Context, setups []config.MarketSetup) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now()
	seen := make(map[string]struct{}, len(setups))

	for _, s := range setups {
		m := s.Market
		patternJSON, err := json.Marshal(s.Pattern)
		if err != nil {
			return fmt.Errorf("encode pattern %s: %w", m.ID, err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO markets (id, name, resource_booking_mode, checkin_requires_approval, concurrent_slots,
				work_duration_per_client, owner_chat_id, pattern, config_pattern, is_active, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				name = excluded.name,
				resource_booking_mode = excluded.resource_booking_mode,
				checkin_requires_approval = excluded.checkin_requires_approval,
				concurrent_slots = excluded.concurrent_slots,
				work_duration_per_client = excluded.work_duration_per_client,
				owner_chat_id = excluded.owner_chat_id,
				pattern = CASE WHEN markets.config_pattern = excluded.config_pattern THEN markets.pattern ELSE excluded.pattern END,
				config_pattern = excluded.config_pattern,
				is_active = 1,
				updated_at = excluded.updated_at`,
			m.ID, m.Name, string(m.ResourceBookingMode), boolToInt(m.CheckinRequiresApproval), m.ConcurrentSlots,
			m.WorkDurationPerClient, s.OwnerChatID, string(patternJSON), string(patternJSON), now, now,
		)
		if err != nil {
			return fmt.Errorf("sync market %s: %w", m.ID, err)
		}
		seen[m.ID] = struct{}{}

		if _, err := tx.ExecContext(ctx, `DELETE FROM market_members WHERE market_id = ?`, m.ID); err != nil {
			return fmt.Errorf("sync market %s members: %w", m.ID, err)
		}
		for i, r := range m.Members {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO market_members (market_id, id, name, avatar, role, status, is_active, position)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				m.ID, r.ID, r.Name, r.Avatar, r.Role, r.Status, boolToInt(r.IsActive), i,
			)
			if err != nil {
				return fmt.Errorf("sync market %s member %s: %w", m.ID, r.ID, err)
			}
		}

		for _, orderID := range s.Orders {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO orders (id, market_id, created_at) VALUES (?, ?, ?)
				ON CONFLICT(id) DO UPDATE SET market_id = excluded.market_id`,
				orderID, m.ID, now,
			)
			if err != nil {
				return fmt.Errorf("sync order %s: %w", orderID, err)
			}
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM closed_dates WHERE market_id = ?`, m.ID); err != nil {
			return fmt.Errorf("sync market %s closed dates: %w", m.ID, err)
		}
		for _, d := range s.ClosedDates {
			if _, err := tx.ExecContext(ctx, `INSERT INTO closed_dates (market_id, date) VALUES (?, ?)`, m.ID, d.String()); err != nil {
				return fmt.Errorf("sync market %s closed date %s: %w", m.ID, d, err)
			}
		}

		for d, breaks := range s.Exclusions {
			for _, br := range breaks {
				if err := insertExclusion(ctx, tx, m.ID, d, br); err != nil {
					return err
				}
			}
		}
	}

	rows, err := tx.QueryContext(ctx, `SELECT id FROM markets WHERE is_active = 1`)
	if err != nil {
		return err
	}
	var stale []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		if _, ok := seen[id]; !ok {
			stale = append(stale, id)
		}
	}
	if err := rows.Close(); err != nil {
		return err
	}
	if err := rows.Err(); err != nil {
		return err
	}

	// Deactivate markets that disappeared from config.
	for _, id := range stale {
		if _, err := tx.ExecContext(ctx, `UPDATE markets SET is_active = 0, updated_at = ? WHERE id = ?`, now, id); err != nil {
			return fmt.Errorf("deactivate market %s: %w", id, err)
		}
	}

	return tx.Commit()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func insertExclusion(ctx context.Context, ex execer, marketID string, d model.Date, br model.Interval) error {
	_, err := ex.ExecContext(ctx, `
		INSERT OR IGNORE INTO break_exclusions (market_id, date, start_time, end_time)
		VALUES (?, ?, ?, ?)`,
		marketID, d.String(), br.Start.String(), br.End.String(),
	)
	if err != nil {
		return fmt.Errorf("add exclusion %s %s: %w", d, br, err)
	}
	return nil
}

// MarketRecord is a stored market with everything needed to project it.
type MarketRecord struct {
	Market      model.Market
	OwnerChatID int64
	Pattern     *pattern.WeeklyPattern
	Exclusions  model.BreakExclusions
	ClosedDates []model.Date
}

// GetMarket returns an active market with members.
func (db *DB) GetMarket(ctx context.Context, marketID string) (*model.Market, error) {
	rec, err := loadMarket(ctx, db, marketID, false)
	if err != nil {
		return nil, err
	}
	return &rec.Market, nil
}

// GetMarketRecord returns an active market with its pattern, exclusions and closed dates.
func (db *DB) GetMarketRecord(ctx context.Context, marketID string) (*MarketRecord, error) {
	return loadMarket(ctx, db, marketID, true)
}

// MarketIDForOrder resolves the market an order books into.
func (db *DB) MarketIDForOrder(ctx context.Context, orderID string) (string, error) {
	return marketIDForOrder(ctx, db, orderID)
}

func marketIDForOrder(ctx context.Context, q queryer, orderID string) (string, error) {
	var marketID string
	err := q.QueryRowContext(ctx, `
		SELECT o.market_id FROM orders o
		JOIN markets m ON m.id = o.market_id
		WHERE o.id = ? AND m.is_active = 1`, orderID).Scan(&marketID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("order %s: %w", orderID, ErrNotFound)
	}
	return marketID, err
}

// ListMarketIDs returns the ids of active markets.
func (db *DB) ListMarketIDs(ctx context.Context) ([]string, error) {
	rows, err := db.QueryContext(ctx, `SELECT id FROM markets WHERE is_active = 1 ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func loadMarket(ctx context.Context, q queryer, marketID string, full bool) (*MarketRecord, error) {
	var (
		rec         MarketRecord
		mode        string
		approval    bool
		patternJSON string
	)
	err := q.QueryRowContext(ctx, `
		SELECT id, name, resource_booking_mode, checkin_requires_approval, concurrent_slots,
			work_duration_per_client, owner_chat_id, pattern
		FROM markets WHERE id = ? AND is_active = 1`, marketID,
	).Scan(
		&rec.Market.ID, &rec.Market.Name, &mode, &approval, &rec.Market.ConcurrentSlots,
		&rec.Market.WorkDurationPerClient, &rec.OwnerChatID, &patternJSON,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("market %s: %w", marketID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	rec.Market.ResourceBookingMode = model.ResourceBookingMode(mode)
	rec.Market.CheckinRequiresApproval = approval

	members, err := listMembers(ctx, q, marketID)
	if err != nil {
		return nil, err
	}
	rec.Market.Members = members

	if !full {
		return &rec, nil
	}

	rec.Pattern = pattern.New()
	if err := json.Unmarshal([]byte(patternJSON), rec.Pattern); err != nil {
		return nil, fmt.Errorf("decode pattern %s: %w", marketID, err)
	}
	if rec.Exclusions, err = listExclusions(ctx, q, marketID); err != nil {
		return nil, err
	}
	if rec.ClosedDates, err = listClosedDates(ctx, q, marketID); err != nil {
		return nil, err
	}
	return &rec, nil
}

func listMembers(ctx context.Context, q queryer, marketID string) ([]model.Resource, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, name, avatar, role, status, is_active
		FROM market_members WHERE market_id = ? ORDER BY position, id`, marketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	members := []model.Resource{}
	for rows.Next() {
		var r model.Resource
		if err := rows.Scan(&r.ID, &r.Name, &r.Avatar, &r.Role, &r.Status, &r.IsActive); err != nil {
			return nil, err
		}
		members = append(members, r)
	}
	return members, rows.Err()
}

func listExclusions(ctx context.Context, q queryer, marketID string) (model.BreakExclusions, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT date, start_time, end_time FROM break_exclusions
		WHERE market_id = ? ORDER BY date, start_time`, marketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := model.BreakExclusions{}
	for rows.Next() {
		var ds, start, end string
		if err := rows.Scan(&ds, &start, &end); err != nil {
			return nil, err
		}
		d, err := model.ParseDate(ds)
		if err != nil {
			return nil, err
		}
		br, err := model.NewInterval(start, end)
		if err != nil {
			return nil, err
		}
		out.Add(d, br)
	}
	return out, rows.Err()
}

func listClosedDates(ctx context.Context, q queryer, marketID string) ([]model.Date, error) {
	rows, err := q.QueryContext(ctx, `SELECT date FROM closed_dates WHERE market_id = ? ORDER BY date`, marketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Date
	for rows.Next() {
		var ds string
		if err := rows.Scan(&ds); err != nil {
			return nil, err
		}
		d, err := model.ParseDate(ds)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// SavePattern replaces the weekly pattern of a market. The pattern must
// already be valid.
func (db *DB) SavePattern(ctx context.Context, marketID string, p *pattern.WeeklyPattern) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	res, err := db.ExecContext(ctx, `UPDATE markets SET pattern = ?, updated_at = ? WHERE id = ? AND is_active = 1`,
		string(data), time.Now(), marketID)
	if err != nil {
		return fmt.Errorf("save pattern %s: %w", marketID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("market %s: %w", marketID, ErrNotFound)
	}
	return nil
}

// AddExclusion suppresses a recurring break on one date. Adding the same
// exclusion twice is a no-op.
func (db *DB) AddExclusion(ctx context.Context, marketID string, d model.Date, br model.Interval) error {
	if _, err := db.GetMarket(ctx, marketID); err != nil {
		return err
	}
	return insertExclusion(ctx, db, marketID, d, br)
}

// RemoveExclusion restores a suppressed break. It reports whether one was removed.
func (db *DB) RemoveExclusion(ctx context.Context, marketID string, d model.Date, br model.Interval) (bool, error) {
	res, err := db.ExecContext(ctx, `
		DELETE FROM break_exclusions
		WHERE market_id = ? AND date = ? AND start_time = ? AND end_time = ?`,
		marketID, d.String(), br.Start.String(), br.End.String(),
	)
	if err != nil {
		return false, fmt.Errorf("remove exclusion %s %s: %w", d, br, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}
