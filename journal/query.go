package journal

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var ErrNotFound = errors.New("not found")

const orderColumns = `id, time, symbol, side, kind, volume, price, stop_loss, take_profit, deviation, status, reason`

type scanner interface {
	Scan(dest ...any) error
}

func scanOrder(s scanner) (OrderRecord, error) {
	var o OrderRecord
	err := s.Scan(&o.ID, &o.Time, &o.Symbol, &o.Side, &o.Kind, &o.Volume, &o.Price,
		&o.StopLoss, &o.TakeProfit, &o.Deviation, &o.Status, &o.Reason)
	return o, err
}

// GetOrder returns a single order record by ID.
func (j *SQLite) GetOrder(orderID string) (OrderRecord, error) {
	row := j.db.QueryRow(`SELECT `+orderColumns+` FROM orders WHERE id = ?`, orderID)
	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return OrderRecord{}, fmt.Errorf("order %q: %w", orderID, ErrNotFound)
		}
		return OrderRecord{}, err
	}
	return o, nil
}

// ListOrdersBetween returns orders whose time is within [start, end).
func (j *SQLite) ListOrdersBetween(start, end time.Time) ([]OrderRecord, error) {
	rows, err := j.db.Query(`SELECT `+orderColumns+` FROM orders
		WHERE time >= ? AND time < ?
		ORDER BY time ASC, id ASC`, start.UTC(), end.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OrderRecord
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListLevelsBetween returns level computations within [start, end).
func (j *SQLite) ListLevelsBetween(start, end time.Time) ([]LevelRecord, error) {
	rows, err := j.db.Query(`
		SELECT id, time, symbol, side, kind, strategy, entry, stop_loss, take_profit
		FROM levels
		WHERE time >= ? AND time < ?
		ORDER BY time ASC, id ASC`, start.UTC(), end.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []LevelRecord
	for rows.Next() {
		var r LevelRecord
		if err := rows.Scan(&r.ID, &r.Time, &r.Symbol, &r.Side, &r.Kind, &r.Strategy,
			&r.Entry, &r.StopLoss, &r.TakeProfit); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// DayBounds returns [00:00, 24:00) of day (YYYY-MM-DD) in loc.
func DayBounds(loc *time.Location, day string) (time.Time, time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", day, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1), nil
}
