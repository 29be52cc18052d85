package journal

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(Schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

func (j *SQLite) RecordLevels(r LevelRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO levels
		(id, time, symbol, side, kind, strategy, entry, stop_loss, take_profit)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Time.UTC(), r.Symbol, r.Side, r.Kind, r.Strategy,
		r.Entry, r.StopLoss, r.TakeProfit,
	)
	return err
}

func (j *SQLite) RecordOrder(o OrderRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO orders
		(id, time, symbol, side, kind, volume, price, stop_loss, take_profit, deviation, status, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.Time.UTC(), o.Symbol, o.Side, o.Kind, o.Volume, o.Price,
		o.StopLoss, o.TakeProfit, o.Deviation, o.Status, o.Reason,
	)
	return err
}

func (j *SQLite) Close() error {
	return j.db.Close()
}
