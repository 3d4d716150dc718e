// File: storage/db.go
package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/AndreyZakrevsky/btt/utilities"
)

// TradeRecord is one confirmed fill as written to the journal.
type TradeRecord struct {
	ID        int64
	Symbol    string
	Side      string
	Amount    decimal.Decimal
	Price     decimal.Decimal
	Fee       decimal.Decimal
	Profit    decimal.Decimal // Realized on buy-backs, zero on sells
	CreatedAt time.Time
}

// TradeJournal is an append-only SQLite log of confirmed fills. The decision
// procedure never consults it; losing a journal write never blocks trading.
type TradeJournal struct {
	db *sql.DB
}

func NewTradeJournal(cfg utilities.DatabaseConfig) (*TradeJournal, error) {
	if cfg.DBPath == "" {
		return nil, errors.New("trade journal: database path not configured")
	}
	db, err := sql.Open("sqlite3", cfg.DBPath)
	if err != nil {
		return nil, err
	}
	schema := `
	CREATE TABLE IF NOT EXISTS trades (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol TEXT NOT NULL,
		side TEXT NOT NULL,
		amount TEXT NOT NULL,
		price TEXT NOT NULL,
		fee TEXT NOT NULL,
		profit TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_trades_created_at ON trades (created_at);
	`
	if _, err := db.Exec(schema); err != nil {
		return nil, err
	}
	return &TradeJournal{db: db}, nil
}

// RecordTrade appends one fill. Decimal columns are stored as TEXT so values
// survive the round trip exactly.
func (j *TradeJournal) RecordTrade(rec TradeRecord) error {
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := j.db.Exec(`INSERT INTO trades (symbol, side, amount, price, fee, profit, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.Symbol, rec.Side, rec.Amount.String(), rec.Price.String(), rec.Fee.String(), rec.Profit.String(), createdAt.Unix())
	return err
}

// RecentTrades returns up to limit fills, newest first.
func (j *TradeJournal) RecentTrades(limit int) ([]TradeRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := j.db.Query(`SELECT id, symbol, side, amount, price, fee, profit, created_at FROM trades ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades: %w", err)
	}
	defer rows.Close()

	var records []TradeRecord
	for rows.Next() {
		var (
			rec                      TradeRecord
			amount, price, fee, prof string
			ts                       int64
		)
		if err := rows.Scan(&rec.ID, &rec.Symbol, &rec.Side, &amount, &price, &fee, &prof, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan trade row: %w", err)
		}
		if rec.Amount, err = scanDecimal("amount", amount); err != nil {
			return nil, err
		}
		if rec.Price, err = scanDecimal("price", price); err != nil {
			return nil, err
		}
		if rec.Fee, err = scanDecimal("fee", fee); err != nil {
			return nil, err
		}
		if rec.Profit, err = scanDecimal("profit", prof); err != nil {
			return nil, err
		}
		rec.CreatedAt = time.Unix(ts, 0).UTC()
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (j *TradeJournal) Close() error {
	return j.db.Close()
}

func scanDecimal(column, raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse trade %s %q: %w", column, raw, err)
	}
	return d, nil
}
