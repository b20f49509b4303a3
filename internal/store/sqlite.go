// Package store persists market data in the hybrid layout: a Google
// Sheets spreadsheet for the hot window and SQLite for the long tail.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// PriceRecord is one persisted daily bar. Timestamp is YYYY-MM-DD.
type PriceRecord struct {
	Timestamp string  `json:"timestamp"`
	Ticker    string  `json:"ticker"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
	Value     float64 `json:"value"` // close * volume
}

// Stats summarises the archived data.
type Stats struct {
	TotalRecords int    `json:"total_records"`
	FirstDate    string `json:"first_date"`
	LastDate     string `json:"last_date"`
	TickerCount  int    `json:"ticker_count"`
	LastArchival string `json:"last_archival"`
	LastUpdated  string `json:"last_updated"`
}

// SQLiteStore is the cold archive for price history.
type SQLiteStore struct {
	db  *sql.DB
	log *zap.Logger
}

const schema = `
CREATE TABLE IF NOT EXISTS price_history (
	timestamp TEXT NOT NULL,
	ticker    TEXT NOT NULL,
	open      REAL,
	high      REAL,
	low       REAL,
	close     REAL,
	volume    INTEGER,
	value     REAL,
	PRIMARY KEY (timestamp, ticker)
);
CREATE INDEX IF NOT EXISTS idx_ticker_date ON price_history(ticker, timestamp);
CREATE INDEX IF NOT EXISTS idx_timestamp ON price_history(timestamp);
CREATE TABLE IF NOT EXISTS archival_metadata (
	last_archival_date TEXT,
	total_records      INTEGER,
	last_updated       TEXT
);
`

// OpenSQLite opens (and creates if needed) the archive database.
func OpenSQLite(path string, log *zap.Logger) (*SQLiteStore, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &SQLiteStore{db: db, log: log.Named("sqlite")}, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// InsertBatch upserts records inside one transaction. Existing
// (timestamp, ticker) rows are left untouched.
func (s *SQLiteStore) InsertBatch(ctx context.Context, records []PriceRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO price_history
		(timestamp, ticker, open, high, low, close, volume, value)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	inserted := 0
	for _, r := range records {
		res, err := stmt.ExecContext(ctx, r.Timestamp, r.Ticker, r.Open, r.High, r.Low, r.Close, r.Volume, r.Value)
		if err != nil {
			return inserted, fmt.Errorf("insert %s/%s: %w", r.Ticker, r.Timestamp, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
		}
	}
	if err := tx.Commit(); err != nil {
		return inserted, err
	}
	return inserted, nil
}

// QueryRange returns records for ticker between start and end
// (inclusive, YYYY-MM-DD), ordered by timestamp.
func (s *SQLiteStore) QueryRange(ctx context.Context, ticker, start, end string) ([]PriceRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT timestamp, ticker, open, high, low, close, volume, value
		FROM price_history
		WHERE ticker = ? AND timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp`, ticker, start, end)
	if err != nil {
		return nil, fmt.Errorf("query range: %w", err)
	}
	defer rows.Close()

	var out []PriceRecord
	for rows.Next() {
		var r PriceRecord
		if err := rows.Scan(&r.Timestamp, &r.Ticker, &r.Open, &r.High, &r.Low, &r.Close, &r.Volume, &r.Value); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// SetArchivalMeta replaces the single metadata row.
func (s *SQLiteStore) SetArchivalMeta(ctx context.Context, cutoffDate string, archived int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM archival_metadata`); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO archival_metadata (last_archival_date, total_records, last_updated)
		VALUES (?, ?, ?)`,
		cutoffDate, archived, time.Now().Format("2006-01-02 15:04:05")); err != nil {
		return err
	}
	return tx.Commit()
}

// Stats reports what the archive holds.
func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM price_history`).Scan(&st.TotalRecords); err != nil {
		return nil, err
	}
	if st.TotalRecords > 0 {
		if err := s.db.QueryRowContext(ctx,
			`SELECT MIN(timestamp), MAX(timestamp) FROM price_history`).Scan(&st.FirstDate, &st.LastDate); err != nil {
			return nil, err
		}
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(DISTINCT ticker) FROM price_history`).Scan(&st.TickerCount); err != nil {
		return nil, err
	}
	var cutoff, updated sql.NullString
	var total sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT last_archival_date, total_records, last_updated FROM archival_metadata`).Scan(&cutoff, &total, &updated)
	if err != nil && err != sql.ErrNoRows {
		return nil, err
	}
	st.LastArchival = cutoff.String
	st.LastUpdated = updated.String
	return st, nil
}
