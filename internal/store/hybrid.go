package store

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
)

// PriceSheet is the slice of the sheet store the hybrid layer needs.
type PriceSheet interface {
	Records(ctx context.Context, worksheet string) ([]map[string]string, error)
	Replace(ctx context.Context, worksheet string, header []string, rows [][]string) error
}

// Hybrid merges the spreadsheet hot window with the SQLite archive and
// moves rows between them on a retention cutoff.
type Hybrid struct {
	sheet         PriceSheet
	db            *SQLiteStore
	retentionDays int
	log           *zap.Logger

	now func() time.Time
}

// NewHybrid wires the two halves. retentionDays is how long rows stay
// in the spreadsheet before archival (default 30).
func NewHybrid(sheet PriceSheet, db *SQLiteStore, retentionDays int, log *zap.Logger) *Hybrid {
	if retentionDays <= 0 {
		retentionDays = 30
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Hybrid{sheet: sheet, db: db, retentionDays: retentionDays, log: log.Named("hybrid"), now: time.Now}
}

func (h *Hybrid) cutoff() string {
	return h.now().AddDate(0, 0, -h.retentionDays).Format("2006-01-02")
}

// Archive moves rows older than the retention cutoff from the
// price_history worksheet into SQLite and rewrites the sheet with what
// remains. Returns the number of rows archived.
func (h *Hybrid) Archive(ctx context.Context) (int, error) {
	cutoff := h.cutoff()
	records, err := h.sheet.Records(ctx, SheetPriceHistory)
	if err != nil {
		return 0, fmt.Errorf("read price history sheet: %w", err)
	}
	if len(records) == 0 {
		return 0, nil
	}

	var old, recent []PriceRecord
	for _, rec := range records {
		r, ok := ParsePriceRecord(rec)
		if !ok {
			continue
		}
		if r.Timestamp < cutoff {
			old = append(old, r)
		} else {
			recent = append(recent, r)
		}
	}
	if len(old) == 0 {
		h.log.Info("nothing to archive", zap.String("cutoff", cutoff))
		return 0, nil
	}

	inserted, err := h.db.InsertBatch(ctx, old)
	if err != nil {
		return inserted, fmt.Errorf("archive to sqlite: %w", err)
	}
	if err := h.db.SetArchivalMeta(ctx, cutoff, len(old)); err != nil {
		return inserted, fmt.Errorf("update archival metadata: %w", err)
	}

	rows := make([][]string, 0, len(recent))
	for _, r := range recent {
		rows = append(rows, PriceRow(r))
	}
	if err := h.sheet.Replace(ctx, SheetPriceHistory, PriceHeader, rows); err != nil {
		return inserted, fmt.Errorf("rewrite sheet: %w", err)
	}

	h.log.Info("archived price history",
		zap.String("cutoff", cutoff),
		zap.Int("archived", len(old)),
		zap.Int("kept", len(recent)))
	return inserted, nil
}

// History returns the merged series for ticker between start and end
// (YYYY-MM-DD, inclusive): SQLite supplies the part before the cutoff,
// the sheet the part after. Sorted ascending, de-duplicated on
// (timestamp, ticker).
func (h *Hybrid) History(ctx context.Context, ticker, start, end string) ([]PriceRecord, error) {
	cutoff := h.cutoff()
	var merged []PriceRecord

	dbEnd := end
	if cutoff < dbEnd {
		dbEnd = cutoff
	}
	archived, err := h.db.QueryRange(ctx, ticker, start, dbEnd)
	if err != nil {
		h.log.Warn("sqlite query failed", zap.String("ticker", ticker), zap.Error(err))
	} else {
		merged = append(merged, archived...)
	}

	records, err := h.sheet.Records(ctx, SheetPriceHistory)
	if err != nil {
		h.log.Warn("sheet query failed", zap.String("ticker", ticker), zap.Error(err))
	} else {
		sheetStart := start
		if cutoff > sheetStart {
			sheetStart = cutoff
		}
		for _, rec := range records {
			r, ok := ParsePriceRecord(rec)
			if !ok || r.Ticker != ticker {
				continue
			}
			if r.Timestamp >= sheetStart && r.Timestamp <= end {
				merged = append(merged, r)
			}
		}
	}

	sort.Slice(merged, func(i, j int) bool { return merged[i].Timestamp < merged[j].Timestamp })
	out := merged[:0]
	var prev string
	for _, r := range merged {
		if r.Timestamp == prev {
			continue
		}
		prev = r.Timestamp
		out = append(out, r)
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

// Stats reports on the SQLite half of the store.
func (h *Hybrid) Stats(ctx context.Context) (*Stats, error) {
	return h.db.Stats(ctx)
}
