// Package watchlist manages the two ticker watchlists kept in the
// spreadsheet: money-flow tracking and fundamental tracking.
package watchlist

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/quangtb/stockvn/internal/store"
)

// Known list names.
const (
	ListFlow        = "flow"
	ListFundamental = "fundamental"
)

// Sheet is the spreadsheet surface the manager uses.
type Sheet interface {
	Records(ctx context.Context, worksheet string) ([]map[string]string, error)
	Replace(ctx context.Context, worksheet string, header []string, rows [][]string) error
	EnsureWorksheet(ctx context.Context, name string) error
}

var header = []string{"ticker"}

// Manager reads and mutates the watchlist worksheets.
type Manager struct {
	sheet Sheet
}

func NewManager(sheet Sheet) *Manager {
	return &Manager{sheet: sheet}
}

func worksheetFor(list string) (string, error) {
	switch strings.ToLower(list) {
	case ListFlow:
		return store.SheetWatchlistFlow, nil
	case ListFundamental:
		return store.SheetWatchlistFund, nil
	default:
		return "", fmt.Errorf("unknown watchlist %q (want %s or %s)", list, ListFlow, ListFundamental)
	}
}

// List returns the tickers on the named list, sorted.
func (m *Manager) List(ctx context.Context, list string) ([]string, error) {
	ws, err := worksheetFor(list)
	if err != nil {
		return nil, err
	}
	records, err := m.sheet.Records(ctx, ws)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", ws, err)
	}
	seen := make(map[string]bool)
	var tickers []string
	for _, rec := range records {
		t := strings.ToUpper(strings.TrimSpace(rec["ticker"]))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)
	return tickers, nil
}

// Add puts ticker on the list. Adding an existing ticker is a no-op.
func (m *Manager) Add(ctx context.Context, list, ticker string) error {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return fmt.Errorf("empty ticker")
	}
	ws, err := worksheetFor(list)
	if err != nil {
		return err
	}
	if err := m.sheet.EnsureWorksheet(ctx, ws); err != nil {
		return err
	}
	current, err := m.List(ctx, list)
	if err != nil {
		return err
	}
	for _, t := range current {
		if t == ticker {
			return nil
		}
	}
	current = append(current, ticker)
	sort.Strings(current)
	return m.write(ctx, ws, current)
}

// Remove takes ticker off the list. Removing a missing ticker errors.
func (m *Manager) Remove(ctx context.Context, list, ticker string) error {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	ws, err := worksheetFor(list)
	if err != nil {
		return err
	}
	current, err := m.List(ctx, list)
	if err != nil {
		return err
	}
	kept := current[:0]
	found := false
	for _, t := range current {
		if t == ticker {
			found = true
			continue
		}
		kept = append(kept, t)
	}
	if !found {
		return fmt.Errorf("%s is not on the %s watchlist", ticker, list)
	}
	return m.write(ctx, ws, kept)
}

func (m *Manager) write(ctx context.Context, worksheet string, tickers []string) error {
	rows := make([][]string, 0, len(tickers))
	for _, t := range tickers {
		rows = append(rows, []string{t})
	}
	return m.sheet.Replace(ctx, worksheet, header, rows)
}
