package flow

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/quangtb/stockvn/internal/market"
	"github.com/quangtb/stockvn/internal/store"
)

// Backfill recomputes daily money flow over a past date range and
// merges the per-day sector summaries into daily_flow_summary.
// Valuation ratios are skipped: historical statement rows are not
// aligned per day.
func (t *Tracker) Backfill(ctx context.Context, tickers []string, start, end string) (int, error) {
	type daySnap struct {
		date string
		snap Snapshot
	}
	var mu sync.Mutex
	var all []daySnap

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchConcurrency)
	for _, ticker := range tickers {
		g.Go(func() error {
			quotes, err := t.quotes.QuoteHistoryAny(gctx, ticker, start, end, nil)
			if err != nil {
				t.log.Warn("backfill fetch failed", zap.String("ticker", ticker), zap.Error(err))
				return nil
			}
			sector := market.Sector(ticker)
			var local []daySnap
			for _, q := range quotes {
				change := q.Close - q.Open
				changePct := 0.0
				if q.Open > 0 {
					changePct = change / q.Open * 100
				}
				flow := change * q.Volume
				local = append(local, daySnap{
					date: q.Time,
					snap: Snapshot{
						Timestamp:      q.Time,
						Ticker:         ticker,
						Sector:         sector,
						Open:           q.Open,
						Close:          q.Close,
						Volume:         q.Volume,
						PriceChangePct: round2(changePct),
						MoneyFlow:      round2(flow),
						MoneyFlowBn:    round2(flow / 1e9),
					},
				})
			}
			mu.Lock()
			all = append(all, local...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	if len(all) == 0 {
		return 0, fmt.Errorf("no historical data between %s and %s", start, end)
	}

	byDay := map[string][]Snapshot{}
	for _, ds := range all {
		byDay[ds.date] = append(byDay[ds.date], ds.snap)
	}
	days := make([]string, 0, len(byDay))
	for d := range byDay {
		days = append(days, d)
	}
	sort.Strings(days)

	existing, err := t.sheet.Records(ctx, store.SheetFlowSummary)
	if err != nil {
		t.log.Warn("summary sheet unreadable, rewriting", zap.Error(err))
	}
	var rows [][]string
	for _, rec := range existing {
		if _, replaced := byDay[rec["date"]]; replaced {
			continue
		}
		rows = append(rows, []string{
			rec["date"], rec["sector"], rec["total_flow"],
			rec["avg_price_change"], rec["avg_pe"], rec["avg_pb"], rec["stock_count"],
		})
	}
	for _, d := range days {
		for _, s := range summarizeDay(d, byDay[d]) {
			rows = append(rows, []string{
				s.Date, s.Sector, formatFloat(s.TotalFlowBn),
				formatFloat(s.AvgPriceChange), formatFloat(s.AvgPE), formatFloat(s.AvgPB),
				strconv.Itoa(s.StockCount),
			})
		}
	}
	if err := t.sheet.Replace(ctx, store.SheetFlowSummary, summaryHeader, rows); err != nil {
		return 0, fmt.Errorf("write backfilled summary: %w", err)
	}
	t.log.Info("backfilled money flow",
		zap.String("start", start), zap.String("end", end), zap.Int("days", len(days)))
	return len(days), nil
}

// summarizeDay is Summarize with the date pinned to a historical day.
func summarizeDay(date string, snaps []Snapshot) []SectorSummary {
	out := Summarize(snaps)
	for i := range out {
		out[i].Date = date
	}
	return out
}

// DefaultBackfillRange returns the last n-day window ending today.
func DefaultBackfillRange(n int) (start, end string) {
	now := time.Now().In(market.Location)
	return now.AddDate(0, 0, -n).Format("2006-01-02"), now.Format("2006-01-02")
}
