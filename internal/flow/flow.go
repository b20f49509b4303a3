// Package flow tracks intraday buy/sell money flow per ticker, tags it
// with valuation ratios and aggregates it into per-sector summaries.
package flow

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/quangtb/stockvn/internal/market"
	"github.com/quangtb/stockvn/internal/store"
	"github.com/quangtb/stockvn/internal/vnstock"
)

// fetchConcurrency bounds the per-ticker fan-out. The gateway rate
// limiter is the real throttle, this just caps in-flight requests.
const fetchConcurrency = 4

// Snapshot is one intraday money-flow observation for a ticker.
type Snapshot struct {
	Timestamp      string   `json:"timestamp"`
	Ticker         string   `json:"ticker"`
	Sector         string   `json:"sector"`
	Open           float64  `json:"open"`
	Close          float64  `json:"close"`
	Volume         float64  `json:"volume"`
	PriceChangePct float64  `json:"price_change_pct"`
	MoneyFlow      float64  `json:"money_flow"`
	MoneyFlowBn    float64  `json:"money_flow_normalized"` // tỷ VNĐ
	PE             *float64 `json:"pe_ratio"`
	PB             *float64 `json:"pb_ratio"`
	PS             *float64 `json:"ps_ratio"`
	MarketCapBn    *float64 `json:"market_cap"` // tỷ VNĐ
}

// SectorSummary is the per-sector daily aggregate.
type SectorSummary struct {
	Date           string  `json:"date"`
	Sector         string  `json:"sector"`
	TotalFlowBn    float64 `json:"total_flow"`
	AvgPriceChange float64 `json:"avg_price_change"`
	AvgPE          float64 `json:"avg_pe"`
	AvgPB          float64 `json:"avg_pb"`
	StockCount     int     `json:"stock_count"`
}

// Sheet is the spreadsheet surface the tracker writes to.
type Sheet interface {
	Records(ctx context.Context, worksheet string) ([]map[string]string, error)
	Replace(ctx context.Context, worksheet string, header []string, rows [][]string) error
	Append(ctx context.Context, worksheet string, rows [][]string) error
	Clear(ctx context.Context, worksheet string) error
	EnsureWorksheet(ctx context.Context, title string) error
}

// Quotes is the market-data surface the tracker reads from.
type Quotes interface {
	QuoteHistoryAny(ctx context.Context, symbol, start, end string, sources []string) ([]vnstock.Quote, error)
}

// Fundamentals holds the latest per-ticker statement values used for
// valuation.
type Fundamentals struct {
	EPS               float64
	Revenue           float64
	Equity            float64
	SharesOutstanding float64
}

// Tracker computes and persists money-flow snapshots.
type Tracker struct {
	quotes Quotes
	sheet  Sheet
	log    *zap.Logger

	mu    sync.Mutex
	funds map[string]Fundamentals // lazy per-run cache of statement rows
}

// NewTracker wires the tracker.
func NewTracker(quotes Quotes, sheet Sheet, log *zap.Logger) *Tracker {
	if log == nil {
		log = zap.NewNop()
	}
	return &Tracker{quotes: quotes, sheet: sheet, log: log.Named("flow")}
}

var intradayHeader = []string{
	"timestamp", "ticker", "sector", "open", "close", "volume",
	"price_change_pct", "money_flow", "money_flow_normalized",
	"pe_ratio", "pb_ratio", "ps_ratio", "market_cap",
}

var summaryHeader = []string{
	"date", "sector", "total_flow", "avg_price_change", "avg_pe", "avg_pb", "stock_count",
}

// loadFundamentals reads the income and balance worksheets once and
// keeps the latest row per ticker.
func (t *Tracker) loadFundamentals(ctx context.Context) map[string]Fundamentals {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.funds != nil {
		return t.funds
	}

	funds := map[string]Fundamentals{}
	income, err := t.sheet.Records(ctx, store.SheetIncome)
	if err != nil {
		t.log.Warn("income sheet unreadable", zap.Error(err))
	}
	for _, rec := range income {
		ticker := rec["ticker"]
		if ticker == "" {
			continue
		}
		f := funds[ticker]
		f.EPS = parseFloat(rec["eps"])
		f.Revenue = parseFloat(rec["revenue"])
		funds[ticker] = f // later rows win: sheet is appended oldest first
	}
	balance, err := t.sheet.Records(ctx, store.SheetBalance)
	if err != nil {
		t.log.Warn("balance sheet unreadable", zap.Error(err))
	}
	for _, rec := range balance {
		ticker := rec["ticker"]
		if ticker == "" {
			continue
		}
		f := funds[ticker]
		f.Equity = parseFloat(rec["equity"])
		f.SharesOutstanding = parseFloat(rec["shares_outstanding"])
		funds[ticker] = f
	}

	t.funds = funds
	return funds
}

// Valuation computes P/E, P/B, P/S and market cap (tỷ VNĐ) from price
// and the latest fundamentals. Nil means not computable.
func Valuation(price float64, f Fundamentals) (pe, pb, ps, marketCapBn *float64) {
	if f.EPS > 0 {
		pe = ptr(round2(price / f.EPS))
	}
	if f.SharesOutstanding > 0 {
		if f.Equity > 0 {
			bookValue := f.Equity / f.SharesOutstanding
			if bookValue > 0 {
				pb = ptr(round2(price / bookValue))
			}
		}
		mc := price * f.SharesOutstanding
		marketCapBn = ptr(round2(mc / 1e9))
		if f.Revenue > 0 {
			ps = ptr(round2(mc / f.Revenue))
		}
	}
	return pe, pb, ps, marketCapBn
}

// Snapshot fetches the latest bar for one ticker and derives its flow
// and valuation.
func (t *Tracker) Snapshot(ctx context.Context, ticker string) (*Snapshot, error) {
	end := time.Now().In(market.Location)
	start := end.AddDate(0, 0, -1)
	quotes, err := t.quotes.QuoteHistoryAny(ctx, ticker,
		start.Format("2006-01-02"), end.Format("2006-01-02"), nil)
	if err != nil {
		return nil, err
	}
	if len(quotes) == 0 {
		return nil, fmt.Errorf("no quotes for %s", ticker)
	}
	latest := quotes[len(quotes)-1]

	priceChange := latest.Close - latest.Open
	moneyFlow := priceChange * latest.Volume
	changePct := 0.0
	if latest.Open > 0 {
		changePct = priceChange / latest.Open * 100
	}

	f := t.loadFundamentals(ctx)[ticker]
	pe, pb, ps, mc := Valuation(latest.Close, f)

	return &Snapshot{
		Timestamp:      time.Now().In(market.Location).Format("2006-01-02 15:04:05"),
		Ticker:         ticker,
		Sector:         market.Sector(ticker),
		Open:           round2(latest.Open),
		Close:          round2(latest.Close),
		Volume:         latest.Volume,
		PriceChangePct: round2(changePct),
		MoneyFlow:      round2(moneyFlow),
		MoneyFlowBn:    round2(moneyFlow / 1e9),
		PE:             pe,
		PB:             pb,
		PS:             ps,
		MarketCapBn:    mc,
	}, nil
}

// Track snapshots every ticker, appends the rows to intraday_flow and
// rewrites today's sector summary. Returns the snapshots taken.
func (t *Tracker) Track(ctx context.Context, tickers []string) ([]Snapshot, error) {
	t.loadFundamentals(ctx) // warm the cache before fanning out

	var mu sync.Mutex
	var snaps []Snapshot
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchConcurrency)
	for _, ticker := range tickers {
		g.Go(func() error {
			snap, err := t.Snapshot(gctx, ticker)
			if err != nil {
				t.log.Warn("snapshot failed", zap.String("ticker", ticker), zap.Error(err))
				return nil // one dead ticker must not sink the run
			}
			mu.Lock()
			snaps = append(snaps, *snap)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if len(snaps) == 0 {
		return nil, fmt.Errorf("no data collected for %d tickers", len(tickers))
	}
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].Ticker < snaps[j].Ticker })

	if err := t.sheet.EnsureWorksheet(ctx, store.SheetIntradayFlow); err != nil {
		return snaps, err
	}
	rows := make([][]string, 0, len(snaps))
	for _, s := range snaps {
		rows = append(rows, []string{
			s.Timestamp, s.Ticker, s.Sector,
			formatFloat(s.Open), formatFloat(s.Close), formatFloat(s.Volume),
			formatFloat(s.PriceChangePct), formatFloat(s.MoneyFlow), formatFloat(s.MoneyFlowBn),
			formatPtr(s.PE), formatPtr(s.PB), formatPtr(s.PS), formatPtr(s.MarketCapBn),
		})
	}
	// A cleared or freshly created worksheet has no header row, and an
	// append would land where the header belongs. Seed it first.
	existing, err := t.sheet.Records(ctx, store.SheetIntradayFlow)
	if err != nil {
		return snaps, fmt.Errorf("read intraday flow: %w", err)
	}
	if len(existing) == 0 {
		err = t.sheet.Replace(ctx, store.SheetIntradayFlow, intradayHeader, rows)
	} else {
		err = t.sheet.Append(ctx, store.SheetIntradayFlow, rows)
	}
	if err != nil {
		return snaps, fmt.Errorf("save intraday flow: %w", err)
	}

	if err := t.writeSummary(ctx, Summarize(snaps)); err != nil {
		return snaps, err
	}
	t.log.Info("tracked money flow", zap.Int("tickers", len(snaps)))
	return snaps, nil
}

// Summarize aggregates snapshots into per-sector summaries, sorted by
// total flow descending.
func Summarize(snaps []Snapshot) []SectorSummary {
	type agg struct {
		flow, change, pe, pb float64
		peN, pbN, count      int
	}
	date := time.Now().In(market.Location).Format("2006-01-02")
	bySector := map[string]*agg{}
	for _, s := range snaps {
		a := bySector[s.Sector]
		if a == nil {
			a = &agg{}
			bySector[s.Sector] = a
		}
		a.flow += s.MoneyFlowBn
		a.change += s.PriceChangePct
		a.count++
		if s.PE != nil {
			a.pe += *s.PE
			a.peN++
		}
		if s.PB != nil {
			a.pb += *s.PB
			a.pbN++
		}
	}

	out := make([]SectorSummary, 0, len(bySector))
	for sector, a := range bySector {
		sum := SectorSummary{
			Date:           date,
			Sector:         sector,
			TotalFlowBn:    round2(a.flow),
			AvgPriceChange: round2(a.change / float64(a.count)),
			StockCount:     a.count,
		}
		if a.peN > 0 {
			sum.AvgPE = round2(a.pe / float64(a.peN))
		}
		if a.pbN > 0 {
			sum.AvgPB = round2(a.pb / float64(a.pbN))
		}
		out = append(out, sum)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TotalFlowBn > out[j].TotalFlowBn })
	return out
}

// writeSummary replaces today's rows in daily_flow_summary, keeping
// prior days.
func (t *Tracker) writeSummary(ctx context.Context, summaries []SectorSummary) error {
	if len(summaries) == 0 {
		return nil
	}
	date := summaries[0].Date

	existing, err := t.sheet.Records(ctx, store.SheetFlowSummary)
	if err != nil {
		t.log.Warn("summary sheet unreadable, rewriting", zap.Error(err))
	}
	var rows [][]string
	for _, rec := range existing {
		if rec["date"] == date {
			continue // replaced below
		}
		rows = append(rows, []string{
			rec["date"], rec["sector"], rec["total_flow"],
			rec["avg_price_change"], rec["avg_pe"], rec["avg_pb"], rec["stock_count"],
		})
	}
	for _, s := range summaries {
		rows = append(rows, []string{
			s.Date, s.Sector, formatFloat(s.TotalFlowBn),
			formatFloat(s.AvgPriceChange), formatFloat(s.AvgPE), formatFloat(s.AvgPB),
			strconv.Itoa(s.StockCount),
		})
	}
	if err := t.sheet.Replace(ctx, store.SheetFlowSummary, summaryHeader, rows); err != nil {
		return fmt.Errorf("write flow summary: %w", err)
	}
	return nil
}

// TopStocks returns the n snapshots with the largest money flow.
func TopStocks(snaps []Snapshot, n int) []Snapshot {
	sorted := make([]Snapshot, len(snaps))
	copy(sorted, snaps)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].MoneyFlowBn > sorted[j].MoneyFlowBn })
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

// Cleanup clears the intraday worksheet at end of day. The daily
// summary survives.
func (t *Tracker) Cleanup(ctx context.Context) error {
	if err := t.sheet.Clear(ctx, store.SheetIntradayFlow); err != nil {
		return fmt.Errorf("cleanup intraday flow: %w", err)
	}
	t.log.Info("cleared intraday flow")
	return nil
}

func ptr(v float64) *float64 { return &v }

func round2(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return math.Round(v*100) / 100
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

func formatFloat(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

func formatPtr(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}
