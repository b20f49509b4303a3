// Package updater runs the scheduled scrapes: daily OHLCV, financial
// statements and the VN-Index snapshot, all landing in the
// spreadsheet.
package updater

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/quangtb/stockvn/internal/market"
	"github.com/quangtb/stockvn/internal/store"
	"github.com/quangtb/stockvn/internal/vnstock"
)

const fetchConcurrency = 4

// Quotes serves market data.
type Quotes interface {
	QuoteHistoryAny(ctx context.Context, symbol, start, end string, sources []string) ([]vnstock.Quote, error)
	IndexHistory(ctx context.Context, start, end string) ([]vnstock.Quote, error)
	GetFinancials(ctx context.Context, symbol, period string, years int) (*vnstock.Financials, error)
}

// Sheet is the spreadsheet surface the updater writes to.
type Sheet interface {
	Records(ctx context.Context, worksheet string) ([]map[string]string, error)
	Replace(ctx context.Context, worksheet string, header []string, rows [][]string) error
	Append(ctx context.Context, worksheet string, rows [][]string) error
	EnsureWorksheet(ctx context.Context, name string) error
}

// Updater drives the scrapes.
type Updater struct {
	quotes Quotes
	sheet  Sheet
	log    *zap.Logger

	now func() time.Time
}

func New(quotes Quotes, sheet Sheet, log *zap.Logger) *Updater {
	if log == nil {
		log = zap.NewNop()
	}
	return &Updater{quotes: quotes, sheet: sheet, log: log.Named("updater"), now: time.Now}
}

// Tickers reads the tracked tickers from the tickers worksheet.
func (u *Updater) Tickers(ctx context.Context) ([]string, error) {
	records, err := u.sheet.Records(ctx, store.SheetTickers)
	if err != nil {
		return nil, fmt.Errorf("read tickers: %w", err)
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

// UpdatePrices appends missing daily bars to price_history. The window
// goes back days calendar days; bars already on the sheet are skipped.
func (u *Updater) UpdatePrices(ctx context.Context, tickers []string, days int) (int, error) {
	if days <= 0 {
		days = 7
	}
	if err := u.sheet.EnsureWorksheet(ctx, store.SheetPriceHistory); err != nil {
		return 0, err
	}
	existing, err := u.sheet.Records(ctx, store.SheetPriceHistory)
	if err != nil {
		return 0, fmt.Errorf("read price history: %w", err)
	}
	have := make(map[string]bool, len(existing))
	for _, rec := range existing {
		if r, ok := store.ParsePriceRecord(rec); ok {
			have[r.Timestamp+"|"+r.Ticker] = true
		}
	}

	now := u.now().In(market.Location)
	start := now.AddDate(0, 0, -days).Format("2006-01-02")
	end := now.Format("2006-01-02")

	var mu sync.Mutex
	var fresh []store.PriceRecord

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchConcurrency)
	for _, ticker := range tickers {
		ticker := ticker
		g.Go(func() error {
			quotes, err := u.quotes.QuoteHistoryAny(gctx, ticker, start, end, nil)
			if err != nil {
				u.log.Warn("price fetch failed", zap.String("ticker", ticker), zap.Error(err))
				return nil
			}
			mu.Lock()
			defer mu.Unlock()
			for _, q := range quotes {
				if have[q.Time+"|"+ticker] {
					continue
				}
				fresh = append(fresh, store.PriceRecord{
					Timestamp: q.Time,
					Ticker:    ticker,
					Open:      q.Open,
					High:      q.High,
					Low:       q.Low,
					Close:     q.Close,
					Volume:    q.Volume,
					Value:     q.Close * q.Volume,
				})
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	if len(fresh) == 0 {
		return 0, nil
	}
	sort.Slice(fresh, func(i, j int) bool {
		if fresh[i].Timestamp != fresh[j].Timestamp {
			return fresh[i].Timestamp < fresh[j].Timestamp
		}
		return fresh[i].Ticker < fresh[j].Ticker
	})
	rows := make([][]string, 0, len(fresh))
	for _, r := range fresh {
		rows = append(rows, store.PriceRow(r))
	}
	if len(existing) == 0 {
		if err := u.sheet.Replace(ctx, store.SheetPriceHistory, store.PriceHeader, rows); err != nil {
			return 0, err
		}
	} else if err := u.sheet.Append(ctx, store.SheetPriceHistory, rows); err != nil {
		return 0, err
	}
	u.log.Info("price history updated", zap.Int("rows", len(rows)))
	return len(rows), nil
}

var (
	incomeHeader  = []string{"ticker", "period", "revenue", "net_income", "eps"}
	balanceHeader = []string{"ticker", "period", "equity", "total_assets", "total_liabilities", "current_assets", "current_liabilities", "shares_outstanding"}
	ratiosHeader  = []string{"ticker", "period", "pe", "pb", "roe"}
)

// UpdateFinancials scrapes the statement tables for the tickers and
// rewrites their rows on the income, balance and ratios worksheets.
// Other tickers' rows are preserved.
func (u *Updater) UpdateFinancials(ctx context.Context, tickers []string, period string, years int) error {
	if period == "" {
		period = "year"
	}
	if years <= 0 {
		years = 5
	}
	replacing := make(map[string]bool, len(tickers))
	for _, t := range tickers {
		replacing[strings.ToUpper(t)] = true
	}

	var mu sync.Mutex
	var all []*vnstock.Financials

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchConcurrency)
	for _, ticker := range tickers {
		ticker := ticker
		g.Go(func() error {
			fin, err := u.quotes.GetFinancials(gctx, ticker, period, years)
			if err != nil {
				u.log.Warn("financials fetch failed", zap.String("ticker", ticker), zap.Error(err))
				return nil
			}
			mu.Lock()
			all = append(all, fin)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	income := u.keepRows(ctx, store.SheetIncome, incomeHeader, replacing)
	balance := u.keepRows(ctx, store.SheetBalance, balanceHeader, replacing)
	ratios := u.keepRows(ctx, store.SheetRatios, ratiosHeader, replacing)
	for _, fin := range all {
		for _, r := range fin.Income {
			income = append(income, []string{r.Ticker, r.Period, f(r.Revenue), f(r.NetIncome), f(r.EPS)})
		}
		for _, r := range fin.Balance {
			balance = append(balance, []string{r.Ticker, r.Period, f(r.Equity), f(r.TotalAssets), f(r.TotalLiabilities), f(r.CurrentAssets), f(r.CurrentLiabilities), f(r.SharesOutstanding)})
		}
		for _, r := range fin.Ratios {
			ratios = append(ratios, []string{r.Ticker, r.Period, f(r.PE), f(r.PB), f(r.ROE)})
		}
	}

	if err := u.sheet.Replace(ctx, store.SheetIncome, incomeHeader, income); err != nil {
		return err
	}
	if err := u.sheet.Replace(ctx, store.SheetBalance, balanceHeader, balance); err != nil {
		return err
	}
	if err := u.sheet.Replace(ctx, store.SheetRatios, ratiosHeader, ratios); err != nil {
		return err
	}
	u.log.Info("financials updated", zap.Int("tickers", len(all)))
	return nil
}

// keepRows returns the worksheet rows whose ticker is not being
// replaced, in header order. A missing worksheet yields no rows.
func (u *Updater) keepRows(ctx context.Context, worksheet string, header []string, replacing map[string]bool) [][]string {
	records, err := u.sheet.Records(ctx, worksheet)
	if err != nil {
		return nil
	}
	var rows [][]string
	for _, rec := range records {
		if replacing[strings.ToUpper(rec["ticker"])] {
			continue
		}
		row := make([]string, len(header))
		for i, key := range header {
			row[i] = rec[key]
		}
		rows = append(rows, row)
	}
	return rows
}

var vnindexHeader = []string{"time", "open", "high", "low", "close", "volume"}

// UpdateVNIndex rewrites the vnindex worksheet with the last six
// months of index bars.
func (u *Updater) UpdateVNIndex(ctx context.Context) (int, error) {
	now := u.now().In(market.Location)
	quotes, err := u.quotes.IndexHistory(ctx,
		now.AddDate(0, -6, 0).Format("2006-01-02"), now.Format("2006-01-02"))
	if err != nil {
		return 0, fmt.Errorf("fetch VN-Index: %w", err)
	}
	rows := make([][]string, 0, len(quotes))
	for _, q := range quotes {
		rows = append(rows, []string{q.Time, f(q.Open), f(q.High), f(q.Low), f(q.Close), f(q.Volume)})
	}
	if err := u.sheet.Replace(ctx, store.SheetVNIndex, vnindexHeader, rows); err != nil {
		return 0, err
	}
	u.log.Info("vnindex updated", zap.Int("rows", len(rows)))
	return len(rows), nil
}

func f(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
