package analyst

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/quangtb/stockvn/internal/indicators"
	"github.com/quangtb/stockvn/internal/market"
	"github.com/quangtb/stockvn/internal/store"
	"github.com/quangtb/stockvn/internal/vnstock"
)

// QuoteSource serves daily history for the analysis window.
type QuoteSource interface {
	QuoteHistoryAny(ctx context.Context, symbol, start, end string, sources []string) ([]vnstock.Quote, error)
}

// StatementSheet reads archived financial statements.
type StatementSheet interface {
	Records(ctx context.Context, worksheet string) ([]map[string]string, error)
}

// Service assembles a full report for a ticker: fetches the analysis
// window, computes the indicator summary, loads fundamentals from the
// statement worksheets and hands everything to the analyst.
type Service struct {
	analyst *Analyst
	quotes  QuoteSource
	sheet   StatementSheet // nil when no spreadsheet is configured
	params  indicators.Params
	log     *zap.Logger

	now func() time.Time
}

// NewService wires the report pipeline.
func NewService(analyst *Analyst, quotes QuoteSource, sheet StatementSheet, params indicators.Params, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{analyst: analyst, quotes: quotes, sheet: sheet, params: params, log: log.Named("analyst"), now: time.Now}
}

// ReportFor produces (or reuses) the report for one ticker.
func (s *Service) ReportFor(ctx context.Context, ticker string) (*Report, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	summary, err := s.Summary(ctx, ticker)
	if err != nil {
		return nil, err
	}
	fund := s.LoadFundamentals(ctx, ticker)
	return s.analyst.Report(ctx, ticker, summary, fund)
}

// Summary fetches roughly 18 months of history and runs the full
// indicator analysis over it.
func (s *Service) Summary(ctx context.Context, ticker string) (indicators.Summary, error) {
	now := s.now().In(market.Location)
	start := now.AddDate(0, -18, 0).Format("2006-01-02")
	end := now.Format("2006-01-02")
	quotes, err := s.quotes.QuoteHistoryAny(ctx, ticker, start, end, nil)
	if err != nil {
		return indicators.Summary{}, fmt.Errorf("fetch history for %s: %w", ticker, err)
	}
	candles := make([]indicators.Candle, 0, len(quotes))
	for _, q := range quotes {
		t, err := time.ParseInLocation("2006-01-02", q.Time, market.Location)
		if err != nil {
			continue
		}
		candles = append(candles, indicators.Candle{
			Time: t, Open: q.Open, High: q.High, Low: q.Low, Close: q.Close, Volume: q.Volume,
		})
	}
	a := indicators.NewAnalyzer(candles, 0, s.params)
	return a.Summarize(), nil
}

// LoadFundamentals builds the fundamental context from the income and
// ratios worksheets. Missing data degrades to HasData=false rather
// than failing the report.
func (s *Service) LoadFundamentals(ctx context.Context, ticker string) Fundamentals {
	if s.sheet == nil {
		return Fundamentals{}
	}
	f := Fundamentals{Source: "sheet"}

	income, err := s.sheet.Records(ctx, store.SheetIncome)
	if err != nil {
		s.log.Warn("income sheet unavailable", zap.Error(err))
	} else {
		var rows []map[string]string
		for _, rec := range income {
			if strings.EqualFold(rec["ticker"], ticker) {
				rows = append(rows, rec)
			}
		}
		if n := len(rows); n > 0 {
			last := rows[n-1]
			f.RevenueBn = fieldFloat(last, "revenue") / 1e9
			f.NetIncomeBn = fieldFloat(last, "net_income") / 1e9
			f.EPS = fieldFloat(last, "eps")
			f.HasData = true
			if n > 1 {
				prev := rows[n-2]
				if r := fieldFloat(prev, "revenue"); r != 0 {
					f.RevenueGrowth = (fieldFloat(last, "revenue") - r) / r * 100
				}
				if p := fieldFloat(prev, "net_income"); p != 0 {
					f.ProfitGrowth = (fieldFloat(last, "net_income") - p) / p * 100
				}
			}
		}
	}

	ratios, err := s.sheet.Records(ctx, store.SheetRatios)
	if err != nil {
		s.log.Warn("ratios sheet unavailable", zap.Error(err))
		return f
	}
	for _, rec := range ratios {
		if !strings.EqualFold(rec["ticker"], ticker) {
			continue
		}
		f.PE = fieldFloat(rec, "pe")
		f.PB = fieldFloat(rec, "pb")
		f.ROE = fieldFloat(rec, "roe")
		f.HasData = true
	}
	return f
}

func fieldFloat(rec map[string]string, key string) float64 {
	v, err := strconv.ParseFloat(strings.ReplaceAll(rec[key], ",", ""), 64)
	if err != nil {
		return 0
	}
	return v
}
