package analyst

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quangtb/stockvn/internal/indicators"
	"github.com/quangtb/stockvn/internal/store"
	"github.com/quangtb/stockvn/internal/vnstock"
)

type fakeQuoteSource struct {
	quotes []vnstock.Quote
	start  string
	end    string
}

func (f *fakeQuoteSource) QuoteHistoryAny(ctx context.Context, symbol, start, end string, sources []string) ([]vnstock.Quote, error) {
	f.start, f.end = start, end
	return f.quotes, nil
}

type fakeStatementSheet struct {
	income []map[string]string
	ratios []map[string]string
}

func (f *fakeStatementSheet) Records(ctx context.Context, worksheet string) ([]map[string]string, error) {
	switch worksheet {
	case store.SheetIncome:
		return f.income, nil
	case store.SheetRatios:
		return f.ratios, nil
	}
	return nil, nil
}

func TestServiceSummary(t *testing.T) {
	quotes := &fakeQuoteSource{}
	for i := 0; i < 60; i++ {
		day := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i)
		quotes.quotes = append(quotes.quotes, vnstock.Quote{
			Time:   day.Format("2006-01-02"),
			Open:   25, High: 26, Low: 24.5, Close: 25.5, Volume: 1_000_000,
		})
	}
	svc := NewService(nil, quotes, nil, indicators.DefaultParams(), nil)
	now := time.Date(2025, 6, 10, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	s, err := svc.Summary(context.Background(), "HPG")
	require.NoError(t, err)
	assert.Equal(t, 60, s.DataDays)
	assert.Equal(t, 25.5, s.CurrentPrice)
	assert.Equal(t, "2023-12-10", quotes.start, "18-month window")
	assert.Equal(t, "2025-06-10", quotes.end)
}

func TestServiceSummarySkipsBadDates(t *testing.T) {
	quotes := &fakeQuoteSource{quotes: []vnstock.Quote{
		{Time: "garbage", Close: 1},
		{Time: "2025-06-09", Close: 25},
		{Time: "2025-06-10", Close: 26},
	}}
	svc := NewService(nil, quotes, nil, indicators.DefaultParams(), nil)
	s, err := svc.Summary(context.Background(), "hpg ")
	require.NoError(t, err)
	assert.Equal(t, 2, s.DataDays)
}

func TestLoadFundamentals(t *testing.T) {
	sheet := &fakeStatementSheet{
		income: []map[string]string{
			{"ticker": "HPG", "period": "2023", "revenue": "120,000,000,000,000", "net_income": "8,000,000,000,000", "eps": "1400"},
			{"ticker": "HPG", "period": "2024", "revenue": "138,000,000,000,000", "net_income": "12,000,000,000,000", "eps": "2100"},
			{"ticker": "VCB", "period": "2024", "revenue": "68,000,000,000,000", "net_income": "33,000,000,000,000", "eps": "5000"},
		},
		ratios: []map[string]string{
			{"ticker": "HPG", "period": "2024", "pe": "12.4", "pb": "1.6", "roe": "13.8"},
		},
	}
	svc := NewService(nil, nil, sheet, indicators.DefaultParams(), nil)

	f := svc.LoadFundamentals(context.Background(), "HPG")
	assert.True(t, f.HasData)
	assert.Equal(t, "sheet", f.Source)
	assert.InDelta(t, 138000, f.RevenueBn, 1e-9)
	assert.InDelta(t, 12000, f.NetIncomeBn, 1e-9)
	assert.Equal(t, 2100.0, f.EPS)
	assert.InDelta(t, 15, f.RevenueGrowth, 1e-9)
	assert.InDelta(t, 50, f.ProfitGrowth, 1e-9)
	assert.Equal(t, 12.4, f.PE)
	assert.Equal(t, 1.6, f.PB)
	assert.Equal(t, 13.8, f.ROE)
}

func TestLoadFundamentalsNoData(t *testing.T) {
	svc := NewService(nil, nil, &fakeStatementSheet{}, indicators.DefaultParams(), nil)
	f := svc.LoadFundamentals(context.Background(), "XXX")
	assert.False(t, f.HasData)

	svcNoSheet := NewService(nil, nil, nil, indicators.DefaultParams(), nil)
	assert.False(t, svcNoSheet.LoadFundamentals(context.Background(), "HPG").HasData)
}

func TestReportForUppercasesTicker(t *testing.T) {
	quotes := &fakeQuoteSource{}
	for i := 0; i < 30; i++ {
		quotes.quotes = append(quotes.quotes, vnstock.Quote{
			Time:  fmt.Sprintf("2025-05-%02d", i%28+1),
			Close: 20, Volume: 100,
		})
	}
	provider := &fakeProvider{content: "ok"}
	a := New(provider, nil, 0, nil)
	svc := NewService(a, quotes, nil, indicators.DefaultParams(), nil)

	r, err := svc.ReportFor(context.Background(), " hpg ")
	require.NoError(t, err)
	assert.Equal(t, "HPG", r.Ticker)
}
