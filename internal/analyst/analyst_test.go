package analyst

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quangtb/stockvn/internal/indicators"
	"github.com/quangtb/stockvn/internal/store"
)

type fakeProvider struct {
	calls   int
	content string
	err     error
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) Generate(ctx context.Context, prompt string) (string, error) {
	p.calls++
	return p.content, p.err
}

type fakeReportSheet struct {
	records  []map[string]string
	appended [][]string
	replaced [][]string
	ensured  []string
}

func (f *fakeReportSheet) Records(ctx context.Context, worksheet string) ([]map[string]string, error) {
	return f.records, nil
}

func (f *fakeReportSheet) Replace(ctx context.Context, worksheet string, header []string, rows [][]string) error {
	f.replaced = rows
	return nil
}

func (f *fakeReportSheet) Append(ctx context.Context, worksheet string, rows [][]string) error {
	f.appended = append(f.appended, rows...)
	return nil
}

func (f *fakeReportSheet) EnsureWorksheet(ctx context.Context, title string) error {
	f.ensured = append(f.ensured, title)
	return nil
}

// gridReportSheet holds the worksheet as the spreadsheet does: first
// row is the header, Records keys the data rows by it.
type gridReportSheet struct {
	grid [][]string
}

func (g *gridReportSheet) Records(ctx context.Context, worksheet string) ([]map[string]string, error) {
	if len(g.grid) < 2 {
		return nil, nil
	}
	header := g.grid[0]
	recs := make([]map[string]string, 0, len(g.grid)-1)
	for _, row := range g.grid[1:] {
		rec := map[string]string{}
		for i, col := range header {
			if i < len(row) {
				rec[col] = row[i]
			}
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

func (g *gridReportSheet) Replace(ctx context.Context, worksheet string, header []string, rows [][]string) error {
	g.grid = append([][]string{header}, rows...)
	return nil
}

func (g *gridReportSheet) Append(ctx context.Context, worksheet string, rows [][]string) error {
	g.grid = append(g.grid, rows...)
	return nil
}

func (g *gridReportSheet) EnsureWorksheet(ctx context.Context, title string) error { return nil }

func TestReportGeneratesAndPersists(t *testing.T) {
	provider := &fakeProvider{content: "Báo cáo HPG"}
	sheet := &fakeReportSheet{}
	a := New(provider, sheet, 24*time.Hour, nil)

	r, err := a.Report(context.Background(), "HPG", indicators.Summary{}, Fundamentals{})
	require.NoError(t, err)
	assert.Equal(t, "HPG", r.Ticker)
	assert.Equal(t, "fake", r.Provider)
	assert.Equal(t, "Báo cáo HPG", r.Content)
	assert.False(t, r.Cached)
	assert.NotEmpty(t, r.ID)
	require.Len(t, sheet.replaced, 1, "empty worksheet is seeded header-first")
	assert.Empty(t, sheet.appended)
	assert.Equal(t, []string{store.SheetReports}, sheet.ensured)
	assert.Equal(t, r.ID, sheet.replaced[0][0])
}

func TestReportCacheSurvivesPersistRoundTrip(t *testing.T) {
	now := time.Date(2025, 6, 10, 10, 0, 0, 0, time.Local)
	provider := &fakeProvider{content: "Báo cáo HPG"}
	sheet := &gridReportSheet{}
	a := New(provider, sheet, 24*time.Hour, nil)
	a.now = func() time.Time { return now }

	first, err := a.Report(context.Background(), "HPG", indicators.Summary{}, Fundamentals{})
	require.NoError(t, err)
	assert.False(t, first.Cached)

	require.Len(t, sheet.grid, 2)
	assert.Equal(t, reportHeader, sheet.grid[0])

	for range 2 {
		r, err := a.Report(context.Background(), "HPG", indicators.Summary{}, Fundamentals{})
		require.NoError(t, err)
		assert.True(t, r.Cached)
		assert.Equal(t, first.ID, r.ID)
		assert.Equal(t, "Báo cáo HPG", r.Content)
	}
	assert.Equal(t, 1, provider.calls, "only the first call reaches the model")
	assert.Len(t, sheet.grid, 2, "repeat calls do not re-persist")
}

func TestPersistAppendsAfterSeed(t *testing.T) {
	now := time.Date(2025, 6, 10, 10, 0, 0, 0, time.Local)
	provider := &fakeProvider{content: "nội dung"}
	sheet := &gridReportSheet{}
	a := New(provider, sheet, 24*time.Hour, nil)
	a.now = func() time.Time { return now }

	_, err := a.Report(context.Background(), "HPG", indicators.Summary{}, Fundamentals{})
	require.NoError(t, err)
	_, err = a.Report(context.Background(), "VCB", indicators.Summary{}, Fundamentals{})
	require.NoError(t, err)

	require.Len(t, sheet.grid, 3, "one header row, one row per ticker")
	assert.Equal(t, reportHeader, sheet.grid[0])

	recs, err := sheet.Records(context.Background(), store.SheetReports)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "HPG", recs[0]["ticker"])
	assert.Equal(t, "VCB", recs[1]["ticker"])
}

func TestReportServesFreshCache(t *testing.T) {
	now := time.Date(2025, 6, 10, 10, 0, 0, 0, time.Local)
	provider := &fakeProvider{content: "new"}
	sheet := &fakeReportSheet{records: []map[string]string{
		{
			"id": "old", "ticker": "HPG", "provider": "gemini", "content": "stale",
			"generated_at": now.Add(-30 * time.Hour).Format("2006-01-02 15:04:05"),
		},
		{
			"id": "r1", "ticker": "HPG", "provider": "gemini", "content": "fresh",
			"generated_at": now.Add(-2 * time.Hour).Format("2006-01-02 15:04:05"),
		},
		{
			"id": "other", "ticker": "VCB", "provider": "gemini", "content": "vcb",
			"generated_at": now.Format("2006-01-02 15:04:05"),
		},
	}}
	a := New(provider, sheet, 24*time.Hour, nil)
	a.now = func() time.Time { return now }

	r, err := a.Report(context.Background(), "HPG", indicators.Summary{}, Fundamentals{})
	require.NoError(t, err)
	assert.True(t, r.Cached)
	assert.Equal(t, "r1", r.ID)
	assert.Equal(t, "fresh", r.Content)
	assert.Zero(t, provider.calls, "cache hit skips the model call")
	assert.Empty(t, sheet.appended)
}

func TestReportIgnoresExpiredCache(t *testing.T) {
	now := time.Date(2025, 6, 10, 10, 0, 0, 0, time.Local)
	provider := &fakeProvider{content: "regenerated"}
	sheet := &fakeReportSheet{records: []map[string]string{
		{
			"id": "old", "ticker": "HPG", "provider": "gemini", "content": "stale",
			"generated_at": now.Add(-48 * time.Hour).Format("2006-01-02 15:04:05"),
		},
	}}
	a := New(provider, sheet, 24*time.Hour, nil)
	a.now = func() time.Time { return now }

	r, err := a.Report(context.Background(), "HPG", indicators.Summary{}, Fundamentals{})
	require.NoError(t, err)
	assert.False(t, r.Cached)
	assert.Equal(t, "regenerated", r.Content)
	assert.Equal(t, 1, provider.calls)
}

func TestReportProviderError(t *testing.T) {
	provider := &fakeProvider{err: errors.New("quota exceeded")}
	a := New(provider, nil, 0, nil)
	_, err := a.Report(context.Background(), "HPG", indicators.Summary{}, Fundamentals{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "generate report for HPG")
}

func TestBuildPrompt(t *testing.T) {
	s := indicators.Summary{
		AnalysisDate:   "2025-06-10",
		DataDays:       250,
		CurrentPrice:   26.5,
		MA20:           25.8,
		MA50:           24.9,
		MA200:          22.1,
		MAAlignment:    "golden_alignment",
		PriceAboveMA20: true,
		RSI:            61.2,
		Trend:          "strong_uptrend",
		Recommendation: "MUA / TÍCH LŨY",
		Support:        24.5,
		Resistance:     27.0,
	}

	withFund := BuildPrompt("HPG", s, Fundamentals{
		HasData: true, Source: "sheet", EPS: 3200, PE: 8.2, ROE: 18.5, RevenueGrowth: 12.3,
	})
	assert.Contains(t, withFund, "DỮ LIỆU PHÂN TÍCH CHO MÃ HPG")
	assert.Contains(t, withFund, "RSI (14): 61.2")
	assert.Contains(t, withFund, "golden_alignment")
	assert.Contains(t, withFund, "Khuyến nghị kỹ thuật: MUA / TÍCH LŨY")
	assert.Contains(t, withFund, "EPS: 3200")
	assert.Contains(t, withFund, "ROE: 18.5%")
	assert.Contains(t, withFund, "KHÔNG CÓ SHORT")

	noFund := BuildPrompt("HPG", s, Fundamentals{})
	assert.Contains(t, noFund, "Có dữ liệu: Không")
	assert.Contains(t, noFund, "P/E: N/A")
	assert.Contains(t, noFund, "Nguồn: N/A")
}
