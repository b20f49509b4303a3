package cli

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/quangtb/stockvn/internal/config"
)

type fakeConfigSheet struct {
	records []map[string]string
}

func (f *fakeConfigSheet) Records(ctx context.Context, worksheet string) ([]map[string]string, error) {
	return f.records, nil
}

func (f *fakeConfigSheet) Replace(ctx context.Context, worksheet string, header []string, rows [][]string) error {
	f.records = nil
	for _, row := range rows {
		f.records = append(f.records, map[string]string{"key": row[0], "value": row[1]})
	}
	return nil
}

func TestReportRefreshDefault(t *testing.T) {
	settings := config.NewSettings(nil, nil)
	assert.Equal(t, 24*time.Hour, reportRefresh(context.Background(), settings))
}

func TestReportRefreshFromSheet(t *testing.T) {
	sheet := &fakeConfigSheet{records: []map[string]string{
		{"key": config.KeyRecommendRefresh, "value": "6"},
	}}
	settings := config.NewSettings(sheet, nil)
	assert.Equal(t, 6*time.Hour, reportRefresh(context.Background(), settings))
}

func TestBacktestWindowUsesSetting(t *testing.T) {
	settings := config.NewSettings(nil, nil)
	start, end := backtestWindow(context.Background(), settings, "", "2025-06-10")
	assert.Equal(t, "2021-01-01", start, "default backtest_start_date")
	assert.Equal(t, "2025-06-10", end)

	sheet := &fakeConfigSheet{records: []map[string]string{
		{"key": config.KeyBacktestStartDate, "value": "2023-06-01"},
	}}
	start, _ = backtestWindow(context.Background(), config.NewSettings(sheet, nil), "", "2025-06-10")
	assert.Equal(t, "2023-06-01", start)
}

func TestBacktestWindowKeepsExplicitBounds(t *testing.T) {
	settings := config.NewSettings(nil, nil)
	start, end := backtestWindow(context.Background(), settings, "2024-02-01", "2024-08-01")
	assert.Equal(t, "2024-02-01", start)
	assert.Equal(t, "2024-08-01", end)

	_, end = backtestWindow(context.Background(), settings, "2024-02-01", "")
	assert.Equal(t, today(), end)
}

func TestRiskFreePct(t *testing.T) {
	assert.InDelta(t, 5.0, riskFreePct("2024-06-10", "2025-06-10", 0.05), 0.05, "one year at 5%")
	assert.InDelta(t, 2.5, riskFreePct("2024-06-10", "2024-12-09", 0.05), 0.1, "half a year")
	assert.Zero(t, riskFreePct("2025-06-10", "2024-06-10", 0.05), "inverted window")
	assert.Zero(t, riskFreePct("bad", "2024-06-10", 0.05))
}

func TestSplitTickers(t *testing.T) {
	assert.Equal(t, []string{"HPG", "VCB"}, splitTickers(" hpg, vcb ,"))
	assert.Nil(t, splitTickers(""))
}
