package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quangtb/stockvn/internal/analyst"
	"github.com/quangtb/stockvn/internal/indicators"
	"github.com/quangtb/stockvn/internal/screener"
	"github.com/quangtb/stockvn/internal/store"
	"github.com/quangtb/stockvn/internal/vnstock"
)

type fakeQuotes struct {
	index []vnstock.Quote
	err   error
}

func (f *fakeQuotes) QuoteHistoryAny(ctx context.Context, symbol, start, end string, sources []string) ([]vnstock.Quote, error) {
	return nil, f.err
}

func (f *fakeQuotes) IndexHistory(ctx context.Context, start, end string) ([]vnstock.Quote, error) {
	return f.index, f.err
}

type fakeHistory struct {
	records []store.PriceRecord
	ticker  string
	start   string
	end     string
}

func (f *fakeHistory) History(ctx context.Context, ticker, start, end string) ([]store.PriceRecord, error) {
	f.ticker, f.start, f.end = ticker, start, end
	return f.records, nil
}

type fakeSheet struct {
	records map[string][]map[string]string
}

func (f *fakeSheet) Records(ctx context.Context, worksheet string) ([]map[string]string, error) {
	return f.records[worksheet], nil
}

type fakeWatchlists struct {
	lists map[string][]string
}

func (f *fakeWatchlists) List(ctx context.Context, list string) ([]string, error) {
	return f.lists[list], nil
}

func (f *fakeWatchlists) Add(ctx context.Context, list, ticker string) error {
	if list != "flow" && list != "fundamental" {
		return fmt.Errorf("unknown watchlist %q", list)
	}
	f.lists[list] = append(f.lists[list], ticker)
	return nil
}

func (f *fakeWatchlists) Remove(ctx context.Context, list, ticker string) error {
	for i, t := range f.lists[list] {
		if t == ticker {
			f.lists[list] = append(f.lists[list][:i], f.lists[list][i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%s is not on the %s watchlist", ticker, list)
}

type fakeHot struct {
	stocks []screener.HotStock
	opts   screener.ScanOptions
}

func (f *fakeHot) ScanMarket(ctx context.Context, opts screener.ScanOptions) ([]screener.HotStock, error) {
	f.opts = opts
	return f.stocks, nil
}

type fakeFinancial struct {
	results []screener.Metrics
	tickers []string
	crit    screener.Criteria
}

func (f *fakeFinancial) Screen(ctx context.Context, tickers []string, crit screener.Criteria) ([]screener.Metrics, error) {
	f.tickers, f.crit = tickers, crit
	return f.results, nil
}

type fakeReports struct {
	report  *analyst.Report
	summary indicators.Summary
	err     error
}

func (f *fakeReports) ReportFor(ctx context.Context, ticker string) (*analyst.Report, error) {
	return f.report, f.err
}

func (f *fakeReports) Summary(ctx context.Context, ticker string) (indicators.Summary, error) {
	return f.summary, f.err
}

func doRequest(t *testing.T, deps Deps, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	srv := New(":0", deps, nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, nil)
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestHealth(t *testing.T) {
	rec := doRequest(t, Deps{}, http.MethodGet, "/api/health")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Contains(t, body, "trading_day")
	assert.Contains(t, body, "trading_hours")
}

func TestTickers(t *testing.T) {
	sheet := &fakeSheet{records: map[string][]map[string]string{
		store.SheetTickers: {{"ticker": "hpg"}, {"ticker": "VCB"}, {"ticker": ""}},
	}}
	rec := doRequest(t, Deps{Sheet: sheet}, http.MethodGet, "/api/tickers")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[[]map[string]string](t, rec)
	require.Len(t, body, 2)
	assert.Equal(t, "HPG", body[0]["ticker"])
	assert.Equal(t, "Thép", body[0]["sector"])
	assert.Equal(t, "Ngân hàng", body[1]["sector"])
}

func TestNilDepsReturn503(t *testing.T) {
	for _, target := range []string{
		"/api/tickers",
		"/api/quotes/HPG",
		"/api/indicators/HPG",
		"/api/flow/intraday",
		"/api/flow/sectors",
		"/api/vnindex",
		"/api/screener/hot",
		"/api/screener/financial",
		"/api/reports/HPG",
	} {
		rec := doRequest(t, Deps{}, http.MethodGet, target)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, target)
	}
	rec := doRequest(t, Deps{}, http.MethodPost, "/api/watchlist/flow/HPG")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestWatchlistAddAndRemove(t *testing.T) {
	wl := &fakeWatchlists{lists: map[string][]string{"flow": {"VCB"}}}
	deps := Deps{Watchlists: wl}

	rec := doRequest(t, deps, http.MethodPost, "/api/watchlist/flow/hpg")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"VCB", "HPG"}, wl.lists["flow"])

	rec = doRequest(t, deps, http.MethodDelete, "/api/watchlist/flow/VCB")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"HPG"}, wl.lists["flow"])

	rec = doRequest(t, deps, http.MethodDelete, "/api/watchlist/flow/GONE")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(t, deps, http.MethodPost, "/api/watchlist/bogus/HPG")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestQuotes(t *testing.T) {
	hist := &fakeHistory{records: []store.PriceRecord{
		{Timestamp: "2025-06-09", Ticker: "HPG", Close: 25.5},
		{Timestamp: "2025-06-10", Ticker: "HPG", Close: 26},
	}}
	rec := doRequest(t, Deps{History: hist}, http.MethodGet, "/api/quotes/hpg?start=2025-06-01&end=2025-06-10")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "HPG", hist.ticker)
	assert.Equal(t, "2025-06-01", hist.start)
	body := decode[map[string]any](t, rec)
	assert.Len(t, body["quotes"], 2)
}

func TestQuotesDefaultWindow(t *testing.T) {
	hist := &fakeHistory{}
	rec := doRequest(t, Deps{History: hist}, http.MethodGet, "/api/quotes/HPG")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, hist.start)
	assert.NotEmpty(t, hist.end)
	assert.Less(t, hist.start, hist.end)
}

func TestIndicators(t *testing.T) {
	reports := &fakeReports{summary: indicators.Summary{CurrentPrice: 26, Trend: "uptrend"}}
	rec := doRequest(t, Deps{Reports: reports}, http.MethodGet, "/api/indicators/HPG")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, "uptrend", body["trend"])
}

func TestFlowSectorsLatestDay(t *testing.T) {
	sheet := &fakeSheet{records: map[string][]map[string]string{
		store.SheetFlowSummary: {
			{"date": "2025-06-09", "sector": "Thép"},
			{"date": "2025-06-10", "sector": "Thép"},
			{"date": "2025-06-10", "sector": "Ngân hàng"},
		},
	}}
	rec := doRequest(t, Deps{Sheet: sheet}, http.MethodGet, "/api/flow/sectors")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, "2025-06-10", body["date"])
	assert.Len(t, body["sectors"], 2)
}

func TestVNIndex(t *testing.T) {
	quotes := &fakeQuotes{index: []vnstock.Quote{{Time: "2025-06-10", Close: 1318}}}
	rec := doRequest(t, Deps{Quotes: quotes}, http.MethodGet, "/api/vnindex")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[[]vnstock.Quote](t, rec)
	require.Len(t, body, 1)
	assert.Equal(t, 1318.0, body[0].Close)
}

func TestScreenerHotTopParam(t *testing.T) {
	hot := &fakeHot{stocks: []screener.HotStock{{Ticker: "HPG", Score: 42}}}
	rec := doRequest(t, Deps{Hot: hot}, http.MethodGet, "/api/screener/hot?top=5")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, hot.opts.Top)
	body := decode[[]screener.HotStock](t, rec)
	require.Len(t, body, 1)
}

func TestScreenerFinancial(t *testing.T) {
	fin := &fakeFinancial{results: []screener.Metrics{
		{Ticker: "VCB", Score: 80},
		{Ticker: "HAG", Score: 40},
	}}
	wl := &fakeWatchlists{lists: map[string][]string{"fundamental": {"HAG", "VCB"}}}
	deps := Deps{Financial: fin, Watchlists: wl}

	rec := doRequest(t, deps, http.MethodGet, "/api/screener/financial?min_roe=15&min_score=60")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"HAG", "VCB"}, fin.tickers)
	require.NotNil(t, fin.crit.MinROE)
	assert.Equal(t, 15.0, *fin.crit.MinROE)
	body := decode[[]screener.Metrics](t, rec)
	require.Len(t, body, 1, "min_score trims the results")
	assert.Equal(t, "VCB", body[0].Ticker)
}

func TestReport(t *testing.T) {
	reports := &fakeReports{report: &analyst.Report{Ticker: "HPG", Content: "Báo cáo", Cached: true}}
	rec := doRequest(t, Deps{Reports: reports}, http.MethodGet, "/api/reports/HPG")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[analyst.Report](t, rec)
	assert.Equal(t, "HPG", body.Ticker)
	assert.True(t, body.Cached)
}

func TestReportUpstreamFailure(t *testing.T) {
	reports := &fakeReports{err: errors.New("model down")}
	rec := doRequest(t, Deps{Reports: reports}, http.MethodGet, "/api/reports/HPG")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}
