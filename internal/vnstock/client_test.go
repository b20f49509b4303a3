package vnstock

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewClient("", nil)
	c.BaseURL = srv.URL
	return c
}

func TestQuoteHistory(t *testing.T) {
	var gotQuery map[string]string
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, quotesEndpoint, r.URL.Path)
		gotQuery = map[string]string{}
		for k := range r.URL.Query() {
			gotQuery[k] = r.URL.Query().Get(k)
		}
		json.NewEncoder(w).Encode(map[string]any{"data": []Quote{
			{Time: "2025-06-09", Open: 25, High: 26, Low: 24.8, Close: 25.5, Volume: 1_000_000},
			{Time: "2025-06-10", Open: 25.5, High: 26.2, Low: 25.1, Close: 26, Volume: 1_200_000},
		}})
	})

	quotes, err := c.QuoteHistory(context.Background(), "HPG", SourceTCBS, "2025-06-01", "2025-06-10", "")
	require.NoError(t, err)
	require.Len(t, quotes, 2)
	assert.Equal(t, "2025-06-10", quotes[1].Time)
	assert.Equal(t, 26.0, quotes[1].Close)
	assert.Equal(t, "HPG", gotQuery["symbol"])
	assert.Equal(t, SourceTCBS, gotQuery["source"])
	assert.Equal(t, "1D", gotQuery["interval"], "empty interval defaults to daily")
}

func TestQuoteHistoryAPIError(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "symbol not found", http.StatusNotFound)
	})
	_, err := c.QuoteHistory(context.Background(), "XXX", SourceTCBS, "2025-06-01", "2025-06-10", "1D")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestQuoteHistoryAnyFallsBack(t *testing.T) {
	var sources []string
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		src := r.URL.Query().Get("source")
		sources = append(sources, src)
		switch src {
		case SourceTCBS:
			http.Error(w, "upstream timeout", http.StatusBadGateway)
		case SourceVCI:
			json.NewEncoder(w).Encode(map[string]any{"data": []Quote{}})
		default:
			json.NewEncoder(w).Encode(map[string]any{"data": []Quote{
				{Time: "2025-06-10", Close: 26, Volume: 500_000},
			}})
		}
	})

	quotes, err := c.QuoteHistoryAny(context.Background(), "HPG", "2025-06-01", "2025-06-10", nil)
	require.NoError(t, err)
	require.Len(t, quotes, 1)
	assert.Equal(t, []string{SourceTCBS, SourceVCI, SourceSSI}, sources)
}

func TestQuoteHistoryAnyAllFail(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	})
	_, err := c.QuoteHistoryAny(context.Background(), "HPG", "2025-06-01", "2025-06-10", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all sources failed for HPG")
}

func TestQuoteHistoryAnyAllEmpty(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"data": []Quote{}})
	})
	quotes, err := c.QuoteHistoryAny(context.Background(), "HPG", "2025-06-01", "2025-06-10", nil)
	require.NoError(t, err)
	assert.Empty(t, quotes)
}

func TestIndexHistory(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, IndexSymbol, r.URL.Query().Get("symbol"))
		assert.Equal(t, SourceVCI, r.URL.Query().Get("source"))
		json.NewEncoder(w).Encode(map[string]any{"data": []Quote{
			{Time: "2025-06-10", Close: 1310.5},
		}})
	})
	quotes, err := c.IndexHistory(context.Background(), "2025-06-01", "2025-06-10")
	require.NoError(t, err)
	require.Len(t, quotes, 1)
	assert.Equal(t, 1310.5, quotes[0].Close)
}

func TestAllSymbols(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, listingEndpoint, r.URL.Path)
		assert.Equal(t, ExchangeHOSE, r.URL.Query().Get("exchange"))
		json.NewEncoder(w).Encode(map[string]any{"data": []Symbol{
			{Ticker: "HPG", Exchange: "HOSE", Name: "Hoa Phat Group"},
			{Ticker: "VCB", Exchange: "HOSE", Name: "Vietcombank"},
		}})
	})
	symbols, err := c.AllSymbols(context.Background(), ExchangeHOSE)
	require.NoError(t, err)
	require.Len(t, symbols, 2)
	assert.Equal(t, "Hoa Phat Group", symbols[0].Name)
}

func TestGetFinancials(t *testing.T) {
	var gotQuery map[string]string
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, financeEndpoint, r.URL.Path)
		gotQuery = map[string]string{}
		for k := range r.URL.Query() {
			gotQuery[k] = r.URL.Query().Get(k)
		}
		json.NewEncoder(w).Encode(Financials{
			Income: []IncomeRow{{Ticker: "VCB", Period: "2024", Revenue: 68e12, EPS: 5000}},
			Ratios: []RatioRow{{Ticker: "VCB", Period: "2024", PE: 14, PB: 2.8, ROE: 21}},
		})
	})

	fin, err := c.GetFinancials(context.Background(), "VCB", "", 0)
	require.NoError(t, err)
	require.Len(t, fin.Income, 1)
	assert.Equal(t, 5000.0, fin.Income[0].EPS)
	assert.Equal(t, "quarter", gotQuery["period"], "empty period defaults to quarterly")
	assert.Equal(t, "3", gotQuery["years"], "zero years defaults to 3")
}

func TestClientRateTier(t *testing.T) {
	anon := NewClient("", nil)
	keyed := NewClient("secret", nil)
	assert.Equal(t, 20, cap(anon.limiter.tokens))
	assert.Equal(t, 60, cap(keyed.limiter.tokens))
}

func TestClientCloseStopsLimiter(t *testing.T) {
	c := NewClient("", nil)
	c.Close()
	c.Close() // second call is a no-op

	select {
	case <-c.limiter.done:
	default:
		t.Fatal("refill goroutine not signalled to stop")
	}
	assert.NoError(t, c.limiter.Wait(context.Background()), "buffered tokens still drain after Close")
}

func TestClientSendsBearerToken(t *testing.T) {
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(map[string]any{"data": []Quote{}})
	}))
	defer srv.Close()
	c := NewClient("secret", nil)
	c.BaseURL = srv.URL
	_, err := c.QuoteHistory(context.Background(), "HPG", SourceTCBS, "2025-06-01", "2025-06-10", "1D")
	require.NoError(t, err)
	assert.Equal(t, "Bearer secret", auth)
}
