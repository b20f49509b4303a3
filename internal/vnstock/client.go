// Package vnstock is the HTTP client for the vnstock market-data
// gateway covering the TCBS, VCI and SSI sources.
package vnstock

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultBaseURL is the public gateway endpoint.
	DefaultBaseURL = "https://api.vnstocks.com/v1"

	quotesEndpoint  = "/quote/history"
	listingEndpoint = "/listing/symbols"
	financeEndpoint = "/finance/statements"
)

// DefaultFallback is the source order tried by QuoteHistoryAny.
var DefaultFallback = []string{SourceTCBS, SourceVCI, SourceSSI}

// Client talks to the market-data gateway. An API key raises the rate
// limit from 20 to 60 requests per minute.
type Client struct {
	BaseURL string
	APIKey  string

	httpClient *http.Client
	limiter    *rateLimiter
	log        *zap.Logger
}

// NewClient builds a client. apiKey may be empty (anonymous tier).
func NewClient(apiKey string, log *zap.Logger) *Client {
	perMinute := 20
	if apiKey != "" {
		perMinute = 60
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		BaseURL:    DefaultBaseURL,
		APIKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    newRateLimiter(perMinute),
		log:        log.Named("vnstock"),
	}
}

// Close stops the rate limiter's refill goroutine. The client must not
// be used afterwards.
func (c *Client) Close() {
	c.limiter.stop()
}

func (c *Client) get(ctx context.Context, endpoint string, params url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	u := fmt.Sprintf("%s%s?%s", c.BaseURL, endpoint, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("api error: %d %s", resp.StatusCode, string(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// QuoteHistory fetches daily OHLCV bars for symbol from one source.
// start and end are YYYY-MM-DD, interval is 1D for daily bars.
func (c *Client) QuoteHistory(ctx context.Context, symbol, source, start, end, interval string) ([]Quote, error) {
	if interval == "" {
		interval = "1D"
	}
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("source", source)
	params.Set("start", start)
	params.Set("end", end)
	params.Set("interval", interval)

	var result struct {
		Data []Quote `json:"data"`
	}
	if err := c.get(ctx, quotesEndpoint, params, &result); err != nil {
		return nil, fmt.Errorf("quote history %s/%s: %w", symbol, source, err)
	}
	return result.Data, nil
}

// QuoteHistoryAny tries the fallback sources in order and returns the
// first non-empty result. Returns the last error when every source
// fails or is empty.
func (c *Client) QuoteHistoryAny(ctx context.Context, symbol, start, end string, sources []string) ([]Quote, error) {
	if len(sources) == 0 {
		sources = DefaultFallback
	}
	var lastErr error
	for _, src := range sources {
		quotes, err := c.QuoteHistory(ctx, symbol, src, start, end, "1D")
		if err != nil {
			c.log.Warn("source failed", zap.String("symbol", symbol), zap.String("source", src), zap.Error(err))
			lastErr = err
			continue
		}
		if len(quotes) > 0 {
			return quotes, nil
		}
	}
	if lastErr != nil {
		return nil, fmt.Errorf("all sources failed for %s: %w", symbol, lastErr)
	}
	return nil, nil
}

// IndexHistory fetches VN-Index bars (VCI source).
func (c *Client) IndexHistory(ctx context.Context, start, end string) ([]Quote, error) {
	return c.QuoteHistory(ctx, IndexSymbol, SourceVCI, start, end, "1D")
}

// AllSymbols lists every ticker on an exchange.
func (c *Client) AllSymbols(ctx context.Context, exchange string) ([]Symbol, error) {
	params := url.Values{}
	params.Set("exchange", exchange)

	var result struct {
		Data []Symbol `json:"data"`
	}
	if err := c.get(ctx, listingEndpoint, params, &result); err != nil {
		return nil, fmt.Errorf("listing %s: %w", exchange, err)
	}
	return result.Data, nil
}

// GetFinancials fetches income, balance and ratio tables for a symbol.
// period is quarter or annual; years limits history depth (1-5).
func (c *Client) GetFinancials(ctx context.Context, symbol, period string, years int) (*Financials, error) {
	if period == "" {
		period = "quarter"
	}
	if years <= 0 {
		years = 3
	}
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("source", SourceVCI)
	params.Set("period", period)
	params.Set("years", fmt.Sprintf("%d", years))

	var result Financials
	if err := c.get(ctx, financeEndpoint, params, &result); err != nil {
		return nil, fmt.Errorf("financials %s: %w", symbol, err)
	}
	return &result, nil
}
