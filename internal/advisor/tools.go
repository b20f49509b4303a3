package advisor

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/adk/tool"

	"github.com/quangtb/stockvn/internal/store"
)

// HistorySource serves merged daily bars, the hybrid store in
// production.
type HistorySource interface {
	History(ctx context.Context, ticker, start, end string) ([]store.PriceRecord, error)
}

type PriceTrendArgs struct {
	Ticker   string `json:"ticker" jsonschema:"The VN stock ticker symbol (e.g., 'FPT')."`
	BaseDate string `json:"base_date" jsonschema:"The reference date for analysis (YYYY-MM-DD)."`
}

type PriceTrendResult struct {
	Analysis string `json:"analysis"`
}

// PriceTrendTool summarises the recent trend, liquidity and volatility
// of a ticker for the agent. It reports facts only, the model decides.
type PriceTrendTool struct {
	Source HistorySource
}

func (t *PriceTrendTool) Execute(ctx tool.Context, args PriceTrendArgs) (PriceTrendResult, error) {
	analysis, err := t.priceTrend(ctx, args.Ticker, args.BaseDate)
	if err != nil {
		return PriceTrendResult{}, err
	}
	return PriceTrendResult{Analysis: analysis}, nil
}

func (t *PriceTrendTool) priceTrend(ctx context.Context, ticker, baseDateStr string) (string, error) {
	baseDate, err := time.Parse("2006-01-02", baseDateStr)
	if err != nil {
		return "", fmt.Errorf("invalid date format")
	}

	from := baseDate.AddDate(0, 0, -20).Format("2006-01-02")
	records, err := t.Source.History(ctx, ticker, from, baseDateStr)
	if err != nil {
		return "", fmt.Errorf("failed to fetch history: %w", err)
	}
	if len(records) < 5 {
		return "Insufficient data (less than 5 days).", nil
	}

	latest := records[len(records)-1]
	start := records[0]

	var totalValue, totalVolatility float64
	count := 0
	for i := len(records) - 1; i >= len(records)-5 && i >= 0; i-- {
		r := records[i]
		totalValue += r.Close * r.Volume

		base := r.Open
		if base == 0 {
			base = r.Close
		}
		if base > 0 {
			totalVolatility += (r.High - r.Low) / base * 100
		}
		count++
	}
	avgValue := totalValue / float64(count)
	avgVolatility := totalVolatility / float64(count)

	trend := "FLAT"
	changeRate := 0.0
	if start.Close > 0 {
		changeRate = (latest.Close - start.Close) / start.Close * 100
	}
	if changeRate > 5.0 {
		trend = "UPTREND"
	} else if changeRate < -5.0 {
		trend = "DOWNTREND"
	}

	return fmt.Sprintf(
		"Trend: %s (Change: %.2f%% in 20days)\nAvg Trading Value: %.0f VND\nAvg Daily Volatility: %.2f%%\nLatest Close: %.2f",
		trend, changeRate, avgValue, avgVolatility, latest.Close,
	), nil
}
