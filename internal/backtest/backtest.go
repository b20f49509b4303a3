// Package backtest replays a breakout strategy over historical quotes.
//
// Entry: close breaks the prior 20-day high on at least 2x the average
// volume. Exit: +10% take profit, -5% stop loss, or a 20-day max hold.
package backtest

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/quangtb/stockvn/internal/vnstock"
)

// Params controls entries and exits.
type Params struct {
	BreakoutDays  int     // lookback for the high, default 20
	VolumeFactor  float64 // entry volume vs average, default 2.0
	TakeProfitPct float64 // default 10
	StopLossPct   float64 // default 5
	MaxHoldDays   int     // default 20
}

// DefaultParams returns the standard breakout configuration.
func DefaultParams() Params {
	return Params{
		BreakoutDays:  20,
		VolumeFactor:  2.0,
		TakeProfitPct: 10,
		StopLossPct:   5,
		MaxHoldDays:   20,
	}
}

// Trade is one completed round trip.
type Trade struct {
	Ticker     string  `json:"ticker"`
	EntryDate  string  `json:"entry_date"`
	EntryPrice float64 `json:"entry_price"`
	ExitDate   string  `json:"exit_date"`
	ExitPrice  float64 `json:"exit_price"`
	ReturnPct  float64 `json:"return_pct"`
	HoldDays   int     `json:"hold_days"`
	ExitReason string  `json:"exit_reason"` // take_profit, stop_loss, max_hold
}

// Result aggregates one ticker's trades.
type Result struct {
	Ticker       string  `json:"ticker"`
	Trades       []Trade `json:"trades"`
	WinCount     int     `json:"win_count"`
	LossCount    int     `json:"loss_count"`
	WinRate      float64 `json:"win_rate"`
	AvgReturnPct float64 `json:"avg_return_pct"`
	TotalPct     float64 `json:"total_pct"` // compounded
}

// Summary aggregates across tickers.
type Summary struct {
	Start        string   `json:"start"`
	End          string   `json:"end"`
	Results      []Result `json:"results"`
	TotalTrades  int      `json:"total_trades"`
	WinRate      float64  `json:"win_rate"`
	AvgReturnPct float64  `json:"avg_return_pct"`
	BestTicker   string   `json:"best_ticker,omitempty"`
	WorstTicker  string   `json:"worst_ticker,omitempty"`
}

// Quotes serves daily history.
type Quotes interface {
	QuoteHistoryAny(ctx context.Context, symbol, start, end string, sources []string) ([]vnstock.Quote, error)
}

// Engine runs the strategy.
type Engine struct {
	quotes Quotes
	params Params
	log    *zap.Logger
}

// New builds an engine with the given parameters.
func New(quotes Quotes, params Params, log *zap.Logger) *Engine {
	if params.BreakoutDays <= 0 {
		params = DefaultParams()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{quotes: quotes, params: params, log: log.Named("backtest")}
}

// Run backtests every ticker over [start, end] and aggregates.
func (e *Engine) Run(ctx context.Context, tickers []string, start, end string) (*Summary, error) {
	results := make([]Result, len(tickers))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, ticker := range tickers {
		i, ticker := i, ticker
		g.Go(func() error {
			// Extra lead so the first bars have a full lookback window.
			startDate, err := time.Parse("2006-01-02", start)
			if err != nil {
				return fmt.Errorf("parse start date: %w", err)
			}
			fetchStart := startDate.AddDate(0, 0, -e.params.BreakoutDays*2).Format("2006-01-02")
			quotes, err := e.quotes.QuoteHistoryAny(gctx, ticker, fetchStart, end, nil)
			if err != nil {
				e.log.Warn("fetch failed", zap.String("ticker", ticker), zap.Error(err))
				results[i] = Result{Ticker: ticker}
				return nil
			}
			results[i] = e.Simulate(ticker, quotes, start)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	summary := &Summary{Start: start, End: end, Results: results}
	var totalReturn float64
	wins := 0
	bestTotal, worstTotal := math.Inf(-1), math.Inf(1)
	for _, r := range results {
		summary.TotalTrades += len(r.Trades)
		wins += r.WinCount
		for _, t := range r.Trades {
			totalReturn += t.ReturnPct
		}
		if len(r.Trades) > 0 {
			if r.TotalPct > bestTotal {
				bestTotal = r.TotalPct
				summary.BestTicker = r.Ticker
			}
			if r.TotalPct < worstTotal {
				worstTotal = r.TotalPct
				summary.WorstTicker = r.Ticker
			}
		}
	}
	if summary.TotalTrades > 0 {
		summary.WinRate = round2(float64(wins) / float64(summary.TotalTrades) * 100)
		summary.AvgReturnPct = round2(totalReturn / float64(summary.TotalTrades))
	}
	return summary, nil
}

// Simulate walks one ticker's quotes and records trades. Bars before
// start only seed the lookback window.
func (e *Engine) Simulate(ticker string, quotes []vnstock.Quote, start string) Result {
	res := Result{Ticker: ticker}
	p := e.params
	if len(quotes) <= p.BreakoutDays {
		return res
	}

	inPosition := false
	var entryPrice float64
	var entryIdx int
	var entryDate string

	for i := p.BreakoutDays; i < len(quotes); i++ {
		bar := quotes[i]
		if inPosition {
			holdDays := i - entryIdx
			reason := ""
			exitPrice := bar.Close
			switch {
			case bar.High >= entryPrice*(1+p.TakeProfitPct/100):
				reason = "take_profit"
				exitPrice = entryPrice * (1 + p.TakeProfitPct/100)
			case bar.Low <= entryPrice*(1-p.StopLossPct/100):
				reason = "stop_loss"
				exitPrice = entryPrice * (1 - p.StopLossPct/100)
			case holdDays >= p.MaxHoldDays:
				reason = "max_hold"
			}
			if reason == "" {
				continue
			}
			change := (exitPrice - entryPrice) / entryPrice * 100
			res.Trades = append(res.Trades, Trade{
				Ticker:     ticker,
				EntryDate:  entryDate,
				EntryPrice: entryPrice,
				ExitDate:   bar.Time,
				ExitPrice:  round2(exitPrice),
				ReturnPct:  round2(change),
				HoldDays:   holdDays,
				ExitReason: reason,
			})
			inPosition = false
			continue
		}

		if bar.Time < start {
			continue
		}

		window := quotes[i-p.BreakoutDays : i]
		high := window[0].High
		var volSum float64
		for _, w := range window {
			if w.High > high {
				high = w.High
			}
			volSum += w.Volume
		}
		avgVol := volSum / float64(len(window))
		if bar.Close > high && avgVol > 0 && bar.Volume >= avgVol*p.VolumeFactor {
			inPosition = true
			entryPrice = bar.Close
			entryIdx = i
			entryDate = bar.Time
		}
	}

	compounded := 1.0
	var sum float64
	for _, t := range res.Trades {
		if t.ReturnPct > 0 {
			res.WinCount++
		} else {
			res.LossCount++
		}
		sum += t.ReturnPct
		compounded *= 1 + t.ReturnPct/100
	}
	if n := len(res.Trades); n > 0 {
		res.WinRate = round2(float64(res.WinCount) / float64(n) * 100)
		res.AvgReturnPct = round2(sum / float64(n))
		res.TotalPct = round2((compounded - 1) * 100)
	}
	sort.Slice(res.Trades, func(a, b int) bool { return res.Trades[a].EntryDate < res.Trades[b].EntryDate })
	return res
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
