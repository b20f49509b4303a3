package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/quangtb/stockvn/internal/advisor"
	"github.com/quangtb/stockvn/internal/backtest"
	"github.com/quangtb/stockvn/internal/config"
	"github.com/quangtb/stockvn/internal/screener"
	"github.com/quangtb/stockvn/internal/watchlist"
)

func newScreenCmd(app *App) *cobra.Command {
	var top int
	var minValue float64
	var financial bool
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "screen",
		Short: "Screen the market for hot stocks, or the watchlist fundamentally",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if financial {
				sheet, err := app.Sheets(ctx)
				if err != nil {
					return err
				}
				tickers, err := watchlist.NewManager(sheet).List(ctx, watchlist.ListFundamental)
				if err != nil {
					return err
				}
				fin := screener.NewFinancial(sheet, app.log)
				results, err := fin.Screen(ctx, tickers, screener.Criteria{})
				if err != nil {
					return err
				}
				if asJSON {
					return json.NewEncoder(os.Stdout).Encode(results)
				}
				fmt.Printf("%-6s %-14s %6s %6s %8s %8s %6s\n", "TICKER", "SECTOR", "ROE", "PE", "REV.GR", "EPS.GR", "SCORE")
				for _, m := range results {
					pe := "n/a"
					if m.PE != nil {
						pe = fmt.Sprintf("%.1f", *m.PE)
					}
					fmt.Printf("%-6s %-14s %5.1f%% %6s %7.1f%% %7.1f%% %6d\n",
						m.Ticker, m.Sector, m.ROE, pe, m.RevenueGrowth, m.EPSGrowth, m.Score)
				}
				return nil
			}

			scan := screener.New(app.Quotes(), app.log)
			hot, err := scan.ScanMarket(ctx, screener.ScanOptions{Top: top, MinAvgValueBn: minValue})
			if err != nil {
				return err
			}
			if asJSON {
				return json.NewEncoder(os.Stdout).Encode(hot)
			}
			fmt.Printf("%-6s %-5s %-14s %8s %8s %8s %6s\n", "TICKER", "EXCH", "SECTOR", "CLOSE", "CHANGE", "VAL(tỷ)", "SCORE")
			for _, h := range hot {
				fmt.Printf("%-6s %-5s %-14s %8.2f %+7.2f%% %8.1f %6.1f\n",
					h.Ticker, h.Exchange, h.Sector, h.Close, h.ChangePct, h.AvgValueBn, h.Score)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&top, "top", 30, "number of results")
	cmd.Flags().Float64Var(&minValue, "min-value", 1, "liquidity floor, tỷ VNĐ per day")
	cmd.Flags().BoolVar(&financial, "financial", false, "fundamental screen of the watchlist instead")
	cmd.Flags().BoolVar(&asJSON, "json", false, "JSON output")
	return cmd
}

func newAnalyzeCmd(app *App) *cobra.Command {
	var technicalOnly bool
	cmd := &cobra.Command{
		Use:   "analyze <ticker>",
		Short: "Full technical analysis with an AI-written report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ticker := strings.ToUpper(args[0])

			svc, err := app.ReportService(ctx)
			if err != nil {
				return err
			}
			if technicalOnly {
				summary, err := svc.Summary(ctx, ticker)
				if err != nil {
					return err
				}
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(summary)
			}
			report, err := svc.ReportFor(ctx, ticker)
			if err != nil {
				return err
			}
			if report.Cached {
				fmt.Printf("(cached report from %s)\n\n", report.GeneratedAt)
			}
			fmt.Println(report.Content)
			return nil
		},
	}
	cmd.Flags().BoolVar(&technicalOnly, "technical", false, "print the indicator summary only, no AI call")
	return cmd
}

func newAdviseCmd(app *App) *cobra.Command {
	var top int
	cmd := &cobra.Command{
		Use:   "advise",
		Short: "Scan the market and have the agent pick BUY candidates",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := app.cfg.RequireAI(); err != nil {
				return err
			}
			hybrid, err := app.Hybrid(ctx)
			if err != nil {
				return err
			}
			defer app.Close()

			scan := screener.New(app.Quotes(), app.log)
			hot, err := scan.ScanMarket(ctx, screener.ScanOptions{Top: top})
			if err != nil {
				return err
			}
			if len(hot) == 0 {
				fmt.Println("No candidates passed the scan")
				return nil
			}

			adv, err := advisor.New(ctx, app.cfg.GeminiAPIKey, hybrid)
			if err != nil {
				return err
			}
			baseDate := today()
			buys := 0
			for _, candidate := range hot {
				eval, err := adv.Evaluate(ctx, candidate, baseDate)
				if err != nil {
					app.log.Warn("evaluation failed")
					fmt.Printf("%-6s ERROR: %v\n", candidate.Ticker, err)
					continue
				}
				if eval.Action == "BUY" {
					buys++
				}
				fmt.Printf("%-6s %-6s conf %.0f%%  %s\n",
					eval.Ticker, eval.Action, eval.Confidence*100, eval.Reasoning)
			}
			fmt.Printf("\n%d BUY out of %d candidates\n", buys, len(hot))
			return nil
		},
	}
	cmd.Flags().IntVar(&top, "top", 10, "candidates to evaluate")
	return cmd
}

func newBacktestCmd(app *App) *cobra.Command {
	var tickersFlag, start, end string
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "backtest",
		Short: "Replay the breakout strategy over historical data",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			tickers := splitTickers(tickersFlag)
			var settings *config.Settings
			if sheet, err := app.Sheets(ctx); err == nil {
				settings = config.NewSettings(sheet, app.log)
				if len(tickers) == 0 {
					if tickers, err = watchlist.NewManager(sheet).List(ctx, watchlist.ListFlow); err != nil {
						return err
					}
				}
			} else {
				if len(tickers) == 0 {
					return err
				}
				settings = config.NewSettings(nil, app.log)
			}
			if len(tickers) == 0 {
				return fmt.Errorf("no tickers: pass --tickers or fill the flow watchlist")
			}
			start, end = backtestWindow(ctx, settings, start, end)

			engine := backtest.New(app.Quotes(), backtest.DefaultParams(), app.log)
			summary, err := engine.Run(ctx, tickers, start, end)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(summary)
			}
			for _, r := range summary.Results {
				if len(r.Trades) == 0 {
					continue
				}
				fmt.Printf("%-6s %2d trades, win %5.1f%%, avg %+.2f%%, total %+.2f%%\n",
					r.Ticker, len(r.Trades), r.WinRate, r.AvgReturnPct, r.TotalPct)
			}
			fmt.Printf("\n=== %s .. %s ===\n", summary.Start, summary.End)
			fmt.Printf("Trades:   %d\n", summary.TotalTrades)
			fmt.Printf("Win rate: %.1f%%\n", summary.WinRate)
			fmt.Printf("Avg:      %+.2f%%\n", summary.AvgReturnPct)
			rate := settings.GetFloat(ctx, config.KeyRiskFreeRate, 0.05)
			fmt.Printf("Risk-free benchmark: %+.2f%% over the window (%.1f%%/yr)\n",
				riskFreePct(summary.Start, summary.End, rate), rate*100)
			if summary.BestTicker != "" {
				fmt.Printf("Best:     %s, Worst: %s\n", summary.BestTicker, summary.WorstTicker)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&tickersFlag, "tickers", "", "comma-separated tickers (default: flow watchlist)")
	cmd.Flags().StringVar(&start, "start", "", "start date YYYY-MM-DD (default: the backtest_start_date setting)")
	cmd.Flags().StringVar(&end, "end", "", "end date YYYY-MM-DD (default today)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "JSON output")
	return cmd
}

// backtestWindow fills missing window bounds: end defaults to today,
// start to the backtest_start_date setting.
func backtestWindow(ctx context.Context, settings *config.Settings, start, end string) (string, string) {
	if end == "" {
		end = today()
	}
	if start == "" {
		start = settings.Get(ctx, config.KeyBacktestStartDate, "")
	}
	if start == "" {
		t, _ := time.Parse("2006-01-02", end)
		start = t.AddDate(-1, 0, 0).Format("2006-01-02")
	}
	return start, end
}

// riskFreePct scales the annual risk-free rate over the window so the
// strategy's total return has a baseline to beat.
func riskFreePct(start, end string, annualRate float64) float64 {
	s, errS := time.Parse("2006-01-02", start)
	e, errE := time.Parse("2006-01-02", end)
	if errS != nil || errE != nil || !e.After(s) {
		return 0
	}
	years := e.Sub(s).Hours() / (24 * 365)
	return annualRate * 100 * years
}
