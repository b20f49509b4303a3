package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/quangtb/stockvn/internal/config"
	"github.com/quangtb/stockvn/internal/flow"
	"github.com/quangtb/stockvn/internal/market"
	"github.com/quangtb/stockvn/internal/updater"
	"github.com/quangtb/stockvn/internal/watchlist"
)

func newPriceCmd(app *App) *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "price",
		Short: "Update daily OHLCV for the tracked tickers",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sheet, err := app.Sheets(ctx)
			if err != nil {
				return err
			}
			u := updater.New(app.Quotes(), sheet, app.log)
			tickers, err := u.Tickers(ctx)
			if err != nil {
				return err
			}
			if len(tickers) == 0 {
				return fmt.Errorf("no tickers on the tickers worksheet")
			}
			n, err := u.UpdatePrices(ctx, tickers, days)
			if err != nil {
				return err
			}
			fmt.Printf("Added %d price rows for %d tickers\n", n, len(tickers))
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 7, "calendar days to backfill")
	return cmd
}

func newFinanceCmd(app *App) *cobra.Command {
	var tickersFlag string
	var period string
	var years int
	cmd := &cobra.Command{
		Use:   "finance",
		Short: "Scrape financial statements into the spreadsheet",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sheet, err := app.Sheets(ctx)
			if err != nil {
				return err
			}
			u := updater.New(app.Quotes(), sheet, app.log)
			tickers := splitTickers(tickersFlag)
			if len(tickers) == 0 {
				wl := watchlist.NewManager(sheet)
				if tickers, err = wl.List(ctx, watchlist.ListFundamental); err != nil {
					return err
				}
			}
			if len(tickers) == 0 {
				return fmt.Errorf("no tickers: pass --tickers or fill the fundamental watchlist")
			}
			if !cmd.Flags().Changed("years") {
				years = config.NewSettings(sheet, app.log).GetInt(ctx, config.KeyHistoricalYears, years)
			}
			if err := u.UpdateFinancials(ctx, tickers, period, years); err != nil {
				return err
			}
			fmt.Printf("Updated financials for %d tickers (%s, %d years)\n", len(tickers), period, years)
			return nil
		},
	}
	cmd.Flags().StringVar(&tickersFlag, "tickers", "", "comma-separated tickers (default: fundamental watchlist)")
	cmd.Flags().StringVar(&period, "period", "year", "statement period: year or quarter")
	cmd.Flags().IntVar(&years, "years", 5, "years of statements")
	return cmd
}

func newFlowCmd(app *App) *cobra.Command {
	var cleanup bool
	var skipHolidayCheck bool
	var topStocks int
	cmd := &cobra.Command{
		Use:   "flow",
		Short: "Capture an intraday money-flow snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			now := time.Now().In(market.Location)
			if !skipHolidayCheck && !market.IsTradingDay(now) {
				fmt.Println("Market closed today, skipping (use --skip-holiday-check to force)")
				return nil
			}
			sheet, err := app.Sheets(ctx)
			if err != nil {
				return err
			}
			tracker := flow.NewTracker(app.Quotes(), sheet, app.log)
			if cleanup {
				if err := tracker.Cleanup(ctx); err != nil {
					return err
				}
				fmt.Println("Intraday flow cleaned up")
				return nil
			}
			wl := watchlist.NewManager(sheet)
			tickers, err := wl.List(ctx, watchlist.ListFlow)
			if err != nil {
				return err
			}
			if len(tickers) == 0 {
				u := updater.New(app.Quotes(), sheet, app.log)
				if tickers, err = u.Tickers(ctx); err != nil {
					return err
				}
			}
			snaps, err := tracker.Track(ctx, tickers)
			if err != nil {
				return err
			}
			fmt.Printf("Tracked %d/%d tickers\n", len(snaps), len(tickers))
			for _, s := range flow.Summarize(snaps) {
				fmt.Printf("  %-14s flow %+.1f, %d stocks, avg change %+.2f%%\n",
					s.Sector, s.TotalFlowBn, s.StockCount, s.AvgPriceChange)
			}
			fmt.Println("Top money flow:")
			for _, s := range flow.TopStocks(snaps, topStocks) {
				fmt.Printf("  %-6s %+.2f tỷ (%+.2f%%)\n", s.Ticker, s.MoneyFlowBn, s.PriceChangePct)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&cleanup, "cleanup", false, "clear old intraday rows instead of tracking")
	cmd.Flags().BoolVar(&skipHolidayCheck, "skip-holiday-check", false, "run even on non-trading days")
	cmd.Flags().IntVar(&topStocks, "top", 5, "stocks to list by money flow")
	return cmd
}

func newVNIndexCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "vnindex",
		Short: "Refresh the VN-Index worksheet",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sheet, err := app.Sheets(ctx)
			if err != nil {
				return err
			}
			n, err := updater.New(app.Quotes(), sheet, app.log).UpdateVNIndex(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("VN-Index: %d bars written\n", n)
			return nil
		},
	}
}

func newArchiveCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "archive",
		Short: "Move old price history from the spreadsheet into SQLite",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			hybrid, err := app.Hybrid(ctx)
			if err != nil {
				return err
			}
			defer app.Close()
			n, err := hybrid.Archive(ctx)
			if err != nil {
				return err
			}
			stats, err := hybrid.Stats(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Archived %d rows. SQLite now holds %d rows across %d tickers (%s .. %s)\n",
				n, stats.TotalRecords, stats.TickerCount, stats.FirstDate, stats.LastDate)
			return nil
		},
	}
}

func newHistoryCmd(app *App) *cobra.Command {
	var start, end string
	cmd := &cobra.Command{
		Use:   "history <ticker>",
		Short: "Print merged price history for a ticker",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			hybrid, err := app.Hybrid(ctx)
			if err != nil {
				return err
			}
			defer app.Close()
			if end == "" {
				end = today()
			}
			if start == "" {
				t, _ := time.Parse("2006-01-02", end)
				start = t.AddDate(0, -3, 0).Format("2006-01-02")
			}
			ticker := strings.ToUpper(args[0])
			records, err := hybrid.History(ctx, ticker, start, end)
			if err != nil {
				return err
			}
			fmt.Printf("%s: %d bars (%s .. %s)\n", ticker, len(records), start, end)
			for _, r := range records {
				fmt.Printf("  %s  O %.2f H %.2f L %.2f C %.2f  V %.0f\n",
					r.Timestamp, r.Open, r.High, r.Low, r.Close, r.Volume)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&start, "start", "", "start date YYYY-MM-DD (default 3 months back)")
	cmd.Flags().StringVar(&end, "end", "", "end date YYYY-MM-DD (default today)")
	return cmd
}

func splitTickers(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var out []string
	for _, t := range strings.Split(s, ",") {
		t = strings.ToUpper(strings.TrimSpace(t))
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}
