package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/quangtb/stockvn/internal/alerts"
	"github.com/quangtb/stockvn/internal/config"
	"github.com/quangtb/stockvn/internal/flow"
	"github.com/quangtb/stockvn/internal/scheduler"
	"github.com/quangtb/stockvn/internal/screener"
	"github.com/quangtb/stockvn/internal/server"
	"github.com/quangtb/stockvn/internal/updater"
	"github.com/quangtb/stockvn/internal/watchlist"
)

func newWatchlistCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watchlist",
		Short: "Manage the flow and fundamental watchlists",
	}
	var list string

	add := &cobra.Command{
		Use:   "add <ticker>",
		Short: "Add a ticker to a watchlist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sheet, err := app.Sheets(ctx)
			if err != nil {
				return err
			}
			if err := watchlist.NewManager(sheet).Add(ctx, list, args[0]); err != nil {
				return err
			}
			fmt.Printf("Added %s to the %s watchlist\n", args[0], list)
			return nil
		},
	}
	remove := &cobra.Command{
		Use:   "remove <ticker>",
		Short: "Remove a ticker from a watchlist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sheet, err := app.Sheets(ctx)
			if err != nil {
				return err
			}
			if err := watchlist.NewManager(sheet).Remove(ctx, list, args[0]); err != nil {
				return err
			}
			fmt.Printf("Removed %s from the %s watchlist\n", args[0], list)
			return nil
		},
	}
	show := &cobra.Command{
		Use:   "list",
		Short: "Show a watchlist",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sheet, err := app.Sheets(ctx)
			if err != nil {
				return err
			}
			tickers, err := watchlist.NewManager(sheet).List(ctx, list)
			if err != nil {
				return err
			}
			fmt.Printf("%s watchlist (%d):\n", list, len(tickers))
			for _, t := range tickers {
				fmt.Println(" ", t)
			}
			return nil
		},
	}
	for _, sub := range []*cobra.Command{add, remove, show} {
		sub.Flags().StringVar(&list, "list", watchlist.ListFlow, "watchlist: flow or fundamental")
		cmd.AddCommand(sub)
	}
	return cmd
}

func newAlertsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "alerts",
		Short: "Check price alerts and notify via Telegram",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sheet, err := app.Sheets(ctx)
			if err != nil {
				return err
			}
			settings := config.NewSettings(sheet, app.log)
			cooldown := time.Duration(settings.GetFloat(ctx, config.KeyAlertCooldown, 1) * float64(time.Hour))
			notifier := alerts.NewTelegram(app.cfg.TelegramBotToken, app.cfg.TelegramChatID)
			checker := alerts.NewChecker(sheet, app.Quotes(), notifier, cooldown, app.log)
			fired, err := checker.Run(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("%d alert(s) fired\n", fired)
			return nil
		},
	}
}

func newServeCmd(app *App) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the dashboard JSON API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if addr == "" {
				addr = app.cfg.ListenAddr
			}
			deps := server.Deps{Quotes: app.Quotes()}
			deps.Hot = screener.New(app.Quotes(), app.log)
			if sheet, err := app.Sheets(ctx); err == nil {
				deps.Sheet = sheet
				deps.Watchlists = watchlist.NewManager(sheet)
				deps.Financial = screener.NewFinancial(sheet, app.log)
			} else {
				app.log.Warn("spreadsheet unavailable, sheet endpoints disabled")
			}
			if hybrid, err := app.Hybrid(ctx); err == nil {
				deps.History = hybrid
			}
			if svc, err := app.ReportService(ctx); err == nil {
				deps.Reports = svc
			} else {
				app.log.Warn("AI provider unavailable, report endpoints disabled")
			}
			defer app.Close()
			return server.New(addr, deps, app.log).Start(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from LISTEN_ADDR)")
	return cmd
}

// newRunCmd starts the in-process scheduler plus the API server.
func newRunCmd(app *App) *cobra.Command {
	var serveAPI bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the scheduler (and optionally the API) until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sheet, err := app.Sheets(ctx)
			if err != nil {
				return err
			}
			hybrid, err := app.Hybrid(ctx)
			if err != nil {
				return err
			}
			defer app.Close()

			u := updater.New(app.Quotes(), sheet, app.log)
			tracker := flow.NewTracker(app.Quotes(), sheet, app.log)
			wl := watchlist.NewManager(sheet)
			settings := config.NewSettings(sheet, app.log)
			cooldown := time.Duration(settings.GetFloat(ctx, config.KeyAlertCooldown, 1) * float64(time.Hour))
			checker := alerts.NewChecker(sheet, app.Quotes(), alerts.NewTelegram(app.cfg.TelegramBotToken, app.cfg.TelegramChatID), cooldown, app.log)

			jobs := scheduler.Jobs{
				FlowUpdate: func(ctx context.Context) error {
					tickers, err := wl.List(ctx, watchlist.ListFlow)
					if err != nil {
						return err
					}
					if len(tickers) == 0 {
						if tickers, err = u.Tickers(ctx); err != nil {
							return err
						}
					}
					_, err = tracker.Track(ctx, tickers)
					return err
				},
				VNIndex: func(ctx context.Context) error {
					_, err := u.UpdateVNIndex(ctx)
					return err
				},
				Alerts: func(ctx context.Context) error {
					_, err := checker.Run(ctx)
					return err
				},
				PriceUpdate: func(ctx context.Context) error {
					tickers, err := u.Tickers(ctx)
					if err != nil {
						return err
					}
					_, err = u.UpdatePrices(ctx, tickers, 7)
					return err
				},
				EndOfDay: func(ctx context.Context) error {
					if err := tracker.Cleanup(ctx); err != nil {
						return err
					}
					_, err := hybrid.Archive(ctx)
					return err
				},
			}
			sched := scheduler.New(jobs, settings, app.log)

			if !serveAPI {
				err := sched.Run(ctx)
				if err == context.Canceled {
					return nil
				}
				return err
			}

			deps := server.Deps{
				Quotes:     app.Quotes(),
				History:    hybrid,
				Sheet:      sheet,
				Watchlists: wl,
				Hot:        screener.New(app.Quotes(), app.log),
				Financial:  screener.NewFinancial(sheet, app.log),
			}
			if svc, err := app.ReportService(ctx); err == nil {
				deps.Reports = svc
			}
			srv := server.New(app.cfg.ListenAddr, deps, app.log)

			errCh := make(chan error, 2)
			go func() { errCh <- sched.Run(ctx) }()
			go func() { errCh <- srv.Start(ctx) }()
			err = <-errCh
			<-errCh
			if err == context.Canceled {
				return nil
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&serveAPI, "serve", true, "also serve the dashboard API")
	return cmd
}
