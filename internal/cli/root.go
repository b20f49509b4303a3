// Package cli builds the stockvn command tree and wires the runtime
// dependencies behind it.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/quangtb/stockvn/internal/analyst"
	"github.com/quangtb/stockvn/internal/config"
	"github.com/quangtb/stockvn/internal/indicators"
	"github.com/quangtb/stockvn/internal/market"
	"github.com/quangtb/stockvn/internal/store"
	"github.com/quangtb/stockvn/internal/vnstock"
)

// App carries the lazily-built runtime dependencies shared by the
// subcommands.
type App struct {
	cfg *config.Config
	log *zap.Logger

	client *vnstock.Client
	sheet  *store.SheetStore
	db     *store.SQLiteStore
	hybrid *store.Hybrid
}

func newLogger(verbose bool) *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	log, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return log
}

// Quotes returns the market-data client.
func (a *App) Quotes() *vnstock.Client {
	if a.client == nil {
		a.client = vnstock.NewClient(a.cfg.VNStockAPIKey, a.log)
	}
	return a.client
}

// Sheets returns the spreadsheet store, authenticating on first use.
func (a *App) Sheets(ctx context.Context) (*store.SheetStore, error) {
	if a.sheet != nil {
		return a.sheet, nil
	}
	if err := a.cfg.RequireSheets(); err != nil {
		return nil, err
	}
	creds, err := store.LoadCredentials()
	if err != nil {
		return nil, err
	}
	sheet, err := store.NewSheetStore(ctx, creds, a.cfg.SpreadsheetID, a.log)
	if err != nil {
		return nil, err
	}
	a.sheet = sheet
	return sheet, nil
}

// DB returns the local SQLite archive, opening it on first use.
func (a *App) DB() (*store.SQLiteStore, error) {
	if a.db != nil {
		return a.db, nil
	}
	db, err := store.OpenSQLite(a.cfg.DBPath, a.log)
	if err != nil {
		return nil, err
	}
	a.db = db
	return db, nil
}

// Hybrid returns the merged sheet+SQLite history store.
func (a *App) Hybrid(ctx context.Context) (*store.Hybrid, error) {
	if a.hybrid != nil {
		return a.hybrid, nil
	}
	sheet, err := a.Sheets(ctx)
	if err != nil {
		return nil, err
	}
	db, err := a.DB()
	if err != nil {
		return nil, err
	}
	retention := config.NewSettings(sheet, a.log).GetInt(ctx, config.KeyRetentionDays, 30)
	a.hybrid = store.NewHybrid(sheet, db, retention, a.log)
	return a.hybrid, nil
}

// Params returns the trading-level percentages from the environment.
func (a *App) Params() indicators.Params {
	return indicators.Params{
		TP1Pct:      a.cfg.TP1Pct,
		TP2Pct:      a.cfg.TP2Pct,
		TP3Pct:      a.cfg.TP3Pct,
		SLPct:       a.cfg.SLPct,
		SLBufferPct: 3,
	}
}

// Provider builds the configured AI provider.
func (a *App) Provider(ctx context.Context) (analyst.Provider, error) {
	if err := a.cfg.RequireAI(); err != nil {
		return nil, err
	}
	switch a.cfg.AIProvider {
	case "openai":
		return analyst.NewOpenAI(a.cfg.OpenAIAPIKey, "")
	default:
		return analyst.NewGemini(ctx, a.cfg.GeminiAPIKey, a.cfg.GeminiModel)
	}
}

// ReportService builds the full analysis pipeline. The spreadsheet is
// optional; without it reports skip fundamentals and caching.
func (a *App) ReportService(ctx context.Context) (*analyst.Service, error) {
	provider, err := a.Provider(ctx)
	if err != nil {
		return nil, err
	}
	var reportSheet analyst.ReportSheet
	var stmtSheet analyst.StatementSheet
	var refresh time.Duration
	if sheet, err := a.Sheets(ctx); err == nil {
		reportSheet = sheet
		stmtSheet = sheet
		refresh = reportRefresh(ctx, config.NewSettings(sheet, a.log))
	}
	an := analyst.New(provider, reportSheet, refresh, a.log)
	return analyst.NewService(an, a.Quotes(), stmtSheet, a.Params(), a.log), nil
}

// Close releases held resources.
func (a *App) Close() {
	if a.db != nil {
		a.db.Close()
	}
	if a.client != nil {
		a.client.Close()
	}
	_ = a.log.Sync()
}

// reportRefresh maps the recommendation_refresh_hours setting to the
// report cache lifetime.
func reportRefresh(ctx context.Context, settings *config.Settings) time.Duration {
	hours := settings.GetFloat(ctx, config.KeyRecommendRefresh, 24)
	return time.Duration(hours * float64(time.Hour))
}

// NewRootCmd builds the stockvn command tree.
func NewRootCmd() *cobra.Command {
	app := &App{}
	var verbose bool

	root := &cobra.Command{
		Use:          "stockvn",
		Short:        "Vietnamese stock market dashboard",
		Long:         "Scrapes VN market data into a spreadsheet-backed datastore,\ncomputes technical indicators and serves a dashboard API with AI\nanalysis reports.",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			app.log = newLogger(verbose)
			app.cfg = config.Load(app.log)
			if app.cfg.SectorFile != "" {
				if err := market.LoadSectorFile(app.cfg.SectorFile); err != nil {
					app.log.Warn("sector file not loaded", zap.Error(err))
				}
			}
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		newPriceCmd(app),
		newFinanceCmd(app),
		newFlowCmd(app),
		newVNIndexCmd(app),
		newArchiveCmd(app),
		newHistoryCmd(app),
		newScreenCmd(app),
		newAnalyzeCmd(app),
		newAdviseCmd(app),
		newBacktestCmd(app),
		newWatchlistCmd(app),
		newAlertsCmd(app),
		newServeCmd(app),
		newRunCmd(app),
	)
	return root
}

// Execute runs the CLI, returning the process exit code.
func Execute() int {
	root := NewRootCmd()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}

// today returns the current date in market time.
func today() string {
	return time.Now().In(market.Location).Format("2006-01-02")
}
