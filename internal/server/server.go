// Package server exposes the dashboard as a JSON API.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/quangtb/stockvn/internal/analyst"
	"github.com/quangtb/stockvn/internal/indicators"
	"github.com/quangtb/stockvn/internal/screener"
	"github.com/quangtb/stockvn/internal/store"
	"github.com/quangtb/stockvn/internal/vnstock"
)

// Quotes serves market data.
type Quotes interface {
	QuoteHistoryAny(ctx context.Context, symbol, start, end string, sources []string) ([]vnstock.Quote, error)
	IndexHistory(ctx context.Context, start, end string) ([]vnstock.Quote, error)
}

// History serves the merged SQLite+sheet price history.
type History interface {
	History(ctx context.Context, ticker, start, end string) ([]store.PriceRecord, error)
}

// Sheet reads worksheet records.
type Sheet interface {
	Records(ctx context.Context, worksheet string) ([]map[string]string, error)
}

// Watchlists manages the flow and fundamental watchlists.
type Watchlists interface {
	List(ctx context.Context, list string) ([]string, error)
	Add(ctx context.Context, list, ticker string) error
	Remove(ctx context.Context, list, ticker string) error
}

// HotScanner runs the market-wide momentum scan.
type HotScanner interface {
	ScanMarket(ctx context.Context, opts screener.ScanOptions) ([]screener.HotStock, error)
}

// FinScanner runs the fundamental screen.
type FinScanner interface {
	Screen(ctx context.Context, tickers []string, crit screener.Criteria) ([]screener.Metrics, error)
}

// Reports builds indicator summaries and AI reports.
type Reports interface {
	ReportFor(ctx context.Context, ticker string) (*analyst.Report, error)
	Summary(ctx context.Context, ticker string) (indicators.Summary, error)
}

// Deps bundles everything the handlers need. Nil fields disable the
// corresponding endpoints with 503.
type Deps struct {
	Quotes     Quotes
	History    History
	Sheet      Sheet
	Watchlists Watchlists
	Hot        HotScanner
	Financial  FinScanner
	Reports    Reports
}

// Server is the dashboard HTTP server.
type Server struct {
	deps Deps
	log  *zap.Logger
	http *http.Server
}

// New builds the server listening on addr.
func New(addr string, deps Deps, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{deps: deps, log: log.Named("server")}
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Router builds the chi route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/tickers", s.handleTickers)
		r.Post("/watchlist/{list}/{ticker}", s.handleWatchlistAdd)
		r.Delete("/watchlist/{list}/{ticker}", s.handleWatchlistRemove)
		r.Get("/quotes/{ticker}", s.handleQuotes)
		r.Get("/indicators/{ticker}", s.handleIndicators)
		r.Get("/flow/intraday", s.handleFlowIntraday)
		r.Get("/flow/sectors", s.handleFlowSectors)
		r.Get("/vnindex", s.handleVNIndex)
		r.Get("/screener/hot", s.handleScreenerHot)
		r.Get("/screener/financial", s.handleScreenerFinancial)
		r.Get("/reports/{ticker}", s.handleReport)
	})
	return r
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", zap.String("addr", s.http.Addr))
		errCh <- s.http.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.log.Info("shut down")
	return nil
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	})
}
