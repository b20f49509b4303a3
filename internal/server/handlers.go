package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/quangtb/stockvn/internal/market"
	"github.com/quangtb/stockvn/internal/screener"
	"github.com/quangtb/stockvn/internal/store"
)

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

func tickerParam(r *http.Request) string {
	return strings.ToUpper(strings.TrimSpace(chi.URLParam(r, "ticker")))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	now := time.Now().In(market.Location)
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"time":          now.Format(time.RFC3339),
		"trading_day":   market.IsTradingDay(now),
		"trading_hours": market.IsTradingHours(now),
	})
}

func (s *Server) handleTickers(w http.ResponseWriter, r *http.Request) {
	if s.deps.Sheet == nil {
		s.writeError(w, http.StatusServiceUnavailable, "spreadsheet not configured")
		return
	}
	records, err := s.deps.Sheet.Records(r.Context(), store.SheetTickers)
	if err != nil {
		s.log.Error("read tickers", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to read tickers")
		return
	}
	type ticker struct {
		Ticker string `json:"ticker"`
		Sector string `json:"sector"`
	}
	out := make([]ticker, 0, len(records))
	for _, rec := range records {
		t := strings.ToUpper(strings.TrimSpace(rec["ticker"]))
		if t == "" {
			continue
		}
		out = append(out, ticker{Ticker: t, Sector: market.Sector(t)})
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleWatchlistAdd(w http.ResponseWriter, r *http.Request) {
	if s.deps.Watchlists == nil {
		s.writeError(w, http.StatusServiceUnavailable, "watchlists not configured")
		return
	}
	list := chi.URLParam(r, "list")
	ticker := tickerParam(r)
	if err := s.deps.Watchlists.Add(r.Context(), list, ticker); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"list": list, "ticker": ticker, "status": "added"})
}

func (s *Server) handleWatchlistRemove(w http.ResponseWriter, r *http.Request) {
	if s.deps.Watchlists == nil {
		s.writeError(w, http.StatusServiceUnavailable, "watchlists not configured")
		return
	}
	list := chi.URLParam(r, "list")
	ticker := tickerParam(r)
	if err := s.deps.Watchlists.Remove(r.Context(), list, ticker); err != nil {
		s.writeError(w, http.StatusNotFound, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"list": list, "ticker": ticker, "status": "removed"})
}

// handleQuotes serves the merged price history. Defaults to the last
// 90 days when start/end are omitted.
func (s *Server) handleQuotes(w http.ResponseWriter, r *http.Request) {
	if s.deps.History == nil {
		s.writeError(w, http.StatusServiceUnavailable, "history not configured")
		return
	}
	ticker := tickerParam(r)
	now := time.Now().In(market.Location)
	start := r.URL.Query().Get("start")
	end := r.URL.Query().Get("end")
	if start == "" {
		start = now.AddDate(0, 0, -90).Format("2006-01-02")
	}
	if end == "" {
		end = now.Format("2006-01-02")
	}
	records, err := s.deps.History.History(r.Context(), ticker, start, end)
	if err != nil {
		s.log.Error("history", zap.String("ticker", ticker), zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"ticker": ticker,
		"start":  start,
		"end":    end,
		"quotes": records,
	})
}

func (s *Server) handleIndicators(w http.ResponseWriter, r *http.Request) {
	if s.deps.Reports == nil {
		s.writeError(w, http.StatusServiceUnavailable, "analysis not configured")
		return
	}
	ticker := tickerParam(r)
	summary, err := s.deps.Reports.Summary(r.Context(), ticker)
	if err != nil {
		s.log.Error("indicators", zap.String("ticker", ticker), zap.Error(err))
		s.writeError(w, http.StatusBadGateway, "failed to analyze "+ticker)
		return
	}
	s.writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleFlowIntraday(w http.ResponseWriter, r *http.Request) {
	if s.deps.Sheet == nil {
		s.writeError(w, http.StatusServiceUnavailable, "spreadsheet not configured")
		return
	}
	records, err := s.deps.Sheet.Records(r.Context(), store.SheetIntradayFlow)
	if err != nil {
		s.log.Error("read intraday flow", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to read intraday flow")
		return
	}
	s.writeJSON(w, http.StatusOK, records)
}

// handleFlowSectors returns the latest day's sector summary rows.
func (s *Server) handleFlowSectors(w http.ResponseWriter, r *http.Request) {
	if s.deps.Sheet == nil {
		s.writeError(w, http.StatusServiceUnavailable, "spreadsheet not configured")
		return
	}
	records, err := s.deps.Sheet.Records(r.Context(), store.SheetFlowSummary)
	if err != nil {
		s.log.Error("read flow summary", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to read flow summary")
		return
	}
	latest := ""
	for _, rec := range records {
		if d := rec["date"]; d > latest {
			latest = d
		}
	}
	out := make([]map[string]string, 0, len(records))
	for _, rec := range records {
		if rec["date"] == latest {
			out = append(out, rec)
		}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"date": latest, "sectors": out})
}

func (s *Server) handleVNIndex(w http.ResponseWriter, r *http.Request) {
	if s.deps.Quotes == nil {
		s.writeError(w, http.StatusServiceUnavailable, "market data not configured")
		return
	}
	now := time.Now().In(market.Location)
	quotes, err := s.deps.Quotes.IndexHistory(r.Context(),
		now.AddDate(0, -6, 0).Format("2006-01-02"), now.Format("2006-01-02"))
	if err != nil {
		s.log.Error("vnindex", zap.Error(err))
		s.writeError(w, http.StatusBadGateway, "failed to fetch VN-Index")
		return
	}
	s.writeJSON(w, http.StatusOK, quotes)
}

func (s *Server) handleScreenerHot(w http.ResponseWriter, r *http.Request) {
	if s.deps.Hot == nil {
		s.writeError(w, http.StatusServiceUnavailable, "screener not configured")
		return
	}
	opts := screener.ScanOptions{}
	if v, err := strconv.Atoi(r.URL.Query().Get("top")); err == nil && v > 0 {
		opts.Top = v
	}
	hot, err := s.deps.Hot.ScanMarket(r.Context(), opts)
	if err != nil {
		s.log.Error("hot scan", zap.Error(err))
		s.writeError(w, http.StatusBadGateway, "market scan failed")
		return
	}
	s.writeJSON(w, http.StatusOK, hot)
}

// handleScreenerFinancial screens the fundamental watchlist. Filters
// come from query params, e.g. ?min_roe=15&max_pe=20&min_score=60.
func (s *Server) handleScreenerFinancial(w http.ResponseWriter, r *http.Request) {
	if s.deps.Financial == nil || s.deps.Watchlists == nil {
		s.writeError(w, http.StatusServiceUnavailable, "screener not configured")
		return
	}
	tickers, err := s.deps.Watchlists.List(r.Context(), "fundamental")
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	crit := screener.Criteria{}
	q := r.URL.Query()
	if v, err := strconv.ParseFloat(q.Get("min_roe"), 64); err == nil {
		crit.MinROE = &v
	}
	if v, err := strconv.ParseFloat(q.Get("max_pe"), 64); err == nil {
		crit.MaxPE = &v
	}
	results, err := s.deps.Financial.Screen(r.Context(), tickers, crit)
	if err != nil {
		s.log.Error("financial screen", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "financial screen failed")
		return
	}
	if v, err := strconv.Atoi(q.Get("min_score")); err == nil {
		kept := results[:0]
		for _, m := range results {
			if m.Score >= v {
				kept = append(kept, m)
			}
		}
		results = kept
	}
	s.writeJSON(w, http.StatusOK, results)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	if s.deps.Reports == nil {
		s.writeError(w, http.StatusServiceUnavailable, "analysis not configured")
		return
	}
	ticker := tickerParam(r)
	report, err := s.deps.Reports.ReportFor(r.Context(), ticker)
	if err != nil {
		s.log.Error("report", zap.String("ticker", ticker), zap.Error(err))
		s.writeError(w, http.StatusBadGateway, "failed to build report for "+ticker)
		return
	}
	s.writeJSON(w, http.StatusOK, report)
}
