package analyst

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quangtb/stockvn/internal/indicators"
	"github.com/quangtb/stockvn/internal/store"
)

// Report is one generated narrative report.
type Report struct {
	ID          string `json:"id"`
	Ticker      string `json:"ticker"`
	GeneratedAt string `json:"generated_at"` // 2006-01-02 15:04:05
	Provider    string `json:"provider"`
	Content     string `json:"content"`
	Cached      bool   `json:"cached"` // served from the reports sheet
}

// ReportSheet is the spreadsheet surface reports are cached on.
type ReportSheet interface {
	Records(ctx context.Context, worksheet string) ([]map[string]string, error)
	Replace(ctx context.Context, worksheet string, header []string, rows [][]string) error
	Append(ctx context.Context, worksheet string, rows [][]string) error
	EnsureWorksheet(ctx context.Context, title string) error
}

var reportHeader = []string{"id", "ticker", "generated_at", "provider", "content"}

// Analyst generates and caches reports. A report younger than
// refresh is reused instead of burning another model call.
type Analyst struct {
	provider Provider
	sheet    ReportSheet
	refresh  time.Duration
	log      *zap.Logger

	now func() time.Time
}

// New wires the analyst. sheet may be nil to disable caching.
func New(provider Provider, sheet ReportSheet, refresh time.Duration, log *zap.Logger) *Analyst {
	if refresh <= 0 {
		refresh = 24 * time.Hour
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Analyst{provider: provider, sheet: sheet, refresh: refresh, log: log.Named("analyst"), now: time.Now}
}

// Report returns a narrative report for ticker, reusing a fresh cached
// one when available.
func (a *Analyst) Report(ctx context.Context, ticker string, summary indicators.Summary, fund Fundamentals) (*Report, error) {
	if cached := a.cached(ctx, ticker); cached != nil {
		a.log.Info("serving cached report", zap.String("ticker", ticker), zap.String("id", cached.ID))
		return cached, nil
	}

	prompt := BuildPrompt(ticker, summary, fund)
	content, err := a.provider.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("generate report for %s: %w", ticker, err)
	}

	report := &Report{
		ID:          uuid.NewString(),
		Ticker:      ticker,
		GeneratedAt: a.now().Format("2006-01-02 15:04:05"),
		Provider:    a.provider.Name(),
		Content:     content,
	}
	if a.sheet != nil {
		if err := a.persist(ctx, report); err != nil {
			a.log.Warn("could not persist report", zap.String("ticker", ticker), zap.Error(err))
		}
	}
	return report, nil
}

func (a *Analyst) cached(ctx context.Context, ticker string) *Report {
	if a.sheet == nil {
		return nil
	}
	records, err := a.sheet.Records(ctx, store.SheetReports)
	if err != nil {
		a.log.Warn("reports sheet unreadable", zap.Error(err))
		return nil
	}
	var best *Report
	for _, rec := range records {
		if rec["ticker"] != ticker {
			continue
		}
		when, err := time.ParseInLocation("2006-01-02 15:04:05", rec["generated_at"], a.now().Location())
		if err != nil {
			continue
		}
		if a.now().Sub(when) > a.refresh {
			continue
		}
		if best == nil || rec["generated_at"] > best.GeneratedAt {
			best = &Report{
				ID:          rec["id"],
				Ticker:      ticker,
				GeneratedAt: rec["generated_at"],
				Provider:    rec["provider"],
				Content:     rec["content"],
				Cached:      true,
			}
		}
	}
	return best
}

func (a *Analyst) persist(ctx context.Context, r *Report) error {
	if err := a.sheet.EnsureWorksheet(ctx, store.SheetReports); err != nil {
		return err
	}
	row := []string{r.ID, r.Ticker, r.GeneratedAt, r.Provider, r.Content}
	// A fresh worksheet has no header, so the first report carries it
	// in. Without it every later Records read comes back mis-keyed.
	records, err := a.sheet.Records(ctx, store.SheetReports)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return a.sheet.Replace(ctx, store.SheetReports, reportHeader, [][]string{row})
	}
	return a.sheet.Append(ctx, store.SheetReports, [][]string{row})
}
