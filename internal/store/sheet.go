package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// Worksheet names used by the dashboard spreadsheet.
const (
	SheetTickers       = "tickers"
	SheetData          = "data"
	SheetPriceHistory  = "price_history"
	SheetIntradayFlow  = "intraday_flow"
	SheetFlowSummary   = "daily_flow_summary"
	SheetWatchlistFlow = "watchlist_flow"
	SheetWatchlistFund = "watchlist_fundamental"
	SheetIncome        = "income"
	SheetBalance       = "balance"
	SheetRatios        = "ratios"
	SheetReports       = "reports"
	SheetAlerts        = "alerts"
	SheetConfig        = "config"
	SheetVNIndex       = "vnindex"
)

// SheetStore wraps one spreadsheet with get-all-records / clear+rewrite
// / append semantics over named worksheets.
type SheetStore struct {
	svc           *sheets.Service
	spreadsheetID string
	log           *zap.Logger
}

// LoadCredentials returns the service-account JSON, preferring the
// GOOGLE_CREDENTIALS env var (CI) over a credentials.json file (local).
func LoadCredentials() ([]byte, error) {
	if raw := os.Getenv("GOOGLE_CREDENTIALS"); raw != "" {
		var probe map[string]any
		if err := json.Unmarshal([]byte(raw), &probe); err != nil {
			return nil, fmt.Errorf("GOOGLE_CREDENTIALS is not valid JSON: %w", err)
		}
		return []byte(raw), nil
	}
	if data, err := os.ReadFile("credentials.json"); err == nil {
		return data, nil
	}
	return nil, fmt.Errorf("no credentials found: set GOOGLE_CREDENTIALS or add credentials.json")
}

// NewSheetStore authenticates with a service-account key and binds to
// the spreadsheet identified by spreadsheetID.
func NewSheetStore(ctx context.Context, credsJSON []byte, spreadsheetID string, log *zap.Logger) (*SheetStore, error) {
	if spreadsheetID == "" {
		return nil, fmt.Errorf("spreadsheet id is required")
	}
	if log == nil {
		log = zap.NewNop()
	}
	cfg, err := google.JWTConfigFromJSON(credsJSON, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}
	svc, err := sheets.NewService(ctx, option.WithHTTPClient(cfg.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return &SheetStore{svc: svc, spreadsheetID: spreadsheetID, log: log.Named("sheets")}, nil
}

// EnsureWorksheet creates the worksheet when it does not exist yet.
func (s *SheetStore) EnsureWorksheet(ctx context.Context, title string) error {
	meta, err := s.svc.Spreadsheets.Get(s.spreadsheetID).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("get spreadsheet: %w", err)
	}
	for _, sh := range meta.Sheets {
		if sh.Properties != nil && sh.Properties.Title == title {
			return nil
		}
	}
	_, err = s.svc.Spreadsheets.BatchUpdate(s.spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			AddSheet: &sheets.AddSheetRequest{
				Properties: &sheets.SheetProperties{Title: title},
			},
		}},
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("add worksheet %s: %w", title, err)
	}
	s.log.Info("created worksheet", zap.String("title", title))
	return nil
}

// Records reads a whole worksheet and returns header-keyed rows, the
// gspread get_all_records shape.
func (s *SheetStore) Records(ctx context.Context, worksheet string) ([]map[string]string, error) {
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, worksheet).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", worksheet, err)
	}
	if len(resp.Values) < 2 {
		return nil, nil
	}
	header := make([]string, len(resp.Values[0]))
	for i, h := range resp.Values[0] {
		header[i] = strings.TrimSpace(fmt.Sprint(h))
	}
	out := make([]map[string]string, 0, len(resp.Values)-1)
	for _, row := range resp.Values[1:] {
		rec := make(map[string]string, len(header))
		for i, key := range header {
			if key == "" {
				continue
			}
			if i < len(row) {
				rec[key] = strings.TrimSpace(fmt.Sprint(row[i]))
			} else {
				rec[key] = ""
			}
		}
		out = append(out, rec)
	}
	return out, nil
}

// Replace clears the worksheet and writes header + rows.
func (s *SheetStore) Replace(ctx context.Context, worksheet string, header []string, rows [][]string) error {
	if err := s.EnsureWorksheet(ctx, worksheet); err != nil {
		return err
	}
	if _, err := s.svc.Spreadsheets.Values.Clear(s.spreadsheetID, worksheet, &sheets.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear %s: %w", worksheet, err)
	}
	values := make([][]any, 0, len(rows)+1)
	hdr := make([]any, len(header))
	for i, h := range header {
		hdr[i] = h
	}
	values = append(values, hdr)
	for _, row := range rows {
		v := make([]any, len(row))
		for i, c := range row {
			v[i] = c
		}
		values = append(values, v)
	}
	_, err := s.svc.Spreadsheets.Values.Update(s.spreadsheetID, worksheet+"!A1", &sheets.ValueRange{Values: values}).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write %s: %w", worksheet, err)
	}
	return nil
}

// Append appends rows after the current data without touching the
// header.
func (s *SheetStore) Append(ctx context.Context, worksheet string, rows [][]string) error {
	if len(rows) == 0 {
		return nil
	}
	values := make([][]any, 0, len(rows))
	for _, row := range rows {
		v := make([]any, len(row))
		for i, c := range row {
			v[i] = c
		}
		values = append(values, v)
	}
	_, err := s.svc.Spreadsheets.Values.Append(s.spreadsheetID, worksheet+"!A1", &sheets.ValueRange{Values: values}).
		ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append %s: %w", worksheet, err)
	}
	return nil
}

// Clear empties a worksheet, keeping the tab itself.
func (s *SheetStore) Clear(ctx context.Context, worksheet string) error {
	_, err := s.svc.Spreadsheets.Values.Clear(s.spreadsheetID, worksheet, &sheets.ClearValuesRequest{}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("clear %s: %w", worksheet, err)
	}
	return nil
}

// ParsePriceRecord decodes one header-keyed sheet row into a
// PriceRecord. Accepts "time" as an alias for "timestamp".
func ParsePriceRecord(rec map[string]string) (PriceRecord, bool) {
	ts := rec["timestamp"]
	if ts == "" {
		ts = rec["time"]
	}
	ticker := rec["ticker"]
	if ts == "" || ticker == "" {
		return PriceRecord{}, false
	}
	if len(ts) > 10 {
		ts = ts[:10] // drop any time-of-day part
	}
	r := PriceRecord{
		Timestamp: ts,
		Ticker:    ticker,
		Open:      parseFloat(rec["open"]),
		High:      parseFloat(rec["high"]),
		Low:       parseFloat(rec["low"]),
		Close:     parseFloat(rec["close"]),
		Volume:    parseFloat(rec["volume"]),
		Value:     parseFloat(rec["value"]),
	}
	if r.Value == 0 {
		r.Value = r.Close * r.Volume
	}
	return r, true
}

// PriceHeader is the canonical price_history header row.
var PriceHeader = []string{"timestamp", "ticker", "open", "high", "low", "close", "volume", "value"}

// PriceRow encodes a record in PriceHeader order.
func PriceRow(r PriceRecord) []string {
	return []string{
		r.Timestamp,
		r.Ticker,
		formatFloat(r.Open),
		formatFloat(r.High),
		formatFloat(r.Low),
		formatFloat(r.Close),
		formatFloat(r.Volume),
		formatFloat(r.Value),
	}
}

func parseFloat(s string) float64 {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
