package alerts

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quangtb/stockvn/internal/market"
	"github.com/quangtb/stockvn/internal/vnstock"
)

type fakeAlertSheet struct {
	records  []map[string]string
	replaced [][]string
}

func (f *fakeAlertSheet) Records(ctx context.Context, worksheet string) ([]map[string]string, error) {
	return f.records, nil
}

func (f *fakeAlertSheet) Replace(ctx context.Context, worksheet string, header []string, rows [][]string) error {
	f.replaced = rows
	return nil
}

type fakeAlertQuotes struct {
	prices map[string]float64
}

func (f *fakeAlertQuotes) QuoteHistoryAny(ctx context.Context, symbol, start, end string, sources []string) ([]vnstock.Quote, error) {
	p, ok := f.prices[symbol]
	if !ok {
		return nil, errors.New("no data")
	}
	return []vnstock.Quote{{Time: end, Close: p}}, nil
}

type fakeNotifier struct {
	sent []string
	err  error
}

func (f *fakeNotifier) Send(ctx context.Context, message string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, message)
	return nil
}

func ruleRow(ticker, condition, threshold, active, lastSent string) map[string]string {
	return map[string]string{
		"ticker": ticker, "condition": condition, "threshold": threshold,
		"active": active, "last_sent": lastSent,
	}
}

func newTestChecker(sheet *fakeAlertSheet, quotes *fakeAlertQuotes, notifier *fakeNotifier) *Checker {
	c := NewChecker(sheet, quotes, notifier, time.Hour, nil)
	c.now = func() time.Time {
		return time.Date(2025, 6, 10, 10, 0, 0, 0, market.Location)
	}
	return c
}

func TestCheckerFiresAboveAndBelow(t *testing.T) {
	sheet := &fakeAlertSheet{records: []map[string]string{
		ruleRow("HPG", "above", "26", "true", ""),
		ruleRow("VCB", "below", "90", "TRUE", ""),
		ruleRow("FPT", "above", "200", "true", ""),
	}}
	quotes := &fakeAlertQuotes{prices: map[string]float64{"HPG": 26.5, "VCB": 88, "FPT": 150}}
	notifier := &fakeNotifier{}
	c := newTestChecker(sheet, quotes, notifier)

	fired, err := c.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, fired)
	require.Len(t, notifier.sent, 2)
	assert.Contains(t, notifier.sent[0], "HPG")
	assert.Contains(t, notifier.sent[0], "vượt lên trên")
	assert.Contains(t, notifier.sent[1], "VCB")
	assert.Contains(t, notifier.sent[1], "giảm xuống dưới")

	require.Len(t, sheet.replaced, 3)
	assert.Equal(t, "2025-06-10 10:00:00", sheet.replaced[0][4], "last_sent written back")
	assert.Empty(t, sheet.replaced[2][4], "untriggered rule stays clean")
}

func TestCheckerSkipsInactiveAndCooldown(t *testing.T) {
	sheet := &fakeAlertSheet{records: []map[string]string{
		ruleRow("HPG", "above", "26", "false", ""),
		ruleRow("VCB", "below", "90", "true", "2025-06-10 09:30:00"),
		ruleRow("", "above", "10", "true", ""),
		ruleRow("FPT", "above", "0", "true", ""),
	}}
	quotes := &fakeAlertQuotes{prices: map[string]float64{"HPG": 30, "VCB": 80, "FPT": 100}}
	notifier := &fakeNotifier{}
	c := newTestChecker(sheet, quotes, notifier)

	fired, err := c.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, fired)
	assert.Empty(t, notifier.sent)
	assert.Nil(t, sheet.replaced, "no write back when nothing changed")
}

func TestCheckerFiresAfterCooldownExpires(t *testing.T) {
	sheet := &fakeAlertSheet{records: []map[string]string{
		ruleRow("VCB", "below", "90", "true", "2025-06-10 08:30:00"),
	}}
	quotes := &fakeAlertQuotes{prices: map[string]float64{"VCB": 85}}
	notifier := &fakeNotifier{}
	c := newTestChecker(sheet, quotes, notifier)

	fired, err := c.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, fired)
}

func TestCheckerSkipsUnpricedTicker(t *testing.T) {
	sheet := &fakeAlertSheet{records: []map[string]string{
		ruleRow("ZZZ", "above", "10", "true", ""),
	}}
	notifier := &fakeNotifier{}
	c := newTestChecker(sheet, &fakeAlertQuotes{}, notifier)

	fired, err := c.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, fired)
}

func TestCheckerNotifyFailureKeepsLastSent(t *testing.T) {
	sheet := &fakeAlertSheet{records: []map[string]string{
		ruleRow("HPG", "above", "26", "true", ""),
	}}
	quotes := &fakeAlertQuotes{prices: map[string]float64{"HPG": 30}}
	notifier := &fakeNotifier{err: errors.New("telegram down")}
	c := newTestChecker(sheet, quotes, notifier)

	fired, err := c.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, fired)
	assert.Nil(t, sheet.replaced)
}

func TestTelegramSend(t *testing.T) {
	var gotPath string
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	tg := NewTelegram("token123", "chat456")
	tg.baseURL = srv.URL
	require.NoError(t, tg.Send(context.Background(), "<b>HPG</b> test"))
	assert.Equal(t, "/bottoken123/sendMessage", gotPath)
	assert.Equal(t, "chat456", gotBody["chat_id"])
	assert.Equal(t, "HTML", gotBody["parse_mode"])
	assert.Equal(t, "<b>HPG</b> test", gotBody["text"])
}

func TestTelegramSendErrors(t *testing.T) {
	tg := NewTelegram("", "")
	assert.Error(t, tg.Send(context.Background(), "x"))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"ok":false}`, http.StatusForbidden)
	}))
	defer srv.Close()
	tg = NewTelegram("t", "c")
	tg.baseURL = srv.URL
	err := tg.Send(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}
