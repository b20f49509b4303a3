// Package alerts checks price alert rules from the alerts worksheet
// and notifies through a Telegram bot, honouring a cooldown window.
package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/quangtb/stockvn/internal/market"
	"github.com/quangtb/stockvn/internal/store"
	"github.com/quangtb/stockvn/internal/vnstock"
)

const telegramAPI = "https://api.telegram.org"

// Rule is one price alert from the alerts worksheet.
type Rule struct {
	Ticker    string
	Condition string // above or below
	Threshold float64
	Active    bool
	LastSent  string // 2006-01-02 15:04:05, empty when never fired
}

// Sheet is the spreadsheet surface the checker uses.
type Sheet interface {
	Records(ctx context.Context, worksheet string) ([]map[string]string, error)
	Replace(ctx context.Context, worksheet string, header []string, rows [][]string) error
}

// Quotes serves the latest price.
type Quotes interface {
	QuoteHistoryAny(ctx context.Context, symbol, start, end string, sources []string) ([]vnstock.Quote, error)
}

// Notifier delivers one alert message.
type Notifier interface {
	Send(ctx context.Context, message string) error
}

// Telegram sends messages through the bot API.
type Telegram struct {
	BotToken string
	ChatID   string

	baseURL    string
	httpClient *http.Client
}

// NewTelegram builds the notifier. An empty token or chat id disables
// delivery with an error on Send.
func NewTelegram(botToken, chatID string) *Telegram {
	return &Telegram{
		BotToken:   botToken,
		ChatID:     chatID,
		baseURL:    telegramAPI,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Send posts one HTML-formatted message.
func (t *Telegram) Send(ctx context.Context, message string) error {
	if t.BotToken == "" || t.ChatID == "" {
		return fmt.Errorf("telegram credentials not configured")
	}
	payload, err := json.Marshal(map[string]string{
		"chat_id":    t.ChatID,
		"text":       message,
		"parse_mode": "HTML",
	})
	if err != nil {
		return err
	}
	u := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.BotToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("telegram request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("telegram error: %d %s", resp.StatusCode, string(body))
	}
	return nil
}

var alertHeader = []string{"ticker", "condition", "threshold", "active", "last_sent"}

// Checker evaluates the rules against the latest prices.
type Checker struct {
	sheet    Sheet
	quotes   Quotes
	notifier Notifier
	cooldown time.Duration
	log      *zap.Logger

	now func() time.Time
}

// NewChecker wires the checker. cooldown suppresses repeat alerts for
// the same rule.
func NewChecker(sheet Sheet, quotes Quotes, notifier Notifier, cooldown time.Duration, log *zap.Logger) *Checker {
	if cooldown <= 0 {
		cooldown = time.Hour
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Checker{sheet: sheet, quotes: quotes, notifier: notifier, cooldown: cooldown, log: log.Named("alerts"), now: time.Now}
}

// Run reads the rules, checks prices and sends notifications. Returns
// the number of alerts fired.
func (c *Checker) Run(ctx context.Context) (int, error) {
	records, err := c.sheet.Records(ctx, store.SheetAlerts)
	if err != nil {
		return 0, fmt.Errorf("read alerts sheet: %w", err)
	}
	rules := make([]Rule, 0, len(records))
	for _, rec := range records {
		threshold, _ := strconv.ParseFloat(rec["threshold"], 64)
		rules = append(rules, Rule{
			Ticker:    rec["ticker"],
			Condition: strings.ToLower(rec["condition"]),
			Threshold: threshold,
			Active:    strings.EqualFold(rec["active"], "true") || rec["active"] == "1",
			LastSent:  rec["last_sent"],
		})
	}

	now := c.now().In(market.Location)
	today := now.Format("2006-01-02")
	fired := 0
	changed := false

	for i := range rules {
		r := &rules[i]
		if !r.Active || r.Ticker == "" || r.Threshold <= 0 {
			continue
		}
		if r.LastSent != "" {
			if last, err := time.ParseInLocation("2006-01-02 15:04:05", r.LastSent, market.Location); err == nil {
				if now.Sub(last) < c.cooldown {
					continue
				}
			}
		}

		quotes, err := c.quotes.QuoteHistoryAny(ctx, r.Ticker,
			now.AddDate(0, 0, -3).Format("2006-01-02"), today, nil)
		if err != nil || len(quotes) == 0 {
			c.log.Warn("no price for alert", zap.String("ticker", r.Ticker), zap.Error(err))
			continue
		}
		price := quotes[len(quotes)-1].Close

		triggered := (r.Condition == "above" && price >= r.Threshold) ||
			(r.Condition == "below" && price <= r.Threshold)
		if !triggered {
			continue
		}

		direction := "vượt lên trên"
		if r.Condition == "below" {
			direction = "giảm xuống dưới"
		}
		msg := fmt.Sprintf("<b>%s</b> %s ngưỡng %.2f (giá hiện tại: %.2f)",
			r.Ticker, direction, r.Threshold, price)
		if err := c.notifier.Send(ctx, msg); err != nil {
			c.log.Warn("notify failed", zap.String("ticker", r.Ticker), zap.Error(err))
			continue
		}
		r.LastSent = now.Format("2006-01-02 15:04:05")
		fired++
		changed = true
		c.log.Info("alert fired", zap.String("ticker", r.Ticker), zap.Float64("price", price))
	}

	if changed {
		rows := make([][]string, 0, len(rules))
		for _, r := range rules {
			rows = append(rows, []string{
				r.Ticker, r.Condition,
				strconv.FormatFloat(r.Threshold, 'f', -1, 64),
				strconv.FormatBool(r.Active), r.LastSent,
			})
		}
		if err := c.sheet.Replace(ctx, store.SheetAlerts, alertHeader, rows); err != nil {
			return fired, fmt.Errorf("write back alerts: %w", err)
		}
	}
	return fired, nil
}
