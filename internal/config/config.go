// Package config loads environment configuration and the runtime
// settings kept in the spreadsheet's config worksheet.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// Config is the process-level configuration from the environment.
type Config struct {
	SpreadsheetID string
	VNStockAPIKey string

	AIProvider   string // gemini (default) or openai
	GeminiAPIKey string
	GeminiModel  string
	OpenAIAPIKey string

	TelegramBotToken string
	TelegramChatID   string

	DBPath     string
	ListenAddr string
	SectorFile string

	TP1Pct float64
	TP2Pct float64
	TP3Pct float64
	SLPct  float64
}

// Load reads .env when present, then the environment.
func Load(log *zap.Logger) *Config {
	if err := godotenv.Load(); err != nil && log != nil {
		log.Debug(".env not found, reading from system environment")
	}

	cfg := &Config{
		SpreadsheetID: os.Getenv("SPREADSHEET_ID"),
		VNStockAPIKey: os.Getenv("VNSTOCK_API_KEY"),

		AIProvider:   envOr("AI_DEFAULT_PROVIDER", "gemini"),
		GeminiAPIKey: os.Getenv("GEMINI_API_KEY"),
		GeminiModel:  envOr("GEMINI_MODEL", "gemini-2.0-flash"),
		OpenAIAPIKey: os.Getenv("OPENAI_API_KEY"),

		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramChatID:   os.Getenv("TELEGRAM_CHAT_ID"),

		DBPath:     envOr("DB_PATH", "data/stockvn.db"),
		ListenAddr: envOr("LISTEN_ADDR", ":8080"),
		SectorFile: os.Getenv("SECTOR_FILE"),

		TP1Pct: envFloat("TP1_PCT", 5),
		TP2Pct: envFloat("TP2_PCT", 10),
		TP3Pct: envFloat("TP3_PCT", 15),
		SLPct:  envFloat("SL_PCT", 6),
	}
	return cfg
}

// RequireSheets errors when the spreadsheet binding is unusable.
func (c *Config) RequireSheets() error {
	if c.SpreadsheetID == "" {
		return fmt.Errorf("SPREADSHEET_ID must be set")
	}
	return nil
}

// RequireAI errors when the selected AI provider has no key.
func (c *Config) RequireAI() error {
	switch c.AIProvider {
	case "gemini":
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY must be set for provider gemini")
		}
	case "openai":
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY must be set for provider openai")
		}
	default:
		return fmt.Errorf("unknown AI provider %q (want gemini or openai)", c.AIProvider)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
