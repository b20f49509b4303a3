package config

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/quangtb/stockvn/internal/store"
)

// settingsTTL is how long a sheet read stays cached.
const settingsTTL = 5 * time.Minute

// Runtime setting keys stored in the config worksheet.
const (
	KeyUpdateInterval    = "update_interval_minutes"
	KeyAlertCooldown     = "alert_cooldown_hours"
	KeyRecommendRefresh  = "recommendation_refresh_hours"
	KeyBacktestStartDate = "backtest_start_date"
	KeyRiskFreeRate      = "risk_free_rate"
	KeyRetentionDays     = "data_retention_days"
	KeyHistoricalYears   = "historical_years"
)

var settingDefaults = map[string]string{
	KeyUpdateInterval:    "10",
	KeyAlertCooldown:     "1",
	KeyRecommendRefresh:  "24",
	KeyBacktestStartDate: "2021-01-01",
	KeyRiskFreeRate:      "0.05",
	KeyRetentionDays:     "30",
	KeyHistoricalYears:   "5",
}

var settingDescriptions = map[string]string{
	KeyUpdateInterval:    "Tần suất cập nhật giá (phút)",
	KeyAlertCooldown:     "Thời gian chờ giữa các alert (giờ)",
	KeyRecommendRefresh:  "Tần suất cập nhật khuyến nghị (giờ)",
	KeyBacktestStartDate: "Ngày bắt đầu backtest",
	KeyRiskFreeRate:      "Lãi suất phi rủi ro",
	KeyRetentionDays:     "Số ngày giữ data trong Sheets",
	KeyHistoricalYears:   "Số năm lưu historical data trong SQLite",
}

// ConfigSheet is the slice of the sheet store the settings layer uses.
type ConfigSheet interface {
	Records(ctx context.Context, worksheet string) ([]map[string]string, error)
	Replace(ctx context.Context, worksheet string, header []string, rows [][]string) error
}

// Settings serves runtime settings from the config worksheet with env
// defaults and a short cache. A missing worksheet is created with the
// defaults.
type Settings struct {
	sheet ConfigSheet
	log   *zap.Logger

	mu      sync.Mutex
	cache   map[string]string
	fetched time.Time
	now     func() time.Time
}

// NewSettings binds the settings layer to a config sheet. sheet may be
// nil, in which case defaults are served.
func NewSettings(sheet ConfigSheet, log *zap.Logger) *Settings {
	if log == nil {
		log = zap.NewNop()
	}
	return &Settings{sheet: sheet, log: log.Named("settings"), now: time.Now}
}

func (s *Settings) load(ctx context.Context) map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cache != nil && s.now().Sub(s.fetched) < settingsTTL {
		return s.cache
	}

	merged := make(map[string]string, len(settingDefaults))
	for k, v := range settingDefaults {
		merged[k] = v
	}

	if s.sheet != nil {
		records, err := s.sheet.Records(ctx, store.SheetConfig)
		switch {
		case err != nil:
			s.log.Warn("config sheet unreadable, using defaults", zap.Error(err))
		case len(records) == 0:
			if err := s.writeDefaultsLocked(ctx); err != nil {
				s.log.Warn("could not seed config sheet", zap.Error(err))
			}
		default:
			for _, rec := range records {
				if k, v := rec["key"], rec["value"]; k != "" && v != "" {
					merged[k] = v
				}
			}
		}
	}

	s.cache = merged
	s.fetched = s.now()
	return merged
}

func (s *Settings) writeDefaultsLocked(ctx context.Context) error {
	rows := make([][]string, 0, len(settingDefaults))
	for _, k := range []string{
		KeyUpdateInterval, KeyAlertCooldown, KeyRecommendRefresh,
		KeyBacktestStartDate, KeyRiskFreeRate, KeyRetentionDays, KeyHistoricalYears,
	} {
		rows = append(rows, []string{k, settingDefaults[k], settingDescriptions[k]})
	}
	return s.sheet.Replace(ctx, store.SheetConfig, []string{"key", "value", "description"}, rows)
}

// Get returns the raw string value for key, falling back to def.
func (s *Settings) Get(ctx context.Context, key, def string) string {
	if v, ok := s.load(ctx)[key]; ok && v != "" {
		return v
	}
	return def
}

// GetInt returns key as int, def on parse failure.
func (s *Settings) GetInt(ctx context.Context, key string, def int) int {
	if v, err := strconv.Atoi(s.Get(ctx, key, "")); err == nil {
		return v
	}
	return def
}

// GetFloat returns key as float64, def on parse failure.
func (s *Settings) GetFloat(ctx context.Context, key string, def float64) float64 {
	if v, err := strconv.ParseFloat(s.Get(ctx, key, ""), 64); err == nil {
		return v
	}
	return def
}

// Set writes key=value back to the config sheet and drops the cache.
func (s *Settings) Set(ctx context.Context, key, value string) error {
	if s.sheet == nil {
		return fmt.Errorf("no config sheet bound")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.sheet.Records(ctx, store.SheetConfig)
	if err != nil {
		return fmt.Errorf("read config sheet: %w", err)
	}
	found := false
	rows := make([][]string, 0, len(records)+1)
	for _, rec := range records {
		k := rec["key"]
		v := rec["value"]
		if k == key {
			v = value
			found = true
		}
		rows = append(rows, []string{k, v, rec["description"]})
	}
	if !found {
		rows = append(rows, []string{key, value, settingDescriptions[key]})
	}
	if err := s.sheet.Replace(ctx, store.SheetConfig, []string{"key", "value", "description"}, rows); err != nil {
		return fmt.Errorf("write config sheet: %w", err)
	}
	s.cache = nil
	return nil
}
