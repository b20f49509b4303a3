package config

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConfigSheet struct {
	records  []map[string]string
	reads    int
	replaced [][]string
}

func (f *fakeConfigSheet) Records(ctx context.Context, worksheet string) ([]map[string]string, error) {
	f.reads++
	return f.records, nil
}

func (f *fakeConfigSheet) Replace(ctx context.Context, worksheet string, header []string, rows [][]string) error {
	f.replaced = rows
	f.records = nil
	for _, row := range rows {
		m := map[string]string{}
		for i, h := range header {
			if i < len(row) {
				m[h] = row[i]
			}
		}
		f.records = append(f.records, m)
	}
	return nil
}

func TestSettingsDefaultsWithoutSheet(t *testing.T) {
	s := NewSettings(nil, nil)
	ctx := context.Background()
	assert.Equal(t, 10, s.GetInt(ctx, KeyUpdateInterval, 99))
	assert.Equal(t, 30, s.GetInt(ctx, KeyRetentionDays, 99))
	assert.Equal(t, "fallback", s.Get(ctx, "no_such_key", "fallback"))
	assert.Error(t, s.Set(ctx, KeyUpdateInterval, "5"))
}

func TestSettingsSeedsEmptySheet(t *testing.T) {
	sheet := &fakeConfigSheet{}
	s := NewSettings(sheet, nil)
	assert.Equal(t, 10, s.GetInt(context.Background(), KeyUpdateInterval, 99))
	assert.Len(t, sheet.replaced, len(settingDefaults), "defaults were written back")
}

func TestSettingsSheetOverridesDefaults(t *testing.T) {
	sheet := &fakeConfigSheet{records: []map[string]string{
		{"key": KeyUpdateInterval, "value": "5", "description": ""},
	}}
	s := NewSettings(sheet, nil)
	ctx := context.Background()
	assert.Equal(t, 5, s.GetInt(ctx, KeyUpdateInterval, 99))
	assert.Equal(t, 30, s.GetInt(ctx, KeyRetentionDays, 99), "unset keys keep defaults")
}

func TestSettingsCacheTTL(t *testing.T) {
	sheet := &fakeConfigSheet{records: []map[string]string{
		{"key": KeyUpdateInterval, "value": "5"},
	}}
	s := NewSettings(sheet, nil)
	now := time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	ctx := context.Background()

	s.Get(ctx, KeyUpdateInterval, "")
	s.Get(ctx, KeyRetentionDays, "")
	assert.Equal(t, 1, sheet.reads, "second read served from cache")

	now = now.Add(settingsTTL + time.Second)
	s.Get(ctx, KeyUpdateInterval, "")
	assert.Equal(t, 2, sheet.reads, "cache expired")
}

func TestSettingsSet(t *testing.T) {
	sheet := &fakeConfigSheet{records: []map[string]string{
		{"key": KeyUpdateInterval, "value": "10", "description": "d"},
	}}
	s := NewSettings(sheet, nil)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, KeyUpdateInterval, "15"))
	assert.Equal(t, 15, s.GetInt(ctx, KeyUpdateInterval, 99))

	require.NoError(t, s.Set(ctx, "custom_key", "abc"))
	assert.Equal(t, "abc", s.Get(ctx, "custom_key", ""))
}
