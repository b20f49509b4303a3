// Package scheduler drives the periodic jobs in-process, gated by the
// trading calendar.
package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/quangtb/stockvn/internal/config"
	"github.com/quangtb/stockvn/internal/market"
)

// Job is one schedulable unit of work.
type Job func(ctx context.Context) error

// Jobs holds the work the scheduler drives. Nil entries are skipped.
type Jobs struct {
	FlowUpdate  Job // every update_interval_minutes during trading hours
	VNIndex     Job // four times per trading day
	Alerts      Job // with the flow update
	EndOfDay    Job // cleanup + archival after the close
	PriceUpdate Job // daily OHLCV refresh after the close
}

// vnindexTimes are the HH:MM marks the index snapshot runs at.
var vnindexTimes = []string{"09:15", "11:25", "13:15", "14:55"}

// endOfDayTime is when cleanup and archival run.
const endOfDayTime = "15:15"

// Scheduler runs the jobs on a one-minute tick.
type Scheduler struct {
	jobs     Jobs
	settings *config.Settings
	log      *zap.Logger

	now     func() time.Time
	lastRun map[string]time.Time
}

// New builds a scheduler. settings supplies update_interval_minutes.
func New(jobs Jobs, settings *config.Settings, log *zap.Logger) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{
		jobs:     jobs,
		settings: settings,
		log:      log.Named("scheduler"),
		now:      time.Now,
		lastRun:  make(map[string]time.Time),
	}
}

// Run ticks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	s.log.Info("scheduler started")
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	s.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick evaluates the schedule once.
func (s *Scheduler) Tick(ctx context.Context) {
	now := s.now().In(market.Location)
	if !market.IsTradingDay(now) {
		return
	}
	hm := now.Format("15:04")

	if market.IsTradingHours(now) {
		interval := time.Duration(s.settings.GetInt(ctx, config.KeyUpdateInterval, 10)) * time.Minute
		if interval <= 0 {
			interval = 10 * time.Minute
		}
		if s.due("flow", now, interval) {
			s.run(ctx, "flow", s.jobs.FlowUpdate, now)
			s.run(ctx, "alerts", s.jobs.Alerts, now)
		}
	}

	for _, mark := range vnindexTimes {
		if hm == mark && s.due("vnindex", now, 30*time.Minute) {
			s.run(ctx, "vnindex", s.jobs.VNIndex, now)
		}
	}

	if hm == endOfDayTime && s.due("eod", now, 12*time.Hour) {
		s.run(ctx, "price", s.jobs.PriceUpdate, now)
		s.run(ctx, "eod", s.jobs.EndOfDay, now)
	}
}

func (s *Scheduler) due(name string, now time.Time, interval time.Duration) bool {
	last, ok := s.lastRun[name]
	return !ok || now.Sub(last) >= interval
}

func (s *Scheduler) run(ctx context.Context, name string, job Job, now time.Time) {
	if job == nil {
		return
	}
	s.lastRun[name] = now
	start := time.Now()
	if err := job(ctx); err != nil {
		s.log.Error("job failed", zap.String("job", name), zap.Error(err))
		return
	}
	s.log.Info("job done", zap.String("job", name), zap.Duration("took", time.Since(start)))
}
