package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/quangtb/stockvn/internal/config"
	"github.com/quangtb/stockvn/internal/market"
)

type jobCounter struct {
	flow, vnindex, alerts, eod, price int
}

func newTestScheduler(c *jobCounter) *Scheduler {
	count := func(n *int) Job {
		return func(ctx context.Context) error {
			*n++
			return nil
		}
	}
	jobs := Jobs{
		FlowUpdate:  count(&c.flow),
		VNIndex:     count(&c.vnindex),
		Alerts:      count(&c.alerts),
		EndOfDay:    count(&c.eod),
		PriceUpdate: count(&c.price),
	}
	return New(jobs, config.NewSettings(nil, nil), nil)
}

func at(hour, min int) time.Time {
	// Tuesday 2025-06-10, a regular trading day.
	return time.Date(2025, 6, 10, hour, min, 0, 0, market.Location)
}

func TestTickSkipsNonTradingDay(t *testing.T) {
	var c jobCounter
	s := newTestScheduler(&c)
	s.now = func() time.Time {
		// Sunday, mid-morning.
		return time.Date(2025, 6, 8, 10, 0, 0, 0, market.Location)
	}
	s.Tick(context.Background())
	assert.Zero(t, c.flow+c.vnindex+c.alerts+c.eod+c.price)
}

func TestTickFlowInterval(t *testing.T) {
	var c jobCounter
	s := newTestScheduler(&c)
	now := at(9, 30)
	s.now = func() time.Time { return now }
	ctx := context.Background()

	s.Tick(ctx)
	assert.Equal(t, 1, c.flow)
	assert.Equal(t, 1, c.alerts, "alerts ride along with the flow update")

	now = at(9, 35)
	s.Tick(ctx)
	assert.Equal(t, 1, c.flow, "inside the 10-minute interval")

	now = at(9, 40)
	s.Tick(ctx)
	assert.Equal(t, 2, c.flow)
}

func TestTickOutsideTradingHours(t *testing.T) {
	var c jobCounter
	s := newTestScheduler(&c)
	s.now = func() time.Time { return at(12, 0) } // lunch break
	s.Tick(context.Background())
	assert.Zero(t, c.flow)
}

func TestTickVNIndexMarks(t *testing.T) {
	var c jobCounter
	s := newTestScheduler(&c)
	now := at(9, 15)
	s.now = func() time.Time { return now }
	ctx := context.Background()

	s.Tick(ctx)
	assert.Equal(t, 1, c.vnindex)

	// Same mark again within the guard window stays suppressed.
	s.Tick(ctx)
	assert.Equal(t, 1, c.vnindex)

	now = at(11, 25)
	s.Tick(ctx)
	assert.Equal(t, 2, c.vnindex)

	now = at(10, 0)
	s.Tick(ctx)
	assert.Equal(t, 2, c.vnindex, "off-mark minutes do nothing")
}

func TestTickEndOfDay(t *testing.T) {
	var c jobCounter
	s := newTestScheduler(&c)
	now := at(15, 15)
	s.now = func() time.Time { return now }
	ctx := context.Background()

	s.Tick(ctx)
	assert.Equal(t, 1, c.price)
	assert.Equal(t, 1, c.eod)
	assert.Zero(t, c.flow, "market already closed")

	s.Tick(ctx)
	assert.Equal(t, 1, c.eod, "runs once per day")
}

func TestTickNilJobs(t *testing.T) {
	s := New(Jobs{}, config.NewSettings(nil, nil), nil)
	s.now = func() time.Time { return at(9, 15) }
	s.Tick(context.Background())
}
