package vnstock

import (
	"context"
	"sync"
	"time"
)

// rateLimiter is a token bucket refilled at perMinute tokens/min with a
// burst of perMinute. The gateway throttles hard past the quota, so the
// client self-limits instead of retrying on 429s.
type rateLimiter struct {
	tokens chan struct{}
	ticker *time.Ticker
	done   chan struct{}
	once   sync.Once
}

func newRateLimiter(perMinute int) *rateLimiter {
	if perMinute <= 0 {
		perMinute = 20
	}
	rl := &rateLimiter{
		tokens: make(chan struct{}, perMinute),
		ticker: time.NewTicker(time.Minute / time.Duration(perMinute)),
		done:   make(chan struct{}),
	}
	for i := 0; i < perMinute; i++ {
		rl.tokens <- struct{}{}
	}
	go rl.refill()
	return rl
}

func (rl *rateLimiter) refill() {
	for {
		select {
		case <-rl.done:
			return
		case <-rl.ticker.C:
			select {
			case rl.tokens <- struct{}{}:
			default:
			}
		}
	}
}

// stop ends the refill goroutine. Safe to call more than once; Wait
// keeps draining whatever tokens remain buffered.
func (rl *rateLimiter) stop() {
	rl.once.Do(func() {
		rl.ticker.Stop()
		close(rl.done)
	})
}

// Wait blocks until a token is available or ctx is done.
func (rl *rateLimiter) Wait(ctx context.Context) error {
	select {
	case <-rl.tokens:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
