// Package screener scans the whole VN market for hot momentum setups
// and screens the tracked universe on financial criteria.
package screener

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/quangtb/stockvn/internal/market"
	"github.com/quangtb/stockvn/internal/vnstock"
)

const scanConcurrency = 4

// Market is the vnstock surface the screener needs.
type Market interface {
	AllSymbols(ctx context.Context, exchange string) ([]vnstock.Symbol, error)
	QuoteHistoryAny(ctx context.Context, symbol, start, end string, sources []string) ([]vnstock.Quote, error)
}

// HotStock is one ranked momentum candidate.
type HotStock struct {
	Ticker      string  `json:"ticker"`
	Exchange    string  `json:"exchange"`
	Sector      string  `json:"sector"`
	Close       float64 `json:"close"`
	ChangePct   float64 `json:"change_pct"`   // over the lookback window
	AvgValueBn  float64 `json:"avg_value_bn"` // avg daily traded value, tỷ VNĐ
	VolumeRatio float64 `json:"volume_ratio"` // last volume vs window average
	Score       float64 `json:"score"`
}

// ScanOptions tunes the market scan.
type ScanOptions struct {
	Exchanges     []string // default HOSE+HNX+UPCOM
	LookbackDays  int      // default 20 trading days of history
	MinAvgValueBn float64  // liquidity floor, default 1 tỷ/day
	Top           int      // result cap, default 30
}

func (o *ScanOptions) defaults() {
	if len(o.Exchanges) == 0 {
		o.Exchanges = []string{vnstock.ExchangeHOSE, vnstock.ExchangeHNX, vnstock.ExchangeUPCOM}
	}
	if o.LookbackDays <= 0 {
		o.LookbackDays = 20
	}
	if o.MinAvgValueBn <= 0 {
		o.MinAvgValueBn = 1
	}
	if o.Top <= 0 {
		o.Top = 30
	}
}

// Screener runs the scans.
type Screener struct {
	client Market
	log    *zap.Logger
}

// New wires a screener.
func New(client Market, log *zap.Logger) *Screener {
	if log == nil {
		log = zap.NewNop()
	}
	return &Screener{client: client, log: log.Named("screener")}
}

// ScanMarket lists every symbol on the requested exchanges, measures
// momentum and liquidity over the lookback window and returns the top
// candidates by score.
func (s *Screener) ScanMarket(ctx context.Context, opts ScanOptions) ([]HotStock, error) {
	opts.defaults()

	type listed struct{ ticker, exchange string }
	var universe []listed
	for _, ex := range opts.Exchanges {
		symbols, err := s.client.AllSymbols(ctx, ex)
		if err != nil {
			s.log.Warn("listing failed", zap.String("exchange", ex), zap.Error(err))
			continue
		}
		for _, sym := range symbols {
			universe = append(universe, listed{sym.Ticker, ex})
		}
		s.log.Info("listed exchange", zap.String("exchange", ex), zap.Int("symbols", len(symbols)))
	}
	if len(universe) == 0 {
		return nil, nil
	}

	now := time.Now().In(market.Location)
	// Calendar window padded so ~LookbackDays trading days survive.
	start := now.AddDate(0, 0, -opts.LookbackDays*2).Format("2006-01-02")
	end := now.Format("2006-01-02")

	var mu sync.Mutex
	var hot []HotStock
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(scanConcurrency)
	for _, l := range universe {
		g.Go(func() error {
			quotes, err := s.client.QuoteHistoryAny(gctx, l.ticker, start, end, nil)
			if err != nil || len(quotes) < 5 {
				return nil
			}
			h := Rate(l.ticker, l.exchange, quotes)
			if h.AvgValueBn < opts.MinAvgValueBn {
				return nil
			}
			mu.Lock()
			hot = append(hot, h)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(hot, func(i, j int) bool { return hot[i].Score > hot[j].Score })
	if len(hot) > opts.Top {
		hot = hot[:opts.Top]
	}
	return hot, nil
}

// Rate scores one symbol's recent bars: momentum plus volume expansion,
// gated later by the liquidity floor.
func Rate(ticker, exchange string, quotes []vnstock.Quote) HotStock {
	first, last := quotes[0], quotes[len(quotes)-1]

	var totalValue, totalVolume float64
	for _, q := range quotes {
		totalValue += q.Close * q.Volume
		totalVolume += q.Volume
	}
	n := float64(len(quotes))
	avgValueBn := totalValue / n / 1e9
	avgVolume := totalVolume / n

	changePct := 0.0
	if first.Close > 0 {
		changePct = (last.Close - first.Close) / first.Close * 100
	}
	volumeRatio := 1.0
	if avgVolume > 0 {
		volumeRatio = last.Volume / avgVolume
	}

	// Momentum carries the score, a volume spike amplifies it.
	score := changePct
	if volumeRatio > 1.5 {
		score += 10
	}
	if volumeRatio > 2 {
		score += 10
	}

	return HotStock{
		Ticker:      ticker,
		Exchange:    exchange,
		Sector:      market.Sector(ticker),
		Close:       last.Close,
		ChangePct:   changePct,
		AvgValueBn:  avgValueBn,
		VolumeRatio: volumeRatio,
		Score:       score,
	}
}
