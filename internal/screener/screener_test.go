package screener

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quangtb/stockvn/internal/vnstock"
)

// fakeMarket serves canned listings and bars.
type fakeMarket struct {
	symbols map[string][]vnstock.Symbol
	bars    map[string][]vnstock.Quote
}

func (f *fakeMarket) AllSymbols(ctx context.Context, exchange string) ([]vnstock.Symbol, error) {
	return f.symbols[exchange], nil
}

func (f *fakeMarket) QuoteHistoryAny(ctx context.Context, symbol, start, end string, sources []string) ([]vnstock.Quote, error) {
	q, ok := f.bars[symbol]
	if !ok {
		return nil, fmt.Errorf("no data for %s", symbol)
	}
	return q, nil
}

// bars builds n flat bars then applies lastChangePct and lastVolMul to
// the final one.
func bars(n int, price, volume, lastChangePct, lastVolMul float64) []vnstock.Quote {
	out := make([]vnstock.Quote, n)
	for i := range out {
		out[i] = vnstock.Quote{
			Time:  fmt.Sprintf("2025-06-%02d", i+1),
			Open:  price, High: price, Low: price, Close: price,
			Volume: volume,
		}
	}
	last := &out[n-1]
	last.Close = price * (1 + lastChangePct/100)
	last.Volume = volume * lastVolMul
	return out
}

func TestRateMomentumOnly(t *testing.T) {
	h := Rate("HPG", "HOSE", bars(20, 25, 1_000_000, 10, 1))
	assert.Equal(t, "Thép", h.Sector)
	assert.InDelta(t, 10, h.ChangePct, 1e-9)
	assert.InDelta(t, 10, h.Score, 0.5, "momentum only, small volume ratio")
	assert.Greater(t, h.AvgValueBn, 0.0)
}

func TestRateVolumeSpikeBonuses(t *testing.T) {
	// Last volume ~2.3x the window average: both bonuses apply.
	h := Rate("HPG", "HOSE", bars(20, 25, 1_000_000, 10, 2.5))
	assert.Greater(t, h.VolumeRatio, 2.0)
	assert.InDelta(t, 30, h.Score, 0.5)
}

func TestRateFlat(t *testing.T) {
	h := Rate("ZZZ", "HNX", bars(20, 10, 100_000, 0, 1))
	assert.Equal(t, 0.0, h.ChangePct)
	assert.InDelta(t, 0, h.Score, 0.5)
}

func TestScanMarket(t *testing.T) {
	m := &fakeMarket{
		symbols: map[string][]vnstock.Symbol{
			"HOSE": {{Ticker: "HPG", Exchange: "HOSE"}, {Ticker: "ILQ", Exchange: "HOSE"}},
			"HNX":  {{Ticker: "SHS", Exchange: "HNX"}},
		},
		bars: map[string][]vnstock.Quote{
			"HPG": bars(20, 25_000, 1_000_000, 12, 2.5),
			"ILQ": bars(20, 1_000, 1_000, 50, 1), // illiquid, below the floor
			"SHS": bars(20, 15_000, 2_000_000, 5, 1),
		},
	}
	s := New(m, nil)
	hot, err := s.ScanMarket(context.Background(), ScanOptions{
		Exchanges: []string{"HOSE", "HNX"},
	})
	require.NoError(t, err)
	require.Len(t, hot, 2, "the illiquid symbol is dropped")
	assert.Equal(t, "HPG", hot[0].Ticker, "highest score first")
	assert.Equal(t, "SHS", hot[1].Ticker)
}

func TestScanMarketTopCap(t *testing.T) {
	m := &fakeMarket{
		symbols: map[string][]vnstock.Symbol{
			"HOSE": {{Ticker: "AAA"}, {Ticker: "BBB"}, {Ticker: "CCC"}},
		},
		bars: map[string][]vnstock.Quote{
			"AAA": bars(20, 20_000, 1_000_000, 1, 1),
			"BBB": bars(20, 20_000, 1_000_000, 2, 1),
			"CCC": bars(20, 20_000, 1_000_000, 3, 1),
		},
	}
	hot, err := New(m, nil).ScanMarket(context.Background(), ScanOptions{
		Exchanges: []string{"HOSE"},
		Top:       2,
	})
	require.NoError(t, err)
	assert.Len(t, hot, 2)
}

func TestScanMarketEmptyUniverse(t *testing.T) {
	hot, err := New(&fakeMarket{symbols: map[string][]vnstock.Symbol{}}, nil).
		ScanMarket(context.Background(), ScanOptions{})
	require.NoError(t, err)
	assert.Nil(t, hot)
}
