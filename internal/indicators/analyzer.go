package indicators

import (
	"math"
	"time"
)

// Candle is one daily OHLCV bar. Series passed to the analyzer are
// ascending by time.
type Candle struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Params holds the tunable trading-level percentages.
type Params struct {
	TP1Pct      float64 // take profit 1, default +5%
	TP2Pct      float64 // take profit 2, default +10%
	TP3Pct      float64 // take profit 3, default +15%
	SLPct       float64 // stop loss, default -6%
	SLBufferPct float64 // buffer under MA50/support, default 3%
}

// DefaultParams returns the standard VN long-only swing parameters.
func DefaultParams() Params {
	return Params{TP1Pct: 5, TP2Pct: 10, TP3Pct: 15, SLPct: 6, SLBufferPct: 3}
}

// Trend labels.
const (
	TrendStrongUp     = "strong_uptrend"
	TrendUp           = "uptrend"
	TrendSideways     = "sideways"
	TrendDown         = "downtrend"
	TrendStrongDown   = "strong_downtrend"
	TrendInsufficient = "insufficient_data"
)

// Recommendation labels (long only, VN market has no shorting).
const (
	RecBuy   = "MUA / TÍCH LŨY"
	RecWatch = "THEO DÕI"
	RecSell  = "BÁN / HẠ TỶ TRỌNG"
)

// Analyzer computes all indicators for one symbol over a window of the
// most recent bars (default cap 400 days).
type Analyzer struct {
	candles []Candle
	params  Params

	closes, highs, lows, volumes []float64
	ma20, ma50, ma200            []float64
	macd, macdSignal, macdHist   []float64
	volMA20                      []float64
}

// NewAnalyzer filters the series down to at most days bars and
// precomputes the indicator series.
func NewAnalyzer(candles []Candle, days int, params Params) *Analyzer {
	if days <= 0 {
		days = 400
	}
	if len(candles) > days {
		candles = candles[len(candles)-days:]
	}
	a := &Analyzer{candles: candles, params: params}
	for _, c := range candles {
		a.closes = append(a.closes, c.Close)
		a.highs = append(a.highs, c.High)
		a.lows = append(a.lows, c.Low)
		a.volumes = append(a.volumes, c.Volume)
	}
	if len(candles) >= 20 {
		a.ma20 = SMASeries(a.closes, 20)
		a.ma50 = SMASeries(a.closes, 50)
		a.ma200 = SMASeries(a.closes, 200)
		a.macd, a.macdSignal, a.macdHist = MACDSeries(a.closes)
		a.volMA20 = SMASeries(a.volumes, 20)
	}
	return a
}

// Len returns the number of bars in the analysis window.
func (a *Analyzer) Len() int { return len(a.candles) }

// CurrentPrice returns the latest close, 0 on an empty series.
func (a *Analyzer) CurrentPrice() float64 {
	if len(a.closes) == 0 {
		return 0
	}
	return a.closes[len(a.closes)-1]
}

// MA returns the latest moving average for period 20, 50 or 200.
func (a *Analyzer) MA(period int) float64 {
	var s []float64
	switch period {
	case 20:
		s = a.ma20
	case 50:
		s = a.ma50
	case 200:
		s = a.ma200
	default:
		return SMA(a.closes, period)
	}
	if len(s) == 0 {
		return 0
	}
	v := s[len(s)-1]
	if math.IsNaN(v) {
		return 0
	}
	return v
}

// Alignment describes the stacking of price over the moving averages.
type Alignment struct {
	Alignment      string `json:"alignment"` // golden, death, mixed
	PriceAboveMA20 bool   `json:"price_above_ma20"`
	MA20AboveMA50  bool   `json:"ma20_above_ma50"`
	MA50AboveMA200 bool   `json:"ma50_above_ma200"`
}

// MAAlignment classifies the MA stack: golden when price > MA20 > MA50
// > MA200, death when fully inverted, mixed otherwise.
func (a *Analyzer) MAAlignment() Alignment {
	price := a.CurrentPrice()
	ma20, ma50, ma200 := a.MA(20), a.MA(50), a.MA(200)

	al := Alignment{
		PriceAboveMA20: ma20 > 0 && price > ma20,
		MA20AboveMA50:  ma50 > 0 && ma20 > ma50,
		MA50AboveMA200: ma200 > 0 && ma50 > ma200,
	}
	switch {
	case al.PriceAboveMA20 && al.MA20AboveMA50 && al.MA50AboveMA200:
		al.Alignment = "golden"
	case ma20 > 0 && ma50 > 0 && ma200 > 0 &&
		!al.PriceAboveMA20 && !al.MA20AboveMA50 && !al.MA50AboveMA200:
		al.Alignment = "death"
	default:
		al.Alignment = "mixed"
	}
	return al
}

// MASlope returns the % change of the MA over the last lookback bars.
func (a *Analyzer) MASlope(period, lookback int) float64 {
	var s []float64
	switch period {
	case 20:
		s = a.ma20
	case 50:
		s = a.ma50
	case 200:
		s = a.ma200
	default:
		s = SMASeries(a.closes, period)
	}
	var valid []float64
	for _, v := range s {
		if !math.IsNaN(v) {
			valid = append(valid, v)
		}
	}
	if len(valid) < lookback {
		return 0
	}
	start := valid[len(valid)-lookback]
	end := valid[len(valid)-1]
	if start <= 0 {
		return 0
	}
	return (end - start) / start * 100
}

// RSI returns the current 14-day RSI.
func (a *Analyzer) RSI() float64 { return RSI(a.closes, 14) }

// MACDValues holds the latest MACD line, signal and histogram.
type MACDValues struct {
	MACD      float64 `json:"macd"`
	Signal    float64 `json:"signal"`
	Histogram float64 `json:"histogram"`
}

// MACD returns the latest MACD values.
func (a *Analyzer) MACD() MACDValues {
	if len(a.macd) == 0 {
		return MACDValues{}
	}
	n := len(a.macd) - 1
	return MACDValues{MACD: a.macd[n], Signal: a.macdSignal[n], Histogram: a.macdHist[n]}
}

// VolumeRatio returns today's volume over the 20-day average, 1 when
// the average is unavailable.
func (a *Analyzer) VolumeRatio() float64 {
	if len(a.volMA20) == 0 || len(a.volumes) == 0 {
		return 1
	}
	avg := lastValid(a.volMA20)
	if avg <= 0 {
		return 1
	}
	return a.volumes[len(a.volumes)-1] / avg
}

// VolumeSpike reports whether volume is running above threshold times
// the 20-day average.
func (a *Analyzer) VolumeSpike(threshold float64) bool {
	return a.VolumeRatio() > threshold
}

// Trend classifies the price structure from MA positioning and slopes.
func (a *Analyzer) Trend() string {
	if len(a.candles) < 50 {
		return TrendInsufficient
	}
	price := a.CurrentPrice()
	ma20, ma50, ma200 := a.MA(20), a.MA(50), a.MA(200)
	slope20 := a.MASlope(20, 20)
	slope50 := a.MASlope(50, 30)

	if price > ma20 && ma20 > ma50 && slope20 > 0 && slope50 > 0 {
		if ma200 > 0 && ma50 > ma200 {
			return TrendStrongUp
		}
		return TrendUp
	}
	if price < ma20 && ma20 < ma50 && slope20 < 0 && slope50 < 0 {
		if ma200 > 0 && ma50 < ma200 {
			return TrendStrongDown
		}
		return TrendDown
	}
	return TrendSideways
}

// WyckoffPhase maps trend, volume and RSI onto a coarse Wyckoff phase.
func (a *Analyzer) WyckoffPhase() string {
	trend := a.Trend()
	volRatio := a.VolumeRatio()
	rsi := a.RSI()

	switch trend {
	case TrendStrongUp, TrendUp:
		if volRatio > 1.2 && rsi > 50 {
			return "markup"
		}
		return "accumulation"
	case TrendStrongDown, TrendDown:
		if volRatio > 1.2 && rsi < 50 {
			return "markdown"
		}
		return "distribution"
	default:
		if rsi < 40 {
			return "accumulation"
		}
		if rsi > 60 {
			return "distribution"
		}
		return "ranging"
	}
}
