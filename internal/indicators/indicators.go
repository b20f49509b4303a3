// Package indicators computes the standard technical indicators used by
// the dashboard and the AI analyst: moving averages, RSI, MACD, ATR,
// volume ratios, support/resistance and derived trading levels.
package indicators

import "math"

// SMASeries returns the simple moving average per bar. Positions before
// the warmup window hold NaN.
func SMASeries(vals []float64, period int) []float64 {
	out := make([]float64, len(vals))
	var sum float64
	for i, v := range vals {
		sum += v
		if i >= period {
			sum -= vals[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		} else {
			out[i] = math.NaN()
		}
	}
	return out
}

// SMA returns the latest simple moving average, 0 when there is not
// enough data.
func SMA(vals []float64, period int) float64 {
	if len(vals) < period || period <= 0 {
		return 0
	}
	s := SMASeries(vals, period)
	return s[len(s)-1]
}

// EMASeries returns the exponential moving average per bar, seeded with
// the first value (pandas ewm adjust=false semantics).
func EMASeries(vals []float64, span int) []float64 {
	out := make([]float64, len(vals))
	if len(vals) == 0 {
		return out
	}
	alpha := 2.0 / (float64(span) + 1.0)
	out[0] = vals[0]
	for i := 1; i < len(vals); i++ {
		out[i] = alpha*vals[i] + (1-alpha)*out[i-1]
	}
	return out
}

// RSI returns the latest relative strength index over period, using
// simple rolling means of gains and losses. Returns 50 (neutral) when
// there is not enough data, 100 when there are no losses in the window.
func RSI(closes []float64, period int) float64 {
	if len(closes) < period+1 {
		return 50
	}
	var gain, loss float64
	for i := len(closes) - period; i < len(closes); i++ {
		delta := closes[i] - closes[i-1]
		if delta > 0 {
			gain += delta
		} else {
			loss -= delta
		}
	}
	gain /= float64(period)
	loss /= float64(period)
	if loss == 0 {
		return 100
	}
	rs := gain / loss
	return 100 - 100/(1+rs)
}

// MACDSeries returns the MACD line (EMA12-EMA26), signal line (EMA9 of
// MACD) and histogram per bar.
func MACDSeries(closes []float64) (macd, signal, hist []float64) {
	fast := EMASeries(closes, 12)
	slow := EMASeries(closes, 26)
	macd = make([]float64, len(closes))
	for i := range closes {
		macd[i] = fast[i] - slow[i]
	}
	signal = EMASeries(macd, 9)
	hist = make([]float64, len(closes))
	for i := range closes {
		hist[i] = macd[i] - signal[i]
	}
	return macd, signal, hist
}

// ATR returns the latest average true range over period.
func ATR(highs, lows, closes []float64, period int) float64 {
	n := len(closes)
	if n < period+1 || len(highs) != n || len(lows) != n {
		return 0
	}
	var sum float64
	for i := n - period; i < n; i++ {
		tr := highs[i] - lows[i]
		if d := math.Abs(highs[i] - closes[i-1]); d > tr {
			tr = d
		}
		if d := math.Abs(lows[i] - closes[i-1]); d > tr {
			tr = d
		}
		sum += tr
	}
	return sum / float64(period)
}

// ChangePct returns the percentage change over the last n bars, 0 when
// there is not enough data.
func ChangePct(vals []float64, n int) float64 {
	if len(vals) < n+1 || n <= 0 {
		return 0
	}
	start := vals[len(vals)-1-n]
	if start == 0 {
		return 0
	}
	return (vals[len(vals)-1] - start) / start * 100
}

func round(v float64, places int) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func lastValid(series []float64) float64 {
	for i := len(series) - 1; i >= 0; i-- {
		if !math.IsNaN(series[i]) {
			return series[i]
		}
	}
	return 0
}
