package indicators

import "time"

// Levels holds the nearest support and resistance prices.
type Levels struct {
	Support    float64 `json:"support"`
	Resistance float64 `json:"resistance"`
}

// SupportResistance finds the nearest support below and resistance
// above the current price from 5-bar local extrema over the last 60
// bars. Falls back to MA50 / price-5% for support and the 60-day high /
// price+10% for resistance.
func (a *Analyzer) SupportResistance() Levels {
	if len(a.candles) < 20 {
		return Levels{}
	}
	recent := a.candles
	if len(recent) > 60 {
		recent = recent[len(recent)-60:]
	}
	price := a.CurrentPrice()

	var supports, resistances []float64
	var recentHigh float64
	for i := range recent {
		if recent[i].High > recentHigh {
			recentHigh = recent[i].High
		}
		if i < 2 || i >= len(recent)-2 {
			continue
		}
		low := recent[i].Low
		if low < recent[i-1].Low && low < recent[i-2].Low &&
			low < recent[i+1].Low && low < recent[i+2].Low && low < price {
			supports = append(supports, low)
		}
		high := recent[i].High
		if high > recent[i-1].High && high > recent[i-2].High &&
			high > recent[i+1].High && high > recent[i+2].High && high > price {
			resistances = append(resistances, high)
		}
	}

	// Nearest support: highest local low under the price.
	support := 0.0
	for _, s := range supports {
		if s > support {
			support = s
		}
	}
	if support == 0 {
		support = a.MA(50)
	}
	if support == 0 {
		support = price * 0.95
	}

	// Nearest resistance: lowest local high over the price.
	resistance := 0.0
	for _, r := range resistances {
		if resistance == 0 || r < resistance {
			resistance = r
		}
	}
	if resistance == 0 {
		resistance = recentHigh
	}
	if resistance <= price {
		resistance = price * 1.1
	}

	return Levels{Support: round(support, 1), Resistance: round(resistance, 1)}
}

// EntryZone returns the suggested buy range. In an uptrend the zone
// hugs MA20, otherwise it sits on support.
func (a *Analyzer) EntryZone() (low, high float64) {
	price := a.CurrentPrice()
	ma20 := a.MA(20)
	support := a.SupportResistance().Support
	trend := a.Trend()

	if trend == TrendStrongUp || trend == TrendUp {
		low = price * 0.95
		if ma20 > 0 {
			low = ma20 * 0.98
			if support > low {
				low = support
			}
		}
		high = price
	} else {
		low = support
		high = price * 0.98
		if ma20 > 0 {
			high = ma20
		}
	}
	return round(low, 1), round(high, 1)
}

// TakeProfits holds the three laddered take-profit prices.
type TakeProfits struct {
	TP1 float64 `json:"tp1"`
	TP2 float64 `json:"tp2"`
	TP3 float64 `json:"tp3"`
}

// TakeProfitsFrom computes TP levels from entry using the configured
// percentages. TP1 is pulled down to a resistance sitting inside it.
func (a *Analyzer) TakeProfitsFrom(entry float64) TakeProfits {
	if entry == 0 {
		entry = a.CurrentPrice()
	}
	resistance := a.SupportResistance().Resistance
	tp := TakeProfits{
		TP1: round(entry*(1+a.params.TP1Pct/100), 1),
		TP2: round(entry*(1+a.params.TP2Pct/100), 1),
		TP3: round(entry*(1+a.params.TP3Pct/100), 1),
	}
	if resistance > entry && resistance < tp.TP1 {
		tp.TP1 = round(resistance, 1)
	}
	return tp
}

// StopLossFrom returns entry minus the configured stop percentage.
func (a *Analyzer) StopLossFrom(entry float64) float64 {
	if entry == 0 {
		entry = a.CurrentPrice()
	}
	return round(entry*(1-a.params.SLPct/100), 1)
}

// Recommendation scores the setup (base 50) and maps it to the VN
// long-only action labels.
func (a *Analyzer) Recommendation() string {
	score := 50

	switch a.Trend() {
	case TrendStrongUp:
		score += 20
	case TrendUp:
		score += 10
	case TrendDown:
		score -= 10
	case TrendStrongDown:
		score -= 20
	}

	switch a.MAAlignment().Alignment {
	case "golden":
		score += 15
	case "death":
		score -= 15
	}

	rsi := a.RSI()
	switch {
	case rsi > 40 && rsi < 70:
		score += 10
	case rsi < 30:
		score += 5
	case rsi > 70:
		score -= 5
	}

	if a.MACD().Histogram > 0 {
		score += 5
	} else {
		score -= 5
	}

	trend := a.Trend()
	if a.VolumeRatio() > 1.5 && (trend == TrendUp || trend == TrendStrongUp) {
		score += 10
	}

	switch {
	case score >= 70:
		return RecBuy
	case score >= 50:
		return RecWatch
	default:
		return RecSell
	}
}

// Summary is the complete indicator bundle handed to the AI prompt and
// the dashboard API.
type Summary struct {
	CurrentPrice float64 `json:"current_price"`
	DataDays     int     `json:"data_days"`
	AnalysisDate string  `json:"analysis_date"`

	MA20           float64 `json:"ma20"`
	MA50           float64 `json:"ma50"`
	MA200          float64 `json:"ma200"`
	MAAlignment    string  `json:"ma_alignment"`
	PriceAboveMA20 bool    `json:"price_above_ma20"`
	MA20AboveMA50  bool    `json:"ma20_above_ma50"`
	MA50AboveMA200 bool    `json:"ma50_above_ma200"`
	MA200Slope60D  float64 `json:"ma200_slope_60d"`

	RSI           float64 `json:"rsi"`
	MACD          float64 `json:"macd"`
	MACDSignal    float64 `json:"macd_signal"`
	MACDHistogram float64 `json:"macd_histogram"`

	VolumeRatio float64 `json:"volume_ratio"`
	VolumeSpike bool    `json:"volume_spike"`

	Trend        string `json:"trend"`
	WyckoffPhase string `json:"wyckoff_phase"`

	Support    float64 `json:"support"`
	Resistance float64 `json:"resistance"`

	EntryLow  float64 `json:"entry_low"`
	EntryHigh float64 `json:"entry_high"`
	StopLoss  float64 `json:"stop_loss"`
	TP1       float64 `json:"tp1"`
	TP2       float64 `json:"tp2"`
	TP3       float64 `json:"tp3"`

	Recommendation string `json:"recommendation"`
}

// Summarize bundles every indicator for one symbol.
func (a *Analyzer) Summarize() Summary {
	al := a.MAAlignment()
	levels := a.SupportResistance()
	entryLow, entryHigh := a.EntryZone()
	tp := a.TakeProfitsFrom(entryLow)
	macd := a.MACD()

	return Summary{
		CurrentPrice: a.CurrentPrice(),
		DataDays:     len(a.candles),
		AnalysisDate: time.Now().Format("02-01-2006 15:04:05"),

		MA20:           round(a.MA(20), 1),
		MA50:           round(a.MA(50), 1),
		MA200:          round(a.MA(200), 1),
		MAAlignment:    al.Alignment,
		PriceAboveMA20: al.PriceAboveMA20,
		MA20AboveMA50:  al.MA20AboveMA50,
		MA50AboveMA200: al.MA50AboveMA200,
		MA200Slope60D:  round(a.MASlope(200, 60), 2),

		RSI:           round(a.RSI(), 1),
		MACD:          round(macd.MACD, 2),
		MACDSignal:    round(macd.Signal, 2),
		MACDHistogram: round(macd.Histogram, 2),

		VolumeRatio: round(a.VolumeRatio(), 2),
		VolumeSpike: a.VolumeSpike(1.5),

		Trend:        a.Trend(),
		WyckoffPhase: a.WyckoffPhase(),

		Support:    levels.Support,
		Resistance: levels.Resistance,

		EntryLow:  entryLow,
		EntryHigh: entryHigh,
		StopLoss:  a.StopLossFrom(entryLow),
		TP1:       tp.TP1,
		TP2:       tp.TP2,
		TP3:       tp.TP3,

		Recommendation: a.Recommendation(),
	}
}
