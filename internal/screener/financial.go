package screener

import (
	"context"
	"math"
	"sort"
	"strconv"

	"go.uber.org/zap"

	"github.com/quangtb/stockvn/internal/market"
	"github.com/quangtb/stockvn/internal/store"
)

// Metrics is the per-ticker fundamental scorecard.
type Metrics struct {
	Ticker string `json:"ticker"`
	Sector string `json:"sector"`

	ROE          float64 `json:"roe"`
	ROA          float64 `json:"roa"`
	ProfitMargin float64 `json:"profit_margin"`

	PE *float64 `json:"pe"`
	PB *float64 `json:"pb"`
	PS *float64 `json:"ps"`

	EPSGrowth     float64 `json:"eps_growth"`
	RevenueGrowth float64 `json:"revenue_growth"`

	DebtEquity   float64 `json:"debt_equity"`
	CurrentRatio float64 `json:"current_ratio"`

	Score int `json:"score"`
}

// Criteria are optional filters; nil means not applied.
type Criteria struct {
	MinROE           *float64
	MinROA           *float64
	MinProfitMargin  *float64
	MaxPE            *float64
	MaxPB            *float64
	MinEPSGrowth     *float64
	MinRevenueGrowth *float64
	MaxDebtEquity    *float64
	MinCurrentRatio  *float64
	Sectors          []string
}

// Average P/E per sector, used to judge valuation relative to peers.
var industryPE = map[string]float64{
	"Ngân hàng": 12, "Bất động sản": 15, "Thép": 10, "Thực phẩm": 18,
	"Bán lẻ": 20, "Dầu khí": 8, "Điện": 12, "Xây dựng": 10,
	"Chứng khoán": 15, "Công nghệ": 22, "Hàng không": 12,
	"Logistics": 14, "Dược phẩm": 18, "Cao su": 10, "Thủy sản": 12,
	"Nông nghiệp": 10, "Vận tải": 12, market.SectorOther: 15,
}

// IndustryAvgPE returns the peer-average P/E for a ticker's sector.
func IndustryAvgPE(ticker string) float64 {
	if pe, ok := industryPE[market.Sector(ticker)]; ok {
		return pe
	}
	return 15
}

// StatementSheet is the spreadsheet surface the financial screen reads.
type StatementSheet interface {
	Records(ctx context.Context, worksheet string) ([]map[string]string, error)
}

type statementRow map[string]string

// FinancialScreener computes fundamental metrics from the statement
// worksheets.
type FinancialScreener struct {
	sheet StatementSheet
	log   *zap.Logger
}

// NewFinancial wires the fundamental screen.
func NewFinancial(sheet StatementSheet, log *zap.Logger) *FinancialScreener {
	if log == nil {
		log = zap.NewNop()
	}
	return &FinancialScreener{sheet: sheet, log: log.Named("financial")}
}

// MetricsFor computes the scorecard for one ticker. Returns nil when no
// statement rows exist.
func (f *FinancialScreener) MetricsFor(ctx context.Context, ticker string) (*Metrics, error) {
	income, err := f.sheet.Records(ctx, store.SheetIncome)
	if err != nil {
		return nil, err
	}
	balance, err := f.sheet.Records(ctx, store.SheetBalance)
	if err != nil {
		return nil, err
	}
	prices, err := f.sheet.Records(ctx, store.SheetPriceHistory)
	if err != nil {
		f.log.Warn("price history unreadable, valuation skipped", zap.Error(err))
	}
	return computeMetrics(ticker, filterRows(income, ticker), filterRows(balance, ticker), latestClose(prices, ticker)), nil
}

// Screen scores the given tickers and filters them by the criteria,
// sorted by composite score descending.
func (f *FinancialScreener) Screen(ctx context.Context, tickers []string, crit Criteria) ([]Metrics, error) {
	income, err := f.sheet.Records(ctx, store.SheetIncome)
	if err != nil {
		return nil, err
	}
	balance, err := f.sheet.Records(ctx, store.SheetBalance)
	if err != nil {
		return nil, err
	}
	prices, _ := f.sheet.Records(ctx, store.SheetPriceHistory)

	sectorSet := map[string]bool{}
	for _, s := range crit.Sectors {
		sectorSet[s] = true
	}

	var out []Metrics
	for _, ticker := range tickers {
		m := computeMetrics(ticker, filterRows(income, ticker), filterRows(balance, ticker), latestClose(prices, ticker))
		if m == nil {
			continue
		}
		if len(sectorSet) > 0 && !sectorSet[m.Sector] {
			continue
		}
		if !matches(m, crit) {
			continue
		}
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out, nil
}

func matches(m *Metrics, c Criteria) bool {
	if c.MinROE != nil && m.ROE < *c.MinROE {
		return false
	}
	if c.MinROA != nil && m.ROA < *c.MinROA {
		return false
	}
	if c.MinProfitMargin != nil && m.ProfitMargin < *c.MinProfitMargin {
		return false
	}
	if c.MaxPE != nil && (m.PE == nil || *m.PE > *c.MaxPE) {
		return false
	}
	if c.MaxPB != nil && (m.PB == nil || *m.PB > *c.MaxPB) {
		return false
	}
	if c.MinEPSGrowth != nil && m.EPSGrowth < *c.MinEPSGrowth {
		return false
	}
	if c.MinRevenueGrowth != nil && m.RevenueGrowth < *c.MinRevenueGrowth {
		return false
	}
	if c.MaxDebtEquity != nil && m.DebtEquity > *c.MaxDebtEquity {
		return false
	}
	if c.MinCurrentRatio != nil && m.CurrentRatio < *c.MinCurrentRatio {
		return false
	}
	return true
}

func filterRows(rows []map[string]string, ticker string) []statementRow {
	var out []statementRow
	for _, r := range rows {
		if r["ticker"] == ticker {
			out = append(out, r)
		}
	}
	return out
}

func latestClose(prices []map[string]string, ticker string) float64 {
	price := 0.0
	ts := ""
	for _, r := range prices {
		if r["ticker"] != ticker {
			continue
		}
		when := r["timestamp"]
		if when == "" {
			when = r["time"]
		}
		if when >= ts {
			ts = when
			price = num(r["close"])
		}
	}
	return price
}

func computeMetrics(ticker string, income, balance []statementRow, price float64) *Metrics {
	if len(income) == 0 || len(balance) == 0 {
		return nil
	}
	latestI := income[len(income)-1]
	prevI := latestI
	if len(income) > 1 {
		prevI = income[len(income)-2]
	}
	latestB := balance[len(balance)-1]

	netIncome := num(latestI["net_income"])
	revenue := num(latestI["revenue"])
	eps := num(latestI["eps"])
	prevEPS := num(prevI["eps"])
	prevRevenue := num(prevI["revenue"])

	equity := num(latestB["equity"])
	totalAssets := num(latestB["total_assets"])
	totalLiabilities := num(latestB["total_liabilities"])
	currentAssets := num(latestB["current_assets"])
	currentLiabilities := num(latestB["current_liabilities"])
	shares := num(latestB["shares_outstanding"])

	m := &Metrics{Ticker: ticker, Sector: market.Sector(ticker)}

	if equity > 0 {
		m.ROE = round2(netIncome / equity * 100)
		m.DebtEquity = round2(totalLiabilities / equity)
	}
	if totalAssets > 0 {
		m.ROA = round2(netIncome / totalAssets * 100)
	}
	if revenue > 0 {
		m.ProfitMargin = round2(netIncome / revenue * 100)
	}
	if currentLiabilities > 0 {
		m.CurrentRatio = round2(currentAssets / currentLiabilities)
	}

	if eps > 0 && price > 0 {
		v := round2(price / eps)
		m.PE = &v
	}
	if shares > 0 && price > 0 {
		if bv := equity / shares; bv > 0 {
			v := round2(price / bv)
			m.PB = &v
		}
		if revenue > 0 {
			v := round2(price * shares / revenue)
			m.PS = &v
		}
	}

	if prevEPS > 0 {
		m.EPSGrowth = round2((eps - prevEPS) / prevEPS * 100)
	}
	if prevRevenue > 0 {
		m.RevenueGrowth = round2((revenue - prevRevenue) / prevRevenue * 100)
	}

	m.Score = CompositeScore(m)
	return m
}

// CompositeScore weighs profitability (30), valuation (20), growth
// (20), balance-sheet health (20) and payout (10) into a 0-100 score.
func CompositeScore(m *Metrics) int {
	score := 0

	switch {
	case m.ROE >= 20:
		score += 12
	case m.ROE >= 15:
		score += 8
	case m.ROE >= 10:
		score += 4
	}
	switch {
	case m.ROA >= 10:
		score += 10
	case m.ROA >= 5:
		score += 6
	case m.ROA >= 3:
		score += 3
	}
	switch {
	case m.ProfitMargin >= 15:
		score += 8
	case m.ProfitMargin >= 10:
		score += 5
	case m.ProfitMargin >= 5:
		score += 2
	}

	if m.PE != nil {
		avg := IndustryAvgPE(m.Ticker)
		switch {
		case *m.PE < avg*0.7:
			score += 10
		case *m.PE < avg:
			score += 6
		case *m.PE < avg*1.2:
			score += 3
		}
	}
	if m.PB != nil {
		switch {
		case *m.PB < 1.5:
			score += 6
		case *m.PB < 2.5:
			score += 4
		case *m.PB < 3.5:
			score += 2
		}
	}
	if m.PS != nil {
		switch {
		case *m.PS < 1:
			score += 4
		case *m.PS < 2:
			score += 2
		}
	}

	switch {
	case m.EPSGrowth >= 20:
		score += 12
	case m.EPSGrowth >= 15:
		score += 8
	case m.EPSGrowth >= 10:
		score += 5
	}
	switch {
	case m.RevenueGrowth >= 20:
		score += 8
	case m.RevenueGrowth >= 10:
		score += 5
	case m.RevenueGrowth >= 5:
		score += 2
	}

	switch {
	case m.DebtEquity < 0.5:
		score += 12
	case m.DebtEquity < 1.0:
		score += 8
	case m.DebtEquity < 1.5:
		score += 4
	}
	switch {
	case m.CurrentRatio >= 2.0:
		score += 8
	case m.CurrentRatio >= 1.5:
		score += 5
	case m.CurrentRatio >= 1.0:
		score += 2
	}

	return score
}

func num(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

func round2(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return math.Round(v*100) / 100
}
