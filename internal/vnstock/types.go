package vnstock

// Data sources exposed by the gateway, in default fallback order.
const (
	SourceTCBS = "TCBS"
	SourceVCI  = "VCI"
	SourceSSI  = "SSI"
)

// Exchanges listed on the Vietnamese market.
const (
	ExchangeHOSE  = "HOSE"
	ExchangeHNX   = "HNX"
	ExchangeUPCOM = "UPCOM"
)

// IndexSymbol is the VN-Index symbol on the VCI source.
const IndexSymbol = "VNINDEX"

// Quote is one OHLCV bar.
type Quote struct {
	Time   string  `json:"time"` // YYYY-MM-DD
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// Symbol is one listed ticker.
type Symbol struct {
	Ticker   string `json:"ticker"`
	Exchange string `json:"exchange"`
	Name     string `json:"organ_name"`
}

// IncomeRow is one income-statement period.
type IncomeRow struct {
	Ticker    string  `json:"ticker"`
	Period    string  `json:"period"` // e.g. 2024-Q4 or 2024
	Revenue   float64 `json:"revenue"`
	NetIncome float64 `json:"net_income"`
	EPS       float64 `json:"eps"`
}

// BalanceRow is one balance-sheet period.
type BalanceRow struct {
	Ticker             string  `json:"ticker"`
	Period             string  `json:"period"`
	Equity             float64 `json:"equity"`
	TotalAssets        float64 `json:"total_assets"`
	TotalLiabilities   float64 `json:"total_liabilities"`
	CurrentAssets      float64 `json:"current_assets"`
	CurrentLiabilities float64 `json:"current_liabilities"`
	SharesOutstanding  float64 `json:"shares_outstanding"`
}

// RatioRow is one financial-ratio period.
type RatioRow struct {
	Ticker string  `json:"ticker"`
	Period string  `json:"period"`
	PE     float64 `json:"pe"`
	PB     float64 `json:"pb"`
	ROE    float64 `json:"roe"`
}

// Financials bundles the three statement tables for one symbol.
type Financials struct {
	Income  []IncomeRow  `json:"income"`
	Balance []BalanceRow `json:"balance"`
	Ratios  []RatioRow   `json:"ratios"`
}
