package models

import "time"

// CashFlow is one signed, dated flow of a return calculation. Negative
// amounts are money paid in (buys), positive amounts money received (sells,
// dividends, the terminal mark-to-market flow).
type CashFlow struct {
	Date   time.Time `json:"date"`
	Amount float64   `json:"amount"`
}

// ReturnMetrics is the on-demand result of the return estimation for one
// instrument, computed against a live market quote.
type ReturnMetrics struct {
	Instrument   string  `json:"instrument"`
	Period       string  `json:"period"` // "all", "1y", "6m", "3m"
	XIRR         float64 `json:"xirr"`   // annualized rate, e.g. 0.10 for 10%
	TotalReturn  float64 `json:"total_return"`
	CurrentPrice float64 `json:"current_price"`
	MarkToMarket float64 `json:"mark_to_market"`
	FlowCount    int     `json:"flow_count"`
}
