package models

// HoldingSummary represents one instrument currently held (net quantity > 0),
// fully recomputed from the transaction set on every run.
type HoldingSummary struct {
	Instrument     string  `json:"instrument"`
	NetQuantity    float64 `json:"net_quantity"`
	AveragePrice   float64 `json:"average_price"`
	TotalInvested  float64 `json:"total_invested"`
	TotalDividends float64 `json:"total_dividends"`
	DividendYield  float64 `json:"dividend_yield"` // percent
}

// PositionPoint is one step of an instrument's buy accumulation series.
type PositionPoint struct {
	Date                 string  `json:"date"` // YYYY-MM-DD
	CumulativeQuantity   float64 `json:"cumulative_quantity"`
	WeightedAveragePrice float64 `json:"weighted_average_price"`
}

// PortfolioOverview carries the aggregates behind the dashboard's header
// cards plus the two top-5 tables.
type PortfolioOverview struct {
	TotalInvestment      float64          `json:"total_investment"`
	TotalDividends       float64          `json:"total_dividends"`
	AverageDividendYield float64          `json:"average_dividend_yield"` // percent
	HoldingCount         int              `json:"holding_count"`
	TopInvestments       []HoldingSummary `json:"top_investments"`
	TopDividendYield     []HoldingSummary `json:"top_dividend_yield"`
}
