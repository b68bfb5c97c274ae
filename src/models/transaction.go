package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Action identifies the kind of brokerage event a transaction records.
// The values match the "Trans Code" column of the export (case-sensitive).
type Action string

const (
	ActionBuy      Action = "Buy"
	ActionSell     Action = "Sell"
	ActionDividend Action = "CDIV"
)

// Transaction is the unified representation of a single brokerage event.
// Each parser is responsible for populating these fields directly from the
// source file; rows whose required fields fail to parse never become a
// Transaction. Immutable once parsed.
type Transaction struct {
	Instrument string          `json:"instrument"`
	Date       time.Time       `json:"date"`
	Action     Action          `json:"action"`
	Quantity   decimal.Decimal `json:"quantity"` // shares, set for Buy/Sell
	Price      decimal.Decimal `json:"price"`    // per-share price, set for Buy/Sell
	Amount     decimal.Decimal `json:"amount"`   // signed cash effect in account currency
	HasAmount  bool            `json:"has_amount"`
	RawText    string          `json:"raw_text"` // original line, kept for reference
}
