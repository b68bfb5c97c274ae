package processors

import (
	"sort"

	"github.com/shopspring/decimal"
	"github.com/username/stockfolio/backend/src/models"
)

var hundred = decimal.NewFromInt(100)

// PortfolioProcessor derives the current-holdings summary from a transaction
// set. Partial sells reduce the cost basis proportionally across all lots
// (average-cost, not FIFO/LIFO lot accounting).
type PortfolioProcessor struct{}

func NewPortfolioProcessor() *PortfolioProcessor { return &PortfolioProcessor{} }

// per-instrument accumulator, internal to the processor.
type instrumentTotals struct {
	boughtQuantity decimal.Decimal
	grossCost      decimal.Decimal
	soldQuantity   decimal.Decimal
	dividends      decimal.Decimal
}

// Summarize produces one HoldingSummary per instrument currently held
// (net quantity > 0), sorted by instrument. Instruments with no Buy
// transactions contribute nothing, which also guards every division below.
func (p *PortfolioProcessor) Summarize(txs []models.Transaction) []models.HoldingSummary {
	totals := make(map[string]*instrumentTotals)
	acc := func(instrument string) *instrumentTotals {
		t, ok := totals[instrument]
		if !ok {
			t = &instrumentTotals{}
			totals[instrument] = t
		}
		return t
	}

	for _, tx := range txs {
		switch tx.Action {
		case models.ActionBuy:
			t := acc(tx.Instrument)
			t.boughtQuantity = t.boughtQuantity.Add(tx.Quantity)
			t.grossCost = t.grossCost.Add(tx.Price.Mul(tx.Quantity))
		case models.ActionSell:
			t := acc(tx.Instrument)
			t.soldQuantity = t.soldQuantity.Add(tx.Quantity)
		case models.ActionDividend:
			// Left-join semantics: dividends accumulate even for instruments
			// that end up excluded; missing means zero, not unknown.
			t := acc(tx.Instrument)
			t.dividends = t.dividends.Add(tx.Amount)
		}
	}

	var summaries []models.HoldingSummary
	for instrument, t := range totals {
		if t.boughtQuantity.IsZero() {
			continue
		}
		netQuantity := t.boughtQuantity.Sub(t.soldQuantity)
		if netQuantity.Sign() <= 0 {
			// Fully exited positions are dropped, not reported at zero.
			continue
		}

		adjustedCost := t.grossCost.Mul(netQuantity).Div(t.boughtQuantity)
		averagePrice := adjustedCost.Div(netQuantity).Round(2)
		totalInvested := adjustedCost.Round(2)
		totalDividends := t.dividends.Round(2)

		var dividendYield decimal.Decimal
		if !totalInvested.IsZero() {
			dividendYield = totalDividends.Div(totalInvested).Mul(hundred)
		}

		summaries = append(summaries, models.HoldingSummary{
			Instrument:     instrument,
			NetQuantity:    netQuantity.Round(3).InexactFloat64(),
			AveragePrice:   averagePrice.InexactFloat64(),
			TotalInvested:  totalInvested.InexactFloat64(),
			TotalDividends: totalDividends.InexactFloat64(),
			DividendYield:  dividendYield.InexactFloat64(),
		})
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].Instrument < summaries[j].Instrument
	})
	return summaries
}
