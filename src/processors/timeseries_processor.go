package processors

import (
	"sort"

	"github.com/shopspring/decimal"
	"github.com/username/stockfolio/backend/src/models"
)

// TimeSeriesProcessor builds the per-instrument buy accumulation series:
// cumulative quantity and running weighted average price, ordered by date.
// Only Buy transactions feed the series, so cumulative quantity never
// decreases; it is a cost-accumulation view, not a net-position-over-time
// view, and overstates holdings after any sell.
type TimeSeriesProcessor struct{}

func NewTimeSeriesProcessor() *TimeSeriesProcessor { return &TimeSeriesProcessor{} }

// Build returns the position series for every instrument with at least one
// Buy transaction. Same-day buys keep their file order (stable sort).
func (p *TimeSeriesProcessor) Build(txs []models.Transaction) map[string][]models.PositionPoint {
	buysByInstrument := make(map[string][]models.Transaction)
	for _, tx := range txs {
		if tx.Action != models.ActionBuy {
			continue
		}
		buysByInstrument[tx.Instrument] = append(buysByInstrument[tx.Instrument], tx)
	}

	series := make(map[string][]models.PositionPoint, len(buysByInstrument))
	for instrument, buys := range buysByInstrument {
		sort.SliceStable(buys, func(i, j int) bool {
			return buys[i].Date.Before(buys[j].Date)
		})

		cumulativeQuantity := decimal.Zero
		cumulativeCost := decimal.Zero
		points := make([]models.PositionPoint, 0, len(buys))
		for _, buy := range buys {
			cumulativeQuantity = cumulativeQuantity.Add(buy.Quantity)
			cumulativeCost = cumulativeCost.Add(buy.Price.Mul(buy.Quantity))

			weightedAverage := decimal.Zero
			if !cumulativeQuantity.IsZero() {
				weightedAverage = cumulativeCost.Div(cumulativeQuantity).Round(2)
			}

			points = append(points, models.PositionPoint{
				Date:                 buy.Date.Format("2006-01-02"),
				CumulativeQuantity:   cumulativeQuantity.Round(3).InexactFloat64(),
				WeightedAveragePrice: weightedAverage.InexactFloat64(),
			})
		}
		series[instrument] = points
	}

	return series
}
