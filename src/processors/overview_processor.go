package processors

import (
	"sort"

	"github.com/shopspring/decimal"
	"github.com/username/stockfolio/backend/src/models"
)

const topListSize = 5

// OverviewProcessor aggregates holding summaries into the dashboard header
// figures and the two top-5 tables.
type OverviewProcessor struct{}

func NewOverviewProcessor() *OverviewProcessor { return &OverviewProcessor{} }

// Build computes portfolio totals and rankings from an already-computed
// holdings summary. An empty summary yields zero values, never a division
// by zero.
func (p *OverviewProcessor) Build(summaries []models.HoldingSummary) *models.PortfolioOverview {
	totalInvestment := decimal.Zero
	totalDividends := decimal.Zero
	yieldSum := decimal.Zero

	for _, s := range summaries {
		totalInvestment = totalInvestment.Add(decimal.NewFromFloat(s.TotalInvested))
		totalDividends = totalDividends.Add(decimal.NewFromFloat(s.TotalDividends))
		yieldSum = yieldSum.Add(decimal.NewFromFloat(s.DividendYield))
	}

	averageYield := decimal.Zero
	if len(summaries) > 0 {
		averageYield = yieldSum.Div(decimal.NewFromInt(int64(len(summaries))))
	}

	return &models.PortfolioOverview{
		TotalInvestment:      totalInvestment.Round(2).InexactFloat64(),
		TotalDividends:       totalDividends.Round(2).InexactFloat64(),
		AverageDividendYield: averageYield.Round(2).InexactFloat64(),
		HoldingCount:         len(summaries),
		TopInvestments:       topBy(summaries, func(s models.HoldingSummary) float64 { return s.TotalInvested }),
		TopDividendYield:     topBy(summaries, func(s models.HoldingSummary) float64 { return s.DividendYield }),
	}
}

func topBy(summaries []models.HoldingSummary, key func(models.HoldingSummary) float64) []models.HoldingSummary {
	ranked := make([]models.HoldingSummary, len(summaries))
	copy(ranked, summaries)
	sort.SliceStable(ranked, func(i, j int) bool {
		return key(ranked[i]) > key(ranked[j])
	})
	if len(ranked) > topListSize {
		ranked = ranked[:topListSize]
	}
	return ranked
}
