package processors

import (
	"errors"
	"math"
	"sort"
	"time"

	"github.com/username/stockfolio/backend/src/models"
)

var (
	// ErrNoConvergence is returned when the root finder fails to settle on a
	// rate: flat derivative near the guess, oscillation past the iteration
	// cap, or a non-finite iterate. Callers report "return not computable",
	// never a garbage number.
	ErrNoConvergence = errors.New("return estimation did not converge")

	// ErrInsufficientFlows is returned when the cash-flow sequence cannot
	// define a rate of return (fewer than two flows, or no sign change).
	ErrInsufficientFlows = errors.New("not enough cash flows to estimate a return")
)

const (
	maxIterations    = 100
	derivativeStep   = 1e-6
	convergenceTol   = 1e-9
	flatDerivativeLo = 1e-12
	daysPerYear      = 365.0
)

// ReturnEstimator solves for the annualized internal rate of return of an
// irregularly-dated cash-flow sequence via Newton-Raphson on its net present
// value.
type ReturnEstimator struct{}

func NewReturnEstimator() *ReturnEstimator { return &ReturnEstimator{} }

// CashFlows builds the chronological flow sequence for one instrument: buys
// negative, sells and dividends positive, plus a terminal mark-to-market flow
// representing unrealized liquidation value, dated now. Flows before `since`
// are excluded (zero value means no filter); the terminal flow always
// remains.
func (e *ReturnEstimator) CashFlows(txs []models.Transaction, instrument string, since time.Time, markValue float64, now time.Time) []models.CashFlow {
	var flows []models.CashFlow
	for _, tx := range txs {
		if tx.Instrument != instrument {
			continue
		}
		if !since.IsZero() && tx.Date.Before(since) {
			continue
		}

		var amount float64
		switch tx.Action {
		case models.ActionBuy:
			if tx.HasAmount {
				amount = -math.Abs(tx.Amount.InexactFloat64())
			} else {
				amount = -tx.Price.Mul(tx.Quantity).InexactFloat64()
			}
		case models.ActionSell:
			if tx.HasAmount {
				amount = math.Abs(tx.Amount.InexactFloat64())
			} else {
				amount = tx.Price.Mul(tx.Quantity).InexactFloat64()
			}
		case models.ActionDividend:
			amount = tx.Amount.InexactFloat64()
		default:
			continue
		}
		flows = append(flows, models.CashFlow{Date: tx.Date, Amount: amount})
	}

	sort.SliceStable(flows, func(i, j int) bool {
		return flows[i].Date.Before(flows[j].Date)
	})
	flows = append(flows, models.CashFlow{Date: now, Amount: markValue})
	return flows
}

// TotalReturn is the plain sum of all flows: realized plus unrealized gain.
func (e *ReturnEstimator) TotalReturn(flows []models.CashFlow) float64 {
	var sum float64
	for _, f := range flows {
		sum += f.Amount
	}
	return sum
}

// XIRR solves NPV(r) = sum cf_i / (1+r)^(days_i/365) = 0, with the first
// flow's date as the epoch and a starting guess of 10%.
func (e *ReturnEstimator) XIRR(flows []models.CashFlow) (float64, error) {
	if len(flows) < 2 {
		return 0, ErrInsufficientFlows
	}
	hasNegative, hasPositive := false, false
	for _, f := range flows {
		if f.Amount < 0 {
			hasNegative = true
		}
		if f.Amount > 0 {
			hasPositive = true
		}
	}
	if !hasNegative || !hasPositive {
		return 0, ErrInsufficientFlows
	}

	epoch := flows[0].Date
	years := func(d time.Time) float64 {
		return d.Sub(epoch).Hours() / 24.0 / daysPerYear
	}
	npv := func(r float64) float64 {
		s := 0.0
		for _, f := range flows {
			s += f.Amount / math.Pow(1.0+r, years(f.Date))
		}
		return s
	}
	derivative := func(r float64) float64 {
		return (npv(r+derivativeStep) - npv(r-derivativeStep)) / (2 * derivativeStep)
	}

	r := 0.1
	for i := 0; i < maxIterations; i++ {
		f := npv(r)
		df := derivative(r)
		if math.Abs(df) < flatDerivativeLo {
			return 0, ErrNoConvergence
		}
		next := r - f/df
		if math.IsNaN(next) || math.IsInf(next, 0) {
			return 0, ErrNoConvergence
		}
		if next <= -1 {
			// The discount factor is undefined at or below -100%.
			return 0, ErrNoConvergence
		}
		if math.Abs(next-r) < convergenceTol {
			return next, nil
		}
		r = next
	}
	return 0, ErrNoConvergence
}
