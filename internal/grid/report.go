package grid

import (
	"fmt"
	"strings"
	"time"

	"grid_trader/internal/core"

	"github.com/shopspring/decimal"
)

const hoursPerYear = 24 * 365

// ExecutionReport is a pure summary of the fills so far: how many orders
// matched into round trips, the value they turned over, and the yield bounds
// implied by the parameter's earn rates. No side effects.
type ExecutionReport struct {
	Pair     string
	Duration time.Duration

	BuyCount   int
	SellCount  int
	Matched    int
	ExtraCount int
	ExtraSide  string

	TradedValue          decimal.Decimal
	LowestActualEarning  decimal.Decimal
	HighestActualEarning decimal.Decimal
	InitValue            decimal.Decimal
	LowestEarnRate       decimal.Decimal
	HighestEarnRate      decimal.Decimal
	LowestYearlyRate     decimal.Decimal
	HighestYearlyRate    decimal.Decimal

	AvgHoldPrice    decimal.Decimal
	ExtraHoldAmount decimal.Decimal
	ExtraHoldCost   decimal.Decimal
}

// NewExecutionReport derives the report from the parameter, the run-total
// counter, and the elapsed run time.
func NewExecutionReport(param *Parameter, counter *OrderCounter, duration time.Duration) *ExecutionReport {
	buyN := counter.TotalOf(core.Buy)
	sellN := counter.TotalOf(core.Sell)

	r := &ExecutionReport{
		Pair:      param.Pair,
		Duration:  duration,
		BuyCount:  buyN,
		SellCount: sellN,
		Matched:   min(buyN, sellN),
		InitValue: param.InitValue(),
	}

	r.ExtraCount = abs(buyN - sellN)
	sign := decimal.NewFromInt(-1)
	switch {
	case sellN > buyN:
		r.ExtraSide = string(core.Sell)
		sign = decimal.NewFromInt(1)
	case buyN > sellN:
		r.ExtraSide = string(core.Buy)
	default:
		r.ExtraSide = "equal"
	}

	matched := decimal.NewFromInt(int64(r.Matched))
	r.TradedValue = param.UnitAmount.Mul(param.InitPrice).Mul(matched)
	r.LowestActualEarning = param.LowestEarnRatePerGrid.Mul(r.TradedValue)
	r.HighestActualEarning = param.HighestEarnRatePerGrid.Mul(r.TradedValue)

	if r.InitValue.IsPositive() {
		r.LowestEarnRate = r.LowestActualEarning.Div(r.InitValue)
		r.HighestEarnRate = r.HighestActualEarning.Div(r.InitValue)
	}
	if hours := duration.Hours(); hours > 0 {
		scale := decimal.NewFromFloat(hoursPerYear / hours)
		r.LowestYearlyRate = r.LowestEarnRate.Mul(scale)
		r.HighestYearlyRate = r.HighestEarnRate.Mul(scale)
	}

	extra := decimal.NewFromInt(int64(r.ExtraCount))
	r.AvgHoldPrice = param.InitPrice.Add(sign.Mul(extra).Mul(param.PriceInterval).Div(two))
	r.ExtraHoldAmount = param.UnitAmount.Mul(extra)
	r.ExtraHoldCost = r.AvgHoldPrice.Mul(r.ExtraHoldAmount)

	return r
}

func pct(d decimal.Decimal) string {
	return d.Mul(decimal.NewFromInt(100)).Round(4).String() + "%"
}

// Render formats the report as a text block for the notifier.
func (r *ExecutionReport) Render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Execution report [%s]\n", r.Pair)
	fmt.Fprintf(&b, "  duration: %s\n", r.Duration.Round(time.Second))
	fmt.Fprintf(&b, "  filled: buy=%d sell=%d matched=%d\n", r.BuyCount, r.SellCount, r.Matched)
	fmt.Fprintf(&b, "  traded value: %s\n", r.TradedValue)
	fmt.Fprintf(&b, "  earnings: %s ~ %s (%s ~ %s)\n",
		r.LowestActualEarning.Round(8), r.HighestActualEarning.Round(8),
		pct(r.LowestEarnRate), pct(r.HighestEarnRate))
	fmt.Fprintf(&b, "  yearly rate: %s ~ %s\n", pct(r.LowestYearlyRate), pct(r.HighestYearlyRate))
	if r.ExtraCount > 0 {
		fmt.Fprintf(&b, "  extra holds: %d %s orders, amount=%s avg_price=%s cost=%s\n",
			r.ExtraCount, r.ExtraSide, r.ExtraHoldAmount, r.AvgHoldPrice, r.ExtraHoldCost.Round(8))
	}
	return b.String()
}
