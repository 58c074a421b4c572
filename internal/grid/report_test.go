package grid

import (
	"testing"
	"time"

	"grid_trader/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reportParam(t *testing.T) *Parameter {
	t.Helper()
	p, err := CalcParamsByInterval("btc_jpy",
		d("10"), d("700"), d("100"), d("10"), 10, d("-0.0002"), testPrec)
	require.NoError(t, err)
	return p
}

func TestExecutionReportMatched(t *testing.T) {
	counter := NewOrderCounter()
	counter.Add(core.Buy, 3)
	counter.Add(core.Sell, 5)

	r := NewExecutionReport(reportParam(t), counter, 12*time.Hour)

	assert.Equal(t, 3, r.Matched)
	assert.Equal(t, 2, r.ExtraCount)
	assert.Equal(t, "sell", r.ExtraSide)

	// traded_value = unit * init_price * matched = 2 * 100 * 3.
	assert.True(t, r.TradedValue.Equal(d("600")), "traded value = %s", r.TradedValue)
	// init_value = 700 + 10 * 100.
	assert.True(t, r.InitValue.Equal(d("1700")))
	assert.True(t, r.HighestActualEarning.Equal(d("0.2004").Mul(d("600"))))

	// yearly = rate * (24*365 / 12).
	expectedYearly := r.HighestEarnRate.Mul(d("730"))
	assert.True(t, r.HighestYearlyRate.Equal(expectedYearly),
		"yearly = %s, want %s", r.HighestYearlyRate, expectedYearly)

	// avg_hold_price = 100 + 2*10/2 with sell surplus.
	assert.True(t, r.AvgHoldPrice.Equal(d("110")), "avg hold = %s", r.AvgHoldPrice)
	assert.True(t, r.ExtraHoldAmount.Equal(d("4")))
	assert.True(t, r.ExtraHoldCost.Equal(d("440")))
}

func TestExecutionReportBuySurplus(t *testing.T) {
	counter := NewOrderCounter()
	counter.Add(core.Buy, 4)
	counter.Add(core.Sell, 2)

	r := NewExecutionReport(reportParam(t), counter, time.Hour)

	assert.Equal(t, "buy", r.ExtraSide)
	// Buy surplus pulls the average hold price below init.
	assert.True(t, r.AvgHoldPrice.Equal(d("90")), "avg hold = %s", r.AvgHoldPrice)
}

func TestExecutionReportEmptyRun(t *testing.T) {
	r := NewExecutionReport(reportParam(t), NewOrderCounter(), 0)

	assert.Equal(t, 0, r.Matched)
	assert.Equal(t, "equal", r.ExtraSide)
	assert.True(t, r.TradedValue.IsZero())
	assert.True(t, r.LowestYearlyRate.IsZero())
	assert.NotEmpty(t, r.Render())
}

func TestExecutionReportRender(t *testing.T) {
	counter := NewOrderCounter()
	counter.Add(core.Buy, 1)
	counter.Add(core.Sell, 1)

	text := NewExecutionReport(reportParam(t), counter, time.Hour).Render()
	assert.Contains(t, text, "btc_jpy")
	assert.Contains(t, text, "matched=1")
}

func TestOrderCounter(t *testing.T) {
	c := NewOrderCounter()
	c.Add(core.Buy, 2)
	c.Add(core.Sell, 1)
	assert.Equal(t, 3, c.Total())
	assert.Equal(t, "+2/-1", c.Preview())

	other := NewOrderCounter()
	other.Add(core.Sell, 4)
	c.Merge(other)
	assert.Equal(t, 5, c.TotalOf(core.Sell))
}
