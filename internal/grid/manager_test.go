package grid

import (
	"testing"

	"grid_trader/internal/core"
	"grid_trader/pkg/logging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T, cfg ManagerConfig) *OrderManager {
	t.Helper()
	m, err := NewOrderManager(cfg, logging.NewNop())
	require.NoError(t, err)
	return m
}

// submitAll walks every ToCreate order into Created with sequential ids.
func submitAll(t *testing.T, m *OrderManager, nextID *int64) {
	t.Helper()
	for _, o := range m.OrdersToCreate() {
		*nextID++
		o.ExchangeID = *nextID
		require.NoError(t, m.OrderCreateOK(o))
	}
}

func TestManagerConfigValidate(t *testing.T) {
	cfg := testStackConfig()
	require.NoError(t, cfg.Validate())

	bad := cfg
	bad.OrderLimit = 7
	assert.Error(t, bad.Validate())

	bad = cfg
	bad.OrderLimit = cfg.GridNum + 2
	assert.Error(t, bad.Validate())

	bad = cfg
	bad.BalanceThreshold = cfg.OrderLimit/2 + 1
	assert.Error(t, bad.Validate())
}

func TestInitStacks(t *testing.T) {
	m := newTestManager(t, testStackConfig())
	require.NoError(t, m.InitStacks(d("10000")))

	assert.Equal(t, []string{"9900", "9800", "9700"}, prices(m.BuyStack().orders))
	assert.Equal(t, []string{"10100", "10200", "10300"}, prices(m.SellStack().orders))
	assert.Error(t, m.InitStacks(d("10000")), "second init must fail")

	// Side purity.
	for _, o := range m.BuyStack().orders {
		assert.Equal(t, core.Buy, o.Side)
	}
	for _, o := range m.SellStack().orders {
		assert.Equal(t, core.Sell, o.Side)
	}
}

func TestPairingFromSellFill(t *testing.T) {
	m := newTestManager(t, testStackConfig())
	require.NoError(t, m.InitStacks(d("10000")))
	var nextID int64
	submitAll(t, m, &nextID)

	// Best sell at 10100 fills.
	filled := m.SellStack().BestOrder(FilterAll)
	require.NoError(t, m.MarkOrderOnTraded(core.OrderData{OrderID: filled.ExchangeID}))

	counter := m.RefillAtOppositePosition()
	assert.Equal(t, 1, counter.TotalOf(core.Buy))
	assert.Equal(t, 0, counter.TotalOf(core.Sell))
	assert.Equal(t, "10000", m.BuyStack().BestOrder(FilterExpected).Price.String())
}

func TestPairingPriorityWhenBothSidesFill(t *testing.T) {
	m := newTestManager(t, testStackConfig())
	require.NoError(t, m.InitStacks(d("10000")))
	var nextID int64
	submitAll(t, m, &nextID)

	filledBuy := m.BuyStack().BestOrder(FilterAll)
	filledSell := m.SellStack().BestOrder(FilterAll)
	require.NoError(t, m.MarkOrderOnTraded(core.OrderData{OrderID: filledBuy.ExchangeID}))
	require.NoError(t, m.MarkOrderOnTraded(core.OrderData{OrderID: filledSell.ExchangeID}))

	counter := m.RefillAtOppositePosition()

	// Buy fills pair new sells; the sell fill is left unpaired this cycle.
	assert.Equal(t, 1, counter.TotalOf(core.Sell))
	assert.Equal(t, 0, counter.TotalOf(core.Buy))
	assert.Equal(t, "10000", m.SellStack().BestOrder(FilterExpected).Price.String())
}

func TestPairingLaw(t *testing.T) {
	m := newTestManager(t, testStackConfig())
	require.NoError(t, m.InitStacks(d("10000")))
	var nextID int64
	submitAll(t, m, &nextID)

	for _, o := range m.BuyStack().ActiveOrders() {
		require.NoError(t, m.MarkOrderOnTraded(core.OrderData{OrderID: o.ExchangeID}))
	}
	k := len(m.BuyStack().OnTradedOrders())

	counter := m.RefillAtOppositePosition()
	assert.Equal(t, k, counter.TotalOf(core.Sell))
}

func TestBalanceStacks(t *testing.T) {
	cfg := testStackConfig()
	cfg.OrderLimit = 4
	cfg.BalanceThreshold = 1
	m := newTestManager(t, cfg)
	require.NoError(t, m.InitStacks(d("10000")))
	var nextID int64
	submitAll(t, m, &nextID)

	// Best sell fills and pairs a buy: buy side 3, sell side 1.
	filled := m.SellStack().BestOrder(FilterAll)
	require.NoError(t, m.MarkOrderOnTraded(core.OrderData{OrderID: filled.ExchangeID}))
	m.RefillAtOppositePosition()
	require.Equal(t, 3, m.BuyStack().ExpectedSize())
	require.Equal(t, 1, m.SellStack().ExpectedSize())

	counter := m.BalanceStacks()
	assert.Equal(t, 1, counter.TotalOf(core.Sell))
	assert.Equal(t, 2, m.BuyStack().ExpectedSize())
	assert.Equal(t, 2, m.SellStack().ExpectedSize())
	assert.Equal(t, "10300", m.SellStack().WorstOrder(FilterExpected).Price.String())
	assert.Len(t, m.OrdersToCancel(), 1)
}

func TestBalanceStacksNoTrigger(t *testing.T) {
	m := newTestManager(t, testStackConfig())
	require.NoError(t, m.InitStacks(d("10000")))

	counter := m.BalanceStacks()
	assert.Equal(t, 0, counter.Total())
	assert.Equal(t, 3, m.BuyStack().ExpectedSize())
	assert.Equal(t, 3, m.SellStack().ExpectedSize())
}

func TestOrdersTradedClearsIndex(t *testing.T) {
	m := newTestManager(t, testStackConfig())
	require.NoError(t, m.InitStacks(d("10000")))
	var nextID int64
	submitAll(t, m, &nextID)

	filled := m.BuyStack().BestOrder(FilterAll)
	require.NoError(t, m.MarkOrderOnTraded(core.OrderData{OrderID: filled.ExchangeID}))

	committed := m.OrdersTraded()
	require.Len(t, committed, 1)
	assert.Nil(t, m.GetOrder(filled.ExchangeID))
	assert.Equal(t, 0, m.OnTradedCount())
}

func TestMarkOnTradedUnknownOrder(t *testing.T) {
	m := newTestManager(t, testStackConfig())
	require.NoError(t, m.InitStacks(d("10000")))
	assert.Error(t, m.MarkOrderOnTraded(core.OrderData{OrderID: 999}))
}

func TestOrderForceCancelled(t *testing.T) {
	m := newTestManager(t, testStackConfig())
	require.NoError(t, m.InitStacks(d("10000")))
	var nextID int64
	submitAll(t, m, &nextID)

	victim := m.BuyStack().WorstOrder(FilterAll)
	m.OrderForceCancelled(victim.ExchangeID)

	assert.Nil(t, m.GetOrder(victim.ExchangeID))
	assert.Equal(t, 2, m.BuyStack().Size())
	assert.Equal(t, core.Cancelled, victim.Status)
}

func TestOrderCancelOK(t *testing.T) {
	m := newTestManager(t, testStackConfig())
	require.NoError(t, m.InitStacks(d("10000")))
	var nextID int64
	submitAll(t, m, &nextID)

	victim := m.BuyStack().WorstOrder(FilterAll)
	require.NoError(t, victim.MarkCancel())
	require.NoError(t, m.OrderCancelOK(victim.ExchangeID))

	assert.Nil(t, m.GetOrder(victim.ExchangeID))
	assert.Error(t, m.OrderCancelOK(victim.ExchangeID), "unknown id after removal")
}

func TestCancelAllReturnsResting(t *testing.T) {
	m := newTestManager(t, testStackConfig())
	require.NoError(t, m.InitStacks(d("10000")))
	var nextID int64
	submitAll(t, m, &nextID)

	// One extra local order that never reached the exchange.
	m.BuyStack().RefillOrders(1, core.Outer)

	resting := m.CancelAll()
	assert.Len(t, resting, 6)
	assert.Equal(t, 0, m.BuyStack().Size())
	assert.Equal(t, 0, m.SellStack().Size())
	assert.Empty(t, m.ActiveOrderIDs())
}
