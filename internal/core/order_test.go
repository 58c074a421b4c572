package core

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOrder(side OrderSide) *Order {
	return NewOrder("btc_jpy", side,
		decimal.RequireFromString("100"), decimal.RequireFromString("2"))
}

func TestOrderLifecycleNormalPath(t *testing.T) {
	o := newTestOrder(Buy)
	assert.Equal(t, ToCreate, o.Status)
	assert.True(t, o.Expected())
	assert.False(t, o.Active())

	// Acceptance requires an exchange identity.
	assert.Error(t, o.CreateOK())

	o.ExchangeID = 42
	o.OrderedAt = time.Now()
	require.NoError(t, o.CreateOK())
	assert.True(t, o.Active())

	require.NoError(t, o.MarkOnTraded(time.Now()))
	assert.False(t, o.Expected())
	assert.False(t, o.Active())

	require.NoError(t, o.TradeOK())
	assert.True(t, o.Status.Terminal())
	assert.Error(t, o.TradeOK())
}

func TestOrderCancelPaths(t *testing.T) {
	// A never-submitted order cancels immediately.
	local := newTestOrder(Sell)
	require.NoError(t, local.MarkCancel())
	assert.Equal(t, Cancelled, local.Status)

	// A resting order goes through ToCancel.
	resting := newTestOrder(Sell)
	resting.ExchangeID = 7
	require.NoError(t, resting.CreateOK())
	require.NoError(t, resting.MarkCancel())
	assert.Equal(t, ToCancel, resting.Status)
	require.NoError(t, resting.CancelOK())
	assert.Equal(t, Cancelled, resting.Status)

	// Cancelled is terminal.
	assert.Error(t, resting.MarkCancel())
}

func TestOrderForceCancelFromAnyState(t *testing.T) {
	o := newTestOrder(Buy)
	o.ExchangeID = 1
	require.NoError(t, o.CreateOK())
	require.NoError(t, o.MarkOnTraded(time.Now()))

	o.ForceCancel()
	assert.Equal(t, Cancelled, o.Status)
}

func TestOppositePrice(t *testing.T) {
	interval := decimal.RequireFromString("10")

	buy := newTestOrder(Buy)
	assert.Equal(t, "110", buy.OppositePrice(interval).String())

	sell := newTestOrder(Sell)
	assert.Equal(t, "90", sell.OppositePrice(interval).String())
}

func TestOrderCost(t *testing.T) {
	o := newTestOrder(Buy)
	cost := o.Cost(Precision{Price: 4, Amount: 4})
	assert.Equal(t, "200", cost.String())
}

func TestLocalIDsUnique(t *testing.T) {
	a := newTestOrder(Buy)
	b := newTestOrder(Buy)
	assert.NotEqual(t, a.LocalID, b.LocalID)
}
