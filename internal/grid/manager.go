package grid

import (
	"fmt"

	"grid_trader/internal/core"

	"github.com/shopspring/decimal"
)

// ManagerConfig carries the grid geometry shared by both stacks.
type ManagerConfig struct {
	Pair             string
	PriceInterval    decimal.Decimal
	UnitAmount       decimal.Decimal
	GridNum          int
	OrderLimit       int
	BalanceThreshold int
	Precision        core.Precision
}

// Validate checks the geometry invariants.
func (c ManagerConfig) Validate() error {
	if c.Pair == "" {
		return fmt.Errorf("manager config: pair is required")
	}
	if !c.PriceInterval.IsPositive() {
		return fmt.Errorf("manager config: price_interval must be positive, got %s", c.PriceInterval)
	}
	if !c.UnitAmount.IsPositive() {
		return fmt.Errorf("manager config: unit_amount must be positive, got %s", c.UnitAmount)
	}
	if c.GridNum <= 0 || c.GridNum%2 != 0 {
		return fmt.Errorf("manager config: grid_num must be a positive even number, got %d", c.GridNum)
	}
	if c.OrderLimit <= 0 || c.OrderLimit%2 != 0 {
		return fmt.Errorf("manager config: order_limit must be a positive even number, got %d", c.OrderLimit)
	}
	if c.OrderLimit > c.GridNum {
		return fmt.Errorf("manager config: order_limit %d exceeds grid_num %d", c.OrderLimit, c.GridNum)
	}
	if c.BalanceThreshold < 0 || c.BalanceThreshold > c.OrderLimit/2 {
		return fmt.Errorf("manager config: balance_threshold must be in [0, %d], got %d", c.OrderLimit/2, c.BalanceThreshold)
	}
	return nil
}

// OrderManager owns the two stacks and coordinates pairing and balancing
// between them. It holds no exchange connection; the bot drives it and
// performs all I/O.
type OrderManager struct {
	cfg  ManagerConfig
	buy  *OrderStack
	sell *OrderStack

	// byID indexes submitted orders by exchange id for status updates.
	byID map[int64]*core.Order

	logger core.ILogger
}

// NewOrderManager builds a manager with empty stacks.
func NewOrderManager(cfg ManagerConfig, logger core.ILogger) (*OrderManager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	mgrLogger := logger.WithField("component", "order_manager")
	return &OrderManager{
		cfg:    cfg,
		buy:    newOrderStack(core.Buy, cfg, mgrLogger),
		sell:   newOrderStack(core.Sell, cfg, mgrLogger),
		byID:   make(map[int64]*core.Order),
		logger: mgrLogger,
	}, nil
}

func (m *OrderManager) stackOf(side core.OrderSide) *OrderStack {
	if side == core.Buy {
		return m.buy
	}
	return m.sell
}

// BuyStack exposes the buy side, mainly for reporting and tests.
func (m *OrderManager) BuyStack() *OrderStack { return m.buy }

// SellStack exposes the sell side.
func (m *OrderManager) SellStack() *OrderStack { return m.sell }

// InitStacks seeds both stacks around initPrice. The stacks must be empty.
func (m *OrderManager) InitStacks(initPrice decimal.Decimal) error {
	if m.buy.Size() != 0 || m.sell.Size() != 0 {
		return fmt.Errorf("init stacks: stacks are not empty (buy=%d sell=%d)", m.buy.Size(), m.sell.Size())
	}
	m.buy.PrepareInit(initPrice)
	m.sell.PrepareInit(initPrice)
	m.logger.Info("Stacks initialized",
		"init_price", initPrice,
		"buy_orders", m.buy.Size(),
		"sell_orders", m.sell.Size(),
	)
	return nil
}

// RefillAtOppositePosition performs the pairing step: every order filled this
// sync spawns one order on the opposite side, one grid step toward the
// center. Buy fills take priority; when they produce at least one new sell,
// sell fills are not paired in the same cycle so the grid does not widen on
// both sides of a fast move. Returns the number of new orders per side.
func (m *OrderManager) RefillAtOppositePosition() *OrderCounter {
	counter := NewOrderCounter()

	tradedBuys := m.buy.OnTradedOrders()
	if added := m.sell.RefillByPairing(tradedBuys); added > 0 {
		counter.Add(core.Sell, added)
		return counter
	}

	tradedSells := m.sell.OnTradedOrders()
	counter.Add(core.Buy, m.buy.RefillByPairing(tradedSells))
	return counter
}

// BalanceStacks recenters the grid when one side has drained to the
// threshold: the longer side sheds its outermost orders and the shorter side
// grows outward by the same count, delta = floor(|diff| / 2).
func (m *OrderManager) BalanceStacks() *OrderCounter {
	counter := NewOrderCounter()

	buyN := m.buy.ExpectedSize()
	sellN := m.sell.ExpectedSize()
	if min(buyN, sellN) > m.cfg.BalanceThreshold {
		return counter
	}

	diff := buyN - sellN
	delta := abs(diff) / 2
	if delta == 0 {
		return counter
	}

	longer, shorter := m.buy, m.sell
	if diff < 0 {
		longer, shorter = m.sell, m.buy
	}
	longer.ShrinkOuter(delta)
	counter.Add(shorter.Side(), shorter.RefillOrders(delta, core.Outer))

	m.logger.Info("Stacks balanced",
		"buy_before", buyN,
		"sell_before", sellN,
		"delta", delta,
	)

	if total := m.buy.ExpectedSize() + m.sell.ExpectedSize(); total > m.cfg.OrderLimit {
		m.logger.Warn("Expected orders exceed order limit after balancing",
			"expected", total,
			"order_limit", m.cfg.OrderLimit,
		)
	}
	return counter
}

// MarkOrderOnTraded records a fill reported by the exchange.
func (m *OrderManager) MarkOrderOnTraded(data core.OrderData) error {
	order, ok := m.byID[data.OrderID]
	if !ok {
		return fmt.Errorf("mark on traded: unknown order id %d", data.OrderID)
	}
	if err := order.MarkOnTraded(data.ExecutedAt); err != nil {
		return err
	}
	if !data.AveragePrice.IsZero() {
		order.AveragePrice = data.AveragePrice
	}
	return nil
}

// OrderForceCancelled drops an order that disappeared outside our control.
func (m *OrderManager) OrderForceCancelled(orderID int64) {
	order, ok := m.byID[orderID]
	if !ok {
		return
	}
	order.ForceCancel()
	m.stackOf(order.Side).Remove(order)
	delete(m.byID, orderID)
	m.logger.Warn("Order cancelled outside our control", "order", order.String())
}

// OrdersTraded commits all OnTraded orders on both stacks and returns them.
// Must run after pairing so fills stay visible to RefillAtOppositePosition.
func (m *OrderManager) OrdersTraded() []*core.Order {
	committed := append(m.buy.OrdersTraded(), m.sell.OrdersTraded()...)
	for _, o := range committed {
		delete(m.byID, o.ExchangeID)
	}
	return committed
}

// OrderCreateOK registers a successful submission. The adapter has already
// assigned ExchangeID and OrderedAt.
func (m *OrderManager) OrderCreateOK(order *core.Order) error {
	if err := order.CreateOK(); err != nil {
		return err
	}
	m.byID[order.ExchangeID] = order
	return nil
}

// OrderCreateFail removes an order the exchange rejected outright.
func (m *OrderManager) OrderCreateFail(order *core.Order) error {
	if err := order.CreateFail(); err != nil {
		return err
	}
	m.stackOf(order.Side).Remove(order)
	return nil
}

// OrderCancelOK commits a confirmed cancellation and drops the order.
func (m *OrderManager) OrderCancelOK(orderID int64) error {
	order, ok := m.byID[orderID]
	if !ok {
		return fmt.Errorf("cancel ok: unknown order id %d", orderID)
	}
	if err := order.CancelOK(); err != nil {
		return err
	}
	m.stackOf(order.Side).Remove(order)
	delete(m.byID, orderID)
	return nil
}

// GetOrder finds a submitted order by exchange id.
func (m *OrderManager) GetOrder(orderID int64) *core.Order {
	return m.byID[orderID]
}

// OrdersToCreate lists pending submissions across both stacks, buys first.
func (m *OrderManager) OrdersToCreate() []*core.Order {
	return append(m.buy.ToCreate(), m.sell.ToCreate()...)
}

// OrdersToCancel lists pending cancellations across both stacks.
func (m *OrderManager) OrdersToCancel() []*core.Order {
	return append(m.buy.ToCancel(), m.sell.ToCancel()...)
}

// ActiveOrders lists orders resting on the exchange.
func (m *OrderManager) ActiveOrders() []*core.Order {
	return append(m.buy.ActiveOrders(), m.sell.ActiveOrders()...)
}

// ActiveOrderIDs lists the exchange ids of resting orders.
func (m *OrderManager) ActiveOrderIDs() []int64 {
	active := m.ActiveOrders()
	ids := make([]int64, 0, len(active))
	for _, o := range active {
		ids = append(ids, o.ExchangeID)
	}
	return ids
}

// OnTradedCount reports fills awaiting commit across both stacks.
func (m *OrderManager) OnTradedCount() int {
	return len(m.buy.OnTradedOrders()) + len(m.sell.OnTradedOrders())
}

// CancelAll force-cancels everything on both stacks, returning the orders
// that were resting on the exchange and still need an exchange-side cancel.
func (m *OrderManager) CancelAll() []*core.Order {
	var resting []*core.Order
	for _, stack := range []*OrderStack{m.buy, m.sell} {
		for _, o := range stack.ActiveOrders() {
			resting = append(resting, o)
		}
		for _, o := range stack.ToCancel() {
			resting = append(resting, o)
		}
		for _, o := range stack.CancelAll() {
			delete(m.byID, o.ExchangeID)
		}
	}
	return resting
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
