// Package grid implements the grid state engine: the per-side order stacks,
// the order manager that reconciles them, and the sizing parameter model.
package grid

import (
	"sort"

	"grid_trader/internal/core"

	"github.com/shopspring/decimal"
)

// StatusFilter selects which orders best/worst lookups consider.
type StatusFilter int

const (
	FilterAll StatusFilter = iota
	// FilterExpected keeps orders that occupy a grid line: ToCreate or Created.
	FilterExpected
)

// OrderStack is the ordered collection of orders for one side of the grid.
//
// The buy stack is sorted by price descending, the sell stack ascending, so
// that in both cases index 0 is the order closest to the grid center.
type OrderStack struct {
	side   core.OrderSide
	orders []*core.Order

	initPrice     decimal.Decimal
	priceInterval decimal.Decimal
	unitAmount    decimal.Decimal
	pair          string
	capacity      int // grid_num / 2
	activeLimit   int // order_limit / 2
	prec          core.Precision

	logger core.ILogger
}

func newOrderStack(side core.OrderSide, cfg ManagerConfig, logger core.ILogger) *OrderStack {
	return &OrderStack{
		side:          side,
		priceInterval: cfg.PriceInterval,
		unitAmount:    cfg.UnitAmount,
		pair:          cfg.Pair,
		capacity:      cfg.GridNum / 2,
		activeLimit:   cfg.OrderLimit / 2,
		prec:          cfg.Precision,
		logger:        logger.WithField("stack", string(side)),
	}
}

// directionFlag maps (side, direction) to the sign of a grid step. Outer on
// the buy side and inner on the sell side both walk downward.
func directionFlag(side core.OrderSide, direction core.Direction) decimal.Decimal {
	if (side == core.Buy && direction == core.Outer) ||
		(side == core.Sell && direction == core.Inner) {
		return decimal.NewFromInt(-1)
	}
	return decimal.NewFromInt(1)
}

// Side returns the side shared by every order in the stack.
func (s *OrderStack) Side() core.OrderSide { return s.side }

func (s *OrderStack) sort() {
	desc := s.side == core.Buy
	sort.SliceStable(s.orders, func(i, j int) bool {
		if desc {
			return s.orders[i].Price.GreaterThan(s.orders[j].Price)
		}
		return s.orders[i].Price.LessThan(s.orders[j].Price)
	})
}

func (s *OrderStack) filtered(filter StatusFilter) []*core.Order {
	if filter == FilterAll {
		return s.orders
	}
	out := make([]*core.Order, 0, len(s.orders))
	for _, o := range s.orders {
		if o.Expected() {
			out = append(out, o)
		}
	}
	return out
}

// BestOrder returns the order closest to the grid center, or nil.
func (s *OrderStack) BestOrder(filter StatusFilter) *core.Order {
	s.sort()
	matched := s.filtered(filter)
	if len(matched) == 0 {
		return nil
	}
	return matched[0]
}

// WorstOrder returns the order farthest from the grid center, or nil.
func (s *OrderStack) WorstOrder(filter StatusFilter) *core.Order {
	s.sort()
	matched := s.filtered(filter)
	if len(matched) == 0 {
		return nil
	}
	return matched[len(matched)-1]
}

// PrepareInit populates the stack with activeLimit orders walking outward
// from initPrice. The grid line at initPrice itself is never occupied.
func (s *OrderStack) PrepareInit(initPrice decimal.Decimal) {
	s.initPrice = initPrice
	for _, price := range s.PriceGrid(initPrice, core.Outer, 1, s.activeLimit) {
		s.orders = append(s.orders, core.NewOrder(s.pair, s.side, price, s.unitAmount))
	}
	s.sort()
}

// PriceGrid returns count grid prices walking from origin in the given
// direction, starting at offset start. Origin is snapped to the nearest grid
// line in the walking direction: ceiling when the step sign is positive,
// floor when negative.
func (s *OrderStack) PriceGrid(origin decimal.Decimal, direction core.Direction, start, count int) []decimal.Decimal {
	flag := directionFlag(s.side, direction)
	base := s.initPrice
	if base.IsZero() {
		base = origin
	}

	k := origin.Sub(base).Div(s.priceInterval)
	if flag.IsPositive() {
		k = k.Ceil()
	} else {
		k = k.Floor()
	}
	snapped := base.Add(k.Mul(s.priceInterval))

	prices := make([]decimal.Decimal, 0, count)
	for i := 0; i < count; i++ {
		step := decimal.NewFromInt(int64(start + i))
		prices = append(prices, s.prec.RoundPrice(snapped.Add(flag.Mul(s.priceInterval).Mul(step))))
	}
	return prices
}

func (s *OrderStack) hasExpectedPrice(price decimal.Decimal) bool {
	for _, o := range s.orders {
		if o.Expected() && o.Price.Equal(price) {
			return true
		}
	}
	return false
}

// RefillOrders appends count new orders extending from the current best
// (inner) or worst (outer) expected order. When no expected orders remain it
// falls back to the best/worst of all orders, which may be OnTraded.
func (s *OrderStack) RefillOrders(count int, direction core.Direction) int {
	if count <= 0 {
		return 0
	}

	var anchor *core.Order
	if direction == core.Inner {
		anchor = s.BestOrder(FilterExpected)
		if anchor == nil {
			anchor = s.BestOrder(FilterAll)
		}
	} else {
		anchor = s.WorstOrder(FilterExpected)
		if anchor == nil {
			anchor = s.WorstOrder(FilterAll)
		}
	}
	if anchor == nil {
		s.logger.Warn("Refill requested on an empty stack", "count", count, "direction", direction.String())
		return 0
	}

	flag := directionFlag(s.side, direction)
	added := 0
	for i := 1; i <= count; i++ {
		price := s.prec.RoundPrice(anchor.Price.Add(flag.Mul(s.priceInterval).Mul(decimal.NewFromInt(int64(i)))))
		if s.hasExpectedPrice(price) {
			s.logger.Warn("Skipping refill at duplicate price", "price", price)
			continue
		}
		s.orders = append(s.orders, core.NewOrder(s.pair, s.side, price, s.unitAmount))
		added++
	}
	s.sort()
	return added
}

// RefillByPairing adds, for each traded order of the opposite side, one order
// on this stack at the traded order's opposite price. Returns the count
// actually added after the duplicate-price guard.
func (s *OrderStack) RefillByPairing(traded []*core.Order) int {
	added := 0
	for _, t := range traded {
		if t.Status != core.OnTraded && t.Status != core.Traded {
			s.logger.Warn("Pairing source is not traded", "order", t.String())
			continue
		}
		price := s.prec.RoundPrice(t.OppositePrice(s.priceInterval))
		if s.hasExpectedPrice(price) {
			s.logger.Warn("Skipping pairing at duplicate price", "price", price)
			continue
		}
		s.orders = append(s.orders, core.NewOrder(s.pair, s.side, price, s.unitAmount))
		added++
	}
	if added > 0 {
		s.sort()
	}
	return added
}

// ShrinkOuter marks the outermost count orders for cancellation. Orders that
// were never submitted are cancelled and dropped immediately.
func (s *OrderStack) ShrinkOuter(count int) {
	if count <= 0 {
		return
	}
	s.sort()
	marked := 0
	for i := len(s.orders) - 1; i >= 0 && marked < count; i-- {
		o := s.orders[i]
		if o.Status != core.Created && o.Status != core.ToCreate {
			continue
		}
		if err := o.MarkCancel(); err != nil {
			s.logger.Warn("Cannot mark order for cancel", "order", o.String(), "error", err)
			continue
		}
		marked++
	}
	s.pruneTerminal()
}

// OnTradedOrders returns orders filled this sync and not yet committed.
func (s *OrderStack) OnTradedOrders() []*core.Order {
	var out []*core.Order
	for _, o := range s.orders {
		if o.Status == core.OnTraded {
			out = append(out, o)
		}
	}
	return out
}

// OrdersTraded commits every OnTraded order to Traded and removes it,
// returning the committed orders.
func (s *OrderStack) OrdersTraded() []*core.Order {
	var committed []*core.Order
	kept := s.orders[:0]
	for _, o := range s.orders {
		if o.Status == core.OnTraded {
			if err := o.TradeOK(); err != nil {
				s.logger.Warn("Trade commit failed", "order", o.String(), "error", err)
				kept = append(kept, o)
				continue
			}
			committed = append(committed, o)
			continue
		}
		kept = append(kept, o)
	}
	s.orders = kept
	return committed
}

// Remove drops an order from the stack regardless of status.
func (s *OrderStack) Remove(order *core.Order) {
	kept := s.orders[:0]
	for _, o := range s.orders {
		if o != order {
			kept = append(kept, o)
		}
	}
	s.orders = kept
}

// CancelAll force-cancels every order and empties the stack, returning the
// cancelled orders.
func (s *OrderStack) CancelAll() []*core.Order {
	cancelled := make([]*core.Order, 0, len(s.orders))
	for _, o := range s.orders {
		o.ForceCancel()
		cancelled = append(cancelled, o)
	}
	s.orders = nil
	return cancelled
}

func (s *OrderStack) pruneTerminal() {
	kept := s.orders[:0]
	for _, o := range s.orders {
		if !o.Status.Terminal() {
			kept = append(kept, o)
		}
	}
	s.orders = kept
}

// ToCreate lists orders waiting for submission, inner first.
func (s *OrderStack) ToCreate() []*core.Order {
	return s.byStatus(core.ToCreate)
}

// ToCancel lists orders waiting for cancellation.
func (s *OrderStack) ToCancel() []*core.Order {
	return s.byStatus(core.ToCancel)
}

// ActiveOrders lists orders resting on the exchange.
func (s *OrderStack) ActiveOrders() []*core.Order {
	return s.byStatus(core.Created)
}

func (s *OrderStack) byStatus(status core.OrderStatus) []*core.Order {
	s.sort()
	var out []*core.Order
	for _, o := range s.orders {
		if o.Status == status {
			out = append(out, o)
		}
	}
	return out
}

// ExpectedSize is the number of orders occupying grid lines.
func (s *OrderStack) ExpectedSize() int {
	n := 0
	for _, o := range s.orders {
		if o.Expected() {
			n++
		}
	}
	return n
}

// Size is the total number of orders currently held, any status.
func (s *OrderStack) Size() int {
	return len(s.orders)
}

// GetOrder finds an order by exchange id.
func (s *OrderStack) GetOrder(orderID int64) *core.Order {
	for _, o := range s.orders {
		if o.ExchangeID == orderID && orderID != 0 {
			return o
		}
	}
	return nil
}
