package core

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
)

var localOrderSeq int64

// Order is a single resting limit order owned by exactly one stack.
//
// LocalID identifies the order before the exchange has accepted it;
// ExchangeID is assigned on acceptance and is the identity used for all
// exchange round-trips afterwards.
type Order struct {
	LocalID    int64
	ExchangeID int64

	Pair     string
	Side     OrderSide
	Type     OrderType
	Price    decimal.Decimal
	Amount   decimal.Decimal
	PostOnly bool

	AveragePrice decimal.Decimal
	OrderedAt    time.Time
	ExecutedAt   time.Time

	Status OrderStatus
}

// NewOrder builds an order in status ToCreate with a fresh local id.
func NewOrder(pair string, side OrderSide, price, amount decimal.Decimal) *Order {
	return &Order{
		LocalID:  atomic.AddInt64(&localOrderSeq, 1),
		Pair:     pair,
		Side:     side,
		Type:     Limit,
		Price:    price,
		Amount:   amount,
		PostOnly: true,
		Status:   ToCreate,
	}
}

// Cost is amount * price rounded to the price precision.
func (o *Order) Cost(pr Precision) decimal.Decimal {
	return pr.RoundPrice(o.Amount.Mul(o.Price))
}

// OppositePrice is the price of the matching order one grid step toward the
// center: above a buy, below a sell.
func (o *Order) OppositePrice(priceInterval decimal.Decimal) decimal.Decimal {
	if o.Side == Buy {
		return o.Price.Add(priceInterval)
	}
	return o.Price.Sub(priceInterval)
}

// Active reports whether the order is resting on the exchange.
func (o *Order) Active() bool {
	return o.Status == Created
}

// Expected reports whether the order counts toward a stack's expected size.
func (o *Order) Expected() bool {
	return o.Status == ToCreate || o.Status == Created
}

// CreateOK records acceptance by the exchange. The adapter assigns
// ExchangeID and OrderedAt before this is called.
func (o *Order) CreateOK() error {
	if o.Status != ToCreate {
		return fmt.Errorf("order %s: create ok from status %s", o, o.Status)
	}
	if o.ExchangeID == 0 {
		return fmt.Errorf("order %s: create ok without exchange id", o)
	}
	o.Status = Created
	return nil
}

// CreateFail records a rejected creation.
func (o *Order) CreateFail() error {
	if o.Status != ToCreate {
		return fmt.Errorf("order %s: create fail from status %s", o, o.Status)
	}
	o.Status = Cancelled
	return nil
}

// MarkCancel schedules a locally decided cancellation. An order that was
// never submitted is cancelled immediately.
func (o *Order) MarkCancel() error {
	switch o.Status {
	case Created:
		o.Status = ToCancel
		return nil
	case ToCreate:
		o.Status = Cancelled
		return nil
	default:
		return fmt.Errorf("order %s: mark cancel from status %s", o, o.Status)
	}
}

// CancelOK commits a cancellation confirmed by the exchange.
func (o *Order) CancelOK() error {
	if o.Status != ToCancel {
		return fmt.Errorf("order %s: cancel ok from status %s", o, o.Status)
	}
	o.Status = Cancelled
	return nil
}

// MarkOnTraded records a fill reported during a sync. The order stays visible
// for pairing until TradeOK commits it.
func (o *Order) MarkOnTraded(executedAt time.Time) error {
	if o.Status != Created {
		return fmt.Errorf("order %s: on traded from status %s", o, o.Status)
	}
	o.ExecutedAt = executedAt
	o.Status = OnTraded
	return nil
}

// TradeOK commits a fill after the sync's pairing step.
func (o *Order) TradeOK() error {
	if o.Status != OnTraded {
		return fmt.Errorf("order %s: trade ok from status %s", o, o.Status)
	}
	o.Status = Traded
	return nil
}

// ForceCancel transitions to Cancelled from any state. Used for orders
// cancelled outside our control.
func (o *Order) ForceCancel() {
	o.Status = Cancelled
}

func (o *Order) String() string {
	return fmt.Sprintf("<Order id[%d/%d] %s p[%s] a[%s] %s>",
		o.LocalID, o.ExchangeID, o.Side, o.Price, o.Amount, o.Status)
}
