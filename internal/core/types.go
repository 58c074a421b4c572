// Package core defines the shared types and interfaces of the grid trader.
package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderSide is the side of a limit order.
type OrderSide string

const (
	Buy  OrderSide = "buy"
	Sell OrderSide = "sell"
)

// Opposite returns the other side.
func (s OrderSide) Opposite() OrderSide {
	if s == Buy {
		return Sell
	}
	return Buy
}

// OrderStatus is the lifecycle state of a local order.
//
// Normal path: ToCreate -> Created -> OnTraded -> Traded.
// Cancellation: Created -> ToCancel -> Cancelled, or a force transition to
// Cancelled from any state for orders that disappeared outside our control.
type OrderStatus int

const (
	ToCreate OrderStatus = iota
	Created
	OnTraded
	Traded
	ToCancel
	Cancelled
)

func (s OrderStatus) String() string {
	switch s {
	case ToCreate:
		return "ToCreate"
	case Created:
		return "Created"
	case OnTraded:
		return "OnTraded"
	case Traded:
		return "Traded"
	case ToCancel:
		return "ToCancel"
	case Cancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// Terminal reports whether no further transition is allowed.
func (s OrderStatus) Terminal() bool {
	return s == Traded || s == Cancelled
}

// OrderType is the exchange order type. The grid only ever rests limit orders.
type OrderType string

const (
	Limit OrderType = "limit"
)

// Direction selects which way a stack operation walks the grid relative to
// the grid center: inner is toward the current price, outer is away from it.
type Direction int

const (
	Inner Direction = iota
	Outer
)

func (d Direction) String() string {
	if d == Inner {
		return "inner"
	}
	return "outer"
}

// Precision carries the decimal places configured for a pair. It is injected
// on construction; there is no process-wide precision state.
type Precision struct {
	Price  int32
	Amount int32
}

// RoundPrice rounds p to the configured price precision.
func (pr Precision) RoundPrice(p decimal.Decimal) decimal.Decimal {
	return p.Round(pr.Price)
}

// RoundAmount rounds a to the configured amount precision.
func (pr Precision) RoundAmount(a decimal.Decimal) decimal.Decimal {
	return a.Round(pr.Amount)
}

// PriceSnapshot is one ticker observation from the exchange.
type PriceSnapshot struct {
	Price    decimal.Decimal
	BestAsk  decimal.Decimal
	BestBid  decimal.Decimal
	Spread   decimal.Decimal
	MidPrice decimal.Decimal
}

// AssetBalance is the free balance of the traded pair.
type AssetBalance struct {
	BaseAmount  decimal.Decimal
	QuoteAmount decimal.Decimal
}

// OrderData is one record from the exchange's batch order-status endpoint.
// Status is the exchange's own status string; the adapter classifies it.
type OrderData struct {
	OrderID      int64
	Status       string
	AveragePrice decimal.Decimal
	ExecutedQty  decimal.Decimal
	RemainingQty decimal.Decimal
	OrderedAt    time.Time
	ExecutedAt   time.Time
}

// CancelResult is one record from the exchange's batch cancel endpoint.
type CancelResult struct {
	OrderID int64
	Status  string
}

// RunnerRecord is the per-run document persisted to the state store.
type RunnerRecord struct {
	UID       string
	Pair      string
	User      string
	Exchange  string
	Status    string
	StartedAt time.Time
	Param     map[string]any
}

// OrderRecord is the per-order document persisted to the state store.
type OrderRecord struct {
	OrderID   int64
	Pair      string
	Side      string
	Price     decimal.Decimal
	Amount    decimal.Decimal
	Status    string
	OrderedAt time.Time
}
