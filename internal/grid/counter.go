package grid

import (
	"fmt"

	"grid_trader/internal/core"
)

// OrderCounter tallies per-side order events during one sync cycle. It is a
// plain value type; zero value is ready to use.
type OrderCounter struct {
	counts map[core.OrderSide]int
}

// NewOrderCounter returns an empty counter.
func NewOrderCounter() *OrderCounter {
	return &OrderCounter{counts: make(map[core.OrderSide]int)}
}

// Add increments the count for one side.
func (c *OrderCounter) Add(side core.OrderSide, n int) {
	if c.counts == nil {
		c.counts = make(map[core.OrderSide]int)
	}
	c.counts[side] += n
}

// TotalOf returns the count for one side.
func (c *OrderCounter) TotalOf(side core.OrderSide) int {
	return c.counts[side]
}

// Total returns the count across both sides.
func (c *OrderCounter) Total() int {
	return c.counts[core.Buy] + c.counts[core.Sell]
}

// Merge adds another counter into this one.
func (c *OrderCounter) Merge(other *OrderCounter) {
	if other == nil {
		return
	}
	for side, n := range other.counts {
		c.Add(side, n)
	}
}

// Preview renders the counter as "+buys/-sells" for log lines.
func (c *OrderCounter) Preview() string {
	return fmt.Sprintf("+%d/-%d", c.counts[core.Buy], c.counts[core.Sell])
}
