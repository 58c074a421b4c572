package bitbank

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// envelope is the common response wrapper: success is 1 on the happy path,
// 0 with data.code set on errors.
type envelope struct {
	Success int             `json:"success"`
	Data    json.RawMessage `json:"data"`
}

type errorData struct {
	Code int `json:"code"`
}

type tickerData struct {
	Sell decimal.Decimal `json:"sell"`
	Buy  decimal.Decimal `json:"buy"`
	Last decimal.Decimal `json:"last"`
}

type assetsData struct {
	Assets []assetEntry `json:"assets"`
}

type assetEntry struct {
	Asset      string          `json:"asset"`
	FreeAmount decimal.Decimal `json:"free_amount"`
}

// orderData is the order object shared by the create, info, and cancel
// endpoints. Timestamps are unix milliseconds.
type orderData struct {
	OrderID         int64           `json:"order_id"`
	Pair            string          `json:"pair"`
	Side            string          `json:"side"`
	Type            string          `json:"type"`
	Price           decimal.Decimal `json:"price"`
	StartAmount     decimal.Decimal `json:"start_amount"`
	RemainingAmount decimal.Decimal `json:"remaining_amount"`
	ExecutedAmount  decimal.Decimal `json:"executed_amount"`
	AveragePrice    decimal.Decimal `json:"average_price"`
	OrderedAt       int64           `json:"ordered_at"`
	ExecutedAt      int64           `json:"executed_at"`
	Status          string          `json:"status"`
}

type ordersData struct {
	Orders []orderData `json:"orders"`
}

type createOrderRequest struct {
	Pair     string `json:"pair"`
	Amount   string `json:"amount"`
	Price    string `json:"price"`
	Side     string `json:"side"`
	Type     string `json:"type"`
	PostOnly bool   `json:"post_only"`
}

type orderIDsRequest struct {
	Pair     string  `json:"pair"`
	OrderIDs []int64 `json:"order_ids"`
}

func millisToTime(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
