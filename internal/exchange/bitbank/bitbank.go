// Package bitbank adapts the bitbank.cc spot REST and streaming APIs to the
// exchange capability set the grid engine requires.
package bitbank

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"grid_trader/internal/core"
	apperrors "grid_trader/pkg/errors"
	httpclient "grid_trader/pkg/http"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL   = "https://api.bitbank.cc"
	defaultPublicURL = "https://public.bitbank.cc"

	statusFullyFilled        = "FULLY_FILLED"
	statusCancelledUnfilled  = "CANCELED_UNFILLED"
	statusCancelledPartially = "CANCELED_PARTIALLY_FILLED"
)

// Config holds adapter settings.
type Config struct {
	Pair          string
	APIKey        string
	SecretKey     string
	BaseURL       string
	PublicURL     string
	Fee           decimal.Decimal
	MaxOrderCount int
	Precision     core.Precision
	Timeout       time.Duration
	RatePerSecond float64
}

// Adapter implements core.IExchange against bitbank. Prices and amounts are
// snapped to the configured precision before they hit the wire.
type Adapter struct {
	cfg     Config
	private *httpclient.Client
	public  *httpclient.Client
	limiter *rate.Limiter
	logger  core.ILogger

	stream *TickerStream
}

// New builds an adapter. The stream is optional; attach one with UseStream.
func New(cfg Config, logger core.ILogger) *Adapter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.PublicURL == "" {
		cfg.PublicURL = defaultPublicURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RatePerSecond == 0 {
		cfg.RatePerSecond = 5
	}
	if cfg.MaxOrderCount == 0 {
		cfg.MaxOrderCount = 30
	}

	return &Adapter{
		cfg:     cfg,
		private: httpclient.NewClient(cfg.BaseURL, cfg.Timeout, newSigner(cfg.APIKey, cfg.SecretKey)),
		public:  httpclient.NewClient(cfg.PublicURL, cfg.Timeout, nil),
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1),
		logger:  logger.WithField("component", "bitbank"),
	}
}

// UseStream serves ticker reads from the stream while it is fresh, falling
// back to REST otherwise.
func (a *Adapter) UseStream(stream *TickerStream) {
	a.stream = stream
}

func (a *Adapter) Name() string              { return "bitbank" }
func (a *Adapter) Pair() string              { return a.cfg.Pair }
func (a *Adapter) Fee() decimal.Decimal      { return a.cfg.Fee }
func (a *Adapter) MaxOrderCount() int        { return a.cfg.MaxOrderCount }
func (a *Adapter) Precision() core.Precision { return a.cfg.Precision }

// GetLatestPrices returns the current ticker.
func (a *Adapter) GetLatestPrices(ctx context.Context) (*core.PriceSnapshot, error) {
	if a.stream != nil {
		if snap, ok := a.stream.Latest(); ok {
			return snap, nil
		}
	}

	body, err := a.get(ctx, a.public, "/"+a.cfg.Pair+"/ticker")
	if err != nil {
		return nil, err
	}

	var ticker tickerData
	if err := json.Unmarshal(body, &ticker); err != nil {
		return nil, fmt.Errorf("failed to decode ticker: %w", err)
	}
	return snapshotFromTicker(ticker), nil
}

func snapshotFromTicker(t tickerData) *core.PriceSnapshot {
	return &core.PriceSnapshot{
		Price:    t.Last,
		BestAsk:  t.Sell,
		BestBid:  t.Buy,
		Spread:   t.Sell.Sub(t.Buy),
		MidPrice: t.Sell.Add(t.Buy).Div(decimal.NewFromInt(2)),
	}
}

// GetAssets returns the free balances of the traded pair.
func (a *Adapter) GetAssets(ctx context.Context) (*core.AssetBalance, error) {
	body, err := a.get(ctx, a.private, "/v1/user/assets")
	if err != nil {
		return nil, err
	}

	var assets assetsData
	if err := json.Unmarshal(body, &assets); err != nil {
		return nil, fmt.Errorf("failed to decode assets: %w", err)
	}

	base, quote, err := splitPair(a.cfg.Pair)
	if err != nil {
		return nil, err
	}

	balance := &core.AssetBalance{}
	for _, entry := range assets.Assets {
		switch entry.Asset {
		case base:
			balance.BaseAmount = entry.FreeAmount
		case quote:
			balance.QuoteAmount = entry.FreeAmount
		}
	}
	return balance, nil
}

// CreateOrder submits a limit order and assigns ExchangeID and OrderedAt on
// success. An order accepted but immediately cancelled by the venue is
// reported as an invalid price.
func (a *Adapter) CreateOrder(ctx context.Context, order *core.Order) error {
	req := createOrderRequest{
		Pair:     a.cfg.Pair,
		Amount:   a.cfg.Precision.RoundAmount(order.Amount).String(),
		Price:    a.cfg.Precision.RoundPrice(order.Price).String(),
		Side:     string(order.Side),
		Type:     string(order.Type),
		PostOnly: order.PostOnly,
	}

	body, err := a.post(ctx, "/v1/user/spot/order", req)
	if err != nil {
		return err
	}

	var data orderData
	if err := json.Unmarshal(body, &data); err != nil {
		return fmt.Errorf("failed to decode order response: %w", err)
	}
	if data.Status == statusCancelledUnfilled || data.Status == statusCancelledPartially {
		return fmt.Errorf("order %d cancelled on submit: %w", data.OrderID, apperrors.ErrInvalidPrice)
	}

	order.ExchangeID = data.OrderID
	order.OrderedAt = millisToTime(data.OrderedAt)
	a.logger.Debug("Order created", "order_id", data.OrderID, "price", req.Price, "side", req.Side)
	return nil
}

// CancelOrders batch-cancels the given ids.
func (a *Adapter) CancelOrders(ctx context.Context, orderIDs []int64) ([]core.CancelResult, error) {
	if len(orderIDs) == 0 {
		return nil, nil
	}

	body, err := a.post(ctx, "/v1/user/spot/cancel_orders", orderIDsRequest{
		Pair:     a.cfg.Pair,
		OrderIDs: orderIDs,
	})
	if err != nil {
		return nil, err
	}

	var data ordersData
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("failed to decode cancel response: %w", err)
	}

	results := make([]core.CancelResult, 0, len(data.Orders))
	for _, o := range data.Orders {
		results = append(results, core.CancelResult{OrderID: o.OrderID, Status: o.Status})
	}
	return results, nil
}

// GetOrdersData fetches the batch status of the given ids.
func (a *Adapter) GetOrdersData(ctx context.Context, orderIDs []int64) ([]core.OrderData, error) {
	if len(orderIDs) == 0 {
		return nil, nil
	}

	body, err := a.post(ctx, "/v1/user/spot/orders_info", orderIDsRequest{
		Pair:     a.cfg.Pair,
		OrderIDs: orderIDs,
	})
	if err != nil {
		return nil, err
	}

	var data ordersData
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("failed to decode orders info: %w", err)
	}

	out := make([]core.OrderData, 0, len(data.Orders))
	for _, o := range data.Orders {
		out = append(out, core.OrderData{
			OrderID:      o.OrderID,
			Status:       o.Status,
			AveragePrice: o.AveragePrice,
			ExecutedQty:  o.ExecutedAmount,
			RemainingQty: o.RemainingAmount,
			OrderedAt:    millisToTime(o.OrderedAt),
			ExecutedAt:   millisToTime(o.ExecutedAt),
		})
	}
	return out, nil
}

func (a *Adapter) IsOrderFullyFilled(data core.OrderData) bool {
	return data.Status == statusFullyFilled
}

func (a *Adapter) IsOrderCancelled(data core.OrderData) bool {
	return data.Status == statusCancelledUnfilled || data.Status == statusCancelledPartially
}

// IsKnownError reports whether the engine may swallow the error and retry on
// the next sync.
func (a *Adapter) IsKnownError(err error) bool {
	return apperrors.Transient(err)
}

func (a *Adapter) get(ctx context.Context, client *httpclient.Client, path string) ([]byte, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	body, err := client.Get(ctx, path, nil)
	if err != nil {
		return nil, a.classifyTransport(err)
	}
	return unwrapEnvelope(body)
}

func (a *Adapter) post(ctx context.Context, path string, payload any) ([]byte, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	body, err := a.private.Post(ctx, path, payload)
	if err != nil {
		return nil, a.classifyTransport(err)
	}
	return unwrapEnvelope(body)
}

// classifyTransport maps transport-level failures onto the standardized set.
func (a *Adapter) classifyTransport(err error) error {
	var apiErr *httpclient.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == 429:
			return fmt.Errorf("%w: %v", apperrors.ErrRateLimitExceeded, err)
		case apiErr.StatusCode >= 500:
			return fmt.Errorf("%w: %v", apperrors.ErrExchangeMaintenance, err)
		default:
			return err
		}
	}
	return fmt.Errorf("%w: %v", apperrors.ErrNetwork, err)
}

// unwrapEnvelope strips the success wrapper and maps venue error codes.
func unwrapEnvelope(body []byte) ([]byte, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("failed to decode response envelope: %w", err)
	}
	if env.Success != 1 {
		var errData errorData
		if err := json.Unmarshal(env.Data, &errData); err != nil {
			return nil, fmt.Errorf("request failed with opaque error body")
		}
		return nil, newAPIError(errData.Code)
	}
	return env.Data, nil
}

func splitPair(pair string) (base, quote string, err error) {
	parts := strings.SplitN(pair, "_", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("malformed pair %q, want base_quote", pair)
	}
	return parts[0], parts[1], nil
}
