package bitbank

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"grid_trader/internal/core"
	apperrors "grid_trader/pkg/errors"
	"grid_trader/pkg/logging"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAdapter(t *testing.T, handler http.Handler) *Adapter {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return New(Config{
		Pair:          "btc_jpy",
		APIKey:        "test-key",
		SecretKey:     "test-secret",
		BaseURL:       srv.URL,
		PublicURL:     srv.URL,
		Fee:           decimal.NewFromFloat(-0.0002),
		MaxOrderCount: 30,
		Precision:     core.Precision{Price: 0, Amount: 4},
		RatePerSecond: 1000,
	}, logging.NewNop())
}

func okEnvelope(data string) string {
	return fmt.Sprintf(`{"success":1,"data":%s}`, data)
}

func errEnvelope(code int) string {
	return fmt.Sprintf(`{"success":0,"data":{"code":%d}}`, code)
}

func TestSignerGetSignature(t *testing.T) {
	s := newSigner("key", "secret")

	req, err := http.NewRequest(http.MethodGet, "https://api.bitbank.cc/v1/user/assets", nil)
	require.NoError(t, err)
	require.NoError(t, s.SignRequest(req, nil))

	nonce := req.Header.Get("ACCESS-NONCE")
	require.NotEmpty(t, nonce)
	assert.Equal(t, "key", req.Header.Get("ACCESS-KEY"))

	mac := hmac.New(sha256.New, []byte("secret"))
	mac.Write([]byte(nonce + "/v1/user/assets"))
	assert.Equal(t, hex.EncodeToString(mac.Sum(nil)), req.Header.Get("ACCESS-SIGNATURE"))
}

func TestSignerPostSignsBody(t *testing.T) {
	s := newSigner("key", "secret")
	body := []byte(`{"pair":"btc_jpy"}`)

	req, err := http.NewRequest(http.MethodPost, "https://api.bitbank.cc/v1/user/spot/order", nil)
	require.NoError(t, err)
	require.NoError(t, s.SignRequest(req, body))

	nonce := req.Header.Get("ACCESS-NONCE")
	mac := hmac.New(sha256.New, []byte("secret"))
	mac.Write([]byte(nonce + string(body)))
	assert.Equal(t, hex.EncodeToString(mac.Sum(nil)), req.Header.Get("ACCESS-SIGNATURE"))
}

func TestSignerNonceIncreases(t *testing.T) {
	s := newSigner("key", "secret")
	first := s.nextNonce()
	second := s.nextNonce()
	assert.Less(t, first, second)
}

func TestGetLatestPricesFromREST(t *testing.T) {
	a := testAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/btc_jpy/ticker", r.URL.Path)
		fmt.Fprint(w, okEnvelope(`{"sell":"102","buy":"100","last":"101"}`))
	}))

	snap, err := a.GetLatestPrices(context.Background())
	require.NoError(t, err)
	assert.True(t, snap.Price.Equal(decimal.NewFromInt(101)))
	assert.True(t, snap.BestAsk.Equal(decimal.NewFromInt(102)))
	assert.True(t, snap.BestBid.Equal(decimal.NewFromInt(100)))
	assert.True(t, snap.Spread.Equal(decimal.NewFromInt(2)))
	assert.True(t, snap.MidPrice.Equal(decimal.NewFromInt(101)))
}

func TestGetAssets(t *testing.T) {
	a := testAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/user/assets", r.URL.Path)
		assert.NotEmpty(t, r.Header.Get("ACCESS-SIGNATURE"))
		fmt.Fprint(w, okEnvelope(`{"assets":[
			{"asset":"btc","free_amount":"0.5"},
			{"asset":"jpy","free_amount":"100000"},
			{"asset":"eth","free_amount":"3"}]}`))
	}))

	balance, err := a.GetAssets(context.Background())
	require.NoError(t, err)
	assert.True(t, balance.BaseAmount.Equal(decimal.NewFromFloat(0.5)))
	assert.True(t, balance.QuoteAmount.Equal(decimal.NewFromInt(100000)))
}

func TestCreateOrderAssignsExchangeID(t *testing.T) {
	a := testAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/user/spot/order", r.URL.Path)

		var req createOrderRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "btc_jpy", req.Pair)
		assert.Equal(t, "buy", req.Side)
		assert.Equal(t, "limit", req.Type)
		assert.Equal(t, "100", req.Price)
		assert.Equal(t, "2", req.Amount)
		assert.True(t, req.PostOnly)

		fmt.Fprint(w, okEnvelope(`{"order_id":42,"status":"UNFILLED","ordered_at":1700000000000}`))
	}))

	order := core.NewOrder("btc_jpy", core.Buy, decimal.NewFromInt(100), decimal.NewFromInt(2))
	require.NoError(t, a.CreateOrder(context.Background(), order))

	assert.Equal(t, int64(42), order.ExchangeID)
	assert.Equal(t, time.UnixMilli(1700000000000), order.OrderedAt)
}

func TestCreateOrderCancelledOnSubmit(t *testing.T) {
	a := testAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, okEnvelope(`{"order_id":43,"status":"CANCELED_UNFILLED","ordered_at":1700000000000}`))
	}))

	order := core.NewOrder("btc_jpy", core.Buy, decimal.NewFromInt(100), decimal.NewFromInt(2))
	err := a.CreateOrder(context.Background(), order)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrInvalidPrice)
	assert.True(t, apperrors.Rejection(err))
	assert.Zero(t, order.ExchangeID)
}

func TestErrorCodeMapping(t *testing.T) {
	cases := []struct {
		code      int
		sentinel  error
		transient bool
	}{
		{10009, apperrors.ErrRateLimitExceeded, true},
		{20003, apperrors.ErrAuthenticationFailed, true},
		{50010, apperrors.ErrOrderNotFound, false},
		{60001, apperrors.ErrInsufficientFunds, false},
		{60003, apperrors.ErrExceedOrderLimit, false},
		{60006, apperrors.ErrInvalidPrice, false},
		{70009, apperrors.ErrExchangeMaintenance, true},
	}

	for _, tc := range cases {
		code := tc.code
		a := testAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, errEnvelope(code))
		}))

		_, err := a.GetAssets(context.Background())
		require.Error(t, err, "code %d", code)
		assert.ErrorIs(t, err, tc.sentinel, "code %d", code)
		assert.Equal(t, tc.transient, a.IsKnownError(err), "code %d", code)
	}
}

func TestUnmappedErrorCodeStaysOpaque(t *testing.T) {
	a := testAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, errEnvelope(99999))
	}))

	_, err := a.GetAssets(context.Background())
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 99999, apiErr.Code)
	assert.False(t, a.IsKnownError(err))
}

func TestCancelOrders(t *testing.T) {
	a := testAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/user/spot/cancel_orders", r.URL.Path)

		var req orderIDsRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []int64{7, 8}, req.OrderIDs)

		fmt.Fprint(w, okEnvelope(`{"orders":[
			{"order_id":7,"status":"CANCELED_UNFILLED"},
			{"order_id":8,"status":"CANCELED_PARTIALLY_FILLED"}]}`))
	}))

	results, err := a.CancelOrders(context.Background(), []int64{7, 8})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, core.CancelResult{OrderID: 7, Status: "CANCELED_UNFILLED"}, results[0])
	assert.True(t, a.IsOrderCancelled(core.OrderData{OrderID: 8, Status: results[1].Status}))
}

func TestCancelOrdersEmptyBatchSkipsCall(t *testing.T) {
	a := testAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected for an empty batch")
	}))

	results, err := a.CancelOrders(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestGetOrdersData(t *testing.T) {
	a := testAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/user/spot/orders_info", r.URL.Path)
		fmt.Fprint(w, okEnvelope(`{"orders":[{
			"order_id":7,
			"status":"FULLY_FILLED",
			"average_price":"101.5",
			"executed_amount":"2",
			"remaining_amount":"0",
			"ordered_at":1700000000000,
			"executed_at":1700000060000}]}`))
	}))

	data, err := a.GetOrdersData(context.Background(), []int64{7})
	require.NoError(t, err)
	require.Len(t, data, 1)

	assert.Equal(t, int64(7), data[0].OrderID)
	assert.True(t, a.IsOrderFullyFilled(data[0]))
	assert.False(t, a.IsOrderCancelled(data[0]))
	assert.True(t, data[0].AveragePrice.Equal(decimal.NewFromFloat(101.5)))
	assert.Equal(t, time.UnixMilli(1700000060000), data[0].ExecutedAt)
}

func TestTransportFailureIsKnown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	a := New(Config{
		Pair:          "btc_jpy",
		BaseURL:       srv.URL,
		PublicURL:     srv.URL,
		RatePerSecond: 1000,
		Timeout:       time.Second,
	}, logging.NewNop())

	_, err := a.GetLatestPrices(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrNetwork)
	assert.True(t, a.IsKnownError(err))
}

func TestSplitPair(t *testing.T) {
	base, quote, err := splitPair("btc_jpy")
	require.NoError(t, err)
	assert.Equal(t, "btc", base)
	assert.Equal(t, "jpy", quote)

	_, _, err = splitPair("btcjpy")
	assert.Error(t, err)
}

func TestUnwrapEnvelopeBadBody(t *testing.T) {
	_, err := unwrapEnvelope([]byte("not json"))
	assert.Error(t, err)

	_, err = unwrapEnvelope([]byte(`{"success":0,"data":"oops"}`))
	assert.Error(t, err)
	assert.False(t, errors.As(err, new(*APIError)))
}
