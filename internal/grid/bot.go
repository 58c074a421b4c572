package grid

import (
	"context"
	"fmt"
	"time"

	"grid_trader/internal/core"
	apperrors "grid_trader/pkg/errors"
	"grid_trader/pkg/telemetry"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// BotStatus is the lifecycle state of a bot run.
type BotStatus string

const (
	StatusCreated BotStatus = "created"
	StatusRunning BotStatus = "running"
	StatusStopped BotStatus = "stopped"
)

// Deps carries the bot's external collaborators. Notifier and Store may be
// nil; the bot degrades to log-only operation.
type Deps struct {
	Notifier core.INotifier
	Store    core.IStateStore
	Logger   core.ILogger

	User             string
	BalanceThreshold int
	ReportInterval   time.Duration
}

// GridBot owns one grid run: the parameter, the order manager, and the sync
// loop body. All methods must be called from a single goroutine; the bot is
// deliberately not concurrent-safe.
type GridBot struct {
	uid      string
	exchange core.IExchange
	param    *Parameter
	manager  *OrderManager

	notifier core.INotifier
	store    core.IStateStore
	logger   core.ILogger
	metrics  *telemetry.MetricsHolder

	user             string
	balanceThreshold int
	reportInterval   time.Duration

	status      BotStatus
	startedAt   time.Time
	stoppedAt   time.Time
	latestPrice decimal.Decimal

	// counter is the run total; a fresh per-sync counter drives adjustment.
	counter      *OrderCounter
	lastReportAt time.Time
}

// NewGridBot builds a bot in status Created.
func NewGridBot(exchange core.IExchange, deps Deps) *GridBot {
	if deps.ReportInterval <= 0 {
		deps.ReportInterval = time.Hour
	}
	uid := uuid.NewString()
	return &GridBot{
		uid:              uid,
		exchange:         exchange,
		notifier:         deps.Notifier,
		store:            deps.Store,
		logger:           deps.Logger.WithField("component", "grid_bot").WithField("bot_id", uid),
		metrics:          telemetry.GetGlobalMetrics(),
		user:             deps.User,
		balanceThreshold: deps.BalanceThreshold,
		reportInterval:   deps.ReportInterval,
		status:           StatusCreated,
		counter:          NewOrderCounter(),
	}
}

// UID returns the run's unique id.
func (b *GridBot) UID() string { return b.uid }

// Status returns the current lifecycle state.
func (b *GridBot) Status() BotStatus { return b.status }

// Param returns the active parameter, nil before InitAndStart.
func (b *GridBot) Param() *Parameter { return b.param }

// Manager exposes the order manager, mainly for tests.
func (b *GridBot) Manager() *OrderManager { return b.manager }

// LatestPrice returns the last ticker price observed.
func (b *GridBot) LatestPrice() decimal.Decimal { return b.latestPrice }

// orderLimit derives the manager's order limit from the exchange cap and the
// grid size, forced even so it splits cleanly between the two stacks.
func (b *GridBot) orderLimit(gridNum int) int {
	limit := b.exchange.MaxOrderCount()
	if limit > gridNum {
		limit = gridNum
	}
	return limit &^ 1
}

// InitAndStart seeds the grid around the parameter's init price and submits
// the initial orders.
func (b *GridBot) InitAndStart(ctx context.Context, param *Parameter) error {
	if b.status != StatusCreated {
		return fmt.Errorf("grid bot %s: start from status %s", b.uid, b.status)
	}
	if err := param.Validate(); err != nil {
		return fmt.Errorf("grid bot %s: %w", b.uid, err)
	}

	cfg := ManagerConfig{
		Pair:             param.Pair,
		PriceInterval:    param.PriceInterval,
		UnitAmount:       param.UnitAmount,
		GridNum:          param.GridNum,
		OrderLimit:       b.orderLimit(param.GridNum),
		BalanceThreshold: b.balanceThreshold,
		Precision:        b.exchange.Precision(),
	}
	manager, err := NewOrderManager(cfg, b.logger)
	if err != nil {
		return fmt.Errorf("grid bot %s: %w", b.uid, err)
	}

	b.param = param
	b.manager = manager
	b.startedAt = time.Now()
	b.lastReportAt = b.startedAt
	b.status = StatusRunning
	b.latestPrice = param.InitPrice

	b.persistRunner(ctx)

	if err := b.manager.InitStacks(param.InitPrice); err != nil {
		return fmt.Errorf("grid bot %s: %w", b.uid, err)
	}
	b.commitCreateOrders(ctx)

	b.logger.Info("Grid started", "param", param.String(), "order_limit", cfg.OrderLimit)
	b.notifyInfo(fmt.Sprintf("Grid started for %s: init=%s interval=%s unit=%s range=[%s, %s]",
		param.Pair, param.InitPrice, param.PriceInterval, param.UnitAmount,
		param.LowestPrice, param.HighestPrice))
	return nil
}

// CancelAndStop tears the grid down: exchange-side cancellation is attempted
// but local state is forced to Stopped regardless. Safe to call twice; the
// second call is a logged no-op.
func (b *GridBot) CancelAndStop(ctx context.Context) {
	if b.status != StatusRunning {
		b.logger.Warn("Stop requested but bot is not running", "status", string(b.status))
		return
	}

	resting := b.manager.CancelAll()
	if len(resting) > 0 {
		ids := make([]int64, 0, len(resting))
		for _, o := range resting {
			ids = append(ids, o.ExchangeID)
		}
		if _, err := b.exchange.CancelOrders(ctx, ids); err != nil {
			b.logger.Error("Batch cancel on stop failed", "error", err, "order_count", len(ids))
			b.notifyError(fmt.Sprintf("Stop: cancel of %d orders failed: %v; orders may still rest on %s",
				len(ids), err, b.exchange.Name()))
		}
		for _, o := range resting {
			b.deleteOrderRecord(ctx, o.ExchangeID)
		}
	}

	b.status = StatusStopped
	b.stoppedAt = time.Now()
	b.updateRunner(ctx, map[string]any{
		"status":     string(StatusStopped),
		"stopped_at": b.stoppedAt,
	})

	report := NewExecutionReport(b.param, b.counter, b.stoppedAt.Sub(b.startedAt))
	b.notifyInfo("Grid stopped.\n" + report.Render())
	b.logger.Info("Grid stopped", "duration", b.stoppedAt.Sub(b.startedAt).String())
}

// SyncAndAdjust runs one reconciliation cycle. Within the cycle, status
// classification precedes pairing, pairing precedes balancing, the fill
// commit precedes exchange writes, and cancels precede creates.
func (b *GridBot) SyncAndAdjust(ctx context.Context) error {
	if b.status != StatusRunning {
		return fmt.Errorf("grid bot %s: sync from status %s", b.uid, b.status)
	}
	start := time.Now()
	defer func() {
		b.metrics.SyncLatency.Record(ctx, time.Since(start).Seconds(),
			metric.WithAttributes(attribute.String("pair", b.param.Pair)))
		b.metrics.SetActiveOrders(b.param.Pair, int64(len(b.manager.ActiveOrders())))
	}()

	// 1. Fetch order statuses.
	statuses, err := b.exchange.GetOrdersData(ctx, b.manager.ActiveOrderIDs())
	if err != nil {
		if b.exchange.IsKnownError(err) {
			b.logger.Warn("Status fetch hit a known exchange error", "error", err)
			statuses = nil
		} else {
			b.metrics.SyncErrorsTotal.Add(ctx, 1)
			b.notifyError(fmt.Sprintf("Status fetch failed: %v", err))
			return nil
		}
	}

	// 2. Classify.
	syncCounter := NewOrderCounter()
	for _, data := range statuses {
		switch {
		case b.exchange.IsOrderFullyFilled(data):
			order := b.manager.GetOrder(data.OrderID)
			if order == nil {
				b.notifyError(fmt.Sprintf("Fill reported for unknown order id %d", data.OrderID))
				continue
			}
			if err := b.manager.MarkOrderOnTraded(data); err != nil {
				b.notifyError(fmt.Sprintf("Fill for order %d not applicable: %v", data.OrderID, err))
				continue
			}
			syncCounter.Add(order.Side, 1)
			b.counter.Add(order.Side, 1)
			b.metrics.OrdersFilledTotal.Add(ctx, 1, metric.WithAttributes(
				attribute.String("pair", b.param.Pair),
				attribute.String("side", string(order.Side)),
			))
			b.notifyTrade(order.Side, fmt.Sprintf("%s %s filled at %s (amount %s)",
				b.param.Pair, order.Side, order.Price, order.Amount))
		case b.exchange.IsOrderCancelled(data):
			b.manager.OrderForceCancelled(data.OrderID)
			b.deleteOrderRecord(ctx, data.OrderID)
			b.notifyError(fmt.Sprintf("Order %d was cancelled outside the grid", data.OrderID))
		}
	}

	if syncCounter.TotalOf(core.Buy) > 0 && syncCounter.TotalOf(core.Sell) > 0 {
		b.notifyError(fmt.Sprintf("Fills on both sides in one sync (buy=%d sell=%d), spread may have been crossed",
			syncCounter.TotalOf(core.Buy), syncCounter.TotalOf(core.Sell)))
	}

	// 3. Periodic report.
	b.maybeReport()

	// 4. Nothing filled now or pending from a skipped cycle: done.
	if syncCounter.Total() == 0 && b.manager.OnTradedCount() == 0 {
		return nil
	}

	// 5. Fetch price and gate on the grid range.
	snapshot, err := b.exchange.GetLatestPrices(ctx)
	if err != nil {
		if b.exchange.IsKnownError(err) {
			b.logger.Warn("Ticker fetch hit a known exchange error", "error", err)
		} else {
			b.metrics.SyncErrorsTotal.Add(ctx, 1)
			b.notifyError(fmt.Sprintf("Ticker fetch failed: %v", err))
		}
		return nil
	}
	b.latestPrice = snapshot.Price
	if snapshot.Price.LessThan(b.param.LowestPrice) || snapshot.Price.GreaterThan(b.param.HighestPrice) {
		b.logger.Warn("Price outside grid range, skipping adjustment",
			"price", snapshot.Price,
			"lowest", b.param.LowestPrice,
			"highest", b.param.HighestPrice,
		)
		return nil
	}

	b.checkIrregularPrices(snapshot)

	// 6. Adjust the grid, then write to the exchange: cancels before creates.
	b.manager.RefillAtOppositePosition()
	b.manager.BalanceStacks()
	for _, o := range b.manager.OrdersTraded() {
		b.updateOrderRecord(ctx, o.ExchangeID, map[string]any{"status": o.Status.String()})
	}
	b.commitCancelOrders(ctx)
	b.commitCreateOrders(ctx)

	// 7. Persist the run state.
	b.updateRunner(ctx, map[string]any{
		"latest_price": b.latestPrice.String(),
		"buy_count":    b.counter.TotalOf(core.Buy),
		"sell_count":   b.counter.TotalOf(core.Sell),
		"synced_at":    time.Now(),
	})
	return nil
}

// checkIrregularPrices warns when a pairing order would cross the spread and
// could not rest as a maker. Advisory only.
func (b *GridBot) checkIrregularPrices(snapshot *core.PriceSnapshot) {
	if snapshot.BestAsk.IsZero() && snapshot.BestBid.IsZero() {
		return
	}
	onTraded := append(b.manager.BuyStack().OnTradedOrders(), b.manager.SellStack().OnTradedOrders()...)
	for _, o := range onTraded {
		opposite := o.OppositePrice(b.param.PriceInterval)
		crossed := (o.Side == core.Buy && !snapshot.BestBid.IsZero() && opposite.LessThanOrEqual(snapshot.BestBid)) ||
			(o.Side == core.Sell && !snapshot.BestAsk.IsZero() && opposite.GreaterThanOrEqual(snapshot.BestAsk))
		if crossed {
			b.notifyError(fmt.Sprintf("Pairing for %s fill at %s would cross the spread (opposite %s, bid %s, ask %s)",
				o.Side, o.Price, opposite, snapshot.BestBid, snapshot.BestAsk))
		}
	}
}

func (b *GridBot) maybeReport() {
	if time.Since(b.lastReportAt) < b.reportInterval {
		return
	}
	b.lastReportAt = time.Now()
	report := NewExecutionReport(b.param, b.counter, time.Since(b.startedAt))
	b.notifyInfo(report.Render())
}

// commitCancelOrders batch-cancels everything marked ToCancel. A failed batch
// leaves the orders marked so the next sync retries.
func (b *GridBot) commitCancelOrders(ctx context.Context) {
	toCancel := b.manager.OrdersToCancel()
	if len(toCancel) == 0 {
		return
	}
	ids := make([]int64, 0, len(toCancel))
	for _, o := range toCancel {
		ids = append(ids, o.ExchangeID)
	}

	results, err := b.exchange.CancelOrders(ctx, ids)
	if err != nil {
		b.notifyError(fmt.Sprintf("Batch cancel of %d orders failed: %v", len(ids), err))
		return
	}
	for _, res := range results {
		if b.manager.GetOrder(res.OrderID) == nil {
			b.notifyError(fmt.Sprintf("Cancel result for irrelevant order id %d", res.OrderID))
			continue
		}
		if !b.exchange.IsOrderCancelled(core.OrderData{OrderID: res.OrderID, Status: res.Status}) {
			b.notifyError(fmt.Sprintf("Order %d not cancelled by the exchange (status %s)", res.OrderID, res.Status))
			continue
		}
		if err := b.manager.OrderCancelOK(res.OrderID); err != nil {
			b.notifyError(fmt.Sprintf("Cancel commit for order %d failed: %v", res.OrderID, err))
			continue
		}
		b.metrics.OrdersCancelledTotal.Add(ctx, 1,
			metric.WithAttributes(attribute.String("pair", b.param.Pair)))
		b.deleteOrderRecord(ctx, res.OrderID)
	}
}

// commitCreateOrders submits everything marked ToCreate. Rejections drop the
// order; transient errors leave it pending for the next sync.
func (b *GridBot) commitCreateOrders(ctx context.Context) {
	for _, order := range b.manager.OrdersToCreate() {
		if err := b.exchange.CreateOrder(ctx, order); err != nil {
			if apperrors.Rejection(err) {
				b.notifyError(fmt.Sprintf("Order rejected by %s: %s: %v", b.exchange.Name(), order, err))
				if failErr := b.manager.OrderCreateFail(order); failErr != nil {
					b.logger.Error("Reject cleanup failed", "order", order.String(), "error", failErr)
				}
				continue
			}
			b.logger.Warn("Order submission failed, will retry", "order", order.String(), "error", err)
			continue
		}
		if err := b.manager.OrderCreateOK(order); err != nil {
			b.notifyError(fmt.Sprintf("Create commit for order %s failed: %v", order, err))
			continue
		}
		b.metrics.OrdersPlacedTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("pair", b.param.Pair),
			attribute.String("side", string(order.Side)),
		))
		b.createOrderRecord(ctx, order)
	}
}

func (b *GridBot) notifyInfo(msg string) {
	if b.notifier != nil {
		b.notifier.Info(msg)
	}
}

func (b *GridBot) notifyError(msg string) {
	b.logger.Error(msg)
	if b.notifier != nil {
		b.notifier.Error(msg)
	}
}

func (b *GridBot) notifyTrade(side core.OrderSide, msg string) {
	if b.notifier != nil {
		b.notifier.Trade(side, msg)
	}
}

func (b *GridBot) persistRunner(ctx context.Context) {
	if b.store == nil {
		return
	}
	record := core.RunnerRecord{
		UID:       b.uid,
		Pair:      b.param.Pair,
		User:      b.user,
		Exchange:  b.exchange.Name(),
		Status:    string(b.status),
		StartedAt: b.startedAt,
		Param:     b.param.Fields(),
	}
	if err := b.store.CreateAndUseRunner(ctx, record); err != nil {
		b.logger.Error("Runner persistence failed", "error", err)
	}
}

func (b *GridBot) updateRunner(ctx context.Context, fields map[string]any) {
	if b.store == nil {
		return
	}
	if err := b.store.UpdateRunner(ctx, b.uid, fields); err != nil {
		b.logger.Error("Runner update failed", "error", err)
	}
}

func (b *GridBot) createOrderRecord(ctx context.Context, order *core.Order) {
	if b.store == nil {
		return
	}
	record := core.OrderRecord{
		OrderID:   order.ExchangeID,
		Pair:      order.Pair,
		Side:      string(order.Side),
		Price:     order.Price,
		Amount:    order.Amount,
		Status:    order.Status.String(),
		OrderedAt: order.OrderedAt,
	}
	if err := b.store.CreateOrder(ctx, record); err != nil {
		b.logger.Error("Order persistence failed", "order_id", order.ExchangeID, "error", err)
	}
}

func (b *GridBot) updateOrderRecord(ctx context.Context, orderID int64, fields map[string]any) {
	if b.store == nil || orderID == 0 {
		return
	}
	if err := b.store.UpdateOrder(ctx, orderID, fields); err != nil {
		b.logger.Error("Order update failed", "order_id", orderID, "error", err)
	}
}

func (b *GridBot) deleteOrderRecord(ctx context.Context, orderID int64) {
	if b.store == nil || orderID == 0 {
		return
	}
	if err := b.store.DeleteOrder(ctx, orderID); err != nil {
		b.logger.Error("Order delete failed", "order_id", orderID, "error", err)
	}
}
