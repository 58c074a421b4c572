package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"grid_trader/internal/config"
	"grid_trader/internal/core"
	"grid_trader/internal/exchange/bitbank"
	"grid_trader/internal/grid"
	"grid_trader/internal/infrastructure/metrics"
	"grid_trader/internal/notify"
	"grid_trader/internal/store"
	"grid_trader/pkg/logging"
	"grid_trader/pkg/telemetry"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

var (
	// Version information (set via build flags)
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	configPath := flag.String("config", "configs/gridbot.yaml", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("gridbot version %s (built %s)\n", version, buildTime)
		os.Exit(0)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewZapLogger(cfg.System.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	logging.SetGlobalLogger(logger)

	logger.Info("Starting gridbot",
		"version", version,
		"exchange", cfg.Exchange.Name,
		"pair", cfg.GridBot.Pair,
	)

	if err := run(cfg, logger); err != nil {
		logger.Error("gridbot exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info("gridbot stopped")
}

func run(cfg *config.Config, logger core.ILogger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if cfg.Telemetry.EnableMetrics {
		tel, err := telemetry.Setup("gridbot")
		if err != nil {
			logger.Warn("Telemetry setup failed, continuing without exporters", "error", err)
		} else {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := tel.Shutdown(shutdownCtx); err != nil {
					logger.Warn("Telemetry shutdown failed", "error", err)
				}
			}()

			metricsSrv := metrics.NewServer(cfg.Telemetry.MetricsPort, logger)
			metricsSrv.Start()
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := metricsSrv.Stop(shutdownCtx); err != nil {
					logger.Warn("Metrics server shutdown failed", "error", err)
				}
			}()
		}
	}

	notifier := buildNotifier(cfg, logger)
	defer notifier.Close()

	var stateStore core.IStateStore
	if cfg.DB.Enabled {
		sqlStore, err := store.NewSQLiteStore(cfg.DB.Path, logger)
		if err != nil {
			return fmt.Errorf("failed to open state store: %w", err)
		}
		defer sqlStore.Close()
		stateStore = sqlStore
	}

	exchange := bitbank.New(bitbank.Config{
		Pair:          cfg.GridBot.Pair,
		APIKey:        cfg.Exchange.APIKey,
		SecretKey:     cfg.Exchange.SecretKey,
		BaseURL:       cfg.Exchange.BaseURL,
		PublicURL:     cfg.Exchange.PublicURL,
		Fee:           decimal.NewFromFloat(cfg.Exchange.Fee),
		MaxOrderCount: cfg.Exchange.MaxOrderCount,
		Precision: core.Precision{
			Price:  cfg.Exchange.PricePrecision,
			Amount: cfg.Exchange.AmountPrecision,
		},
		Timeout:       time.Duration(cfg.Exchange.TimeoutSeconds) * time.Second,
		RatePerSecond: cfg.Exchange.RatePerSecond,
	}, logger)

	stream := bitbank.NewTickerStream("", cfg.GridBot.Pair, logger)
	stream.Start()
	defer stream.Stop()
	exchange.UseStream(stream)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return runGrid(ctx, cfg, exchange, notifier, stateStore, logger)
	})
	return g.Wait()
}

func buildNotifier(cfg *config.Config, logger core.ILogger) *notify.Manager {
	manager := notify.NewManager(logger)

	if cfg.Notify.Discord.Enabled {
		manager.AddChannel(notify.NewDiscordChannel(notify.DiscordWebhooks{
			Info:  cfg.Notify.Discord.InfoWebhook,
			Error: cfg.Notify.Discord.ErrorWebhook,
			Buy:   cfg.Notify.Discord.BuyWebhook,
			Sell:  cfg.Notify.Discord.SellWebhook,
		}))
	}
	if cfg.Notify.Telegram.Enabled {
		manager.AddChannel(notify.NewTelegramChannel(cfg.Notify.Telegram.BotToken, cfg.Notify.Telegram.ChatID))
	}
	if cfg.Notify.Slack.Enabled {
		manager.AddChannel(notify.NewSlackChannel(cfg.Notify.Slack.WebhookURL))
	}
	return manager
}

// runGrid runs grids back to back: each cycle sizes a fresh parameter from the
// current balances and price, starts a bot, and syncs it until shutdown or,
// when reset_interval is set, until the grid is recycled around a new center.
func runGrid(ctx context.Context, cfg *config.Config, exchange core.IExchange, notifier core.INotifier, stateStore core.IStateStore, logger core.ILogger) error {
	for {
		bot := grid.NewGridBot(exchange, grid.Deps{
			Notifier:         notifier,
			Store:            stateStore,
			Logger:           logger,
			User:             cfg.GridBot.User,
			BalanceThreshold: cfg.GridBot.BalanceThreshold,
			ReportInterval:   cfg.GridBot.ReportIntervalDuration(),
		})

		param, err := sizeParameter(ctx, cfg, exchange)
		if err != nil {
			return fmt.Errorf("failed to size grid parameter: %w", err)
		}
		if err := bot.InitAndStart(ctx, param); err != nil {
			return fmt.Errorf("failed to start grid: %w", err)
		}

		restart, err := syncLoop(ctx, cfg, bot, logger)
		if err != nil {
			bot.CancelAndStop(context.Background())
			return err
		}
		if !restart {
			if cfg.System.CancelOnExit {
				// The parent context is already cancelled; tear down with a
				// fresh one so the cancel batch can still reach the exchange.
				stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				bot.CancelAndStop(stopCtx)
				cancel()
			} else {
				logger.Info("Exiting without cancelling resting orders")
			}
			return nil
		}

		logger.Info("Recycling grid around a new center price")
		bot.CancelAndStop(ctx)
	}
}

// syncLoop drives one bot until shutdown (restart=false) or until the reset
// interval elapses (restart=true).
func syncLoop(ctx context.Context, cfg *config.Config, bot *grid.GridBot, logger core.ILogger) (restart bool, err error) {
	ticker := time.NewTicker(cfg.GridBot.CheckIntervalDuration())
	defer ticker.Stop()

	var resetC <-chan time.Time
	if reset := cfg.GridBot.ResetIntervalDuration(); reset > 0 {
		resetTimer := time.NewTimer(reset)
		defer resetTimer.Stop()
		resetC = resetTimer.C
	}

	for {
		select {
		case <-ctx.Done():
			return false, nil
		case <-resetC:
			return true, nil
		case <-ticker.C:
			if err := bot.SyncAndAdjust(ctx); err != nil {
				return false, fmt.Errorf("sync failed: %w", err)
			}
		}
	}
}

// sizeParameter derives the grid parameter from the configured usage of the
// current free balances and the live ticker.
func sizeParameter(ctx context.Context, cfg *config.Config, exchange core.IExchange) (*grid.Parameter, error) {
	balance, err := exchange.GetAssets(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch balances: %w", err)
	}
	snapshot, err := exchange.GetLatestPrices(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch ticker: %w", err)
	}

	prec := exchange.Precision()
	initBase := prec.RoundAmount(balance.BaseAmount.Mul(decimal.NewFromFloat(cfg.GridBot.BaseUsage)))
	initQuote := prec.RoundPrice(balance.QuoteAmount.Mul(decimal.NewFromFloat(cfg.GridBot.QuoteUsage)))
	initPrice := snapshot.Price

	if cfg.GridBot.PriceInterval > 0 {
		return grid.CalcParamsByInterval(cfg.GridBot.Pair, initBase, initQuote, initPrice,
			decimal.NewFromFloat(cfg.GridBot.PriceInterval), cfg.GridBot.GridNum, exchange.Fee(), prec)
	}
	return grid.CalcParamsBySupport(cfg.GridBot.Pair, initBase, initQuote, initPrice,
		decimal.NewFromFloat(cfg.GridBot.Support), cfg.GridBot.GridNum, exchange.Fee(), prec)
}
