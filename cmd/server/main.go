package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/aristath/arduino-trader/internal/config"
	"github.com/aristath/arduino-trader/internal/control"
	"github.com/aristath/arduino-trader/internal/domain"
	"github.com/aristath/arduino-trader/internal/exchange"
	"github.com/aristath/arduino-trader/internal/executor"
	"github.com/aristath/arduino-trader/internal/market"
	"github.com/aristath/arduino-trader/internal/mlfilter"
	"github.com/aristath/arduino-trader/internal/notify"
	"github.com/aristath/arduino-trader/internal/notify/pushtransport"
	"github.com/aristath/arduino-trader/internal/scheduler"
	"github.com/aristath/arduino-trader/internal/server"
	"github.com/aristath/arduino-trader/pkg/indicators"
	"github.com/aristath/arduino-trader/pkg/logger"
)

func main() {
	log := logger.New(logger.Config{Level: "info", Pretty: true})
	log.Info().Msg("starting arduino-trader")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	log = logger.New(logger.Config{Level: cfg.LogLevel, Pretty: true})

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		log.Fatal().Err(err).Msg("failed to create data directory")
	}

	marketDB := openDB(log, filepath.Join(cfg.DataDir, "market.db"))
	defer marketDB.Close()
	controlDB := openDB(log, filepath.Join(cfg.DataDir, "control.db"))
	defer controlDB.Close()

	marketStore, err := market.New(marketDB, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize market store")
	}

	controlSurface, err := control.New(controlDB, log, cfg.ControlSurfaceTimeout)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize control surface")
	}

	gateway := buildGateway(log, cfg)

	mlFilter := mlfilter.New(cfg.MLModelPath, cfg.MLThreshold, log)

	pusher := pushtransport.New(cfg.ChatPushURL, log)
	notifier := notify.New(pusher, log)

	execCfg := executor.Config{
		MaxPositionSize: cfg.MaxPositionSize,
		StopLossPercent: cfg.StopLossPercent,
		TakeProfitMin:   cfg.TakeProfitMin,
		TakeProfitMax:   cfg.TakeProfitMax,
		PanicThreshold:  cfg.PanicThreshold,
		QuoteAsset:      "USDT",
	}
	exec := executor.New(gateway, controlSurface, mlFilter, notifier, execCfg, log)

	commands := notify.NewCommandRouter(controlSurface, exec, marketStore, notifier, log)

	sched := scheduler.New(log)
	registerJobs(sched, log, cfg, marketStore, gateway, exec)
	sched.Start()

	srv := server.New(server.Config{
		Port:          cfg.Port,
		Log:           log,
		Market:        marketStore,
		Control:       controlSurface,
		Router:        commands,
		WebhookSecret: cfg.WebhookSecret,
		DevMode:       cfg.DevMode,
	})

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()
	log.Info().Int("port", cfg.Port).Str("mode", string(cfg.TradingMode)).Msg("arduino-trader started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	runHeartbeat(quit, sched, log)
	log.Info().Msg("shutdown requested")

	sched.Shutdown(true)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("HTTP server forced to shutdown")
	}

	log.Info().Msg("arduino-trader stopped")
}

// runHeartbeat blocks the main goroutine, printing a heartbeat once a
// minute and restarting the scheduler if it has stopped unexpectedly,
// until quit fires. Grounded on the original's run_scheduler(): a
// 1-second poll loop, a heartbeat counter logged every 60 ticks, and a
// scheduler.is_running() check that restarts on failure (spec.md §5).
func runHeartbeat(quit <-chan os.Signal, sched *scheduler.Scheduler, log zerolog.Logger) {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	var beats int
	for {
		select {
		case <-quit:
			return
		case <-ticker.C:
			beats++
			if beats%60 != 0 {
				continue
			}
			log.Info().Int("minutes", beats/60).Msg("heartbeat")
			if !sched.IsRunning() {
				log.Error().Msg("scheduler stopped unexpectedly, restarting")
				sched.Start()
			}
		}
	}
}

func openDB(log zerolog.Logger, path string) *sql.DB {
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		log.Fatal().Err(err).Str("path", path).Msg("failed to open database")
	}
	return db
}

// buildGateway selects the live or simulated venue per TRADING_MODE. In
// PAPER mode the simulated ledger still consults a live price feed —
// simulation refers only to the ledger, never to prices (spec.md §4.1).
func buildGateway(log zerolog.Logger, cfg *config.Config) exchange.Gateway {
	live := exchange.NewLiveGateway("https://api.exchange.example", cfg.ExchangeAPIKey, cfg.ExchangeAPISecret, log)

	if cfg.IsLiveMode() {
		return live
	}

	var priceSource exchange.PriceSource = live
	sim, err := exchange.NewSimGateway(
		priceSource,
		"USDT",
		cfg.PaperInitialBalance,
		filepath.Join(cfg.DataDir, "paper_ledger.json"),
		filepath.Join(cfg.DataDir, "paper_ledger.replay"),
		log,
	)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize simulated exchange")
	}
	return sim
}

// registerJobs wires the scheduler's default registrations: fetch at
// second=5, scan at second=10, a risk monitor at second=15, and an
// on-chain refresh every OnchainRefreshEvery when configured (spec.md
// §4.8).
func registerJobs(sched *scheduler.Scheduler, log zerolog.Logger, cfg *config.Config, store *market.Store, gateway exchange.Gateway, exec *executor.Executor) {
	if err := sched.AddJob("fetch", "5 * * * * *", fetchJob(log, cfg, store, gateway)); err != nil {
		log.Fatal().Err(err).Msg("failed to register fetch job")
	}
	if err := sched.AddJob("scan", "10 * * * * *", scanJob(log, cfg, store, exec)); err != nil {
		log.Fatal().Err(err).Msg("failed to register scan job")
	}
	if err := sched.AddJob("monitor", "15 * * * * *", monitorJob(log, exec)); err != nil {
		log.Fatal().Err(err).Msg("failed to register monitor job")
	}

	if cfg.OnchainRefreshEnabled {
		schedule := fmt.Sprintf("@every %s", cfg.OnchainRefreshEvery)
		if err := sched.AddJob("onchain_refresh", schedule, onchainRefreshJob(log)); err != nil {
			log.Fatal().Err(err).Msg("failed to register on-chain refresh job")
		}
	}
}

// fetchJob pulls the latest bars for every watched symbol and upserts
// them, catching-and-logging per spec.md §7's propagation policy: a
// broken fetch must never stop the scan job.
func fetchJob(log zerolog.Logger, cfg *config.Config, store *market.Store, gateway exchange.Gateway) scheduler.JobFunc {
	jobLog := log.With().Str("job", "fetch").Logger()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		for _, symbol := range cfg.Symbols {
			bars, err := gateway.FetchOHLCV(ctx, symbol, cfg.Timeframe, nil, 200)
			if err != nil {
				jobLog.Error().Err(err).Str("symbol", symbol).Msg("fetch failed")
				continue
			}
			result, err := store.UpsertBars(bars)
			if err != nil {
				jobLog.Error().Err(err).Str("symbol", symbol).Msg("upsert failed")
				continue
			}
			jobLog.Debug().Str("symbol", symbol).Int("inserted", result.Inserted).Int("duplicates", result.Duplicate).Msg("bars synced")
		}
	}
}

// scanJob computes a composite score per symbol from the freshest
// stored bars and turns score extremes into buy/sell signals dispatched
// through the executor's gate sequence and ML filter.
func scanJob(log zerolog.Logger, cfg *config.Config, store *market.Store, exec *executor.Executor) scheduler.JobFunc {
	jobLog := log.With().Str("job", "scan").Logger()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		var signals []domain.Signal
		for _, symbol := range cfg.Symbols {
			bars, err := store.QueryBars(symbol, cfg.Timeframe, market.Asc, 200)
			if err != nil {
				jobLog.Error().Err(err).Str("symbol", symbol).Msg("query bars failed")
				continue
			}
			score := indicators.CompositeScore(bars, indicators.DefaultWeights, nil)
			if score == nil {
				continue
			}

			switch {
			case *score >= 70:
				signals = append(signals, domain.Signal{Symbol: symbol, Side: domain.SideBuy, Amount: cfg.MaxPositionSize, Features: map[string]float64{"composite_score": *score}})
			case *score <= 30:
				signals = append(signals, domain.Signal{Symbol: symbol, Side: domain.SideSell, Amount: cfg.MaxPositionSize, Features: map[string]float64{"composite_score": *score}})
			}
		}

		if len(signals) == 0 {
			return
		}
		results := exec.ExecuteStrategy(ctx, signals, nil, true, cfg.MLThreshold)
		for _, r := range results {
			if r.Status == domain.OrderStatusError {
				jobLog.Warn().Str("symbol", r.Order.Symbol).Str("error", r.Error).Msg("signal dispatch failed")
			}
		}
	}
}

// monitorJob checks every open position against its stop-loss/take-profit
// triggers (spec.md §4.7's MonitorPositions), independent of the scan
// cadence so a stalled scan never delays risk management.
func monitorJob(log zerolog.Logger, exec *executor.Executor) scheduler.JobFunc {
	jobLog := log.With().Str("job", "monitor").Logger()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		for _, r := range exec.MonitorPositions(ctx) {
			if r.Error != "" {
				jobLog.Error().Str("error", r.Error).Str("symbol", r.Symbol).Msg("position monitor failed")
			}
		}
	}
}

// onchainRefreshJob is a placeholder registration: no on-chain data
// client exists in this deployment, so the job logs that it has nothing
// to refresh rather than silently doing nothing (see DESIGN.md).
func onchainRefreshJob(log zerolog.Logger) scheduler.JobFunc {
	jobLog := log.With().Str("job", "onchain_refresh").Logger()
	return func() {
		jobLog.Warn().Msg("on-chain refresh enabled but no on-chain data client is configured")
	}
}
