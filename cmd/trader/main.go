// Package main is the entry point for the wheel trader: an automated
// options-wheel strategy that sells cash-secured puts and covered calls
// against Bollinger band signals on a watch list of tickers.
//
// Startup sequence:
//  1. Load configuration from environment variables (.env file)
//  2. Open the state database and run migrations
//  3. Open the per-ticker history databases
//  4. Wrap the store with the write-retry decorator and replay its journal
//  5. Restore the portfolio ledger, or seed a fresh one with starting cash
//  6. Wire the band, decision and settlement engines into the session loop
//  7. Register the daily session with the cron scheduler
//  8. Start the read-only HTTP status API
//  9. Wait for shutdown signal and drain pending writes
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/aristath/wheel-trader/internal/config"
	"github.com/aristath/wheel-trader/internal/database"
	"github.com/aristath/wheel-trader/internal/domain"
	"github.com/aristath/wheel-trader/internal/market"
	"github.com/aristath/wheel-trader/internal/modules/bands"
	"github.com/aristath/wheel-trader/internal/modules/decision"
	"github.com/aristath/wheel-trader/internal/modules/ledger"
	"github.com/aristath/wheel-trader/internal/modules/settlement"
	"github.com/aristath/wheel-trader/internal/scheduler"
	"github.com/aristath/wheel-trader/internal/server"
	"github.com/aristath/wheel-trader/internal/store"
	"github.com/aristath/wheel-trader/pkg/logger"
)

func main() {
	// Load configuration first to get log level
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: true,
	})

	log.Info().Str("portfolio", cfg.PortfolioName).Msg("Starting wheel trader")

	// State database holds the portfolio, orders, positions and summaries
	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DatabasePath).Msg("Failed to open state database")
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate state database")
	}

	// Per-ticker history databases feed the simulated market
	history, err := store.NewHistoryDB(cfg.HistoryDir, log)
	if err != nil {
		log.Fatal().Err(err).Str("dir", cfg.HistoryDir).Msg("Failed to open history databases")
	}

	sqlStore := store.NewSQLite(db, history, cfg.PortfolioName, log)

	// The retry decorator journals failed writes to disk and replays them,
	// so a store outage never loses ledger state.
	ds := store.NewReliable(sqlStore, cfg.PortfolioName, cfg.JournalPath, log)
	if err := ds.LoadJournal(); err != nil {
		log.Warn().Err(err).Msg("Failed to replay write journal, continuing without it")
	}

	ids := domain.NewTxIDGenerator()

	// Restore the ledger from the store, or seed a fresh portfolio
	led, err := loadOrCreateLedger(cfg, ds, ids, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize portfolio ledger")
	}

	calendar := market.NewNYSECalendar()
	mkt := market.NewSimMarket(history, calendar, cfg.Tickers, cfg.TimeValue, log)

	bandEngine := bands.New(cfg.BandPeriod, bands.Multipliers{
		SD1: cfg.BandSD1,
		SD2: cfg.BandSD2,
		SD3: cfg.BandSD3,
	}, log)
	decisionEngine := decision.New(cfg.StockPct, log)
	settlementEngine := settlement.New(led, mkt, ds, log)

	session := scheduler.NewSession(
		scheduler.SessionConfig{
			Tickers:   cfg.Tickers,
			PollDelay: time.Duration(cfg.PollDelay) * time.Second,
			TIF:       domain.TimeInForce(cfg.OrderExpiry),
		},
		mkt, ds, led, bandEngine, decisionEngine, settlementEngine,
		scheduler.RealClock{},
		log,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sched := scheduler.New(log)

	// The session job owns the whole trading day: it waits for the open,
	// polls until the close, then reconciles expiring options. Fired well
	// before the NYSE open so the wait-for-open path always runs.
	sessionJob := scheduler.JobFunc{
		JobName: "trading_session",
		Fn: func() error {
			return session.Run(ctx)
		},
	}
	if err := sched.AddJob("0 0 8 * * MON-FRI", sessionJob); err != nil {
		log.Fatal().Err(err).Msg("Failed to register trading session job")
	}

	// Retry queued store writes hourly
	drainJob := scheduler.JobFunc{
		JobName: "drain_writes",
		Fn: func() error {
			ds.Drain()
			return nil
		},
	}
	if err := sched.AddJob("0 30 * * * *", drainJob); err != nil {
		log.Fatal().Err(err).Msg("Failed to register drain job")
	}

	sched.Start()

	// When started mid-day, kick off today's session immediately instead of
	// waiting for tomorrow's cron fire.
	if mkt.IsOpenToday() {
		go func() {
			if err := sched.RunNow(sessionJob); err != nil && ctx.Err() == nil {
				log.Error().Err(err).Msg("Trading session failed")
			}
		}()
	}

	srv := server.New(server.Config{
		Port:      cfg.Port,
		Portfolio: cfg.PortfolioName,
		Log:       log,
		Store:     ds,
		Market:    mkt,
		DevMode:   cfg.DevMode,
	})

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	// Block until SIGINT or SIGTERM
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down...")

	// Cancel the session context so any in-flight sleep returns promptly,
	// then stop the cron scheduler and wait for running jobs.
	cancel()
	sched.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Final flush of any writes still queued in the retry decorator
	ds.Drain()
	if pending := ds.Pending(); pending > 0 {
		log.Warn().Int("pending", pending).Msg("Writes still queued at shutdown, journaled for next start")
	}

	log.Info().Msg("Stopped")
}

// loadOrCreateLedger restores the portfolio from the store when it exists,
// otherwise seeds a fresh ledger with the configured starting cash and
// persists its opening summary.
func loadOrCreateLedger(cfg *config.Config, ds store.DataStore, ids *domain.TxIDGenerator, log zerolog.Logger) (*ledger.Ledger, error) {
	exists, err := ds.PortfolioExists(cfg.PortfolioName)
	if err != nil {
		return nil, err
	}

	if exists {
		snap, err := ds.LoadPortfolio(cfg.PortfolioName)
		if err != nil {
			return nil, err
		}
		led, err := ledger.Restore(*snap, ids, log)
		if err != nil {
			return nil, err
		}
		log.Info().
			Str("free_cash", snap.FreeCash.String()).
			Str("reserved_cash", snap.ReservedCash.String()).
			Int("open_orders", len(snap.OpenOrders)).
			Int("open_positions", len(snap.OpenPositions)).
			Msg("Portfolio restored")
		return led, nil
	}

	led, err := ledger.New(cfg.PortfolioName, decimal.NewFromFloat(cfg.StartingCash), ids, log)
	if err != nil {
		return nil, err
	}
	if err := ds.WritePortfolioSummary(led.Snapshot()); err != nil {
		log.Warn().Err(err).Msg("Failed to persist opening summary")
	}
	log.Info().Str("starting_cash", led.FreeCash().String()).Msg("New portfolio created")
	return led, nil
}
