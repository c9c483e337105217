package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/fastprodman/killrewards/internal/api"
	"github.com/fastprodman/killrewards/internal/boost"
	"github.com/fastprodman/killrewards/internal/clients/killsource"
	"github.com/fastprodman/killrewards/internal/clients/oracle"
	"github.com/fastprodman/killrewards/internal/clients/rail"
	"github.com/fastprodman/killrewards/internal/infra/logging"
	"github.com/fastprodman/killrewards/internal/infra/metrics"
	"github.com/fastprodman/killrewards/internal/infra/pgutils"
	"github.com/fastprodman/killrewards/internal/infra/tracing"
	"github.com/fastprodman/killrewards/internal/scheduler"
	"github.com/fastprodman/killrewards/internal/services/accrual"
	"github.com/fastprodman/killrewards/internal/services/balance"
	"github.com/fastprodman/killrewards/internal/services/holding"
	"github.com/fastprodman/killrewards/internal/services/payout"
	"github.com/fastprodman/killrewards/internal/services/repair"
	"github.com/fastprodman/killrewards/internal/services/settlement"
	"github.com/fastprodman/killrewards/pkg/envconf"
	"github.com/fastprodman/killrewards/pkg/shutdownqueue"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := run(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error running scheduler: %v\n", err)
		//nolint:gocritic
		os.Exit(1)
	}
}

func run(ctx context.Context) (retErr error) {
	cfg := new(schedulerConfig)

	err := envconf.Load(cfg)
	if err != nil {
		return fmt.Errorf("init config: %w", err)
	}

	log := logging.SetupJSON(cfg.LogLevel)

	queue := shutdownqueue.New()

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		serr := queue.Shutdown(shutdownCtx)
		if serr != nil {
			retErr = errors.Join(retErr, serr)
		}
	}()

	// --- Infra ---
	tp, shutdownTracing, err := tracing.Setup(ctx, cfg.Tracing, cfg.ServiceName)
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}

	queue.Add(shutdownTracing)

	m := metrics.New()

	db, err := pgutils.OpenDB(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}

	queue.Add(func(context.Context) error {
		log.Info("close database")
		return db.Close()
	})

	// --- Adapters ---
	transfers := newRail(cfg, log)
	kills := newKillSource(cfg, log)
	tokens := newOracle(cfg)

	tiers := boost.Tiers(nil)
	if cfg.Holding.Enabled {
		tiers = cfg.Holding.Tiers
	}

	// --- Services ---
	engine := payout.New(db, transfers, payout.Options{
		From:        cfg.Rail.OperatorAccount,
		MaxAttempts: cfg.Payout.MaxAttempts,
		Retry:       payout.Backoff{Base: cfg.Payout.RetryBaseDelay, Max: cfg.Payout.RetryMaxDelay},
	}, m, log)

	guard := balance.New(transfers, cfg.Rail.OperatorAccount, cfg.Payout.MinOperatorBalance, m, log)
	settler := settlement.New(db, repair.New(db, m, log), engine, guard, m, log)
	accruer := accrual.New(db, kills, tiers, m, log)
	scanner := holding.NewScanner(db, tokens, cfg.Holding.Enabled, cfg.Holding.BatchSize, m, log)

	overrides := scheduler.NewOverridesFile(cfg.Scheduler.OverridesFile, scheduler.Settings{
		AccrualInterval:    cfg.Scheduler.AccrualInterval,
		SettlementInterval: cfg.Scheduler.SettlementInterval,
		BaseRate:           cfg.Payout.AmountPerKill,
		Caps: settlement.Caps{
			Daily:  int64(cfg.Payout.DailyKillCap),
			Weekly: int64(cfg.Payout.WeeklyKillCap),
		},
	}, cfg.Scheduler.MinInterval, log)

	heartbeat := scheduler.HeartbeatFile{Path: cfg.Scheduler.HeartbeatFile}

	loop := scheduler.New(accruer, scanner, settler, overrides, heartbeat, scheduler.Config{
		BatchSize:        cfg.Payout.BatchSize,
		ErrorBackoffBase: cfg.Scheduler.ErrorBackoffBase,
		ErrorBackoffMax:  cfg.Scheduler.ErrorBackoffMax,
		StartJitter:      cfg.Scheduler.StartJitter,
	}, tp.Tracer(cfg.ServiceName), m, log)

	// --- Ops server ---
	handler := api.NewHandler(engine, heartbeat, logging.Component(log, "ops"))
	srv := api.NewServer(cfg.OpsAddr, api.NewRouter(handler, m.Handler()))

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return loop.Run(gctx)
	})

	g.Go(func() error {
		serr := srv.ListenAndServe()
		// http.ErrServerClosed is the normal path during Shutdown
		if serr != nil && !errors.Is(serr, http.ErrServerClosed) {
			return fmt.Errorf("ops server: %w", serr)
		}

		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.ShutdownTimeout)
		defer cancel()

		log.Info("shut down ops server")

		err := srv.Shutdown(shutdownCtx)
		if err != nil {
			return fmt.Errorf("shutdown srv: %w", err)
		}

		return nil
	})

	log.Info("scheduler process started",
		"ops_addr", cfg.OpsAddr,
		"dry_run", cfg.Rail.DryRun,
		"holding_boost", cfg.Holding.Enabled,
	)

	return g.Wait()
}

func newRail(cfg *schedulerConfig, log *slog.Logger) rail.Client {
	if cfg.Rail.DryRun {
		log.Warn("payment rail in dry-run mode: no funds will move")
		return rail.DryRun{}
	}

	return rail.NewNode(cfg.Rail.NodeURL, cfg.Rail.Wallet, cfg.Rail.Timeout)
}

func newKillSource(cfg *schedulerConfig, log *slog.Logger) killsource.Source {
	if cfg.KillSource.BaseURL == "" {
		log.Warn("no kill source configured: accrual sees no new kills")
		return killsource.NewStatic(nil)
	}

	src := killsource.NewHTTP(cfg.KillSource.BaseURL, cfg.KillSource.APIKey, cfg.KillSource.KillsPath, cfg.KillSource.Timeout)

	return killsource.NewRateLimited(src, cfg.KillSource.PerMinute)
}

func newOracle(cfg *schedulerConfig) oracle.Oracle {
	if !cfg.Holding.Enabled {
		return nil
	}

	return oracle.NewSolana(cfg.Holding.RPCURL, cfg.Holding.TokenMint, cfg.Holding.Timeout)
}
