// Package scheduler drives accrual, holding scans and settlement on
// independent, hot-reloadable intervals.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fastprodman/killrewards/internal/infra/logging"
	"github.com/fastprodman/killrewards/internal/infra/metrics"
	"github.com/fastprodman/killrewards/internal/services/accrual"
	"github.com/fastprodman/killrewards/internal/services/holding"
	"github.com/fastprodman/killrewards/internal/services/settlement"
)

const minSleep = time.Second

type Accruer interface {
	Run(ctx context.Context, p accrual.Params) (accrual.Summary, error)
}

type HoldingScanner interface {
	Run(ctx context.Context) (holding.ScanSummary, error)
}

type Settler interface {
	Run(ctx context.Context, p settlement.Params) (settlement.Summary, error)
}

type Config struct {
	// BatchSize bounds players per accrual run and candidates per
	// settlement cycle; zero means all.
	BatchSize        int
	ErrorBackoffBase time.Duration
	ErrorBackoffMax  time.Duration
	StartJitter      time.Duration
}

type Loop struct {
	accrual    Accruer
	holding    HoldingScanner
	settlement Settler
	overrides  *OverridesFile
	heartbeat  HeartbeatFile
	cfg        Config
	tracer     trace.Tracer
	metrics    *metrics.Metrics
	log        *slog.Logger

	now   func() time.Time
	sleep func(context.Context, time.Duration) error
	rand  func() float64

	lastAccrual       time.Time
	lastSettlement    time.Time
	backoff           time.Duration
	consecutiveErrors int
	lastSettings      Settings
}

func New(
	a Accruer,
	h HoldingScanner,
	s Settler,
	overrides *OverridesFile,
	heartbeat HeartbeatFile,
	cfg Config,
	tracer trace.Tracer,
	m *metrics.Metrics,
	log *slog.Logger,
) *Loop {
	return &Loop{
		accrual:    a,
		holding:    h,
		settlement: s,
		overrides:  overrides,
		heartbeat:  heartbeat,
		cfg:        cfg,
		tracer:     tracer,
		metrics:    m,
		log:        logging.Component(log, "scheduler"),
		now:        time.Now,
		sleep:      sleepCtx,
		rand:       rand.Float64,
		backoff:    cfg.ErrorBackoffBase,
	}
}

// Run blocks until ctx is cancelled. Cancellation is only observed between
// ticks; a tick in progress always completes.
func (l *Loop) Run(ctx context.Context) error {
	s := l.overrides.Read()
	l.lastSettings = s

	l.writeHeartbeat(StatusStarted, nil)
	l.log.Info("scheduler started",
		"accrual_interval", s.AccrualInterval.String(),
		"settlement_interval", s.SettlementInterval.String(),
	)

	if l.cfg.StartJitter > 0 {
		jitter := time.Duration(l.rand() * float64(l.cfg.StartJitter))
		l.log.Info("startup jitter", "sleep", jitter.String())

		if err := l.sleep(ctx, jitter); err != nil {
			return l.stop()
		}
	}

	// first settlement lands mid-way through the first accrual interval
	l.lastSettlement = l.now().Add(-s.SettlementInterval / 2)

	tickCtx := context.WithoutCancel(ctx)

	for {
		if ctx.Err() != nil {
			return l.stop()
		}

		wait := l.Tick(tickCtx)

		if err := l.sleep(ctx, wait); err != nil {
			return l.stop()
		}
	}
}

// Tick runs whatever phases are due and returns how long to wait before the
// next tick.
func (l *Loop) Tick(ctx context.Context) time.Duration {
	s := l.overrides.Read()
	l.lastSettings = s

	now := l.now()
	nextAccrual := l.lastAccrual.Add(s.AccrualInterval)
	nextSettlement := l.lastSettlement.Add(s.SettlementInterval)

	accrualDue := !now.Before(nextAccrual)
	settlementDue := !now.Before(nextSettlement)

	if !accrualDue && !settlementDue {
		return max(min(nextAccrual.Sub(now), nextSettlement.Sub(now)), minSleep)
	}

	var errs []error

	if accrualDue {
		errs = append(errs,
			l.phase(ctx, "accrual", func(ctx context.Context) error {
				_, err := l.accrual.Run(ctx, accrual.Params{
					BaseRate:      s.BaseRate,
					BatchSize:     l.cfg.BatchSize,
					MaxEntryKills: min(s.Caps.Daily, s.Caps.Weekly),
				})
				return err
			}),
			l.phase(ctx, "holding_scan", func(ctx context.Context) error {
				_, err := l.holding.Run(ctx)
				return err
			}),
		)
		l.lastAccrual = l.now()
	}

	if settlementDue {
		errs = append(errs, l.phase(ctx, "settlement", func(ctx context.Context) error {
			sum, err := l.settlement.Run(ctx, settlement.Params{Caps: s.Caps, Limit: l.cfg.BatchSize})
			if sum.PayoutsSkipped {
				l.log.Warn("settlement skipped payouts: operator balance low")
			}

			return err
		}))
		l.lastSettlement = l.now()
	}

	err := errors.Join(errs...)
	if err != nil {
		l.consecutiveErrors++
		l.metrics.SchedulerErrors.Inc()

		wait := l.backoff
		l.backoff = min(l.backoff*2, l.cfg.ErrorBackoffMax)

		l.log.Error("scheduler tick failed",
			"error", err,
			"consecutive_errors", l.consecutiveErrors,
			"backoff", wait.String(),
		)
		l.writeHeartbeat(StatusError, err)

		return wait
	}

	l.consecutiveErrors = 0
	l.backoff = l.cfg.ErrorBackoffBase
	l.writeHeartbeat(StatusOK, nil)

	return 0
}

// phase runs fn in its own span and converts a panic into an error so one
// broken phase cannot take the loop down.
func (l *Loop) phase(ctx context.Context, name string, fn func(context.Context) error) (err error) {
	ctx, span := l.tracer.Start(ctx, "scheduler."+name)
	start := l.now()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}

		outcome := "ok"
		if err != nil {
			outcome = "error"
			err = fmt.Errorf("%s: %w", name, err)

			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}

		elapsed := l.now().Sub(start)
		span.SetAttributes(attribute.String("phase.outcome", outcome))
		span.End()

		l.metrics.PhaseDuration.WithLabelValues(name, outcome).Observe(elapsed.Seconds())
	}()

	return fn(ctx)
}

func (l *Loop) stop() error {
	l.writeHeartbeat(StatusStopped, nil)
	l.log.Info("scheduler stopped")

	return nil
}

func (l *Loop) writeHeartbeat(status string, cause error) {
	hb := Heartbeat{
		TS:                        unixSeconds(l.now()),
		Status:                    status,
		PID:                       os.Getpid(),
		AccrualIntervalSeconds:    int64(l.lastSettings.AccrualInterval / time.Second),
		SettlementIntervalSeconds: int64(l.lastSettings.SettlementInterval / time.Second),
		LastAccrualTS:             unixSeconds(l.lastAccrual),
		LastSettlementTS:          unixSeconds(l.lastSettlement),
		ConsecutiveErrors:         l.consecutiveErrors,
	}

	if cause != nil {
		hb.Error = cause.Error()
	}

	err := l.heartbeat.Write(hb)
	if err != nil {
		l.log.Warn("write heartbeat", "error", err)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
