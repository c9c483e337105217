package main

import (
	"errors"
	"log/slog"
	"time"

	"github.com/fastprodman/killrewards/internal/config"
)

type schedulerConfig struct {
	ServiceName     string        `env:"APP_SERVICE_NAME" envDefault:"killrewards-scheduler"`
	LogLevel        slog.Level    `env:"APP_LOG_LEVEL" envDefault:"INFO"`
	OpsAddr         string        `env:"OPS_ADDR" envDefault:":8080"`
	ShutdownTimeout time.Duration `env:"APP_SHUTDOWN_TIMEOUT" envDefault:"15s"`

	Postgres   config.PostgresConfig
	Payout     config.PayoutConfig
	Scheduler  config.SchedulerConfig
	Rail       config.RailConfig
	KillSource config.KillSourceConfig
	Holding    config.HoldingConfig
	Tracing    config.TracingConfig
}

func (c *schedulerConfig) Validate() error {
	errs := []error{
		c.Payout.Validate(),
		c.Scheduler.Validate(),
		c.Rail.Validate(),
		c.KillSource.Validate(),
		c.Holding.Validate(),
	}

	if c.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("APP_SHUTDOWN_TIMEOUT must be > 0"))
	}

	return errors.Join(errs...)
}
