package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fastprodman/killrewards/internal/boost"
)

var (
	ErrInvalidConfig = errors.New("invalid config")
	// ErrUnsafeConfig marks settings that would move real funds without the
	// credentials to do so safely. It is fatal at startup.
	ErrUnsafeConfig = errors.New("unsafe config")
)

type PostgresConfig struct {
	DSN             string        `env:"PG_DSN,required"`
	MaxOpenConns    int           `env:"PG_MAX_OPEN_CONNS" envDefault:"10"`
	MaxIdleConns    int           `env:"PG_MAX_IDLE_CONNS" envDefault:"5"`
	ConnMaxIdleTime time.Duration `env:"PG_CONN_MAX_IDLE_TIME" envDefault:"5m"`
	ConnMaxLifetime time.Duration `env:"PG_CONN_MAX_LIFETIME" envDefault:"30m"`
}

// PayoutConfig holds the money rules. Rate and caps are the defaults the
// operator override file may replace tick by tick.
type PayoutConfig struct {
	AmountPerKill      decimal.Decimal `env:"PAYOUT_AMOUNT_PER_KILL" envDefault:"2.1"`
	DailyKillCap       int             `env:"PAYOUT_DAILY_KILL_CAP" envDefault:"50"`
	WeeklyKillCap      int             `env:"PAYOUT_WEEKLY_KILL_CAP" envDefault:"250"`
	BatchSize          int             `env:"PAYOUT_BATCH_SIZE" envDefault:"0"`
	MaxAttempts        int             `env:"PAYOUT_MAX_ATTEMPTS" envDefault:"3"`
	RetryBaseDelay     time.Duration   `env:"PAYOUT_RETRY_BASE_DELAY" envDefault:"2s"`
	RetryMaxDelay      time.Duration   `env:"PAYOUT_RETRY_MAX_DELAY" envDefault:"30s"`
	MinOperatorBalance decimal.Decimal `env:"PAYOUT_MIN_OPERATOR_BALANCE" envDefault:"50"`
}

func (c PayoutConfig) Validate() error {
	var errs []error

	if c.AmountPerKill.IsNegative() {
		errs = append(errs, fmt.Errorf("%w: PAYOUT_AMOUNT_PER_KILL must be >= 0", ErrInvalidConfig))
	}

	if c.DailyKillCap < 0 || c.WeeklyKillCap < 0 {
		errs = append(errs, fmt.Errorf("%w: kill caps must be >= 0", ErrInvalidConfig))
	}

	if c.BatchSize < 0 {
		errs = append(errs, fmt.Errorf("%w: PAYOUT_BATCH_SIZE must be >= 0", ErrInvalidConfig))
	}

	if c.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("%w: PAYOUT_MAX_ATTEMPTS must be >= 1", ErrInvalidConfig))
	}

	if c.RetryBaseDelay < 0 || c.RetryMaxDelay < c.RetryBaseDelay {
		errs = append(errs, fmt.Errorf("%w: retry delays must satisfy 0 <= base <= max", ErrInvalidConfig))
	}

	if c.MinOperatorBalance.IsNegative() {
		errs = append(errs, fmt.Errorf("%w: PAYOUT_MIN_OPERATOR_BALANCE must be >= 0", ErrInvalidConfig))
	}

	return errors.Join(errs...)
}

type SchedulerConfig struct {
	AccrualInterval    time.Duration `env:"SCHEDULER_ACCRUAL_INTERVAL" envDefault:"20m"`
	SettlementInterval time.Duration `env:"SCHEDULER_SETTLEMENT_INTERVAL" envDefault:"20m"`
	MinInterval        time.Duration `env:"SCHEDULER_MIN_INTERVAL" envDefault:"30s"`
	ErrorBackoffBase   time.Duration `env:"SCHEDULER_ERROR_BACKOFF_BASE" envDefault:"1s"`
	ErrorBackoffMax    time.Duration `env:"SCHEDULER_ERROR_BACKOFF_MAX" envDefault:"60s"`
	StartJitter        time.Duration `env:"SCHEDULER_START_JITTER" envDefault:"0s"`
	OverridesFile      string        `env:"SCHEDULER_OVERRIDES_FILE" envDefault:"/tmp/scheduler_overrides.json"`
	HeartbeatFile      string        `env:"SCHEDULER_HEARTBEAT_FILE" envDefault:"/tmp/scheduler_heartbeat.json"`
}

func (c SchedulerConfig) Validate() error {
	var errs []error

	if c.MinInterval <= 0 {
		errs = append(errs, fmt.Errorf("%w: SCHEDULER_MIN_INTERVAL must be > 0", ErrInvalidConfig))
	}

	if c.AccrualInterval < c.MinInterval || c.SettlementInterval < c.MinInterval {
		errs = append(errs, fmt.Errorf("%w: intervals must be >= %s", ErrInvalidConfig, c.MinInterval))
	}

	if c.ErrorBackoffBase <= 0 || c.ErrorBackoffMax < c.ErrorBackoffBase {
		errs = append(errs, fmt.Errorf("%w: error backoff must satisfy 0 < base <= max", ErrInvalidConfig))
	}

	if c.StartJitter < 0 {
		errs = append(errs, fmt.Errorf("%w: SCHEDULER_START_JITTER must be >= 0", ErrInvalidConfig))
	}

	if c.OverridesFile == "" || c.HeartbeatFile == "" {
		errs = append(errs, fmt.Errorf("%w: overrides and heartbeat paths are required", ErrInvalidConfig))
	}

	return errors.Join(errs...)
}

type RailConfig struct {
	DryRun          bool          `env:"RAIL_DRY_RUN" envDefault:"true"`
	NodeURL         string        `env:"RAIL_NODE_URL"`
	Wallet          string        `env:"RAIL_WALLET"`
	OperatorAccount string        `env:"RAIL_OPERATOR_ACCOUNT"`
	Timeout         time.Duration `env:"RAIL_TIMEOUT" envDefault:"10s"`
}

// Validate refuses to run against a live rail without credentials.
func (c RailConfig) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("%w: RAIL_TIMEOUT must be > 0", ErrInvalidConfig)
	}

	if c.DryRun {
		return nil
	}

	var missing []string

	if c.NodeURL == "" {
		missing = append(missing, "RAIL_NODE_URL")
	}

	if c.Wallet == "" {
		missing = append(missing, "RAIL_WALLET")
	}

	if c.OperatorAccount == "" {
		missing = append(missing, "RAIL_OPERATOR_ACCOUNT")
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w: live payouts require %v", ErrUnsafeConfig, missing)
	}

	return nil
}

type KillSourceConfig struct {
	BaseURL   string        `env:"KILLSOURCE_BASE_URL"`
	APIKey    string        `env:"KILLSOURCE_API_KEY"`
	KillsPath string        `env:"KILLSOURCE_KILLS_PATH" envDefault:"data.stats.all.overall.kills"`
	PerMinute int           `env:"KILLSOURCE_PER_MINUTE" envDefault:"60"`
	Timeout   time.Duration `env:"KILLSOURCE_TIMEOUT" envDefault:"10s"`
}

func (c KillSourceConfig) Validate() error {
	if c.PerMinute < 1 {
		return fmt.Errorf("%w: KILLSOURCE_PER_MINUTE must be >= 1", ErrInvalidConfig)
	}

	if c.BaseURL != "" && c.KillsPath == "" {
		return fmt.Errorf("%w: KILLSOURCE_KILLS_PATH is required with a base url", ErrInvalidConfig)
	}

	return nil
}

type HoldingConfig struct {
	Enabled   bool          `env:"HOLDING_BOOST_ENABLED" envDefault:"false"`
	RPCURL    string        `env:"HOLDING_RPC_URL" envDefault:"https://api.mainnet-beta.solana.com"`
	TokenMint string        `env:"HOLDING_TOKEN_MINT"`
	Tiers     boost.Tiers   `env:"HOLDING_TIERS" envDefault:"10000:1.10,100000:1.20,1000000:1.35,10000000:1.50,100000000:1.75"`
	BatchSize int           `env:"HOLDING_BATCH_SIZE" envDefault:"0"`
	Timeout   time.Duration `env:"HOLDING_TIMEOUT" envDefault:"10s"`
}

func (c HoldingConfig) Validate() error {
	if c.Enabled && (c.RPCURL == "" || c.TokenMint == "") {
		return fmt.Errorf("%w: holding boost requires HOLDING_RPC_URL and HOLDING_TOKEN_MINT", ErrInvalidConfig)
	}

	if c.BatchSize < 0 {
		return fmt.Errorf("%w: HOLDING_BATCH_SIZE must be >= 0", ErrInvalidConfig)
	}

	return nil
}

type TracingConfig struct {
	Endpoint    string  `env:"OTEL_EXPORTER_ENDPOINT"`
	SampleRatio float64 `env:"OTEL_SAMPLE_RATIO" envDefault:"1"`
}
