package config

import (
	"errors"
	"testing"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/shopspring/decimal"
)

func validPayout() PayoutConfig {
	return PayoutConfig{
		AmountPerKill:      decimal.RequireFromString("2.1"),
		DailyKillCap:       50,
		WeeklyKillCap:      250,
		MaxAttempts:        3,
		RetryBaseDelay:     time.Second,
		RetryMaxDelay:      30 * time.Second,
		MinOperatorBalance: decimal.NewFromInt(50),
	}
}

func validScheduler() SchedulerConfig {
	return SchedulerConfig{
		AccrualInterval:    20 * time.Minute,
		SettlementInterval: 20 * time.Minute,
		MinInterval:        30 * time.Second,
		ErrorBackoffBase:   time.Second,
		ErrorBackoffMax:    time.Minute,
		OverridesFile:      "/tmp/o.json",
		HeartbeatFile:      "/tmp/h.json",
	}
}

func TestPayoutConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*PayoutConfig)
		wantErr bool
	}{
		{name: "ok", mutate: func(*PayoutConfig) {}},
		{name: "zero_caps_allowed", mutate: func(c *PayoutConfig) { c.DailyKillCap, c.WeeklyKillCap = 0, 0 }},
		{name: "negative_daily_cap", mutate: func(c *PayoutConfig) { c.DailyKillCap = -1 }, wantErr: true},
		{name: "negative_rate", mutate: func(c *PayoutConfig) { c.AmountPerKill = decimal.NewFromInt(-1) }, wantErr: true},
		{name: "no_attempts", mutate: func(c *PayoutConfig) { c.MaxAttempts = 0 }, wantErr: true},
		{name: "max_below_base", mutate: func(c *PayoutConfig) { c.RetryMaxDelay = time.Millisecond }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := validPayout()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr != (err != nil) {
				t.Fatalf("wantErr=%v, got %v", tt.wantErr, err)
			}

			if err != nil && !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestSchedulerConfig_Validate(t *testing.T) {
	t.Parallel()

	cfg := validScheduler()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg.SettlementInterval = 10 * time.Second
	if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected interval floor violation, got %v", err)
	}
}

func TestRailConfig_Validate(t *testing.T) {
	t.Parallel()

	dry := RailConfig{DryRun: true, Timeout: time.Second}
	if err := dry.Validate(); err != nil {
		t.Fatalf("dry run should not need credentials: %v", err)
	}

	live := RailConfig{DryRun: false, Timeout: time.Second, NodeURL: "http://node"}

	err := live.Validate()
	if !errors.Is(err, ErrUnsafeConfig) {
		t.Fatalf("expected ErrUnsafeConfig, got %v", err)
	}

	live.Wallet = "wallet"
	live.OperatorAccount = "ban_1operator"

	if err := live.Validate(); err != nil {
		t.Fatalf("unexpected error with full credentials: %v", err)
	}
}

func TestHoldingConfig_Validate(t *testing.T) {
	t.Parallel()

	cfg := HoldingConfig{Enabled: true, RPCURL: "http://rpc"}
	if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected missing mint to fail, got %v", err)
	}

	cfg.TokenMint = "mint"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestHoldingConfig_DecodesTiers(t *testing.T) {
	t.Parallel()

	cfg, err := env.ParseAsWithOptions[HoldingConfig](env.Options{
		Environment: map[string]string{"HOLDING_TIERS": "100:1.05,500:1.25"},
	})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if got := cfg.Tiers.Multiplier(250); !got.Equal(decimal.RequireFromString("1.05")) {
		t.Fatalf("multiplier at 250 = %s, want 1.05", got)
	}
	if got := cfg.Tiers.Multiplier(500); !got.Equal(decimal.RequireFromString("1.25")) {
		t.Fatalf("multiplier at 500 = %s, want 1.25", got)
	}

	_, err = env.ParseAsWithOptions[HoldingConfig](env.Options{
		Environment: map[string]string{"HOLDING_TIERS": "100:0.5"},
	})
	if err == nil {
		t.Fatal("expected a multiplier below 1 to be rejected")
	}
}
