package scheduler

import (
	"errors"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/fastprodman/killrewards/internal/services/settlement"
)

// Settings are the knobs an operator may change while the loop runs.
type Settings struct {
	AccrualInterval    time.Duration
	SettlementInterval time.Duration
	BaseRate           decimal.Decimal
	Caps               settlement.Caps
}

// OverridesFile reads Settings from a YAML or JSON document on every tick.
// Each field falls back to its default on its own: a missing file, a parse
// error or an invalid value never affects the other fields.
//
//	accrual_interval_seconds: 600
//	settlement_interval_seconds: 900
//	payout:
//	  ban_per_kill: 2.5
//	  daily_kill_cap: 40
//	  weekly_kill_cap: 200
type OverridesFile struct {
	path     string
	defaults Settings
	floor    time.Duration
	log      *slog.Logger
}

func NewOverridesFile(path string, defaults Settings, floor time.Duration, log *slog.Logger) *OverridesFile {
	return &OverridesFile{
		path:     path,
		defaults: defaults,
		floor:    floor,
		log:      log,
	}
}

func (o *OverridesFile) Defaults() Settings { return o.defaults }

func (o *OverridesFile) Read() Settings {
	s := o.defaults

	data, err := os.ReadFile(o.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			o.log.Warn("read overrides file", "path", o.path, "error", err)
		}

		return s
	}

	var doc map[string]any

	err = yaml.Unmarshal(data, &doc)
	if err != nil {
		o.log.Warn("parse overrides file", "path", o.path, "error", err)
		return s
	}

	if v, ok := seconds(doc["accrual_interval_seconds"]); ok {
		s.AccrualInterval = max(v, o.floor)
	}

	if v, ok := seconds(doc["settlement_interval_seconds"]); ok {
		s.SettlementInterval = max(v, o.floor)
	}

	payout, _ := doc["payout"].(map[string]any)

	if v, ok := nonNegativeDecimal(payout["ban_per_kill"]); ok {
		s.BaseRate = v
	}

	if v, ok := nonNegativeInt(payout["daily_kill_cap"]); ok {
		s.Caps.Daily = v
	}

	if v, ok := nonNegativeInt(payout["weekly_kill_cap"]); ok {
		s.Caps.Weekly = v
	}

	return s
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, !math.IsNaN(n) && !math.IsInf(n, 0)
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}

		return f, true
	default:
		return 0, false
	}
}

func seconds(v any) (time.Duration, bool) {
	f, ok := number(v)
	if !ok || f <= 0 || f > math.MaxInt64/float64(time.Second) {
		return 0, false
	}

	return time.Duration(f * float64(time.Second)), true
}

func nonNegativeInt(v any) (int64, bool) {
	f, ok := number(v)
	if !ok || f < 0 || f != math.Trunc(f) || f > math.MaxInt32 {
		return 0, false
	}

	return int64(f), true
}

func nonNegativeDecimal(v any) (decimal.Decimal, bool) {
	var (
		d   decimal.Decimal
		err error
	)

	switch n := v.(type) {
	case string:
		d, err = decimal.NewFromString(n)
	case int:
		d = decimal.NewFromInt(int64(n))
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return decimal.Zero, false
		}

		d = decimal.NewFromFloat(n)
	default:
		return decimal.Zero, false
	}

	if err != nil || d.IsNegative() {
		return decimal.Zero, false
	}

	return d, true
}
