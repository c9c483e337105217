package balance

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastprodman/killrewards/internal/clients/rail"
	"github.com/fastprodman/killrewards/internal/infra/logging"
	"github.com/fastprodman/killrewards/internal/infra/metrics"
)

type fixedRail struct {
	available decimal.Decimal
	err       error
}

func (f fixedRail) Send(context.Context, rail.Transfer) rail.SendResult {
	return rail.SendResult{Outcome: rail.Permanent}
}

func (f fixedRail) Balance(context.Context, string) (decimal.Decimal, decimal.Decimal, error) {
	return f.available, decimal.Zero, f.err
}

func TestGuard_Ensure(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		rail      rail.Client
		wantErr   error
		anyErr    bool
		wantGauge float64
	}{
		{name: "funded", rail: fixedRail{available: decimal.NewFromInt(75)}, wantGauge: 75},
		{name: "exactly minimum", rail: fixedRail{available: decimal.NewFromInt(50)}, wantGauge: 50},
		{name: "underfunded", rail: fixedRail{available: decimal.RequireFromString("49.9")}, wantErr: ErrInsufficientFunds, wantGauge: 49.9},
		{name: "node error", rail: fixedRail{err: errors.New("down")}, anyErr: true},
		{name: "dry run", rail: rail.DryRun{}, wantGauge: 100},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			m := metrics.New()
			g := New(tc.rail, "ban_operator", decimal.NewFromInt(50), m, logging.Discard())

			err := g.Ensure(context.Background())

			switch {
			case tc.wantErr != nil:
				require.ErrorIs(t, err, tc.wantErr)
			case tc.anyErr:
				require.Error(t, err)
				assert.NotErrorIs(t, err, ErrInsufficientFunds)
				return
			default:
				require.NoError(t, err)
			}

			assert.InDelta(t, tc.wantGauge, testutil.ToFloat64(m.OperatorBalance), 1e-9)
		})
	}
}
