// Package balance guards payouts against an underfunded operator account.
package balance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/fastprodman/killrewards/internal/clients/rail"
	"github.com/fastprodman/killrewards/internal/infra/logging"
	"github.com/fastprodman/killrewards/internal/infra/metrics"
)

var ErrInsufficientFunds = errors.New("operator balance below minimum")

type Guard struct {
	rail    rail.Client
	account string
	min     decimal.Decimal
	metrics *metrics.Metrics
	log     *slog.Logger
}

func New(c rail.Client, account string, min decimal.Decimal, m *metrics.Metrics, log *slog.Logger) *Guard {
	return &Guard{
		rail:    c,
		account: account,
		min:     min,
		metrics: m,
		log:     logging.Component(log, "balance"),
	}
}

// Ensure returns ErrInsufficientFunds when the operator holds less than the
// configured minimum. The observed balance is exported either way.
func (g *Guard) Ensure(ctx context.Context) error {
	ok, available, err := rail.HasMinBalance(ctx, g.rail, g.min, g.account)
	if err != nil {
		return fmt.Errorf("check operator balance: %w", err)
	}

	g.metrics.OperatorBalance.Set(available.InexactFloat64())

	if !ok {
		g.log.Warn("operator balance below minimum, payouts paused",
			"available", available.String(),
			"minimum", g.min.String(),
		)

		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientFunds, available, g.min)
	}

	return nil
}
