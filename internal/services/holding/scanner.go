// Package holding refreshes stored token balances from the holding oracle.
package holding

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/fastprodman/killrewards/internal/clients/oracle"
	"github.com/fastprodman/killrewards/internal/infra/logging"
	"github.com/fastprodman/killrewards/internal/infra/metrics"
	"github.com/fastprodman/killrewards/internal/repos/players"
	pgplayers "github.com/fastprodman/killrewards/internal/repos/players/postgres"
)

type ScanSummary struct {
	Scanned int
	Updated int
	Errors  int
}

// Scanner refreshes the stored holding balance of every player with a
// linked holding address.
type Scanner struct {
	players   players.Players
	oracle    oracle.Oracle
	enabled   bool
	batchSize int
	metrics   *metrics.Metrics
	log       *slog.Logger

	now func() time.Time
}

// NewScanner returns a scanner; a nil oracle or enabled=false makes Run a
// no-op.
func NewScanner(db *sql.DB, o oracle.Oracle, enabled bool, batchSize int, m *metrics.Metrics, log *slog.Logger) *Scanner {
	return &Scanner{
		players:   pgplayers.New(db),
		oracle:    o,
		enabled:   enabled && o != nil,
		batchSize: batchSize,
		metrics:   m,
		log:       logging.Component(log, "holding"),
		now:       time.Now,
	}
}

// Run queries the oracle per holder. An oracle error keeps the previous
// balance rather than zeroing it.
func (s *Scanner) Run(ctx context.Context) (ScanSummary, error) {
	var sum ScanSummary

	if !s.enabled {
		return sum, nil
	}

	holders, err := s.players.ListHolders(ctx, s.batchSize)
	if err != nil {
		return sum, fmt.Errorf("list holders: %w", err)
	}

	for _, p := range holders {
		sum.Scanned++

		balance, err := s.oracle.Balance(ctx, *p.HoldingAddress)
		if err != nil {
			sum.Errors++
			s.log.Warn("holding balance unavailable, keeping previous", "player_id", p.ID, "error", err)
			continue
		}

		if balance == p.HoldingBalance {
			continue
		}

		err = s.players.UpdateHolding(ctx, p.ID, balance, s.now())
		if err != nil {
			sum.Errors++
			s.log.Error("update holding balance", "player_id", p.ID, "error", err)
			continue
		}

		sum.Updated++
		s.log.Info("holding balance changed", "player_id", p.ID, "from", p.HoldingBalance, "to", balance)
	}

	s.metrics.HoldingScanned.Add(float64(sum.Scanned))
	s.metrics.HoldingUpdated.Add(float64(sum.Updated))

	return sum, nil
}
