// Package settlement groups unsettled ledger entries per player, applies the
// kill caps and hands the payable part to the payout engine.
package settlement

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fastprodman/killrewards/internal/infra/logging"
	"github.com/fastprodman/killrewards/internal/infra/metrics"
	"github.com/fastprodman/killrewards/internal/repos/entries"
	pgentries "github.com/fastprodman/killrewards/internal/repos/entries/postgres"
	"github.com/fastprodman/killrewards/internal/repos/players"
	pgplayers "github.com/fastprodman/killrewards/internal/repos/players/postgres"
	"github.com/fastprodman/killrewards/internal/services/balance"
	"github.com/fastprodman/killrewards/internal/services/payout"
	"github.com/fastprodman/killrewards/internal/services/repair"
)

const (
	day  = 24 * time.Hour
	week = 7 * day
)

type Params struct {
	Caps Caps
	// Limit bounds candidates per cycle; zero means all.
	Limit int
}

type Summary struct {
	Repair     repair.Summary
	Candidates int
	Paid       int
	Failed     int
	// Deferred counts unsettled entries left for a later cycle.
	Deferred int
	// NoAddress counts candidates skipped for lack of a verified wallet.
	NoAddress      int
	PayoutsSkipped bool
}

type Service struct {
	entries entries.Entries
	players players.Players
	repair  *repair.Service
	payout  *payout.Engine
	guard   *balance.Guard
	metrics *metrics.Metrics
	log     *slog.Logger

	now func() time.Time
}

func New(
	db *sql.DB,
	rep *repair.Service,
	pay *payout.Engine,
	guard *balance.Guard,
	m *metrics.Metrics,
	log *slog.Logger,
) *Service {
	return &Service{
		entries: pgentries.New(db),
		players: pgplayers.New(db),
		repair:  rep,
		payout:  pay,
		guard:   guard,
		metrics: m,
		log:     logging.Component(log, "settlement"),
		now:     time.Now,
	}
}

// SelectCandidates returns per-player unsettled totals. The database draws
// them in random order before applying limit, so with a batch limit every
// player with unsettled work is reached over successive cycles.
func (s *Service) SelectCandidates(ctx context.Context, limit int) ([]entries.UnsettledTotal, error) {
	totals, err := s.entries.UnsettledTotals(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("select candidates: %w", err)
	}

	return totals, nil
}

// Run performs one settlement cycle: repair, treasury check, then one
// payout per candidate. Per-player failures are logged and counted.
func (s *Service) Run(ctx context.Context, p Params) (Summary, error) {
	var sum Summary

	rep, err := s.repair.Run(ctx)
	sum.Repair = rep
	if err != nil {
		return sum, err
	}

	err = s.guard.Ensure(ctx)
	if errors.Is(err, balance.ErrInsufficientFunds) {
		sum.PayoutsSkipped = true
		return sum, nil
	}

	if err != nil {
		return sum, err
	}

	candidates, err := s.SelectCandidates(ctx, p.Limit)
	if err != nil {
		return sum, err
	}

	sum.Candidates = len(candidates)
	s.metrics.SettlementCandidates.Add(float64(len(candidates)))

	for _, c := range candidates {
		s.settlePlayer(ctx, c.PlayerID, p.Caps, &sum)
	}

	s.metrics.SettlementDeferred.Add(float64(sum.Deferred))

	s.log.Info("settlement cycle finished",
		"candidates", sum.Candidates,
		"paid", sum.Paid,
		"failed", sum.Failed,
		"deferred_entries", sum.Deferred,
		"no_address", sum.NoAddress,
		"orphans_repaired", sum.Repair.Orphans,
		"underpaid_repaired", sum.Repair.Underpaid,
	)

	return sum, nil
}

func (s *Service) settlePlayer(ctx context.Context, playerID int64, caps Caps, sum *Summary) {
	log := s.log.With("player_id", playerID)

	address, err := s.players.PayoutAddress(ctx, playerID)
	if errors.Is(err, players.ErrNoPayoutAddress) {
		sum.NoAddress++
		log.Warn("no verified payout address, skipping")
		return
	}

	if err != nil {
		sum.Failed++
		log.Error("payout address lookup failed", "error", err)
		return
	}

	unsettled, err := s.entries.ListUnsettled(ctx, playerID)
	if err != nil {
		sum.Failed++
		log.Error("list unsettled entries failed", "error", err)
		return
	}

	if len(unsettled) == 0 {
		return
	}

	now := s.now()

	paid24h, err := s.entries.CommittedKillsSince(ctx, playerID, now.Add(-day))
	if err != nil {
		sum.Failed++
		log.Error("daily paid kills lookup failed", "error", err)
		return
	}

	paid7d, err := s.entries.CommittedKillsSince(ctx, playerID, now.Add(-week))
	if err != nil {
		sum.Failed++
		log.Error("weekly paid kills lookup failed", "error", err)
		return
	}

	c := ApplyCaps(NewCandidate(playerID, unsettled), unsettled, paid24h, paid7d, caps)

	sum.Deferred += len(unsettled) - len(c.Selected)

	if len(c.Oversized) > 0 {
		log.Warn("entries exceed the kill cap, waiting for a higher cap",
			"entries", len(c.Oversized),
			"oldest_entry_kills", c.Oversized[0].Kills,
			"daily_cap", caps.Daily,
			"weekly_cap", caps.Weekly,
		)
	}

	if len(c.Selected) == 0 || !c.PayoutAmount.IsPositive() {
		switch {
		case c.PayableKills == 0:
			log.Info("kill cap reached, deferring", "paid_24h", paid24h, "paid_7d", paid7d)
		default:
			log.Warn("no entry fits within the cap, deferring",
				"payable_kills", c.PayableKills,
				"oldest_entry_kills", unsettled[0].Kills,
			)
		}

		return
	}

	paid, err := s.payout.Pay(ctx, playerID, address, c.PayoutAmount, c.Selected)
	if err != nil {
		sum.Failed++
		log.Error("payout failed", "payout_id", paid.ID, "error", err)
		return
	}

	sum.Paid++
}
