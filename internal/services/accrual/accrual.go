// Package accrual converts kill progress into append-only ledger entries.
package accrual

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fastprodman/killrewards/internal/boost"
	"github.com/fastprodman/killrewards/internal/clients/killsource"
	"github.com/fastprodman/killrewards/internal/infra/logging"
	"github.com/fastprodman/killrewards/internal/infra/metrics"
	"github.com/fastprodman/killrewards/internal/infra/pgutils"
	"github.com/fastprodman/killrewards/internal/money"
	"github.com/fastprodman/killrewards/internal/repos/entries"
	pgentries "github.com/fastprodman/killrewards/internal/repos/entries/postgres"
	"github.com/fastprodman/killrewards/internal/repos/players"
	pgplayers "github.com/fastprodman/killrewards/internal/repos/players/postgres"
)

// bucketWidth is the granularity of ledger entries: at most one per player
// per bucket.
const bucketWidth = 60

type Result struct {
	PlayerID   int64
	KillsDelta int64
	Amount     decimal.Decimal
	TimeBucket int64
	EntryID    int64
	// Created is false when the bucket already held an entry.
	Created bool
}

type Params struct {
	BaseRate  decimal.Decimal
	BatchSize int
	// MaxEntryKills bounds the kills booked into one entry, so every entry
	// fits the smaller kill cap on its own. Any excess stays behind the
	// cursor for later buckets. Zero means unbounded.
	MaxEntryKills int64
}

type Summary struct {
	UsersConsidered int
	EntriesCreated  int
	ZeroDelta       int
	Duplicates      int
	Failed          int
	TotalKills      int64
}

type Engine struct {
	db      *sql.DB
	players players.Players
	entries entries.Entries
	source  killsource.Source
	tiers   boost.Tiers
	metrics *metrics.Metrics
	log     *slog.Logger

	now func() time.Time
}

// New builds the engine. tiers may be empty, in which case every player
// earns the base rate.
func New(db *sql.DB, source killsource.Source, tiers boost.Tiers, m *metrics.Metrics, log *slog.Logger) *Engine {
	return &Engine{
		db:      db,
		players: pgplayers.New(db),
		entries: pgentries.New(db),
		source:  source,
		tiers:   tiers,
		metrics: m,
		log:     logging.Component(log, "accrual"),
		now:     time.Now,
	}
}

// AccrueForPlayer records the player's new kills as one ledger entry and
// advances the kill cursor in the same transaction.
//
// Kill source failures, rate limiting and zero progress produce a zero
// result, never an error. A bucket that already holds an entry is returned
// unchanged and the cursor is left alone so the kills are picked up in a
// later bucket. With maxKills > 0 a larger delta is booked in part and the
// cursor advances only by maxKills.
func (e *Engine) AccrueForPlayer(ctx context.Context, p players.Player, baseRate decimal.Decimal, maxKills int64) (Result, error) {
	res := Result{PlayerID: p.ID}

	if p.ExternalID == nil {
		e.skip("no_external_id")
		return res, nil
	}

	delta, err := e.source.KillsSince(ctx, *p.ExternalID, p.KillCursor)
	if err != nil {
		if errors.Is(err, killsource.ErrRateLimited) {
			e.skip("rate_limited")
			e.log.Debug("kill source rate limited", "player_id", p.ID)
		} else {
			e.skip("source_error")
			e.log.Warn("kill source failed", "player_id", p.ID, "error", err)
		}

		return res, nil
	}

	if delta.Kills <= 0 {
		return res, nil
	}

	if maxKills > 0 && delta.Kills > maxKills {
		e.log.Info("kill backlog exceeds entry limit, booking in part",
			"player_id", p.ID,
			"kills", delta.Kills,
			"booked", maxKills,
		)

		delta = killsource.Delta{NewCursor: p.KillCursor + maxKills, Kills: maxKills}
	}

	rate := baseRate.Mul(e.tiers.Multiplier(p.HoldingBalance))

	res.KillsDelta = delta.Kills
	res.Amount = money.PerKill(delta.Kills, rate)
	res.TimeBucket = e.now().Unix() / bucketWidth

	err = pgutils.WithTx(ctx, e.db, func(tx *sql.Tx) error {
		entry, err := e.entries.Insert(ctx, tx, entries.NewEntry{
			PlayerID:   p.ID,
			Kills:      res.KillsDelta,
			Amount:     res.Amount,
			TimeBucket: res.TimeBucket,
		})
		if errors.Is(err, entries.ErrDuplicateEntry) {
			existing, err := e.entries.GetByBucket(ctx, tx, p.ID, res.TimeBucket)
			if err != nil {
				return fmt.Errorf("load existing entry: %w", err)
			}

			res.EntryID = existing.ID
			res.KillsDelta = existing.Kills
			res.Amount = existing.Amount

			return nil
		}

		if err != nil {
			return err
		}

		err = e.players.AdvanceCursor(ctx, tx, p.ID, p.KillCursor, delta.NewCursor)
		if err != nil {
			return err
		}

		res.EntryID = entry.ID
		res.Created = true

		return nil
	})
	if err != nil {
		return Result{PlayerID: p.ID}, fmt.Errorf("accrue player %d: %w", p.ID, err)
	}

	return res, nil
}

// Run accrues every eligible player once. Per-player failures are logged
// and counted; only failing to list players aborts the run.
func (e *Engine) Run(ctx context.Context, p Params) (Summary, error) {
	var sum Summary

	eligible, err := e.players.ListEligible(ctx, p.BatchSize)
	if err != nil {
		return sum, fmt.Errorf("list eligible players: %w", err)
	}

	for _, player := range eligible {
		sum.UsersConsidered++

		res, err := e.AccrueForPlayer(ctx, player, p.BaseRate, p.MaxEntryKills)
		if err != nil {
			sum.Failed++
			e.log.Error("accrual failed", "player_id", player.ID, "error", err)

			continue
		}

		switch {
		case res.Created:
			sum.EntriesCreated++
			sum.TotalKills += res.KillsDelta
		case res.EntryID != 0:
			sum.Duplicates++
		default:
			sum.ZeroDelta++
		}
	}

	e.metrics.AccrualUsers.Add(float64(sum.UsersConsidered))
	e.metrics.AccrualCreated.Add(float64(sum.EntriesCreated))
	e.metrics.AccrualZero.Add(float64(sum.ZeroDelta))
	e.metrics.AccrualKills.Add(float64(sum.TotalKills))

	e.log.Info("accrual run finished",
		"users_considered", sum.UsersConsidered,
		"entries_created", sum.EntriesCreated,
		"zero_delta", sum.ZeroDelta,
		"duplicates", sum.Duplicates,
		"failed", sum.Failed,
		"total_kills", sum.TotalKills,
	)

	return sum, nil
}

func (e *Engine) skip(reason string) {
	e.metrics.AccrualSkipped.WithLabelValues(reason).Inc()
}
