// Package repair restores the ledger invariants before each settlement:
// every settled entry points at a payout, and no sent payout carries more
// linked value than it actually paid.
package repair

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/fastprodman/killrewards/internal/infra/logging"
	"github.com/fastprodman/killrewards/internal/infra/metrics"
	"github.com/fastprodman/killrewards/internal/infra/pgutils"
	"github.com/fastprodman/killrewards/internal/money"
	"github.com/fastprodman/killrewards/internal/repos/entries"
	pgentries "github.com/fastprodman/killrewards/internal/repos/entries/postgres"
	"github.com/fastprodman/killrewards/internal/repos/payouts"
	pgpayouts "github.com/fastprodman/killrewards/internal/repos/payouts/postgres"
)

type Summary struct {
	Orphans   int64
	Underpaid int64
}

type Service struct {
	db      *sql.DB
	entries entries.Entries
	payouts payouts.Payouts
	metrics *metrics.Metrics
	log     *slog.Logger
}

func New(db *sql.DB, m *metrics.Metrics, log *slog.Logger) *Service {
	return &Service{
		db:      db,
		entries: pgentries.New(db),
		payouts: pgpayouts.New(db),
		metrics: m,
		log:     logging.Component(log, "repair"),
	}
}

// Run executes both passes. Orphans go first so the underpaid pass only
// sees linked entries.
func (s *Service) Run(ctx context.Context) (Summary, error) {
	var sum Summary

	orphans, err := s.RepairOrphans(ctx)
	if err != nil {
		return sum, err
	}

	sum.Orphans = orphans

	underpaid, err := s.RepairUnderpaid(ctx)
	if err != nil {
		return sum, err
	}

	sum.Underpaid = underpaid

	return sum, nil
}

// RepairOrphans returns entries marked settled without a payout to the
// unsettled pool.
func (s *Service) RepairOrphans(ctx context.Context) (int64, error) {
	n, err := s.entries.ResetOrphans(ctx)
	if err != nil {
		return 0, fmt.Errorf("repair orphans: %w", err)
	}

	if n > 0 {
		s.metrics.RepairedEntries.WithLabelValues("orphan").Add(float64(n))
		s.log.Warn("orphaned settled entries reset", "entries", n)
	}

	return n, nil
}

// RepairUnderpaid detaches linked entries, newest first, from every sent
// payout whose linked sum exceeds its amount until the sum fits.
func (s *Service) RepairUnderpaid(ctx context.Context) (int64, error) {
	over, err := s.entries.OverLinkedPayouts(ctx)
	if err != nil {
		return 0, fmt.Errorf("repair underpaid: %w", err)
	}

	var total int64

	for _, o := range over {
		n, err := s.detachExcess(ctx, o.PayoutID)
		if err != nil {
			return total, fmt.Errorf("repair underpaid payout %d: %w", o.PayoutID, err)
		}

		if n > 0 {
			s.log.Warn("over-linked payout repaired",
				"payout_id", o.PayoutID,
				"amount", o.Amount.String(),
				"linked_sum", o.LinkedSum.String(),
				"entries_detached", n,
			)
		}

		total += n
	}

	if total > 0 {
		s.metrics.RepairedEntries.WithLabelValues("underpaid").Add(float64(total))
	}

	return total, nil
}

var errSkip = errors.New("payout no longer sent")

func (s *Service) detachExcess(ctx context.Context, payoutID int64) (int64, error) {
	var detached int64

	err := pgutils.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		p, err := s.payouts.LockForUpdate(ctx, tx, payoutID)
		if err != nil {
			return err
		}

		if p.Status != payouts.StatusSent {
			return errSkip
		}

		linked, err := s.entries.ListByPayout(ctx, tx, payoutID)
		if err != nil {
			return err
		}

		ids := excessEntries(linked, p.Amount)

		detached, err = s.entries.Detach(ctx, tx, ids)

		return err
	})
	if errors.Is(err, errSkip) {
		return 0, nil
	}

	return detached, err
}

// excessEntries walks linked (newest first) and returns the ids to detach
// so the remaining sum is at most amount.
func excessEntries(linked []entries.Entry, amount decimal.Decimal) []int64 {
	amounts := make([]decimal.Decimal, len(linked))
	for i, e := range linked {
		amounts[i] = e.Amount
	}

	remaining := money.Sum(amounts...)

	var ids []int64

	for _, e := range linked {
		if remaining.LessThanOrEqual(amount) {
			break
		}

		ids = append(ids, e.ID)
		remaining = remaining.Sub(e.Amount)
	}

	return ids
}
