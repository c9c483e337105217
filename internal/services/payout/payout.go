// Package payout turns a set of ledger entries into exactly one transfer.
//
// The entry set determines an idempotency key; a second attempt for the same
// set finds the existing payout instead of creating a new one, and a payout
// that already reached the rail is never sent again.
package payout

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fastprodman/killrewards/internal/clients/rail"
	"github.com/fastprodman/killrewards/internal/infra/logging"
	"github.com/fastprodman/killrewards/internal/infra/metrics"
	"github.com/fastprodman/killrewards/internal/infra/pgutils"
	"github.com/fastprodman/killrewards/internal/money"
	"github.com/fastprodman/killrewards/internal/repos/entries"
	pgentries "github.com/fastprodman/killrewards/internal/repos/entries/postgres"
	"github.com/fastprodman/killrewards/internal/repos/payouts"
	pgpayouts "github.com/fastprodman/killrewards/internal/repos/payouts/postgres"
	"github.com/fastprodman/killrewards/internal/repos/players"
	pgplayers "github.com/fastprodman/killrewards/internal/repos/players/postgres"
)

var (
	ErrEmptyPayout = errors.New("payout has no entries or no amount")
	// ErrTransferFailed is returned with the failed payout once retries are
	// exhausted or the rail rejected the transfer.
	ErrTransferFailed = errors.New("transfer failed")
)

type Options struct {
	// From is the operator account funds are sent from.
	From        string
	MaxAttempts int
	Retry       Backoff
}

type Engine struct {
	db      *sql.DB
	payouts payouts.Payouts
	entries entries.Entries
	players players.Players
	rail    rail.Client
	opts    Options
	metrics *metrics.Metrics
	log     *slog.Logger

	now   func() time.Time
	sleep func(context.Context, time.Duration) error
	rand  func() float64
}

func New(db *sql.DB, c rail.Client, opts Options, m *metrics.Metrics, log *slog.Logger) *Engine {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}

	return &Engine{
		db:      db,
		payouts: pgpayouts.New(db),
		entries: pgentries.New(db),
		players: pgplayers.New(db),
		rail:    c,
		opts:    opts,
		metrics: m,
		log:     logging.Component(log, "payout"),
		now:     time.Now,
		sleep:   sleepCtx,
		rand:    rand.Float64,
	}
}

// Pay settles selected for playerID with a single transfer of amount.
//
//  1. Derive the idempotency key from the entry ids.
//  2. A sent payout with that key is returned as is.
//  3. Otherwise create the pending payout and link the entries in one
//     transaction, or reuse a pending/failed payout with the same key.
//  4. Transfer and record the outcome.
func (e *Engine) Pay(ctx context.Context, playerID int64, address string, amount decimal.Decimal, selected []entries.Entry) (payouts.Payout, error) {
	if len(selected) == 0 || !amount.IsPositive() {
		return payouts.Payout{}, ErrEmptyPayout
	}

	ids := make([]int64, len(selected))
	for i, entry := range selected {
		ids[i] = entry.ID
	}

	key := IdempotencyKey(ids)

	existing, err := e.payouts.GetByKey(ctx, e.db, playerID, key)
	switch {
	case err == nil:
		return e.resume(ctx, existing)
	case !errors.Is(err, payouts.ErrPayoutNotFound):
		return payouts.Payout{}, fmt.Errorf("lookup payout: %w", err)
	}

	var (
		p      payouts.Payout
		reused bool
	)

	err = pgutils.WithTx(ctx, e.db, func(tx *sql.Tx) error {
		var err error

		p, err = e.payouts.Insert(ctx, tx, payouts.NewPayout{
			PlayerID:       playerID,
			Address:        address,
			Amount:         money.Truncate(amount),
			IdempotencyKey: key,
		})
		if errors.Is(err, payouts.ErrDuplicatePayout) {
			// lost a race with another settler for the same entry set
			reused = true

			p, err = e.payouts.GetByKey(ctx, tx, playerID, key)
			if err != nil {
				return fmt.Errorf("reload payout: %w", err)
			}

			return nil
		}

		if err != nil {
			return fmt.Errorf("insert payout: %w", err)
		}

		err = e.entries.MarkSettled(ctx, tx, p.ID, ids, e.now())
		if err != nil {
			return fmt.Errorf("link entries: %w", err)
		}

		return nil
	})
	if err != nil {
		return payouts.Payout{}, fmt.Errorf("create payout: %w", err)
	}

	if reused {
		return e.resume(ctx, p)
	}

	e.log.Info("payout created",
		"payout_id", p.ID,
		"player_id", playerID,
		"amount", p.Amount.String(),
		"entries", len(ids),
	)

	return e.transfer(ctx, p)
}

// Redrive retries the transfer of a pending or failed payout. A sent
// payout is returned unchanged.
func (e *Engine) Redrive(ctx context.Context, payoutID int64) (payouts.Payout, error) {
	p, err := e.payouts.Get(ctx, e.db, payoutID)
	if err != nil {
		return payouts.Payout{}, fmt.Errorf("get payout: %w", err)
	}

	return e.resume(ctx, p)
}

func (e *Engine) resume(ctx context.Context, p payouts.Payout) (payouts.Payout, error) {
	if p.Status == payouts.StatusSent {
		e.metrics.Payouts.WithLabelValues("already_sent").Inc()
		return p, nil
	}

	e.log.Info("resuming payout", "payout_id", p.ID, "status", p.Status, "attempts", p.AttemptCount)

	return e.transfer(ctx, p)
}

func (e *Engine) transfer(ctx context.Context, p payouts.Payout) (payouts.Payout, error) {
	raw := money.ToRaw(p.Amount)

	var last rail.SendResult

	for attempt := 1; attempt <= e.opts.MaxAttempts; attempt++ {
		updated, err := e.payouts.RecordAttempt(ctx, p.ID, e.now())
		if err != nil {
			return p, fmt.Errorf("record attempt: %w", err)
		}

		p = updated
		e.metrics.PayoutAttempts.Inc()

		last = e.rail.Send(ctx, rail.Transfer{
			From: e.opts.From,
			To:   p.Address,
			Raw:  raw,
			ID:   p.IdempotencyKey,
		})

		if last.Outcome == rail.Success {
			return e.markSent(ctx, p, last.Reference)
		}

		e.log.Warn("transfer attempt failed",
			"payout_id", p.ID,
			"attempt", attempt,
			"outcome", last.Outcome.String(),
			"error", last.Err,
		)

		if last.Outcome == rail.Permanent || attempt == e.opts.MaxAttempts {
			break
		}

		err = e.sleep(ctx, e.opts.Retry.Delay(attempt, e.rand()))
		if err != nil {
			return p, fmt.Errorf("wait before retry: %w", err)
		}
	}

	detail := fmt.Sprintf("%s: %v", last.Outcome, last.Err)

	err := e.payouts.MarkFailed(ctx, p.ID, detail, e.now())
	if err != nil {
		return p, fmt.Errorf("mark payout failed: %w", err)
	}

	p.Status = payouts.StatusFailed
	p.ErrorDetail = &detail
	e.metrics.Payouts.WithLabelValues(string(payouts.StatusFailed)).Inc()

	e.log.Error("payout failed", "payout_id", p.ID, "player_id", p.PlayerID, "attempts", p.AttemptCount, "detail", detail)

	return p, fmt.Errorf("%w: %s", ErrTransferFailed, detail)
}

func (e *Engine) markSent(ctx context.Context, p payouts.Payout, reference string) (payouts.Payout, error) {
	at := e.now()

	err := pgutils.WithTx(ctx, e.db, func(tx *sql.Tx) error {
		err := e.payouts.MarkSent(ctx, tx, p.ID, reference, at)
		if err != nil {
			return err
		}

		return e.players.TouchLastSettlement(ctx, tx, p.PlayerID, at)
	})
	if err != nil {
		// the rail has the funds moving; leave the row pending for redrive
		e.log.Error("record sent payout", "payout_id", p.ID, "reference", reference, "error", err)
		return p, fmt.Errorf("record sent payout: %w", err)
	}

	p.Status = payouts.StatusSent
	p.TransferReference = &reference
	e.metrics.Payouts.WithLabelValues(string(payouts.StatusSent)).Inc()

	e.log.Info("payout sent", "payout_id", p.ID, "player_id", p.PlayerID, "amount", p.Amount.String(), "reference", reference)

	return p, nil
}
