package payout

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastprodman/killrewards/internal/clients/rail"
	"github.com/fastprodman/killrewards/internal/infra/logging"
	"github.com/fastprodman/killrewards/internal/infra/metrics"
	"github.com/fastprodman/killrewards/internal/infra/pgtestutil"
	"github.com/fastprodman/killrewards/internal/repos/entries"
	pgentries "github.com/fastprodman/killrewards/internal/repos/entries/postgres"
	"github.com/fastprodman/killrewards/internal/repos/payouts"
)

// scriptedRail replays results in order and repeats the last one.
type scriptedRail struct {
	mu      sync.Mutex
	results []rail.SendResult
	sent    []rail.Transfer
}

func (r *scriptedRail) Send(_ context.Context, t rail.Transfer) rail.SendResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sent = append(r.sent, t)

	i := len(r.sent) - 1
	if i >= len(r.results) {
		i = len(r.results) - 1
	}

	return r.results[i]
}

func (r *scriptedRail) Balance(context.Context, string) (decimal.Decimal, decimal.Decimal, error) {
	return decimal.NewFromInt(1000), decimal.Zero, nil
}

func (r *scriptedRail) calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.sent)
}

func ok(ref string) rail.SendResult { return rail.SendResult{Outcome: rail.Success, Reference: ref} }

var (
	transient = rail.SendResult{Outcome: rail.Transient, Err: errors.New("timeout")}
	permanent = rail.SendResult{Outcome: rail.Permanent, Err: errors.New("bad destination")}
)

type fixture struct {
	engine   *Engine
	rail     *scriptedRail
	playerID int64
	entries  []entries.Entry
	delays   []time.Duration
}

func newFixture(t *testing.T, results ...rail.SendResult) *fixture {
	t.Helper()

	db, cleanup := pgtestutil.NewTestDB(t)
	t.Cleanup(cleanup)

	f := &fixture{rail: &scriptedRail{results: results}}

	f.playerID = pgtestutil.SeedPlayer(t, db, pgtestutil.PlayerSeed{ExternalID: "p", Wallet: "ban_player", Verified: true})
	pgtestutil.SeedEntry(t, db, f.playerID, 3, "6.3", 1)
	pgtestutil.SeedEntry(t, db, f.playerID, 4, "8.4", 2)

	list, err := pgentries.New(db).ListUnsettled(context.Background(), f.playerID)
	require.NoError(t, err)

	f.entries = list

	f.engine = New(db, f.rail, Options{
		From:        "ban_operator",
		MaxAttempts: 3,
		Retry:       Backoff{Base: 2 * time.Second, Max: 30 * time.Second},
	}, metrics.New(), logging.Discard())

	f.engine.sleep = func(_ context.Context, d time.Duration) error {
		f.delays = append(f.delays, d)
		return nil
	}
	f.engine.rand = func() float64 { return 0 }

	return f
}

func (f *fixture) pay(t *testing.T) (payouts.Payout, error) {
	t.Helper()

	return f.engine.Pay(context.Background(), f.playerID, "ban_player", decimal.RequireFromString("14.7"), f.entries)
}

func TestPay_SendsOnceAndIsIdempotent(t *testing.T) {
	t.Parallel()

	f := newFixture(t, ok("block-1"))

	first, err := f.pay(t)
	require.NoError(t, err)
	assert.Equal(t, payouts.StatusSent, first.Status)
	assert.Equal(t, "block-1", *first.TransferReference)
	assert.True(t, first.Amount.Equal(decimal.RequireFromString("14.7")))

	second, err := f.pay(t)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, f.rail.calls(), "a sent payout must not be transferred again")

	sent := f.rail.sent[0]
	assert.Equal(t, "ban_operator", sent.From)
	assert.Equal(t, "ban_player", sent.To)
	assert.Equal(t, first.IdempotencyKey, sent.ID)
	assert.Equal(t, "1470000000000000000000000000000", sent.Raw.String())

	linked, err := f.engine.entries.ListByPayout(context.Background(), f.engine.db, first.ID)
	require.NoError(t, err)
	assert.Len(t, linked, 2)

	player, err := f.engine.players.Get(context.Background(), f.playerID)
	require.NoError(t, err)
	assert.NotNil(t, player.LastSettlementAt)
}

func TestPay_RetriesTransientFailures(t *testing.T) {
	t.Parallel()

	f := newFixture(t, transient, transient, ok("block-2"))

	p, err := f.pay(t)
	require.NoError(t, err)
	assert.Equal(t, payouts.StatusSent, p.Status)
	assert.Equal(t, 3, p.AttemptCount)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, f.delays)
}

func TestPay_ExhaustedRetriesFail(t *testing.T) {
	t.Parallel()

	f := newFixture(t, transient)

	p, err := f.pay(t)
	require.ErrorIs(t, err, ErrTransferFailed)
	assert.Equal(t, payouts.StatusFailed, p.Status)
	assert.Equal(t, 3, p.AttemptCount)
	assert.Equal(t, 3, f.rail.calls())

	stored, err := f.engine.payouts.Get(context.Background(), f.engine.db, p.ID)
	require.NoError(t, err)
	assert.Equal(t, payouts.StatusFailed, stored.Status)
	require.NotNil(t, stored.ErrorDetail)
	assert.Contains(t, *stored.ErrorDetail, "timeout")
}

func TestPay_PermanentFailureThenRedrive(t *testing.T) {
	t.Parallel()

	f := newFixture(t, permanent, ok("block-3"))

	p, err := f.pay(t)
	require.ErrorIs(t, err, ErrTransferFailed)
	assert.Equal(t, payouts.StatusFailed, p.Status)
	assert.Equal(t, 1, f.rail.calls(), "permanent failures are not retried")
	assert.Empty(t, f.delays)

	// the entries stay linked to the failed payout, so paying the same set
	// resumes it instead of creating a second one
	again, err := f.pay(t)
	require.NoError(t, err)
	assert.Equal(t, p.ID, again.ID)
	assert.Equal(t, payouts.StatusSent, again.Status)
	assert.Equal(t, 2, again.AttemptCount)

	redriven, err := f.engine.Redrive(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, payouts.StatusSent, redriven.Status)
	assert.Equal(t, 2, f.rail.calls(), "redrive of a sent payout is a no-op")
}

func TestPay_RejectsAlreadySettledEntries(t *testing.T) {
	t.Parallel()

	f := newFixture(t, ok("block-4"))

	_, err := f.engine.Pay(context.Background(), f.playerID, "ban_player", decimal.RequireFromString("6.3"), f.entries[:1])
	require.NoError(t, err)

	_, err = f.pay(t)
	require.ErrorIs(t, err, entries.ErrEntriesAlreadySettled)
	assert.Equal(t, 1, f.rail.calls())

	_, err = f.engine.payouts.GetByKey(context.Background(), f.engine.db, f.playerID, IdempotencyKey([]int64{f.entries[0].ID, f.entries[1].ID}))
	assert.ErrorIs(t, err, payouts.ErrPayoutNotFound, "the aborted payout row must be rolled back")
}

func TestPay_Empty(t *testing.T) {
	t.Parallel()

	e := New(nil, rail.DryRun{}, Options{}, metrics.New(), logging.Discard())

	_, err := e.Pay(context.Background(), 1, "ban", decimal.NewFromInt(1), nil)
	assert.ErrorIs(t, err, ErrEmptyPayout)

	_, err = e.Pay(context.Background(), 1, "ban", decimal.Zero, []entries.Entry{{ID: 1}})
	assert.ErrorIs(t, err, ErrEmptyPayout)
}

func TestRedrive_NotFound(t *testing.T) {
	t.Parallel()

	f := newFixture(t, ok("x"))

	_, err := f.engine.Redrive(context.Background(), 424242)
	assert.ErrorIs(t, err, payouts.ErrPayoutNotFound)
}
