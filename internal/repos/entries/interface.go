package entries

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fastprodman/killrewards/internal/infra/pgutils"
)

var (
	ErrEntryNotFound  = errors.New("ledger entry not found")
	ErrDuplicateEntry = errors.New("duplicate ledger entry for time bucket")
	// ErrEntriesAlreadySettled means at least one entry was settled by
	// someone else between selection and linking.
	ErrEntriesAlreadySettled = errors.New("ledger entries already settled")
)

type Entry struct {
	ID         int64
	PlayerID   int64
	Kills      int64
	Amount     decimal.Decimal
	TimeBucket int64
	Settled    bool
	SettledAt  *time.Time
	PayoutID   *int64
	CreatedAt  time.Time
}

type NewEntry struct {
	PlayerID   int64
	Kills      int64
	Amount     decimal.Decimal
	TimeBucket int64
}

// UnsettledTotal is the per-player aggregate of unsettled entries.
type UnsettledTotal struct {
	PlayerID int64
	Kills    int64
	Amount   decimal.Decimal
	Entries  int
}

// OverLinked is a sent payout whose linked entries sum to more than it paid.
type OverLinked struct {
	PayoutID  int64
	Amount    decimal.Decimal
	LinkedSum decimal.Decimal
}

type Entries interface {
	// Insert returns ErrDuplicateEntry when (player, bucket) already exists.
	// The transaction stays usable in that case.
	Insert(ctx context.Context, tx *sql.Tx, e NewEntry) (Entry, error)
	GetByBucket(ctx context.Context, q pgutils.Querier, playerID, bucket int64) (Entry, error)
	UnsettledTotals(ctx context.Context, limit int) ([]UnsettledTotal, error)
	// ListUnsettled returns a player's unsettled entries oldest first.
	ListUnsettled(ctx context.Context, playerID int64) ([]Entry, error)
	// CommittedKillsSince sums kills of entries linked to any of the
	// player's payouts created at or after since. Pending and failed
	// payouts count too: they can still be sent by a resume or redrive.
	CommittedKillsSince(ctx context.Context, playerID int64, since time.Time) (int64, error)
	// MarkSettled links every id to payoutID. Returns
	// ErrEntriesAlreadySettled unless all of them were still unsettled.
	MarkSettled(ctx context.Context, tx *sql.Tx, payoutID int64, ids []int64, at time.Time) error
	// ListByPayout returns the entries linked to a payout newest first.
	ListByPayout(ctx context.Context, q pgutils.Querier, payoutID int64) ([]Entry, error)
	ResetOrphans(ctx context.Context) (int64, error)
	OverLinkedPayouts(ctx context.Context) ([]OverLinked, error)
	Detach(ctx context.Context, tx *sql.Tx, ids []int64) (int64, error)
}
