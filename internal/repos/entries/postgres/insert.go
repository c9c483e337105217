package entries

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fastprodman/killrewards/internal/infra/pgutils"
	"github.com/fastprodman/killrewards/internal/repos/entries"
)

// Insert relies on ON CONFLICT rather than catching the unique violation so
// the caller's transaction is not aborted by a duplicate bucket.
func (r *entriesRepo) Insert(ctx context.Context, tx *sql.Tx, in entries.NewEntry) (entries.Entry, error) {
	e, err := scanEntry(tx.QueryRowContext(ctx, `
		INSERT INTO ledger_entries (player_id, kills, amount, time_bucket)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT ON CONSTRAINT ledger_entries_player_bucket_key DO NOTHING
		RETURNING `+entryColumns,
		in.PlayerID, in.Kills, in.Amount, in.TimeBucket,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return entries.Entry{}, entries.ErrDuplicateEntry
		}

		return entries.Entry{}, fmt.Errorf("insert entry: %w", err)
	}

	return e, nil
}

func (r *entriesRepo) GetByBucket(ctx context.Context, q pgutils.Querier, playerID, bucket int64) (entries.Entry, error) {
	e, err := scanEntry(q.QueryRowContext(ctx, `
		SELECT `+entryColumns+`
		FROM ledger_entries
		WHERE player_id = $1 AND time_bucket = $2
	`, playerID, bucket))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return entries.Entry{}, entries.ErrEntryNotFound
		}

		return entries.Entry{}, fmt.Errorf("get entry by bucket: %w", err)
	}

	return e, nil
}
