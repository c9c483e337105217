package entries

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/fastprodman/killrewards/internal/infra/pgutils"
	"github.com/fastprodman/killrewards/internal/repos/entries"
)

func (r *entriesRepo) MarkSettled(ctx context.Context, tx *sql.Tx, payoutID int64, ids []int64, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE ledger_entries
		SET settled = TRUE,
		    settled_at = $3,
		    payout_id = $2
		WHERE id = ANY($1)
		  AND NOT settled
	`, ids, payoutID, at)
	if err != nil {
		return fmt.Errorf("mark entries settled: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}

	if affected != int64(len(ids)) {
		return entries.ErrEntriesAlreadySettled
	}

	return nil
}

func (r *entriesRepo) ListByPayout(ctx context.Context, q pgutils.Querier, payoutID int64) ([]entries.Entry, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+entryColumns+`
		FROM ledger_entries
		WHERE payout_id = $1
		ORDER BY id DESC
	`, payoutID)
	if err != nil {
		return nil, fmt.Errorf("query linked entries: %w", err)
	}

	out, err := collectEntries(rows)
	if err != nil {
		return nil, fmt.Errorf("scan linked entries: %w", err)
	}

	return out, nil
}

func (r *entriesRepo) Detach(ctx context.Context, tx *sql.Tx, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE ledger_entries
		SET settled = FALSE,
		    settled_at = NULL,
		    payout_id = NULL
		WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return 0, fmt.Errorf("detach entries: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}

	return affected, nil
}
