package entries

import (
	"context"
	"fmt"

	"github.com/fastprodman/killrewards/internal/repos/entries"
)

// ResetOrphans unsettles entries marked settled without a payout link.
func (r *entriesRepo) ResetOrphans(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE ledger_entries
		SET settled = FALSE,
		    settled_at = NULL
		WHERE settled
		  AND payout_id IS NULL
	`)
	if err != nil {
		return 0, fmt.Errorf("reset orphans: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}

	return affected, nil
}

func (r *entriesRepo) OverLinkedPayouts(ctx context.Context) ([]entries.OverLinked, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT p.id, p.amount, SUM(e.amount)
		FROM payouts p
		JOIN ledger_entries e ON e.payout_id = p.id
		WHERE p.status = 'sent'
		GROUP BY p.id, p.amount
		HAVING SUM(e.amount) > p.amount
		ORDER BY p.id
	`)
	if err != nil {
		return nil, fmt.Errorf("query over-linked payouts: %w", err)
	}
	defer rows.Close()

	var out []entries.OverLinked

	for rows.Next() {
		var o entries.OverLinked

		err := rows.Scan(&o.PayoutID, &o.Amount, &o.LinkedSum)
		if err != nil {
			return nil, fmt.Errorf("scan over-linked payout: %w", err)
		}

		out = append(out, o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate over-linked payouts: %w", err)
	}

	return out, nil
}
