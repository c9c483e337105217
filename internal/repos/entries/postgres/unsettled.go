package entries

import (
	"context"
	"fmt"
	"time"

	"github.com/fastprodman/killrewards/internal/repos/entries"
)

func (r *entriesRepo) UnsettledTotals(ctx context.Context, limit int) ([]entries.UnsettledTotal, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT player_id, SUM(kills)::bigint, SUM(amount), COUNT(*)
		FROM ledger_entries
		WHERE NOT settled
		GROUP BY player_id
		ORDER BY random()
		LIMIT NULLIF($1::bigint, 0)
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query unsettled totals: %w", err)
	}
	defer rows.Close()

	var out []entries.UnsettledTotal

	for rows.Next() {
		var t entries.UnsettledTotal

		err := rows.Scan(&t.PlayerID, &t.Kills, &t.Amount, &t.Entries)
		if err != nil {
			return nil, fmt.Errorf("scan unsettled total: %w", err)
		}

		out = append(out, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate unsettled totals: %w", err)
	}

	return out, nil
}

func (r *entriesRepo) ListUnsettled(ctx context.Context, playerID int64) ([]entries.Entry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+entryColumns+`
		FROM ledger_entries
		WHERE player_id = $1 AND NOT settled
		ORDER BY id
	`, playerID)
	if err != nil {
		return nil, fmt.Errorf("query unsettled entries: %w", err)
	}

	out, err := collectEntries(rows)
	if err != nil {
		return nil, fmt.Errorf("scan unsettled entries: %w", err)
	}

	return out, nil
}

func (r *entriesRepo) CommittedKillsSince(ctx context.Context, playerID int64, since time.Time) (int64, error) {
	var kills int64

	err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(e.kills), 0)::bigint
		FROM ledger_entries e
		JOIN payouts p ON p.id = e.payout_id
		WHERE p.player_id = $1
		  AND p.created_at >= $2
	`, playerID, since).Scan(&kills)
	if err != nil {
		return 0, fmt.Errorf("committed kills since: %w", err)
	}

	return kills, nil
}
