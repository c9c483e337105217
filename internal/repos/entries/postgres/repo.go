package entries

import (
	"database/sql"

	"github.com/fastprodman/killrewards/internal/repos/entries"
)

var _ entries.Entries = (*entriesRepo)(nil)

type entriesRepo struct{ db *sql.DB }

func New(db *sql.DB) *entriesRepo {
	return &entriesRepo{db: db}
}

const entryColumns = `id, player_id, kills, amount, time_bucket, settled, settled_at, payout_id, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (entries.Entry, error) {
	var e entries.Entry

	err := row.Scan(
		&e.ID, &e.PlayerID, &e.Kills, &e.Amount, &e.TimeBucket,
		&e.Settled, &e.SettledAt, &e.PayoutID, &e.CreatedAt,
	)

	return e, err
}

func collectEntries(rows *sql.Rows) ([]entries.Entry, error) {
	defer rows.Close()

	var out []entries.Entry

	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}

		out = append(out, e)
	}

	return out, rows.Err()
}
