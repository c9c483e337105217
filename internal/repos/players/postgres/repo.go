package players

import (
	"database/sql"

	"github.com/fastprodman/killrewards/internal/repos/players"
)

var _ players.Players = (*playersRepo)(nil)

type playersRepo struct{ db *sql.DB }

func New(db *sql.DB) *playersRepo {
	return &playersRepo{db: db}
}

const playerColumns = `id, external_id, kill_cursor, holding_address, holding_balance, last_settlement_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPlayer(row rowScanner) (players.Player, error) {
	var p players.Player

	err := row.Scan(&p.ID, &p.ExternalID, &p.KillCursor, &p.HoldingAddress, &p.HoldingBalance, &p.LastSettlementAt)

	return p, err
}

func collectPlayers(rows *sql.Rows) ([]players.Player, error) {
	defer rows.Close()

	var out []players.Player

	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, err
		}

		out = append(out, p)
	}

	return out, rows.Err()
}
