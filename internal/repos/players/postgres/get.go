package players

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fastprodman/killrewards/internal/repos/players"
)

func (r *playersRepo) Get(ctx context.Context, playerID int64) (players.Player, error) {
	p, err := scanPlayer(r.db.QueryRowContext(ctx, `
		SELECT `+playerColumns+`
		FROM players
		WHERE id = $1
	`, playerID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return players.Player{}, players.ErrPlayerNotFound
		}

		return players.Player{}, fmt.Errorf("get player: %w", err)
	}

	return p, nil
}
