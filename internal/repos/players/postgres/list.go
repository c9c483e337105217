package players

import (
	"context"
	"fmt"

	"github.com/fastprodman/killrewards/internal/repos/players"
)

func (r *playersRepo) ListEligible(ctx context.Context, limit int) ([]players.Player, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+playerColumns+`
		FROM players p
		WHERE p.external_id IS NOT NULL
		  AND EXISTS (
			SELECT 1 FROM wallet_links w
			WHERE w.player_id = p.id AND w.verified
		  )
		ORDER BY random()
		LIMIT NULLIF($1::bigint, 0)
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query eligible players: %w", err)
	}

	out, err := collectPlayers(rows)
	if err != nil {
		return nil, fmt.Errorf("scan eligible players: %w", err)
	}

	return out, nil
}

func (r *playersRepo) ListHolders(ctx context.Context, limit int) ([]players.Player, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+playerColumns+`
		FROM players
		WHERE holding_address IS NOT NULL AND holding_address <> ''
		ORDER BY random()
		LIMIT NULLIF($1::bigint, 0)
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query holders: %w", err)
	}

	out, err := collectPlayers(rows)
	if err != nil {
		return nil, fmt.Errorf("scan holders: %w", err)
	}

	return out, nil
}
