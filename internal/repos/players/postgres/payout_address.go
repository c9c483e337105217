package players

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fastprodman/killrewards/internal/repos/players"
)

// PayoutAddress prefers the verified primary wallet, then the oldest
// verified one.
func (r *playersRepo) PayoutAddress(ctx context.Context, playerID int64) (string, error) {
	var address string

	err := r.db.QueryRowContext(ctx, `
		SELECT address
		FROM wallet_links
		WHERE player_id = $1 AND verified
		ORDER BY is_primary DESC, id ASC
		LIMIT 1
	`, playerID).Scan(&address)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", players.ErrNoPayoutAddress
		}

		return "", fmt.Errorf("payout address: %w", err)
	}

	return address, nil
}
