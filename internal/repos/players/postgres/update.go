package players

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/fastprodman/killrewards/internal/repos/players"
)

func (r *playersRepo) UpdateHolding(ctx context.Context, playerID, balance int64, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE players
		SET holding_balance = $2,
		    holding_verified_at = $3
		WHERE id = $1
	`, playerID, balance, at)
	if err != nil {
		return fmt.Errorf("update holding: %w", err)
	}

	return requireOne(res)
}

func (r *playersRepo) TouchLastSettlement(ctx context.Context, tx *sql.Tx, playerID int64, at time.Time) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE players
		SET last_settlement_at = $2
		WHERE id = $1
	`, playerID, at)
	if err != nil {
		return fmt.Errorf("touch last settlement: %w", err)
	}

	return requireOne(res)
}

func requireOne(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}

	if affected == 0 {
		return players.ErrPlayerNotFound
	}

	return nil
}
