package payouts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fastprodman/killrewards/internal/repos/payouts"
)

func (r *payoutsRepo) Insert(ctx context.Context, tx *sql.Tx, in payouts.NewPayout) (payouts.Payout, error) {
	p, err := scanPayout(tx.QueryRowContext(ctx, `
		INSERT INTO payouts (player_id, address, amount, idempotency_key)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT ON CONSTRAINT payouts_player_idempotency_key DO NOTHING
		RETURNING `+payoutColumns,
		in.PlayerID, in.Address, in.Amount, in.IdempotencyKey,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return payouts.Payout{}, payouts.ErrDuplicatePayout
		}

		return payouts.Payout{}, fmt.Errorf("insert payout: %w", err)
	}

	return p, nil
}
