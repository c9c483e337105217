package payouts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fastprodman/killrewards/internal/infra/pgutils"
	"github.com/fastprodman/killrewards/internal/repos/payouts"
)

var _ payouts.Payouts = (*payoutsRepo)(nil)

type payoutsRepo struct{ db *sql.DB }

func New(db *sql.DB) *payoutsRepo {
	return &payoutsRepo{db: db}
}

const payoutColumns = `id, player_id, address, amount, transfer_reference, status, idempotency_key,
	attempt_count, first_attempt_at, last_attempt_at, error_detail, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPayout(row rowScanner) (payouts.Payout, error) {
	var p payouts.Payout

	err := row.Scan(
		&p.ID, &p.PlayerID, &p.Address, &p.Amount, &p.TransferReference, &p.Status, &p.IdempotencyKey,
		&p.AttemptCount, &p.FirstAttemptAt, &p.LastAttemptAt, &p.ErrorDetail, &p.CreatedAt, &p.UpdatedAt,
	)

	return p, err
}

func (r *payoutsRepo) Get(ctx context.Context, q pgutils.Querier, id int64) (payouts.Payout, error) {
	return r.getOne(ctx, q, `
		SELECT `+payoutColumns+`
		FROM payouts
		WHERE id = $1
	`, id)
}

func (r *payoutsRepo) GetByKey(ctx context.Context, q pgutils.Querier, playerID int64, key string) (payouts.Payout, error) {
	return r.getOne(ctx, q, `
		SELECT `+payoutColumns+`
		FROM payouts
		WHERE player_id = $1 AND idempotency_key = $2
	`, playerID, key)
}

func (r *payoutsRepo) LockForUpdate(ctx context.Context, tx *sql.Tx, id int64) (payouts.Payout, error) {
	return r.getOne(ctx, tx, `
		SELECT `+payoutColumns+`
		FROM payouts
		WHERE id = $1
		FOR UPDATE
	`, id)
}

func (r *payoutsRepo) getOne(ctx context.Context, q pgutils.Querier, query string, args ...any) (payouts.Payout, error) {
	p, err := scanPayout(q.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return payouts.Payout{}, payouts.ErrPayoutNotFound
		}

		return payouts.Payout{}, fmt.Errorf("get payout: %w", err)
	}

	return p, nil
}
