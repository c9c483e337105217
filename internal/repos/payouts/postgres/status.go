package payouts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fastprodman/killrewards/internal/infra/pgutils"
	"github.com/fastprodman/killrewards/internal/repos/payouts"
)

const referenceConstraint = "payouts_transfer_reference_key"

func (r *payoutsRepo) RecordAttempt(ctx context.Context, id int64, at time.Time) (payouts.Payout, error) {
	p, err := scanPayout(r.db.QueryRowContext(ctx, `
		UPDATE payouts
		SET attempt_count = attempt_count + 1,
		    first_attempt_at = COALESCE(first_attempt_at, $2),
		    last_attempt_at = $2,
		    status = 'pending',
		    updated_at = $2
		WHERE id = $1
		  AND status <> 'sent'
		RETURNING `+payoutColumns,
		id, at,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return payouts.Payout{}, payouts.ErrPayoutNotFound
		}

		return payouts.Payout{}, fmt.Errorf("record attempt: %w", err)
	}

	return p, nil
}

func (r *payoutsRepo) MarkSent(ctx context.Context, tx *sql.Tx, id int64, reference string, at time.Time) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE payouts
		SET status = 'sent',
		    transfer_reference = $2,
		    error_detail = NULL,
		    updated_at = $3
		WHERE id = $1
	`, id, reference, at)
	if err != nil {
		if pgutils.IsUniqueViolation(err, referenceConstraint) {
			return payouts.ErrDuplicateReference
		}

		return fmt.Errorf("mark payout sent: %w", err)
	}

	return requireOne(res)
}

func (r *payoutsRepo) MarkFailed(ctx context.Context, id int64, detail string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE payouts
		SET status = 'failed',
		    error_detail = $2,
		    updated_at = $3
		WHERE id = $1
		  AND status <> 'sent'
	`, id, truncateDetail(detail), at)
	if err != nil {
		return fmt.Errorf("mark payout failed: %w", err)
	}

	return requireOne(res)
}

func requireOne(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}

	if affected == 0 {
		return payouts.ErrPayoutNotFound
	}

	return nil
}

// truncateDetail cuts at a rune boundary.
func truncateDetail(s string) string {
	if len(s) <= payouts.MaxErrorDetail {
		return s
	}

	r := []rune(s)
	if len(r) > payouts.MaxErrorDetail {
		r = r[:payouts.MaxErrorDetail]
	}

	return string(r)
}
