package payouts

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fastprodman/killrewards/internal/infra/pgutils"
)

var (
	ErrPayoutNotFound  = errors.New("payout not found")
	ErrDuplicatePayout = errors.New("duplicate payout idempotency key")
	// ErrDuplicateReference means the rail returned a transfer reference
	// already recorded on another payout.
	ErrDuplicateReference = errors.New("duplicate transfer reference")
)

type Status string

const (
	StatusPending Status = "pending"
	StatusSent    Status = "sent"
	StatusFailed  Status = "failed"
)

// MaxErrorDetail bounds the stored failure description.
const MaxErrorDetail = 500

type Payout struct {
	ID                int64
	PlayerID          int64
	Address           string
	Amount            decimal.Decimal
	TransferReference *string
	Status            Status
	IdempotencyKey    string
	AttemptCount      int
	FirstAttemptAt    *time.Time
	LastAttemptAt     *time.Time
	ErrorDetail       *string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

type NewPayout struct {
	PlayerID       int64
	Address        string
	Amount         decimal.Decimal
	IdempotencyKey string
}

type Payouts interface {
	// Insert creates a pending payout. A reused (player, key) pair yields
	// ErrDuplicatePayout without aborting tx.
	Insert(ctx context.Context, tx *sql.Tx, p NewPayout) (Payout, error)
	Get(ctx context.Context, q pgutils.Querier, id int64) (Payout, error)
	GetByKey(ctx context.Context, q pgutils.Querier, playerID int64, key string) (Payout, error)
	LockForUpdate(ctx context.Context, tx *sql.Tx, id int64) (Payout, error)
	// RecordAttempt bumps attempt_count and the attempt timestamps, and puts
	// a failed payout back to pending.
	RecordAttempt(ctx context.Context, id int64, at time.Time) (Payout, error)
	MarkSent(ctx context.Context, tx *sql.Tx, id int64, reference string, at time.Time) error
	MarkFailed(ctx context.Context, id int64, detail string, at time.Time) error
}
