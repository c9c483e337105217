package players

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

var (
	ErrPlayerNotFound  = errors.New("player not found")
	ErrNoPayoutAddress = errors.New("player has no verified payout address")
	// ErrCursorMoved means the kill cursor changed between read and advance.
	ErrCursorMoved = errors.New("kill cursor moved concurrently")
)

type Player struct {
	ID               int64
	ExternalID       *string
	KillCursor       int64
	HoldingAddress   *string
	HoldingBalance   int64
	LastSettlementAt *time.Time
}

type Players interface {
	Get(ctx context.Context, playerID int64) (Player, error)
	// ListEligible returns players with an external identity and at least
	// one verified wallet, ordered by id. limit <= 0 means no limit.
	ListEligible(ctx context.Context, limit int) ([]Player, error)
	// ListHolders returns players with a holding address, ordered by id.
	ListHolders(ctx context.Context, limit int) ([]Player, error)
	PayoutAddress(ctx context.Context, playerID int64) (string, error)
	AdvanceCursor(ctx context.Context, tx *sql.Tx, playerID, from, to int64) error
	UpdateHolding(ctx context.Context, playerID, balance int64, at time.Time) error
	TouchLastSettlement(ctx context.Context, tx *sql.Tx, playerID int64, at time.Time) error
}
