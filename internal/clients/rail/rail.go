// Package rail talks to the payment rail node that moves funds to players.
package rail

import (
	"context"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// Outcome classifies a transfer attempt so the caller can decide whether a
// retry is safe and useful.
type Outcome int

const (
	Success Outcome = iota
	// Transient failures (network, timeout, 5xx) may succeed on retry.
	Transient
	// Permanent failures (rejected by the node, 4xx) will not.
	Permanent
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case Transient:
		return "transient"
	case Permanent:
		return "permanent"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

type Transfer struct {
	From string
	To   string
	Raw  *big.Int
	// ID is forwarded to the node so that a resent request with the same
	// ID is not executed twice.
	ID string
}

type SendResult struct {
	Outcome   Outcome
	Reference string
	Err       error
}

type Client interface {
	Send(ctx context.Context, t Transfer) SendResult
	// Balance returns available and pending funds in display units.
	Balance(ctx context.Context, account string) (available, pending decimal.Decimal, err error)
}

// HasMinBalance reports whether account holds at least min available. The
// available balance is returned for reporting either way.
func HasMinBalance(ctx context.Context, c Client, min decimal.Decimal, account string) (bool, decimal.Decimal, error) {
	available, _, err := c.Balance(ctx, account)
	if err != nil {
		return false, decimal.Zero, fmt.Errorf("operator balance: %w", err)
	}

	return available.GreaterThanOrEqual(min), available, nil
}
