package rail

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DryRunBalance is the operator balance reported in dry-run mode.
var DryRunBalance = decimal.NewFromInt(100)

// DryRun pretends every transfer succeeds without contacting a node.
type DryRun struct{}

func (DryRun) Send(_ context.Context, _ Transfer) SendResult {
	return SendResult{Outcome: Success, Reference: "dryrun-" + uuid.NewString()}
}

func (DryRun) Balance(context.Context, string) (decimal.Decimal, decimal.Decimal, error) {
	return DryRunBalance, decimal.Zero, nil
}
