package settlement

import (
	"github.com/shopspring/decimal"

	"github.com/fastprodman/killrewards/internal/money"
	"github.com/fastprodman/killrewards/internal/repos/entries"
)

// Caps bound how many kills may be paid to one player per rolling window.
type Caps struct {
	Daily  int64
	Weekly int64
}

type Candidate struct {
	PlayerID    int64
	TotalKills  int64
	TotalAmount decimal.Decimal

	PayableKills  int64
	PayableAmount decimal.Decimal

	// Selected are the entries this cycle pays, oldest first, and
	// PayoutAmount is their exact sum.
	Selected     []entries.Entry
	PayoutAmount decimal.Decimal

	// Oversized entries hold more kills than the smaller cap and cannot be
	// paid until the caps are raised. They never block newer entries.
	Oversized []entries.Entry
}

// NewCandidate totals a player's unsettled entries.
func NewCandidate(playerID int64, unsettled []entries.Entry) Candidate {
	c := Candidate{PlayerID: playerID, TotalAmount: decimal.Zero}

	for _, e := range unsettled {
		c.TotalKills += e.Kills
		c.TotalAmount = c.TotalAmount.Add(e.Amount)
	}

	return c
}

// ApplyCaps decides what part of c can be paid given what was already
// paid in the last day and week. unsettled must be ordered oldest first.
func ApplyCaps(c Candidate, unsettled []entries.Entry, paid24h, paid7d int64, caps Caps) Candidate {
	c.Selected = nil
	c.Oversized = nil
	c.PayableKills = 0
	c.PayableAmount = decimal.Zero
	c.PayoutAmount = decimal.Zero

	payable := min(
		max(caps.Daily-paid24h, 0),
		max(caps.Weekly-paid7d, 0),
		c.TotalKills,
	)
	if payable <= 0 {
		return c
	}

	c.PayableKills = payable

	if payable < c.TotalKills {
		c.PayableAmount = money.Scale(c.TotalAmount, payable, c.TotalKills)
		c.Selected, c.Oversized = oldestWithin(unsettled, payable, min(caps.Daily, caps.Weekly))
	} else {
		c.PayableAmount = c.TotalAmount
		c.Selected = unsettled
	}

	c.Selected, c.PayoutAmount = trimToAmount(c.Selected, c.PayableAmount)

	return c
}

// oldestWithin takes entries in order until the next one would push the
// kill count past limit. Entries larger than ceiling can never fit and are
// stepped over instead of ending the selection.
func oldestWithin(unsettled []entries.Entry, limit, ceiling int64) (selected, oversized []entries.Entry) {
	var kills int64

	for _, e := range unsettled {
		if e.Kills > ceiling {
			oversized = append(oversized, e)
			continue
		}

		if kills+e.Kills > limit {
			break
		}

		selected = append(selected, e)
		kills += e.Kills
	}

	return selected, oversized
}

// trimToAmount drops the newest selected entries until their sum is at most
// limit, so a transfer never exceeds the capped amount.
func trimToAmount(selected []entries.Entry, limit decimal.Decimal) ([]entries.Entry, decimal.Decimal) {
	sum := decimal.Zero
	for _, e := range selected {
		sum = sum.Add(e.Amount)
	}

	n := len(selected)
	for n > 0 && sum.GreaterThan(limit) {
		n--
		sum = sum.Sub(selected[n].Amount)
	}

	return selected[:n], sum
}
