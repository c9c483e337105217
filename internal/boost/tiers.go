// Package boost holds the reward multipliers granted for token holdings.
package boost

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrInvalidTiers = errors.New("invalid holding tiers")

// Tier grants Multiplier to balances at or above Threshold.
type Tier struct {
	Threshold  int64
	Multiplier decimal.Decimal
}

// Tiers is a step function over token balances, ordered by ascending
// threshold. Balances below the first threshold earn a 1.0 multiplier.
type Tiers []Tier

// Multiplier returns the multiplier of the highest tier balance reaches.
func (t Tiers) Multiplier(balance int64) decimal.Decimal {
	m := decimal.NewFromInt(1)

	for _, tier := range t {
		if balance < tier.Threshold {
			break
		}

		m = tier.Multiplier
	}

	return m
}

// Validate checks ordering: thresholds strictly ascending and non-negative,
// multipliers at least 1.0 and never decreasing.
func (t Tiers) Validate() error {
	prev := decimal.NewFromInt(1)

	for i, tier := range t {
		if tier.Threshold < 0 {
			return fmt.Errorf("%w: tier %d threshold is negative", ErrInvalidTiers, i)
		}

		if i > 0 && tier.Threshold <= t[i-1].Threshold {
			return fmt.Errorf("%w: tier %d threshold %d not above %d", ErrInvalidTiers, i, tier.Threshold, t[i-1].Threshold)
		}

		if tier.Multiplier.LessThan(prev) {
			return fmt.Errorf("%w: tier %d multiplier %s below %s", ErrInvalidTiers, i, tier.Multiplier, prev)
		}

		prev = tier.Multiplier
	}

	return nil
}

// UnmarshalText parses "threshold:multiplier" pairs separated by commas,
// e.g. "10000:1.10,100000:1.20". An empty string yields no tiers.
func (t *Tiers) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		*t = nil
		return nil
	}

	parts := strings.Split(raw, ",")
	out := make(Tiers, 0, len(parts))

	for _, p := range parts {
		threshold, multiplier, ok := strings.Cut(strings.TrimSpace(p), ":")
		if !ok {
			return fmt.Errorf("%w: %q is not threshold:multiplier", ErrInvalidTiers, p)
		}

		th, err := strconv.ParseInt(strings.TrimSpace(threshold), 10, 64)
		if err != nil {
			return fmt.Errorf("%w: threshold %q: %v", ErrInvalidTiers, threshold, err)
		}

		m, err := decimal.NewFromString(strings.TrimSpace(multiplier))
		if err != nil {
			return fmt.Errorf("%w: multiplier %q: %v", ErrInvalidTiers, multiplier, err)
		}

		out = append(out, Tier{Threshold: th, Multiplier: m})
	}

	err := out.Validate()
	if err != nil {
		return err
	}

	*t = out

	return nil
}

func (t Tiers) String() string {
	parts := make([]string, len(t))
	for i, tier := range t {
		parts[i] = fmt.Sprintf("%d:%s", tier.Threshold, tier.Multiplier)
	}

	return strings.Join(parts, ",")
}
