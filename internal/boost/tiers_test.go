package boost

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const defaultTable = "10000:1.10,100000:1.20,1000000:1.35,10000000:1.50,100000000:1.75"

func TestTiersMultiplier(t *testing.T) {
	var tiers Tiers
	require.NoError(t, tiers.UnmarshalText([]byte(defaultTable)))

	tests := []struct {
		balance int64
		want    string
	}{
		{balance: 0, want: "1"},
		{balance: 9_999, want: "1"},
		{balance: 10_000, want: "1.10"},
		{balance: 99_999, want: "1.10"},
		{balance: 100_000, want: "1.20"},
		{balance: 5_000_000, want: "1.35"},
		{balance: 1_000_000_000, want: "1.75"},
	}

	for _, tt := range tests {
		got := tiers.Multiplier(tt.balance)
		assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "balance %d: want %s, got %s", tt.balance, tt.want, got)
	}
}

func TestTiersMultiplierIsMonotonic(t *testing.T) {
	var tiers Tiers
	require.NoError(t, tiers.UnmarshalText([]byte(defaultTable)))

	prev := tiers.Multiplier(0)
	for b := int64(0); b <= 200_000_000; b += 250_000 {
		m := tiers.Multiplier(b)
		require.True(t, m.GreaterThanOrEqual(prev), "multiplier dropped at %d", b)
		prev = m
	}
}

func TestTiersUnmarshalRejects(t *testing.T) {
	cases := map[string]string{
		"descending":          "100:1.2,10:1.1",
		"duplicate_threshold": "10:1.1,10:1.2",
		"decreasing_mult":     "10:1.5,100:1.2",
		"below_one":           "10:0.9",
		"garbage":             "ten:1.1",
		"missing_colon":       "10=1.1",
	}

	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			var tiers Tiers
			err := tiers.UnmarshalText([]byte(raw))
			assert.True(t, errors.Is(err, ErrInvalidTiers), "got %v", err)
		})
	}
}

func TestTiersEmptyMeansNoBoost(t *testing.T) {
	var tiers Tiers
	require.NoError(t, tiers.UnmarshalText(nil))
	assert.True(t, tiers.Multiplier(1_000_000_000).Equal(decimal.NewFromInt(1)))
}
