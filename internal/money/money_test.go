package money

import (
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestPerKill(t *testing.T) {
	tests := []struct {
		name  string
		kills int64
		rate  string
		want  string
	}{
		{name: "scenario_a", kills: 7, rate: "2.1", want: "14.7"},
		{name: "zero_kills", kills: 0, rate: "2.1", want: "0"},
		{name: "negative_kills", kills: -3, rate: "2.1", want: "0"},
		{name: "truncates_not_rounds", kills: 3, rate: "0.333333333", want: "0.99999999"},
		{name: "boosted_rate", kills: 10, rate: "2.31", want: "23.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PerKill(tt.kills, dec(tt.rate))
			assert.True(t, got.Equal(dec(tt.want)), "want %s, got %s", tt.want, got)
		})
	}
}

func TestScale(t *testing.T) {
	tests := []struct {
		name     string
		amount   string
		num, den int64
		want     string
	}{
		{name: "scenario_b", amount: "21", num: 2, den: 10, want: "4.2"},
		{name: "repeating_fraction_truncates", amount: "1", num: 2, den: 3, want: "0.66666666"},
		{name: "full_share", amount: "5.123456789", num: 10, den: 10, want: "5.12345678"},
		{name: "zero_den", amount: "5", num: 1, den: 0, want: "0"},
		{name: "zero_num", amount: "5", num: 0, den: 3, want: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Scale(dec(tt.amount), tt.num, tt.den)
			assert.True(t, got.Equal(dec(tt.want)), "want %s, got %s", tt.want, got)
		})
	}
}

func TestScaleNeverExceedsProportionalShare(t *testing.T) {
	amount := dec("14.69999999")

	for den := int64(1); den <= 40; den++ {
		for num := int64(1); num <= den; num++ {
			got := Scale(amount, num, den)
			exact := amount.Mul(decimal.NewFromInt(num))
			// got × den must stay <= amount × num.
			require.True(t, got.Mul(decimal.NewFromInt(den)).LessThanOrEqual(exact),
				"num=%d den=%d got=%s", num, den, got)
		}
	}
}

func TestRawRoundTripNeverExceeds(t *testing.T) {
	amounts := []string{"0.123456789123", "14.7", "0.00000001", "1", "99999999.99999999", "0"}

	for _, s := range amounts {
		d := dec(s)
		back := FromRaw(ToRaw(d))

		assert.True(t, back.LessThanOrEqual(d), "%s round-tripped to %s", s, back)
		assert.True(t, d.Sub(back).LessThan(decimal.New(1, -RawExponent)), "%s lost more than one raw unit", s)
	}
}

func TestToRaw(t *testing.T) {
	want, _ := new(big.Int).SetString("1470000000000000000000000000000", 10)

	assert.Equal(t, 0, ToRaw(dec("14.7")).Cmp(want))
	assert.Equal(t, 0, ToRaw(dec("-1")).Sign())
	assert.Equal(t, 0, ToRaw(dec("0.000000000000000000000000000009")).Sign())
}

func TestParseRaw(t *testing.T) {
	v, ok := ParseRaw("100000000000000000000000000000")
	require.True(t, ok)
	assert.True(t, FromRaw(v).Equal(decimal.NewFromInt(1)))

	_, ok = ParseRaw("-5")
	assert.False(t, ok)

	_, ok = ParseRaw("abc")
	assert.False(t, ok)
}
