package rules_test

import (
	"testing"

	"draftauction/internal/rules"
	"draftauction/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func d(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func dp(v int64) *decimal.Decimal {
	x := decimal.NewFromInt(v)
	return &x
}

func sampleRules() []models.IncrementRule {
	return []models.IncrementRule{
		{Threshold: d(5000), Increment: d(100)},
		{Threshold: d(1000), Increment: d(50)},
	}
}

func TestNextRequiredBid_FirstBidEqualsBase(t *testing.T) {
	got := rules.NextRequiredBid(nil, d(200), sampleRules())
	require.True(t, got.Equal(d(200)), "got %s", got)
}

func TestNextRequiredBid_Examples(t *testing.T) {
	cases := []struct {
		name    string
		current int64
		want    int64
	}{
		{"below first threshold", 200, 250},
		{"exactly at first threshold uses its increment", 1000, 1050},
		{"between thresholds", 1001, 1101},
		{"exactly at last threshold", 5000, 5100},
		{"above every threshold uses last increment", 7000, 7100},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := rules.NextRequiredBid(dp(tc.current), d(200), sampleRules())
			require.True(t, got.Equal(d(tc.want)), "got %s want %d", got, tc.want)
		})
	}
}

func TestNextRequiredBid_NoRulesDefaultsToOne(t *testing.T) {
	got := rules.NextRequiredBid(dp(300), d(200), nil)
	require.True(t, got.Equal(d(301)), "got %s", got)
}

func TestNextRequiredBid_MonotonicInCurrent(t *testing.T) {
	prev := rules.NextRequiredBid(dp(0), d(0), sampleRules())
	for c := int64(1); c <= 8000; c += 7 {
		next := rules.NextRequiredBid(dp(c), d(0), sampleRules())
		require.True(t, next.GreaterThan(prev), "not increasing at %d: %s <= %s", c, next, prev)
		prev = next
	}
}

func TestStep_DoesNotReorderCallerSlice(t *testing.T) {
	in := sampleRules()
	_ = rules.Step(d(10), in)
	require.True(t, in[0].Threshold.Equal(d(5000)))
}

func TestStep_FractionalAmounts(t *testing.T) {
	incr := []models.IncrementRule{
		{Threshold: decimal.RequireFromString("1.00"), Increment: decimal.RequireFromString("0.05")},
		{Threshold: decimal.RequireFromString("5.00"), Increment: decimal.RequireFromString("0.25")},
	}
	cur := decimal.RequireFromString("0.95")
	got := rules.NextRequiredBid(&cur, decimal.RequireFromString("0.20"), incr)
	require.True(t, got.Equal(decimal.RequireFromString("1.00")), "got %s", got)
}
