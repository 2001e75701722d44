package referrals

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noor-academy/lessonledger/pkg/tiers"
)

func TestEvaluatePlacesCountsOnDefaultLadder(t *testing.T) {
	ladder := tiers.DefaultReferralLadder()

	cases := []struct {
		completed int
		tier      string
		next      string
		progress  string
	}{
		{0, "Bronze", "Silver", "0"},
		{2, "Bronze", "Silver", "40"},
		{5, "Silver", "Gold", "0"},
		{10, "Silver", "Gold", "50"},
		{29, "Gold", "Platinum", "93.33"},
		{30, "Platinum", "", "100"},
		{120, "Platinum", "", "100"},
	}
	for _, tc := range cases {
		eval := Evaluate(ladder, tc.completed)
		require.Equal(t, tc.tier, eval.Tier.Name, "completed=%d", tc.completed)
		if tc.next == "" {
			require.Nil(t, eval.NextTier)
		} else {
			require.NotNil(t, eval.NextTier)
			require.Equal(t, tc.next, eval.NextTier.Name)
		}
		require.Truef(t, decimal.RequireFromString(tc.progress).Equal(eval.ProgressPct),
			"completed=%d progress=%s", tc.completed, eval.ProgressPct)
	}
}

func TestEvaluateProgressIsMonotoneWithinTier(t *testing.T) {
	ladder := tiers.DefaultReferralLadder()
	previous := Evaluate(ladder, 0)
	for completed := 1; completed <= 40; completed++ {
		eval := Evaluate(ladder, completed)
		require.False(t, eval.Tier.Level < previous.Tier.Level)
		if eval.Tier.Level == previous.Tier.Level {
			require.True(t, eval.ProgressPct.GreaterThanOrEqual(previous.ProgressPct), "completed=%d", completed)
		}
		require.False(t, eval.ProgressPct.IsNegative())
		require.True(t, eval.ProgressPct.LessThanOrEqual(hundred))
		previous = eval
	}
}

func TestNewMilestones(t *testing.T) {
	require.Equal(t, 0, newMilestones(decimal.RequireFromString("9.99"), 10, 0))
	require.Equal(t, 1, newMilestones(decimal.NewFromInt(10), 10, 0))
	require.Equal(t, 0, newMilestones(decimal.NewFromInt(19), 10, 1))
	require.Equal(t, 2, newMilestones(decimal.NewFromInt(31), 10, 1))
	require.Equal(t, 0, newMilestones(decimal.NewFromInt(31), 0, 0))
}
