package referrals

import (
	"github.com/shopspring/decimal"

	"github.com/noor-academy/lessonledger/pkg/tiers"
)

var hundred = decimal.NewFromInt(100)

// Evaluation is a referrer's standing on the referral ladder.
type Evaluation struct {
	Tier               tiers.ReferralTier  `json:"tier"`
	NextTier           *tiers.ReferralTier `json:"next_tier"`
	ProgressPct        decimal.Decimal     `json:"progress_pct"`
	CompletedReferrals int                 `json:"completed_referrals"`
	ReferralsToNext    int                 `json:"referrals_to_next"`
}

// Evaluate places completed on the ladder. Progress is clamped to [0,100]
// and is 100 at the top tier.
func Evaluate(ladder tiers.ReferralLadder, completed int) Evaluation {
	if completed < 0 {
		completed = 0
	}
	tier := ladder.ForCount(completed)
	eval := Evaluation{
		Tier:               tier,
		NextTier:           ladder.Next(tier),
		ProgressPct:        hundred,
		CompletedReferrals: completed,
	}
	if eval.NextTier == nil {
		return eval
	}

	span := eval.NextTier.MinReferrals - tier.MinReferrals
	eval.ReferralsToNext = eval.NextTier.MinReferrals - completed
	if span <= 0 {
		return eval
	}
	pct := decimal.NewFromInt(int64(completed - tier.MinReferrals)).
		Mul(hundred).
		Div(decimal.NewFromInt(int64(span))).
		Round(2)
	eval.ProgressPct = clamp(pct)
	return eval
}

func clamp(pct decimal.Decimal) decimal.Decimal {
	if pct.IsNegative() {
		return decimal.Zero
	}
	if pct.GreaterThan(hundred) {
		return hundred
	}
	return pct
}

// newMilestones reports how many full milestones hours now covers beyond
// the ones already rewarded.
func newMilestones(hours decimal.Decimal, milestoneHours int, rewarded int) int {
	if milestoneHours <= 0 {
		return 0
	}
	reached := int(hours.Div(decimal.NewFromInt(int64(milestoneHours))).Floor().IntPart())
	if reached <= rewarded {
		return 0
	}
	return reached - rewarded
}
