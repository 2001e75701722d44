package enums

import "slices"

// BenefitKind enumerates the perks a referral tier can carry.
type BenefitKind string

const (
	BenefitInitialRewardHours BenefitKind = "initial_reward_hours"
	BenefitOngoingRewardRate  BenefitKind = "ongoing_reward_rate"
	BenefitPriorityMatching   BenefitKind = "priority_matching"
	BenefitPrioritySupport    BenefitKind = "priority_support"
	BenefitTokenDiscount      BenefitKind = "token_discount_pct"
	BenefitProfileBadge       BenefitKind = "profile_badge"
	BenefitExclusiveEvents    BenefitKind = "exclusive_events"
)

var validBenefitKinds = []BenefitKind{
	BenefitInitialRewardHours,
	BenefitOngoingRewardRate,
	BenefitPriorityMatching,
	BenefitPrioritySupport,
	BenefitTokenDiscount,
	BenefitProfileBadge,
	BenefitExclusiveEvents,
}

func (k BenefitKind) IsValid() bool {
	return slices.Contains(validBenefitKinds, k)
}

// HasAmount reports whether the benefit needs a numeric parameter.
func (k BenefitKind) HasAmount() bool {
	switch k {
	case BenefitInitialRewardHours, BenefitOngoingRewardRate, BenefitTokenDiscount:
		return true
	}
	return false
}

func ParseBenefitKind(value string) (BenefitKind, error) {
	return parseOneOf(validBenefitKinds, value, "benefit kind")
}
