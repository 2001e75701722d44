package tiers

import (
	"github.com/shopspring/decimal"

	"github.com/noor-academy/lessonledger/pkg/enums"
)

func intPtr(v int) *int { return &v }

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// DefaultReferralLadder is Bronze, Silver, Gold, Platinum.
func DefaultReferralLadder() ReferralLadder {
	return ReferralLadder{
		{
			Level: 1, Name: "Bronze", MinReferrals: 0, MaxReferrals: intPtr(4),
			InitialRewardHours: d("1"), OngoingRewardRate: d("1"),
			Benefits: []Benefit{
				{Kind: enums.BenefitInitialRewardHours, Amount: d("1")},
				{Kind: enums.BenefitOngoingRewardRate, Amount: d("1")},
			},
		},
		{
			Level: 2, Name: "Silver", MinReferrals: 5, MaxReferrals: intPtr(14),
			InitialRewardHours: d("1.5"), OngoingRewardRate: d("2"),
			Benefits: []Benefit{
				{Kind: enums.BenefitInitialRewardHours, Amount: d("1.5")},
				{Kind: enums.BenefitOngoingRewardRate, Amount: d("2")},
				{Kind: enums.BenefitProfileBadge, Label: "Silver Ambassador"},
			},
		},
		{
			Level: 3, Name: "Gold", MinReferrals: 15, MaxReferrals: intPtr(29),
			InitialRewardHours: d("2"), OngoingRewardRate: d("3"),
			Benefits: []Benefit{
				{Kind: enums.BenefitInitialRewardHours, Amount: d("2")},
				{Kind: enums.BenefitOngoingRewardRate, Amount: d("3")},
				{Kind: enums.BenefitPrioritySupport},
				{Kind: enums.BenefitTokenDiscount, Amount: d("10")},
			},
		},
		{
			Level: 4, Name: "Platinum", MinReferrals: 30,
			InitialRewardHours: d("3"), OngoingRewardRate: d("4"),
			Benefits: []Benefit{
				{Kind: enums.BenefitInitialRewardHours, Amount: d("3")},
				{Kind: enums.BenefitOngoingRewardRate, Amount: d("4")},
				{Kind: enums.BenefitPrioritySupport},
				{Kind: enums.BenefitPriorityMatching},
				{Kind: enums.BenefitTokenDiscount, Amount: d("20")},
				{Kind: enums.BenefitExclusiveEvents},
			},
		},
	}
}

// DefaultTeacherLadder is Apprentice through Master; Master is manual only.
func DefaultTeacherLadder() TeacherLadder {
	return TeacherLadder{
		{Level: 1, Name: "Apprentice", HourlyRate: d("15"), MinHoursTaught: d("0"), MinRetentionRate: d("0")},
		{Level: 2, Name: "Certified", HourlyRate: d("20"), MinHoursTaught: d("50"), MinRetentionRate: d("0.60"), MinStudentsForRetention: 5},
		{Level: 3, Name: "Senior", HourlyRate: d("25"), MinHoursTaught: d("100"), MinRetentionRate: d("0.75"), MinStudentsForRetention: 5},
		{Level: 4, Name: "Expert", HourlyRate: d("30"), MinHoursTaught: d("250"), MinRetentionRate: d("0.80"), MinStudentsForRetention: 10},
		{Level: 5, Name: "Master", HourlyRate: d("40"), MinHoursTaught: d("500"), MinRetentionRate: d("0.85"), MinStudentsForRetention: 15, RequiresManualApproval: true},
	}
}
