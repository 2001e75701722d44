package enums

import "slices"

// TierApplicationStatus is the review state of a manual tier application.
type TierApplicationStatus string

const (
	TierApplicationPending  TierApplicationStatus = "pending"
	TierApplicationApproved TierApplicationStatus = "approved"
	TierApplicationRejected TierApplicationStatus = "rejected"
)

var validTierApplicationStatuses = []TierApplicationStatus{
	TierApplicationPending,
	TierApplicationApproved,
	TierApplicationRejected,
}

func (s TierApplicationStatus) IsValid() bool {
	return slices.Contains(validTierApplicationStatuses, s)
}

func ParseTierApplicationStatus(value string) (TierApplicationStatus, error) {
	return parseOneOf(validTierApplicationStatuses, value, "tier application status")
}

// TierDecision is what a reviewer can do with a pending application.
type TierDecision string

const (
	TierDecisionApprove TierDecision = "approve"
	TierDecisionReject  TierDecision = "reject"
)

var validTierDecisions = []TierDecision{TierDecisionApprove, TierDecisionReject}

func ParseTierDecision(value string) (TierDecision, error) {
	return parseOneOf(validTierDecisions, value, "tier decision")
}

// PromotionType records how a tier change happened.
type PromotionType string

const (
	PromotionAutomatic PromotionType = "automatic"
	PromotionManual    PromotionType = "manual"
)

func (p PromotionType) IsValid() bool {
	return p == PromotionAutomatic || p == PromotionManual
}
