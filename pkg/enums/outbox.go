package enums

import "slices"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateLedgerEntry    OutboxAggregateType = "ledger_entry"
	AggregateCreditTransfer OutboxAggregateType = "credit_transfer"
	AggregateSadaqah        OutboxAggregateType = "sadaqah"
	AggregateReferral       OutboxAggregateType = "referral"
	AggregateTeacher        OutboxAggregateType = "teacher"
	AggregateTeacherPayout  OutboxAggregateType = "teacher_payout"
	AggregateTeacherEarning OutboxAggregateType = "teacher_earning"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateLedgerEntry,
	AggregateCreditTransfer,
	AggregateSadaqah,
	AggregateReferral,
	AggregateTeacher,
	AggregateTeacherPayout,
	AggregateTeacherEarning,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	return slices.Contains(validAggregateTypes, a)
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	return parseOneOf(validAggregateTypes, value, "aggregate type")
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventPurchaseRecorded       OutboxEventType = "purchase_recorded"
	EventCreditsTransferred     OutboxEventType = "credits_transferred"
	EventSadaqahDonated         OutboxEventType = "sadaqah_donated"
	EventSadaqahAllocated       OutboxEventType = "sadaqah_allocated"
	EventReferralCompleted      OutboxEventType = "referral_completed"
	EventReferralRewardGranted  OutboxEventType = "referral_reward_granted"
	EventTeacherTierPromoted    OutboxEventType = "teacher_tier_promoted"
	EventTierApplicationDecided OutboxEventType = "tier_application_decided"
	EventPayoutRequested        OutboxEventType = "payout_requested"
	EventPayoutCompleted        OutboxEventType = "payout_completed"
	EventEarningRefunded        OutboxEventType = "earning_refunded"
)

var validOutboxEventTypes = []OutboxEventType{
	EventPurchaseRecorded,
	EventCreditsTransferred,
	EventSadaqahDonated,
	EventSadaqahAllocated,
	EventReferralCompleted,
	EventReferralRewardGranted,
	EventTeacherTierPromoted,
	EventTierApplicationDecided,
	EventPayoutRequested,
	EventPayoutCompleted,
	EventEarningRefunded,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	return slices.Contains(validOutboxEventTypes, e)
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	return parseOneOf(validOutboxEventTypes, value, "event type")
}
