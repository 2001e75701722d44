package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/noor-academy/lessonledger/pkg/enums"
)

// PurchaseRecordedEvent is emitted when a confirmed purchase lands.
type PurchaseRecordedEvent struct {
	EntryID     uuid.UUID       `json:"entry_id"`
	UserID      uuid.UUID       `json:"user_id"`
	Currency    enums.Currency  `json:"currency"`
	Amount      decimal.Decimal `json:"amount"`
	PurchasedAt time.Time       `json:"purchased_at"`
	MaturesAt   *time.Time      `json:"matures_at,omitempty"`
}

// CreditsTransferredEvent lets the notification service tell both parties.
type CreditsTransferredEvent struct {
	TransferID uuid.UUID       `json:"transfer_id"`
	FromUserID uuid.UUID       `json:"from_user_id"`
	ToUserID   uuid.UUID       `json:"to_user_id"`
	Amount     decimal.Decimal `json:"amount"`
	Notes      string          `json:"notes,omitempty"`
}

type SadaqahDonatedEvent struct {
	DonationID  uuid.UUID       `json:"donation_id"`
	DonorID     uuid.UUID       `json:"donor_id"`
	Amount      decimal.Decimal `json:"amount"`
	PoolBalance decimal.Decimal `json:"pool_balance"`
}

type SadaqahAllocatedEvent struct {
	AllocationID uuid.UUID       `json:"allocation_id"`
	RecipientID  uuid.UUID       `json:"recipient_id"`
	Amount       decimal.Decimal `json:"amount"`
	Lessons      int             `json:"lessons"`
	PoolBalance  decimal.Decimal `json:"pool_balance"`
}

type ReferralCompletedEvent struct {
	ReferralID         uuid.UUID       `json:"referral_id"`
	ReferrerID         uuid.UUID       `json:"referrer_id"`
	ReferredUserID     uuid.UUID       `json:"referred_user_id"`
	TierLevel          int             `json:"tier_level"`
	CompletedReferrals int             `json:"completed_referrals"`
	RewardHours        decimal.Decimal `json:"reward_hours"`
}

// ReferralRewardGrantedEvent covers ongoing milestone rewards.
type ReferralRewardGrantedEvent struct {
	ReferralID  uuid.UUID       `json:"referral_id"`
	ReferrerID  uuid.UUID       `json:"referrer_id"`
	Milestone   int             `json:"milestone"`
	TierLevel   int             `json:"tier_level"`
	RewardHours decimal.Decimal `json:"reward_hours"`
}

type TeacherTierPromotedEvent struct {
	TeacherID     uuid.UUID           `json:"teacher_id"`
	FromLevel     int                 `json:"from_level"`
	ToLevel       int                 `json:"to_level"`
	TierName      string              `json:"tier_name"`
	PromotionType enums.PromotionType `json:"promotion_type"`
}

type TierApplicationDecidedEvent struct {
	ApplicationID  uuid.UUID                   `json:"application_id"`
	TeacherID      uuid.UUID                   `json:"teacher_id"`
	RequestedLevel int                         `json:"requested_level"`
	Status         enums.TierApplicationStatus `json:"status"`
}

type PayoutRequestedEvent struct {
	PayoutID     uuid.UUID       `json:"payout_id"`
	TeacherID    uuid.UUID       `json:"teacher_id"`
	Amount       decimal.Decimal `json:"amount"`
	EarningCount int             `json:"earning_count"`
}

type PayoutCompletedEvent struct {
	PayoutID          uuid.UUID       `json:"payout_id"`
	TeacherID         uuid.UUID       `json:"teacher_id"`
	Amount            decimal.Decimal `json:"amount"`
	ExternalReference string          `json:"external_reference,omitempty"`
	CompletedAt       time.Time       `json:"completed_at"`
}

type EarningRefundedEvent struct {
	EarningID      uuid.UUID           `json:"earning_id"`
	TeacherID      uuid.UUID           `json:"teacher_id"`
	LessonID       string              `json:"lesson_id"`
	PreviousStatus enums.EarningStatus `json:"previous_status"`
	Reason         string              `json:"reason"`
}
