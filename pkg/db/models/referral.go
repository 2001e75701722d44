package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/noor-academy/lessonledger/pkg/enums"
)

// Referral links a referrer to the user they brought in. A referred user has
// at most one referrer.
type Referral struct {
	ID                    uuid.UUID            `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	ReferrerID            uuid.UUID            `gorm:"column:referrer_id;type:uuid;not null;index" json:"referrer_id"`
	ReferredUserID        uuid.UUID            `gorm:"column:referred_user_id;type:uuid;not null;uniqueIndex" json:"referred_user_id"`
	Status                enums.ReferralStatus `gorm:"column:status;type:text;not null" json:"status"`
	TierLevelAtCompletion *int                 `gorm:"column:tier_level_at_completion" json:"tier_level_at_completion"`
	InitialRewardHours    decimal.Decimal      `gorm:"column:initial_reward_hours;type:numeric(14,4);not null;default:0" json:"initial_reward_hours"`
	HoursCompleted        decimal.Decimal      `gorm:"column:hours_completed;type:numeric(14,4);not null;default:0" json:"hours_completed"`
	MilestonesRewarded    int                  `gorm:"column:milestones_rewarded;not null;default:0" json:"milestones_rewarded"`
	OngoingRewardHours    decimal.Decimal      `gorm:"column:ongoing_reward_hours;type:numeric(14,4);not null;default:0" json:"ongoing_reward_hours"`
	CompletedAt           *time.Time           `gorm:"column:completed_at" json:"completed_at"`
	CreatedAt             time.Time            `gorm:"column:created_at;not null" json:"created_at"`
	UpdatedAt             time.Time            `gorm:"column:updated_at" json:"updated_at"`
}

func (r *Referral) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// ReferralAccount is the referrer-side aggregate.
type ReferralAccount struct {
	UserID             uuid.UUID       `gorm:"column:user_id;type:uuid;primaryKey" json:"user_id"`
	CompletedReferrals int             `gorm:"column:completed_referrals;not null;default:0" json:"completed_referrals"`
	TotalRewardHours   decimal.Decimal `gorm:"column:total_reward_hours;type:numeric(14,4);not null;default:0" json:"total_reward_hours"`
	CurrentTierLevel   int             `gorm:"column:current_tier_level;not null" json:"current_tier_level"`
	UpdatedAt          time.Time       `gorm:"column:updated_at" json:"updated_at"`
}
