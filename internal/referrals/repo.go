package referrals

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noor-academy/lessonledger/internal/repo"
	"github.com/noor-academy/lessonledger/pkg/db/models"
)

// Repository persists referral links and the referrer aggregates.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, referral *models.Referral) error
	FindByReferred(ctx context.Context, referredUserID uuid.UUID) (*models.Referral, error)
	LockByReferred(ctx context.Context, referredUserID uuid.UUID) (*models.Referral, error)
	Save(ctx context.Context, referral *models.Referral) error
	ListByReferrer(ctx context.Context, referrerID uuid.UUID) ([]models.Referral, error)
	EnsureAccount(ctx context.Context, userID uuid.UUID, entryLevel int, now time.Time) error
	LockAccount(ctx context.Context, userID uuid.UUID) (*models.ReferralAccount, error)
	GetAccount(ctx context.Context, userID uuid.UUID) (*models.ReferralAccount, error)
	SaveAccount(ctx context.Context, account *models.ReferralAccount) error
}

type repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{Base: r.Bind(tx)}
}

func (r *repository) Create(ctx context.Context, referral *models.Referral) error {
	return r.DB(ctx).Create(referral).Error
}

func (r *repository) FindByReferred(ctx context.Context, referredUserID uuid.UUID) (*models.Referral, error) {
	var referral models.Referral
	if err := r.DB(ctx).Take(&referral, "referred_user_id = ?", referredUserID).Error; err != nil {
		return nil, err
	}
	return &referral, nil
}

func (r *repository) LockByReferred(ctx context.Context, referredUserID uuid.UUID) (*models.Referral, error) {
	var referral models.Referral
	if err := r.DB(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Take(&referral, "referred_user_id = ?", referredUserID).Error; err != nil {
		return nil, err
	}
	return &referral, nil
}

func (r *repository) Save(ctx context.Context, referral *models.Referral) error {
	return r.DB(ctx).
		Model(&models.Referral{}).
		Where("id = ?", referral.ID).
		Updates(map[string]any{
			"status":                   referral.Status,
			"tier_level_at_completion": referral.TierLevelAtCompletion,
			"initial_reward_hours":     referral.InitialRewardHours,
			"hours_completed":          referral.HoursCompleted,
			"milestones_rewarded":      referral.MilestonesRewarded,
			"ongoing_reward_hours":     referral.OngoingRewardHours,
			"completed_at":             referral.CompletedAt,
			"updated_at":               referral.UpdatedAt,
		}).Error
}

func (r *repository) ListByReferrer(ctx context.Context, referrerID uuid.UUID) ([]models.Referral, error) {
	var referrals []models.Referral
	if err := r.DB(ctx).
		Where("referrer_id = ?", referrerID).
		Order("created_at DESC").
		Find(&referrals).Error; err != nil {
		return nil, err
	}
	return referrals, nil
}

func (r *repository) EnsureAccount(ctx context.Context, userID uuid.UUID, entryLevel int, now time.Time) error {
	account := models.ReferralAccount{
		UserID:           userID,
		TotalRewardHours: decimal.Zero,
		CurrentTierLevel: entryLevel,
		UpdatedAt:        now,
	}
	return r.DB(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&account).Error
}

func (r *repository) LockAccount(ctx context.Context, userID uuid.UUID) (*models.ReferralAccount, error) {
	var account models.ReferralAccount
	if err := r.DB(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Take(&account, "user_id = ?", userID).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

// GetAccount returns nil without error for users who never referred anyone.
func (r *repository) GetAccount(ctx context.Context, userID uuid.UUID) (*models.ReferralAccount, error) {
	var account models.ReferralAccount
	err := r.DB(ctx).Take(&account, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *repository) SaveAccount(ctx context.Context, account *models.ReferralAccount) error {
	return r.DB(ctx).
		Model(&models.ReferralAccount{}).
		Where("user_id = ?", account.UserID).
		Updates(map[string]any{
			"completed_referrals": account.CompletedReferrals,
			"total_reward_hours":  account.TotalRewardHours,
			"current_tier_level":  account.CurrentTierLevel,
			"updated_at":          account.UpdatedAt,
		}).Error
}
