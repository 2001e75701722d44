package referrals

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/noor-academy/lessonledger/internal/ledger"
	"github.com/noor-academy/lessonledger/pkg/db"
	"github.com/noor-academy/lessonledger/pkg/db/models"
	"github.com/noor-academy/lessonledger/pkg/enums"
	pkgerrors "github.com/noor-academy/lessonledger/pkg/errors"
	"github.com/noor-academy/lessonledger/pkg/logger"
	"github.com/noor-academy/lessonledger/pkg/metrics"
	"github.com/noor-academy/lessonledger/pkg/outbox"
	"github.com/noor-academy/lessonledger/pkg/outbox/payloads"
	"github.com/noor-academy/lessonledger/pkg/tiers"
)

// DefaultMilestoneHours is how many referred-user hours earn one ongoing reward.
const DefaultMilestoneHours = 10

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Completion describes the effect of CompleteReferral. Completed is false
// when the referral had already been completed earlier.
type Completion struct {
	Referral    *models.Referral `json:"referral"`
	Completed   bool             `json:"completed"`
	RewardHours decimal.Decimal  `json:"reward_hours"`
	TierLevel   int              `json:"tier_level"`
}

// MilestoneReward describes ongoing rewards granted by RecordReferredHours.
type MilestoneReward struct {
	Referral    *models.Referral `json:"referral"`
	Milestones  int              `json:"milestones"`
	RewardHours decimal.Decimal  `json:"reward_hours"`
	TierLevel   int              `json:"tier_level"`
}

type ReferralSummary struct {
	ReferredUserID     uuid.UUID            `json:"referred_user_id"`
	Status             enums.ReferralStatus `json:"status"`
	HoursCompleted     decimal.Decimal      `json:"hours_completed"`
	RewardHours        decimal.Decimal      `json:"reward_hours"`
	CompletedAt        *time.Time           `json:"completed_at,omitempty"`
	TierLevelCompleted *int                 `json:"tier_level_at_completion,omitempty"`
}

// Stats is the referrer dashboard projection.
type Stats struct {
	Evaluation
	TotalReferrals   int               `json:"total_referrals"`
	PendingReferrals int               `json:"pending_referrals"`
	TotalRewardHours decimal.Decimal   `json:"total_reward_hours"`
	Referrals        []ReferralSummary `json:"referrals"`
}

// TxRecorder applies referral effects inside a caller-owned transaction, so
// they commit or roll back together with the lesson that caused them.
type TxRecorder interface {
	CompleteReferralTx(ctx context.Context, tx *gorm.DB, referredUserID uuid.UUID) (*Completion, error)
	RecordReferredHoursTx(ctx context.Context, tx *gorm.DB, referredUserID uuid.UUID, hours decimal.Decimal) (*MilestoneReward, error)
}

type Service interface {
	RegisterReferral(ctx context.Context, referrerID, referredUserID uuid.UUID) (*models.Referral, error)
	TxRecorder
	CompleteReferral(ctx context.Context, referredUserID uuid.UUID) (*Completion, error)
	RecordReferredHours(ctx context.Context, referredUserID uuid.UUID, hours decimal.Decimal) (*MilestoneReward, error)
	Evaluate(ctx context.Context, userID uuid.UUID) (*Evaluation, error)
	Stats(ctx context.Context, userID uuid.UUID) (*Stats, error)
}

type ServiceParams struct {
	Repo           Repository
	Tx             txRunner
	Ledger         ledger.Poster
	Outbox         outbox.Emitter
	Ladder         tiers.ReferralLadder
	MilestoneHours int
	Logger         *logger.Logger
	Metrics        metrics.LedgerRecorder
	Now            func() time.Time
}

type service struct {
	repo      Repository
	tx        txRunner
	ledger    ledger.Poster
	outbox    outbox.Emitter
	ladder    tiers.ReferralLadder
	milestone int
	logg      *logger.Logger
	metrics   metrics.LedgerRecorder
	now       func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("referrals repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger poster required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	ladder := params.Ladder
	if len(ladder) == 0 {
		ladder = tiers.DefaultReferralLadder()
	}
	if err := ladder.Validate(); err != nil {
		return nil, err
	}
	svc := &service{
		repo:      params.Repo,
		tx:        params.Tx,
		ledger:    params.Ledger,
		outbox:    params.Outbox,
		ladder:    ladder,
		milestone: params.MilestoneHours,
		logg:      params.Logger,
		metrics:   params.Metrics,
		now:       params.Now,
	}
	if svc.milestone <= 0 {
		svc.milestone = DefaultMilestoneHours
	}
	if svc.logg == nil {
		svc.logg = logger.Nop()
	}
	if svc.now == nil {
		svc.now = func() time.Time { return time.Now().UTC() }
	}
	return svc, nil
}

// RegisterReferral links a new user to the person who invited them. Calling
// it again with the same pair returns the existing link.
func (s *service) RegisterReferral(ctx context.Context, referrerID, referredUserID uuid.UUID) (*models.Referral, error) {
	if referrerID == uuid.Nil || referredUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "referrer and referred user are required")
	}
	if referrerID == referredUserID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "users cannot refer themselves")
	}

	existing, err := s.repo.FindByReferred(ctx, referredUserID)
	switch {
	case err == nil:
		if existing.ReferrerID == referrerID {
			return existing, nil
		}
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "user already has a referrer")
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup referral")
	}

	now := s.now()
	referral := &models.Referral{
		ReferrerID:         referrerID,
		ReferredUserID:     referredUserID,
		Status:             enums.ReferralStatusPending,
		InitialRewardHours: decimal.Zero,
		HoursCompleted:     decimal.Zero,
		OngoingRewardHours: decimal.Zero,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.repo.Create(ctx, referral); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "user already has a referrer")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create referral")
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"referrer_id":      referrerID.String(),
		"referred_user_id": referredUserID.String(),
	}), "referral registered")
	return referral, nil
}

// CompleteReferral runs once per referral, when the referred user's first
// paid lesson completes. The initial reward is paid at the tier the referrer
// held before this completion; a floor it crosses applies from the next one.
func (s *service) CompleteReferral(ctx context.Context, referredUserID uuid.UUID) (result *Completion, err error) {
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		result, err = s.CompleteReferralTx(ctx, tx, referredUserID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) CompleteReferralTx(ctx context.Context, tx *gorm.DB, referredUserID uuid.UUID) (result *Completion, err error) {
	defer func() { metrics.ObserveResult(s.metrics, "referral_complete", err) }()

	if referredUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "referred user id required")
	}
	now := s.now()
	var promotedTo *int

	err = func() error {
		repo := s.repo.WithTx(tx)
		referral, err := repo.LockByReferred(ctx, referredUserID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "referral not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock referral")
		}
		if referral.Status == enums.ReferralStatusCompleted {
			level := 0
			if referral.TierLevelAtCompletion != nil {
				level = *referral.TierLevelAtCompletion
			}
			result = &Completion{Referral: referral, RewardHours: decimal.Zero, TierLevel: level}
			return nil
		}

		account, err := s.lockAccount(ctx, repo, referral.ReferrerID, now)
		if err != nil {
			return err
		}
		previousLevel := account.CurrentTierLevel
		rewardTier := s.ladder.ForCount(account.CompletedReferrals)
		reward := rewardTier.InitialRewardHours
		account.CompletedReferrals++
		tier := s.ladder.ForCount(account.CompletedReferrals)

		if reward.IsPositive() {
			reference := "referral:" + referral.ID.String()
			if _, err := s.ledger.Post(ctx, tx, ledger.Movement{Credit: &ledger.Posting{
				UserID:    referral.ReferrerID,
				Currency:  enums.CurrencyCredits,
				Amount:    reward,
				Kind:      enums.EntryKindBonus,
				Reference: &reference,
			}}); err != nil {
				return err
			}
		}

		account.TotalRewardHours = account.TotalRewardHours.Add(reward)
		account.CurrentTierLevel = tier.Level
		account.UpdatedAt = now
		if err := repo.SaveAccount(ctx, account); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update referral account")
		}
		if tier.Level != previousLevel {
			promotedTo = &tier.Level
		}

		level := rewardTier.Level
		referral.Status = enums.ReferralStatusCompleted
		referral.TierLevelAtCompletion = &level
		referral.InitialRewardHours = reward
		referral.CompletedAt = &now
		referral.UpdatedAt = now
		if err := repo.Save(ctx, referral); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update referral")
		}

		result = &Completion{Referral: referral, Completed: true, RewardHours: reward, TierLevel: rewardTier.Level}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventReferralCompleted,
			AggregateType: enums.AggregateReferral,
			AggregateID:   referral.ID,
			Actor:         &outbox.ActorRef{UserID: referral.ReferrerID, Role: enums.ActorRoleService},
			Data: payloads.ReferralCompletedEvent{
				ReferralID:         referral.ID,
				ReferrerID:         referral.ReferrerID,
				ReferredUserID:     referral.ReferredUserID,
				TierLevel:          rewardTier.Level,
				CompletedReferrals: account.CompletedReferrals,
				RewardHours:        reward,
			},
			OccurredAt: now,
		})
	}()
	if err != nil {
		return nil, err
	}

	if result.Completed {
		if promotedTo != nil && s.metrics != nil {
			s.metrics.IncPromotion("referral", strconv.Itoa(*promotedTo))
		}
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"referral_id":  result.Referral.ID.String(),
			"referrer_id":  result.Referral.ReferrerID.String(),
			"tier_level":   result.TierLevel,
			"reward_hours": result.RewardHours.String(),
		}), "referral completed")
	}
	return result, nil
}

// RecordReferredHours adds lesson hours completed by a referred user and
// pays the referrer's current tier rate for each newly crossed milestone.
// Hours logged while the referral is still pending are counted but only
// rewarded once it completes.
func (s *service) RecordReferredHours(ctx context.Context, referredUserID uuid.UUID, hours decimal.Decimal) (result *MilestoneReward, err error) {
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		result, err = s.RecordReferredHoursTx(ctx, tx, referredUserID, hours)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) RecordReferredHoursTx(ctx context.Context, tx *gorm.DB, referredUserID uuid.UUID, hours decimal.Decimal) (result *MilestoneReward, err error) {
	defer func() { metrics.ObserveResult(s.metrics, "referral_hours", err) }()

	if referredUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "referred user id required")
	}
	if !hours.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "hours must be greater than zero")
	}
	now := s.now()

	err = func() error {
		repo := s.repo.WithTx(tx)
		referral, err := repo.LockByReferred(ctx, referredUserID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "referral not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock referral")
		}
		referral.HoursCompleted = referral.HoursCompleted.Add(hours)
		referral.UpdatedAt = now
		result = &MilestoneReward{Referral: referral, RewardHours: decimal.Zero}

		if referral.Status == enums.ReferralStatusCompleted {
			if crossed := newMilestones(referral.HoursCompleted, s.milestone, referral.MilestonesRewarded); crossed > 0 {
				if err := s.rewardMilestones(ctx, tx, repo, referral, crossed, result, now); err != nil {
					return err
				}
			}
		}

		if err := repo.Save(ctx, referral); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update referral")
		}
		return nil
	}()
	if err != nil {
		return nil, err
	}
	if result.Milestones > 0 {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"referral_id":  result.Referral.ID.String(),
			"milestones":   result.Milestones,
			"reward_hours": result.RewardHours.String(),
			"tier_level":   result.TierLevel,
		}), "referral milestone rewarded")
	}
	return result, nil
}

func (s *service) rewardMilestones(ctx context.Context, tx *gorm.DB, repo Repository, referral *models.Referral, crossed int, result *MilestoneReward, now time.Time) error {
	account, err := s.lockAccount(ctx, repo, referral.ReferrerID, now)
	if err != nil {
		return err
	}
	tier := s.ladder.ForCount(account.CompletedReferrals)
	reward := tier.OngoingRewardRate.Mul(decimal.NewFromInt(int64(crossed)))
	first := referral.MilestonesRewarded + 1
	last := referral.MilestonesRewarded + crossed

	if reward.IsPositive() {
		reference := fmt.Sprintf("referral:%s:milestones:%d-%d", referral.ID, first, last)
		if _, err := s.ledger.Post(ctx, tx, ledger.Movement{Credit: &ledger.Posting{
			UserID:    referral.ReferrerID,
			Currency:  enums.CurrencyCredits,
			Amount:    reward,
			Kind:      enums.EntryKindBonus,
			Reference: &reference,
		}}); err != nil {
			return err
		}
	}

	account.TotalRewardHours = account.TotalRewardHours.Add(reward)
	account.CurrentTierLevel = tier.Level
	account.UpdatedAt = now
	if err := repo.SaveAccount(ctx, account); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update referral account")
	}

	referral.MilestonesRewarded = last
	referral.OngoingRewardHours = referral.OngoingRewardHours.Add(reward)
	result.Milestones = crossed
	result.RewardHours = reward
	result.TierLevel = tier.Level

	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventReferralRewardGranted,
		AggregateType: enums.AggregateReferral,
		AggregateID:   referral.ID,
		Actor:         &outbox.ActorRef{UserID: referral.ReferrerID, Role: enums.ActorRoleService},
		Data: payloads.ReferralRewardGrantedEvent{
			ReferralID:  referral.ID,
			ReferrerID:  referral.ReferrerID,
			Milestone:   last,
			TierLevel:   tier.Level,
			RewardHours: reward,
		},
		OccurredAt: now,
	})
}

func (s *service) lockAccount(ctx context.Context, repo Repository, userID uuid.UUID, now time.Time) (*models.ReferralAccount, error) {
	if err := repo.EnsureAccount(ctx, userID, s.ladder.ForCount(0).Level, now); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "ensure referral account")
	}
	account, err := repo.LockAccount(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock referral account")
	}
	return account, nil
}

func (s *service) Evaluate(ctx context.Context, userID uuid.UUID) (*Evaluation, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	account, err := s.repo.GetAccount(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load referral account")
	}
	completed := 0
	if account != nil {
		completed = account.CompletedReferrals
	}
	eval := Evaluate(s.ladder, completed)
	return &eval, nil
}

func (s *service) Stats(ctx context.Context, userID uuid.UUID) (*Stats, error) {
	eval, err := s.Evaluate(ctx, userID)
	if err != nil {
		return nil, err
	}
	referrals, err := s.repo.ListByReferrer(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list referrals")
	}

	stats := &Stats{
		Evaluation:       *eval,
		TotalReferrals:   len(referrals),
		TotalRewardHours: decimal.Zero,
		Referrals:        make([]ReferralSummary, 0, len(referrals)),
	}
	for _, referral := range referrals {
		reward := referral.InitialRewardHours.Add(referral.OngoingRewardHours)
		if referral.Status == enums.ReferralStatusPending {
			stats.PendingReferrals++
		}
		stats.TotalRewardHours = stats.TotalRewardHours.Add(reward)
		stats.Referrals = append(stats.Referrals, ReferralSummary{
			ReferredUserID:     referral.ReferredUserID,
			Status:             referral.Status,
			HoursCompleted:     referral.HoursCompleted,
			RewardHours:        reward,
			CompletedAt:        referral.CompletedAt,
			TierLevelCompleted: referral.TierLevelAtCompletion,
		})
	}
	return stats, nil
}
