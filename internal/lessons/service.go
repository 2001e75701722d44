// Package lessons is the intake for lesson bookings and completions coming
// from the scheduling system. A completion is the event that drives earnings,
// teacher tiers and referral rewards.
package lessons

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/noor-academy/lessonledger/internal/earnings"
	"github.com/noor-academy/lessonledger/internal/referrals"
	"github.com/noor-academy/lessonledger/internal/teachertiers"
	"github.com/noor-academy/lessonledger/pkg/db"
	"github.com/noor-academy/lessonledger/pkg/db/models"
	pkgerrors "github.com/noor-academy/lessonledger/pkg/errors"
	"github.com/noor-academy/lessonledger/pkg/logger"
	"github.com/noor-academy/lessonledger/pkg/metrics"
	"github.com/noor-academy/lessonledger/pkg/tiers"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type tierEngine interface {
	teachertiers.HoursRecorder
	CurrentTier(ctx context.Context, teacherID uuid.UUID) (tiers.TeacherTier, error)
}

type BookingInput struct {
	LessonID      string
	TeacherID     uuid.UUID
	StudentID     uuid.UUID
	DurationHours decimal.Decimal
}

// CompletionInput is a finished lesson. Cost is the credits the student paid;
// the first paid lesson completes the student's referral.
type CompletionInput struct {
	LessonID      string
	TeacherID     uuid.UUID
	StudentID     uuid.UUID
	DurationHours decimal.Decimal
	Cost          decimal.Decimal
	CompletedAt   time.Time
}

type CompletionResult struct {
	Completion *models.LessonCompletion   `json:"completion"`
	Earning    *models.TeacherEarning     `json:"earning"`
	Duplicate  bool                       `json:"duplicate"`
	Promotion  *teachertiers.Promotion    `json:"promotion,omitempty"`
	Referral   *referrals.Completion      `json:"referral,omitempty"`
	Milestones *referrals.MilestoneReward `json:"referral_milestones,omitempty"`
}

type Service interface {
	RecordLessonBooked(ctx context.Context, input BookingInput) (*models.TeacherEarning, error)
	RecordLessonCompletion(ctx context.Context, input CompletionInput) (*CompletionResult, error)
}

type ServiceParams struct {
	Repo      Repository
	Tx        txRunner
	Earnings  earnings.Recorder
	Tiers     tierEngine
	Referrals referrals.TxRecorder
	Logger    *logger.Logger
	Metrics   metrics.LedgerRecorder
	Now       func() time.Time
}

type service struct {
	repo      Repository
	tx        txRunner
	earnings  earnings.Recorder
	tiers     tierEngine
	referrals referrals.TxRecorder
	logg      *logger.Logger
	metrics   metrics.LedgerRecorder
	now       func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("lessons repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Earnings == nil {
		return nil, fmt.Errorf("earnings recorder required")
	}
	if params.Tiers == nil {
		return nil, fmt.Errorf("teacher tier engine required")
	}
	if params.Referrals == nil {
		return nil, fmt.Errorf("referral engine required")
	}
	svc := &service{
		repo:      params.Repo,
		tx:        params.Tx,
		earnings:  params.Earnings,
		tiers:     params.Tiers,
		referrals: params.Referrals,
		logg:      params.Logger,
		metrics:   params.Metrics,
		now:       params.Now,
	}
	if svc.logg == nil {
		svc.logg = logger.Nop()
	}
	if svc.now == nil {
		svc.now = func() time.Time { return time.Now().UTC() }
	}
	return svc, nil
}

// RecordLessonBooked opens a pending earning priced at the teacher's
// current rate.
func (s *service) RecordLessonBooked(ctx context.Context, input BookingInput) (earning *models.TeacherEarning, err error) {
	defer func() { metrics.ObserveResult(s.metrics, "lesson_booked", err) }()

	input.LessonID = strings.TrimSpace(input.LessonID)
	if err := validateParticipants(input.LessonID, input.TeacherID, input.StudentID, input.DurationHours); err != nil {
		return nil, err
	}
	tier, err := s.tiers.CurrentTier(ctx, input.TeacherID)
	if err != nil {
		return nil, err
	}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		earning, err = s.earnings.RecordBooking(ctx, tx, earnings.LessonEarningInput{
			TeacherID:     input.TeacherID,
			StudentID:     input.StudentID,
			LessonID:      input.LessonID,
			DurationHours: input.DurationHours,
			HourlyRate:    tier.HourlyRate,
			TierLevel:     tier.Level,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return earning, nil
}

// RecordLessonCompletion applies every effect of a finished lesson in one
// transaction: the completion row, taught hours, the held earning, tier
// promotion and referral rewards. Any failure rolls all of it back so a
// redelivery starts clean. A lesson id seen before is acknowledged without
// repeating any effect.
func (s *service) RecordLessonCompletion(ctx context.Context, input CompletionInput) (result *CompletionResult, err error) {
	defer func() { metrics.ObserveResult(s.metrics, "lesson_completed", err) }()

	input.LessonID = strings.TrimSpace(input.LessonID)
	if err := validateParticipants(input.LessonID, input.TeacherID, input.StudentID, input.DurationHours); err != nil {
		return nil, err
	}
	if input.Cost.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cost must not be negative")
	}
	now := s.now()
	completedAt := input.CompletedAt.UTC()
	if input.CompletedAt.IsZero() {
		completedAt = now
	}
	if completedAt.After(now) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "completed_at cannot be in the future")
	}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"lesson_id":  input.LessonID,
		"teacher_id": input.TeacherID.String(),
		"student_id": input.StudentID.String(),
	})

	result = &CompletionResult{}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		existing, err := repo.FindByLesson(ctx, input.LessonID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup lesson completion")
		}
		if existing != nil {
			result.Completion = existing
			result.Duplicate = true
			return nil
		}

		completion := &models.LessonCompletion{
			LessonID:      input.LessonID,
			TeacherID:     input.TeacherID,
			StudentID:     input.StudentID,
			DurationHours: input.DurationHours,
			Cost:          input.Cost,
			CompletedAt:   completedAt,
			CreatedAt:     now,
		}
		if err := repo.Create(ctx, completion); err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.New(pkgerrors.CodeConcurrentModification, "lesson completion is being recorded concurrently")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create lesson completion")
		}
		result.Completion = completion

		tier, err := s.tiers.RecordHours(ctx, tx, input.TeacherID, input.DurationHours)
		if err != nil {
			return err
		}
		result.Earning, err = s.earnings.RecordLessonEarning(ctx, tx, earnings.LessonEarningInput{
			TeacherID:     input.TeacherID,
			StudentID:     input.StudentID,
			LessonID:      input.LessonID,
			DurationHours: input.DurationHours,
			HourlyRate:    tier.HourlyRate,
			TierLevel:     tier.Level,
		})
		if err != nil {
			return err
		}
		return s.applyRewards(ctx, tx, input, result)
	})
	if err != nil {
		return nil, err
	}
	if result.Duplicate {
		s.logg.Info(ctx, "lesson completion already recorded")
		return result, nil
	}
	s.logg.Info(ctx, "lesson completion recorded")
	return result, nil
}

// applyRewards runs tier promotion and the student's referral inside the
// completion transaction. A student without a referral is not an error.
func (s *service) applyRewards(ctx context.Context, tx *gorm.DB, input CompletionInput, result *CompletionResult) error {
	promotion, err := s.tiers.CheckPromotionTx(ctx, tx, input.TeacherID)
	if err != nil {
		return err
	}
	result.Promotion = promotion

	if input.Cost.IsPositive() {
		completion, err := s.referrals.CompleteReferralTx(ctx, tx, input.StudentID)
		switch {
		case pkgerrors.IsCode(err, pkgerrors.CodeNotFound):
			return nil
		case err != nil:
			return err
		}
		result.Referral = completion
	}

	reward, err := s.referrals.RecordReferredHoursTx(ctx, tx, input.StudentID, input.DurationHours)
	switch {
	case pkgerrors.IsCode(err, pkgerrors.CodeNotFound):
		return nil
	case err != nil:
		return err
	}
	result.Milestones = reward
	return nil
}

func validateParticipants(lessonID string, teacherID, studentID uuid.UUID, hours decimal.Decimal) error {
	switch {
	case lessonID == "":
		return pkgerrors.New(pkgerrors.CodeValidation, "lesson_id is required")
	case teacherID == uuid.Nil:
		return pkgerrors.New(pkgerrors.CodeValidation, "teacher_id is required")
	case studentID == uuid.Nil:
		return pkgerrors.New(pkgerrors.CodeValidation, "student_id is required")
	case teacherID == studentID:
		return pkgerrors.New(pkgerrors.CodeValidation, "teacher and student must differ")
	case !hours.IsPositive():
		return pkgerrors.New(pkgerrors.CodeValidation, "duration_hours must be greater than zero")
	}
	return nil
}
