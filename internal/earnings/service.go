package earnings

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/noor-academy/lessonledger/pkg/db/models"
	"github.com/noor-academy/lessonledger/pkg/enums"
	pkgerrors "github.com/noor-academy/lessonledger/pkg/errors"
	"github.com/noor-academy/lessonledger/pkg/logger"
	"github.com/noor-academy/lessonledger/pkg/metrics"
	"github.com/noor-academy/lessonledger/pkg/outbox"
	"github.com/noor-academy/lessonledger/pkg/outbox/payloads"
)

// DefaultHoldPeriod is how long a completed lesson's earning stays held.
const DefaultHoldPeriod = 7 * 24 * time.Hour

const (
	defaultPayoutListLimit = 20
	maxReasonLength        = 500
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// LessonEarningInput prices one lesson at the teacher's tier rate.
type LessonEarningInput struct {
	TeacherID     uuid.UUID
	StudentID     uuid.UUID
	LessonID      string
	DurationHours decimal.Decimal
	HourlyRate    decimal.Decimal
	TierLevel     int
}

type CompletePayoutInput struct {
	PayoutID          uuid.UUID
	ExternalReference string
}

type RefundInput struct {
	LessonID string
	Reason   string
}

type StatusSummary struct {
	Amount decimal.Decimal `json:"amount"`
	Count  int             `json:"count"`
}

// Summary is the teacher earnings dashboard projection.
type Summary struct {
	TeacherID     uuid.UUID                             `json:"teacher_id"`
	ByStatus      map[enums.EarningStatus]StatusSummary `json:"by_status"`
	Available     decimal.Decimal                       `json:"available_for_payout"`
	TotalEarned   decimal.Decimal                       `json:"total_earned"`
	TotalPaid     decimal.Decimal                       `json:"total_paid"`
	NextClearAt   *time.Time                            `json:"next_clear_at,omitempty"`
	RecentPayouts []models.TeacherPayout                `json:"recent_payouts"`
}

// Recorder is the slice of the service lesson intake needs inside its own
// transaction.
type Recorder interface {
	RecordBooking(ctx context.Context, tx *gorm.DB, input LessonEarningInput) (*models.TeacherEarning, error)
	RecordLessonEarning(ctx context.Context, tx *gorm.DB, input LessonEarningInput) (*models.TeacherEarning, error)
}

type Service interface {
	Recorder
	ClearMatured(ctx context.Context) (int64, error)
	RequestPayout(ctx context.Context, teacherID uuid.UUID) (*models.TeacherPayout, error)
	CompletePayout(ctx context.Context, input CompletePayoutInput) (*models.TeacherPayout, error)
	Refund(ctx context.Context, input RefundInput) (*models.TeacherEarning, error)
	Summary(ctx context.Context, teacherID uuid.UUID) (*Summary, error)
}

type ServiceParams struct {
	Repo       Repository
	Tx         txRunner
	Outbox     outbox.Emitter
	HoldPeriod time.Duration
	Logger     *logger.Logger
	Metrics    metrics.LedgerRecorder
	Now        func() time.Time
}

type service struct {
	repo    Repository
	tx      txRunner
	outbox  outbox.Emitter
	hold    time.Duration
	logg    *logger.Logger
	metrics metrics.LedgerRecorder
	now     func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("earnings repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	svc := &service{
		repo:    params.Repo,
		tx:      params.Tx,
		outbox:  params.Outbox,
		hold:    params.HoldPeriod,
		logg:    params.Logger,
		metrics: params.Metrics,
		now:     params.Now,
	}
	if svc.hold <= 0 {
		svc.hold = DefaultHoldPeriod
	}
	if svc.logg == nil {
		svc.logg = logger.Nop()
	}
	if svc.now == nil {
		svc.now = func() time.Time { return time.Now().UTC() }
	}
	return svc, nil
}

// RecordBooking creates the pending earning for a booked lesson. Booking the
// same lesson twice returns the existing row.
func (s *service) RecordBooking(ctx context.Context, tx *gorm.DB, input LessonEarningInput) (*models.TeacherEarning, error) {
	if err := validateEarning(input); err != nil {
		return nil, err
	}
	repo := s.repo.WithTx(tx)
	existing, err := s.findForUpdate(ctx, repo, input.LessonID)
	if err != nil || existing != nil {
		return existing, err
	}
	return s.create(ctx, repo, input, s.now())
}

// RecordLessonEarning moves the lesson's earning from pending to held, creating
// it first when the lesson was never booked. Completed lessons are left as is.
func (s *service) RecordLessonEarning(ctx context.Context, tx *gorm.DB, input LessonEarningInput) (*models.TeacherEarning, error) {
	if err := validateEarning(input); err != nil {
		return nil, err
	}
	now := s.now()
	repo := s.repo.WithTx(tx)
	earning, err := s.findForUpdate(ctx, repo, input.LessonID)
	if err != nil {
		return nil, err
	}
	if earning == nil {
		if earning, err = s.create(ctx, repo, input, now); err != nil {
			return nil, err
		}
	}
	if earning.TeacherID != input.TeacherID {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "lesson belongs to a different teacher")
	}
	if earning.Status != enums.EarningStatusPending {
		return earning, nil
	}

	holdUntil := now.Add(s.hold)
	earning.DurationHours = input.DurationHours
	earning.HourlyRate = input.HourlyRate
	earning.TierLevel = input.TierLevel
	earning.AmountEarned = amountFor(input)
	earning.Status = enums.EarningStatusHeld
	earning.HeldAt = &now
	earning.HoldUntil = &holdUntil
	earning.UpdatedAt = now
	if err := repo.Save(ctx, earning); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "hold earning")
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"teacher_id": earning.TeacherID.String(),
		"lesson_id":  earning.LessonID,
		"amount":     earning.AmountEarned.String(),
		"hold_until": holdUntil,
	}), "earning held")
	return earning, nil
}

func (s *service) findForUpdate(ctx context.Context, repo Repository, lessonID string) (*models.TeacherEarning, error) {
	earning, err := repo.LockByLesson(ctx, lessonID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup earning")
	}
	return earning, nil
}

func (s *service) create(ctx context.Context, repo Repository, input LessonEarningInput, now time.Time) (*models.TeacherEarning, error) {
	earning := &models.TeacherEarning{
		TeacherID:     input.TeacherID,
		LessonID:      input.LessonID,
		StudentID:     input.StudentID,
		AmountEarned:  amountFor(input),
		HourlyRate:    input.HourlyRate,
		DurationHours: input.DurationHours,
		TierLevel:     input.TierLevel,
		Status:        enums.EarningStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := repo.Create(ctx, earning); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create earning")
	}
	return earning, nil
}

// ClearMatured releases every held earning whose hold has elapsed.
func (s *service) ClearMatured(ctx context.Context) (cleared int64, err error) {
	defer func() { metrics.ObserveResult(s.metrics, "earnings_clear", err) }()

	now := s.now()
	cleared, err = s.repo.ClearHeld(ctx, now)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear held earnings")
	}
	if s.metrics != nil {
		s.metrics.AddEarningsCleared(cleared)
	}
	if cleared > 0 {
		s.logg.Info(s.logg.WithField(ctx, "cleared", cleared), "held earnings cleared")
	}
	return cleared, nil
}

// RequestPayout claims every cleared earning of the teacher in one conditional
// update, so concurrent requests never share an earning.
func (s *service) RequestPayout(ctx context.Context, teacherID uuid.UUID) (payout *models.TeacherPayout, err error) {
	defer func() { metrics.ObserveResult(s.metrics, "payout_request", err) }()

	if teacherID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "teacher identity required")
	}
	now := s.now()

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		payoutID := uuid.New()
		claimed, err := repo.ClaimCleared(ctx, teacherID, payoutID, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim cleared earnings")
		}
		if claimed == 0 {
			return pkgerrors.New(pkgerrors.CodeNoClearedEarnings, "no cleared earnings are available for payout")
		}
		total, err := repo.SumByPayout(ctx, payoutID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum payout")
		}
		payout = &models.TeacherPayout{
			ID:           payoutID,
			TeacherID:    teacherID,
			Amount:       total,
			EarningCount: int(claimed),
			Status:       enums.PayoutStatusProcessing,
			RequestedAt:  now,
		}
		if err := repo.CreatePayout(ctx, payout); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payout")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPayoutRequested,
			AggregateType: enums.AggregateTeacherPayout,
			AggregateID:   payout.ID,
			Actor:         &outbox.ActorRef{UserID: teacherID, Role: enums.ActorRoleUser},
			Data: payloads.PayoutRequestedEvent{
				PayoutID:     payout.ID,
				TeacherID:    teacherID,
				Amount:       payout.Amount,
				EarningCount: payout.EarningCount,
			},
			OccurredAt: now,
		})
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeNoClearedEarnings {
			s.logg.Info(s.logg.WithField(ctx, "teacher_id", teacherID.String()), typed.Message())
		}
		return nil, err
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"teacher_id":    teacherID.String(),
		"payout_id":     payout.ID.String(),
		"amount":        payout.Amount.String(),
		"earning_count": payout.EarningCount,
	}), "payout requested")
	return payout, nil
}

func (s *service) CompletePayout(ctx context.Context, input CompletePayoutInput) (payout *models.TeacherPayout, err error) {
	defer func() { metrics.ObserveResult(s.metrics, "payout_complete", err) }()

	if input.PayoutID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payout id required")
	}
	reference := strings.TrimSpace(input.ExternalReference)
	now := s.now()

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		payout, err = repo.LockPayout(ctx, input.PayoutID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "payout not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock payout")
		}
		if payout.Status != enums.PayoutStatusProcessing {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "payout is already completed")
		}
		if _, err := repo.MarkPaid(ctx, payout.ID, now); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark earnings paid")
		}
		payout.Status = enums.PayoutStatusCompleted
		payout.CompletedAt = &now
		if reference != "" {
			payout.ExternalReference = &reference
		}
		if err := repo.SavePayout(ctx, payout); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "complete payout")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPayoutCompleted,
			AggregateType: enums.AggregateTeacherPayout,
			AggregateID:   payout.ID,
			Actor:         &outbox.ActorRef{UserID: payout.TeacherID, Role: enums.ActorRoleStaff},
			Data: payloads.PayoutCompletedEvent{
				PayoutID:          payout.ID,
				TeacherID:         payout.TeacherID,
				Amount:            payout.Amount,
				ExternalReference: reference,
				CompletedAt:       now,
			},
			OccurredAt: now,
		})
	})
	if err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"payout_id":  payout.ID.String(),
		"teacher_id": payout.TeacherID.String(),
	}), "payout completed")
	return payout, nil
}

// Refund voids a disputed lesson's earning. Earnings already in a payout
// cannot be refunded here.
func (s *service) Refund(ctx context.Context, input RefundInput) (earning *models.TeacherEarning, err error) {
	defer func() { metrics.ObserveResult(s.metrics, "earning_refund", err) }()

	lessonID := strings.TrimSpace(input.LessonID)
	reason := strings.TrimSpace(input.Reason)
	switch {
	case lessonID == "":
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "lesson id required")
	case reason == "":
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund reason required")
	case len(reason) > maxReasonLength:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("reason must be at most %d characters", maxReasonLength))
	}
	now := s.now()
	var previous enums.EarningStatus

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		earning, err = repo.LockByLesson(ctx, lessonID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "earning not found for lesson")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock earning")
		}
		if !earning.Status.CanTransitionTo(enums.EarningStatusRefunded) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("a %s earning cannot be refunded", earning.Status)).
				WithDetails(map[string]any{"status": earning.Status})
		}
		previous = earning.Status
		earning.Status = enums.EarningStatusRefunded
		earning.RefundedAt = &now
		earning.RefundReason = &reason
		earning.UpdatedAt = now
		if err := repo.Save(ctx, earning); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "refund earning")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventEarningRefunded,
			AggregateType: enums.AggregateTeacherEarning,
			AggregateID:   earning.ID,
			Actor:         &outbox.ActorRef{UserID: earning.TeacherID, Role: enums.ActorRoleStaff},
			Data: payloads.EarningRefundedEvent{
				EarningID:      earning.ID,
				TeacherID:      earning.TeacherID,
				LessonID:       earning.LessonID,
				PreviousStatus: previous,
				Reason:         reason,
			},
			OccurredAt: now,
		})
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeStateConflict {
			s.logg.Warn(s.logg.WithField(ctx, "lesson_id", lessonID), typed.Message())
		}
		return nil, err
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"lesson_id":       lessonID,
		"teacher_id":      earning.TeacherID.String(),
		"previous_status": string(previous),
	}), "earning refunded")
	return earning, nil
}

func (s *service) Summary(ctx context.Context, teacherID uuid.UUID) (*Summary, error) {
	if teacherID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "teacher identity required")
	}
	totals, err := s.repo.TotalsByStatus(ctx, teacherID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "summarize earnings")
	}
	next, err := s.repo.NextHeld(ctx, teacherID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "next held earning")
	}
	payouts, err := s.repo.ListPayouts(ctx, teacherID, defaultPayoutListLimit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payouts")
	}

	summary := &Summary{
		TeacherID:     teacherID,
		ByStatus:      make(map[enums.EarningStatus]StatusSummary, len(totals)),
		Available:     decimal.Zero,
		TotalEarned:   decimal.Zero,
		TotalPaid:     decimal.Zero,
		RecentPayouts: payouts,
	}
	for _, total := range totals {
		summary.ByStatus[total.Status] = StatusSummary{Amount: total.Amount, Count: total.Count}
		if total.Status != enums.EarningStatusRefunded {
			summary.TotalEarned = summary.TotalEarned.Add(total.Amount)
		}
		switch total.Status {
		case enums.EarningStatusCleared:
			summary.Available = total.Amount
		case enums.EarningStatusPaid:
			summary.TotalPaid = total.Amount
		}
	}
	if next != nil {
		summary.NextClearAt = next.HoldUntil
	}
	return summary, nil
}

func validateEarning(input LessonEarningInput) error {
	switch {
	case input.TeacherID == uuid.Nil:
		return pkgerrors.New(pkgerrors.CodeValidation, "teacher id required")
	case input.StudentID == uuid.Nil:
		return pkgerrors.New(pkgerrors.CodeValidation, "student id required")
	case strings.TrimSpace(input.LessonID) == "":
		return pkgerrors.New(pkgerrors.CodeValidation, "lesson id required")
	case input.DurationHours.IsNegative():
		return pkgerrors.New(pkgerrors.CodeValidation, "duration must not be negative")
	case input.HourlyRate.IsNegative():
		return pkgerrors.New(pkgerrors.CodeValidation, "hourly rate must not be negative")
	}
	return nil
}

func amountFor(input LessonEarningInput) decimal.Decimal {
	return input.HourlyRate.Mul(input.DurationHours).Round(2)
}
