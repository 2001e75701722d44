package teachertiers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
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
	"github.com/noor-academy/lessonledger/pkg/tiers"
)

const maxNotesLength = 1000

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// HoursRecorder adds taught hours inside the caller's lesson-completion
// transaction and returns the tier the teacher held for that lesson.
type HoursRecorder interface {
	RecordHours(ctx context.Context, tx *gorm.DB, teacherID uuid.UUID, hours decimal.Decimal) (tiers.TeacherTier, error)
	CheckPromotionTx(ctx context.Context, tx *gorm.DB, teacherID uuid.UUID) (*Promotion, error)
}

// Promotion is the outcome of CheckPromotion.
type Promotion struct {
	Promoted   bool              `json:"promoted"`
	FromLevel  int               `json:"from_level"`
	ToLevel    int               `json:"to_level"`
	Tier       tiers.TeacherTier `json:"tier"`
	Evaluation Evaluation        `json:"evaluation"`
}

// Stats is the teacher dashboard projection.
type Stats struct {
	Evaluation
	ManualTiers  []tiers.TeacherTier             `json:"manual_tiers"`
	Applications []models.TeacherTierApplication `json:"applications"`
	History      []models.TeacherTierHistory     `json:"history"`
}

type SubmitApplicationInput struct {
	TeacherID      uuid.UUID
	RequestedLevel int
	Notes          string
}

type DecisionInput struct {
	ApplicationID uuid.UUID
	ReviewerID    uuid.UUID
	Notes         string
}

type Service interface {
	HoursRecorder
	CurrentTier(ctx context.Context, teacherID uuid.UUID) (tiers.TeacherTier, error)
	Evaluate(ctx context.Context, teacherID uuid.UUID) (*Evaluation, error)
	Stats(ctx context.Context, teacherID uuid.UUID) (*Stats, error)
	CheckPromotion(ctx context.Context, teacherID uuid.UUID) (*Promotion, error)
	SubmitApplication(ctx context.Context, input SubmitApplicationInput) (*models.TeacherTierApplication, error)
	ApproveApplication(ctx context.Context, input DecisionInput) (*models.TeacherTierApplication, error)
	RejectApplication(ctx context.Context, input DecisionInput) (*models.TeacherTierApplication, error)
}

type ServiceParams struct {
	Repo    Repository
	Tx      txRunner
	Outbox  outbox.Emitter
	Ladder  tiers.TeacherLadder
	Logger  *logger.Logger
	Metrics metrics.LedgerRecorder
	Now     func() time.Time
}

type service struct {
	repo    Repository
	tx      txRunner
	outbox  outbox.Emitter
	ladder  tiers.TeacherLadder
	logg    *logger.Logger
	metrics metrics.LedgerRecorder
	now     func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("teacher tiers repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	ladder := params.Ladder
	if len(ladder) == 0 {
		ladder = tiers.DefaultTeacherLadder()
	}
	if err := ladder.Validate(); err != nil {
		return nil, err
	}
	svc := &service{
		repo:    params.Repo,
		tx:      params.Tx,
		outbox:  params.Outbox,
		ladder:  ladder,
		logg:    params.Logger,
		metrics: params.Metrics,
		now:     params.Now,
	}
	if svc.logg == nil {
		svc.logg = logger.Nop()
	}
	if svc.now == nil {
		svc.now = func() time.Time { return time.Now().UTC() }
	}
	return svc, nil
}

func (s *service) RecordHours(ctx context.Context, tx *gorm.DB, teacherID uuid.UUID, hours decimal.Decimal) (tiers.TeacherTier, error) {
	if teacherID == uuid.Nil {
		return tiers.TeacherTier{}, pkgerrors.New(pkgerrors.CodeValidation, "teacher id required")
	}
	if !hours.IsPositive() {
		return tiers.TeacherTier{}, pkgerrors.New(pkgerrors.CodeValidation, "duration must be greater than zero")
	}
	now := s.now()
	repo := s.repo.WithTx(tx)
	stats, err := s.lockStats(ctx, repo, teacherID, now)
	if err != nil {
		return tiers.TeacherTier{}, err
	}
	stats.HoursTaught = stats.HoursTaught.Add(hours)
	stats.UpdatedAt = now
	if err := repo.SaveStats(ctx, stats); err != nil {
		return tiers.TeacherTier{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update teacher stats")
	}
	return s.tierFor(stats.CurrentTierLevel), nil
}

// CurrentTier is the tier a teacher holds now, the entry tier when unknown.
func (s *service) CurrentTier(ctx context.Context, teacherID uuid.UUID) (tiers.TeacherTier, error) {
	stats, err := s.repo.GetStats(ctx, teacherID)
	if err != nil {
		return tiers.TeacherTier{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load teacher stats")
	}
	if stats == nil {
		return s.ladder.Entry(), nil
	}
	return s.tierFor(stats.CurrentTierLevel), nil
}

func (s *service) Evaluate(ctx context.Context, teacherID uuid.UUID) (*Evaluation, error) {
	if teacherID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "teacher id required")
	}
	stats, err := s.repo.GetStats(ctx, teacherID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load teacher stats")
	}
	level, hours := s.ladder.Entry().Level, decimal.Zero
	if stats != nil {
		level, hours = stats.CurrentTierLevel, stats.HoursTaught
	}
	m, err := s.metricsFor(ctx, s.repo, teacherID, hours)
	if err != nil {
		return nil, err
	}
	eval := Evaluate(s.ladder, level, m)
	return &eval, nil
}

func (s *service) Stats(ctx context.Context, teacherID uuid.UUID) (*Stats, error) {
	eval, err := s.Evaluate(ctx, teacherID)
	if err != nil {
		return nil, err
	}
	apps, err := s.repo.ListApplications(ctx, teacherID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list tier applications")
	}
	history, err := s.repo.ListHistory(ctx, teacherID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list tier history")
	}
	stats := &Stats{Evaluation: *eval, Applications: apps, History: history}
	for _, tier := range s.ladder {
		if tier.RequiresManualApproval && tier.Level > eval.Tier.Level {
			stats.ManualTiers = append(stats.ManualTiers, tier)
		}
	}
	return stats, nil
}

// CheckPromotion moves the teacher straight to the highest automatic tier
// they qualify for. Running it again without new lessons changes nothing.
func (s *service) CheckPromotion(ctx context.Context, teacherID uuid.UUID) (result *Promotion, err error) {
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		result, err = s.CheckPromotionTx(ctx, tx, teacherID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) CheckPromotionTx(ctx context.Context, tx *gorm.DB, teacherID uuid.UUID) (result *Promotion, err error) {
	defer func() { metrics.ObserveResult(s.metrics, "teacher_tier_check", err) }()

	if teacherID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "teacher id required")
	}
	now := s.now()

	err = func() error {
		repo := s.repo.WithTx(tx)
		stats, err := s.lockStats(ctx, repo, teacherID, now)
		if err != nil {
			return err
		}
		m, err := s.metricsFor(ctx, repo, teacherID, stats.HoursTaught)
		if err != nil {
			return err
		}
		from := stats.CurrentTierLevel
		result = &Promotion{FromLevel: from, ToLevel: from, Tier: s.tierFor(from)}

		target := PromotionTarget(s.ladder, from, m)
		if target == nil {
			result.Evaluation = Evaluate(s.ladder, from, m)
			return nil
		}

		stats.CurrentTierLevel = target.Level
		stats.UpdatedAt = now
		if err := repo.SaveStats(ctx, stats); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update teacher tier")
		}
		if err := s.appendHistory(ctx, tx, repo, teacherID, from, *target, enums.PromotionAutomatic, m, nil, now); err != nil {
			return err
		}
		result.Promoted = true
		result.ToLevel = target.Level
		result.Tier = *target
		result.Evaluation = Evaluate(s.ladder, target.Level, m)
		return nil
	}()
	if err != nil {
		return nil, err
	}
	if result.Promoted {
		s.promoted(ctx, teacherID, result.FromLevel, result.Tier, enums.PromotionAutomatic)
	}
	return result, nil
}

func (s *service) SubmitApplication(ctx context.Context, input SubmitApplicationInput) (app *models.TeacherTierApplication, err error) {
	defer func() { metrics.ObserveResult(s.metrics, "tier_application_submit", err) }()

	if input.TeacherID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "teacher id required")
	}
	notes := strings.TrimSpace(input.Notes)
	if len(notes) > maxNotesLength {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("notes must be at most %d characters", maxNotesLength))
	}
	requested, ok := s.ladder.ByLevel(input.RequestedLevel)
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "requested tier does not exist")
	}
	if !requested.RequiresManualApproval {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("%s is reached automatically", requested.Name))
	}
	now := s.now()

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		stats, err := s.lockStats(ctx, repo, input.TeacherID, now)
		if err != nil {
			return err
		}
		if stats.CurrentTierLevel >= requested.Level {
			return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("already at or above %s", requested.Name))
		}
		pending, err := repo.FindPendingApplication(ctx, input.TeacherID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup pending application")
		}
		if pending != nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "a tier application is already pending review")
		}
		app = &models.TeacherTierApplication{
			TeacherID:      input.TeacherID,
			RequestedLevel: requested.Level,
			Status:         enums.TierApplicationPending,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if notes != "" {
			app.Notes = &notes
		}
		if err := repo.CreateApplication(ctx, app); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create tier application")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"teacher_id":      input.TeacherID.String(),
		"application_id":  app.ID.String(),
		"requested_level": app.RequestedLevel,
	}), "tier application submitted")
	return app, nil
}

// ApproveApplication is the only way onto a manual tier.
func (s *service) ApproveApplication(ctx context.Context, input DecisionInput) (*models.TeacherTierApplication, error) {
	return s.decide(ctx, input, enums.TierApplicationApproved)
}

func (s *service) RejectApplication(ctx context.Context, input DecisionInput) (*models.TeacherTierApplication, error) {
	return s.decide(ctx, input, enums.TierApplicationRejected)
}

func (s *service) decide(ctx context.Context, input DecisionInput, status enums.TierApplicationStatus) (app *models.TeacherTierApplication, err error) {
	defer func() { metrics.ObserveResult(s.metrics, "tier_application_decide", err) }()

	if input.ApplicationID == uuid.Nil || input.ReviewerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "application and reviewer are required")
	}
	notes := strings.TrimSpace(input.Notes)
	if len(notes) > maxNotesLength {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("notes must be at most %d characters", maxNotesLength))
	}
	now := s.now()
	var promotedFrom *int
	var promotedTo tiers.TeacherTier

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		app, err = repo.LockApplication(ctx, input.ApplicationID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "tier application not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock tier application")
		}
		if app.Status != enums.TierApplicationPending {
			return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("application already %s", app.Status))
		}

		reviewer := input.ReviewerID
		app.Status = status
		app.ReviewedBy = &reviewer
		app.ReviewedAt = &now
		app.UpdatedAt = now
		if notes != "" {
			app.ReviewNotes = &notes
		}
		if err := repo.SaveApplication(ctx, app); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update tier application")
		}

		if status == enums.TierApplicationApproved {
			stats, err := s.lockStats(ctx, repo, app.TeacherID, now)
			if err != nil {
				return err
			}
			tier, ok := s.ladder.ByLevel(app.RequestedLevel)
			if ok && tier.Level > stats.CurrentTierLevel {
				from := stats.CurrentTierLevel
				m, err := s.metricsFor(ctx, repo, app.TeacherID, stats.HoursTaught)
				if err != nil {
					return err
				}
				stats.CurrentTierLevel = tier.Level
				stats.UpdatedAt = now
				if err := repo.SaveStats(ctx, stats); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update teacher tier")
				}
				if err := s.appendHistory(ctx, tx, repo, app.TeacherID, from, tier, enums.PromotionManual, m, &app.ID, now); err != nil {
					return err
				}
				promotedFrom, promotedTo = &from, tier
			}
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventTierApplicationDecided,
			AggregateType: enums.AggregateTeacher,
			AggregateID:   app.TeacherID,
			Actor:         &outbox.ActorRef{UserID: reviewer, Role: enums.ActorRoleStaff},
			Data: payloads.TierApplicationDecidedEvent{
				ApplicationID:  app.ID,
				TeacherID:      app.TeacherID,
				RequestedLevel: app.RequestedLevel,
				Status:         app.Status,
			},
			OccurredAt: now,
		})
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"application_id": app.ID.String(),
		"teacher_id":     app.TeacherID.String(),
		"status":         string(app.Status),
	}), "tier application decided")
	if promotedFrom != nil {
		s.promoted(ctx, app.TeacherID, *promotedFrom, promotedTo, enums.PromotionManual)
	}
	return app, nil
}

type snapshot struct {
	HoursTaught       decimal.Decimal  `json:"hours_taught"`
	UniqueStudents    int              `json:"unique_students"`
	ReturningStudents int              `json:"returning_students"`
	RetentionRate     *decimal.Decimal `json:"retention_rate,omitempty"`
}

func (s *service) appendHistory(ctx context.Context, tx *gorm.DB, repo Repository, teacherID uuid.UUID, from int, to tiers.TeacherTier, kind enums.PromotionType, m Metrics, applicationID *uuid.UUID, now time.Time) error {
	raw, err := json.Marshal(snapshot{
		HoursTaught:       m.HoursTaught,
		UniqueStudents:    m.UniqueStudents,
		ReturningStudents: m.ReturningStudents,
		RetentionRate:     m.RetentionRate(),
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode metrics snapshot")
	}
	row := &models.TeacherTierHistory{
		TeacherID:       teacherID,
		FromLevel:       from,
		ToLevel:         to.Level,
		PromotionType:   kind,
		MetricsSnapshot: raw,
		ApplicationID:   applicationID,
		CreatedAt:       now,
	}
	if err := repo.InsertHistory(ctx, row); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert tier history")
	}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventTeacherTierPromoted,
		AggregateType: enums.AggregateTeacher,
		AggregateID:   teacherID,
		Actor:         &outbox.ActorRef{UserID: teacherID, Role: enums.ActorRoleService},
		Data: payloads.TeacherTierPromotedEvent{
			TeacherID:     teacherID,
			FromLevel:     from,
			ToLevel:       to.Level,
			TierName:      to.Name,
			PromotionType: kind,
		},
		OccurredAt: now,
	})
}

func (s *service) promoted(ctx context.Context, teacherID uuid.UUID, from int, to tiers.TeacherTier, kind enums.PromotionType) {
	if s.metrics != nil {
		s.metrics.IncPromotion("teacher", strconv.Itoa(to.Level))
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"teacher_id":     teacherID.String(),
		"from_level":     from,
		"to_level":       to.Level,
		"tier":           to.Name,
		"promotion_type": string(kind),
	}), "teacher tier promoted")
}

func (s *service) lockStats(ctx context.Context, repo Repository, teacherID uuid.UUID, now time.Time) (*models.TeacherStats, error) {
	if err := repo.EnsureStats(ctx, teacherID, s.ladder.Entry().Level, now); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "ensure teacher stats")
	}
	stats, err := repo.LockStats(ctx, teacherID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock teacher stats")
	}
	return stats, nil
}

func (s *service) metricsFor(ctx context.Context, repo Repository, teacherID uuid.UUID, hours decimal.Decimal) (Metrics, error) {
	counts, err := repo.CountStudents(ctx, teacherID)
	if err != nil {
		return Metrics{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count students")
	}
	return Metrics{
		HoursTaught:       hours,
		UniqueStudents:    counts.UniqueStudents,
		ReturningStudents: counts.ReturningStudents,
	}, nil
}

func (s *service) tierFor(level int) tiers.TeacherTier {
	if tier, ok := s.ladder.ByLevel(level); ok {
		return tier
	}
	return s.ladder.Entry()
}
