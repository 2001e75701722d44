package earnings

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noor-academy/lessonledger/internal/repo"
	"github.com/noor-academy/lessonledger/pkg/db/models"
	"github.com/noor-academy/lessonledger/pkg/enums"
)

// StatusTotal aggregates a teacher's earnings in one status.
type StatusTotal struct {
	Status enums.EarningStatus `gorm:"column:status"`
	Amount decimal.Decimal     `gorm:"column:amount"`
	Count  int                 `gorm:"column:earning_count"`
}

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, earning *models.TeacherEarning) error
	LockByLesson(ctx context.Context, lessonID string) (*models.TeacherEarning, error)
	Save(ctx context.Context, earning *models.TeacherEarning) error
	ClearHeld(ctx context.Context, now time.Time) (int64, error)
	ClaimCleared(ctx context.Context, teacherID, payoutID uuid.UUID, now time.Time) (int64, error)
	SumByPayout(ctx context.Context, payoutID uuid.UUID) (decimal.Decimal, error)
	MarkPaid(ctx context.Context, payoutID uuid.UUID, now time.Time) (int64, error)
	CreatePayout(ctx context.Context, payout *models.TeacherPayout) error
	LockPayout(ctx context.Context, id uuid.UUID) (*models.TeacherPayout, error)
	SavePayout(ctx context.Context, payout *models.TeacherPayout) error
	ListPayouts(ctx context.Context, teacherID uuid.UUID, limit int) ([]models.TeacherPayout, error)
	TotalsByStatus(ctx context.Context, teacherID uuid.UUID) ([]StatusTotal, error)
	NextHeld(ctx context.Context, teacherID uuid.UUID) (*models.TeacherEarning, error)
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

func (r *repository) Create(ctx context.Context, earning *models.TeacherEarning) error {
	return r.DB(ctx).Create(earning).Error
}

func (r *repository) LockByLesson(ctx context.Context, lessonID string) (*models.TeacherEarning, error) {
	var earning models.TeacherEarning
	if err := r.DB(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Take(&earning, "lesson_id = ?", lessonID).Error; err != nil {
		return nil, err
	}
	return &earning, nil
}

func (r *repository) Save(ctx context.Context, earning *models.TeacherEarning) error {
	return r.DB(ctx).
		Model(&models.TeacherEarning{}).
		Where("id = ?", earning.ID).
		Updates(map[string]any{
			"amount_earned":  earning.AmountEarned,
			"hourly_rate":    earning.HourlyRate,
			"duration_hours": earning.DurationHours,
			"tier_level":     earning.TierLevel,
			"status":         earning.Status,
			"hold_until":     earning.HoldUntil,
			"held_at":        earning.HeldAt,
			"refunded_at":    earning.RefundedAt,
			"refund_reason":  earning.RefundReason,
			"updated_at":     earning.UpdatedAt,
		}).Error
}

// ClearHeld is the sweep transition. The status predicate makes concurrent
// sweeps and refunds safe without reading rows first.
func (r *repository) ClearHeld(ctx context.Context, now time.Time) (int64, error) {
	res := r.DB(ctx).
		Model(&models.TeacherEarning{}).
		Where("status = ? AND hold_until <= ?", enums.EarningStatusHeld, now).
		Updates(map[string]any{
			"status":     enums.EarningStatusCleared,
			"cleared_at": now,
			"updated_at": now,
		})
	return res.RowsAffected, res.Error
}

func (r *repository) ClaimCleared(ctx context.Context, teacherID, payoutID uuid.UUID, now time.Time) (int64, error) {
	res := r.DB(ctx).
		Model(&models.TeacherEarning{}).
		Where("teacher_id = ? AND status = ?", teacherID, enums.EarningStatusCleared).
		Updates(map[string]any{
			"status":        enums.EarningStatusProcessing,
			"processing_at": now,
			"payout_id":     payoutID,
			"updated_at":    now,
		})
	return res.RowsAffected, res.Error
}

func (r *repository) SumByPayout(ctx context.Context, payoutID uuid.UUID) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.DB(ctx).
		Model(&models.TeacherEarning{}).
		Select("COALESCE(SUM(amount_earned), 0)").
		Where("payout_id = ?", payoutID).
		Row().
		Scan(&total)
	if err != nil {
		return decimal.Zero, err
	}
	return total, nil
}

func (r *repository) MarkPaid(ctx context.Context, payoutID uuid.UUID, now time.Time) (int64, error) {
	res := r.DB(ctx).
		Model(&models.TeacherEarning{}).
		Where("payout_id = ? AND status = ?", payoutID, enums.EarningStatusProcessing).
		Updates(map[string]any{
			"status":     enums.EarningStatusPaid,
			"paid_at":    now,
			"updated_at": now,
		})
	return res.RowsAffected, res.Error
}

func (r *repository) CreatePayout(ctx context.Context, payout *models.TeacherPayout) error {
	return r.DB(ctx).Create(payout).Error
}

func (r *repository) LockPayout(ctx context.Context, id uuid.UUID) (*models.TeacherPayout, error) {
	var payout models.TeacherPayout
	if err := r.DB(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Take(&payout, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &payout, nil
}

func (r *repository) SavePayout(ctx context.Context, payout *models.TeacherPayout) error {
	return r.DB(ctx).
		Model(&models.TeacherPayout{}).
		Where("id = ?", payout.ID).
		Updates(map[string]any{
			"status":             payout.Status,
			"external_reference": payout.ExternalReference,
			"completed_at":       payout.CompletedAt,
		}).Error
}

func (r *repository) ListPayouts(ctx context.Context, teacherID uuid.UUID, limit int) ([]models.TeacherPayout, error) {
	var payouts []models.TeacherPayout
	if err := r.DB(ctx).
		Where("teacher_id = ?", teacherID).
		Order("requested_at DESC").
		Limit(limit).
		Find(&payouts).Error; err != nil {
		return nil, err
	}
	return payouts, nil
}

func (r *repository) TotalsByStatus(ctx context.Context, teacherID uuid.UUID) ([]StatusTotal, error) {
	var totals []StatusTotal
	err := r.DB(ctx).
		Model(&models.TeacherEarning{}).
		Select("status, COALESCE(SUM(amount_earned), 0) AS amount, COUNT(*) AS earning_count").
		Where("teacher_id = ?", teacherID).
		Group("status").
		Scan(&totals).Error
	return totals, err
}

// NextHeld returns the held earning that clears soonest, or nil.
func (r *repository) NextHeld(ctx context.Context, teacherID uuid.UUID) (*models.TeacherEarning, error) {
	var earnings []models.TeacherEarning
	if err := r.DB(ctx).
		Where("teacher_id = ? AND status = ?", teacherID, enums.EarningStatusHeld).
		Order("hold_until ASC").
		Limit(1).
		Find(&earnings).Error; err != nil {
		return nil, err
	}
	if len(earnings) == 0 {
		return nil, nil
	}
	return &earnings[0], nil
}
