package teachertiers

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
	"github.com/noor-academy/lessonledger/pkg/enums"
)

// StudentCounts are derived from lesson_completions. A returning student has
// completed at least two lessons with the teacher.
type StudentCounts struct {
	UniqueStudents    int `gorm:"column:unique_students"`
	ReturningStudents int `gorm:"column:returning_students"`
}

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	EnsureStats(ctx context.Context, teacherID uuid.UUID, entryLevel int, now time.Time) error
	LockStats(ctx context.Context, teacherID uuid.UUID) (*models.TeacherStats, error)
	GetStats(ctx context.Context, teacherID uuid.UUID) (*models.TeacherStats, error)
	SaveStats(ctx context.Context, stats *models.TeacherStats) error
	CountStudents(ctx context.Context, teacherID uuid.UUID) (StudentCounts, error)
	InsertHistory(ctx context.Context, row *models.TeacherTierHistory) error
	ListHistory(ctx context.Context, teacherID uuid.UUID) ([]models.TeacherTierHistory, error)
	CreateApplication(ctx context.Context, app *models.TeacherTierApplication) error
	FindPendingApplication(ctx context.Context, teacherID uuid.UUID) (*models.TeacherTierApplication, error)
	LockApplication(ctx context.Context, id uuid.UUID) (*models.TeacherTierApplication, error)
	SaveApplication(ctx context.Context, app *models.TeacherTierApplication) error
	ListApplications(ctx context.Context, teacherID uuid.UUID) ([]models.TeacherTierApplication, error)
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

// EnsureStats seeds a teacher's row on the ladder's entry level. An existing
// row is left untouched.
func (r *repository) EnsureStats(ctx context.Context, teacherID uuid.UUID, entryLevel int, now time.Time) error {
	stats := models.TeacherStats{
		TeacherID:        teacherID,
		HoursTaught:      decimal.Zero,
		CurrentTierLevel: entryLevel,
		UpdatedAt:        now,
	}
	return r.DB(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&stats).Error
}

func (r *repository) LockStats(ctx context.Context, teacherID uuid.UUID) (*models.TeacherStats, error) {
	var stats models.TeacherStats
	if err := r.DB(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Take(&stats, "teacher_id = ?", teacherID).Error; err != nil {
		return nil, err
	}
	return &stats, nil
}

// GetStats returns nil without error for teachers with no recorded lessons.
func (r *repository) GetStats(ctx context.Context, teacherID uuid.UUID) (*models.TeacherStats, error) {
	var stats models.TeacherStats
	err := r.DB(ctx).Take(&stats, "teacher_id = ?", teacherID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

func (r *repository) SaveStats(ctx context.Context, stats *models.TeacherStats) error {
	return r.DB(ctx).
		Model(&models.TeacherStats{}).
		Where("teacher_id = ?", stats.TeacherID).
		Updates(map[string]any{
			"hours_taught":       stats.HoursTaught,
			"current_tier_level": stats.CurrentTierLevel,
			"updated_at":         stats.UpdatedAt,
		}).Error
}

func (r *repository) CountStudents(ctx context.Context, teacherID uuid.UUID) (StudentCounts, error) {
	var counts StudentCounts
	err := r.DB(ctx).Raw(`
		SELECT COUNT(*) AS unique_students,
		       CAST(COALESCE(SUM(CASE WHEN lessons >= 2 THEN 1 ELSE 0 END), 0) AS INTEGER) AS returning_students
		FROM (
			SELECT student_id, COUNT(*) AS lessons
			FROM lesson_completions
			WHERE teacher_id = ?
			GROUP BY student_id
		) per_student`, teacherID).
		Scan(&counts).Error
	return counts, err
}

func (r *repository) InsertHistory(ctx context.Context, row *models.TeacherTierHistory) error {
	return r.DB(ctx).Create(row).Error
}

func (r *repository) ListHistory(ctx context.Context, teacherID uuid.UUID) ([]models.TeacherTierHistory, error) {
	var rows []models.TeacherTierHistory
	if err := r.DB(ctx).
		Where("teacher_id = ?", teacherID).
		Order("created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) CreateApplication(ctx context.Context, app *models.TeacherTierApplication) error {
	return r.DB(ctx).Create(app).Error
}

// FindPendingApplication returns nil without error when nothing is pending.
func (r *repository) FindPendingApplication(ctx context.Context, teacherID uuid.UUID) (*models.TeacherTierApplication, error) {
	var app models.TeacherTierApplication
	err := r.DB(ctx).
		Where("teacher_id = ? AND status = ?", teacherID, enums.TierApplicationPending).
		Take(&app).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &app, nil
}

func (r *repository) LockApplication(ctx context.Context, id uuid.UUID) (*models.TeacherTierApplication, error) {
	var app models.TeacherTierApplication
	if err := r.DB(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Take(&app, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &app, nil
}

func (r *repository) SaveApplication(ctx context.Context, app *models.TeacherTierApplication) error {
	return r.DB(ctx).
		Model(&models.TeacherTierApplication{}).
		Where("id = ?", app.ID).
		Updates(map[string]any{
			"status":       app.Status,
			"reviewed_by":  app.ReviewedBy,
			"review_notes": app.ReviewNotes,
			"reviewed_at":  app.ReviewedAt,
			"updated_at":   app.UpdatedAt,
		}).Error
}

func (r *repository) ListApplications(ctx context.Context, teacherID uuid.UUID) ([]models.TeacherTierApplication, error) {
	var apps []models.TeacherTierApplication
	if err := r.DB(ctx).
		Where("teacher_id = ?", teacherID).
		Order("created_at DESC").
		Find(&apps).Error; err != nil {
		return nil, err
	}
	return apps, nil
}
