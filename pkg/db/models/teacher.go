package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/noor-academy/lessonledger/pkg/enums"
)

type TeacherStats struct {
	TeacherID        uuid.UUID       `gorm:"column:teacher_id;type:uuid;primaryKey" json:"teacher_id"`
	HoursTaught      decimal.Decimal `gorm:"column:hours_taught;type:numeric(14,4);not null;default:0" json:"hours_taught"`
	CurrentTierLevel int             `gorm:"column:current_tier_level;not null" json:"current_tier_level"`
	UpdatedAt        time.Time       `gorm:"column:updated_at" json:"updated_at"`
}

// LessonCompletion is the intake record for a finished lesson; student
// counts for retention are derived from it.
type LessonCompletion struct {
	ID            uuid.UUID       `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	LessonID      string          `gorm:"column:lesson_id;not null;uniqueIndex" json:"lesson_id"`
	TeacherID     uuid.UUID       `gorm:"column:teacher_id;type:uuid;not null;index" json:"teacher_id"`
	StudentID     uuid.UUID       `gorm:"column:student_id;type:uuid;not null;index" json:"student_id"`
	DurationHours decimal.Decimal `gorm:"column:duration_hours;type:numeric(14,4);not null" json:"duration_hours"`
	Cost          decimal.Decimal `gorm:"column:cost;type:numeric(14,4);not null;default:0" json:"cost"`
	CompletedAt   time.Time       `gorm:"column:completed_at;not null" json:"completed_at"`
	CreatedAt     time.Time       `gorm:"column:created_at;not null" json:"created_at"`
}

func (l *LessonCompletion) BeforeCreate(*gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}

type TeacherTierApplication struct {
	ID             uuid.UUID                   `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	TeacherID      uuid.UUID                   `gorm:"column:teacher_id;type:uuid;not null;index" json:"teacher_id"`
	RequestedLevel int                         `gorm:"column:requested_level;not null" json:"requested_level"`
	Status         enums.TierApplicationStatus `gorm:"column:status;type:text;not null" json:"status"`
	Notes          *string                     `gorm:"column:notes" json:"notes"`
	ReviewedBy     *uuid.UUID                  `gorm:"column:reviewed_by;type:uuid" json:"reviewed_by"`
	ReviewNotes    *string                     `gorm:"column:review_notes" json:"review_notes"`
	ReviewedAt     *time.Time                  `gorm:"column:reviewed_at" json:"reviewed_at"`
	CreatedAt      time.Time                   `gorm:"column:created_at;not null" json:"created_at"`
	UpdatedAt      time.Time                   `gorm:"column:updated_at" json:"updated_at"`
}

func (a *TeacherTierApplication) BeforeCreate(*gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// TeacherTierHistory is appended on every tier change.
type TeacherTierHistory struct {
	ID              uuid.UUID           `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	TeacherID       uuid.UUID           `gorm:"column:teacher_id;type:uuid;not null;index" json:"teacher_id"`
	FromLevel       int                 `gorm:"column:from_level;not null" json:"from_level"`
	ToLevel         int                 `gorm:"column:to_level;not null" json:"to_level"`
	PromotionType   enums.PromotionType `gorm:"column:promotion_type;type:text;not null" json:"promotion_type"`
	MetricsSnapshot json.RawMessage     `gorm:"column:metrics_snapshot;type:jsonb;not null" json:"metrics_snapshot"`
	ApplicationID   *uuid.UUID          `gorm:"column:application_id;type:uuid" json:"application_id"`
	CreatedAt       time.Time           `gorm:"column:created_at;not null" json:"created_at"`
}

func (TeacherTierHistory) TableName() string { return "teacher_tier_history" }

func (h *TeacherTierHistory) BeforeCreate(*gorm.DB) error {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	return nil
}
