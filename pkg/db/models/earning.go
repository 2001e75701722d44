package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/noor-academy/lessonledger/pkg/enums"
)

// TeacherEarning is one lesson's payable amount moving through settlement.
type TeacherEarning struct {
	ID            uuid.UUID           `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	TeacherID     uuid.UUID           `gorm:"column:teacher_id;type:uuid;not null;index" json:"teacher_id"`
	LessonID      string              `gorm:"column:lesson_id;not null;uniqueIndex" json:"lesson_id"`
	StudentID     uuid.UUID           `gorm:"column:student_id;type:uuid;not null" json:"student_id"`
	AmountEarned  decimal.Decimal     `gorm:"column:amount_earned;type:numeric(12,2);not null" json:"amount_earned"`
	HourlyRate    decimal.Decimal     `gorm:"column:hourly_rate;type:numeric(12,2);not null" json:"hourly_rate"`
	DurationHours decimal.Decimal     `gorm:"column:duration_hours;type:numeric(14,4);not null" json:"duration_hours"`
	TierLevel     int                 `gorm:"column:tier_level;not null" json:"tier_level"`
	Status        enums.EarningStatus `gorm:"column:status;type:text;not null;index" json:"status"`
	HoldUntil     *time.Time          `gorm:"column:hold_until" json:"hold_until"`
	HeldAt        *time.Time          `gorm:"column:held_at" json:"held_at"`
	ClearedAt     *time.Time          `gorm:"column:cleared_at" json:"cleared_at"`
	ProcessingAt  *time.Time          `gorm:"column:processing_at" json:"processing_at"`
	PaidAt        *time.Time          `gorm:"column:paid_at" json:"paid_at"`
	RefundedAt    *time.Time          `gorm:"column:refunded_at" json:"refunded_at"`
	RefundReason  *string             `gorm:"column:refund_reason" json:"refund_reason"`
	PayoutID      *uuid.UUID          `gorm:"column:payout_id;type:uuid;index" json:"payout_id"`
	CreatedAt     time.Time           `gorm:"column:created_at;not null" json:"created_at"`
	UpdatedAt     time.Time           `gorm:"column:updated_at" json:"updated_at"`
}

func (e *TeacherEarning) BeforeCreate(*gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

type TeacherPayout struct {
	ID                uuid.UUID          `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	TeacherID         uuid.UUID          `gorm:"column:teacher_id;type:uuid;not null;index" json:"teacher_id"`
	Amount            decimal.Decimal    `gorm:"column:amount;type:numeric(12,2);not null" json:"amount"`
	EarningCount      int                `gorm:"column:earning_count;not null" json:"earning_count"`
	Status            enums.PayoutStatus `gorm:"column:status;type:text;not null" json:"status"`
	ExternalReference *string            `gorm:"column:external_reference" json:"external_reference"`
	RequestedAt       time.Time          `gorm:"column:requested_at;not null" json:"requested_at"`
	CompletedAt       *time.Time         `gorm:"column:completed_at" json:"completed_at"`
}

func (p *TeacherPayout) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
