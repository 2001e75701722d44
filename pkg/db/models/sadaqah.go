package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// SadaqahPoolID is the primary key of the singleton pool row.
const SadaqahPoolID = 1

type SadaqahDonation struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	DonorID   uuid.UUID       `gorm:"column:donor_id;type:uuid;not null;index" json:"donor_id"`
	Amount    decimal.Decimal `gorm:"column:amount;type:numeric(14,4);not null" json:"amount"`
	Notes     *string         `gorm:"column:notes" json:"notes"`
	EntryID   uuid.UUID       `gorm:"column:entry_id;type:uuid;not null" json:"entry_id"`
	CreatedAt time.Time       `gorm:"column:created_at;not null" json:"created_at"`
}

func (d *SadaqahDonation) BeforeCreate(*gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}

// SadaqahPool aggregates donations and allocations. Balance is derived.
type SadaqahPool struct {
	ID             int             `gorm:"column:id;primaryKey;autoIncrement:false" json:"id"`
	TotalDonated   decimal.Decimal `gorm:"column:total_donated;type:numeric(14,4);not null;default:0" json:"total_donated"`
	TotalAllocated decimal.Decimal `gorm:"column:total_allocated;type:numeric(14,4);not null;default:0" json:"total_allocated"`
	DonorCount     int             `gorm:"column:donor_count;not null;default:0" json:"donor_count"`
	RecipientCount int             `gorm:"column:recipient_count;not null;default:0" json:"recipient_count"`
	LessonsFunded  int             `gorm:"column:lessons_funded;not null;default:0" json:"lessons_funded"`
	UpdatedAt      time.Time       `gorm:"column:updated_at" json:"updated_at"`
}

func (SadaqahPool) TableName() string { return "sadaqah_pool" }

// Balance is what remains available for allocation.
func (p SadaqahPool) Balance() decimal.Decimal {
	return p.TotalDonated.Sub(p.TotalAllocated)
}

type SadaqahAllocation struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	RecipientID uuid.UUID       `gorm:"column:recipient_id;type:uuid;not null;index" json:"recipient_id"`
	Amount      decimal.Decimal `gorm:"column:amount;type:numeric(14,4);not null" json:"amount"`
	Lessons     int             `gorm:"column:lessons;not null;default:0" json:"lessons"`
	AllocatedBy uuid.UUID       `gorm:"column:allocated_by;type:uuid;not null" json:"allocated_by"`
	Notes       *string         `gorm:"column:notes" json:"notes"`
	EntryID     uuid.UUID       `gorm:"column:entry_id;type:uuid;not null" json:"entry_id"`
	CreatedAt   time.Time       `gorm:"column:created_at;not null" json:"created_at"`
}

func (a *SadaqahAllocation) BeforeCreate(*gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
