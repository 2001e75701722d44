package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CreditTransfer is the peer-to-peer record backed by a transfer_out/transfer_in pair.
type CreditTransfer struct {
	ID         uuid.UUID       `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	FromUserID uuid.UUID       `gorm:"column:from_user_id;type:uuid;not null;index" json:"from_user_id"`
	ToUserID   uuid.UUID       `gorm:"column:to_user_id;type:uuid;not null;index" json:"to_user_id"`
	Amount     decimal.Decimal `gorm:"column:amount;type:numeric(14,4);not null" json:"amount"`
	Notes      *string         `gorm:"column:notes" json:"notes"`
	OutEntryID uuid.UUID       `gorm:"column:out_entry_id;type:uuid;not null" json:"out_entry_id"`
	InEntryID  uuid.UUID       `gorm:"column:in_entry_id;type:uuid;not null" json:"in_entry_id"`
	CreatedAt  time.Time       `gorm:"column:created_at;not null" json:"created_at"`
}

func (t *CreditTransfer) BeforeCreate(*gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
