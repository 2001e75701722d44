package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/noor-academy/lessonledger/pkg/enums"
)

// LedgerEntry is an immutable balance movement. Sequence is per
// (user, currency) and equals the balance version after the entry applied.
type LedgerEntry struct {
	ID             uuid.UUID       `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	UserID         uuid.UUID       `gorm:"column:user_id;type:uuid;not null;uniqueIndex:uq_ledger_entries_account_seq,priority:1" json:"user_id"`
	Currency       enums.Currency  `gorm:"column:currency;type:text;not null;uniqueIndex:uq_ledger_entries_account_seq,priority:2" json:"currency"`
	Sequence       int64           `gorm:"column:sequence;not null;uniqueIndex:uq_ledger_entries_account_seq,priority:3" json:"sequence"`
	Kind           enums.EntryKind `gorm:"column:kind;type:text;not null" json:"kind"`
	Delta          decimal.Decimal `gorm:"column:delta;type:numeric(14,4);not null" json:"delta"`
	BalanceAfter   decimal.Decimal `gorm:"column:balance_after;type:numeric(14,4);not null" json:"balance_after"`
	RelatedEntryID *uuid.UUID      `gorm:"column:related_entry_id;type:uuid" json:"related_entry_id"`
	Reference      *string         `gorm:"column:reference" json:"reference"`
	MaturesAt      *time.Time      `gorm:"column:matures_at" json:"matures_at"`
	CreatedAt      time.Time       `gorm:"column:created_at;not null;index" json:"created_at"`
}

func (e *LedgerEntry) BeforeCreate(*gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
