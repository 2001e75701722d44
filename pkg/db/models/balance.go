package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/noor-academy/lessonledger/pkg/enums"
)

// Balance is the cached projection of a user's entries for one currency.
// Version increments with every entry and doubles as the entry sequence.
type Balance struct {
	UserID    uuid.UUID       `gorm:"column:user_id;type:uuid;primaryKey" json:"user_id"`
	Currency  enums.Currency  `gorm:"column:currency;type:text;primaryKey" json:"currency"`
	Amount    decimal.Decimal `gorm:"column:amount;type:numeric(14,4);not null;default:0" json:"amount"`
	Version   int64           `gorm:"column:version;not null;default:0" json:"version"`
	UpdatedAt time.Time       `gorm:"column:updated_at" json:"updated_at"`
}
