package outbox

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/noor-academy/lessonledger/pkg/db/models"
)

// DLQRepository stores events the publisher gave up on.
type DLQRepository struct {
	db *gorm.DB
}

func NewDLQRepository(db *gorm.DB) *DLQRepository {
	return &DLQRepository{db: db}
}

// InsertTx must share the transaction that parks the source row so an
// event is never both retried and dead-lettered.
func (r *DLQRepository) InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	if entry.ErrorMessage != nil {
		short := truncate(*entry.ErrorMessage)
		entry.ErrorMessage = &short
	}
	return tx.Create(&entry).Error
}

// FailedSince returns up to limit dead letters newer than since, newest first.
func (r *DLQRepository) FailedSince(ctx context.Context, since time.Time, limit int) ([]models.OutboxDLQ, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []models.OutboxDLQ
	err := r.db.WithContext(ctx).
		Where("failed_at > ?", since).
		Order("failed_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
