package transfers

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/noor-academy/lessonledger/internal/repo"
	"github.com/noor-academy/lessonledger/pkg/db/models"
)

// Repository persists transfer records.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, record *models.CreditTransfer) error
	ListForUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.CreditTransfer, error)
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

func (r *repository) Create(ctx context.Context, record *models.CreditTransfer) error {
	return r.DB(ctx).Create(record).Error
}

// ListForUser returns transfers sent or received, newest first.
func (r *repository) ListForUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.CreditTransfer, error) {
	var records []models.CreditTransfer
	if err := r.DB(ctx).
		Where("from_user_id = ? OR to_user_id = ?", userID, userID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}
