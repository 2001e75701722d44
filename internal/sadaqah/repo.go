package sadaqah

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noor-academy/lessonledger/internal/repo"
	"github.com/noor-academy/lessonledger/pkg/db/models"
)

// Repository persists donations, allocations and the singleton pool row.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	GetPool(ctx context.Context) (*models.SadaqahPool, error)
	LockPool(ctx context.Context) (*models.SadaqahPool, error)
	SavePool(ctx context.Context, pool *models.SadaqahPool) error
	CreateDonation(ctx context.Context, donation *models.SadaqahDonation) error
	CountDonationsByDonor(ctx context.Context, donorID uuid.UUID) (int64, error)
	CreateAllocation(ctx context.Context, allocation *models.SadaqahAllocation) error
	CountAllocationsByRecipient(ctx context.Context, recipientID uuid.UUID) (int64, error)
	ListDonationsByDonor(ctx context.Context, donorID uuid.UUID, limit int) ([]models.SadaqahDonation, error)
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

func (r *repository) GetPool(ctx context.Context) (*models.SadaqahPool, error) {
	var pool models.SadaqahPool
	if err := r.DB(ctx).Take(&pool, "id = ?", models.SadaqahPoolID).Error; err != nil {
		return nil, err
	}
	return &pool, nil
}

func (r *repository) LockPool(ctx context.Context) (*models.SadaqahPool, error) {
	var pool models.SadaqahPool
	if err := r.DB(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Take(&pool, "id = ?", models.SadaqahPoolID).Error; err != nil {
		return nil, err
	}
	return &pool, nil
}

func (r *repository) SavePool(ctx context.Context, pool *models.SadaqahPool) error {
	return r.DB(ctx).
		Model(&models.SadaqahPool{}).
		Where("id = ?", models.SadaqahPoolID).
		Updates(map[string]any{
			"total_donated":   pool.TotalDonated,
			"total_allocated": pool.TotalAllocated,
			"donor_count":     pool.DonorCount,
			"recipient_count": pool.RecipientCount,
			"lessons_funded":  pool.LessonsFunded,
			"updated_at":      pool.UpdatedAt,
		}).Error
}

func (r *repository) CreateDonation(ctx context.Context, donation *models.SadaqahDonation) error {
	return r.DB(ctx).Create(donation).Error
}

func (r *repository) CountDonationsByDonor(ctx context.Context, donorID uuid.UUID) (int64, error) {
	var count int64
	err := r.DB(ctx).Model(&models.SadaqahDonation{}).Where("donor_id = ?", donorID).Count(&count).Error
	return count, err
}

func (r *repository) CreateAllocation(ctx context.Context, allocation *models.SadaqahAllocation) error {
	return r.DB(ctx).Create(allocation).Error
}

func (r *repository) CountAllocationsByRecipient(ctx context.Context, recipientID uuid.UUID) (int64, error) {
	var count int64
	err := r.DB(ctx).Model(&models.SadaqahAllocation{}).Where("recipient_id = ?", recipientID).Count(&count).Error
	return count, err
}

func (r *repository) ListDonationsByDonor(ctx context.Context, donorID uuid.UUID, limit int) ([]models.SadaqahDonation, error) {
	var donations []models.SadaqahDonation
	if err := r.DB(ctx).
		Where("donor_id = ?", donorID).
		Order("created_at DESC").
		Limit(limit).
		Find(&donations).Error; err != nil {
		return nil, err
	}
	return donations, nil
}
