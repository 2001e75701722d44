package ledger

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
	"github.com/noor-academy/lessonledger/pkg/pagination"
)

// Repository persists balances and their entries.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	EnsureBalance(ctx context.Context, userID uuid.UUID, currency enums.Currency, now time.Time) error
	LockBalance(ctx context.Context, userID uuid.UUID, currency enums.Currency) (*models.Balance, error)
	FindBalance(ctx context.Context, userID uuid.UUID, currency enums.Currency) (*models.Balance, error)
	UpdateBalance(ctx context.Context, userID uuid.UUID, currency enums.Currency, expectedVersion int64, amount decimal.Decimal, now time.Time) (bool, error)
	InsertEntries(ctx context.Context, entries []*models.LedgerEntry) error
	ListAccountEntries(ctx context.Context, userID uuid.UUID, currency enums.Currency) ([]models.LedgerEntry, error)
	FindByReference(ctx context.Context, userID uuid.UUID, currency enums.Currency, kind enums.EntryKind, reference string) (*models.LedgerEntry, error)
	ListEntries(ctx context.Context, userID uuid.UUID, currency *enums.Currency, cursor *pagination.Cursor, limit int) ([]models.LedgerEntry, error)
	SumByKind(ctx context.Context, kind enums.EntryKind) (decimal.Decimal, error)
}

type repository struct {
	repo.Base
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{Base: r.Bind(tx)}
}

func (r *repository) EnsureBalance(ctx context.Context, userID uuid.UUID, currency enums.Currency, now time.Time) error {
	row := models.Balance{
		UserID:    userID,
		Currency:  currency,
		Amount:    decimal.Zero,
		Version:   0,
		UpdatedAt: now,
	}
	return r.DB(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&row).Error
}

func (r *repository) LockBalance(ctx context.Context, userID uuid.UUID, currency enums.Currency) (*models.Balance, error) {
	var balance models.Balance
	err := r.DB(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ? AND currency = ?", userID, currency).
		Take(&balance).Error
	if err != nil {
		return nil, err
	}
	return &balance, nil
}

// FindBalance returns a zero balance when the account has never been touched.
func (r *repository) FindBalance(ctx context.Context, userID uuid.UUID, currency enums.Currency) (*models.Balance, error) {
	var balance models.Balance
	err := r.DB(ctx).
		Where("user_id = ? AND currency = ?", userID, currency).
		Take(&balance).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &models.Balance{UserID: userID, Currency: currency, Amount: decimal.Zero}, nil
	}
	if err != nil {
		return nil, err
	}
	return &balance, nil
}

// UpdateBalance writes the new amount only if nobody bumped the version since
// it was read. It reports false when the compare-and-set lost.
func (r *repository) UpdateBalance(ctx context.Context, userID uuid.UUID, currency enums.Currency, expectedVersion int64, amount decimal.Decimal, now time.Time) (bool, error) {
	res := r.DB(ctx).
		Model(&models.Balance{}).
		Where("user_id = ? AND currency = ? AND version = ?", userID, currency, expectedVersion).
		Updates(map[string]any{
			"amount":     amount,
			"version":    gorm.Expr("version + 1"),
			"updated_at": now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) InsertEntries(ctx context.Context, entries []*models.LedgerEntry) error {
	if len(entries) == 0 {
		return nil
	}
	return r.DB(ctx).Create(entries).Error
}

func (r *repository) ListAccountEntries(ctx context.Context, userID uuid.UUID, currency enums.Currency) ([]models.LedgerEntry, error) {
	var entries []models.LedgerEntry
	if err := r.DB(ctx).
		Where("user_id = ? AND currency = ?", userID, currency).
		Order("sequence ASC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repository) FindByReference(ctx context.Context, userID uuid.UUID, currency enums.Currency, kind enums.EntryKind, reference string) (*models.LedgerEntry, error) {
	var entry models.LedgerEntry
	err := r.DB(ctx).
		Where("user_id = ? AND currency = ? AND kind = ? AND reference = ?", userID, currency, kind, reference).
		Order("sequence ASC").
		Take(&entry).Error
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *repository) ListEntries(ctx context.Context, userID uuid.UUID, currency *enums.Currency, cursor *pagination.Cursor, limit int) ([]models.LedgerEntry, error) {
	query := r.DB(ctx).Where("user_id = ?", userID)
	if currency != nil {
		query = query.Where("currency = ?", *currency)
	}
	if cursor != nil {
		query = query.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	var entries []models.LedgerEntry
	if err := query.
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// SumByKind totals deltas of one kind across every account.
func (r *repository) SumByKind(ctx context.Context, kind enums.EntryKind) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.DB(ctx).
		Model(&models.LedgerEntry{}).
		Select("COALESCE(SUM(delta), 0)").
		Where("kind = ?", kind).
		Row().
		Scan(&total)
	if err != nil {
		return decimal.Zero, err
	}
	return total, nil
}
