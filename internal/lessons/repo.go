package lessons

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/noor-academy/lessonledger/internal/repo"
	"github.com/noor-academy/lessonledger/pkg/db/models"
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, completion *models.LessonCompletion) error
	FindByLesson(ctx context.Context, lessonID string) (*models.LessonCompletion, error)
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

func (r *repository) Create(ctx context.Context, completion *models.LessonCompletion) error {
	return r.DB(ctx).Create(completion).Error
}

// FindByLesson returns nil without error for lessons not yet recorded.
func (r *repository) FindByLesson(ctx context.Context, lessonID string) (*models.LessonCompletion, error) {
	var completion models.LessonCompletion
	err := r.DB(ctx).Take(&completion, "lesson_id = ?", lessonID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &completion, nil
}
