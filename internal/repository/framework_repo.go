package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/kompas-go-api/internal/models"
)

// FrameworkRepository handles persistence for versioned question frameworks.
type FrameworkRepository interface {
	ListByVersion(ctx context.Context, version string) ([]models.FrameworkQuestion, error)
	ReplaceVersion(ctx context.Context, version string, questions []models.FrameworkQuestion) error
	Versions(ctx context.Context) ([]string, error)
	CountByVersion(ctx context.Context, version string) (int64, error)
}

type frameworkRepository struct {
	db *gorm.DB
}

// NewFrameworkRepository constructs a repository backed by GORM.
func NewFrameworkRepository(db *gorm.DB) FrameworkRepository {
	return &frameworkRepository{db: db}
}

// ListByVersion returns the version's questions in id order, the canonical
// framework order runs iterate in.
func (r *frameworkRepository) ListByVersion(ctx context.Context, version string) ([]models.FrameworkQuestion, error) {
	var questions []models.FrameworkQuestion
	if err := r.db.WithContext(ctx).
		Where("version = ?", version).
		Order("id ASC").
		Find(&questions).Error; err != nil {
		return nil, err
	}

	return questions, nil
}

// ReplaceVersion swaps one version's question set atomically. Other versions
// are untouched, so runs pinned to them keep working mid-import.
func (r *frameworkRepository) ReplaceVersion(ctx context.Context, version string, questions []models.FrameworkQuestion) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("version = ?", version).Delete(&models.FrameworkQuestion{}).Error; err != nil {
			return err
		}
		if len(questions) == 0 {
			return nil
		}
		for i := range questions {
			questions[i].Version = version
		}
		return tx.CreateInBatches(questions, 100).Error
	})
}

func (r *frameworkRepository) Versions(ctx context.Context) ([]string, error) {
	var versions []string
	if err := r.db.WithContext(ctx).
		Model(&models.FrameworkQuestion{}).
		Distinct("version").
		Order("version ASC").
		Pluck("version", &versions).Error; err != nil {
		return nil, err
	}

	return versions, nil
}

func (r *frameworkRepository) CountByVersion(ctx context.Context, version string) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.FrameworkQuestion{}).
		Where("version = ?", version).
		Count(&count).Error; err != nil {
		return 0, err
	}

	return count, nil
}
