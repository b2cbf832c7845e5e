package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/kompas-go-api/internal/models"
)

// ForecastRepository handles persistence for projected grade-12 scores.
type ForecastRepository interface {
	ReplaceForStudent(ctx context.Context, studentID string, forecasts []models.Forecast) error
	ListByStudent(ctx context.Context, studentID string) ([]models.Forecast, error)
}

type forecastRepository struct {
	db *gorm.DB
}

// NewForecastRepository constructs a repository backed by GORM.
func NewForecastRepository(db *gorm.DB) ForecastRepository {
	return &forecastRepository{db: db}
}

// ReplaceForStudent swaps the student's forecast set atomically. Forecasts
// are derived data, so stale rows are never worth keeping.
func (r *forecastRepository) ReplaceForStudent(ctx context.Context, studentID string, forecasts []models.Forecast) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("student_id = ?", studentID).Delete(&models.Forecast{}).Error; err != nil {
			return err
		}
		if len(forecasts) == 0 {
			return nil
		}
		return tx.Create(&forecasts).Error
	})
}

func (r *forecastRepository) ListByStudent(ctx context.Context, studentID string) ([]models.Forecast, error) {
	var forecasts []models.Forecast
	if err := r.db.WithContext(ctx).
		Where("student_id = ?", studentID).
		Order("subject ASC").
		Find(&forecasts).Error; err != nil {
		return nil, err
	}

	return forecasts, nil
}
