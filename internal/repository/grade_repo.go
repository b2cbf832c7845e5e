package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/kompas-go-api/internal/models"
)

// GradeRepository handles persistence for historical grade records.
type GradeRepository interface {
	CreateBatch(ctx context.Context, grades []models.Grade) error
	ListByStudent(ctx context.Context, studentID string) ([]models.Grade, error)
	ReplaceForStudent(ctx context.Context, studentID string, grades []models.Grade) error
	DeleteByStudent(ctx context.Context, studentID string) error
}

type gradeRepository struct {
	db *gorm.DB
}

// NewGradeRepository constructs a repository backed by GORM.
func NewGradeRepository(db *gorm.DB) GradeRepository {
	return &gradeRepository{db: db}
}

func (r *gradeRepository) CreateBatch(ctx context.Context, grades []models.Grade) error {
	if len(grades) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(grades, 100).Error
}

// ListByStudent returns the full score history in a stable order: field,
// then level, then insertion order. Context building depends on this
// ordering staying deterministic.
func (r *gradeRepository) ListByStudent(ctx context.Context, studentID string) ([]models.Grade, error) {
	var grades []models.Grade
	if err := r.db.WithContext(ctx).
		Where("student_id = ?", studentID).
		Order("subject ASC, grade_level ASC, id ASC").
		Find(&grades).Error; err != nil {
		return nil, err
	}

	return grades, nil
}

func (r *gradeRepository) ReplaceForStudent(ctx context.Context, studentID string, grades []models.Grade) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("student_id = ?", studentID).Delete(&models.Grade{}).Error; err != nil {
			return err
		}
		if len(grades) == 0 {
			return nil
		}
		return tx.CreateInBatches(grades, 100).Error
	})
}

func (r *gradeRepository) DeleteByStudent(ctx context.Context, studentID string) error {
	return r.db.WithContext(ctx).Where("student_id = ?", studentID).Delete(&models.Grade{}).Error
}
