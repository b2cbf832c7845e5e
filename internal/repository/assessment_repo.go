package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/kompas-go-api/internal/models"
)

// AssessmentRepository handles persistence for completed assessment runs.
type AssessmentRepository interface {
	SaveRun(ctx context.Context, result *models.AssessmentResult, answers []models.AssessmentAnswer) error
	LatestByStudent(ctx context.Context, studentID string) (models.AssessmentResult, error)
	AnswersByRun(ctx context.Context, runID string) ([]models.AssessmentAnswer, error)
}

type assessmentRepository struct {
	db *gorm.DB
}

// NewAssessmentRepository constructs a repository backed by GORM.
func NewAssessmentRepository(db *gorm.DB) AssessmentRepository {
	return &assessmentRepository{db: db}
}

// SaveRun stores a completed run, replacing the student's previous one.
// Results and answers land in the same transaction so a half-saved run can
// never be read back.
func (r *assessmentRepository) SaveRun(ctx context.Context, result *models.AssessmentResult, answers []models.AssessmentAnswer) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("student_id = ?", result.StudentID).Delete(&models.AssessmentAnswer{}).Error; err != nil {
			return err
		}
		if err := tx.Where("student_id = ?", result.StudentID).Delete(&models.AssessmentResult{}).Error; err != nil {
			return err
		}
		if err := tx.Create(result).Error; err != nil {
			return err
		}
		if len(answers) == 0 {
			return nil
		}
		return tx.CreateInBatches(answers, 100).Error
	})
}

func (r *assessmentRepository) LatestByStudent(ctx context.Context, studentID string) (models.AssessmentResult, error) {
	var result models.AssessmentResult
	if err := r.db.WithContext(ctx).
		Where("student_id = ?", studentID).
		Order("completed_at DESC").
		First(&result).Error; err != nil {
		return models.AssessmentResult{}, err
	}

	return result, nil
}

func (r *assessmentRepository) AnswersByRun(ctx context.Context, runID string) ([]models.AssessmentAnswer, error) {
	var answers []models.AssessmentAnswer
	if err := r.db.WithContext(ctx).
		Where("run_id = ?", runID).
		Order("question_id ASC").
		Find(&answers).Error; err != nil {
		return nil, err
	}

	return answers, nil
}
