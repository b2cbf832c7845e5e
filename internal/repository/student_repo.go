package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/kompas-go-api/internal/models"
)

// StudentRepository provides access to student records.
type StudentRepository interface {
	Create(ctx context.Context, student *models.Student) error
	Upsert(ctx context.Context, student *models.Student) error
	GetByID(ctx context.Context, id string) (models.Student, error)
	List(ctx context.Context, search string, limit, offset int) ([]models.Student, int64, error)
	Update(ctx context.Context, student *models.Student) error
	Delete(ctx context.Context, id string) error
}

type studentRepository struct {
	db *gorm.DB
}

// NewStudentRepository constructs a student repository.
func NewStudentRepository(db *gorm.DB) StudentRepository {
	return &studentRepository{db: db}
}

func (r *studentRepository) Create(ctx context.Context, student *models.Student) error {
	return r.db.WithContext(ctx).Create(student).Error
}

// Upsert inserts the student or refreshes its profile fields. Roster imports
// re-run safely because of this.
func (r *studentRepository) Upsert(ctx context.Context, student *models.Student) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "age", "school", "notes", "updated_at"}),
	}).Create(student).Error
}

func (r *studentRepository) GetByID(ctx context.Context, id string) (models.Student, error) {
	var student models.Student
	if err := r.db.WithContext(ctx).First(&student, "id = ?", id).Error; err != nil {
		return models.Student{}, err
	}

	return student, nil
}

func (r *studentRepository) List(ctx context.Context, search string, limit, offset int) ([]models.Student, int64, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	query := r.db.WithContext(ctx).Model(&models.Student{})
	if search != "" {
		pattern := "%" + search + "%"
		query = query.Where("name LIKE ? OR school LIKE ?", pattern, pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var students []models.Student
	if err := query.Order("id ASC").Offset(offset).Limit(limit).Find(&students).Error; err != nil {
		return nil, 0, err
	}

	return students, total, nil
}

func (r *studentRepository) Update(ctx context.Context, student *models.Student) error {
	result := r.db.WithContext(ctx).Model(&models.Student{}).Where("id = ?", student.ID).
		Updates(map[string]interface{}{
			"name":   student.Name,
			"age":    student.Age,
			"school": student.School,
			"notes":  student.Notes,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *studentRepository) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Delete(&models.Student{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
