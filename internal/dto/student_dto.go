package dto

import (
	"time"

	"github.com/noah-isme/kompas-go-api/internal/models"
)

// PaginationMeta captures pagination metadata for list responses.
type PaginationMeta struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalItems int64 `json:"total_items"`
	TotalPages int   `json:"total_pages"`
}

// CreateStudentRequest registers a student under their school-issued ID.
type CreateStudentRequest struct {
	ID     string `json:"id" validate:"required,min=1,max=64"`
	Name   string `json:"name" validate:"required,min=1,max=255"`
	Age    int    `json:"age" validate:"omitempty,gte=10,lte=25"`
	School string `json:"school" validate:"omitempty,max=255"`
	Notes  string `json:"notes" validate:"omitempty,max=4000"`
}

// UpdateStudentRequest captures partial update payloads for students.
type UpdateStudentRequest struct {
	Name   *string `json:"name" validate:"omitempty,min=1,max=255"`
	Age    *int    `json:"age" validate:"omitempty,gte=10,lte=25"`
	School *string `json:"school" validate:"omitempty,max=255"`
	Notes  *string `json:"notes" validate:"omitempty,max=4000"`
}

// StudentListRequest defines filters for listing students.
type StudentListRequest struct {
	Page     int
	PageSize int
	Search   string
}

// GradeEntryRequest is one historical score in a bulk grade submission.
type GradeEntryRequest struct {
	Subject    string  `json:"subject" validate:"required,min=1,max=128"`
	GradeLevel int     `json:"grade_level" validate:"required,gte=1,lte=11"`
	Score      float64 `json:"score" validate:"gte=0,lte=10"`
	Semester   *int    `json:"semester" validate:"omitempty,gte=1,lte=2"`
}

// AddGradesRequest appends a batch of historical scores to a student.
type AddGradesRequest struct {
	Grades []GradeEntryRequest `json:"grades" validate:"required,min=1,max=200,dive"`
}

// StudentResponse serializes a student profile.
type StudentResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Age       int       `json:"age"`
	School    string    `json:"school"`
	Notes     string    `json:"notes"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// GradeResponse serializes one historical score.
type GradeResponse struct {
	ID         uint    `json:"id"`
	Subject    string  `json:"subject"`
	GradeLevel int     `json:"grade_level"`
	Score      float64 `json:"score"`
	Semester   *int    `json:"semester,omitempty"`
}

// StudentDetailResponse is a profile plus its score history and forecasts.
type StudentDetailResponse struct {
	StudentResponse
	Grades    []GradeResponse    `json:"grades"`
	Forecasts []ForecastResponse `json:"forecasts"`
}

// StudentListResponse wraps a paginated student listing.
type StudentListResponse struct {
	Items      []StudentResponse `json:"items"`
	Pagination PaginationMeta    `json:"pagination"`
}

// RosterImportResponse reports the outcome of a CSV roster upload.
type RosterImportResponse struct {
	StudentsCreated int `json:"students_created"`
	GradesCreated   int `json:"grades_created"`
	RowsSkipped     int `json:"rows_skipped"`
}

// NewStudentResponse converts a student model into a DTO.
func NewStudentResponse(student models.Student) StudentResponse {
	return StudentResponse{
		ID:        student.ID,
		Name:      student.Name,
		Age:       student.Age,
		School:    student.School,
		Notes:     student.Notes,
		CreatedAt: student.CreatedAt,
		UpdatedAt: student.UpdatedAt,
	}
}

// NewStudentResponseSlice converts a page of students.
func NewStudentResponseSlice(students []models.Student) []StudentResponse {
	out := make([]StudentResponse, 0, len(students))
	for _, s := range students {
		out = append(out, NewStudentResponse(s))
	}
	return out
}

// NewGradeResponseSlice converts a student's score history.
func NewGradeResponseSlice(grades []models.Grade) []GradeResponse {
	out := make([]GradeResponse, 0, len(grades))
	for _, g := range grades {
		out = append(out, GradeResponse{
			ID:         g.ID,
			Subject:    g.Subject,
			GradeLevel: g.GradeLevel,
			Score:      g.Score,
			Semester:   g.Semester,
		})
	}
	return out
}
