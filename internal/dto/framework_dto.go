package dto

import "github.com/noah-isme/kompas-go-api/internal/models"

// FrameworkQuestionResponse serializes one framework question.
type FrameworkQuestionResponse struct {
	ID             uint    `json:"id"`
	Version        string  `json:"version"`
	CategoryCode   string  `json:"category_code"`
	CareerCategory string  `json:"career_category"`
	Question       string  `json:"question"`
	KeySubjects    string  `json:"key_subjects"`
	RequiredGrades string  `json:"required_grades"`
	Weight         float64 `json:"weight"`
	Description    string  `json:"description"`
}

// FrameworkImportResponse reports a completed versioned import.
type FrameworkImportResponse struct {
	Version   string `json:"version"`
	Questions int    `json:"questions"`
}

// FrameworkVersionsResponse lists the stored versions and the one runs use.
type FrameworkVersionsResponse struct {
	Versions []string `json:"versions"`
	Active   string   `json:"active"`
}

// NewFrameworkQuestionResponseSlice converts a stored question set.
func NewFrameworkQuestionResponseSlice(questions []models.FrameworkQuestion) []FrameworkQuestionResponse {
	out := make([]FrameworkQuestionResponse, 0, len(questions))
	for _, q := range questions {
		out = append(out, FrameworkQuestionResponse{
			ID:             q.ID,
			Version:        q.Version,
			CategoryCode:   q.CategoryCode,
			CareerCategory: q.CareerCategory,
			Question:       q.Question,
			KeySubjects:    q.KeySubjects,
			RequiredGrades: q.RequiredGrades,
			Weight:         q.Weight,
			Description:    q.Description,
		})
	}
	return out
}
