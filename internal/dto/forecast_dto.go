package dto

import (
	"time"

	"github.com/noah-isme/kompas-go-api/internal/models"
)

// ForecastResponse serializes a projected grade-12 score.
type ForecastResponse struct {
	Subject         string    `json:"subject"`
	PredictedScore  float64   `json:"predicted_score"`
	ConfidenceLower float64   `json:"confidence_lower"`
	ConfidenceUpper float64   `json:"confidence_upper"`
	ModelVersion    string    `json:"model_version"`
	GeneratedAt     time.Time `json:"generated_at"`
}

// NewForecastResponseSlice converts stored forecasts.
func NewForecastResponseSlice(forecasts []models.Forecast) []ForecastResponse {
	out := make([]ForecastResponse, 0, len(forecasts))
	for _, f := range forecasts {
		out = append(out, ForecastResponse{
			Subject:         f.Subject,
			PredictedScore:  f.PredictedScore,
			ConfidenceLower: f.ConfidenceLower,
			ConfidenceUpper: f.ConfidenceUpper,
			ModelVersion:    f.ModelVersion,
			GeneratedAt:     f.CreatedAt,
		})
	}
	return out
}
