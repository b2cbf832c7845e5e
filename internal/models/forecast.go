package models

import "time"

// ForecastModelLinearV1 identifies the least-squares trend model used to
// project grade-12 scores.
const ForecastModelLinearV1 = "linear_regression_v1"

// Forecast is a projected grade-12 score for one subject, with a confidence
// band one standard deviation wide around the fitted trend.
type Forecast struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	StudentID       string    `gorm:"size:64;not null;index:idx_forecasts_student" json:"student_id"`
	Subject         string    `gorm:"size:128;not null" json:"subject"`
	PredictedScore  float64   `gorm:"not null" json:"predicted_score"`
	ConfidenceLower float64   `json:"confidence_lower"`
	ConfidenceUpper float64   `json:"confidence_upper"`
	ModelVersion    string    `gorm:"size:64;not null" json:"model_version"`
	CreatedAt       time.Time `json:"created_at"`
	Student         Student   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}
