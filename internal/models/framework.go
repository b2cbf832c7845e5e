package models

import "time"

// FrameworkQuestion is one Holland-code question inside a versioned question
// framework. Questions in the same version form the set evaluated by a run;
// mixing versions inside a run is never allowed.
type FrameworkQuestion struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	Version        string    `gorm:"size:64;not null;index:idx_framework_version" json:"version"`
	CategoryCode   string    `gorm:"size:1;not null" json:"category_code"`
	CareerCategory string    `gorm:"size:128;not null" json:"career_category"`
	Question       string    `gorm:"type:text;not null" json:"question"`
	KeySubjects    string    `gorm:"size:255" json:"key_subjects"`
	RequiredGrades string    `gorm:"size:64" json:"required_grades"`
	Weight         float64   `gorm:"not null;default:1" json:"weight"`
	Description    string    `gorm:"type:text" json:"description"`
	CreatedAt      time.Time `json:"created_at"`
}
