package models

import (
	"time"

	"gorm.io/datatypes"
)

// AssessmentAnswer is the persisted verdict for one framework question inside
// one assessment run.
type AssessmentAnswer struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	RunID            string    `gorm:"size:36;not null;index:idx_answers_run" json:"run_id"`
	StudentID        string    `gorm:"size:64;not null;index:idx_answers_student" json:"student_id"`
	QuestionID       uint      `gorm:"not null" json:"question_id"`
	FrameworkVersion string    `gorm:"size:64;not null" json:"framework_version"`
	CategoryCode     string    `gorm:"size:1;not null" json:"category_code"`
	Verdict          string    `gorm:"size:16;not null" json:"verdict"`
	Rationale        string    `gorm:"type:text" json:"rationale"`
	Confidence       float64   `gorm:"not null" json:"confidence"`
	Cached           bool      `gorm:"not null" json:"cached"`
	CreatedAt        time.Time `json:"created_at"`
	Student          Student   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}

// AssessmentResult is the persisted outcome of a completed assessment run:
// normalized category scores plus the synthesized recommendation. Only the
// latest run per student is kept; saving a new result replaces the old one.
type AssessmentResult struct {
	ID                 uint              `gorm:"primaryKey" json:"id"`
	RunID              string            `gorm:"size:36;not null;uniqueIndex:idx_results_run" json:"run_id"`
	StudentID          string            `gorm:"size:64;not null;index:idx_results_student" json:"student_id"`
	FrameworkVersion   string            `gorm:"size:64;not null" json:"framework_version"`
	ModelID            string            `gorm:"size:128;not null" json:"model_id"`
	ContextFingerprint string            `gorm:"size:64;not null" json:"context_fingerprint"`
	ProfileCode        string            `gorm:"size:3" json:"profile_code"`
	RankedPaths        datatypes.JSON    `json:"ranked_paths"`
	Summary            string            `gorm:"type:text" json:"summary"`
	OverallConfidence  float64           `json:"overall_confidence"`
	Scores             datatypes.JSON    `json:"scores"`
	FailedByCategory   datatypes.JSONMap `json:"failed_by_category"`
	CacheHits          int               `json:"cache_hits"`
	CacheMisses        int               `json:"cache_misses"`
	StartedAt          time.Time         `json:"started_at"`
	CompletedAt        time.Time         `json:"completed_at"`
	CreatedAt          time.Time         `json:"created_at"`
	Student            Student           `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}
