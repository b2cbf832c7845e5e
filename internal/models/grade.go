package models

import "time"

// Grade is a single historical score for one subject at one grade level.
// Scores use the 0-10 national scale.
type Grade struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	StudentID  string    `gorm:"size:64;not null;index:idx_grades_student" json:"student_id"`
	Subject    string    `gorm:"size:128;not null" json:"subject"`
	GradeLevel int       `gorm:"not null" json:"grade_level"`
	Score      float64   `gorm:"not null" json:"score"`
	Semester   *int      `json:"semester,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	Student    Student   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}

const (
	// GradeLevelMin is the earliest grade level tracked in score histories.
	GradeLevelMin = 1
	// GradeLevelMax is the last grade level with recorded scores; level 12 is
	// forecast, never recorded.
	GradeLevelMax = 11
	// GradeScoreMax is the top of the 0-10 scoring scale.
	GradeScoreMax = 10.0
)

// ValidLevel reports whether the grade sits inside the recordable level range.
func (g Grade) ValidLevel() bool {
	return g.GradeLevel >= GradeLevelMin && g.GradeLevel <= GradeLevelMax
}
