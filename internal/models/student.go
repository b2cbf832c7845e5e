package models

import "time"

// Student represents a learner whose academic record feeds the career engine.
// IDs come from the school's information system, so they are caller-supplied
// strings rather than autoincrement integers.
type Student struct {
	ID        string    `gorm:"primaryKey;size:64" json:"id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	Age       int       `json:"age"`
	School    string    `gorm:"size:255" json:"school"`
	Notes     string    `gorm:"type:text" json:"notes"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
