package domain

import "time"

// Note is a human- or system-authored annotation on a thread. System
// notes (nil author) are written by the classification engine.
type Note struct {
	ID              string    `json:"id" gorm:"primaryKey"`
	ThreadID        string    `json:"thread_id" gorm:"index;not null"`
	CreatedByUserID *string   `json:"created_by_user_id"`
	Description     string    `json:"description" gorm:"type:text;not null"`
	CreatedAt       time.Time `json:"created_at"`
}
