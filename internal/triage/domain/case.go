package domain

import "time"

// Case groups one or more threads for human review. It is auto-created
// on a thread's first message and enriched later when extraction finds
// a patient name; the pipeline state machine never gates on it.
type Case struct {
	ID          string    `json:"id" gorm:"primaryKey"`
	Title       string    `json:"title" gorm:"not null"`
	Description string    `json:"description" gorm:"type:text"`
	Status      string    `json:"status" gorm:"not null"`
	Priority    string    `json:"priority" gorm:"not null"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

const (
	CaseStatusOpen      = "OPEN"
	CasePriorityMedium  = "MEDIUM"
	CaseUntitledDefault = "Untitled Case"
)
