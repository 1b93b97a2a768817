package domain

import "time"

// Escalation records one internal notification for a thread+department
// pair. The unique index is the idempotency guard: a second trigger for
// the same pair is a no-op.
type Escalation struct {
	ID         string     `json:"id" gorm:"primaryKey"`
	ThreadID   string     `json:"thread_id" gorm:"uniqueIndex:idx_escalation_thread_department;not null"`
	Department Department `json:"department" gorm:"uniqueIndex:idx_escalation_thread_department;not null"`
	Reason     string     `json:"reason" gorm:"type:text;not null"`
	DraftID    *string    `json:"draft_id"`
	CreatedAt  time.Time  `json:"created_at"`
}
