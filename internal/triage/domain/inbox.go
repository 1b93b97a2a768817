package domain

import "time"

// Inbox is a shared mailbox the pipeline watches. Escalation inboxes are
// internal-only notification targets and are never synced.
type Inbox struct {
	ID           string    `json:"id" gorm:"primaryKey"`
	Key          string    `json:"key" gorm:"not null"`
	EmailAddress string    `json:"email_address" gorm:"uniqueIndex:idx_inbox_address_escalation;not null"`
	IsEscalation bool      `json:"is_escalation" gorm:"uniqueIndex:idx_inbox_address_escalation"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// SyncCursor holds the resumable delta token for one inbox. Only the
// final token of a fully paged sync run is ever persisted.
type SyncCursor struct {
	ID         string     `json:"id" gorm:"primaryKey"`
	InboxID    string     `json:"inbox_id" gorm:"uniqueIndex;not null"`
	DeltaLink  string     `json:"delta_link" gorm:"type:text"`
	LastSyncAt *time.Time `json:"last_sync_at"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}
