package domain

import "time"

// Draft is one version in a thread's draft chain. Versions are keyed by
// (thread, draft type, version); across the whole table at most one row
// may hold a given Graph draft message id, so editing moves the id onto
// the new version inside one transaction.
type Draft struct {
	ID                  string      `json:"id" gorm:"primaryKey"`
	ThreadID            string      `json:"thread_id" gorm:"uniqueIndex:idx_draft_chain_version;not null"`
	DraftType           DraftType   `json:"draft_type" gorm:"uniqueIndex:idx_draft_chain_version;not null"`
	Version             int         `json:"version" gorm:"uniqueIndex:idx_draft_chain_version;not null"`
	Status              DraftStatus `json:"status" gorm:"not null"`
	GraphDraftMessageID *string     `json:"graph_draft_message_id" gorm:"uniqueIndex"`
	Subject             string      `json:"subject"`
	BodyHTML            string      `json:"body_html" gorm:"type:text"`
	BodyText            string      `json:"body_text" gorm:"type:text"`
	ToJSON              JSON        `json:"to_json" gorm:"type:jsonb"`
	CcJSON              JSON        `json:"cc_json" gorm:"type:jsonb"`
	CreatedByUserID     *string     `json:"created_by_user_id"`
	LastEditedByUserID  *string     `json:"last_edited_by_user_id"`
	CreatedAt           time.Time   `json:"created_at"`
	UpdatedAt           time.Time   `json:"updated_at"`

	Thread *Thread `json:"thread,omitempty" gorm:"foreignKey:ThreadID"`
}
