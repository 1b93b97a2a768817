package domain

import "time"

// Thread is one email conversation, the unit of classification and
// drafting. A thread is unique per (inbox, Graph conversation id).
type Thread struct {
	ID                  string           `json:"id" gorm:"primaryKey"`
	InboxID             string           `json:"inbox_id" gorm:"uniqueIndex:idx_thread_inbox_conversation;not null"`
	GraphConversationID string           `json:"graph_conversation_id" gorm:"uniqueIndex:idx_thread_inbox_conversation;not null"`
	Subject             string           `json:"subject"`
	Department          Department       `json:"department" gorm:"not null"`
	Stage               Stage            `json:"stage" gorm:"not null"`
	ProcessingStatus    ProcessingStatus `json:"processing_status" gorm:"index;not null"`
	NeedsReview         bool             `json:"needs_review"`
	ResponseRequired    *bool            `json:"response_required"`
	DraftTypeSuggested  *string          `json:"draft_type_suggested"`
	OwnerUserID         *string          `json:"owner_user_id"`
	CaseID              *string          `json:"case_id"`
	Metadata            JSON             `json:"metadata" gorm:"type:jsonb"`
	SLADueAt            *time.Time       `json:"sla_due_at"`
	SLABreachedAt       *time.Time       `json:"sla_breached_at"`
	LastMessageAt       *time.Time       `json:"last_message_at"`
	CreatedAt           time.Time        `json:"created_at"`
	UpdatedAt           time.Time        `json:"updated_at"`

	Inbox    *Inbox         `json:"inbox,omitempty" gorm:"foreignKey:InboxID"`
	Messages []EmailMessage `json:"messages,omitempty" gorm:"foreignKey:ThreadID"`
}
