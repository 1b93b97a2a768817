package domain

import "time"

// EmailMessage is an immutable copy of one mailbox message, keyed by the
// provider's message id.
type EmailMessage struct {
	ID                string     `json:"id" gorm:"primaryKey"`
	ThreadID          string     `json:"thread_id" gorm:"index;not null"`
	GraphMessageID    string     `json:"graph_message_id" gorm:"uniqueIndex;not null"`
	InternetMessageID *string    `json:"internet_message_id"`
	FromJSON          JSON       `json:"from_json" gorm:"type:jsonb"`
	ToJSON            JSON       `json:"to_json" gorm:"type:jsonb"`
	CcJSON            JSON       `json:"cc_json" gorm:"type:jsonb"`
	Subject           string     `json:"subject"`
	BodyPreview       string     `json:"body_preview" gorm:"type:text"`
	BodyHTML          string     `json:"body_html" gorm:"type:text"`
	BodyText          string     `json:"body_text" gorm:"type:text"`
	ReceivedAt        *time.Time `json:"received_at" gorm:"index"`
	SentAt            *time.Time `json:"sent_at"`
	HasAttachments    bool       `json:"has_attachments"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`

	Attachments []Attachment `json:"attachments,omitempty" gorm:"foreignKey:MessageID"`
}
