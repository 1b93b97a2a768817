package domain

import "time"

// Attachment tracks one mailbox attachment through extraction. The
// content hash is the dedup key: an EXTRACTED attachment with an
// unchanged hash is never re-extracted.
type Attachment struct {
	ID                string           `json:"id" gorm:"primaryKey"`
	MessageID         string           `json:"message_id" gorm:"uniqueIndex:idx_attachment_message_graph;not null"`
	GraphAttachmentID string           `json:"graph_attachment_id" gorm:"uniqueIndex:idx_attachment_message_graph;not null"`
	Filename          string           `json:"filename" gorm:"not null"`
	MimeType          *string          `json:"mime_type"`
	SizeBytes         *int64           `json:"size_bytes"`
	Status            AttachmentStatus `json:"status" gorm:"index;not null"`
	ContentHash       *string          `json:"content_hash"`
	ExtractedJSON     JSON             `json:"extracted_json" gorm:"type:jsonb"`
	LastError         *string          `json:"last_error" gorm:"type:text"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`

	Message *EmailMessage `json:"message,omitempty" gorm:"foreignKey:MessageID"`
}
