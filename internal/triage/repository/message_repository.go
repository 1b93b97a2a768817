package repository

import (
	"time"

	triagedomain "tdp-backend/internal/triage/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// messageRepository implements MessageRepository interface
type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository creates a new instance of messageRepository
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{
		db: db,
	}
}

// Upsert finds or creates a message by its Graph message id. Re-syncing
// the same message refreshes mutable fields but never duplicates it.
func (r *messageRepository) Upsert(params UpsertMessageParams) (*triagedomain.EmailMessage, error) {
	var message triagedomain.EmailMessage
	err := r.db.Where("graph_message_id = ?", params.GraphMessageID).First(&message).Error

	now := time.Now()
	if err == gorm.ErrRecordNotFound {
		message = triagedomain.EmailMessage{
			ID:             uuid.New().String(),
			ThreadID:       params.ThreadID,
			GraphMessageID: params.GraphMessageID,
			FromJSON:       params.FromJSON,
			ToJSON:         params.ToJSON,
			CcJSON:         params.CcJSON,
			Subject:        params.Subject,
			BodyPreview:    params.BodyPreview,
			BodyHTML:       params.BodyHTML,
			BodyText:       params.BodyText,
			ReceivedAt:     params.ReceivedAt,
			SentAt:         params.SentAt,
			HasAttachments: params.HasAttachments,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if params.InternetMessageID != "" {
			message.InternetMessageID = &params.InternetMessageID
		}
		if err := r.db.Create(&message).Error; err != nil {
			return nil, err
		}
		return &message, nil
	} else if err != nil {
		return nil, err
	}

	message.Subject = params.Subject
	message.BodyPreview = params.BodyPreview
	message.BodyHTML = params.BodyHTML
	message.BodyText = params.BodyText
	message.HasAttachments = params.HasAttachments
	message.UpdatedAt = now
	if err := r.db.Save(&message).Error; err != nil {
		return nil, err
	}
	return &message, nil
}

func (r *messageRepository) LatestForThread(threadID string) (*triagedomain.EmailMessage, error) {
	var message triagedomain.EmailMessage
	err := r.db.Where("thread_id = ?", threadID).Order("received_at desc").First(&message).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &message, nil
}
