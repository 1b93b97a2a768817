package repository

import (
	"time"

	triagedomain "tdp-backend/internal/triage/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// attachmentRepository implements AttachmentRepository interface
type attachmentRepository struct {
	db *gorm.DB
}

// NewAttachmentRepository creates a new instance of attachmentRepository
func NewAttachmentRepository(db *gorm.DB) AttachmentRepository {
	return &attachmentRepository{
		db: db,
	}
}

// Upsert finds or creates an attachment stub by (message, graph
// attachment id). Existing rows keep their extraction state.
func (r *attachmentRepository) Upsert(params UpsertAttachmentParams) (*triagedomain.Attachment, error) {
	var attachment triagedomain.Attachment
	err := r.db.Where("message_id = ? AND graph_attachment_id = ?", params.MessageID, params.GraphAttachmentID).First(&attachment).Error

	now := time.Now()
	if err == gorm.ErrRecordNotFound {
		attachment = triagedomain.Attachment{
			ID:                uuid.New().String(),
			MessageID:         params.MessageID,
			GraphAttachmentID: params.GraphAttachmentID,
			Filename:          params.Filename,
			Status:            triagedomain.AttachmentStatusPending,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		if params.MimeType != "" {
			attachment.MimeType = &params.MimeType
		}
		if params.SizeBytes > 0 {
			attachment.SizeBytes = &params.SizeBytes
		}
		if err := r.db.Create(&attachment).Error; err != nil {
			return nil, err
		}
		return &attachment, nil
	} else if err != nil {
		return nil, err
	}

	return &attachment, nil
}

func (r *attachmentRepository) ListPendingIDs(limit int) ([]string, error) {
	var ids []string
	err := r.db.Model(&triagedomain.Attachment{}).
		Where("status = ?", triagedomain.AttachmentStatusPending).
		Order("created_at asc").
		Limit(limit).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *attachmentRepository) FindWithContext(id string) (*triagedomain.Attachment, error) {
	var attachment triagedomain.Attachment
	err := r.db.Preload("Message").Where("id = ?", id).First(&attachment).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &attachment, nil
}

func (r *attachmentRepository) SetContentHash(id, hash string) error {
	return r.db.Model(&triagedomain.Attachment{}).Where("id = ?", id).Updates(map[string]interface{}{
		"content_hash": &hash,
		"updated_at":   time.Now(),
	}).Error
}

// MarkExtracted stores the extraction result and clears any previous
// failure message
func (r *attachmentRepository) MarkExtracted(id string, extracted triagedomain.JSON) error {
	return r.db.Model(&triagedomain.Attachment{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":         triagedomain.AttachmentStatusExtracted,
		"extracted_json": extracted,
		"last_error":     nil,
		"updated_at":     time.Now(),
	}).Error
}

// MarkFailed stores the provider error verbatim for operator debugging
func (r *attachmentRepository) MarkFailed(id, message string) error {
	return r.db.Model(&triagedomain.Attachment{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":     triagedomain.AttachmentStatusFailed,
		"last_error": &message,
		"updated_at": time.Now(),
	}).Error
}

func (r *attachmentRepository) ListExtractedForThread(threadID string, limit int) ([]triagedomain.Attachment, error) {
	var attachments []triagedomain.Attachment
	err := r.db.Preload("Message").
		Joins("JOIN email_messages m ON m.id = attachments.message_id").
		Where("m.thread_id = ?", threadID).
		Where("attachments.status = ?", triagedomain.AttachmentStatusExtracted).
		Order("attachments.updated_at desc").
		Limit(limit).
		Find(&attachments).Error
	if err != nil {
		return nil, err
	}
	return attachments, nil
}

func (r *attachmentRepository) ListExtractedForMessage(messageID string) ([]triagedomain.Attachment, error) {
	var attachments []triagedomain.Attachment
	err := r.db.Where("message_id = ? AND status = ?", messageID, triagedomain.AttachmentStatusExtracted).
		Order("created_at asc").
		Find(&attachments).Error
	if err != nil {
		return nil, err
	}
	return attachments, nil
}
