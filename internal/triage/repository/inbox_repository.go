package repository

import (
	"time"

	triagedomain "tdp-backend/internal/triage/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// inboxRepository implements InboxRepository interface
type inboxRepository struct {
	db *gorm.DB
}

// NewInboxRepository creates a new instance of inboxRepository
func NewInboxRepository(db *gorm.DB) InboxRepository {
	return &inboxRepository{
		db: db,
	}
}

// Upsert finds or creates an inbox by (email address, escalation flag)
func (r *inboxRepository) Upsert(inbox *triagedomain.Inbox) (*triagedomain.Inbox, error) {
	var existing triagedomain.Inbox
	err := r.db.Where("email_address = ? AND is_escalation = ?", inbox.EmailAddress, inbox.IsEscalation).First(&existing).Error

	now := time.Now()
	if err == gorm.ErrRecordNotFound {
		inbox.ID = uuid.New().String()
		inbox.CreatedAt = now
		inbox.UpdatedAt = now
		if err := r.db.Create(inbox).Error; err != nil {
			return nil, err
		}
		return inbox, nil
	} else if err != nil {
		return nil, err
	}

	existing.Key = inbox.Key
	existing.UpdatedAt = now
	if err := r.db.Save(&existing).Error; err != nil {
		return nil, err
	}
	return &existing, nil
}

// ListOperational returns the synced (non-escalation) inboxes
func (r *inboxRepository) ListOperational() ([]triagedomain.Inbox, error) {
	var inboxes []triagedomain.Inbox
	if err := r.db.Where("is_escalation = ?", false).Order("email_address asc").Find(&inboxes).Error; err != nil {
		return nil, err
	}
	return inboxes, nil
}

func (r *inboxRepository) FindByID(id string) (*triagedomain.Inbox, error) {
	var inbox triagedomain.Inbox
	err := r.db.Where("id = ?", id).First(&inbox).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &inbox, nil
}

func (r *inboxRepository) GetCursor(inboxID string) (*triagedomain.SyncCursor, error) {
	var cursor triagedomain.SyncCursor
	err := r.db.Where("inbox_id = ?", inboxID).First(&cursor).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &cursor, nil
}

// UpsertCursor stores the final delta link of a completed sync run
func (r *inboxRepository) UpsertCursor(inboxID, deltaLink string) error {
	var cursor triagedomain.SyncCursor
	err := r.db.Where("inbox_id = ?", inboxID).First(&cursor).Error

	now := time.Now()
	if err == gorm.ErrRecordNotFound {
		cursor = triagedomain.SyncCursor{
			ID:         uuid.New().String(),
			InboxID:    inboxID,
			DeltaLink:  deltaLink,
			LastSyncAt: &now,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		return r.db.Create(&cursor).Error
	} else if err != nil {
		return err
	}

	cursor.DeltaLink = deltaLink
	cursor.LastSyncAt = &now
	cursor.UpdatedAt = now
	return r.db.Save(&cursor).Error
}
