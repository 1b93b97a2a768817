package repository

import (
	"encoding/json"
	"time"

	triagedomain "tdp-backend/internal/triage/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// auditLogRepository implements AuditLogRepository interface
type auditLogRepository struct {
	db *gorm.DB
}

// NewAuditLogRepository creates a new instance of auditLogRepository
func NewAuditLogRepository(db *gorm.DB) AuditLogRepository {
	return &auditLogRepository{
		db: db,
	}
}

// Append writes one audit entry. The table is append-only; there are no
// update or delete methods on purpose.
func (r *auditLogRepository) Append(action triagedomain.AuditAction, ctx AuditContext) error {
	entry := triagedomain.AuditLog{
		ID:        uuid.New().String(),
		Action:    action,
		CreatedAt: time.Now(),
	}
	if ctx.ThreadID != "" {
		entry.ThreadID = &ctx.ThreadID
	}
	if ctx.MessageID != "" {
		entry.MessageID = &ctx.MessageID
	}
	if ctx.DraftID != "" {
		entry.DraftID = &ctx.DraftID
	}
	if ctx.ActorUserID != "" {
		entry.ActorUserID = &ctx.ActorUserID
	}
	if ctx.Payload != nil {
		data, err := json.Marshal(ctx.Payload)
		if err != nil {
			return err
		}
		entry.Payload = triagedomain.JSON(data)
	}
	return r.db.Create(&entry).Error
}

func (r *auditLogRepository) ListByThread(threadID string, limit int) ([]triagedomain.AuditLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var entries []triagedomain.AuditLog
	err := r.db.Where("thread_id = ?", threadID).Order("created_at desc").Limit(limit).Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}
