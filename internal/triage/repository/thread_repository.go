package repository

import (
	"time"

	triagedomain "tdp-backend/internal/triage/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// threadRepository implements ThreadRepository interface
type threadRepository struct {
	db *gorm.DB
}

// NewThreadRepository creates a new instance of threadRepository
func NewThreadRepository(db *gorm.DB) ThreadRepository {
	return &threadRepository{
		db: db,
	}
}

// Upsert finds or creates a thread by (inbox, conversation id). New
// threads start in STAFFING / OPEN_PENDING with processing status NEW.
func (r *threadRepository) Upsert(params UpsertThreadParams) (*triagedomain.Thread, error) {
	var thread triagedomain.Thread
	err := r.db.Where("inbox_id = ? AND graph_conversation_id = ?", params.InboxID, params.GraphConversationID).First(&thread).Error

	now := time.Now()
	if err == gorm.ErrRecordNotFound {
		thread = triagedomain.Thread{
			ID:                  uuid.New().String(),
			InboxID:             params.InboxID,
			GraphConversationID: params.GraphConversationID,
			Subject:             params.Subject,
			Department:          triagedomain.DepartmentStaffing,
			Stage:               triagedomain.StageOpenPending,
			ProcessingStatus:    triagedomain.ProcessingStatusNew,
			LastMessageAt:       params.LastMessageAt,
			CreatedAt:           now,
			UpdatedAt:           now,
		}
		if err := r.db.Create(&thread).Error; err != nil {
			return nil, err
		}
		return &thread, nil
	} else if err != nil {
		return nil, err
	}

	if params.LastMessageAt != nil && (thread.LastMessageAt == nil || params.LastMessageAt.After(*thread.LastMessageAt)) {
		thread.LastMessageAt = params.LastMessageAt
	}
	if thread.Subject == "" && params.Subject != "" {
		thread.Subject = params.Subject
	}
	thread.UpdatedAt = now
	if err := r.db.Save(&thread).Error; err != nil {
		return nil, err
	}
	return &thread, nil
}

func (r *threadRepository) FindByID(id string) (*triagedomain.Thread, error) {
	var thread triagedomain.Thread
	err := r.db.Preload("Inbox").Where("id = ?", id).First(&thread).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &thread, nil
}

// FindForClassification loads the thread with its inbox and the five most
// recent messages including attachments
func (r *threadRepository) FindForClassification(id string) (*triagedomain.Thread, error) {
	var thread triagedomain.Thread
	err := r.db.Preload("Inbox").
		Preload("Messages", func(db *gorm.DB) *gorm.DB {
			return db.Order("received_at desc").Limit(5)
		}).
		Preload("Messages.Attachments").
		Where("id = ?", id).First(&thread).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &thread, nil
}

func (r *threadRepository) FindWithLatestMessage(id string) (*triagedomain.Thread, error) {
	var thread triagedomain.Thread
	err := r.db.Preload("Inbox").
		Preload("Messages", func(db *gorm.DB) *gorm.DB {
			return db.Order("received_at desc").Limit(1)
		}).
		Where("id = ?", id).First(&thread).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &thread, nil
}

func (r *threadRepository) List(filter ThreadFilter) ([]triagedomain.Thread, error) {
	query := r.db.Preload("Inbox").Order("last_message_at desc")
	if filter.ProcessingStatus != "" {
		query = query.Where("processing_status = ?", filter.ProcessingStatus)
	}
	if filter.Department != "" {
		query = query.Where("department = ?", filter.Department)
	}
	if filter.NeedsReview != nil {
		query = query.Where("needs_review = ?", *filter.NeedsReview)
	}
	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var threads []triagedomain.Thread
	if err := query.Limit(limit).Find(&threads).Error; err != nil {
		return nil, err
	}
	return threads, nil
}

// ListClassifiable returns NEW threads with no PENDING attachments. The
// gate keeps classification from running before extraction settles.
func (r *threadRepository) ListClassifiable(limit int) ([]string, error) {
	var ids []string
	err := r.db.Model(&triagedomain.Thread{}).
		Where("processing_status = ?", triagedomain.ProcessingStatusNew).
		Where(`NOT EXISTS (
			SELECT 1 FROM attachments a
			JOIN email_messages m ON m.id = a.message_id
			WHERE m.thread_id = threads.id AND a.status = ?
		)`, triagedomain.AttachmentStatusPending).
		Order("updated_at asc").
		Limit(limit).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// ListDraftable returns CLASSIFIED threads not flagged for review that
// have no drafts yet
func (r *threadRepository) ListDraftable(limit int) ([]string, error) {
	var ids []string
	err := r.db.Model(&triagedomain.Thread{}).
		Where("processing_status = ?", triagedomain.ProcessingStatusClassified).
		Where("needs_review = ?", false).
		Where("NOT EXISTS (SELECT 1 FROM drafts d WHERE d.thread_id = threads.id)").
		Order("updated_at asc").
		Limit(limit).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *threadRepository) Save(thread *triagedomain.Thread) error {
	thread.UpdatedAt = time.Now()
	return r.db.Save(thread).Error
}

// SaveWithAudits persists the thread together with the audit entries
// recording the change in one transaction
func (r *threadRepository) SaveWithAudits(thread *triagedomain.Thread, audits []triagedomain.AuditLog) error {
	thread.UpdatedAt = time.Now()
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(thread).Error; err != nil {
			return err
		}
		for i := range audits {
			if audits[i].ID == "" {
				audits[i].ID = uuid.New().String()
			}
			if audits[i].CreatedAt.IsZero() {
				audits[i].CreatedAt = time.Now()
			}
			if err := tx.Create(&audits[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *threadRepository) MarkClassified(threadID string, dept triagedomain.Department, stage triagedomain.Stage, needsReview bool, slaDueAt *time.Time) error {
	return r.db.Model(&triagedomain.Thread{}).Where("id = ?", threadID).Updates(map[string]interface{}{
		"department":        dept,
		"stage":             stage,
		"processing_status": triagedomain.ProcessingStatusClassified,
		"needs_review":      needsReview,
		"sla_due_at":        slaDueAt,
		"updated_at":        time.Now(),
	}).Error
}

func (r *threadRepository) MarkDrafted(threadID string, draftTypeSuggested triagedomain.DraftType, responseRequired bool) error {
	suggested := string(draftTypeSuggested)
	return r.db.Model(&triagedomain.Thread{}).Where("id = ?", threadID).Updates(map[string]interface{}{
		"processing_status":    triagedomain.ProcessingStatusDrafted,
		"draft_type_suggested": &suggested,
		"response_required":    &responseRequired,
		"updated_at":           time.Now(),
	}).Error
}

func (r *threadRepository) SetProcessingStatus(threadID string, status triagedomain.ProcessingStatus) error {
	return r.db.Model(&triagedomain.Thread{}).Where("id = ?", threadID).Updates(map[string]interface{}{
		"processing_status": status,
		"updated_at":        time.Now(),
	}).Error
}

func (r *threadRepository) SetNeedsReview(threadID string, needsReview bool) error {
	return r.db.Model(&triagedomain.Thread{}).Where("id = ?", threadID).Updates(map[string]interface{}{
		"needs_review": needsReview,
		"updated_at":   time.Now(),
	}).Error
}

func (r *threadRepository) AssignCase(threadID, caseID string) error {
	return r.db.Model(&triagedomain.Thread{}).Where("id = ?", threadID).Updates(map[string]interface{}{
		"case_id":    &caseID,
		"updated_at": time.Now(),
	}).Error
}

// ChangeStageAndOwner updates stage and ownership together with their
// audit entries in one transaction
func (r *threadRepository) ChangeStageAndOwner(threadID string, stage triagedomain.Stage, ownerUserID string, audits []triagedomain.AuditLog) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{
			"stage":         stage,
			"owner_user_id": &ownerUserID,
			"updated_at":    time.Now(),
		}
		if err := tx.Model(&triagedomain.Thread{}).Where("id = ?", threadID).Updates(updates).Error; err != nil {
			return err
		}
		for i := range audits {
			if audits[i].ID == "" {
				audits[i].ID = uuid.New().String()
			}
			if audits[i].CreatedAt.IsZero() {
				audits[i].CreatedAt = time.Now()
			}
			if err := tx.Create(&audits[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// SLAStatus counts breached threads and lists the ones due within the
// window, excluding finished pipelines
func (r *threadRepository) SLAStatus(now time.Time, dueWithin time.Duration) (*SLAOverview, error) {
	active := []triagedomain.ProcessingStatus{
		triagedomain.ProcessingStatusNew,
		triagedomain.ProcessingStatusClassified,
		triagedomain.ProcessingStatusDrafted,
	}

	var breached int64
	err := r.db.Model(&triagedomain.Thread{}).
		Where("processing_status IN ?", active).
		Where("sla_due_at IS NOT NULL AND sla_due_at < ?", now).
		Count(&breached).Error
	if err != nil {
		return nil, err
	}

	var dueSoon []triagedomain.Thread
	err = r.db.Preload("Inbox").
		Where("processing_status IN ?", active).
		Where("sla_due_at IS NOT NULL AND sla_due_at >= ? AND sla_due_at <= ?", now, now.Add(dueWithin)).
		Order("sla_due_at asc").
		Find(&dueSoon).Error
	if err != nil {
		return nil, err
	}

	return &SLAOverview{Breached: breached, DueSoon: dueSoon}, nil
}

// MarkSLABreaches stamps sla_breached_at on newly breached threads and
// returns how many were stamped
func (r *threadRepository) MarkSLABreaches(now time.Time) (int64, error) {
	active := []triagedomain.ProcessingStatus{
		triagedomain.ProcessingStatusNew,
		triagedomain.ProcessingStatusClassified,
		triagedomain.ProcessingStatusDrafted,
	}
	result := r.db.Model(&triagedomain.Thread{}).
		Where("processing_status IN ?", active).
		Where("sla_due_at IS NOT NULL AND sla_due_at < ?", now).
		Where("sla_breached_at IS NULL").
		Updates(map[string]interface{}{
			"sla_breached_at": now,
			"updated_at":      now,
		})
	return result.RowsAffected, result.Error
}
