package repository

import (
	"strings"
	"time"

	triagedomain "tdp-backend/internal/triage/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// draftRepository implements DraftRepository interface
type draftRepository struct {
	db *gorm.DB
}

// NewDraftRepository creates a new instance of draftRepository
func NewDraftRepository(db *gorm.DB) DraftRepository {
	return &draftRepository{
		db: db,
	}
}

func (r *draftRepository) Create(draft *triagedomain.Draft) error {
	now := time.Now()
	if draft.ID == "" {
		draft.ID = uuid.New().String()
	}
	if draft.Version == 0 {
		draft.Version = 1
	}
	if draft.Status == "" {
		draft.Status = triagedomain.DraftStatusCreated
	}
	draft.CreatedAt = now
	draft.UpdatedAt = now
	return r.db.Create(draft).Error
}

func (r *draftRepository) FindByID(id string) (*triagedomain.Draft, error) {
	var draft triagedomain.Draft
	err := r.db.Where("id = ?", id).First(&draft).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &draft, nil
}

func (r *draftRepository) LatestForThread(threadID string) (*triagedomain.Draft, error) {
	var draft triagedomain.Draft
	err := r.db.Where("thread_id = ?", threadID).Order("created_at desc").First(&draft).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &draft, nil
}

func (r *draftRepository) LatestVersion(threadID string, draftType triagedomain.DraftType) (*triagedomain.Draft, error) {
	var draft triagedomain.Draft
	err := r.db.Where("thread_id = ? AND draft_type = ?", threadID, draftType).Order("version desc").First(&draft).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &draft, nil
}

func (r *draftRepository) Chain(threadID string, draftType triagedomain.DraftType) ([]triagedomain.Draft, error) {
	var drafts []triagedomain.Draft
	err := r.db.Where("thread_id = ? AND draft_type = ?", threadID, draftType).Order("version asc").Find(&drafts).Error
	if err != nil {
		return nil, err
	}
	return drafts, nil
}

func (r *draftRepository) ListByThread(threadID string) ([]triagedomain.Draft, error) {
	var drafts []triagedomain.Draft
	err := r.db.Where("thread_id = ?", threadID).Order("created_at desc").Find(&drafts).Error
	if err != nil {
		return nil, err
	}
	return drafts, nil
}

func (r *draftRepository) UpdateContent(draft *triagedomain.Draft) error {
	draft.UpdatedAt = time.Now()
	return r.db.Save(draft).Error
}

func (r *draftRepository) UpdateStatus(id string, status triagedomain.DraftStatus) error {
	return r.db.Model(&triagedomain.Draft{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":     status,
		"updated_at": time.Now(),
	}).Error
}

// LinkGraphDraftID attaches the provider draft id to a draft row. The id
// is globally unique across all drafts; a conflicting link reports false
// instead of erroring so callers can flag the thread for review.
func (r *draftRepository) LinkGraphDraftID(draftID, graphDraftMessageID string) (bool, error) {
	var holder triagedomain.Draft
	err := r.db.Where("graph_draft_message_id = ?", graphDraftMessageID).First(&holder).Error
	if err != nil && err != gorm.ErrRecordNotFound {
		return false, err
	}
	if err == nil && holder.ID != draftID {
		return false, nil
	}
	if err == nil && holder.ID == draftID {
		return true, nil
	}

	result := r.db.Model(&triagedomain.Draft{}).Where("id = ?", draftID).Updates(map[string]interface{}{
		"graph_draft_message_id": &graphDraftMessageID,
		"updated_at":             time.Now(),
	})
	if result.Error != nil {
		// Lost the race to another linker holding the same id.
		if isUniqueViolation(result.Error) {
			return false, nil
		}
		return false, result.Error
	}
	return true, nil
}

// CreateNextVersion moves the Graph draft id from the current version to
// the next one. Clearing before inserting keeps the global unique index
// satisfied at every point inside the transaction.
func (r *draftRepository) CreateNextVersion(currentID string, next *triagedomain.Draft) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&triagedomain.Draft{}).Where("id = ?", currentID).Updates(map[string]interface{}{
			"graph_draft_message_id": nil,
			"updated_at":             time.Now(),
		}).Error; err != nil {
			return err
		}

		now := time.Now()
		if next.ID == "" {
			next.ID = uuid.New().String()
		}
		next.CreatedAt = now
		next.UpdatedAt = now
		return tx.Create(next).Error
	})
}

// MarkSentAndAssignOwner flips the draft to SENT and hands the thread to
// the sending actor in one transaction
func (r *draftRepository) MarkSentAndAssignOwner(draftID, threadID, actorUserID string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		if err := tx.Model(&triagedomain.Draft{}).Where("id = ?", draftID).Updates(map[string]interface{}{
			"status":     triagedomain.DraftStatusSent,
			"updated_at": now,
		}).Error; err != nil {
			return err
		}
		return tx.Model(&triagedomain.Thread{}).Where("id = ?", threadID).Updates(map[string]interface{}{
			"owner_user_id": &actorUserID,
			"updated_at":    now,
		}).Error
	})
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "23505")
}
