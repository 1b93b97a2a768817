package repository

import (
	"time"

	triagedomain "tdp-backend/internal/triage/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// noteRepository implements NoteRepository interface
type noteRepository struct {
	db *gorm.DB
}

// NewNoteRepository creates a new instance of noteRepository
func NewNoteRepository(db *gorm.DB) NoteRepository {
	return &noteRepository{
		db: db,
	}
}

func (r *noteRepository) Create(note *triagedomain.Note) error {
	if note.ID == "" {
		note.ID = uuid.New().String()
	}
	note.CreatedAt = time.Now()
	return r.db.Create(note).Error
}

func (r *noteRepository) ListByThread(threadID string) ([]triagedomain.Note, error) {
	var notes []triagedomain.Note
	err := r.db.Where("thread_id = ?", threadID).Order("created_at desc").Find(&notes).Error
	if err != nil {
		return nil, err
	}
	return notes, nil
}
