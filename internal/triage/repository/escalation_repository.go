package repository

import (
	"time"

	triagedomain "tdp-backend/internal/triage/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// escalationRepository implements EscalationRepository interface
type escalationRepository struct {
	db *gorm.DB
}

// NewEscalationRepository creates a new instance of escalationRepository
func NewEscalationRepository(db *gorm.DB) EscalationRepository {
	return &escalationRepository{
		db: db,
	}
}

func (r *escalationRepository) FindByThreadAndDepartment(threadID string, dept triagedomain.Department) (*triagedomain.Escalation, error) {
	var escalation triagedomain.Escalation
	err := r.db.Where("thread_id = ? AND department = ?", threadID, dept).First(&escalation).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &escalation, nil
}

func (r *escalationRepository) Create(escalation *triagedomain.Escalation) error {
	if escalation.ID == "" {
		escalation.ID = uuid.New().String()
	}
	escalation.CreatedAt = time.Now()
	return r.db.Create(escalation).Error
}
