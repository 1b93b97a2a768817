package repository

import (
	"time"

	triagedomain "tdp-backend/internal/triage/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// caseRepository implements CaseRepository interface
type caseRepository struct {
	db *gorm.DB
}

// NewCaseRepository creates a new instance of caseRepository
func NewCaseRepository(db *gorm.DB) CaseRepository {
	return &caseRepository{
		db: db,
	}
}

func (r *caseRepository) Create(c *triagedomain.Case) error {
	now := time.Now()
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	c.CreatedAt = now
	c.UpdatedAt = now
	return r.db.Create(c).Error
}

func (r *caseRepository) FindByID(id string) (*triagedomain.Case, error) {
	var c triagedomain.Case
	err := r.db.Where("id = ?", id).First(&c).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

func (r *caseRepository) List(limit int) ([]triagedomain.Case, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var cases []triagedomain.Case
	if err := r.db.Order("created_at desc").Limit(limit).Find(&cases).Error; err != nil {
		return nil, err
	}
	return cases, nil
}

func (r *caseRepository) Update(c *triagedomain.Case) error {
	c.UpdatedAt = time.Now()
	return r.db.Save(c).Error
}
