package usecase

import (
	"context"
	"log"
	"time"

	"tdp-backend/internal/triage/repository"
)

// slaDueSoonWindow is how far ahead the overview looks for threads
// approaching their due time.
const slaDueSoonWindow = 30 * time.Minute

// SLAUsecase tracks response-time targets per department. Due times are
// stamped at classification; this usecase reports on them and marks
// breaches.
type SLAUsecase struct {
	threadRepo repository.ThreadRepository
}

// NewSLAUsecase creates a new SLAUsecase
func NewSLAUsecase(threadRepo repository.ThreadRepository) *SLAUsecase {
	return &SLAUsecase{threadRepo: threadRepo}
}

// Overview returns the current breached count and the threads due soon.
func (u *SLAUsecase) Overview(ctx context.Context) (*repository.SLAOverview, error) {
	return u.threadRepo.SLAStatus(time.Now(), slaDueSoonWindow)
}

// Sweep stamps newly breached threads. Runs periodically; the stamp is
// written once per thread so repeat sweeps are no-ops.
func (u *SLAUsecase) Sweep(ctx context.Context) (int64, error) {
	marked, err := u.threadRepo.MarkSLABreaches(time.Now())
	if err != nil {
		return 0, err
	}
	if marked > 0 {
		log.Printf("[SLA] Marked %d threads as breached", marked)
	}
	return marked, nil
}
