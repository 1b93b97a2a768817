package usecase

import (
	"context"
	"fmt"

	triagedomain "tdp-backend/internal/triage/domain"
	"tdp-backend/internal/triage/repository"
)

// StageUsecase applies manual stage transitions and thread metadata
// patches. Stage changes stay within the thread's current department;
// changing department goes through UpdateThread, which resets the
// stage to the new department's first stage.
type StageUsecase struct {
	threadRepo repository.ThreadRepository
}

// NewStageUsecase creates a new StageUsecase
func NewStageUsecase(threadRepo repository.ThreadRepository) *StageUsecase {
	return &StageUsecase{threadRepo: threadRepo}
}

// ChangeStage validates the stage against the thread's department and
// applies it. The acting user takes ownership of the thread; the stage
// and owner writes land with their audit entries in one transaction.
func (u *StageUsecase) ChangeStage(ctx context.Context, threadID, stage, actorUserID string) error {
	thread, err := u.threadRepo.FindByID(threadID)
	if err != nil {
		return err
	}
	if thread == nil {
		return ErrThreadNotFound
	}

	if !triagedomain.ValidDepartment(thread.Department) {
		return fmt.Errorf("invalid department on thread: %s", thread.Department)
	}
	validated, err := triagedomain.AssertStage(thread.Department, stage)
	if err != nil {
		return err
	}

	audits := []triagedomain.AuditLog{
		{
			Action:      triagedomain.AuditStageChanged,
			ThreadID:    &threadID,
			ActorUserID: &actorUserID,
			Payload:     triagedomain.MustJSON(map[string]interface{}{"stage": validated}),
		},
		{
			Action:      triagedomain.AuditOwnerChanged,
			ThreadID:    &threadID,
			ActorUserID: &actorUserID,
			Payload:     triagedomain.MustJSON(map[string]interface{}{"ownerUserId": actorUserID}),
		},
	}
	return u.threadRepo.ChangeStageAndOwner(threadID, validated, actorUserID, audits)
}

// ThreadPatch is the partial update accepted by the thread metadata
// endpoint. Nil fields are left untouched; an empty OwnerUserID clears
// ownership.
type ThreadPatch struct {
	Department  *string
	Stage       *string
	OwnerUserID *string
	Metadata    triagedomain.JSON
}

// UpdateThread applies a metadata patch. Each changed field gets its
// own audit entry, written with the thread in one transaction. A stage
// or department change without an explicit owner hands the thread to
// the acting user, same as the manual stage endpoint.
func (u *StageUsecase) UpdateThread(ctx context.Context, threadID string, patch ThreadPatch, actorUserID string) (*triagedomain.Thread, error) {
	thread, err := u.threadRepo.FindByID(threadID)
	if err != nil {
		return nil, err
	}
	if thread == nil {
		return nil, ErrThreadNotFound
	}

	prevDept := thread.Department
	prevStage := thread.Stage
	prevOwner := thread.OwnerUserID

	if patch.Department != nil {
		dept, err := triagedomain.AssertDepartment(*patch.Department)
		if err != nil {
			return nil, err
		}
		thread.Department = dept
		thread.Stage = triagedomain.DefaultStageForDepartment(dept)
	}
	if patch.Stage != nil {
		stage, err := triagedomain.AssertStage(thread.Department, *patch.Stage)
		if err != nil {
			return nil, err
		}
		thread.Stage = stage
	}
	switch {
	case patch.OwnerUserID != nil:
		if *patch.OwnerUserID == "" {
			thread.OwnerUserID = nil
		} else {
			thread.OwnerUserID = patch.OwnerUserID
		}
	case (patch.Department != nil || patch.Stage != nil) && actorUserID != "":
		// No explicit owner on a workflow change: the actor takes over.
		thread.OwnerUserID = &actorUserID
	}
	if len(patch.Metadata) > 0 {
		thread.Metadata = patch.Metadata
	}

	var audits []triagedomain.AuditLog
	appendAudit := func(action triagedomain.AuditAction, payload map[string]interface{}) {
		audits = append(audits, triagedomain.AuditLog{
			Action:      action,
			ThreadID:    &threadID,
			ActorUserID: &actorUserID,
			Payload:     triagedomain.MustJSON(payload),
		})
	}
	if thread.Department != prevDept {
		appendAudit(triagedomain.AuditStageChanged, map[string]interface{}{
			"departmentFrom": prevDept,
			"departmentTo":   thread.Department,
		})
	}
	if thread.Stage != prevStage {
		appendAudit(triagedomain.AuditStageChanged, map[string]interface{}{
			"stageFrom": prevStage,
			"stageTo":   thread.Stage,
		})
	}
	if ownerDiffers(prevOwner, thread.OwnerUserID) {
		var owner interface{}
		if thread.OwnerUserID != nil {
			owner = *thread.OwnerUserID
		}
		appendAudit(triagedomain.AuditOwnerChanged, map[string]interface{}{"ownerUserId": owner})
	}
	if len(patch.Metadata) > 0 {
		appendAudit(triagedomain.AuditMetadataUpdated, map[string]interface{}{"updated": true})
	}

	if err := u.threadRepo.SaveWithAudits(thread, audits); err != nil {
		return nil, err
	}
	return thread, nil
}

func ownerDiffers(a, b *string) bool {
	if (a == nil) != (b == nil) {
		return true
	}
	return a != nil && *a != *b
}
