package usecase

import (
	"context"
	"errors"

	triagedomain "tdp-backend/internal/triage/domain"
	"tdp-backend/internal/triage/repository"
	"tdp-backend/pkg/graph"
)

var (
	ErrDraftNotFound  = errors.New("draft not found")
	ErrThreadNotFound = errors.New("thread not found")
	ErrDraftNotLinked = errors.New("draft is not linked to an Outlook draft")

	// External drafts must remain drafts; only internal escalations are
	// ever sent by the platform.
	ErrSendNotAllowed  = errors.New("sending is only allowed for escalation drafts; external drafts must remain drafts only")
	ErrSendNotApproved = errors.New("escalation draft must be APPROVED before sending")
)

// DraftEditPatch carries the human edits to apply. Empty fields keep
// the previous version's content; nil recipient lists keep the previous
// recipients.
type DraftEditPatch struct {
	Subject  string
	BodyHTML string
	To       []string
	Cc       []string
}

// DraftActionsUsecase implements the human review surface over drafts.
// All actions resolve to the LATEST version of the draft's chain, so
// acting on a stale id never touches an old version.
type DraftActionsUsecase struct {
	draftRepo    repository.DraftRepository
	threadRepo   repository.ThreadRepository
	auditRepo    repository.AuditLogRepository
	graphService GraphService
}

// NewDraftActionsUsecase creates a new DraftActionsUsecase
func NewDraftActionsUsecase(
	draftRepo repository.DraftRepository,
	threadRepo repository.ThreadRepository,
	auditRepo repository.AuditLogRepository,
	graphService GraphService,
) *DraftActionsUsecase {
	return &DraftActionsUsecase{
		draftRepo:    draftRepo,
		threadRepo:   threadRepo,
		auditRepo:    auditRepo,
		graphService: graphService,
	}
}

// EditDraft patches the mailbox draft first, then bumps the version in
// the database. If the mailbox patch fails there is no version bump.
func (u *DraftActionsUsecase) EditDraft(ctx context.Context, draftID, actorUserID string, patch DraftEditPatch) error {
	current, err := u.draftRepo.FindByID(draftID)
	if err != nil {
		return err
	}
	if current == nil {
		return ErrDraftNotFound
	}

	thread, err := u.threadRepo.FindByID(current.ThreadID)
	if err != nil {
		return err
	}
	if thread == nil || thread.Inbox == nil {
		return ErrThreadNotFound
	}

	latest, err := u.draftRepo.LatestVersion(current.ThreadID, current.DraftType)
	if err != nil {
		return err
	}
	if latest == nil {
		return ErrDraftNotFound
	}
	if latest.GraphDraftMessageID == nil {
		return ErrDraftNotLinked
	}
	graphID := *latest.GraphDraftMessageID

	if err := triagedomain.AssertDraftStatusTransition(latest.Status, triagedomain.DraftStatusEdited); err != nil {
		return err
	}

	if err := u.graphService.PatchDraft(ctx, thread.Inbox.EmailAddress, graphID, graph.DraftPatch{
		Subject:  patch.Subject,
		BodyHTML: patch.BodyHTML,
		To:       patch.To,
		Cc:       patch.Cc,
	}); err != nil {
		return err
	}

	next := &triagedomain.Draft{
		ThreadID:            latest.ThreadID,
		DraftType:           latest.DraftType,
		Status:              triagedomain.DraftStatusEdited,
		Version:             latest.Version + 1,
		GraphDraftMessageID: &graphID,
		Subject:             latest.Subject,
		BodyHTML:            latest.BodyHTML,
		BodyText:            latest.BodyText,
		ToJSON:              latest.ToJSON,
		CcJSON:              latest.CcJSON,
		CreatedByUserID:     latest.CreatedByUserID,
		LastEditedByUserID:  &actorUserID,
	}
	if patch.Subject != "" {
		next.Subject = patch.Subject
	}
	if patch.BodyHTML != "" {
		next.BodyHTML = patch.BodyHTML
	}
	if patch.To != nil {
		next.ToJSON = triagedomain.MustJSON(patch.To)
	}
	if patch.Cc != nil {
		next.CcJSON = triagedomain.MustJSON(patch.Cc)
	}

	if err := u.draftRepo.CreateNextVersion(latest.ID, next); err != nil {
		return err
	}

	u.auditRepo.Append(triagedomain.AuditDraftEdited, repository.AuditContext{
		ThreadID:    current.ThreadID,
		DraftID:     draftID,
		ActorUserID: actorUserID,
		Payload: map[string]interface{}{
			"nextVersion": next.Version,
			"subject":     patch.Subject,
		},
	})
	return nil
}

// ApproveDraft approves the latest version of the draft's chain.
func (u *DraftActionsUsecase) ApproveDraft(ctx context.Context, draftID, actorUserID string) error {
	latest, err := u.latestFor(draftID)
	if err != nil {
		return err
	}

	if err := triagedomain.AssertDraftStatusTransition(latest.Status, triagedomain.DraftStatusApproved); err != nil {
		return err
	}
	if err := u.draftRepo.UpdateStatus(latest.ID, triagedomain.DraftStatusApproved); err != nil {
		return err
	}

	u.auditRepo.Append(triagedomain.AuditDraftApproved, repository.AuditContext{
		ThreadID:    latest.ThreadID,
		DraftID:     latest.ID,
		ActorUserID: actorUserID,
	})
	return nil
}

// SendApprovedDraft sends the latest version through the mailbox. Only
// APPROVED internal escalation drafts may be sent; the sender becomes
// the thread owner.
func (u *DraftActionsUsecase) SendApprovedDraft(ctx context.Context, draftID, actorUserID string) error {
	latest, err := u.latestFor(draftID)
	if err != nil {
		return err
	}

	if latest.DraftType != triagedomain.DraftTypeEscalationInternal {
		return ErrSendNotAllowed
	}
	if latest.Status != triagedomain.DraftStatusApproved {
		return ErrSendNotApproved
	}
	if latest.GraphDraftMessageID == nil {
		return ErrDraftNotLinked
	}

	thread, err := u.threadRepo.FindByID(latest.ThreadID)
	if err != nil {
		return err
	}
	if thread == nil || thread.Inbox == nil {
		return ErrThreadNotFound
	}

	graphID := *latest.GraphDraftMessageID
	if err := u.graphService.SendDraft(ctx, thread.Inbox.EmailAddress, graphID); err != nil {
		return err
	}

	if err := u.draftRepo.MarkSentAndAssignOwner(latest.ID, latest.ThreadID, actorUserID); err != nil {
		return err
	}

	u.auditRepo.Append(triagedomain.AuditGraphSentDraft, repository.AuditContext{
		ThreadID:    latest.ThreadID,
		DraftID:     latest.ID,
		ActorUserID: actorUserID,
		Payload:     map[string]interface{}{"graphDraftMessageId": graphID},
	})
	u.auditRepo.Append(triagedomain.AuditDraftSent, repository.AuditContext{
		ThreadID:    latest.ThreadID,
		DraftID:     latest.ID,
		ActorUserID: actorUserID,
	})
	u.auditRepo.Append(triagedomain.AuditOwnerChanged, repository.AuditContext{
		ThreadID:    latest.ThreadID,
		DraftID:     latest.ID,
		ActorUserID: actorUserID,
		Payload:     map[string]interface{}{"ownerUserId": actorUserID},
	})
	return nil
}

// DiscardDraft discards the latest version of the draft's chain.
func (u *DraftActionsUsecase) DiscardDraft(ctx context.Context, draftID, actorUserID string) error {
	latest, err := u.latestFor(draftID)
	if err != nil {
		return err
	}

	if err := triagedomain.AssertDraftStatusTransition(latest.Status, triagedomain.DraftStatusDiscarded); err != nil {
		return err
	}
	if err := u.draftRepo.UpdateStatus(latest.ID, triagedomain.DraftStatusDiscarded); err != nil {
		return err
	}

	u.auditRepo.Append(triagedomain.AuditDraftDiscarded, repository.AuditContext{
		ThreadID:    latest.ThreadID,
		DraftID:     latest.ID,
		ActorUserID: actorUserID,
	})
	return nil
}

func (u *DraftActionsUsecase) latestFor(draftID string) (*triagedomain.Draft, error) {
	d, err := u.draftRepo.FindByID(draftID)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, ErrDraftNotFound
	}
	latest, err := u.draftRepo.LatestVersion(d.ThreadID, d.DraftType)
	if err != nil {
		return nil, err
	}
	if latest == nil {
		return nil, ErrDraftNotFound
	}
	return latest, nil
}
