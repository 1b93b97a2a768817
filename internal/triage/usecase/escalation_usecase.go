package usecase

import (
	"context"
	"fmt"

	triagedomain "tdp-backend/internal/triage/domain"
	"tdp-backend/internal/triage/repository"
	"tdp-backend/pkg/graph"
)

// EscalationOutcome reports whether the escalation was sent or skipped
// because one already exists for the thread+department pair.
type EscalationOutcome struct {
	OK      bool `json:"ok"`
	Skipped bool `json:"skipped,omitempty"`
}

// EscalationUsecase sends internal escalation emails. This is the one
// path allowed to auto-send: the recipient is always an internal
// escalation inbox, never an external party.
type EscalationUsecase struct {
	threadRepo     repository.ThreadRepository
	draftRepo      repository.DraftRepository
	escalationRepo repository.EscalationRepository
	auditRepo      repository.AuditLogRepository
	graphService   GraphService
	inboxByDept    map[triagedomain.Department]string
}

// NewEscalationUsecase creates a new EscalationUsecase
func NewEscalationUsecase(
	threadRepo repository.ThreadRepository,
	draftRepo repository.DraftRepository,
	escalationRepo repository.EscalationRepository,
	auditRepo repository.AuditLogRepository,
	graphService GraphService,
	inboxByDept map[triagedomain.Department]string,
) *EscalationUsecase {
	return &EscalationUsecase{
		threadRepo:     threadRepo,
		draftRepo:      draftRepo,
		escalationRepo: escalationRepo,
		auditRepo:      auditRepo,
		graphService:   graphService,
		inboxByDept:    inboxByDept,
	}
}

// Trigger escalates a thread to its department's internal inbox. A
// repeat trigger for the same thread+department is a no-op.
func (u *EscalationUsecase) Trigger(ctx context.Context, threadID, reason, actorUserID string) (*EscalationOutcome, error) {
	thread, err := u.threadRepo.FindWithLatestMessage(threadID)
	if err != nil {
		return nil, err
	}
	if thread == nil || thread.Inbox == nil {
		return nil, ErrThreadNotFound
	}

	existing, err := u.escalationRepo.FindByThreadAndDepartment(thread.ID, thread.Department)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return &EscalationOutcome{OK: true, Skipped: true}, nil
	}

	escalationInbox, ok := u.inboxByDept[thread.Department]
	if !ok || escalationInbox == "" {
		return nil, fmt.Errorf("no escalation inbox for department: %s", thread.Department)
	}

	subjectBase := thread.Subject
	if subjectBase == "" {
		subjectBase = "No subject"
	}
	subject := triagedomain.EscalationSubjectPrefix + " " + subjectBase

	preview := "N/A"
	if len(thread.Messages) > 0 && thread.Messages[0].BodyPreview != "" {
		preview = thread.Messages[0].BodyPreview
	}
	bodyHTML := fmt.Sprintf(`
      <p><strong>Escalation Reason:</strong> %s</p>
      <p><strong>Department:</strong> %s</p>
      <p><strong>Stage:</strong> %s</p>
      <p><strong>Original Inbox:</strong> %s</p>
      <hr />
      <p><strong>Latest Message Preview:</strong></p>
      <blockquote>%s</blockquote>
    `, reason, thread.Department, thread.Stage, thread.Inbox.EmailAddress, preview)

	// Draft-first even though this path auto-sends: the record exists
	// before anything leaves the building.
	draft := &triagedomain.Draft{
		ThreadID:  thread.ID,
		DraftType: triagedomain.DraftTypeEscalationInternal,
		Status:    triagedomain.DraftStatusCreated,
		Version:   1,
		Subject:   subject,
		BodyHTML:  bodyHTML,
		ToJSON:    triagedomain.MustJSON([]string{escalationInbox}),
	}
	if actorUserID != "" {
		draft.CreatedByUserID = &actorUserID
	}
	if err := u.draftRepo.Create(draft); err != nil {
		return nil, err
	}

	graphDraft, err := u.graphService.CreateMessageDraft(ctx, escalationInbox, graph.DraftContent{
		Subject:  subject,
		BodyHTML: bodyHTML,
		To:       []string{escalationInbox},
	})
	if err != nil || graphDraft.ID == "" {
		u.auditRepo.Append(triagedomain.AuditGraphError, repository.AuditContext{
			ThreadID:    thread.ID,
			DraftID:     draft.ID,
			ActorUserID: actorUserID,
			Payload:     map[string]interface{}{"reason": "ESCALATION_GRAPH_DRAFT_FAILED"},
		})
		return &EscalationOutcome{OK: false}, nil
	}

	if _, err := u.draftRepo.LinkGraphDraftID(draft.ID, graphDraft.ID); err != nil {
		return nil, err
	}

	escalation := &triagedomain.Escalation{
		ThreadID:   thread.ID,
		Department: thread.Department,
		Reason:     reason,
		DraftID:    &draft.ID,
	}
	if err := u.escalationRepo.Create(escalation); err != nil {
		return nil, err
	}

	u.auditRepo.Append(triagedomain.AuditEscalationTriggered, repository.AuditContext{
		ThreadID:    thread.ID,
		DraftID:     draft.ID,
		ActorUserID: actorUserID,
		Payload: map[string]interface{}{
			"escalationId": escalation.ID,
			"department":   thread.Department,
			"inbox":        escalationInbox,
		},
	})
	u.auditRepo.Append(triagedomain.AuditGraphCreatedDraft, repository.AuditContext{
		ThreadID:    thread.ID,
		DraftID:     draft.ID,
		ActorUserID: actorUserID,
		Payload:     map[string]interface{}{"graphDraftMessageId": graphDraft.ID, "escalationInbox": escalationInbox},
	})

	if err := u.graphService.SendDraft(ctx, escalationInbox, graphDraft.ID); err != nil {
		return nil, err
	}

	if err := u.draftRepo.UpdateStatus(draft.ID, triagedomain.DraftStatusSent); err != nil {
		return nil, err
	}

	u.auditRepo.Append(triagedomain.AuditGraphSentDraft, repository.AuditContext{
		ThreadID:    thread.ID,
		DraftID:     draft.ID,
		ActorUserID: actorUserID,
		Payload:     map[string]interface{}{"graphDraftMessageId": graphDraft.ID, "escalationInbox": escalationInbox},
	})
	u.auditRepo.Append(triagedomain.AuditDraftSent, repository.AuditContext{
		ThreadID:    thread.ID,
		DraftID:     draft.ID,
		ActorUserID: actorUserID,
	})

	return &EscalationOutcome{OK: true}, nil
}
