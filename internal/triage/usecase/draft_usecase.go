package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	triagedomain "tdp-backend/internal/triage/domain"
	"tdp-backend/internal/triage/repository"
	"tdp-backend/pkg/graph"
	"tdp-backend/pkg/openai"
)

const draftSystemPrompt = `
You write professional healthcare operations email drafts.

Return JSON only with keys:
- draftType
- subject
- bodyHtml
- to
- cc
- confidence

Allowed draftType values:
EXTERNAL_REPLY
STAFFING_REQUEST_CONTACT_INFO
STAFFING_STAFFED_CONFIRMATION
CASE_MANAGEMENT_FOLLOW_UP
BILLING_FOLLOW_UP
AUTHORIZATION_FOLLOW_UP
ESCALATION_INTERNAL

Rules:
- Safe, professional, concise.
- Use extracted attachment data if present.
- No internal notes in external drafts.
- If unsure: draftType=EXTERNAL_REPLY with lower confidence.
`

// DraftRunResult summarizes one draft generation batch.
type DraftRunResult struct {
	Drafted int `json:"drafted"`
}

// DraftUsecase generates reply drafts for CLASSIFIED threads. Drafts
// are draft-first: the Outlook draft is created in the mailbox but never
// sent by this path.
type DraftUsecase struct {
	threadRepo     repository.ThreadRepository
	draftRepo      repository.DraftRepository
	attachmentRepo repository.AttachmentRepository
	auditRepo      repository.AuditLogRepository
	graphService   GraphService
	aiService      AIService
	model          string
}

// NewDraftUsecase creates a new DraftUsecase
func NewDraftUsecase(
	threadRepo repository.ThreadRepository,
	draftRepo repository.DraftRepository,
	attachmentRepo repository.AttachmentRepository,
	auditRepo repository.AuditLogRepository,
	graphService GraphService,
	aiService AIService,
	model string,
) *DraftUsecase {
	return &DraftUsecase{
		threadRepo:     threadRepo,
		draftRepo:      draftRepo,
		attachmentRepo: attachmentRepo,
		auditRepo:      auditRepo,
		graphService:   graphService,
		aiService:      aiService,
		model:          model,
	}
}

// Run drafts up to limit eligible threads. Threads flagged for review
// are skipped here; a manual trigger can still draft them individually.
func (u *DraftUsecase) Run(ctx context.Context, limit int) (*DraftRunResult, error) {
	if limit <= 0 {
		limit = 10
	}
	ids, err := u.threadRepo.ListDraftable(limit)
	if err != nil {
		return nil, err
	}

	drafted := 0
	for _, id := range ids {
		if err := u.CreateDraftForThread(ctx, id); err != nil {
			log.Printf("[Draft] Error drafting thread %s: %v", id, err)
			continue
		}
		drafted++
	}
	return &DraftRunResult{Drafted: drafted}, nil
}

// CreateDraftForThread generates one AI draft and mirrors it into the
// mailbox. Threads that require no response are closed instead.
func (u *DraftUsecase) CreateDraftForThread(ctx context.Context, threadID string) error {
	thread, err := u.threadRepo.FindWithLatestMessage(threadID)
	if err != nil {
		return err
	}
	if thread == nil || thread.Inbox == nil {
		return nil
	}
	if thread.ProcessingStatus != triagedomain.ProcessingStatusClassified {
		return nil
	}
	if len(thread.Messages) == 0 {
		return nil
	}
	latest := thread.Messages[0]

	if thread.ResponseRequired != nil && !*thread.ResponseRequired {
		return u.threadRepo.SetProcessingStatus(thread.ID, triagedomain.ProcessingStatusDone)
	}

	// Idempotency guard: a linked mailbox draft already exists, so just
	// settle the thread state and stop.
	existing, err := u.draftRepo.LatestForThread(thread.ID)
	if err != nil {
		return err
	}
	if existing != nil && existing.GraphDraftMessageID != nil {
		suggested := existing.DraftType
		if thread.DraftTypeSuggested != nil {
			if t, err := triagedomain.AssertDraftType(*thread.DraftTypeSuggested); err == nil {
				suggested = t
			}
		}
		return u.threadRepo.MarkDrafted(thread.ID, suggested, true)
	}

	extracted, err := u.attachmentRepo.ListExtractedForMessage(latest.ID)
	if err != nil {
		return err
	}
	attachmentCtx := make([]map[string]interface{}, 0, len(extracted))
	for _, a := range extracted {
		attachmentCtx = append(attachmentCtx, map[string]interface{}{
			"filename":      a.Filename,
			"mimeType":      a.MimeType,
			"extractedJson": json.RawMessage(orNullJSON(a.ExtractedJSON)),
		})
	}

	user := triagedomain.MustJSON(map[string]interface{}{
		"thread": map[string]interface{}{
			"id":         thread.ID,
			"department": thread.Department,
			"stage":      thread.Stage,
			"subject":    thread.Subject,
			"inbox":      thread.Inbox.EmailAddress,
		},
		"latestMessage": map[string]interface{}{
			"from":     json.RawMessage(orNullJSON(latest.FromJSON)),
			"to":       json.RawMessage(orNullJSON(latest.ToJSON)),
			"cc":       json.RawMessage(orNullJSON(latest.CcJSON)),
			"subject":  latest.Subject,
			"preview":  latest.BodyPreview,
			"bodyHtml": latest.BodyHTML,
			"bodyText": latest.BodyText,
		},
		"extractedAttachments": attachmentCtx,
	})

	raw, err := u.aiService.CompleteJSON(ctx, openai.Request{
		Model:  u.model,
		System: draftSystemPrompt,
		User:   string(user),
	})
	if err != nil {
		u.auditRepo.Append(triagedomain.AuditOpenAIError, repository.AuditContext{
			ThreadID: thread.ID,
			Payload:  map[string]interface{}{"reason": "DRAFT_FAILED", "message": err.Error()},
		})
		return err
	}

	var result struct {
		DraftType  string      `json:"draftType"`
		Subject    string      `json:"subject"`
		BodyHTML   string      `json:"bodyHtml"`
		To         interface{} `json:"to"`
		Cc         interface{} `json:"cc"`
		Confidence float64     `json:"confidence"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return fmt.Errorf("decode draft result: %w", err)
	}

	draftType, err := triagedomain.AssertDraftType(result.DraftType)
	if err != nil {
		return err
	}

	to := normalizeEmailList(result.To)
	cc := normalizeEmailList(result.Cc)

	// Reuse an unlinked existing draft rather than piling up versions.
	platformDraft := existing
	if platformDraft == nil {
		platformDraft = &triagedomain.Draft{
			ThreadID:  thread.ID,
			DraftType: draftType,
			Status:    triagedomain.DraftStatusCreated,
			Subject:   result.Subject,
			BodyHTML:  result.BodyHTML,
			ToJSON:    triagedomain.MustJSON(to),
			CcJSON:    triagedomain.MustJSON(cc),
		}
		if err := u.draftRepo.Create(platformDraft); err != nil {
			return err
		}
	} else {
		platformDraft.DraftType = draftType
		platformDraft.Status = triagedomain.DraftStatusCreated
		platformDraft.Subject = result.Subject
		platformDraft.BodyHTML = result.BodyHTML
		platformDraft.ToJSON = triagedomain.MustJSON(to)
		platformDraft.CcJSON = triagedomain.MustJSON(cc)
		if err := u.draftRepo.UpdateContent(platformDraft); err != nil {
			return err
		}
	}

	u.auditRepo.Append(triagedomain.AuditDraftCreated, repository.AuditContext{
		ThreadID: thread.ID,
		DraftID:  platformDraft.ID,
		Payload:  map[string]interface{}{"draftType": draftType, "confidence": result.Confidence},
	})

	// Prefer a reply draft; fall back to a fresh message for items the
	// provider refuses to reply to.
	inboxUpn := thread.Inbox.EmailAddress
	var graphDraftID, graphConversationID string

	replyDraft, err := u.graphService.CreateReplyDraft(ctx, inboxUpn, latest.GraphMessageID, "<p></p>")
	if err == nil && replyDraft.ID != "" {
		if err := u.graphService.PatchDraft(ctx, inboxUpn, replyDraft.ID, graph.DraftPatch{
			Subject:  result.Subject,
			BodyHTML: result.BodyHTML,
			To:       to,
			Cc:       cc,
		}); err != nil {
			u.auditRepo.Append(triagedomain.AuditGraphError, repository.AuditContext{
				ThreadID: thread.ID,
				DraftID:  platformDraft.ID,
				Payload:  map[string]interface{}{"reason": "GRAPH_PATCH_REPLY_FAILED", "message": err.Error()},
			})
			return nil
		}
		graphDraftID = replyDraft.ID
		graphConversationID = replyDraft.ConversationID
	} else {
		if err != nil && !graph.IsInvalidReplyItem(err) {
			u.auditRepo.Append(triagedomain.AuditGraphError, repository.AuditContext{
				ThreadID: thread.ID,
				DraftID:  platformDraft.ID,
				Payload:  map[string]interface{}{"reason": "GRAPH_CREATE_REPLY_FAILED", "message": err.Error()},
			})
			return nil
		}

		newDraft, err := u.graphService.CreateMessageDraft(ctx, inboxUpn, graph.DraftContent{
			Subject:  result.Subject,
			BodyHTML: result.BodyHTML,
			To:       to,
			Cc:       cc,
		})
		if err != nil || newDraft.ID == "" {
			u.auditRepo.Append(triagedomain.AuditGraphError, repository.AuditContext{
				ThreadID: thread.ID,
				DraftID:  platformDraft.ID,
				Payload:  map[string]interface{}{"reason": "GRAPH_CREATE_NEW_DRAFT_FAILED"},
			})
			return nil
		}
		graphDraftID = newDraft.ID
		graphConversationID = newDraft.ConversationID
	}

	// Idempotent link: the provider id may only ever belong to one row.
	linked, err := u.draftRepo.LinkGraphDraftID(platformDraft.ID, graphDraftID)
	if err != nil {
		return err
	}
	if !linked {
		if err := u.threadRepo.SetNeedsReview(thread.ID, true); err != nil {
			return err
		}
		u.auditRepo.Append(triagedomain.AuditGraphError, repository.AuditContext{
			ThreadID: thread.ID,
			DraftID:  platformDraft.ID,
			Payload: map[string]interface{}{
				"reason":              "GRAPH_DRAFT_ID_ALREADY_LINKED",
				"graphDraftMessageId": graphDraftID,
			},
		})
		return nil
	}

	u.auditRepo.Append(triagedomain.AuditGraphCreatedDraft, repository.AuditContext{
		ThreadID: thread.ID,
		DraftID:  platformDraft.ID,
		Payload: map[string]interface{}{
			"graphDraftMessageId": graphDraftID,
			"conversationId":      graphConversationID,
		},
	})

	if err := u.threadRepo.MarkDrafted(thread.ID, draftType, true); err != nil {
		return err
	}

	u.auditRepo.Append(triagedomain.AuditAIDrafted, repository.AuditContext{
		ThreadID: thread.ID,
		DraftID:  platformDraft.ID,
		Payload:  map[string]interface{}{"draftType": draftType, "confidence": result.Confidence},
	})
	return nil
}

// normalizeEmailList flattens whatever shape the model returned for
// recipients (strings, {address}, {emailAddress:{address}}) into a
// deduplicated address list.
func normalizeEmailList(input interface{}) []string {
	var out []string
	seen := map[string]bool{}

	push := func(v interface{}) {
		s, ok := v.(string)
		if !ok {
			return
		}
		trimmed := strings.TrimSpace(s)
		if trimmed == "" || seen[trimmed] {
			return
		}
		seen[trimmed] = true
		out = append(out, trimmed)
	}

	pullFromObj := func(v interface{}) {
		m, ok := v.(map[string]interface{})
		if !ok {
			return
		}
		if addr, ok := m["address"]; ok {
			push(addr)
			return
		}
		if ea, ok := m["emailAddress"].(map[string]interface{}); ok {
			push(ea["address"])
		}
	}

	if list, ok := input.([]interface{}); ok {
		for _, v := range list {
			push(v)
			pullFromObj(v)
		}
		return out
	}
	push(input)
	pullFromObj(input)
	return out
}
