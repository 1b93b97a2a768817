package usecase

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	triagedomain "tdp-backend/internal/triage/domain"
	"tdp-backend/internal/triage/repository"
	"tdp-backend/pkg/graph"
)

// IngestionResult summarizes one sync run across all shared inboxes.
type IngestionResult struct {
	Inboxes     int `json:"inboxes"`
	Messages    int `json:"messages"`
	Attachments int `json:"attachments"`
}

// IngestionUsecase syncs shared inboxes through the Graph delta feed.
// Incremental runs resume from the stored delta link; the optional
// lookback only bounds the very first sync of an inbox.
type IngestionUsecase struct {
	inboxRepo      repository.InboxRepository
	threadRepo     repository.ThreadRepository
	messageRepo    repository.MessageRepository
	attachmentRepo repository.AttachmentRepository
	caseRepo       repository.CaseRepository
	auditRepo      repository.AuditLogRepository
	graphService   GraphService
	lookbackDays   int
}

// NewIngestionUsecase creates a new IngestionUsecase
func NewIngestionUsecase(
	inboxRepo repository.InboxRepository,
	threadRepo repository.ThreadRepository,
	messageRepo repository.MessageRepository,
	attachmentRepo repository.AttachmentRepository,
	caseRepo repository.CaseRepository,
	auditRepo repository.AuditLogRepository,
	graphService GraphService,
	lookbackDays int,
) *IngestionUsecase {
	return &IngestionUsecase{
		inboxRepo:      inboxRepo,
		threadRepo:     threadRepo,
		messageRepo:    messageRepo,
		attachmentRepo: attachmentRepo,
		caseRepo:       caseRepo,
		auditRepo:      auditRepo,
		graphService:   graphService,
		lookbackDays:   lookbackDays,
	}
}

// Run performs one full sync pass. A failure on one inbox is logged and
// audited but does not stop the others; its cursor stays untouched so
// the next run retries from the same point.
func (u *IngestionUsecase) Run(ctx context.Context) (*IngestionResult, error) {
	inboxes, err := u.inboxRepo.ListOperational()
	if err != nil {
		return nil, err
	}

	result := &IngestionResult{}
	for _, inbox := range inboxes {
		messages, attachments, err := u.syncInbox(ctx, &inbox)
		if err != nil {
			log.Printf("[Ingestion] Error syncing inbox %s: %v", inbox.EmailAddress, err)
			u.auditRepo.Append(triagedomain.AuditGraphError, repository.AuditContext{
				Payload: map[string]interface{}{
					"reason": "INBOX_SYNC_FAILED",
					"inbox":  inbox.EmailAddress,
					"error":  err.Error(),
				},
			})
			continue
		}
		result.Inboxes++
		result.Messages += messages
		result.Attachments += attachments
	}
	return result, nil
}

func (u *IngestionUsecase) syncInbox(ctx context.Context, inbox *triagedomain.Inbox) (int, int, error) {
	cursor, err := u.inboxRepo.GetCursor(inbox.ID)
	if err != nil {
		return 0, 0, err
	}

	var (
		items     []graph.Message
		deltaLink string
	)
	switch {
	case cursor != nil && cursor.DeltaLink != "":
		items, deltaLink, err = u.graphService.FetchDeltaAll(ctx, inbox.EmailAddress, cursor.DeltaLink)
	case u.lookbackDays > 0:
		from := time.Now().UTC().AddDate(0, 0, -u.lookbackDays)
		items, deltaLink, err = u.graphService.FetchDeltaAllFrom(ctx, inbox.EmailAddress, from)
	default:
		items, deltaLink, err = u.graphService.FetchDeltaAll(ctx, inbox.EmailAddress, "")
	}
	if err != nil {
		return 0, 0, err
	}

	messageCount := 0
	attachmentCount := 0
	for _, item := range items {
		if item.ID == "" || item.ConversationID == "" {
			continue
		}

		full, err := u.graphService.GetMessage(ctx, inbox.EmailAddress, item.ID)
		if err != nil {
			return messageCount, attachmentCount, fmt.Errorf("fetch message %s: %w", item.ID, err)
		}
		if full.ConversationID == "" {
			continue
		}

		receivedAt := parseGraphTime(full.ReceivedDateTime)
		thread, err := u.threadRepo.Upsert(repository.UpsertThreadParams{
			InboxID:             inbox.ID,
			GraphConversationID: full.ConversationID,
			Subject:             full.Subject,
			LastMessageAt:       receivedAt,
		})
		if err != nil {
			return messageCount, attachmentCount, err
		}

		u.ensureCase(thread, full.Subject)

		var bodyHTML, bodyText string
		if full.Body != nil {
			switch strings.ToLower(full.Body.ContentType) {
			case "html":
				bodyHTML = full.Body.Content
			case "text":
				bodyText = full.Body.Content
			}
		}

		stored, err := u.messageRepo.Upsert(repository.UpsertMessageParams{
			ThreadID:          thread.ID,
			GraphMessageID:    full.ID,
			InternetMessageID: full.InternetMessageID,
			FromJSON:          wrapFromJSON(full.From),
			ToJSON:            triagedomain.MustJSON(full.ToRecipients),
			CcJSON:            triagedomain.MustJSON(full.CcRecipients),
			Subject:           full.Subject,
			BodyPreview:       full.BodyPreview,
			BodyHTML:          bodyHTML,
			BodyText:          bodyText,
			ReceivedAt:        receivedAt,
			SentAt:            parseGraphTime(full.SentDateTime),
			HasAttachments:    full.HasAttachments,
		})
		if err != nil {
			return messageCount, attachmentCount, err
		}
		messageCount++

		u.auditRepo.Append(triagedomain.AuditGraphIngestedMessage, repository.AuditContext{
			ThreadID:  thread.ID,
			MessageID: stored.ID,
			Payload: map[string]interface{}{
				"inbox":          inbox.EmailAddress,
				"graphMessageId": full.ID,
				"conversationId": full.ConversationID,
			},
		})

		if full.HasAttachments {
			listed, err := u.graphService.ListMessageAttachments(ctx, inbox.EmailAddress, full.ID)
			if err != nil {
				return messageCount, attachmentCount, fmt.Errorf("list attachments for %s: %w", full.ID, err)
			}
			for _, a := range listed {
				if a.ID == "" || a.Name == "" {
					continue
				}
				if _, err := u.attachmentRepo.Upsert(repository.UpsertAttachmentParams{
					MessageID:         stored.ID,
					GraphAttachmentID: a.ID,
					Filename:          a.Name,
					MimeType:          a.ContentType,
					SizeBytes:         a.Size,
				}); err != nil {
					return messageCount, attachmentCount, err
				}
				attachmentCount++
			}
		}
	}

	// Persist only the final delta link of a fully paged run.
	if deltaLink != "" {
		if err := u.inboxRepo.UpsertCursor(inbox.ID, deltaLink); err != nil {
			return messageCount, attachmentCount, err
		}
	}
	return messageCount, attachmentCount, nil
}

// ensureCase auto-creates a review case on the thread's first message.
// Case creation is best effort and never blocks ingestion.
func (u *IngestionUsecase) ensureCase(thread *triagedomain.Thread, subject string) {
	if thread.CaseID != nil {
		return
	}

	title := subject
	if title == "" {
		title = triagedomain.CaseUntitledDefault
	}
	described := subject
	if described == "" {
		described = "No Subject"
	}

	newCase := &triagedomain.Case{
		Title:       title,
		Description: "Auto-created from thread: " + described,
		Status:      triagedomain.CaseStatusOpen,
		Priority:    triagedomain.CasePriorityMedium,
	}
	if err := u.caseRepo.Create(newCase); err != nil {
		log.Printf("[Ingestion] Failed to auto-create case for thread %s: %v", thread.ID, err)
		return
	}
	if err := u.threadRepo.AssignCase(thread.ID, newCase.ID); err != nil {
		log.Printf("[Ingestion] Failed to link case %s to thread %s: %v", newCase.ID, thread.ID, err)
		return
	}
	thread.CaseID = &newCase.ID
}

func parseGraphTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil
	}
	return &t
}

// wrapFromJSON mirrors the sender under both "sender" and "from" keys
// alongside the original fields, which older UI builds expect.
func wrapFromJSON(from interface{}) triagedomain.JSON {
	if from == nil {
		return nil
	}
	wrapped := map[string]interface{}{
		"sender": from,
		"from":   from,
	}
	if m, ok := from.(map[string]interface{}); ok {
		for k, v := range m {
			wrapped[k] = v
		}
	}
	return triagedomain.MustJSON(wrapped)
}
