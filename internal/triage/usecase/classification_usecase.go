package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	triagedomain "tdp-backend/internal/triage/domain"
	"tdp-backend/internal/triage/repository"
	"tdp-backend/pkg/openai"
)

// Context caps keep the model prompt bounded regardless of thread size.
const (
	classifyLatestPreviewCap = 2000
	classifyLatestBodyCap    = 12000
	classifyOlderPreviewCap  = 1500
	classifyMaxOlderMessages = 2
	classifyMaxAttachments   = 8
	classifyExtractedCap     = 6000

	// Below this confidence the thread is flagged for human review.
	classifyReviewThreshold = 0.75
)

const classificationSystemPrompt = `
You classify healthcare operations email threads.
Return STRICT JSON only.

Choose One Single Department:
- STAFFING
- CASE_MANAGEMENT
- BILLING

Choose a VALID STAGE BY DEPARTMENT (you MUST follow this):
- If Department = STAFFING, stage MUST be one of:
  OPEN_PENDING, REQUEST_CONTACT_INFO, CONTACT_INFO_SENT, PROVIDER_SCHEDULED, STAFFED
- If Department = CASE_MANAGEMENT, stage MUST be one of:
  FOLLOWING_UP, COMPLETE
- If Department = BILLING, stage MUST be one of:
  FOLLOWING_UP, COMPLETE

You may receive "extractedAttachments" which contain previously extracted structured data.
Use that extracted content heavily if email body is sparse.

Output JSON schema:
{
  "department": "STAFFING|CASE_MANAGEMENT|BILLING",
  "stage": "<VALID_STAGE_FOR_DEPARTMENT>",
  "confidence": 0.0-1.0,
  "responseRequired": true|false,
  "draftTypeSuggested": "<string|null>"
}

Rules:
- Pick exactly ONE department and ONE valid stage.
- Do not invent values or choose stages that are not listed for that department.
- FOLLOWING_UP is not a valid stage for Staffing Department.
`

// ClassificationResult summarizes one classification batch.
type ClassificationResult struct {
	Classified int `json:"classified"`
}

// ClassificationUsecase assigns department and stage to NEW threads. A
// thread is only eligible once none of its attachments are PENDING, so
// extraction output is always available as context.
type ClassificationUsecase struct {
	threadRepo     repository.ThreadRepository
	attachmentRepo repository.AttachmentRepository
	noteRepo       repository.NoteRepository
	auditRepo      repository.AuditLogRepository
	aiService      AIService
	model          string
}

// NewClassificationUsecase creates a new ClassificationUsecase
func NewClassificationUsecase(
	threadRepo repository.ThreadRepository,
	attachmentRepo repository.AttachmentRepository,
	noteRepo repository.NoteRepository,
	auditRepo repository.AuditLogRepository,
	aiService AIService,
	model string,
) *ClassificationUsecase {
	return &ClassificationUsecase{
		threadRepo:     threadRepo,
		attachmentRepo: attachmentRepo,
		noteRepo:       noteRepo,
		auditRepo:      auditRepo,
		aiService:      aiService,
		model:          model,
	}
}

// Run classifies up to limit eligible threads.
func (u *ClassificationUsecase) Run(ctx context.Context, limit int) (*ClassificationResult, error) {
	if limit <= 0 {
		limit = 10
	}
	ids, err := u.threadRepo.ListClassifiable(limit)
	if err != nil {
		return nil, err
	}

	classified := 0
	for _, id := range ids {
		if err := u.ClassifyThread(ctx, id); err != nil {
			log.Printf("[Classification] Error classifying thread %s: %v", id, err)
			continue
		}
		classified++
	}
	return &ClassificationResult{Classified: classified}, nil
}

// ClassifyThread classifies a single thread. No-op when the thread is
// not NEW or still has PENDING attachments.
func (u *ClassificationUsecase) ClassifyThread(ctx context.Context, threadID string) error {
	thread, err := u.threadRepo.FindForClassification(threadID)
	if err != nil {
		return err
	}
	if thread == nil || thread.Inbox == nil {
		return nil
	}
	if thread.ProcessingStatus != triagedomain.ProcessingStatusNew {
		return nil
	}
	for _, m := range thread.Messages {
		for _, a := range m.Attachments {
			if a.Status == triagedomain.AttachmentStatusPending {
				return nil
			}
		}
	}
	if len(thread.Messages) == 0 {
		return nil
	}

	// Latest message in full, up to two older ones as previews only.
	latest := thread.Messages[0]
	older := thread.Messages[1:]
	if len(older) > classifyMaxOlderMessages {
		older = older[:classifyMaxOlderMessages]
	}

	messagesCtx := []map[string]interface{}{{
		"graphMessageId": latest.GraphMessageID,
		"from":           json.RawMessage(orNullJSON(latest.FromJSON)),
		"subject":        latest.Subject,
		"preview":        capString(latest.BodyPreview, classifyLatestPreviewCap),
		"bodyHtml":       capString(latest.BodyHTML, classifyLatestBodyCap),
		"bodyText":       capString(latest.BodyText, classifyLatestBodyCap),
		"hasAttachments": latest.HasAttachments,
	}}
	for _, m := range older {
		messagesCtx = append(messagesCtx, map[string]interface{}{
			"graphMessageId": m.GraphMessageID,
			"from":           json.RawMessage(orNullJSON(m.FromJSON)),
			"subject":        m.Subject,
			"preview":        capString(m.BodyPreview, classifyOlderPreviewCap),
			"bodyHtml":       nil,
			"bodyText":       nil,
			"hasAttachments": m.HasAttachments,
		})
	}

	extracted, err := u.attachmentRepo.ListExtractedForThread(thread.ID, classifyMaxAttachments)
	if err != nil {
		return err
	}
	extractedCtx := make([]map[string]interface{}, 0, len(extracted))
	for _, a := range extracted {
		var messageGraphID string
		if a.Message != nil {
			messageGraphID = a.Message.GraphMessageID
		}
		extractedCtx = append(extractedCtx, map[string]interface{}{
			"messageGraphId":    messageGraphID,
			"graphAttachmentId": a.GraphAttachmentID,
			"filename":          a.Filename,
			"contentType":       a.MimeType,
			"extracted":         shrinkExtractedJSON(a.ExtractedJSON, classifyExtractedCap),
		})
	}

	user := triagedomain.MustJSON(map[string]interface{}{
		"thread": map[string]interface{}{
			"id":      thread.ID,
			"inbox":   thread.Inbox.EmailAddress,
			"subject": thread.Subject,
		},
		"messages":             messagesCtx,
		"extractedAttachments": extractedCtx,
	})

	raw, err := u.aiService.CompleteJSON(ctx, openai.Request{
		Model:  u.model,
		System: classificationSystemPrompt,
		User:   string(user),
	})
	if err != nil {
		u.auditRepo.Append(triagedomain.AuditOpenAIError, repository.AuditContext{
			ThreadID: thread.ID,
			Payload:  map[string]interface{}{"reason": "CLASSIFY_FAILED", "message": err.Error()},
		})
		return err
	}

	var result struct {
		Department         string  `json:"department"`
		Stage              string  `json:"stage"`
		Confidence         float64 `json:"confidence"`
		ResponseRequired   *bool   `json:"responseRequired"`
		DraftTypeSuggested *string `json:"draftTypeSuggested"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return fmt.Errorf("decode classification result: %w", err)
	}

	// Hard validation: reject anything outside the fixed taxonomy.
	dept, err := triagedomain.AssertDepartment(result.Department)
	if err != nil {
		return err
	}
	stage, err := triagedomain.AssertStage(dept, result.Stage)
	if err != nil {
		return err
	}

	needsReview := result.Confidence < classifyReviewThreshold
	slaDueAt := time.Now().Add(time.Duration(triagedomain.SLAHoursByDepartment[dept]) * time.Hour)
	if err := u.threadRepo.MarkClassified(thread.ID, dept, stage, needsReview, &slaDueAt); err != nil {
		return err
	}

	responseRequired := true
	if result.ResponseRequired != nil {
		responseRequired = *result.ResponseRequired
	}
	u.auditRepo.Append(triagedomain.AuditAIClassified, repository.AuditContext{
		ThreadID: thread.ID,
		Payload: map[string]interface{}{
			"department":               dept,
			"stage":                    stage,
			"confidence":               result.Confidence,
			"responseRequired":         responseRequired,
			"draftTypeSuggested":       result.DraftTypeSuggested,
			"extractedAttachmentCount": len(extractedCtx),
		},
	})

	note := &triagedomain.Note{
		ThreadID:    thread.ID,
		Description: fmt.Sprintf("[AI] Classified thread as %s / %s", dept, strings.ReplaceAll(string(stage), "_", " ")),
	}
	if err := u.noteRepo.Create(note); err != nil {
		log.Printf("[Classification] Failed to create note for thread %s: %v", thread.ID, err)
	}
	return nil
}

// shrinkExtractedJSON keeps attachment payloads small in the prompt.
// Oversized documents are replaced by a truncation marker with a preview.
func shrinkExtractedJSON(v triagedomain.JSON, maxChars int) interface{} {
	if len(v) == 0 {
		return nil
	}
	if len(v) <= maxChars {
		return json.RawMessage(v)
	}
	return map[string]interface{}{
		"truncated": true,
		"preview":   capUTF8(v, maxChars),
	}
}

func capString(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return capUTF8([]byte(s), max)
}

func orNullJSON(v triagedomain.JSON) []byte {
	if len(v) == 0 {
		return []byte("null")
	}
	return v
}
