package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log"
	"strings"
	"unicode/utf8"

	triagedomain "tdp-backend/internal/triage/domain"
	"tdp-backend/internal/triage/repository"
	"tdp-backend/pkg/openai"
)

// extractionTextCap bounds inline text attachments sent to the model.
const extractionTextCap = 30_000

const extractionSystemPrompt = `
You extract structured data from a SINGLE healthcare document attachment.
Return STRICT JSON only with keys: extracted, confidence.
- extracted must be a JSON object or null
- confidence is 0.0 to 1.0
If you cannot extract, return extracted=null and confidence low.
`

// ExtractionResult summarizes one extraction batch.
type ExtractionResult struct {
	Processed int `json:"processed"`
}

// ExtractionUsecase runs AI extraction over PENDING attachments. Each
// attachment is downloaded, hashed, routed to the right model input
// channel by type, and marked EXTRACTED or FAILED. A processed
// attachment is never revisited unless its bytes change.
type ExtractionUsecase struct {
	attachmentRepo repository.AttachmentRepository
	threadRepo     repository.ThreadRepository
	caseRepo       repository.CaseRepository
	auditRepo      repository.AuditLogRepository
	graphService   GraphService
	aiService      AIService
	model          string
}

// NewExtractionUsecase creates a new ExtractionUsecase
func NewExtractionUsecase(
	attachmentRepo repository.AttachmentRepository,
	threadRepo repository.ThreadRepository,
	caseRepo repository.CaseRepository,
	auditRepo repository.AuditLogRepository,
	graphService GraphService,
	aiService AIService,
	model string,
) *ExtractionUsecase {
	return &ExtractionUsecase{
		attachmentRepo: attachmentRepo,
		threadRepo:     threadRepo,
		caseRepo:       caseRepo,
		auditRepo:      auditRepo,
		graphService:   graphService,
		aiService:      aiService,
		model:          model,
	}
}

// Run processes up to limit PENDING attachments sequentially.
func (u *ExtractionUsecase) Run(ctx context.Context, limit int) (*ExtractionResult, error) {
	if limit <= 0 {
		limit = 10
	}
	ids, err := u.attachmentRepo.ListPendingIDs(limit)
	if err != nil {
		return nil, err
	}

	for _, id := range ids {
		if err := u.ProcessAttachment(ctx, id); err != nil {
			log.Printf("[Extraction] Error processing attachment %s: %v", id, err)
		}
	}
	return &ExtractionResult{Processed: len(ids)}, nil
}

// ProcessAttachment extracts one attachment end to end. Failures are
// recorded on the attachment row with the provider error verbatim; the
// returned error is for logging only.
func (u *ExtractionUsecase) ProcessAttachment(ctx context.Context, attachmentID string) error {
	att, err := u.attachmentRepo.FindWithContext(attachmentID)
	if err != nil {
		return err
	}
	if att == nil || att.Status != triagedomain.AttachmentStatusPending {
		return nil
	}
	if att.Message == nil {
		return nil
	}

	thread, err := u.threadRepo.FindByID(att.Message.ThreadID)
	if err != nil {
		return err
	}
	if thread == nil || thread.Inbox == nil {
		return nil
	}
	inboxUpn := thread.Inbox.EmailAddress

	file, err := u.graphService.DownloadAttachment(ctx, inboxUpn, att.Message.GraphMessageID, att.GraphAttachmentID)
	if err != nil {
		return u.fail(att, err.Error())
	}

	contentType := file.ContentType
	if contentType == "" && att.MimeType != nil {
		contentType = *att.MimeType
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	// Persist the hash before calling the model so a crash mid-flight
	// still leaves the dedup key behind.
	sum := sha256.Sum256(file.Bytes)
	hash := hex.EncodeToString(sum[:])
	if err := u.attachmentRepo.SetContentHash(att.ID, hash); err != nil {
		return err
	}

	req := openai.Request{
		Model:  u.model,
		System: extractionSystemPrompt,
		User:   string(triagedomain.MustJSON(map[string]string{"filename": file.Name, "contentType": contentType})),
	}
	switch {
	case isPDF(file.Name, contentType):
		req.PDFs = []openai.UploadFile{{Name: file.Name, Bytes: file.Bytes, ContentType: "application/pdf"}}
	case isImage(file.Name, contentType):
		imageType := contentType
		if !strings.HasPrefix(imageType, "image/") {
			imageType = "image/png"
		}
		req.Images = []openai.InlineImage{{
			Name:        file.Name,
			ContentType: imageType,
			DataURL:     openai.BytesToDataURL(file.Bytes, imageType),
		}}
	default:
		req.Texts = []openai.TextAttachment{{
			Name:        file.Name,
			ContentType: contentType,
			Text:        capUTF8(file.Bytes, extractionTextCap),
		}}
	}

	raw, err := u.aiService.CompleteJSON(ctx, req)
	if err != nil {
		return u.fail(att, err.Error())
	}

	var result struct {
		Extracted  json.RawMessage `json:"extracted"`
		Confidence float64         `json:"confidence"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return u.fail(att, "decode extraction result: "+err.Error())
	}

	extracted := triagedomain.JSON(result.Extracted)
	if len(result.Extracted) == 0 {
		extracted = triagedomain.JSON("null")
	}
	if err := u.attachmentRepo.MarkExtracted(att.ID, extracted); err != nil {
		return err
	}

	u.auditRepo.Append(triagedomain.AuditAIExtracted, repository.AuditContext{
		ThreadID:  att.Message.ThreadID,
		MessageID: att.MessageID,
		Payload: map[string]interface{}{
			"attachmentId": att.ID,
			"filename":     file.Name,
			"contentHash":  hash,
			"confidence":   result.Confidence,
		},
	})

	u.enrichCaseTitle(thread, result.Extracted)
	return nil
}

func (u *ExtractionUsecase) fail(att *triagedomain.Attachment, message string) error {
	if err := u.attachmentRepo.MarkFailed(att.ID, message); err != nil {
		return err
	}
	u.auditRepo.Append(triagedomain.AuditOpenAIError, repository.AuditContext{
		ThreadID:  att.Message.ThreadID,
		MessageID: att.MessageID,
		Payload: map[string]interface{}{
			"attachmentId": att.ID,
			"error":        message,
		},
	})
	return nil
}

// enrichCaseTitle renames the auto-created case after the patient when
// extraction finds a name and the title is still the default one.
func (u *ExtractionUsecase) enrichCaseTitle(thread *triagedomain.Thread, extracted json.RawMessage) {
	patientName := findPatientName(extracted)
	if patientName == "" || thread.CaseID == nil {
		return
	}

	c, err := u.caseRepo.FindByID(*thread.CaseID)
	if err != nil || c == nil {
		return
	}

	defaultTitle := thread.Subject
	if defaultTitle == "" {
		defaultTitle = triagedomain.CaseUntitledDefault
	}
	if c.Title != defaultTitle && c.Title != triagedomain.CaseUntitledDefault {
		return
	}

	c.Title = "Patient: " + patientName
	if c.Description != "" {
		c.Description += "\n\nIdentified Patient: " + patientName
	} else {
		c.Description = "Identified Patient: " + patientName
	}
	if err := u.caseRepo.Update(c); err != nil {
		log.Printf("[Extraction] Failed to enrich case %s: %v", c.ID, err)
	}
}

// findPatientName probes the common shapes extraction output uses for a
// patient name.
func findPatientName(extracted json.RawMessage) string {
	if len(extracted) == 0 {
		return ""
	}
	var doc map[string]interface{}
	if err := json.Unmarshal(extracted, &doc); err != nil {
		return ""
	}

	if patient, ok := doc["patient"].(map[string]interface{}); ok {
		if name, ok := patient["name"].(map[string]interface{}); ok {
			if full, ok := name["full"].(string); ok {
				return full
			}
		}
		if name, ok := patient["name"].(string); ok {
			return name
		}
	}
	if name, ok := doc["patientName"].(string); ok {
		return name
	}
	if name, ok := doc["name"].(string); ok {
		return name
	}
	return ""
}

func isPDF(name, contentType string) bool {
	return strings.EqualFold(contentType, "application/pdf") || strings.EqualFold(extOf(name), "pdf")
}

func isImage(name, contentType string) bool {
	if strings.HasPrefix(strings.ToLower(contentType), "image/") {
		return true
	}
	switch strings.ToLower(extOf(name)) {
	case "jpg", "jpeg", "png", "webp":
		return true
	}
	return false
}

func extOf(name string) string {
	if i := strings.LastIndex(name, "."); i >= 0 {
		return name[i+1:]
	}
	return ""
}

// capUTF8 decodes bytes as UTF-8 (lossy) and caps the rune count.
func capUTF8(raw []byte, maxChars int) string {
	text := string(raw)
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, "�")
	}
	runes := []rune(text)
	if len(runes) > maxChars {
		runes = runes[:maxChars]
	}
	return string(runes)
}
