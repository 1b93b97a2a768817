package delivery

import (
	"errors"
	"net/http"

	authdomain "tdp-backend/internal/auth/domain"
	triagedomain "tdp-backend/internal/triage/domain"
	"tdp-backend/internal/triage/dto"
	"tdp-backend/internal/triage/repository"
	"tdp-backend/internal/triage/usecase"

	"github.com/gin-gonic/gin"
)

// TriageHandler exposes the pipeline trigger endpoints and the review
// surface (threads, drafts, notes, SLA, escalations).
type TriageHandler struct {
	ingestionUc      *usecase.IngestionUsecase
	extractionUc     *usecase.ExtractionUsecase
	classificationUc *usecase.ClassificationUsecase
	draftUc          *usecase.DraftUsecase
	draftActionsUc   *usecase.DraftActionsUsecase
	escalationUc     *usecase.EscalationUsecase
	stageUc          *usecase.StageUsecase
	slaUc            *usecase.SLAUsecase

	threadRepo     repository.ThreadRepository
	draftRepo      repository.DraftRepository
	attachmentRepo repository.AttachmentRepository
	auditRepo      repository.AuditLogRepository
	noteRepo       repository.NoteRepository
	caseRepo       repository.CaseRepository

	graphService usecase.GraphService
}

// NewTriageHandler creates a new TriageHandler
func NewTriageHandler(
	ingestionUc *usecase.IngestionUsecase,
	extractionUc *usecase.ExtractionUsecase,
	classificationUc *usecase.ClassificationUsecase,
	draftUc *usecase.DraftUsecase,
	draftActionsUc *usecase.DraftActionsUsecase,
	escalationUc *usecase.EscalationUsecase,
	stageUc *usecase.StageUsecase,
	slaUc *usecase.SLAUsecase,
	threadRepo repository.ThreadRepository,
	draftRepo repository.DraftRepository,
	attachmentRepo repository.AttachmentRepository,
	auditRepo repository.AuditLogRepository,
	noteRepo repository.NoteRepository,
	caseRepo repository.CaseRepository,
	graphService usecase.GraphService,
) *TriageHandler {
	return &TriageHandler{
		ingestionUc:      ingestionUc,
		extractionUc:     extractionUc,
		classificationUc: classificationUc,
		draftUc:          draftUc,
		draftActionsUc:   draftActionsUc,
		escalationUc:     escalationUc,
		stageUc:          stageUc,
		slaUc:            slaUc,
		threadRepo:       threadRepo,
		draftRepo:        draftRepo,
		attachmentRepo:   attachmentRepo,
		auditRepo:        auditRepo,
		noteRepo:         noteRepo,
		caseRepo:         caseRepo,
		graphService:     graphService,
	}
}

func actorID(c *gin.Context) string {
	value, exists := c.Get("user")
	if !exists {
		return ""
	}
	if user, ok := value.(*authdomain.User); ok {
		return user.ID
	}
	return ""
}

// RunIngest triggers one sync pass across all shared inboxes.
func (h *TriageHandler) RunIngest(c *gin.Context) {
	result, err := h.ingestionUc.Run(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

// RunExtract triggers one extraction batch.
func (h *TriageHandler) RunExtract(c *gin.Context) {
	result, err := h.extractionUc.Run(c.Request.Context(), 10)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

// RunClassify triggers a classification batch, or a single thread when
// thread_id is given.
func (h *TriageHandler) RunClassify(c *gin.Context) {
	var req dto.RunRequest
	_ = c.ShouldBindJSON(&req)

	if req.ThreadID != "" {
		if err := h.classificationUc.ClassifyThread(c.Request.Context(), req.ThreadID); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
		return
	}

	result, err := h.classificationUc.Run(c.Request.Context(), 10)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

// RunDraft triggers a draft batch, or a single thread when thread_id is
// given. The single-thread path also drafts threads flagged for review.
func (h *TriageHandler) RunDraft(c *gin.Context) {
	var req dto.RunRequest
	_ = c.ShouldBindJSON(&req)

	if req.ThreadID != "" {
		if err := h.draftUc.CreateDraftForThread(c.Request.Context(), req.ThreadID); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
		return
	}

	result, err := h.draftUc.Run(c.Request.Context(), 10)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *TriageHandler) TriggerEscalation(c *gin.Context) {
	var req dto.TriggerEscalationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	outcome, err := h.escalationUc.Trigger(c.Request.Context(), req.ThreadID, req.Reason, actorID(c))
	if err != nil {
		if errors.Is(err, usecase.ErrThreadNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, outcome)
}

func (h *TriageHandler) ListThreads(c *gin.Context) {
	var needsReview *bool
	switch c.Query("needs_review") {
	case "true":
		v := true
		needsReview = &v
	case "false":
		v := false
		needsReview = &v
	}

	threads, err := h.threadRepo.List(repository.ThreadFilter{
		ProcessingStatus: c.Query("processing_status"),
		Department:       c.Query("department"),
		NeedsReview:      needsReview,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, threads)
}

func (h *TriageHandler) GetThread(c *gin.Context) {
	thread, err := h.threadRepo.FindForClassification(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if thread == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "thread not found"})
		return
	}
	c.JSON(http.StatusOK, thread)
}

func (h *TriageHandler) ChangeStage(c *gin.Context) {
	var req dto.ChangeStageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.stageUc.ChangeStage(c.Request.Context(), c.Param("id"), req.Stage, actorID(c)); err != nil {
		if errors.Is(err, usecase.ErrThreadNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// UpdateThread patches department, stage, owner, or free-form metadata.
// A department change without a stage resets the stage to the new
// department's first stage.
func (h *TriageHandler) UpdateThread(c *gin.Context) {
	var req dto.UpdateThreadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	thread, err := h.stageUc.UpdateThread(c.Request.Context(), c.Param("id"), usecase.ThreadPatch{
		Department:  req.Department,
		Stage:       req.Stage,
		OwnerUserID: req.OwnerUserID,
		Metadata:    triagedomain.JSON(req.Metadata),
	}, actorID(c))
	if err != nil {
		if errors.Is(err, usecase.ErrThreadNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, thread)
}

func (h *TriageHandler) ListThreadDrafts(c *gin.Context) {
	drafts, err := h.draftRepo.ListByThread(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, drafts)
}

func (h *TriageHandler) ListThreadAudit(c *gin.Context) {
	entries, err := h.auditRepo.ListByThread(c.Param("id"), 100)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, entries)
}

func (h *TriageHandler) ListThreadNotes(c *gin.Context) {
	notes, err := h.noteRepo.ListByThread(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, notes)
}

func (h *TriageHandler) CreateThreadNote(c *gin.Context) {
	var req dto.CreateNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	note := &triagedomain.Note{
		ThreadID:    c.Param("id"),
		Description: req.Description,
	}
	if actor := actorID(c); actor != "" {
		note.CreatedByUserID = &actor
	}
	if err := h.noteRepo.Create(note); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, note)
}

func (h *TriageHandler) EditDraft(c *gin.Context) {
	var req dto.EditDraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.draftActionsUc.EditDraft(c.Request.Context(), c.Param("id"), actorID(c), usecase.DraftEditPatch{
		Subject:  req.Subject,
		BodyHTML: req.BodyHTML,
		To:       req.To,
		Cc:       req.Cc,
	})
	if err != nil {
		h.draftActionError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *TriageHandler) ApproveDraft(c *gin.Context) {
	if err := h.draftActionsUc.ApproveDraft(c.Request.Context(), c.Param("id"), actorID(c)); err != nil {
		h.draftActionError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *TriageHandler) SendDraft(c *gin.Context) {
	if err := h.draftActionsUc.SendApprovedDraft(c.Request.Context(), c.Param("id"), actorID(c)); err != nil {
		h.draftActionError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *TriageHandler) DiscardDraft(c *gin.Context) {
	if err := h.draftActionsUc.DiscardDraft(c.Request.Context(), c.Param("id"), actorID(c)); err != nil {
		h.draftActionError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *TriageHandler) draftActionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, usecase.ErrDraftNotFound), errors.Is(err, usecase.ErrThreadNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, usecase.ErrSendNotAllowed), errors.Is(err, usecase.ErrSendNotApproved), errors.Is(err, usecase.ErrDraftNotLinked):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func (h *TriageHandler) GetSLA(c *gin.Context) {
	overview, err := h.slaUc.Overview(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, overview)
}

func (h *TriageHandler) ListCases(c *gin.Context) {
	cases, err := h.caseRepo.List(0)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, cases)
}

// DownloadAttachment streams the attachment bytes straight from the
// mailbox; nothing is stored locally.
func (h *TriageHandler) DownloadAttachment(c *gin.Context) {
	att, err := h.attachmentRepo.FindWithContext(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if att == nil || att.Message == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "attachment not found"})
		return
	}

	thread, err := h.threadRepo.FindByID(att.Message.ThreadID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if thread == nil || thread.Inbox == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "thread not found"})
		return
	}

	file, err := h.graphService.DownloadAttachment(c.Request.Context(), thread.Inbox.EmailAddress, att.Message.GraphMessageID, att.GraphAttachmentID)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	contentType := file.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Content-Disposition", `attachment; filename="`+file.Name+`"`)
	c.Data(http.StatusOK, contentType, file.Bytes)
}
