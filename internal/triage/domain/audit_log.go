package domain

import "time"

// AuditAction identifies what an audit entry records.
type AuditAction string

const (
	AuditGraphIngestedMessage AuditAction = "GRAPH_INGESTED_MESSAGE"
	AuditGraphCreatedDraft    AuditAction = "GRAPH_CREATED_DRAFT"
	AuditGraphSentDraft       AuditAction = "GRAPH_SENT_DRAFT"
	AuditGraphError           AuditAction = "GRAPH_ERROR"
	AuditAIExtracted          AuditAction = "AI_EXTRACTED"
	AuditAIClassified         AuditAction = "AI_CLASSIFIED"
	AuditAIDrafted            AuditAction = "AI_DRAFTED"
	AuditOpenAIError          AuditAction = "OPENAI_ERROR"
	AuditDraftCreated         AuditAction = "DRAFT_CREATED"
	AuditDraftEdited          AuditAction = "DRAFT_EDITED"
	AuditDraftApproved        AuditAction = "DRAFT_APPROVED"
	AuditDraftSent            AuditAction = "DRAFT_SENT"
	AuditDraftDiscarded       AuditAction = "DRAFT_DISCARDED"
	AuditStageChanged         AuditAction = "STAGE_CHANGED"
	AuditOwnerChanged         AuditAction = "OWNER_CHANGED"
	AuditMetadataUpdated      AuditAction = "METADATA_UPDATED"
	AuditEscalationTriggered  AuditAction = "ESCALATION_TRIGGERED"
)

// AuditLog is append-only. Rows are never updated or deleted. A nil
// actor means the system itself acted.
type AuditLog struct {
	ID          string      `json:"id" gorm:"primaryKey"`
	Action      AuditAction `json:"action" gorm:"index;not null"`
	ThreadID    *string     `json:"thread_id" gorm:"index"`
	MessageID   *string     `json:"message_id"`
	DraftID     *string     `json:"draft_id"`
	ActorUserID *string     `json:"actor_user_id"`
	Payload     JSON        `json:"payload" gorm:"type:jsonb"`
	CreatedAt   time.Time   `json:"created_at"`
}
