package dto

import "encoding/json"

type RunRequest struct {
	ThreadID string `json:"thread_id"`
}

type ChangeStageRequest struct {
	Stage string `json:"stage" binding:"required"`
}

type UpdateThreadRequest struct {
	Department  *string         `json:"department"`
	Stage       *string         `json:"stage"`
	OwnerUserID *string         `json:"owner_user_id"`
	Metadata    json.RawMessage `json:"metadata"`
}

type EditDraftRequest struct {
	Subject  string   `json:"subject"`
	BodyHTML string   `json:"body_html"`
	To       []string `json:"to"`
	Cc       []string `json:"cc"`
}

type TriggerEscalationRequest struct {
	ThreadID string `json:"thread_id" binding:"required"`
	Reason   string `json:"reason" binding:"required"`
}

type CreateNoteRequest struct {
	Description string `json:"description" binding:"required"`
}
