package usecase

import (
	"context"
	"encoding/json"
	"time"

	"tdp-backend/pkg/graph"
	"tdp-backend/pkg/openai"
)

// GraphService is the mailbox provider surface the pipeline needs.
// Implemented by pkg/graph; faked in tests.
type GraphService interface {
	GetMessage(ctx context.Context, upn, messageID string) (*graph.Message, error)
	ListMessageAttachments(ctx context.Context, upn, messageID string) ([]graph.AttachmentListItem, error)
	DownloadAttachment(ctx context.Context, upn, messageID, attachmentID string) (*graph.FileContent, error)
	FetchDeltaAll(ctx context.Context, upn, deltaLink string) ([]graph.Message, string, error)
	FetchDeltaAllFrom(ctx context.Context, upn string, from time.Time) ([]graph.Message, string, error)
	CreateReplyDraft(ctx context.Context, upn, messageID, bodyHTML string) (*graph.Message, error)
	CreateMessageDraft(ctx context.Context, upn string, content graph.DraftContent) (*graph.Message, error)
	PatchDraft(ctx context.Context, upn, draftID string, patch graph.DraftPatch) error
	SendDraft(ctx context.Context, upn, draftID string) error
}

// AIService is the JSON-completion surface. Implemented by pkg/openai.
type AIService interface {
	CompleteJSON(ctx context.Context, req openai.Request) (json.RawMessage, error)
}
