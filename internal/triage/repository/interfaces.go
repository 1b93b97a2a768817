package repository

import (
	"time"

	"tdp-backend/internal/triage/domain"
)

// UpsertThreadParams identifies a thread by its natural key.
type UpsertThreadParams struct {
	InboxID             string
	GraphConversationID string
	Subject             string
	LastMessageAt       *time.Time
}

// UpsertMessageParams carries one synced mailbox message.
type UpsertMessageParams struct {
	ThreadID          string
	GraphMessageID    string
	InternetMessageID string
	FromJSON          domain.JSON
	ToJSON            domain.JSON
	CcJSON            domain.JSON
	Subject           string
	BodyPreview       string
	BodyHTML          string
	BodyText          string
	ReceivedAt        *time.Time
	SentAt            *time.Time
	HasAttachments    bool
}

// UpsertAttachmentParams carries one attachment stub.
type UpsertAttachmentParams struct {
	MessageID         string
	GraphAttachmentID string
	Filename          string
	MimeType          string
	SizeBytes         int64
}

// ThreadFilter narrows thread listings for the dashboard API.
type ThreadFilter struct {
	ProcessingStatus string
	Department       string
	NeedsReview      *bool
	Limit            int
}

// SLAOverview is the due/breached snapshot for unfinished threads.
type SLAOverview struct {
	Breached int64           `json:"breached"`
	DueSoon  []domain.Thread `json:"due_soon"`
}

// AuditContext carries the optional references of one audit entry.
// Empty strings are stored as NULL; Payload is marshalled to JSON.
type AuditContext struct {
	ThreadID    string
	MessageID   string
	DraftID     string
	ActorUserID string
	Payload     interface{}
}

type InboxRepository interface {
	Upsert(inbox *domain.Inbox) (*domain.Inbox, error)
	ListOperational() ([]domain.Inbox, error)
	FindByID(id string) (*domain.Inbox, error)
	GetCursor(inboxID string) (*domain.SyncCursor, error)
	UpsertCursor(inboxID, deltaLink string) error
}

type ThreadRepository interface {
	Upsert(params UpsertThreadParams) (*domain.Thread, error)
	FindByID(id string) (*domain.Thread, error)
	// FindForClassification preloads the inbox plus up to five messages
	// (oldest first is not assumed; messages come newest-first) with
	// their attachments.
	FindForClassification(id string) (*domain.Thread, error)
	FindWithLatestMessage(id string) (*domain.Thread, error)
	List(filter ThreadFilter) ([]domain.Thread, error)
	// ListClassifiable returns NEW threads none of whose attachments are
	// still PENDING, oldest first.
	ListClassifiable(limit int) ([]string, error)
	// ListDraftable returns CLASSIFIED threads without review flags or
	// existing drafts, least recently updated first.
	ListDraftable(limit int) ([]string, error)
	Save(thread *domain.Thread) error
	// SaveWithAudits persists the thread and appends the audit entries
	// recording the change in a single transaction.
	SaveWithAudits(thread *domain.Thread, audits []domain.AuditLog) error
	MarkClassified(threadID string, dept domain.Department, stage domain.Stage, needsReview bool, slaDueAt *time.Time) error
	MarkDrafted(threadID string, draftTypeSuggested domain.DraftType, responseRequired bool) error
	SetProcessingStatus(threadID string, status domain.ProcessingStatus) error
	SetNeedsReview(threadID string, needsReview bool) error
	AssignCase(threadID, caseID string) error
	// ChangeStageAndOwner applies the stage/ownership mutation and its
	// audit entries in a single transaction.
	ChangeStageAndOwner(threadID string, stage domain.Stage, ownerUserID string, audits []domain.AuditLog) error
	SLAStatus(now time.Time, dueWithin time.Duration) (*SLAOverview, error)
	MarkSLABreaches(now time.Time) (int64, error)
}

type MessageRepository interface {
	Upsert(params UpsertMessageParams) (*domain.EmailMessage, error)
	LatestForThread(threadID string) (*domain.EmailMessage, error)
}

type AttachmentRepository interface {
	Upsert(params UpsertAttachmentParams) (*domain.Attachment, error)
	ListPendingIDs(limit int) ([]string, error)
	// FindWithContext preloads the owning message; callers resolve the
	// thread and mailbox from its ThreadID.
	FindWithContext(id string) (*domain.Attachment, error)
	SetContentHash(id, hash string) error
	MarkExtracted(id string, extracted domain.JSON) error
	MarkFailed(id, message string) error
	ListExtractedForThread(threadID string, limit int) ([]domain.Attachment, error)
	ListExtractedForMessage(messageID string) ([]domain.Attachment, error)
}

type DraftRepository interface {
	Create(draft *domain.Draft) error
	FindByID(id string) (*domain.Draft, error)
	LatestForThread(threadID string) (*domain.Draft, error)
	LatestVersion(threadID string, draftType domain.DraftType) (*domain.Draft, error)
	Chain(threadID string, draftType domain.DraftType) ([]domain.Draft, error)
	ListByThread(threadID string) ([]domain.Draft, error)
	UpdateContent(draft *domain.Draft) error
	UpdateStatus(id string, status domain.DraftStatus) error
	// LinkGraphDraftID is idempotent: linking the same id to the same
	// draft succeeds, linking an id already held by another draft
	// reports false without violating uniqueness.
	LinkGraphDraftID(draftID, graphDraftMessageID string) (bool, error)
	// CreateNextVersion clears the Graph draft id on the current version
	// and inserts the next version holding it, in one transaction.
	CreateNextVersion(currentID string, next *domain.Draft) error
	// MarkSentAndAssignOwner flips the draft to SENT and hands thread
	// ownership to the sending actor, in one transaction.
	MarkSentAndAssignOwner(draftID, threadID, actorUserID string) error
}

type EscalationRepository interface {
	FindByThreadAndDepartment(threadID string, dept domain.Department) (*domain.Escalation, error)
	Create(escalation *domain.Escalation) error
}

type AuditLogRepository interface {
	Append(action domain.AuditAction, ctx AuditContext) error
	ListByThread(threadID string, limit int) ([]domain.AuditLog, error)
}

type CaseRepository interface {
	Create(c *domain.Case) error
	FindByID(id string) (*domain.Case, error)
	List(limit int) ([]domain.Case, error)
	Update(c *domain.Case) error
}

type NoteRepository interface {
	Create(note *domain.Note) error
	ListByThread(threadID string) ([]domain.Note, error)
}
