package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	triagedomain "tdp-backend/internal/triage/domain"
	"tdp-backend/internal/triage/repository"
	"tdp-backend/pkg/graph"
	"tdp-backend/pkg/openai"
)

// In-memory fakes for the repository and provider interfaces. They
// enforce the same uniqueness rules as the real implementations so the
// idempotency paths are exercised for real.

type fakeInboxRepo struct {
	inboxes []*triagedomain.Inbox
	cursors map[string]*triagedomain.SyncCursor
	seq     int
}

func newFakeInboxRepo() *fakeInboxRepo {
	return &fakeInboxRepo{cursors: map[string]*triagedomain.SyncCursor{}}
}

func (f *fakeInboxRepo) Upsert(inbox *triagedomain.Inbox) (*triagedomain.Inbox, error) {
	for _, existing := range f.inboxes {
		if existing.EmailAddress == inbox.EmailAddress && existing.IsEscalation == inbox.IsEscalation {
			existing.Key = inbox.Key
			return existing, nil
		}
	}
	f.seq++
	inbox.ID = fmt.Sprintf("inbox-%d", f.seq)
	f.inboxes = append(f.inboxes, inbox)
	return inbox, nil
}

func (f *fakeInboxRepo) ListOperational() ([]triagedomain.Inbox, error) {
	var out []triagedomain.Inbox
	for _, in := range f.inboxes {
		if !in.IsEscalation {
			out = append(out, *in)
		}
	}
	return out, nil
}

func (f *fakeInboxRepo) FindByID(id string) (*triagedomain.Inbox, error) {
	for _, in := range f.inboxes {
		if in.ID == id {
			return in, nil
		}
	}
	return nil, nil
}

func (f *fakeInboxRepo) GetCursor(inboxID string) (*triagedomain.SyncCursor, error) {
	return f.cursors[inboxID], nil
}

func (f *fakeInboxRepo) UpsertCursor(inboxID, deltaLink string) error {
	now := time.Now()
	f.cursors[inboxID] = &triagedomain.SyncCursor{InboxID: inboxID, DeltaLink: deltaLink, LastSyncAt: &now}
	return nil
}

type fakeThreadRepo struct {
	threads map[string]*triagedomain.Thread
	audits  []triagedomain.AuditLog
	seq     int
}

func newFakeThreadRepo() *fakeThreadRepo {
	return &fakeThreadRepo{threads: map[string]*triagedomain.Thread{}}
}

func (f *fakeThreadRepo) add(t *triagedomain.Thread) *triagedomain.Thread {
	if t.ID == "" {
		f.seq++
		t.ID = fmt.Sprintf("thread-%d", f.seq)
	}
	f.threads[t.ID] = t
	return t
}

func (f *fakeThreadRepo) Upsert(params repository.UpsertThreadParams) (*triagedomain.Thread, error) {
	for _, t := range f.threads {
		if t.InboxID == params.InboxID && t.GraphConversationID == params.GraphConversationID {
			if params.LastMessageAt != nil {
				t.LastMessageAt = params.LastMessageAt
			}
			return t, nil
		}
	}
	return f.add(&triagedomain.Thread{
		InboxID:             params.InboxID,
		GraphConversationID: params.GraphConversationID,
		Subject:             params.Subject,
		Department:          triagedomain.DepartmentStaffing,
		Stage:               triagedomain.StageOpenPending,
		ProcessingStatus:    triagedomain.ProcessingStatusNew,
		LastMessageAt:       params.LastMessageAt,
	}), nil
}

func (f *fakeThreadRepo) FindByID(id string) (*triagedomain.Thread, error) {
	return f.threads[id], nil
}

func (f *fakeThreadRepo) FindForClassification(id string) (*triagedomain.Thread, error) {
	return f.threads[id], nil
}

func (f *fakeThreadRepo) FindWithLatestMessage(id string) (*triagedomain.Thread, error) {
	return f.threads[id], nil
}

func (f *fakeThreadRepo) List(filter repository.ThreadFilter) ([]triagedomain.Thread, error) {
	var out []triagedomain.Thread
	for _, t := range f.threads {
		out = append(out, *t)
	}
	return out, nil
}

func (f *fakeThreadRepo) ListClassifiable(limit int) ([]string, error) {
	var ids []string
	for id, t := range f.threads {
		if t.ProcessingStatus == triagedomain.ProcessingStatusNew {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (f *fakeThreadRepo) ListDraftable(limit int) ([]string, error) {
	var ids []string
	for id, t := range f.threads {
		if t.ProcessingStatus == triagedomain.ProcessingStatusClassified && !t.NeedsReview {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (f *fakeThreadRepo) Save(thread *triagedomain.Thread) error {
	f.threads[thread.ID] = thread
	return nil
}

func (f *fakeThreadRepo) SaveWithAudits(thread *triagedomain.Thread, audits []triagedomain.AuditLog) error {
	f.threads[thread.ID] = thread
	f.audits = append(f.audits, audits...)
	return nil
}

func (f *fakeThreadRepo) MarkClassified(threadID string, dept triagedomain.Department, stage triagedomain.Stage, needsReview bool, slaDueAt *time.Time) error {
	t := f.threads[threadID]
	t.Department = dept
	t.Stage = stage
	t.ProcessingStatus = triagedomain.ProcessingStatusClassified
	t.NeedsReview = needsReview
	t.SLADueAt = slaDueAt
	return nil
}

func (f *fakeThreadRepo) MarkDrafted(threadID string, draftTypeSuggested triagedomain.DraftType, responseRequired bool) error {
	t := f.threads[threadID]
	suggested := string(draftTypeSuggested)
	t.ProcessingStatus = triagedomain.ProcessingStatusDrafted
	t.DraftTypeSuggested = &suggested
	t.ResponseRequired = &responseRequired
	return nil
}

func (f *fakeThreadRepo) SetProcessingStatus(threadID string, status triagedomain.ProcessingStatus) error {
	f.threads[threadID].ProcessingStatus = status
	return nil
}

func (f *fakeThreadRepo) SetNeedsReview(threadID string, needsReview bool) error {
	f.threads[threadID].NeedsReview = needsReview
	return nil
}

func (f *fakeThreadRepo) AssignCase(threadID, caseID string) error {
	f.threads[threadID].CaseID = &caseID
	return nil
}

func (f *fakeThreadRepo) ChangeStageAndOwner(threadID string, stage triagedomain.Stage, ownerUserID string, audits []triagedomain.AuditLog) error {
	t := f.threads[threadID]
	t.Stage = stage
	t.OwnerUserID = &ownerUserID
	f.audits = append(f.audits, audits...)
	return nil
}

func (f *fakeThreadRepo) SLAStatus(now time.Time, dueWithin time.Duration) (*repository.SLAOverview, error) {
	overview := &repository.SLAOverview{}
	for _, t := range f.threads {
		if t.SLADueAt == nil {
			continue
		}
		if t.SLADueAt.Before(now) {
			overview.Breached++
		} else if t.SLADueAt.Before(now.Add(dueWithin)) {
			overview.DueSoon = append(overview.DueSoon, *t)
		}
	}
	return overview, nil
}

func (f *fakeThreadRepo) MarkSLABreaches(now time.Time) (int64, error) {
	var marked int64
	for _, t := range f.threads {
		if t.SLADueAt != nil && t.SLADueAt.Before(now) && t.SLABreachedAt == nil {
			stamp := now
			t.SLABreachedAt = &stamp
			marked++
		}
	}
	return marked, nil
}

type fakeMessageRepo struct {
	messages []*triagedomain.EmailMessage
	seq      int
}

func (f *fakeMessageRepo) Upsert(params repository.UpsertMessageParams) (*triagedomain.EmailMessage, error) {
	for _, m := range f.messages {
		if m.GraphMessageID == params.GraphMessageID {
			m.Subject = params.Subject
			m.BodyPreview = params.BodyPreview
			return m, nil
		}
	}
	f.seq++
	msg := &triagedomain.EmailMessage{
		ID:             fmt.Sprintf("msg-%d", f.seq),
		ThreadID:       params.ThreadID,
		GraphMessageID: params.GraphMessageID,
		FromJSON:       params.FromJSON,
		ToJSON:         params.ToJSON,
		CcJSON:         params.CcJSON,
		Subject:        params.Subject,
		BodyPreview:    params.BodyPreview,
		BodyHTML:       params.BodyHTML,
		BodyText:       params.BodyText,
		ReceivedAt:     params.ReceivedAt,
		HasAttachments: params.HasAttachments,
	}
	f.messages = append(f.messages, msg)
	return msg, nil
}

func (f *fakeMessageRepo) LatestForThread(threadID string) (*triagedomain.EmailMessage, error) {
	var latest *triagedomain.EmailMessage
	for _, m := range f.messages {
		if m.ThreadID != threadID {
			continue
		}
		if latest == nil || (m.ReceivedAt != nil && latest.ReceivedAt != nil && m.ReceivedAt.After(*latest.ReceivedAt)) {
			latest = m
		}
	}
	return latest, nil
}

type fakeAttachmentRepo struct {
	attachments []*triagedomain.Attachment
	seq         int
}

func (f *fakeAttachmentRepo) add(a *triagedomain.Attachment) *triagedomain.Attachment {
	if a.ID == "" {
		f.seq++
		a.ID = fmt.Sprintf("att-%d", f.seq)
	}
	f.attachments = append(f.attachments, a)
	return a
}

func (f *fakeAttachmentRepo) Upsert(params repository.UpsertAttachmentParams) (*triagedomain.Attachment, error) {
	for _, a := range f.attachments {
		if a.MessageID == params.MessageID && a.GraphAttachmentID == params.GraphAttachmentID {
			return a, nil
		}
	}
	att := &triagedomain.Attachment{
		MessageID:         params.MessageID,
		GraphAttachmentID: params.GraphAttachmentID,
		Filename:          params.Filename,
		Status:            triagedomain.AttachmentStatusPending,
	}
	if params.MimeType != "" {
		att.MimeType = &params.MimeType
	}
	return f.add(att), nil
}

func (f *fakeAttachmentRepo) ListPendingIDs(limit int) ([]string, error) {
	var ids []string
	for _, a := range f.attachments {
		if a.Status == triagedomain.AttachmentStatusPending {
			ids = append(ids, a.ID)
		}
	}
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (f *fakeAttachmentRepo) FindWithContext(id string) (*triagedomain.Attachment, error) {
	for _, a := range f.attachments {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, nil
}

func (f *fakeAttachmentRepo) SetContentHash(id, hash string) error {
	a, _ := f.FindWithContext(id)
	a.ContentHash = &hash
	return nil
}

func (f *fakeAttachmentRepo) MarkExtracted(id string, extracted triagedomain.JSON) error {
	a, _ := f.FindWithContext(id)
	a.Status = triagedomain.AttachmentStatusExtracted
	a.ExtractedJSON = extracted
	a.LastError = nil
	return nil
}

func (f *fakeAttachmentRepo) MarkFailed(id, message string) error {
	a, _ := f.FindWithContext(id)
	a.Status = triagedomain.AttachmentStatusFailed
	a.LastError = &message
	return nil
}

func (f *fakeAttachmentRepo) ListExtractedForThread(threadID string, limit int) ([]triagedomain.Attachment, error) {
	var out []triagedomain.Attachment
	for _, a := range f.attachments {
		if a.Status == triagedomain.AttachmentStatusExtracted && a.Message != nil && a.Message.ThreadID == threadID {
			out = append(out, *a)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeAttachmentRepo) ListExtractedForMessage(messageID string) ([]triagedomain.Attachment, error) {
	var out []triagedomain.Attachment
	for _, a := range f.attachments {
		if a.Status == triagedomain.AttachmentStatusExtracted && a.MessageID == messageID {
			out = append(out, *a)
		}
	}
	return out, nil
}

type fakeDraftRepo struct {
	drafts     []*triagedomain.Draft
	threadRepo *fakeThreadRepo
	seq        int
}

func (f *fakeDraftRepo) Create(draft *triagedomain.Draft) error {
	f.seq++
	if draft.ID == "" {
		draft.ID = fmt.Sprintf("draft-%d", f.seq)
	}
	if draft.Version == 0 {
		draft.Version = 1
	}
	if draft.Status == "" {
		draft.Status = triagedomain.DraftStatusCreated
	}
	draft.CreatedAt = time.Now().Add(time.Duration(f.seq) * time.Millisecond)
	f.drafts = append(f.drafts, draft)
	return nil
}

func (f *fakeDraftRepo) FindByID(id string) (*triagedomain.Draft, error) {
	for _, d := range f.drafts {
		if d.ID == id {
			return d, nil
		}
	}
	return nil, nil
}

func (f *fakeDraftRepo) LatestForThread(threadID string) (*triagedomain.Draft, error) {
	var latest *triagedomain.Draft
	for _, d := range f.drafts {
		if d.ThreadID != threadID {
			continue
		}
		if latest == nil || d.CreatedAt.After(latest.CreatedAt) {
			latest = d
		}
	}
	return latest, nil
}

func (f *fakeDraftRepo) LatestVersion(threadID string, draftType triagedomain.DraftType) (*triagedomain.Draft, error) {
	var latest *triagedomain.Draft
	for _, d := range f.drafts {
		if d.ThreadID != threadID || d.DraftType != draftType {
			continue
		}
		if latest == nil || d.Version > latest.Version {
			latest = d
		}
	}
	return latest, nil
}

func (f *fakeDraftRepo) Chain(threadID string, draftType triagedomain.DraftType) ([]triagedomain.Draft, error) {
	var out []triagedomain.Draft
	for _, d := range f.drafts {
		if d.ThreadID == threadID && d.DraftType == draftType {
			out = append(out, *d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

func (f *fakeDraftRepo) ListByThread(threadID string) ([]triagedomain.Draft, error) {
	var out []triagedomain.Draft
	for _, d := range f.drafts {
		if d.ThreadID == threadID {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (f *fakeDraftRepo) UpdateContent(draft *triagedomain.Draft) error {
	return nil
}

func (f *fakeDraftRepo) UpdateStatus(id string, status triagedomain.DraftStatus) error {
	d, _ := f.FindByID(id)
	if d == nil {
		return errors.New("draft not found")
	}
	d.Status = status
	return nil
}

func (f *fakeDraftRepo) LinkGraphDraftID(draftID, graphDraftMessageID string) (bool, error) {
	for _, d := range f.drafts {
		if d.GraphDraftMessageID != nil && *d.GraphDraftMessageID == graphDraftMessageID {
			return d.ID == draftID, nil
		}
	}
	d, _ := f.FindByID(draftID)
	if d == nil {
		return false, errors.New("draft not found")
	}
	d.GraphDraftMessageID = &graphDraftMessageID
	return true, nil
}

func (f *fakeDraftRepo) CreateNextVersion(currentID string, next *triagedomain.Draft) error {
	current, _ := f.FindByID(currentID)
	if current == nil {
		return errors.New("draft not found")
	}
	current.GraphDraftMessageID = nil
	return f.Create(next)
}

func (f *fakeDraftRepo) MarkSentAndAssignOwner(draftID, threadID, actorUserID string) error {
	if err := f.UpdateStatus(draftID, triagedomain.DraftStatusSent); err != nil {
		return err
	}
	if f.threadRepo != nil {
		if t := f.threadRepo.threads[threadID]; t != nil {
			t.OwnerUserID = &actorUserID
		}
	}
	return nil
}

type fakeEscalationRepo struct {
	escalations []*triagedomain.Escalation
	seq         int
}

func (f *fakeEscalationRepo) FindByThreadAndDepartment(threadID string, dept triagedomain.Department) (*triagedomain.Escalation, error) {
	for _, e := range f.escalations {
		if e.ThreadID == threadID && e.Department == dept {
			return e, nil
		}
	}
	return nil, nil
}

func (f *fakeEscalationRepo) Create(escalation *triagedomain.Escalation) error {
	f.seq++
	escalation.ID = fmt.Sprintf("esc-%d", f.seq)
	f.escalations = append(f.escalations, escalation)
	return nil
}

type fakeAuditRepo struct {
	entries []struct {
		Action triagedomain.AuditAction
		Ctx    repository.AuditContext
	}
}

func (f *fakeAuditRepo) Append(action triagedomain.AuditAction, ctx repository.AuditContext) error {
	f.entries = append(f.entries, struct {
		Action triagedomain.AuditAction
		Ctx    repository.AuditContext
	}{action, ctx})
	return nil
}

func (f *fakeAuditRepo) ListByThread(threadID string, limit int) ([]triagedomain.AuditLog, error) {
	return nil, nil
}

func (f *fakeAuditRepo) actions() []triagedomain.AuditAction {
	var out []triagedomain.AuditAction
	for _, e := range f.entries {
		out = append(out, e.Action)
	}
	return out
}

type fakeCaseRepo struct {
	cases map[string]*triagedomain.Case
	seq   int
}

func newFakeCaseRepo() *fakeCaseRepo {
	return &fakeCaseRepo{cases: map[string]*triagedomain.Case{}}
}

func (f *fakeCaseRepo) Create(c *triagedomain.Case) error {
	f.seq++
	c.ID = fmt.Sprintf("case-%d", f.seq)
	f.cases[c.ID] = c
	return nil
}

func (f *fakeCaseRepo) FindByID(id string) (*triagedomain.Case, error) {
	return f.cases[id], nil
}

func (f *fakeCaseRepo) List(limit int) ([]triagedomain.Case, error) {
	var out []triagedomain.Case
	for _, c := range f.cases {
		out = append(out, *c)
	}
	return out, nil
}

func (f *fakeCaseRepo) Update(c *triagedomain.Case) error {
	f.cases[c.ID] = c
	return nil
}

type fakeNoteRepo struct {
	notes []*triagedomain.Note
}

func (f *fakeNoteRepo) Create(note *triagedomain.Note) error {
	note.ID = fmt.Sprintf("note-%d", len(f.notes)+1)
	f.notes = append(f.notes, note)
	return nil
}

func (f *fakeNoteRepo) ListByThread(threadID string) ([]triagedomain.Note, error) {
	var out []triagedomain.Note
	for _, n := range f.notes {
		if n.ThreadID == threadID {
			out = append(out, *n)
		}
	}
	return out, nil
}

func fileContent(name, contentType string, raw []byte) *graph.FileContent {
	return &graph.FileContent{Name: name, ContentType: contentType, Bytes: raw}
}

// fakeGraph scripts the mailbox provider.
type fakeGraph struct {
	deltaItems     []graph.Message
	deltaLink      string
	deltaRequested []string

	messages         map[string]*graph.Message
	attachmentLists  map[string][]graph.AttachmentListItem
	files            map[string]*graph.FileContent
	downloadErr      error
	replyErr         error
	createDraftErr   error
	patches          []graph.DraftPatch
	patchErr         error
	sent             []string
	sendErr          error
	createdDraftSeq  int
	createdDraftUPNs []string
}

func newFakeGraph() *fakeGraph {
	return &fakeGraph{
		messages:        map[string]*graph.Message{},
		attachmentLists: map[string][]graph.AttachmentListItem{},
		files:           map[string]*graph.FileContent{},
	}
}

func (f *fakeGraph) GetMessage(ctx context.Context, upn, messageID string) (*graph.Message, error) {
	msg, ok := f.messages[messageID]
	if !ok {
		return nil, errors.New("message not found")
	}
	return msg, nil
}

func (f *fakeGraph) ListMessageAttachments(ctx context.Context, upn, messageID string) ([]graph.AttachmentListItem, error) {
	return f.attachmentLists[messageID], nil
}

func (f *fakeGraph) DownloadAttachment(ctx context.Context, upn, messageID, attachmentID string) (*graph.FileContent, error) {
	if f.downloadErr != nil {
		return nil, f.downloadErr
	}
	file, ok := f.files[attachmentID]
	if !ok {
		return nil, errors.New("attachment not found")
	}
	return file, nil
}

func (f *fakeGraph) FetchDeltaAll(ctx context.Context, upn, deltaLink string) ([]graph.Message, string, error) {
	f.deltaRequested = append(f.deltaRequested, deltaLink)
	return f.deltaItems, f.deltaLink, nil
}

func (f *fakeGraph) FetchDeltaAllFrom(ctx context.Context, upn string, from time.Time) ([]graph.Message, string, error) {
	f.deltaRequested = append(f.deltaRequested, "from:"+from.UTC().Format(time.RFC3339))
	return f.deltaItems, f.deltaLink, nil
}

func (f *fakeGraph) CreateReplyDraft(ctx context.Context, upn, messageID, bodyHTML string) (*graph.Message, error) {
	if f.replyErr != nil {
		return nil, f.replyErr
	}
	f.createdDraftSeq++
	return &graph.Message{ID: fmt.Sprintf("graph-reply-%d", f.createdDraftSeq), ConversationID: "conv-1"}, nil
}

func (f *fakeGraph) CreateMessageDraft(ctx context.Context, upn string, content graph.DraftContent) (*graph.Message, error) {
	if f.createDraftErr != nil {
		return nil, f.createDraftErr
	}
	f.createdDraftSeq++
	f.createdDraftUPNs = append(f.createdDraftUPNs, upn)
	return &graph.Message{ID: fmt.Sprintf("graph-new-%d", f.createdDraftSeq)}, nil
}

func (f *fakeGraph) PatchDraft(ctx context.Context, upn, draftID string, patch graph.DraftPatch) error {
	if f.patchErr != nil {
		return f.patchErr
	}
	f.patches = append(f.patches, patch)
	return nil
}

func (f *fakeGraph) SendDraft(ctx context.Context, upn, draftID string) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, upn+"/"+draftID)
	return nil
}

// fakeAI returns scripted JSON replies in order.
type fakeAI struct {
	replies  []string
	err      error
	requests []openai.Request
}

func (f *fakeAI) CompleteJSON(ctx context.Context, req openai.Request) (json.RawMessage, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	if len(f.replies) == 0 {
		return nil, errors.New("no scripted reply")
	}
	reply := f.replies[0]
	f.replies = f.replies[1:]
	return json.RawMessage(reply), nil
}
