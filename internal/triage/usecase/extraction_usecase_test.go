package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	triagedomain "tdp-backend/internal/triage/domain"
)

type extractionFixture struct {
	threads     *fakeThreadRepo
	attachments *fakeAttachmentRepo
	cases       *fakeCaseRepo
	audits      *fakeAuditRepo
	graph       *fakeGraph
	ai          *fakeAI
	attachment  *triagedomain.Attachment
}

func newExtractionFixture(filename string) *extractionFixture {
	f := &extractionFixture{
		threads:     newFakeThreadRepo(),
		attachments: &fakeAttachmentRepo{},
		cases:       newFakeCaseRepo(),
		audits:      &fakeAuditRepo{},
		graph:       newFakeGraph(),
		ai:          &fakeAI{replies: []string{`{"extracted":{"patient":{"name":{"full":"Jane Doe"}}},"confidence":0.9}`}},
	}
	f.threads.add(&triagedomain.Thread{
		ID:      "thread-1",
		Subject: "Referral",
		Inbox:   &triagedomain.Inbox{ID: "inbox-1", EmailAddress: "intake@therapydepotonline.com"},
	})
	f.attachment = f.attachments.add(&triagedomain.Attachment{
		MessageID:         "msg-1",
		GraphAttachmentID: "graph-att-1",
		Filename:          filename,
		Status:            triagedomain.AttachmentStatusPending,
		Message: &triagedomain.EmailMessage{
			ID:             "msg-1",
			ThreadID:       "thread-1",
			GraphMessageID: "graph-msg-1",
		},
	})
	return f
}

func (f *extractionFixture) usecase() *ExtractionUsecase {
	return NewExtractionUsecase(f.attachments, f.threads, f.cases, f.audits, f.graph, f.ai, "gpt-test")
}

func TestProcessAttachmentRoutesPDFToFileUpload(t *testing.T) {
	f := newExtractionFixture("referral.pdf")
	content := []byte("%PDF-1.4 fake")
	f.graph.files["graph-att-1"] = fileContent("referral.pdf", "application/pdf", content)

	require.NoError(t, f.usecase().ProcessAttachment(context.Background(), f.attachment.ID))

	require.Len(t, f.ai.requests, 1)
	req := f.ai.requests[0]
	require.Len(t, req.PDFs, 1)
	assert.Empty(t, req.Images)
	assert.Empty(t, req.Texts)
	assert.Equal(t, "application/pdf", req.PDFs[0].ContentType)

	assert.Equal(t, triagedomain.AttachmentStatusExtracted, f.attachment.Status)
	assert.Nil(t, f.attachment.LastError)

	sum := sha256.Sum256(content)
	require.NotNil(t, f.attachment.ContentHash)
	assert.Equal(t, hex.EncodeToString(sum[:]), *f.attachment.ContentHash)

	assert.Contains(t, f.audits.actions(), triagedomain.AuditAIExtracted)
}

func TestProcessAttachmentRoutesImageInline(t *testing.T) {
	f := newExtractionFixture("scan.png")
	f.graph.files["graph-att-1"] = fileContent("scan.png", "image/png", []byte{0x89, 0x50, 0x4e, 0x47})

	require.NoError(t, f.usecase().ProcessAttachment(context.Background(), f.attachment.ID))

	require.Len(t, f.ai.requests, 1)
	req := f.ai.requests[0]
	require.Len(t, req.Images, 1)
	assert.Empty(t, req.PDFs)
	assert.True(t, strings.HasPrefix(req.Images[0].DataURL, "data:image/png;base64,"))
}

func TestProcessAttachmentSendsOtherFilesAsText(t *testing.T) {
	f := newExtractionFixture("notes.csv")
	f.graph.files["graph-att-1"] = fileContent("notes.csv", "text/csv", []byte("name,dob\nJane,1990"))

	require.NoError(t, f.usecase().ProcessAttachment(context.Background(), f.attachment.ID))

	require.Len(t, f.ai.requests, 1)
	req := f.ai.requests[0]
	require.Len(t, req.Texts, 1)
	assert.Equal(t, "name,dob\nJane,1990", req.Texts[0].Text)
}

func TestProcessAttachmentDownloadFailure(t *testing.T) {
	f := newExtractionFixture("referral.pdf")
	f.graph.downloadErr = errors.New("graph API error: status 404: not found")

	require.NoError(t, f.usecase().ProcessAttachment(context.Background(), f.attachment.ID))

	assert.Equal(t, triagedomain.AttachmentStatusFailed, f.attachment.Status)
	require.NotNil(t, f.attachment.LastError)
	assert.Equal(t, "graph API error: status 404: not found", *f.attachment.LastError)
	assert.Contains(t, f.audits.actions(), triagedomain.AuditOpenAIError)
	assert.Empty(t, f.ai.requests)
}

func TestProcessAttachmentModelFailure(t *testing.T) {
	f := newExtractionFixture("referral.pdf")
	f.graph.files["graph-att-1"] = fileContent("referral.pdf", "application/pdf", []byte("%PDF"))
	f.ai.replies = nil
	f.ai.err = errors.New("openai: rate limited")

	require.NoError(t, f.usecase().ProcessAttachment(context.Background(), f.attachment.ID))

	assert.Equal(t, triagedomain.AttachmentStatusFailed, f.attachment.Status)
	require.NotNil(t, f.attachment.LastError)
	assert.Equal(t, "openai: rate limited", *f.attachment.LastError)
	// The hash is persisted even on failure so retries can dedup.
	assert.NotNil(t, f.attachment.ContentHash)
}

func TestProcessAttachmentSkipsNonPending(t *testing.T) {
	f := newExtractionFixture("referral.pdf")
	f.attachment.Status = triagedomain.AttachmentStatusExtracted

	require.NoError(t, f.usecase().ProcessAttachment(context.Background(), f.attachment.ID))
	assert.Empty(t, f.ai.requests)
}

func TestProcessAttachmentEnrichesCaseTitle(t *testing.T) {
	f := newExtractionFixture("referral.pdf")
	f.graph.files["graph-att-1"] = fileContent("referral.pdf", "application/pdf", []byte("%PDF"))

	c := &triagedomain.Case{Title: "Referral", Description: "Auto-created from thread: Referral"}
	require.NoError(t, f.cases.Create(c))
	thread, _ := f.threads.FindByID("thread-1")
	thread.CaseID = &c.ID

	require.NoError(t, f.usecase().ProcessAttachment(context.Background(), f.attachment.ID))

	assert.Equal(t, "Patient: Jane Doe", c.Title)
	assert.Contains(t, c.Description, "Identified Patient: Jane Doe")
}

func TestProcessAttachmentKeepsCustomCaseTitle(t *testing.T) {
	f := newExtractionFixture("referral.pdf")
	f.graph.files["graph-att-1"] = fileContent("referral.pdf", "application/pdf", []byte("%PDF"))

	c := &triagedomain.Case{Title: "Manually renamed", Description: "d"}
	require.NoError(t, f.cases.Create(c))
	thread, _ := f.threads.FindByID("thread-1")
	thread.CaseID = &c.ID

	require.NoError(t, f.usecase().ProcessAttachment(context.Background(), f.attachment.ID))
	assert.Equal(t, "Manually renamed", c.Title)
}

func TestCapUTF8(t *testing.T) {
	assert.Equal(t, "abc", capUTF8([]byte("abc"), 10))
	assert.Equal(t, "ab", capUTF8([]byte("abcdef"), 2))
	// Invalid bytes are replaced, never dropped silently mid-rune.
	out := capUTF8([]byte{'a', 0xff, 'b'}, 10)
	assert.Contains(t, out, "a")
	assert.Contains(t, out, "b")
}

func TestFindPatientName(t *testing.T) {
	assert.Equal(t, "Jane Doe", findPatientName([]byte(`{"patient":{"name":{"full":"Jane Doe"}}}`)))
	assert.Equal(t, "Jane Doe", findPatientName([]byte(`{"patient":{"name":"Jane Doe"}}`)))
	assert.Equal(t, "Jane Doe", findPatientName([]byte(`{"patientName":"Jane Doe"}`)))
	assert.Equal(t, "Jane Doe", findPatientName([]byte(`{"name":"Jane Doe"}`)))
	assert.Equal(t, "", findPatientName([]byte(`{"other":true}`)))
	assert.Equal(t, "", findPatientName(nil))
	assert.Equal(t, "", findPatientName([]byte(`not json`)))
}
