package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	triagedomain "tdp-backend/internal/triage/domain"
	"tdp-backend/pkg/graph"
)

// End-to-end pass over shared fakes: ingest -> extract -> classify ->
// draft -> human edit. Exercises the stage handoffs the workers drive
// in production.
func TestPipelineEndToEnd(t *testing.T) {
	inboxes := newFakeInboxRepo()
	threads := newFakeThreadRepo()
	messages := &fakeMessageRepo{}
	attachments := &fakeAttachmentRepo{}
	drafts := &fakeDraftRepo{threadRepo: threads}
	cases := newFakeCaseRepo()
	notes := &fakeNoteRepo{}
	audits := &fakeAuditRepo{}
	gr := newFakeGraph()

	inbox, err := inboxes.Upsert(&triagedomain.Inbox{
		Key:          "INTAKE",
		EmailAddress: "intake@therapydepotonline.com",
	})
	require.NoError(t, err)

	gr.deltaItems = []graph.Message{{ID: "graph-msg-1", ConversationID: "conv-1"}}
	gr.deltaLink = "https://graph.example/delta-1"
	gr.messages["graph-msg-1"] = &graph.Message{
		ID:               "graph-msg-1",
		ConversationID:   "conv-1",
		Subject:          "PT referral",
		ReceivedDateTime: "2026-08-29T14:03:00Z",
		BodyPreview:      "Referral attached",
		Body:             &graph.MessageBody{ContentType: "html", Content: "<p>Referral attached</p>"},
		HasAttachments:   true,
	}
	gr.attachmentLists["graph-msg-1"] = []graph.AttachmentListItem{
		{ID: "graph-att-1", Name: "referral.pdf", ContentType: "application/pdf", Size: 2048},
	}
	gr.files["graph-att-1"] = fileContent("referral.pdf", "application/pdf", []byte("%PDF-1.4"))

	extractionAI := &fakeAI{replies: []string{`{"extracted":{"patient":{"name":{"full":"Jane Doe"}}},"confidence":0.95}`}}
	classifyAI := &fakeAI{replies: []string{`{"department":"STAFFING","stage":"REQUEST_CONTACT_INFO","confidence":0.9,"responseRequired":true,"draftTypeSuggested":"STAFFING_REQUEST_CONTACT_INFO"}`}}
	draftAI := &fakeAI{replies: []string{`{"draftType":"STAFFING_REQUEST_CONTACT_INFO","subject":"Re: PT referral","bodyHtml":"<p>Please share contact details.</p>","to":["referrer@clinic.com"],"cc":[],"confidence":0.85}`}}

	ingestion := NewIngestionUsecase(inboxes, threads, messages, attachments, cases, audits, gr, 0)
	extraction := NewExtractionUsecase(attachments, threads, cases, audits, gr, extractionAI, "gpt-test")
	classification := NewClassificationUsecase(threads, attachments, notes, audits, classifyAI, "gpt-test")
	drafting := NewDraftUsecase(threads, drafts, attachments, audits, gr, draftAI, "gpt-test")
	actions := NewDraftActionsUsecase(drafts, threads, audits, gr)

	ctx := context.Background()

	// Ingest.
	ingested, err := ingestion.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, ingested.Messages)
	require.Equal(t, 1, ingested.Attachments)

	var thread *triagedomain.Thread
	for _, th := range threads.threads {
		thread = th
	}
	require.NotNil(t, thread)

	// Wire the preloads the gorm layer would hydrate.
	thread.Inbox = inbox
	attachments.attachments[0].Message = messages.messages[0]

	// The classify gate holds while the attachment is PENDING.
	classifiable, err := threads.ListClassifiable(10)
	require.NoError(t, err)
	require.Len(t, classifiable, 1)
	msg := messages.messages[0]
	thread.Messages = []triagedomain.EmailMessage{*msg}
	thread.Messages[0].Attachments = []triagedomain.Attachment{*attachments.attachments[0]}
	require.NoError(t, classification.ClassifyThread(ctx, thread.ID))
	assert.Equal(t, triagedomain.ProcessingStatusNew, thread.ProcessingStatus)

	// Extract.
	extracted, err := extraction.Run(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, 1, extracted.Processed)
	assert.Equal(t, triagedomain.AttachmentStatusExtracted, attachments.attachments[0].Status)

	// Classify now that nothing is pending.
	thread.Messages[0].Attachments = []triagedomain.Attachment{*attachments.attachments[0]}
	require.NoError(t, classification.ClassifyThread(ctx, thread.ID))
	assert.Equal(t, triagedomain.ProcessingStatusClassified, thread.ProcessingStatus)
	assert.Equal(t, triagedomain.StageRequestContactInfo, thread.Stage)
	assert.NotNil(t, thread.SLADueAt)

	// Draft.
	require.NoError(t, drafting.CreateDraftForThread(ctx, thread.ID))
	assert.Equal(t, triagedomain.ProcessingStatusDrafted, thread.ProcessingStatus)
	require.Len(t, drafts.drafts, 1)
	v1 := drafts.drafts[0]
	require.NotNil(t, v1.GraphDraftMessageID)

	// Human edit: the chain grows and the provider id moves to v2.
	require.NoError(t, actions.EditDraft(ctx, v1.ID, "user-1", DraftEditPatch{Subject: "Re: PT referral (updated)"}))
	assert.Nil(t, v1.GraphDraftMessageID)
	v2, err := drafts.LatestVersion(thread.ID, v1.DraftType)
	require.NoError(t, err)
	assert.Equal(t, 2, v2.Version)
	require.NotNil(t, v2.GraphDraftMessageID)

	// Cursor persisted for the next sync pass.
	cursor, err := inboxes.GetCursor(inbox.ID)
	require.NoError(t, err)
	require.NotNil(t, cursor)
	assert.Equal(t, "https://graph.example/delta-1", cursor.DeltaLink)
}
