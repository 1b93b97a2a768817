// Package graph is a minimal Microsoft Graph client for shared-mailbox
// triage: delta message listing, attachment download, and draft
// create/patch/send, authenticated with app-only client credentials.
package graph

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2/clientcredentials"
)

const defaultBaseURL = "https://graph.microsoft.com/v1.0"

const deltaSelect = "id,subject,conversationId,receivedDateTime,from,hasAttachments,bodyPreview,internetMessageId"

const messageSelect = "id,subject,conversationId,receivedDateTime,sentDateTime,from,toRecipients,ccRecipients,body,bodyPreview,hasAttachments,internetMessageId"

// Service talks to the Graph API on behalf of the configured tenant.
type Service struct {
	httpClient *http.Client
	baseURL    string
}

// NewService builds a Graph client using the client-credentials flow.
func NewService(tenantID, clientID, clientSecret string) *Service {
	cc := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", tenantID),
		Scopes:       []string{"https://graph.microsoft.com/.default"},
	}
	return &Service{
		httpClient: cc.Client(context.Background()),
		baseURL:    defaultBaseURL,
	}
}

// NewServiceWithClient builds a Graph client against a custom endpoint.
// Used by tests.
func NewServiceWithClient(client *http.Client, baseURL string) *Service {
	return &Service{httpClient: client, baseURL: strings.TrimSuffix(baseURL, "/")}
}

// APIError is a non-2xx Graph response.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("graph API error: status %d: %s", e.StatusCode, e.Body)
}

// IsInvalidReplyItem reports whether err is Graph rejecting createReply
// for a non-repliable item (meeting requests, event messages, ...).
func IsInvalidReplyItem(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "Item type is invalid for creating a Reply")
}

func (s *Service) do(ctx context.Context, method, requestURL string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, requestURL, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func (s *Service) userURL(upn, path string) string {
	return fmt.Sprintf("%s/users/%s%s", s.baseURL, url.PathEscape(upn), path)
}

// GetMessage fetches a full message including body and recipients.
func (s *Service) GetMessage(ctx context.Context, upn, messageID string) (*Message, error) {
	var msg Message
	requestURL := s.userURL(upn, "/messages/"+url.PathEscape(messageID)) + "?$select=" + messageSelect
	if err := s.do(ctx, http.MethodGet, requestURL, nil, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// ListMessageAttachments lists attachment metadata for a message.
func (s *Service) ListMessageAttachments(ctx context.Context, upn, messageID string) ([]AttachmentListItem, error) {
	var page listResponse[AttachmentListItem]
	requestURL := s.userURL(upn, "/messages/"+url.PathEscape(messageID)+"/attachments") + "?$select=id,name,contentType,size"
	if err := s.do(ctx, http.MethodGet, requestURL, nil, &page); err != nil {
		return nil, err
	}
	return page.Value, nil
}

// DownloadAttachment fetches one attachment's bytes. Only file
// attachments carry contentBytes; anything else is an error.
func (s *Service) DownloadAttachment(ctx context.Context, upn, messageID, attachmentID string) (*FileContent, error) {
	var att struct {
		Name         string `json:"name"`
		ContentType  string `json:"contentType"`
		ContentBytes string `json:"contentBytes"`
	}
	requestURL := s.userURL(upn, "/messages/"+url.PathEscape(messageID)+"/attachments/"+url.PathEscape(attachmentID))
	if err := s.do(ctx, http.MethodGet, requestURL, nil, &att); err != nil {
		return nil, err
	}

	if att.ContentBytes == "" {
		return nil, fmt.Errorf("attachment has no contentBytes (not a fileAttachment?)")
	}
	raw, err := base64.StdEncoding.DecodeString(att.ContentBytes)
	if err != nil {
		return nil, fmt.Errorf("decode attachment bytes: %w", err)
	}

	return &FileContent{Name: att.Name, ContentType: att.ContentType, Bytes: raw}, nil
}

// FetchDeltaAll pages through the inbox delta feed starting from
// deltaLink (or from scratch when empty) and returns all items plus the
// final delta link. Intermediate page links are never surfaced: a run
// that dies mid-way resumes from the previous cursor.
func (s *Service) FetchDeltaAll(ctx context.Context, upn, deltaLink string) ([]Message, string, error) {
	start := deltaLink
	if start == "" {
		start = s.userURL(upn, "/mailFolders/Inbox/messages/delta") + "?$select=" + deltaSelect
	}
	return s.fetchDeltaPages(ctx, start)
}

// FetchDeltaAllFrom runs an initial delta sync bounded to messages
// received on or after from. Used only when no cursor exists yet.
func (s *Service) FetchDeltaAllFrom(ctx context.Context, upn string, from time.Time) ([]Message, string, error) {
	start := s.userURL(upn, "/mailFolders/Inbox/messages/delta") +
		"?$select=" + deltaSelect +
		"&$filter=" + url.QueryEscape("receivedDateTime ge "+from.UTC().Format(time.RFC3339))
	return s.fetchDeltaPages(ctx, start)
}

func (s *Service) fetchDeltaPages(ctx context.Context, startURL string) ([]Message, string, error) {
	var items []Message
	next := startURL
	for {
		var page listResponse[Message]
		if err := s.do(ctx, http.MethodGet, next, nil, &page); err != nil {
			return nil, "", err
		}
		items = append(items, page.Value...)

		if page.NextLink != "" {
			next = page.NextLink
			continue
		}
		return items, page.DeltaLink, nil
	}
}

// CreateReplyDraft creates a reply draft to an existing message and
// seeds its body. Graph rejects this for non-repliable item types; see
// IsInvalidReplyItem.
func (s *Service) CreateReplyDraft(ctx context.Context, upn, messageID, bodyHTML string) (*Message, error) {
	var draft Message
	requestURL := s.userURL(upn, "/messages/"+url.PathEscape(messageID)+"/createReply")
	if err := s.do(ctx, http.MethodPost, requestURL, map[string]interface{}{}, &draft); err != nil {
		return nil, err
	}
	if draft.ID == "" {
		return &draft, nil
	}

	patchURL := s.userURL(upn, "/messages/"+url.PathEscape(draft.ID))
	body := map[string]interface{}{
		"body": map[string]string{"contentType": "HTML", "content": bodyHTML},
	}
	if err := s.do(ctx, http.MethodPatch, patchURL, body, nil); err != nil {
		return nil, err
	}
	return &draft, nil
}

// CreateMessageDraft creates a new, unlinked draft message. Fallback for
// items that cannot be replied to, and the path used for escalations.
func (s *Service) CreateMessageDraft(ctx context.Context, upn string, content DraftContent) (*Message, error) {
	payload := map[string]interface{}{
		"subject":      content.Subject,
		"body":         map[string]string{"contentType": "HTML", "content": content.BodyHTML},
		"toRecipients": toRecipients(content.To),
	}
	if cc := toRecipients(content.Cc); len(cc) > 0 {
		payload["ccRecipients"] = cc
	}

	var draft Message
	if err := s.do(ctx, http.MethodPost, s.userURL(upn, "/messages"), payload, &draft); err != nil {
		return nil, err
	}
	return &draft, nil
}

// PatchDraft updates subject/body/recipients on an existing draft.
func (s *Service) PatchDraft(ctx context.Context, upn, draftID string, patch DraftPatch) error {
	payload := map[string]interface{}{}
	if patch.Subject != "" {
		payload["subject"] = patch.Subject
	}
	if patch.BodyHTML != "" {
		payload["body"] = map[string]string{"contentType": "HTML", "content": patch.BodyHTML}
	}
	if to := toRecipients(patch.To); len(to) > 0 {
		payload["toRecipients"] = to
	}
	if cc := toRecipients(patch.Cc); len(cc) > 0 {
		payload["ccRecipients"] = cc
	}
	if len(payload) == 0 {
		return nil
	}

	return s.do(ctx, http.MethodPatch, s.userURL(upn, "/messages/"+url.PathEscape(draftID)), payload, nil)
}

// SendDraft sends an existing draft message.
func (s *Service) SendDraft(ctx context.Context, upn, draftID string) error {
	requestURL := s.userURL(upn, "/messages/"+url.PathEscape(draftID)+"/send")
	return s.do(ctx, http.MethodPost, requestURL, map[string]interface{}{}, nil)
}

func toRecipients(addresses []string) []Recipient {
	var out []Recipient
	for _, addr := range addresses {
		trimmed := strings.TrimSpace(addr)
		if trimmed == "" {
			continue
		}
		out = append(out, Recipient{EmailAddress: EmailAddress{Address: trimmed}})
	}
	return out
}
