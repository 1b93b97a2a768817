// Package openai calls the OpenAI Responses API with mixed inputs
// (JSON context, uploaded PDF files, inline images, text blocks) and
// parses a single strict-JSON object out of the reply.
package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
)

const defaultBaseURL = "https://api.openai.com/v1"

// UploadFile is a binary document delivered via the files API.
// In this pipeline only PDFs go through this channel.
type UploadFile struct {
	Name        string
	Bytes       []byte
	ContentType string
}

// InlineImage is an image delivered as a data URL, never uploaded.
type InlineImage struct {
	Name        string
	ContentType string
	DataURL     string
}

// TextAttachment is locally decoded attachment text included inline.
type TextAttachment struct {
	Name        string
	ContentType string
	Text        string
}

// Request is one JSON-completion call.
type Request struct {
	Model  string
	System string
	User   string
	PDFs   []UploadFile
	Images []InlineImage
	Texts  []TextAttachment
}

type Service struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func NewService(apiKey string) *Service {
	return &Service{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{},
	}
}

// NewServiceWithClient builds a client against a custom endpoint. Used
// by tests.
func NewServiceWithClient(client *http.Client, baseURL, apiKey string) *Service {
	return &Service{apiKey: apiKey, baseURL: strings.TrimSuffix(baseURL, "/"), httpClient: client}
}

// BytesToDataURL encodes raw bytes as a data URL for the inline image
// channel.
func BytesToDataURL(raw []byte, contentType string) string {
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(raw)
}

// CompleteJSON runs one completion and returns the parsed JSON object
// from the model's reply. An empty or non-JSON reply is an error.
func (s *Service) CompleteJSON(ctx context.Context, req Request) (json.RawMessage, error) {
	var fileIDs []string
	for _, pdf := range req.PDFs {
		id, err := s.uploadFile(ctx, pdf)
		if err != nil {
			return nil, fmt.Errorf("upload file %s: %w", pdf.Name, err)
		}
		fileIDs = append(fileIDs, id)
	}

	content := []map[string]interface{}{
		{"type": "input_text", "text": req.User},
	}
	for _, id := range fileIDs {
		content = append(content, map[string]interface{}{"type": "input_file", "file_id": id})
	}
	for _, img := range req.Images {
		content = append(content, map[string]interface{}{
			"type":      "input_image",
			"image_url": img.DataURL,
			"detail":    "auto",
		})
	}
	for _, txt := range req.Texts {
		block := fmt.Sprintf("\n\n[ATTACHMENT_TEXT_BEGIN]\nname: %s\ncontentType: %s\n\n%s\n[ATTACHMENT_TEXT_END]\n",
			txt.Name, orUnknown(txt.ContentType), txt.Text)
		content = append(content, map[string]interface{}{"type": "input_text", "text": block})
	}

	payload := map[string]interface{}{
		"model":        req.Model,
		"instructions": req.System,
		"input": []map[string]interface{}{
			{"role": "user", "content": content},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/responses", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("openai API error: status %d: %s", resp.StatusCode, string(respBody))
	}

	text, err := outputText(respBody)
	if err != nil {
		return nil, err
	}

	return extractJSON(text)
}

func (s *Service) uploadFile(ctx context.Context, file UploadFile) (string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	if err := writer.WriteField("purpose", "user_data"); err != nil {
		return "", err
	}
	part, err := writer.CreateFormFile("file", file.Name)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(file.Bytes); err != nil {
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/files", &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("openai file upload error: status %d: %s", resp.StatusCode, string(respBody))
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(respBody, &created); err != nil {
		return "", err
	}
	if created.ID == "" {
		return "", fmt.Errorf("openai file upload returned no id")
	}
	return created.ID, nil
}

// outputText concatenates the message output_text parts of a Responses
// API reply.
func outputText(respBody []byte) (string, error) {
	var parsed struct {
		Output []struct {
			Type    string `json:"type"`
			Content []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"content"`
		} `json:"output"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("decode openai response: %w", err)
	}

	var sb strings.Builder
	for _, out := range parsed.Output {
		if out.Type != "message" {
			continue
		}
		for _, part := range out.Content {
			if part.Type == "output_text" {
				sb.WriteString(part.Text)
			}
		}
	}

	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", fmt.Errorf("openai returned empty output")
	}
	return text, nil
}

// extractJSON tolerates markdown code fences around the JSON object.
func extractJSON(text string) (json.RawMessage, error) {
	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimPrefix(trimmed, "```")
		if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
			trimmed = trimmed[:idx]
		}
		trimmed = strings.TrimSpace(trimmed)
	}

	if !json.Valid([]byte(trimmed)) {
		return nil, fmt.Errorf("openai reply is not valid JSON: %.200s", trimmed)
	}
	return json.RawMessage(trimmed), nil
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
