package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func responsesReply(text string) map[string]interface{} {
	return map[string]interface{}{
		"output": []map[string]interface{}{
			{"type": "reasoning"},
			{
				"type": "message",
				"content": []map[string]string{
					{"type": "output_text", "text": text},
				},
			},
		},
	}
}

func TestCompleteJSONParsesReply(t *testing.T) {
	var payload map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/responses", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		json.NewDecoder(r.Body).Decode(&payload)
		json.NewEncoder(w).Encode(responsesReply(`{"department":"STAFFING","confidence":0.9}`))
	}))
	defer srv.Close()

	svc := NewServiceWithClient(srv.Client(), srv.URL, "test-key")
	raw, err := svc.CompleteJSON(context.Background(), Request{
		Model:  "gpt-test",
		System: "classify",
		User:   `{"subject":"referral"}`,
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"department":"STAFFING","confidence":0.9}`, string(raw))

	assert.Equal(t, "gpt-test", payload["model"])
	assert.Equal(t, "classify", payload["instructions"])
}

func TestCompleteJSONStripsCodeFences(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(responsesReply("```json\n{\"ok\":true}\n```"))
	}))
	defer srv.Close()

	svc := NewServiceWithClient(srv.Client(), srv.URL, "test-key")
	raw, err := svc.CompleteJSON(context.Background(), Request{Model: "gpt-test", User: "{}"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(raw))
}

func TestCompleteJSONRejectsNonJSONReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(responsesReply("Sorry, I cannot help with that."))
	}))
	defer srv.Close()

	svc := NewServiceWithClient(srv.Client(), srv.URL, "test-key")
	_, err := svc.CompleteJSON(context.Background(), Request{Model: "gpt-test", User: "{}"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not valid JSON")
}

func TestCompleteJSONUploadsPDFsFirst(t *testing.T) {
	var uploadSeen bool
	var content []map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/files":
			uploadSeen = true
			require.NoError(t, r.ParseMultipartForm(1<<20))
			assert.Equal(t, "user_data", r.FormValue("purpose"))
			json.NewEncoder(w).Encode(map[string]string{"id": "file-123"})
		case "/responses":
			var payload struct {
				Input []struct {
					Content []map[string]interface{} `json:"content"`
				} `json:"input"`
			}
			json.NewDecoder(r.Body).Decode(&payload)
			content = payload.Input[0].Content
			json.NewEncoder(w).Encode(responsesReply(`{"extracted":null,"confidence":0.1}`))
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	svc := NewServiceWithClient(srv.Client(), srv.URL, "test-key")
	_, err := svc.CompleteJSON(context.Background(), Request{
		Model: "gpt-test",
		User:  "{}",
		PDFs:  []UploadFile{{Name: "referral.pdf", Bytes: []byte("%PDF"), ContentType: "application/pdf"}},
	})
	require.NoError(t, err)
	require.True(t, uploadSeen)

	var fileRef map[string]interface{}
	for _, part := range content {
		if part["type"] == "input_file" {
			fileRef = part
		}
	}
	require.NotNil(t, fileRef)
	assert.Equal(t, "file-123", fileRef["file_id"])
}

func TestCompleteJSONInlinesImagesAndText(t *testing.T) {
	var content []map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Input []struct {
				Content []map[string]interface{} `json:"content"`
			} `json:"input"`
		}
		json.NewDecoder(r.Body).Decode(&payload)
		content = payload.Input[0].Content
		json.NewEncoder(w).Encode(responsesReply(`{"ok":true}`))
	}))
	defer srv.Close()

	svc := NewServiceWithClient(srv.Client(), srv.URL, "test-key")
	_, err := svc.CompleteJSON(context.Background(), Request{
		Model:  "gpt-test",
		User:   "{}",
		Images: []InlineImage{{Name: "scan.png", ContentType: "image/png", DataURL: BytesToDataURL([]byte{1, 2}, "image/png")}},
		Texts:  []TextAttachment{{Name: "notes.txt", ContentType: "text/plain", Text: "hello"}},
	})
	require.NoError(t, err)

	var sawImage, sawText bool
	for _, part := range content {
		switch part["type"] {
		case "input_image":
			sawImage = true
			assert.Equal(t, "auto", part["detail"])
			assert.Contains(t, part["image_url"], "data:image/png;base64,")
		case "input_text":
			if text, _ := part["text"].(string); text != "{}" {
				sawText = true
				assert.Contains(t, text, "[ATTACHMENT_TEXT_BEGIN]")
				assert.Contains(t, text, "notes.txt")
				assert.Contains(t, text, "hello")
			}
		}
	}
	assert.True(t, sawImage)
	assert.True(t, sawText)
}

func TestCompleteJSONSurfacesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"rate limited"}}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	svc := NewServiceWithClient(srv.Client(), srv.URL, "test-key")
	_, err := svc.CompleteJSON(context.Background(), Request{Model: "gpt-test", User: "{}"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 429")
}

func TestExtractJSONVariants(t *testing.T) {
	raw, err := extractJSON("{\"a\":1}")
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(raw))

	raw, err = extractJSON("```\n{\"a\":1}\n```")
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(raw))

	_, err = extractJSON("no json here")
	assert.Error(t, err)
}

func TestBytesToDataURL(t *testing.T) {
	assert.Equal(t, "data:image/png;base64,AQI=", BytesToDataURL([]byte{1, 2}, "image/png"))
}
