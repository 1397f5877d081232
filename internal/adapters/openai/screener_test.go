package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mikey/contact-guard/internal/core"
	"github.com/mikey/contact-guard/internal/utils"
	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestServer(t *testing.T, content string, seen *openai.ChatCompletionRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		if seen != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(seen))
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
			ID:    "chatcmpl-test",
			Model: "gpt-4o-mini",
			Choices: []openai.ChatCompletionChoice{{
				Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: content},
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestScreener(baseURL string) *Screener {
	cfg := openai.DefaultConfig("test-key")
	cfg.BaseURL = baseURL + "/v1"
	logger := zap.NewNop()
	return NewScreener(openai.NewClientWithConfig(cfg), "gpt-4o-mini", 300, 0.1, 0.9, 16, logger, utils.NewTextProcessor(logger))
}

func TestScreen(t *testing.T) {
	var seen openai.ChatCompletionRequest
	srv := newTestServer(t, `{"is_spam": false, "score": 0.12, "confidence": 0.95, "explanation": "genuine enquiry"}`, &seen)

	record := &core.SubmissionRecord{ID: "1", Name: "Ada", Email: "ada@example.com", Message: "I would like to hire you for a project."}
	v, err := newTestScreener(srv.URL).Screen(context.Background(), record)
	require.NoError(t, err)

	assert.False(t, v.IsSpam)
	assert.InDelta(t, 0.12, v.Score, 1e-9)
	assert.Equal(t, "gpt-4o-mini", v.ModelUsed)
	assert.False(t, v.AnalyzedAt.IsZero())

	assert.Equal(t, "gpt-4o-mini", seen.Model)
	require.NotNil(t, seen.ResponseFormat)
	assert.Equal(t, openai.ChatCompletionResponseFormatTypeJSONObject, seen.ResponseFormat.Type)
	require.Len(t, seen.Messages, 2)
	assert.Contains(t, seen.Messages[1].Content, "ada@example.com")
	assert.Contains(t, seen.Messages[1].Content, "Content truncated", "body is cut to the configured size")
}

func TestScreen_UnparseableReply(t *testing.T) {
	srv := newTestServer(t, "I am not sure.", nil)

	_, err := newTestScreener(srv.URL).Screen(context.Background(), &core.SubmissionRecord{ID: "1", Message: "hi"})
	assert.Error(t, err)
}
