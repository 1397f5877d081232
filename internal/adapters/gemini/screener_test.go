package gemini

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/mikey/contact-guard/internal/core"
	"github.com/mikey/contact-guard/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// redirect sends every request to the test server regardless of host
type redirect struct {
	target *url.URL
}

func (r redirect) RoundTrip(req *http.Request) (*http.Response, error) {
	out := req.Clone(req.Context())
	out.URL.Scheme = r.target.Scheme
	out.URL.Host = r.target.Host
	out.Host = r.target.Host
	return http.DefaultTransport.RoundTrip(out)
}

type seenRequest struct {
	mu   sync.Mutex
	path string
	body string
}

func newTestServer(t *testing.T, status int, reply any, seen *seenRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if seen != nil {
			b, err := io.ReadAll(r.Body)
			require.NoError(t, err)
			seen.mu.Lock()
			seen.path = r.URL.Path
			seen.body = string(b)
			seen.mu.Unlock()
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(reply)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// textReply is a generateContent response carrying one text part
func textReply(text string) map[string]any {
	return map[string]any{
		"candidates": []map[string]any{{
			"content": map[string]any{
				"role":  "model",
				"parts": []map[string]any{{"text": text}},
			},
			"finishReason": "STOP",
		}},
	}
}

func newTestScreener(t *testing.T, srv *httptest.Server) *Screener {
	t.Helper()
	target, err := url.Parse(srv.URL)
	require.NoError(t, err)

	logger := zap.NewNop()
	s, err := NewScreener(context.Background(), "test-key", "gemini-pro", 300, 0.1, 0.9, 16,
		logger, utils.NewTextProcessor(logger),
		option.WithHTTPClient(&http.Client{Transport: redirect{target: target}}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestScreen(t *testing.T) {
	var seen seenRequest
	srv := newTestServer(t, http.StatusOK,
		textReply(`{"is_spam": false, "score": 0.08, "confidence": 0.9, "explanation": "genuine enquiry"}`), &seen)

	record := &core.SubmissionRecord{ID: "1", Name: "Ada", Email: "ada@example.com", Message: "I would like to hire you for a project."}
	v, err := newTestScreener(t, srv).Screen(context.Background(), record)
	require.NoError(t, err)

	assert.False(t, v.IsSpam)
	assert.InDelta(t, 0.08, v.Score, 1e-9)
	assert.InDelta(t, 0.9, v.Confidence, 1e-9)
	assert.Equal(t, "genuine enquiry", v.Explanation)
	assert.Equal(t, "gemini-pro", v.ModelUsed)
	assert.False(t, v.AnalyzedAt.IsZero())

	seen.mu.Lock()
	defer seen.mu.Unlock()
	assert.True(t, strings.HasSuffix(seen.path, "models/gemini-pro:generateContent"), seen.path)
	assert.Contains(t, seen.body, "ada@example.com")
	assert.Contains(t, seen.body, "Content truncated", "body is cut to the configured size")
}

func TestScreen_SpamReplyInCodeFence(t *testing.T) {
	srv := newTestServer(t, http.StatusOK,
		textReply("```json\n{\"is_spam\": true, \"score\": 0.97, \"confidence\": 0.8, \"explanation\": \"SEO pitch\"}\n```"), nil)

	v, err := newTestScreener(t, srv).Screen(context.Background(), &core.SubmissionRecord{ID: "1", Message: "Buy backlinks"})
	require.NoError(t, err)
	assert.True(t, v.IsSpam)
	assert.InDelta(t, 0.97, v.Score, 1e-9)
}

func TestScreen_UnparseableReply(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, textReply("I am not sure."), nil)

	_, err := newTestScreener(t, srv).Screen(context.Background(), &core.SubmissionRecord{ID: "1", Message: "hi"})
	assert.Error(t, err)
}

func TestScreen_NoCandidates(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, map[string]any{"candidates": []any{}}, nil)

	_, err := newTestScreener(t, srv).Screen(context.Background(), &core.SubmissionRecord{ID: "1", Message: "hi"})
	assert.Error(t, err)
}

func TestScreen_APIError(t *testing.T) {
	srv := newTestServer(t, http.StatusInternalServerError,
		map[string]any{"error": map[string]any{"code": 500, "message": "backend unavailable", "status": "INTERNAL"}}, nil)

	_, err := newTestScreener(t, srv).Screen(context.Background(), &core.SubmissionRecord{ID: "1", Message: "hi"})
	assert.Error(t, err)
}
