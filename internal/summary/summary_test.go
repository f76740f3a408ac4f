package summary

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

type chatServer struct {
	calls  atomic.Int32
	chunks []string
	status int
	body   string

	mu      sync.Mutex
	request map[string]any
}

func (s *chatServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.calls.Add(1)
	if r.URL.Path != "/v1/chat/completions" {
		http.NotFound(w, r)
		return
	}
	raw, _ := io.ReadAll(r.Body)
	var req map[string]any
	_ = json.Unmarshal(raw, &req)
	s.mu.Lock()
	s.request = req
	s.mu.Unlock()

	if s.status != 0 && s.status != http.StatusOK {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(s.status)
		_, _ = io.WriteString(w, s.body)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	for i, chunk := range s.chunks {
		payload, _ := json.Marshal(map[string]any{
			"id":      fmt.Sprintf("chunk-%d", i),
			"object":  "chat.completion.chunk",
			"created": 1,
			"model":   "test-model",
			"choices": []map[string]any{{"index": 0, "delta": map[string]string{"content": chunk}}},
		})
		_, _ = fmt.Fprintf(w, "data: %s\n\n", payload)
	}
	_, _ = io.WriteString(w, "data: [DONE]\n\n")
}

func (s *chatServer) lastRequest() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.request
}

func newTestSummarizer(t *testing.T, srv *chatServer, opts Options) *OpenAI {
	t.Helper()
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	opts.APIKey = "test-key"
	opts.BaseURL = ts.URL + "/v1"
	s, err := NewOpenAI(opts)
	require.NoError(t, err)
	return s
}

func TestSummarizeConcatenatesStreamedChunks(t *testing.T) {
	srv := &chatServer{chunks: []string{"A short ", "greeting", "."}}
	s := newTestSummarizer(t, srv, Options{
		Model:           "test-model",
		Prompt:          "Summarize: {{.Transcript}}",
		TopP:            0.5,
		Temperature:     0.25,
		PresencePenalty: 1,
		MinTokens:       64,
		MaxTokens:       32,
	})

	result := s.Summarize(context.Background(), "hello world")
	require.Equal(t, OutcomeText, result.Outcome)
	require.Equal(t, "A short greeting.", result.Text)

	req := srv.lastRequest()
	require.Equal(t, "test-model", req["model"])
	require.Equal(t, true, req["stream"])
	require.InDelta(t, 0.5, req["top_p"], 1e-6)
	require.InDelta(t, 0.25, req["temperature"], 1e-6)
	require.InDelta(t, 1.0, req["presence_penalty"], 1e-6)
	require.InDelta(t, 64.0, req["max_tokens"], 1e-6)

	messages := req["messages"].([]any)
	require.Len(t, messages, 1)
	require.Equal(t, "Summarize: hello world", messages[0].(map[string]any)["content"])
}

func TestSummarizeSendsZeroTemperature(t *testing.T) {
	srv := &chatServer{chunks: []string{"ok"}}
	s := newTestSummarizer(t, srv, Options{Model: "test-model", TopP: 1, Temperature: 0})

	result := s.Summarize(context.Background(), "hello world")
	require.Equal(t, OutcomeText, result.Outcome)

	req := srv.lastRequest()
	require.Contains(t, req, "temperature")
	require.InDelta(t, 0.0, req["temperature"], 1e-6)
}

func TestSummarizeWhitespaceIsSkippedWithoutNetwork(t *testing.T) {
	srv := &chatServer{chunks: []string{"never"}}
	s := newTestSummarizer(t, srv, Options{})

	result := s.Summarize(context.Background(), " \n\t ")
	require.Equal(t, OutcomeSkipped, result.Outcome)
	require.Equal(t, int32(0), srv.calls.Load())
}

func TestSummarizeServiceErrorCarriesMessage(t *testing.T) {
	srv := &chatServer{
		status: http.StatusTooManyRequests,
		body:   `{"error":{"message":"quota exceeded","type":"insufficient_quota"}}`,
	}
	s := newTestSummarizer(t, srv, Options{})

	result := s.Summarize(context.Background(), "hello")
	require.Equal(t, OutcomeServiceError, result.Outcome)
	require.Equal(t, "quota exceeded", result.Message)
	require.False(t, result.OK())
}

func TestSummarizeEmptyStreamIsServiceError(t *testing.T) {
	srv := &chatServer{chunks: []string{"  "}}
	s := newTestSummarizer(t, srv, Options{})

	result := s.Summarize(context.Background(), "hello")
	require.Equal(t, OutcomeServiceError, result.Outcome)
	require.Contains(t, result.Message, "empty summary")
}

func TestDefaultPromptIncludesTranscript(t *testing.T) {
	srv := &chatServer{chunks: []string{"ok"}}
	s := newTestSummarizer(t, srv, Options{})

	require.True(t, s.Summarize(context.Background(), "buy milk").OK())
	messages := srv.lastRequest()["messages"].([]any)
	content := messages[0].(map[string]any)["content"].(string)
	require.True(t, strings.HasSuffix(content, "buy milk"))
}

func TestParsePromptRejectsBadTemplates(t *testing.T) {
	_, err := ParsePrompt("{{.Transcript")
	require.Error(t, err)

	_, err = ParsePrompt("{{.Missing}}")
	require.Error(t, err)

	_, err = NewOpenAI(Options{Prompt: "{{.Nope}}"})
	require.Error(t, err)
}

func TestTokenBudget(t *testing.T) {
	require.Equal(t, 0, tokenBudget(0, 0))
	require.Equal(t, 0, tokenBudget(100, 0))
	require.Equal(t, 200, tokenBudget(100, 200))
	require.Equal(t, 100, tokenBudget(100, 50))
}
