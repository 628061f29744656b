package reviewer

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/prreviewer/internal/retry"
	"github.com/prreviewer/internal/review"
)

type scriptedCompleter struct {
	replies []Completion
	errs    []error
	calls   int
	system  string
	user    string
}

func (s *scriptedCompleter) Model() string { return "scripted" }

func (s *scriptedCompleter) Complete(_ context.Context, system, user string) (Completion, error) {
	i := s.calls
	s.calls++
	s.system, s.user = system, user
	var err error
	if i < len(s.errs) {
		err = s.errs[i]
	}
	if err != nil {
		return Completion{}, err
	}
	if i < len(s.replies) {
		return s.replies[i], nil
	}
	return s.replies[len(s.replies)-1], nil
}

func fastRetry() retry.RetryConfig {
	return retry.RetryConfig{
		MaxRetries: 2,
		BaseDelay:  time.Millisecond,
		MaxDelay:   5 * time.Millisecond,
		Multiplier: 2,
		Retryable:  retry.IsRetryableError,
	}
}

func TestReviewer_ReviewFile(t *testing.T) {
	c := &scriptedCompleter{replies: []Completion{{
		Text:        `[{"line": 12, "body": "🐛 missing error check"}]`,
		InputTokens: 100, OutputTokens: 20,
	}}}
	r := NewReviewer(c, fastRetry())

	got, err := r.ReviewFile(context.Background(), "main.go", "diff --git a/main.go b/main.go")
	require.NoError(t, err)
	assert.Equal(t, []review.Finding{{Line: 12, Body: "🐛 missing error check"}}, got)

	assert.Equal(t, SystemPrompt, c.system)
	assert.Equal(t, "File: main.go\n\n```diff\ndiff --git a/main.go b/main.go\n```", c.user)
}

func TestReviewer_RetriesTransientErrors(t *testing.T) {
	c := &scriptedCompleter{
		errs:    []error{errors.New("529 overloaded"), nil},
		replies: []Completion{{}, {Text: "[]"}},
	}
	r := NewReviewer(c, fastRetry())

	got, err := r.ReviewFile(context.Background(), "a.go", "x")
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, 2, c.calls)
}

func TestReviewer_PermanentErrorReturned(t *testing.T) {
	c := &scriptedCompleter{errs: []error{errors.New("401 invalid x-api-key")}}
	r := NewReviewer(c, fastRetry())

	_, err := r.ReviewFile(context.Background(), "a.go", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.Equal(t, 1, c.calls)
}

func TestReviewer_UnparseableReplyIsEmpty(t *testing.T) {
	c := &scriptedCompleter{replies: []Completion{{Text: "I could not find any issues."}}}
	r := NewReviewer(c, fastRetry())

	got, err := r.ReviewFile(context.Background(), "a.go", "x")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestClaudeCompleter_Complete(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &body))

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "msg_01",
			"type": "message",
			"role": "assistant",
			"model": "claude-haiku-4-5",
			"content": [{"type": "text", "text": "[{\"line\": 3, \"body\": \"🧹 tidy\"}]"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 321, "output_tokens": 45}
		}`)
	}))
	defer srv.Close()

	c := NewClaudeCompleter(Options{APIKey: "test-key", BaseURL: srv.URL, MaxTokens: 1000})
	got, err := c.Complete(context.Background(), "sys", "File: a.go")
	require.NoError(t, err)

	assert.Equal(t, `[{"line": 3, "body": "🧹 tidy"}]`, got.Text)
	assert.EqualValues(t, 321, got.InputTokens)
	assert.EqualValues(t, 45, got.OutputTokens)
	assert.Equal(t, DefaultClaudeModel, c.Model())

	assert.Equal(t, "claude-haiku-4-5", body["model"])
	assert.EqualValues(t, 1000, body["max_tokens"])
	system, ok := body["system"].([]any)
	require.True(t, ok)
	require.Len(t, system, 1)
	assert.Equal(t, "sys", system[0].(map[string]any)["text"])
}

func TestClaudeCompleter_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = io.WriteString(w, `{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`)
	}))
	defer srv.Close()

	c := NewClaudeCompleter(Options{APIKey: "k", BaseURL: srv.URL})
	_, err := c.Complete(context.Background(), "sys", "user")
	require.Error(t, err)
	assert.True(t, retry.IsRetryableError(err), err.Error())
}

type fakeModel struct {
	messages []llms.MessageContent
	resp     *llms.ContentResponse
	err      error
}

func (f *fakeModel) GenerateContent(_ context.Context, messages []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	f.messages = messages
	return f.resp, f.err
}

func (f *fakeModel) Call(context.Context, string, ...llms.CallOption) (string, error) {
	return "", errors.New("not used")
}

func TestLangChainCompleter_Complete(t *testing.T) {
	m := &fakeModel{resp: &llms.ContentResponse{Choices: []*llms.ContentChoice{{
		Content:        "[]",
		GenerationInfo: map[string]any{"PromptTokens": 55, "CompletionTokens": 2},
	}}}}
	c := NewLangChainCompleterFromModel(Options{Provider: ProviderOpenAI, Model: "gpt-4o-mini"}, m)

	got, err := c.Complete(context.Background(), "sys", "user")
	require.NoError(t, err)
	assert.Equal(t, "[]", got.Text)
	assert.EqualValues(t, 55, got.InputTokens)
	assert.EqualValues(t, 2, got.OutputTokens)
	assert.Equal(t, "gpt-4o-mini", c.Model())

	require.Len(t, m.messages, 2)
	assert.Equal(t, llms.ChatMessageTypeSystem, m.messages[0].Role)
	assert.Equal(t, llms.ChatMessageTypeHuman, m.messages[1].Role)
}

func TestLangChainCompleter_NoChoices(t *testing.T) {
	m := &fakeModel{resp: &llms.ContentResponse{}}
	c := NewLangChainCompleterFromModel(Options{Provider: ProviderOllama}, m)

	_, err := c.Complete(context.Background(), "sys", "user")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "no choices"))
}

func TestNewLangChainCompleter_UnknownProvider(t *testing.T) {
	_, err := NewLangChainCompleter(context.Background(), Options{Provider: "cobol"})
	require.Error(t, err)
}
