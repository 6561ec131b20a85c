package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubGenerator struct {
	content string
	err     error
	calls   int
}

func (s *stubGenerator) GenerateContent(context.Context, string) (ContentResponse, error) {
	s.calls++
	if s.err != nil {
		return ContentResponse{}, s.err
	}
	return ContentResponse{Content: s.content}, nil
}

func TestFallback(t *testing.T) {
	ctx := context.Background()

	t.Run("FirstSuccessWins", func(t *testing.T) {
		first := &stubGenerator{content: "one"}
		second := &stubGenerator{content: "two"}
		resp, err := NewFallback(zap.NewNop(), first, nil, second).GenerateContent(ctx, "p")
		require.NoError(t, err)
		assert.Equal(t, "one", resp.Content)
		assert.Equal(t, 0, second.calls)
	})

	t.Run("FallsThrough", func(t *testing.T) {
		first := &stubGenerator{err: errors.New("quota")}
		second := &stubGenerator{content: "two"}
		resp, err := NewFallback(zap.NewNop(), first, second).GenerateContent(ctx, "p")
		require.NoError(t, err)
		assert.Equal(t, "two", resp.Content)
	})

	t.Run("AllFail", func(t *testing.T) {
		_, err := NewFallback(zap.NewNop(), &stubGenerator{err: errors.New("a")}, &stubGenerator{err: errors.New("b")}).
			GenerateContent(ctx, "p")
		assert.ErrorContains(t, err, "all text generators failed")
	})

	t.Run("Empty", func(t *testing.T) {
		_, err := NewFallback(zap.NewNop()).GenerateContent(ctx, "p")
		assert.Error(t, err)
	})
}

func TestGroqClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, groqModel, body["model"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"model": "llama-test",
			"choices": [{"message": {"content": "{\"label\":\"READY\"}"}}],
			"usage": {"prompt_tokens": 12, "completion_tokens": 5, "total_tokens": 17}
		}`))
	}))
	defer srv.Close()

	resp, err := NewGroqClient("secret").WithURL(srv.URL).GenerateContent(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, `{"label":"READY"}`, resp.Content)
	assert.Equal(t, 12, resp.Usage.PromptTokens)
	assert.Equal(t, 5, resp.Usage.CompletionTokens)
	assert.Equal(t, "llama-test", resp.Usage.Model)

	t.Run("ErrorStatus", func(t *testing.T) {
		bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "rate limited", http.StatusTooManyRequests)
		}))
		defer bad.Close()

		_, err := NewGroqClient("secret").WithURL(bad.URL).GenerateContent(context.Background(), "hello")
		assert.ErrorContains(t, err, "status=429")
	})
}
