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
)

func TestOpenAIClient_Complete(t *testing.T) {
	var gotBody openAIChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"{\"proposal\":\"NEW\"}"}}]}`))
	}))
	defer srv.Close()

	client := NewOpenAIClient(OpenAIConfig{APIKey: "test-key", BaseURL: srv.URL})
	out, err := client.Complete(context.Background(), "analyze this cluster")
	require.NoError(t, err)
	assert.Equal(t, `{"proposal":"NEW"}`, out)
	assert.Equal(t, "analyze this cluster", gotBody.Messages[0].Content)
	assert.Zero(t, gotBody.Temperature, "synthesis must run at temperature 0")
}

func TestOpenAIClient_RateLimitIsTransientStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewOpenAIClient(OpenAIConfig{APIKey: "k", BaseURL: srv.URL})
	_, err := client.Complete(context.Background(), "prompt")
	require.Error(t, err)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusTooManyRequests, statusErr.Code)
	assert.True(t, IsTransient(err))
}

func TestOpenAIEmbeddingClient_Embed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		_, _ = w.Write([]byte(`{"data":[{"embedding":[0.1,0.2,0.3]}]}`))
	}))
	defer srv.Close()

	client := NewOpenAIEmbeddingClient(OpenAIEmbeddingConfig{APIKey: "k", BaseURL: srv.URL})
	vec, err := client.Embed(context.Background(), "reset my password")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
}

func TestOllamaClient_Embed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embed", r.URL.Path)
		_, _ = w.Write([]byte(`{"embeddings":[[1,0,0]]}`))
	}))
	defer srv.Close()

	client := NewOllamaClient(OllamaConfig{BaseURL: srv.URL, Model: "nomic-embed-text"})
	vec, err := client.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0, 0}, vec)
}

func TestOllamaClient_EmptyEmbeddingIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"embeddings":[]}`))
	}))
	defer srv.Close()

	client := NewOllamaClient(OllamaConfig{BaseURL: srv.URL, Model: "nomic-embed-text"})
	_, err := client.Embed(context.Background(), "hello")
	assert.Error(t, err)
}

func TestCircuitBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewOpenAIClient(OpenAIConfig{APIKey: "k", BaseURL: srv.URL})

	// Default breaker trips after 3 consecutive failures.
	for i := 0; i < 3; i++ {
		_, err := client.Complete(context.Background(), "p")
		require.Error(t, err)
	}

	_, err := client.Complete(context.Background(), "p")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, 3, calls, "open circuit must fail fast without calling the API")
}

func TestAnthropicClient_Complete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		_, _ = w.Write([]byte(`{"content":[{"text":"ok"}]}`))
	}))
	defer srv.Close()

	client := NewAnthropicClient(AnthropicConfig{APIKey: "test-key", BaseURL: srv.URL})
	out, err := client.Complete(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
}
