package generate

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIGenerator_Complete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req openAIRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-test", req.Model)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Equal(t, "hello", req.Messages[1].Content)
		require.NotNil(t, req.ResponseFormat)

		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": `{"intent":"greeting"}`}},
			},
		})
	}))
	defer server.Close()

	g, err := NewOpenAIGenerator("gpt-test", "", "sk-test")
	require.NoError(t, err)
	g.WithEndpoint(server.URL)

	out, err := g.Complete(context.Background(), "hello", map[string]any{"json": true})
	require.NoError(t, err)
	assert.Equal(t, `{"intent":"greeting"}`, out)
}

func TestOpenAIGenerator_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	g, err := NewOpenAIGenerator("gpt-test", "", "sk-test")
	require.NoError(t, err)
	g.WithEndpoint(server.URL)

	_, err = g.Complete(context.Background(), "hello", nil)
	assert.Error(t, err)
}

func TestAnthropicGenerator_Complete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "key", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))

		var req anthropicRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, defaultSystem, req.System)

		json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]any{{"type": "text", "text": `{"intent":"checkout"}`}},
		})
	}))
	defer server.Close()

	g, err := NewAnthropicGenerator("claude-test", "", "key")
	require.NoError(t, err)
	g.WithEndpoint(server.URL)

	out, err := g.Complete(context.Background(), "checkout please", nil)
	require.NoError(t, err)
	assert.Equal(t, `{"intent":"checkout"}`, out)
}

func TestGenerator_ContextCancelsRequest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	g, err := NewAnthropicGenerator("claude-test", "", "key")
	require.NoError(t, err)
	g.WithEndpoint(server.URL)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err = g.Complete(ctx, "slow", nil)
	assert.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestResolveAPIKey(t *testing.T) {
	t.Setenv("LOOM_TEST_KEY", "from-env")

	key, err := resolveAPIKey("LOOM_TEST_KEY", "")
	require.NoError(t, err)
	assert.Equal(t, "from-env", key)

	key, err = resolveAPIKey("LOOM_TEST_KEY", "direct")
	require.NoError(t, err)
	assert.Equal(t, "direct", key)

	_, err = resolveAPIKey("LOOM_MISSING_KEY", "")
	assert.Error(t, err)
}

func TestMockGenerator(t *testing.T) {
	g := NewMockGenerator("test").WithDelay(0)

	out, err := g.Complete(context.Background(), `User Input: "show me a blazer"`, nil)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "```json"))
	assert.Contains(t, out, `"category":"blazer"`)

	out, err = g.Complete(context.Background(), `User Input: "show me shirts"`, nil)
	require.NoError(t, err)
	assert.Contains(t, out, `"intent":"unknown"`)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewMockGenerator("test").WithDelay(time.Second).Complete(ctx, "x", nil)
	assert.ErrorIs(t, err, context.Canceled)
}
