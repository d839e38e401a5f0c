package llm_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/book-expert/blog-workflow/internal/config"
	"github.com/book-expert/blog-workflow/internal/core"
	"github.com/book-expert/blog-workflow/internal/llm"
	"github.com/book-expert/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testModel = "qwen2:0.5b"

// chatRequest captures the fields of a chat completion request the tests inspect.
type chatRequest struct {
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int64   `json:"max_tokens"`
	Messages    []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func chatResponse(content string) map[string]any {
	return map[string]any{
		"id":      "chatcmpl-test",
		"object":  "chat.completion",
		"created": 1700000000,
		"model":   testModel,
		"choices": []map[string]any{
			{
				"index":         0,
				"finish_reason": "stop",
				"message": map[string]any{
					"role":    "assistant",
					"content": content,
				},
			},
		},
	}
}

// requestRecorder collects decoded requests across the server goroutine.
type requestRecorder struct {
	mu       sync.Mutex
	requests []chatRequest
}

func (r *requestRecorder) add(req chatRequest) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.requests = append(r.requests, req)
}

func (r *requestRecorder) all() []chatRequest {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]chatRequest(nil), r.requests...)
}

// newMockLLMServer serves chat completions, recording every decoded request.
func newMockLLMServer(
	t *testing.T,
	handler func(req chatRequest) (int, any),
) (*httptest.Server, *requestRecorder) {
	t.Helper()

	received := &requestRecorder{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/chat/completions":
			var req chatRequest

			err := json.NewDecoder(r.Body).Decode(&req)
			if err != nil {
				t.Errorf("Failed to decode request: %v", err)
			}

			received.add(req)
			status, body := handler(req)

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			_ = json.NewEncoder(w).Encode(body)
		case "/v1/models":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"object":"list","data":[{"id":"qwen2:0.5b","object":"model","created":1,"owned_by":"me"}]}`))
		default:
			t.Errorf("Unexpected request path: %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(server.Close)

	return server, received
}

func newTestClient(t *testing.T, baseURL string) *llm.Client {
	t.Helper()

	testLogger, err := logger.New(t.TempDir(), "llm-test.log")
	require.NoError(t, err)
	t.Cleanup(func() { _ = testLogger.Close() })

	client, err := llm.NewClient(llm.Settings{
		BaseURL:           baseURL + "/v1/",
		APIKey:            "test-key",
		Model:             testModel,
		Temperature:       0.7,
		GenerateMaxTokens: 2000,
		PolishMaxTokens:   1000,
		Timeout:           5 * time.Second,
	}, testLogger)
	require.NoError(t, err)

	return client
}

func TestNewClient_RequiresModel(t *testing.T) {
	t.Parallel()

	_, err := llm.NewClient(llm.Settings{APIKey: "key"}, nil)
	require.ErrorIs(t, err, llm.ErrModelEmpty)
}

func TestSettingsFromConfig(t *testing.T) {
	t.Parallel()

	settings := llm.SettingsFromConfig(config.LLMConfig{
		BaseURL:        "http://localhost:11434/v1",
		Model:          "m",
		TimeoutSeconds: 30,
	})

	assert.Equal(t, "http://localhost:11434/v1", settings.BaseURL)
	assert.Equal(t, "m", settings.Model)
	assert.Equal(t, 30*time.Second, settings.Timeout)
}

func TestClient_Generate_Success(t *testing.T) {
	t.Parallel()

	server, received := newMockLLMServer(t, func(_ chatRequest) (int, any) {
		return http.StatusOK, chatResponse("  # AI 与医疗\n\n正文  ")
	})
	client := newTestClient(t, server.URL)

	content, err := client.Generate(context.Background(), "AI 与医疗", core.LengthShort)
	require.NoError(t, err)
	assert.Equal(t, "# AI 与医疗\n\n正文", content)

	require.Len(t, received.all(), 1)

	req := received.all()[0]
	assert.Equal(t, testModel, req.Model)
	assert.Equal(t, int64(2000), req.MaxTokens)
	assert.InEpsilon(t, 0.7, req.Temperature, 0.001)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, "system", req.Messages[0].Role)
	assert.Contains(t, req.Messages[1].Content, "主题：AI 与医疗")
	assert.Contains(t, req.Messages[1].Content, "约300字")
}

func TestClient_Generate_ServiceFailure(t *testing.T) {
	t.Parallel()

	server, _ := newMockLLMServer(t, func(_ chatRequest) (int, any) {
		return http.StatusInternalServerError, map[string]any{
			"error": map[string]any{"message": "model overloaded", "type": "server_error"},
		}
	})
	client := newTestClient(t, server.URL)

	content, err := client.Generate(context.Background(), "topic", core.LengthMedium)
	require.Error(t, err)
	assert.Empty(t, content)

	var serviceErr *core.ServiceError

	require.ErrorAs(t, err, &serviceErr)
	assert.Equal(t, "generate", serviceErr.Op)
}

func TestClient_Generate_EmptyContent(t *testing.T) {
	t.Parallel()

	server, _ := newMockLLMServer(t, func(_ chatRequest) (int, any) {
		return http.StatusOK, chatResponse("   ")
	})
	client := newTestClient(t, server.URL)

	_, err := client.Generate(context.Background(), "topic", core.LengthLong)
	require.ErrorIs(t, err, llm.ErrEmptyResponse)
}

func TestClient_Generate_EmptyTopic(t *testing.T) {
	t.Parallel()

	server, received := newMockLLMServer(t, func(_ chatRequest) (int, any) {
		return http.StatusOK, chatResponse("unused")
	})
	client := newTestClient(t, server.URL)

	_, err := client.Generate(context.Background(), "  ", core.LengthShort)
	require.ErrorIs(t, err, llm.ErrTopicEmpty)
	assert.Empty(t, received.all())
}

func TestClient_Polish(t *testing.T) {
	t.Parallel()

	server, received := newMockLLMServer(t, func(_ chatRequest) (int, any) {
		return http.StatusOK, chatResponse(strings.ToUpper("polished"))
	})
	client := newTestClient(t, server.URL)

	content, err := client.Polish(context.Background(), "draft text", core.StyleStory)
	require.NoError(t, err)
	assert.Equal(t, "POLISHED", content)

	require.Len(t, received.all(), 1)

	req := received.all()[0]
	assert.Equal(t, int64(1000), req.MaxTokens)
	assert.Contains(t, req.Messages[0].Content, "story")
	assert.Contains(t, req.Messages[1].Content, "draft text")
}

func TestClient_Polish_ServiceFailure(t *testing.T) {
	t.Parallel()

	server, _ := newMockLLMServer(t, func(_ chatRequest) (int, any) {
		return http.StatusTooManyRequests, map[string]any{
			"error": map[string]any{"message": "quota", "type": "rate_limit"},
		}
	})
	client := newTestClient(t, server.URL)

	_, err := client.Polish(context.Background(), "draft", core.StyleBlog)

	var serviceErr *core.ServiceError

	require.ErrorAs(t, err, &serviceErr)
	assert.Equal(t, "polish", serviceErr.Op)
}

func TestClient_Ping(t *testing.T) {
	t.Parallel()

	server, _ := newMockLLMServer(t, func(_ chatRequest) (int, any) {
		return http.StatusOK, chatResponse("unused")
	})
	client := newTestClient(t, server.URL)

	require.NoError(t, client.Ping(context.Background()))
	assert.Equal(t, testModel, client.Model())
}

func TestLengthHint(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "约300字", llm.LengthHint(core.LengthShort))
	assert.Equal(t, "约500-800字", llm.LengthHint(core.LengthMedium))
	assert.Equal(t, "约1000字以上", llm.LengthHint(core.LengthLong))
	assert.Equal(t, "约500-800字", llm.LengthHint(core.Length("unknown")))
}
