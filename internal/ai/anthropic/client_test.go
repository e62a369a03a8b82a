package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fiftycompanies/waide-sub001/pkg/aiinterface"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := NewClient(&aiinterface.ClientConfig{
		APIKey:       "ak-test",
		BaseURL:      srv.URL + "/",
		Model:        "claude-3-5-haiku-latest",
		MaxRetries:   1,
		RetryBackoff: time.Millisecond,
	})
	require.NoError(t, err)
	return c
}

func TestChatCompletion(t *testing.T) {
	var got messagesRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "ak-test", r.Header.Get("x-api-key"))
		assert.Equal(t, apiVersion, r.Header.Get("anthropic-version"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"id":"msg_1","model":"claude-3-5-haiku-latest","stop_reason":"end_turn","content":[{"type":"text","text":"第一段"},{"type":"text","text":"第二段"}],"usage":{"input_tokens":20,"output_tokens":8}}`))
	})

	resp, err := c.ChatCompletion(context.Background(), &aiinterface.ChatCompletionRequest{
		Messages: []aiinterface.Message{
			{Role: "system", Content: "品牌语气"},
			{Role: "system", Content: "输出 JSON"},
			{Role: "user", Content: "写标题"},
		},
		MaxTokens: 300,
	})
	require.NoError(t, err)
	assert.Equal(t, "第一段第二段", resp.Content)
	assert.Equal(t, 28, resp.Usage.TotalTokens)
	assert.False(t, resp.Truncated())

	assert.Equal(t, "claude-3-5-haiku-latest", got.Model)
	assert.Equal(t, "品牌语气\n\n输出 JSON", got.System)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "user", got.Messages[0].Role)
}

func TestChatCompletionOverloadedIsRetried(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(529)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`))
	})

	_, err := c.ChatCompletion(context.Background(), &aiinterface.ChatCompletionRequest{
		Messages: []aiinterface.Message{{Role: "user", Content: "hi"}},
	})
	var clientErr *aiinterface.ClientError
	require.ErrorAs(t, err, &clientErr)
	assert.Equal(t, aiinterface.ErrorTypeServerError, clientErr.Type)
	assert.Contains(t, clientErr.Error(), "overloaded_error: Overloaded")
	assert.EqualValues(t, 2, calls.Load())
}

func TestParseErrorPlainBody(t *testing.T) {
	err := parseError(http.StatusBadRequest, []byte("bad request"))
	assert.Equal(t, aiinterface.ErrorTypeInvalidParams, err.Type)
	assert.Contains(t, err.Error(), "bad request")
}
