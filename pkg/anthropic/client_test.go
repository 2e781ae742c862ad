package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/argos-eval/debate-cli/pkg/openrouter"
)

func TestIsDirectModel(t *testing.T) {
	assert.True(t, IsDirectModel("anthropic-direct/claude-sonnet-4-5"))
	assert.False(t, IsDirectModel("anthropic/claude-sonnet-4.5"))
	assert.False(t, IsDirectModel("openai/gpt-4o-mini"))
}

func TestChatCompletion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/messages", r.URL.Path)

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		// The direct-routing prefix must not reach the API.
		assert.Equal(t, "claude-sonnet-4-5", req["model"])

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":    "msg_test",
			"type":  "message",
			"role":  "assistant",
			"model": "claude-sonnet-4-5",
			"content": []map[string]any{
				{"type": "thinking", "thinking": "let me think", "signature": "sig"},
				{"type": "text", "text": "Answer: 1"},
			},
			"stop_reason": "end_turn",
			"usage":       map[string]any{"input_tokens": 12, "output_tokens": 7},
		})
	}))
	defer srv.Close()

	client := NewClient("test-key", option.WithBaseURL(srv.URL))

	resp, err := client.ChatCompletion(context.Background(), openrouter.ChatRequest{
		Model:       "anthropic-direct/claude-sonnet-4-5",
		Messages:    []openrouter.Message{{Role: "user", Content: "pick one"}},
		Temperature: 0.3,
	})
	require.NoError(t, err)
	require.Len(t, resp.Choices, 1)
	assert.Equal(t, "Answer: 1", resp.Choices[0].Message.Content)
	require.NotNil(t, resp.Choices[0].Message.Reasoning)
	assert.Equal(t, "let me think", *resp.Choices[0].Message.Reasoning)
	assert.Equal(t, 12, resp.Usage.PromptTokens)
	assert.Equal(t, 19, resp.Usage.TotalTokens)
}
