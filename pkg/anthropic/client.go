// Package anthropic adapts the official Anthropic SDK to the chat-completion
// contract used by the rest of the engine, so runs can target Anthropic
// models directly instead of routing through OpenRouter. Model names use the
// "anthropic-direct/<model>" prefix; the prefix is stripped before dispatch.
package anthropic

import (
	"context"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"

	"github.com/argos-eval/debate-cli/pkg/openrouter"
)

// ModelPrefix routes a model name to the direct Anthropic client.
const ModelPrefix = "anthropic-direct/"

// IsDirectModel reports whether a model name targets Anthropic directly.
func IsDirectModel(model string) bool {
	return strings.HasPrefix(model, ModelPrefix)
}

type sdkClient struct {
	client sdk.Client
}

// NewClient creates a chat client backed by the official SDK. It satisfies
// openrouter.Client so the call executor can treat both providers uniformly.
func NewClient(apiKey string, opts ...option.RequestOption) openrouter.Client {
	all := append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &sdkClient{client: sdk.NewClient(all...)}
}

func (c *sdkClient) ChatCompletion(ctx context.Context, req openrouter.ChatRequest) (*openrouter.ChatResponse, error) {
	maxTokens := int64(4096)
	if req.MaxTokens != nil {
		maxTokens = int64(*req.MaxTokens)
	}

	params := sdk.MessageNewParams{
		Model:       sdk.Model(strings.TrimPrefix(req.Model, ModelPrefix)),
		MaxTokens:   maxTokens,
		Temperature: sdk.Float(req.Temperature),
		Messages:    toSDKMessages(req.Messages),
	}

	// The OpenRouter reasoning budget maps onto extended thinking. Effort
	// levels have no direct equivalent here; only the token budget carries.
	if req.Reasoning != nil && req.Reasoning.MaxTokens > 0 {
		params.Thinking = sdk.ThinkingConfigParamOfEnabled(int64(req.Reasoning.MaxTokens))
		// Thinking requires temperature 1 and must fit under max_tokens.
		params.Temperature = sdk.Float(1)
		if int64(req.Reasoning.MaxTokens) >= maxTokens {
			params.MaxTokens = int64(req.Reasoning.MaxTokens) + maxTokens
		}
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, eris.Wrap(err, "anthropic: create message")
	}

	return fromSDKMessage(msg), nil
}

func toSDKMessages(messages []openrouter.Message) []sdk.MessageParam {
	out := make([]sdk.MessageParam, 0, len(messages))
	for _, m := range messages {
		block := sdk.NewTextBlock(m.Content)
		if m.Role == "assistant" {
			out = append(out, sdk.NewAssistantMessage(block))
		} else {
			out = append(out, sdk.NewUserMessage(block))
		}
	}
	return out
}

func fromSDKMessage(msg *sdk.Message) *openrouter.ChatResponse {
	var content, thinking strings.Builder
	for _, block := range msg.Content {
		switch block.Type {
		case "text":
			content.WriteString(block.Text)
		case "thinking":
			thinking.WriteString(block.Thinking)
		}
	}

	choice := openrouter.Choice{
		Message: openrouter.ChoiceMessage{
			Role:    "assistant",
			Content: content.String(),
		},
	}
	if thinking.Len() > 0 {
		t := thinking.String()
		choice.Message.Reasoning = &t
	}

	return &openrouter.ChatResponse{
		ID:      msg.ID,
		Choices: []openrouter.Choice{choice},
		Usage: openrouter.Usage{
			PromptTokens:     int(msg.Usage.InputTokens),
			CompletionTokens: int(msg.Usage.OutputTokens),
			TotalTokens:      int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
		},
	}
}
