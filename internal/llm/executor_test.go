package llm

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/argos-eval/debate-cli/pkg/openrouter"
)

// fakeClient scripts ChatCompletion outcomes per call.
type fakeClient struct {
	calls     atomic.Int32
	responses []func(ctx context.Context) (*openrouter.ChatResponse, error)
}

func (f *fakeClient) ChatCompletion(ctx context.Context, req openrouter.ChatRequest) (*openrouter.ChatResponse, error) {
	n := int(f.calls.Add(1)) - 1
	if n >= len(f.responses) {
		n = len(f.responses) - 1
	}
	return f.responses[n](ctx)
}

func textResponse(text string) func(context.Context) (*openrouter.ChatResponse, error) {
	return func(context.Context) (*openrouter.ChatResponse, error) {
		return &openrouter.ChatResponse{
			Choices: []openrouter.Choice{{Message: openrouter.ChoiceMessage{Content: text}}},
			Usage:   openrouter.Usage{PromptTokens: 3, CompletionTokens: 2, TotalTokens: 5},
		}, nil
	}
}

func hangForever() func(context.Context) (*openrouter.ChatResponse, error) {
	return func(ctx context.Context) (*openrouter.ChatResponse, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
}

func TestExecute_Success(t *testing.T) {
	client := &fakeClient{responses: []func(context.Context) (*openrouter.ChatResponse, error){textResponse("hello")}}
	ex := NewExecutor(Router{OpenRouter: client}, Options{Timeout: time.Second})

	res, err := ex.Execute(context.Background(), Request{Prompt: "p", Model: "m"}, Meta{})
	require.NoError(t, err)
	assert.Equal(t, "hello", res.Text)
	assert.Equal(t, 5, res.Usage.TotalTokens)
	assert.EqualValues(t, 1, client.calls.Load())
}

func TestExecute_TimeoutRetriesThenSucceeds(t *testing.T) {
	client := &fakeClient{responses: []func(context.Context) (*openrouter.ChatResponse, error){
		hangForever(),
		textResponse("recovered"),
	}}
	ex := NewExecutor(Router{OpenRouter: client}, Options{
		Timeout:    20 * time.Millisecond,
		MaxRetries: 2,
		Backoff:    time.Millisecond,
	})

	res, err := ex.Execute(context.Background(), Request{Prompt: "p", Model: "m"}, Meta{})
	require.NoError(t, err)
	assert.Equal(t, "recovered", res.Text)
	assert.EqualValues(t, 2, client.calls.Load())
}

func TestExecute_TimeoutExhaustsRetries(t *testing.T) {
	client := &fakeClient{responses: []func(context.Context) (*openrouter.ChatResponse, error){hangForever()}}
	ex := NewExecutor(Router{OpenRouter: client}, Options{
		Timeout:    10 * time.Millisecond,
		MaxRetries: 2,
		Backoff:    time.Millisecond,
	})

	start := time.Now()
	_, err := ex.Execute(context.Background(), Request{Prompt: "p", Model: "m"}, Meta{})
	require.Error(t, err)
	assert.True(t, IsTimeout(err))
	assert.Contains(t, err.Error(), "3 attempts")
	assert.EqualValues(t, 3, client.calls.Load())
	// Each watchdog fires even though the underlying calls never return:
	// the caller is released without waiting on the hung goroutines.
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestExecute_APIErrorNotRetried(t *testing.T) {
	apiErr := &openrouter.APIError{StatusCode: 400, Message: "bad request"}
	client := &fakeClient{responses: []func(context.Context) (*openrouter.ChatResponse, error){
		func(context.Context) (*openrouter.ChatResponse, error) { return nil, apiErr },
	}}
	ex := NewExecutor(Router{OpenRouter: client}, Options{Timeout: time.Second, MaxRetries: 3})

	_, err := ex.Execute(context.Background(), Request{Prompt: "p", Model: "m"}, Meta{})
	require.Error(t, err)

	var ce *CallError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, FailureAPI, ce.Kind)
	assert.Equal(t, "bad request", ce.Message)
	assert.EqualValues(t, 1, client.calls.Load())
}

func TestExecute_ErrorEnvelopeIsAPIFailure(t *testing.T) {
	client := &fakeClient{responses: []func(context.Context) (*openrouter.ChatResponse, error){
		func(context.Context) (*openrouter.ChatResponse, error) {
			return &openrouter.ChatResponse{Error: &openrouter.APIError{Message: "overloaded"}}, nil
		},
	}}
	ex := NewExecutor(Router{OpenRouter: client}, Options{Timeout: time.Second})

	_, err := ex.Execute(context.Background(), Request{Prompt: "p", Model: "m"}, Meta{})
	var ce *CallError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, FailureAPI, ce.Kind)
	assert.Equal(t, "overloaded", ce.Message)
}

func TestExecute_EmptyChoicesIsNoResponse(t *testing.T) {
	client := &fakeClient{responses: []func(context.Context) (*openrouter.ChatResponse, error){
		func(context.Context) (*openrouter.ChatResponse, error) {
			return &openrouter.ChatResponse{}, nil
		},
	}}
	ex := NewExecutor(Router{OpenRouter: client}, Options{Timeout: time.Second})

	_, err := ex.Execute(context.Background(), Request{Prompt: "p", Model: "m"}, Meta{})
	var ce *CallError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, FailureNoResponse, ce.Kind)
}

func TestExecute_ErrorLogWrittenAndNeverFatal(t *testing.T) {
	dir := t.TempDir()
	client := &fakeClient{responses: []func(context.Context) (*openrouter.ChatResponse, error){
		func(context.Context) (*openrouter.ChatResponse, error) {
			return nil, &openrouter.APIError{StatusCode: 429, Message: "rate limited"}
		},
	}}
	ex := NewExecutor(Router{OpenRouter: client}, Options{
		Timeout:  time.Second,
		ErrorLog: NewErrorLog(dir),
	})

	_, err := ex.Execute(context.Background(), Request{Prompt: "p", Model: "m"}, Meta{
		RunID:    "run1234",
		RecordID: "rec5678",
		Context:  "Debater 0 Turn 1",
	})
	require.Error(t, err)

	data, readErr := os.ReadFile(filepath.Join(dir, "run1234.txt"))
	require.NoError(t, readErr)
	content := string(data)
	assert.Contains(t, content, "Run ID: run1234")
	assert.Contains(t, content, "Record ID: rec5678")
	assert.Contains(t, content, "Debater 0 Turn 1 Error:")
	assert.Contains(t, content, "rate limited")
}

func TestExecute_UnroutableModel(t *testing.T) {
	ex := NewExecutor(Router{OpenRouter: &fakeClient{responses: []func(context.Context) (*openrouter.ChatResponse, error){textResponse("x")}}}, Options{})

	_, err := ex.Execute(context.Background(), Request{Prompt: "p", Model: "anthropic-direct/claude-sonnet-4-5"}, Meta{})
	var ce *CallError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, FailureAPI, ce.Kind)
	assert.Contains(t, ce.Message, "no anthropic client")
}
