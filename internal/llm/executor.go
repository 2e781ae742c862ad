// Package llm issues single model requests with a watchdog timeout, bounded
// retry on timeout, and a normalized failure taxonomy. It is the only layer
// that talks to chat providers; everything above it sees Result or CallError.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/argos-eval/debate-cli/internal/model"
	"github.com/argos-eval/debate-cli/internal/resilience"
	"github.com/argos-eval/debate-cli/pkg/anthropic"
	"github.com/argos-eval/debate-cli/pkg/openrouter"
)

// FailureKind classifies a model-call failure.
type FailureKind string

const (
	// FailureTimeout: the watchdog fired and retries were exhausted.
	FailureTimeout FailureKind = "timeout"
	// FailureAPI: the provider reported an error; not retried.
	FailureAPI FailureKind = "api_error"
	// FailureNoResponse: a 2xx response with no usable choice.
	FailureNoResponse FailureKind = "no_response"
)

// CallError is the single failure type returned by the executor.
type CallError struct {
	Kind    FailureKind
	Message string
	Err     error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("llm: %s: %s", e.Kind, e.Message)
}

func (e *CallError) Unwrap() error { return e.Err }

// IsTimeout reports whether err is a timeout-class CallError.
func IsTimeout(err error) bool {
	var ce *CallError
	return errors.As(err, &ce) && ce.Kind == FailureTimeout
}

// Request describes one model call.
type Request struct {
	Prompt             string
	Model              string
	Temperature        float64
	MaxTokens          int // 0 = provider default
	ReasoningEffort    string
	ReasoningMaxTokens int
}

// Result is a successful model response.
type Result struct {
	Text              string
	InternalReasoning *string
	ReasoningDetails  json.RawMessage
	Usage             model.TokenUsage
}

// Meta labels a call for error logging and retry log lines.
type Meta struct {
	RunID    string
	RecordID string
	Context  string // e.g. "Debater 1 Turn 2", "Judge", "QA"
}

// Router selects the chat client for a model name. Models carrying the
// anthropic-direct prefix dispatch to the Anthropic client when configured.
type Router struct {
	OpenRouter openrouter.Client
	Anthropic  openrouter.Client
}

func (r Router) clientFor(modelName string) (openrouter.Client, error) {
	if anthropic.IsDirectModel(modelName) {
		if r.Anthropic == nil {
			return nil, eris.Errorf("llm: no anthropic client configured for model %s", modelName)
		}
		return r.Anthropic, nil
	}
	if r.OpenRouter == nil {
		return nil, eris.New("llm: no openrouter client configured")
	}
	return r.OpenRouter, nil
}

// Options configures an Executor.
type Options struct {
	// Timeout is the per-attempt watchdog, independent of any transport
	// timeout below it. Default: 180s.
	Timeout time.Duration
	// MaxRetries bounds retries after a timeout. Default: 3.
	MaxRetries int
	// Backoff is the base of the exponential backoff between timeout
	// retries (base * 2^attempt). Default: 2s.
	Backoff time.Duration
	// Seed, when non-nil, is sent with every request for provider-side
	// sampling determinism.
	Seed *int
	// ErrorLog receives structured per-call error entries; may be nil.
	ErrorLog *ErrorLog
}

// Executor issues model calls.
type Executor struct {
	router Router
	opts   Options
}

// NewExecutor creates an Executor.
func NewExecutor(router Router, opts Options) *Executor {
	if opts.Timeout <= 0 {
		opts.Timeout = 180 * time.Second
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 2 * time.Second
	}
	return &Executor{router: router, opts: opts}
}

// Execute performs one model call. Timeouts are retried with exponential
// backoff up to MaxRetries; every other failure is classified and returned
// immediately. A nil error guarantees non-empty provider output was received
// (though the content itself may be empty text).
func (e *Executor) Execute(ctx context.Context, req Request, meta Meta) (*Result, error) {
	client, err := e.router.clientFor(req.Model)
	if err != nil {
		e.logError(meta, err.Error())
		return nil, &CallError{Kind: FailureAPI, Message: err.Error(), Err: err}
	}

	chatReq := openrouter.ChatRequest{
		Model:       req.Model,
		Messages:    []openrouter.Message{{Role: "user", Content: req.Prompt}},
		Temperature: req.Temperature,
		Seed:        e.opts.Seed,
	}
	if req.MaxTokens > 0 {
		chatReq.MaxTokens = &req.MaxTokens
	}
	if req.ReasoningEffort != "" || req.ReasoningMaxTokens > 0 {
		chatReq.Reasoning = &openrouter.ReasoningConfig{
			Effort:    req.ReasoningEffort,
			MaxTokens: req.ReasoningMaxTokens,
		}
	}

	retryCfg := resilience.RetryConfig{
		MaxRetries:  e.opts.MaxRetries,
		Base:        e.opts.Backoff,
		ShouldRetry: IsTimeout,
		OnRetry: func(attempt int, err error) {
			zap.L().Warn("model call timeout, retrying",
				zap.String("run_id", meta.RunID),
				zap.String("record_id", meta.RecordID),
				zap.String("context", meta.Context),
				zap.String("model", req.Model),
				zap.Int("attempt", attempt),
			)
		},
	}

	resp, err := resilience.DoVal(ctx, retryCfg, func(ctx context.Context) (*openrouter.ChatResponse, error) {
		return e.attempt(ctx, client, chatReq)
	})
	if err != nil {
		var ce *CallError
		if !errors.As(err, &ce) {
			ce = classify(err)
		}
		if ce.Kind == FailureTimeout {
			ce.Message = fmt.Sprintf("request timeout after %d attempts", e.opts.MaxRetries+1)
		}
		e.logError(meta, ce.Message)
		return nil, ce
	}

	if resp.Error != nil {
		ce := &CallError{Kind: FailureAPI, Message: resp.Error.Message, Err: resp.Error}
		e.logError(meta, ce.Message)
		return nil, ce
	}
	if len(resp.Choices) == 0 {
		ce := &CallError{Kind: FailureNoResponse, Message: "no response from model"}
		e.logError(meta, ce.Message)
		return nil, ce
	}

	msg := resp.Choices[0].Message
	return &Result{
		Text:              msg.Content,
		InternalReasoning: msg.Reasoning,
		ReasoningDetails:  msg.ReasoningDetails,
		Usage: model.TokenUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

// attempt runs one call under the watchdog. When the watchdog fires, the
// worker slot is released immediately: the underlying call keeps running in
// its goroutine until the cancelled context unwinds it, and its eventual
// outcome is discarded via the buffered channel.
func (e *Executor) attempt(ctx context.Context, client openrouter.Client, req openrouter.ChatRequest) (*openrouter.ChatResponse, error) {
	callCtx, cancel := context.WithCancel(ctx)

	type outcome struct {
		resp *openrouter.ChatResponse
		err  error
	}
	done := make(chan outcome, 1)
	go func() {
		resp, err := client.ChatCompletion(callCtx, req)
		done <- outcome{resp, err}
	}()

	timer := time.NewTimer(e.opts.Timeout)
	defer timer.Stop()

	select {
	case out := <-done:
		cancel()
		if out.err != nil {
			return nil, classify(out.err)
		}
		return out.resp, nil
	case <-timer.C:
		cancel()
		return nil, &CallError{Kind: FailureTimeout, Message: fmt.Sprintf("request exceeded %s watchdog", e.opts.Timeout)}
	case <-ctx.Done():
		cancel()
		return nil, ctx.Err()
	}
}

// classify maps transport and provider errors into the failure taxonomy.
// Everything that is not a watchdog timeout is an API-class failure and must
// not be retried.
func classify(err error) *CallError {
	var apiErr *openrouter.APIError
	if errors.As(err, &apiErr) {
		return &CallError{Kind: FailureAPI, Message: apiErr.Message, Err: err}
	}
	return &CallError{Kind: FailureAPI, Message: err.Error(), Err: err}
}

func (e *Executor) logError(meta Meta, message string) {
	if e.opts.ErrorLog == nil || meta.RunID == "" || meta.RecordID == "" {
		return
	}
	e.opts.ErrorLog.Log(meta.RunID, meta.RecordID, meta.Context, message)
}
