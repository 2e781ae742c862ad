package qa

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/argos-eval/debate-cli/internal/llm"
	"github.com/argos-eval/debate-cli/internal/model"
	"github.com/argos-eval/debate-cli/internal/prompts"
	"github.com/argos-eval/debate-cli/pkg/openrouter"
)

const qaPromptsYAML = `
qa: |
  Answer this question.
  {question}
  {options_text}
  Choose one of: {letter_choices}.
  {response_format_prompt}
shared: "Respond with <BEGIN FINAL ANSWER>Answer: <index>\nConfidence: <0-100>%\nReasoning: <text></END FINAL ANSWER>"
`

type countingClient struct {
	mu       sync.Mutex
	calls    int
	response string
	err      error
}

func (c *countingClient) ChatCompletion(context.Context, openrouter.ChatRequest) (*openrouter.ChatResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return &openrouter.ChatResponse{
		Choices: []openrouter.Choice{{Message: openrouter.ChoiceMessage{Content: c.response}}},
		Usage:   openrouter.Usage{TotalTokens: 42},
	}, nil
}

func (c *countingClient) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func testRunner(t *testing.T, client openrouter.Client) *Runner {
	t.Helper()
	reg, err := prompts.Parse([]byte(qaPromptsYAML))
	require.NoError(t, err)
	exec := llm.NewExecutor(llm.Router{OpenRouter: client}, llm.Options{
		Timeout: time.Second, Backoff: time.Millisecond,
	})
	return NewRunner(exec, reg, nil)
}

func testQuestions() []model.Question {
	return []model.Question{
		{OriginalIdx: 3, Question: "What is 2+2?", Options: []string{"4", "5"}, CorrectIdx: 0},
		{OriginalIdx: 9, Question: "What is 3*3?", Options: []string{"6", "9"}, CorrectIdx: 1},
	}
}

func testParams() Params {
	return Params{
		ModelName:  "openai/gpt-4o-mini",
		NumChoices: 2,
		MaxWorkers: 2,
		Lenient:    true,
		Config:     model.Snapshot{"model_name": "openai/gpt-4o-mini"},
	}
}

func readRecords(t *testing.T, path string) []model.QARecord {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var out []model.QARecord
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var r model.QARecord
		require.NoError(t, json.Unmarshal(sc.Bytes(), &r))
		out = append(out, r)
	}
	require.NoError(t, sc.Err())
	return out
}

func TestRunWritesParsedRecords(t *testing.T) {
	client := &countingClient{response: "<BEGIN FINAL ANSWER>Answer: 1\nConfidence: 80%\nReasoning: it follows</END FINAL ANSWER>"}
	r := testRunner(t, client)
	logPath := filepath.Join(t.TempDir(), "qa_results.jsonl")

	s, err := r.Run(context.Background(), testQuestions(), testParams(), logPath)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Requested)
	assert.Equal(t, 0, s.Skipped)
	assert.Equal(t, 2, s.Completed)
	assert.NotEmpty(t, s.RunID)

	records := readRecords(t, logPath)
	require.Len(t, records, 2)
	for _, rec := range records {
		assert.True(t, rec.Success)
		assert.Equal(t, s.RunID, rec.RunID)
		require.NotNil(t, rec.Parsed)
		require.NotNil(t, rec.Parsed.Answer)
		assert.Equal(t, 1, *rec.Parsed.Answer)
		require.NotNil(t, rec.Parsed.Confidence)
		assert.Equal(t, 80, *rec.Parsed.Confidence)
		assert.Contains(t, rec.Prompt, rec.Question)
		assert.Contains(t, rec.Prompt, "Choose one of: 0, 1.")
		assert.Equal(t, 42, rec.TokenUsage.TotalTokens)
	}
}

func TestRunIsIdempotent(t *testing.T) {
	client := &countingClient{response: "<BEGIN FINAL ANSWER>Answer: 0</END FINAL ANSWER>"}
	r := testRunner(t, client)
	logPath := filepath.Join(t.TempDir(), "qa_results.jsonl")

	_, err := r.Run(context.Background(), testQuestions(), testParams(), logPath)
	require.NoError(t, err)
	require.Equal(t, 2, client.callCount())

	// second pass issues zero new calls
	s, err := r.Run(context.Background(), testQuestions(), testParams(), logPath)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Skipped)
	assert.Equal(t, 0, s.Completed)
	assert.Equal(t, 2, client.callCount())
	assert.Len(t, readRecords(t, logPath), 2)
}

func TestRerunBypassesCache(t *testing.T) {
	client := &countingClient{response: "<BEGIN FINAL ANSWER>Answer: 0</END FINAL ANSWER>"}
	r := testRunner(t, client)
	logPath := filepath.Join(t.TempDir(), "qa_results.jsonl")

	p := testParams()
	_, err := r.Run(context.Background(), testQuestions(), p, logPath)
	require.NoError(t, err)

	p.Rerun = true
	s, err := r.Run(context.Background(), testQuestions(), p, logPath)
	require.NoError(t, err)
	assert.Equal(t, 0, s.Skipped)
	assert.Equal(t, 2, s.Completed)
	assert.Equal(t, 4, client.callCount())
	assert.Len(t, readRecords(t, logPath), 4)
}

func TestFailureRecordsAreCovered(t *testing.T) {
	client := &countingClient{err: &openrouter.APIError{StatusCode: 500, Message: "upstream fell over"}}
	r := testRunner(t, client)
	logPath := filepath.Join(t.TempDir(), "qa_results.jsonl")

	s, err := r.Run(context.Background(), testQuestions(), testParams(), logPath)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Failed)

	records := readRecords(t, logPath)
	require.Len(t, records, 2)
	for _, rec := range records {
		assert.False(t, rec.Success)
		require.NotNil(t, rec.ErrorMessage)
		assert.Contains(t, *rec.ErrorMessage, "upstream fell over")
		assert.NotEmpty(t, rec.RecordID)
	}

	// explicit failures do not count as coverage: a retry pass reschedules
	client.err = nil
	client.response = "<BEGIN FINAL ANSWER>Answer: 0</END FINAL ANSWER>"
	s, err = r.Run(context.Background(), testQuestions(), testParams(), logPath)
	require.NoError(t, err)
	assert.Equal(t, 0, s.Skipped)
	assert.Equal(t, 2, s.Completed)
}

func TestFailureRecordsMatchErrorLog(t *testing.T) {
	// A failed question's record carries the same record id the call was
	// logged under, so log entries and records can be joined.
	logDir := t.TempDir()
	client := &countingClient{err: &openrouter.APIError{StatusCode: 500, Message: "upstream fell over"}}
	reg, err := prompts.Parse([]byte(qaPromptsYAML))
	require.NoError(t, err)
	exec := llm.NewExecutor(llm.Router{OpenRouter: client}, llm.Options{
		Timeout:  time.Second,
		Backoff:  time.Millisecond,
		ErrorLog: llm.NewErrorLog(logDir),
	})
	r := NewRunner(exec, reg, nil)
	logPath := filepath.Join(t.TempDir(), "qa_results.jsonl")

	p := testParams()
	p.RunID = "runqa01"
	s, err := r.Run(context.Background(), testQuestions(), p, logPath)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Failed)

	data, err := os.ReadFile(filepath.Join(logDir, "runqa01.txt"))
	require.NoError(t, err)

	records := readRecords(t, logPath)
	require.Len(t, records, 2)
	for _, rec := range records {
		assert.False(t, rec.Success)
		assert.Contains(t, string(data), "Record ID: "+rec.RecordID)
	}
}

func TestUnparseableAnswerIsStillSuccess(t *testing.T) {
	client := &countingClient{response: "I refuse to commit to an index."}
	r := testRunner(t, client)
	logPath := filepath.Join(t.TempDir(), "qa_results.jsonl")

	s, err := r.Run(context.Background(), testQuestions()[:1], testParams(), logPath)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Completed)

	records := readRecords(t, logPath)
	require.Len(t, records, 1)
	assert.True(t, records[0].Success)
	require.NotNil(t, records[0].Parsed)
	assert.False(t, records[0].Parsed.IsValid)
	assert.Nil(t, records[0].Parsed.Answer)
}
