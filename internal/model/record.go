package model

import "time"

// Persona identifies who produced a turn.
type Persona string

const (
	PersonaDebater Persona = "debater"
	PersonaJudge   Persona = "judge"
)

// Question is one multiple-choice item selected from a dataset snapshot.
// Immutable once selected.
type Question struct {
	OriginalIdx int      `json:"original_idx"`
	Question    string   `json:"question"`
	Options     []string `json:"options"`
	CorrectIdx  int      `json:"correct_idx"`
}

// TokenUsage reports token consumption as returned by the provider.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ParsedArgument holds the structured fields extracted from a debater response.
type ParsedArgument struct {
	PublicArgument   string  `json:"public_argument"`
	PrivateReasoning *string `json:"private_reasoning,omitempty"`
}

// ParsedAnswer holds the structured fields extracted from a QA or verdict
// response. Answer is nil when no integer answer could be extracted; callers
// must treat that as "no usable verdict", not as an error.
type ParsedAnswer struct {
	IsValid    bool    `json:"is_valid"`
	Answer     *int    `json:"answer"`
	Confidence *int    `json:"confidence"`
	Reasoning  *string `json:"reasoning"`
}

// Turn is one persona's contribution at a given step of a debate. Turns are
// appended in chronological order and never mutated afterwards; only the
// record-level success flag may later mark the whole sequence as failed.
type Turn struct {
	Turn              int             `json:"turn"`
	Persona           Persona         `json:"persona"`
	DebaterIdx        *int            `json:"debater_idx,omitempty"`
	Closing           bool            `json:"closing,omitempty"`
	RawResponse       string          `json:"raw_response,omitempty"`
	Parsed            *ParsedArgument `json:"parsed_response,omitempty"`
	InternalReasoning *string         `json:"internal_model_reasoning,omitempty"`
	TokenUsage        TokenUsage      `json:"token_usage"`
	ElapsedSeconds    float64         `json:"elapsed_seconds"`
	Success           bool            `json:"success"`
	Error             *string         `json:"error,omitempty"`

	// Judge-action fields, set only for Persona == PersonaJudge.
	Action       string `json:"action,omitempty"`
	JudgeMessage string `json:"judge_message,omitempty"`
	IsHuman      bool   `json:"is_human,omitempty"`
}

// Snapshot is the flat run-parameter mapping captured at run start and
// embedded verbatim in every record produced by that run, so each output row
// is self-describing and joinable without an external run registry.
type Snapshot map[string]any

// DebateRecord is the result of one debated question. Written exactly once,
// as one line, to the debate log.
type DebateRecord struct {
	RunID        string   `json:"run_id"`
	RecordID     string   `json:"record_id"`
	Datetime     string   `json:"datetime"`
	Config       Snapshot `json:"config"`
	QuestionIdx  int      `json:"question_idx"`
	Question     string   `json:"question"`
	Options      []string `json:"options"`
	CorrectIdx   int      `json:"correct_idx"`
	History      []Turn   `json:"debate_history"`
	Success      bool     `json:"success"`
	ErrorMessage *string  `json:"error_message"`
}

// Verdict is the judge's raw and parsed output for one debate.
type Verdict struct {
	RawResponse       string       `json:"raw_response"`
	InternalReasoning *string      `json:"internal_model_reasoning,omitempty"`
	Parsed            ParsedAnswer `json:"parsed"`
	Prompt            string       `json:"prompt"`
	TokenUsage        TokenUsage   `json:"token_usage"`
}

// VerdictRecord references a DebateRecord by record id and never mutates it.
type VerdictRecord struct {
	VerdictRunID string   `json:"verdict_run_id"`
	DebateRunID  string   `json:"debate_run_id"`
	RecordID     string   `json:"record_id"`
	Datetime     string   `json:"datetime"`
	Config       Snapshot `json:"config"`
	Question     string   `json:"question"`
	Options      []string `json:"options"`
	CorrectIdx   int      `json:"correct_idx"`
	JudgeVerdict *Verdict `json:"judge_verdict"`
	IsCorrect    *bool    `json:"is_correct"`
	Success      bool     `json:"success"`
	ErrorMessage *string  `json:"error_message"`
}

// QARecord is one direct question-answering baseline result. The natural
// dedup key is (question_idx, model_name, normalized prompt).
type QARecord struct {
	RunID             string        `json:"run_id"`
	RecordID          string        `json:"record_id"`
	Datetime          string        `json:"datetime"`
	Config            Snapshot      `json:"config"`
	QuestionIdx       int           `json:"question_idx"`
	Question          string        `json:"question"`
	Options           []string      `json:"options"`
	CorrectIdx        int           `json:"correct_idx"`
	Prompt            string        `json:"prompt"`
	RawResponse       string        `json:"raw_model_response,omitempty"`
	InternalReasoning *string       `json:"internal_model_reasoning,omitempty"`
	Parsed            *ParsedAnswer `json:"parsed_model_response,omitempty"`
	TokenUsage        TokenUsage    `json:"token_usage"`
	Success           bool          `json:"success"`
	ErrorMessage      *string       `json:"error_message"`
}

// RunKind distinguishes run registry entries.
type RunKind string

const (
	RunKindDebate  RunKind = "debate"
	RunKindVerdict RunKind = "verdict"
	RunKindQA      RunKind = "qa"
)

// RunStatus tracks a registered run's lifecycle.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Run is a run registry row. Output records remain the source of truth; the
// registry only enables listing and browsing without scanning log files.
type Run struct {
	ID         string     `json:"id"`
	RunID      string     `json:"run_id"`
	Kind       RunKind    `json:"kind"`
	Status     RunStatus  `json:"status"`
	Config     Snapshot   `json:"config"`
	OutputPath string     `json:"output_path"`
	Total      int        `json:"total"`
	Succeeded  int        `json:"succeeded"`
	Failed     int        `json:"failed"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// StrPtr returns a pointer to s. Convenience for nullable record fields.
func StrPtr(s string) *string { return &s }

// IntPtr returns a pointer to i.
func IntPtr(i int) *int { return &i }

// BoolPtr returns a pointer to b.
func BoolPtr(b bool) *bool { return &b }
