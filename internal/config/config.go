package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/argos-eval/debate-cli/internal/model"
)

// Config holds the full application configuration. It is constructed once per
// process and passed explicitly; run parameters are additionally serialized
// into every output record via the Snapshot methods below.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	OpenRouter OpenRouterConfig `yaml:"openrouter" mapstructure:"openrouter"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Dataset    DatasetConfig    `yaml:"dataset" mapstructure:"dataset"`
	Debate     DebateConfig     `yaml:"debate" mapstructure:"debate"`
	QA         QAConfig         `yaml:"qa" mapstructure:"qa"`
	Verdict    VerdictConfig    `yaml:"verdict" mapstructure:"verdict"`
	Results    ResultsConfig    `yaml:"results" mapstructure:"results"`
	Prompts    PromptsConfig    `yaml:"prompts" mapstructure:"prompts"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the run registry backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// OpenRouterConfig holds OpenRouter API settings.
type OpenRouterConfig struct {
	Key                string  `yaml:"key" mapstructure:"key"`
	BaseURL            string  `yaml:"base_url" mapstructure:"base_url"`
	RequestTimeoutSecs int     `yaml:"request_timeout_secs" mapstructure:"request_timeout_secs"`
	MaxRetries         int     `yaml:"max_retries" mapstructure:"max_retries"`
	RetryBackoffSecs   float64 `yaml:"retry_backoff_secs" mapstructure:"retry_backoff_secs"`
	RequestsPerSecond  float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	RequestSeed        int     `yaml:"request_seed" mapstructure:"request_seed"`
}

// AnthropicConfig holds Anthropic API settings, used when a model name is
// prefixed "anthropic-direct/" to bypass OpenRouter.
type AnthropicConfig struct {
	Key string `yaml:"key" mapstructure:"key"`
}

// DatasetConfig identifies the question source.
type DatasetConfig struct {
	Name        string `yaml:"name" mapstructure:"name"`
	Subset      string `yaml:"subset" mapstructure:"subset"`
	Split       string `yaml:"split" mapstructure:"split"`
	SnapshotDir string `yaml:"snapshot_dir" mapstructure:"snapshot_dir"`
}

// DebateConfig configures a debate run.
type DebateConfig struct {
	DebaterModel              string  `yaml:"debater_model" mapstructure:"debater_model"`
	DebaterTemperature        float64 `yaml:"debater_temperature" mapstructure:"debater_temperature"`
	DebaterReasoningEffort    string  `yaml:"debater_reasoning_effort" mapstructure:"debater_reasoning_effort"`
	DebaterReasoningMaxTokens int     `yaml:"debater_reasoning_max_tokens" mapstructure:"debater_reasoning_max_tokens"`
	MaxOutputTokens           int     `yaml:"max_output_tokens" mapstructure:"max_output_tokens"`
	NumQuestions              int     `yaml:"num_questions" mapstructure:"num_questions"`
	RandomSeed                int64   `yaml:"random_seed" mapstructure:"random_seed"`
	NumChoices                int     `yaml:"num_choices" mapstructure:"num_choices"`
	NumTurns                  int     `yaml:"num_turns" mapstructure:"num_turns"`
	Mode                      string  `yaml:"mode" mapstructure:"mode"`             // sequential | simultaneous
	Controller                string  `yaml:"controller" mapstructure:"controller"` // roundrobin | judge | human
	PrivateScratchpad         bool    `yaml:"private_scratchpad" mapstructure:"private_scratchpad"`
	SelfReasoning             bool    `yaml:"self_reasoning" mapstructure:"self_reasoning"`
	ClosingArguments          bool    `yaml:"closing_arguments" mapstructure:"closing_arguments"`
	LenientArgumentParsing    bool    `yaml:"lenient_argument_parsing" mapstructure:"lenient_argument_parsing"`
	PublicArgumentWordLimit   int     `yaml:"public_argument_word_limit" mapstructure:"public_argument_word_limit"`
	PrivateReasoningWordLimit int     `yaml:"private_reasoning_word_limit" mapstructure:"private_reasoning_word_limit"`
	MaxWorkers                int     `yaml:"max_workers" mapstructure:"max_workers"`
	ResponseMaskingSecs       float64 `yaml:"response_masking_secs" mapstructure:"response_masking_secs"`
}

// QAConfig configures a direct question-answering baseline run.
type QAConfig struct {
	ModelName          string  `yaml:"model_name" mapstructure:"model_name"`
	Temperature        float64 `yaml:"temperature" mapstructure:"temperature"`
	ReasoningEffort    string  `yaml:"reasoning_effort" mapstructure:"reasoning_effort"`
	ReasoningMaxTokens int     `yaml:"reasoning_max_tokens" mapstructure:"reasoning_max_tokens"`
	MaxOutputTokens    int     `yaml:"max_output_tokens" mapstructure:"max_output_tokens"`
	NumQuestions       int     `yaml:"num_questions" mapstructure:"num_questions"`
	RandomSeed         int64   `yaml:"random_seed" mapstructure:"random_seed"`
	NumChoices         int     `yaml:"num_choices" mapstructure:"num_choices"`
	MaxWorkers         int     `yaml:"max_workers" mapstructure:"max_workers"`
	Rerun              bool    `yaml:"rerun" mapstructure:"rerun"`
	LenientParsing     bool    `yaml:"lenient_parsing" mapstructure:"lenient_parsing"`
}

// VerdictConfig configures a verdict run over an existing debate log.
type VerdictConfig struct {
	JudgeModel         string  `yaml:"judge_model" mapstructure:"judge_model"`
	JudgeTemperature   float64 `yaml:"judge_temperature" mapstructure:"judge_temperature"`
	ReasoningEffort    string  `yaml:"judge_reasoning_effort" mapstructure:"judge_reasoning_effort"`
	ReasoningMaxTokens int     `yaml:"judge_reasoning_max_tokens" mapstructure:"judge_reasoning_max_tokens"`
	MaxOutputTokens    int     `yaml:"max_output_tokens" mapstructure:"max_output_tokens"`
	MaxWorkers         int     `yaml:"max_workers" mapstructure:"max_workers"`
	MaxParallelRuns    int     `yaml:"max_parallel_runs" mapstructure:"max_parallel_runs"`
	SkipBackfill       bool    `yaml:"skip_backfill" mapstructure:"skip_backfill"`
}

// ResultsConfig holds the output log layout.
type ResultsConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// PromptsConfig locates the prompt template file.
type PromptsConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// ServerConfig configures the run-browsing HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("DEBATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "debate.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("server.port", 8080)
	v.SetDefault("openrouter.base_url", "https://openrouter.ai/api/v1")
	v.SetDefault("openrouter.request_timeout_secs", 180)
	v.SetDefault("openrouter.max_retries", 3)
	v.SetDefault("openrouter.retry_backoff_secs", 2.0)
	v.SetDefault("openrouter.requests_per_second", 20.0)
	v.SetDefault("openrouter.request_seed", 42)
	v.SetDefault("dataset.name", "Idavidrein/gpqa")
	v.SetDefault("dataset.subset", "gpqa_diamond")
	v.SetDefault("dataset.split", "train")
	v.SetDefault("dataset.snapshot_dir", "datasets")
	v.SetDefault("debate.debater_temperature", 0.3)
	v.SetDefault("debate.max_output_tokens", 10000)
	v.SetDefault("debate.num_questions", 5)
	v.SetDefault("debate.random_seed", 42)
	v.SetDefault("debate.num_choices", 4)
	v.SetDefault("debate.num_turns", 3)
	v.SetDefault("debate.mode", "sequential")
	v.SetDefault("debate.controller", "roundrobin")
	v.SetDefault("debate.private_scratchpad", true)
	v.SetDefault("debate.closing_arguments", true)
	v.SetDefault("debate.public_argument_word_limit", 200)
	v.SetDefault("debate.private_reasoning_word_limit", 1000)
	v.SetDefault("debate.max_workers", 40)
	v.SetDefault("qa.temperature", 0.0)
	v.SetDefault("qa.max_output_tokens", 10000)
	v.SetDefault("qa.num_questions", 5)
	v.SetDefault("qa.random_seed", 42)
	v.SetDefault("qa.num_choices", 4)
	v.SetDefault("qa.max_workers", 40)
	v.SetDefault("qa.lenient_parsing", true)
	v.SetDefault("verdict.judge_temperature", 0.0)
	v.SetDefault("verdict.max_output_tokens", 10000)
	v.SetDefault("verdict.max_workers", 40)
	v.SetDefault("verdict.max_parallel_runs", 6)
	v.SetDefault("results.dir", "results")
	v.SetDefault("prompts.path", "prompts.yaml")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks cross-field constraints that viper cannot express.
func (c *Config) Validate() error {
	switch c.Debate.Mode {
	case "sequential", "simultaneous":
	default:
		return eris.Errorf("config: unknown debate mode %q", c.Debate.Mode)
	}
	switch c.Debate.Controller {
	case "roundrobin", "judge", "human":
	default:
		return eris.Errorf("config: unknown debate controller %q", c.Debate.Controller)
	}
	// Interactive control assumes exactly one active debater per turn.
	if c.Debate.Mode == "simultaneous" && c.Debate.Controller != "roundrobin" {
		return eris.New("config: simultaneous mode is incompatible with an interactive controller")
	}
	return nil
}

// DebateSnapshot returns the flat debate run parameters for record embedding.
func (c *Config) DebateSnapshot() model.Snapshot {
	return model.Snapshot{
		"dataset_name":                 c.Dataset.Name,
		"dataset_subset":               c.Dataset.Subset,
		"dataset_split":                c.Dataset.Split,
		"debater_model":                c.Debate.DebaterModel,
		"debater_temperature":          c.Debate.DebaterTemperature,
		"debater_reasoning_effort":     c.Debate.DebaterReasoningEffort,
		"debater_reasoning_max_tokens": c.Debate.DebaterReasoningMaxTokens,
		"max_output_tokens":            c.Debate.MaxOutputTokens,
		"num_questions":                c.Debate.NumQuestions,
		"random_seed":                  c.Debate.RandomSeed,
		"num_choices":                  c.Debate.NumChoices,
		"num_turns":                    c.Debate.NumTurns,
		"mode":                         c.Debate.Mode,
		"controller":                   c.Debate.Controller,
		"private_scratchpad":           c.Debate.PrivateScratchpad,
		"self_reasoning":               c.Debate.SelfReasoning,
		"closing_arguments":            c.Debate.ClosingArguments,
		"lenient_argument_parsing":     c.Debate.LenientArgumentParsing,
		"public_argument_word_limit":   c.Debate.PublicArgumentWordLimit,
		"private_reasoning_word_limit": c.Debate.PrivateReasoningWordLimit,
		"max_workers":                  c.Debate.MaxWorkers,
	}
}

// QASnapshot returns the flat QA run parameters for record embedding.
// The model name may be overridden (the verdict backfill reuses the QA
// pipeline for both judge and debater models).
func (c *Config) QASnapshot(modelName string) model.Snapshot {
	return model.Snapshot{
		"dataset_name":         c.Dataset.Name,
		"dataset_subset":       c.Dataset.Subset,
		"dataset_split":        c.Dataset.Split,
		"model_name":           modelName,
		"temperature":          c.QA.Temperature,
		"reasoning_effort":     c.QA.ReasoningEffort,
		"reasoning_max_tokens": c.QA.ReasoningMaxTokens,
		"max_tokens":           c.QA.MaxOutputTokens,
		"num_choices":          c.QA.NumChoices,
		"random_seed":          c.QA.RandomSeed,
		"lenient_parsing":      c.QA.LenientParsing,
	}
}

// VerdictSnapshot returns the flat verdict run parameters for record
// embedding. uptoTurns is nil when the full transcript is judged.
func (c *Config) VerdictSnapshot(judgeModel, debateRunID string, uptoTurns *int) model.Snapshot {
	s := model.Snapshot{
		"debate_run_id":              debateRunID,
		"judge_model":                judgeModel,
		"judge_temperature":          c.Verdict.JudgeTemperature,
		"judge_reasoning_effort":     c.Verdict.ReasoningEffort,
		"judge_reasoning_max_tokens": c.Verdict.ReasoningMaxTokens,
		"max_output_tokens":          c.Verdict.MaxOutputTokens,
	}
	if uptoTurns != nil {
		s["upto_turns"] = *uptoTurns
	}
	return s
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
