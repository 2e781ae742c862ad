package main

import (
	"context"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"

	"github.com/argos-eval/debate-cli/internal/cost"
	"github.com/argos-eval/debate-cli/internal/llm"
	"github.com/argos-eval/debate-cli/internal/prompts"
	"github.com/argos-eval/debate-cli/internal/store"
	anthropicpkg "github.com/argos-eval/debate-cli/pkg/anthropic"
	"github.com/argos-eval/debate-cli/pkg/openrouter"
)

// runEnv holds the initialized store, executor, prompt registry, and cost
// tracker shared by the run commands.
type runEnv struct {
	Store   store.Store
	Exec    *llm.Executor
	Prompts *prompts.Registry
	Tracker *cost.Tracker
}

// Close releases resources held by the environment.
func (e *runEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "debate.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initOpenRouter builds the OpenRouter client with the configured throttle.
func initOpenRouter() openrouter.KeyInfoClient {
	opts := []openrouter.Option{openrouter.WithBaseURL(cfg.OpenRouter.BaseURL)}
	if cfg.OpenRouter.RequestsPerSecond > 0 {
		opts = append(opts, openrouter.WithRateLimit(cfg.OpenRouter.RequestsPerSecond))
	}
	return openrouter.NewClient(cfg.OpenRouter.Key, opts...)
}

// initEnv sets up the store, model clients, and prompt templates. Callers
// should defer env.Close().
func initEnv(ctx context.Context) (*runEnv, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	orClient := initOpenRouter()
	router := llm.Router{OpenRouter: orClient}
	if cfg.Anthropic.Key != "" {
		router.Anthropic = anthropicpkg.NewClient(cfg.Anthropic.Key)
	}

	seed := cfg.OpenRouter.RequestSeed
	exec := llm.NewExecutor(router, llm.Options{
		Timeout:    time.Duration(cfg.OpenRouter.RequestTimeoutSecs) * time.Second,
		MaxRetries: cfg.OpenRouter.MaxRetries,
		Backoff:    time.Duration(cfg.OpenRouter.RetryBackoffSecs * float64(time.Second)),
		Seed:       &seed,
		ErrorLog:   llm.NewErrorLog(filepath.Join(cfg.Results.Dir, "logs")),
	})

	reg, err := prompts.Load(cfg.Prompts.Path)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	return &runEnv{
		Store:   st,
		Exec:    exec,
		Prompts: reg,
		Tracker: cost.NewTracker(ctx, orClient),
	}, nil
}
