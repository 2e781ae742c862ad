package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/argos-eval/debate-cli/internal/debate"
	"github.com/argos-eval/debate-cli/internal/model"
	"github.com/argos-eval/debate-cli/internal/prompts"
)

var debateQuestions []int

var debateCmd = &cobra.Command{
	Use:   "debate",
	Short: "Run debates over sampled questions",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		applyDebateFlags(cmd)

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		ctrl, err := buildController(env)
		if err != nil {
			return err
		}

		r := debate.NewRunner(cfg, env.Exec, env.Prompts, ctrl, env.Tracker)
		r.Registry = env.Store
		if ctrl != nil && ctrl.Interactive() {
			r.OnTurn(displayTurn)
		}

		res, err := r.Run(ctx, debateQuestions)
		if err != nil {
			return eris.Wrap(err, "debate run")
		}

		zap.L().Info("debate run complete",
			zap.String("run_id", res.RunID),
			zap.String("output", res.OutputPath),
			zap.Int("total", res.Total),
			zap.Int("succeeded", res.Succeeded),
			zap.Int("failed", res.Failed),
		)
		if spent, ok := env.Tracker.SpentSince(ctx); ok {
			zap.L().Info("run spend", zap.Float64("spent_usd", spent))
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	},
}

// applyDebateFlags copies explicitly-set flags over the file/env config.
func applyDebateFlags(cmd *cobra.Command) {
	if cmd.Flags().Changed("model") {
		cfg.Debate.DebaterModel, _ = cmd.Flags().GetString("model")
	}
	if cmd.Flags().Changed("num-questions") {
		cfg.Debate.NumQuestions, _ = cmd.Flags().GetInt("num-questions")
	}
	if cmd.Flags().Changed("num-turns") {
		cfg.Debate.NumTurns, _ = cmd.Flags().GetInt("num-turns")
	}
	if cmd.Flags().Changed("mode") {
		cfg.Debate.Mode, _ = cmd.Flags().GetString("mode")
	}
	if cmd.Flags().Changed("controller") {
		cfg.Debate.Controller, _ = cmd.Flags().GetString("controller")
	}
	if cmd.Flags().Changed("seed") {
		seed, _ := cmd.Flags().GetInt64("seed")
		cfg.Debate.RandomSeed = seed
	}
}

// buildController maps the configured controller name to an implementation.
// nil means the engine's round-robin default.
func buildController(env *runEnv) (debate.TurnController, error) {
	switch cfg.Debate.Controller {
	case "", "roundrobin":
		return debate.RoundRobin{}, nil
	case "human":
		return debate.NewHumanController(os.Stdin, os.Stdout), nil
	case "judge":
		tmpl, err := env.Prompts.Get(prompts.Interactive)
		if err != nil {
			return nil, err
		}
		return debate.NewJudgeController(env.Exec, tmpl, debate.JudgeControllerConfig{
			Model:              cfg.Verdict.JudgeModel,
			Temperature:        cfg.Verdict.JudgeTemperature,
			MaxTokens:          cfg.Verdict.MaxOutputTokens,
			ReasoningEffort:    cfg.Verdict.ReasoningEffort,
			ReasoningMaxTokens: cfg.Verdict.ReasoningMaxTokens,
		}), nil
	default:
		return nil, eris.Errorf("unknown controller: %s", cfg.Debate.Controller)
	}
}

// displayTurn prints each turn as it completes. When response masking is
// configured, the print is delayed to a fixed floor so response latency does
// not reveal which debater model is answering.
func displayTurn(t model.Turn) {
	if floor := cfg.Debate.ResponseMaskingSecs; floor > 0 {
		if remaining := floor - t.ElapsedSeconds; remaining > 0 {
			time.Sleep(time.Duration(remaining * float64(time.Second)))
		}
	}
	text := debate.FormatHistory([]model.Turn{t}, debate.Visibility{})
	if text == "" && t.Error != nil {
		text = fmt.Sprintf("turn failed: %s", *t.Error)
	}
	fmt.Println(text)
}

func init() {
	debateCmd.Flags().IntSliceVar(&debateQuestions, "questions", nil, "explicit question indices (overrides sampling)")
	debateCmd.Flags().String("model", "", "debater model name")
	debateCmd.Flags().Int("num-questions", 0, "number of questions to sample")
	debateCmd.Flags().Int("num-turns", 0, "number of main debate turns")
	debateCmd.Flags().String("mode", "", "debate mode (sequential, simultaneous)")
	debateCmd.Flags().String("controller", "", "turn controller (roundrobin, judge, human)")
	debateCmd.Flags().Int64("seed", 0, "question sampling seed")
	rootCmd.AddCommand(debateCmd)
}
