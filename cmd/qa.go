package main

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/argos-eval/debate-cli/internal/dataset"
	"github.com/argos-eval/debate-cli/internal/model"
	"github.com/argos-eval/debate-cli/internal/qa"
	"github.com/argos-eval/debate-cli/internal/store"
)

var qaQuestions []int

var qaCmd = &cobra.Command{
	Use:   "qa",
	Short: "Run a direct question-answering baseline",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if cmd.Flags().Changed("model") {
			cfg.QA.ModelName, _ = cmd.Flags().GetString("model")
		}
		if cmd.Flags().Changed("num-questions") {
			cfg.QA.NumQuestions, _ = cmd.Flags().GetInt("num-questions")
		}
		if cmd.Flags().Changed("rerun") {
			cfg.QA.Rerun, _ = cmd.Flags().GetBool("rerun")
		}
		if cfg.QA.ModelName == "" {
			return eris.New("no QA model configured; use --model")
		}

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		spec := dataset.Spec{
			Name:   cfg.Dataset.Name,
			Subset: cfg.Dataset.Subset,
			Split:  cfg.Dataset.Split,
		}
		ds, err := dataset.Load(cfg.Dataset.SnapshotDir, spec)
		if err != nil {
			return err
		}
		questions, err := ds.Select(cfg.QA.NumQuestions, cfg.QA.NumChoices, cfg.QA.RandomSeed, qaQuestions)
		if err != nil {
			return err
		}

		runID := model.NewRunID()
		logPath := filepath.Join(cfg.Results.Dir, "qa", "qa_results.jsonl")
		reg := store.Register(ctx, env.Store, runID, model.RunKindQA, cfg.QASnapshot(cfg.QA.ModelName), logPath)

		r := qa.NewRunner(env.Exec, env.Prompts, env.Tracker)
		sum, err := r.Run(ctx, questions, qa.Params{
			ModelName:          cfg.QA.ModelName,
			Temperature:        cfg.QA.Temperature,
			MaxOutputTokens:    cfg.QA.MaxOutputTokens,
			ReasoningEffort:    cfg.QA.ReasoningEffort,
			ReasoningMaxTokens: cfg.QA.ReasoningMaxTokens,
			NumChoices:         cfg.QA.NumChoices,
			MaxWorkers:         cfg.QA.MaxWorkers,
			Rerun:              cfg.QA.Rerun,
			Lenient:            cfg.QA.LenientParsing,
			Config:             cfg.QASnapshot(cfg.QA.ModelName),
			RunID:              runID,
		}, logPath)
		if err != nil {
			reg.Fail(ctx)
			return eris.Wrap(err, "qa run")
		}
		reg.Finish(ctx, sum.Requested, sum.Completed, sum.Failed)

		zap.L().Info("qa run complete",
			zap.String("run_id", sum.RunID),
			zap.Int("requested", sum.Requested),
			zap.Int("skipped", sum.Skipped),
			zap.Int("completed", sum.Completed),
			zap.Int("failed", sum.Failed),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(sum)
	},
}

func init() {
	qaCmd.Flags().IntSliceVar(&qaQuestions, "questions", nil, "explicit question indices (overrides sampling)")
	qaCmd.Flags().String("model", "", "model name")
	qaCmd.Flags().Int("num-questions", 0, "number of questions to sample")
	qaCmd.Flags().Bool("rerun", false, "bypass the evaluation cache")
	rootCmd.AddCommand(qaCmd)
}
