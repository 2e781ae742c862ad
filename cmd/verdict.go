package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/argos-eval/debate-cli/internal/verdict"
)

var (
	verdictDebateRuns  []string
	verdictJudgeModels []string
	verdictUptoTurns   []int
	verdictRepeats     int
)

var verdictCmd = &cobra.Command{
	Use:   "verdict",
	Short: "Judge debate transcripts into verdicts",
	Long:  "Judges every successful record of one or more debate runs. With multiple judge models, debate runs, truncation points, or repeats, the full grid is swept and a group summary is written.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if cmd.Flags().Changed("skip-backfill") {
			cfg.Verdict.SkipBackfill, _ = cmd.Flags().GetBool("skip-backfill")
		}

		judges := verdictJudgeModels
		if len(judges) == 0 {
			if cfg.Verdict.JudgeModel == "" {
				return eris.New("no judge model configured; use --judge-model")
			}
			judges = []string{cfg.Verdict.JudgeModel}
		}

		r := verdict.NewRunner(cfg, env.Exec, env.Prompts, env.Tracker)
		r.Registry = env.Store

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		// Single cell: run directly without the sweep machinery.
		if len(judges) == 1 && len(verdictDebateRuns) == 1 && len(verdictUptoTurns) <= 1 && verdictRepeats <= 1 {
			var upto *int
			if len(verdictUptoTurns) == 1 {
				upto = &verdictUptoTurns[0]
			}
			res, err := r.RunOne(ctx, verdictDebateRuns[0], judges[0], upto)
			if err != nil {
				return eris.Wrap(err, "verdict run")
			}

			fields := []zap.Field{
				zap.String("verdict_run_id", res.VerdictRunID),
				zap.Int("total", res.Total),
				zap.Int("correct", res.Correct),
				zap.Int("incorrect", res.Incorrect),
				zap.Int("null_answers", res.NullAnswers),
			}
			if acc, ok := res.Accuracy(); ok {
				fields = append(fields, zap.Float64("accuracy", acc))
			}
			zap.L().Info("verdict run complete", fields...)
			return enc.Encode(res)
		}

		res, err := r.Sweep(ctx, verdict.SweepSpec{
			JudgeModels:  judges,
			DebateRunIDs: verdictDebateRuns,
			UptoTurns:    verdictUptoTurns,
			Repeats:      verdictRepeats,
		})
		if err != nil {
			return eris.Wrap(err, "verdict sweep")
		}

		zap.L().Info("verdict sweep complete",
			zap.String("group_run_id", res.GroupRunID),
			zap.String("output", res.OutputPath),
			zap.Int("cells", len(res.Runs)),
		)
		return enc.Encode(res)
	},
}

func init() {
	verdictCmd.Flags().StringSliceVar(&verdictDebateRuns, "debate-run", nil, "debate run id(s) to judge (required)")
	verdictCmd.Flags().StringSliceVar(&verdictJudgeModels, "judge-model", nil, "judge model(s); default from config")
	verdictCmd.Flags().IntSliceVar(&verdictUptoTurns, "upto-turns", nil, "judge transcripts truncated to N main turns (repeatable)")
	verdictCmd.Flags().IntVar(&verdictRepeats, "repeats", 1, "verdict runs per grid cell")
	verdictCmd.Flags().Bool("skip-backfill", false, "skip QA baseline backfill")
	_ = verdictCmd.MarkFlagRequired("debate-run")
	rootCmd.AddCommand(verdictCmd)
}
