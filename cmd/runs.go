package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/argos-eval/debate-cli/internal/model"
	"github.com/argos-eval/debate-cli/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect run history",
	Long:  "Commands for listing and viewing registered debate, verdict, and QA runs.",
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		kind, _ := cmd.Flags().GetString("kind")
		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")

		runs, err := st.ListRuns(ctx, store.RunFilter{
			Kind:   model.RunKind(kind),
			Status: model.RunStatus(status),
			Limit:  limit,
		})
		if err != nil {
			return eris.Wrap(err, "runs list")
		}

		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		formatRunsList(os.Stdout, runs)
		return nil
	},
}

// -- runs show --

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show full details of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		run, err := st.FindRun(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs show")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	},
}

// -- runs stats --

var runsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate run statistics",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		runs, err := st.ListRuns(ctx, store.RunFilter{Limit: 10000})
		if err != nil {
			return eris.Wrap(err, "runs stats")
		}

		formatRunStats(os.Stdout, computeRunStats(runs))
		return nil
	},
}

func init() {
	runsListCmd.Flags().String("kind", "", "filter by run kind (debate, verdict, qa)")
	runsListCmd.Flags().String("status", "", "filter by run status (running, completed, failed)")
	runsListCmd.Flags().Int("limit", 50, "max number of runs to display")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsStatsCmd)
	rootCmd.AddCommand(runsCmd)
}

// kindStats holds per-kind aggregate counts.
type kindStats struct {
	Runs      int
	Completed int
	Failed    int
	Items     int
	ItemsOK   int
}

// computeRunStats aggregates runs by kind.
func computeRunStats(runs []model.Run) map[model.RunKind]*kindStats {
	stats := make(map[model.RunKind]*kindStats)
	for _, r := range runs {
		s, ok := stats[r.Kind]
		if !ok {
			s = &kindStats{}
			stats[r.Kind] = s
		}
		s.Runs++
		switch r.Status {
		case model.RunStatusCompleted:
			s.Completed++
		case model.RunStatusFailed:
			s.Failed++
		}
		s.Items += r.Total
		s.ItemsOK += r.Succeeded
	}
	return stats
}

// formatRunsList writes a tabular list of runs to w.
func formatRunsList(out io.Writer, runs []model.Run) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "RUN_ID\tKIND\tSTATUS\tOK/TOTAL\tSTARTED\tDURATION\tOUTPUT")
	_, _ = fmt.Fprintln(w, "------\t----\t------\t--------\t-------\t--------\t------")

	for _, r := range runs {
		dur := "-"
		if r.FinishedAt != nil {
			dur = r.FinishedAt.Sub(r.StartedAt).Round(time.Second).String()
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d/%d\t%s\t%s\t%s\n",
			r.RunID, r.Kind, r.Status, r.Succeeded, r.Total,
			r.StartedAt.Format("2006-01-02 15:04"), dur, r.OutputPath,
		)
	}
	_ = w.Flush()
}

// formatRunStats writes per-kind aggregates to w.
func formatRunStats(out io.Writer, stats map[model.RunKind]*kindStats) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "KIND\tRUNS\tCOMPLETED\tFAILED\tITEMS_OK\tITEMS")
	for _, kind := range []model.RunKind{model.RunKindDebate, model.RunKindVerdict, model.RunKindQA} {
		s, ok := stats[kind]
		if !ok {
			continue
		}
		_, _ = fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%d\n",
			kind, s.Runs, s.Completed, s.Failed, s.ItemsOK, s.Items)
	}
	_ = w.Flush()
}
