package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/argos-eval/debate-cli/internal/dataset"
	"github.com/argos-eval/debate-cli/internal/debate"
	"github.com/argos-eval/debate-cli/internal/model"
	"github.com/argos-eval/debate-cli/internal/verdict"
)

var (
	viewIndex   int
	viewAll     bool
	viewPrivate bool
)

var viewCmd = &cobra.Command{
	Use:   "view <debate-run-id>",
	Short: "Render a debate transcript human-readably",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		records, err := verdict.ReadDebateLog(filepath.Join(cfg.Results.Dir, "debate", args[0]+".jsonl"))
		if err != nil {
			return err
		}
		if len(records) == 0 {
			return eris.Errorf("no records in debate run %s", args[0])
		}

		if viewAll {
			for i, rec := range records {
				printDebate(i, rec, viewPrivate)
			}
			return nil
		}

		if viewIndex < 0 || viewIndex >= len(records) {
			return eris.Errorf("record index %d out of range (run has %d records)", viewIndex, len(records))
		}
		printDebate(viewIndex, records[viewIndex], viewPrivate)
		return nil
	},
}

func printDebate(idx int, rec model.DebateRecord, showPrivate bool) {
	fmt.Printf("%s\nDebate %d (record %s, question %d)\n%s\n",
		strings.Repeat("=", 80), idx, rec.RecordID, rec.QuestionIdx, strings.Repeat("=", 80))
	fmt.Printf("Question: %s\n\n%s\n", rec.Question, dataset.FormatOptions(rec.Options))
	fmt.Printf("Correct answer: %d\n", rec.CorrectIdx)
	if !rec.Success && rec.ErrorMessage != nil {
		fmt.Printf("FAILED: %s\n", *rec.ErrorMessage)
	}

	fmt.Println(debate.FormatHistory(rec.History, debate.Visibility{ShowPrivate: showPrivate}))
}

func init() {
	viewCmd.Flags().IntVar(&viewIndex, "index", 0, "record index within the run")
	viewCmd.Flags().BoolVar(&viewAll, "all", false, "render every record in the run")
	viewCmd.Flags().BoolVar(&viewPrivate, "private", false, "include private reasoning and internal model reasoning")
	rootCmd.AddCommand(viewCmd)
}
