package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/argos-eval/debate-cli/internal/runner"
	"github.com/argos-eval/debate-cli/internal/verdict"
)

var (
	humanIndex   int
	humanPrivate bool
)

// humanVerdictRecord mirrors the LLM verdict fields a human can supply.
type humanVerdictRecord struct {
	DebateRunID string `json:"debate_run_id"`
	RecordID    string `json:"record_id"`
	Verdict     string `json:"verdict"`
	Confidence  string `json:"confidence"`
	Reasoning   string `json:"reasoning"`
	CorrectIdx  int    `json:"correct_idx"`
}

var humanVerdictCmd = &cobra.Command{
	Use:   "human-verdict <debate-run-id>",
	Short: "Judge one debate record yourself",
	Long:  "Renders one debate transcript (public argument only unless --private), prompts for a verdict on stdin, and appends it to the human verdicts log.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		records, err := verdict.ReadDebateLog(filepath.Join(cfg.Results.Dir, "debate", args[0]+".jsonl"))
		if err != nil {
			return err
		}
		if humanIndex < 0 || humanIndex >= len(records) {
			return eris.Errorf("record index %d out of range (run has %d records)", humanIndex, len(records))
		}
		rec := records[humanIndex]

		printDebate(humanIndex, rec, humanPrivate)

		in := bufio.NewReader(os.Stdin)
		verdictIdx, err := promptLine(in, "Verdict (debater index)")
		if err != nil {
			return err
		}
		confidence, err := promptLine(in, "Confidence (0-100)")
		if err != nil {
			return err
		}
		reasoning, err := promptLine(in, "Reasoning")
		if err != nil {
			return err
		}
		fmt.Printf("Correct answer was: %d\n", rec.CorrectIdx)

		w, err := runner.NewLogWriter(filepath.Join(cfg.Results.Dir, "human", "human_verdicts.jsonl"))
		if err != nil {
			return err
		}
		defer w.Close()

		return w.Write(humanVerdictRecord{
			DebateRunID: args[0],
			RecordID:    rec.RecordID,
			Verdict:     verdictIdx,
			Confidence:  confidence,
			Reasoning:   reasoning,
			CorrectIdx:  rec.CorrectIdx,
		})
	},
}

func promptLine(in *bufio.Reader, label string) (string, error) {
	fmt.Printf("%s:\n> ", label)
	line, err := in.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", eris.Wrap(err, "read input")
	}
	return strings.TrimSpace(line), nil
}

func init() {
	humanVerdictCmd.Flags().IntVar(&humanIndex, "index", 0, "record index within the run")
	humanVerdictCmd.Flags().BoolVar(&humanPrivate, "private", false, "show private reasoning (reveals information the LLM judge never sees)")
	rootCmd.AddCommand(humanVerdictCmd)
}
