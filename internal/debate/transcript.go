package debate

import (
	"fmt"
	"strings"

	"github.com/argos-eval/debate-cli/internal/model"
)

// Visibility controls which undisclosed material a rendered transcript
// includes. The zero value is the judge view: public arguments and judge
// messages only.
type Visibility struct {
	// ShowPrivate includes every debater's internal reasoning and private
	// scratchpad. Offline viewing only, never in a prompt.
	ShowPrivate bool
	// SelfIdx, when non-nil, includes private material for that debater
	// index only, so a debater's prompt can carry its own prior reasoning
	// without ever exposing an opponent's.
	SelfIdx *int
}

func (v Visibility) privateFor(idx *int) bool {
	if v.ShowPrivate {
		return true
	}
	return v.SelfIdx != nil && idx != nil && *v.SelfIdx == *idx
}

// FormatHistory renders a debate history as text. Failed turns and judge
// actions without an injected message carry no renderable content and are
// skipped. Returns "" for a history with nothing to show.
func FormatHistory(history []model.Turn, vis Visibility) string {
	var b strings.Builder
	rule := strings.Repeat("-", 80)

	for _, t := range history {
		switch t.Persona {
		case model.PersonaJudge:
			if t.JudgeMessage == "" {
				continue
			}
			fmt.Fprintf(&b, "%s\nJudge (Turn %d)\n%s\n", rule, t.Turn, rule)
			fmt.Fprintf(&b, "[BEGIN JUDGE MESSAGE]\n%s\n[END JUDGE MESSAGE]\n", t.JudgeMessage)

		case model.PersonaDebater:
			if t.Parsed == nil || t.DebaterIdx == nil {
				continue
			}
			if t.Closing {
				fmt.Fprintf(&b, "%s\nDebater %d (Closing Argument, Turn %d)\n%s\n", rule, *t.DebaterIdx, t.Turn, rule)
			} else {
				fmt.Fprintf(&b, "%s\nDebater %d (Turn %d)\n%s\n", rule, *t.DebaterIdx, t.Turn, rule)
			}

			if vis.privateFor(t.DebaterIdx) {
				if t.InternalReasoning != nil {
					fmt.Fprintf(&b, "[BEGIN INTERNAL REASONING]\n%s\n[END INTERNAL REASONING]\n\n", *t.InternalReasoning)
				}
				if t.Parsed.PrivateReasoning != nil {
					fmt.Fprintf(&b, "[BEGIN PRIVATE SCRATCHPAD REASONING]\n%s\n[END PRIVATE SCRATCHPAD REASONING]\n\n", *t.Parsed.PrivateReasoning)
				}
			}
			fmt.Fprintf(&b, "[BEGIN PUBLIC ARGUMENT]\n%s\n[END PUBLIC ARGUMENT]\n", t.Parsed.PublicArgument)
		}
	}
	return b.String()
}

// Truncate cuts a history after the first uptoTurns main debater turns.
// Closing-argument and judge entries do not count toward the limit but are
// kept when they precede the cutoff; a limit at or beyond the number of main
// turns keeps everything. uptoTurns < 0 means no truncation.
func Truncate(history []model.Turn, uptoTurns int) []model.Turn {
	if uptoTurns < 0 {
		return history
	}
	if uptoTurns == 0 {
		return nil
	}
	counted := 0
	for i, t := range history {
		if t.Persona == model.PersonaDebater && !t.Closing {
			counted++
			if counted == uptoTurns {
				return history[:i+1]
			}
		}
	}
	return history
}
