package debate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/argos-eval/debate-cli/internal/model"
)

func mainTurn(turn, idx int, public, private string) model.Turn {
	t := model.Turn{
		Turn: turn, Persona: model.PersonaDebater, DebaterIdx: model.IntPtr(idx), Success: true,
		Parsed: &model.ParsedArgument{PublicArgument: public},
	}
	if private != "" {
		t.Parsed.PrivateReasoning = model.StrPtr(private)
	}
	return t
}

func closingTurn(turn, idx int, public string) model.Turn {
	t := mainTurn(turn, idx, public, "")
	t.Closing = true
	return t
}

func judgeAction(turn int, action, message string) model.Turn {
	return model.Turn{
		Turn: turn, Persona: model.PersonaJudge, Success: true,
		Action: action, JudgeMessage: message,
	}
}

func TestFormatHistoryPublicOnly(t *testing.T) {
	history := []model.Turn{
		mainTurn(0, 0, "alpha", "secret-a"),
		mainTurn(1, 1, "beta", "secret-b"),
	}
	history[0].InternalReasoning = model.StrPtr("chain of thought")

	text := FormatHistory(history, Visibility{})
	assert.Contains(t, text, "Debater 0 (Turn 0)")
	assert.Contains(t, text, "Debater 1 (Turn 1)")
	assert.Contains(t, text, "[BEGIN PUBLIC ARGUMENT]\nalpha\n[END PUBLIC ARGUMENT]")
	assert.NotContains(t, text, "secret-a")
	assert.NotContains(t, text, "chain of thought")
}

func TestFormatHistoryShowPrivate(t *testing.T) {
	history := []model.Turn{mainTurn(0, 0, "alpha", "secret-a")}
	history[0].InternalReasoning = model.StrPtr("chain of thought")

	text := FormatHistory(history, Visibility{ShowPrivate: true})
	assert.Contains(t, text, "[BEGIN INTERNAL REASONING]\nchain of thought\n[END INTERNAL REASONING]")
	assert.Contains(t, text, "[BEGIN PRIVATE SCRATCHPAD REASONING]\nsecret-a\n[END PRIVATE SCRATCHPAD REASONING]")
}

func TestFormatHistorySelfOnly(t *testing.T) {
	history := []model.Turn{
		mainTurn(0, 0, "alpha", "secret-a"),
		mainTurn(1, 1, "beta", "secret-b"),
	}
	text := FormatHistory(history, Visibility{SelfIdx: model.IntPtr(1)})
	assert.NotContains(t, text, "secret-a")
	assert.Contains(t, text, "secret-b")
	assert.Contains(t, text, "alpha")
}

func TestFormatHistorySkipsUnrenderable(t *testing.T) {
	failed := model.Turn{Turn: 1, Persona: model.PersonaDebater, DebaterIdx: model.IntPtr(1), RawResponse: "garbage"}
	history := []model.Turn{
		mainTurn(0, 0, "alpha", ""),
		judgeAction(0, "next", ""),
		failed,
	}
	text := FormatHistory(history, Visibility{})
	assert.Contains(t, text, "alpha")
	assert.NotContains(t, text, "garbage")
	assert.NotContains(t, text, "Judge")
	assert.Equal(t, 1, strings.Count(text, "[BEGIN PUBLIC ARGUMENT]"))
}

func TestFormatHistoryJudgeMessage(t *testing.T) {
	history := []model.Turn{
		judgeAction(0, "1: defend the premise", "defend the premise"),
		mainTurn(0, 1, "defense", ""),
	}
	text := FormatHistory(history, Visibility{})
	assert.Contains(t, text, "Judge (Turn 0)")
	assert.Contains(t, text, "[BEGIN JUDGE MESSAGE]\ndefend the premise\n[END JUDGE MESSAGE]")
}

func TestFormatHistoryClosingHeader(t *testing.T) {
	text := FormatHistory([]model.Turn{closingTurn(3, 0, "in sum")}, Visibility{})
	assert.Contains(t, text, "Debater 0 (Closing Argument, Turn 3)")
}

func TestFormatHistoryEmpty(t *testing.T) {
	assert.Equal(t, "", FormatHistory(nil, Visibility{}))
}

func TestTruncate(t *testing.T) {
	history := []model.Turn{
		judgeAction(0, "next", ""),
		mainTurn(0, 0, "a", ""),
		judgeAction(1, "next", ""),
		mainTurn(1, 1, "b", ""),
		mainTurn(2, 0, "c", ""),
		closingTurn(3, 0, "x"),
		closingTurn(4, 1, "y"),
	}

	// judge entries before the cutoff are kept; they do not count
	got := Truncate(history, 2)
	require.Len(t, got, 4)
	assert.Equal(t, "b", got[3].Parsed.PublicArgument)

	// a limit at the number of main turns keeps closing arguments out only
	// when they follow the cutoff; here the third main turn is the cutoff
	got = Truncate(history, 3)
	require.Len(t, got, 5)

	// beyond the main-turn count keeps everything
	assert.Len(t, Truncate(history, 10), 7)
	assert.Len(t, Truncate(history, -1), 7)
	assert.Empty(t, Truncate(history, 0))
}
