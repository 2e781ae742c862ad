// Package parse extracts structured fields from free-text model output.
//
// Two contracts exist: the debater contract (public argument plus optional
// private reasoning, hard failure on a missing public segment) and the answer
// contract (Answer/Confidence/Reasoning, degrading to a nil answer). All tag
// matching is case-insensitive and tolerates a missing leading slash on the
// closing delimiter, because models emit either form.
package parse

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/argos-eval/debate-cli/internal/model"
)

// Mode selects strict or lenient tag matching.
type Mode int

const (
	// Strict requires every delimited segment the contract names.
	Strict Mode = iota
	// Lenient relaxes segment requirements where a fallback exists.
	Lenient
)

func (m Mode) String() string {
	if m == Lenient {
		return "lenient"
	}
	return "strict"
}

var (
	publicRe      = regexp.MustCompile(`(?is)<begin public argument>(.*?)</?end public argument>`)
	privateRe     = regexp.MustCompile(`(?is)<begin private reasoning>(.*?)</?end private reasoning>`)
	publicBeginRe = regexp.MustCompile(`(?i)<begin public argument>`)

	finalAnswerRe = regexp.MustCompile(`(?is)<begin final answer>(.*?)</?end final answer>`)
	answerRe      = regexp.MustCompile(`(?i)answer:\s*(\d+)`)
	confidenceRe  = regexp.MustCompile(`(?i)confidence:\s*(\d+)(?:\.\d+)?%?`)
	reasoningRe   = regexp.MustCompile(`(?is)reasoning:\s*(.+?)\s*\z`)
)

// DebaterResponse applies the debater contract. The public argument segment
// is always required. When scratchpad is set, a private reasoning segment is
// required too, unless mode is Lenient, in which case all text preceding the
// public segment is treated as the private reasoning. That fallback is a
// heuristic: stray preamble that is not reasoning at all gets absorbed.
func DebaterResponse(text string, scratchpad bool, mode Mode) (*model.ParsedArgument, error) {
	publicMatch := publicRe.FindStringSubmatch(text)
	if publicMatch == nil {
		return nil, eris.New("parse: missing PUBLIC ARGUMENT tags in debater response")
	}

	parsed := &model.ParsedArgument{
		PublicArgument: strings.TrimSpace(publicMatch[1]),
	}

	if !scratchpad {
		return parsed, nil
	}

	if privateMatch := privateRe.FindStringSubmatch(text); privateMatch != nil {
		parsed.PrivateReasoning = model.StrPtr(strings.TrimSpace(privateMatch[1]))
		return parsed, nil
	}

	if mode == Strict {
		return nil, eris.New("parse: missing PRIVATE REASONING tags in debater response")
	}

	// Lenient fallback: everything before the public tag is the scratchpad.
	if loc := publicBeginRe.FindStringIndex(text); loc != nil {
		if preamble := strings.TrimSpace(text[:loc[0]]); preamble != "" {
			parsed.PrivateReasoning = model.StrPtr(preamble)
		}
	}
	return parsed, nil
}

// Answer applies the QA/verdict contract. Strict mode restricts matching to a
// FINAL ANSWER segment; Lenient searches the whole text. A missing integer
// answer yields IsValid=false with a nil Answer, never an error.
func Answer(text string, mode Mode) model.ParsedAnswer {
	parsed := model.ParsedAnswer{}

	searchText := text
	if mode == Strict {
		match := finalAnswerRe.FindStringSubmatch(text)
		if match == nil {
			return parsed
		}
		searchText = match[1]
	}

	if m := answerRe.FindStringSubmatch(searchText); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			parsed.Answer = model.IntPtr(n)
			parsed.IsValid = true
		}
	}

	if m := confidenceRe.FindStringSubmatch(searchText); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			parsed.Confidence = model.IntPtr(n)
		}
	}

	if m := reasoningRe.FindStringSubmatch(searchText); m != nil {
		parsed.Reasoning = model.StrPtr(strings.TrimSpace(m[1]))
	}

	return parsed
}
