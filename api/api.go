// Package api defines the wire-level request/response shapes spec.md §6
// describes: the TopLevelGrammar a caller submits, and the StepResult a
// decode.Parser step produces, translated to/from JSON for an external
// caller (an inference server's sampling loop).
package api

import (
	"encoding/json"
	"fmt"

	"github.com/coregx/conform/decode"
	"github.com/coregx/conform/vocab"
)

// GrammarEntry is one named grammar within a TopLevelGrammar, either a
// lark-surface source string or an inline JSON Schema — exactly one of
// LarkGrammar/JSONSchema is set, per spec.md §6.
type GrammarEntry struct {
	Name        string          `json:"name,omitempty"`
	LarkGrammar string          `json:"lark_grammar,omitempty"`
	JSONSchema  json.RawMessage `json:"json_schema,omitempty"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
}

// TopLevelGrammar is the full request payload: a list of named grammars
// (the first is the entry point, §4.4's subgrammar descent resolves
// `@name`/`@index` against the rest) plus a request-wide token budget.
type TopLevelGrammar struct {
	Grammars  []GrammarEntry `json:"grammars"`
	MaxTokens int             `json:"max_tokens,omitempty"`
}

// Validate reports a structural error in g before any compilation is
// attempted: at least one grammar, and exactly one of lark_grammar/
// json_schema set per entry.
func (g TopLevelGrammar) Validate() error {
	if len(g.Grammars) == 0 {
		return fmt.Errorf("api: TopLevelGrammar must have at least one grammar entry")
	}
	for i, e := range g.Grammars {
		hasLark := e.LarkGrammar != ""
		hasJSON := len(e.JSONSchema) > 0
		if hasLark == hasJSON {
			return fmt.Errorf("api: grammar %d must set exactly one of lark_grammar/json_schema", i)
		}
	}
	return nil
}

// StopReason mirrors decode.StopReason over the wire as a string, so
// JSON payloads read as self-describing instead of bare integers.
type StopReason string

const (
	StopNotStopped       StopReason = "not_stopped"
	StopMaxTokensTotal   StopReason = "max_tokens_total"
	StopMaxTokensParser  StopReason = "max_tokens_parser"
	StopNoExtension      StopReason = "no_extension"
	StopNoExtensionBias  StopReason = "no_extension_bias"
	StopEndOfSentence    StopReason = "end_of_sentence"
	StopInternalError    StopReason = "internal_error"
	StopLexerTooComplex  StopReason = "lexer_too_complex"
	StopParserTooComplex StopReason = "parser_too_complex"
)

var stopNames = map[decode.StopReason]StopReason{
	decode.StopNotStopped:       StopNotStopped,
	decode.StopMaxTokensTotal:   StopMaxTokensTotal,
	decode.StopMaxTokensParser:  StopMaxTokensParser,
	decode.StopNoExtension:      StopNoExtension,
	decode.StopNoExtensionBias:  StopNoExtensionBias,
	decode.StopEndOfSentence:    StopEndOfSentence,
	decode.StopInternalError:    StopInternalError,
	decode.StopLexerTooComplex:  StopLexerTooComplex,
	decode.StopParserTooComplex: StopParserTooComplex,
}

// FromDecodeStopReason translates the internal enum to its wire form.
func FromDecodeStopReason(r decode.StopReason) StopReason {
	if s, ok := stopNames[r]; ok {
		return s
	}
	return StopInternalError
}

// Splice describes the non-sampling half of a step: a backtrack count
// (how many previously committed tokens must be undone, §4.6's rollback)
// plus any forced fast-forward tokens (already committed by the caller
// via decode.Parser.ConsumeForcedPrefix, so these are real vocabulary
// ids, not raw bytes) and the stop reason if decoding ended this step.
type Splice struct {
	Backtrack int        `json:"backtrack,omitempty"`
	FFTokens  []int32    `json:"ff_tokens,omitempty"`
	Stop      StopReason `json:"stop,omitempty"`
}

// StepResult is one decode step's full wire response: either a sample
// mask to apply to the model's logits, or a Splice directing the caller
// to fast-forward/backtrack instead of sampling.
type StepResult struct {
	SampleMask  []byte  `json:"sample_mask,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
	Splice      Splice  `json:"splice,omitempty"`
}

// FromDecode packs a decode.StepResult plus whatever ff tokens the
// caller already committed via ConsumeForcedPrefix, a backtrack count,
// and the stop reason, into the wire StepResult shape.
func FromDecode(r decode.StepResult, ffTokens []vocab.TokenID, backtrack int, stop decode.StopReason) StepResult {
	out := StepResult{Temperature: r.Temperature}
	if len(ffTokens) > 0 {
		out.Splice.FFTokens = tokenIDsToInt32(ffTokens)
	}
	if r.SampleMask != nil {
		out.SampleMask = r.SampleMask.Bytes()
	}
	out.Splice.Backtrack = backtrack
	out.Splice.Stop = FromDecodeStopReason(stop)
	return out
}

func tokenIDsToInt32(ids []vocab.TokenID) []int32 {
	out := make([]int32, len(ids))
	for i, v := range ids {
		out[i] = int32(v)
	}
	return out
}

// Limits mirrors grammar.Limits for wire/config-file purposes (spec.md
// §6's "Limits object").
type Limits struct {
	MaxItemsInRow    int `json:"max_items_in_row,omitempty"`
	InitialLexerFuel int `json:"initial_lexer_fuel,omitempty"`
	StepLexerFuel    int `json:"step_lexer_fuel,omitempty"`
	MaxLexerStates   int `json:"max_lexer_states,omitempty"`
	MaxGrammarSize   int `json:"max_grammar_size,omitempty"`
	StepMaxItems     int `json:"step_max_items,omitempty"`
}
