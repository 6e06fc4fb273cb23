package api

import (
	"encoding/json"
	"testing"

	"github.com/coregx/conform/decode"
	"github.com/coregx/conform/mask"
	"github.com/coregx/conform/vocab"
)

func TestTopLevelGrammar_Validate(t *testing.T) {
	cases := []struct {
		name    string
		g       TopLevelGrammar
		wantErr bool
	}{
		{"empty", TopLevelGrammar{}, true},
		{"lark only", TopLevelGrammar{Grammars: []GrammarEntry{{LarkGrammar: "start: \"a\"\n"}}}, false},
		{"json only", TopLevelGrammar{Grammars: []GrammarEntry{{JSONSchema: json.RawMessage(`{}`)}}}, false},
		{"neither set", TopLevelGrammar{Grammars: []GrammarEntry{{}}}, true},
		{"both set", TopLevelGrammar{Grammars: []GrammarEntry{{LarkGrammar: "x", JSONSchema: json.RawMessage(`{}`)}}}, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := c.g.Validate()
			if (err != nil) != c.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, c.wantErr)
			}
		})
	}
}

func TestFromDecodeStopReason(t *testing.T) {
	if got := FromDecodeStopReason(decode.StopEndOfSentence); got != StopEndOfSentence {
		t.Fatalf("expected %q, got %q", StopEndOfSentence, got)
	}
	if got := FromDecodeStopReason(decode.StopReason(999)); got != StopInternalError {
		t.Fatalf("expected an unknown StopReason to map to %q, got %q", StopInternalError, got)
	}
}

func TestFromDecode_SampleMask(t *testing.T) {
	m := mask.NewBitset(8)
	m.Set(3)
	sr := decode.StepResult{SampleMask: m, Temperature: 0.7}
	out := FromDecode(sr, nil, 0, decode.StopNotStopped)
	if out.Temperature != 0.7 {
		t.Fatalf("expected temperature 0.7, got %v", out.Temperature)
	}
	if len(out.SampleMask) == 0 {
		t.Fatal("expected a packed sample mask")
	}
	if out.Splice.Stop != StopNotStopped {
		t.Fatalf("expected stop reason %q, got %q", StopNotStopped, out.Splice.Stop)
	}
}

func TestFromDecode_ForcedTokens(t *testing.T) {
	sr := decode.StepResult{Temperature: 1.0}
	out := FromDecode(sr, []vocab.TokenID{5, 6}, 2, decode.StopEndOfSentence)
	if out.SampleMask != nil {
		t.Fatal("expected no sample mask when a forced prefix was taken instead")
	}
	if len(out.Splice.FFTokens) != 2 || out.Splice.FFTokens[0] != 5 || out.Splice.FFTokens[1] != 6 {
		t.Fatalf("expected ff_tokens [5 6], got %v", out.Splice.FFTokens)
	}
	if out.Splice.Backtrack != 2 {
		t.Fatalf("expected backtrack 2, got %d", out.Splice.Backtrack)
	}
	if out.Splice.Stop != StopEndOfSentence {
		t.Fatalf("expected stop reason %q, got %q", StopEndOfSentence, out.Splice.Stop)
	}
}
