package lexer

import (
	"testing"

	"github.com/coregx/conform/rxdfa"
)

func TestLexer_Advance_BangAfterSpaces(t *testing.T) {
	// lexeme 0: "!"   lexeme 1: [ \t]+ (ignored whitespace)
	bang := rxdfa.ByteNode{Set: rxdfa.NewByteSet('!')}
	ws := rxdfa.Plus(rxdfa.ByteNode{Set: rxdfa.NewByteSet(' ', '\t')})
	spec := NewSpec(
		[]Class{{ID: 0, Name: "BANG"}, {ID: 1, Name: "WS"}},
		[]rxdfa.Node{bang, ws},
		rxdfa.NewLexemeSet(2),
		rxdfa.DefaultConfig(),
	)
	lx := New(spec, rxdfa.DefaultConfig(), 10000)

	allowed := rxdfa.NewLexemeSet(2)
	allowed.Add(0)
	allowed.Add(1)

	state, err := lx.StartState(allowed)
	if err != nil {
		t.Fatal(err)
	}

	res := lx.Advance(state, ' ', allowed)
	if res.Kind != AdvanceState {
		t.Fatalf("expected State after first space, got %v", res.Kind)
	}
	res2 := lx.Advance(res.State, '!', allowed)
	if res2.Kind != AdvanceLexeme || res2.Lexeme.ID != 1 {
		t.Fatalf("expected lexeme 1 (WS) to close on dead-state byte '!', got %+v", res2)
	}
	if !res2.Lexeme.ByteNextRow {
		t.Fatalf("expected '!' to belong to next row")
	}
}
