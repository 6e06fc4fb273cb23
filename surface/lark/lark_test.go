package lark

import (
	"testing"

	"github.com/coregx/conform/ast"
)

func TestParse_SimpleRule(t *testing.T) {
	src := `start: "a" "b"+
`
	tree, err := Parse(src)
	if err != nil {
		t.Fatal(err)
	}
	if len(tree.Rules) != 1 {
		t.Fatalf("expected 1 rule, got %d", len(tree.Rules))
	}
	rule := tree.Rules[0]
	if rule.Name != "start" {
		t.Fatalf("expected rule name 'start', got %q", rule.Name)
	}
	if len(rule.Alts) != 1 || len(rule.Alts[0].Elems) != 2 {
		t.Fatalf("expected 1 alt of 2 elements, got %+v", rule.Alts)
	}
	b := rule.Alts[0].Elems[1]
	if b.Literal != "b" || b.Min != 1 || b.Max != -1 {
		t.Fatalf("expected 'b'+ element, got %+v", b)
	}
}

func TestParse_AttrsAndAlternation(t *testing.T) {
	src := `greeting[capture=greeting, temperature=0.5]: "hi" | "hello"
`
	tree, err := Parse(src)
	if err != nil {
		t.Fatal(err)
	}
	rule := tree.Rules[0]
	if !rule.Attrs.HasCapture || rule.Attrs.Capture != "greeting" {
		t.Fatalf("expected capture=greeting, got %+v", rule.Attrs)
	}
	if !rule.Attrs.HasTemp || rule.Attrs.Temperature != 0.5 {
		t.Fatalf("expected temperature=0.5, got %+v", rule.Attrs)
	}
	if len(rule.Alts) != 2 {
		t.Fatalf("expected 2 alternatives, got %d", len(rule.Alts))
	}
}

func TestParse_GrammarRefAndGroup(t *testing.T) {
	src := `start: ("x" | "y")* @sub
`
	tree, err := Parse(src)
	if err != nil {
		t.Fatal(err)
	}
	elems := tree.Rules[0].Alts[0].Elems
	if len(elems) != 2 {
		t.Fatalf("expected 2 elements, got %d", len(elems))
	}
	if elems[0].Kind != ast.ElemGroup {
		t.Fatalf("expected first element to be a group, got kind %v", elems[0].Kind)
	}
	if elems[0].Min != 0 || elems[0].Max != -1 {
		t.Fatalf("expected group '*' to be (0,-1), got (%d,%d)", elems[0].Min, elems[0].Max)
	}
	if elems[1].Name != "sub" {
		t.Fatalf("expected grammar-ref name 'sub', got %q", elems[1].Name)
	}
}

func TestParse_IgnoreAndComment(t *testing.T) {
	src := "WS: /[ \\t]+/\n%ignore WS\nstart: \"a\" # trailing comment\n"
	tree, err := Parse(src)
	if err != nil {
		t.Fatal(err)
	}
	if len(tree.Ignore) != 1 {
		t.Fatalf("expected 1 ignore pattern, got %d", len(tree.Ignore))
	}
}

func TestParse_TokenRangeAndSpecialToken(t *testing.T) {
	src := "start: <[0-5,10-12]> <|eos|>\n"
	tree, err := Parse(src)
	if err != nil {
		t.Fatal(err)
	}
	elems := tree.Rules[0].Alts[0].Elems
	if len(elems[0].TokenRanges) != 2 {
		t.Fatalf("expected 2 token ranges, got %+v", elems[0].TokenRanges)
	}
	if elems[1].Name != "eos" {
		t.Fatalf("expected special token name 'eos', got %q", elems[1].Name)
	}
}

func TestParse_EmptyGrammarRejected(t *testing.T) {
	if _, err := Parse("  \n# nothing here\n"); err == nil {
		t.Fatal("expected an error for an empty grammar")
	}
}
