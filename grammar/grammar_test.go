package grammar

import (
	"testing"

	"github.com/coregx/conform/ast"
	"github.com/coregx/conform/rxdfa"
	"github.com/coregx/conform/surface/lark"
)

func parseOrFatal(t *testing.T, src string) *ast.Tree {
	t.Helper()
	tree, err := lark.Parse(src)
	if err != nil {
		t.Fatalf("lark.Parse(%q): %v", src, err)
	}
	return tree
}

func TestElaborate_Basic(t *testing.T) {
	tree := parseOrFatal(t, "start: \"a\" \"b\"\n")
	g, err := Elaborate(tree, DefaultLimits())
	if err != nil {
		t.Fatalf("Elaborate: %v", err)
	}
	if g.Symbols[g.Start].Name != "start" {
		t.Fatalf("expected start symbol to be \"start\", got %q", g.Symbols[g.Start].Name)
	}
}

func TestElaborate_DuplicateRule(t *testing.T) {
	tree := parseOrFatal(t, "start: \"a\"\nstart: \"b\"\n")
	_, err := Elaborate(tree, DefaultLimits())
	if err == nil {
		t.Fatal("expected duplicate rule to be rejected")
	}
	ge, ok := err.(*Error)
	if !ok || ge.Kind != ErrDuplicateSymbol {
		t.Fatalf("expected ErrDuplicateSymbol, got %v", err)
	}
}

func TestElaborate_UnknownName(t *testing.T) {
	tree := parseOrFatal(t, "start: missing\n")
	_, err := Elaborate(tree, DefaultLimits())
	if err == nil {
		t.Fatal("expected unresolved rule reference to be rejected")
	}
	ge, ok := err.(*Error)
	if !ok || ge.Kind != ErrUnknownName {
		t.Fatalf("expected ErrUnknownName, got %v", err)
	}
}

func TestCompileSet_GrammarRef(t *testing.T) {
	root := parseOrFatal(t, "start: @sub\n")
	sub := parseOrFatal(t, "start: \"x\"\n")
	set, err := CompileSet([]*ast.Tree{root, sub}, []string{"root", "sub"}, DefaultLimits(), rxdfa.DefaultConfig())
	if err != nil {
		t.Fatalf("CompileSet: %v", err)
	}
	if _, ok := set.Resolve("sub"); !ok {
		t.Fatal("expected \"sub\" to resolve by name")
	}
	if _, ok := set.Resolve("1"); !ok {
		t.Fatal("expected positional \"1\" to resolve to the second grammar")
	}
	if _, ok := set.Resolve("nope"); ok {
		t.Fatal("expected an unknown ref to fail to resolve")
	}
}

func TestCompileSet_UnresolvedGrammarRef(t *testing.T) {
	root := parseOrFatal(t, "start: @missing\n")
	_, err := CompileSet([]*ast.Tree{root}, []string{"root"}, DefaultLimits(), rxdfa.DefaultConfig())
	if err == nil {
		t.Fatal("expected unresolved grammar-ref to fail CompileSet")
	}
}

func TestElaborate_RepetitionBounds(t *testing.T) {
	tree := parseOrFatal(t, "start: ab{3,5}\nab: \"a\"|\"b\"\n")
	if _, err := Elaborate(tree, DefaultLimits()); err != nil {
		t.Fatalf("Elaborate: %v", err)
	}
}

func TestElaborate_EmptyGrammarFails(t *testing.T) {
	tree := &ast.Tree{Name: "empty"}
	_, err := Elaborate(tree, DefaultLimits())
	if err == nil {
		t.Fatal("expected an empty grammar (no rules, no start) to fail")
	}
}
