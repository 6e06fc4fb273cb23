package earley

import (
	"testing"

	"github.com/coregx/conform/ast"
	"github.com/coregx/conform/grammar"
	"github.com/coregx/conform/rxdfa"
	"github.com/coregx/conform/surface/lark"
)

func buildCGrammar(t *testing.T, src string) *grammar.CGrammar {
	t.Helper()
	tree, err := lark.Parse(src)
	if err != nil {
		t.Fatalf("lark.Parse: %v", err)
	}
	set, err := grammar.CompileSet([]*ast.Tree{tree}, []string{"start"}, grammar.DefaultLimits(), rxdfa.DefaultConfig())
	if err != nil {
		t.Fatalf("CompileSet: %v", err)
	}
	return set.Grammars[0]
}

// firstAllowed returns the lowest lexeme id the recognizer currently
// allows (false if none); tests here use single-literal grammars where
// there is exactly one plausible lexeme at each step, so the first
// allowed id is unambiguous.
func firstAllowed(rz *Recognizer) (rxdfa.LexemeID, bool) {
	set := rz.AllowedLexemes()
	ids := set.Ids()
	if len(ids) == 0 {
		return 0, false
	}
	return ids[0], true
}

func TestRecognizer_ScanSequence(t *testing.T) {
	cg := buildCGrammar(t, "start: \"a\" \"b\"\n")
	rz := New(cg, grammar.DefaultLimits())
	if rz.IsAccepting() {
		t.Fatal("should not accept before any scan")
	}
	lx, ok := firstAllowed(rz)
	if !ok {
		t.Fatal("expected a lexeme to be allowed after start")
	}
	if !rz.Scan(lx, 1) {
		t.Fatal("expected first lexeme scan to succeed")
	}
	lx2, ok := firstAllowed(rz)
	if !ok {
		t.Fatal("expected a lexeme to be allowed after the first scan")
	}
	if !rz.Scan(lx2, 1) {
		t.Fatal("expected second lexeme scan to succeed")
	}
	if !rz.IsAccepting() {
		t.Fatal("expected acceptance after scanning both lexemes")
	}
}

func TestRecognizer_CheckpointRestore(t *testing.T) {
	cg := buildCGrammar(t, "start: \"a\" \"b\"\n")
	rz := New(cg, grammar.DefaultLimits())
	cp := rz.Checkpoint()
	lx, _ := firstAllowed(rz)
	rz.Scan(lx, 1)
	if rz.CurrentRow() != 1 {
		t.Fatalf("expected row 1 after one scan, got %d", rz.CurrentRow())
	}
	rz.Restore(cp)
	if rz.CurrentRow() != 0 {
		t.Fatalf("expected row 0 after restoring the initial checkpoint, got %d", rz.CurrentRow())
	}
}

func TestRecognizer_Capture(t *testing.T) {
	cg := buildCGrammar(t, "start: greeting\ngreeting[capture=greeting]: \"hi\"\n")
	rz := New(cg, grammar.DefaultLimits())
	lx, ok := firstAllowed(rz)
	if !ok {
		t.Fatal("expected a lexeme for \"hi\"")
	}
	if !rz.Scan(lx, 2) {
		t.Fatal("expected the \"hi\" lexeme to scan")
	}
	if !rz.IsAccepting() {
		t.Fatal("expected acceptance after scanning \"hi\"")
	}
	got, ok := rz.Get("greeting", []byte("hi"))
	if !ok || string(got) != "hi" {
		t.Fatalf("expected capture greeting=\"hi\", got %q (ok=%v)", got, ok)
	}
}

func TestRecognizer_StepMaxItemsTripsTooComplex(t *testing.T) {
	// A grammar with many alternatives at the start symbol produces many
	// predicted items in row 0's closure; a StepMaxItems budget smaller
	// than that should trip TooComplex even though MaxItemsInRow alone
	// would not.
	cg := buildCGrammar(t, "start: \"a\" | \"b\" | \"c\" | \"d\" | \"e\" | \"f\" | \"g\" | \"h\"\n")
	lim := grammar.DefaultLimits()
	lim.StepMaxItems = 2
	rz := New(cg, lim)
	if !rz.TooComplex {
		t.Fatal("expected StepMaxItems to trip TooComplex building the initial row")
	}
}

func TestRecognizer_ResetStepBudgetAllowsFreshStep(t *testing.T) {
	cg := buildCGrammar(t, "start: \"a\" \"b\"\n")
	lim := grammar.DefaultLimits()
	lim.StepMaxItems = 1
	rz := New(cg, lim)
	rz.TooComplex = false // undo New's own (tiny-budget) trip for this test
	rz.ResetStepBudget()
	lx, ok := firstAllowed(rz)
	if !ok {
		t.Fatal("expected a lexeme to be allowed after start")
	}
	rz.Scan(lx, 1)
	if rz.TooComplex {
		t.Fatal("expected a freshly reset step budget to tolerate the single item this scan adds")
	}
}

func TestRecognizer_NoExtensionOnBadScan(t *testing.T) {
	cg := buildCGrammar(t, "start: \"a\"\n")
	rz := New(cg, grammar.DefaultLimits())
	if rz.Scan(rxdfa.LexemeID(999), 1) {
		t.Fatal("expected scanning an unexpected lexeme id to fail")
	}
}
