package decode

import (
	"testing"

	"github.com/coregx/conform/ast"
	"github.com/coregx/conform/grammar"
	"github.com/coregx/conform/rxdfa"
	"github.com/coregx/conform/surface/lark"
	"github.com/coregx/conform/vocab"
)

// byteVocab is a minimal TokEnv where every token is exactly one byte,
// plus a distinct EOS id, good enough to drive the byte-level machinery
// directly in tests.
func byteVocab() *vocab.MemTokEnv {
	tokens := make([][]byte, 257)
	for i := 0; i < 256; i++ {
		tokens[i] = []byte{byte(i)}
	}
	tokens[256] = nil // EOS
	return vocab.NewMemTokEnv(tokens, 256)
}

func mustBuild(t *testing.T, src string) *Parser {
	t.Helper()
	tree, err := lark.Parse(src)
	if err != nil {
		t.Fatalf("lark.Parse: %v", err)
	}
	set, err := grammar.CompileSet([]*ast.Tree{tree}, []string{"start"}, grammar.DefaultLimits(), rxdfa.DefaultConfig())
	if err != nil {
		t.Fatalf("grammar.CompileSet: %v", err)
	}
	p, err := New(set, byteVocab(), grammar.DefaultLimits(), rxdfa.DefaultConfig())
	if err != nil {
		t.Fatalf("decode.New: %v", err)
	}
	return p
}

func TestParser_CommitAndAccept(t *testing.T) {
	p := mustBuild(t, "start: \"ab\"\n")
	if p.IsAccepting() {
		t.Fatal("should not accept before any bytes are committed")
	}
	if !p.CommitToken(vocab.TokenID('a')) {
		t.Fatalf("expected 'a' to be accepted, stop=%v", p.StopReason())
	}
	if p.IsAccepting() {
		t.Fatal("should not accept after only 'a'")
	}
	if !p.CommitToken(vocab.TokenID('b')) {
		t.Fatalf("expected 'b' to be accepted, stop=%v", p.StopReason())
	}
	if !p.IsAccepting() {
		t.Fatal("expected to accept after \"ab\"")
	}
	if p.CommitToken(vocab.TokenID('c')) {
		t.Fatal("expected 'c' to be rejected once the grammar is exhausted")
	}
}

func TestParser_ComputeMask_ForcedPrefix(t *testing.T) {
	p := mustBuild(t, "start: \"xyz\"\n")
	step := p.ComputeMask()
	if string(step.ForcedPrefix) != "xyz" {
		t.Fatalf("expected forced prefix \"xyz\", got %q", step.ForcedPrefix)
	}
	// ComputeMask must not itself commit the forced bytes: the caller is
	// expected to re-tokenize and commit them via ConsumeForcedPrefix, so
	// computing the mask twice in a row must be idempotent.
	step2 := p.ComputeMask()
	if string(step2.ForcedPrefix) != "xyz" {
		t.Fatalf("expected ComputeMask to be side-effect free, got %q on second call", step2.ForcedPrefix)
	}
	committed := p.ConsumeForcedPrefix(step.ForcedPrefix)
	if len(committed) != 3 {
		t.Fatalf("expected 3 committed tokens, got %d", len(committed))
	}
	if !p.IsAccepting() {
		t.Fatal("expected acceptance after consuming the forced prefix")
	}
}

func TestParser_RollbackRestoresAcceptance(t *testing.T) {
	p := mustBuild(t, "start: \"a\" \"b\"\n")
	if !p.CommitToken(vocab.TokenID('a')) || !p.CommitToken(vocab.TokenID('b')) {
		t.Fatalf("expected \"ab\" to commit cleanly, stop=%v", p.StopReason())
	}
	if !p.IsAccepting() {
		t.Fatal("expected acceptance after \"ab\"")
	}
	if !p.Rollback(1) {
		t.Fatal("expected rollback of 1 token to succeed")
	}
	if p.IsAccepting() {
		t.Fatal("expected acceptance to be undone after rolling back the 'b' token")
	}
	if !p.CommitToken(vocab.TokenID('b')) {
		t.Fatalf("expected 'b' to be re-committable after rollback, stop=%v", p.StopReason())
	}
	if !p.IsAccepting() {
		t.Fatal("expected acceptance again after re-committing 'b'")
	}
}

func TestParser_CaptureRecorded(t *testing.T) {
	p := mustBuild(t, "start: greeting\ngreeting[capture=greeting]: \"hi\"\n")
	if !p.CommitToken(vocab.TokenID('h')) || !p.CommitToken(vocab.TokenID('i')) {
		t.Fatalf("expected \"hi\" to commit, stop=%v", p.StopReason())
	}
	got, ok := p.Get("greeting")
	if !ok || string(got) != "hi" {
		t.Fatalf("expected capture greeting=\"hi\", got %q (ok=%v)", got, ok)
	}
}

func TestParser_ComputeMask_NoActiveScopeTemperatureDefaultsToZero(t *testing.T) {
	p := mustBuild(t, "start: \"a\"\n")
	step := p.ComputeMask()
	if step.Temperature != 0 {
		t.Fatalf("expected temperature 0 with no active gen/grammar-ref scope, got %v", step.Temperature)
	}
}

func TestParser_ComputeMask_EOSSetWhenAccepting(t *testing.T) {
	p := mustBuild(t, "start: \"a\"\n")
	if !p.CommitToken(vocab.TokenID('a')) {
		t.Fatalf("expected 'a' to commit, stop=%v", p.StopReason())
	}
	if !p.IsAccepting() {
		t.Fatal("expected acceptance after \"a\"")
	}
	step := p.ComputeMask()
	if step.SampleMask == nil {
		t.Fatal("expected a sample mask, not a forced prefix")
	}
	if !step.SampleMask.Test(int(p.env.EOS())) {
		t.Fatal("expected EOS to be set in the sample mask once is_accepting() is true")
	}
}

func TestParser_ComputeMask_EOSNotSetWhenNotAccepting(t *testing.T) {
	// Two possible first bytes, so ComputeMask cannot return a forced prefix.
	p := mustBuild(t, "start: \"a\" | \"b\"\n")
	step := p.ComputeMask()
	if step.SampleMask == nil {
		t.Fatal("expected a sample mask, not a forced prefix")
	}
	if step.SampleMask.Test(int(p.env.EOS())) {
		t.Fatal("expected EOS to be unset in the sample mask before the grammar accepts")
	}
}

func TestParser_CheckStop(t *testing.T) {
	p := mustBuild(t, "start: \"a\"\n")
	if got := p.CheckStop(); got != StopNotStopped {
		t.Fatalf("expected StopNotStopped before any commit, got %v", got)
	}
	if !p.CommitToken(vocab.TokenID('a')) {
		t.Fatalf("expected 'a' to commit, stop=%v", p.StopReason())
	}
	if got := p.CheckStop(); got != StopEndOfSentence {
		t.Fatalf("expected CheckStop to report StopEndOfSentence once accepting with nothing further legal, got %v", got)
	}
	// CheckStop must not itself latch a stop reason: StopReason/IsStopped
	// stay live until CommitToken(EOS) actually commits it.
	if p.IsStopped() {
		t.Fatal("expected CheckStop to be a pure query, not to mutate StopReason")
	}
}

func TestParser_MaxStepStats(t *testing.T) {
	p := mustBuild(t, "start: \"ab\"\n")
	if stats := p.MaxStepStats(); stats.Rows != 0 || stats.Items != 0 {
		t.Fatalf("expected zero max stats before any commit, got %+v", stats)
	}
	if !p.CommitToken(vocab.TokenID('a')) || !p.CommitToken(vocab.TokenID('b')) {
		t.Fatalf("expected \"ab\" to commit cleanly, stop=%v", p.StopReason())
	}
	last := p.LastStepStats()
	max := p.MaxStepStats()
	if max.Rows < last.Rows || max.Items < last.Items {
		t.Fatalf("expected max stats to be at least the last observed stats, last=%+v max=%+v", last, max)
	}
}

func TestParser_ProcessPromptHealing(t *testing.T) {
	p := mustBuild(t, "start: \"ab\"\n")
	tokens := []vocab.TokenID{vocab.TokenID('a'), vocab.TokenID('b')}
	healedFrom := p.ProcessPrompt(tokens)
	if healedFrom != len(tokens) {
		t.Fatalf("expected no healing needed, healedFrom=%d", healedFrom)
	}
	if !p.IsAccepting() {
		t.Fatal("expected acceptance after processing the whole prompt")
	}
}
