package mask

import (
	"testing"

	"github.com/coregx/conform/vocab"
)

// fixedStepper accepts exactly the bytes of a fixed prefix, in order, and
// reports the next prefix byte as forced until the prefix is used up, good
// enough to exercise Computer.Compute's trie walk and ForcedPrefix without
// needing a real lexer/recognizer.
type fixedStepper struct {
	prefix []byte
	pos    int
}

func (s *fixedStepper) Advance(b byte) bool {
	if s.pos >= len(s.prefix) || s.prefix[s.pos] != b {
		return false
	}
	s.pos++
	return true
}

func (s *fixedStepper) Backtrack() {
	s.pos--
}

func (s *fixedStepper) ForcedNext() (byte, bool) {
	if s.pos >= len(s.prefix) {
		return 0, false
	}
	return s.prefix[s.pos], true
}

func TestComputer_Compute(t *testing.T) {
	env := vocab.NewMemTokEnv([][]byte{
		[]byte("ab"),
		[]byte("ac"),
		[]byte("b"),
	}, 3)
	trie := vocab.Build(env)
	c := New(trie)

	m := c.Compute(&fixedStepper{prefix: []byte("ab")}, env.VocabSize())
	if !m.Test(0) {
		t.Error("expected token 0 (\"ab\") to be allowed")
	}
	if m.Test(1) {
		t.Error("expected token 1 (\"ac\") to be rejected")
	}
	if m.Test(2) {
		t.Error("expected token 2 (\"b\") to be rejected")
	}
}

func TestComputer_ComputeRestoresStepperState(t *testing.T) {
	env := vocab.NewMemTokEnv([][]byte{[]byte("a"), []byte("b")}, 2)
	trie := vocab.Build(env)
	c := New(trie)
	st := &fixedStepper{prefix: []byte("a")}
	c.Compute(st, env.VocabSize())
	if st.pos != 0 {
		t.Fatalf("expected the stepper to be fully backtracked after Compute, pos=%d", st.pos)
	}
}

func TestForcedPrefix(t *testing.T) {
	st := &fixedStepper{prefix: []byte("xyz")}
	got := ForcedPrefix(st, 10)
	if string(got) != "xyz" {
		t.Fatalf("expected forced prefix \"xyz\", got %q", got)
	}
	if st.pos != 3 {
		t.Fatalf("expected the stepper to be left advanced by the forced bytes, pos=%d", st.pos)
	}
}

func TestForcedPrefix_RespectsMax(t *testing.T) {
	st := &fixedStepper{prefix: []byte("abcdef")}
	got := ForcedPrefix(st, 3)
	if len(got) != 3 {
		t.Fatalf("expected ForcedPrefix to stop at max=3 bytes, got %q", got)
	}
}

func TestBitset_SetTestCount(t *testing.T) {
	b := NewBitset(128)
	b.Set(0)
	b.Set(63)
	b.Set(64)
	b.Set(127)
	if b.Count() != 4 {
		t.Fatalf("expected 4 set bits, got %d", b.Count())
	}
	if !b.Test(63) || !b.Test(64) {
		t.Fatal("expected bits straddling a word boundary to both be set")
	}
	if b.Test(1) {
		t.Fatal("expected bit 1 to be unset")
	}
}
