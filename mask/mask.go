package mask

import "github.com/coregx/conform/vocab"

// Stepper is the minimal interface mask.Computer needs from whatever
// combines a lexer.Lexer and an earley.Recognizer into a single
// byte-at-a-time pushdown (decode.Parser's job — see decode/parser.go).
// Keeping it this small lets mask stay ignorant of subgrammar descent,
// gen-rule splitting and everything else decode.Parser has to juggle; it
// only ever asks "can I take this byte, and can I undo it".
type Stepper interface {
	// Advance tries to consume byte b from the current state. On success
	// it mutates the Stepper's internal state and returns true; the
	// caller must eventually pair a successful Advance with exactly one
	// Backtrack to explore a sibling trie branch.
	Advance(b byte) bool
	// Backtrack undoes the most recent successful Advance.
	Backtrack()
	// ForcedNext reports the single byte value that is the only legal
	// continuation from the current state, if there is exactly one
	// (spec.md §4.5's "forced byte chain"). ok is false the moment more
	// than one byte is legal, or none are.
	ForcedNext() (b byte, ok bool)
}

// Computer performs the vocabulary trie walk of spec.md §4.5: starting
// at the trie root, it descends every child byte the Stepper accepts,
// marking each IsToken node reached as an allowed sample. No grammar or
// lexer state lives here — it is a pure function of the trie and
// whatever Stepper the caller hands it.
type Computer struct {
	Trie *vocab.Trie
}

// New returns a Computer walking trie.
func New(trie *vocab.Trie) *Computer {
	return &Computer{Trie: trie}
}

// Compute walks the full trie against st, returning a Bitset over
// [0, vocabSize) with every reachable token id set.
func (c *Computer) Compute(st Stepper, vocabSize int) *Bitset {
	out := NewBitset(vocabSize)
	c.walk(c.Trie.Root, st, out)
	return out
}

func (c *Computer) walk(n *vocab.Node, st Stepper, out *Bitset) {
	if n.IsToken {
		out.Set(int(n.TokenID))
	}
	for b, child := range n.Children {
		if !st.Advance(b) {
			continue
		}
		c.walk(child, st, out)
		st.Backtrack()
	}
}

// ForcedPrefix greedily follows st's forced-byte chain (every step where
// exactly one byte continues the grammar), up to max bytes, per spec.md
// §4.5's fast-forward design: when the grammar leaves no real choice,
// skip the trie walk and emit the forced bytes directly as ff_tokens
// material instead of sampling. The Stepper is left advanced by exactly
// len(result) bytes; on a zero-length result it is untouched.
func ForcedPrefix(st Stepper, max int) []byte {
	var out []byte
	for len(out) < max {
		b, ok := st.ForcedNext()
		if !ok {
			break
		}
		if !st.Advance(b) {
			break
		}
		out = append(out, b)
	}
	return out
}
