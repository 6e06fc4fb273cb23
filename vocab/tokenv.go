// Package vocab implements spec.md §6's TokEnv/Tokenizer collaborator
// interfaces plus a reference in-memory implementation, and the
// vocabulary trie package mask.Computer walks (§4.5).
package vocab

import "fmt"

// TokenID identifies one entry in a vocabulary.
type TokenID int32

// TokEnv is the collaborator interface spec.md §6 calls "Vocabulary trie
// (TokEnv)": enumerate tokens, decode token -> bytes, tokenize bytes ->
// tokens, EOS id, a test-trace formatter. The engine never constructs
// one; it is handed a TokEnv built by the caller's tokenizer loader
// (explicitly out of scope per §1).
type TokEnv interface {
	// VocabSize returns the number of distinct token ids, 0..VocabSize()-1.
	VocabSize() int
	// TokenBytes returns the raw bytes token id decodes to.
	TokenBytes(id TokenID) []byte
	// EOS returns the end-of-sequence token id.
	EOS() TokenID
	// Tokenize greedily re-tokenizes bytes the way the model's own
	// tokenizer would, used by decode's token-healing step (§4.6).
	Tokenize(data []byte) []TokenID
	// TraceString renders id for diagnostic/test output (§6: "test-trace
	// formatter").
	TraceString(id TokenID) string
}

// MemTokEnv is a reference, in-memory TokEnv backed by a flat byte-slice
// vocabulary, built once and treated as read-only thereafter (§3's
// Ownership: "The vocabulary trie is shared, read-only"). Good enough to
// drive tests and cmd/conform; a real deployment wires in whatever the
// model's tokenizer loader produces.
type MemTokEnv struct {
	tokens []([]byte)
	eos    TokenID
	// greedy is a byte-trie over tokens used by Tokenize, built lazily so
	// constructing a MemTokEnv for a small test vocabulary stays cheap.
	greedy *Trie
	// specials maps a `<|name|>` reference to the vocabulary id it
	// resolves to, letting MemTokEnv satisfy the optional
	// SpecialTokenID(name) extension package decode looks for.
	specials map[string]TokenID
}

// NewMemTokEnv builds a MemTokEnv from tokens (indexed by TokenID) with
// the given EOS id.
func NewMemTokEnv(tokens [][]byte, eos TokenID) *MemTokEnv {
	return &MemTokEnv{tokens: tokens, eos: eos}
}

// WithSpecials attaches name->id resolution for `<|name|>` references
// and returns the receiver, for fluent construction in tests/cmd/conform.
func (e *MemTokEnv) WithSpecials(specials map[string]TokenID) *MemTokEnv {
	e.specials = specials
	return e
}

// SpecialTokenID resolves a `<|name|>` reference against the specials
// map set via WithSpecials.
func (e *MemTokEnv) SpecialTokenID(name string) (TokenID, bool) {
	id, ok := e.specials[name]
	return id, ok
}

func (e *MemTokEnv) VocabSize() int { return len(e.tokens) }

func (e *MemTokEnv) TokenBytes(id TokenID) []byte {
	if int(id) < 0 || int(id) >= len(e.tokens) {
		return nil
	}
	return e.tokens[id]
}

func (e *MemTokEnv) EOS() TokenID { return e.eos }

func (e *MemTokEnv) TraceString(id TokenID) string {
	return fmt.Sprintf("%d:%q", id, e.TokenBytes(id))
}

// Tokenize performs the classic greedy-longest-match retokenization: at
// each position, take the longest token whose bytes match, per spec.md
// §6's "greedy-tokenize bytes" collaborator contract. Ties (two tokens of
// equal, maximal length) are broken by lowest token id, matching the
// engine's own lowest-id tie-break convention (§4.1).
func (e *MemTokEnv) Tokenize(data []byte) []TokenID {
	if e.greedy == nil {
		e.greedy = Build(e)
	}
	var out []TokenID
	for pos := 0; pos < len(data); {
		id, length, ok := e.greedy.LongestMatch(data[pos:])
		if !ok {
			pos++ // no token matches even one byte: skip it (malformed vocab)
			continue
		}
		out = append(out, id)
		pos += length
	}
	return out
}
