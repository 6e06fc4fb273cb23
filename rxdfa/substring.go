package rxdfa

import "github.com/coregx/ahocorasick"

// SubstringMatcher is the shared, immutable backing store for one
// `%regex { substring_words | substring_chars | substring_chunks }` lexeme
// (§4.3 step 2). It represents the language of every contiguous run of
// Chunks, joined by Sep: Chunks[i] Sep Chunks[i+1] Sep ... Sep Chunks[j]
// for any 0 <= i <= j < len(Chunks). This is exactly the "substring"
// construction §4.1 calls out as needing its own AST node so the NFA/DFA
// blow-up of expanding every window as a literal union is avoided.
//
// Per scenario 4 in spec.md §8, "The quick brown fox jumps over the lazy
// dog." split on spaces (substring_words) accepts "The quick brown fox"
// and "dog." as runs, and rejects "brown fx" because it is not a prefix
// of any run.
type SubstringMatcher struct {
	Chunks [][]byte
	Sep    []byte

	// windows[i] is the full byte string Chunks[i] Sep Chunks[i+1] ... to
	// the end of Chunks. A SubstringNode{Start: i, Offset: k} denotes the
	// state after matching windows[i][:k].
	windows [][]byte

	// firstBytes is the set of bytes that can start some window; it is
	// the exact, correctness-bearing filter used by deriveSubstring.
	firstBytes ByteSet

	// ac is an Aho-Corasick automaton over Chunks, used at construction
	// time to flag chunks that occur verbatim inside a different, longer
	// chunk (e.g. "he" inside "the"). That overlap is harmless for
	// matching (Start/Offset tracks the real window regardless) but is
	// useful compile-time diagnostic information, surfaced through
	// AmbiguousChunks so callers can log it.
	ac *ahocorasick.Automaton
}

// NewSubstringMatcher builds a matcher over chunks joined by sep.
func NewSubstringMatcher(chunks [][]byte, sep []byte) (*SubstringMatcher, error) {
	m := &SubstringMatcher{Chunks: chunks, Sep: sep}
	m.windows = make([][]byte, len(chunks))
	for i := range chunks {
		var w []byte
		for j := i; j < len(chunks); j++ {
			if j > i {
				w = append(w, sep...)
			}
			w = append(w, chunks[j]...)
		}
		m.windows[i] = w
		if len(w) > 0 {
			m.firstBytes.Add(w[0])
		}
	}

	builder := ahocorasick.NewBuilder()
	for _, c := range chunks {
		builder.AddPattern(c)
	}
	ac, err := builder.Build()
	if err != nil {
		return nil, err
	}
	m.ac = ac
	return m, nil
}

// AmbiguousChunks returns the indices of chunks inside which some other,
// distinct chunk also matches (a purely informational diagnostic; see the
// ac field doc comment). Compilation does not fail over this.
func (m *SubstringMatcher) AmbiguousChunks() []int {
	var out []int
	for i, c := range m.Chunks {
		for at := 0; at <= len(c); {
			match := m.ac.Find(c, at)
			if match == nil {
				break
			}
			if match.Start() != 0 || match.End() != len(c) {
				out = append(out, i)
				break
			}
			at = match.Start() + 1
		}
	}
	return out
}

// Start builds the initial SubstringNode: not yet committed to any Chunks
// start index.
func (m *SubstringMatcher) Start() Node {
	return SubstringNode{Matcher: m, Start: -1, Offset: 0}
}

// nullableAt reports whether the run starting at start (or "not started")
// with offset bytes consumed is a complete, acceptable match.
func (m *SubstringMatcher) nullableAt(start, offset int) bool {
	if start < 0 {
		// Not yet started: the empty run is only acceptable if the whole
		// construction is permitted to match nothing, which it is not
		// (a substring lexeme always consumes at least one chunk).
		return false
	}
	// A run may stop at the end of any chunk from start onwards.
	pos := 0
	for j := start; j < len(m.Chunks); j++ {
		if j > start {
			pos += len(m.Sep)
		}
		pos += len(m.Chunks[j])
		if pos == offset {
			return true
		}
		if pos > offset {
			return false
		}
	}
	return false
}

// derive computes the SubstringNode reached after consuming byte b.
func (d *Deriver) deriveSubstring(n SubstringNode, b byte) Node {
	if n.Start < 0 {
		// Looking for a fresh start index whose window begins with b.
		if !n.Matcher.firstBytes.Contains(b) {
			return Null
		}
		var alts []Node
		for i, w := range n.Matcher.windows {
			if len(w) > 0 && w[0] == b {
				alts = append(alts, SubstringNode{Matcher: n.Matcher, Start: i, Offset: 1})
			}
		}
		return Union(alts...)
	}
	w := n.Matcher.windows[n.Start]
	if n.Offset >= len(w) || w[n.Offset] != b {
		return Null
	}
	return SubstringNode{Matcher: n.Matcher, Start: n.Start, Offset: n.Offset + 1}
}
