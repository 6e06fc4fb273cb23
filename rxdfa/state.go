package rxdfa

import "fmt"

// StateID identifies a state in a DFA's per-parser cache. Mirrors the
// InvalidState/DeadState/StartState constant shape of
// github.com/coregx/coregex's dfa/lazy.StateID.
type StateID uint32

const (
	// StartState is always the state built from every lexeme's full
	// regex, conditioned on the initially-allowed lexeme set.
	StartState StateID = 0
	// DeadState means no lexeme can ever match or continue from here.
	DeadState StateID = 0xFFFFFFFE
	// InvalidState marks an uninitialized/unused StateID.
	InvalidState StateID = 0xFFFFFFFF
)

// LexemeID indexes one lexeme class within a LexerSpec-ordered vector.
type LexemeID int

// LexemeSet is a growable bitset over LexemeID, used both for "still
// possible" and "currently enabled" lexeme subsets.
type LexemeSet struct {
	words []uint64
}

// NewLexemeSet returns an empty set sized to hold ids up to n-1.
func NewLexemeSet(n int) LexemeSet {
	return LexemeSet{words: make([]uint64, (n+63)/64)}
}

// Add marks id as a member.
func (s *LexemeSet) Add(id LexemeID) {
	w := int(id) / 64
	for len(s.words) <= w {
		s.words = append(s.words, 0)
	}
	s.words[w] |= 1 << (uint(id) % 64)
}

// Contains reports membership.
func (s LexemeSet) Contains(id LexemeID) bool {
	w := int(id) / 64
	if w >= len(s.words) {
		return false
	}
	return s.words[w]&(1<<(uint(id)%64)) != 0
}

// Empty reports whether no id is a member.
func (s LexemeSet) Empty() bool {
	for _, w := range s.words {
		if w != 0 {
			return false
		}
	}
	return true
}

// Lowest returns the lowest member id and true, or (0, false) if empty.
func (s LexemeSet) Lowest() (LexemeID, bool) {
	for wi, w := range s.words {
		if w == 0 {
			continue
		}
		for bit := 0; bit < 64; bit++ {
			if w&(1<<uint(bit)) != 0 {
				return LexemeID(wi*64 + bit), true
			}
		}
	}
	return 0, false
}

// Ids returns the sorted list of member lexeme ids.
func (s LexemeSet) Ids() []LexemeID {
	var out []LexemeID
	for wi, w := range s.words {
		for bit := 0; bit < 64; bit++ {
			if w&(1<<uint(bit)) != 0 {
				out = append(out, LexemeID(wi*64+bit))
			}
		}
	}
	return out
}

// Intersect returns the intersection of s and o.
func (s LexemeSet) Intersect(o LexemeSet) LexemeSet {
	n := len(s.words)
	if len(o.words) > n {
		n = len(o.words)
	}
	r := LexemeSet{words: make([]uint64, n)}
	for i := 0; i < n; i++ {
		var a, b uint64
		if i < len(s.words) {
			a = s.words[i]
		}
		if i < len(o.words) {
			b = o.words[i]
		}
		r.words[i] = a & b
	}
	return r
}

// Disjoint reports whether s and o share no members.
func (s LexemeSet) Disjoint(o LexemeSet) bool {
	return s.Intersect(o).Empty()
}

// State is one node of the RxDFA: a vector of per-lexeme derivative nodes,
// indexed in parallel with the owning DFA's lexeme list.
type State struct {
	id    StateID
	nodes []Node
}

// ID returns the state's id within its owning cache.
func (s *State) ID() StateID { return s.id }

// Desc summarizes a state for the lexer: which lexeme ids could still
// match some continuation, and which currently match (are nullable).
type Desc struct {
	Possible        LexemeSet
	AcceptingSubset LexemeSet
	LowestAccepting LexemeID
	HasLowestMatch  bool
}

// Describe computes the Desc for s.
func (s *State) Describe() Desc {
	d := Desc{
		Possible:        NewLexemeSet(len(s.nodes)),
		AcceptingSubset: NewLexemeSet(len(s.nodes)),
	}
	for i, n := range s.nodes {
		if n == Null {
			continue
		}
		d.Possible.Add(LexemeID(i))
		if n.nullable() {
			d.AcceptingSubset.Add(LexemeID(i))
		}
	}
	if id, ok := d.AcceptingSubset.Lowest(); ok {
		d.LowestAccepting = id
		d.HasLowestMatch = true
	}
	return d
}

// IsDead reports whether no lexeme can possibly match from this state.
func (s *State) IsDead() bool {
	for _, n := range s.nodes {
		if n != Null {
			return false
		}
	}
	return true
}

func (s *State) String() string {
	return fmt.Sprintf("State(id=%d, lexemes=%d)", s.id, len(s.nodes))
}

// key computes the canonicalization key used by the cache to deduplicate
// structurally-identical states.
func (s *State) key() string {
	key := ""
	for i, n := range s.nodes {
		if i > 0 {
			key += "\x00"
		}
		key += n.key()
	}
	return key
}
