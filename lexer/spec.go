// Package lexer wraps an rxdfa.DFA with the contextual policy described in
// spec.md §4.2: which lexeme ids are enabled in a given parser context, a
// fast first-byte filter, lookahead/hidden-suffix tracking, and
// tie-breaking among simultaneous matches.
package lexer

import "github.com/coregx/conform/rxdfa"

// Class describes one lexeme: its regex (already compiled into the DFA by
// index), whether it is only enabled in specific recognizer contexts, how
// many trailing bytes of its match are hidden from the model, and its
// priority in the tie-break ("lowest id wins", §4.1) order, which for
// simplicity is always the class's own id — grammar compilation assigns
// ids in the priority order it wants ("keywords beat identifiers" means
// compiling keyword lexemes first).
type Class struct {
	ID         rxdfa.LexemeID
	Name       string
	Contextual bool
	HiddenLen  int
	// Special marks a lexeme standing for a special/reserved token
	// (`<|name|>`) rather than ordinary text; state_desc's HasSpecialToken
	// flag is the OR of Special across a state's possible set.
	Special bool
}

// Spec is the compiled, immutable lexer definition shared by every parser
// built from one grammar (§3's LexerSpec).
type Spec struct {
	Classes      []Class
	EOSAccepting rxdfa.LexemeSet
	DFA          *rxdfa.DFA
}

// NewSpec builds a Spec from classes in id order; classes[i].ID must equal i.
func NewSpec(classes []Class, roots []rxdfa.Node, eosAccepting rxdfa.LexemeSet, cfg rxdfa.Config) *Spec {
	return &Spec{
		Classes:      classes,
		EOSAccepting: eosAccepting,
		DFA:          rxdfa.New(roots, cfg),
	}
}

// HiddenLen returns the declared hidden-suffix length for a lexeme id.
func (s *Spec) HiddenLen(id rxdfa.LexemeID) int {
	if int(id) < 0 || int(id) >= len(s.Classes) {
		return 0
	}
	return s.Classes[id].HiddenLen
}

// HasSpecialToken reports whether any lexeme id in the set is a
// reserved/special-token lexeme.
func (s *Spec) HasSpecialToken(ids rxdfa.LexemeSet) bool {
	for _, id := range ids.Ids() {
		if int(id) < len(s.Classes) && s.Classes[id].Special {
			return true
		}
	}
	return false
}

// AllowedFirstByte computes the 256-bit set of bytes that can start any
// lexeme in allowed, by deriving each enabled root by every byte value and
// keeping the ones that stay live. Building this once per contextual
// lexeme-set (there are usually few distinct ones per grammar) and caching
// it is what lets Lexer.Advance do an O(1) "could another lexeme even
// start here" check on the dead-state path instead of re-deriving.
func (s *Spec) AllowedFirstByte(cache *rxdfa.Cache, allowed rxdfa.LexemeSet, cfg rxdfa.Config) (rxdfa.ByteSet, error) {
	start, err := s.DFA.InitialState(cache, allowed)
	if err != nil {
		return rxdfa.ByteSet{}, err
	}
	var set rxdfa.ByteSet
	for b := 0; b < 256; b++ {
		next, err := s.DFA.Transition(cache, start, byte(b), cfg.StepFuel)
		if err != nil {
			return rxdfa.ByteSet{}, err
		}
		if next != rxdfa.DeadState {
			set.Add(byte(b))
		}
	}
	return set, nil
}
