package lexer

import "github.com/coregx/conform/rxdfa"

// PreLexeme is what Lexer.Advance hands back to the Earley recognizer when
// a lexeme boundary is reached (§4.2).
type PreLexeme struct {
	ID rxdfa.LexemeID
	// TrailingByte is the byte that triggered this boundary, set when that
	// byte belongs to the *next* row rather than this one (ByteNextRow).
	TrailingByte byte
	ByteNextRow  bool
	HiddenLen    int
}

// AdvanceKind tags the result of Lexer.Advance.
type AdvanceKind int

const (
	AdvanceState AdvanceKind = iota
	AdvanceLexeme
	AdvanceSpecialToken
	AdvanceError
)

// AdvanceResult is the tagged union spec.md §4.2 describes as
// {Lexeme(pre-lexeme), SpecialToken(state), State(state,byte), Error}.
type AdvanceResult struct {
	Kind    AdvanceKind
	State   rxdfa.StateID
	Lexeme  PreLexeme
	ResumeB byte // for AdvanceState: the byte that led to State
}

// Lexer drives one Spec's DFA for one parser row-stream. It owns a Cache
// (not shared across parsers, per §5) and tracks the allowed-first-byte
// bitmap for the lexeme set currently in scope.
type Lexer struct {
	Spec   *Spec
	Cache  *rxdfa.Cache
	Config rxdfa.Config

	allowedFirstByte map[string]rxdfa.ByteSet // keyed by allowed-set signature
}

// New creates a Lexer over spec with its own private cache.
func New(spec *Spec, cfg rxdfa.Config, maxStates int) *Lexer {
	return &Lexer{
		Spec:             spec,
		Cache:            rxdfa.NewCache(maxStates),
		Config:           cfg,
		allowedFirstByte: make(map[string]rxdfa.ByteSet),
	}
}

// StartState returns the initial lexer state for the given enabled lexeme
// set. The set's allowed-first-byte bitmap is not built here; Advance
// builds and caches it the first time it needs it.
func (l *Lexer) StartState(allowed rxdfa.LexemeSet) (rxdfa.StateID, error) {
	return l.Spec.DFA.InitialState(l.Cache, allowed)
}

func (l *Lexer) firstByteSet(allowed rxdfa.LexemeSet) (rxdfa.ByteSet, error) {
	key := lexemeSetKey(allowed)
	if set, ok := l.allowedFirstByte[key]; ok {
		return set, nil
	}
	set, err := l.Spec.AllowedFirstByte(l.Cache, allowed, l.Config)
	if err != nil {
		return rxdfa.ByteSet{}, err
	}
	l.allowedFirstByte[key] = set
	return set, nil
}

func lexemeSetKey(s rxdfa.LexemeSet) string {
	b := make([]byte, 0, 16)
	for _, id := range s.Ids() {
		b = append(b, byte(id), byte(id>>8))
	}
	return string(b)
}

// Advance implements spec.md §4.2's advance(prev, byte) state machine.
// allowed is the lexeme set enabled in the current recognizer context,
// needed only to answer "could another lexeme start on this byte" when
// prev turns out dead.
func (l *Lexer) Advance(prev rxdfa.StateID, b byte, allowed rxdfa.LexemeSet) AdvanceResult {
	next, err := l.Spec.DFA.Transition(l.Cache, prev, b, l.Config.StepFuel)
	if err != nil {
		return AdvanceResult{Kind: AdvanceError}
	}

	if next == rxdfa.DeadState {
		desc := l.Spec.DFA.StateDesc(l.Cache, prev)
		if !desc.HasLowestMatch {
			return AdvanceResult{Kind: AdvanceError}
		}
		firstSet, err := l.firstByteSet(allowed)
		if err != nil {
			return AdvanceResult{Kind: AdvanceError}
		}
		if !firstSet.Contains(b) {
			return AdvanceResult{Kind: AdvanceError}
		}
		pl := PreLexeme{
			ID:           desc.LowestAccepting,
			TrailingByte: b,
			ByteNextRow:  true,
			HiddenLen:    l.Spec.HiddenLen(desc.LowestAccepting),
		}
		return AdvanceResult{Kind: AdvanceLexeme, Lexeme: pl}
	}

	desc := l.Spec.DFA.StateDesc(l.Cache, next)
	if desc.HasLowestMatch {
		if l.Spec.HasSpecialToken(desc.Possible) {
			return AdvanceResult{Kind: AdvanceSpecialToken, State: next}
		}
		pl := PreLexeme{
			ID:        desc.LowestAccepting,
			HiddenLen: l.Spec.HiddenLen(desc.LowestAccepting),
		}
		return AdvanceResult{Kind: AdvanceLexeme, Lexeme: pl}
	}
	return AdvanceResult{Kind: AdvanceState, State: next, ResumeB: b}
}

// ForceLexemeEnd emits the lowest still-possible lexeme at end-of-input,
// even if it has not reached an accepting state (used when the grammar is
// known to be finished, e.g. the top-level start symbol has completed).
func (l *Lexer) ForceLexemeEnd(state rxdfa.StateID) (PreLexeme, bool) {
	desc := l.Spec.DFA.StateDesc(l.Cache, state)
	if id, ok := desc.Possible.Lowest(); ok {
		return PreLexeme{ID: id, HiddenLen: l.Spec.HiddenLen(id)}, true
	}
	return PreLexeme{}, false
}

// TryLexemeEnd emits the lowest accepting (nullable) lexeme at
// end-of-input, or false if none is currently accepting.
func (l *Lexer) TryLexemeEnd(state rxdfa.StateID) (PreLexeme, bool) {
	desc := l.Spec.DFA.StateDesc(l.Cache, state)
	if !desc.HasLowestMatch {
		return PreLexeme{}, false
	}
	return PreLexeme{ID: desc.LowestAccepting, HiddenLen: l.Spec.HiddenLen(desc.LowestAccepting)}, true
}

// CheckForSingleByteLexeme reports whether, had the DFA signalled
// ForcedEOI for the byte just consumed (ending the lexeme on that byte),
// the resulting state would also be accepting — i.e. the lexeme legally
// ends exactly here with no further bytes possible.
func (l *Lexer) CheckForSingleByteLexeme(state rxdfa.StateID) bool {
	nb, err := l.Spec.DFA.NextByte(l.Cache, state)
	if err != nil {
		return false
	}
	return nb.Kind == rxdfa.NextForcedEOI
}
