package rxdfa

// NextByteKind classifies the result of DFA.NextByte.
type NextByteKind int

const (
	// NextDead means no byte can continue the match from this state.
	NextDead NextByteKind = iota
	// NextForcedEOI means only ending input here (no further byte) would
	// be accepted; the state is nullable for some lexeme and no byte
	// transitions to a live state.
	NextForcedEOI
	// NextSpecific means exactly one byte value continues the match.
	NextSpecific
	// NextSet means more than one byte value continues the match.
	NextSet
)

// NextByte is the tagged result of DFA.NextByte.
type NextByte struct {
	Kind NextByteKind
	Byte byte
	Set  ByteSet
}

// DFA is a regex-vector automaton over Lexemes, one root Node per lexeme
// id. It holds no mutable state itself; all memoization lives in the
// per-parser Cache passed to each operation, so one DFA (built once at
// grammar-compile time) can back many concurrently-running parsers.
type DFA struct {
	Lexemes []Node
	Config  Config
}

// New builds a DFA over the given per-lexeme root regex nodes.
func New(lexemes []Node, cfg Config) *DFA {
	return &DFA{Lexemes: lexemes, Config: cfg}
}

// InitialState returns the state id for the start of a scan in which only
// the lexemes in allowed are enabled; all others begin at Null and can
// never match, which is what lets contextual lexing ("this lexeme is only
// valid on the right-hand side of PLUS") fall naturally out of the same
// machinery used for the rest of the automaton.
func (d *DFA) InitialState(cache *Cache, allowed LexemeSet) (StateID, error) {
	nodes := make([]Node, len(d.Lexemes))
	for i, root := range d.Lexemes {
		if allowed.Contains(LexemeID(i)) {
			nodes[i] = root
		} else {
			nodes[i] = Null
		}
	}
	return cache.intern(nodes)
}

// Transition computes (and memoizes) the state reached from id by
// consuming byte b, under the given fuel budget.
func (d *DFA) Transition(cache *Cache, id StateID, b byte, fuel int) (next StateID, err error) {
	if id == DeadState {
		return DeadState, nil
	}
	if cached, ok := cache.cachedTransition(id, b); ok {
		return cached, nil
	}
	st := cache.get(id)
	if st == nil {
		return InvalidState, &Error{Kind: InvalidConfig, Message: "transition from unknown state"}
	}

	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(outOfFuel); ok {
				next, err = InvalidState, ErrTooComplex
				return
			}
			panic(r)
		}
	}()

	deriver := NewDeriver(fuel)
	newNodes := make([]Node, len(st.nodes))
	for i, n := range st.nodes {
		if n == Null {
			newNodes[i] = Null
			continue
		}
		newNodes[i] = deriver.Derive(n, b)
	}
	next, err = cache.intern(newNodes)
	if err != nil {
		return InvalidState, err
	}
	cache.storeTransition(id, b, next)
	return next, nil
}

// StateDesc returns the Desc for id (Dead states describe as empty/no
// accepting lexeme).
func (d *DFA) StateDesc(cache *Cache, id StateID) Desc {
	st := cache.get(id)
	if st == nil {
		return Desc{Possible: NewLexemeSet(len(d.Lexemes)), AcceptingSubset: NewLexemeSet(len(d.Lexemes))}
	}
	return st.Describe()
}

// LowestMatch returns the lowest-id matched lexeme at id, if any. The
// hidden-suffix length is looked up by the caller (lexer.Lexer) from the
// LexerSpec, since RxDFA itself has no notion of hidden suffixes — it
// only knows which lexemes are nullable.
func (d *DFA) LowestMatch(cache *Cache, id StateID) (LexemeID, bool) {
	desc := d.StateDesc(cache, id)
	return desc.LowestAccepting, desc.HasLowestMatch
}

// LimitStateTo returns the state reached by intersecting id's possible
// lexeme set with allowed, narrowing which lexeme ids could legally come
// next. Nothing in this module calls it.
func (d *DFA) LimitStateTo(cache *Cache, id StateID, allowed LexemeSet) (StateID, error) {
	st := cache.get(id)
	if st == nil {
		return DeadState, nil
	}
	nodes := make([]Node, len(st.nodes))
	for i, n := range st.nodes {
		if allowed.Contains(LexemeID(i)) {
			nodes[i] = n
		} else {
			nodes[i] = Null
		}
	}
	return cache.intern(nodes)
}

// NextByte classifies which bytes can continue the match at id.
//
// This tries every byte value through Transition; for an engine meant to
// drive LLM decoding (vocabularies are walked byte-by-byte against a
// trie with heavy reuse of cached transitions, see mask.Computer) this is
// cheap relative to the trie walk itself, unlike a general-purpose regex
// engine's hot loop where it would matter far more.
func (d *DFA) NextByte(cache *Cache, id StateID) (NextByte, error) {
	if id == DeadState {
		return NextByte{Kind: NextDead}, nil
	}
	var set ByteSet
	var only byte
	count := 0
	for b := 0; b < 256; b++ {
		next, err := d.Transition(cache, id, byte(b), d.Config.StepFuel)
		if err != nil {
			return NextByte{}, err
		}
		if next == DeadState {
			continue
		}
		set.Add(byte(b))
		only = byte(b)
		count++
	}
	desc := d.StateDesc(cache, id)
	switch {
	case count == 0 && desc.HasLowestMatch:
		return NextByte{Kind: NextForcedEOI}, nil
	case count == 0:
		return NextByte{Kind: NextDead}, nil
	case count == 1:
		return NextByte{Kind: NextSpecific, Byte: only}, nil
	default:
		return NextByte{Kind: NextSet, Set: set}, nil
	}
}

// CheckSubsume reports whether, from state id, lexeme class extra's
// language is entirely subsumed by some other still-possible lexeme
// class — i.e. every continuation that would complete extra also
// completes an earlier (lower-id, by tie-break policy) lexeme, i.e. extra
// could never win a tie-break. Nothing in this module calls it; the
// grammar optimizer does not use it. budget bounds exploration depth.
func (d *DFA) CheckSubsume(cache *Cache, id StateID, extra LexemeID, budget int) bool {
	return d.checkSubsume(cache, id, extra, budget, map[StateID]bool{})
}

func (d *DFA) checkSubsume(cache *Cache, id StateID, extra LexemeID, budget int, seen map[StateID]bool) bool {
	if budget <= 0 {
		return false
	}
	if seen[id] {
		return true
	}
	seen[id] = true
	desc := d.StateDesc(cache, id)
	if !desc.Possible.Contains(extra) {
		return true
	}
	if desc.AcceptingSubset.Contains(extra) {
		lower := false
		for _, other := range desc.AcceptingSubset.Ids() {
			if other < extra {
				lower = true
				break
			}
		}
		if !lower {
			return false
		}
	}
	for b := 0; b < 256; b++ {
		next, err := d.Transition(cache, id, byte(b), d.Config.StepFuel)
		if err != nil || next == DeadState {
			continue
		}
		if !d.checkSubsume(cache, next, extra, budget-1, seen) {
			return false
		}
	}
	return true
}

// PossibleLookaheadLen returns the maximum hidden-suffix length still
// reachable from id, given a map from lexeme id to its LexerSpec-declared
// hidden length. It walks reachable states up to maxDepth to bound work.
func (d *DFA) PossibleLookaheadLen(cache *Cache, id StateID, hiddenLen map[LexemeID]int, maxDepth int) int {
	best := 0
	desc := d.StateDesc(cache, id)
	for _, lx := range desc.Possible.Ids() {
		if h := hiddenLen[lx]; h > best {
			best = h
		}
	}
	if maxDepth <= 0 {
		return best
	}
	for b := 0; b < 256; b++ {
		next, err := d.Transition(cache, id, byte(b), d.Config.StepFuel)
		if err != nil || next == DeadState || next == id {
			continue
		}
		if v := d.PossibleLookaheadLen(cache, next, hiddenLen, maxDepth-1); v > best {
			best = v
		}
	}
	return best
}
