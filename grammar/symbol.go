// Package grammar implements spec.md §4.3: symbols, productions, the
// grammar optimizer, and the compiler down to CGrammar, the compact
// index-based representation the Earley recognizer consumes.
package grammar

import "github.com/coregx/conform/rxdfa"

// SymbolID indexes a Symbol within one Grammar's flat Symbols slice. Using
// a plain integer id instead of a pointer is what lets cyclic (direct and
// indirect recursive) rule references become ordinary slice indexing, per
// the design note in spec.md §9 — no owning-pointer cycle ever exists.
type SymbolID int

// SymbolKind tags which of the node shapes spec.md §9 calls out a Symbol
// is. The recognizer branches on this tag in its inner loop instead of
// using interface dispatch (also per §9).
type SymbolKind uint8

const (
	// KindPlaceholder marks a forward reference not yet patched; it is
	// never observed after CompileSet succeeds.
	KindPlaceholder SymbolKind = iota
	// KindTerminal is an ordinary lexeme reference.
	KindTerminal
	// KindNonterminal is a rule with one or more Productions.
	KindNonterminal
	// KindGrammarRef is `@name`/`@index`: "parse according to another
	// named grammar, then return" (subgrammar descent, §4.4).
	KindGrammarRef
	// KindGen is a `gen` rule: body_rx/stop_rx with lazy/greedy and
	// suffix/capture semantics (§4.3's "Stop/suffix semantics").
	KindGen
	// KindSpecialToken is `<|name|>`, an atomic reference to one
	// out-of-vocabulary-text token the decoder's TokEnv knows by name.
	KindSpecialToken
	// KindTokenRange is `<[a-b,...]>`, accepting exactly model token ids
	// in the given ranges, atomically (never decomposed byte-wise).
	KindTokenRange
)

// Properties carries the per-rule attributes spec.md §6 lists for the
// lark surface's `name[attr=val,...]: …` syntax: capture, max_tokens,
// temperature, lazy/greedy, stop/suffix/stop_capture.
type Properties struct {
	Capture     string
	HasCapture  bool
	MaxTokens   int
	HasMaxToken bool
	Temperature float64
	HasTemp     bool
	Lazy        bool

	// BodyRx, StopRx, StopCapture and IsSuffix only apply to KindGen
	// symbols. BodyRx is kept (in addition to being folded into the
	// compiled lexeme as Concat(BodyRx, StopRx)) so earley/gen.go can
	// replay a completed match's raw bytes against each independently to
	// find the body/stop split point.
	BodyRx      rxdfa.Node
	StopRx      rxdfa.Node
	HasStop     bool
	StopCapture string
	IsSuffix    bool
}

// Symbol is one node of the grammar graph, addressed everywhere else by
// SymbolID.
type Symbol struct {
	ID   SymbolID
	Name string
	Kind SymbolKind

	// Productions holds the alternative right-hand sides for a
	// KindNonterminal symbol.
	Productions []ProductionID

	// LexemeID is valid for KindTerminal and KindGen: the lexeme this
	// symbol scans as.
	LexemeID rxdfa.LexemeID

	// Ref names the TopLevelGrammar entry a KindGrammarRef symbol
	// descends into, or the reserved token name a KindSpecialToken
	// symbol stands for (`<|name|>`) — resolved against the decoder's
	// TokEnv at run time, never against a byte-level lexeme.
	Ref string

	// TokenRanges is valid for KindTokenRange: inclusive [lo, hi] pairs
	// of raw vocabulary token ids.
	TokenRanges [][2]int

	Props Properties
}

// ProductionID indexes a Production within one Grammar's flat slice.
type ProductionID int

// Production is one alternative right-hand side: a sequence of symbol
// references. An empty Body is an epsilon production.
type Production struct {
	ID   ProductionID
	Head SymbolID
	Body []SymbolID
}
