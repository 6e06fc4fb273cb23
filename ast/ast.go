// Package ast is the surface-neutral grammar description produced by a
// surface collaborator (surface/lark or surface/jsonschema) and consumed
// by package grammar's elaborator, per spec.md §6's "LarkSurfaceParser:
// source → AST" / "JSON-Schema compiler: schema → TopLevelGrammar"
// interfaces.
//
// It lives in its own package, rather than inside package grammar, purely
// to break an import cycle: grammar/elaborate.go calls into
// surface/jsonschema to expand inline `%json {...}` elements (spec.md
// §4.3 step 2), and surface/jsonschema needs these same types to build
// its translated AST — so neither grammar nor surface/jsonschema can own
// them.
package ast

// Tree is one grammar's surface-neutral description.
type Tree struct {
	Name    string
	Rules   []RuleDecl
	Ignore  []string // %ignore regex sources
	Options map[string]any
}

// RuleDecl is one named rule or terminal definition.
type RuleDecl struct {
	Name       string
	IsTerminal bool // UPPERCASE name
	Attrs      RuleAttrs
	Alts       []AltDecl
}

// RuleAttrs carries the raw, uncompiled form of the per-rule attribute
// bracket spec.md §6 describes: `name[attr=val,...]: …`.
type RuleAttrs struct {
	Capture     string
	HasCapture  bool
	MaxTokens   int
	HasMaxToken bool
	Temperature float64
	HasTemp     bool
	Lazy        bool

	StopSrc     string
	HasStop     bool
	StopCapture string
	IsSuffix    bool
}

// AltDecl is one alternative right-hand side: a sequence of elements.
type AltDecl struct {
	Elems []ElemDecl
}

// ElemKind tags one grammar-surface element.
type ElemKind uint8

const (
	ElemRuleRef ElemKind = iota
	ElemLiteral
	ElemRegex
	ElemGrammarRef
	ElemSpecialToken
	ElemTokenRange
	ElemGroup
	ElemJSON
	ElemSubstring
	ElemLiteralRange
	ElemAnyRune // lark `.`
)

// ElemDecl is one element of an AltDecl's body. Min/Max fold in the
// repetition operators (`?`, `*`, `+`, `{m,n}`); Max == -1 means
// unbounded; the default is Min == Max == 1 (no repetition).
type ElemDecl struct {
	Kind ElemKind

	Name       string // ElemRuleRef / ElemGrammarRef
	Literal    string // ElemLiteral
	RegexSrc   string // ElemRegex
	RegexFlags string
	LitRangeLo byte // ElemLiteralRange: "a".."z"
	LitRangeHi byte

	TokenRanges [][2]int // ElemTokenRange

	Group []AltDecl // ElemGroup: nested alternation

	JSONSchema any // ElemJSON: parsed schema value

	SubstrKind   string // "words" | "chars" | "chunks"
	SubstrChunks []string
	SubstrSep    string

	Min, Max int
}
