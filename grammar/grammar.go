package grammar

import (
	"fmt"

	"github.com/coregx/conform/rxdfa"
)

// Grammar is the mutable, in-progress representation built during
// elaboration (grammar/elaborate.go) and consumed by the optimizer
// (grammar/optimize.go) before being compacted into a CGrammar
// (grammar/compile.go). Elaborate returns a *Grammar; CompileSet returns
// only the compacted, immutable CGrammars.
type Grammar struct {
	Name        string
	Symbols     []Symbol
	Productions []Production
	Start       SymbolID

	// Lexemes is indexed by rxdfa.LexemeID: every terminal/gen regex and
	// every %ignore regex compiled during elaboration, in allocation
	// order. compact (grammar/compile.go) builds the LexerSpec's DFA from
	// this slice.
	Lexemes []rxdfa.Node

	// IgnoreLexemes holds the LexemeIDs contributed by %ignore sources
	// (as opposed to named terminals/gen rules), so the lexer can mark
	// their lexer.Class as a non-capturing, always-enabled skip lexeme.
	IgnoreLexemes []rxdfa.LexemeID

	byName map[string]SymbolID
}

func newGrammar(name string) *Grammar {
	return &Grammar{Name: name, byName: make(map[string]SymbolID)}
}

// placeholder allocates (or returns an existing) SymbolID for name,
// without yet knowing its Kind — the forward-reference mechanism spec.md
// §9 describes: "Placeholder ids are allocated on first reference and
// later patched, avoiding any owning-pointer cycle."
func (g *Grammar) placeholder(name string) SymbolID {
	if id, ok := g.byName[name]; ok {
		return id
	}
	id := SymbolID(len(g.Symbols))
	g.Symbols = append(g.Symbols, Symbol{ID: id, Name: name, Kind: KindPlaceholder})
	g.byName[name] = id
	return id
}

// define patches a placeholder (or allocates a fresh symbol if name was
// never referenced) with a fully-known Symbol value. ID and Name are
// preserved from the placeholder.
func (g *Grammar) define(name string, sym Symbol) SymbolID {
	id := g.placeholder(name)
	sym.ID = id
	sym.Name = name
	g.Symbols[id] = sym
	return id
}

// newAnonSymbol allocates an anonymous (unnamed) symbol of the given kind, used
// for inline literals/regexes/gen-rules that have no rule name of their
// own (e.g. a bare `"foo"` inside an alternative).
func (g *Grammar) newAnonSymbol(kind SymbolKind) SymbolID {
	id := SymbolID(len(g.Symbols))
	name := fmt.Sprintf("__anon%d", id)
	g.Symbols = append(g.Symbols, Symbol{ID: id, Name: name, Kind: kind})
	g.byName[name] = id
	return id
}

func (g *Grammar) addProduction(head SymbolID, body []SymbolID) ProductionID {
	id := ProductionID(len(g.Productions))
	g.Productions = append(g.Productions, Production{ID: id, Head: head, Body: body})
	g.Symbols[head].Productions = append(g.Symbols[head].Productions, id)
	return id
}

// unresolved returns the names of any symbols still at KindPlaceholder
// after elaboration — these are references to rules that were never
// defined.
func (g *Grammar) unresolved() []string {
	var names []string
	for _, s := range g.Symbols {
		if s.Kind == KindPlaceholder {
			names = append(names, s.Name)
		}
	}
	return names
}
