package grammar

import (
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/coregx/conform/ast"
	"github.com/coregx/conform/lexer"
	"github.com/coregx/conform/rxdfa"
)

// CGrammar is the compact, index-based representation spec.md §4.3 step 5
// describes: "a flat, index-based representation with per-symbol property
// tables," consumed by package earley. It is immutable once returned from
// Compile/CompileSet and shared by every parser built from it (§3's
// Ownership: "The compiled grammar and lexer spec are immutable once
// built and shared by all parsers created from the same grammar").
type CGrammar struct {
	Name        string
	Symbols     []Symbol
	Productions []Production
	Start       SymbolID
	Lexer       *lexer.Spec
	// MaxTokens is the TopLevelGrammar-level token budget, 0 meaning
	// unbounded (api.TopLevelGrammar.MaxTokens, §6).
	MaxTokens int
}

// CompiledSet is the result of compiling a TopLevelGrammar's full list of
// named grammars together, so `@name`/`@index` grammar-refs (§6) can be
// resolved against siblings compiled in the same pass.
type CompiledSet struct {
	Grammars []*CGrammar
	byName   map[string]int
}

// Resolve looks up a grammar-ref target by name first, falling back to a
// positional `@0`/`@1` index per spec.md §6's "`@name` or `@index`".
func (s *CompiledSet) Resolve(ref string) (*CGrammar, bool) {
	if i, ok := s.byName[ref]; ok {
		return s.Grammars[i], true
	}
	if n, err := strconv.Atoi(ref); err == nil && n >= 0 && n < len(s.Grammars) {
		return s.Grammars[n], true
	}
	return nil, false
}

// CompileSet elaborates, optimizes and compacts every tree in trees (in
// order; names[i] is trees[i]'s TopLevelGrammar entry name, "" if
// anonymous), producing one CGrammar per tree and wiring grammar-ref
// resolution between them. The first entry is conventionally the grammar
// a decode.Parser starts from.
func CompileSet(trees []*ast.Tree, names []string, lim Limits, cfg rxdfa.Config) (*CompiledSet, error) {
	if len(trees) == 0 {
		return nil, &Error{Kind: ErrUnknownName, Message: "no grammars to compile"}
	}
	set := &CompiledSet{byName: make(map[string]int, len(trees))}
	for i, name := range names {
		if name != "" {
			set.byName[name] = i
		}
	}

	for _, tree := range trees {
		g, err := Elaborate(tree, lim)
		if err != nil {
			return nil, err
		}
		lexRemap := optimize(g)
		_ = lexRemap // lexemes were already compacted in place by optimize
		cg := compact(g, lim, cfg)
		set.Grammars = append(set.Grammars, cg)
	}

	for gi, cg := range set.Grammars {
		for si, sym := range cg.Symbols {
			if sym.Kind != KindGrammarRef {
				continue
			}
			if _, ok := set.Resolve(sym.Ref); !ok {
				lim.logger().Warn("unresolved grammar-ref", zap.Int("grammar", gi), zap.String("ref", sym.Ref))
				return nil, &Error{
					Kind:    ErrUnknownName,
					Message: fmt.Sprintf("grammar %d: unresolved grammar-ref %q (symbol %d)", gi, sym.Ref, si),
				}
			}
		}
	}
	lim.logger().Debug("compiled grammar set", zap.Int("grammars", len(set.Grammars)))
	return set, nil
}

// compact builds the CGrammar and LexerSpec for one already-optimized
// Grammar. Lexeme classes are assigned in the grammar's own lexeme-id
// order, which is also lark source declaration order — satisfying §4.1's
// tie-break policy ("the one with the lowest id wins... mirrors 'keywords
// beat identifiers'"), since declaring keyword terminals before a generic
// identifier terminal is exactly how a lark grammar author gets that
// behavior.
func compact(g *Grammar, lim Limits, cfg rxdfa.Config) *CGrammar {
	ignoreSet := make(map[rxdfa.LexemeID]bool, len(g.IgnoreLexemes))
	for _, id := range g.IgnoreLexemes {
		ignoreSet[id] = true
	}

	// KindSpecialToken/KindTokenRange symbols carry no LexemeID at all:
	// they are matched at the token level by earley.Recognizer.ScanSymbol
	// and decode.Parser directly, never through the byte lexer.

	classes := make([]lexer.Class, len(g.Lexemes))
	roots := make([]rxdfa.Node, len(g.Lexemes))
	eos := rxdfa.NewLexemeSet(len(g.Lexemes))
	for i, node := range g.Lexemes {
		roots[i] = node
		classes[i] = lexer.Class{
			ID:         rxdfa.LexemeID(i),
			Contextual: !ignoreSet[rxdfa.LexemeID(i)],
		}
	}
	// Every ordinary lexeme can end the stream: EOS-acceptance is scoped
	// by the recognizer (only the start symbol completing matters), not
	// by the lexer, so the lexer reports every lexeme as EOS-eligible and
	// lets earley.Recognizer gate on is_accepting.
	for i := range g.Lexemes {
		eos.Add(rxdfa.LexemeID(i))
	}

	spec := lexer.NewSpec(classes, roots, eos, cfg)

	return &CGrammar{
		Name:        g.Name,
		Symbols:     g.Symbols,
		Productions: g.Productions,
		Start:       g.Start,
		Lexer:       spec,
	}
}
