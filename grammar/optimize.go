package grammar

import "github.com/coregx/conform/rxdfa"

// optimize runs spec.md §4.3 step 4 over g in place: "dead-symbol
// elimination, singleton-alternative folding, stable renumbering."
//
// It mutates g's Symbols/Productions/Lexemes slices and returns a
// LexemeID remap (old id -> new id, or -1 if the lexeme was dropped) so
// the caller can prune the DFA's root-node vector in lockstep with it.
func optimize(g *Grammar) []int {
	foldSingletonAlternatives(g)
	return eliminateDeadSymbols(g)
}

// foldSingletonAlternatives repeatedly inlines a chain symbol S — one
// with exactly one production whose body is exactly one other symbol T,
// and no rule-level properties of its own that would be lost by skipping
// it (capture name, max_tokens, temperature, lazy/stop) — by rewriting
// every reference to S as a reference to T. The fixed point is bounded by
// len(g.Symbols) iterations, which always suffices: each successful fold
// strictly reduces the number of foldable symbols.
func foldSingletonAlternatives(g *Grammar) {
	for iter := 0; iter < len(g.Symbols); iter++ {
		changed := false
		for id := range g.Symbols {
			sym := &g.Symbols[id]
			if SymbolID(id) == g.Start || sym.Kind != KindNonterminal {
				continue
			}
			if hasOwnProps(sym.Props) || len(sym.Productions) != 1 {
				continue
			}
			body := g.Productions[sym.Productions[0]].Body
			if len(body) != 1 || body[0] == SymbolID(id) {
				continue
			}
			target := body[0]
			rewriteSymbolRefs(g, SymbolID(id), target)
			sym.Productions = nil
			changed = true
		}
		if !changed {
			break
		}
	}
}

func hasOwnProps(p Properties) bool {
	return p.HasCapture || p.HasMaxToken || p.HasTemp || p.Lazy || p.HasStop
}

// rewriteSymbolRefs replaces every occurrence of from with to across every
// production body in g (and g.Start, were it ever the folded symbol).
func rewriteSymbolRefs(g *Grammar, from, to SymbolID) {
	for i := range g.Productions {
		body := g.Productions[i].Body
		for j, s := range body {
			if s == from {
				body[j] = to
			}
		}
	}
	if g.Start == from {
		g.Start = to
	}
}

// eliminateDeadSymbols drops every symbol not reachable from g.Start via
// production bodies (grammar-refs, special tokens and token-ranges are
// leaves with no body to recurse into) and renumbers the survivors
// stably, preserving their relative order. It also compacts g.Lexemes to
// only the lexemes survivors (plus %ignore lexemes, always kept) still
// reference, returning the old-id -> new-id LexemeID remap (-1 for
// dropped entries) so the caller can reindex the DFA's root-node vector.
func eliminateDeadSymbols(g *Grammar) []int {
	reachable := make([]bool, len(g.Symbols))
	var walk func(id SymbolID)
	walk = func(id SymbolID) {
		if reachable[id] {
			return
		}
		reachable[id] = true
		for _, pid := range g.Symbols[id].Productions {
			for _, s := range g.Productions[pid].Body {
				walk(s)
			}
		}
	}
	walk(g.Start)

	remap := make([]SymbolID, len(g.Symbols))
	newSymbols := make([]Symbol, 0, len(g.Symbols))
	for old, keep := range reachable {
		if !keep {
			continue
		}
		remap[old] = SymbolID(len(newSymbols))
		newSymbols = append(newSymbols, g.Symbols[old])
	}

	prodRemap := make([]ProductionID, len(g.Productions))
	newProductions := make([]Production, 0, len(g.Productions))
	for old := range g.Productions {
		p := g.Productions[old]
		if !reachable[p.Head] {
			prodRemap[old] = -1
			continue
		}
		p.ID = ProductionID(len(newProductions))
		p.Head = remap[p.Head]
		body := make([]SymbolID, len(p.Body))
		for i, s := range p.Body {
			body[i] = remap[s]
		}
		p.Body = body
		prodRemap[old] = p.ID
		newProductions = append(newProductions, p)
	}

	lexUsed := make([]bool, len(g.Lexemes))
	for _, id := range g.IgnoreLexemes {
		lexUsed[id] = true
	}
	for i := range newSymbols {
		s := &newSymbols[i]
		s.ID = SymbolID(i)
		newProds := make([]ProductionID, 0, len(s.Productions))
		for _, pid := range s.Productions {
			if np := prodRemap[pid]; np >= 0 {
				newProds = append(newProds, np)
			}
		}
		s.Productions = newProds
		if s.Kind == KindTerminal || s.Kind == KindGen {
			lexUsed[s.LexemeID] = true
		}
	}

	lexRemap := make([]int, len(g.Lexemes))
	newLexemes := make([]rxdfa.Node, 0, len(g.Lexemes))
	for old, used := range lexUsed {
		if !used {
			lexRemap[old] = -1
			continue
		}
		lexRemap[old] = len(newLexemes)
		newLexemes = append(newLexemes, g.Lexemes[old])
	}
	for i := range newSymbols {
		s := &newSymbols[i]
		if s.Kind == KindTerminal || s.Kind == KindGen {
			s.LexemeID = rxdfa.LexemeID(lexRemap[s.LexemeID])
		}
	}
	newIgnore := make([]rxdfa.LexemeID, len(g.IgnoreLexemes))
	for i, id := range g.IgnoreLexemes {
		newIgnore[i] = rxdfa.LexemeID(lexRemap[id])
	}

	g.Symbols = newSymbols
	g.Productions = newProductions
	g.Lexemes = newLexemes
	g.IgnoreLexemes = newIgnore
	g.Start = remap[g.Start]
	g.byName = nil // names are no longer meaningful after renumbering

	return lexRemap
}
