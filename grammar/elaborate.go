package grammar

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/coregx/conform/ast"
	"github.com/coregx/conform/rxdfa"
	"github.com/coregx/conform/surface/jsonschema"
)

// Elaborate turns one surface-neutral ast.Tree into a *Grammar (spec.md
// §4.3 step 2): it expands repetition ranges into bounded alternatives,
// compiles %json schemas into productions, builds substring nodes for
// %regex { substring_* }, and turns special-token references and token-id
// ranges into atomic terminals. It does not inline imports: surface/lark
// drops %import lines before a tree gets here.
//
// Cross-grammar `@name`/`@index` references are left as KindGrammarRef
// placeholders pointing at Ref; resolving them against a set of sibling
// TopLevelGrammar entries is compile.go's job, not this one's.
func Elaborate(tree *ast.Tree, lim Limits) (*Grammar, error) {
	if len(tree.Rules) == 0 {
		return nil, &Error{Kind: ErrUnknownName, Message: "empty grammar: no rules declared", Location: Location{Grammar: tree.Name}}
	}

	e := &elaborator{g: newGrammar(tree.Name), lim: lim, termDecls: map[string]ast.RuleDecl{}}

	for _, r := range tree.Rules {
		if _, dup := e.g.byName[r.Name]; dup {
			return nil, &Error{Kind: ErrDuplicateSymbol, Message: fmt.Sprintf("duplicate rule %q", r.Name)}
		}
		e.g.placeholder(r.Name)
		if r.IsTerminal {
			e.termDecls[r.Name] = r
		}
	}

	for _, src := range tree.Ignore {
		node, err := compileRegexSource(src)
		if err != nil {
			return nil, &Error{Kind: ErrInvalidRegex, Message: err.Error()}
		}
		id := e.addLexeme(node)
		e.g.IgnoreLexemes = append(e.g.IgnoreLexemes, id)
	}

	for _, r := range tree.Rules {
		if err := e.elaborateRule(r); err != nil {
			return nil, err
		}
	}

	if names := e.g.unresolved(); len(names) > 0 {
		return nil, &Error{Kind: ErrUnknownName, Message: fmt.Sprintf("unknown name %q", names[0])}
	}

	if start, ok := tree.Options["start"].(string); ok {
		id, ok := e.g.byName[start]
		if !ok {
			return nil, &Error{Kind: ErrUnknownName, Message: fmt.Sprintf("unknown start rule %q", start)}
		}
		e.g.Start = id
	} else if len(tree.Rules) > 0 {
		e.g.Start = e.g.byName[tree.Rules[0].Name]
	}

	if e.lim.MaxGrammarSize > 0 && len(e.g.Symbols) > e.lim.MaxGrammarSize {
		lim.logger().Warn("grammar exceeds max size",
			zap.String("grammar", tree.Name),
			zap.Int("symbols", len(e.g.Symbols)),
			zap.Int("limit", e.lim.MaxGrammarSize))
		return nil, &Error{Kind: ErrGrammarTooLarge, Message: fmt.Sprintf("grammar has %d symbols, limit %d", len(e.g.Symbols), e.lim.MaxGrammarSize)}
	}

	lim.logger().Debug("elaborated grammar",
		zap.String("grammar", tree.Name),
		zap.Int("symbols", len(e.g.Symbols)),
		zap.Int("lexemes", len(e.g.Lexemes)))
	return e.g, nil
}

type elaborator struct {
	g         *Grammar
	lim       Limits
	termDecls map[string]ast.RuleDecl
}

func (e *elaborator) addLexeme(n rxdfa.Node) rxdfa.LexemeID {
	id := rxdfa.LexemeID(len(e.g.Lexemes))
	e.g.Lexemes = append(e.g.Lexemes, n)
	return id
}

func (e *elaborator) newAnonTerminal(n rxdfa.Node) SymbolID {
	id := e.g.newAnonSymbol(KindTerminal)
	lex := e.addLexeme(n)
	sym := e.g.Symbols[id]
	sym.LexemeID = lex
	e.g.Symbols[id] = sym
	return id
}

func (e *elaborator) elaborateRule(r ast.RuleDecl) error {
	if r.IsTerminal {
		return e.elaborateTerminalRule(r)
	}
	if isGenRule(r) {
		return e.elaborateGenRule(r)
	}

	props, err := e.compileProps(r.Attrs)
	if err != nil {
		return err
	}
	e.g.define(r.Name, Symbol{Kind: KindNonterminal, Props: props})

	for _, alt := range r.Alts {
		body, err := e.elaborateAltBody(alt.Elems)
		if err != nil {
			return err
		}
		e.g.addProduction(e.g.byName[r.Name], body)
	}
	return nil
}

// isGenRule recognizes spec.md §4.3's "gen" shape: a lowercase rule whose
// entire body is a single bare regex element, e.g. `text[stop=","]: /.+/`
// from scenario 6 in §8.
func isGenRule(r ast.RuleDecl) bool {
	if r.IsTerminal || len(r.Alts) != 1 || len(r.Alts[0].Elems) != 1 {
		return false
	}
	elem := r.Alts[0].Elems[0]
	return elem.Kind == ast.ElemRegex && elem.Min == 1 && elem.Max == 1
}

func (e *elaborator) elaborateGenRule(r ast.RuleDecl) error {
	bodySrc := r.Alts[0].Elems[0].RegexSrc
	bodyNode, err := compileRegexSource(bodySrc)
	if err != nil {
		return &Error{Kind: ErrInvalidRegex, Message: err.Error(), Location: Location{Grammar: e.g.Name}}
	}
	props, err := e.compileProps(r.Attrs)
	if err != nil {
		return err
	}
	if !r.Attrs.HasStop {
		// Empty stop_rx means "stop at end-of-sentence" (spec.md §4.3).
		props.StopRx = rxdfa.Empty
	}
	props.BodyRx = bodyNode
	// The lexeme the multiplexed DFA actually scans is body followed by
	// stop: ConcatNode's derivative rule (rxdfa/derivative.go) already
	// tracks "still in body" and "now matching stop" as parallel branches
	// via Union, which is exactly the ambiguity a gen rule needs — no
	// bespoke two-automaton race is required. earley/gen.go replays the
	// consumed bytes against BodyRx/StopRx independently to recover where
	// the split actually fell (needed for hidden-suffix/capture bytes).
	lex := e.addLexeme(rxdfa.Concat(bodyNode, props.StopRx))
	e.g.define(r.Name, Symbol{Kind: KindGen, LexemeID: lex, Props: props})
	return nil
}

func (e *elaborator) compileProps(a ast.RuleAttrs) (Properties, error) {
	p := Properties{
		Capture:     a.Capture,
		HasCapture:  a.HasCapture,
		MaxTokens:   a.MaxTokens,
		HasMaxToken: a.HasMaxToken,
		Temperature: a.Temperature,
		HasTemp:     a.HasTemp,
		Lazy:        a.Lazy,
		HasStop:     a.HasStop,
		StopCapture: a.StopCapture,
		IsSuffix:    a.IsSuffix,
	}
	if a.HasStop {
		node, err := compileRegexSource(a.StopSrc)
		if err != nil {
			return Properties{}, &Error{Kind: ErrInvalidRegex, Message: err.Error(), Location: Location{Grammar: e.g.Name}}
		}
		p.StopRx = node
	}
	return p, nil
}

// elaborateAltBody turns one alternative's element sequence into a
// production body: each element becomes one SymbolID, with repetition
// operators expanded into a wrapping anonymous nonterminal (spec.md §4.3
// step 2's "expand repetition ranges into bounded unions", done
// structurally here rather than at the regex level because a nonterminal
// position's element may itself be a nonterminal).
func (e *elaborator) elaborateAltBody(elems []ast.ElemDecl) ([]SymbolID, error) {
	body := make([]SymbolID, 0, len(elems))
	for _, el := range elems {
		sym, err := e.elaborateElem(el)
		if err != nil {
			return nil, err
		}
		body = append(body, e.expandRepeat(sym, el.Min, el.Max))
	}
	return body, nil
}

func (e *elaborator) elaborateElem(el ast.ElemDecl) (SymbolID, error) {
	switch el.Kind {
	case ast.ElemRuleRef:
		return e.g.placeholder(el.Name), nil
	case ast.ElemLiteral:
		return e.newAnonTerminal(literalNode(el.Literal)), nil
	case ast.ElemRegex:
		node, err := compileRegexSource(el.RegexSrc)
		if err != nil {
			return 0, &Error{Kind: ErrInvalidRegex, Message: err.Error(), Location: Location{Grammar: e.g.Name}}
		}
		return e.newAnonTerminal(node), nil
	case ast.ElemLiteralRange:
		if el.LitRangeLo > el.LitRangeHi {
			return 0, &Error{Kind: ErrRangeInversion, Message: fmt.Sprintf("range %q..%q is inverted", el.LitRangeLo, el.LitRangeHi)}
		}
		return e.newAnonTerminal(rxdfa.ByteNode{Set: rxdfa.ByteRange(el.LitRangeLo, el.LitRangeHi)}), nil
	case ast.ElemAnyRune:
		return e.newAnonTerminal(dotAnyRune()), nil
	case ast.ElemSubstring:
		node, err := e.substringNode(el)
		if err != nil {
			return 0, err
		}
		return e.newAnonTerminal(node), nil
	case ast.ElemGrammarRef:
		id := e.g.newAnonSymbol(KindGrammarRef)
		sym := e.g.Symbols[id]
		sym.Ref = el.Name
		e.g.Symbols[id] = sym
		return id, nil
	case ast.ElemSpecialToken:
		id := e.g.newAnonSymbol(KindSpecialToken)
		sym := e.g.Symbols[id]
		sym.Ref = el.Name
		e.g.Symbols[id] = sym
		return id, nil
	case ast.ElemTokenRange:
		for _, rng := range el.TokenRanges {
			if rng[0] > rng[1] {
				return 0, &Error{Kind: ErrInvalidTokenRange, Message: fmt.Sprintf("token range [%d,%d] is inverted", rng[0], rng[1])}
			}
		}
		id := e.g.newAnonSymbol(KindTokenRange)
		sym := e.g.Symbols[id]
		sym.TokenRanges = el.TokenRanges
		e.g.Symbols[id] = sym
		return id, nil
	case ast.ElemGroup:
		id := e.g.newAnonSymbol(KindNonterminal)
		for _, alt := range el.Group {
			body, err := e.elaborateAltBody(alt.Elems)
			if err != nil {
				return 0, err
			}
			e.g.addProduction(id, body)
		}
		return id, nil
	case ast.ElemJSON:
		return e.spliceJSON(el)
	default:
		return 0, &Error{Kind: ErrDisallowedConstruct, Message: fmt.Sprintf("unknown element kind %d", el.Kind)}
	}
}

// spliceJSON expands an inline `%json {...}` element (spec.md §4.3 step 2)
// by translating the schema into its own ast.Tree via surface/jsonschema,
// then merging that tree's rules into this grammar under name-prefixed
// identifiers so they cannot collide with the enclosing grammar's names.
func (e *elaborator) spliceJSON(el ast.ElemDecl) (SymbolID, error) {
	sub, err := jsonschema.Translate(el.JSONSchema)
	if err != nil {
		return 0, &Error{Kind: ErrUnsatisfiableSchema, Message: err.Error(), Location: Location{Grammar: e.g.Name}}
	}
	prefix := fmt.Sprintf("__json%d_", len(e.g.Symbols))
	rename := func(name string) string { return prefix + name }

	for _, r := range sub.Rules {
		e.g.placeholder(rename(r.Name))
	}
	for _, r := range sub.Rules {
		renamed := renameRule(r, rename)
		if err := e.elaborateRule(renamed); err != nil {
			return 0, err
		}
	}
	startName, ok := sub.Options["start"].(string)
	if !ok {
		if len(sub.Rules) == 0 {
			return 0, &Error{Kind: ErrUnsatisfiableSchema, Message: "json schema translated to no rules"}
		}
		startName = sub.Rules[0].Name
	}
	return e.g.byName[rename(startName)], nil
}

// renameRule rewrites every rule-reference name inside r through rename,
// without touching literals, regex sources, grammar-refs or special-token
// names (those are not names local to the spliced schema's namespace).
func renameRule(r ast.RuleDecl, rename func(string) string) ast.RuleDecl {
	out := r
	out.Name = rename(r.Name)
	out.Alts = make([]ast.AltDecl, len(r.Alts))
	for i, alt := range r.Alts {
		out.Alts[i] = renameAlt(alt, rename)
	}
	return out
}

func renameAlt(a ast.AltDecl, rename func(string) string) ast.AltDecl {
	out := ast.AltDecl{Elems: make([]ast.ElemDecl, len(a.Elems))}
	for i, el := range a.Elems {
		e := el
		if e.Kind == ast.ElemRuleRef {
			e.Name = rename(e.Name)
		}
		if e.Kind == ast.ElemGroup {
			e.Group = make([]ast.AltDecl, len(el.Group))
			for j, sub := range el.Group {
				e.Group[j] = renameAlt(sub, rename)
			}
		}
		out.Elems[i] = e
	}
	return out
}

// literalNode builds the node matching exactly the byte sequence s.
func literalNode(s string) rxdfa.Node {
	node := rxdfa.Node(rxdfa.Empty)
	for i := 0; i < len(s); i++ {
		node = rxdfa.Concat(node, rxdfa.ByteNode{Set: rxdfa.NewByteSet(s[i])})
	}
	return node
}

func (e *elaborator) substringNode(el ast.ElemDecl) (rxdfa.Node, error) {
	chunks := make([][]byte, len(el.SubstrChunks))
	for i, c := range el.SubstrChunks {
		chunks[i] = []byte(c)
	}
	m, err := rxdfa.NewSubstringMatcher(chunks, []byte(el.SubstrSep))
	if err != nil {
		return nil, &Error{Kind: ErrInvalidRegex, Message: err.Error()}
	}
	if ambiguous := m.AmbiguousChunks(); len(ambiguous) > 0 {
		e.lim.logger().Warn("substring lexeme has chunks that also occur inside a longer chunk",
			zap.String("grammar", e.g.Name),
			zap.Ints("ambiguous_chunk_indices", ambiguous))
	}
	return m.Start(), nil
}

// expandRepeat wraps sym in an anonymous nonterminal expressing min..max
// repetitions (max == -1 meaning unbounded), the grammar-level analogue of
// regexsrc.go's repeatBounded. min == max == 1 is a no-op.
func (e *elaborator) expandRepeat(sym SymbolID, min, max int) SymbolID {
	if min == 1 && max == 1 {
		return sym
	}
	head := e.g.newAnonSymbol(KindNonterminal)
	body := make([]SymbolID, 0, min+1)
	for i := 0; i < min; i++ {
		body = append(body, sym)
	}
	switch {
	case max < 0:
		body = append(body, e.starTail(sym))
	case max > min:
		body = append(body, e.optChain(sym, max-min))
	}
	e.g.addProduction(head, body)
	return head
}

// starTail builds `R -> ε | sym R`, i.e. zero-or-more trailing repetitions.
func (e *elaborator) starTail(sym SymbolID) SymbolID {
	tail := e.g.newAnonSymbol(KindNonterminal)
	e.g.addProduction(tail, nil)
	e.g.addProduction(tail, []SymbolID{sym, tail})
	return tail
}

// optChain builds a chain of n nested optional trailing repetitions:
// `R_n -> ε | sym R_{n-1}`, ..., `R_1 -> ε | sym`.
func (e *elaborator) optChain(sym SymbolID, n int) SymbolID {
	head := e.g.newAnonSymbol(KindNonterminal)
	e.g.addProduction(head, nil)
	if n == 1 {
		e.g.addProduction(head, []SymbolID{sym})
		return head
	}
	next := e.optChain(sym, n-1)
	e.g.addProduction(head, []SymbolID{sym, next})
	return head
}

// elaborateTerminalRule compiles an UPPERCASE rule into a single lexeme
// regex, disallowing any construct spec.md §7 calls out as "disallowed
// construct in terminal position" (grammar-ref, special-token, token-range,
// %json, or any other nonterminal-only element).
func (e *elaborator) elaborateTerminalRule(r ast.RuleDecl) error {
	if sym, ok := e.g.byName[r.Name]; ok && e.g.Symbols[sym].Kind == KindTerminal {
		return nil // already compiled via a forward reference from another terminal
	}
	node, err := e.compileTerminalAlts(r.Name, r.Alts, map[string]bool{r.Name: true})
	if err != nil {
		return err
	}
	lex := e.addLexeme(node)
	e.g.define(r.Name, Symbol{Kind: KindTerminal, LexemeID: lex})
	return nil
}

func (e *elaborator) compileTerminalAlts(owner string, alts []ast.AltDecl, visiting map[string]bool) (rxdfa.Node, error) {
	parts := make([]rxdfa.Node, 0, len(alts))
	for _, alt := range alts {
		node := rxdfa.Node(rxdfa.Empty)
		for _, el := range alt.Elems {
			part, err := e.compileTerminalElem(owner, el, visiting)
			if err != nil {
				return nil, err
			}
			node = rxdfa.Concat(node, part)
		}
		parts = append(parts, node)
	}
	return rxdfa.Union(parts...), nil
}

func (e *elaborator) compileTerminalElem(owner string, el ast.ElemDecl, visiting map[string]bool) (rxdfa.Node, error) {
	var node rxdfa.Node
	switch el.Kind {
	case ast.ElemLiteral:
		node = literalNode(el.Literal)
	case ast.ElemRegex:
		n, err := compileRegexSource(el.RegexSrc)
		if err != nil {
			return nil, &Error{Kind: ErrInvalidRegex, Message: err.Error(), Location: Location{Grammar: e.g.Name}}
		}
		node = n
	case ast.ElemLiteralRange:
		if el.LitRangeLo > el.LitRangeHi {
			return nil, &Error{Kind: ErrRangeInversion, Message: fmt.Sprintf("range %q..%q is inverted", el.LitRangeLo, el.LitRangeHi)}
		}
		node = rxdfa.ByteNode{Set: rxdfa.ByteRange(el.LitRangeLo, el.LitRangeHi)}
	case ast.ElemAnyRune:
		node = dotAnyRune()
	case ast.ElemSubstring:
		n, err := e.substringNode(el)
		if err != nil {
			return nil, err
		}
		node = n
	case ast.ElemRuleRef:
		n, err := e.resolveTerminalRef(owner, el.Name, visiting)
		if err != nil {
			return nil, err
		}
		node = n
	case ast.ElemGroup:
		n, err := e.compileTerminalAlts(owner, el.Group, visiting)
		if err != nil {
			return nil, err
		}
		node = n
	default:
		return nil, &Error{
			Kind:     ErrDisallowedConstruct,
			Message:  fmt.Sprintf("construct not allowed inside terminal %q", owner),
			Location: Location{Grammar: e.g.Name},
		}
	}
	return repeatBounded(node, el.Min, el.Max), nil
}

// resolveTerminalRef compiles the referenced terminal rule's regex inline
// (terminals may compose other terminals by name, in any declaration
// order), detecting cycles as ErrCircularTerminal.
func (e *elaborator) resolveTerminalRef(owner, name string, visiting map[string]bool) (rxdfa.Node, error) {
	id, ok := e.g.byName[name]
	if !ok {
		return nil, &Error{Kind: ErrUnknownName, Message: fmt.Sprintf("unknown terminal %q referenced from %q", name, owner)}
	}
	sym := e.g.Symbols[id]
	if sym.Kind == KindTerminal {
		return e.g.Lexemes[sym.LexemeID], nil
	}
	decl, isTerm := e.termDecls[name]
	if sym.Kind != KindPlaceholder || !isTerm {
		return nil, &Error{
			Kind:     ErrDisallowedConstruct,
			Message:  fmt.Sprintf("terminal %q cannot reference nonterminal %q", owner, name),
			Location: Location{Grammar: e.g.Name},
		}
	}
	if visiting[name] {
		return nil, &Error{Kind: ErrCircularTerminal, Message: fmt.Sprintf("circular terminal reference through %q", name)}
	}
	// Not yet elaborated (forward reference to a terminal declared later
	// in the rule list): compile it now, sharing the visiting set so a
	// cycle anywhere in the reference chain is caught.
	visiting[name] = true
	node, err := e.compileTerminalAlts(name, decl.Alts, visiting)
	delete(visiting, name)
	if err != nil {
		return nil, err
	}
	lex := e.addLexeme(node)
	e.g.define(name, Symbol{Kind: KindTerminal, LexemeID: lex})
	return node, nil
}
