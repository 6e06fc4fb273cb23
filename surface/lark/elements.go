package lark

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/coregx/conform/ast"
)

// parseAttrs parses `[capture=name, max_tokens=10, temperature=0.7, lazy,
// stop=/,/, suffix, stop_capture=tail]`, spec.md §6's per-rule attribute
// bracket.
func (p *parser) parseAttrs() (ast.RuleAttrs, error) {
	var a ast.RuleAttrs
	p.pos++ // consume '['
	for {
		p.skipSpacesNoNL()
		if b, ok := p.peekByte(); ok && b == ']' {
			p.pos++
			return a, nil
		}
		key := p.parseIdent()
		if key == "" {
			return a, fmt.Errorf("lark: expected attribute name at offset %d", p.pos)
		}
		p.skipSpacesNoNL()
		var val string
		hasVal := false
		if b, ok := p.peekByte(); ok && b == '=' {
			p.pos++
			p.skipSpacesNoNL()
			v, err := p.parseAttrValue()
			if err != nil {
				return a, err
			}
			val = v
			hasVal = true
		}
		switch key {
		case "capture":
			a.Capture, a.HasCapture = val, true
		case "max_tokens":
			n, err := strconv.Atoi(val)
			if err != nil {
				return a, fmt.Errorf("lark: max_tokens: %w", err)
			}
			a.MaxTokens, a.HasMaxToken = n, true
		case "temperature":
			f, err := strconv.ParseFloat(val, 64)
			if err != nil {
				return a, fmt.Errorf("lark: temperature: %w", err)
			}
			a.Temperature, a.HasTemp = f, true
		case "lazy":
			a.Lazy = !hasVal || val == "true"
		case "stop":
			a.StopSrc, a.HasStop = val, true
		case "suffix":
			a.IsSuffix = !hasVal || val == "true"
		case "stop_capture":
			a.StopCapture = val
		default:
			return a, fmt.Errorf("lark: unknown attribute %q", key)
		}
		p.skipSpacesNoNL()
		if b, ok := p.peekByte(); ok && b == ',' {
			p.pos++
			continue
		}
	}
}

func (p *parser) parseAttrValue() (string, error) {
	b, ok := p.peekByte()
	if !ok {
		return "", fmt.Errorf("lark: expected attribute value")
	}
	switch {
	case b == '"':
		return p.parseStringLiteral()
	case b == '/':
		return p.parseRegexLiteral()
	default:
		start := p.pos
		for {
			b, ok := p.peekByte()
			if !ok || b == ',' || b == ']' || b == ' ' || b == '\t' {
				break
			}
			p.pos++
		}
		return p.src[start:p.pos], nil
	}
}

// parseAlt parses one `|`-separated alternative: a sequence of elements.
func (p *parser) parseAlt() (ast.AltDecl, error) {
	var alt ast.AltDecl
	for {
		p.skipSpacesNoNL()
		b, ok := p.peekByte()
		if !ok || b == '|' || b == '\n' || b == ')' {
			break
		}
		if b == '#' || (b == '/' && p.pos+1 < len(p.src) && p.src[p.pos+1] == '/') {
			break
		}
		elem, err := p.parseElem()
		if err != nil {
			return alt, err
		}
		alt.Elems = append(alt.Elems, elem)
	}
	return alt, nil
}

// parseElem parses one atom plus any trailing repetition operator.
func (p *parser) parseElem() (ast.ElemDecl, error) {
	elem, err := p.parseAtom()
	if err != nil {
		return elem, err
	}
	elem.Min, elem.Max = 1, 1
	b, ok := p.peekByte()
	if !ok {
		return elem, nil
	}
	switch b {
	case '?':
		p.pos++
		elem.Min, elem.Max = 0, 1
	case '*':
		p.pos++
		elem.Min, elem.Max = 0, -1
	case '+':
		p.pos++
		elem.Min, elem.Max = 1, -1
	case '{':
		lo, hi, err := p.parseBounds()
		if err != nil {
			return elem, err
		}
		elem.Min, elem.Max = lo, hi
	}
	return elem, nil
}

func (p *parser) parseAtom() (ast.ElemDecl, error) {
	b, ok := p.peekByte()
	if !ok {
		return ast.ElemDecl{}, fmt.Errorf("lark: unexpected end of input parsing element")
	}
	switch {
	case b == '(':
		return p.parseGroup()
	case b == '"':
		return p.parseLiteralOrRange()
	case b == '/':
		src, err := p.parseRegexLiteral()
		if err != nil {
			return ast.ElemDecl{}, err
		}
		flags := p.parseFlags()
		return ast.ElemDecl{Kind: ast.ElemRegex, RegexSrc: src, RegexFlags: flags}, nil
	case b == '.':
		p.pos++
		return ast.ElemDecl{Kind: ast.ElemAnyRune}, nil
	case b == '@':
		return p.parseGrammarRef()
	case b == '<':
		return p.parseAngle()
	case b == '%':
		return p.parseInlineDirective()
	case isIdentStart(b):
		name := p.parseIdent()
		if name == "" {
			return ast.ElemDecl{}, fmt.Errorf("lark: expected identifier at offset %d", p.pos)
		}
		return ast.ElemDecl{Kind: ast.ElemRuleRef, Name: name}, nil
	default:
		return ast.ElemDecl{}, fmt.Errorf("lark: unexpected character %q at offset %d", b, p.pos)
	}
}

func isIdentStart(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func (p *parser) parseGroup() (ast.ElemDecl, error) {
	p.pos++ // consume '('
	var alts []ast.AltDecl
	for {
		p.skipInlineSpaceAndComments()
		alt, err := p.parseAlt()
		if err != nil {
			return ast.ElemDecl{}, err
		}
		alts = append(alts, alt)
		p.skipInlineSpaceAndComments()
		if b, ok := p.peekByte(); ok && b == '|' {
			p.pos++
			continue
		}
		break
	}
	if !p.consumeLiteral(")") {
		return ast.ElemDecl{}, fmt.Errorf("lark: expected ')' at offset %d", p.pos)
	}
	return ast.ElemDecl{Kind: ast.ElemGroup, Group: alts}, nil
}

// parseLiteralOrRange handles both `"foo"` and the literal-range form
// `"a".."z"`.
func (p *parser) parseLiteralOrRange() (ast.ElemDecl, error) {
	lit, err := p.parseStringLiteral()
	if err != nil {
		return ast.ElemDecl{}, err
	}
	if strings.HasPrefix(p.src[p.pos:], "..") {
		p.pos += 2
		hi, err := p.parseStringLiteral()
		if err != nil {
			return ast.ElemDecl{}, err
		}
		if len(lit) != 1 || len(hi) != 1 {
			return ast.ElemDecl{}, fmt.Errorf("lark: literal range endpoints must be single bytes")
		}
		return ast.ElemDecl{Kind: ast.ElemLiteralRange, LitRangeLo: lit[0], LitRangeHi: hi[0]}, nil
	}
	return ast.ElemDecl{Kind: ast.ElemLiteral, Literal: lit}, nil
}

// parseGrammarRef handles `@name` and `@0`.
func (p *parser) parseGrammarRef() (ast.ElemDecl, error) {
	p.pos++ // consume '@'
	start := p.pos
	for {
		b, ok := p.peekByte()
		if !ok || !(b == '_' || b >= '0' && b <= '9' || b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z') {
			break
		}
		p.pos++
	}
	if p.pos == start {
		return ast.ElemDecl{}, fmt.Errorf("lark: expected grammar-ref name after '@'")
	}
	return ast.ElemDecl{Kind: ast.ElemGrammarRef, Name: p.src[start:p.pos]}, nil
}

// parseAngle handles `<|name|>` (special token) and `<[a-b,c-d]>`
// (token-id ranges).
func (p *parser) parseAngle() (ast.ElemDecl, error) {
	p.pos++ // consume '<'
	if b, ok := p.peekByte(); ok && b == '|' {
		p.pos++
		start := p.pos
		for {
			c, ok := p.peekByte()
			if !ok {
				return ast.ElemDecl{}, fmt.Errorf("lark: unterminated special token")
			}
			if c == '|' && p.pos+1 < len(p.src) && p.src[p.pos+1] == '>' {
				break
			}
			p.pos++
		}
		name := p.src[start:p.pos]
		p.pos += 2 // consume '|>'
		return ast.ElemDecl{Kind: ast.ElemSpecialToken, Name: name}, nil
	}
	if !p.consumeLiteral("[") {
		return ast.ElemDecl{}, fmt.Errorf("lark: expected '[' or '|' after '<'")
	}
	var ranges [][2]int
	for {
		p.skipSpacesNoNL()
		lo, err := p.parseInt()
		if err != nil {
			return ast.ElemDecl{}, err
		}
		hi := lo
		p.skipSpacesNoNL()
		if p.consumeLiteral("-") {
			hi, err = p.parseInt()
			if err != nil {
				return ast.ElemDecl{}, err
			}
		}
		ranges = append(ranges, [2]int{lo, hi})
		p.skipSpacesNoNL()
		if p.consumeLiteral(",") {
			continue
		}
		break
	}
	if !p.consumeLiteral("]") {
		return ast.ElemDecl{}, fmt.Errorf("lark: expected ']' closing token range")
	}
	if !p.consumeLiteral(">") {
		return ast.ElemDecl{}, fmt.Errorf("lark: expected '>' closing token range")
	}
	return ast.ElemDecl{Kind: ast.ElemTokenRange, TokenRanges: ranges}, nil
}

func (p *parser) parseInt() (int, error) {
	start := p.pos
	for {
		b, ok := p.peekByte()
		if !ok || b < '0' || b > '9' {
			break
		}
		p.pos++
	}
	if p.pos == start {
		return 0, fmt.Errorf("lark: expected integer at offset %d", p.pos)
	}
	return strconv.Atoi(p.src[start:p.pos])
}

// parseInlineDirective handles the two inline-element forms: `%json
// {...}` and `%regex{substring_words(...)}` / `%regex{substring_chars(...)}`.
func (p *parser) parseInlineDirective() (ast.ElemDecl, error) {
	p.pos++ // consume '%'
	if p.consumeLiteral("json") {
		p.skipSpacesNoNL()
		v, err := p.parseJSONValue()
		if err != nil {
			return ast.ElemDecl{}, fmt.Errorf("lark: %%json: %w", err)
		}
		return ast.ElemDecl{Kind: ast.ElemJSON, JSONSchema: v}, nil
	}
	if p.consumeLiteral("regex") {
		if !p.consumeLiteral("{") {
			return ast.ElemDecl{}, fmt.Errorf("lark: expected '{' after %%regex")
		}
		kind := p.parseIdent()
		if !p.consumeLiteral("(") {
			return ast.ElemDecl{}, fmt.Errorf("lark: expected '(' after %%regex{%s", kind)
		}
		chunks, sep, err := p.parseSubstringArgs()
		if err != nil {
			return ast.ElemDecl{}, err
		}
		if !p.consumeLiteral(")") {
			return ast.ElemDecl{}, fmt.Errorf("lark: expected ')' closing %%regex{%s(...)", kind)
		}
		if !p.consumeLiteral("}") {
			return ast.ElemDecl{}, fmt.Errorf("lark: expected '}' closing %%regex{...}")
		}
		k := strings.TrimPrefix(kind, "substring_")
		return ast.ElemDecl{Kind: ast.ElemSubstring, SubstrKind: k, SubstrChunks: chunks, SubstrSep: sep}, nil
	}
	return ast.ElemDecl{}, fmt.Errorf("lark: unknown '%%' directive at offset %d", p.pos)
}

// parseSubstringArgs reads a JSON-array-like list of string chunks,
// optionally followed by `, sep="..."`.
func (p *parser) parseSubstringArgs() (chunks []string, sep string, err error) {
	p.skipSpacesNoNL()
	if !p.consumeLiteral("[") {
		return nil, "", fmt.Errorf("lark: expected '[' opening substring chunk list")
	}
	for {
		p.skipSpacesNoNL()
		if b, ok := p.peekByte(); ok && b == ']' {
			p.pos++
			break
		}
		s, err := p.parseStringLiteral()
		if err != nil {
			return nil, "", err
		}
		chunks = append(chunks, s)
		p.skipSpacesNoNL()
		if p.consumeLiteral(",") {
			continue
		}
		if !p.consumeLiteral("]") {
			return nil, "", fmt.Errorf("lark: expected ']' closing substring chunk list")
		}
		break
	}
	p.skipSpacesNoNL()
	if p.consumeLiteral(",") {
		p.skipSpacesNoNL()
		if !p.consumeLiteral("sep") {
			return nil, "", fmt.Errorf("lark: expected 'sep=' after chunk list")
		}
		p.skipSpacesNoNL()
		if !p.consumeLiteral("=") {
			return nil, "", fmt.Errorf("lark: expected '=' after 'sep'")
		}
		p.skipSpacesNoNL()
		sep, err = p.parseStringLiteral()
		if err != nil {
			return nil, "", err
		}
	}
	return chunks, sep, nil
}
