// Package lark implements spec.md §6's lark-like grammar surface:
// source text describing rules/terminals (with attribute brackets,
// alternation, grouping, repetition, literals, regex literals, literal
// ranges, `.`, grammar-refs, special tokens, token-id ranges, inline
// `%json`/`%regex{substring_*}` forms, `%ignore` and `%llguidance`
// options) compiled down to an ast.Tree, the same surface-neutral shape
// surface/jsonschema also produces.
//
// Parse is a hand-rolled recursive-descent reader over the raw source
// string with an integer cursor, no separate tokenizing pass.
package lark

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/coregx/conform/ast"
)

// Parse compiles one lark-surface grammar source into an ast.Tree.
func Parse(src string) (*ast.Tree, error) {
	p := &parser{src: src}
	tree := &ast.Tree{Options: map[string]any{}}
	termSrc := map[string]string{}
	var pendingIgnore []string

	for {
		p.skipTrivia()
		if p.atEnd() {
			break
		}
		if p.consumeLiteral("%ignore") {
			p.skipSpacesNoNL()
			name, src, err := p.parseIgnoreTarget(termSrc)
			if err != nil {
				return nil, err
			}
			if src != "" {
				tree.Ignore = append(tree.Ignore, src)
			} else {
				pendingIgnore = append(pendingIgnore, name)
			}
			p.skipToLineEnd()
			continue
		}
		if p.consumeLiteral("%import") {
			p.skipSpacesNoNL()
			if err := p.skipImportLine(); err != nil {
				return nil, err
			}
			continue
		}
		if p.consumeLiteral("%llguidance") {
			p.skipSpacesNoNL()
			opts, err := p.parseJSONValue()
			if err != nil {
				return nil, fmt.Errorf("lark: %%llguidance: %w", err)
			}
			if m, ok := opts.(map[string]any); ok {
				for k, v := range m {
					tree.Options[k] = v
				}
			}
			continue
		}
		rule, err := p.parseRule()
		if err != nil {
			return nil, err
		}
		tree.Rules = append(tree.Rules, rule)
		if len(rule.Alts) == 1 && len(rule.Alts[0].Elems) == 1 {
			e := rule.Alts[0].Elems[0]
			if e.Kind == ast.ElemRegex && e.Min == 1 && e.Max == 1 {
				termSrc[rule.Name] = e.RegexSrc
			} else if e.Kind == ast.ElemLiteral && e.Min == 1 && e.Max == 1 {
				termSrc[rule.Name] = regexEscape(e.Literal)
			}
		}
	}

	for _, name := range pendingIgnore {
		src, ok := termSrc[name]
		if !ok {
			return nil, fmt.Errorf("lark: %%ignore %s: not a simple single-pattern terminal", name)
		}
		tree.Ignore = append(tree.Ignore, src)
	}

	if len(tree.Rules) == 0 {
		return nil, fmt.Errorf("lark: empty grammar")
	}
	return tree, nil
}

type parser struct {
	src string
	pos int
}

func (p *parser) atEnd() bool { return p.pos >= len(p.src) }

func (p *parser) peekByte() (byte, bool) {
	if p.atEnd() {
		return 0, false
	}
	return p.src[p.pos], true
}

func (p *parser) consumeLiteral(s string) bool {
	if strings.HasPrefix(p.src[p.pos:], s) {
		p.pos += len(s)
		return true
	}
	return false
}

// skipTrivia skips whitespace (including newlines) and `//`/`#` line
// comments, the combination spec.md §6's lark surface uses.
func (p *parser) skipTrivia() {
	for {
		b, ok := p.peekByte()
		if !ok {
			return
		}
		switch {
		case b == ' ' || b == '\t' || b == '\n' || b == '\r':
			p.pos++
		case b == '#':
			p.skipToLineEnd()
		case b == '/' && p.pos+1 < len(p.src) && p.src[p.pos+1] == '/':
			p.skipToLineEnd()
		default:
			return
		}
	}
}

func (p *parser) skipSpacesNoNL() {
	for {
		b, ok := p.peekByte()
		if !ok || (b != ' ' && b != '\t') {
			return
		}
		p.pos++
	}
}

func (p *parser) skipToLineEnd() {
	for {
		b, ok := p.peekByte()
		if !ok || b == '\n' {
			return
		}
		p.pos++
	}
}

func (p *parser) skipImportLine() error {
	// `%import common.NAME` / `%import common.NAME -> ALIAS`: the line is
	// skipped and no name is resolved, so an imported name stays undefined
	// unless the grammar declares it itself (spec.md's Non-goals exclude a
	// general module system).
	start := p.pos
	p.skipToLineEnd()
	line := strings.TrimSpace(p.src[start:p.pos])
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return fmt.Errorf("lark: empty %%import")
	}
	_ = parts
	return nil
}

func (p *parser) parseIgnoreTarget(termSrc map[string]string) (name, src string, err error) {
	b, ok := p.peekByte()
	if !ok {
		return "", "", fmt.Errorf("lark: %%ignore: unexpected end of input")
	}
	if b == '/' {
		node, err := p.parseRegexLiteral()
		if err != nil {
			return "", "", err
		}
		return "", node, nil
	}
	if b == '"' {
		lit, err := p.parseStringLiteral()
		if err != nil {
			return "", "", err
		}
		return "", regexEscape(lit), nil
	}
	name = p.parseIdent()
	if name == "" {
		return "", "", fmt.Errorf("lark: %%ignore: expected NAME, regex, or string")
	}
	if s, ok := termSrc[name]; ok {
		return "", s, nil
	}
	return name, "", nil
}

// parseRule parses `name[attrs]: alt (| alt)*` through the terminating
// newline, also accepting `|`-prefixed continuation lines the way lark
// allows a rule body to spill across multiple lines.
func (p *parser) parseRule() (ast.RuleDecl, error) {
	name := p.parseIdent()
	if name == "" {
		return ast.RuleDecl{}, fmt.Errorf("lark: expected rule/terminal name at offset %d", p.pos)
	}
	decl := ast.RuleDecl{Name: name, IsTerminal: isTerminalName(name)}
	p.skipSpacesNoNL()
	if b, ok := p.peekByte(); ok && b == '[' {
		attrs, err := p.parseAttrs()
		if err != nil {
			return ast.RuleDecl{}, err
		}
		decl.Attrs = attrs
	}
	p.skipSpacesNoNL()
	if !p.consumeLiteral(":") {
		return ast.RuleDecl{}, fmt.Errorf("lark: rule %q: expected ':'", name)
	}
	for {
		p.skipInlineSpaceAndComments()
		alt, err := p.parseAlt()
		if err != nil {
			return ast.RuleDecl{}, err
		}
		decl.Alts = append(decl.Alts, alt)
		p.skipInlineSpaceAndComments()
		if b, ok := p.peekByte(); ok && b == '|' {
			p.pos++
			continue
		}
		break
	}
	return decl, nil
}

// skipInlineSpaceAndComments skips spaces/comments and, crucially,
// newlines immediately followed by optional whitespace then `|` — lark's
// continuation-line rule — without consuming a newline that starts the
// *next* rule.
func (p *parser) skipInlineSpaceAndComments() {
	for {
		b, ok := p.peekByte()
		if !ok {
			return
		}
		switch {
		case b == ' ' || b == '\t' || b == '\r':
			p.pos++
		case b == '#' || (b == '/' && p.pos+1 < len(p.src) && p.src[p.pos+1] == '/'):
			p.skipToLineEnd()
		case b == '\n':
			save := p.pos
			p.pos++
			for {
				b2, ok2 := p.peekByte()
				if ok2 && (b2 == ' ' || b2 == '\t' || b2 == '\r') {
					p.pos++
					continue
				}
				break
			}
			if b2, ok2 := p.peekByte(); ok2 && b2 == '|' {
				return // stop right before the '|'; parseRule's loop consumes it
			}
			p.pos = save
			return
		default:
			return
		}
	}
}

func isTerminalName(name string) bool {
	for _, r := range name {
		if r >= 'a' && r <= 'z' {
			return false
		}
		if r >= 'A' && r <= 'Z' {
			return true
		}
	}
	return true
}

func (p *parser) parseIdent() string {
	start := p.pos
	for {
		b, ok := p.peekByte()
		if !ok {
			break
		}
		if b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9' && p.pos > start) {
			p.pos++
			continue
		}
		break
	}
	return p.src[start:p.pos]
}

func regexEscape(lit string) string {
	var b strings.Builder
	for i := 0; i < len(lit); i++ {
		c := lit[i]
		if strings.IndexByte(`.*+?()[]{}|\^$`, c) >= 0 {
			b.WriteByte('\\')
		}
		b.WriteByte(c)
	}
	return b.String()
}

func (p *parser) parseJSONValue() (any, error) {
	start := p.pos
	depth := 0
	inStr := false
	esc := false
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if inStr {
			switch {
			case esc:
				esc = false
			case c == '\\':
				esc = true
			case c == '"':
				inStr = false
			}
			p.pos++
			continue
		}
		switch c {
		case '"':
			inStr = true
		case '{', '[':
			depth++
		case '}', ']':
			depth--
		}
		p.pos++
		if depth == 0 && (c == '}' || c == ']') {
			break
		}
	}
	raw := p.src[start:p.pos]
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, fmt.Errorf("invalid JSON %q: %w", raw, err)
	}
	return v, nil
}

func (p *parser) parseStringLiteral() (string, error) {
	if !p.consumeLiteral(`"`) {
		return "", fmt.Errorf("lark: expected string literal at offset %d", p.pos)
	}
	var b strings.Builder
	for {
		c, ok := p.peekByte()
		if !ok {
			return "", fmt.Errorf("lark: unterminated string literal")
		}
		if c == '"' {
			p.pos++
			return b.String(), nil
		}
		if c == '\\' {
			p.pos++
			e, ok := p.peekByte()
			if !ok {
				return "", fmt.Errorf("lark: dangling escape in string literal")
			}
			p.pos++
			switch e {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			default:
				b.WriteByte(e)
			}
			continue
		}
		p.pos++
		b.WriteByte(c)
	}
}

// parseRegexLiteral reads `/pattern/flags` and returns the raw pattern
// source (flags are returned separately by the caller where needed).
func (p *parser) parseRegexLiteral() (string, error) {
	if !p.consumeLiteral("/") {
		return "", fmt.Errorf("lark: expected regex literal at offset %d", p.pos)
	}
	start := p.pos
	for {
		c, ok := p.peekByte()
		if !ok {
			return "", fmt.Errorf("lark: unterminated regex literal")
		}
		if c == '\\' {
			p.pos += 2
			continue
		}
		if c == '/' {
			break
		}
		p.pos++
	}
	src := p.src[start:p.pos]
	p.pos++ // consume closing '/'
	return src, nil
}

func (p *parser) parseFlags() string {
	start := p.pos
	for {
		b, ok := p.peekByte()
		if !ok || !(b >= 'a' && b <= 'z') {
			break
		}
		p.pos++
	}
	return p.src[start:p.pos]
}

// parseBounds reads `{m}`, `{m,}`, `{,n}` or `{m,n}`.
func (p *parser) parseBounds() (int, int, error) {
	if !p.consumeLiteral("{") {
		return 0, 0, fmt.Errorf("lark: expected '{'")
	}
	start := p.pos
	for {
		b, ok := p.peekByte()
		if !ok {
			return 0, 0, fmt.Errorf("lark: unterminated {..}")
		}
		if b == '}' {
			break
		}
		p.pos++
	}
	body := p.src[start:p.pos]
	p.pos++ // consume '}'
	comma := strings.IndexByte(body, ',')
	if comma < 0 {
		n, err := strconv.Atoi(strings.TrimSpace(body))
		if err != nil {
			return 0, 0, fmt.Errorf("lark: invalid bound %q", body)
		}
		return n, n, nil
	}
	loStr := strings.TrimSpace(body[:comma])
	hiStr := strings.TrimSpace(body[comma+1:])
	lo, hi := 0, -1
	if loStr != "" {
		n, err := strconv.Atoi(loStr)
		if err != nil {
			return 0, 0, err
		}
		lo = n
	}
	if hiStr != "" {
		n, err := strconv.Atoi(hiStr)
		if err != nil {
			return 0, 0, err
		}
		hi = n
	}
	return lo, hi, nil
}
