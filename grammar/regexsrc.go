package grammar

import (
	"fmt"
	"regexp/syntax"

	"github.com/coregx/conform/rxdfa"
)

// compileRegexSource translates one regex literal's source text (without
// the surrounding /.../ delimiters) into an rxdfa.Node. Parsing itself is
// delegated to the standard library's regexp/syntax.Parse, exactly the way
// the teacher repo parses every regex literal it compiles
// (coregx-coregex/nfa/compile.go:76's `syntax.Parse(pattern, syntax.Perl)`);
// this function's own job is only the second half — walking the resulting
// syntax.Regexp tree and translating each node into the byte-level
// rxdfa.Node shape the regex-vector DFA builds states from, the way the
// teacher's own compiler walks that same tree into Thompson-NFA fragments.
//
// The translation only supports the subset spec.md §6 lists for the lark
// surface: alternation, grouping, `?`/`*`/`+`, bounded `{m,n}`, character
// classes (with negation and ranges), string/regex escapes, and `.` — all
// single-byte-oriented, matching this engine's byte-level DFA.
func compileRegexSource(src string) (rxdfa.Node, error) {
	re, err := syntax.Parse(src, syntax.Perl)
	if err != nil {
		return nil, fmt.Errorf("regex: %w", err)
	}
	return translateRegexp(re)
}

func translateRegexp(re *syntax.Regexp) (rxdfa.Node, error) {
	switch re.Op {
	case syntax.OpEmptyMatch:
		return rxdfa.Empty, nil
	case syntax.OpNoMatch:
		return rxdfa.Null, nil
	case syntax.OpLiteral:
		node := rxdfa.Node(rxdfa.Empty)
		for _, r := range re.Rune {
			b, err := literalByte(r)
			if err != nil {
				return nil, err
			}
			node = rxdfa.Concat(node, rxdfa.ByteNode{Set: rxdfa.NewByteSet(b)})
		}
		return node, nil
	case syntax.OpCharClass:
		return rxdfa.ByteNode{Set: classByteSet(re.Rune)}, nil
	case syntax.OpAnyCharNotNL:
		return anyByteNode(), nil
	case syntax.OpAnyChar:
		return rxdfa.ByteNode{Set: rxdfa.ByteRange(0, 255)}, nil
	case syntax.OpCapture:
		return translateRegexp(re.Sub[0])
	case syntax.OpStar:
		inner, err := translateRegexp(re.Sub[0])
		if err != nil {
			return nil, err
		}
		return rxdfa.Star(inner), nil
	case syntax.OpPlus:
		inner, err := translateRegexp(re.Sub[0])
		if err != nil {
			return nil, err
		}
		return rxdfa.Plus(inner), nil
	case syntax.OpQuest:
		inner, err := translateRegexp(re.Sub[0])
		if err != nil {
			return nil, err
		}
		return rxdfa.Opt(inner), nil
	case syntax.OpRepeat:
		inner, err := translateRegexp(re.Sub[0])
		if err != nil {
			return nil, err
		}
		return repeatBounded(inner, re.Min, re.Max), nil
	case syntax.OpConcat:
		node := rxdfa.Node(rxdfa.Empty)
		for _, sub := range re.Sub {
			part, err := translateRegexp(sub)
			if err != nil {
				return nil, err
			}
			node = rxdfa.Concat(node, part)
		}
		return node, nil
	case syntax.OpAlternate:
		parts := make([]rxdfa.Node, len(re.Sub))
		for i, sub := range re.Sub {
			part, err := translateRegexp(sub)
			if err != nil {
				return nil, err
			}
			parts[i] = part
		}
		return rxdfa.Union(parts...), nil
	default:
		return nil, fmt.Errorf("regex: unsupported construct %v", re.Op)
	}
}

// literalByte requires a literal rune to fit in one byte: this engine's
// lexemes are byte-level, so multi-byte UTF-8 literals (r > 0xff) aren't
// representable without widening rxdfa.Node to a rune alphabet.
func literalByte(r rune) (byte, error) {
	if r < 0 || r > 0xff {
		return 0, fmt.Errorf("regex: non-byte literal %q unsupported", r)
	}
	return byte(r), nil
}

// classByteSet folds a syntax.Regexp's resolved [lo,hi] rune-range pairs
// (already negation-expanded by the parser) into a ByteSet, clipping every
// range to the single-byte alphabet this DFA operates over.
func classByteSet(pairs []rune) rxdfa.ByteSet {
	var set rxdfa.ByteSet
	for i := 0; i+1 < len(pairs); i += 2 {
		lo, hi := pairs[i], pairs[i+1]
		if lo > 0xff {
			continue
		}
		if hi > 0xff {
			hi = 0xff
		}
		set = set.Union(rxdfa.ByteRange(byte(lo), byte(hi)))
	}
	return set
}

// repeatBounded expands {m,n} (n == -1 meaning unbounded) into a bounded
// union of concatenations, exactly as spec.md §4.3 step 2 describes for
// grammar-level repetition.
func repeatBounded(n rxdfa.Node, lo, hi int) rxdfa.Node {
	base := rxdfa.Node(rxdfa.Empty)
	for i := 0; i < lo; i++ {
		base = rxdfa.Concat(base, n)
	}
	if hi < 0 {
		return rxdfa.Concat(base, rxdfa.Star(n))
	}
	if hi == lo {
		return base
	}
	node := base
	extra := rxdfa.Node(rxdfa.Empty)
	for i := 0; i < hi-lo; i++ {
		extra = rxdfa.Opt(rxdfa.Concat(n, extra))
	}
	return rxdfa.Concat(node, extra)
}

// anyByteNode approximates "." as any single non-newline byte. Full
// Unicode-scalar-aware "." (multi-byte UTF-8 sequences counting as one)
// is handled by dotAnyRune in unicode.go for contexts that need it.
func anyByteNode() rxdfa.Node {
	set := rxdfa.ByteRange(0, 255)
	var excl rxdfa.ByteSet
	excl.Add('\n')
	return rxdfa.ByteNode{Set: set.Intersect(excl.Negate())}
}
