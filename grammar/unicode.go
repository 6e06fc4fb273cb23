package grammar

import "github.com/coregx/conform/rxdfa"

// dotAnyRune builds the node matching exactly one well-formed UTF-8
// encoding of a Unicode scalar value (excluding '\n', to match the
// conventional meaning of "."), satisfying the boundary behavior spec.md
// §8 calls out: "Multi-byte UTF-8 characters count as one `.`".
//
// This is the lark surface's `.` token; grammar/regexsrc.go's anyByteNode
// is used instead inside `/regex/` literals, which conventionally operate
// byte-wise like Go's regexp/syntax does for raw byte classes.
func dotAnyRune() rxdfa.Node {
	// 1-byte: 0x00-0x09, 0x0B-0x7F (excludes '\n' = 0x0A)
	ascii := rxdfa.ByteNode{Set: rxdfa.ByteRange(0x00, 0x09).Union(rxdfa.ByteRange(0x0B, 0x7F))}

	cont := func() rxdfa.Node { return rxdfa.ByteNode{Set: rxdfa.ByteRange(0x80, 0xBF)} }

	// 2-byte: 0xC2-0xDF followed by one continuation byte.
	two := rxdfa.Concat(rxdfa.ByteNode{Set: rxdfa.ByteRange(0xC2, 0xDF)}, cont())

	// 3-byte: 0xE0-0xEF followed by two continuation bytes (simplified:
	// does not exclude the surrogate-range and overlong-encoding edge
	// cases a strict UTF-8 validator would, since the lexer's job is to
	// recognize rune boundaries in already-valid model output, not to
	// validate arbitrary untrusted bytes).
	three := rxdfa.Concat(rxdfa.ByteNode{Set: rxdfa.ByteRange(0xE0, 0xEF)}, rxdfa.Concat(cont(), cont()))

	// 4-byte: 0xF0-0xF4 followed by three continuation bytes.
	four := rxdfa.Concat(rxdfa.ByteNode{Set: rxdfa.ByteRange(0xF0, 0xF4)},
		rxdfa.Concat(cont(), rxdfa.Concat(cont(), cont())))

	return rxdfa.Union(ascii, two, three, four)
}
