// Package decode implements spec.md §4.6's token parser: the public
// driver that combines a lexer.Lexer and an earley.Recognizer per active
// grammar (with subgrammar descent, §4.4's grammar-ref), walking them
// byte-by-byte to answer compute_mask, apply committed tokens, track
// captures/stop reasons/temperature, and support rollback.
package decode

import (
	"github.com/coregx/conform/earley"
	"github.com/coregx/conform/grammar"
	"github.com/coregx/conform/lexer"
	"github.com/coregx/conform/rxdfa"
)

// frame is one grammar's live parsing state: its own Lexer (and thus its
// own rxdfa.Cache, per §5's "a Lexer is never shared across parsers")
// plus an earley.Recognizer, the output bytes it has matched so far, and
// — for every frame but the root — which symbol in the parent frame the
// subgrammar descent is standing in for.
type frame struct {
	cg *grammar.CGrammar
	lx *lexer.Lexer
	rz *earley.Recognizer

	state   rxdfa.StateID
	allowed rxdfa.LexemeSet
	pending []byte // bytes consumed since the current row began, not yet resolved into a lexeme
	buf     []byte // every byte this frame has matched, start to now

	// parentSym/parentFrame identify where this frame was pushed from, so
	// popping it can ScanSymbol the grammar-ref in the parent and fold
	// this frame's matched bytes into the parent's buf. parentFrame is
	// the stack index, -1 for the root frame.
	parentFrame     int
	parentSym       grammar.SymbolID
	parentBufOffset int // len(parent.buf) at the moment this frame was pushed

	tokensConsumed int // forced/real tokens attributed to this frame's region, for max_tokens scoping
}

func newFrame(cg *grammar.CGrammar, lim grammar.Limits, cfg rxdfa.Config, parentFrame int, parentSym grammar.SymbolID) (*frame, error) {
	f := &frame{
		cg:          cg,
		lx:          lexer.New(cg.Lexer, cfg, lim.MaxLexerStates),
		rz:          earley.New(cg, lim),
		parentFrame: parentFrame,
		parentSym:   parentSym,
	}
	if err := f.resetRow(); err != nil {
		return nil, err
	}
	return f, nil
}

// resetRow recomputes the lexeme set enabled by the recognizer's current
// row and re-seeds the lexer's DFA state for it — done once per Earley
// row, per spec.md §4.2/§4.4's description of how the lexer and
// recognizer interlock.
func (f *frame) resetRow() error {
	f.allowed = f.rz.AllowedLexemes()
	st, err := f.lx.StartState(f.allowed)
	if err != nil {
		return err
	}
	f.state = st
	f.pending = f.pending[:0]
	return nil
}

// byteUndo is everything Advance needs to snapshot to make a single byte
// step exactly reversible — both the common "still inside a lexeme" case
// and the rarer "this byte closed a lexeme and opened a new row" case,
// uniformly.
type byteUndo struct {
	state      rxdfa.StateID
	allowed    rxdfa.LexemeSet
	pendingLen int
	bufLen     int
	rzCP       earley.Checkpoint
}

func (f *frame) snapshot() byteUndo {
	return byteUndo{
		state:      f.state,
		allowed:    f.allowed,
		pendingLen: len(f.pending),
		bufLen:     len(f.buf),
		rzCP:       f.rz.Checkpoint(),
	}
}

func (f *frame) restore(u byteUndo) {
	f.state = u.state
	f.allowed = u.allowed
	f.pending = f.pending[:u.pendingLen]
	f.buf = f.buf[:u.bufLen]
	f.rz.Restore(u.rzCP)
}

// genProps looks up the gen-rule Properties a lexeme id was compiled
// from, if it came from a KindGen symbol.
func (f *frame) genProps(id rxdfa.LexemeID) (grammar.Properties, bool) {
	sym, ok := f.rz.SymbolForLexeme(id)
	if !ok || f.cg.Symbols[sym].Kind != grammar.KindGen {
		return grammar.Properties{}, false
	}
	return f.cg.Symbols[sym].Props, true
}

func (f *frame) termProps(id rxdfa.LexemeID) (grammar.Properties, bool) {
	sym, ok := f.rz.SymbolForLexeme(id)
	if !ok {
		return grammar.Properties{}, false
	}
	return f.cg.Symbols[sym].Props, true
}
