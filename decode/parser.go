package decode

import (
	"go.uber.org/zap"

	"github.com/coregx/conform/ast"
	"github.com/coregx/conform/earley"
	"github.com/coregx/conform/grammar"
	"github.com/coregx/conform/lexer"
	"github.com/coregx/conform/mask"
	"github.com/coregx/conform/rxdfa"
	"github.com/coregx/conform/vocab"
)

// Parser is the engine's public per-request driver, spec.md §4.6: it
// owns one stack of frames (the root grammar plus any subgrammars
// currently descended into via grammar-refs, §4.4), the vocabulary trie
// walk that produces sample masks, and rollback/commit bookkeeping.
//
// A Parser is built once per decoding request and is not safe for
// concurrent use — exactly one goroutine drives it at a time, matching
// §5's Concurrency Model ("one request, one goroutine").
type Parser struct {
	lim grammar.Limits
	cfg rxdfa.Config
	set *grammar.CompiledSet
	env vocab.TokEnv
	log *zap.Logger

	trie     *vocab.Trie
	computer *mask.Computer

	frames []*frame
	undo   []stepUndo

	tokensTotal int
	base        tokenCheckpoint
	history     []tokenCheckpoint

	// stopped is sticky once set by Commit/Rollback logic; StopNotStopped
	// means "still decoding".
	stopped StopReason

	// maxStats is the running per-field maximum of LastStepStats ever
	// observed, updated on every CommitToken (§4.6's max_step_stats); it
	// is deliberately not reset by Rollback, since it reports the peak
	// complexity this request has ever reached, not the complexity of
	// its current (possibly rolled-back) position.
	maxStats StepStats
}

type stepUndo struct {
	framesPushed int
	frameIdx     int
	bu           byteUndo
}

// New builds a Parser over set's first grammar (set.Grammars[0]) as the
// root, per CompileSet's doc comment ("the first entry is conventionally
// the grammar a decode.Parser starts from").
func New(set *grammar.CompiledSet, env vocab.TokEnv, lim grammar.Limits, cfg rxdfa.Config) (*Parser, error) {
	root, err := newFrame(set.Grammars[0], lim, cfg, -1, 0)
	if err != nil {
		return nil, err
	}
	trie := vocab.Build(env)
	log := lim.Logger
	if log == nil {
		log = zap.NewNop()
	}
	p := &Parser{
		lim:      lim,
		cfg:      cfg,
		set:      set,
		env:      env,
		log:      log,
		trie:     trie,
		computer: mask.New(trie),
		frames:   []*frame{root},
	}
	p.base = p.snapshotToken()
	log.Debug("decode parser ready", zap.String("grammar", set.Grammars[0].Name), zap.Int("vocab_size", env.VocabSize()))
	return p, nil
}

// NewFromTrees is a convenience wrapper combining grammar.CompileSet with
// New, for callers (cmd/conform, tests) that start from ast.Trees rather
// than an already-compiled set.
func NewFromTrees(trees []*ast.Tree, names []string, maxTokens []int, env vocab.TokEnv, lim grammar.Limits, cfg rxdfa.Config) (*Parser, error) {
	set, err := grammar.CompileSet(trees, names, lim, cfg)
	if err != nil {
		return nil, err
	}
	for i, mt := range maxTokens {
		if i < len(set.Grammars) {
			set.Grammars[i].MaxTokens = mt
		}
	}
	return New(set, env, lim, cfg)
}

func (p *Parser) top() *frame { return p.frames[len(p.frames)-1] }

// resetStepBudgets zeroes every live frame's lim.StepMaxItems counter,
// called once at the start of each compute_mask/commit_token step so the
// budget measures work done in that one step rather than accumulating
// across the whole request.
func (p *Parser) resetStepBudgets() {
	for _, f := range p.frames {
		f.rz.ResetStepBudget()
	}
}

func (p *Parser) popFrames(n int) {
	for i := 0; i < n; i++ {
		p.frames = p.frames[:len(p.frames)-1]
	}
}

// descend pushes new frames for as long as the current top frame expects
// nothing but a single, unambiguous grammar-ref (§4.4's subgrammar
// descent). It stops the instant the top frame has some lexeme path
// available, or the grammar-ref choice is ambiguous (more than one
// candidate) or absent (a genuine dead end) — both left as a byte-level
// failure for the caller rather than explored further; see DESIGN.md for
// why full branch-forking over simultaneous lexeme/grammar-ref
// expectations is out of scope here.
func (p *Parser) descend() (pushed int, err error) {
	for {
		top := p.top()
		if len(top.allowed.Ids()) > 0 {
			return pushed, nil
		}
		atoms := top.rz.AllowedAtomicSymbols()
		var ref *grammar.Symbol
		for _, sid := range atoms {
			s := &top.cg.Symbols[sid]
			if s.Kind != grammar.KindGrammarRef {
				continue
			}
			if ref != nil {
				return pushed, nil // ambiguous: more than one grammar-ref candidate
			}
			ref = s
		}
		if ref == nil {
			return pushed, nil
		}
		sub, ok := p.set.Resolve(ref.Ref)
		if !ok {
			return pushed, &grammar.Error{Kind: grammar.ErrUnknownName, Message: "unresolved grammar-ref " + ref.Ref}
		}
		nf, ferr := newFrame(sub, p.lim, p.cfg, len(p.frames)-1, ref.ID)
		if ferr != nil {
			return pushed, ferr
		}
		nf.parentBufOffset = len(top.buf)
		p.frames = append(p.frames, nf)
		pushed++
	}
}

func (p *Parser) stepFrame(f *frame, b byte) bool {
	res := f.lx.Advance(f.state, b, f.allowed)
	switch res.Kind {
	case lexer.AdvanceState:
		f.pending = append(f.pending, b)
		f.buf = append(f.buf, b)
		f.state = res.State
		return true
	case lexer.AdvanceLexeme:
		return p.completeLexeme(f, res.Lexeme, b)
	default: // AdvanceError, AdvanceSpecialToken
		return false
	}
}

// completeLexeme resolves a lexer-reported lexeme boundary: it records
// gen-rule body/stop captures (§4.3), advances the recognizer, resets
// the row, and — when the triggering byte belongs to the next row
// (PreLexeme.ByteNextRow) — retries it from the fresh row state.
func (p *Parser) completeLexeme(f *frame, pre lexer.PreLexeme, b byte) bool {
	var matched []byte
	if pre.ByteNextRow {
		matched = append([]byte(nil), f.pending...)
	} else {
		matched = append(append([]byte(nil), f.pending...), b)
	}
	if gp, ok := f.genProps(pre.ID); ok {
		split, ok2 := earley.SplitGenMatch(gp, matched, p.cfg.StepFuel)
		if !ok2 {
			return false
		}
		base := len(f.buf) - len(f.pending)
		if gp.HasCapture {
			f.rz.AddCapture(gp.Capture, base, base+split)
		}
		if gp.HasStop && gp.StopCapture != "" {
			f.rz.AddCapture(gp.StopCapture, base+split, base+len(matched))
		}
	} else if tp, ok2 := f.termProps(pre.ID); ok2 && tp.HasCapture {
		base := len(f.buf) - len(f.pending)
		f.rz.AddCapture(tp.Capture, base, base+len(matched))
	}
	if !f.rz.Scan(pre.ID, len(matched)) {
		return false
	}
	// f.buf already holds the pending bytes (stepFrame appends each one);
	// only the closing byte, when it belongs to this lexeme, is new.
	if !pre.ByteNextRow {
		f.buf = append(f.buf, b)
	}
	if err := f.resetRow(); err != nil {
		return false
	}
	if !pre.ByteNextRow {
		return true
	}
	res2 := f.lx.Advance(f.state, b, f.allowed)
	switch res2.Kind {
	case lexer.AdvanceState:
		f.pending = append(f.pending, b)
		f.buf = append(f.buf, b)
		f.state = res2.State
		return true
	case lexer.AdvanceLexeme:
		return p.completeLexeme(f, res2.Lexeme, b)
	default:
		return false
	}
}

// Advance implements mask.Stepper: descend into any forced subgrammar,
// then attempt byte b against the (now current) top frame, snapshotting
// enough state for a symmetric Backtrack.
func (p *Parser) Advance(b byte) bool {
	pushed, err := p.descend()
	if err != nil {
		p.popFrames(pushed)
		return false
	}
	f := p.top()
	bu := f.snapshot()
	if !p.stepFrame(f, b) {
		f.restore(bu)
		p.popFrames(pushed)
		return false
	}
	p.undo = append(p.undo, stepUndo{framesPushed: pushed, frameIdx: len(p.frames) - 1, bu: bu})
	return true
}

// Backtrack implements mask.Stepper.
func (p *Parser) Backtrack() {
	n := len(p.undo) - 1
	u := p.undo[n]
	p.undo = p.undo[:n]
	p.frames[u.frameIdx].restore(u.bu)
	p.popFrames(u.framesPushed)
}

// ForcedNext implements mask.Stepper: descending first (an unambiguous
// grammar-ref chain is not itself a byte choice), then asking the
// lexer's DFA whether exactly one byte value continues the current
// state.
func (p *Parser) ForcedNext() (byte, bool) {
	if _, err := p.descend(); err != nil {
		return 0, false
	}
	f := p.top()
	nb, err := f.cg.Lexer.DFA.NextByte(f.lx.Cache, f.state)
	if err != nil || nb.Kind != rxdfa.NextSpecific {
		return 0, false
	}
	return nb.Byte, true
}

// IsAccepting reports whether the parse could legally end right now:
// not inside any subgrammar, and the root recognizer has a completed
// start-symbol item in its current row (§4.4's accept condition).
func (p *Parser) IsAccepting() bool {
	return len(p.frames) == 1 && p.frames[0].rz.IsAccepting()
}

// Captures returns every named capture recorded in the root grammar's
// frame, sliced against that frame's own output buffer. Captures made
// inside a subgrammar are folded into the parent's buffer/capture list
// when that subgrammar frame pops (see maybePopCompletedFrames), so by
// the time a request is done every capture is reachable from here.
func (p *Parser) Captures() []Capture {
	root := p.frames[0]
	var out []Capture
	for _, c := range root.rz.Captures() {
		out = append(out, Capture{Name: c.Name, Text: append([]byte(nil), root.buf[c.Start:c.End]...)})
	}
	return out
}

// Capture is a decoded (name, bytes) capture pair, the public shape
// api.StepResult-adjacent callers consume (§3's invariant (e): captures
// are a function of the matched byte sequence, not of tokenization).
type Capture struct {
	Name string
	Text []byte
}

// Get returns the most recently completed capture named name.
func (p *Parser) Get(name string) ([]byte, bool) {
	return p.frames[0].rz.Get(name, p.frames[0].buf)
}
