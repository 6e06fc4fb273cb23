package decode

import (
	"go.uber.org/zap"

	"github.com/coregx/conform/vocab"
)

// StopReason classifies why decoding can no longer continue, the wire
// shape api.StepResult.Splice.Stop takes (§4.4/§6).
type StopReason int

const (
	StopNotStopped StopReason = iota
	StopMaxTokensTotal
	// StopMaxTokensParser is reserved but never produced by this
	// implementation: per-scope (gen/grammar-ref) max_tokens is declared
	// on Properties but this engine enforces only the grammar-level
	// total budget (CGrammar.MaxTokens) — see DESIGN.md's Open Question
	// decision. Kept as a enum value so callers switching on StopReason
	// don't need an unreachable-default case removed later.
	StopMaxTokensParser
	StopNoExtension
	StopNoExtensionBias
	StopEndOfSentence
	StopInternalError
	StopLexerTooComplex
	StopParserTooComplex
)

// StopReason returns the sticky reason decoding stopped, or
// StopNotStopped while still live.
func (p *Parser) StopReason() StopReason { return p.stopped }

// IsStopped reports whether any further Commit would be rejected.
func (p *Parser) IsStopped() bool { return p.stopped != StopNotStopped }

// StepStats is a lightweight snapshot of parse complexity, used for
// spec.md §4.6's last/max step stats.
type StepStats struct {
	Rows  int
	Items int
}

// LastStepStats reports the current top frame's row/item counts.
func (p *Parser) LastStepStats() StepStats {
	top := p.top()
	return StepStats{Rows: top.rz.CurrentRow() + 1, Items: top.rz.RowItemCount()}
}

// MaxStepStats reports the largest row/item counts seen at any point
// across the parser's lifetime, tracked independently per field (the
// token committed with the most rows need not be the one with the most
// items) — spec.md §4.6's max_step_stats.
func (p *Parser) MaxStepStats() StepStats { return p.maxStats }

func (p *Parser) updateMaxStats() {
	cur := p.LastStepStats()
	if cur.Rows > p.maxStats.Rows {
		p.maxStats.Rows = cur.Rows
	}
	if cur.Items > p.maxStats.Items {
		p.maxStats.Items = cur.Items
	}
}

// CheckStop evaluates whether decoding has reached a stop condition
// without requiring a CommitToken call to discover it — spec.md §4.6's
// check_stop. Unlike StopReason, which only reports a reason already
// latched by a prior CommitToken, CheckStop re-checks the limit
// conditions CommitToken itself enforces (parser complexity, total
// token budget) against the parser's current state, so a caller can
// learn generation is effectively done right after ComputeMask. It
// never mutates p.stopped; CommitToken still latches the sticky reason.
func (p *Parser) CheckStop() StopReason {
	if p.stopped != StopNotStopped {
		return p.stopped
	}
	if top := p.top(); top.rz.TooComplex {
		return StopParserTooComplex
	}
	if root := p.frames[0]; root.cg.MaxTokens > 0 && p.tokensTotal >= root.cg.MaxTokens {
		return StopMaxTokensTotal
	}
	if p.IsAccepting() && len(p.top().allowed.Ids()) == 0 && len(p.top().rz.AllowedAtomicSymbols()) == 0 {
		return StopEndOfSentence
	}
	return StopNotStopped
}

// commitByte drives Advance/Backtrack's reversible machinery but
// immediately discards the undo record on success, turning a speculative
// step into a permanent one without duplicating any of Advance's lexer/
// recognizer/subgrammar-descent logic.
func (p *Parser) commitByte(b byte) bool {
	if !p.Advance(b) {
		return false
	}
	p.undo = p.undo[:len(p.undo)-1]
	return true
}

// discardUndo converts every speculative step taken since mark into a
// permanent commit, without replaying any state (it is already applied)
// — it simply stops tracking those entries for Backtrack.
func (p *Parser) discardUndo(mark int) {
	p.undo = p.undo[:mark]
}

// CommitToken applies one full token's bytes (or EOS) to the live parser
// state, per spec.md §4.6's commit_token: on success it advances the
// token budget and closes out any subgrammar frames that completed,
// setting a sticky stop reason when the grammar or a total token budget
// says to stop. It returns false the moment the token isn't accepted
// from the current position, also setting a sticky stop reason so
// further Commit calls short-circuit.
func (p *Parser) CommitToken(tok vocab.TokenID) bool {
	if p.stopped != StopNotStopped {
		return false
	}
	p.resetStepBudgets()
	defer p.updateMaxStats()
	if tok == p.env.EOS() {
		if p.IsAccepting() {
			p.stopped = StopEndOfSentence
			return true
		}
		p.stopped = StopNoExtension
		return false
	}
	for _, b := range p.env.TokenBytes(tok) {
		if !p.commitByte(b) {
			p.stopped = StopNoExtension
			p.log.Debug("token rejected", zap.Int32("token", int32(tok)))
			return false
		}
	}
	p.tokensTotal++
	if err := p.maybePopCompletedFrames(); err != nil {
		p.stopped = StopInternalError
		p.log.Warn("internal error popping completed subgrammar frame", zap.Error(err))
		return false
	}
	if top := p.top(); top.rz.TooComplex {
		p.stopped = StopParserTooComplex
		p.log.Warn("parser too complex, stopping", zap.Int32("token", int32(tok)))
		return false
	}
	if root := p.frames[0]; root.cg.MaxTokens > 0 && p.tokensTotal >= root.cg.MaxTokens {
		p.stopped = StopMaxTokensTotal
		p.log.Debug("max tokens reached", zap.Int("tokens_total", p.tokensTotal))
	}
	p.history = append(p.history, p.snapshotToken())
	return true
}

// maybePopCompletedFrames closes out every innermost subgrammar frame
// that has both completed (IsAccepting) and has nothing further it could
// scan (no lexeme, no pending grammar-ref/special-token/token-range) —
// a clean "this subgrammar is entirely done" signal, per spec.md §4.4.
func (p *Parser) maybePopCompletedFrames() error {
	for len(p.frames) > 1 {
		top := p.top()
		if !top.rz.IsAccepting() {
			return nil
		}
		if len(top.allowed.Ids()) > 0 || len(top.rz.AllowedAtomicSymbols()) > 0 {
			return nil
		}
		if err := p.popFrame(); err != nil {
			return err
		}
	}
	return nil
}

func (p *Parser) popFrame() error {
	child := p.frames[len(p.frames)-1]
	parent := p.frames[len(p.frames)-2]
	consumed := len(child.buf)
	parentSym := parent.cg.Symbols[child.parentSym]
	if parentSym.Props.HasCapture {
		base := child.parentBufOffset
		parent.rz.AddCapture(parentSym.Props.Capture, base, base+consumed)
	}
	for _, c := range child.rz.Captures() {
		parent.rz.AddCapture(c.Name, child.parentBufOffset+c.Start, child.parentBufOffset+c.End)
	}
	if !parent.rz.ScanSymbol(child.parentSym, consumed) {
		return &stateError{"grammar-ref completed but parent rejected it"}
	}
	parent.buf = append(parent.buf, child.buf...)
	p.frames = p.frames[:len(p.frames)-1]
	return parent.resetRow()
}

type stateError struct{ msg string }

func (e *stateError) Error() string { return e.msg }

// ConsumeForcedPrefix re-tokenizes forced bytes the way the model's own
// tokenizer would (vocab.TokEnv.Tokenize) and commits each resulting
// token, stopping early (and reporting only the tokens actually
// committed) if CommitToken ever rejects one — spec.md §4.6's
// consume_ff_tokens.
func (p *Parser) ConsumeForcedPrefix(forced []byte) []vocab.TokenID {
	toks := p.env.Tokenize(forced)
	committed := make([]vocab.TokenID, 0, len(toks))
	for _, t := range toks {
		if !p.CommitToken(t) {
			break
		}
		committed = append(committed, t)
	}
	return committed
}

// ValidateTokensRaw reports whether every byte of every token in tokens
// is grammar-legal from the current position, without mutating the
// parser's committed state (spec.md §4.6's validate_tokens_raw) — it
// drives the same speculative Advance/Backtrack path compute_mask uses,
// then unwinds it completely regardless of outcome.
func (p *Parser) ValidateTokensRaw(tokens []vocab.TokenID) bool {
	n := 0
	ok := true
loop:
	for _, t := range tokens {
		for _, b := range p.env.TokenBytes(t) {
			if !p.Advance(b) {
				ok = false
				break loop
			}
			n++
		}
	}
	for i := 0; i < n; i++ {
		p.Backtrack()
	}
	return ok
}

// ProcessPrompt implements spec.md §4.6's token healing: it commits
// prompt tokens verbatim for as long as the grammar accepts them whole.
// The instant one doesn't fit (the upstream tokenizer chose a boundary
// the grammar wouldn't have), it unwinds that one partial token and
// replays every remaining prompt byte one at a time instead — which by
// construction matches the grammar's own preferred lexeme boundaries —
// and returns the index of the first token that was healed this way
// (len(tokens) if none were).
func (p *Parser) ProcessPrompt(tokens []vocab.TokenID) int {
	for i, t := range tokens {
		mark := len(p.undo)
		failed := false
		for _, b := range p.env.TokenBytes(t) {
			if !p.Advance(b) {
				failed = true
				break
			}
		}
		if !failed {
			p.discardUndo(mark)
			continue
		}
		for len(p.undo) > mark {
			p.Backtrack()
		}
		for _, rt := range tokens[i:] {
			for _, b := range p.env.TokenBytes(rt) {
				if !p.Advance(b) {
					// a prompt byte the grammar itself cannot accept:
					// nothing more to do, stop healing here.
					p.discardUndo(0)
					return i
				}
			}
		}
		p.discardUndo(0)
		return i
	}
	return len(tokens)
}
