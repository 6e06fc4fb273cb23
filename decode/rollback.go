package decode

import (
	"github.com/coregx/conform/earley"
	"github.com/coregx/conform/rxdfa"
)

// frameState is one frame's byte/row/capture position at a point in
// time, everything restoreToken needs besides the frame object itself
// (which is kept alive by tokenCheckpoint.frames referencing it, even
// after it has since been popped from the live stack — a popped frame
// is never mutated again, so an old snapshot of it stays valid forever).
type frameState struct {
	rzCP       earley.Checkpoint
	state      rxdfa.StateID
	allowed    rxdfa.LexemeSet
	pendingLen int
	bufLen     int
}

// tokenCheckpoint is what Parser.history records after every
// successfully committed token, giving Rollback a point to restore to
// (spec.md §9's rollback design, generalized from one grammar's {row,
// lexer state, capture length} to the full subgrammar stack).
type tokenCheckpoint struct {
	frames      []*frame
	states      []frameState
	tokensTotal int
	stopped     StopReason
}

func (p *Parser) snapshotToken() tokenCheckpoint {
	frames := append([]*frame(nil), p.frames...)
	states := make([]frameState, len(frames))
	for i, f := range frames {
		states[i] = frameState{
			rzCP:       f.rz.Checkpoint(),
			state:      f.state,
			allowed:    f.allowed,
			pendingLen: len(f.pending),
			bufLen:     len(f.buf),
		}
	}
	return tokenCheckpoint{frames: frames, states: states, tokensTotal: p.tokensTotal, stopped: p.stopped}
}

func (p *Parser) restoreToken(cp tokenCheckpoint) {
	p.frames = append([]*frame(nil), cp.frames...)
	for i, f := range p.frames {
		s := cp.states[i]
		f.rz.Restore(s.rzCP)
		f.state = s.state
		f.allowed = s.allowed
		f.pending = f.pending[:s.pendingLen]
		f.buf = f.buf[:s.bufLen]
	}
	p.tokensTotal = cp.tokensTotal
	p.stopped = cp.stopped
	p.undo = p.undo[:0]
}

// Anchor marks the current state as the earliest point Rollback can
// return to, discarding any token history before it. Call this once
// after ProcessPrompt, before generation starts, so Rollback(n) always
// means "undo the last n generated tokens" rather than potentially
// reaching back into prompt processing.
func (p *Parser) Anchor() {
	p.base = p.snapshotToken()
	p.history = p.history[:0]
}

// Rollback undoes the last n committed tokens, restoring captures, the
// subgrammar stack and every frame's lexer/recognizer position to
// exactly where they were then. It returns false (no-op) if n exceeds
// the available history.
func (p *Parser) Rollback(n int) bool {
	if n <= 0 {
		return true
	}
	if n > len(p.history) {
		return false
	}
	idx := len(p.history) - n
	var cp tokenCheckpoint
	if idx == 0 {
		cp = p.base
	} else {
		cp = p.history[idx-1]
	}
	p.restoreToken(cp)
	p.history = p.history[:idx]
	return true
}

// TokensCommitted returns how many tokens are currently in rollback
// history (i.e. how far Rollback can presently reach).
func (p *Parser) TokensCommitted() int { return len(p.history) }
