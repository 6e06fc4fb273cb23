package decode

import (
	"github.com/coregx/conform/grammar"
	"github.com/coregx/conform/mask"
	"github.com/coregx/conform/vocab"
)

// StepResult is what ComputeMask returns: either a sample mask over the
// vocabulary plus a sampling temperature, or — when the grammar leaves
// no real choice — a forced byte prefix to fast-forward through instead
// of sampling at all (spec.md §4.5/§4.6).
type StepResult struct {
	SampleMask  *mask.Bitset
	Temperature float64
	// ForcedPrefix, when non-empty, is bytes the grammar forces
	// regardless of what the model would sample; the caller should
	// re-tokenize it (vocab.TokEnv.Tokenize) and Commit those tokens
	// directly rather than asking the model to sample (ff_tokens, §4.6).
	ForcedPrefix []byte
}

// maxForcedPrefix bounds how many bytes ForcedPrefix will accumulate in
// one ComputeMask call, so a pathological grammar with an unbounded
// forced run (e.g. a huge fixed literal) can't make one step block
// forever; the caller just calls ComputeMask again afterward.
const maxForcedPrefix = 4096

// ComputeMask runs spec.md §4.5's bias computation: first checking for a
// forced-byte run, falling back to the full vocabulary trie walk.
// ComputeMask never itself commits anything — mask.ForcedPrefix leaves
// the Parser speculatively advanced by the forced bytes it found, so
// this unwinds that before returning; the caller is expected to
// re-tokenize and actually commit the forced bytes via
// ConsumeForcedPrefix.
func (p *Parser) ComputeMask() StepResult {
	p.resetStepBudgets()
	mark := len(p.undo)
	forced := mask.ForcedPrefix(p, maxForcedPrefix)
	for len(p.undo) > mark {
		p.Backtrack()
	}
	if len(forced) > 0 {
		return StepResult{ForcedPrefix: forced, Temperature: p.activeTemperature()}
	}
	m := p.computer.Compute(p, p.env.VocabSize())
	p.addAtomicTokens(m)
	if p.IsAccepting() {
		m.Set(int(p.env.EOS()))
	}
	return StepResult{SampleMask: m, Temperature: p.activeTemperature()}
}

// addAtomicTokens ORs in vocabulary token ids satisfying any pending
// KindSpecialToken/KindTokenRange symbol in the current row — these are
// matched whole against a token id, never decomposed byte-wise, so the
// ordinary trie walk (which only ever asks "is this byte legal") can't
// discover them on its own (§4.3's "atomic reference" design for these
// two kinds).
func (p *Parser) addAtomicTokens(m *mask.Bitset) {
	top := p.top()
	for _, sid := range top.rz.AllowedAtomicSymbols() {
		s := &top.cg.Symbols[sid]
		switch s.Kind {
		case grammar.KindTokenRange:
			for _, r := range s.TokenRanges {
				for id := r[0]; id <= r[1] && id < p.env.VocabSize(); id++ {
					m.Set(id)
				}
			}
		case grammar.KindSpecialToken:
			if se, ok := p.env.(specialTokenEnv); ok {
				if id, ok2 := se.SpecialTokenID(s.Ref); ok2 {
					m.Set(int(id))
				}
			}
		}
	}
}

// specialTokenEnv is an optional extension a vocab.TokEnv may implement
// to resolve `<|name|>` references to a concrete token id; plain TokEnv
// implementations that never use special tokens don't need it.
type specialTokenEnv interface {
	SpecialTokenID(name string) (vocab.TokenID, bool)
}

// activeTemperature returns the innermost active grammar-ref scope's
// declared temperature, falling back to 0 when no active scope declares
// one (§4.6: "the temperature of the innermost currently-active gen or
// grammar-ref scope that carries one; else 0"). A gen rule's own
// temperature, if it has one, takes precedence while that gen lexeme is
// the thing currently being scanned.
func (p *Parser) activeTemperature() float64 {
	top := p.top()
	for _, lx := range top.allowed.Ids() {
		if gp, ok := top.genProps(lx); ok && gp.HasTemp {
			return gp.Temperature
		}
	}
	for i := len(p.frames) - 1; i > 0; i-- {
		parent := p.frames[i-1]
		ps := parent.cg.Symbols[p.frames[i].parentSym]
		if ps.Props.HasTemp {
			return ps.Props.Temperature
		}
	}
	return 0
}
