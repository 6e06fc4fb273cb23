package earley

import (
	"github.com/coregx/conform/grammar"
	"github.com/coregx/conform/rxdfa"
)

// Recognizer is one grammar's Earley parse state: a growing vector of
// Rows plus the capture list accumulated so far. It holds no lexer state
// of its own — decode.Parser drives a lexer.Lexer in lockstep and feeds
// this Recognizer lexeme/symbol scan events.
type Recognizer struct {
	g        *grammar.CGrammar
	lim      grammar.Limits
	rows     []*Row
	captures []Capture
	lexToSym map[rxdfa.LexemeID]grammar.SymbolID

	// TooComplex is set once any row exceeds lim.MaxItemsInRow or a
	// single step exceeds lim.StepMaxItems, per spec.md §4.3's
	// ParserLimits and §4.4's ParserTooComplex stop reason. Sticky: once
	// true, stays true (the caller should stop calling Scan and surface
	// the stop reason).
	TooComplex bool

	// stepItems counts items newly added to any row since the last
	// ResetStepBudget call, enforcing lim.StepMaxItems ("items examined
	// in a single compute_mask/commit_token step, across every row
	// touched") — a budget separate from and in addition to
	// MaxItemsInRow's per-row cap.
	stepItems int
}

// ResetStepBudget zeroes the per-step item counter lim.StepMaxItems is
// checked against, called by decode.Parser once at the start of every
// compute_mask/commit_token step.
func (rz *Recognizer) ResetStepBudget() { rz.stepItems = 0 }

// chargeStepItem counts one newly-added item against lim.StepMaxItems,
// tripping TooComplex (the same sticky signal MaxItemsInRow uses) the
// instant the budget is exceeded.
func (rz *Recognizer) chargeStepItem() {
	rz.stepItems++
	if rz.lim.StepMaxItems > 0 && rz.stepItems > rz.lim.StepMaxItems {
		rz.TooComplex = true
	}
}

// New builds a Recognizer for g, seeding row 0 with the start symbol's
// productions and closing it to a fixed point.
func New(g *grammar.CGrammar, lim grammar.Limits) *Recognizer {
	rz := &Recognizer{g: g, lim: lim, lexToSym: buildLexToSym(g)}
	row0 := newRow(0)
	rz.rows = []*Row{row0}
	var queue []Item
	for _, pid := range g.Symbols[g.Start].Productions {
		it := Item{Prod: pid, Dot: 0, Origin: 0}
		if row0.add(it) {
			queue = append(queue, it)
			rz.chargeStepItem()
		}
	}
	rz.closure(0, queue)
	return rz
}

func buildLexToSym(g *grammar.CGrammar) map[rxdfa.LexemeID]grammar.SymbolID {
	m := make(map[rxdfa.LexemeID]grammar.SymbolID)
	for _, sym := range g.Symbols {
		if sym.Kind == grammar.KindTerminal || sym.Kind == grammar.KindGen {
			m[sym.LexemeID] = sym.ID
		}
	}
	return m
}

// CurrentRow returns the index of the most recently scanned row.
func (rz *Recognizer) CurrentRow() int { return len(rz.rows) - 1 }

// ByteOffset returns the byte offset the current row begins at.
func (rz *Recognizer) ByteOffset() int { return rz.rows[rz.CurrentRow()].ByteStart }

// closure runs predict/complete to a fixed point over rowIdx's worklist,
// per spec.md §4.4's Predict/Complete description. completedHere records
// the symbols already completed in this row, so an item that reaches one
// of them after that completion still advances over it (the same-row
// nullable-completion case).
func (rz *Recognizer) closure(rowIdx int, queue []Item) {
	row := rz.rows[rowIdx]
	completedHere := make(map[grammar.SymbolID]bool)
	for len(queue) > 0 {
		it := queue[0]
		queue = queue[1:]

		sym, ok := symbolAfterDot(rz.g, it)
		if !ok {
			rz.complete(rowIdx, it, &queue, completedHere)
			continue
		}
		if rz.g.Symbols[sym].Kind != grammar.KindNonterminal {
			continue // terminal-like: left pending for Scan
		}
		for _, pid := range rz.g.Symbols[sym].Productions {
			np := Item{Prod: pid, Dot: 0, Origin: rowIdx}
			if row.add(np) {
				queue = append(queue, np)
				rz.chargeStepItem()
				if rz.TooComplex {
					return
				}
				if rz.lim.MaxItemsInRow > 0 && len(row.Items) > rz.lim.MaxItemsInRow {
					rz.TooComplex = true
					return
				}
			}
		}
		if completedHere[sym] {
			adv := Item{Prod: it.Prod, Dot: it.Dot + 1, Origin: it.Origin}
			if row.add(adv) {
				queue = append(queue, adv)
				rz.chargeStepItem()
				if rz.TooComplex {
					return
				}
			}
		}
	}
}

func (rz *Recognizer) complete(rowIdx int, it Item, queue *[]Item, completedHere map[grammar.SymbolID]bool) {
	row := rz.rows[rowIdx]
	origin := rz.rows[it.Origin]
	head := rz.g.Productions[it.Prod].Head
	hprops := rz.g.Symbols[head].Props
	if hprops.HasCapture {
		rz.recordCapture(hprops.Capture, origin.ByteStart, row.ByteStart)
	}
	for _, oit := range origin.Items {
		osym, ook := symbolAfterDot(rz.g, oit)
		if !ook || osym != head {
			continue
		}
		adv := Item{Prod: oit.Prod, Dot: oit.Dot + 1, Origin: oit.Origin}
		if row.add(adv) {
			*queue = append(*queue, adv)
			rz.chargeStepItem()
			if rz.TooComplex {
				return
			}
			if rz.lim.MaxItemsInRow > 0 && len(row.Items) > rz.lim.MaxItemsInRow {
				rz.TooComplex = true
				return
			}
		}
	}
	if it.Origin == rowIdx {
		completedHere[head] = true
	}
}

// SymbolForLexeme looks up which grammar symbol a compiled lexeme id
// corresponds to (the inverse of Symbol.LexemeID), used by decode.Parser
// to find a KindGen symbol's Properties once its lexeme has matched.
func (rz *Recognizer) SymbolForLexeme(id rxdfa.LexemeID) (grammar.SymbolID, bool) {
	sym, ok := rz.lexToSym[id]
	return sym, ok
}

// AddCapture lets a caller outside this package (decode.Parser, for
// KindGen symbols, which are terminals and so never pass through
// complete) record a capture span directly.
func (rz *Recognizer) AddCapture(name string, start, end int) {
	rz.recordCapture(name, start, end)
}

// RowItemCount returns how many items are in the current row, a cheap
// proxy decode.Parser uses for step-complexity diagnostics (spec.md
// §4.6's last/max step stats).
func (rz *Recognizer) RowItemCount() int {
	return len(rz.rows[rz.CurrentRow()].Items)
}

// AllowedLexemes returns the set of lexeme ids some item in the current
// row expects next (KindTerminal/KindGen symbols after the dot).
func (rz *Recognizer) AllowedLexemes() rxdfa.LexemeSet {
	set := rxdfa.NewLexemeSet(len(rz.g.Lexer.Classes))
	row := rz.rows[rz.CurrentRow()]
	for _, it := range row.Items {
		sym, ok := symbolAfterDot(rz.g, it)
		if !ok {
			continue
		}
		s := rz.g.Symbols[sym]
		if s.Kind == grammar.KindTerminal || s.Kind == grammar.KindGen {
			set.Add(s.LexemeID)
		}
	}
	return set
}

// AllowedAtomicSymbols returns the distinct grammar-ref/special-token/
// token-range symbol ids some item in the current row expects next —
// the terminals that are matched whole, never byte-decomposed.
func (rz *Recognizer) AllowedAtomicSymbols() []grammar.SymbolID {
	seen := map[grammar.SymbolID]bool{}
	var out []grammar.SymbolID
	row := rz.rows[rz.CurrentRow()]
	for _, it := range row.Items {
		sym, ok := symbolAfterDot(rz.g, it)
		if !ok {
			continue
		}
		switch rz.g.Symbols[sym].Kind {
		case grammar.KindGrammarRef, grammar.KindSpecialToken, grammar.KindTokenRange:
			if !seen[sym] {
				seen[sym] = true
				out = append(out, sym)
			}
		}
	}
	return out
}

// IsAccepting reports whether the current row contains a completed item
// covering the start symbol from row 0 — spec.md §4.4's accept condition
// (paired, by the caller, with "EOS is in the allowed-EOS lexeme set").
func (rz *Recognizer) IsAccepting() bool {
	row := rz.rows[rz.CurrentRow()]
	for _, it := range row.Items {
		if it.Origin != 0 {
			continue
		}
		if rz.g.Productions[it.Prod].Head != rz.g.Start {
			continue
		}
		if it.complete(rz.g) {
			return true
		}
	}
	return false
}

// Scan advances every item in the current row expecting lexeme lx,
// starting a new row at byteStart+consumed. Returns false (NoExtension)
// if no item expected it.
func (rz *Recognizer) Scan(lx rxdfa.LexemeID, consumed int) bool {
	sym, ok := rz.lexToSym[lx]
	if !ok {
		return false
	}
	return rz.ScanSymbol(sym, consumed)
}

// ScanSymbol advances every item in the current row expecting exactly
// sym (used directly for grammar-ref/special-token/token-range terminals,
// and internally by Scan for ordinary lexemes).
func (rz *Recognizer) ScanSymbol(sym grammar.SymbolID, consumed int) bool {
	cur := rz.rows[rz.CurrentRow()]
	next := newRow(cur.ByteStart + consumed)
	var queue []Item
	matched := false
	for _, it := range cur.Items {
		s, ok := symbolAfterDot(rz.g, it)
		if !ok || s != sym {
			continue
		}
		matched = true
		adv := Item{Prod: it.Prod, Dot: it.Dot + 1, Origin: it.Origin}
		if next.add(adv) {
			queue = append(queue, adv)
			rz.chargeStepItem()
		}
	}
	if !matched {
		return false
	}
	rz.rows = append(rz.rows, next)
	if rz.TooComplex {
		return true
	}
	rz.closure(rz.CurrentRow(), queue)
	return true
}

// Checkpoint captures enough state to Restore back to this point later
// (spec.md §9's rollback design: "a snapshot of {current row index, lexer
// state id, capture-list length}" — the row/capture parts live here, the
// lexer state id lives in decode.Parser alongside it).
type Checkpoint struct {
	Rows     int
	Captures int
}

func (rz *Recognizer) Checkpoint() Checkpoint {
	return Checkpoint{Rows: len(rz.rows), Captures: len(rz.captures)}
}

func (rz *Recognizer) Restore(cp Checkpoint) {
	rz.rows = rz.rows[:cp.Rows]
	rz.truncateCaptures(cp.Captures)
	rz.TooComplex = false
}
