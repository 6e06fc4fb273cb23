// Package earley implements spec.md §4.4: an Earley-style recognizer
// driven by a stream of lexemes (or, for token-atomic terminals, whole
// model tokens) from package lexer, on top of a grammar.CGrammar.
//
// Rows are indexed by number of scanned lexemes (row 0 is the start);
// within a row, predict/complete run to a fixed point before the next
// lexeme is scanned, exactly as §4.4 describes.
package earley

import "github.com/coregx/conform/grammar"

// Item is one (production, dot position, origin row) triple, the unit
// spec.md §3 calls out: "one per (row,item); row lives for the parse."
type Item struct {
	Prod   grammar.ProductionID
	Dot    int
	Origin int
}

// symbolAfterDot returns the symbol id after the dot in item's production
// body, or (0, false) if the item is already complete (dot == len(body)).
func symbolAfterDot(g *grammar.CGrammar, it Item) (grammar.SymbolID, bool) {
	body := g.Productions[it.Prod].Body
	if it.Dot >= len(body) {
		return 0, false
	}
	return body[it.Dot], true
}

func (it Item) complete(g *grammar.CGrammar) bool {
	return it.Dot >= len(g.Productions[it.Prod].Body)
}

// Row holds every Earley item derived while scanning up to and including
// this row's lexeme (row 0 holds only predictions from the start symbol).
// ByteStart is the byte offset, into the parser's growing output buffer,
// at which this row begins — used to compute capture spans on completion
// (spec.md §3: Capture{name, byte range, value bytes}).
type Row struct {
	ByteStart int
	Items     []Item
	seen      map[Item]bool
	// ScannedSym/HasScannedSym have room for the terminal-like symbol
	// scanned by identity rather than by lexeme (grammar-ref, special
	// token, token range) to reach this row. Nothing in this module sets
	// them, so HasScannedSym is always false.
	ScannedSym    grammar.SymbolID
	HasScannedSym bool
}

func newRow(byteStart int) *Row {
	return &Row{ByteStart: byteStart, seen: make(map[Item]bool)}
}

// add inserts it if not already present, returning whether it was newly
// added (so the caller's predict/complete worklist knows to visit it).
func (r *Row) add(it Item) bool {
	if r.seen[it] {
		return false
	}
	r.seen[it] = true
	r.Items = append(r.Items, it)
	return true
}
