package earley

// Capture is one named byte span recorded when an enclosing `[capture]`
// rule completes (spec.md §3/§4.4). Start/End are byte offsets into the
// decode.Parser's output buffer; the bytes themselves are sliced out by
// the caller (captures are a function of the byte sequence, not of which
// tokenization produced it — §3 invariant (e)).
type Capture struct {
	Name  string
	Start int
	End   int
}

// recordCapture appends a completed capture, honoring spec.md §9's
// "earliest derivation wins" policy for the degenerate case of two
// distinct derivations completing the *same* (name, start, end) span:
// complete calls it once per completing item, so two productions of the
// same head can both report that span; the first one recorded is kept
// and any later identical capture is dropped.
func (rz *Recognizer) recordCapture(name string, start, end int) {
	for _, c := range rz.captures {
		if c.Name == name && c.Start == start && c.End == end {
			return
		}
	}
	rz.captures = append(rz.captures, Capture{Name: name, Start: start, End: end})
}

// Captures returns every capture recorded so far, in completion order.
func (rz *Recognizer) Captures() []Capture {
	return rz.captures
}

// Get returns the bytes of the most recently completed capture named
// name, sliced from buf (the parser's full output buffer so far), or
// (nil, false) if no such capture exists yet. "Most recent" is the
// natural choice for a capture rule used inside a loop (e.g. one gen
// capture per repetition, where the last iteration is the one callers
// usually want) — spec.md §9 leaves this selection as policy.
func (rz *Recognizer) Get(name string, buf []byte) ([]byte, bool) {
	for i := len(rz.captures) - 1; i >= 0; i-- {
		c := rz.captures[i]
		if c.Name == name {
			if c.Start < 0 || c.End > len(buf) || c.Start > c.End {
				return nil, false
			}
			return buf[c.Start:c.End], true
		}
	}
	return nil, false
}

// truncateCaptures drops every capture recorded at index >= n, used by
// Rollback.
func (rz *Recognizer) truncateCaptures(n int) {
	rz.captures = rz.captures[:n]
}
