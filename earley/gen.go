package earley

import (
	"github.com/coregx/conform/grammar"
	"github.com/coregx/conform/rxdfa"
)

// SplitGenMatch recovers where a completed `gen` lexeme's body ended and
// its stop match began, given the exact bytes the combined
// Concat(BodyRx, StopRx) lexeme matched (grammar/elaborate.go folds the
// two into one lexeme precisely so the DFA's own derivative handles the
// body/stop ambiguity — see the comment on elaborateGenRule). This
// function replays the two halves independently to recover the split
// itself, which the DFA's derivative state does not retain.
//
// props.Lazy selects "shortest match of body followed by stop" (return
// the first valid split); greedy selects "longest" (the last valid
// split), per spec.md §4.3's gen stop/suffix semantics.
func SplitGenMatch(props grammar.Properties, data []byte, fuel int) (split int, ok bool) {
	if props.StopRx == rxdfa.Empty {
		// Empty stop_rx means "stop at end-of-sentence" (§4.3): there is
		// no in-stream stop match, the whole lexeme is body.
		return len(data), true
	}
	if props.Lazy {
		for k := 0; k <= len(data); k++ {
			if validSplit(props, data, k, fuel) {
				return k, true
			}
		}
		return 0, false
	}
	for k := len(data); k >= 0; k-- {
		if validSplit(props, data, k, fuel) {
			return k, true
		}
	}
	return 0, false
}

func validSplit(props grammar.Properties, data []byte, k int, fuel int) bool {
	body, err := rxdfa.DeriveString(props.BodyRx, data[:k], fuel)
	if err != nil || body == rxdfa.Null || !rxdfa.Nullable(body) {
		return false
	}
	stop, err := rxdfa.DeriveString(props.StopRx, data[k:], fuel)
	if err != nil || stop == rxdfa.Null || !rxdfa.Nullable(stop) {
		return false
	}
	return true
}
