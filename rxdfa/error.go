package rxdfa

import "fmt"

// ErrorKind classifies rxdfa errors, mirroring the shape of
// github.com/coregx/coregex's dfa/lazy.ErrorKind.
type ErrorKind uint8

const (
	// TooComplex indicates the fuel budget was exhausted while computing
	// a derivative or expanding a new state. Surfaced to callers as the
	// LexerTooComplex stop reason (§4.4).
	TooComplex ErrorKind = iota
	// StateLimitExceeded indicates max_lexer_states was reached.
	StateLimitExceeded
	// InvalidConfig indicates a zero or negative fuel/state budget.
	InvalidConfig
)

func (k ErrorKind) String() string {
	switch k {
	case TooComplex:
		return "TooComplex"
	case StateLimitExceeded:
		return "StateLimitExceeded"
	case InvalidConfig:
		return "InvalidConfig"
	default:
		return fmt.Sprintf("UnknownErrorKind(%d)", k)
	}
}

// Error is the error type returned by rxdfa operations. It is never
// surfaced from decode-time operations directly (see §7); decode wraps it
// into a StopReason.
type Error struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// ErrTooComplex is the canonical error for fuel exhaustion.
var ErrTooComplex = &Error{Kind: TooComplex, Message: "lexer fuel exhausted"}

// ErrStateLimitExceeded is the canonical error for max_lexer_states overflow.
var ErrStateLimitExceeded = &Error{Kind: StateLimitExceeded, Message: "max_lexer_states exceeded"}
