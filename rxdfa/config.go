package rxdfa

// Config bounds the work a DFA will do to build new states, the same role
// github.com/coregx/coregex's dfa/lazy.Config plays for its determinizer.
type Config struct {
	// InitialFuel bounds the total derivative sub-computations spent
	// building the start state for a fresh lexer context.
	//
	// Default: 1,000,000 (matches ParserLimits.InitialLexerFuel in
	// grammar.Limits).
	InitialFuel int

	// StepFuel bounds the work spent building each subsequent transition.
	//
	// Default: 200,000 (matches ParserLimits.StepLexerFuel).
	StepFuel int

	// MaxStates caps the number of distinct states the cache will ever
	// hold. Exceeding it returns ErrStateLimitExceeded rather than
	// growing unbounded.
	//
	// Default: 250,000.
	MaxStates int
}

// DefaultConfig returns the limits from spec.md §6's Limits object.
func DefaultConfig() Config {
	return Config{
		InitialFuel: 1_000_000,
		StepFuel:    200_000,
		MaxStates:   250_000,
	}
}
