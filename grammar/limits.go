package grammar

import "go.uber.org/zap"

// Limits bounds compile-time and per-step work, matching spec.md §6's
// Limits object exactly (field-for-field, same defaults).
type Limits struct {
	// MaxItemsInRow caps Earley items per row.
	// Default: 2000.
	MaxItemsInRow int

	// InitialLexerFuel bounds derivative work building a lexer context's
	// start state.
	// Default: 1,000,000.
	InitialLexerFuel int

	// StepLexerFuel bounds derivative work per transition.
	// Default: 200,000.
	StepLexerFuel int

	// MaxLexerStates caps the number of distinct RxDFA states cached per
	// parser.
	// Default: 250,000.
	MaxLexerStates int

	// MaxGrammarSize caps the number of compiled symbols, guarding
	// against pathological or adversarial grammar sources.
	// Default: 500,000.
	MaxGrammarSize int

	// StepMaxItems caps total Earley items examined in a single
	// compute_mask/commit_token step, across every row touched.
	// Default: 50,000.
	StepMaxItems int

	// Logger receives compile-time diagnostics (grammar size, elaboration
	// decisions) at Debug level and limit violations at Warn level. A nil
	// Logger is treated as zap.NewNop(), so library use requires no setup.
	Logger *zap.Logger
}

// DefaultLimits returns spec.md §6's defaults.
func DefaultLimits() Limits {
	return Limits{
		MaxItemsInRow:    2000,
		InitialLexerFuel: 1_000_000,
		StepLexerFuel:    200_000,
		MaxLexerStates:   250_000,
		MaxGrammarSize:   500_000,
		StepMaxItems:     50_000,
		Logger:           zap.NewNop(),
	}
}

// logger returns lim.Logger, or a no-op logger if none was set — callers
// constructing a Limits by hand (rather than starting from
// DefaultLimits) shouldn't have to remember to set one.
func (lim Limits) logger() *zap.Logger {
	if lim.Logger != nil {
		return lim.Logger
	}
	return zap.NewNop()
}
