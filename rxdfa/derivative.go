package rxdfa

// Deriver computes Brzozowski derivatives under a decrementing fuel budget.
// Fuel bounds the total number of derivative sub-computations performed
// while building any single transition, which in turn bounds the worst
// case blow-up from nodes like Intersect/Negate whose derivative expands
// proportionally to the number of their parts.
//
// A Deriver is cheap to create and holds no state beyond the budget, so
// DFA.Transition creates one per transition (seeded with the fuel its
// caller passes, StepFuel throughout this module) and discards it
// afterwards.
type Deriver struct {
	fuel int
}

// NewDeriver creates a Deriver with the given fuel budget.
func NewDeriver(fuel int) *Deriver { return &Deriver{fuel: fuel} }

// outOfFuel is the panic value Derive raises when the fuel budget is
// exhausted mid-computation; callers see it surface as ErrTooComplex
// from Transition.
type outOfFuel struct{}

// Derive computes the derivative of n with respect to byte b, i.e. the
// node matching every suffix w such that b·w is matched by n.
//
// Panics with outOfFuel{} if the fuel budget is exhausted; callers must
// recover (DFA.Transition does this) and convert it to ErrTooComplex.
func (d *Deriver) Derive(n Node, b byte) Node {
	d.charge()
	switch t := n.(type) {
	case nullNode:
		return Null
	case emptyNode:
		return Null
	case ByteNode:
		if t.Set.Contains(b) {
			return Empty
		}
		return Null
	case ConcatNode:
		left := Concat(d.Derive(t.Left, b), t.Right)
		if t.Left.nullable() {
			return Union(left, d.Derive(t.Right, b))
		}
		return left
	case UnionNode:
		parts := make([]Node, len(t.Parts))
		for i, p := range t.Parts {
			parts[i] = d.Derive(p, b)
		}
		return Union(parts...)
	case IntersectNode:
		parts := make([]Node, len(t.Parts))
		for i, p := range t.Parts {
			parts[i] = d.Derive(p, b)
		}
		return Intersect(parts...)
	case NegateNode:
		return Negate(d.Derive(t.Inner, b))
	case StarNode:
		return Concat(d.Derive(t.Inner, b), t)
	case MultipleOfNode:
		return d.deriveMultipleOf(t, b)
	case SubstringNode:
		return d.deriveSubstring(t, b)
	default:
		return Null
	}
}

func (d *Deriver) charge() {
	d.fuel--
	if d.fuel <= 0 {
		panic(outOfFuel{})
	}
}

// deriveMultipleOf advances the running remainder by one ASCII digit. Any
// non-digit byte kills the branch (Null); this node only ever appears
// nested under a ByteNode-constrained digit run produced by the grammar
// compiler, so in practice the digit check is redundant but kept for
// safety when the node is exercised directly in tests.
func (d *Deriver) deriveMultipleOf(n MultipleOfNode, b byte) Node {
	if b < '0' || b > '9' {
		return Null
	}
	digit := int(b - '0')
	next := (n.Remainder*10 + digit) % n.Divisor
	return MultipleOfNode{Divisor: n.Divisor, Remainder: next}
}
