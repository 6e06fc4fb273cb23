package rxdfa

// Nullable reports whether n's language contains the empty string. Exposed
// for callers (grammar/earley's gen-rule split search, see
// earley/gen.go) that need to test acceptance of a bare Node without
// going through a DFA/Cache — the node graphs involved there are small and
// short-lived, so paying for full state interning would be wasted work.
func Nullable(n Node) bool { return n.nullable() }

// DeriveString derives n through every byte of s in turn, under fuel,
// returning the resulting node. Used the same way as Nullable: a cheap,
// cache-free way to replay a short byte string against a Node, rather than
// building a throwaway DFA+Cache for it.
func DeriveString(n Node, s []byte, fuel int) (_ Node, err error) {
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(outOfFuel); ok {
				err = ErrTooComplex
				return
			}
			panic(r)
		}
	}()
	d := NewDeriver(fuel)
	for _, b := range s {
		n = d.Derive(n, b)
		if n == Null {
			return Null, nil
		}
	}
	return n, nil
}
