package rxdfa

import "testing"

func runLexeme(t *testing.T, d *DFA, cache *Cache, allowed LexemeSet, input string) (StateID, Desc) {
	t.Helper()
	id, err := d.InitialState(cache, allowed)
	if err != nil {
		t.Fatalf("InitialState: %v", err)
	}
	for i := 0; i < len(input); i++ {
		next, err := d.Transition(cache, id, input[i], d.Config.StepFuel)
		if err != nil {
			t.Fatalf("Transition(%q): %v", input[i:i+1], err)
		}
		id = next
	}
	return id, d.StateDesc(cache, id)
}

func allOf(n int) LexemeSet {
	s := NewLexemeSet(n)
	for i := 0; i < n; i++ {
		s.Add(LexemeID(i))
	}
	return s
}

func TestDFA_Literal(t *testing.T) {
	// lexeme 0: "ab"
	lit := Concat(ByteNode{Set: NewByteSet('a')}, ByteNode{Set: NewByteSet('b')})
	d := New([]Node{lit}, DefaultConfig())
	cache := NewCache(1000)

	_, desc := runLexeme(t, d, cache, allOf(1), "ab")
	if !desc.HasLowestMatch || desc.LowestAccepting != 0 {
		t.Fatalf("expected lexeme 0 to match, got %+v", desc)
	}

	cache2 := NewCache(1000)
	id, err := d.InitialState(cache2, allOf(1))
	if err != nil {
		t.Fatal(err)
	}
	next, err := d.Transition(cache2, id, 'x', d.Config.StepFuel)
	if err != nil {
		t.Fatal(err)
	}
	if next != DeadState {
		t.Fatalf("expected dead state on wrong byte, got %v", next)
	}
}

func TestDFA_UnionAndStar(t *testing.T) {
	// lexeme 0: (a|b)+
	ab := Union(ByteNode{Set: NewByteSet('a')}, ByteNode{Set: NewByteSet('b')})
	plus := Plus(ab)
	d := New([]Node{plus}, DefaultConfig())
	cache := NewCache(1000)

	for _, in := range []string{"a", "b", "aba", "abaa", "aabaa", "aaaaa"} {
		_, desc := runLexeme(t, d, cache, allOf(1), in)
		if !desc.HasLowestMatch {
			t.Errorf("input %q: expected match", in)
		}
	}
}

func TestDFA_Repetition3to5(t *testing.T) {
	// ab: "a"|"b"; start: ab{3,5} expanded as a bounded union of concatenations.
	abSym := Union(ByteNode{Set: NewByteSet('a')}, ByteNode{Set: NewByteSet('b')})
	var alts []Node
	for n := 3; n <= 5; n++ {
		node := Node(Empty)
		for i := 0; i < n; i++ {
			node = Concat(node, abSym)
		}
		alts = append(alts, node)
	}
	root := Union(alts...)
	d := New([]Node{root}, DefaultConfig())

	accept := []string{"aba", "abaa", "aabaa", "aaaaa"}
	reject := []string{"aa", "aaaaaa"}

	for _, in := range accept {
		cache := NewCache(1000)
		_, desc := runLexeme(t, d, cache, allOf(1), in)
		if !desc.HasLowestMatch {
			t.Errorf("accept case %q: expected match, desc=%+v", in, desc)
		}
	}
	for _, in := range reject {
		cache := NewCache(1000)
		id, desc := runLexeme(t, d, cache, allOf(1), in)
		if desc.HasLowestMatch && id != DeadState {
			// "aaaaaa" is rejected because it overruns every alternative's
			// length, landing on DeadState partway through; "aa" is
			// rejected because it is a live prefix but never nullable.
			t.Errorf("reject case %q: unexpectedly matched", in)
		}
	}
}

func TestDFA_Substring(t *testing.T) {
	words := [][]byte{[]byte("The"), []byte("quick"), []byte("brown"), []byte("fox"),
		[]byte("jumps"), []byte("over"), []byte("the"), []byte("lazy"), []byte("dog.")}
	matcher, err := NewSubstringMatcher(words, []byte(" "))
	if err != nil {
		t.Fatal(err)
	}
	d := New([]Node{matcher.Start()}, DefaultConfig())

	accept := []string{"The quick brown fox", "dog."}
	for _, in := range accept {
		cache := NewCache(10000)
		_, desc := runLexeme(t, d, cache, allOf(1), in)
		if !desc.HasLowestMatch {
			t.Errorf("expected %q to be accepted", in)
		}
	}

	cache := NewCache(10000)
	id, err := d.InitialState(cache, allOf(1))
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < len("brown fx"); i++ {
		next, err := d.Transition(cache, id, "brown fx"[i], d.Config.StepFuel)
		if err != nil {
			t.Fatal(err)
		}
		id = next
		if id == DeadState {
			break
		}
	}
	if id != DeadState {
		t.Fatalf("expected %q to be rejected, ended in state %v", "brown fx", id)
	}
}
