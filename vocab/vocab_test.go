package vocab

import "testing"

func TestTrie_LongestMatch(t *testing.T) {
	env := NewMemTokEnv([][]byte{
		[]byte("a"),
		[]byte("ab"),
		[]byte("abc"),
	}, 3)
	trie := Build(env)

	id, n, ok := trie.LongestMatch([]byte("abcdef"))
	if !ok || id != 2 || n != 3 {
		t.Fatalf("expected longest match to be token 2 (\"abc\") of length 3, got id=%d n=%d ok=%v", id, n, ok)
	}

	if _, _, ok := trie.LongestMatch([]byte("xyz")); ok {
		t.Fatal("expected no match when no token is even a one-byte prefix")
	}
}

func TestMemTokEnv_Tokenize(t *testing.T) {
	env := NewMemTokEnv([][]byte{
		[]byte("a"),
		[]byte("ab"),
		[]byte("c"),
	}, 3)

	got := env.Tokenize([]byte("abc"))
	want := []TokenID{1, 2}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestMemTokEnv_SpecialTokenID(t *testing.T) {
	env := NewMemTokEnv([][]byte{[]byte("x")}, 1).WithSpecials(map[string]TokenID{"eot": 0})
	id, ok := env.SpecialTokenID("eot")
	if !ok || id != 0 {
		t.Fatalf("expected \"eot\" to resolve to token 0, got id=%d ok=%v", id, ok)
	}
	if _, ok := env.SpecialTokenID("missing"); ok {
		t.Fatal("expected an unknown special token name to fail to resolve")
	}
}

func TestMemTokEnv_TokenBytesOutOfRange(t *testing.T) {
	env := NewMemTokEnv([][]byte{[]byte("a")}, 1)
	if b := env.TokenBytes(-1); b != nil {
		t.Fatalf("expected nil for a negative token id, got %q", b)
	}
	if b := env.TokenBytes(5); b != nil {
		t.Fatalf("expected nil for an out-of-range token id, got %q", b)
	}
}
