// Package mask implements spec.md §4.5's bias (mask) computer: a trie
// walk over a vocab.Trie that consults a Stepper (decode's lexer+
// recognizer driver) at every byte, accumulating the set of token ids
// that keep the grammar alive.
package mask

// Bitset is a dense bit vector sized to a vocabulary, the wire-level
// sample_mask shape spec.md §6 describes ("bit vector sized to
// vocabulary").
type Bitset struct {
	words []uint64
	n     int
}

// NewBitset returns an all-zero Bitset over n token ids.
func NewBitset(n int) *Bitset {
	return &Bitset{words: make([]uint64, (n+63)/64), n: n}
}

// Set marks token id i as allowed.
func (b *Bitset) Set(i int) {
	if i < 0 || i >= b.n {
		return
	}
	b.words[i/64] |= 1 << (uint(i) % 64)
}

// Test reports whether token id i is allowed.
func (b *Bitset) Test(i int) bool {
	if i < 0 || i >= b.n {
		return false
	}
	return b.words[i/64]&(1<<(uint(i)%64)) != 0
}

// Len returns the vocabulary size this Bitset is sized to.
func (b *Bitset) Len() int { return b.n }

// Count returns the number of set bits.
func (b *Bitset) Count() int {
	c := 0
	for _, w := range b.words {
		for w != 0 {
			w &= w - 1
			c++
		}
	}
	return c
}

// Bytes packs the bitset little-endian-per-word, the wire encoding a
// caller serializing api.StepResult.SampleMask would use.
func (b *Bitset) Bytes() []byte {
	out := make([]byte, len(b.words)*8)
	for i, w := range b.words {
		for k := 0; k < 8; k++ {
			out[i*8+k] = byte(w >> (8 * k))
		}
	}
	return out
}
