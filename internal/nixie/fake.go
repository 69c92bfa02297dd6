package nixie

import (
	"errors"
	"sync"
)

// FakeBus is a test double that records every transmitted word.
type FakeBus struct {
	mu sync.Mutex

	// TxError, if set, will be returned by Tx.
	TxError error

	words []uint32
}

// Tx records w as a 24-bit word.
func (f *FakeBus) Tx(w, r []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.TxError != nil {
		return f.TxError
	}
	if len(w) != 3 {
		return errors.New("fake bus: expected a 3 byte write")
	}
	f.words = append(f.words, uint32(w[0])<<16|uint32(w[1])<<8|uint32(w[2]))
	return nil
}

// Words returns a copy of every word written so far.
func (f *FakeBus) Words() []uint32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]uint32(nil), f.words...)
}

// Last returns the most recent word, or false if nothing was written.
func (f *FakeBus) Last() (uint32, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.words) == 0 {
		return 0, false
	}
	return f.words[len(f.words)-1], true
}

// Reset forgets every recorded word.
func (f *FakeBus) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.words = nil
}

// Decode returns the character and tube that word shows. A word with no
// lit cathode decodes as a space; a word with no tube selected returns
// tube -1.
func Decode(word uint32) (c rune, tube int) {
	c, tube = ' ', -1
	for i, bit := range SelectBits {
		if word&(1<<bit) != 0 {
			tube = i
			break
		}
	}
	for ch, bit := range charBits {
		if word&(1<<bit) != 0 {
			c = ch
			break
		}
	}
	return c, tube
}
