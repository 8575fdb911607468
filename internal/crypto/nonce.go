package crypto

import (
	"crypto/rand"
	"fmt"
	"io"
)

// NonceProvider hands out nonces that never repeat for a given key.
type NonceProvider interface {
	Nonce(size int) ([]byte, error)
}

// RandomNonces draws nonces from a random source.
type RandomNonces struct {
	r io.Reader
}

// NewRandomNonces returns a provider reading from r, or from crypto/rand when
// r is nil.
func NewRandomNonces(r io.Reader) *RandomNonces {
	if r == nil {
		r = rand.Reader
	}
	return &RandomNonces{r: r}
}

// Nonce returns size fresh random bytes.
func (n *RandomNonces) Nonce(size int) ([]byte, error) {
	b := make([]byte, size)
	if _, err := io.ReadFull(n.r, b); err != nil {
		return nil, fmt.Errorf("read nonce: %w", err)
	}
	return b, nil
}
