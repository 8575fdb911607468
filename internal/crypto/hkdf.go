package crypto

import (
	"crypto/sha512"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// KeyDerivation expands key material with HKDF-SHA512 and no info.
type KeyDerivation struct{}

// NewKeyDerivation returns the HKDF-SHA512 derivation.
func NewKeyDerivation() KeyDerivation { return KeyDerivation{} }

// MaxDerivedLen is the HKDF-SHA512 output limit.
const MaxDerivedLen = 255 * sha512.Size

// DeriveKey returns outLen bytes derived from key and salt. The same inputs
// always give the same output.
func (KeyDerivation) DeriveKey(key, salt []byte, outLen int) ([]byte, error) {
	if len(key) == 0 {
		return nil, fmt.Errorf("%w: empty key", ErrDerivation)
	}
	if outLen <= 0 || outLen > MaxDerivedLen {
		return nil, fmt.Errorf("%w: output length %d", ErrDerivation, outLen)
	}
	out := make([]byte, outLen)
	if _, err := io.ReadFull(hkdf.New(sha512.New, key, salt, nil), out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDerivation, err)
	}
	return out, nil
}
