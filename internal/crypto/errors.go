package crypto

import "errors"

var (
	// ErrKeyAgreement is returned for malformed keys or keys on another curve.
	ErrKeyAgreement = errors.New("crypto: key agreement failed")
	// ErrDerivation is returned for invalid derivation inputs.
	ErrDerivation = errors.New("crypto: key derivation failed")
	// ErrAuthenticationFailed is returned when the AEAD tag does not verify.
	ErrAuthenticationFailed = errors.New("crypto: authentication failed")
	// ErrDecryptionUnknownFailure is returned for ciphertext that cannot be
	// parsed at all, e.g. shorter than the nonce.
	ErrDecryptionUnknownFailure = errors.New("crypto: malformed ciphertext")
	// ErrUnsupportedAlgorithm is returned for unknown engine names.
	ErrUnsupportedAlgorithm = errors.New("crypto: unsupported algorithm")
	// ErrInvalidKeySize is returned when an AEAD key has the wrong length.
	ErrInvalidKeySize = errors.New("crypto: invalid key size")
)
