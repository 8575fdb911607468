package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/chacha20poly1305"
)

const (
	// KeySize is the key length of both engines.
	KeySize = 32
	// NonceSize is the nonce prefix of every ciphertext.
	NonceSize = 12
	// TagSize is the authentication tag appended by both engines.
	TagSize = 16
	// DefaultChunkSize is the plaintext segment size of streams.
	DefaultChunkSize = 64 * 1024
)

// Engine is an authenticated symmetric cipher. Implementations hold no state
// besides their configuration and are safe for concurrent use.
type Engine interface {
	Name() string
	Encrypt(plaintext, key, associatedData []byte) ([]byte, error)
	Decrypt(ciphertext, key, associatedData []byte) ([]byte, error)
	NewEncryptWriter(w io.Writer, key, associatedData []byte) (io.WriteCloser, error)
	NewDecryptReader(r io.Reader, key, associatedData []byte) (io.Reader, error)
}

// AEADEngine implements Engine on top of a cipher.AEAD constructor.
type AEADEngine struct {
	name      string
	newAEAD   func(key []byte) (cipher.AEAD, error)
	nonces    NonceProvider
	chunkSize int
	log       *logrus.Entry
}

// Option configures an AEADEngine.
type Option func(*AEADEngine)

// WithNonceProvider replaces the random nonce source.
func WithNonceProvider(p NonceProvider) Option {
	return func(e *AEADEngine) { e.nonces = p }
}

// WithChunkSize sets the stream segment size. Non-positive values keep the
// default.
func WithChunkSize(n int) Option {
	return func(e *AEADEngine) {
		if n > 0 {
			e.chunkSize = n
		}
	}
}

// NewAESGCM returns an AES-256-GCM engine.
func NewAESGCM(opts ...Option) *AEADEngine {
	return newEngine(string(AlgorithmAESGCM), func(key []byte) (cipher.AEAD, error) {
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, err
		}
		return cipher.NewGCM(block)
	}, opts)
}

// NewChaCha20Poly1305 returns a ChaCha20-Poly1305 engine.
func NewChaCha20Poly1305(opts ...Option) *AEADEngine {
	return newEngine(string(AlgorithmChaCha20Poly1305), chacha20poly1305.New, opts)
}

func newEngine(name string, newAEAD func([]byte) (cipher.AEAD, error), opts []Option) *AEADEngine {
	e := &AEADEngine{
		name:      name,
		newAEAD:   newAEAD,
		nonces:    NewRandomNonces(nil),
		chunkSize: DefaultChunkSize,
	}
	for _, o := range opts {
		o(e)
	}
	e.log = logrus.WithFields(logrus.Fields{"component": "crypto", "engine": name})
	return e
}

// Name returns the algorithm name.
func (e *AEADEngine) Name() string { return e.name }

// Encrypt seals plaintext under key and returns nonce || ciphertext || tag.
func (e *AEADEngine) Encrypt(plaintext, key, associatedData []byte) ([]byte, error) {
	aead, err := e.aead(key)
	if err != nil {
		return nil, err
	}
	nonce, err := e.nonces.Nonce(NonceSize)
	if err != nil {
		return nil, err
	}
	out := make([]byte, NonceSize, NonceSize+len(plaintext)+aead.Overhead())
	copy(out, nonce)
	return aead.Seal(out, nonce, plaintext, associatedData), nil
}

// Decrypt opens the output of Encrypt.
func (e *AEADEngine) Decrypt(ciphertext, key, associatedData []byte) ([]byte, error) {
	if len(ciphertext) < NonceSize {
		e.log.WithField("len", len(ciphertext)).Debug("ciphertext shorter than nonce")
		return nil, ErrDecryptionUnknownFailure
	}
	aead, err := e.aead(key)
	if err != nil {
		return nil, err
	}
	pt, err := aead.Open(nil, ciphertext[:NonceSize], ciphertext[NonceSize:], associatedData)
	if err != nil {
		e.log.Debug("tag check failed")
		return nil, ErrAuthenticationFailed
	}
	return pt, nil
}

func (e *AEADEngine) aead(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidKeySize, len(key), KeySize)
	}
	return e.newAEAD(key)
}

// Compile-time assertion that AEADEngine implements Engine.
var _ Engine = (*AEADEngine)(nil)
