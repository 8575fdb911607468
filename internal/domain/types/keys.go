package types

import (
	"errors"

	"safechat/internal/util/memzero"
)

// ErrKeyDestroyed is returned when key material is used after Destroy.
var ErrKeyDestroyed = errors.New("key material already destroyed")

// secret owns a key buffer. Constructors take ownership of the slice they are
// given; callers must not keep using it.
type secret struct {
	b         []byte
	destroyed bool
}

// Bytes returns the owned buffer, or nil once destroyed.
func (s *secret) Bytes() []byte {
	if s == nil || s.destroyed {
		return nil
	}
	return s.b
}

// Len returns the key length in bytes.
func (s *secret) Len() int { return len(s.Bytes()) }

// Destroyed reports whether Destroy has run.
func (s *secret) Destroyed() bool { return s == nil || s.destroyed }

// Destroy zeroes the buffer. Safe to call more than once.
func (s *secret) Destroy() {
	if s == nil || s.destroyed {
		return
	}
	memzero.Zero(s.b)
	s.b = nil
	s.destroyed = true
}

// RootKey seeds each ratchet epoch. Persisted per contact.
type RootKey struct{ secret }

// NewRootKey takes ownership of b.
func NewRootKey(b []byte) *RootKey { return &RootKey{secret{b: b}} }

// ChainKey advances once per message within an epoch. Persisted per contact
// and direction.
type ChainKey struct{ secret }

// NewChainKey takes ownership of b.
func NewChainKey(b []byte) *ChainKey { return &ChainKey{secret{b: b}} }

// MessageKey encrypts exactly one message body and is then destroyed.
type MessageKey struct{ secret }

// NewMessageKey takes ownership of b.
func NewMessageKey(b []byte) *MessageKey { return &MessageKey{secret{b: b}} }

// Use hands the key to fn and destroys it afterwards, whether fn fails or not.
func (k *MessageKey) Use(fn func(key []byte) error) error {
	if k.Destroyed() {
		return ErrKeyDestroyed
	}
	defer k.Destroy()
	return fn(k.Bytes())
}

// SharedSecret is the raw Diffie-Hellman output. Never persisted.
type SharedSecret struct{ secret }

// NewSharedSecret takes ownership of b.
func NewSharedSecret(b []byte) *SharedSecret { return &SharedSecret{secret{b: b}} }

// ContactLocalKey protects everything stored locally about one contact.
type ContactLocalKey struct{ secret }

// NewContactLocalKey takes ownership of b.
func NewContactLocalKey(b []byte) *ContactLocalKey { return &ContactLocalKey{secret{b: b}} }

// QueueKey protects outgoing messages buffered before the conversation is
// confirmed.
type QueueKey struct{ secret }

// NewQueueKey takes ownership of b.
func NewQueueKey(b []byte) *QueueKey { return &QueueKey{secret{b: b}} }

// AsymmetricKeyPair is an encoded EC key pair: PKIX public key, PKCS#8
// private key.
type AsymmetricKeyPair struct {
	PublicKey  []byte `json:"public_key"`
	PrivateKey []byte `json:"private_key"`
}

// Destroy wipes the private half.
func (kp *AsymmetricKeyPair) Destroy() {
	if kp == nil {
		return
	}
	memzero.Zero(kp.PrivateKey)
	kp.PrivateKey = nil
}
