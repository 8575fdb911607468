package ratchet

import (
	"bytes"
	"errors"
	"fmt"

	"safechat/internal/domain"
	"safechat/internal/domain/types"
)

const (
	RootKeySize    = 32
	ChainKeySize   = 32
	MessageKeySize = 32
)

var errSaltsCollide = errors.New("ratchet: message and chain salts must differ")

// Salts separates the two derivations taken from one chain key.
type Salts struct {
	Message []byte
	Chain   []byte
}

// DefaultSalts returns the fixed salts 0x01 (message) and 0x02 (chain).
func DefaultSalts() Salts {
	return Salts{Message: []byte{0x01}, Chain: []byte{0x02}}
}

// KeyExchanger generates key pairs and computes DH shared secrets.
type KeyExchanger interface {
	GenerateKeyPair() (domain.AsymmetricKeyPair, error)
	SharedSecret(publicKey, privateKey []byte) (*domain.SharedSecret, error)
}

// KeyDeriver expands key material.
type KeyDeriver interface {
	DeriveKey(key, salt []byte, outLen int) ([]byte, error)
}

// KeyRepository implements the key schedule primitives.
type KeyRepository struct {
	kx    KeyExchanger
	kdf   KeyDeriver
	salts Salts
}

// NewKeyRepository returns a repository using the given salts.
func NewKeyRepository(kx KeyExchanger, kdf KeyDeriver, salts Salts) (*KeyRepository, error) {
	if len(salts.Message) == 0 || len(salts.Chain) == 0 || bytes.Equal(salts.Message, salts.Chain) {
		return nil, errSaltsCollide
	}
	return &KeyRepository{kx: kx, kdf: kdf, salts: salts}, nil
}

// Salts returns the salts in use.
func (r *KeyRepository) Salts() Salts { return r.salts }

// GenerateKeyPair returns a fresh ratchet key pair.
func (r *KeyRepository) GenerateKeyPair() (domain.AsymmetricKeyPair, error) {
	return r.kx.GenerateKeyPair()
}

// CreateDiffieHellmanSharedSecret computes the single-use DH output.
func (r *KeyRepository) CreateDiffieHellmanSharedSecret(publicKey, privateKey []byte) (*domain.SharedSecret, error) {
	return r.kx.SharedSecret(publicKey, privateKey)
}

// InitialRootKey derives the first root key of a conversation. The secret is
// destroyed.
func (r *KeyRepository) InitialRootKey(secret *domain.SharedSecret) (*domain.RootKey, error) {
	if secret == nil {
		return nil, types.ErrKeyDestroyed
	}
	defer secret.Destroy()
	if secret.Destroyed() {
		return nil, types.ErrKeyDestroyed
	}
	out, err := r.kdf.DeriveKey(secret.Bytes(), nil, RootKeySize)
	if err != nil {
		return nil, err
	}
	return types.NewRootKey(out), nil
}

// DeriveRootKeys performs the DH ratchet step: one HKDF call over the shared
// secret salted with the root key, split into the new root key and the new
// chain key. The secret is destroyed; root stays with the caller.
func (r *KeyRepository) DeriveRootKeys(root *domain.RootKey, secret *domain.SharedSecret) (*domain.RootKey, *domain.ChainKey, error) {
	if secret == nil {
		return nil, nil, types.ErrKeyDestroyed
	}
	defer secret.Destroy()
	if root == nil || root.Destroyed() || secret.Destroyed() {
		return nil, nil, types.ErrKeyDestroyed
	}
	out, err := r.kdf.DeriveKey(secret.Bytes(), root.Bytes(), RootKeySize+ChainKeySize)
	if err != nil {
		return nil, nil, fmt.Errorf("derive root keys: %w", err)
	}
	return types.NewRootKey(out[:RootKeySize:RootKeySize]), types.NewChainKey(out[RootKeySize:]), nil
}

// DeriveChainKeys performs the symmetric ratchet step. chain stays with the
// caller and should be destroyed once the returned chain key replaces it.
func (r *KeyRepository) DeriveChainKeys(chain *domain.ChainKey) (*domain.ChainKey, *domain.MessageKey, error) {
	if chain == nil || chain.Destroyed() {
		return nil, nil, types.ErrKeyDestroyed
	}
	mk, err := r.kdf.DeriveKey(chain.Bytes(), r.salts.Message, MessageKeySize)
	if err != nil {
		return nil, nil, fmt.Errorf("derive message key: %w", err)
	}
	ck, err := r.kdf.DeriveKey(chain.Bytes(), r.salts.Chain, ChainKeySize)
	if err != nil {
		types.NewMessageKey(mk).Destroy()
		return nil, nil, fmt.Errorf("derive chain key: %w", err)
	}
	return types.NewChainKey(ck), types.NewMessageKey(mk), nil
}
