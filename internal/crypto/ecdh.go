package crypto

import (
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/x509"
	"fmt"
	"io"

	"safechat/internal/domain"
	"safechat/internal/domain/types"
)

// KeyExchange generates P-256 key pairs and computes ECDH shared secrets.
// Public keys are PKIX DER, private keys PKCS#8 DER.
type KeyExchange struct {
	curve ecdh.Curve
	rand  io.Reader
}

// NewKeyExchange returns a P-256 key exchange reading from crypto/rand.
func NewKeyExchange() *KeyExchange {
	return &KeyExchange{curve: ecdh.P256(), rand: rand.Reader}
}

// GenerateKeyPair returns a fresh encoded key pair.
func (k *KeyExchange) GenerateKeyPair() (domain.AsymmetricKeyPair, error) {
	priv, err := k.curve.GenerateKey(k.rand)
	if err != nil {
		return domain.AsymmetricKeyPair{}, fmt.Errorf("generate key: %w", err)
	}
	pub, err := x509.MarshalPKIXPublicKey(priv.PublicKey())
	if err != nil {
		return domain.AsymmetricKeyPair{}, fmt.Errorf("encode public key: %w", err)
	}
	der, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return domain.AsymmetricKeyPair{}, fmt.Errorf("encode private key: %w", err)
	}
	return domain.AsymmetricKeyPair{PublicKey: pub, PrivateKey: der}, nil
}

// SharedSecret returns the raw ECDH output of privateKey and publicKey.
// The caller owns the result and must destroy it after derivation.
func (k *KeyExchange) SharedSecret(publicKey, privateKey []byte) (*domain.SharedSecret, error) {
	pub, err := k.parsePublic(publicKey)
	if err != nil {
		return nil, err
	}
	priv, err := k.parsePrivate(privateKey)
	if err != nil {
		return nil, err
	}
	secret, err := priv.ECDH(pub)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyAgreement, err)
	}
	return types.NewSharedSecret(secret), nil
}

func (k *KeyExchange) parsePublic(der []byte) (*ecdh.PublicKey, error) {
	key, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("%w: public key: %v", ErrKeyAgreement, err)
	}
	var pub *ecdh.PublicKey
	switch v := key.(type) {
	case *ecdsa.PublicKey:
		pub, err = v.ECDH()
	case *ecdh.PublicKey:
		pub = v
	default:
		return nil, fmt.Errorf("%w: public key type %T", ErrKeyAgreement, key)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: public key: %v", ErrKeyAgreement, err)
	}
	if pub.Curve() != k.curve {
		return nil, fmt.Errorf("%w: public key on foreign curve", ErrKeyAgreement)
	}
	return pub, nil
}

func (k *KeyExchange) parsePrivate(der []byte) (*ecdh.PrivateKey, error) {
	key, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("%w: private key: %v", ErrKeyAgreement, err)
	}
	var priv *ecdh.PrivateKey
	switch v := key.(type) {
	case *ecdsa.PrivateKey:
		priv, err = v.ECDH()
	case *ecdh.PrivateKey:
		priv = v
	default:
		return nil, fmt.Errorf("%w: private key type %T", ErrKeyAgreement, key)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: private key: %v", ErrKeyAgreement, err)
	}
	if priv.Curve() != k.curve {
		return nil, fmt.Errorf("%w: private key on foreign curve", ErrKeyAgreement)
	}
	return priv, nil
}
