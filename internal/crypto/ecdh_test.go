package crypto_test

import (
	"crypto/ecdh"
	"crypto/rand"
	"crypto/x509"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"safechat/internal/crypto"
)

func TestKeyExchange_SharedSecretAgrees(t *testing.T) {
	kx := crypto.NewKeyExchange()
	alice, err := kx.GenerateKeyPair()
	require.NoError(t, err)
	bob, err := kx.GenerateKeyPair()
	require.NoError(t, err)

	ab, err := kx.SharedSecret(bob.PublicKey, alice.PrivateKey)
	require.NoError(t, err)
	ba, err := kx.SharedSecret(alice.PublicKey, bob.PrivateKey)
	require.NoError(t, err)

	assert.Equal(t, ab.Bytes(), ba.Bytes())
	assert.Len(t, ab.Bytes(), 32)

	ab.Destroy()
	assert.True(t, ab.Destroyed())
	assert.Nil(t, ab.Bytes())
}

func TestKeyExchange_PairsAreFresh(t *testing.T) {
	kx := crypto.NewKeyExchange()
	a, err := kx.GenerateKeyPair()
	require.NoError(t, err)
	b, err := kx.GenerateKeyPair()
	require.NoError(t, err)
	assert.NotEqual(t, a.PublicKey, b.PublicKey)
	assert.NotEqual(t, a.PrivateKey, b.PrivateKey)
}

func TestKeyExchange_MalformedKeys(t *testing.T) {
	kx := crypto.NewKeyExchange()
	pair, err := kx.GenerateKeyPair()
	require.NoError(t, err)

	_, err = kx.SharedSecret([]byte("not a key"), pair.PrivateKey)
	assert.ErrorIs(t, err, crypto.ErrKeyAgreement)

	_, err = kx.SharedSecret(pair.PublicKey, []byte("not a key"))
	assert.ErrorIs(t, err, crypto.ErrKeyAgreement)

	_, err = kx.SharedSecret(pair.PublicKey, nil)
	assert.ErrorIs(t, err, crypto.ErrKeyAgreement)
}

func TestKeyExchange_ForeignCurve(t *testing.T) {
	kx := crypto.NewKeyExchange()
	pair, err := kx.GenerateKeyPair()
	require.NoError(t, err)

	other, err := ecdh.X25519().GenerateKey(rand.Reader)
	require.NoError(t, err)
	foreignPub, err := x509.MarshalPKIXPublicKey(other.PublicKey())
	require.NoError(t, err)
	foreignPriv, err := x509.MarshalPKCS8PrivateKey(other)
	require.NoError(t, err)

	_, err = kx.SharedSecret(foreignPub, pair.PrivateKey)
	assert.ErrorIs(t, err, crypto.ErrKeyAgreement)
	_, err = kx.SharedSecret(pair.PublicKey, foreignPriv)
	assert.ErrorIs(t, err, crypto.ErrKeyAgreement)
}
