package crypto_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"safechat/internal/crypto"
)

func TestDeriveKey_Deterministic(t *testing.T) {
	kdf := crypto.NewKeyDerivation()
	key := []byte("input keying material")

	a, err := kdf.DeriveKey(key, []byte{0x01}, 64)
	require.NoError(t, err)
	b, err := kdf.DeriveKey(key, []byte{0x01}, 64)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)

	// A shorter output is a prefix of the longer one.
	short, err := kdf.DeriveKey(key, []byte{0x01}, 32)
	require.NoError(t, err)
	assert.Equal(t, a[:32], short)
}

func TestDeriveKey_SaltSeparates(t *testing.T) {
	kdf := crypto.NewKeyDerivation()
	key := []byte("chain key")

	msg, err := kdf.DeriveKey(key, []byte{0x01}, 32)
	require.NoError(t, err)
	next, err := kdf.DeriveKey(key, []byte{0x02}, 32)
	require.NoError(t, err)
	assert.NotEqual(t, msg, next)
}

func TestDeriveKey_InvalidLengths(t *testing.T) {
	kdf := crypto.NewKeyDerivation()
	_, err := kdf.DeriveKey(nil, []byte{0x01}, 32)
	assert.ErrorIs(t, err, crypto.ErrDerivation)
	_, err = kdf.DeriveKey([]byte("k"), nil, 0)
	assert.ErrorIs(t, err, crypto.ErrDerivation)
	_, err = kdf.DeriveKey([]byte("k"), nil, crypto.MaxDerivedLen+1)
	assert.ErrorIs(t, err, crypto.ErrDerivation)
}
