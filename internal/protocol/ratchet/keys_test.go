package ratchet_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"safechat/internal/crypto"
	"safechat/internal/domain/types"
	"safechat/internal/protocol/ratchet"
)

func newKeyRepository(t *testing.T) *ratchet.KeyRepository {
	t.Helper()
	r, err := ratchet.NewKeyRepository(crypto.NewKeyExchange(), crypto.NewKeyDerivation(), ratchet.DefaultSalts())
	require.NoError(t, err)
	return r
}

func sharedSecret(t *testing.T, r *ratchet.KeyRepository) (a, b *types.SharedSecret) {
	t.Helper()
	alice, err := r.GenerateKeyPair()
	require.NoError(t, err)
	bob, err := r.GenerateKeyPair()
	require.NoError(t, err)
	a, err = r.CreateDiffieHellmanSharedSecret(bob.PublicKey, alice.PrivateKey)
	require.NoError(t, err)
	b, err = r.CreateDiffieHellmanSharedSecret(alice.PublicKey, bob.PrivateKey)
	require.NoError(t, err)
	return a, b
}

func TestDefaultSalts(t *testing.T) {
	s := ratchet.DefaultSalts()
	assert.Equal(t, []byte{0x01}, s.Message)
	assert.Equal(t, []byte{0x02}, s.Chain)
}

func TestNewKeyRepository_RejectsEqualSalts(t *testing.T) {
	_, err := ratchet.NewKeyRepository(crypto.NewKeyExchange(), crypto.NewKeyDerivation(),
		ratchet.Salts{Message: []byte{0x07}, Chain: []byte{0x07}})
	assert.Error(t, err)

	_, err = ratchet.NewKeyRepository(crypto.NewKeyExchange(), crypto.NewKeyDerivation(),
		ratchet.Salts{Message: []byte{0x01}})
	assert.Error(t, err)
}

func TestDeriveRootKeys_Deterministic(t *testing.T) {
	r := newKeyRepository(t)
	ssA, ssB := sharedSecret(t, r)
	rootBytes := make([]byte, ratchet.RootKeySize)
	rootBytes[0] = 9

	rootA, chainA, err := r.DeriveRootKeys(types.NewRootKey(append([]byte(nil), rootBytes...)), ssA)
	require.NoError(t, err)
	rootB, chainB, err := r.DeriveRootKeys(types.NewRootKey(append([]byte(nil), rootBytes...)), ssB)
	require.NoError(t, err)

	assert.Equal(t, rootA.Bytes(), rootB.Bytes())
	assert.Equal(t, chainA.Bytes(), chainB.Bytes())
	assert.NotEqual(t, rootA.Bytes(), chainA.Bytes())
	assert.Len(t, rootA.Bytes(), ratchet.RootKeySize)
	assert.Len(t, chainA.Bytes(), ratchet.ChainKeySize)

	// The shared secret is single use.
	assert.True(t, ssA.Destroyed())
	assert.True(t, ssB.Destroyed())
}

func TestDeriveRootKeys_DestroyedInput(t *testing.T) {
	r := newKeyRepository(t)
	ss, _ := sharedSecret(t, r)
	root := types.NewRootKey(make([]byte, ratchet.RootKeySize))
	root.Destroy()

	_, _, err := r.DeriveRootKeys(root, ss)
	assert.ErrorIs(t, err, types.ErrKeyDestroyed)
	assert.True(t, ss.Destroyed())

	_, _, err = r.DeriveRootKeys(types.NewRootKey(make([]byte, 32)), ss)
	assert.ErrorIs(t, err, types.ErrKeyDestroyed)
}

func TestDeriveChainKeys_NeverRepeats(t *testing.T) {
	r := newKeyRepository(t)
	chain := types.NewChainKey([]byte("0123456789abcdef0123456789abcdef"))
	seen := map[string]bool{}

	for i := 0; i < 200; i++ {
		next, mk, err := r.DeriveChainKeys(chain)
		require.NoError(t, err)
		assert.NotEqual(t, next.Bytes(), mk.Bytes())
		k := string(mk.Bytes())
		require.False(t, seen[k], "message key repeated at step %d", i)
		seen[k] = true
		seen[string(next.Bytes())] = true
		chain.Destroy()
		chain = next
	}
}

func TestDeriveChainKeys_UsesSalts(t *testing.T) {
	kdf := crypto.NewKeyDerivation()
	r := newKeyRepository(t)
	ckBytes := []byte("0123456789abcdef0123456789abcdef")

	next, mk, err := r.DeriveChainKeys(types.NewChainKey(append([]byte(nil), ckBytes...)))
	require.NoError(t, err)

	wantMK, err := kdf.DeriveKey(ckBytes, []byte{0x01}, ratchet.MessageKeySize)
	require.NoError(t, err)
	wantCK, err := kdf.DeriveKey(ckBytes, []byte{0x02}, ratchet.ChainKeySize)
	require.NoError(t, err)
	assert.Equal(t, wantMK, mk.Bytes())
	assert.Equal(t, wantCK, next.Bytes())
}

func TestMessageKey_UseDestroys(t *testing.T) {
	mk := types.NewMessageKey([]byte("0123456789abcdef0123456789abcdef"))
	var seen []byte
	require.NoError(t, mk.Use(func(k []byte) error {
		seen = append([]byte(nil), k...)
		return nil
	}))
	assert.Len(t, seen, 32)
	assert.True(t, mk.Destroyed())
	assert.ErrorIs(t, mk.Use(func([]byte) error { return nil }), types.ErrKeyDestroyed)
}
