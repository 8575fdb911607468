package crypto_test

import (
	"bytes"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"safechat/internal/crypto"
)

func engines() []*crypto.AEADEngine {
	return []*crypto.AEADEngine{crypto.NewAESGCM(), crypto.NewChaCha20Poly1305()}
}

func randomBytes(t *testing.T, n int) []byte {
	t.Helper()
	b := make([]byte, n)
	_, err := rand.Read(b)
	require.NoError(t, err)
	return b
}

func TestEngine_RoundTrip(t *testing.T) {
	sizes := []int{0, 1, 15, 16, 17, 1024, 1 << 20}
	for _, e := range engines() {
		key := randomBytes(t, crypto.KeySize)
		for _, n := range sizes {
			plaintext := randomBytes(t, n)
			ad := []byte("contact-42")

			ct, err := e.Encrypt(plaintext, key, ad)
			require.NoError(t, err, "%s/%d", e.Name(), n)
			assert.Len(t, ct, crypto.NonceSize+n+crypto.TagSize)

			pt, err := e.Decrypt(ct, key, ad)
			require.NoError(t, err, "%s/%d", e.Name(), n)
			assert.True(t, bytes.Equal(plaintext, pt), "%s/%d", e.Name(), n)
		}
	}
}

func TestEngine_FreshNoncePerCall(t *testing.T) {
	for _, e := range engines() {
		key := randomBytes(t, crypto.KeySize)
		a, err := e.Encrypt([]byte("same"), key, nil)
		require.NoError(t, err)
		b, err := e.Encrypt([]byte("same"), key, nil)
		require.NoError(t, err)
		assert.NotEqual(t, a[:crypto.NonceSize], b[:crypto.NonceSize], e.Name())
	}
}

func TestEngine_BitFlipFailsAuthentication(t *testing.T) {
	for _, e := range engines() {
		key := randomBytes(t, crypto.KeySize)
		ad := []byte("header")
		ct, err := e.Encrypt([]byte("attack at dawn"), key, ad)
		require.NoError(t, err)

		for i := range ct {
			for bit := 0; bit < 8; bit++ {
				tampered := append([]byte(nil), ct...)
				tampered[i] ^= 1 << bit
				_, err := e.Decrypt(tampered, key, ad)
				require.ErrorIs(t, err, crypto.ErrAuthenticationFailed, "%s byte %d bit %d", e.Name(), i, bit)
			}
		}

		badAD := append([]byte(nil), ad...)
		badAD[0] ^= 0x80
		_, err = e.Decrypt(ct, key, badAD)
		assert.ErrorIs(t, err, crypto.ErrAuthenticationFailed)
	}
}

func TestEngine_ShortCiphertext(t *testing.T) {
	for _, e := range engines() {
		key := randomBytes(t, crypto.KeySize)
		_, err := e.Decrypt(make([]byte, crypto.NonceSize-1), key, nil)
		assert.ErrorIs(t, err, crypto.ErrDecryptionUnknownFailure, e.Name())

		_, err = e.Decrypt(make([]byte, crypto.NonceSize), key, nil)
		assert.ErrorIs(t, err, crypto.ErrAuthenticationFailed, e.Name())
	}
}

func TestEngine_WrongKey(t *testing.T) {
	for _, e := range engines() {
		ct, err := e.Encrypt([]byte("hello"), randomBytes(t, crypto.KeySize), nil)
		require.NoError(t, err)
		_, err = e.Decrypt(ct, randomBytes(t, crypto.KeySize), nil)
		assert.ErrorIs(t, err, crypto.ErrAuthenticationFailed, e.Name())

		_, err = e.Encrypt([]byte("hello"), make([]byte, 16), nil)
		assert.ErrorIs(t, err, crypto.ErrInvalidKeySize, e.Name())
	}
}

func TestEngine_NonceProviderIsUsed(t *testing.T) {
	fixed := bytes.Repeat([]byte{0xAB}, crypto.NonceSize)
	e := crypto.NewChaCha20Poly1305(crypto.WithNonceProvider(crypto.NewRandomNonces(bytes.NewReader(fixed))))
	ct, err := e.Encrypt([]byte("x"), randomBytes(t, crypto.KeySize), nil)
	require.NoError(t, err)
	assert.Equal(t, fixed, ct[:crypto.NonceSize])
}
