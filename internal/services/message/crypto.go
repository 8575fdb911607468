package message

import (
	"crypto/rand"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/sirupsen/logrus"

	"safechat/internal/crypto"
	"safechat/internal/domain"
	"safechat/internal/domain/types"
)

var (
	// ErrWrongMessageKey means a body did not open with its ratchet key:
	// ratchet desync or tampering. Never retried.
	ErrWrongMessageKey = errors.New("message: wrong message key")
	// ErrQueueKey is returned for any failure involving the queue key.
	ErrQueueKey = errors.New("message: queue key failure")
	// ErrLocalKey is returned when local data does not open with the
	// contact's local key.
	ErrLocalKey = errors.New("message: local key failure")
)

// CryptoRepository encrypts message bodies, queued payloads and local data.
type CryptoRepository struct {
	engine    crypto.Engine
	queueKeys domain.QueueKeyStore

	mu  sync.Mutex // guards queue key creation
	log *logrus.Entry
}

// NewCryptoRepository returns a repository sealing with engine.
func NewCryptoRepository(engine crypto.Engine, queueKeys domain.QueueKeyStore) *CryptoRepository {
	return &CryptoRepository{
		engine:    engine,
		queueKeys: queueKeys,
		log:       logrus.WithFields(logrus.Fields{"component": "message-crypto", "engine": engine.Name()}),
	}
}

// EncryptMessage seals plaintext with a ratchet message key. The key is
// destroyed.
func (r *CryptoRepository) EncryptMessage(plaintext []byte, key *domain.MessageKey, ad []byte) ([]byte, error) {
	var out []byte
	err := key.Use(func(k []byte) error {
		var err error
		out, err = r.engine.Encrypt(plaintext, k, ad)
		return err
	})
	return out, err
}

// DecryptMessage opens a body sealed by EncryptMessage. The key is destroyed.
func (r *CryptoRepository) DecryptMessage(ciphertext []byte, key *domain.MessageKey, ad []byte) ([]byte, error) {
	var out []byte
	err := key.Use(func(k []byte) error {
		var err error
		out, err = r.engine.Decrypt(ciphertext, k, ad)
		return err
	})
	if errors.Is(err, crypto.ErrAuthenticationFailed) || errors.Is(err, crypto.ErrDecryptionUnknownFailure) {
		return nil, fmt.Errorf("%w: %w", ErrWrongMessageKey, err)
	}
	return out, err
}

// QueueEncrypt seals a payload waiting to be sent, creating the queue key on
// first use.
func (r *CryptoRepository) QueueEncrypt(plaintext []byte) ([]byte, error) {
	key, err := r.queueKey()
	if err != nil {
		return nil, err
	}
	defer key.Destroy()
	out, err := r.engine.Encrypt(plaintext, key.Bytes(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: encrypt: %w", ErrQueueKey, err)
	}
	return out, nil
}

// QueueDecrypt opens a payload sealed by QueueEncrypt.
func (r *CryptoRepository) QueueDecrypt(ciphertext []byte) ([]byte, error) {
	key, err := r.queueKey()
	if err != nil {
		return nil, err
	}
	defer key.Destroy()
	out, err := r.engine.Decrypt(ciphertext, key.Bytes(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: decrypt: %w", ErrQueueKey, err)
	}
	return out, nil
}

func (r *CryptoRepository) queueKey() (*domain.QueueKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key, ok, err := r.queueKeys.LoadQueueKey()
	if err != nil {
		return nil, fmt.Errorf("%w: load: %w", ErrQueueKey, err)
	}
	if ok {
		return key, nil
	}
	b, err := NewLocalKeyBytes()
	if err != nil {
		return nil, fmt.Errorf("%w: generate: %w", ErrQueueKey, err)
	}
	if err := r.queueKeys.SaveQueueKey(b); err != nil {
		return nil, fmt.Errorf("%w: save: %w", ErrQueueKey, err)
	}
	r.log.Info("queue key created")
	return types.NewQueueKey(b), nil
}

// LocalEncrypt seals data stored on this device.
func (r *CryptoRepository) LocalEncrypt(plaintext []byte, key *domain.ContactLocalKey) ([]byte, error) {
	if key.Destroyed() {
		return nil, types.ErrKeyDestroyed
	}
	return r.engine.Encrypt(plaintext, key.Bytes(), nil)
}

// LocalDecrypt opens data sealed by LocalEncrypt.
func (r *CryptoRepository) LocalDecrypt(ciphertext []byte, key *domain.ContactLocalKey) ([]byte, error) {
	if key.Destroyed() {
		return nil, types.ErrKeyDestroyed
	}
	out, err := r.engine.Decrypt(ciphertext, key.Bytes(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLocalKey, err)
	}
	return out, nil
}

// EncryptTime seals a timestamp with nanosecond precision.
func (r *CryptoRepository) EncryptTime(t time.Time, key *domain.ContactLocalKey) ([]byte, error) {
	b, err := encMode.Marshal(t.UTC())
	if err != nil {
		return nil, err
	}
	return r.LocalEncrypt(b, key)
}

// DecryptTime opens a timestamp sealed by EncryptTime.
func (r *CryptoRepository) DecryptTime(enc []byte, key *domain.ContactLocalKey) (time.Time, error) {
	b, err := r.LocalDecrypt(enc, key)
	if err != nil {
		return time.Time{}, err
	}
	var t time.Time
	if err := cbor.Unmarshal(b, &t); err != nil {
		return time.Time{}, fmt.Errorf("%w: timestamp: %w", ErrLocalKey, err)
	}
	return t, nil
}

// NewLocalKeyBytes returns a fresh random symmetric key.
func NewLocalKeyBytes() ([]byte, error) {
	b := make([]byte, crypto.KeySize)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}

// Compile-time assertion that CryptoRepository implements domain.TimestampDecrypter.
var _ domain.TimestampDecrypter = (*CryptoRepository)(nil)
