package store

import (
	"path/filepath"
	"sync"

	"safechat/internal/domain"
	"safechat/internal/domain/types"
)

const keysFilename = "keys.enc"

type keyFile struct {
	Contacts map[string][]byte `json:"contacts"`
	Queue    []byte            `json:"queue,omitempty"`
}

// KeyFileStore keeps contact local keys and the queue key, sealed by the
// vault.
type KeyFileStore struct {
	dir   string
	vault *Vault
	mu    sync.Mutex
}

// NewKeyFileStore returns a KeyFileStore rooted at dir.
func NewKeyFileStore(dir string, vault *Vault) *KeyFileStore {
	return &KeyFileStore{dir: dir, vault: vault}
}

func (s *KeyFileStore) load() (keyFile, error) {
	kf := keyFile{Contacts: map[string][]byte{}}
	if err := s.vault.readSealedJSON(filepath.Join(s.dir, keysFilename), &kf); err != nil {
		return keyFile{}, err
	}
	if kf.Contacts == nil {
		kf.Contacts = map[string][]byte{}
	}
	return kf, nil
}

func (s *KeyFileStore) save(kf keyFile) error {
	return s.vault.writeSealedJSON(filepath.Join(s.dir, keysFilename), kf)
}

// SaveContactKey stores the local key of contact.
func (s *KeyFileStore) SaveContactKey(contact domain.ContactID, key []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kf, err := s.load()
	if err != nil {
		return err
	}
	kf.Contacts[contact.String()] = key
	return s.save(kf)
}

// LoadContactKey returns a fresh copy of the local key of contact.
func (s *KeyFileStore) LoadContactKey(contact domain.ContactID) (*domain.ContactLocalKey, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kf, err := s.load()
	if err != nil {
		return nil, false, err
	}
	k, ok := kf.Contacts[contact.String()]
	if !ok {
		return nil, false, nil
	}
	return types.NewContactLocalKey(k), true, nil
}

// DeleteContactKey removes the local key of contact.
func (s *KeyFileStore) DeleteContactKey(contact domain.ContactID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kf, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := kf.Contacts[contact.String()]; !ok {
		return nil
	}
	delete(kf.Contacts, contact.String())
	return s.save(kf)
}

// SaveQueueKey stores the queue key.
func (s *KeyFileStore) SaveQueueKey(key []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kf, err := s.load()
	if err != nil {
		return err
	}
	kf.Queue = key
	return s.save(kf)
}

// LoadQueueKey returns a fresh copy of the queue key.
func (s *KeyFileStore) LoadQueueKey() (*domain.QueueKey, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kf, err := s.load()
	if err != nil {
		return nil, false, err
	}
	if len(kf.Queue) == 0 {
		return nil, false, nil
	}
	return types.NewQueueKey(kf.Queue), true, nil
}

// Compile-time assertions that KeyFileStore implements the key stores.
var (
	_ domain.ContactKeyStore = (*KeyFileStore)(nil)
	_ domain.QueueKeyStore   = (*KeyFileStore)(nil)
)
