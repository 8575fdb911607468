package store

import (
	"bytes"
	"path/filepath"
	"slices"
	"sync"

	"safechat/internal/domain"
)

const contactsFilename = "contacts.enc"

// ContactFileStore persists contact records sealed with the vault. Names
// are additionally encrypted with each contact's local key.
type ContactFileStore struct {
	dir   string
	vault *Vault
	mu    sync.Mutex
}

// NewContactFileStore returns a ContactFileStore rooted at dir.
func NewContactFileStore(dir string, vault *Vault) *ContactFileStore {
	return &ContactFileStore{dir: dir, vault: vault}
}

func (s *ContactFileStore) load() (map[string]domain.Contact, error) {
	m := map[string]domain.Contact{}
	if err := s.vault.readSealedJSON(filepath.Join(s.dir, contactsFilename), &m); err != nil {
		return nil, err
	}
	return m, nil
}

// SaveContact writes c.
func (s *ContactFileStore) SaveContact(c domain.Contact) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.load()
	if err != nil {
		return err
	}
	m[c.ID.String()] = c
	return s.vault.writeSealedJSON(filepath.Join(s.dir, contactsFilename), m)
}

// LoadContact returns the contact with id.
func (s *ContactFileStore) LoadContact(id domain.ContactID) (domain.Contact, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.load()
	if err != nil {
		return domain.Contact{}, false, err
	}
	c, ok := m[id.String()]
	return c, ok, nil
}

// ListContacts returns every contact sorted by id.
func (s *ContactFileStore) ListContacts() ([]domain.Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.load()
	if err != nil {
		return nil, err
	}
	out := make([]domain.Contact, 0, len(m))
	for _, c := range m {
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b domain.Contact) int { return bytes.Compare(a.ID.Bytes(), b.ID.Bytes()) })
	return out, nil
}

// DeleteContact removes the contact with id.
func (s *ContactFileStore) DeleteContact(id domain.ContactID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := m[id.String()]; !ok {
		return nil
	}
	delete(m, id.String())
	return s.vault.writeSealedJSON(filepath.Join(s.dir, contactsFilename), m)
}

// Compile-time assertion that ContactFileStore implements domain.ContactStore.
var _ domain.ContactStore = (*ContactFileStore)(nil)
