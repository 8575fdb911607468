package store

import (
	"path/filepath"
	"sync"

	"safechat/internal/domain"
)

const convFilename = "conversations.enc"

// ConversationFileStore persists per-contact Double Ratchet state to disk.
type ConversationFileStore struct {
	dir   string
	vault *Vault
	mu    sync.Mutex
}

// NewConversationFileStore returns a ConversationFileStore rooted at dir.
func NewConversationFileStore(dir string, vault *Vault) *ConversationFileStore {
	return &ConversationFileStore{dir: dir, vault: vault}
}

func (s *ConversationFileStore) load() (map[string]domain.ConversationState, error) {
	m := map[string]domain.ConversationState{}
	if err := s.vault.readSealedJSON(filepath.Join(s.dir, convFilename), &m); err != nil {
		return nil, err
	}
	return m, nil
}

// SaveConversation writes the state of st.ContactID.
func (s *ConversationFileStore) SaveConversation(st domain.ConversationState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.load()
	if err != nil {
		return err
	}
	m[st.ContactID.String()] = st
	return s.vault.writeSealedJSON(filepath.Join(s.dir, convFilename), m)
}

// LoadConversation retrieves the state of contact.
func (s *ConversationFileStore) LoadConversation(contact domain.ContactID) (domain.ConversationState, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.load()
	if err != nil {
		return domain.ConversationState{}, false, err
	}
	st, ok := m[contact.String()]
	return st, ok, nil
}

// DeleteConversation removes the state of contact. Deleting a missing state
// is not an error.
func (s *ConversationFileStore) DeleteConversation(contact domain.ContactID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := m[contact.String()]; !ok {
		return nil
	}
	delete(m, contact.String())
	return s.vault.writeSealedJSON(filepath.Join(s.dir, convFilename), m)
}

// Compile-time assertion that ConversationFileStore implements domain.ConversationStore.
var _ domain.ConversationStore = (*ConversationFileStore)(nil)
