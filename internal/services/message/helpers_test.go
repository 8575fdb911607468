package message_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"safechat/internal/crypto"
	"safechat/internal/domain"
	"safechat/internal/domain/types"
	"safechat/internal/protocol/ratchet"
	"safechat/internal/services/message"
	"safechat/internal/services/order"
	"safechat/internal/store/msgdb"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// stepClock advances one second per reading.
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

// memKeys implements the contact key, queue key and conversation stores.
type memKeys struct {
	mu       sync.Mutex
	contacts map[domain.ContactID][]byte
	queue    []byte
	states   map[domain.ContactID]domain.ConversationState
}

func newMemKeys() *memKeys {
	return &memKeys{
		contacts: map[domain.ContactID][]byte{},
		states:   map[domain.ContactID]domain.ConversationState{},
	}
}

func (m *memKeys) SaveContactKey(c domain.ContactID, key []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.contacts[c] = append([]byte(nil), key...)
	return nil
}

func (m *memKeys) LoadContactKey(c domain.ContactID) (*domain.ContactLocalKey, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k, ok := m.contacts[c]
	if !ok {
		return nil, false, nil
	}
	return types.NewContactLocalKey(append([]byte(nil), k...)), true, nil
}

func (m *memKeys) DeleteContactKey(c domain.ContactID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.contacts, c)
	return nil
}

func (m *memKeys) SaveQueueKey(key []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append([]byte(nil), key...)
	return nil
}

func (m *memKeys) LoadQueueKey() (*domain.QueueKey, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.queue == nil {
		return nil, false, nil
	}
	return types.NewQueueKey(append([]byte(nil), m.queue...)), true, nil
}

func (m *memKeys) SaveConversation(st domain.ConversationState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[st.ContactID] = st.Clone()
	return nil
}

func (m *memKeys) LoadConversation(c domain.ContactID) (domain.ConversationState, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.states[c]
	if !ok {
		return domain.ConversationState{}, false, nil
	}
	return st.Clone(), true, nil
}

func (m *memKeys) DeleteConversation(c domain.ContactID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, c)
	return nil
}

type device struct {
	svc    *message.Service
	engine *ratchet.Engine
	crypto *message.CryptoRepository
	keys   *memKeys
	db     *msgdb.DB
}

func newDevice(t *testing.T, clock domain.Clock) *device {
	t.Helper()
	keys := newMemKeys()
	db, err := msgdb.OpenMem()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	kr, err := ratchet.NewKeyRepository(crypto.NewKeyExchange(), crypto.NewKeyDerivation(), ratchet.DefaultSalts())
	require.NoError(t, err)
	engine := ratchet.NewEngine(kr, keys, ratchet.NewLocker())
	repo := message.NewCryptoRepository(crypto.NewChaCha20Poly1305(), keys)

	return &device{
		svc: message.NewService(message.Deps{
			Ratchet:  engine,
			Crypto:   repo,
			Order:    order.New(db, repo),
			Messages: db,
			Queue:    db,
			Keys:     keys,
			Clock:    clock,
		}),
		engine: engine,
		crypto: repo,
		keys:   keys,
		db:     db,
	}
}

func (d *device) addContact(t *testing.T, c domain.ContactID) {
	t.Helper()
	b, err := message.NewLocalKeyBytes()
	require.NoError(t, err)
	require.NoError(t, d.keys.SaveContactKey(c, b))
}

// pair returns an inviter and an invitee sharing conversation c. Only the
// invitee can send until it has been heard from.
func pair(t *testing.T) (inviter, invitee *device, c domain.ContactID) {
	t.Helper()
	ctx := context.Background()
	clock := &stepClock{now: epoch}
	inviter, invitee = newDevice(t, clock), newDevice(t, clock)
	c = types.NewContactID()
	inviter.addContact(t, c)
	invitee.addContact(t, c)

	pub, err := inviter.engine.CreateInvitation(ctx, c)
	require.NoError(t, err)
	_, err = invitee.engine.AcceptInvitation(ctx, c, pub)
	require.NoError(t, err)
	return inviter, invitee, c
}
