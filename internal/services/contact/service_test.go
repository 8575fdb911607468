package contact_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"safechat/internal/crypto"
	"safechat/internal/domain"
	"safechat/internal/protocol/ratchet"
	"safechat/internal/services/contact"
	"safechat/internal/services/message"
	"safechat/internal/store"
	"safechat/internal/store/msgdb"
)

type device struct {
	contacts *contact.Service
	engine   *ratchet.Engine
	db       *msgdb.DB
}

func newDevice(t *testing.T) *device {
	t.Helper()
	dir := t.TempDir()
	vault, err := store.OpenVault(dir, "pass", store.ScryptParams{N: 1 << 10, R: 8, P: 1})
	require.NoError(t, err)
	t.Cleanup(vault.Close)
	db, err := msgdb.OpenMem()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	keys := store.NewKeyFileStore(dir, vault)
	kr, err := ratchet.NewKeyRepository(crypto.NewKeyExchange(), crypto.NewKeyDerivation(), ratchet.DefaultSalts())
	require.NoError(t, err)
	engine := ratchet.NewEngine(kr, store.NewConversationFileStore(dir, vault), ratchet.NewLocker())
	repo := message.NewCryptoRepository(crypto.NewAESGCM(), keys)

	return &device{
		contacts: contact.NewService(engine, repo, store.NewContactFileStore(dir, vault), keys, db),
		engine:   engine,
		db:       db,
	}
}

func TestService_InviteAcceptConfirm(t *testing.T) {
	ctx := context.Background()
	alice, bob := newDevice(t), newDevice(t)

	inv, err := alice.contacts.Invite(ctx, "bob")
	require.NoError(t, err)
	text, err := contact.EncodeInvitation(inv)
	require.NoError(t, err)

	decoded, err := contact.DecodeInvitation(text)
	require.NoError(t, err)
	id, pub, err := bob.contacts.Accept(ctx, "alice", decoded)
	require.NoError(t, err)
	assert.Equal(t, inv.ContactID, id)

	key, err := contact.DecodeKey(contact.EncodeKey(pub))
	require.NoError(t, err)
	require.NoError(t, alice.contacts.Confirm(ctx, id, key))
	assert.ErrorIs(t, alice.contacts.Confirm(ctx, id, key), ratchet.ErrHandshakeCompleted)

	aliceList, err := alice.contacts.List(ctx)
	require.NoError(t, err)
	require.Len(t, aliceList, 1)
	assert.Equal(t, "bob", aliceList[0].Name)
	assert.Equal(t, domain.PhaseRootEstablished, aliceList[0].Phase)
	assert.Equal(t, crypto.Fingerprint(pub), aliceList[0].Fingerprint)

	bobList, err := bob.contacts.List(ctx)
	require.NoError(t, err)
	require.Len(t, bobList, 1)
	assert.Equal(t, "alice", bobList[0].Name)
	assert.Equal(t, crypto.Fingerprint(inv.PublicKey), bobList[0].Fingerprint)
}

func TestService_Resolve(t *testing.T) {
	ctx := context.Background()
	d := newDevice(t)
	inv, err := d.contacts.Invite(ctx, "carol")
	require.NoError(t, err)

	id, err := d.contacts.Resolve(ctx, "carol")
	require.NoError(t, err)
	assert.Equal(t, inv.ContactID, id)

	id, err = d.contacts.Resolve(ctx, inv.ContactID.String())
	require.NoError(t, err)
	assert.Equal(t, inv.ContactID, id)

	_, err = d.contacts.Resolve(ctx, "dave")
	assert.ErrorIs(t, err, contact.ErrUnknownContact)
}

func TestService_NamesAreUnique(t *testing.T) {
	ctx := context.Background()
	d := newDevice(t)
	_, err := d.contacts.Invite(ctx, "erin")
	require.NoError(t, err)

	_, err = d.contacts.Invite(ctx, " erin ")
	assert.ErrorIs(t, err, contact.ErrNameTaken)
	_, err = d.contacts.Invite(ctx, "   ")
	assert.ErrorIs(t, err, contact.ErrEmptyName)
}

func TestService_AcceptTwiceFails(t *testing.T) {
	ctx := context.Background()
	alice, bob := newDevice(t), newDevice(t)
	inv, err := alice.contacts.Invite(ctx, "bob")
	require.NoError(t, err)

	_, _, err = bob.contacts.Accept(ctx, "alice", inv)
	require.NoError(t, err)
	_, _, err = bob.contacts.Accept(ctx, "alice again", inv)
	assert.ErrorIs(t, err, contact.ErrContactExists)
}

func TestService_AcceptRollsBackOnBadKey(t *testing.T) {
	ctx := context.Background()
	bob := newDevice(t)
	inv, err := newDevice(t).contacts.Invite(ctx, "bob")
	require.NoError(t, err)
	inv.PublicKey = []byte("not a key")

	_, _, err = bob.contacts.Accept(ctx, "alice", inv)
	require.Error(t, err)

	list, err := bob.contacts.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
	_, err = bob.contacts.LocalKey(inv.ContactID)
	assert.ErrorIs(t, err, contact.ErrUnknownContact)
}

func TestService_Delete(t *testing.T) {
	ctx := context.Background()
	d := newDevice(t)
	inv, err := d.contacts.Invite(ctx, "frank")
	require.NoError(t, err)
	_, err = d.db.Enqueue(ctx, inv.ContactID, []byte("payload"))
	require.NoError(t, err)

	require.NoError(t, d.contacts.Delete(ctx, inv.ContactID))

	_, ok, err := d.engine.State(inv.ContactID)
	require.NoError(t, err)
	assert.False(t, ok)
	q, err := d.db.Queued(ctx, inv.ContactID)
	require.NoError(t, err)
	assert.Empty(t, q)
	_, err = d.contacts.Resolve(ctx, "frank")
	assert.ErrorIs(t, err, contact.ErrUnknownContact)
}

func TestDecodeInvitation_Invalid(t *testing.T) {
	_, err := contact.DecodeInvitation("%%%")
	assert.ErrorIs(t, err, contact.ErrInvalidInvitation)

	empty, err := contact.EncodeInvitation(domain.Invitation{})
	require.NoError(t, err)
	_, err = contact.DecodeInvitation(empty)
	assert.ErrorIs(t, err, contact.ErrInvalidInvitation)
}
