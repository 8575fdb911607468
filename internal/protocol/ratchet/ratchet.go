package ratchet

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"safechat/internal/domain"
	"safechat/internal/domain/types"
	"safechat/internal/util/memzero"
)

const (
	// MaxSkippedKeys bounds the stored keys of messages not yet received and
	// the gap a single header may skip.
	MaxSkippedKeys = 1000
	maxRetiredKeys = 16
)

var (
	ErrNoConversation       = errors.New("ratchet: no conversation with contact")
	ErrConversationExists   = errors.New("ratchet: conversation already exists")
	ErrConversationNotReady = errors.New("ratchet: conversation not ready")
	ErrHandshakeCompleted   = errors.New("ratchet: handshake already completed")
	ErrMessageKeyNotFound   = errors.New("ratchet: message key not found")
	ErrTooManySkippedKeys   = errors.New("ratchet: too many skipped message keys")
)

// Engine runs the per-contact Double Ratchet on top of a KeyRepository.
type Engine struct {
	keys   *KeyRepository
	store  domain.ConversationStore
	locker *Locker
	log    *logrus.Entry
}

// NewEngine returns an Engine persisting state in store.
func NewEngine(keys *KeyRepository, store domain.ConversationStore, locker *Locker) *Engine {
	return &Engine{
		keys:   keys,
		store:  store,
		locker: locker,
		log:    logrus.WithField("component", "ratchet"),
	}
}

// CreateInvitation stores a fresh personal key pair for contact and returns
// its public half for the invitation.
func (e *Engine) CreateInvitation(ctx context.Context, contact domain.ContactID) ([]byte, error) {
	var pub []byte
	err := e.locker.Do(ctx, contact, func() error {
		if err := e.ensureAbsent(contact); err != nil {
			return err
		}
		pair, err := e.keys.GenerateKeyPair()
		if err != nil {
			return err
		}
		st := domain.ConversationState{
			ContactID:          contact,
			Phase:              domain.PhaseUninitialized,
			PersonalKeyPair:    pair,
			HandshakeConfirmed: true,
		}
		defer st.Wipe()
		pub = clone(pair.PublicKey)
		return e.commit(ctx, st)
	})
	if err != nil {
		return nil, err
	}
	e.log.WithField("contact", contact.String()).Debug("invitation created")
	return pub, nil
}

// AcceptInvitation derives the initial root key from the inviter's public key
// and returns the public key the inviter needs to do the same.
func (e *Engine) AcceptInvitation(ctx context.Context, contact domain.ContactID, inviterPublicKey []byte) ([]byte, error) {
	var pub []byte
	err := e.locker.Do(ctx, contact, func() error {
		if err := e.ensureAbsent(contact); err != nil {
			return err
		}
		pair, err := e.keys.GenerateKeyPair()
		if err != nil {
			return err
		}
		st := domain.ConversationState{
			ContactID:          contact,
			Phase:              domain.PhaseUninitialized,
			Initiator:          true,
			HandshakePublicKey: clone(pair.PublicKey),
			PersonalKeyPair:    pair,
		}
		defer st.Wipe()
		if err := e.establishRoot(&st, inviterPublicKey); err != nil {
			return err
		}
		// The inviter confirms by answering; until then our handshake key
		// travels with every envelope.
		st.HandshakeConfirmed = false
		pub = clone(pair.PublicKey)
		return e.commit(ctx, st)
	})
	if err != nil {
		return nil, err
	}
	e.log.WithField("contact", contact.String()).Debug("invitation accepted")
	return pub, nil
}

// CompleteHandshake derives the inviter's initial root key from the
// invitee's public key.
func (e *Engine) CompleteHandshake(ctx context.Context, contact domain.ContactID, inviteePublicKey []byte) error {
	return e.locker.Do(ctx, contact, func() error {
		st, err := e.load(contact)
		if err != nil {
			return err
		}
		defer st.Wipe()
		if st.Phase != domain.PhaseUninitialized {
			return ErrHandshakeCompleted
		}
		pending := st.Clone()
		defer pending.Wipe()
		if err := e.establishRoot(&pending, inviteePublicKey); err != nil {
			return err
		}
		return e.commit(ctx, pending)
	})
}

// SendKey derives the key of the next outgoing message and hands it to use.
// A new sending chain is started with a DH ratchet step first when the epoch
// has none yet.
func (e *Engine) SendKey(ctx context.Context, contact domain.ContactID, use domain.SendKeyFunc) error {
	return e.locker.Do(ctx, contact, func() error {
		st, err := e.load(contact)
		if err != nil {
			return err
		}
		defer st.Wipe()
		if !st.ReadyToSend() {
			return ErrConversationNotReady
		}

		pending := st.Clone()
		defer pending.Wipe()
		if len(pending.SendingChainKey) == 0 {
			if err := e.ratchetSend(&pending); err != nil {
				return err
			}
		}
		mk, err := e.advance(&pending.SendingChainKey)
		if err != nil {
			return err
		}
		defer mk.Destroy()

		header := domain.MessageHeader{
			PublicKey:           clone(pending.PersonalKeyPair.PublicKey),
			MessageNumber:       pending.MessageNumber,
			SequenceNumber:      pending.SendSequenceNumber,
			PreviousChainLength: pending.PreviousChainLength,
		}
		pending.MessageNumber++
		pending.SendSequenceNumber++
		pending.Phase = domain.PhaseChainAdvancing

		var handshake []byte
		if !pending.HandshakeConfirmed {
			handshake = clone(pending.HandshakePublicKey)
		}
		if err := use(mk, header, handshake); err != nil {
			return err
		}
		return e.commit(ctx, pending)
	})
}

// ReceiveKey derives the key of an incoming message and hands it to use.
// handshakeKey completes the handshake when the conversation has no root key
// yet and is ignored otherwise.
func (e *Engine) ReceiveKey(
	ctx context.Context,
	contact domain.ContactID,
	header domain.MessageHeader,
	handshakeKey []byte,
	use domain.ReceiveKeyFunc,
) error {
	return e.locker.Do(ctx, contact, func() error {
		st, err := e.load(contact)
		if err != nil {
			return err
		}
		defer st.Wipe()

		pending := st.Clone()
		defer pending.Wipe()
		if pending.Phase == domain.PhaseUninitialized {
			if len(handshakeKey) == 0 {
				return ErrConversationNotReady
			}
			if err := e.establishRoot(&pending, handshakeKey); err != nil {
				return err
			}
		}

		mk, err := e.receive(&pending, header)
		if err != nil {
			return err
		}
		defer mk.Destroy()
		pending.HandshakeConfirmed = true

		if err := use(mk); err != nil {
			return err
		}
		return e.commit(ctx, pending)
	})
}

// State returns the stored state of contact.
func (e *Engine) State(contact domain.ContactID) (domain.ConversationState, bool, error) {
	return e.store.LoadConversation(contact)
}

// Forget deletes the conversation with contact.
func (e *Engine) Forget(ctx context.Context, contact domain.ContactID) error {
	return e.locker.Do(ctx, contact, func() error {
		return e.store.DeleteConversation(contact)
	})
}

// --- helpers ---

func (e *Engine) load(contact domain.ContactID) (domain.ConversationState, error) {
	st, ok, err := e.store.LoadConversation(contact)
	if err != nil {
		return domain.ConversationState{}, err
	}
	if !ok {
		return domain.ConversationState{}, ErrNoConversation
	}
	return st, nil
}

func (e *Engine) ensureAbsent(contact domain.ContactID) error {
	st, ok, err := e.store.LoadConversation(contact)
	if err != nil {
		return err
	}
	if ok {
		st.Wipe()
		return ErrConversationExists
	}
	return nil
}

func (e *Engine) commit(ctx context.Context, st domain.ConversationState) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return e.store.SaveConversation(st)
}

// establishRoot derives the first root key from the counterpart's handshake
// key and our personal key.
func (e *Engine) establishRoot(p *domain.ConversationState, publicKey []byte) error {
	ss, err := e.keys.CreateDiffieHellmanSharedSecret(publicKey, p.PersonalKeyPair.PrivateKey)
	if err != nil {
		return fmt.Errorf("handshake: %w", err)
	}
	root, err := e.keys.InitialRootKey(ss)
	if err != nil {
		return fmt.Errorf("handshake: %w", err)
	}
	p.RootKey = clone(root.Bytes())
	root.Destroy()
	p.ContactPublicKey = clone(publicKey)
	p.Phase = domain.PhaseRootEstablished
	p.HandshakeConfirmed = true
	return nil
}

// ratchetSend starts a sending chain with a fresh personal key pair.
func (e *Engine) ratchetSend(p *domain.ConversationState) error {
	pair, err := e.keys.GenerateKeyPair()
	if err != nil {
		return err
	}
	ss, err := e.keys.CreateDiffieHellmanSharedSecret(p.ContactPublicKey, pair.PrivateKey)
	if err != nil {
		pair.Destroy()
		return err
	}
	if err := e.rootStep(p, ss, &p.SendingChainKey); err != nil {
		pair.Destroy()
		return err
	}
	p.PersonalKeyPair.Destroy()
	p.PersonalKeyPair = pair
	return nil
}

// ratchetReceive starts a receiving chain for a new counterpart key.
func (e *Engine) ratchetReceive(p *domain.ConversationState, publicKey []byte) error {
	ss, err := e.keys.CreateDiffieHellmanSharedSecret(publicKey, p.PersonalKeyPair.PrivateKey)
	if err != nil {
		return err
	}
	if err := e.rootStep(p, ss, &p.ReceivingChainKey); err != nil {
		return err
	}
	p.ReceiveSequenceNumber = 0
	p.ContactPublicKey = clone(publicKey)
	if len(p.SendingChainKey) > 0 {
		p.PreviousChainLength = p.SendSequenceNumber
		p.SendSequenceNumber = 0
		memzero.Zero(p.SendingChainKey)
		p.SendingChainKey = nil
	}
	return nil
}

func (e *Engine) rootStep(p *domain.ConversationState, ss *domain.SharedSecret, chain *[]byte) error {
	root := types.NewRootKey(clone(p.RootKey))
	defer root.Destroy()
	newRoot, newChain, err := e.keys.DeriveRootKeys(root, ss)
	if err != nil {
		return err
	}
	memzero.Zero(p.RootKey)
	p.RootKey = clone(newRoot.Bytes())
	newRoot.Destroy()
	memzero.Zero(*chain)
	*chain = clone(newChain.Bytes())
	newChain.Destroy()
	return nil
}

// advance runs the symmetric step on *chain and returns the message key.
func (e *Engine) advance(chain *[]byte) (*domain.MessageKey, error) {
	ck := types.NewChainKey(clone(*chain))
	defer ck.Destroy()
	next, mk, err := e.keys.DeriveChainKeys(ck)
	if err != nil {
		return nil, err
	}
	memzero.Zero(*chain)
	*chain = clone(next.Bytes())
	next.Destroy()
	return mk, nil
}

func (e *Engine) receive(p *domain.ConversationState, h domain.MessageHeader) (*domain.MessageKey, error) {
	if mk, ok := takeSkipped(p, h.PublicKey, h.SequenceNumber); ok {
		return mk, nil
	}

	if !bytes.Equal(h.PublicKey, p.ContactPublicKey) {
		if isRetired(p, h.PublicKey) {
			return nil, ErrMessageKeyNotFound
		}
		if len(p.ReceivingChainKey) > 0 {
			if err := e.skipUntil(p, h.PreviousChainLength); err != nil {
				return nil, err
			}
			retire(p, p.ContactPublicKey)
		}
		if err := e.ratchetReceive(p, h.PublicKey); err != nil {
			return nil, err
		}
		e.log.WithFields(logrus.Fields{
			"contact":  p.ContactID.String(),
			"previous": h.PreviousChainLength,
		}).Debug("new receiving epoch")
	}

	if len(p.ReceivingChainKey) == 0 {
		return nil, ErrConversationNotReady
	}
	if h.SequenceNumber < p.ReceiveSequenceNumber {
		return nil, ErrMessageKeyNotFound
	}
	if err := e.skipUntil(p, h.SequenceNumber); err != nil {
		return nil, err
	}
	mk, err := e.advance(&p.ReceivingChainKey)
	if err != nil {
		return nil, err
	}
	p.ReceiveSequenceNumber++
	p.Phase = domain.PhaseChainAdvancing
	return mk, nil
}

// skipUntil stores the keys of the receiving chain up to index until.
func (e *Engine) skipUntil(p *domain.ConversationState, until uint32) error {
	if until <= p.ReceiveSequenceNumber || len(p.ReceivingChainKey) == 0 {
		return nil
	}
	if until-p.ReceiveSequenceNumber > MaxSkippedKeys {
		return ErrTooManySkippedKeys
	}
	if p.SkippedKeys == nil {
		p.SkippedKeys = make(map[string][]byte)
	}
	for p.ReceiveSequenceNumber < until {
		mk, err := e.advance(&p.ReceivingChainKey)
		if err != nil {
			return err
		}
		if len(p.SkippedKeys) >= MaxSkippedKeys {
			for k, v := range p.SkippedKeys {
				memzero.Zero(v)
				delete(p.SkippedKeys, k)
				break
			}
			e.log.WithField("contact", p.ContactID.String()).Warn("skipped key store full, evicted one key")
		}
		p.SkippedKeys[skippedKeyID(p.ContactPublicKey, p.ReceiveSequenceNumber)] = clone(mk.Bytes())
		mk.Destroy()
		p.ReceiveSequenceNumber++
	}
	return nil
}

func takeSkipped(p *domain.ConversationState, pub []byte, n uint32) (*domain.MessageKey, bool) {
	id := skippedKeyID(pub, n)
	v, ok := p.SkippedKeys[id]
	if !ok {
		return nil, false
	}
	delete(p.SkippedKeys, id)
	return types.NewMessageKey(v), true
}

func skippedKeyID(pub []byte, n uint32) string {
	sum := sha256.Sum256(pub)
	return fmt.Sprintf("%x/%d", sum[:16], n)
}

func retire(p *domain.ConversationState, pub []byte) {
	p.RetiredContactKeys = append(p.RetiredContactKeys, clone(pub))
	if over := len(p.RetiredContactKeys) - maxRetiredKeys; over > 0 {
		p.RetiredContactKeys = p.RetiredContactKeys[over:]
	}
}

func isRetired(p *domain.ConversationState, pub []byte) bool {
	for _, k := range p.RetiredContactKeys {
		if bytes.Equal(k, pub) {
			return true
		}
	}
	return false
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}

// Compile-time assertion that Engine implements domain.RatchetEngine.
var _ domain.RatchetEngine = (*Engine)(nil)
