package contact

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"safechat/internal/crypto"
	"safechat/internal/domain"
	"safechat/internal/domain/types"
	"safechat/internal/services/message"
	"safechat/internal/util/memzero"
)

var (
	ErrInvalidInvitation = errors.New("contact: invalid invitation")
	ErrNameTaken         = errors.New("contact: name already in use")
	ErrEmptyName         = errors.New("contact: empty name")
	ErrContactExists     = errors.New("contact: contact already exists")
	ErrUnknownContact    = errors.New("contact: unknown contact")
)

// Service implements domain.ContactService.
type Service struct {
	ratchet  domain.RatchetEngine
	crypto   *message.CryptoRepository
	contacts domain.ContactStore
	keys     domain.ContactKeyStore
	messages domain.MessageStore
	log      *logrus.Entry
}

// NewService returns a contact Service.
func NewService(
	engine domain.RatchetEngine,
	repo *message.CryptoRepository,
	contacts domain.ContactStore,
	keys domain.ContactKeyStore,
	messages domain.MessageStore,
) *Service {
	return &Service{
		ratchet:  engine,
		crypto:   repo,
		contacts: contacts,
		keys:     keys,
		messages: messages,
		log:      logrus.WithField("component", "contact"),
	}
}

// Invite creates a contact named name and the invitation to hand out.
func (s *Service) Invite(ctx context.Context, name string) (domain.Invitation, error) {
	id := types.NewContactID()
	if err := s.create(ctx, id, name); err != nil {
		return domain.Invitation{}, err
	}
	pub, err := s.ratchet.CreateInvitation(ctx, id)
	if err != nil {
		s.rollback(ctx, id)
		return domain.Invitation{}, err
	}
	s.log.WithField("contact", id).Info("invitation created")
	return domain.Invitation{ContactID: id, PublicKey: pub}, nil
}

// Accept creates a contact named name from a received invitation. The
// returned key goes back to the inviter unless the first message carries it.
func (s *Service) Accept(ctx context.Context, name string, inv domain.Invitation) (domain.ContactID, []byte, error) {
	if len(inv.PublicKey) == 0 {
		return domain.ContactID{}, nil, ErrInvalidInvitation
	}
	if _, ok, err := s.contacts.LoadContact(inv.ContactID); err != nil {
		return domain.ContactID{}, nil, err
	} else if ok {
		return domain.ContactID{}, nil, ErrContactExists
	}
	if err := s.create(ctx, inv.ContactID, name); err != nil {
		return domain.ContactID{}, nil, err
	}
	pub, err := s.ratchet.AcceptInvitation(ctx, inv.ContactID, inv.PublicKey)
	if err != nil {
		s.rollback(ctx, inv.ContactID)
		return domain.ContactID{}, nil, err
	}
	s.log.WithField("contact", inv.ContactID).Info("invitation accepted")
	return inv.ContactID, pub, nil
}

// Confirm completes the handshake with the key returned by Accept, when it
// arrives out of band instead of with the first message.
func (s *Service) Confirm(ctx context.Context, contact domain.ContactID, inviteePublicKey []byte) error {
	if _, ok, err := s.contacts.LoadContact(contact); err != nil {
		return err
	} else if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownContact, contact)
	}
	return s.ratchet.CompleteHandshake(ctx, contact, inviteePublicKey)
}

func (s *Service) create(ctx context.Context, id domain.ContactID, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyName
	}
	if _, err := s.Resolve(ctx, name); err == nil {
		return fmt.Errorf("%w: %q", ErrNameTaken, name)
	} else if !errors.Is(err, ErrUnknownContact) {
		return err
	}

	raw, err := message.NewLocalKeyBytes()
	if err != nil {
		return err
	}
	defer memzero.Zero(raw)
	key := types.NewContactLocalKey(append([]byte(nil), raw...))
	defer key.Destroy()
	encName, err := s.crypto.LocalEncrypt([]byte(name), key)
	if err != nil {
		return err
	}
	if err := s.keys.SaveContactKey(id, raw); err != nil {
		return fmt.Errorf("save contact key: %w", err)
	}
	if err := s.contacts.SaveContact(domain.Contact{ID: id, EncName: encName}); err != nil {
		_ = s.keys.DeleteContactKey(id)
		return fmt.Errorf("save contact: %w", err)
	}
	return nil
}

func (s *Service) rollback(ctx context.Context, id domain.ContactID) {
	if err := s.Delete(ctx, id); err != nil {
		s.log.WithError(err).WithField("contact", id).Warn("rollback failed")
	}
}

// List returns every contact with its decrypted name.
func (s *Service) List(ctx context.Context) ([]domain.ContactSummary, error) {
	contacts, err := s.contacts.ListContacts()
	if err != nil {
		return nil, err
	}
	out := make([]domain.ContactSummary, 0, len(contacts))
	for _, c := range contacts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		sum := domain.ContactSummary{ID: c.ID, Name: s.name(c)}
		st, ok, err := s.ratchet.State(c.ID)
		if err != nil {
			return nil, err
		}
		if ok {
			sum.Phase = st.Phase
			sum.Fingerprint = crypto.Fingerprint(st.ContactPublicKey)
			st.Wipe()
		}
		out = append(out, sum)
	}
	return out, nil
}

// name decrypts a contact name; unreadable names show as the id.
func (s *Service) name(c domain.Contact) string {
	key, err := s.LocalKey(c.ID)
	if err != nil {
		return c.ID.String()
	}
	defer key.Destroy()
	b, err := s.crypto.LocalDecrypt(c.EncName, key)
	if err != nil {
		s.log.WithField("contact", c.ID).Warn("contact name does not decrypt")
		return c.ID.String()
	}
	return string(b)
}

// Resolve finds a contact by name or by id.
func (s *Service) Resolve(ctx context.Context, name string) (domain.ContactID, error) {
	if id, err := types.ParseContactID(name); err == nil {
		if _, ok, err := s.contacts.LoadContact(id); err != nil {
			return domain.ContactID{}, err
		} else if ok {
			return id, nil
		}
	}
	contacts, err := s.contacts.ListContacts()
	if err != nil {
		return domain.ContactID{}, err
	}
	for _, c := range contacts {
		if err := ctx.Err(); err != nil {
			return domain.ContactID{}, err
		}
		if s.name(c) == name {
			return c.ID, nil
		}
	}
	return domain.ContactID{}, fmt.Errorf("%w: %q", ErrUnknownContact, name)
}

// LocalKey returns the contact's local key. The caller destroys it.
func (s *Service) LocalKey(contact domain.ContactID) (*domain.ContactLocalKey, error) {
	key, ok, err := s.keys.LoadContactKey(contact)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownContact, contact)
	}
	return key, nil
}

// Delete removes the contact with its messages, queue, conversation and key.
func (s *Service) Delete(ctx context.Context, contact domain.ContactID) error {
	if err := s.messages.DeleteContact(ctx, contact); err != nil {
		return fmt.Errorf("delete messages: %w", err)
	}
	if err := s.ratchet.Forget(ctx, contact); err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	if err := s.contacts.DeleteContact(contact); err != nil {
		return fmt.Errorf("delete contact: %w", err)
	}
	if err := s.keys.DeleteContactKey(contact); err != nil {
		return fmt.Errorf("delete contact key: %w", err)
	}
	s.log.WithField("contact", contact).Info("contact deleted")
	return nil
}

// Compile-time assertion that Service implements domain.ContactService.
var _ domain.ContactService = (*Service)(nil)
