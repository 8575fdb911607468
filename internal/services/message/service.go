package message

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"safechat/internal/domain"
	"safechat/internal/domain/types"
	"safechat/internal/protocol/ratchet"
)

var (
	// ErrUnknownContact is returned when no local key exists for a contact.
	ErrUnknownContact = errors.New("message: unknown contact")
	// ErrDuplicatedMessage is returned when a message with the same content
	// and timestamp is already stored.
	ErrDuplicatedMessage = errors.New("message: duplicated message")
	// ErrAlreadyReceived is returned for envelopes whose key was consumed.
	ErrAlreadyReceived = errors.New("message: already received")
	// ErrConversationNotReady is returned by Flush while nothing can be sent.
	ErrConversationNotReady = errors.New("message: conversation not ready")
)

// Service implements domain.MessageService.
type Service struct {
	ratchet  domain.RatchetEngine
	crypto   *CryptoRepository
	order    domain.OrderCalculator
	messages domain.MessageStore
	queue    domain.QueueStore
	keys     domain.ContactKeyStore
	clock    domain.Clock

	// saves serialises order calculation, storage and the queue per
	// contact. It is taken before the ratchet engine's lock and must not be
	// shared with it.
	saves *ratchet.Locker
	log   *logrus.Entry
}

// Deps groups the collaborators of a Service.
type Deps struct {
	Ratchet  domain.RatchetEngine
	Crypto   *CryptoRepository
	Order    domain.OrderCalculator
	Messages domain.MessageStore
	Queue    domain.QueueStore
	Keys     domain.ContactKeyStore
	Clock    domain.Clock
}

// NewService wires a Service.
func NewService(d Deps) *Service {
	return &Service{
		ratchet:  d.Ratchet,
		crypto:   d.Crypto,
		order:    d.Order,
		messages: d.Messages,
		queue:    d.Queue,
		keys:     d.Keys,
		clock:    d.Clock,
		saves:    ratchet.NewLocker(),
		log:      logrus.WithField("component", "message"),
	}
}

// Send stores content as a sent message and seals it for the contact. When
// the conversation cannot send yet the payload is queued and the returned
// envelope is nil.
func (s *Service) Send(ctx context.Context, contact domain.ContactID, content string) (*domain.Envelope, error) {
	data := domain.MessageData{Content: content, SentAt: s.clock.Now()}
	payload, err := encodeData(data)
	if err != nil {
		return nil, err
	}

	var env *domain.Envelope
	err = s.saves.Do(ctx, contact, func() error {
		var err error
		env, err = s.seal(ctx, contact, payload, func() error {
			_, err := s.save(ctx, contact, domain.DirectionSent, data)
			return err
		})
		if errors.Is(err, ratchet.ErrConversationNotReady) {
			return s.enqueue(ctx, contact, data, payload)
		}
		return err
	})
	if err != nil || env == nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{
		"contact": contact,
		"seq":     env.Header.SequenceNumber,
	}).Debug("message sealed")
	return env, nil
}

// enqueue stores a sent message and queues its payload. Callers hold the
// contact's save lock.
func (s *Service) enqueue(ctx context.Context, contact domain.ContactID, data domain.MessageData, payload []byte) error {
	enc, err := s.crypto.QueueEncrypt(payload)
	if err != nil {
		return err
	}
	if _, err := s.save(ctx, contact, domain.DirectionSent, data); err != nil {
		return err
	}
	seq, err := s.queue.Enqueue(ctx, contact, enc)
	if err != nil {
		return fmt.Errorf("enqueue: %w", err)
	}
	s.log.WithFields(logrus.Fields{"contact": contact, "queue_seq": seq}).Info("message queued until the conversation is ready")
	return nil
}

// seal encrypts payload with the next sending key. after runs before the
// ratchet state is committed; its error aborts the send.
func (s *Service) seal(ctx context.Context, contact domain.ContactID, payload []byte, after func() error) (*domain.Envelope, error) {
	var env domain.Envelope
	err := s.ratchet.SendKey(ctx, contact, func(mk *domain.MessageKey, h domain.MessageHeader, handshakeKey []byte) error {
		ad, err := headerAD(contact, h)
		if err != nil {
			mk.Destroy()
			return err
		}
		body, err := s.crypto.EncryptMessage(payload, mk, ad)
		if err != nil {
			return err
		}
		env = domain.Envelope{
			Header:       h,
			Body:         body,
			HandshakeKey: handshakeKey,
			RecipientID:  contact,
		}
		if after != nil {
			return after()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &env, nil
}

// Receive opens env and stores the message. The ratchet state only advances
// once the message is stored.
func (s *Service) Receive(ctx context.Context, env domain.Envelope) (domain.PlainMessage, error) {
	contact := env.RecipientID
	key, err := s.localKey(contact)
	if err != nil {
		return domain.PlainMessage{}, err
	}
	key.Destroy()

	var out domain.PlainMessage
	err = s.saves.Do(ctx, contact, func() error {
		return s.ratchet.ReceiveKey(ctx, contact, env.Header, env.HandshakeKey, func(mk *domain.MessageKey) error {
			ad, err := headerAD(contact, env.Header)
			if err != nil {
				mk.Destroy()
				return err
			}
			pt, err := s.crypto.DecryptMessage(env.Body, mk, ad)
			if err != nil {
				return err
			}
			data, err := decodeData(pt)
			if err != nil {
				return err
			}
			out, err = s.save(ctx, contact, domain.DirectionReceived, data)
			return err
		})
	})
	switch {
	case errors.Is(err, ratchet.ErrMessageKeyNotFound):
		return domain.PlainMessage{}, fmt.Errorf("%w: %w", ErrAlreadyReceived, err)
	case err != nil:
		return domain.PlainMessage{}, err
	}
	return out, nil
}

// Save places a message in the contact's history. A message that collides
// with a stored one of equal content is rejected with ErrDuplicatedMessage.
func (s *Service) Save(
	ctx context.Context,
	contact domain.ContactID,
	dir domain.Direction,
	data domain.MessageData,
) (domain.PlainMessage, error) {
	var out domain.PlainMessage
	err := s.saves.Do(ctx, contact, func() error {
		var err error
		out, err = s.save(ctx, contact, dir, data)
		return err
	})
	return out, err
}

// save is Save without locking. Callers hold the contact's save lock, which
// is always taken before the ratchet engine's.
func (s *Service) save(
	ctx context.Context,
	contact domain.ContactID,
	dir domain.Direction,
	data domain.MessageData,
) (domain.PlainMessage, error) {
	key, err := s.localKey(contact)
	if err != nil {
		return domain.PlainMessage{}, err
	}
	defer key.Destroy()

	res, err := s.order.Calculate(ctx, data.SentAt, contact, key)
	if err != nil {
		return domain.PlainMessage{}, fmt.Errorf("calculate order: %w", err)
	}
	if res.IsDuplicated() {
		dup, err := s.sameContent(ctx, contact, res.Conflicting, data.Content, key)
		if err != nil {
			return domain.PlainMessage{}, err
		}
		if dup {
			return domain.PlainMessage{}, ErrDuplicatedMessage
		}
	}

	encContent, err := s.crypto.LocalEncrypt([]byte(data.Content), key)
	if err != nil {
		return domain.PlainMessage{}, err
	}
	encSentAt, err := s.crypto.EncryptTime(data.SentAt, key)
	if err != nil {
		return domain.PlainMessage{}, err
	}
	msg := domain.SafeMessage{
		ID:         types.NewMessageID(),
		ContactID:  contact,
		Direction:  dir,
		EncContent: encContent,
		EncSentAt:  encSentAt,
		Order:      res.Order,
		ReadStatus: types.ReadStatusUnread,
	}
	if dir == domain.DirectionSent {
		msg.ReadStatus = types.ReadStatusRead
	}
	if err := s.messages.Save(ctx, msg); err != nil {
		return domain.PlainMessage{}, fmt.Errorf("save message: %w", err)
	}
	return domain.PlainMessage{
		ID:        msg.ID,
		ContactID: contact,
		Direction: dir,
		Content:   data.Content,
		SentAt:    data.SentAt,
		Order:     msg.Order,
	}, nil
}

func (s *Service) sameContent(
	ctx context.Context,
	contact domain.ContactID,
	order float32,
	content string,
	key *domain.ContactLocalKey,
) (bool, error) {
	existing, err := s.messages.ByOrder(ctx, contact, order)
	if err != nil {
		return false, fmt.Errorf("load conflicting message: %w", err)
	}
	if existing == nil {
		return false, nil
	}
	b, err := s.crypto.LocalDecrypt(existing.EncContent, key)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"contact": contact.String(),
			"message": existing.ID.String(),
			"order":   order,
			"error":   err,
		}).Warn("conflicting message content does not decrypt, saving the new message")
		return false, nil
	}
	return string(b) == content, nil
}

// Flush seals queued payloads in order once the conversation can send. It
// stops at the first payload that still cannot be sent.
//
// A payload is dequeued after its ratchet step is committed. If the dequeue
// fails, the next Flush seals the payload again under a new key and the
// receiver rejects the copy as ErrDuplicatedMessage.
func (s *Service) Flush(ctx context.Context, contact domain.ContactID) ([]domain.Envelope, error) {
	var out []domain.Envelope
	err := s.saves.Do(ctx, contact, func() error {
		queued, err := s.queue.Queued(ctx, contact)
		if err != nil {
			return fmt.Errorf("load queue: %w", err)
		}
		for _, q := range queued {
			payload, err := s.crypto.QueueDecrypt(q.EncData)
			if err != nil {
				return err
			}
			env, err := s.seal(ctx, contact, payload, nil)
			if errors.Is(err, ratchet.ErrConversationNotReady) {
				if len(out) == 0 {
					return fmt.Errorf("%w: %w", ErrConversationNotReady, err)
				}
				return nil
			}
			if err != nil {
				return err
			}
			if err := s.queue.Dequeue(ctx, contact, q.Seq); err != nil {
				return fmt.Errorf("dequeue: %w", err)
			}
			out = append(out, *env)
		}
		return nil
	})
	if len(out) > 0 {
		s.log.WithFields(logrus.Fields{"contact": contact, "count": len(out)}).Info("queue flushed")
	}
	if errors.Is(err, ErrConversationNotReady) {
		return nil, err
	}
	return out, err
}

// History returns the contact's messages in display order. Rows that do not
// decrypt are returned flagged as corrupted.
func (s *Service) History(ctx context.Context, contact domain.ContactID) ([]domain.PlainMessage, error) {
	key, err := s.localKey(contact)
	if err != nil {
		return nil, err
	}
	defer key.Destroy()

	rows, err := s.messages.List(ctx, contact)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	out := make([]domain.PlainMessage, 0, len(rows))
	for _, row := range rows {
		pm := domain.PlainMessage{
			ID:        row.ID,
			ContactID: row.ContactID,
			Direction: row.Direction,
			Order:     row.Order,
		}
		content, cerr := s.crypto.LocalDecrypt(row.EncContent, key)
		sentAt, terr := s.crypto.DecryptTime(row.EncSentAt, key)
		if cerr != nil || terr != nil {
			s.log.WithFields(logrus.Fields{"contact": contact, "id": row.ID}).Warn("corrupted message in history")
			pm.Corrupted = true
		} else {
			pm.Content = string(content)
			pm.SentAt = sentAt
		}
		out = append(out, pm)
	}
	return out, nil
}

func (s *Service) localKey(contact domain.ContactID) (*domain.ContactLocalKey, error) {
	key, ok, err := s.keys.LoadContactKey(contact)
	if err != nil {
		return nil, fmt.Errorf("load contact key: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownContact, contact)
	}
	return key, nil
}

// Compile-time assertion that Service implements domain.MessageService.
var _ domain.MessageService = (*Service)(nil)
