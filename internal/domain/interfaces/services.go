package interfaces

import (
	"context"
	"time"

	domaintypes "safechat/internal/domain/types"
)

// SendKeyFunc consumes the message key of an outgoing message. handshakeKey is
// non-nil while the counterpart has not confirmed the conversation.
type SendKeyFunc func(key *domaintypes.MessageKey, header domaintypes.MessageHeader, handshakeKey []byte) error

// ReceiveKeyFunc consumes the message key of an incoming message.
type ReceiveKeyFunc func(key *domaintypes.MessageKey) error

// RatchetEngine advances per-contact Double Ratchet state. The new state is
// committed only when the key function returns nil.
type RatchetEngine interface {
	CreateInvitation(ctx context.Context, contact domaintypes.ContactID) ([]byte, error)
	AcceptInvitation(ctx context.Context, contact domaintypes.ContactID, inviterPublicKey []byte) ([]byte, error)
	CompleteHandshake(ctx context.Context, contact domaintypes.ContactID, inviteePublicKey []byte) error
	SendKey(ctx context.Context, contact domaintypes.ContactID, use SendKeyFunc) error
	ReceiveKey(
		ctx context.Context,
		contact domaintypes.ContactID,
		header domaintypes.MessageHeader,
		handshakeKey []byte,
		use ReceiveKeyFunc,
	) error
	State(contact domaintypes.ContactID) (domaintypes.ConversationState, bool, error)
	Forget(ctx context.Context, contact domaintypes.ContactID) error
}

// TimestampDecrypter opens a stored encrypted sentAt.
type TimestampDecrypter interface {
	DecryptTime(enc []byte, key *domaintypes.ContactLocalKey) (time.Time, error)
}

// OrderCalculator places a new message among the stored ones.
type OrderCalculator interface {
	Calculate(
		ctx context.Context,
		sentAt time.Time,
		contact domaintypes.ContactID,
		key *domaintypes.ContactLocalKey,
	) (domaintypes.OrderResult, error)
}

// ContactService manages contacts and their local keys.
type ContactService interface {
	Invite(ctx context.Context, name string) (domaintypes.Invitation, error)
	Accept(ctx context.Context, name string, inv domaintypes.Invitation) (domaintypes.ContactID, []byte, error)
	Confirm(ctx context.Context, contact domaintypes.ContactID, inviteePublicKey []byte) error
	List(ctx context.Context) ([]domaintypes.ContactSummary, error)
	Resolve(ctx context.Context, name string) (domaintypes.ContactID, error)
	LocalKey(contact domaintypes.ContactID) (*domaintypes.ContactLocalKey, error)
	Delete(ctx context.Context, contact domaintypes.ContactID) error
}

// MessageService encrypts, orders, stores and decrypts messages.
type MessageService interface {
	Send(ctx context.Context, contact domaintypes.ContactID, content string) (*domaintypes.Envelope, error)
	Receive(ctx context.Context, env domaintypes.Envelope) (domaintypes.PlainMessage, error)
	Flush(ctx context.Context, contact domaintypes.ContactID) ([]domaintypes.Envelope, error)
	History(ctx context.Context, contact domaintypes.ContactID) ([]domaintypes.PlainMessage, error)
}
