package interfaces

import (
	"context"
	"time"

	domaintypes "safechat/internal/domain/types"
)

// MessageOrderStore is the read side used to place new messages. Rows are
// ranked by order, most recent first: At(ctx, c, 0, nil) equals MostRecent.
// Ids in exclude are skipped as if they were not stored.
type MessageOrderStore interface {
	MostRecent(ctx context.Context, contact domaintypes.ContactID, exclude []domaintypes.MessageID) (*domaintypes.MessageOrder, error)
	LeastRecent(ctx context.Context, contact domaintypes.ContactID, exclude []domaintypes.MessageID) (*domaintypes.MessageOrder, error)
	At(ctx context.Context, contact domaintypes.ContactID, index int, exclude []domaintypes.MessageID) (*domaintypes.MessageOrder, error)
	Count(ctx context.Context, contact domaintypes.ContactID, exclude []domaintypes.MessageID) (int, error)
}

// MessageStore persists messages per contact.
type MessageStore interface {
	MessageOrderStore

	Save(ctx context.Context, msg domaintypes.SafeMessage) error
	ByOrder(ctx context.Context, contact domaintypes.ContactID, order float32) (*domaintypes.SafeMessage, error)
	List(ctx context.Context, contact domaintypes.ContactID) ([]domaintypes.SafeMessage, error)
	DeleteContact(ctx context.Context, contact domaintypes.ContactID) error
}

// QueueStore buffers outgoing payloads until the conversation is ready.
type QueueStore interface {
	Enqueue(ctx context.Context, contact domaintypes.ContactID, encData []byte) (uint64, error)
	Queued(ctx context.Context, contact domaintypes.ContactID) ([]domaintypes.QueuedMessage, error)
	Dequeue(ctx context.Context, contact domaintypes.ContactID, seq uint64) error
}

// ConversationStore keeps per-contact Double Ratchet state.
type ConversationStore interface {
	SaveConversation(state domaintypes.ConversationState) error
	LoadConversation(contact domaintypes.ContactID) (domaintypes.ConversationState, bool, error)
	DeleteConversation(contact domaintypes.ContactID) error
}

// ContactKeyStore keeps the local key of every contact.
type ContactKeyStore interface {
	SaveContactKey(contact domaintypes.ContactID, key []byte) error
	LoadContactKey(contact domaintypes.ContactID) (*domaintypes.ContactLocalKey, bool, error)
	DeleteContactKey(contact domaintypes.ContactID) error
}

// QueueKeyStore keeps the single local queue key.
type QueueKeyStore interface {
	SaveQueueKey(key []byte) error
	LoadQueueKey() (*domaintypes.QueueKey, bool, error)
}

// ContactStore persists contact records.
type ContactStore interface {
	SaveContact(contact domaintypes.Contact) error
	LoadContact(id domaintypes.ContactID) (domaintypes.Contact, bool, error)
	ListContacts() ([]domaintypes.Contact, error)
	DeleteContact(id domaintypes.ContactID) error
}

// Clock supplies the default sentAt of outgoing messages.
type Clock interface {
	Now() time.Time
}
