package types

import "github.com/google/uuid"

// ContactID identifies a contact and, by extension, the conversation with it.
type ContactID uuid.UUID

// NewContactID returns a random contact identifier.
func NewContactID() ContactID { return ContactID(uuid.New()) }

// ParseContactID parses the canonical string form of a contact identifier.
func ParseContactID(s string) (ContactID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return ContactID{}, err
	}
	return ContactID(u), nil
}

// String returns the string form of the contact identifier.
func (id ContactID) String() string { return uuid.UUID(id).String() }

// Bytes returns the 16 raw bytes of the identifier.
func (id ContactID) Bytes() []byte { return id[:] }

// MessageID identifies a stored message.
type MessageID uuid.UUID

// NewMessageID returns a random message identifier.
func NewMessageID() MessageID { return MessageID(uuid.New()) }

// String returns the string form of the message identifier.
func (id MessageID) String() string { return uuid.UUID(id).String() }

// Bytes returns the 16 raw bytes of the identifier.
func (id MessageID) Bytes() []byte { return id[:] }

// Direction tells whether a message was sent or received.
type Direction uint8

const (
	DirectionSent Direction = iota + 1
	DirectionReceived
)

// String returns the string form of the direction.
func (d Direction) String() string {
	switch d {
	case DirectionSent:
		return "SENT"
	case DirectionReceived:
		return "RECEIVED"
	default:
		return "UNKNOWN"
	}
}

// ReadStatus tracks whether a message has been displayed.
type ReadStatus uint8

const (
	ReadStatusUnread ReadStatus = iota
	ReadStatusRead
)

// MarshalText implements encoding.TextMarshaler.
func (id ContactID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *ContactID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }

// MarshalText implements encoding.TextMarshaler.
func (id MessageID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *MessageID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }
