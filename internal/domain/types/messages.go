package types

import "time"

// SafeMessage is a stored message. Content and timestamp are encrypted with
// the contact's local key; Order is the display sort key.
type SafeMessage struct {
	ID         MessageID  `cbor:"1,keyasint"`
	ContactID  ContactID  `cbor:"2,keyasint"`
	Direction  Direction  `cbor:"3,keyasint"`
	EncContent []byte     `cbor:"4,keyasint"`
	EncSentAt  []byte     `cbor:"5,keyasint"`
	Order      float32    `cbor:"6,keyasint"`
	ReadStatus ReadStatus `cbor:"7,keyasint"`
}

// MessageOrder is the projection of SafeMessage used by ordering.
type MessageOrder struct {
	ID        MessageID
	Order     float32
	EncSentAt []byte
}

// PlainMessage is a decrypted message as shown to the user. Corrupted rows
// keep their place but carry no content.
type PlainMessage struct {
	ID        MessageID
	ContactID ContactID
	Direction Direction
	Content   string
	SentAt    time.Time
	Order     float32
	Corrupted bool
}

// MessageData is the plaintext carried inside a ratchet-encrypted body.
type MessageData struct {
	Content string    `cbor:"1,keyasint"`
	SentAt  time.Time `cbor:"2,keyasint"`
}

// Envelope is what leaves the device. HandshakeKey is set until the
// counterpart has confirmed the conversation.
type Envelope struct {
	Header       MessageHeader `cbor:"1,keyasint"`
	Body         []byte        `cbor:"2,keyasint"`
	HandshakeKey []byte        `cbor:"3,keyasint,omitempty"`
	RecipientID  ContactID     `cbor:"4,keyasint"`
}

// QueuedMessage is an outgoing payload waiting for the conversation to be
// ready, encrypted with the queue key.
type QueuedMessage struct {
	Seq     uint64
	EncData []byte
}

// Contact is the locally stored contact record.
type Contact struct {
	ID      ContactID `json:"id"`
	EncName []byte    `json:"enc_name"`
}

// Invitation is what an inviter hands out of band to start a conversation.
// Both sides use ContactID as the conversation identifier.
type Invitation struct {
	ContactID ContactID `cbor:"1,keyasint"`
	PublicKey []byte    `cbor:"2,keyasint"`
}

// ContactSummary is the decrypted view of a contact.
type ContactSummary struct {
	ID          ContactID
	Name        string
	Phase       RatchetPhase
	Fingerprint string
}
