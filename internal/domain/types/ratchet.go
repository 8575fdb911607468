package types

import "safechat/internal/util/memzero"

// MessageHeader is sent alongside every ratchet-encrypted body.
type MessageHeader struct {
	PublicKey           []byte `cbor:"1,keyasint" json:"public_key"`
	MessageNumber       uint32 `cbor:"2,keyasint" json:"message_number"`
	SequenceNumber      uint32 `cbor:"3,keyasint" json:"sequence_number"`
	PreviousChainLength uint32 `cbor:"4,keyasint" json:"previous_chain_length"`
}

// RatchetPhase is the key-schedule state of a conversation.
type RatchetPhase uint8

const (
	// PhaseUninitialized: key pair exists, no root key yet.
	PhaseUninitialized RatchetPhase = iota
	// PhaseRootEstablished: root key derived, no chain advanced yet.
	PhaseRootEstablished
	// PhaseChainAdvancing: at least one chain key in use.
	PhaseChainAdvancing
)

// String returns the string form of the phase.
func (p RatchetPhase) String() string {
	switch p {
	case PhaseUninitialized:
		return "uninitialized"
	case PhaseRootEstablished:
		return "root-established"
	case PhaseChainAdvancing:
		return "chain-advancing"
	default:
		return "unknown"
	}
}

// ConversationState is the persisted Double Ratchet state for one contact.
type ConversationState struct {
	ContactID ContactID    `json:"contact_id"`
	Phase     RatchetPhase `json:"phase"`

	// Initiator is set on the side that accepted the invitation. It owns the
	// first DH ratchet step and may send before hearing back.
	Initiator bool `json:"initiator"`
	// HandshakePublicKey is the accepting side's invitation key, sent with
	// every envelope until HandshakeConfirmed.
	HandshakePublicKey []byte `json:"handshake_public_key,omitempty"`
	HandshakeConfirmed bool   `json:"handshake_confirmed"`

	PersonalKeyPair       AsymmetricKeyPair `json:"personal_key_pair"`
	ContactPublicKey      []byte            `json:"contact_public_key,omitempty"`
	RetiredContactKeys    [][]byte          `json:"retired_contact_keys,omitempty"`
	RootKey               []byte            `json:"root_key,omitempty"`
	SendingChainKey       []byte            `json:"sending_chain_key,omitempty"`
	ReceivingChainKey     []byte            `json:"receiving_chain_key,omitempty"`
	MessageNumber         uint32            `json:"message_number"` // total sent
	SendSequenceNumber    uint32            `json:"send_sequence_number"`
	PreviousChainLength   uint32            `json:"previous_chain_length"`
	ReceiveSequenceNumber uint32            `json:"receive_sequence_number"`

	// SkippedKeys holds message keys of messages not received yet, keyed by
	// ratchet public key and sequence number.
	SkippedKeys map[string][]byte `json:"skipped_keys,omitempty"`
}

// Clone returns a deep copy so a pending state can be built without touching
// the committed one.
func (s ConversationState) Clone() ConversationState {
	out := s
	out.PersonalKeyPair = AsymmetricKeyPair{
		PublicKey:  cloneBytes(s.PersonalKeyPair.PublicKey),
		PrivateKey: cloneBytes(s.PersonalKeyPair.PrivateKey),
	}
	out.HandshakePublicKey = cloneBytes(s.HandshakePublicKey)
	out.ContactPublicKey = cloneBytes(s.ContactPublicKey)
	if s.RetiredContactKeys != nil {
		out.RetiredContactKeys = make([][]byte, len(s.RetiredContactKeys))
		for i, k := range s.RetiredContactKeys {
			out.RetiredContactKeys[i] = cloneBytes(k)
		}
	}
	out.RootKey = cloneBytes(s.RootKey)
	out.SendingChainKey = cloneBytes(s.SendingChainKey)
	out.ReceivingChainKey = cloneBytes(s.ReceivingChainKey)
	if s.SkippedKeys != nil {
		out.SkippedKeys = make(map[string][]byte, len(s.SkippedKeys))
		for k, v := range s.SkippedKeys {
			out.SkippedKeys[k] = cloneBytes(v)
		}
	}
	return out
}

// Wipe zeroes the secret fields in place. The state must not be used
// afterwards.
func (s *ConversationState) Wipe() {
	s.PersonalKeyPair.Destroy()
	memzero.ZeroAll(s.RootKey, s.SendingChainKey, s.ReceivingChainKey)
	for _, v := range s.SkippedKeys {
		memzero.Zero(v)
	}
}

// ReadyToSend reports whether a sending chain can be started. The inviting
// side waits for the first message so both sides agree on the first epoch.
func (s ConversationState) ReadyToSend() bool {
	return len(s.RootKey) > 0 && (s.Initiator || len(s.ReceivingChainKey) > 0)
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}
