package domain

import (
	interfaces "safechat/internal/domain/interfaces"
	types "safechat/internal/domain/types"
)

// Type aliases expose domain types from the types subpackage for compact imports.
type (
	ContactID         = types.ContactID
	MessageID         = types.MessageID
	Direction         = types.Direction
	ReadStatus        = types.ReadStatus
	RootKey           = types.RootKey
	ChainKey          = types.ChainKey
	MessageKey        = types.MessageKey
	SharedSecret      = types.SharedSecret
	ContactLocalKey   = types.ContactLocalKey
	QueueKey          = types.QueueKey
	AsymmetricKeyPair = types.AsymmetricKeyPair
	SafeMessage       = types.SafeMessage
	MessageOrder      = types.MessageOrder
	PlainMessage      = types.PlainMessage
	MessageData       = types.MessageData
	Envelope          = types.Envelope
	QueuedMessage     = types.QueuedMessage
	Contact           = types.Contact
	ContactSummary    = types.ContactSummary
	Invitation        = types.Invitation
	MessageHeader     = types.MessageHeader
	RatchetPhase      = types.RatchetPhase
	ConversationState = types.ConversationState
	OrderResult       = types.OrderResult
)

// Interface aliases expose domain interfaces from the interfaces subpackage.
type (
	MessageOrderStore  = interfaces.MessageOrderStore
	MessageStore       = interfaces.MessageStore
	QueueStore         = interfaces.QueueStore
	ConversationStore  = interfaces.ConversationStore
	ContactKeyStore    = interfaces.ContactKeyStore
	QueueKeyStore      = interfaces.QueueKeyStore
	ContactStore       = interfaces.ContactStore
	Clock              = interfaces.Clock
	RatchetEngine      = interfaces.RatchetEngine
	SendKeyFunc        = interfaces.SendKeyFunc
	ReceiveKeyFunc     = interfaces.ReceiveKeyFunc
	TimestampDecrypter = interfaces.TimestampDecrypter
	OrderCalculator    = interfaces.OrderCalculator
	ContactService     = interfaces.ContactService
	MessageService     = interfaces.MessageService
)

// Constants re-exported for callers that only import domain.
const (
	DirectionSent     = types.DirectionSent
	DirectionReceived = types.DirectionReceived

	PhaseUninitialized   = types.PhaseUninitialized
	PhaseRootEstablished = types.PhaseRootEstablished
	PhaseChainAdvancing  = types.PhaseChainAdvancing
)
