// Package msgdb stores messages and outgoing queues in LevelDB.
//
// Messages are keyed so that a forward scan of one contact's prefix yields
// ascending order:
//
//	m/<contact:16><order:4><message:16> -> cbor(SafeMessage)
//	q/<contact:16><seq:8>               -> queue-encrypted payload
//
// Orders are stored as sortable big-endian float bits.
package msgdb
