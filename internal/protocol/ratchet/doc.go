// Package ratchet implements the Double Ratchet key schedule over P-256.
//
// KeyRepository holds the primitive steps: the DH ratchet step (DeriveRootKeys)
// splits one HKDF output into a new root key and a new chain key, the
// symmetric step (DeriveChainKeys) derives the message key and the next chain
// key from the same chain key under two distinct salts.
//
// Engine drives those steps per contact. The side that accepts an invitation
// performs the first DH ratchet step and may send immediately; the inviting
// side completes the handshake from the first envelope it receives and can
// only send afterwards, so both sides always agree on the current epoch.
//
// Concurrency: Engine serialises all work per contact through a Locker.
// Different contacts proceed in parallel. A new state is written once, after
// every derivation succeeded and the caller consumed the message key.
package ratchet
