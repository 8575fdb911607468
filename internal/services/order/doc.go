// Package order places messages in a conversation without decrypting the
// whole history.
//
// A message's order is a float32 sort key. Appending takes the next integer
// above the most recent order, older messages are located with a binary
// search over the stored rows (most recent first) that decrypts only the
// timestamps it probes, and gaps are split at their midpoint so stored rows
// are never renumbered.
//
// Rows whose timestamp fails to decrypt are excluded for the rest of the
// call and logged, never deleted. Two messages with the same timestamp yield
// a Duplicated result the caller must resolve.
package order
