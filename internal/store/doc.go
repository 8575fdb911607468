// Package store provides file-based persistence for safechat's local state.
//
// Secrets are sealed with a vault key derived once per process from the
// user's passphrase. Stored files live under the configured home directory:
//   - vault.json: KDF parameters and a canary proving the passphrase
//   - conversations.enc: Double Ratchet state per contact (ConversationFileStore)
//   - keys.enc: contact local keys and the queue key (KeyFileStore)
//   - contacts.enc: contact records with encrypted names (ContactFileStore)
//
// Messages and queues live in LevelDB, see package msgdb.
package store
