// Package message encrypts, orders, stores and decrypts messages.
//
// Outgoing bodies are sealed with the single-use key handed out by the
// ratchet engine, with the message header as associated data. Messages that
// cannot be sent yet are sealed with the local queue key and kept until
// Flush. Every stored message is encrypted with its contact's local key and
// placed by the order calculator inside a per-contact critical section.
package message
