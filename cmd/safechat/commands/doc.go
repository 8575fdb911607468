// Package commands defines the safechat CLI and wires dependencies for
// subcommands.
//
// Commands
//
//   - invite    Create a contact and print an invitation
//   - accept    Accept an invitation and print the key for the inviter
//   - confirm   Complete a handshake with the key printed by accept
//   - send      Encrypt a message and print its envelope, or queue it
//   - recv      Decrypt envelopes given as arguments or on stdin
//   - flush     Send queued messages once the conversation is ready
//   - history   Print the conversation with a contact
//   - contacts  List contacts
//   - delete    Delete a contact and everything stored about it
//
// # Implementation
//
// The root command loads the config, locks the home directory and builds the
// dependency graph before any subcommand runs; it is released afterwards.
// Envelopes and invitations are URL-safe base64 so they fit in deep links.
package commands
