// Package crypto exposes the primitives the messaging core is built on.
//
// Contents
//
//   - AEAD engines over byte buffers and streams, AES-256-GCM and
//     ChaCha20-Poly1305 (NewAESGCM, NewChaCha20Poly1305, NewEngine)
//   - P-256 key agreement with PKIX/PKCS#8 encoded keys (KeyExchange)
//   - HKDF-SHA512 expansion without info (KeyDerivation)
//   - Short public-key fingerprints for display (Fingerprint)
//
// # Notes
//
// Every ciphertext starts with its 12-byte nonce. Failures are reported
// through the sentinel errors in errors.go and are never retried here.
package crypto
