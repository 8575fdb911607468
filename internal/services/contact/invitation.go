package contact

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/fxamacker/cbor/v2"

	"safechat/internal/domain"
)

// EncodeInvitation returns inv as URL-safe base64 text.
func EncodeInvitation(inv domain.Invitation) (string, error) {
	b, err := cbor.Marshal(inv)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// DecodeInvitation parses the output of EncodeInvitation.
func DecodeInvitation(s string) (domain.Invitation, error) {
	b, err := base64.RawURLEncoding.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return domain.Invitation{}, fmt.Errorf("%w: %w", ErrInvalidInvitation, err)
	}
	var inv domain.Invitation
	if err := cbor.Unmarshal(b, &inv); err != nil {
		return domain.Invitation{}, fmt.Errorf("%w: %w", ErrInvalidInvitation, err)
	}
	if len(inv.PublicKey) == 0 {
		return domain.Invitation{}, fmt.Errorf("%w: missing public key", ErrInvalidInvitation)
	}
	return inv, nil
}

// EncodeKey returns a handshake public key as URL-safe base64 text.
func EncodeKey(pub []byte) string { return base64.RawURLEncoding.EncodeToString(pub) }

// DecodeKey parses the output of EncodeKey.
func DecodeKey(s string) ([]byte, error) {
	b, err := base64.RawURLEncoding.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInvitation, err)
	}
	return b, nil
}
