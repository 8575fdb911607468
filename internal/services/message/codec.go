package message

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/fxamacker/cbor/v2"

	"safechat/internal/domain"
)

// encMode keeps nanoseconds in timestamps; the default mode truncates to
// seconds.
var encMode = func() cbor.EncMode {
	em, err := cbor.EncOptions{Time: cbor.TimeRFC3339Nano}.EncMode()
	if err != nil {
		panic(err)
	}
	return em
}()

func encodeData(d domain.MessageData) ([]byte, error) { return encMode.Marshal(d) }

func decodeData(b []byte) (domain.MessageData, error) {
	var d domain.MessageData
	if err := cbor.Unmarshal(b, &d); err != nil {
		return domain.MessageData{}, fmt.Errorf("decode message data: %w", err)
	}
	return d, nil
}

// headerAD binds a body to its header and conversation.
func headerAD(contact domain.ContactID, h domain.MessageHeader) ([]byte, error) {
	b, err := encMode.Marshal(h)
	if err != nil {
		return nil, err
	}
	return append(contact.Bytes(), b...), nil
}

// EncodeEnvelope returns the binary form of env.
func EncodeEnvelope(env domain.Envelope) ([]byte, error) { return encMode.Marshal(env) }

// DecodeEnvelope parses the binary form of an envelope.
func DecodeEnvelope(b []byte) (domain.Envelope, error) {
	var env domain.Envelope
	if err := cbor.Unmarshal(b, &env); err != nil {
		return domain.Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	return env, nil
}

// EncodeEnvelopeText returns env as URL-safe base64, fit for deep links.
func EncodeEnvelopeText(env domain.Envelope) (string, error) {
	b, err := EncodeEnvelope(env)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// DecodeEnvelopeText parses the output of EncodeEnvelopeText.
func DecodeEnvelopeText(s string) (domain.Envelope, error) {
	b, err := base64.RawURLEncoding.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return domain.Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	return DecodeEnvelope(b)
}
