package crypto

import (
	"fmt"
	"strings"

	"golang.org/x/sys/cpu"
)

// Algorithm names a symmetric engine.
type Algorithm string

const (
	// AlgorithmAuto picks AES-GCM when the CPU accelerates it, otherwise
	// ChaCha20-Poly1305.
	AlgorithmAuto             Algorithm = "auto"
	AlgorithmAESGCM           Algorithm = "aes-gcm"
	AlgorithmChaCha20Poly1305 Algorithm = "chacha20-poly1305"
)

// ParseAlgorithm parses a configured engine name. The empty string means auto.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch a := Algorithm(strings.ToLower(strings.TrimSpace(s))); a {
	case "":
		return AlgorithmAuto, nil
	case AlgorithmAuto, AlgorithmAESGCM, AlgorithmChaCha20Poly1305:
		return a, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, s)
	}
}

// HasAESHardware reports whether AES-GCM runs on dedicated instructions.
func HasAESHardware() bool {
	return (cpu.X86.HasAES && cpu.X86.HasPCLMULQDQ) ||
		(cpu.ARM64.HasAES && cpu.ARM64.HasPMULL) ||
		(cpu.S390X.HasAES && cpu.S390X.HasAESGCM)
}

// Resolve maps auto to a concrete algorithm for this machine.
func (a Algorithm) Resolve() Algorithm {
	if a != AlgorithmAuto {
		return a
	}
	if HasAESHardware() {
		return AlgorithmAESGCM
	}
	return AlgorithmChaCha20Poly1305
}

// NewEngine is the single place an engine backend is chosen.
func NewEngine(alg Algorithm, opts ...Option) (Engine, error) {
	switch alg.Resolve() {
	case AlgorithmAESGCM:
		return NewAESGCM(opts...), nil
	case AlgorithmChaCha20Poly1305:
		return NewChaCha20Poly1305(opts...), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, string(alg))
	}
}
