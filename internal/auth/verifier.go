package auth

import (
	"context"
	"strings"
)

// Verifier checks that signature was produced by the wallet at address over
// message. Chain-specific implementations live outside this package.
type Verifier interface {
	Verify(ctx context.Context, address, message, signature string) (bool, error)
}

// InsecureVerifier accepts any non-empty signature. It exists for local
// development and must be enabled explicitly.
type InsecureVerifier struct{}

func (InsecureVerifier) Verify(_ context.Context, _, _, signature string) (bool, error) {
	return strings.TrimSpace(signature) != "", nil
}

// VerifierFunc adapts a function to Verifier.
type VerifierFunc func(ctx context.Context, address, message, signature string) (bool, error)

func (f VerifierFunc) Verify(ctx context.Context, address, message, signature string) (bool, error) {
	return f(ctx, address, message, signature)
}
