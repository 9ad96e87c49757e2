package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Service runs the challenge/response login.
type Service struct {
	Challenges ChallengeStore
	Verifier   Verifier
	Tokens     *TokenIssuer
	Now        func() time.Time
}

// NewService wires a login service.
func NewService(store ChallengeStore, v Verifier, tokens *TokenIssuer) *Service {
	return &Service{Challenges: store, Verifier: v, Tokens: tokens, Now: time.Now}
}

// Session is the result of a successful login.
type Session struct {
	Address   string    `json:"address"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func normalize(address string) (string, error) {
	a := strings.ToLower(strings.TrimSpace(address))
	if a == "" {
		return "", errors.New("address is required")
	}
	return a, nil
}

// Challenge issues a fresh challenge for address, replacing any pending one.
func (s *Service) Challenge(ctx context.Context, address string) (string, error) {
	a, err := normalize(address)
	if err != nil {
		return "", err
	}
	c := NewChallenge(a, s.Now())
	if err := s.Challenges.Put(ctx, a, c); err != nil {
		return "", err
	}
	return c, nil
}

// Login consumes the pending challenge of address, verifies signature over
// it and issues a session token. A challenge is spent even when the
// signature is rejected.
func (s *Service) Login(ctx context.Context, address, signature string) (*Session, error) {
	a, err := normalize(address)
	if err != nil {
		return nil, err
	}
	challenge, err := s.Challenges.Take(ctx, a)
	if err != nil {
		return nil, err
	}
	ok, err := s.Verifier.Verify(ctx, a, challenge, signature)
	if err != nil {
		log.Warn().Err(err).Str("address", a).Msg("signature verifier failed")
		return nil, ErrBadSignature
	}
	if !ok {
		return nil, ErrBadSignature
	}
	token, exp, err := s.Tokens.Issue(a)
	if err != nil {
		return nil, err
	}
	return &Session{Address: a, Token: token, ExpiresAt: exp}, nil
}
