// Package auth implements wallet login for the tavern: a single-use
// challenge per address, a pluggable signature Verifier, and HS256 session
// tokens carrying the wallet address.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

var (
	// ErrNoChallenge is returned when no live challenge exists for an address.
	ErrNoChallenge = errors.New("no pending challenge")
	// ErrBadSignature is returned when the Verifier rejects a signature.
	ErrBadSignature = errors.New("signature verification failed")
	// ErrInvalidToken is returned for malformed, expired or foreign tokens.
	ErrInvalidToken = errors.New("invalid token")
)

// ChallengeStore keeps one pending login challenge per address. Take returns
// the challenge and removes it, so every challenge can be used once.
type ChallengeStore interface {
	Put(ctx context.Context, address, challenge string) error
	Take(ctx context.Context, address string) (string, error)
}

// NewChallenge builds the message a wallet signs to log in.
func NewChallenge(address string, now time.Time) string {
	return fmt.Sprintf("Bottles Tavern login\naddress: %s\nnonce: %s\nissued: %s",
		address, uuid.NewString(), now.UTC().Format(time.RFC3339))
}

// MemoryChallengeStore is an in-process ChallengeStore bounded in size and
// age. Entries are evicted after ttl or when capacity is reached.
type MemoryChallengeStore struct {
	cache *expirable.LRU[string, string]
}

// NewMemoryChallengeStore returns a store holding at most capacity challenges
// for ttl each.
func NewMemoryChallengeStore(capacity int, ttl time.Duration) *MemoryChallengeStore {
	return &MemoryChallengeStore{cache: expirable.NewLRU[string, string](capacity, nil, ttl)}
}

func (m *MemoryChallengeStore) Put(_ context.Context, address, challenge string) error {
	m.cache.Add(address, challenge)
	return nil
}

// Take hands the pending challenge to exactly one caller: only the caller
// whose Remove succeeds gets it.
func (m *MemoryChallengeStore) Take(_ context.Context, address string) (string, error) {
	c, ok := m.cache.Peek(address)
	if !ok || !m.cache.Remove(address) {
		return "", ErrNoChallenge
	}
	return c, nil
}

// Len returns the number of live challenges.
func (m *MemoryChallengeStore) Len() int { return m.cache.Len() }

// RedisChallengeStore keeps challenges in Redis so that several API
// instances can share a login flow.
type RedisChallengeStore struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisChallengeStore wraps client; keys expire after ttl.
func NewRedisChallengeStore(client *redis.Client, ttl time.Duration) *RedisChallengeStore {
	return &RedisChallengeStore{client: client, ttl: ttl, prefix: "tavern:challenge:"}
}

func (r *RedisChallengeStore) key(address string) string {
	return r.prefix + strings.ToLower(address)
}

func (r *RedisChallengeStore) Put(ctx context.Context, address, challenge string) error {
	return r.client.Set(ctx, r.key(address), challenge, r.ttl).Err()
}

func (r *RedisChallengeStore) Take(ctx context.Context, address string) (string, error) {
	c, err := r.client.GetDel(ctx, r.key(address)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNoChallenge
	}
	return c, err
}
