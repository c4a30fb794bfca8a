package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rouna/storefront/internal/domain/cart"
)

// GuestCartKeyPrefix namespaces guest carts in Redis
const GuestCartKeyPrefix = "storefront:guest-cart:"

// RedisGuestCartStore keeps pre-login carts in Redis, one JSON document per
// device token. Every write refreshes the TTL.
type RedisGuestCartStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisGuestCartStore creates a guest cart store
func NewRedisGuestCartStore(client redis.UniversalClient, ttl time.Duration) *RedisGuestCartStore {
	return &RedisGuestCartStore{client: client, ttl: ttl}
}

func guestCartKey(token string) string {
	return GuestCartKeyPrefix + token
}

// Get returns the guest lines for token, or nil when the cart does not exist
func (s *RedisGuestCartStore) Get(ctx context.Context, token string) ([]cart.Line, error) {
	raw, err := s.client.Get(ctx, guestCartKey(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read guest cart: %w", err)
	}

	var lines []cart.Line
	if err := json.Unmarshal(raw, &lines); err != nil {
		return nil, fmt.Errorf("failed to decode guest cart: %w", err)
	}
	return lines, nil
}

// Put overwrites the guest cart
func (s *RedisGuestCartStore) Put(ctx context.Context, token string, lines []cart.Line) error {
	if lines == nil {
		lines = []cart.Line{}
	}
	raw, err := json.Marshal(lines)
	if err != nil {
		return fmt.Errorf("failed to encode guest cart: %w", err)
	}
	if err := s.client.Set(ctx, guestCartKey(token), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write guest cart: %w", err)
	}
	return nil
}

// Delete drops the guest cart
func (s *RedisGuestCartStore) Delete(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, guestCartKey(token)).Err(); err != nil {
		return fmt.Errorf("failed to delete guest cart: %w", err)
	}
	return nil
}

var _ cart.GuestStore = (*RedisGuestCartStore)(nil)

// InMemoryGuestCartStore is the single-instance GuestStore used when Redis
// is not configured and in tests. Entries expire lazily on read.
type InMemoryGuestCartStore struct {
	mu    sync.Mutex
	ttl   time.Duration
	carts map[string]guestCart
}

type guestCart struct {
	lines     []cart.Line
	expiresAt time.Time
}

// NewInMemoryGuestCartStore creates an in-memory guest cart store
func NewInMemoryGuestCartStore(ttl time.Duration) *InMemoryGuestCartStore {
	return &InMemoryGuestCartStore{ttl: ttl, carts: make(map[string]guestCart)}
}

// Get returns a copy of the guest lines for token
func (s *InMemoryGuestCartStore) Get(_ context.Context, token string) ([]cart.Line, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	gc, ok := s.carts[token]
	if !ok {
		return nil, nil
	}
	if s.ttl > 0 && time.Now().After(gc.expiresAt) {
		delete(s.carts, token)
		return nil, nil
	}
	return append([]cart.Line(nil), gc.lines...), nil
}

// Put overwrites the guest cart
func (s *InMemoryGuestCartStore) Put(_ context.Context, token string, lines []cart.Line) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.carts[token] = guestCart{
		lines:     append([]cart.Line(nil), lines...),
		expiresAt: time.Now().Add(s.ttl),
	}
	return nil
}

// Delete drops the guest cart
func (s *InMemoryGuestCartStore) Delete(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.carts, token)
	return nil
}

var _ cart.GuestStore = (*InMemoryGuestCartStore)(nil)
