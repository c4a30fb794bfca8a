package cache

import (
	"context"
	"testing"
	"time"

	"github.com/rouna/storefront/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unreachableRedis points at a port nothing listens on
func unreachableRedis() config.RedisConfig {
	return config.RedisConfig{Host: "127.0.0.1", Port: 1, GuestCartTTL: time.Hour}
}

func TestStoreFactory_FallsBackToInMemory(t *testing.T) {
	f := NewStoreFactory(unreachableRedis())

	stores, err := f.Create(context.Background())
	require.NoError(t, err)
	defer stores.Close()

	assert.Nil(t, stores.Client)
	assert.IsType(t, &InMemoryGuestCartStore{}, stores.GuestCarts)
	assert.IsType(t, &InMemoryIdempotencyStore{}, stores.Idempotency)
}

func TestStoreFactory_WithoutFallback(t *testing.T) {
	f := NewStoreFactory(unreachableRedis(), WithInMemoryFallback(false))

	_, err := f.Create(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect to Redis")
}
