package cart

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rouna/storefront/internal/domain/cart"
	"github.com/rouna/storefront/internal/domain/catalog"
	"github.com/rouna/storefront/internal/domain/shared"
	"github.com/stretchr/testify/mock"
)

// MockCartRepository is a mock implementation of cart.Repository
type MockCartRepository struct {
	mock.Mock
}

func (m *MockCartRepository) FindByUser(ctx context.Context, userID uuid.UUID) (*cart.Cart, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*cart.Cart), args.Error(1)
}

func (m *MockCartRepository) Save(ctx context.Context, c *cart.Cart) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

func (m *MockCartRepository) ClearByUser(ctx context.Context, userID uuid.UUID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

// MockGuestStore is a mock implementation of cart.GuestStore
type MockGuestStore struct {
	mock.Mock
}

func (m *MockGuestStore) Get(ctx context.Context, token string) ([]cart.Line, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]cart.Line), args.Error(1)
}

func (m *MockGuestStore) Put(ctx context.Context, token string, lines []cart.Line) error {
	args := m.Called(ctx, token, lines)
	return args.Error(0)
}

func (m *MockGuestStore) Delete(ctx context.Context, token string) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

// memItems is a read-only catalog backed by a map
type memItems struct {
	items map[uuid.UUID]*catalog.Item
	err   error
}

func newMemItems(items ...*catalog.Item) *memItems {
	m := &memItems{items: make(map[uuid.UUID]*catalog.Item, len(items))}
	for _, it := range items {
		m.items[it.ID] = it
	}
	return m
}

func (m *memItems) FindByID(_ context.Context, id uuid.UUID) (*catalog.Item, error) {
	if it, ok := m.items[id]; ok {
		return it, nil
	}
	return nil, shared.ErrItemNotFound
}

func (m *memItems) FindByIDs(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]*catalog.Item, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := make(map[uuid.UUID]*catalog.Item, len(ids))
	for _, id := range ids {
		if it, ok := m.items[id]; ok {
			out[id] = it
		}
	}
	return out, nil
}

func (m *memItems) FindBySlug(_ context.Context, slug string) (*catalog.Item, error) {
	for _, it := range m.items {
		if it.Slug == slug {
			return it, nil
		}
	}
	return nil, shared.ErrItemNotFound
}

func (m *memItems) Save(_ context.Context, item *catalog.Item) error {
	m.items[item.ID] = item
	return nil
}

func (m *memItems) Count(context.Context) (int64, error) {
	return int64(len(m.items)), nil
}

// memCarts keeps one cart per user, copying lines on every access
type memCarts struct {
	mu    sync.Mutex
	carts map[uuid.UUID]*cart.Cart
	saves int
}

func newMemCarts() *memCarts {
	return &memCarts{carts: make(map[uuid.UUID]*cart.Cart)}
}

func (m *memCarts) FindByUser(_ context.Context, userID uuid.UUID) (*cart.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.carts[userID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := *c
	cp.Lines = append([]cart.Line(nil), c.Lines...)
	return &cp, nil
}

func (m *memCarts) Save(_ context.Context, c *cart.Cart) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	cp.Lines = append([]cart.Line(nil), c.Lines...)
	m.carts[c.UserID] = &cp
	m.saves++
	return nil
}

func (m *memCarts) ClearByUser(_ context.Context, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.carts[userID]; ok {
		c.Lines = nil
	}
	return nil
}
