package handler

import (
	"context"

	"github.com/google/uuid"
	appcart "github.com/rouna/storefront/internal/application/cart"
	apporder "github.com/rouna/storefront/internal/application/order"
	"github.com/rouna/storefront/internal/domain/order"
	"github.com/rouna/storefront/internal/domain/shared"
	"github.com/stretchr/testify/mock"
)

// MockCartService is a mock implementation of CartService
type MockCartService struct {
	mock.Mock
}

func (m *MockCartService) cartResult(args mock.Arguments) (*appcart.CartResponse, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appcart.CartResponse), args.Error(1)
}

func (m *MockCartService) Get(ctx context.Context, userID uuid.UUID) (*appcart.CartResponse, error) {
	return m.cartResult(m.Called(ctx, userID))
}

func (m *MockCartService) Sync(ctx context.Context, userID uuid.UUID, lines []appcart.LineInput) (*appcart.CartResponse, error) {
	return m.cartResult(m.Called(ctx, userID, lines))
}

func (m *MockCartService) Merge(ctx context.Context, userID uuid.UUID, guestToken string, local []appcart.LineInput) (*appcart.CartResponse, error) {
	return m.cartResult(m.Called(ctx, userID, guestToken, local))
}

func (m *MockCartService) Clear(ctx context.Context, userID uuid.UUID) error {
	return m.Called(ctx, userID).Error(0)
}

func (m *MockCartService) UpdateLine(ctx context.Context, userID uuid.UUID, index int, req appcart.UpdateLineRequest) (*appcart.CartResponse, error) {
	return m.cartResult(m.Called(ctx, userID, index, req))
}

func (m *MockCartService) RemoveLine(ctx context.Context, userID uuid.UUID, index int) (*appcart.CartResponse, error) {
	return m.cartResult(m.Called(ctx, userID, index))
}

func (m *MockCartService) PutGuest(ctx context.Context, token string, lines []appcart.LineInput) (*appcart.CartResponse, error) {
	return m.cartResult(m.Called(ctx, token, lines))
}

func (m *MockCartService) GetGuest(ctx context.Context, token string) (*appcart.CartResponse, error) {
	return m.cartResult(m.Called(ctx, token))
}

// MockOrderService is a mock implementation of OrderService
type MockOrderService struct {
	mock.Mock
}

func orderResult(args mock.Arguments) (*apporder.OrderResponse, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*apporder.OrderResponse), args.Error(1)
}

func lineResult(args mock.Arguments) (*apporder.LineResponse, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*apporder.LineResponse), args.Error(1)
}

func pageResult(args mock.Arguments) (*shared.Paginated[apporder.OrderResponse], error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*shared.Paginated[apporder.OrderResponse]), args.Error(1)
}

func (m *MockOrderService) Checkout(ctx context.Context, userID uuid.UUID, in apporder.CheckoutInput) (*apporder.OrderResponse, error) {
	return orderResult(m.Called(ctx, userID, in))
}

func (m *MockOrderService) Get(ctx context.Context, actor apporder.Actor, orderID uuid.UUID) (*apporder.OrderDetailResponse, error) {
	args := m.Called(ctx, actor, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*apporder.OrderDetailResponse), args.Error(1)
}

func (m *MockOrderService) ListMine(ctx context.Context, userID uuid.UUID, q apporder.ListOrdersQuery) (*shared.Paginated[apporder.OrderResponse], error) {
	return pageResult(m.Called(ctx, userID, q))
}

func (m *MockOrderService) ListAll(ctx context.Context, actor apporder.Actor, q apporder.ListOrdersQuery) (*shared.Paginated[apporder.OrderResponse], error) {
	return pageResult(m.Called(ctx, actor, q))
}

func (m *MockOrderService) Stats(ctx context.Context, actor apporder.Actor) (*order.Stats, error) {
	args := m.Called(ctx, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Stats), args.Error(1)
}

func (m *MockOrderService) Receipt(ctx context.Context, actor apporder.Actor, orderID uuid.UUID) (*order.Receipt, error) {
	args := m.Called(ctx, actor, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Receipt), args.Error(1)
}

func (m *MockOrderService) Cancel(ctx context.Context, actor apporder.Actor, orderID uuid.UUID) (*apporder.OrderResponse, error) {
	return orderResult(m.Called(ctx, actor, orderID))
}

func (m *MockOrderService) UpdateStatus(ctx context.Context, actor apporder.Actor, orderID uuid.UUID, in apporder.UpdateStatusInput) (*apporder.OrderResponse, error) {
	return orderResult(m.Called(ctx, actor, orderID, in))
}

func (m *MockOrderService) RequestReturn(ctx context.Context, actor apporder.Actor, lineID uuid.UUID, req apporder.ReturnRequest) (*apporder.LineResponse, error) {
	return lineResult(m.Called(ctx, actor, lineID, req))
}

func (m *MockOrderService) ApproveReturn(ctx context.Context, actor apporder.Actor, lineID uuid.UUID) (*apporder.LineResponse, error) {
	return lineResult(m.Called(ctx, actor, lineID))
}

func (m *MockOrderService) RejectReturn(ctx context.Context, actor apporder.Actor, lineID uuid.UUID) (*apporder.LineResponse, error) {
	return lineResult(m.Called(ctx, actor, lineID))
}

func (m *MockOrderService) CompleteReturn(ctx context.Context, actor apporder.Actor, lineID uuid.UUID) (*apporder.LineResponse, error) {
	return lineResult(m.Called(ctx, actor, lineID))
}

var (
	_ CartService  = (*MockCartService)(nil)
	_ OrderService = (*MockOrderService)(nil)
)
