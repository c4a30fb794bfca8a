package order

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/rouna/storefront/internal/domain/catalog"
	"github.com/rouna/storefront/internal/domain/order"
	"github.com/rouna/storefront/internal/domain/shared"
	"github.com/rouna/storefront/internal/infrastructure/cache"
	"github.com/rouna/storefront/internal/infrastructure/telemetry"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const receiptURL = "https://files.test/receipts/order.pdf"

type fixture struct {
	st       *memStore
	svc      *OrderService
	pub      *recordingPublisher
	metrics  *recordingMetrics
	carts    *MockCartClearer
	receipts *MockReceiptRenderer
	stats    *MockStatsReader
	idem     *cache.InMemoryIdempotencyStore
}

func newFixture(t *testing.T, items ...*catalog.Item) *fixture {
	t.Helper()
	f := &fixture{
		st:       newMemStore(items...),
		pub:      &recordingPublisher{},
		metrics:  &recordingMetrics{},
		carts:    new(MockCartClearer),
		receipts: new(MockReceiptRenderer),
		stats:    new(MockStatsReader),
		idem:     cache.NewInMemoryIdempotencyStore(),
	}
	t.Cleanup(func() { _ = f.idem.Close() })

	f.carts.On("ClearByUser", mock.Anything, mock.Anything).Return(nil).Maybe()
	f.receipts.On("Render", mock.Anything, mock.Anything).
		Return(&order.Receipt{Filename: "receipt.pdf", ContentType: "application/pdf", URL: receiptURL}, nil).Maybe()

	f.svc = f.build()
	return f
}

func (f *fixture) build(opts ...Option) *OrderService {
	direct := memRepos{st: f.st}
	base := []Option{
		WithCartClearer(f.carts),
		WithIdempotencyStore(f.idem, time.Hour),
		WithEventPublisher(f.pub),
		WithReceiptRenderer(f.receipts),
		WithMetrics(f.metrics),
	}
	return NewOrderService(f.st, direct.Orders(), direct.Lines(), f.stats, zap.NewNop(), append(base, opts...)...)
}

func newItem(t *testing.T, price int64, stock int) *catalog.Item {
	t.Helper()
	it, err := catalog.NewItem(gofakeit.ProductName(), gofakeit.LetterN(8), decimal.NewFromInt(price), stock)
	require.NoError(t, err)
	it.WarrantyMonths = 12
	return it
}

func line(it *catalog.Item, qty int) CheckoutLineInput {
	return CheckoutLineInput{ItemID: it.ID, Quantity: qty}
}

func checkoutInput(lines ...CheckoutLineInput) CheckoutInput {
	return CheckoutInput{
		Lines: lines,
		ShippingAddress: AddressInput{
			FirstName:  gofakeit.FirstName(),
			LastName:   gofakeit.LastName(),
			Street:     gofakeit.Street(),
			City:       gofakeit.City(),
			PostalCode: gofakeit.Zip(),
			Country:    "TN",
		},
		PaymentMethod:  string(order.PaymentCreditCard),
		ShippingMethod: string(order.ShippingStandard),
	}
}

func user() Actor  { return Actor{UserID: uuid.New()} }
func admin() Actor { return Actor{UserID: uuid.New(), IsAdmin: true} }

func TestOrderService_Checkout(t *testing.T) {
	ctx := context.Background()

	t.Run("reserves stock and prices the order", func(t *testing.T) {
		ring, chain := newItem(t, 100, 5), newItem(t, 50, 3)
		f := newFixture(t, ring, chain)
		buyer := uuid.New()

		resp, err := f.svc.Checkout(ctx, buyer, checkoutInput(line(ring, 2), line(chain, 1)))
		require.NoError(t, err)

		assert.Equal(t, 3, f.st.stock(ring.ID))
		assert.Equal(t, 2, f.st.stock(chain.ID))
		assert.Equal(t, string(order.StatusPending), resp.Status)
		assert.Equal(t, string(order.PaymentPending), resp.PaymentStatus)
		assert.Equal(t, "250.00", resp.Subtotal.StringFixed(2))
		assert.Equal(t, "5.00", resp.ShippingCost.StringFixed(2))
		assert.Equal(t, "50.00", resp.Tax.StringFixed(2))
		assert.Equal(t, "305.00", resp.Total.StringFixed(2))
		assert.True(t, resp.Total.Equal(resp.Subtotal.Add(resp.ShippingCost).Add(resp.Tax).Sub(resp.Discount)))
		assert.Equal(t, receiptURL, resp.ReceiptURL)
		assert.Equal(t, buyer, resp.UserID)

		assert.Equal(t, 2, f.st.lineCount())
		assert.Equal(t, []string{order.EventTypeOrderCreated}, f.pub.types())
		assert.Equal(t, 1, f.metrics.created)
		assert.Equal(t, []string{telemetry.OutcomeSuccess}, f.metrics.outcomes)
		f.carts.AssertCalled(t, "ClearByUser", mock.Anything, buyer)
	})

	t.Run("freezes the sale price and applies the promo code", func(t *testing.T) {
		ring := newItem(t, 100, 5)
		require.NoError(t, ring.PutOnSale(decimal.NewFromInt(80)))
		f := newFixture(t, ring)

		in := checkoutInput(line(ring, 1))
		in.ShippingMethod = string(order.ShippingExpress)
		in.DiscountCode = order.PromoCode
		resp, err := f.svc.Checkout(ctx, uuid.New(), in)
		require.NoError(t, err)

		require.Len(t, resp.Items, 1)
		assert.Equal(t, "80.00", resp.Items[0].UnitPrice.StringFixed(2))
		assert.Equal(t, "8.00", resp.Discount.StringFixed(2))
		assert.Equal(t, "15.00", resp.ShippingCost.StringFixed(2))
		assert.Equal(t, "103.00", resp.Total.StringFixed(2))
		assert.Equal(t, order.PromoCode, resp.DiscountCode)
	})

	t.Run("insufficient stock on a later line rolls back earlier reservations", func(t *testing.T) {
		ring, chain := newItem(t, 100, 5), newItem(t, 50, 1)
		f := newFixture(t, ring, chain)

		_, err := f.svc.Checkout(ctx, uuid.New(), checkoutInput(line(ring, 2), line(chain, 3)))
		require.Error(t, err)

		var stockErr *shared.InsufficientStockError
		require.True(t, errors.As(err, &stockErr))
		assert.Equal(t, 1, stockErr.LineIndex)
		assert.Equal(t, 3, stockErr.Requested)
		assert.Equal(t, 1, stockErr.Available)
		assert.ErrorIs(t, err, shared.ErrInsufficientStock)

		assert.Equal(t, 5, f.st.stock(ring.ID))
		assert.Equal(t, 1, f.st.stock(chain.ID))
		assert.Zero(t, f.st.orderCount())
		assert.Empty(t, f.pub.types())
		assert.Equal(t, 1, f.metrics.stockFailures)
		assert.Equal(t, []string{telemetry.OutcomeInsufficientStock}, f.metrics.outcomes)
		f.carts.AssertNotCalled(t, "ClearByUser", mock.Anything, mock.Anything)
	})

	t.Run("unknown item identifies the line", func(t *testing.T) {
		ring := newItem(t, 100, 5)
		f := newFixture(t, ring)

		_, err := f.svc.Checkout(ctx, uuid.New(), checkoutInput(line(ring, 1), CheckoutLineInput{ItemID: uuid.New(), Quantity: 1}))
		require.Error(t, err)
		assert.ErrorIs(t, err, shared.ErrItemNotFound)
		assert.Contains(t, err.Error(), "line 2")
		assert.Equal(t, 5, f.st.stock(ring.ID))
	})

	t.Run("a failed order write releases the reservations", func(t *testing.T) {
		ring := newItem(t, 100, 5)
		f := newFixture(t, ring)
		f.st.failOrderCreate = errors.New("disk full")

		_, err := f.svc.Checkout(ctx, uuid.New(), checkoutInput(line(ring, 4)))
		require.Error(t, err)
		assert.Equal(t, 5, f.st.stock(ring.ID))
		assert.Equal(t, []string{telemetry.OutcomeError}, f.metrics.outcomes)
	})

	t.Run("rejects malformed input before touching stock", func(t *testing.T) {
		ring := newItem(t, 100, 5)
		f := newFixture(t, ring)

		in := checkoutInput(line(ring, 1))
		in.PaymentMethod = "bitcoin"
		_, err := f.svc.Checkout(ctx, uuid.New(), in)
		assert.ErrorIs(t, err, shared.ErrInvalidInput)

		in = checkoutInput(line(ring, 1))
		in.ShippingAddress.City = " "
		_, err = f.svc.Checkout(ctx, uuid.New(), in)
		assert.ErrorIs(t, err, shared.ErrInvalidInput)

		_, err = f.svc.Checkout(ctx, uuid.New(), checkoutInput())
		assert.ErrorIs(t, err, shared.ErrInvalidInput)

		assert.Equal(t, 5, f.st.stock(ring.ID))
	})

	t.Run("post-commit failures do not undo the order", func(t *testing.T) {
		ring := newItem(t, 100, 5)
		f := newFixture(t, ring)

		carts := new(MockCartClearer)
		carts.On("ClearByUser", mock.Anything, mock.Anything).Return(errors.New("cart db down"))
		receipts := new(MockReceiptRenderer)
		receipts.On("Render", mock.Anything, mock.Anything).Return(nil, errors.New("chrome crashed"))
		svc := f.build(WithCartClearer(carts), WithReceiptRenderer(receipts))

		resp, err := svc.Checkout(ctx, uuid.New(), checkoutInput(line(ring, 1)))
		require.NoError(t, err)
		assert.Empty(t, resp.ReceiptURL)
		assert.Equal(t, 4, f.st.stock(ring.ID))
		assert.Equal(t, 1, f.st.orderCount())
		carts.AssertExpectations(t)
		receipts.AssertExpectations(t)
	})

	t.Run("idempotency key blocks replays", func(t *testing.T) {
		ring := newItem(t, 100, 5)
		f := newFixture(t, ring)
		buyer := uuid.New()

		in := checkoutInput(line(ring, 1))
		in.IdempotencyKey = "c0ffee"
		_, err := f.svc.Checkout(ctx, buyer, in)
		require.NoError(t, err)

		_, err = f.svc.Checkout(ctx, buyer, in)
		assert.ErrorIs(t, err, shared.ErrDuplicateRequest)
		assert.Equal(t, 4, f.st.stock(ring.ID))
		assert.Equal(t, 1, f.st.orderCount())

		_, err = f.svc.Checkout(ctx, uuid.New(), in)
		require.NoError(t, err, "keys are scoped per user")
	})

	t.Run("a failed checkout frees its idempotency key", func(t *testing.T) {
		ring := newItem(t, 100, 1)
		f := newFixture(t, ring)
		buyer := uuid.New()

		in := checkoutInput(line(ring, 2))
		in.IdempotencyKey = "retry-me"
		_, err := f.svc.Checkout(ctx, buyer, in)
		require.Error(t, err)

		in.Lines[0].Quantity = 1
		_, err = f.svc.Checkout(ctx, buyer, in)
		require.NoError(t, err)
	})
}

func TestOrderService_ConcurrentCheckoutsNeverOversell(t *testing.T) {
	ctx := context.Background()
	ring := newItem(t, 100, 3)
	f := newFixture(t, ring)

	const buyers = 10
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		rejected  int
	)
	for range buyers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Checkout(ctx, uuid.New(), checkoutInput(line(ring, 1)))
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				succeeded++
			} else if errors.Is(err, shared.ErrInsufficientStock) {
				rejected++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, succeeded)
	assert.Equal(t, buyers-3, rejected)
	assert.Zero(t, f.st.stock(ring.ID))
}

func placeOrder(t *testing.T, f *fixture, buyer uuid.UUID, lines ...CheckoutLineInput) *OrderResponse {
	t.Helper()
	resp, err := f.svc.Checkout(context.Background(), buyer, checkoutInput(lines...))
	require.NoError(t, err)
	return resp
}

func TestOrderService_Cancel(t *testing.T) {
	ctx := context.Background()

	t.Run("owner cancel restores stock", func(t *testing.T) {
		ring, chain := newItem(t, 100, 5), newItem(t, 50, 3)
		f := newFixture(t, ring, chain)
		owner := user()
		placed := placeOrder(t, f, owner.UserID, line(ring, 2), line(chain, 3))
		require.Zero(t, f.st.stock(chain.ID))

		resp, err := f.svc.Cancel(ctx, owner, placed.ID)
		require.NoError(t, err)
		assert.Equal(t, string(order.StatusCancelled), resp.Status)
		assert.Equal(t, 5, f.st.stock(ring.ID))
		assert.Equal(t, 3, f.st.stock(chain.ID))
		assert.Equal(t, 1, f.metrics.cancelled)
		assert.Equal(t, 5, f.metrics.released)
		assert.Contains(t, f.pub.types(), order.EventTypeOrderCancelled)

		_, err = f.svc.Cancel(ctx, owner, placed.ID)
		assert.ErrorIs(t, err, shared.ErrInvalidTransition)
		assert.Equal(t, 5, f.st.stock(ring.ID), "a second cancel releases nothing")
	})

	t.Run("strangers are forbidden and admins allowed", func(t *testing.T) {
		ring := newItem(t, 100, 5)
		f := newFixture(t, ring)
		placed := placeOrder(t, f, uuid.New(), line(ring, 1))

		_, err := f.svc.Cancel(ctx, user(), placed.ID)
		assert.ErrorIs(t, err, shared.ErrForbidden)
		assert.Equal(t, 4, f.st.stock(ring.ID))

		_, err = f.svc.Cancel(ctx, admin(), placed.ID)
		require.NoError(t, err)
		assert.Equal(t, 5, f.st.stock(ring.ID))
	})

	t.Run("shipped orders cannot be cancelled", func(t *testing.T) {
		ring := newItem(t, 100, 5)
		f := newFixture(t, ring)
		owner := user()
		placed := placeOrder(t, f, owner.UserID, line(ring, 1))

		for _, st := range []string{"processing", "shipped"} {
			_, err := f.svc.UpdateStatus(ctx, admin(), placed.ID, UpdateStatusInput{Status: &st})
			require.NoError(t, err)
		}

		_, err := f.svc.Cancel(ctx, owner, placed.ID)
		assert.ErrorIs(t, err, shared.ErrInvalidTransition)
		assert.Equal(t, 4, f.st.stock(ring.ID))
	})

	t.Run("unknown order", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.Cancel(ctx, admin(), uuid.New())
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestOrderService_UpdateStatus(t *testing.T) {
	ctx := context.Background()
	ptr := func(s string) *string { return &s }

	t.Run("admin only", func(t *testing.T) {
		ring := newItem(t, 100, 5)
		f := newFixture(t, ring)
		owner := user()
		placed := placeOrder(t, f, owner.UserID, line(ring, 1))

		_, err := f.svc.UpdateStatus(ctx, owner, placed.ID, UpdateStatusInput{Status: ptr("processing")})
		assert.ErrorIs(t, err, shared.ErrForbidden)
	})

	t.Run("follows the transition table", func(t *testing.T) {
		ring := newItem(t, 100, 5)
		f := newFixture(t, ring)
		placed := placeOrder(t, f, uuid.New(), line(ring, 1))

		_, err := f.svc.UpdateStatus(ctx, admin(), placed.ID, UpdateStatusInput{Status: ptr("shipped")})
		assert.ErrorIs(t, err, shared.ErrInvalidTransition)

		resp, err := f.svc.UpdateStatus(ctx, admin(), placed.ID, UpdateStatusInput{
			Status:         ptr("processing"),
			PaymentStatus:  ptr("paid"),
			TrackingNumber: ptr(" TN123 "),
		})
		require.NoError(t, err)
		assert.Equal(t, "processing", resp.Status)
		assert.Equal(t, "paid", resp.PaymentStatus)
		assert.Equal(t, "TN123", resp.TrackingNumber)
		assert.Contains(t, f.pub.types(), order.EventTypeOrderStatusChanged)
	})

	t.Run("cancelled goes through the stock-releasing path", func(t *testing.T) {
		ring := newItem(t, 100, 5)
		f := newFixture(t, ring)
		placed := placeOrder(t, f, uuid.New(), line(ring, 3))

		resp, err := f.svc.UpdateStatus(ctx, admin(), placed.ID, UpdateStatusInput{Status: ptr("cancelled")})
		require.NoError(t, err)
		assert.Equal(t, "cancelled", resp.Status)
		assert.Equal(t, 5, f.st.stock(ring.ID))
		assert.Equal(t, 1, f.metrics.cancelled)
	})

	t.Run("payment status alone keeps the order status", func(t *testing.T) {
		ring := newItem(t, 100, 5)
		f := newFixture(t, ring)
		placed := placeOrder(t, f, uuid.New(), line(ring, 1))

		resp, err := f.svc.UpdateStatus(ctx, admin(), placed.ID, UpdateStatusInput{PaymentStatus: ptr("failed")})
		require.NoError(t, err)
		assert.Equal(t, "pending", resp.Status)
		assert.Equal(t, "failed", resp.PaymentStatus)

		_, err = f.svc.UpdateStatus(ctx, admin(), placed.ID, UpdateStatusInput{PaymentStatus: ptr("maybe")})
		assert.ErrorIs(t, err, shared.ErrInvalidInput)

		_, err = f.svc.UpdateStatus(ctx, admin(), placed.ID, UpdateStatusInput{})
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})
}

func TestOrderService_Returns(t *testing.T) {
	ctx := context.Background()
	ring := newItem(t, 100, 5)
	f := newFixture(t, ring)
	owner := user()
	placed := placeOrder(t, f, owner.UserID, line(ring, 2))

	detail, err := f.svc.Get(ctx, owner, placed.ID)
	require.NoError(t, err)
	require.Len(t, detail.Lines, 1)
	lineID := detail.Lines[0].ID
	assert.True(t, detail.Lines[0].CanBeReturned)
	assert.True(t, detail.Lines[0].UnderWarranty)

	_, err = f.svc.RequestReturn(ctx, user(), lineID, ReturnRequest{Reason: "not mine"})
	assert.ErrorIs(t, err, shared.ErrForbidden)

	resp, err := f.svc.RequestReturn(ctx, owner, lineID, ReturnRequest{Reason: "wrong size"})
	require.NoError(t, err)
	assert.Equal(t, string(order.ReturnRequested), resp.ReturnStatus)

	_, err = f.svc.ApproveReturn(ctx, owner, lineID)
	assert.ErrorIs(t, err, shared.ErrForbidden)

	_, err = f.svc.CompleteReturn(ctx, admin(), lineID)
	require.Error(t, err, "must be approved first")
	assert.Equal(t, 3, f.st.stock(ring.ID))

	resp, err = f.svc.ApproveReturn(ctx, admin(), lineID)
	require.NoError(t, err)
	assert.Equal(t, "240.00", resp.RefundAmount.StringFixed(2))

	resp, err = f.svc.CompleteReturn(ctx, admin(), lineID)
	require.NoError(t, err)
	assert.Equal(t, string(order.ReturnCompleted), resp.ReturnStatus)
	assert.Equal(t, 5, f.st.stock(ring.ID))
	assert.Equal(t, 2, f.metrics.released)

	t.Run("cancelling afterwards does not release the returned units twice", func(t *testing.T) {
		_, err := f.svc.Cancel(ctx, owner, placed.ID)
		require.NoError(t, err)
		assert.Equal(t, 5, f.st.stock(ring.ID))
	})

	t.Run("lines of cancelled orders cannot be returned", func(t *testing.T) {
		other := placeOrder(t, f, owner.UserID, line(ring, 1))
		_, err := f.svc.Cancel(ctx, owner, other.ID)
		require.NoError(t, err)
		d, err := f.svc.Get(ctx, owner, other.ID)
		require.NoError(t, err)

		_, err = f.svc.RequestReturn(ctx, owner, d.Lines[0].ID, ReturnRequest{})
		assert.ErrorIs(t, err, shared.ErrInvalidTransition)
	})

	t.Run("reject", func(t *testing.T) {
		o := placeOrder(t, f, owner.UserID, line(ring, 1))
		d, err := f.svc.Get(ctx, owner, o.ID)
		require.NoError(t, err)
		id := d.Lines[0].ID

		_, err = f.svc.RequestReturn(ctx, owner, id, ReturnRequest{Reason: "changed my mind"})
		require.NoError(t, err)
		resp, err := f.svc.RejectReturn(ctx, admin(), id)
		require.NoError(t, err)
		assert.Equal(t, string(order.ReturnRejected), resp.ReturnStatus)
	})
}

func TestOrderService_ReturnStepsRaceSafely(t *testing.T) {
	ctx := context.Background()

	approvedLine := func(t *testing.T, f *fixture, qty int, it *catalog.Item) uuid.UUID {
		t.Helper()
		owner := user()
		placed := placeOrder(t, f, owner.UserID, line(it, qty))
		d, err := f.svc.Get(ctx, owner, placed.ID)
		require.NoError(t, err)
		id := d.Lines[0].ID
		_, err = f.svc.RequestReturn(ctx, owner, id, ReturnRequest{Reason: "too small"})
		require.NoError(t, err)
		_, err = f.svc.ApproveReturn(ctx, admin(), id)
		require.NoError(t, err)
		return id
	}

	t.Run("completing twice releases stock once", func(t *testing.T) {
		ring := newItem(t, 100, 5)
		f := newFixture(t, ring)
		id := approvedLine(t, f, 2, ring)
		require.Equal(t, 3, f.st.stock(ring.ID))

		_, err := f.svc.CompleteReturn(ctx, admin(), id)
		require.NoError(t, err)
		_, err = f.svc.CompleteReturn(ctx, admin(), id)
		assert.ErrorIs(t, err, shared.ErrInvalidTransition)
		assert.Equal(t, 5, f.st.stock(ring.ID))
	})

	t.Run("a completion landing between read and write loses the swap", func(t *testing.T) {
		ring := newItem(t, 100, 5)
		f := newFixture(t, ring)
		id := approvedLine(t, f, 2, ring)

		direct := memRepos{st: f.st}
		svc := NewOrderService(interleavedScope{st: f.st}, direct.Orders(), direct.Lines(), f.stats, zap.NewNop(),
			WithMetrics(f.metrics))

		var innerErr error
		f.st.onLineRead = func() {
			_, innerErr = svc.CompleteReturn(ctx, admin(), id)
		}
		_, err := svc.CompleteReturn(ctx, admin(), id)
		require.NoError(t, innerErr)
		assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)
		assert.Equal(t, 5, f.st.stock(ring.ID), "returned units go back exactly once")

		f.st.mu.Lock()
		stored := f.st.lines[id]
		f.st.mu.Unlock()
		assert.Equal(t, order.ReturnCompleted, stored.ReturnStatus)
	})

	t.Run("approve and reject cannot both win", func(t *testing.T) {
		ring := newItem(t, 100, 5)
		f := newFixture(t, ring)
		owner := user()
		placed := placeOrder(t, f, owner.UserID, line(ring, 1))
		d, err := f.svc.Get(ctx, owner, placed.ID)
		require.NoError(t, err)
		id := d.Lines[0].ID
		_, err = f.svc.RequestReturn(ctx, owner, id, ReturnRequest{})
		require.NoError(t, err)

		var rejectErr error
		f.st.onLineRead = func() {
			_, rejectErr = f.svc.RejectReturn(ctx, admin(), id)
		}
		_, err = f.svc.ApproveReturn(ctx, admin(), id)
		require.NoError(t, rejectErr)
		assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)

		_, err = f.svc.CompleteReturn(ctx, admin(), id)
		assert.ErrorIs(t, err, shared.ErrInvalidTransition, "a rejected return never restocks")
		assert.Equal(t, 4, f.st.stock(ring.ID))
	})

	t.Run("a duplicate request loses the swap", func(t *testing.T) {
		ring := newItem(t, 100, 5)
		f := newFixture(t, ring)
		owner := user()
		placed := placeOrder(t, f, owner.UserID, line(ring, 1))
		d, err := f.svc.Get(ctx, owner, placed.ID)
		require.NoError(t, err)
		id := d.Lines[0].ID

		var first error
		f.st.onLineRead = func() {
			_, first = f.svc.RequestReturn(ctx, owner, id, ReturnRequest{Reason: "first"})
		}
		_, err = f.svc.RequestReturn(ctx, owner, id, ReturnRequest{Reason: "second"})
		require.NoError(t, first)
		assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)
	})
}

func TestOrderService_Queries(t *testing.T) {
	ctx := context.Background()
	ring := newItem(t, 100, 50)
	f := newFixture(t, ring)
	alice, bob := user(), user()

	for range 3 {
		placeOrder(t, f, alice.UserID, line(ring, 1))
	}
	bobs := placeOrder(t, f, bob.UserID, line(ring, 1))

	t.Run("ListMine only sees own orders", func(t *testing.T) {
		page, err := f.svc.ListMine(ctx, alice.UserID, ListOrdersQuery{PageSize: 2, UserID: bob.UserID.String()})
		require.NoError(t, err)
		assert.Equal(t, int64(3), page.Total)
		assert.Len(t, page.Items, 2)
		assert.Equal(t, 2, page.TotalPages)
		for _, o := range page.Items {
			assert.Equal(t, alice.UserID, o.UserID)
		}
	})

	t.Run("ListAll is admin only and filters", func(t *testing.T) {
		_, err := f.svc.ListAll(ctx, alice, ListOrdersQuery{})
		assert.ErrorIs(t, err, shared.ErrForbidden)

		page, err := f.svc.ListAll(ctx, admin(), ListOrdersQuery{UserID: bob.UserID.String()})
		require.NoError(t, err)
		require.Len(t, page.Items, 1)
		assert.Equal(t, bobs.ID, page.Items[0].ID)

		page, err = f.svc.ListAll(ctx, admin(), ListOrdersQuery{Status: "pending", EndDate: "2000-01-01"})
		require.NoError(t, err)
		assert.Zero(t, page.Total)

		_, err = f.svc.ListAll(ctx, admin(), ListOrdersQuery{StartDate: "yesterday"})
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})

	t.Run("Get enforces ownership", func(t *testing.T) {
		_, err := f.svc.Get(ctx, alice, bobs.ID)
		assert.ErrorIs(t, err, shared.ErrForbidden)

		d, err := f.svc.Get(ctx, admin(), bobs.ID)
		require.NoError(t, err)
		assert.Len(t, d.Lines, 1)
	})

	t.Run("Stats", func(t *testing.T) {
		want := &order.Stats{TodayOrders: 4, TotalItems: 1}
		f.stats.On("Stats", mock.Anything, mock.AnythingOfType("time.Time")).Return(want, nil).Once()

		_, err := f.svc.Stats(ctx, alice)
		assert.ErrorIs(t, err, shared.ErrForbidden)

		got, err := f.svc.Stats(ctx, admin())
		require.NoError(t, err)
		assert.Equal(t, want, got)
		f.stats.AssertExpectations(t)
	})

	t.Run("Receipt", func(t *testing.T) {
		_, err := f.svc.Receipt(ctx, alice, bobs.ID)
		assert.ErrorIs(t, err, shared.ErrForbidden)

		r, err := f.svc.Receipt(ctx, bob, bobs.ID)
		require.NoError(t, err)
		assert.Equal(t, "application/pdf", r.ContentType)

		disabled := f.build(WithReceiptRenderer(nil))
		_, err = disabled.Receipt(ctx, bob, bobs.ID)
		assert.True(t, shared.IsNotFound(err))
	})
}

func TestListOrdersQuery_toFilter(t *testing.T) {
	f, err := ListOrdersQuery{StartDate: "2026-06-01", EndDate: "2026-06-30"}.toFilter()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC), *f.From)
	assert.Equal(t, time.Date(2026, 6, 30, 23, 59, 59, 999999999, time.UTC), *f.To)
	assert.Equal(t, 1, f.Page)
	assert.Equal(t, 20, f.PageSize)

	f, err = ListOrdersQuery{EndDate: "2026-06-30T10:00:00Z"}.toFilter()
	require.NoError(t, err)
	assert.Equal(t, 10, f.To.Hour())

	_, err = ListOrdersQuery{StartDate: "2026-06-30", EndDate: "2026-06-01"}.toFilter()
	require.Error(t, err)

	_, err = ListOrdersQuery{Status: "lost"}.toFilter()
	require.Error(t, err)

	_, err = ListOrdersQuery{UserID: "nope"}.toFilter()
	require.Error(t, err)
}
