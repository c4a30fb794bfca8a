package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rouna/storefront/internal/domain/order"
	"github.com/rouna/storefront/internal/domain/shared"
	"github.com/rouna/storefront/internal/infrastructure/logger"
	"github.com/rouna/storefront/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// CartClearer empties a user's server cart once their order is placed
type CartClearer interface {
	ClearByUser(ctx context.Context, userID uuid.UUID) error
}

// OrderService places orders and drives them through their lifecycle.
// Every stock movement happens inside a TransactionScope together with the
// order write it belongs to.
type OrderService struct {
	tx             TransactionScope
	orders         order.Repository
	lines          order.LineRepository
	stats          order.StatsReader
	carts          CartClearer
	idempotency    shared.IdempotencyStore
	idempotencyTTL time.Duration
	events         shared.EventPublisher
	receipts       order.ReceiptRenderer
	metrics        Metrics
	logger         *zap.Logger
	now            func() time.Time
}

// Option configures optional collaborators of the OrderService
type Option func(*OrderService)

// WithCartClearer clears the buyer's cart after checkout
func WithCartClearer(c CartClearer) Option {
	return func(s *OrderService) { s.carts = c }
}

// WithIdempotencyStore enables Idempotency-Key handling for checkout
func WithIdempotencyStore(store shared.IdempotencyStore, ttl time.Duration) Option {
	return func(s *OrderService) {
		s.idempotency = store
		if ttl > 0 {
			s.idempotencyTTL = ttl
		}
	}
}

// WithEventPublisher publishes order events after each commit
func WithEventPublisher(p shared.EventPublisher) Option {
	return func(s *OrderService) { s.events = p }
}

// WithReceiptRenderer renders a receipt for every new order
func WithReceiptRenderer(r order.ReceiptRenderer) Option {
	return func(s *OrderService) { s.receipts = r }
}

// WithMetrics records checkout and cancellation metrics
func WithMetrics(m Metrics) Option {
	return func(s *OrderService) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(s *OrderService) { s.now = now }
}

// NewOrderService creates a new OrderService
func NewOrderService(
	tx TransactionScope,
	orders order.Repository,
	lines order.LineRepository,
	stats order.StatsReader,
	logger *zap.Logger,
	opts ...Option,
) *OrderService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &OrderService{
		tx:             tx,
		orders:         orders,
		lines:          lines,
		stats:          stats,
		idempotencyTTL: shared.DefaultIdempotencyConfig().TTL,
		metrics:        noopMetrics{},
		logger:         logger,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ==================== Checkout ====================

// Checkout turns the submitted lines into a pending order. Lines are
// processed in input order; each item is resolved, its stock reserved and
// its effective price frozen. Any failure rolls the whole checkout back, so
// either every line is reserved and the order exists, or nothing changed.
func (s *OrderService) Checkout(ctx context.Context, userID uuid.UUID, in CheckoutInput) (*OrderResponse, error) {
	start := s.now()
	ctx, span := telemetry.StartServiceSpan(ctx, "order", "checkout",
		telemetry.SpanAttrUserID, userID.String(),
		telemetry.SpanAttrLineCount, len(in.Lines))
	defer span.End()
	log := logger.FromContext(ctx, s.logger)

	if err := in.validate(); err != nil {
		s.metrics.CheckoutCompleted(ctx, s.now().Sub(start), telemetry.OutcomeRejected)
		return nil, err
	}

	claim, err := s.claimCheckout(ctx, userID, in.IdempotencyKey)
	if err != nil {
		s.metrics.CheckoutCompleted(ctx, s.now().Sub(start), telemetry.OutcomeRejected)
		return nil, err
	}

	var placed *order.Order
	err = s.tx.Execute(ctx, func(repos TransactionalRepositories) error {
		o, err := s.placeOrder(ctx, repos, userID, in)
		if err != nil {
			return err
		}
		placed = o
		return nil
	})
	if err != nil {
		s.releaseClaim(ctx, claim)
		telemetry.RecordError(span, err)
		outcome := checkoutOutcome(err)
		if outcome == telemetry.OutcomeInsufficientStock {
			s.metrics.StockReservationFailed(ctx)
		}
		s.metrics.CheckoutCompleted(ctx, s.now().Sub(start), outcome)
		log.Info("Checkout failed",
			zap.String("user_id", userID.String()),
			zap.String("outcome", outcome),
			zap.Error(err))
		return nil, err
	}

	telemetry.SetAttributes(span,
		telemetry.SpanAttrOrderID, placed.ID.String(),
		telemetry.SpanAttrOrderNumber, placed.OrderNumber,
		telemetry.SpanAttrAmount, placed.Total.String())
	s.metrics.OrderCreated(ctx, string(placed.PaymentMethod), string(placed.ShippingMethod), placed.Total)
	s.metrics.CheckoutCompleted(ctx, s.now().Sub(start), telemetry.OutcomeSuccess)

	log.Info("Order placed",
		zap.String("order_id", placed.ID.String()),
		zap.String("order_number", placed.OrderNumber),
		zap.String("user_id", userID.String()),
		zap.String("total", placed.Total.StringFixed(2)))

	resp := ToOrderResponse(placed)
	resp.ReceiptURL = s.afterCheckout(ctx, log, placed)
	return &resp, nil
}

func (s *OrderService) placeOrder(ctx context.Context, repos TransactionalRepositories, userID uuid.UUID, in CheckoutInput) (*order.Order, error) {
	items := make([]order.Item, 0, len(in.Lines))
	info := make(map[uuid.UUID]order.LineCatalogInfo, len(in.Lines))

	for i, line := range in.Lines {
		it, err := repos.Items().FindByID(ctx, line.ItemID)
		if err != nil {
			if errors.Is(err, shared.ErrItemNotFound) {
				return nil, itemNotFoundAt(i, line.ItemID)
			}
			return nil, fmt.Errorf("load item for line %d: %w", i+1, err)
		}

		if err := repos.Stock().Reserve(ctx, it.ID, line.Quantity); err != nil {
			var stockErr *shared.InsufficientStockError
			if errors.As(err, &stockErr) {
				return nil, stockErr.AtLine(i, it.Name)
			}
			if errors.Is(err, shared.ErrItemNotFound) {
				return nil, itemNotFoundAt(i, line.ItemID)
			}
			return nil, fmt.Errorf("reserve stock for line %d: %w", i+1, err)
		}

		oi, err := order.NewItem(it.ID, it.Name, it.EffectivePrice(), line.Quantity, line.Size, line.Color, it.MainImageURL)
		if err != nil {
			return nil, err
		}
		items = append(items, oi)
		info[it.ID] = order.LineCatalogInfo{
			Slug:           it.Slug,
			SKU:            it.SKU,
			IsReturnable:   it.IsReturnable,
			WarrantyMonths: it.WarrantyMonths,
		}
	}

	draft := order.Draft{
		UserID:          userID,
		Items:           items,
		ShippingAddress: in.ShippingAddress.ToDomain(),
		ShippingMethod:  order.ShippingMethod(in.ShippingMethod),
		PaymentMethod:   order.PaymentMethod(in.PaymentMethod),
		DiscountCode:    in.DiscountCode,
		Notes:           in.Notes,
	}
	if in.BillingAddress != nil {
		billing := in.BillingAddress.ToDomain()
		draft.BillingAddress = &billing
	}

	o, err := order.New(draft)
	if err != nil {
		return nil, err
	}
	if err := repos.Orders().Create(ctx, o); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	if err := repos.Lines().ReplaceForOrder(ctx, o.ID, order.ProjectLines(o, info)); err != nil {
		return nil, fmt.Errorf("project order lines: %w", err)
	}
	return o, nil
}

// afterCheckout runs the post-commit steps. None of them can undo the
// order, so failures are only logged. It returns the archived receipt URL.
func (s *OrderService) afterCheckout(ctx context.Context, log *zap.Logger, o *order.Order) string {
	if s.carts != nil {
		if err := s.carts.ClearByUser(ctx, o.UserID); err != nil {
			log.Warn("Failed to clear cart after checkout",
				zap.String("order_id", o.ID.String()),
				zap.Error(err))
		}
	}

	s.publish(ctx, log, o)

	if s.receipts == nil {
		return ""
	}
	receipt, err := s.receipts.Render(ctx, o)
	if err != nil {
		log.Warn("Receipt rendering failed",
			zap.String("order_id", o.ID.String()),
			zap.String("order_number", o.OrderNumber),
			zap.Error(err))
		return ""
	}
	return receipt.URL
}

type checkoutClaim struct {
	key string
}

// claimCheckout reserves the idempotency key of a checkout. A key that is
// already held means the request is a replay. When the store is down the
// checkout proceeds unprotected.
func (s *OrderService) claimCheckout(ctx context.Context, userID uuid.UUID, key string) (*checkoutClaim, error) {
	if key == "" || s.idempotency == nil {
		return nil, nil
	}
	full := fmt.Sprintf("checkout:%s:%s", userID, key)
	claimed, err := s.idempotency.MarkProcessed(ctx, full, s.idempotencyTTL)
	if err != nil {
		logger.FromContext(ctx, s.logger).Warn("Idempotency store unavailable, checkout not deduplicated",
			zap.Error(err))
		return nil, nil
	}
	if !claimed {
		return nil, shared.ErrDuplicateRequest
	}
	return &checkoutClaim{key: full}, nil
}

// releaseClaim lets a client retry a failed checkout with the same key
func (s *OrderService) releaseClaim(ctx context.Context, claim *checkoutClaim) {
	if claim == nil {
		return
	}
	if err := s.idempotency.Forget(ctx, claim.key); err != nil {
		logger.FromContext(ctx, s.logger).Warn("Failed to release idempotency key", zap.Error(err))
	}
}

func itemNotFoundAt(index int, itemID uuid.UUID) error {
	return shared.NewDomainError(shared.CodeItemNotFound,
		fmt.Sprintf("Item %s not found (line %d)", itemID, index+1))
}

func checkoutOutcome(err error) string {
	var stockErr *shared.InsufficientStockError
	if errors.As(err, &stockErr) {
		return telemetry.OutcomeInsufficientStock
	}
	var de *shared.DomainError
	if errors.As(err, &de) {
		return telemetry.OutcomeRejected
	}
	return telemetry.OutcomeError
}

// ==================== Queries ====================

// Get returns an order with its lines. Only the owner or an admin may read it.
func (s *OrderService) Get(ctx context.Context, actor Actor, orderID uuid.UUID) (*OrderDetailResponse, error) {
	o, err := s.loadAccessible(ctx, actor, orderID)
	if err != nil {
		return nil, err
	}
	lines, err := s.lines.FindByOrder(ctx, o.ID)
	if err != nil {
		return nil, fmt.Errorf("load order lines: %w", err)
	}
	now := s.now()
	resp := &OrderDetailResponse{
		OrderResponse: ToOrderResponse(o),
		Lines:         make([]LineResponse, len(lines)),
	}
	for i, l := range lines {
		resp.Lines[i] = ToLineResponse(l, now)
	}
	return resp, nil
}

// ListMine lists the caller's own orders, newest first
func (s *OrderService) ListMine(ctx context.Context, userID uuid.UUID, q ListOrdersQuery) (*shared.Paginated[OrderResponse], error) {
	q.UserID = ""
	filter, err := q.toFilter()
	if err != nil {
		return nil, err
	}
	filter.UserID = &userID
	return s.list(ctx, filter)
}

// ListAll lists every order matching the query. Admin only.
func (s *OrderService) ListAll(ctx context.Context, actor Actor, q ListOrdersQuery) (*shared.Paginated[OrderResponse], error) {
	if !actor.IsAdmin {
		return nil, shared.ErrForbidden
	}
	filter, err := q.toFilter()
	if err != nil {
		return nil, err
	}
	return s.list(ctx, filter)
}

func (s *OrderService) list(ctx context.Context, filter order.ListFilter) (*shared.Paginated[OrderResponse], error) {
	orders, total, err := s.orders.FindAll(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	items := make([]OrderResponse, len(orders))
	for i := range orders {
		items[i] = ToOrderResponse(&orders[i])
	}
	page := shared.NewPaginated(items, total, filter.Page, filter.PageSize)
	return &page, nil
}

// Stats returns the admin dashboard aggregate
func (s *OrderService) Stats(ctx context.Context, actor Actor) (*order.Stats, error) {
	if !actor.IsAdmin {
		return nil, shared.ErrForbidden
	}
	st, err := s.stats.Stats(ctx, s.now())
	if err != nil {
		return nil, fmt.Errorf("compute order stats: %w", err)
	}
	return st, nil
}

// Receipt renders the receipt of an order on demand
func (s *OrderService) Receipt(ctx context.Context, actor Actor, orderID uuid.UUID) (*order.Receipt, error) {
	if s.receipts == nil {
		return nil, shared.NewDomainError(shared.CodeNotFound, "Receipts are not available")
	}
	o, err := s.loadAccessible(ctx, actor, orderID)
	if err != nil {
		return nil, err
	}
	receipt, err := s.receipts.Render(ctx, o)
	if err != nil {
		return nil, fmt.Errorf("render receipt: %w", err)
	}
	return receipt, nil
}

func (s *OrderService) loadAccessible(ctx context.Context, actor Actor, orderID uuid.UUID) (*order.Order, error) {
	o, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !actor.CanAccess(o) {
		return nil, shared.ErrForbidden
	}
	return o, nil
}

// ==================== State machine ====================

// Cancel cancels a pending or processing order and puts every reserved
// unit back in stock, in one transaction.
func (s *OrderService) Cancel(ctx context.Context, actor Actor, orderID uuid.UUID) (*OrderResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "order", "cancel",
		telemetry.SpanAttrOrderID, orderID.String(),
		telemetry.SpanAttrUserID, actor.UserID.String())
	defer span.End()

	var (
		cancelled *order.Order
		previous  order.Status
		released  int
	)
	err := s.tx.Execute(ctx, func(repos TransactionalRepositories) error {
		// The row lock orders this cancel against a concurrent
		// CompleteReturn on the same order.
		o, err := repos.Orders().FindByIDForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if !actor.CanAccess(o) {
			return shared.ErrForbidden
		}
		previous = o.Status
		if err := o.Cancel(); err != nil {
			return err
		}
		released, err = releaseOrderStock(ctx, repos, o)
		if err != nil {
			return err
		}
		if err := repos.Orders().UpdateState(ctx, o, previous); err != nil {
			return fmt.Errorf("update order state: %w", err)
		}
		cancelled = o
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.afterCancel(ctx, cancelled, previous, released)
	resp := ToOrderResponse(cancelled)
	return &resp, nil
}

// UpdateStatus applies an admin change of status, payment status or
// tracking number. Status changes follow the transition table; moving to
// cancelled takes the stock-releasing cancel path.
func (s *OrderService) UpdateStatus(ctx context.Context, actor Actor, orderID uuid.UUID, in UpdateStatusInput) (*OrderResponse, error) {
	if !actor.IsAdmin {
		return nil, shared.ErrForbidden
	}
	if in.IsEmpty() {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Nothing to update")
	}

	ctx, span := telemetry.StartServiceSpan(ctx, "order", "update_status",
		telemetry.SpanAttrOrderID, orderID.String())
	defer span.End()

	var (
		updated  *order.Order
		previous order.Status
		released int
	)
	err := s.tx.Execute(ctx, func(repos TransactionalRepositories) error {
		o, err := repos.Orders().FindByIDForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		previous = o.Status

		if in.Status != nil {
			target := order.Status(*in.Status)
			if target == order.StatusCancelled {
				if err := o.Cancel(); err != nil {
					return err
				}
				if released, err = releaseOrderStock(ctx, repos, o); err != nil {
					return err
				}
			} else if err := o.TransitionTo(target); err != nil {
				return err
			}
		}
		if in.PaymentStatus != nil {
			if err := o.SetPaymentStatus(order.PaymentStatus(*in.PaymentStatus)); err != nil {
				return err
			}
		}
		if in.TrackingNumber != nil {
			if err := o.SetTrackingNumber(*in.TrackingNumber); err != nil {
				return err
			}
		}

		if err := repos.Orders().UpdateState(ctx, o, previous); err != nil {
			return fmt.Errorf("update order state: %w", err)
		}
		updated = o
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	telemetry.SetAttributes(span, telemetry.SpanAttrOrderStatus, string(updated.Status))
	if updated.IsCancelled() && previous != order.StatusCancelled {
		s.afterCancel(ctx, updated, previous, released)
	} else {
		s.publish(ctx, logger.FromContext(ctx, s.logger), updated)
	}

	resp := ToOrderResponse(updated)
	return &resp, nil
}

func (s *OrderService) afterCancel(ctx context.Context, o *order.Order, previous order.Status, released int) {
	log := logger.FromContext(ctx, s.logger)
	s.metrics.OrderCancelled(ctx, string(previous))
	s.metrics.StockReleased(ctx, released)
	log.Info("Order cancelled",
		zap.String("order_id", o.ID.String()),
		zap.String("previous_status", string(previous)),
		zap.Int("units_released", released))
	s.publish(ctx, log, o)
}

// releaseOrderStock returns the quantities of a cancelled order to the
// ledger. Lines whose return already completed gave their units back at
// that point and are skipped. Orders without projected lines fall back to
// their embedded items.
func releaseOrderStock(ctx context.Context, repos TransactionalRepositories, o *order.Order) (int, error) {
	lines, err := repos.Lines().FindByOrder(ctx, o.ID)
	if err != nil {
		return 0, fmt.Errorf("load order lines: %w", err)
	}

	type movement struct {
		itemID uuid.UUID
		qty    int
	}
	var moves []movement
	if len(lines) == 0 {
		for _, it := range o.Items {
			moves = append(moves, movement{it.ItemID, it.Quantity})
		}
	} else {
		for _, l := range lines {
			if l.ReturnStatus == order.ReturnCompleted || l.ReturnStatus == order.ReturnRefunded {
				continue
			}
			moves = append(moves, movement{l.ItemID, l.Quantity})
		}
	}

	units := 0
	for _, m := range moves {
		if err := repos.Stock().Release(ctx, m.itemID, m.qty); err != nil {
			return 0, fmt.Errorf("release stock of item %s: %w", m.itemID, err)
		}
		units += m.qty
	}
	return units, nil
}

func (s *OrderService) publish(ctx context.Context, log *zap.Logger, o *order.Order) {
	events := o.GetDomainEvents()
	o.ClearDomainEvents()
	if s.events == nil || len(events) == 0 {
		return
	}
	if err := s.events.Publish(ctx, events...); err != nil {
		log.Warn("Failed to publish order events",
			zap.String("order_id", o.ID.String()),
			zap.Error(err))
	}
}

// ==================== Returns ====================

// RequestReturn opens a return on one of the caller's order lines
func (s *OrderService) RequestReturn(ctx context.Context, actor Actor, lineID uuid.UUID, req ReturnRequest) (*LineResponse, error) {
	l, err := s.lines.FindByID(ctx, lineID)
	if err != nil {
		return nil, err
	}
	if l.UserID != actor.UserID {
		return nil, shared.ErrForbidden
	}
	o, err := s.orders.FindByID(ctx, l.OrderID)
	if err != nil {
		return nil, err
	}
	if err := ensureReturnable(o); err != nil {
		return nil, err
	}
	now := s.now()
	from := l.ReturnStatus
	if err := l.RequestReturn(req.Reason, now); err != nil {
		return nil, err
	}
	if err := s.lines.SaveReturn(ctx, l, from); err != nil {
		return nil, fmt.Errorf("save order line: %w", err)
	}
	logger.FromContext(ctx, s.logger).Info("Return requested",
		zap.String("line_id", l.ID.String()),
		zap.String("order_id", l.OrderID.String()))
	resp := ToLineResponse(l, now)
	return &resp, nil
}

// ensureReturnable rejects returns on cancelled orders, whose stock was
// already released by the cancellation
func ensureReturnable(o *order.Order) error {
	if o.IsCancelled() {
		return shared.NewDomainError(shared.CodeInvalidTransition, "Lines of a cancelled order cannot be returned")
	}
	return nil
}

// ApproveReturn accepts a requested return; the refund equals the line total
func (s *OrderService) ApproveReturn(ctx context.Context, actor Actor, lineID uuid.UUID) (*LineResponse, error) {
	return s.reviewReturn(ctx, actor, lineID, (*order.Line).ApproveReturn)
}

// RejectReturn declines a requested return
func (s *OrderService) RejectReturn(ctx context.Context, actor Actor, lineID uuid.UUID) (*LineResponse, error) {
	return s.reviewReturn(ctx, actor, lineID, (*order.Line).RejectReturn)
}

func (s *OrderService) reviewReturn(ctx context.Context, actor Actor, lineID uuid.UUID, apply func(*order.Line, time.Time) error) (*LineResponse, error) {
	if !actor.IsAdmin {
		return nil, shared.ErrForbidden
	}
	l, err := s.lines.FindByID(ctx, lineID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	from := l.ReturnStatus
	if err := apply(l, now); err != nil {
		return nil, err
	}
	if err := s.lines.SaveReturn(ctx, l, from); err != nil {
		return nil, fmt.Errorf("save order line: %w", err)
	}
	resp := ToLineResponse(l, now)
	return &resp, nil
}

// CompleteReturn closes an approved return and puts the returned units
// back in stock in the same transaction.
func (s *OrderService) CompleteReturn(ctx context.Context, actor Actor, lineID uuid.UUID) (*LineResponse, error) {
	if !actor.IsAdmin {
		return nil, shared.ErrForbidden
	}
	now := s.now()
	var completed *order.Line
	err := s.tx.Execute(ctx, func(repos TransactionalRepositories) error {
		l, err := repos.Lines().FindByID(ctx, lineID)
		if err != nil {
			return err
		}
		o, err := repos.Orders().FindByIDForUpdate(ctx, l.OrderID)
		if err != nil {
			return err
		}
		if err := ensureReturnable(o); err != nil {
			return err
		}
		from := l.ReturnStatus
		if err := l.CompleteReturn(now); err != nil {
			return err
		}
		// Stock goes back only for the caller that won the swap.
		if err := repos.Lines().SaveReturn(ctx, l, from); err != nil {
			return fmt.Errorf("save order line: %w", err)
		}
		if err := repos.Stock().Release(ctx, l.ItemID, l.Quantity); err != nil {
			return fmt.Errorf("release returned stock: %w", err)
		}
		completed = l
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.StockReleased(ctx, completed.Quantity)
	logger.FromContext(ctx, s.logger).Info("Return completed",
		zap.String("line_id", completed.ID.String()),
		zap.String("item_id", completed.ItemID.String()),
		zap.Int("quantity", completed.Quantity))
	resp := ToLineResponse(completed, now)
	return &resp, nil
}
