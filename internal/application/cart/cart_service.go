package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rouna/storefront/internal/domain/cart"
	"github.com/rouna/storefront/internal/domain/catalog"
	"github.com/rouna/storefront/internal/domain/shared"
	"github.com/rouna/storefront/internal/infrastructure/logger"
	"github.com/rouna/storefront/internal/infrastructure/telemetry"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CartService keeps the single server-side cart of each identity
type CartService struct {
	carts  cart.Repository
	items  catalog.ItemRepository
	guests cart.GuestStore
	logger *zap.Logger
}

// NewCartService creates a new CartService
func NewCartService(
	carts cart.Repository,
	items catalog.ItemRepository,
	guests cart.GuestStore,
	logger *zap.Logger,
) *CartService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CartService{
		carts:  carts,
		items:  items,
		guests: guests,
		logger: logger,
	}
}

// Get returns the user's cart with item details. Lines whose item left the
// catalog are omitted. A user without a cart gets an empty one.
func (s *CartService) Get(ctx context.Context, userID uuid.UUID) (*CartResponse, error) {
	c, err := s.loadCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	items, err := s.items.FindByIDs(ctx, itemIDs(c.Lines))
	if err != nil {
		return nil, fmt.Errorf("load cart items: %w", err)
	}
	return toCartResponse(c.Lines, items, &c.UpdatedAt), nil
}

// Sync overwrites the user's cart with lines after reconciling them with
// the catalog.
func (s *CartService) Sync(ctx context.Context, userID uuid.UUID, inputs []LineInput) (*CartResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "cart", "sync",
		telemetry.SpanAttrUserID, userID.String(),
		telemetry.SpanAttrLineCount, len(inputs))
	defer span.End()

	lines, err := fromInputs(inputs)
	if err != nil {
		return nil, err
	}
	lines, items, err := s.reconcile(ctx, lines)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	c, err := s.loadCart(ctx, userID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	c.Replace(lines)
	if err := s.carts.Save(ctx, c); err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("save cart: %w", err)
	}
	return toCartResponse(c.Lines, items, &c.UpdatedAt), nil
}

// Merge reconciles the carts a user holds at login: the local lines sent
// by the client, the guest cart stored under guestToken, and the server
// cart. Local lines come first and a later line is kept only when its
// (item, size, color) key is new. The result becomes the server cart and
// the guest cart is discarded.
//
// An unreachable guest store does not fail the merge; the guest cart is
// kept for the next attempt. When the server cart cannot be read the
// local lines are returned as they are, nothing is written and the next
// sync retries.
func (s *CartService) Merge(ctx context.Context, userID uuid.UUID, guestToken string, local []LineInput) (*CartResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "cart", "merge",
		telemetry.SpanAttrUserID, userID.String(),
		telemetry.SpanAttrLineCount, len(local))
	defer span.End()
	log := logger.FromContext(ctx, s.logger)

	localLines, err := fromInputs(local)
	if err != nil {
		return nil, err
	}

	server, err := s.loadCart(ctx, userID)
	if err != nil {
		telemetry.RecordError(span, err)
		log.Warn("Server cart unavailable, keeping the local cart",
			zap.String("user_id", userID.String()),
			zap.Error(err))
		return s.localFallback(ctx, localLines)
	}

	var guestLines []cart.Line
	guestLoaded := false
	if guestToken != "" && s.guests != nil {
		guestLines, err = s.guests.Get(ctx, guestToken)
		if err != nil {
			log.Warn("Guest cart unavailable, merging without it",
				zap.String("user_id", userID.String()),
				zap.Error(err))
		} else {
			guestLoaded = true
		}
	}

	merged := cart.Merge(localLines, guestLines, server.Lines)
	merged, items, err := s.reconcile(ctx, merged)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	server.Replace(merged)
	if err := s.carts.Save(ctx, server); err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("save merged cart: %w", err)
	}

	if guestLoaded {
		if err := s.guests.Delete(ctx, guestToken); err != nil {
			log.Warn("Failed to discard merged guest cart", zap.Error(err))
		}
	}

	log.Info("Cart merged",
		zap.String("user_id", userID.String()),
		zap.Int("local_lines", len(localLines)),
		zap.Int("guest_lines", len(guestLines)),
		zap.Int("lines", len(server.Lines)))

	return toCartResponse(server.Lines, items, &server.UpdatedAt), nil
}

// localFallback renders the client's lines without touching stored carts
func (s *CartService) localFallback(ctx context.Context, lines []cart.Line) (*CartResponse, error) {
	lines, items, err := s.reconcile(ctx, lines)
	if err != nil {
		return nil, err
	}
	return toCartResponse(lines, items, nil), nil
}

// Clear empties the user's cart
func (s *CartService) Clear(ctx context.Context, userID uuid.UUID) error {
	if err := s.carts.ClearByUser(ctx, userID); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}

// UpdateLine patches the line at index. The patched cart is reconciled
// like a sync, so the new quantity is clamped to stock.
func (s *CartService) UpdateLine(ctx context.Context, userID uuid.UUID, index int, req UpdateLineRequest) (*CartResponse, error) {
	c, err := s.carts.FindByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	patch := cart.LinePatch{Quantity: req.Quantity, Size: req.Size, Color: req.Color}
	if err := c.UpdateLine(index, patch); err != nil {
		return nil, err
	}
	lines, items, err := s.reconcile(ctx, c.Lines)
	if err != nil {
		return nil, err
	}
	c.Replace(lines)
	if err := s.carts.Save(ctx, c); err != nil {
		return nil, fmt.Errorf("save cart: %w", err)
	}
	return toCartResponse(c.Lines, items, &c.UpdatedAt), nil
}

// RemoveLine drops the line at index
func (s *CartService) RemoveLine(ctx context.Context, userID uuid.UUID, index int) (*CartResponse, error) {
	c, err := s.carts.FindByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := c.RemoveLine(index); err != nil {
		return nil, err
	}
	return s.save(ctx, c)
}

// PutGuest stores the cart of an anonymous device
func (s *CartService) PutGuest(ctx context.Context, token string, inputs []LineInput) (*CartResponse, error) {
	if s.guests == nil {
		return nil, shared.NewDomainError(shared.CodeNotFound, "Guest carts are disabled")
	}
	lines, err := fromInputs(inputs)
	if err != nil {
		return nil, err
	}
	lines, items, err := s.reconcile(ctx, lines)
	if err != nil {
		return nil, err
	}
	if err := s.guests.Put(ctx, token, lines); err != nil {
		return nil, fmt.Errorf("store guest cart: %w", err)
	}
	return toCartResponse(lines, items, nil), nil
}

// GetGuest returns the cart of an anonymous device, empty when unknown
func (s *CartService) GetGuest(ctx context.Context, token string) (*CartResponse, error) {
	if s.guests == nil {
		return nil, shared.NewDomainError(shared.CodeNotFound, "Guest carts are disabled")
	}
	lines, err := s.guests.Get(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("load guest cart: %w", err)
	}
	items, err := s.items.FindByIDs(ctx, itemIDs(lines))
	if err != nil {
		return nil, fmt.Errorf("load cart items: %w", err)
	}
	return toCartResponse(lines, items, nil), nil
}

func (s *CartService) save(ctx context.Context, c *cart.Cart) (*CartResponse, error) {
	if err := s.carts.Save(ctx, c); err != nil {
		return nil, fmt.Errorf("save cart: %w", err)
	}
	items, err := s.items.FindByIDs(ctx, itemIDs(c.Lines))
	if err != nil {
		return nil, fmt.Errorf("load cart items: %w", err)
	}
	return toCartResponse(c.Lines, items, &c.UpdatedAt), nil
}

func (s *CartService) loadCart(ctx context.Context, userID uuid.UUID) (*cart.Cart, error) {
	c, err := s.carts.FindByUser(ctx, userID)
	if errors.Is(err, shared.ErrNotFound) {
		return cart.NewCart(userID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	return c, nil
}

// reconcile checks lines against the catalog. Lines of vanished items are
// dropped, quantities are clamped to stock (a line clamped to zero is
// dropped) and prices are set to the current effective price. Duplicate
// keys collapse to their first occurrence.
func (s *CartService) reconcile(ctx context.Context, lines []cart.Line) ([]cart.Line, map[uuid.UUID]*catalog.Item, error) {
	lines = cart.Merge(lines)
	items, err := s.items.FindByIDs(ctx, itemIDs(lines))
	if err != nil {
		return nil, nil, fmt.Errorf("load cart items: %w", err)
	}

	out := make([]cart.Line, 0, len(lines))
	for _, l := range lines {
		it, ok := items[l.ItemID]
		if !ok {
			continue
		}
		qty := it.ClampQuantity(l.Quantity)
		if qty == 0 {
			continue
		}
		l.Quantity = qty
		l.Price = it.EffectivePrice()
		out = append(out, l)
	}
	return out, items, nil
}

func fromInputs(inputs []LineInput) ([]cart.Line, error) {
	lines := make([]cart.Line, 0, len(inputs))
	for _, in := range inputs {
		l, err := cart.NewLine(in.ItemID, in.Quantity, in.Size, in.Color, decimal.Zero)
		if err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, nil
}

func itemIDs(lines []cart.Line) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(lines))
	ids := make([]uuid.UUID, 0, len(lines))
	for _, l := range lines {
		if _, ok := seen[l.ItemID]; ok {
			continue
		}
		seen[l.ItemID] = struct{}{}
		ids = append(ids, l.ItemID)
	}
	return ids
}
