package order

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rouna/storefront/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Item is the frozen copy of a purchased line. It is decoupled from the live
// catalog item so later catalog changes never alter order history.
type Item struct {
	ItemID    uuid.UUID       `json:"item_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	Size      string          `json:"size,omitempty"`
	Color     string          `json:"color,omitempty"`
	Image     string          `json:"image,omitempty"`
	Total     decimal.Decimal `json:"total"`
}

// NewItem freezes a priced line
func NewItem(itemID uuid.UUID, name string, unitPrice decimal.Decimal, quantity int, size, color, image string) (Item, error) {
	if itemID == uuid.Nil {
		return Item{}, shared.NewDomainError(shared.CodeInvalidInput, "Order line must reference an item")
	}
	if quantity < 1 {
		return Item{}, shared.NewDomainError(shared.CodeInvalidInput, "Quantity must be at least 1")
	}
	if unitPrice.IsNegative() {
		return Item{}, shared.NewDomainError("INVALID_PRICE", "Unit price cannot be negative")
	}
	return Item{
		ItemID:    itemID,
		Name:      name,
		UnitPrice: unitPrice,
		Quantity:  quantity,
		Size:      size,
		Color:     color,
		Image:     image,
		Total:     unitPrice.Mul(decimal.NewFromInt(int64(quantity))),
	}, nil
}

// Order is an immutable record of a completed checkout. Only Status,
// PaymentStatus and TrackingNumber change after creation.
type Order struct {
	shared.BaseAggregateRoot
	OrderNumber     string
	UserID          uuid.UUID
	ShippingAddress Address
	BillingAddress  Address
	Items           []Item
	Subtotal        decimal.Decimal
	ShippingCost    decimal.Decimal
	Tax             decimal.Decimal
	Discount        decimal.Decimal
	Total           decimal.Decimal
	DiscountCode    string
	ShippingMethod  ShippingMethod
	PaymentMethod   PaymentMethod
	Status          Status
	PaymentStatus   PaymentStatus
	TrackingNumber  string
	Notes           string
}

// Draft carries everything needed to create an order apart from pricing
type Draft struct {
	UserID          uuid.UUID
	Items           []Item
	ShippingAddress Address
	BillingAddress  *Address
	ShippingMethod  ShippingMethod
	PaymentMethod   PaymentMethod
	DiscountCode    string
	Notes           string
}

// New prices a draft and returns a pending order
func New(d Draft) (*Order, error) {
	if d.UserID == uuid.Nil {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Order must belong to a user")
	}
	if len(d.Items) == 0 {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Order must contain at least one item")
	}
	if !d.PaymentMethod.IsValid() {
		return nil, shared.NewDomainError(shared.CodeInvalidInput,
			fmt.Sprintf("Unsupported payment method: %s", d.PaymentMethod))
	}
	if err := d.ShippingAddress.Validate(); err != nil {
		return nil, err
	}
	billing := d.ShippingAddress
	if d.BillingAddress != nil && !d.BillingAddress.IsEmpty() {
		billing = *d.BillingAddress
	}
	if len(d.Notes) > 500 {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Notes cannot exceed 500 characters")
	}

	totals := ComputeTotals(d.Items, d.ShippingMethod, d.DiscountCode)

	o := &Order{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		UserID:            d.UserID,
		ShippingAddress:   d.ShippingAddress,
		BillingAddress:    billing,
		Items:             append([]Item(nil), d.Items...),
		Subtotal:          totals.Subtotal,
		ShippingCost:      totals.ShippingCost,
		Tax:               totals.Tax,
		Discount:          totals.Discount,
		Total:             totals.Total,
		DiscountCode:      totals.DiscountCode,
		ShippingMethod:    d.ShippingMethod,
		PaymentMethod:     d.PaymentMethod,
		Status:            StatusPending,
		PaymentStatus:     PaymentPending,
		Notes:             strings.TrimSpace(d.Notes),
	}
	o.OrderNumber = GenerateOrderNumber(o.CreatedAt)

	o.AddDomainEvent(NewOrderCreatedEvent(o))
	return o, nil
}

// RecomputeTotals prices the embedded lines again from scratch
func (o *Order) RecomputeTotals() Totals {
	return ComputeTotals(o.Items, o.ShippingMethod, o.DiscountCode)
}

// TotalsConsistent reports whether the stored amounts satisfy
// Total == Subtotal + ShippingCost + Tax - Discount
func (o *Order) TotalsConsistent() bool {
	return o.Total.Equal(o.Subtotal.Add(o.ShippingCost).Add(o.Tax).Sub(o.Discount))
}

// IsOwnedBy reports whether userID placed the order
func (o *Order) IsOwnedBy(userID uuid.UUID) bool {
	return o.UserID == userID
}

// ItemCount returns the number of distinct lines
func (o *Order) ItemCount() int {
	return len(o.Items)
}

// TotalQuantity sums all line quantities
func (o *Order) TotalQuantity() int {
	n := 0
	for _, it := range o.Items {
		n += it.Quantity
	}
	return n
}

// Cancel moves a pending or processing order to cancelled. Releasing stock
// is the caller's job and must happen in the same unit of work.
func (o *Order) Cancel() error {
	if !o.Status.IsCancellable() {
		return shared.NewDomainError(shared.CodeInvalidTransition,
			fmt.Sprintf("Order in status %s can no longer be cancelled", o.Status))
	}
	previous := o.Status
	o.Status = StatusCancelled
	o.UpdatedAt = time.Now()
	o.IncrementVersion()
	o.AddDomainEvent(NewOrderCancelledEvent(o, previous))
	return nil
}

// TransitionTo applies a guarded status change other than cancellation
func (o *Order) TransitionTo(target Status) error {
	if !target.IsValid() {
		return shared.NewDomainError(shared.CodeInvalidInput, fmt.Sprintf("Unknown order status: %s", target))
	}
	if target == StatusCancelled {
		return o.Cancel()
	}
	if target == o.Status {
		return nil
	}
	if !o.Status.CanTransitionTo(target) {
		return shared.NewDomainError(shared.CodeInvalidTransition,
			fmt.Sprintf("Cannot change order status from %s to %s", o.Status, target))
	}
	previous := o.Status
	o.Status = target
	o.UpdatedAt = time.Now()
	o.IncrementVersion()
	o.AddDomainEvent(NewOrderStatusChangedEvent(o, previous))
	return nil
}

// SetPaymentStatus records a payment flag
func (o *Order) SetPaymentStatus(ps PaymentStatus) error {
	if !ps.IsValid() {
		return shared.NewDomainError(shared.CodeInvalidInput, fmt.Sprintf("Unknown payment status: %s", ps))
	}
	o.PaymentStatus = ps
	o.UpdatedAt = time.Now()
	return nil
}

// SetTrackingNumber records the carrier tracking number
func (o *Order) SetTrackingNumber(tracking string) error {
	tracking = strings.TrimSpace(tracking)
	if len(tracking) > 100 {
		return shared.NewDomainError(shared.CodeInvalidInput, "Tracking number cannot exceed 100 characters")
	}
	o.TrackingNumber = tracking
	o.UpdatedAt = time.Now()
	return nil
}

// IsPending returns true if order is pending
func (o *Order) IsPending() bool { return o.Status == StatusPending }

// IsCancelled returns true if order is cancelled
func (o *Order) IsCancelled() bool { return o.Status == StatusCancelled }
