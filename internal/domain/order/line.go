package order

import (
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rouna/storefront/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// ReturnWindow is how long after purchase a line may be returned
const ReturnWindow = 30 * 24 * time.Hour

// ReturnStatus tracks the return flow of a single order line
type ReturnStatus string

const (
	ReturnNone      ReturnStatus = "none"
	ReturnRequested ReturnStatus = "requested"
	ReturnApproved  ReturnStatus = "approved"
	ReturnRejected  ReturnStatus = "rejected"
	ReturnCompleted ReturnStatus = "completed"
	ReturnRefunded  ReturnStatus = "refunded"
)

// IsValid checks if the return status is known
func (s ReturnStatus) IsValid() bool {
	switch s {
	case ReturnNone, ReturnRequested, ReturnApproved, ReturnRejected, ReturnCompleted, ReturnRefunded:
		return true
	}
	return false
}

// Line is the per-item record projected from an order. It carries the
// tax and discount split plus return and warranty windows, and is queried
// independently of the order.
type Line struct {
	shared.BaseEntity
	OrderID           uuid.UUID
	UserID            uuid.UUID
	Position          int
	ItemID            uuid.UUID
	ItemName          string
	ItemSlug          string
	SKU               string
	UnitPrice         decimal.Decimal
	Quantity          int
	Size              string
	Color             string
	Image             string
	TaxRate           decimal.Decimal
	TaxAmount         decimal.Decimal
	DiscountRate      decimal.Decimal
	DiscountAmount    decimal.Decimal
	Subtotal          decimal.Decimal
	Total             decimal.Decimal
	IsReturnable      bool
	ReturnDeadline    *time.Time
	WarrantyExpires   *time.Time
	ReturnStatus      ReturnStatus
	ReturnReason      string
	RefundAmount      decimal.Decimal
	ReturnRequestedAt *time.Time
	ReturnApprovedAt  *time.Time
	ReturnCompletedAt *time.Time
}

// LineCatalogInfo is catalog data the projection copies onto each line
type LineCatalogInfo struct {
	Slug           string
	SKU            string
	IsReturnable   bool
	WarrantyMonths int
}

// ProjectLines derives one Line per embedded order item. Missing catalog
// info yields a returnable line without warranty.
func ProjectLines(o *Order, info map[uuid.UUID]LineCatalogInfo) []*Line {
	discountRate := DiscountRateFor(o.DiscountCode)
	placed := o.CreatedAt
	if placed.IsZero() {
		placed = time.Now()
	}

	lines := make([]*Line, 0, len(o.Items))
	for i, it := range o.Items {
		ci, ok := info[it.ItemID]
		if !ok {
			ci = LineCatalogInfo{IsReturnable: true}
		}

		subtotal := it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))).Round(moneyPlaces)
		discountAmount := subtotal.Mul(discountRate).Round(moneyPlaces)
		taxAmount := subtotal.Sub(discountAmount).Mul(TaxRate).Round(moneyPlaces)

		l := &Line{
			BaseEntity:     shared.NewBaseEntity(),
			OrderID:        o.ID,
			UserID:         o.UserID,
			Position:       i,
			ItemID:         it.ItemID,
			ItemName:       it.Name,
			ItemSlug:       ci.Slug,
			SKU:            ci.SKU,
			UnitPrice:      it.UnitPrice,
			Quantity:       it.Quantity,
			Size:           it.Size,
			Color:          it.Color,
			Image:          it.Image,
			TaxRate:        TaxRate,
			TaxAmount:      taxAmount,
			DiscountRate:   discountRate,
			DiscountAmount: discountAmount,
			Subtotal:       subtotal,
			Total:          subtotal.Sub(discountAmount).Add(taxAmount),
			IsReturnable:   ci.IsReturnable,
			ReturnStatus:   ReturnNone,
			RefundAmount:   decimal.Zero,
		}
		if ci.IsReturnable {
			deadline := placed.Add(ReturnWindow)
			l.ReturnDeadline = &deadline
		}
		if ci.WarrantyMonths > 0 {
			expires := placed.AddDate(0, ci.WarrantyMonths, 0)
			l.WarrantyExpires = &expires
		}
		lines = append(lines, l)
	}
	return lines
}

// CanBeReturned reports whether a return may be requested at now
func (l *Line) CanBeReturned(now time.Time) bool {
	if !l.IsReturnable {
		return false
	}
	if l.ReturnDeadline != nil && now.After(*l.ReturnDeadline) {
		return false
	}
	return l.ReturnStatus == ReturnNone
}

// RequestReturn opens a return for the line
func (l *Line) RequestReturn(reason string, now time.Time) error {
	if !l.CanBeReturned(now) {
		return shared.NewDomainError(shared.CodeInvalidTransition, "This item cannot be returned")
	}
	l.ReturnStatus = ReturnRequested
	l.ReturnReason = reason
	l.ReturnRequestedAt = &now
	if l.ReturnDeadline == nil {
		deadline := now.Add(ReturnWindow)
		l.ReturnDeadline = &deadline
	}
	l.UpdatedAt = now
	return nil
}

// ApproveReturn accepts a requested return; the refund is the line total
func (l *Line) ApproveReturn(now time.Time) error {
	if l.ReturnStatus != ReturnRequested {
		return shared.NewDomainError(shared.CodeInvalidTransition, "Only requested returns can be approved")
	}
	l.ReturnStatus = ReturnApproved
	l.ReturnApprovedAt = &now
	l.RefundAmount = l.Total
	l.UpdatedAt = now
	return nil
}

// RejectReturn declines a requested return
func (l *Line) RejectReturn(now time.Time) error {
	if l.ReturnStatus != ReturnRequested {
		return shared.NewDomainError(shared.CodeInvalidTransition, "Only requested returns can be rejected")
	}
	l.ReturnStatus = ReturnRejected
	l.UpdatedAt = now
	return nil
}

// CompleteReturn closes an approved return. The caller must release
// Quantity units back to the stock ledger in the same unit of work.
func (l *Line) CompleteReturn(now time.Time) error {
	if l.ReturnStatus != ReturnApproved {
		return shared.NewDomainError(shared.CodeInvalidTransition, "Only approved returns can be completed")
	}
	l.ReturnStatus = ReturnCompleted
	l.ReturnCompletedAt = &now
	l.UpdatedAt = now
	return nil
}

// IsUnderWarranty reports whether the warranty still runs at now
func (l *Line) IsUnderWarranty(now time.Time) bool {
	if l.WarrantyExpires == nil {
		return false
	}
	return !now.After(*l.WarrantyExpires)
}

// WarrantyDaysLeft rounds the remaining warranty up to whole days
func (l *Line) WarrantyDaysLeft(now time.Time) int {
	if !l.IsUnderWarranty(now) {
		return 0
	}
	days := l.WarrantyExpires.Sub(now).Hours() / 24
	return int(math.Ceil(days))
}
