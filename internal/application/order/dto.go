package order

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rouna/storefront/internal/domain/order"
	"github.com/rouna/storefront/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Actor is the authenticated caller of an order operation
type Actor struct {
	UserID  uuid.UUID
	IsAdmin bool
}

// CanAccess reports whether the actor may read or cancel o
func (a Actor) CanAccess(o *order.Order) bool {
	return a.IsAdmin || o.IsOwnedBy(a.UserID)
}

// ==================== Checkout ====================

// CheckoutLineInput is one purchased line
type CheckoutLineInput struct {
	ItemID   uuid.UUID `json:"item_id" binding:"required"`
	Quantity int       `json:"quantity" binding:"required,min=1,max=999"`
	Size     string    `json:"size" binding:"max=50"`
	Color    string    `json:"color" binding:"max=50"`
}

// AddressInput is a postal address as submitted at checkout
type AddressInput struct {
	FirstName  string `json:"first_name" binding:"required,max=100"`
	LastName   string `json:"last_name" binding:"required,max=100"`
	Street     string `json:"street" binding:"required,max=200"`
	City       string `json:"city" binding:"required,max=100"`
	PostalCode string `json:"postal_code" binding:"required,max=20"`
	Country    string `json:"country" binding:"omitempty,max=100"`
	Phone      string `json:"phone" binding:"omitempty,max=30"`
}

// ToDomain converts the input to an address snapshot
func (a AddressInput) ToDomain() order.Address {
	return order.Address{
		FirstName:  strings.TrimSpace(a.FirstName),
		LastName:   strings.TrimSpace(a.LastName),
		Street:     strings.TrimSpace(a.Street),
		City:       strings.TrimSpace(a.City),
		PostalCode: strings.TrimSpace(a.PostalCode),
		Country:    strings.TrimSpace(a.Country),
		Phone:      strings.TrimSpace(a.Phone),
	}
}

// CheckoutInput is a checkout request. IdempotencyKey comes from the
// Idempotency-Key header, not from the body.
type CheckoutInput struct {
	Lines           []CheckoutLineInput `json:"items" binding:"required,min=1,max=100,dive"`
	ShippingAddress AddressInput        `json:"shipping_address" binding:"required"`
	BillingAddress  *AddressInput       `json:"billing_address"`
	PaymentMethod   string              `json:"payment_method" binding:"required,payment_method"`
	ShippingMethod  string              `json:"shipping_method" binding:"omitempty,shipping_method"`
	DiscountCode    string              `json:"discount_code" binding:"max=50"`
	Notes           string              `json:"notes" binding:"max=500"`
	IdempotencyKey  string              `json:"-"`
}

// validate repeats the checks the domain performs so that a malformed
// request fails before any stock is touched
func (in CheckoutInput) validate() error {
	if len(in.Lines) == 0 {
		return shared.NewDomainError(shared.CodeInvalidInput, "Order must contain at least one item")
	}
	for i, l := range in.Lines {
		if l.ItemID == uuid.Nil {
			return shared.NewDomainError(shared.CodeInvalidInput, fmt.Sprintf("Line %d must reference an item", i+1))
		}
		if l.Quantity < 1 {
			return shared.NewDomainError(shared.CodeInvalidInput, fmt.Sprintf("Line %d: quantity must be at least 1", i+1))
		}
	}
	if !order.PaymentMethod(in.PaymentMethod).IsValid() {
		return shared.NewDomainError(shared.CodeInvalidInput,
			fmt.Sprintf("Unsupported payment method: %s", in.PaymentMethod))
	}
	if err := in.ShippingAddress.ToDomain().Validate(); err != nil {
		return err
	}
	if in.BillingAddress != nil {
		if err := in.BillingAddress.ToDomain().Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ==================== Status updates ====================

// UpdateStatusInput carries the admin-editable fields of an order
type UpdateStatusInput struct {
	Status         *string `json:"status" binding:"omitempty,order_status"`
	PaymentStatus  *string `json:"payment_status" binding:"omitempty,payment_status"`
	TrackingNumber *string `json:"tracking_number" binding:"omitempty,max=100"`
}

// IsEmpty reports whether nothing would change
func (in UpdateStatusInput) IsEmpty() bool {
	return in.Status == nil && in.PaymentStatus == nil && in.TrackingNumber == nil
}

// ReturnRequest asks to return one order line
type ReturnRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}

// ==================== Listing ====================

// ListOrdersQuery is the query string of order listings
type ListOrdersQuery struct {
	Page          int    `form:"page" binding:"omitempty,min=1"`
	PageSize      int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	Status        string `form:"status" binding:"omitempty,order_status"`
	PaymentStatus string `form:"payment_status" binding:"omitempty,payment_status"`
	UserID        string `form:"user_id" binding:"omitempty,uuid"`
	StartDate     string `form:"start_date"`
	EndDate       string `form:"end_date"`
}

const dateLayout = "2006-01-02"

// toFilter converts the query to a repository filter. A date-only end
// bound includes the whole day.
func (q ListOrdersQuery) toFilter() (order.ListFilter, error) {
	f := order.ListFilter{
		Filter: shared.Filter{
			Page:     q.Page,
			PageSize: q.PageSize,
			OrderBy:  "created_at",
			OrderDir: "desc",
		}.Normalize(),
		Status:        order.Status(q.Status),
		PaymentStatus: order.PaymentStatus(q.PaymentStatus),
	}
	if q.Status != "" && !f.Status.IsValid() {
		return f, shared.NewDomainError(shared.CodeInvalidInput, fmt.Sprintf("Unknown order status: %s", q.Status))
	}
	if q.PaymentStatus != "" && !f.PaymentStatus.IsValid() {
		return f, shared.NewDomainError(shared.CodeInvalidInput, fmt.Sprintf("Unknown payment status: %s", q.PaymentStatus))
	}
	if q.UserID != "" {
		id, err := uuid.Parse(q.UserID)
		if err != nil {
			return f, shared.NewDomainError(shared.CodeInvalidInput, "Invalid user_id")
		}
		f.UserID = &id
	}
	if q.StartDate != "" {
		from, _, err := parseDate(q.StartDate)
		if err != nil {
			return f, err
		}
		f.From = &from
	}
	if q.EndDate != "" {
		to, dateOnly, err := parseDate(q.EndDate)
		if err != nil {
			return f, err
		}
		if dateOnly {
			to = to.Add(24*time.Hour - time.Nanosecond)
		}
		f.To = &to
	}
	if f.From != nil && f.To != nil && f.To.Before(*f.From) {
		return f, shared.NewDomainError(shared.CodeInvalidInput, "end_date must not precede start_date")
	}
	return f, nil
}

func parseDate(v string) (time.Time, bool, error) {
	if t, err := time.Parse(dateLayout, v); err == nil {
		return t, true, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, false, shared.NewDomainError(shared.CodeInvalidInput,
			fmt.Sprintf("Invalid date %q: expected YYYY-MM-DD or RFC 3339", v))
	}
	return t, false, nil
}

// ==================== Responses ====================

// ItemResponse is a frozen order item
type ItemResponse struct {
	ItemID    uuid.UUID       `json:"item_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	Size      string          `json:"size,omitempty"`
	Color     string          `json:"color,omitempty"`
	Image     string          `json:"image,omitempty"`
	Total     decimal.Decimal `json:"total"`
}

// OrderResponse represents an order in API responses
type OrderResponse struct {
	ID              uuid.UUID       `json:"id"`
	OrderNumber     string          `json:"order_number"`
	UserID          uuid.UUID       `json:"user_id"`
	Items           []ItemResponse  `json:"items"`
	ShippingAddress order.Address   `json:"shipping_address"`
	BillingAddress  order.Address   `json:"billing_address"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	ShippingCost    decimal.Decimal `json:"shipping_cost"`
	Tax             decimal.Decimal `json:"tax"`
	Discount        decimal.Decimal `json:"discount"`
	Total           decimal.Decimal `json:"total"`
	DiscountCode    string          `json:"discount_code,omitempty"`
	ShippingMethod  string          `json:"shipping_method"`
	PaymentMethod   string          `json:"payment_method"`
	Status          string          `json:"status"`
	PaymentStatus   string          `json:"payment_status"`
	TrackingNumber  string          `json:"tracking_number,omitempty"`
	Notes           string          `json:"notes,omitempty"`
	ReceiptURL      string          `json:"receipt_url,omitempty"`
	Version         int             `json:"version"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// LineResponse represents a projected order line
type LineResponse struct {
	ID               uuid.UUID       `json:"id"`
	Position         int             `json:"position"`
	ItemID           uuid.UUID       `json:"item_id"`
	ItemName         string          `json:"item_name"`
	ItemSlug         string          `json:"item_slug,omitempty"`
	SKU              string          `json:"sku,omitempty"`
	UnitPrice        decimal.Decimal `json:"unit_price"`
	Quantity         int             `json:"quantity"`
	Subtotal         decimal.Decimal `json:"subtotal"`
	DiscountAmount   decimal.Decimal `json:"discount_amount"`
	TaxAmount        decimal.Decimal `json:"tax_amount"`
	Total            decimal.Decimal `json:"total"`
	IsReturnable     bool            `json:"is_returnable"`
	CanBeReturned    bool            `json:"can_be_returned"`
	ReturnDeadline   *time.Time      `json:"return_deadline,omitempty"`
	ReturnStatus     string          `json:"return_status"`
	ReturnReason     string          `json:"return_reason,omitempty"`
	RefundAmount     decimal.Decimal `json:"refund_amount"`
	WarrantyExpires  *time.Time      `json:"warranty_expires,omitempty"`
	UnderWarranty    bool            `json:"under_warranty"`
	WarrantyDaysLeft int             `json:"warranty_days_left"`
}

// OrderDetailResponse is an order together with its lines
type OrderDetailResponse struct {
	OrderResponse
	Lines []LineResponse `json:"lines"`
}

// ToOrderResponse converts a domain order to a response
func ToOrderResponse(o *order.Order) OrderResponse {
	items := make([]ItemResponse, len(o.Items))
	for i, it := range o.Items {
		items[i] = ItemResponse{
			ItemID:    it.ItemID,
			Name:      it.Name,
			UnitPrice: it.UnitPrice,
			Quantity:  it.Quantity,
			Size:      it.Size,
			Color:     it.Color,
			Image:     it.Image,
			Total:     it.Total,
		}
	}
	return OrderResponse{
		ID:              o.ID,
		OrderNumber:     o.OrderNumber,
		UserID:          o.UserID,
		Items:           items,
		ShippingAddress: o.ShippingAddress,
		BillingAddress:  o.BillingAddress,
		Subtotal:        o.Subtotal,
		ShippingCost:    o.ShippingCost,
		Tax:             o.Tax,
		Discount:        o.Discount,
		Total:           o.Total,
		DiscountCode:    o.DiscountCode,
		ShippingMethod:  string(o.ShippingMethod),
		PaymentMethod:   string(o.PaymentMethod),
		Status:          string(o.Status),
		PaymentStatus:   string(o.PaymentStatus),
		TrackingNumber:  o.TrackingNumber,
		Notes:           o.Notes,
		Version:         o.Version,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}

// ToLineResponse converts a projected line to a response evaluated at now
func ToLineResponse(l *order.Line, now time.Time) LineResponse {
	return LineResponse{
		ID:               l.ID,
		Position:         l.Position,
		ItemID:           l.ItemID,
		ItemName:         l.ItemName,
		ItemSlug:         l.ItemSlug,
		SKU:              l.SKU,
		UnitPrice:        l.UnitPrice,
		Quantity:         l.Quantity,
		Subtotal:         l.Subtotal,
		DiscountAmount:   l.DiscountAmount,
		TaxAmount:        l.TaxAmount,
		Total:            l.Total,
		IsReturnable:     l.IsReturnable,
		CanBeReturned:    l.CanBeReturned(now),
		ReturnDeadline:   l.ReturnDeadline,
		ReturnStatus:     string(l.ReturnStatus),
		ReturnReason:     l.ReturnReason,
		RefundAmount:     l.RefundAmount,
		WarrantyExpires:  l.WarrantyExpires,
		UnderWarranty:    l.IsUnderWarranty(now),
		WarrantyDaysLeft: l.WarrantyDaysLeft(now),
	}
}
