package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/rouna/storefront/internal/domain/order"
	"github.com/rouna/storefront/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// OrderModel is the persistence model for the Order aggregate.
type OrderModel struct {
	AggregateModel
	OrderNumber     string               `gorm:"type:varchar(40);not null;index"`
	UserID          uuid.UUID            `gorm:"type:uuid;not null;index"`
	ShippingAddress order.Address        `gorm:"type:jsonb;not null"`
	BillingAddress  order.Address        `gorm:"type:jsonb;not null"`
	Items           []OrderItemModel     `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Subtotal        decimal.Decimal      `gorm:"type:decimal(12,2);not null"`
	ShippingCost    decimal.Decimal      `gorm:"type:decimal(12,2);not null"`
	Tax             decimal.Decimal      `gorm:"type:decimal(12,2);not null"`
	Discount        decimal.Decimal      `gorm:"type:decimal(12,2);not null"`
	Total           decimal.Decimal      `gorm:"type:decimal(12,2);not null"`
	DiscountCode    string               `gorm:"type:varchar(50)"`
	ShippingMethod  order.ShippingMethod `gorm:"type:varchar(20)"`
	PaymentMethod   order.PaymentMethod  `gorm:"type:varchar(30);not null"`
	Status          order.Status         `gorm:"type:varchar(20);not null;index"`
	PaymentStatus   order.PaymentStatus  `gorm:"type:varchar(20);not null;index"`
	TrackingNumber  string               `gorm:"type:varchar(100)"`
	Notes           string               `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (OrderModel) TableName() string {
	return "orders"
}

// OrderItemModel is the frozen copy of a purchased line, stored with the order.
type OrderItemModel struct {
	ID        uuid.UUID       `gorm:"type:uuid;primary_key"`
	OrderID   uuid.UUID       `gorm:"type:uuid;not null;index"`
	Position  int             `gorm:"not null"`
	ItemID    uuid.UUID       `gorm:"type:uuid;not null;index"`
	Name      string          `gorm:"type:varchar(200);not null"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Quantity  int             `gorm:"not null"`
	Size      string          `gorm:"type:varchar(50)"`
	Color     string          `gorm:"type:varchar(50)"`
	Image     string          `gorm:"type:varchar(500)"`
	Total     decimal.Decimal `gorm:"type:decimal(12,2);not null"`
}

// TableName returns the table name for GORM
func (OrderItemModel) TableName() string {
	return "order_items"
}

// ToDomain converts the persistence model to a domain Order.
func (m *OrderModel) ToDomain() *order.Order {
	o := &order.Order{
		BaseAggregateRoot: m.ToAggregateRoot(),
		OrderNumber:       m.OrderNumber,
		UserID:            m.UserID,
		ShippingAddress:   m.ShippingAddress,
		BillingAddress:    m.BillingAddress,
		Items:             make([]order.Item, 0, len(m.Items)),
		Subtotal:          m.Subtotal,
		ShippingCost:      m.ShippingCost,
		Tax:               m.Tax,
		Discount:          m.Discount,
		Total:             m.Total,
		DiscountCode:      m.DiscountCode,
		ShippingMethod:    m.ShippingMethod,
		PaymentMethod:     m.PaymentMethod,
		Status:            m.Status,
		PaymentStatus:     m.PaymentStatus,
		TrackingNumber:    m.TrackingNumber,
		Notes:             m.Notes,
	}
	for _, it := range m.Items {
		o.Items = append(o.Items, order.Item{
			ItemID:    it.ItemID,
			Name:      it.Name,
			UnitPrice: it.UnitPrice,
			Quantity:  it.Quantity,
			Size:      it.Size,
			Color:     it.Color,
			Image:     it.Image,
			Total:     it.Total,
		})
	}
	return o
}

// FromDomain populates the persistence model from a domain Order, items included.
func (m *OrderModel) FromDomain(o *order.Order) {
	m.FromDomainAggregateRoot(o.BaseAggregateRoot)
	m.OrderNumber = o.OrderNumber
	m.UserID = o.UserID
	m.ShippingAddress = o.ShippingAddress
	m.BillingAddress = o.BillingAddress
	m.Subtotal = o.Subtotal
	m.ShippingCost = o.ShippingCost
	m.Tax = o.Tax
	m.Discount = o.Discount
	m.Total = o.Total
	m.DiscountCode = o.DiscountCode
	m.ShippingMethod = o.ShippingMethod
	m.PaymentMethod = o.PaymentMethod
	m.Status = o.Status
	m.PaymentStatus = o.PaymentStatus
	m.TrackingNumber = o.TrackingNumber
	m.Notes = o.Notes

	m.Items = make([]OrderItemModel, 0, len(o.Items))
	for i, it := range o.Items {
		m.Items = append(m.Items, OrderItemModel{
			ID:        uuid.New(),
			OrderID:   o.ID,
			Position:  i,
			ItemID:    it.ItemID,
			Name:      it.Name,
			UnitPrice: it.UnitPrice,
			Quantity:  it.Quantity,
			Size:      it.Size,
			Color:     it.Color,
			Image:     it.Image,
			Total:     it.Total,
		})
	}
}

// OrderModelFromDomain creates a new persistence model from a domain Order.
func OrderModelFromDomain(o *order.Order) *OrderModel {
	m := &OrderModel{}
	m.FromDomain(o)
	return m
}

// OrderLineModel is the persistence model for a projected order line.
type OrderLineModel struct {
	BaseModel
	OrderID           uuid.UUID       `gorm:"type:uuid;not null;index"`
	UserID            uuid.UUID       `gorm:"type:uuid;not null;index"`
	Position          int             `gorm:"not null"`
	ItemID            uuid.UUID       `gorm:"type:uuid;not null;index"`
	ItemName          string          `gorm:"type:varchar(200);not null"`
	ItemSlug          string          `gorm:"type:varchar(220)"`
	SKU               string          `gorm:"column:sku;type:varchar(64)"`
	UnitPrice         decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Quantity          int             `gorm:"not null"`
	Size              string          `gorm:"type:varchar(50)"`
	Color             string          `gorm:"type:varchar(50)"`
	Image             string          `gorm:"type:varchar(500)"`
	TaxRate           decimal.Decimal `gorm:"type:decimal(5,4);not null"`
	TaxAmount         decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	DiscountRate      decimal.Decimal `gorm:"type:decimal(5,4);not null"`
	DiscountAmount    decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Subtotal          decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Total             decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	IsReturnable      bool            `gorm:"not null"`
	ReturnDeadline    *time.Time
	WarrantyExpires   *time.Time
	ReturnStatus      order.ReturnStatus `gorm:"type:varchar(20);not null;index"`
	ReturnReason      string             `gorm:"type:text"`
	RefundAmount      decimal.Decimal    `gorm:"type:decimal(12,2);not null"`
	ReturnRequestedAt *time.Time
	ReturnApprovedAt  *time.Time
	ReturnCompletedAt *time.Time
}

// TableName returns the table name for GORM
func (OrderLineModel) TableName() string {
	return "order_lines"
}

// ToDomain converts the persistence model to a domain order Line.
func (m *OrderLineModel) ToDomain() *order.Line {
	return &order.Line{
		BaseEntity:        shared.BaseEntity{ID: m.ID, CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		OrderID:           m.OrderID,
		UserID:            m.UserID,
		Position:          m.Position,
		ItemID:            m.ItemID,
		ItemName:          m.ItemName,
		ItemSlug:          m.ItemSlug,
		SKU:               m.SKU,
		UnitPrice:         m.UnitPrice,
		Quantity:          m.Quantity,
		Size:              m.Size,
		Color:             m.Color,
		Image:             m.Image,
		TaxRate:           m.TaxRate,
		TaxAmount:         m.TaxAmount,
		DiscountRate:      m.DiscountRate,
		DiscountAmount:    m.DiscountAmount,
		Subtotal:          m.Subtotal,
		Total:             m.Total,
		IsReturnable:      m.IsReturnable,
		ReturnDeadline:    m.ReturnDeadline,
		WarrantyExpires:   m.WarrantyExpires,
		ReturnStatus:      m.ReturnStatus,
		ReturnReason:      m.ReturnReason,
		RefundAmount:      m.RefundAmount,
		ReturnRequestedAt: m.ReturnRequestedAt,
		ReturnApprovedAt:  m.ReturnApprovedAt,
		ReturnCompletedAt: m.ReturnCompletedAt,
	}
}

// FromDomain populates the persistence model from a domain order Line.
func (m *OrderLineModel) FromDomain(l *order.Line) {
	m.FromDomainBaseEntity(l.BaseEntity)
	m.OrderID = l.OrderID
	m.UserID = l.UserID
	m.Position = l.Position
	m.ItemID = l.ItemID
	m.ItemName = l.ItemName
	m.ItemSlug = l.ItemSlug
	m.SKU = l.SKU
	m.UnitPrice = l.UnitPrice
	m.Quantity = l.Quantity
	m.Size = l.Size
	m.Color = l.Color
	m.Image = l.Image
	m.TaxRate = l.TaxRate
	m.TaxAmount = l.TaxAmount
	m.DiscountRate = l.DiscountRate
	m.DiscountAmount = l.DiscountAmount
	m.Subtotal = l.Subtotal
	m.Total = l.Total
	m.IsReturnable = l.IsReturnable
	m.ReturnDeadline = l.ReturnDeadline
	m.WarrantyExpires = l.WarrantyExpires
	m.ReturnStatus = l.ReturnStatus
	m.ReturnReason = l.ReturnReason
	m.RefundAmount = l.RefundAmount
	m.ReturnRequestedAt = l.ReturnRequestedAt
	m.ReturnApprovedAt = l.ReturnApprovedAt
	m.ReturnCompletedAt = l.ReturnCompletedAt
}

// OrderLineModelFromDomain creates a new persistence model from a domain order Line.
func OrderLineModelFromDomain(l *order.Line) *OrderLineModel {
	m := &OrderLineModel{}
	m.FromDomain(l)
	return m
}
