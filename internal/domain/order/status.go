package order

// Status represents the fulfilment status of an order
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

// AllStatuses lists statuses in lifecycle order
var AllStatuses = []Status{StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled}

// IsValid checks if the status is a known Status
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// String returns the string representation of Status
func (s Status) String() string {
	return string(s)
}

// IsTerminal reports whether no further transition is allowed
func (s Status) IsTerminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// IsCancellable reports whether an order in this status may be cancelled
func (s Status) IsCancellable() bool {
	return s == StatusPending || s == StatusProcessing
}

// CanTransitionTo checks if the status can transition to the target status
func (s Status) CanTransitionTo(target Status) bool {
	switch s {
	case StatusPending:
		return target == StatusProcessing || target == StatusCancelled
	case StatusProcessing:
		return target == StatusShipped || target == StatusCancelled
	case StatusShipped:
		return target == StatusDelivered
	case StatusDelivered, StatusCancelled:
		return false
	}
	return false
}

// PaymentStatus is a recorded flag; no payment is processed here
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

// IsValid checks if the payment status is known
func (p PaymentStatus) IsValid() bool {
	switch p {
	case PaymentPending, PaymentPaid, PaymentFailed, PaymentRefunded:
		return true
	}
	return false
}

// PaymentMethod is how the buyer intends to pay
type PaymentMethod string

const (
	PaymentCreditCard     PaymentMethod = "credit_card"
	PaymentPayPal         PaymentMethod = "paypal"
	PaymentBankTransfer   PaymentMethod = "bank_transfer"
	PaymentCashOnDelivery PaymentMethod = "cash_on_delivery"
)

// IsValid checks if the payment method is accepted
func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentCreditCard, PaymentPayPal, PaymentBankTransfer, PaymentCashOnDelivery:
		return true
	}
	return false
}

// ShippingMethod selects the flat shipping fee
type ShippingMethod string

const (
	ShippingStandard ShippingMethod = "standard"
	ShippingExpress  ShippingMethod = "express"
	ShippingPickup   ShippingMethod = "pickup"
)

// IsValid checks if the shipping method is one the storefront offers
func (m ShippingMethod) IsValid() bool {
	switch m {
	case ShippingStandard, ShippingExpress, ShippingPickup:
		return true
	}
	return false
}
