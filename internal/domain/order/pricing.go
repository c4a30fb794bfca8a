package order

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Pricing constants
var (
	TaxRate          = decimal.NewFromFloat(0.20)
	PromoRate        = decimal.NewFromFloat(0.10)
	ExpressShipping  = decimal.NewFromInt(15)
	StandardShipping = decimal.NewFromInt(5)
)

const moneyPlaces int32 = 2

// PromoCode is the single promotional code honoured at checkout
const PromoCode = "ROUNA10"

// ShippingCostFor is a flat lookup by method; unknown methods ship free
func ShippingCostFor(method ShippingMethod) decimal.Decimal {
	switch method {
	case ShippingExpress:
		return ExpressShipping
	case ShippingStandard:
		return StandardShipping
	}
	return decimal.Zero
}

// DiscountRateFor returns the promo rate when code matches PromoCode
func DiscountRateFor(code string) decimal.Decimal {
	if strings.TrimSpace(code) == PromoCode {
		return PromoRate
	}
	return decimal.Zero
}

// Totals holds the priced amounts of an order
type Totals struct {
	Subtotal     decimal.Decimal
	ShippingCost decimal.Decimal
	Tax          decimal.Decimal
	Discount     decimal.Decimal
	Total        decimal.Decimal
	DiscountCode string
}

// ComputeTotals prices a set of frozen lines. Tax and discount are rounded
// to cents first so that Total == Subtotal + ShippingCost + Tax - Discount
// holds exactly.
func ComputeTotals(items []Item, method ShippingMethod, discountCode string) Totals {
	subtotal := decimal.Zero
	for _, it := range items {
		subtotal = subtotal.Add(it.Total)
	}
	subtotal = subtotal.Round(moneyPlaces)

	shipping := ShippingCostFor(method)
	tax := subtotal.Mul(TaxRate).Round(moneyPlaces)

	rate := DiscountRateFor(discountCode)
	discount := subtotal.Mul(rate).Round(moneyPlaces)
	code := ""
	if discount.IsPositive() {
		code = strings.TrimSpace(discountCode)
	}

	return Totals{
		Subtotal:     subtotal,
		ShippingCost: shipping,
		Tax:          tax,
		Discount:     discount,
		Total:        subtotal.Add(shipping).Add(tax).Sub(discount),
		DiscountCode: code,
	}
}

// GenerateOrderNumber returns a human readable number such as
// ORD-1718000000000-042. It is not guaranteed unique; the order ID is the
// authoritative identifier.
func GenerateOrderNumber(now time.Time) string {
	return fmt.Sprintf("ORD-%d-%03d", now.UnixMilli(), rand.IntN(1000))
}
