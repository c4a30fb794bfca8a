package printing

import (
	"bytes"
	"embed"
	"html/template"
	"strings"
	"time"

	"github.com/rouna/storefront/internal/domain/order"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

const (
	receiptTemplateName = "receipt.html.tmpl"
	currencySuffix      = "DT"
	receiptDateLayout   = "02/01/2006 à 15:04"
)

var (
	statusLabels = map[order.Status]string{
		order.StatusPending:    "En attente",
		order.StatusProcessing: "En traitement",
		order.StatusShipped:    "Expédié",
		order.StatusDelivered:  "Livré",
		order.StatusCancelled:  "Annulé",
	}
	paymentLabels = map[order.PaymentMethod]string{
		order.PaymentCreditCard:     "Carte bancaire",
		order.PaymentPayPal:         "PayPal",
		order.PaymentBankTransfer:   "Virement bancaire",
		order.PaymentCashOnDelivery: "Paiement à la livraison",
	}
	shippingLabels = map[order.ShippingMethod]string{
		order.ShippingStandard: "Standard (5-7 jours)",
		order.ShippingExpress:  "Express (2-3 jours)",
		order.ShippingPickup:   "Retrait en magasin",
	}
)

// ReceiptTemplate renders the HTML order ticket
type ReceiptTemplate struct {
	tmpl     *template.Template
	printer  *message.Printer
	location *time.Location
}

// ReceiptTemplateOption configures ReceiptTemplate
type ReceiptTemplateOption func(*ReceiptTemplate)

// WithLocation sets the time zone dates are printed in
func WithLocation(loc *time.Location) ReceiptTemplateOption {
	return func(t *ReceiptTemplate) {
		if loc != nil {
			t.location = loc
		}
	}
}

// WithLanguage sets the locale used for amounts
func WithLanguage(tag language.Tag) ReceiptTemplateOption {
	return func(t *ReceiptTemplate) {
		t.printer = message.NewPrinter(tag)
	}
}

// NewReceiptTemplate parses the embedded receipt templates
func NewReceiptTemplate(opts ...ReceiptTemplateOption) (*ReceiptTemplate, error) {
	rt := &ReceiptTemplate{
		printer:  message.NewPrinter(language.French),
		location: time.UTC,
	}
	for _, opt := range opts {
		opt(rt)
	}

	tmpl, err := template.New(receiptTemplateName).Funcs(template.FuncMap{
		"money":    rt.formatMoney,
		"datetime": rt.formatDateTime,
		"status":   label(statusLabels),
		"payment":  label(paymentLabels),
		"shipping": label(shippingLabels),
		"variant":  variant,
	}).ParseFS(templateFS, "templates/*.tmpl")
	if err != nil {
		return nil, NewRenderError(ErrCodeTemplate, "parse receipt template", err)
	}
	rt.tmpl = tmpl
	return rt, nil
}

type receiptView struct {
	Order       *order.Order
	GeneratedAt time.Time
	ShowBilling bool
}

// RenderHTML executes the receipt template for o
func (t *ReceiptTemplate) RenderHTML(o *order.Order, generatedAt time.Time) ([]byte, error) {
	view := receiptView{
		Order:       o,
		GeneratedAt: generatedAt,
		ShowBilling: !o.BillingAddress.IsEmpty() && o.BillingAddress != o.ShippingAddress,
	}
	var buf bytes.Buffer
	if err := t.tmpl.ExecuteTemplate(&buf, receiptTemplateName, view); err != nil {
		return nil, NewRenderError(ErrCodeTemplate, "execute receipt template", err)
	}
	return buf.Bytes(), nil
}

func (t *ReceiptTemplate) formatMoney(d decimal.Decimal) string {
	amount := d.Round(2).InexactFloat64()
	return t.printer.Sprintf("%v %s", number.Decimal(amount, number.Scale(2)), currencySuffix)
}

func (t *ReceiptTemplate) formatDateTime(ts time.Time) string {
	return ts.In(t.location).Format(receiptDateLayout)
}

func label[K ~string](labels map[K]string) func(K) string {
	return func(k K) string {
		if l, ok := labels[k]; ok {
			return l
		}
		return string(k)
	}
}

func variant(it order.Item) string {
	parts := make([]string, 0, 2)
	for _, p := range []string{it.Size, it.Color} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " / ")
}
