package printing

import (
	"context"
	"fmt"
	"time"

	"github.com/rouna/storefront/internal/domain/order"
	"github.com/rouna/storefront/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

const (
	receiptContentType = "application/pdf"
	archivePrefix      = "receipts/"
)

// ReceiptArchive stores rendered receipts and hands out download links
type ReceiptArchive interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) error
	GenerateDownloadURL(ctx context.Context, key string, expiresIn time.Duration) (string, time.Time, error)
}

// ArchiveKey is the object key a receipt is archived under
func ArchiveKey(o *order.Order) string {
	return archivePrefix + o.OrderNumber + ".pdf"
}

// ReceiptRenderer implements order.ReceiptRenderer with an HTML template
// and a PDF converter
type ReceiptRenderer struct {
	template  *ReceiptTemplate
	converter PDFConverter
	archive   ReceiptArchive
	logger    *zap.Logger
	now       func() time.Time
}

// ReceiptRendererOption configures ReceiptRenderer
type ReceiptRendererOption func(*ReceiptRenderer)

// WithArchive uploads every rendered receipt to archive
func WithArchive(archive ReceiptArchive) ReceiptRendererOption {
	return func(r *ReceiptRenderer) {
		r.archive = archive
	}
}

// WithRendererLogger sets the logger
func WithRendererLogger(logger *zap.Logger) ReceiptRendererOption {
	return func(r *ReceiptRenderer) {
		r.logger = logger
	}
}

// WithClock overrides the generation timestamp source
func WithClock(now func() time.Time) ReceiptRendererOption {
	return func(r *ReceiptRenderer) {
		r.now = now
	}
}

// NewReceiptRenderer creates a receipt renderer
func NewReceiptRenderer(tmpl *ReceiptTemplate, converter PDFConverter, opts ...ReceiptRendererOption) *ReceiptRenderer {
	r := &ReceiptRenderer{
		template:  tmpl,
		converter: converter,
		logger:    zap.NewNop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Render builds the PDF receipt for o. Archiving is best effort: an upload
// failure is logged and the receipt is returned without a URL.
func (r *ReceiptRenderer) Render(ctx context.Context, o *order.Order) (*order.Receipt, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "ReceiptRenderer", "Render",
		telemetry.SpanAttrOrderID, o.ID.String(),
		telemetry.SpanAttrOrderNumber, o.OrderNumber,
	)
	defer span.End()

	html, err := r.template.RenderHTML(o, r.now())
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	pdf, err := r.converter.ConvertHTML(ctx, string(html))
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("render receipt %s: %w", o.OrderNumber, err)
	}

	receipt := &order.Receipt{
		Filename:    order.ReceiptFilename(o),
		ContentType: receiptContentType,
		Data:        pdf,
	}
	if r.archive != nil {
		receipt.URL = r.store(ctx, o, pdf)
	}
	return receipt, nil
}

func (r *ReceiptRenderer) store(ctx context.Context, o *order.Order, pdf []byte) string {
	key := ArchiveKey(o)
	log := r.logger.With(zap.String("order_number", o.OrderNumber), zap.String("key", key))

	if err := r.archive.Upload(ctx, key, pdf, receiptContentType); err != nil {
		log.Warn("receipt archive upload failed", zap.Error(err))
		return ""
	}
	url, _, err := r.archive.GenerateDownloadURL(ctx, key, 0)
	if err != nil {
		log.Warn("receipt download link failed", zap.Error(err))
		return ""
	}
	log.Debug("receipt archived")
	return url
}

var _ order.ReceiptRenderer = (*ReceiptRenderer)(nil)
