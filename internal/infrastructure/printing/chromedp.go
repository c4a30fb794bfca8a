package printing

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

const (
	defaultChromeTimeout = 30 * time.Second
	a4WidthMM            = 210.0
	a4HeightMM           = 297.0
	defaultMarginMM      = 12.0
)

// ChromedpConfig contains configuration for the chromedp converter
type ChromedpConfig struct {
	Timeout time.Duration
	// RemoteURL points at a running Chrome DevTools endpoint. When empty a
	// local headless browser is launched.
	RemoteURL string
	// NoSandbox is required when Chrome runs as root inside containers
	NoSandbox     bool
	PaperWidthMM  float64
	PaperHeightMM float64
	MarginMM      float64
	Logger        *zap.Logger
}

// ChromedpRenderer prints HTML to PDF through the Chrome DevTools Protocol
type ChromedpRenderer struct {
	config      ChromedpConfig
	logger      *zap.Logger
	allocCtx    context.Context
	allocCancel context.CancelFunc
}

// NewChromedpRenderer creates the converter and its browser allocator. The
// browser itself starts lazily on the first conversion.
func NewChromedpRenderer(cfg ChromedpConfig) *ChromedpRenderer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultChromeTimeout
	}
	if cfg.PaperWidthMM <= 0 || cfg.PaperHeightMM <= 0 {
		cfg.PaperWidthMM, cfg.PaperHeightMM = a4WidthMM, a4HeightMM
	}
	if cfg.MarginMM < 0 {
		cfg.MarginMM = 0
	} else if cfg.MarginMM == 0 {
		cfg.MarginMM = defaultMarginMM
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := &ChromedpRenderer{config: cfg, logger: logger}
	if cfg.RemoteURL != "" {
		r.allocCtx, r.allocCancel = chromedp.NewRemoteAllocator(context.Background(), cfg.RemoteURL)
		return r
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("font-render-hinting", "none"),
	)
	if cfg.NoSandbox {
		opts = append(opts, chromedp.NoSandbox)
	}
	r.allocCtx, r.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	return r
}

// ConvertHTML renders html into a PDF
func (r *ChromedpRenderer) ConvertHTML(ctx context.Context, html string) ([]byte, error) {
	if strings.TrimSpace(html) == "" {
		return nil, NewRenderError(ErrCodeInvalidHTML, "HTML content is empty", nil)
	}
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	// the browser tab follows the allocator, cancellation follows ctx
	tabCtx, tabCancel := chromedp.NewContext(r.allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			r.logger.Debug(fmt.Sprintf(format, args...))
		}),
	)
	defer tabCancel()
	stop := context.AfterFunc(ctx, tabCancel)
	defer stop()

	params := r.printParams()
	document := completeHTML(html)
	var pdf []byte
	err := chromedp.Run(tabCtx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(tree.Frame.ID, document).Do(ctx)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			data, _, err := params.Do(ctx)
			pdf = data
			return err
		}),
	)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, NewRenderError(ErrCodeRenderTimeout,
				fmt.Sprintf("PDF rendering timed out after %v", r.config.Timeout), err)
		}
		return nil, NewRenderError(ErrCodeRenderFailed, "chromedp execution failed", err)
	}
	if len(pdf) == 0 {
		return nil, NewRenderError(ErrCodeRenderFailed, "generated PDF is empty", nil)
	}

	r.logger.Debug("PDF rendered",
		zap.Int("bytes", len(pdf)),
		zap.Duration("duration", time.Since(start)))
	return pdf, nil
}

func (r *ChromedpRenderer) printParams() *page.PrintToPDFParams {
	margin := mmToInches(r.config.MarginMM)
	return page.PrintToPDF().
		WithPrintBackground(true).
		WithPaperWidth(mmToInches(r.config.PaperWidthMM)).
		WithPaperHeight(mmToInches(r.config.PaperHeightMM)).
		WithMarginTop(margin).
		WithMarginRight(margin).
		WithMarginBottom(margin).
		WithMarginLeft(margin).
		WithPreferCSSPageSize(false)
}

// completeHTML wraps a fragment into a full document
func completeHTML(html string) string {
	lower := strings.ToLower(html)
	if strings.Contains(lower, "<!doctype") || strings.Contains(lower, "<html") {
		return html
	}
	var buf bytes.Buffer
	buf.WriteString(`<!DOCTYPE html><html><head><meta charset="UTF-8"></head><body>`)
	buf.WriteString(html)
	buf.WriteString("</body></html>")
	return buf.String()
}

// Close shuts the browser allocator down
func (r *ChromedpRenderer) Close() error {
	if r.allocCancel != nil {
		r.allocCancel()
	}
	return nil
}

func mmToInches(mm float64) float64 {
	return mm / 25.4
}

var _ PDFConverter = (*ChromedpRenderer)(nil)
