package order

import (
	"context"
	"fmt"
)

// Receipt is a rendered order ticket
type Receipt struct {
	Filename    string
	ContentType string
	Data        []byte
	// URL is set when the receipt was archived and a download link exists
	URL string
}

// ReceiptFilename returns the download name of an order's receipt
func ReceiptFilename(o *Order) string {
	return fmt.Sprintf("receipt-%s.pdf", o.OrderNumber)
}

// ReceiptRenderer turns a finalized order into a document. Checkout calls
// it after commit; its failures never affect the order.
type ReceiptRenderer interface {
	Render(ctx context.Context, o *Order) (*Receipt, error)
}
