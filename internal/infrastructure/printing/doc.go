// Package printing renders order receipts. An HTML ticket is built from an
// embedded template, converted to PDF by headless Chrome and optionally
// archived to object storage.
package printing
