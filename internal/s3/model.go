package s3

import "path"

// Document is an object of the artifact store
type Document struct {
	// Key is relative to the configured prefix, e.g. invoices/LM-2025-00001.html
	Key         string
	Data        []byte
	ContentType string
}

const (
	ContentTypeHTML = "text/html; charset=utf-8"

	invoiceFolder = "invoices"
)

// InvoiceKey returns the key of a rendered invoice. file is the name produced
// by invoice.ArtifactKeyFor.
func InvoiceKey(file string) string {
	return path.Join(invoiceFolder, file)
}

func NewHTMLDocument(key string, data []byte) *Document {
	return &Document{
		Key:         key,
		Data:        data,
		ContentType: ContentTypeHTML,
	}
}
