// Package document renders invoice documents.
package document

import (
	"bytes"
	"context"
	"embed"
	"html/template"

	"github.com/lm-legal/payments/internal/domain/document"
	ierr "github.com/lm-legal/payments/internal/errors"
	"github.com/shopspring/decimal"
)

//go:embed templates/*.html
var templates embed.FS

const invoiceTemplate = "invoice.html"

// Generator defines the interface for invoice document generation
type Generator interface {
	RenderInvoice(ctx context.Context, data *document.InvoiceData) ([]byte, error)
}

type service struct {
	tmpl *template.Template
}

// NewGenerator parses the embedded templates
func NewGenerator() (Generator, error) {
	tmpl, err := template.New(invoiceTemplate).
		Funcs(template.FuncMap{
			"money": func(d decimal.Decimal) string { return d.StringFixed(2) },
		}).
		ParseFS(templates, "templates/"+invoiceTemplate)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("failed to parse invoice template").
			Mark(ierr.ErrSystem)
	}
	return &service{tmpl: tmpl}, nil
}

// RenderInvoice implements Generator.RenderInvoice
func (s *service) RenderInvoice(ctx context.Context, data *document.InvoiceData) ([]byte, error) {
	if data == nil || data.InvoiceNumber == "" {
		return nil, ierr.NewError("invoice data is incomplete").
			WithHint("Invoice number is required").
			Mark(ierr.ErrValidation)
	}

	var buf bytes.Buffer
	if err := s.tmpl.ExecuteTemplate(&buf, invoiceTemplate, data); err != nil {
		return nil, ierr.WithError(err).
			WithHint("failed to render invoice template").
			Mark(ierr.ErrSystem)
	}
	return buf.Bytes(), nil
}
