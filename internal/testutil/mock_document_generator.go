package testutil

import (
	"context"

	"github.com/lm-legal/payments/internal/document"
	domain "github.com/lm-legal/payments/internal/domain/document"
	"github.com/stretchr/testify/mock"
)

var _ document.Generator = (*MockDocumentGenerator)(nil)

// MockDocumentGenerator lets tests fail or inspect rendering
type MockDocumentGenerator struct {
	mock.Mock
}

// RenderInvoice implements document.Generator.
func (m *MockDocumentGenerator) RenderInvoice(ctx context.Context, data *domain.InvoiceData) ([]byte, error) {
	args := m.Called(ctx, data)
	out, _ := args.Get(0).([]byte)
	return out, args.Error(1)
}
