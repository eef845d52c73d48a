package testutil

import (
	"context"
	"sync"

	"github.com/lm-legal/payments/internal/logger"
	"github.com/lm-legal/payments/internal/postgres"
)

var _ postgres.IClient = (*MockPostgresClient)(nil)

type mockTxKey struct{}

type mockTx struct {
	undo []func()
}

// MockPostgresClient emulates transactions for the in-memory stores. Top level
// transactions run one at a time, like rows locked until commit, and a failed
// transaction replays the undo steps the stores registered.
type MockPostgresClient struct {
	mu     sync.Mutex
	logger *logger.Logger

	// FailNextTx makes the next top level transaction fail before fn runs
	FailNextTx error
}

// NewMockPostgresClient creates a new mock postgres client
func NewMockPostgresClient(logger *logger.Logger) *MockPostgresClient {
	return &MockPostgresClient{logger: logger}
}

func (c *MockPostgresClient) WithTx(ctx context.Context, fn func(context.Context) error) error {
	if _, ok := ctx.Value(mockTxKey{}).(*mockTx); ok {
		return fn(ctx)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.FailNextTx; err != nil {
		c.FailNextTx = nil
		return err
	}

	tx := &mockTx{}
	if err := fn(context.WithValue(ctx, mockTxKey{}, tx)); err != nil {
		for i := len(tx.undo) - 1; i >= 0; i-- {
			tx.undo[i]()
		}
		c.logger.Debugw("mock transaction rolled back", "error", err, "undone", len(tx.undo))
		return err
	}
	return nil
}

// OnRollback registers undo to run if the transaction in ctx fails. Outside a
// transaction writes are final and undo is dropped.
func OnRollback(ctx context.Context, undo func()) {
	if tx, ok := ctx.Value(mockTxKey{}).(*mockTx); ok {
		tx.undo = append(tx.undo, undo)
	}
}

// HealthCheck always succeeds
func (c *MockPostgresClient) HealthCheck(ctx context.Context) error {
	return nil
}
