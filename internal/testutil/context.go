package testutil

import (
	"context"

	"github.com/lm-legal/payments/internal/types"
)

// SetupContext returns a context authenticated as userID
func SetupContext(userID int64) context.Context {
	ctx := context.Background()
	ctx = types.SetUserID(ctx, userID)
	ctx = types.SetUserRole(ctx, types.RoleUser)
	ctx = types.SetRequestID(ctx, types.GenerateUUID())
	return ctx
}

// AdminContext returns a context authenticated as an administrator
func AdminContext(userID int64) context.Context {
	return types.SetUserRole(SetupContext(userID), types.RoleAdmin)
}
