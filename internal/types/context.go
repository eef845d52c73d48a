package types

import (
	"context"
	"strconv"
)

// ContextKey is a type for the keys of values stored in the context
type ContextKey string

const (
	CtxRequestID     ContextKey = "ctx_request_id"
	CtxUserID        ContextKey = "ctx_user_id"
	CtxUserRole      ContextKey = "ctx_user_role"
	CtxJWT           ContextKey = "ctx_jwt"
	CtxDBTransaction ContextKey = "ctx_db_transaction"

	HeaderAuthorization = "Authorization"
	HeaderRequestID     = "X-Request-ID"

	RoleAdmin = "admin"
	RoleUser  = "user"
)

// GetUserID returns the authenticated user id or 0 when the context is anonymous
func GetUserID(ctx context.Context) int64 {
	if userID, ok := ctx.Value(CtxUserID).(int64); ok {
		return userID
	}
	return 0
}

func GetUserRole(ctx context.Context) string {
	if role, ok := ctx.Value(CtxUserRole).(string); ok {
		return role
	}
	return ""
}

func IsAdmin(ctx context.Context) bool {
	return GetUserRole(ctx) == RoleAdmin
}

func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(CtxRequestID).(string); ok {
		return requestID
	}
	return ""
}

func GetJWT(ctx context.Context) string {
	if jwt, ok := ctx.Value(CtxJWT).(string); ok {
		return jwt
	}
	return ""
}

// SetUserID sets the user ID in the context
func SetUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, CtxUserID, userID)
}

// SetUserRole sets the RBAC role in the context
func SetUserRole(ctx context.Context, role string) context.Context {
	return context.WithValue(ctx, CtxUserRole, role)
}

func SetRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, CtxRequestID, requestID)
}

// ParseID parses a path or claim identifier into the numeric ids used by the ledger
func ParseID(raw string) (int64, bool) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
