package auth

import (
	"context"
	"time"

	"github.com/lm-legal/payments/internal/config"
)

// Claims is the identity carried by an LM session token
type Claims struct {
	UserID int64
	Email  string
	Role   string
}

// Provider validates the session tokens the LM account service issues
type Provider interface {
	ValidateToken(ctx context.Context, token string) (*Claims, error)
	// GenerateToken signs a token for userID. It serves local mode and tests.
	GenerateToken(claims Claims, ttl time.Duration) (string, error)
}

func NewProvider(cfg *config.Configuration) Provider {
	return NewJWTAuth(cfg)
}
