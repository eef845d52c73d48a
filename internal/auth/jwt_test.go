package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/lm-legal/payments/internal/config"
	ierr "github.com/lm-legal/payments/internal/errors"
	"github.com/lm-legal/payments/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testProvider(secret string) Provider {
	return NewProvider(&config.Configuration{Auth: config.AuthConfig{Secret: secret}})
}

func TestValidateToken(t *testing.T) {
	p := testProvider("test-secret")

	token, err := p.GenerateToken(Claims{UserID: 7, Email: "client@example.com", Role: types.RoleAdmin}, time.Hour)
	require.NoError(t, err)

	claims, err := p.ValidateToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, int64(7), claims.UserID)
	assert.Equal(t, "client@example.com", claims.Email)
	assert.Equal(t, types.RoleAdmin, claims.Role)
}

func TestValidateTokenRejects(t *testing.T) {
	p := testProvider("test-secret")

	expired, err := p.GenerateToken(Claims{UserID: 7}, -time.Minute)
	require.NoError(t, err)

	foreign, err := testProvider("other-secret").GenerateToken(Claims{UserID: 7}, time.Hour)
	require.NoError(t, err)

	noUser, err := p.GenerateToken(Claims{Role: types.RoleAdmin}, time.Hour)
	require.NoError(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"id": 7}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{name: "expired", token: expired},
		{name: "wrong secret", token: foreign},
		{name: "missing user", token: noUser},
		{name: "unsigned", token: none},
		{name: "garbage", token: "not-a-token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.ValidateToken(context.Background(), tt.token)
			require.Error(t, err)
			assert.True(t, ierr.IsUnauthenticated(err))
		})
	}
}

func TestUnknownRoleIsUser(t *testing.T) {
	p := testProvider("test-secret")

	token, err := p.GenerateToken(Claims{UserID: 3, Role: "superuser"}, time.Hour)
	require.NoError(t, err)

	claims, err := p.ValidateToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, types.RoleUser, claims.Role)
}

func TestStringUserID(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"id":  "12",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	claims, err := testProvider("test-secret").ValidateToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, int64(12), claims.UserID)
}
