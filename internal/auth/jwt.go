package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/lm-legal/payments/internal/config"
	ierr "github.com/lm-legal/payments/internal/errors"
	"github.com/lm-legal/payments/internal/types"
)

// token claim names shared with the account service
const (
	claimUserID = "id"
	claimEmail  = "email"
	claimRole   = "role"
)

type jwtAuth struct {
	AuthConfig config.AuthConfig
}

func NewJWTAuth(cfg *config.Configuration) *jwtAuth {
	return &jwtAuth{
		AuthConfig: cfg.Auth,
	}
}

func (a *jwtAuth) ValidateToken(ctx context.Context, token string) (*Claims, error) {
	parsedToken, err := jwt.Parse(token, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ierr.NewError("unexpected signing method").
				WithHint(fmt.Sprintf("unexpected signing method: %v", token.Header["alg"])).
				Mark(ierr.ErrUnauthenticated)
		}
		return []byte(a.AuthConfig.Secret), nil
	})
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Invalid or expired token").
			Mark(ierr.ErrUnauthenticated)
	}

	claims, ok := parsedToken.Claims.(jwt.MapClaims)
	if !ok || !parsedToken.Valid {
		return nil, ierr.NewError("invalid token claims").
			WithHint("Invalid token claims").
			Mark(ierr.ErrUnauthenticated)
	}

	userID, err := userIDClaim(claims[claimUserID])
	if err != nil {
		return nil, err
	}

	email, _ := claims[claimEmail].(string)
	role, _ := claims[claimRole].(string)
	if role != types.RoleAdmin {
		role = types.RoleUser
	}

	return &Claims{
		UserID: userID,
		Email:  email,
		Role:   role,
	}, nil
}

func (a *jwtAuth) GenerateToken(claims Claims, ttl time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		claimUserID: claims.UserID,
		claimEmail:  claims.Email,
		claimRole:   claims.Role,
		"exp":       time.Now().Add(ttl).Unix(),
	})

	signed, err := token.SignedString([]byte(a.AuthConfig.Secret))
	if err != nil {
		return "", ierr.WithError(err).
			WithHint("Failed to generate token").
			Mark(ierr.ErrSystem)
	}
	return signed, nil
}

// userIDClaim accepts the numeric id JSON decoding yields and its string form
func userIDClaim(v any) (int64, error) {
	var id int64
	switch val := v.(type) {
	case float64:
		id = int64(val)
	case string:
		id, _ = types.ParseID(val)
	}

	if id <= 0 {
		return 0, ierr.NewError("token has no user id").
			WithHint("Invalid token claims").
			Mark(ierr.ErrUnauthenticated)
	}
	return id, nil
}
