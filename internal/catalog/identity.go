package catalog

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"classd/pkg/interfaces"
	"classd/pkg/types"
)

// TokenResolver turns HMAC-signed bearer tokens into identities. Claims:
// sub carries the user id, role carries teacher or student.
type TokenResolver struct {
	secret []byte
}

// NewTokenResolver creates a resolver for the given signing secret.
func NewTokenResolver(secret string) *TokenResolver {
	return &TokenResolver{secret: []byte(secret)}
}

// Resolve validates the token and extracts the identity.
func (r *TokenResolver) Resolve(_ context.Context, token string) (*interfaces.Identity, error) {
	if token == "" {
		return nil, interfaces.ErrInvalidToken
	}

	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, interfaces.ErrInvalidToken
		}
		return r.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !parsed.Valid {
		return nil, interfaces.ErrInvalidToken
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, interfaces.ErrInvalidToken
	}
	userID, _ := claims["sub"].(string)
	roleStr, _ := claims["role"].(string)
	role := types.Role(roleStr)

	if !types.IsValidUserID(userID) || !types.IsValidRole(role) {
		return nil, interfaces.ErrInvalidToken
	}
	return &interfaces.Identity{UserID: userID, Role: role}, nil
}

// Issue mints a token for the given identity. Used by tooling and tests;
// production credentials come from the external identity provider.
func (r *TokenResolver) Issue(userID string, role types.Role, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  userID,
		"role": string(role),
		"iat":  now.Unix(),
		"exp":  now.Add(ttl).Unix(),
	})
	return token.SignedString(r.secret)
}
