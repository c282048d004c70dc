package rest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)

// User is the authenticated caller extracted from a JWT.
type User struct {
	ID        string
	Email     string
	Roles     []string
	Claims    jwt.MapClaims
	ExpiresAt time.Time
}

// HasRole reports whether the user carries the role.
func (u *User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// AuthConfig holds JWT validation settings. Only HMAC signing is
// supported; endpoint auth here protects declared rest functions, not
// a full identity provider integration.
type AuthConfig struct {
	Secret     string
	Issuer     string
	Audience   string
	RolesClaim string // default "roles"
}

// Validator validates bearer tokens.
type Validator struct {
	config AuthConfig
}

// NewValidator builds a validator. A validator with an empty secret
// rejects every token.
func NewValidator(config AuthConfig) *Validator {
	if config.RolesClaim == "" {
		config.RolesClaim = "roles"
	}
	return &Validator{config: config}
}

// ValidateToken parses and verifies one token string.
func (v *Validator) ValidateToken(tokenStr string) (*User, error) {
	if tokenStr == "" {
		return nil, ErrMissingToken
	}
	if v.config.Secret == "" {
		return nil, ErrInvalidToken
	}

	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unsupported signing method %s", t.Method.Alg())
		}
		return []byte(v.config.Secret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if v.config.Issuer != "" {
		iss, _ := claims.GetIssuer()
		if iss != v.config.Issuer {
			return nil, ErrInvalidToken
		}
	}
	if v.config.Audience != "" {
		aud, _ := claims.GetAudience()
		if !containsAudience(aud, v.config.Audience) {
			return nil, ErrInvalidToken
		}
	}

	user := &User{
		ID:     stringClaim(claims, "sub"),
		Email:  stringClaim(claims, "email"),
		Roles:  stringListClaim(claims, v.config.RolesClaim),
		Claims: claims,
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		user.ExpiresAt = exp.Time
	}
	return user, nil
}

type userKey struct{}

// UserFrom returns the authenticated user, if any.
func UserFrom(ctx context.Context) (*User, bool) {
	u, ok := ctx.Value(userKey{}).(*User)
	return u, ok
}

func withUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userKey{}, u)
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if after, ok := strings.CutPrefix(header, "Bearer "); ok {
		return after
	}
	return ""
}

func containsAudience(aud jwt.ClaimStrings, expected string) bool {
	for _, a := range aud {
		if a == expected {
			return true
		}
	}
	return false
}

func stringClaim(claims jwt.MapClaims, key string) string {
	if v, ok := claims[key].(string); ok {
		return v
	}
	return ""
}

// stringListClaim reads a roles-style claim in list or space-separated
// string form.
func stringListClaim(claims jwt.MapClaims, key string) []string {
	switch v := claims[key].(type) {
	case []any:
		var out []string
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return v
	case string:
		return strings.Fields(v)
	}
	return nil
}
