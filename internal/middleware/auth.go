package middleware

import (
	"context"
	"strings"

	"github.com/dimitrije/teamjoin/internal/firebase"
	"github.com/m1z23r/drift/pkg/drift"
)

const (
	UserIDKey    = "user_id"
	UserEmailKey = "user_email"
	UserRoleKey  = "user_role"
	IDTokenKey   = "id_token"
)

// TokenVerifier checks a Firebase ID token.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*firebase.Principal, error)
}

// Auth authenticates team owners with their Firebase ID token. The raw token
// is kept in the context so handlers can call functions on the owner's
// behalf.
func Auth(verifier TokenVerifier) drift.HandlerFunc {
	return func(c *drift.Context) {
		token, ok := bearerToken(c)
		if !ok {
			return
		}

		principal, err := verifier.VerifyIDToken(c.Request.Context(), token)
		if err != nil {
			c.Unauthorized("invalid or expired token")
			return
		}

		c.Set(UserIDKey, principal.UID)
		c.Set(UserEmailKey, principal.Email)
		c.Set(UserRoleKey, principal.Role)
		c.Set(IDTokenKey, token)

		c.Next()
	}
}

func bearerToken(c *drift.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		c.Unauthorized("missing authorization header")
		return "", false
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" || parts[1] == "" {
		c.Unauthorized("invalid authorization header format")
		return "", false
	}
	return parts[1], true
}

func GetUserID(c *drift.Context) string {
	return getString(c, UserIDKey)
}

func GetUserEmail(c *drift.Context) string {
	return getString(c, UserEmailKey)
}

func GetUserRole(c *drift.Context) string {
	return getString(c, UserRoleKey)
}

func GetIDToken(c *drift.Context) string {
	return getString(c, IDTokenKey)
}

func getString(c *drift.Context, key string) string {
	if v, ok := c.Get(key); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
