package firebase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"firebase.google.com/go/v4/auth"
)

type adminAuth interface {
	GetUserByEmail(ctx context.Context, email string) (*auth.UserRecord, error)
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

// Principal is a verified ID token holder.
type Principal struct {
	UID       string
	Email     string
	Role      string
	ExpiresAt time.Time
}

// AccountDirectory answers account questions with the Admin SDK.
type AccountDirectory struct {
	auth adminAuth
}

func NewAccountDirectory(client adminAuth) *AccountDirectory {
	return &AccountDirectory{auth: client}
}

// EmailExists implements invite.AccountLookup.
func (d *AccountDirectory) EmailExists(ctx context.Context, email string) (bool, error) {
	_, err := d.auth.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if auth.IsUserNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to look up account: %w", err)
	}
	return true, nil
}

// VerifyIDToken checks a Firebase ID token and returns its principal. The
// role comes from the "role" custom claim when present.
func (d *AccountDirectory) VerifyIDToken(ctx context.Context, idToken string) (*Principal, error) {
	token, err := d.auth.VerifyIDToken(ctx, idToken)
	if err != nil {
		return nil, fmt.Errorf("failed to verify id token: %w", err)
	}

	p := &Principal{UID: token.UID}
	if token.Expires > 0 {
		p.ExpiresAt = time.Unix(token.Expires, 0)
	}
	if email, ok := token.Claims["email"].(string); ok {
		p.Email = email
	}
	if role, ok := token.Claims["role"].(string); ok {
		p.Role = role
	}
	return p, nil
}
