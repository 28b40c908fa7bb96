package oauth

import (
	"context"
	"crypto/rand"
	"encoding/base64"

	"github.com/dimitrije/teamjoin/internal/invite"
)

// Provider runs the authorization code flow with an OAuth identity provider
// and hands back a credential the identity service can sign in with.
type Provider interface {
	GetConsentURL(state string) string
	ExchangeCode(ctx context.Context, code string) (*invite.FederatedCredential, error)
	Name() string
}

func GenerateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}
