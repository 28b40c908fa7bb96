package oauth

import (
	"context"
	"fmt"

	"github.com/dimitrije/teamjoin/internal/config"
	"github.com/dimitrije/teamjoin/internal/invite"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

// GitHubProviderID is the Firebase provider id for GitHub sign-in.
const GitHubProviderID = "github.com"

type GitHubProvider struct {
	config *oauth2.Config
}

func NewGitHubProvider(cfg config.OAuthConfig) *GitHubProvider {
	return &GitHubProvider{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{"user:email", "read:user"},
			Endpoint:     github.Endpoint,
		},
	}
}

func (p *GitHubProvider) Name() string {
	return "github"
}

func (p *GitHubProvider) GetConsentURL(state string) string {
	return p.config.AuthCodeURL(state)
}

// ExchangeCode trades code for an access token. GitHub has no id_token;
// the identity service resolves the email from the access token.
func (p *GitHubProvider) ExchangeCode(ctx context.Context, code string) (*invite.FederatedCredential, error) {
	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code: %w", err)
	}
	if token.AccessToken == "" {
		return nil, fmt.Errorf("github returned no access token")
	}

	return &invite.FederatedCredential{
		ProviderID:  GitHubProviderID,
		AccessToken: token.AccessToken,
		RequestURI:  p.config.RedirectURL,
	}, nil
}
