package oauth

import (
	"context"
	"fmt"

	"github.com/dimitrije/teamjoin/internal/config"
	"github.com/dimitrije/teamjoin/internal/invite"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// GoogleProviderID is the Firebase provider id for Google sign-in.
const GoogleProviderID = "google.com"

type GoogleProvider struct {
	config *oauth2.Config
}

func NewGoogleProvider(cfg config.OAuthConfig) *GoogleProvider {
	return &GoogleProvider{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		},
	}
}

func (p *GoogleProvider) Name() string {
	return "google"
}

func (p *GoogleProvider) GetConsentURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.SetAuthURLParam("prompt", "select_account"))
}

// ExchangeCode trades code for tokens. Google returns an OpenID id_token
// alongside the access token; both are passed on.
func (p *GoogleProvider) ExchangeCode(ctx context.Context, code string) (*invite.FederatedCredential, error) {
	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code: %w", err)
	}

	idToken, _ := token.Extra("id_token").(string)
	if idToken == "" && token.AccessToken == "" {
		return nil, fmt.Errorf("google returned no usable token")
	}

	return &invite.FederatedCredential{
		ProviderID:  GoogleProviderID,
		IDToken:     idToken,
		AccessToken: token.AccessToken,
		RequestURI:  p.config.RedirectURL,
	}, nil
}
