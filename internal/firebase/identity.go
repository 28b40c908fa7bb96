package firebase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dimitrije/teamjoin/internal/invite"
	"github.com/dimitrije/teamjoin/internal/models"
)

// IdentityClient signs users in through the Identity Toolkit REST API. The
// Admin SDK has no end-user sign-in, so this is the only way to obtain ID
// tokens server side.
type IdentityClient struct {
	apiKey         string
	identityURL    string
	secureTokenURL string
	http           *http.Client
	now            func() time.Time
}

func NewIdentityClient(cfg IdentityConfig) *IdentityClient {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &IdentityClient{
		apiKey:         cfg.APIKey,
		identityURL:    strings.TrimRight(cfg.IdentityURL, "/"),
		secureTokenURL: strings.TrimRight(cfg.SecureTokenURL, "/"),
		http:           client,
		now:            time.Now,
	}
}

type IdentityConfig struct {
	APIKey         string
	IdentityURL    string
	SecureTokenURL string
	Timeout        time.Duration
	HTTPClient     *http.Client
}

type authResponse struct {
	LocalID      string `json:"localId"`
	Email        string `json:"email"`
	DisplayName  string `json:"displayName"`
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    string `json:"expiresIn"`
	ProviderID   string `json:"providerId"`
}

type refreshResponse struct {
	IDToken      string `json:"id_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    string `json:"expires_in"`
	UserID       string `json:"user_id"`
}

type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *IdentityClient) CreateCredential(ctx context.Context, email, password string) (*models.Session, error) {
	var resp authResponse
	err := c.post(ctx, c.identityURL+"/accounts:signUp", map[string]any{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return c.session(resp, "password"), nil
}

func (c *IdentityClient) SignInCredential(ctx context.Context, email, password string) (*models.Session, error) {
	var resp authResponse
	err := c.post(ctx, c.identityURL+"/accounts:signInWithPassword", map[string]any{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return c.session(resp, "password"), nil
}

func (c *IdentityClient) SignInFederated(ctx context.Context, cred invite.FederatedCredential) (*models.Session, error) {
	post := url.Values{"providerId": {cred.ProviderID}}
	if cred.IDToken != "" {
		post.Set("id_token", cred.IDToken)
	}
	if cred.AccessToken != "" {
		post.Set("access_token", cred.AccessToken)
	}
	requestURI := cred.RequestURI
	if requestURI == "" {
		requestURI = "http://localhost"
	}

	var resp authResponse
	err := c.post(ctx, c.identityURL+"/accounts:signInWithIdp", map[string]any{
		"postBody":          post.Encode(),
		"requestUri":        requestURI,
		"returnSecureToken": true,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return c.session(resp, cred.ProviderID), nil
}

// RefreshSession exchanges the refresh token for a fresh ID token. A session
// without a refresh token is returned as is while its ID token is valid.
func (c *IdentityClient) RefreshSession(ctx context.Context, session *models.Session) (*models.Session, error) {
	if session == nil {
		return nil, invite.ErrSessionRevoked
	}
	if session.RefreshToken == "" {
		if session.IDToken != "" && !session.Expired(c.now()) {
			return session, nil
		}
		return nil, invite.ErrSessionRevoked
	}

	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {session.RefreshToken},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.secureTokenURL+"/token?key="+url.QueryEscape(c.apiKey), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var resp refreshResponse
	if err := c.do(req, &resp); err != nil {
		return nil, err
	}

	fresh := *session
	fresh.IDToken = resp.IDToken
	fresh.RefreshToken = resp.RefreshToken
	fresh.ExpiresAt = c.expiry(resp.ExpiresIn)
	if resp.UserID != "" {
		fresh.UID = resp.UserID
	}
	return &fresh, nil
}

func (c *IdentityClient) SetDisplayName(ctx context.Context, session *models.Session, name string) error {
	return c.post(ctx, c.identityURL+"/accounts:update", map[string]any{
		"idToken":           session.IDToken,
		"displayName":       name,
		"returnSecureToken": false,
	}, nil)
}

func (c *IdentityClient) session(resp authResponse, provider string) *models.Session {
	if resp.ProviderID != "" {
		provider = resp.ProviderID
	}
	return &models.Session{
		UID:          resp.LocalID,
		Email:        strings.ToLower(resp.Email),
		DisplayName:  resp.DisplayName,
		ProviderID:   provider,
		IDToken:      resp.IDToken,
		RefreshToken: resp.RefreshToken,
		ExpiresAt:    c.expiry(resp.ExpiresIn),
	}
}

func (c *IdentityClient) expiry(expiresIn string) time.Time {
	secs, err := strconv.Atoi(expiresIn)
	if err != nil || secs <= 0 {
		secs = 3600
	}
	return c.now().Add(time.Duration(secs) * time.Second)
}

func (c *IdentityClient) post(ctx context.Context, endpoint string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint+"?key="+url.QueryEscape(c.apiKey), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *IdentityClient) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return invite.Unavailable(err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return invite.Unavailable(err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr apiError
		if jsonErr := json.Unmarshal(body, &apiErr); jsonErr != nil || apiErr.Error.Message == "" {
			if resp.StatusCode >= 500 {
				return invite.Unavailable(fmt.Errorf("identity api returned status %d", resp.StatusCode))
			}
			return fmt.Errorf("identity api returned status %d", resp.StatusCode)
		}
		return mapIdentityError(apiErr.Error.Message)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// mapIdentityError turns an Identity Toolkit error code such as
// "WEAK_PASSWORD : Password should be at least 6 characters" into the
// provider errors the resolver understands.
func mapIdentityError(message string) error {
	code, _, _ := strings.Cut(message, " ")
	code = strings.TrimSpace(code)

	var sentinel error
	switch code {
	case "EMAIL_EXISTS":
		sentinel = invite.ErrEmailExists
	case "EMAIL_NOT_FOUND", "USER_NOT_FOUND":
		sentinel = invite.ErrAccountNotFound
	case "INVALID_PASSWORD":
		sentinel = invite.ErrWrongPassword
	case "INVALID_LOGIN_CREDENTIALS":
		sentinel = invite.ErrInvalidCredentials
	case "WEAK_PASSWORD":
		sentinel = invite.ErrWeakPassword
	case "TOKEN_EXPIRED", "INVALID_ID_TOKEN", "INVALID_REFRESH_TOKEN", "USER_DISABLED", "CREDENTIAL_TOO_OLD_LOGIN_AGAIN", "INVALID_IDP_RESPONSE":
		sentinel = invite.ErrSessionRevoked
	case "TOO_MANY_ATTEMPTS_TRY_LATER", "QUOTA_EXCEEDED":
		return invite.Unavailable(errors.New(message))
	default:
		return fmt.Errorf("identity api error: %s", message)
	}
	return fmt.Errorf("%w: %s", sentinel, message)
}
