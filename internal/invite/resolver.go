package invite

import (
	"context"
	"errors"

	"github.com/dimitrije/teamjoin/internal/models"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("component", "invite")

// Mode is the credential path taken by the person joining.
type Mode string

const (
	ModeAlreadyAuthenticated Mode = "already_authenticated"
	ModeNewAccount           Mode = "new_account"
	ModeExistingAccount      Mode = "existing_account"
	ModeFederated            Mode = "federated"
)

func ParseMode(s string) (Mode, bool) {
	switch m := Mode(s); m {
	case ModeAlreadyAuthenticated, ModeNewAccount, ModeExistingAccount, ModeFederated:
		return m, true
	}
	return "", false
}

// FederatedCredential is the OAuth result handed to the identity provider.
type FederatedCredential struct {
	ProviderID  string
	IDToken     string
	AccessToken string
	RequestURI  string
}

// IdentityProvider is the external authentication service.
type IdentityProvider interface {
	CreateCredential(ctx context.Context, email, password string) (*models.Session, error)
	SignInCredential(ctx context.Context, email, password string) (*models.Session, error)
	SignInFederated(ctx context.Context, cred FederatedCredential) (*models.Session, error)
	RefreshSession(ctx context.Context, session *models.Session) (*models.Session, error)
	SetDisplayName(ctx context.Context, session *models.Session, name string) error
}

// AccountLookup answers whether an account exists for an email. It is used
// when the provider hides account existence behind a generic error.
type AccountLookup interface {
	EmailExists(ctx context.Context, email string) (bool, error)
}

// Resolution is the outcome of one resolver step. Switched is set when a
// credential conflict moved the caller to the other password mode. Phone is
// the contact number collected with the credentials, if any.
type Resolution struct {
	Mode     Mode
	Session  *models.Session
	Switched bool
	Phone    string
}

func (r Resolution) Resolved() bool {
	return r.Session != nil && r.Session.UID != ""
}

type Resolver struct {
	provider IdentityProvider
	lookup   AccountLookup
}

// NewResolver returns a Resolver. lookup may be nil.
func NewResolver(provider IdentityProvider, lookup AccountLookup) *Resolver {
	return &Resolver{provider: provider, lookup: lookup}
}

// Resolve picks the initial mode from the current session.
func (r *Resolver) Resolve(session *models.Session, inv *models.InviteRecord) (Resolution, error) {
	if session == nil || session.UID == "" {
		return Resolution{Mode: ModeNewAccount}, nil
	}
	res := Resolution{Mode: ModeAlreadyAuthenticated, Session: session}
	if inv != nil && !inv.AllowsEmail(session.Email) {
		return Resolution{Mode: ModeAlreadyAuthenticated}, newError(KindEmailMismatch, "", nil)
	}
	return res, nil
}

// Submit performs exactly one provider call for mode. On a credential
// conflict it returns the corrected mode with Switched set and never retries.
func (r *Resolver) Submit(ctx context.Context, inv *models.InviteRecord, mode Mode, creds Credentials) (Resolution, error) {
	if mode != ModeNewAccount && mode != ModeExistingAccount {
		return Resolution{Mode: mode}, ErrInvalidTransition
	}
	if err := creds.Validate(mode); err != nil {
		return Resolution{Mode: mode}, err
	}
	if inv != nil && !inv.AllowsEmail(creds.Email) {
		return Resolution{Mode: mode}, newError(KindEmailMismatch, "", nil)
	}

	ctx, span := tracer.Start(ctx, "invite.Submit")
	defer span.End()

	if mode == ModeNewAccount {
		session, err := r.provider.CreateCredential(ctx, creds.Email, creds.Password)
		if err != nil {
			span.RecordError(err)
			return classifyCreateError(err)
		}
		if creds.Name != "" {
			if err := r.provider.SetDisplayName(ctx, session, creds.Name); err != nil {
				log.WithError(err).WithField("uid", session.UID).Warn("failed to set display name")
			}
			session.DisplayName = creds.Name
		}
		return Resolution{Mode: mode, Session: session, Phone: creds.Phone}, nil
	}

	session, err := r.provider.SignInCredential(ctx, creds.Email, creds.Password)
	if err != nil {
		span.RecordError(err)
		return r.classifySignInError(ctx, creds.Email, err)
	}
	return Resolution{Mode: mode, Session: session, Phone: creds.Phone}, nil
}

// SubmitFederated signs in with an OAuth credential.
func (r *Resolver) SubmitFederated(ctx context.Context, inv *models.InviteRecord, cred FederatedCredential) (Resolution, error) {
	ctx, span := tracer.Start(ctx, "invite.SubmitFederated")
	defer span.End()

	session, err := r.provider.SignInFederated(ctx, cred)
	if err != nil {
		span.RecordError(err)
		return Resolution{Mode: ModeFederated}, classifyProviderError(err)
	}
	if inv != nil && !inv.AllowsEmail(session.Email) {
		return Resolution{Mode: ModeFederated}, newError(KindEmailMismatch, "", nil)
	}
	return Resolution{Mode: ModeFederated, Session: session}, nil
}

func classifyCreateError(err error) (Resolution, error) {
	switch {
	case errors.Is(err, ErrEmailExists):
		return Resolution{Mode: ModeExistingAccount, Switched: true}, newError(KindCredentialConflict, ReasonEmailExists, err)
	case errors.Is(err, ErrWeakPassword):
		return Resolution{Mode: ModeNewAccount}, newError(KindInvalidInput, "password is too weak", err)
	}
	return Resolution{Mode: ModeNewAccount}, classifyProviderError(err)
}

func (r *Resolver) classifySignInError(ctx context.Context, email string, err error) (Resolution, error) {
	switched := Resolution{Mode: ModeNewAccount, Switched: true}
	stay := Resolution{Mode: ModeExistingAccount}

	switch {
	case errors.Is(err, ErrAccountNotFound):
		return switched, newError(KindCredentialConflict, ReasonAccountNotFound, err)
	case errors.Is(err, ErrWrongPassword):
		return stay, newError(KindAuthorizationFailed, ReasonWrongPassword, err)
	case errors.Is(err, ErrInvalidCredentials):
		if r.lookup != nil {
			exists, lerr := r.lookup.EmailExists(ctx, email)
			if lerr == nil && !exists {
				return switched, newError(KindCredentialConflict, ReasonAccountNotFound, err)
			}
			if lerr != nil {
				log.WithError(lerr).Warn("account lookup failed")
			}
		}
		return stay, newError(KindAuthorizationFailed, ReasonWrongPassword, err)
	}
	return stay, classifyProviderError(err)
}

func classifyProviderError(err error) error {
	switch {
	case errors.Is(err, ErrUnavailable):
		return newError(KindNetwork, ReasonNetworkError, err)
	case errors.Is(err, ErrSessionRevoked), errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrWrongPassword):
		return newError(KindAuthorizationFailed, "", err)
	}
	return newError(KindUnknown, "", err)
}
