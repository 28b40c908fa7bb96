package invite

import (
	"context"
	"errors"
	"testing"

	"github.com/dimitrije/teamjoin/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newCreds() Credentials {
	return Credentials{Name: "Sam Athlete", Email: "Athlete@Example.com", Password: "secret123"}
}

func TestResolver_Resolve(t *testing.T) {
	r := NewResolver(new(mockProvider), nil)

	res, err := r.Resolve(nil, testInvite())
	require.NoError(t, err)
	assert.Equal(t, ModeNewAccount, res.Mode)
	assert.False(t, res.Resolved())

	res, err = r.Resolve(testSession(), testInvite())
	require.NoError(t, err)
	assert.Equal(t, ModeAlreadyAuthenticated, res.Mode)
	assert.True(t, res.Resolved())
}

func TestResolver_Resolve_EmailMismatch(t *testing.T) {
	inv := testInvite()
	inv.Email = "someone@example.com"

	res, err := NewResolver(new(mockProvider), nil).Resolve(testSession(), inv)

	assert.Equal(t, KindEmailMismatch, KindOf(err))
	assert.False(t, res.Resolved())
}

func TestResolver_Submit_NewAccount(t *testing.T) {
	provider := new(mockProvider)
	session := testSession()
	provider.On("CreateCredential", mock.Anything, "athlete@example.com", "secret123").Return(session, nil)
	provider.On("SetDisplayName", mock.Anything, session, "Sam Athlete").Return(nil)

	res, err := NewResolver(provider, nil).Submit(context.Background(), testInvite(), ModeNewAccount, newCreds())

	require.NoError(t, err)
	assert.True(t, res.Resolved())
	assert.False(t, res.Switched)
	assert.Equal(t, "Sam Athlete", res.Session.DisplayName)
	provider.AssertExpectations(t)
}

func TestResolver_Submit_DisplayNameFailureIsNotFatal(t *testing.T) {
	provider := new(mockProvider)
	session := testSession()
	provider.On("CreateCredential", mock.Anything, mock.Anything, mock.Anything).Return(session, nil)
	provider.On("SetDisplayName", mock.Anything, session, mock.Anything).Return(errors.New("boom"))

	res, err := NewResolver(provider, nil).Submit(context.Background(), testInvite(), ModeNewAccount, newCreds())

	require.NoError(t, err)
	assert.True(t, res.Resolved())
}

func TestResolver_Submit_EmailExistsSwitchesOnce(t *testing.T) {
	provider := new(mockProvider)
	provider.On("CreateCredential", mock.Anything, mock.Anything, mock.Anything).Return(nil, ErrEmailExists)

	res, err := NewResolver(provider, nil).Submit(context.Background(), testInvite(), ModeNewAccount, newCreds())

	require.Error(t, err)
	assert.True(t, errors.Is(err, &Error{Kind: KindCredentialConflict, Reason: ReasonEmailExists}))
	assert.Equal(t, ModeExistingAccount, res.Mode)
	assert.True(t, res.Switched)
	assert.False(t, res.Resolved())
	provider.AssertNumberOfCalls(t, "CreateCredential", 1)
	provider.AssertNotCalled(t, "SignInCredential", mock.Anything, mock.Anything, mock.Anything)
}

func TestResolver_Submit_AccountNotFoundSwitches(t *testing.T) {
	provider := new(mockProvider)
	provider.On("SignInCredential", mock.Anything, mock.Anything, mock.Anything).Return(nil, ErrAccountNotFound)

	res, err := NewResolver(provider, nil).Submit(context.Background(), testInvite(), ModeExistingAccount, newCreds())

	assert.Equal(t, KindCredentialConflict, KindOf(err))
	assert.Equal(t, ModeNewAccount, res.Mode)
	assert.True(t, res.Switched)
	provider.AssertNotCalled(t, "CreateCredential", mock.Anything, mock.Anything, mock.Anything)
}

func TestResolver_Submit_InvalidCredentialsUsesLookup(t *testing.T) {
	tests := []struct {
		name     string
		exists   bool
		lookErr  error
		kind     Kind
		mode     Mode
		switched bool
	}{
		{"unknown email", false, nil, KindCredentialConflict, ModeNewAccount, true},
		{"known email", true, nil, KindAuthorizationFailed, ModeExistingAccount, false},
		{"lookup failure", false, errors.New("admin down"), KindAuthorizationFailed, ModeExistingAccount, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := new(mockProvider)
			provider.On("SignInCredential", mock.Anything, mock.Anything, mock.Anything).Return(nil, ErrInvalidCredentials)
			lookup := new(mockLookup)
			lookup.On("EmailExists", mock.Anything, "athlete@example.com").Return(tt.exists, tt.lookErr)

			res, err := NewResolver(provider, lookup).Submit(context.Background(), testInvite(), ModeExistingAccount, newCreds())

			assert.Equal(t, tt.kind, KindOf(err))
			assert.Equal(t, tt.mode, res.Mode)
			assert.Equal(t, tt.switched, res.Switched)
			lookup.AssertExpectations(t)
		})
	}
}

func TestResolver_Submit_WrongPassword(t *testing.T) {
	provider := new(mockProvider)
	provider.On("SignInCredential", mock.Anything, mock.Anything, mock.Anything).Return(nil, ErrWrongPassword)

	res, err := NewResolver(provider, nil).Submit(context.Background(), testInvite(), ModeExistingAccount, newCreds())

	assert.True(t, errors.Is(err, &Error{Kind: KindAuthorizationFailed, Reason: ReasonWrongPassword}))
	assert.Equal(t, ModeExistingAccount, res.Mode)
	assert.False(t, res.Switched)
}

func TestResolver_Submit_Network(t *testing.T) {
	provider := new(mockProvider)
	provider.On("CreateCredential", mock.Anything, mock.Anything, mock.Anything).Return(nil, Unavailable(errors.New("reset")))

	_, err := NewResolver(provider, nil).Submit(context.Background(), testInvite(), ModeNewAccount, newCreds())

	assert.Equal(t, KindNetwork, KindOf(err))
	assert.True(t, Retryable(err))
}

func TestResolver_Submit_InvalidInputMakesNoCall(t *testing.T) {
	provider := new(mockProvider)

	_, err := NewResolver(provider, nil).Submit(context.Background(), testInvite(), ModeNewAccount, Credentials{Email: "bad", Password: "1"})

	assert.Equal(t, KindInvalidInput, KindOf(err))
	provider.AssertNotCalled(t, "CreateCredential", mock.Anything, mock.Anything, mock.Anything)
}

func TestResolver_Submit_RejectsOtherModes(t *testing.T) {
	_, err := NewResolver(new(mockProvider), nil).Submit(context.Background(), testInvite(), ModeFederated, newCreds())
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestResolver_Submit_RestrictedInvite(t *testing.T) {
	provider := new(mockProvider)
	inv := testInvite()
	inv.Email = "other@example.com"

	_, err := NewResolver(provider, nil).Submit(context.Background(), inv, ModeNewAccount, newCreds())

	assert.Equal(t, KindEmailMismatch, KindOf(err))
	provider.AssertNotCalled(t, "CreateCredential", mock.Anything, mock.Anything, mock.Anything)
}

func TestResolver_SubmitFederated(t *testing.T) {
	provider := new(mockProvider)
	cred := FederatedCredential{ProviderID: "google.com", IDToken: "g-token"}
	provider.On("SignInFederated", mock.Anything, cred).Return(&models.Session{UID: "uid-9", Email: "a@b.co", IDToken: "t"}, nil)

	res, err := NewResolver(provider, nil).SubmitFederated(context.Background(), testInvite(), cred)

	require.NoError(t, err)
	assert.Equal(t, ModeFederated, res.Mode)
	assert.Equal(t, "uid-9", res.Session.UID)
}

func TestResolver_SubmitFederated_Revoked(t *testing.T) {
	provider := new(mockProvider)
	provider.On("SignInFederated", mock.Anything, mock.Anything).Return(nil, ErrSessionRevoked)

	_, err := NewResolver(provider, nil).SubmitFederated(context.Background(), testInvite(), FederatedCredential{ProviderID: "github.com"})

	assert.Equal(t, KindAuthorizationFailed, KindOf(err))
}

func TestParseMode(t *testing.T) {
	m, ok := ParseMode("existing_account")
	assert.True(t, ok)
	assert.Equal(t, ModeExistingAccount, m)

	_, ok = ParseMode("bogus")
	assert.False(t, ok)
}
