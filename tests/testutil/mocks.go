package testutil

import (
	"context"
	"time"

	"github.com/dimitrije/teamjoin/internal/firebase"
	"github.com/dimitrije/teamjoin/internal/invite"
	"github.com/dimitrije/teamjoin/internal/models"
	"github.com/dimitrije/teamjoin/internal/services"
	"github.com/dimitrije/teamjoin/internal/sse"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockSessionService mocks the SessionService
type MockSessionService struct {
	mock.Mock
}

func (m *MockSessionService) Create(ctx context.Context, token string, expiresAt time.Time) (*models.JoinSession, error) {
	args := m.Called(ctx, token, expiresAt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.JoinSession), args.Error(1)
}

func (m *MockSessionService) GetByID(ctx context.Context, id uuid.UUID) (*models.JoinSession, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.JoinSession), args.Error(1)
}

func (m *MockSessionService) ListEvents(ctx context.Context, id uuid.UUID) ([]models.JoinSessionEvent, error) {
	args := m.Called(ctx, id)
	events, _ := args.Get(0).([]models.JoinSessionEvent)
	return events, args.Error(1)
}

func (m *MockSessionService) RecordTransition(ctx context.Context, id uuid.UUID, t services.SessionTransition) error {
	args := m.Called(ctx, id, t)
	return args.Error(0)
}

func (m *MockSessionService) CleanupExpired(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

// MockHub mocks the SSE Hub
type MockHub struct {
	mock.Mock
}

func (m *MockHub) Register(client *sse.Client) {
	m.Called(client)
}

func (m *MockHub) Unregister(client *sse.Client) {
	m.Called(client)
}

func (m *MockHub) BroadcastTransition(ev sse.TransitionEvent) {
	m.Called(ev)
}

// MockEmailService mocks the EmailService
type MockEmailService struct {
	mock.Mock
}

func (m *MockEmailService) IsConfigured() bool {
	args := m.Called()
	return args.Bool(0)
}

func (m *MockEmailService) SendInvite(to, role, inviterName, inviteURL string) error {
	args := m.Called(to, role, inviterName, inviteURL)
	return args.Error(0)
}

// MockTeamFunctions mocks the team management functions
type MockTeamFunctions struct {
	mock.Mock
}

func (m *MockTeamFunctions) CreateInvite(ctx context.Context, idToken, role, email string) (*firebase.CreateInviteResult, error) {
	args := m.Called(ctx, idToken, role, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*firebase.CreateInviteResult), args.Error(1)
}

func (m *MockTeamFunctions) GetPersistentInvites(ctx context.Context, idToken string) ([]models.PersistentInvite, error) {
	args := m.Called(ctx, idToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.PersistentInvite), args.Error(1)
}

func (m *MockTeamFunctions) RemoveTeamMember(ctx context.Context, idToken, memberID string) error {
	args := m.Called(ctx, idToken, memberID)
	return args.Error(0)
}

// MockTokenVerifier mocks Firebase ID token verification
type MockTokenVerifier struct {
	mock.Mock
}

func (m *MockTokenVerifier) VerifyIDToken(ctx context.Context, idToken string) (*firebase.Principal, error) {
	args := m.Called(ctx, idToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*firebase.Principal), args.Error(1)
}

// MockValidateAPI mocks the validateInvite function
type MockValidateAPI struct {
	mock.Mock
}

func (m *MockValidateAPI) ValidateInvite(ctx context.Context, token string) (*invite.ValidateResponse, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*invite.ValidateResponse), args.Error(1)
}

// MockRedeemAPI mocks the redeemInvite function
type MockRedeemAPI struct {
	mock.Mock
}

func (m *MockRedeemAPI) RedeemInvite(ctx context.Context, authProof string, req invite.RedeemRequest) (*invite.RedeemResponse, error) {
	args := m.Called(ctx, authProof, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*invite.RedeemResponse), args.Error(1)
}

// MockIdentityProvider mocks the identity service
type MockIdentityProvider struct {
	mock.Mock
}

func (m *MockIdentityProvider) CreateCredential(ctx context.Context, email, password string) (*models.Session, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Session), args.Error(1)
}

func (m *MockIdentityProvider) SignInCredential(ctx context.Context, email, password string) (*models.Session, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Session), args.Error(1)
}

func (m *MockIdentityProvider) SignInFederated(ctx context.Context, cred invite.FederatedCredential) (*models.Session, error) {
	args := m.Called(ctx, cred)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Session), args.Error(1)
}

func (m *MockIdentityProvider) RefreshSession(ctx context.Context, session *models.Session) (*models.Session, error) {
	args := m.Called(ctx, session)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Session), args.Error(1)
}

func (m *MockIdentityProvider) SetDisplayName(ctx context.Context, session *models.Session, name string) error {
	args := m.Called(ctx, session, name)
	return args.Error(0)
}

// MockAccountLookup mocks the account existence check
type MockAccountLookup struct {
	mock.Mock
}

func (m *MockAccountLookup) EmailExists(ctx context.Context, email string) (bool, error) {
	args := m.Called(ctx, email)
	return args.Bool(0), args.Error(1)
}

// MockProfileReader mocks the profile store
type MockProfileReader struct {
	mock.Mock
}

func (m *MockProfileReader) GetProfile(ctx context.Context, uid string) (*models.Identity, error) {
	args := m.Called(ctx, uid)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Identity), args.Error(1)
}
