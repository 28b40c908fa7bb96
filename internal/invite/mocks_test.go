package invite

import (
	"context"
	"time"

	"github.com/dimitrije/teamjoin/internal/models"
	"github.com/stretchr/testify/mock"
)

type mockValidateAPI struct {
	mock.Mock
}

func (m *mockValidateAPI) ValidateInvite(ctx context.Context, token string) (*ValidateResponse, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ValidateResponse), args.Error(1)
}

type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) CreateCredential(ctx context.Context, email, password string) (*models.Session, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Session), args.Error(1)
}

func (m *mockProvider) SignInCredential(ctx context.Context, email, password string) (*models.Session, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Session), args.Error(1)
}

func (m *mockProvider) SignInFederated(ctx context.Context, cred FederatedCredential) (*models.Session, error) {
	args := m.Called(ctx, cred)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Session), args.Error(1)
}

func (m *mockProvider) RefreshSession(ctx context.Context, session *models.Session) (*models.Session, error) {
	args := m.Called(ctx, session)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Session), args.Error(1)
}

func (m *mockProvider) SetDisplayName(ctx context.Context, session *models.Session, name string) error {
	args := m.Called(ctx, session, name)
	return args.Error(0)
}

type mockLookup struct {
	mock.Mock
}

func (m *mockLookup) EmailExists(ctx context.Context, email string) (bool, error) {
	args := m.Called(ctx, email)
	return args.Bool(0), args.Error(1)
}

type mockRedeemAPI struct {
	mock.Mock
}

func (m *mockRedeemAPI) RedeemInvite(ctx context.Context, authProof string, req RedeemRequest) (*RedeemResponse, error) {
	args := m.Called(ctx, authProof, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*RedeemResponse), args.Error(1)
}

type mockProfiles struct {
	mock.Mock
}

func (m *mockProfiles) GetProfile(ctx context.Context, uid string) (*models.Identity, error) {
	args := m.Called(ctx, uid)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Identity), args.Error(1)
}

type mockLocker struct {
	mock.Mock
}

func (m *mockLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	args := m.Called(ctx, key, ttl)
	release, _ := args.Get(0).(func())
	return release, args.Bool(1), args.Error(2)
}

func testInvite() *models.InviteRecord {
	return &models.InviteRecord{
		ID:        "inv-1",
		ProID:     "pro-1",
		Role:      models.RoleAthlete,
		ExpiresAt: time.Now().Add(24 * time.Hour),
		Token:     "tok-abc",
	}
}

func testSession() *models.Session {
	return &models.Session{
		UID:          "uid-1",
		Email:        "athlete@example.com",
		IDToken:      "id-token",
		RefreshToken: "refresh-token",
	}
}
