package invite

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dimitrije/teamjoin/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestCoordinator_Redeem_Success(t *testing.T) {
	api := new(mockRedeemAPI)
	refresher := new(mockProvider)
	session := testSession()
	fresh := &models.Session{UID: "uid-1", IDToken: "fresh-token", RefreshToken: "refresh-token"}
	refresher.On("RefreshSession", mock.Anything, session).Return(fresh, nil)

	var sent RedeemRequest
	api.On("RedeemInvite", mock.Anything, "fresh-token", mock.Anything).
		Run(func(args mock.Arguments) { sent = args.Get(2).(RedeemRequest) }).
		Return(&RedeemResponse{Success: true, TeamID: "pro-1", Role: models.RoleAthlete}, nil)

	c := NewCoordinator(api, refresher, nil)
	out, err := c.Redeem(context.Background(), testInvite(), session, models.ProfileFields{DisplayName: "Sam"})

	require.NoError(t, err)
	assert.Equal(t, "pro-1", out.TeamID)
	assert.Equal(t, fresh, out.Session)
	assert.Equal(t, "uid-1", sent.IdentityID)
	assert.Equal(t, "tok-abc", sent.Token)
	assert.Equal(t, "Sam", sent.Profile.DisplayName)
	assert.NotEmpty(t, sent.RequestID)
	assert.Equal(t, out.RequestID, sent.RequestID)
	assert.Equal(t, RedemptionAttempt{Attempted: true, Succeeded: true}, c.Attempt())
}

func TestCoordinator_Redeem_FallsBackToInvite(t *testing.T) {
	api := new(mockRedeemAPI)
	refresher := new(mockProvider)
	refresher.On("RefreshSession", mock.Anything, mock.Anything).Return(testSession(), nil)
	api.On("RedeemInvite", mock.Anything, mock.Anything, mock.Anything).Return(&RedeemResponse{Success: true}, nil)

	out, err := NewCoordinator(api, refresher, nil).Redeem(context.Background(), testInvite(), testSession(), models.ProfileFields{})

	require.NoError(t, err)
	assert.Equal(t, "pro-1", out.TeamID)
	assert.Equal(t, models.RoleAthlete, out.Role)
}

func TestCoordinator_Redeem_RequiresIdentity(t *testing.T) {
	api := new(mockRedeemAPI)
	c := NewCoordinator(api, new(mockProvider), nil)

	_, err := c.Redeem(context.Background(), testInvite(), nil, models.ProfileFields{})
	assert.ErrorIs(t, err, ErrIdentityUnresolved)

	_, err = c.Redeem(context.Background(), testInvite(), &models.Session{UID: "uid-1"}, models.ProfileFields{})
	assert.ErrorIs(t, err, ErrIdentityUnresolved)

	_, err = c.Redeem(context.Background(), &models.InviteRecord{ID: "x"}, testSession(), models.ProfileFields{})
	assert.ErrorIs(t, err, ErrIdentityUnresolved)

	api.AssertNotCalled(t, "RedeemInvite", mock.Anything, mock.Anything, mock.Anything)
	assert.False(t, c.Attempt().Attempted)
}

func TestCoordinator_Redeem_ConcurrentCallsDispatchOnce(t *testing.T) {
	api := new(mockRedeemAPI)
	refresher := new(mockProvider)
	refresher.On("RefreshSession", mock.Anything, mock.Anything).Return(testSession(), nil)

	entered := make(chan struct{})
	unblock := make(chan struct{})
	var once sync.Once
	api.On("RedeemInvite", mock.Anything, mock.Anything, mock.Anything).
		Run(func(mock.Arguments) {
			once.Do(func() { close(entered) })
			<-unblock
		}).
		Return(&RedeemResponse{Success: true, TeamID: "pro-1"}, nil)

	c := NewCoordinator(api, refresher, nil)

	var (
		wg       sync.WaitGroup
		inFlight atomic.Int32
	)
	first := make(chan error, 1)
	go func() {
		_, err := c.Redeem(context.Background(), testInvite(), testSession(), models.ProfileFields{})
		first <- err
	}()
	<-entered

	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.Redeem(context.Background(), testInvite(), testSession(), models.ProfileFields{}); errors.Is(err, ErrRedemptionInFlight) {
				inFlight.Add(1)
			}
		}()
	}
	wg.Wait()
	close(unblock)

	require.NoError(t, <-first)
	assert.Equal(t, int32(5), inFlight.Load())
	api.AssertNumberOfCalls(t, "RedeemInvite", 1)
}

func TestCoordinator_Redeem_SuccessIsCached(t *testing.T) {
	api := new(mockRedeemAPI)
	refresher := new(mockProvider)
	refresher.On("RefreshSession", mock.Anything, mock.Anything).Return(testSession(), nil)
	api.On("RedeemInvite", mock.Anything, mock.Anything, mock.Anything).Return(&RedeemResponse{Success: true, TeamID: "pro-1"}, nil)

	c := NewCoordinator(api, refresher, nil)
	first, err := c.Redeem(context.Background(), testInvite(), testSession(), models.ProfileFields{})
	require.NoError(t, err)
	second, err := c.Redeem(context.Background(), testInvite(), testSession(), models.ProfileFields{})
	require.NoError(t, err)

	assert.Same(t, first, second)
	api.AssertNumberOfCalls(t, "RedeemInvite", 1)
}

func TestCoordinator_Redeem_Rejections(t *testing.T) {
	tests := []struct {
		msg  string
		kind Kind
	}{
		{"Invite already claimed", KindTokenAlreadyClaimed},
		{"invalid-token", KindTokenInvalid},
		{"Invite expired", KindTokenInvalid},
		{"unauthenticated", KindAuthorizationFailed},
		{"UNAVAILABLE", KindNetwork},
		{"team is full", KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			api := new(mockRedeemAPI)
			refresher := new(mockProvider)
			refresher.On("RefreshSession", mock.Anything, mock.Anything).Return(testSession(), nil)
			api.On("RedeemInvite", mock.Anything, mock.Anything, mock.Anything).Return(&RedeemResponse{Error: tt.msg}, nil)

			c := NewCoordinator(api, refresher, nil)
			_, err := c.Redeem(context.Background(), testInvite(), testSession(), models.ProfileFields{})

			assert.Equal(t, tt.kind, KindOf(err))
			assert.Equal(t, RedemptionAttempt{Attempted: true}, c.Attempt())
		})
	}
}

func TestCoordinator_Redeem_TransportFailure(t *testing.T) {
	api := new(mockRedeemAPI)
	refresher := new(mockProvider)
	refresher.On("RefreshSession", mock.Anything, mock.Anything).Return(testSession(), nil)
	api.On("RedeemInvite", mock.Anything, mock.Anything, mock.Anything).Return(nil, Unavailable(errors.New("eof")))

	_, err := NewCoordinator(api, refresher, nil).Redeem(context.Background(), testInvite(), testSession(), models.ProfileFields{})

	assert.Equal(t, KindNetwork, KindOf(err))
}

func TestCoordinator_Redeem_RevokedSession(t *testing.T) {
	api := new(mockRedeemAPI)
	refresher := new(mockProvider)
	refresher.On("RefreshSession", mock.Anything, mock.Anything).Return(nil, ErrSessionRevoked)

	_, err := NewCoordinator(api, refresher, nil).Redeem(context.Background(), testInvite(), testSession(), models.ProfileFields{})

	assert.Equal(t, KindAuthorizationFailed, KindOf(err))
	api.AssertNotCalled(t, "RedeemInvite", mock.Anything, mock.Anything, mock.Anything)
}

func TestCoordinator_Redeem_Locker(t *testing.T) {
	api := new(mockRedeemAPI)
	refresher := new(mockProvider)
	locker := new(mockLocker)
	locker.On("Acquire", mock.Anything, "inv-1:uid-1", 30*time.Second).Return(nil, false, nil)

	c := NewCoordinator(api, refresher, locker)
	_, err := c.Redeem(context.Background(), testInvite(), testSession(), models.ProfileFields{})

	assert.ErrorIs(t, err, ErrRedemptionLocked)
	assert.True(t, Retryable(err))
	assert.Equal(t, RedemptionAttempt{Attempted: true}, c.Attempt())
	api.AssertNotCalled(t, "RedeemInvite", mock.Anything, mock.Anything, mock.Anything)
}

func TestCoordinator_Redeem_LockerReleases(t *testing.T) {
	api := new(mockRedeemAPI)
	refresher := new(mockProvider)
	refresher.On("RefreshSession", mock.Anything, mock.Anything).Return(testSession(), nil)
	api.On("RedeemInvite", mock.Anything, mock.Anything, mock.Anything).Return(&RedeemResponse{Success: true}, nil)

	released := false
	locker := new(mockLocker)
	locker.On("Acquire", mock.Anything, mock.Anything, mock.Anything).Return(func() { released = true }, true, nil)

	_, err := NewCoordinator(api, refresher, locker).Redeem(context.Background(), testInvite(), testSession(), models.ProfileFields{})

	require.NoError(t, err)
	assert.True(t, released)
}

func TestClassifyRedeemError(t *testing.T) {
	tests := []struct {
		msg  string
		kind Kind
	}{
		{"Invite already claimed", KindTokenAlreadyClaimed},
		{"ALREADY_USED", KindTokenAlreadyClaimed},
		{"invalid-token", KindTokenInvalid},
		{"Invite expired", KindTokenInvalid},
		{"PERMISSION_DENIED: not a member", KindAuthorizationFailed},
		{"deadline exceeded", KindNetwork},
		{"profile unclaimed", KindUnknown},
		{"networking quota hit", KindUnknown},
		{"", KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			assert.Equal(t, tt.kind, KindOf(ClassifyRedeemError(tt.msg)))
		})
	}
}
