package invite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dimitrije/teamjoin/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestValidator_Validate_Valid(t *testing.T) {
	api := new(mockValidateAPI)
	inv := &models.InviteRecord{ID: "inv-1", ProID: "pro-1", Role: models.RoleAthlete, ExpiresAt: time.Now().Add(time.Hour)}
	api.On("ValidateInvite", mock.Anything, "tok-abc").Return(&ValidateResponse{Valid: true, Invite: inv}, nil)

	result := NewValidator(api).Validate(context.Background(), "  tok-abc ")

	require.True(t, result.Valid())
	assert.Equal(t, "pro-1", result.Invite.ProID)
	assert.Equal(t, "tok-abc", result.Invite.Token)
	assert.Empty(t, inv.Token, "response invite must not be mutated")
	assert.NoError(t, result.Err())
	api.AssertExpectations(t)
}

func TestValidator_Validate_EmptyToken(t *testing.T) {
	api := new(mockValidateAPI)

	for _, token := range []string{"", "   "} {
		result := NewValidator(api).Validate(context.Background(), token)
		assert.False(t, result.Valid())
		assert.Equal(t, ReasonMissingToken, result.Reason)
		assert.Equal(t, KindTokenInvalid, KindOf(result.Err()))
	}
	api.AssertNotCalled(t, "ValidateInvite", mock.Anything, mock.Anything)
}

func TestValidator_Validate_Classification(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)

	tests := []struct {
		name   string
		resp   *ValidateResponse
		err    error
		reason string
		kind   Kind
	}{
		{"transport failure", nil, errors.New("dial tcp: timeout"), ReasonNetworkError, KindNetwork},
		{"nil response", nil, nil, ReasonMalformedToken, KindTokenInvalid},
		{"not found", &ValidateResponse{Error: "Invite not found"}, nil, ReasonNotFound, KindTokenInvalid},
		{"expired message", &ValidateResponse{Error: "invite-expired"}, nil, ReasonExpired, KindTokenInvalid},
		{"claimed message", &ValidateResponse{Error: "Invite already claimed"}, nil, ReasonAlreadyClaimed, KindTokenAlreadyClaimed},
		{"valid without invite", &ValidateResponse{Valid: true}, nil, ReasonMalformedToken, KindTokenInvalid},
		{"valid without pro", &ValidateResponse{Valid: true, Invite: &models.InviteRecord{ID: "x"}}, nil, ReasonMalformedToken, KindTokenInvalid},
		{"claimed flag", &ValidateResponse{Valid: true, Invite: &models.InviteRecord{ID: "x", ProID: "p", Claimed: true, ExpiresAt: future}}, nil, ReasonAlreadyClaimed, KindTokenAlreadyClaimed},
		{"past expiry", &ValidateResponse{Valid: true, Invite: &models.InviteRecord{ID: "x", ProID: "p", ExpiresAt: past}}, nil, ReasonExpired, KindTokenInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := new(mockValidateAPI)
			if tt.resp == nil {
				api.On("ValidateInvite", mock.Anything, "tok").Return(nil, tt.err)
			} else {
				api.On("ValidateInvite", mock.Anything, "tok").Return(tt.resp, tt.err)
			}

			result := NewValidator(api).Validate(context.Background(), "tok")

			assert.False(t, result.Valid())
			assert.Equal(t, tt.reason, result.Reason)
			assert.Equal(t, tt.kind, KindOf(result.Err()))
		})
	}
}

func TestValidator_Validate_Idempotent(t *testing.T) {
	api := new(mockValidateAPI)
	api.On("ValidateInvite", mock.Anything, "tok").Return(&ValidateResponse{Error: "expired"}, nil)
	v := NewValidator(api)

	first := v.Validate(context.Background(), "tok")
	second := v.Validate(context.Background(), "tok")

	assert.Equal(t, first, second)
	api.AssertNumberOfCalls(t, "ValidateInvite", 2)
}

func TestValidator_Validate_ExpiryBoundary(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	api := new(mockValidateAPI)
	api.On("ValidateInvite", mock.Anything, "tok").
		Return(&ValidateResponse{Valid: true, Invite: &models.InviteRecord{ID: "x", ProID: "p", ExpiresAt: now}}, nil)

	v := NewValidator(api)
	v.now = func() time.Time { return now }

	assert.Equal(t, ReasonExpired, v.Validate(context.Background(), "tok").Reason)
}

func TestClassifyInviteError(t *testing.T) {
	assert.Equal(t, ReasonMalformedToken, ClassifyInviteError(""))
	assert.Equal(t, ReasonAlreadyClaimed, ClassifyInviteError("ALREADY-USED"))
	assert.Equal(t, ReasonExpired, ClassifyInviteError("Token Expired"))
	assert.Equal(t, ReasonNotFound, ClassifyInviteError("not found"))
	assert.Equal(t, ReasonMalformedToken, ClassifyInviteError("garbage"))
	assert.Equal(t, ReasonNotFound, ClassifyInviteError("INVITE_NOT_FOUND"))
	assert.Equal(t, ReasonMalformedToken, ClassifyInviteError("invite is unclaimed but malformed"))
	assert.Equal(t, ReasonMalformedToken, ClassifyInviteError("notfound"))
}
