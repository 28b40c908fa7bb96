package handlers

import (
	"context"
	"time"

	"github.com/dimitrije/teamjoin/internal/firebase"
	"github.com/dimitrije/teamjoin/internal/models"
	"github.com/dimitrije/teamjoin/internal/services"
	"github.com/dimitrije/teamjoin/internal/sse"
	"github.com/google/uuid"
)

// SessionServiceInterface defines the methods used by handlers from SessionService
type SessionServiceInterface interface {
	Create(ctx context.Context, token string, expiresAt time.Time) (*models.JoinSession, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.JoinSession, error)
	ListEvents(ctx context.Context, id uuid.UUID) ([]models.JoinSessionEvent, error)
	RecordTransition(ctx context.Context, id uuid.UUID, t services.SessionTransition) error
	CleanupExpired(ctx context.Context) (int64, error)
}

// JWTServiceInterface defines the methods used by handlers from JWTService
type JWTServiceInterface interface {
	GenerateSessionToken(sessionID uuid.UUID) (string, error)
	ValidateSessionToken(token string) (uuid.UUID, error)
	Expiry() time.Duration
}

// HubInterface defines the methods used by handlers from the SSE Hub
type HubInterface interface {
	Register(client *sse.Client)
	Unregister(client *sse.Client)
	BroadcastTransition(ev sse.TransitionEvent)
}

// EmailServiceInterface defines the methods used by handlers from EmailService
type EmailServiceInterface interface {
	IsConfigured() bool
	SendInvite(to, role, inviterName, inviteURL string) error
}

// TeamFunctionsInterface defines the team management functions called on
// behalf of an authenticated owner.
type TeamFunctionsInterface interface {
	CreateInvite(ctx context.Context, idToken, role, email string) (*firebase.CreateInviteResult, error)
	GetPersistentInvites(ctx context.Context, idToken string) ([]models.PersistentInvite, error)
	RemoveTeamMember(ctx context.Context, idToken, memberID string) error
}

// IdentityVerifierInterface verifies the ID token of a person who is already
// signed in when they open an invite.
type IdentityVerifierInterface interface {
	VerifyIDToken(ctx context.Context, idToken string) (*firebase.Principal, error)
}
