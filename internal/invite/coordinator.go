package invite

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dimitrije/teamjoin/internal/models"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// RedeemRequest is the payload of the redeemInvite function. RequestID is
// unique per attempt so the server can drop duplicated deliveries.
type RedeemRequest struct {
	IdentityID string               `json:"identityId"`
	Token      string               `json:"token"`
	Profile    models.ProfileFields `json:"profileFields"`
	RequestID  string               `json:"requestId"`
}

type RedeemResponse struct {
	Success bool   `json:"success"`
	TeamID  string `json:"teamId,omitempty"`
	Role    string `json:"role,omitempty"`
	Error   string `json:"error,omitempty"`
}

// RedeemAPI is the external redemption endpoint. Implementations return an
// error only when the call could not be completed; rejections are reported
// through RedeemResponse.Error.
type RedeemAPI interface {
	RedeemInvite(ctx context.Context, authProof string, req RedeemRequest) (*RedeemResponse, error)
}

type SessionRefresher interface {
	RefreshSession(ctx context.Context, session *models.Session) (*models.Session, error)
}

// Locker extends the in-flight guard across processes.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error)
}

// RedemptionAttempt prevents duplicate submission within one flow.
type RedemptionAttempt struct {
	Attempted bool `json:"attempted"`
	InFlight  bool `json:"in_flight"`
	Succeeded bool `json:"succeeded"`
}

type RedemptionOutcome struct {
	TeamID    string
	Role      string
	RequestID string
	Session   *models.Session
}

const defaultLockTTL = 30 * time.Second

// Coordinator drives the single authoritative redeem call of one flow.
type Coordinator struct {
	api       RedeemAPI
	refresher SessionRefresher
	locker    Locker
	lockTTL   time.Duration

	mu      sync.Mutex
	attempt RedemptionAttempt
	outcome *RedemptionOutcome
}

// NewCoordinator returns a Coordinator. locker may be nil.
func NewCoordinator(api RedeemAPI, refresher SessionRefresher, locker Locker) *Coordinator {
	return &Coordinator{
		api:       api,
		refresher: refresher,
		locker:    locker,
		lockTTL:   defaultLockTTL,
	}
}

func (c *Coordinator) Attempt() RedemptionAttempt {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempt
}

// Redeem redeems inv for session. A call made while another is in flight is
// rejected with ErrRedemptionInFlight without touching the network; a call
// made after a success returns the recorded outcome. ErrRedemptionLocked
// reports that another process holds the lock for the same redemption.
func (c *Coordinator) Redeem(ctx context.Context, inv *models.InviteRecord, session *models.Session, profile models.ProfileFields) (*RedemptionOutcome, error) {
	c.mu.Lock()
	if c.attempt.Succeeded {
		out := c.outcome
		c.mu.Unlock()
		return out, nil
	}
	if c.attempt.InFlight {
		c.mu.Unlock()
		return nil, ErrRedemptionInFlight
	}
	if inv == nil || inv.Token == "" || session == nil || session.UID == "" || (session.IDToken == "" && session.RefreshToken == "") {
		c.mu.Unlock()
		return nil, ErrIdentityUnresolved
	}
	c.attempt.Attempted = true
	c.attempt.InFlight = true
	c.mu.Unlock()

	out, err := c.redeem(ctx, inv, session, profile)

	c.mu.Lock()
	c.attempt.InFlight = false
	if err == nil {
		c.attempt.Succeeded = true
		c.outcome = out
	}
	c.mu.Unlock()
	return out, err
}

func (c *Coordinator) redeem(ctx context.Context, inv *models.InviteRecord, session *models.Session, profile models.ProfileFields) (*RedemptionOutcome, error) {
	ctx, span := tracer.Start(ctx, "invite.Redeem")
	defer span.End()
	span.SetAttributes(attribute.String("invite.id", inv.ID), attribute.String("identity.uid", session.UID))

	if c.locker != nil {
		release, ok, err := c.locker.Acquire(ctx, inv.ID+":"+session.UID, c.lockTTL)
		if err != nil {
			return nil, newError(KindNetwork, ReasonNetworkError, err)
		}
		if !ok {
			return nil, ErrRedemptionLocked
		}
		defer release()
	}

	// Bearer proofs are short lived, so mint a fresh one for this call.
	fresh, err := c.refresher.RefreshSession(ctx, session)
	if err != nil {
		span.RecordError(err)
		return nil, classifyProviderError(err)
	}

	req := RedeemRequest{
		IdentityID: fresh.UID,
		Token:      inv.Token,
		Profile:    profile,
		RequestID:  uuid.NewString(),
	}

	resp, err := c.api.RedeemInvite(ctx, fresh.IDToken, req)
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, ErrUnavailable) {
			return nil, newError(KindNetwork, ReasonNetworkError, err)
		}
		return nil, newError(KindUnknown, "", err)
	}
	if resp == nil || !resp.Success {
		msg := ""
		if resp != nil {
			msg = resp.Error
		}
		return nil, ClassifyRedeemError(msg)
	}

	out := &RedemptionOutcome{
		TeamID:    resp.TeamID,
		Role:      resp.Role,
		RequestID: req.RequestID,
		Session:   fresh,
	}
	if out.TeamID == "" {
		out.TeamID = inv.ProID
	}
	if out.Role == "" {
		out.Role = inv.Role
	}
	return out, nil
}

// ClassifyRedeemError maps a redeemInvite rejection to the error taxonomy.
func ClassifyRedeemError(msg string) error {
	words := codeWords(msg)
	switch {
	case hasCode(words, "claimed", "already_used"):
		return newError(KindTokenAlreadyClaimed, ReasonAlreadyClaimed, nil)
	case hasCode(words, "invalid_token", "not_found", "expired", "invalid_argument"):
		return newError(KindTokenInvalid, ReasonInvalidToken, nil)
	case hasCode(words, "unauthenticated", "permission_denied", "authorization", "unauthorized"):
		return newError(KindAuthorizationFailed, "", nil)
	case hasCode(words, "unavailable", "deadline_exceeded", "network"):
		return newError(KindNetwork, ReasonNetworkError, nil)
	}
	return newError(KindUnknown, msg, nil)
}
