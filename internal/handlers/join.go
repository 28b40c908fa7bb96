package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/dimitrije/teamjoin/internal/config"
	"github.com/dimitrije/teamjoin/internal/invite"
	"github.com/dimitrije/teamjoin/internal/logging"
	"github.com/dimitrije/teamjoin/internal/middleware"
	"github.com/dimitrije/teamjoin/internal/models"
	"github.com/dimitrije/teamjoin/internal/oauth"
	"github.com/dimitrije/teamjoin/internal/services"
	"github.com/dimitrije/teamjoin/pkg/dto"
	"github.com/google/uuid"
	"github.com/m1z23r/drift/pkg/drift"
)

const federatedStateTTL = 10 * time.Minute

// JoinHandler drives invite-redemption flows for the join page and API
// clients.
type JoinHandler struct {
	cfg       *config.Config
	flows     *FlowRegistry
	jwt       JWTServiceInterface
	verifier  IdentityVerifierInterface
	providers map[string]oauth.Provider
	states    sync.Map
}

type federatedState struct {
	sessionID uuid.UUID
	provider  string
	expiresAt time.Time
}

func NewJoinHandler(cfg *config.Config, flows *FlowRegistry, jwt JWTServiceInterface, verifier IdentityVerifierInterface) *JoinHandler {
	h := &JoinHandler{
		cfg:       cfg,
		flows:     flows,
		jwt:       jwt,
		verifier:  verifier,
		providers: make(map[string]oauth.Provider),
	}

	if cfg.Google.ClientID != "" {
		h.providers["google"] = oauth.NewGoogleProvider(cfg.Google)
	}
	if cfg.GitHub.ClientID != "" {
		h.providers["github"] = oauth.NewGitHubProvider(cfg.GitHub)
	}

	go h.cleanupStates()

	return h
}

func (h *JoinHandler) cleanupStates() {
	ticker := time.NewTicker(1 * time.Minute)
	for range ticker.C {
		now := time.Now()
		h.states.Range(func(key, value interface{}) bool {
			if sd, ok := value.(federatedState); ok && now.After(sd.expiresAt) {
				h.states.Delete(key)
			}
			return true
		})
	}
}

// Providers lists the configured federated sign-in providers.
func (h *JoinHandler) Providers() []string {
	names := make([]string, 0, len(h.providers))
	for _, name := range []string{"google", "github"} {
		if _, ok := h.providers[name]; ok {
			names = append(names, name)
		}
	}
	return names
}

func (h *JoinHandler) Start(c *drift.Context) {
	var req dto.StartJoinRequest
	if err := c.BindJSON(&req); err != nil {
		c.BadRequest("invalid request body")
		return
	}

	token := strings.TrimSpace(req.Token)
	if token == "" {
		c.BadRequest("token is required")
		return
	}

	sessionToken, snap, err := h.start(c.Request.Context(), token)
	if err != nil && sessionToken == "" {
		c.InternalServerError("failed to start join session")
		return
	}

	_ = c.JSON(http.StatusOK, dto.JoinSessionResponse{
		SessionToken: sessionToken,
		ExpiresIn:    int64(h.jwt.Expiry().Seconds()),
		State:        stateResponse(snap, err),
	})
}

// start registers a flow for token and runs validation. A non-empty session
// token is returned whenever the flow exists, even when validation failed.
func (h *JoinHandler) start(ctx context.Context, token string) (string, invite.Snapshot, error) {
	sessionID, flow, err := h.flows.Create(ctx, token)
	if err != nil {
		return "", invite.Snapshot{}, err
	}

	sessionToken, err := h.jwt.GenerateSessionToken(sessionID)
	if err != nil {
		return "", invite.Snapshot{}, err
	}

	snap, err := flow.Start(ctx, token, nil)
	return sessionToken, snap, err
}

func (h *JoinHandler) SubmitIdentity(c *drift.Context) {
	flow, ok := h.flow(c)
	if !ok {
		return
	}

	var req dto.IdentityRequest
	if err := c.BindJSON(&req); err != nil {
		c.BadRequest("invalid request body")
		return
	}

	mode, ok := invite.ParseMode(req.Mode)
	if !ok {
		c.BadRequest("invalid mode")
		return
	}

	ctx := c.Request.Context()
	var (
		snap invite.Snapshot
		err  error
	)

	switch mode {
	case invite.ModeAlreadyAuthenticated:
		if req.IDToken == "" {
			c.BadRequest("id_token is required")
			return
		}
		principal, verr := h.verifier.VerifyIDToken(ctx, req.IDToken)
		if verr != nil {
			c.Unauthorized("invalid or expired token")
			return
		}
		snap, err = flow.Authenticate(ctx, &models.Session{
			UID:          principal.UID,
			Email:        principal.Email,
			IDToken:      req.IDToken,
			RefreshToken: req.RefreshToken,
			ExpiresAt:    principal.ExpiresAt,
		})
	case invite.ModeNewAccount, invite.ModeExistingAccount:
		snap, err = flow.SubmitCredentials(ctx, mode, invite.Credentials{
			Name:     req.Name,
			Email:    req.Email,
			Password: req.Password,
			Phone:    req.Phone,
		})
	default:
		c.BadRequest("federated sign-in starts at the consent endpoint")
		return
	}

	h.respond(c, snap, err)
}

func (h *JoinHandler) Redeem(c *drift.Context) {
	flow, ok := h.flow(c)
	if !ok {
		return
	}

	var req dto.RedeemRequest
	if err := c.BindJSON(&req); err != nil {
		c.BadRequest("invalid request body")
		return
	}

	snap, err := flow.Redeem(c.Request.Context(), models.ProfileFields{
		DisplayName: strings.TrimSpace(req.Profile.DisplayName),
		Phone:       strings.TrimSpace(req.Profile.Phone),
	})
	h.respond(c, snap, err)
}

// State returns the live flow state, or the persisted audit record when the
// flow is no longer held in memory.
func (h *JoinHandler) State(c *drift.Context) {
	sessionID := middleware.GetJoinSessionID(c)
	if sessionID == uuid.Nil {
		c.Unauthorized("missing join session")
		return
	}
	if flow, ok := h.flows.Get(sessionID); ok {
		_ = c.JSON(http.StatusOK, stateResponse(flow.Snapshot(), nil))
		return
	}

	session, events, err := h.flows.Persisted(c.Request.Context(), sessionID)
	if errors.Is(err, services.ErrSessionNotFound) {
		c.NotFound("join session not found")
		return
	}
	if err != nil {
		logging.LogError("join_state", err, map[string]interface{}{"session_id": sessionID.String()})
		c.InternalServerError("failed to load join session")
		return
	}
	_ = c.JSON(http.StatusOK, persistedStateResponse(session, events))
}

func (h *JoinHandler) GetConsentURL(c *drift.Context) {
	provider := c.Param("provider")

	p, ok := h.providers[provider]
	if !ok {
		c.BadRequest("unsupported provider: " + provider)
		return
	}

	sessionID := middleware.GetJoinSessionID(c)
	if _, ok := h.flows.Get(sessionID); !ok {
		c.NotFound("join session not found")
		return
	}

	state, err := oauth.GenerateState()
	if err != nil {
		c.InternalServerError("failed to generate state")
		return
	}

	h.states.Store(state, federatedState{
		sessionID: sessionID,
		provider:  provider,
		expiresAt: time.Now().Add(federatedStateTTL),
	})

	_ = c.JSON(http.StatusOK, dto.ConsentURLResponse{
		URL: p.GetConsentURL(state),
	})
}

// FederatedCallback completes a federated sign-in and sends the browser back
// to the join page of its session.
func (h *JoinHandler) FederatedCallback(c *drift.Context) {
	provider := c.Param("provider")

	p, ok := h.providers[provider]
	if !ok {
		renderError(c, "Unsupported sign-in provider.")
		return
	}

	state := c.QueryParam("state")
	if state == "" {
		renderError(c, "Missing sign-in state. Open your invite link again.")
		return
	}

	v, ok := h.states.LoadAndDelete(state)
	if !ok {
		renderError(c, "Sign-in expired. Open your invite link again.")
		return
	}
	sd, ok := v.(federatedState)
	if !ok || time.Now().After(sd.expiresAt) || sd.provider != provider {
		renderError(c, "Sign-in expired. Open your invite link again.")
		return
	}

	if errParam := c.QueryParam("error"); errParam != "" {
		h.redirectToSession(c, sd.sessionID, "Sign-in was cancelled.")
		return
	}

	code := c.QueryParam("code")
	if code == "" {
		h.redirectToSession(c, sd.sessionID, "Sign-in did not complete. Please try again.")
		return
	}

	flow, ok := h.flows.Get(sd.sessionID)
	if !ok {
		renderError(c, "This join session has expired. Open your invite link again.")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	cred, err := p.ExchangeCode(ctx, code)
	if err != nil {
		h.redirectToSession(c, sd.sessionID, "Sign-in failed. Please try again.")
		return
	}

	_, err = flow.SubmitFederated(ctx, *cred)
	h.redirectToSession(c, sd.sessionID, invite.UserMessage(err))
}

func (h *JoinHandler) redirectToSession(c *drift.Context, sessionID uuid.UUID, message string) {
	sessionToken, err := h.jwt.GenerateSessionToken(sessionID)
	if err != nil {
		renderError(c, "Something went wrong. Open your invite link again.")
		return
	}
	renderRedirect(c, h.cfg.BaseURL+"/join?session_token="+sessionToken, message)
}

// flow resolves the join session of the request.
func (h *JoinHandler) flow(c *drift.Context) (*invite.Flow, bool) {
	sessionID := middleware.GetJoinSessionID(c)
	if sessionID == uuid.Nil {
		c.Unauthorized("missing join session")
		return nil, false
	}
	flow, ok := h.flows.Get(sessionID)
	if !ok {
		c.NotFound("join session not found")
		return nil, false
	}
	return flow, true
}

// respond writes the flow state. Errors the flow reports through its state
// are part of a 200 response; ordering violations are conflicts.
func (h *JoinHandler) respond(c *drift.Context, snap invite.Snapshot, err error) {
	status := http.StatusOK
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return
	case errors.Is(err, invite.ErrRedemptionInFlight),
		errors.Is(err, invite.ErrRedemptionLocked),
		errors.Is(err, invite.ErrStepInFlight),
		errors.Is(err, invite.ErrFlowTerminal),
		errors.Is(err, invite.ErrInvalidTransition),
		errors.Is(err, invite.ErrIdentityUnresolved):
		status = http.StatusConflict
	}
	_ = c.JSON(status, stateResponse(snap, err))
}

func stateResponse(snap invite.Snapshot, stepErr error) dto.JoinStateResponse {
	resp := dto.JoinStateResponse{
		State:   string(snap.State),
		Outcome: string(snap.Outcome),
		Mode:    string(snap.Mode),
		TeamID:  snap.TeamID,
		Role:    snap.Role,
		Redemption: dto.RedemptionResponse{
			Attempted: snap.Attempt.Attempted,
			InFlight:  snap.Attempt.InFlight,
			Succeeded: snap.Attempt.Succeeded,
		},
		History: make([]string, 0, len(snap.History)),
	}
	for _, s := range snap.History {
		resp.History = append(resp.History, string(s))
	}

	if snap.Invite != nil {
		resp.Invite = &dto.InviteResponse{
			ID:        snap.Invite.ID,
			Role:      snap.Invite.Role,
			Email:     snap.Invite.Email,
			ExpiresAt: snap.Invite.ExpiresAt,
		}
		if resp.Role == "" {
			resp.Role = snap.Invite.Role
		}
	}
	if snap.Session != nil && snap.Session.UID != "" {
		resp.Identity = &dto.IdentityResponse{
			UID:         snap.Session.UID,
			Email:       snap.Session.Email,
			DisplayName: snap.Session.DisplayName,
			Provider:    snap.Session.ProviderID,
		}
	}

	err := stepErr
	if err == nil {
		err = snap.Err
	}

	switch snap.Outcome {
	case invite.OutcomeSuccess:
		resp.Message = "Welcome to the team!"
		return resp
	case invite.OutcomeSuccessWithWarning:
		resp.Message = "Welcome to the team!"
		resp.Warning = invite.UserMessage(snap.Err)
		return resp
	}

	if err != nil {
		resp.Message = invite.UserMessage(err)
		resp.ErrorKind = string(invite.KindOf(err))
		resp.Retryable = !snap.Terminal() && invite.Retryable(err)
	}
	return resp
}

// persistedStateResponse describes a join session from its audit record. The
// flow itself is gone, so an unfinished session can only be restarted from
// the invite link.
func persistedStateResponse(session *models.JoinSession, events []models.JoinSessionEvent) dto.JoinStateResponse {
	resp := dto.JoinStateResponse{
		State:   session.State,
		Outcome: session.Outcome,
		Mode:    session.Mode,
		History: []string{string(invite.StateIdle)},
	}
	if session.ProID != nil {
		resp.TeamID = *session.ProID
	}
	if session.Role != nil {
		resp.Role = *session.Role
	}
	for _, ev := range events {
		if ev.FromState != ev.ToState {
			resp.History = append(resp.History, ev.ToState)
		}
	}

	switch invite.Outcome(session.Outcome) {
	case invite.OutcomeSuccess, invite.OutcomeSuccessWithWarning:
		resp.Message = "Welcome to the team!"
		resp.Redemption = dto.RedemptionResponse{Attempted: true, Succeeded: true}
	case invite.OutcomeAlreadyClaimed:
		resp.Message = invite.UserMessage(&invite.Error{Kind: invite.KindTokenAlreadyClaimed})
	default:
		resp.Message = "This join session was interrupted. Open your invite link again to continue."
	}
	return resp
}
