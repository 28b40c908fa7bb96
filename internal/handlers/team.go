package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/badoux/checkmail"
	"github.com/dimitrije/teamjoin/internal/firebase"
	"github.com/dimitrije/teamjoin/internal/invite"
	"github.com/dimitrije/teamjoin/internal/logging"
	"github.com/dimitrije/teamjoin/internal/middleware"
	"github.com/dimitrije/teamjoin/internal/models"
	"github.com/dimitrije/teamjoin/pkg/dto"
	"github.com/m1z23r/drift/pkg/drift"
)

// TeamHandler exposes the owner side of invites. Authorization is enforced
// by the functions themselves with the owner's ID token.
type TeamHandler struct {
	functions    TeamFunctionsInterface
	emailService EmailServiceInterface
}

func NewTeamHandler(functions TeamFunctionsInterface, emailService EmailServiceInterface) *TeamHandler {
	return &TeamHandler{
		functions:    functions,
		emailService: emailService,
	}
}

func (h *TeamHandler) CreateInvite(c *drift.Context) {
	var req dto.CreateInviteRequest
	if err := c.BindJSON(&req); err != nil {
		c.BadRequest("invalid request body")
		return
	}

	role := strings.ToUpper(strings.TrimSpace(req.Role))
	if !models.IsInvitableRole(role) {
		c.BadRequest("role must be STAFF or ATHLETE")
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email != "" {
		if err := checkmail.ValidateFormat(email); err != nil {
			c.BadRequest("invalid email")
			return
		}
	}

	result, err := h.functions.CreateInvite(c.Request.Context(), middleware.GetIDToken(c), role, email)
	if err != nil {
		h.functionError(c, err, "failed to create invite")
		return
	}

	resp := dto.CreateInviteResponse{
		InviteURL:        result.InviteURL,
		RemainingInvites: result.RemainingInvites,
	}

	if email != "" && h.emailService.IsConfigured() {
		if err := h.emailService.SendInvite(email, role, middleware.GetUserEmail(c), result.InviteURL); err != nil {
			logging.LogError("invite_email", err, map[string]interface{}{
				"owner": middleware.GetUserID(c),
			})
		} else {
			resp.Emailed = true
		}
	}

	_ = c.JSON(http.StatusCreated, resp)
}

func (h *TeamHandler) ListInvites(c *drift.Context) {
	invites, err := h.functions.GetPersistentInvites(c.Request.Context(), middleware.GetIDToken(c))
	if err != nil {
		h.functionError(c, err, "failed to list invites")
		return
	}

	resp := dto.PersistentInvitesResponse{
		Invites: make([]dto.PersistentInviteResponse, 0, len(invites)),
	}
	for _, inv := range invites {
		resp.Invites = append(resp.Invites, dto.PersistentInviteResponse{
			ID:        inv.ID,
			Role:      inv.Role,
			InviteURL: inv.InviteURL,
			Email:     inv.Email,
			Claimed:   inv.Claimed,
			ExpiresAt: inv.ExpiresAt,
		})
	}

	_ = c.JSON(http.StatusOK, resp)
}

func (h *TeamHandler) RemoveMember(c *drift.Context) {
	memberID := strings.TrimSpace(c.Param("memberId"))
	if memberID == "" {
		c.BadRequest("member id is required")
		return
	}

	if err := h.functions.RemoveTeamMember(c.Request.Context(), middleware.GetIDToken(c), memberID); err != nil {
		h.functionError(c, err, "failed to remove member")
		return
	}

	_ = c.JSON(http.StatusOK, map[string]string{"message": "member removed"})
}

// functionError maps a callable rejection to the matching HTTP status.
func (h *TeamHandler) functionError(c *drift.Context, err error, fallback string) {
	if errors.Is(err, invite.ErrUnavailable) {
		c.BadGateway("team service unavailable")
		return
	}

	var callErr *firebase.CallableError
	if !errors.As(err, &callErr) {
		logging.LogError("team_function", err, nil)
		c.InternalServerError(fallback)
		return
	}

	message := callErr.Message
	if message == "" {
		message = fallback
	}

	switch callErr.Status {
	case "UNAUTHENTICATED":
		c.Unauthorized(message)
	case "PERMISSION_DENIED":
		c.Forbidden(message)
	case "NOT_FOUND":
		c.NotFound(message)
	case "INVALID_ARGUMENT", "FAILED_PRECONDITION", "ALREADY_EXISTS", "OUT_OF_RANGE":
		c.BadRequest(message)
	case "RESOURCE_EXHAUSTED":
		_ = c.JSON(http.StatusTooManyRequests, map[string]string{"error": message})
	default:
		logging.LogError("team_function", err, nil)
		c.InternalServerError(fallback)
	}
}
