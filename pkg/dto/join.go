package dto

import "time"

type StartJoinRequest struct {
	Token string `json:"token"`
}

// JoinSessionResponse is returned when a join flow starts. SessionToken must
// accompany every later request of the flow.
type JoinSessionResponse struct {
	SessionToken string            `json:"session_token"`
	ExpiresIn    int64             `json:"expires_in"`
	State        JoinStateResponse `json:"state"`
}

type InviteResponse struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Email     string    `json:"email,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
}

type IdentityResponse struct {
	UID         string `json:"uid"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name,omitempty"`
	Provider    string `json:"provider,omitempty"`
}

type RedemptionResponse struct {
	Attempted bool `json:"attempted"`
	InFlight  bool `json:"in_flight"`
	Succeeded bool `json:"succeeded"`
}

type JoinStateResponse struct {
	State      string             `json:"state"`
	Outcome    string             `json:"outcome,omitempty"`
	Mode       string             `json:"mode,omitempty"`
	Invite     *InviteResponse    `json:"invite,omitempty"`
	Identity   *IdentityResponse  `json:"identity,omitempty"`
	TeamID     string             `json:"team_id,omitempty"`
	Role       string             `json:"role,omitempty"`
	Message    string             `json:"message,omitempty"`
	Warning    string             `json:"warning,omitempty"`
	ErrorKind  string             `json:"error_kind,omitempty"`
	Retryable  bool               `json:"retryable"`
	Redemption RedemptionResponse `json:"redemption"`
	History    []string           `json:"history"`
}

// IdentityRequest submits one identity step. Mode "already_authenticated"
// carries IDToken and RefreshToken; the password modes carry the form
// fields.
type IdentityRequest struct {
	Mode         string `json:"mode"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	Password     string `json:"password"`
	Phone        string `json:"phone"`
	IDToken      string `json:"id_token"`
	RefreshToken string `json:"refresh_token"`
}

type ProfileRequest struct {
	DisplayName string `json:"display_name"`
	Phone       string `json:"phone"`
}

type RedeemRequest struct {
	Profile ProfileRequest `json:"profile"`
}
