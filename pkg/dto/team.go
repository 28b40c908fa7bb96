package dto

import "time"

type CreateInviteRequest struct {
	Role  string `json:"role"`
	Email string `json:"email"`
}

type CreateInviteResponse struct {
	InviteURL        string `json:"invite_url"`
	RemainingInvites int    `json:"remaining_invites"`
	Emailed          bool   `json:"emailed"`
}

type PersistentInviteResponse struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	InviteURL string    `json:"invite_url"`
	Email     string    `json:"email,omitempty"`
	Claimed   bool      `json:"claimed"`
	ExpiresAt time.Time `json:"expires_at"`
}

type PersistentInvitesResponse struct {
	Invites []PersistentInviteResponse `json:"invites"`
}
