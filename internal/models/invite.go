package models

import (
	"strings"
	"time"
)

// Team roles. PRO owns a team; STAFF and ATHLETE join one through an invite.
const (
	RolePro     = "PRO"
	RoleStaff   = "STAFF"
	RoleAthlete = "ATHLETE"
)

// InviteRecord is the server-side invite a token refers to.
type InviteRecord struct {
	ID        string    `json:"id"`
	ProID     string    `json:"proId"`
	Role      string    `json:"role"`
	Email     string    `json:"email,omitempty"`
	ExpiresAt time.Time `json:"expiresAt"`
	Claimed   bool      `json:"claimed"`

	// Token is the bearer token the record was validated with.
	Token string `json:"-"`
}

func (i *InviteRecord) IsExpired(now time.Time) bool {
	return !i.ExpiresAt.IsZero() && !now.Before(i.ExpiresAt)
}

// AllowsEmail reports whether email may redeem the invite. Invites without
// an email restriction accept any address.
func (i *InviteRecord) AllowsEmail(email string) bool {
	return i.Email == "" || strings.EqualFold(strings.TrimSpace(i.Email), strings.TrimSpace(email))
}

func IsInvitableRole(role string) bool {
	return role == RoleStaff || role == RoleAthlete
}

// PersistentInvite is a reusable team invite link as listed for the team owner.
type PersistentInvite struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	InviteURL string    `json:"inviteUrl"`
	Email     string    `json:"email,omitempty"`
	Claimed   bool      `json:"claimed"`
	ExpiresAt time.Time `json:"expiresAt"`
}
