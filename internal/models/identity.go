package models

import "time"

// Identity is the profile of an authenticated principal as stored in users/{uid}.
type Identity struct {
	UID         string `json:"uid"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	Role        string `json:"role"`
	TeamID      string `json:"teamId,omitempty"`
}

// Affiliated reports whether the identity belongs to a team.
func (i *Identity) Affiliated() bool {
	return i != nil && i.TeamID != ""
}

// Session holds the credential material of a signed-in principal. It is
// passed explicitly to every step of the join flow.
type Session struct {
	UID          string
	Email        string
	DisplayName  string
	ProviderID   string
	IDToken      string
	RefreshToken string
	ExpiresAt    time.Time
}

func (s *Session) Expired(now time.Time) bool {
	return s.ExpiresAt.IsZero() || !now.Before(s.ExpiresAt)
}

// ProfileFields are written to the new member's profile by the redeem call.
type ProfileFields struct {
	DisplayName string `json:"displayName,omitempty"`
	Phone       string `json:"phone,omitempty"`
}
