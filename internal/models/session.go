package models

import (
	"time"

	"github.com/google/uuid"
)

// JoinSession is the persisted audit record of one invite-redemption flow.
type JoinSession struct {
	ID        uuid.UUID `json:"id"`
	TokenHash string    `json:"-"`
	State     string    `json:"state"`
	Mode      string    `json:"mode,omitempty"`
	Outcome   string    `json:"outcome,omitempty"`
	InviteID  *string   `json:"invite_id,omitempty"`
	ProID     *string   `json:"pro_id,omitempty"`
	Role      *string   `json:"role,omitempty"`
	UID       *string   `json:"uid,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

type JoinSessionEvent struct {
	ID        uuid.UUID `json:"id"`
	SessionID uuid.UUID `json:"session_id"`
	FromState string    `json:"from_state"`
	ToState   string    `json:"to_state"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
