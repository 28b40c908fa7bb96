package middleware

import (
	"github.com/google/uuid"
	"github.com/m1z23r/drift/pkg/drift"
)

const (
	JoinSessionIDKey = "join_session_id"

	// JoinSessionHeader carries the join session token. Requests that cannot
	// set headers, like EventSource and redirects, use the session_token
	// query parameter.
	JoinSessionHeader = "X-Join-Session"
)

// SessionTokenValidator resolves a join session token to its session id.
type SessionTokenValidator interface {
	ValidateSessionToken(token string) (uuid.UUID, error)
}

// JoinSession authenticates requests that continue a join flow.
func JoinSession(validator SessionTokenValidator) drift.HandlerFunc {
	return func(c *drift.Context) {
		token := c.GetHeader(JoinSessionHeader)
		if token == "" {
			token = c.QueryParam("session_token")
		}
		if token == "" {
			c.Unauthorized("missing join session")
			return
		}

		sessionID, err := validator.ValidateSessionToken(token)
		if err != nil {
			c.Unauthorized("invalid or expired join session")
			return
		}

		c.Set(JoinSessionIDKey, sessionID)
		c.Next()
	}
}

func GetJoinSessionID(c *drift.Context) uuid.UUID {
	if id, ok := c.Get(JoinSessionIDKey); ok {
		if sid, ok := id.(uuid.UUID); ok {
			return sid
		}
	}
	return uuid.Nil
}
