package invite

import (
	"errors"
	"fmt"
)

// Kind classifies a failure of the join flow.
type Kind string

const (
	KindTokenInvalid          Kind = "token_invalid"
	KindTokenAlreadyClaimed   Kind = "token_already_claimed"
	KindCredentialConflict    Kind = "credential_conflict"
	KindAuthorizationFailed   Kind = "authorization_failed"
	KindNetwork               Kind = "network_error"
	KindReconciliationTimeout Kind = "reconciliation_timeout"
	KindEmailMismatch         Kind = "email_mismatch"
	KindInvalidInput          Kind = "invalid_input"
	KindUnknown               Kind = "unknown"
)

// Reasons refining a Kind.
const (
	ReasonMissingToken    = "missing_token"
	ReasonMalformedToken  = "malformed_token"
	ReasonExpired         = "expired"
	ReasonAlreadyClaimed  = "already_claimed"
	ReasonNotFound        = "not_found"
	ReasonNetworkError    = "network_error"
	ReasonInvalidToken    = "invalid_token"
	ReasonEmailExists     = "email_exists"
	ReasonAccountNotFound = "account_not_found"
	ReasonWrongPassword   = "wrong_password"
)

// Error is the typed failure returned by every step of the flow.
type Error struct {
	Kind   Kind
	Reason string
	Err    error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error of the same kind. A target with a Reason also
// requires the reason to match.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Reason == "" || t.Reason == e.Reason
}

func newError(kind Kind, reason string, err error) *Error {
	return &Error{Kind: kind, Reason: reason, Err: err}
}

var (
	ErrRedemptionInFlight = errors.New("redemption already in flight")
	ErrIdentityUnresolved = errors.New("identity has no confirmed credential")
	ErrFlowTerminal       = errors.New("join flow already finished")
	ErrInvalidTransition  = errors.New("operation not allowed in current state")
	ErrStepInFlight       = errors.New("another step is in progress")

	// ErrRedemptionLocked means another flow holds the redemption lock for
	// the same invite and identity.
	ErrRedemptionLocked = errors.New("redemption locked by another session")
)

// Errors returned by identity provider adapters.
var (
	ErrEmailExists        = errors.New("email already registered")
	ErrAccountNotFound    = errors.New("account not found")
	ErrWrongPassword      = errors.New("wrong password")
	ErrInvalidCredentials = errors.New("invalid login credentials")
	ErrWeakPassword       = errors.New("password too weak")
	ErrSessionRevoked     = errors.New("session revoked or expired")
)

// ErrUnavailable wraps transport failures talking to a collaborator.
var ErrUnavailable = errors.New("collaborator unavailable")

// Unavailable wraps err so that the flow classifies it as a network error.
func Unavailable(err error) error {
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

// KindOf returns the Kind of err, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, ErrUnavailable) {
		return KindNetwork
	}
	return KindUnknown
}

// Retryable reports whether re-invoking the failed step may succeed.
func Retryable(err error) bool {
	if err == nil || errors.Is(err, ErrRedemptionInFlight) || errors.Is(err, ErrStepInFlight) || errors.Is(err, ErrFlowTerminal) {
		return false
	}
	switch KindOf(err) {
	case KindNetwork, KindUnknown, KindAuthorizationFailed:
		return true
	}
	return false
}

// UserMessage maps err to the message shown to the person joining.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrRedemptionInFlight), errors.Is(err, ErrStepInFlight):
		return "Your request is already being processed."
	case errors.Is(err, ErrRedemptionLocked):
		return "This invite is being redeemed in another window. Wait a moment and try again."
	case errors.Is(err, ErrFlowTerminal):
		return "This invite flow has finished. Open the invite link again to start over."
	case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrIdentityUnresolved):
		return "Please sign in or create your account before joining the team."
	}

	var e *Error
	if !errors.As(err, &e) {
		if errors.Is(err, ErrUnavailable) {
			return "We could not reach the server. Check your connection and try again."
		}
		return "Something went wrong. Please try again."
	}

	switch e.Kind {
	case KindTokenInvalid:
		switch e.Reason {
		case ReasonMissingToken:
			return "No invite token was provided. Use the full link from your invite."
		case ReasonExpired:
			return "This invite has expired. Ask your coach for a new invite link."
		}
		return "This invite link is not valid. Ask your coach for a new invite link."
	case KindTokenAlreadyClaimed:
		return "This invite has already been used. If you accepted it earlier, sign in normally to reach your team dashboard."
	case KindCredentialConflict:
		if e.Reason == ReasonEmailExists {
			return "An account with this email already exists. Sign in with your password instead."
		}
		return "No account exists for this email. Create a new account to continue."
	case KindAuthorizationFailed:
		if e.Reason == ReasonWrongPassword {
			return "Incorrect email or password."
		}
		return "Your sign-in could not be verified. Please sign in again and retry."
	case KindNetwork:
		return "We could not reach the server. Check your connection and try again."
	case KindReconciliationTimeout:
		return "You have joined the team. Your dashboard may take a moment to update."
	case KindEmailMismatch:
		return "This invite was sent to a different email address. Sign in with the invited email."
	case KindInvalidInput:
		if e.Reason != "" {
			return e.Reason
		}
		return "Please check the form and try again."
	case KindUnknown:
		if e.Reason != "" {
			return "Could not join the team: " + e.Reason
		}
	}
	return "Something went wrong. Please try again."
}
