// Package invite implements the invite-redemption flow: token validation,
// identity resolution, the redemption call and reconciliation of the
// redeemed identity's team affiliation.
package invite

import (
	"context"
	"slices"
	"strings"
	"time"
	"unicode"

	"github.com/dimitrije/teamjoin/internal/models"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("github.com/dimitrije/teamjoin/internal/invite")

// ValidateResponse is the payload of the validateInvite function.
type ValidateResponse struct {
	Valid  bool                 `json:"valid"`
	Invite *models.InviteRecord `json:"invite,omitempty"`
	Error  string               `json:"error,omitempty"`
}

// ValidateAPI is the external invite validation endpoint.
type ValidateAPI interface {
	ValidateInvite(ctx context.Context, token string) (*ValidateResponse, error)
}

// ValidationResult is either Valid(invite) or Invalid(reason).
type ValidationResult struct {
	Invite *models.InviteRecord
	Reason string
}

func (r ValidationResult) Valid() bool {
	return r.Invite != nil && r.Reason == ""
}

// Err returns the typed error for an invalid result, nil when valid.
func (r ValidationResult) Err() error {
	switch {
	case r.Valid():
		return nil
	case r.Reason == ReasonAlreadyClaimed:
		return newError(KindTokenAlreadyClaimed, r.Reason, nil)
	case r.Reason == ReasonNetworkError:
		return newError(KindNetwork, r.Reason, nil)
	default:
		return newError(KindTokenInvalid, r.Reason, nil)
	}
}

type Validator struct {
	api ValidateAPI
	now func() time.Time
}

func NewValidator(api ValidateAPI) *Validator {
	return &Validator{api: api, now: time.Now}
}

// Validate classifies token. It keeps no state, so repeated calls with the
// same token return the same classification until the invite itself changes.
func (v *Validator) Validate(ctx context.Context, token string) ValidationResult {
	token = strings.TrimSpace(token)
	if token == "" {
		return ValidationResult{Reason: ReasonMissingToken}
	}

	ctx, span := tracer.Start(ctx, "invite.Validate")
	defer span.End()

	resp, err := v.api.ValidateInvite(ctx, token)
	if err != nil {
		span.RecordError(err)
		return ValidationResult{Reason: ReasonNetworkError}
	}

	result := v.classify(resp)
	if result.Valid() {
		inv := *result.Invite
		inv.Token = token
		result.Invite = &inv
	}
	span.SetAttributes(attribute.Bool("invite.valid", result.Valid()), attribute.String("invite.reason", result.Reason))
	return result
}

func (v *Validator) classify(resp *ValidateResponse) ValidationResult {
	if resp == nil {
		return ValidationResult{Reason: ReasonMalformedToken}
	}
	if !resp.Valid {
		return ValidationResult{Reason: ClassifyInviteError(resp.Error)}
	}
	if resp.Invite == nil || resp.Invite.ProID == "" {
		return ValidationResult{Reason: ReasonMalformedToken}
	}
	if resp.Invite.Claimed {
		return ValidationResult{Reason: ReasonAlreadyClaimed}
	}
	if resp.Invite.IsExpired(v.now()) {
		return ValidationResult{Reason: ReasonExpired}
	}
	return ValidationResult{Invite: resp.Invite}
}

// ClassifyInviteError normalises an error string from the invite functions
// into one of the validation reasons.
func ClassifyInviteError(msg string) string {
	words := codeWords(msg)
	switch {
	case len(words) == 0:
		return ReasonMalformedToken
	case hasCode(words, "claimed", "already_used"):
		return ReasonAlreadyClaimed
	case hasCode(words, "expired"):
		return ReasonExpired
	case hasCode(words, "not_found"):
		return ReasonNotFound
	}
	return ReasonMalformedToken
}

// codeWords splits an error code or message into lower case words.
func codeWords(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// hasCode reports whether any of codes appears in words as a run of whole
// words. Codes use underscores between words, so "not_found" matches
// "Invite not found" and "NOT_FOUND" but "claimed" does not match
// "unclaimed".
func hasCode(words []string, codes ...string) bool {
	for _, code := range codes {
		want := strings.Split(code, "_")
		for i := 0; i+len(want) <= len(words); i++ {
			if slices.Equal(words[i:i+len(want)], want) {
				return true
			}
		}
	}
	return false
}
