package firebase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dimitrije/teamjoin/internal/invite"
	"github.com/dimitrije/teamjoin/internal/models"
)

// Callable function names.
const (
	FnValidateInvite       = "validateInvite"
	FnRedeemInvite         = "redeemInvite"
	FnCreateInvite         = "createInvite"
	FnGetPersistentInvites = "getPersistentInvites"
	FnRemoveTeamMember     = "removeTeamMember"
	FnCleanupOrphanedUsers = "cleanupOrphanedUsers"
	FnFixExistingProUser   = "fixExistingProUser"
)

// CallableError is an error returned by a function in the callable protocol
// error envelope. Status is the canonical code, e.g. "NOT_FOUND".
type CallableError struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func (e *CallableError) Error() string {
	if e.Message == "" {
		return e.Status
	}
	return e.Status + ": " + e.Message
}

// FunctionsClient calls Cloud Functions over the callable HTTPS protocol.
type FunctionsClient struct {
	baseURL string
	http    *http.Client
}

func NewFunctionsClient(baseURL string, timeout time.Duration) *FunctionsClient {
	return &FunctionsClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

type callableResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *CallableError  `json:"error"`
}

// Call invokes fn with data, authenticating with idToken when set, and
// decodes the result into out. Transport failures are wrapped with
// invite.Unavailable; rejections come back as *CallableError.
func (c *FunctionsClient) Call(ctx context.Context, fn, idToken string, data, out any) error {
	payload, err := json.Marshal(map[string]any{"data": data})
	if err != nil {
		return fmt.Errorf("failed to encode %s request: %w", fn, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+fn, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", fn, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if idToken != "" {
		req.Header.Set("Authorization", "Bearer "+idToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return invite.Unavailable(err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return invite.Unavailable(err)
	}

	var envelope callableResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return invite.Unavailable(fmt.Errorf("%s returned status %d", fn, resp.StatusCode))
		}
		return fmt.Errorf("failed to decode %s response: %w", fn, err)
	}

	if envelope.Error != nil {
		switch envelope.Error.Status {
		case "UNAVAILABLE", "DEADLINE_EXCEEDED":
			return invite.Unavailable(envelope.Error)
		}
		return envelope.Error
	}
	if resp.StatusCode != http.StatusOK {
		return invite.Unavailable(fmt.Errorf("%s returned status %d", fn, resp.StatusCode))
	}

	if out == nil || len(envelope.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(envelope.Result, out); err != nil {
		return fmt.Errorf("failed to decode %s result: %w", fn, err)
	}
	return nil
}

type wireInvite struct {
	ID        string          `json:"id"`
	ProID     string          `json:"proId"`
	Role      string          `json:"role"`
	Email     string          `json:"email"`
	ExpiresAt json.RawMessage `json:"expiresAt"`
	Claimed   bool            `json:"claimed"`
	InviteURL string          `json:"inviteUrl"`
}

func (w *wireInvite) record() *models.InviteRecord {
	return &models.InviteRecord{
		ID:        w.ID,
		ProID:     w.ProID,
		Role:      w.Role,
		Email:     strings.ToLower(w.Email),
		ExpiresAt: parseTimestamp(w.ExpiresAt),
		Claimed:   w.Claimed,
	}
}

// parseTimestamp accepts RFC 3339 strings, epoch milliseconds and the
// {_seconds,_nanoseconds} shape Firestore timestamps serialise to.
func parseTimestamp(raw json.RawMessage) time.Time {
	if len(raw) == 0 || string(raw) == "null" {
		return time.Time{}
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		t, _ := time.Parse(time.RFC3339, s)
		return t
	}

	var ms int64
	if err := json.Unmarshal(raw, &ms); err == nil {
		return time.UnixMilli(ms)
	}

	var ts struct {
		Seconds     int64 `json:"_seconds"`
		Nanoseconds int64 `json:"_nanoseconds"`
	}
	if err := json.Unmarshal(raw, &ts); err == nil && ts.Seconds > 0 {
		return time.Unix(ts.Seconds, ts.Nanoseconds)
	}
	return time.Time{}
}

// ValidateInvite implements invite.ValidateAPI.
func (c *FunctionsClient) ValidateInvite(ctx context.Context, token string) (*invite.ValidateResponse, error) {
	var result struct {
		Valid  bool        `json:"valid"`
		Invite *wireInvite `json:"invite"`
		Error  string      `json:"error"`
	}
	err := c.Call(ctx, FnValidateInvite, "", map[string]string{"token": token}, &result)
	if err != nil {
		var callErr *CallableError
		if errors.As(err, &callErr) && !errors.Is(err, invite.ErrUnavailable) {
			return &invite.ValidateResponse{Error: callableReason(callErr)}, nil
		}
		return nil, err
	}

	resp := &invite.ValidateResponse{Valid: result.Valid, Error: result.Error}
	if result.Invite != nil {
		resp.Invite = result.Invite.record()
	}
	return resp, nil
}

// RedeemInvite implements invite.RedeemAPI.
func (c *FunctionsClient) RedeemInvite(ctx context.Context, authProof string, req invite.RedeemRequest) (*invite.RedeemResponse, error) {
	var result invite.RedeemResponse
	err := c.Call(ctx, FnRedeemInvite, authProof, req, &result)
	if err != nil {
		var callErr *CallableError
		if errors.As(err, &callErr) && !errors.Is(err, invite.ErrUnavailable) {
			return &invite.RedeemResponse{Error: callableReason(callErr)}, nil
		}
		return nil, err
	}
	return &result, nil
}

// callableReason keeps the canonical status for codes that carry the
// meaning themselves, and the function's message otherwise.
func callableReason(e *CallableError) string {
	switch e.Status {
	case "UNAUTHENTICATED", "PERMISSION_DENIED", "NOT_FOUND":
		return strings.ToLower(e.Status)
	}
	if e.Message != "" {
		return e.Message
	}
	return strings.ToLower(e.Status)
}

type CreateInviteResult struct {
	InviteURL        string `json:"inviteUrl"`
	RemainingInvites int    `json:"remainingInvites"`
}

func (c *FunctionsClient) CreateInvite(ctx context.Context, idToken, role, email string) (*CreateInviteResult, error) {
	data := map[string]string{"role": role}
	if email != "" {
		data["email"] = email
	}
	var result CreateInviteResult
	if err := c.Call(ctx, FnCreateInvite, idToken, data, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *FunctionsClient) GetPersistentInvites(ctx context.Context, idToken string) ([]models.PersistentInvite, error) {
	var result struct {
		Invites []wireInvite `json:"invites"`
	}
	if err := c.Call(ctx, FnGetPersistentInvites, idToken, map[string]any{}, &result); err != nil {
		return nil, err
	}

	invites := make([]models.PersistentInvite, 0, len(result.Invites))
	for _, w := range result.Invites {
		invites = append(invites, models.PersistentInvite{
			ID:        w.ID,
			Role:      w.Role,
			InviteURL: w.InviteURL,
			Email:     w.Email,
			Claimed:   w.Claimed,
			ExpiresAt: parseTimestamp(w.ExpiresAt),
		})
	}
	return invites, nil
}

func (c *FunctionsClient) RemoveTeamMember(ctx context.Context, idToken, memberID string) error {
	var result struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	if err := c.Call(ctx, FnRemoveTeamMember, idToken, map[string]string{"memberId": memberID}, &result); err != nil {
		return err
	}
	if !result.Success {
		return &CallableError{Status: "FAILED_PRECONDITION", Message: result.Error}
	}
	return nil
}

type CleanupResult struct {
	DeletedCount int      `json:"deletedCount"`
	DeletedUIDs  []string `json:"deletedUids"`
}

func (c *FunctionsClient) CleanupOrphanedUsers(ctx context.Context, idToken string) (*CleanupResult, error) {
	var result CleanupResult
	if err := c.Call(ctx, FnCleanupOrphanedUsers, idToken, map[string]any{}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

type FixProUserResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func (c *FunctionsClient) FixExistingProUser(ctx context.Context, idToken, email string) (*FixProUserResult, error) {
	var result FixProUserResult
	if err := c.Call(ctx, FnFixExistingProUser, idToken, map[string]string{"email": email}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
