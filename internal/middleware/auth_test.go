package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dimitrije/teamjoin/internal/firebase"
	"github.com/m1z23r/drift/pkg/drift"
	"github.com/stretchr/testify/assert"
)

type stubVerifier struct {
	principal *firebase.Principal
	err       error
	got       string
}

func (s *stubVerifier) VerifyIDToken(ctx context.Context, idToken string) (*firebase.Principal, error) {
	s.got = idToken
	return s.principal, s.err
}

func newProtectedApp(verifier TokenVerifier, handler drift.HandlerFunc) http.Handler {
	app := drift.New()
	app.Use(Auth(verifier))
	app.Get("/protected", handler)
	return app
}

func okHandler(c *drift.Context) {
	_ = c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func TestAuth_MissingAuthorizationHeader(t *testing.T) {
	app := newProtectedApp(&stubVerifier{}, okHandler)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	rec := httptest.NewRecorder()

	app.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "missing authorization header")
}

func TestAuth_InvalidAuthorizationFormat(t *testing.T) {
	app := newProtectedApp(&stubVerifier{}, okHandler)

	for _, header := range []string{"Token some-token", "Bearer", "Bearer "} {
		t.Run(header, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			req.Header.Set("Authorization", header)
			rec := httptest.NewRecorder()

			app.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Contains(t, rec.Body.String(), "invalid authorization header format")
		})
	}
}

func TestAuth_InvalidToken(t *testing.T) {
	app := newProtectedApp(&stubVerifier{err: errors.New("token expired")}, okHandler)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer invalid-token")
	rec := httptest.NewRecorder()

	app.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid or expired token")
}

func TestAuth_ValidToken(t *testing.T) {
	verifier := &stubVerifier{principal: &firebase.Principal{
		UID:   "pro-1",
		Email: "pro@example.com",
		Role:  "PRO",
	}}

	var uid, email, role, idToken string
	app := newProtectedApp(verifier, func(c *drift.Context) {
		uid = GetUserID(c)
		email = GetUserEmail(c)
		role = GetUserRole(c)
		idToken = GetIDToken(c)
		okHandler(c)
	})

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer owner-token")
	rec := httptest.NewRecorder()

	app.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "owner-token", verifier.got)
	assert.Equal(t, "pro-1", uid)
	assert.Equal(t, "pro@example.com", email)
	assert.Equal(t, "PRO", role)
	assert.Equal(t, "owner-token", idToken)
}

func TestAuth_BearerCaseInsensitive(t *testing.T) {
	app := newProtectedApp(&stubVerifier{principal: &firebase.Principal{UID: "pro-1"}}, okHandler)

	for _, bearer := range []string{"bearer", "BEARER", "BeArEr"} {
		t.Run(bearer, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			req.Header.Set("Authorization", bearer+" token")
			rec := httptest.NewRecorder()

			app.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusOK, rec.Code)
		})
	}
}

func TestGetUserID_NotSet(t *testing.T) {
	app := drift.New()

	extracted := "unset"
	app.Get("/test", func(c *drift.Context) {
		extracted = GetUserID(c)
		_ = c.JSON(http.StatusOK, nil)
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	rec := httptest.NewRecorder()

	app.ServeHTTP(rec, req)

	assert.Equal(t, "", extracted)
}
