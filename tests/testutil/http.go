package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dimitrije/teamjoin/internal/services"
	"github.com/google/uuid"
)

// SessionHeader carries the join session token on join API requests.
const SessionHeader = "X-Join-Session"

// TestJWTService signs join session tokens with a fixed test secret.
func TestJWTService() *services.JWTService {
	return services.NewJWTService("test-secret-key-for-testing-only", 30*time.Minute)
}

// GenerateSessionToken signs a join session token for sessionID.
func GenerateSessionToken(t *testing.T, sessionID uuid.UUID) string {
	t.Helper()
	token, err := TestJWTService().GenerateSessionToken(sessionID)
	if err != nil {
		t.Fatalf("failed to generate session token: %v", err)
	}
	return token
}

// HTTPTestClient drives a handler in-process. Clients returned by AsOwner
// and InSession attach their credential to every request.
type HTTPTestClient struct {
	t       *testing.T
	handler http.Handler
	headers http.Header
}

func NewHTTPTestClient(t *testing.T, handler http.Handler) *HTTPTestClient {
	return &HTTPTestClient{t: t, handler: handler, headers: http.Header{}}
}

// AsOwner returns a client that sends idToken as the owner's bearer token.
func (c *HTTPTestClient) AsOwner(idToken string) *HTTPTestClient {
	return c.with("Authorization", "Bearer "+idToken)
}

// InSession returns a client bound to a join session token.
func (c *HTTPTestClient) InSession(sessionToken string) *HTTPTestClient {
	return c.with(SessionHeader, sessionToken)
}

func (c *HTTPTestClient) with(key, value string) *HTTPTestClient {
	h := c.headers.Clone()
	h.Set(key, value)
	return &HTTPTestClient{t: c.t, handler: c.handler, headers: h}
}

// Do sends method to path with body encoded as JSON when non-nil.
func (c *HTTPTestClient) Do(method, path string, body any) *httptest.ResponseRecorder {
	c.t.Helper()

	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			c.t.Fatalf("failed to marshal request body: %v", err)
		}
		r = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range c.headers {
		req.Header[k] = v
	}

	rec := httptest.NewRecorder()
	c.handler.ServeHTTP(rec, req)
	return rec
}

func (c *HTTPTestClient) Get(path string) *httptest.ResponseRecorder {
	return c.Do(http.MethodGet, path, nil)
}

func (c *HTTPTestClient) Post(path string, body any) *httptest.ResponseRecorder {
	return c.Do(http.MethodPost, path, body)
}

func (c *HTTPTestClient) Delete(path string) *httptest.ResponseRecorder {
	return c.Do(http.MethodDelete, path, nil)
}

// DecodeJSON decodes the recorded body into a T.
func DecodeJSON[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("failed to decode response body %q: %v", rec.Body.String(), err)
	}
	return v
}

// AssertStatus fails the test when the recorded status differs from want.
func AssertStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Errorf("expected status %d, got %d. Body: %s", want, rec.Code, rec.Body.String())
	}
}
