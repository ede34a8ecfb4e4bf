// mockissuer/server_test.go
package mockissuer

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/deploymenttheory/go-api-http-session/credential"
	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type grantBody struct {
	Token        string              `json:"token"`
	RefreshToken string              `json:"refreshToken"`
	User         credential.Identity `json:"user"`
	Message      string              `json:"message"`
}

func newTestServer(t *testing.T, opts ...Option) (*Server, http.Handler, clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Unix(1700000000, 0))
	srv, err := New(append([]Option{WithClock(clock)}, opts...)...)
	require.NoError(t, err)
	return srv, srv.Handler("/api"), clock
}

func do(t *testing.T, h http.Handler, method, path, body, token string) (*httptest.ResponseRecorder, grantBody) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out grantBody
	if rec.Body.Len() > 0 {
		_ = json.NewDecoder(bytes.NewReader(rec.Body.Bytes())).Decode(&out)
	}
	return rec, out
}

func TestLogin(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantMsg    string
	}{
		{"valid credentials", `{"email":"test@example.com","password":"password123"}`, http.StatusOK, ""},
		{"wrong password", `{"email":"test@example.com","password":"nope"}`, http.StatusUnauthorized, "Invalid email or password"},
		{"unknown user", `{"email":"who@example.com","password":"password123"}`, http.StatusUnauthorized, "Invalid email or password"},
		{"missing password", `{"email":"test@example.com"}`, http.StatusBadRequest, "Email and password required"},
		{"empty body", ``, http.StatusBadRequest, "Email and password required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, h, clock := newTestServer(t)
			rec, out := do(t, h, http.MethodPost, "/api/auth/login", tt.body, "")

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantMsg, out.Message)
			if tt.wantStatus != http.StatusOK {
				return
			}

			assert.Equal(t, credential.Identity{ID: "1", Email: "test@example.com", DisplayName: "Test User"}, out.User)
			assert.Equal(t, "refresh-1-1700000000000", out.RefreshToken)

			claims, err := credential.Decode(out.Token)
			require.NoError(t, err)
			assert.Equal(t, "1", claims.Subject)
			assert.Equal(t, clock.Now().Add(time.Hour).Unix(), claims.ExpiresAt.Unix())
			assert.Equal(t, clock.Now().Unix(), claims.IssuedAt.Unix())
		})
	}
}

func TestRegister(t *testing.T) {
	srv, h, _ := newTestServer(t)

	rec, out := do(t, h, http.MethodPost, "/api/auth/register", `{"name":"Ada","email":"ada@example.com","password":"secret1"}`, "")
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "ada@example.com", out.User.Email)
	assert.Equal(t, "Ada", out.User.DisplayName)
	assert.NotEmpty(t, out.User.ID)
	assert.NotEqual(t, "1", out.User.ID)

	rec, out = do(t, h, http.MethodPost, "/api/auth/register", `{"name":"Ada","email":"ada@example.com","password":"secret1"}`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Email already exists", out.Message)

	rec, out = do(t, h, http.MethodPost, "/api/auth/register", `{"email":"bob@example.com","password":"secret1"}`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "All fields required", out.Message)

	rec, _ = do(t, h, http.MethodPost, "/api/auth/login", `{"email":"ada@example.com","password":"secret1"}`, "")
	assert.Equal(t, http.StatusOK, rec.Code, "registered accounts can log in")
	assert.Equal(t, int64(3), srv.Stats().Register)
}

func TestRefresh(t *testing.T) {
	_, h, clock := newTestServer(t)
	_, login := do(t, h, http.MethodPost, "/api/auth/login", `{"email":"test@example.com","password":"password123"}`, "")

	clock.Advance(time.Minute)
	rec, out := do(t, h, http.MethodPost, "/api/auth/refresh", `{"refreshToken":"`+login.RefreshToken+`"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEqual(t, login.Token, out.Token)
	assert.Equal(t, "refresh-1-1700000060000", out.RefreshToken)
	assert.Equal(t, "1", out.User.ID)

	for name, body := range map[string]string{
		"missing":         `{}`,
		"unknown subject": `{"refreshToken":"refresh-42-1"}`,
		"garbage":         `{"refreshToken":"garbage"}`,
	} {
		t.Run(name, func(t *testing.T) {
			rec, _ := do(t, h, http.MethodPost, "/api/auth/refresh", body, "")
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestLogoutRevokesRenewalCredential(t *testing.T) {
	srv, h, _ := newTestServer(t)
	_, login := do(t, h, http.MethodPost, "/api/auth/login", `{"email":"test@example.com","password":"password123"}`, "")

	rec, _ := do(t, h, http.MethodPost, "/api/auth/logout", `{"refreshToken":"`+login.RefreshToken+`"}`, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec, out := do(t, h, http.MethodPost, "/api/auth/refresh", `{"refreshToken":"`+login.RefreshToken+`"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid refresh token", out.Message)
	assert.Equal(t, int64(1), srv.Stats().Logout)
}

func TestForgot(t *testing.T) {
	_, h, _ := newTestServer(t)

	for _, email := range []string{"test@example.com", "nobody@example.com"} {
		rec, out := do(t, h, http.MethodPost, "/api/auth/forgot", `{"email":"`+email+`"}`, "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, ForgotPasswordMessage, out.Message, "answer does not reveal whether %s exists", email)
	}

	rec, out := do(t, h, http.MethodPost, "/api/auth/forgot", `{}`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Email required", out.Message)
}

func TestMe(t *testing.T) {
	srv, h, clock := newTestServer(t)
	_, login := do(t, h, http.MethodPost, "/api/auth/login", `{"email":"test@example.com","password":"password123"}`, "")

	rec, _ := do(t, h, http.MethodGet, "/api/me", "", login.Token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "3600", rec.Header().Get("X-Token-Expires-In"))

	rec, _ = do(t, h, http.MethodGet, "/api/me", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	srv.RejectIssuedCredentials()
	rec, _ = do(t, h, http.MethodGet, "/api/me", "", login.Token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "rejected credentials fail before expiry")

	_, renewed := do(t, h, http.MethodPost, "/api/auth/refresh", `{"refreshToken":"`+login.RefreshToken+`"}`, "")
	rec, _ = do(t, h, http.MethodGet, "/api/me", "", renewed.Token)
	assert.Equal(t, http.StatusOK, rec.Code, "credentials issued afterwards are accepted")

	clock.Advance(time.Hour)
	rec, _ = do(t, h, http.MethodGet, "/api/me", "", renewed.Token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRateLimit(t *testing.T) {
	_, h, _ := newTestServer(t, WithRateLimit(rate.Every(time.Hour), 1))

	rec, _ := do(t, h, http.MethodPost, "/api/auth/forgot", `{"email":"a@example.com"}`, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, out := do(t, h, http.MethodPost, "/api/auth/login", `{"email":"test@example.com","password":"password123"}`, "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "Rate limit exceeded", out.Message)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))

	rec, _ = do(t, h, http.MethodPost, "/api/auth/refresh", `{"refreshToken":"refresh-1-0"}`, "")
	assert.Equal(t, http.StatusOK, rec.Code, "refresh is not rate limited")
}
