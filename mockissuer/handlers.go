// mockissuer/handlers.go
package mockissuer

import (
	"net/http"
	"strconv"

	"github.com/bwmarrin/snowflake"
	"github.com/deploymenttheory/go-api-http-session/credential"
	"github.com/deploymenttheory/go-api-http-session/headers"
	"github.com/gin-gonic/gin"
)

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type registerRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type forgotRequest struct {
	Email string `json:"email" binding:"required"`
}

// Login answers POST /auth/login.
func (s *Server) Login(c *gin.Context) {
	s.calls.login.Add(1)

	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, http.StatusBadRequest, "Email and password required")
		return
	}

	s.mu.Lock()
	acct, ok := s.byEmail[req.Email]
	s.mu.Unlock()
	if !ok || acct.password != req.Password {
		s.fail(c, http.StatusUnauthorized, "Invalid email or password")
		return
	}

	s.respondGrant(c, http.StatusOK, acct.Identity)
}

// Register answers POST /auth/register.
func (s *Server) Register(c *gin.Context) {
	s.calls.register.Add(1)

	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, http.StatusBadRequest, "All fields required")
		return
	}

	s.mu.Lock()
	if _, exists := s.byEmail[req.Email]; exists {
		s.mu.Unlock()
		s.fail(c, http.StatusBadRequest, "Email already exists")
		return
	}
	acct := &account{
		Identity: credential.Identity{ID: s.node.Generate().String(), Email: req.Email, DisplayName: req.Name},
		password: req.Password,
	}
	s.addAccount(acct)
	s.mu.Unlock()

	s.respondGrant(c, http.StatusCreated, acct.Identity)
}

// Refresh answers POST /auth/refresh.
func (s *Server) Refresh(c *gin.Context) {
	s.calls.refresh.Add(1)

	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.RefreshToken == "" {
		s.fail(c, http.StatusUnauthorized, "Refresh token required")
		return
	}

	s.mu.Lock()
	_, revoked := s.revoked[req.RefreshToken]
	acct, ok := s.byID[subjectOf(req.RefreshToken)]
	s.mu.Unlock()
	if revoked || !ok {
		s.fail(c, http.StatusUnauthorized, "Invalid refresh token")
		return
	}

	s.respondGrant(c, http.StatusOK, acct.Identity)
}

// Forgot answers POST /auth/forgot. The answer does not reveal whether the address is known.
func (s *Server) Forgot(c *gin.Context) {
	s.calls.forgot.Add(1)

	var req forgotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, http.StatusBadRequest, "Email required")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": ForgotPasswordMessage})
}

// Logout answers POST /auth/logout by revoking the renewal credential.
func (s *Server) Logout(c *gin.Context) {
	s.calls.logout.Add(1)

	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err == nil && req.RefreshToken != "" {
		s.mu.Lock()
		s.revoked[req.RefreshToken] = struct{}{}
		s.mu.Unlock()
	}
	c.Status(http.StatusNoContent)
}

// Me answers GET /me with the identity of a valid bearer credential.
func (s *Server) Me(c *gin.Context) {
	s.calls.me.Add(1)

	token := headers.BearerToken(c.Request)
	now := s.clock.Now()
	claims, err := credential.Decode(token)
	if err != nil || credential.IsExpired(token, now) {
		s.fail(c, http.StatusUnauthorized, "Invalid or expired token")
		return
	}

	jti, err := snowflake.ParseString(claims.ID)
	s.mu.Lock()
	rejectUpTo := s.rejectUpTo
	acct, ok := s.byID[claims.Subject]
	s.mu.Unlock()
	if !ok || err != nil || jti <= rejectUpTo {
		s.fail(c, http.StatusUnauthorized, "Invalid or expired token")
		return
	}

	c.Header("X-Token-Expires-In", strconv.FormatInt(int64(claims.ExpiresIn(now).Seconds()), 10))
	c.JSON(http.StatusOK, acct.Identity)
}
