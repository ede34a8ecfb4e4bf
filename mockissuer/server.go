// mockissuer/server.go
/* Package mockissuer is an in-process credential issuer used by the package tests and the
mockissuer command. It issues unsigned access credentials that expire after an hour and
renewal credentials of the form refresh-<subject>-<issuedAtMillis>. Neither is secure; the
client treats both as opaque. */
package mockissuer

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/deploymenttheory/go-api-http-session/credential"
	"github.com/deploymenttheory/go-api-http-session/internal/unsigned"
	"github.com/deploymenttheory/go-api-http-session/logger"
	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Seeded account.
const (
	TestUserID       = "1"
	TestUserEmail    = "test@example.com"
	TestUserName     = "Test User"
	TestUserPassword = "password123"
)

// ForgotPasswordMessage is returned for every forgot password request.
const ForgotPasswordMessage = "If the email exists, reset instructions were sent."

// DefaultTokenTTL is the lifetime of issued access credentials.
const DefaultTokenTTL = time.Hour

type account struct {
	credential.Identity
	password string
}

// Stats counts the calls served per endpoint.
type Stats struct {
	Login    int64
	Register int64
	Refresh  int64
	Forgot   int64
	Logout   int64
	Me       int64
}

type counters struct {
	login, register, refresh, forgot, logout, me atomic.Int64
}

// Server issues and renews credentials.
type Server struct {
	clock   clockwork.Clock
	ttl     time.Duration
	limiter *rate.Limiter
	log     logger.Logger
	node    *snowflake.Node

	mu        sync.Mutex
	byEmail   map[string]*account
	byID      map[string]*account
	revoked    map[string]struct{}
	lastIssued snowflake.ID
	rejectUpTo snowflake.ID

	calls counters
}

// Option configures a Server.
type Option func(*Server)

// WithClock sets the clock used to stamp and check credentials.
func WithClock(clock clockwork.Clock) Option {
	return func(s *Server) {
		s.clock = clock
	}
}

// WithTokenTTL sets the lifetime of issued access credentials.
func WithTokenTTL(ttl time.Duration) Option {
	return func(s *Server) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithRateLimit limits login and forgot password calls. Excess calls get a 429.
func WithRateLimit(limit rate.Limit, burst int) Option {
	return func(s *Server) {
		s.limiter = rate.NewLimiter(limit, burst)
	}
}

// WithLogger sets the logger.
func WithLogger(log logger.Logger) Option {
	return func(s *Server) {
		s.log = log
	}
}

// New builds a Server holding the seeded test account.
func New(opts ...Option) (*Server, error) {
	node, err := snowflake.NewNode(1)
	if err != nil {
		return nil, fmt.Errorf("creating id generator: %w", err)
	}

	s := &Server{
		clock:   clockwork.NewRealClock(),
		ttl:     DefaultTokenTTL,
		limiter: rate.NewLimiter(rate.Inf, 0),
		log:     logger.NewNop(),
		node:    node,
		byEmail: make(map[string]*account),
		byID:    make(map[string]*account),
		revoked: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.addAccount(&account{
		Identity: credential.Identity{ID: TestUserID, Email: TestUserEmail, DisplayName: TestUserName},
		password: TestUserPassword,
	})
	return s, nil
}

// Handler returns an http.Handler serving every route under basePath, for example "/api".
func (s *Server) Handler(basePath string) http.Handler {
	engine := gin.New()
	engine.Use(gin.Recovery(), s.requestLogger())
	s.Routes(engine.Group(basePath))
	return engine
}

// Routes mounts the routes on rg.
func (s *Server) Routes(rg *gin.RouterGroup) {
	a := rg.Group("/auth")
	a.POST("/login", s.rateLimited(), s.Login)
	a.POST("/register", s.Register)
	a.POST("/refresh", s.Refresh)
	a.POST("/forgot", s.rateLimited(), s.Forgot)
	a.POST("/logout", s.Logout)
	rg.GET("/me", s.Me)
}

// Stats returns the number of calls served per endpoint.
func (s *Server) Stats() Stats {
	return Stats{
		Login:    s.calls.login.Load(),
		Register: s.calls.register.Load(),
		Refresh:  s.calls.refresh.Load(),
		Forgot:   s.calls.forgot.Load(),
		Logout:   s.calls.logout.Load(),
		Me:       s.calls.me.Load(),
	}
}

// RejectIssuedCredentials makes every access credential issued so far fail on protected
// routes, while renewal credentials stay valid.
func (s *Server) RejectIssuedCredentials() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejectUpTo = s.lastIssued
}

func (s *Server) addAccount(a *account) {
	s.byEmail[a.Email] = a
	s.byID[a.ID] = a
}

// issue mints a credential pair for identity. Every access credential carries a
// snowflake jti so credentials minted in the same second stay distinct.
func (s *Server) issue(identity credential.Identity) (gin.H, error) {
	now := s.clock.Now()
	id := s.node.Generate()
	claims := unsigned.ClaimsFor(identity, now, s.ttl)
	claims.ID = id.String()
	token, err := unsigned.MintClaims(claims)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.lastIssued = id
	s.mu.Unlock()

	return gin.H{
		"token":        token,
		"refreshToken": "refresh-" + identity.ID + "-" + strconv.FormatInt(now.UnixMilli(), 10),
		"user":         identity,
	}, nil
}

// subjectOf extracts the subject id from a renewal credential.
func subjectOf(renewal string) string {
	parts := strings.Split(renewal, "-")
	if len(parts) < 3 || parts[0] != "refresh" {
		return ""
	}
	return parts[1]
}

func (s *Server) rateLimited() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.limiter.Allow() {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"message": "Rate limit exceeded"})
			return
		}
		c.Next()
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.LogRequestEnd("mockissuer_request", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}

func (s *Server) fail(c *gin.Context, code int, message string) {
	c.JSON(code, gin.H{"message": message})
}

func (s *Server) respondGrant(c *gin.Context, code int, identity credential.Identity) {
	body, err := s.issue(identity)
	if err != nil {
		s.log.Warn("Failed to mint credential", zap.Error(err))
		s.fail(c, http.StatusInternalServerError, "Failed to issue credential")
		return
	}
	c.JSON(code, body)
}
