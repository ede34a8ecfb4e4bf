// issuer/client.go
/* Package issuer talks to the service that issues and renews credentials. Calls made here
never pass through the session interceptor: they either establish a session or renew one. */
package issuer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/deploymenttheory/go-api-http-session/credential"
	"github.com/deploymenttheory/go-api-http-session/headers"
	"github.com/deploymenttheory/go-api-http-session/logger"
	"github.com/deploymenttheory/go-api-http-session/response"
	"github.com/deploymenttheory/go-api-http-session/session"
	"github.com/deploymenttheory/go-api-http-session/status"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// Issuer endpoints, relative to the base URL.
const (
	EndpointLogin    = "/auth/login"
	EndpointRegister = "/auth/register"
	EndpointRefresh  = "/auth/refresh"
	EndpointForgot   = "/auth/forgot"
	EndpointLogout   = "/auth/logout"
)

// RejectedError is returned when the issuer answers with a non-2xx status.
type RejectedError struct {
	StatusCode int
	Message    string
	Err        *response.APIError
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("issuer rejected request: status %d: %s", e.StatusCode, e.Message)
}

func (e *RejectedError) Unwrap() error {
	if e.Err == nil {
		return nil
	}
	return e.Err
}

// GrantResponse is the issuer's answer to login, register and refresh.
type GrantResponse struct {
	Token        string              `json:"token"`
	RefreshToken string              `json:"refreshToken"`
	User         credential.Identity `json:"user"`
}

// Grant converts the response into a session grant.
func (r GrantResponse) Grant() session.Grant {
	return session.Grant{
		AccessCredential:  r.Token,
		RenewalCredential: r.RefreshToken,
		Identity:          r.User,
	}
}

// MessageResponse is the issuer's answer to forgot password.
type MessageResponse struct {
	Message string `json:"message"`
}

// Client calls the issuer.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        logger.Logger
	validate   *validator.Validate
}

// NewClient builds a Client for the issuer at baseURL. A nil httpClient gets a client with a
// 30 second timeout.
func NewClient(baseURL string, httpClient *http.Client, log logger.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		log:        log,
		validate:   newValidator(),
	}
}

// Login exchanges email and password for a grant.
func (c *Client) Login(ctx context.Context, form LoginForm) (session.Grant, error) {
	if err := c.validateForm(form); err != nil {
		return session.Grant{}, err
	}
	var out GrantResponse
	if err := c.post(ctx, EndpointLogin, form, &out); err != nil {
		return session.Grant{}, err
	}
	return out.Grant(), nil
}

// Register creates an account and returns its first grant.
func (c *Client) Register(ctx context.Context, form RegisterForm) (session.Grant, error) {
	if err := c.validateForm(form); err != nil {
		return session.Grant{}, err
	}
	var out GrantResponse
	if err := c.post(ctx, EndpointRegister, form, &out); err != nil {
		return session.Grant{}, err
	}
	return out.Grant(), nil
}

// Refresh exchanges a renewal credential for a new grant. It implements refresh.Renewer.
func (c *Client) Refresh(ctx context.Context, renewalCredential string) (session.Grant, error) {
	var out GrantResponse
	body := map[string]string{"refreshToken": renewalCredential}
	if err := c.post(ctx, EndpointRefresh, body, &out); err != nil {
		return session.Grant{}, err
	}
	if out.Token == "" {
		return session.Grant{}, fmt.Errorf("refresh response carried no access credential")
	}
	return out.Grant(), nil
}

// ForgotPassword asks the issuer to send reset instructions. The issuer answers the same way
// whether or not the address is known.
func (c *Client) ForgotPassword(ctx context.Context, form ForgotPasswordForm) (string, error) {
	if err := c.validateForm(form); err != nil {
		return "", err
	}
	var out MessageResponse
	if err := c.post(ctx, EndpointForgot, form, &out); err != nil {
		return "", err
	}
	return out.Message, nil
}

// Logout revokes a renewal credential.
func (c *Client) Logout(ctx context.Context, renewalCredential string) error {
	body := map[string]string{"refreshToken": renewalCredential}
	return c.post(ctx, EndpointLogout, body, nil)
}

func (c *Client) post(ctx context.Context, endpoint string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshaling %s request: %w", endpoint, err)
	}

	url := c.baseURL + endpoint
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building %s request: %w", endpoint, err)
	}
	headers.SetJSONHeaders(req)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Warn("Issuer request failed", zap.String("endpoint", endpoint), zap.Error(err))
		return fmt.Errorf("calling issuer %s: %w", endpoint, err)
	}
	defer resp.Body.Close()
	c.log.LogRequestEnd("issuer_request", http.MethodPost, url, resp.StatusCode, time.Since(start))

	if !status.IsSuccess(resp.StatusCode) {
		apiErr := response.HandleAPIErrorResponse(resp, c.log)
		return &RejectedError{StatusCode: resp.StatusCode, Message: apiErr.Message, Err: apiErr}
	}

	return response.HandleAPISuccessResponse(resp, out, c.log)
}
