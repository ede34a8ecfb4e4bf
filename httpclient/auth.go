// httpclient/auth.go
package httpclient

import (
	"context"
	"fmt"

	"github.com/deploymenttheory/go-api-http-session/credential"
	"github.com/deploymenttheory/go-api-http-session/issuer"
	"github.com/deploymenttheory/go-api-http-session/session"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Login signs in with email and password and stores the resulting session.
func (c *Client) Login(ctx context.Context, email, password string) (*credential.Identity, error) {
	grant, err := c.Issuer.Login(ctx, issuer.LoginForm{Email: email, Password: password})
	if err != nil {
		return nil, err
	}
	return c.establish(ctx, grant)
}

// Register creates an account and stores the resulting session.
func (c *Client) Register(ctx context.Context, name, email, password string) (*credential.Identity, error) {
	grant, err := c.Issuer.Register(ctx, issuer.RegisterForm{Name: name, Email: email, Password: password})
	if err != nil {
		return nil, err
	}
	return c.establish(ctx, grant)
}

// ForgotPassword asks the issuer to send reset instructions and returns its message.
func (c *Client) ForgotPassword(ctx context.Context, email string) (string, error) {
	return c.Issuer.ForgotPassword(ctx, issuer.ForgotPasswordForm{Email: email})
}

// Logout revokes the renewal credential with the issuer and clears the session. The
// session is cleared even when revocation fails; the returned error combines both failures.
func (c *Client) Logout(ctx context.Context) error {
	var err error

	if renewal := c.Session.RenewalCredential(); renewal != "" {
		if revokeErr := c.Issuer.Logout(ctx, renewal); revokeErr != nil {
			c.Logger.Warn("Failed to revoke renewal credential", zap.Error(revokeErr))
			err = multierr.Append(err, fmt.Errorf("revoking renewal credential: %w", revokeErr))
		}
	}

	if clearErr := c.Session.Clear(ctx); clearErr != nil {
		err = multierr.Append(err, fmt.Errorf("clearing session: %w", clearErr))
	}

	if err == nil {
		c.Logger.Info("Signed out")
	}
	return err
}

// Identity returns the signed in identity, or nil.
func (c *Client) Identity() *credential.Identity {
	return c.Session.CurrentIdentity()
}

// IsAuthenticated reports whether an unexpired access credential is held.
func (c *Client) IsAuthenticated() bool {
	return c.Session.IsAuthenticated()
}

// Subscribe streams session snapshots, see session.State.Subscribe.
func (c *Client) Subscribe() (<-chan session.Snapshot, func()) {
	return c.Session.Subscribe()
}

func (c *Client) establish(ctx context.Context, grant session.Grant) (*credential.Identity, error) {
	if err := c.Session.Set(ctx, grant); err != nil {
		c.Logger.Warn("Failed to store session", zap.Error(err))
		return nil, fmt.Errorf("storing session: %w", err)
	}

	identity := grant.Identity
	c.Logger.Info("Signed in", zap.String("user", identity.ID))
	return &identity, nil
}
