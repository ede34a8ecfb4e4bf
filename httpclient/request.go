// httpclient/request.go
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/deploymenttheory/go-api-http-session/cookiejar"
	"github.com/deploymenttheory/go-api-http-session/headers"
	"github.com/deploymenttheory/go-api-http-session/response"
	"github.com/deploymenttheory/go-api-http-session/status"
	"go.uber.org/zap"
)

// DoRequest sends a JSON request to endpoint, relative to BaseURL unless absolute, through
// the intercepted client.
//
// A 2xx response is decoded into out, which may be nil. Any other status returns the response
// together with a *response.APIError. When the session cannot be renewed the error wraps
// refresh.ErrSessionExpired and the session has already been cleared. The returned response
// body is always closed.
func (c *Client) DoRequest(ctx context.Context, method, endpoint string, body, out interface{}) (*http.Response, error) {
	target, err := resolveURL(c.config.BaseURL, endpoint)
	if err != nil {
		return nil, err
	}
	if c.Redirects != nil {
		target = c.Redirects.ResolvePermanentRedirect(target)
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, c.Logger.Error("Failed to marshal request body", zap.String("method", method), zap.Error(err))
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	headers.SetJSONHeaders(req)
	headers.LogHeaders(c.Logger, req, c.config.HideSensitiveData)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	headers.CheckDeprecationHeader(resp, c.Logger)
	cookiejar.LogResponseCookies(c.Logger, resp)

	if !status.IsSuccess(resp.StatusCode) {
		return resp, response.HandleAPIErrorResponse(resp, c.Logger)
	}

	if err := response.HandleAPISuccessResponse(resp, out, c.Logger); err != nil {
		return resp, err
	}
	return resp, nil
}

// Get is DoRequest with http.MethodGet and no body.
func (c *Client) Get(ctx context.Context, endpoint string, out interface{}) (*http.Response, error) {
	return c.DoRequest(ctx, http.MethodGet, endpoint, nil, out)
}
