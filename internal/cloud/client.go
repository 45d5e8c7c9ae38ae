// Package cloud talks to the vendor's pump cloud: login exchange and
// encrypted archive retrieval.
package cloud

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"pumpsync/internal/errs"
)

// ErrTokenRejected marks an authenticated call refused with HTTP 401
// after login had succeeded. Retryable; the caller should drop the
// cached session before the next attempt.
var ErrTokenRejected = fmt.Errorf("session token rejected: %w", errs.ErrTransport)

// Client is the low-level vendor HTTP client. Credentials are held in
// memory only and never logged.
type Client struct {
	baseURL    string
	username   string
	password   string
	httpClient *http.Client
}

// NewClient builds a client against one vendor region server.
func NewClient(baseURL, username, password string) *Client {
	return &Client{
		baseURL:  baseURL,
		username: username,
		password: password,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string `json:"accessToken"`
}

// Login performs the credentials-for-token exchange. A 401/403 means
// the credentials themselves were rejected (non-retryable); anything
// else network- or server-shaped is a transport failure.
func (c *Client) Login(ctx context.Context) (string, error) {
	body, err := json.Marshal(loginRequest{Username: c.username, Password: c.password})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/login", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: login: %v", errs.ErrTransport, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", errs.ErrBadCredentials
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return "", fmt.Errorf("%w: login status %d", errs.ErrTransport, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: reading login response: %v", errs.ErrTransport, err)
	}
	var lr loginResponse
	if err := json.Unmarshal(data, &lr); err != nil {
		return "", fmt.Errorf("%w: parsing login response: %v", errs.ErrTransport, err)
	}
	if lr.AccessToken == "" {
		return "", fmt.Errorf("%w: login response carried no token", errs.ErrTransport)
	}
	return lr.AccessToken, nil
}
