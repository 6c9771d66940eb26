package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	resty "gopkg.in/resty.v1"
)

type verifyRequest struct {
	Password string `json:"password"`
}

type verifyResponse struct {
	Success bool `json:"success"`
}

// RemoteAuthenticator posts the password to an HTTP endpoint
type RemoteAuthenticator struct {
	url    string
	client *resty.Client
}

// NewRemoteAuthenticator creates an authenticator for url
func NewRemoteAuthenticator(url string, timeout time.Duration) (*RemoteAuthenticator, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, errors.New("remote authenticator: empty url")
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	client := resty.New().
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &RemoteAuthenticator{url: url, client: client}, nil
}

// Verify accepts the password only on a 2xx response whose body has
// "success": true. Any other decodable answer is a rejection.
func (a *RemoteAuthenticator) Verify(ctx context.Context, password string) (bool, error) {
	resp, err := a.client.R().
		SetContext(ctx).
		SetBody(verifyRequest{Password: password}).
		Post(a.url)
	if err != nil {
		return false, &AuthError{Err: err}
	}

	var body verifyResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return false, &AuthError{
			Status: resp.StatusCode(),
			Err:    fmt.Errorf("decode response: %w", err),
		}
	}

	return resp.IsSuccess() && body.Success, nil
}
