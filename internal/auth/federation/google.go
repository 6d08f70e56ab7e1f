// Package federation verifies identities asserted by external providers.
// Only the verification lives here; what happens with a verified identity is
// up to the session service.
package federation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultGoogleUserInfoURL is Google's OpenID Connect userinfo endpoint.
const DefaultGoogleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"

var (
	// ErrInvalidToken means the provider did not accept the presented token.
	ErrInvalidToken = errors.New("federation: invalid provider token")

	// ErrUnverifiedEmail means the provider has not verified the email.
	ErrUnverifiedEmail = errors.New("federation: email not verified")
)

// Identity is what a provider vouches for.
type Identity struct {
	Provider string
	Subject  string
	Email    string
	Name     string
}

type googleUserInfo struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
}

// GoogleVerifier resolves a Google OAuth access token to the account's
// identity through the userinfo endpoint.
type GoogleVerifier struct {
	UserInfoURL string
	Client      *http.Client
}

// NewGoogleVerifier returns a verifier with a bounded HTTP client.
func NewGoogleVerifier(userInfoURL string, timeout time.Duration) *GoogleVerifier {
	if userInfoURL == "" {
		userInfoURL = DefaultGoogleUserInfoURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &GoogleVerifier{
		UserInfoURL: userInfoURL,
		Client:      &http.Client{Timeout: timeout},
	}
}

func (v *GoogleVerifier) Verify(ctx context.Context, accessToken string) (Identity, error) {
	accessToken = strings.TrimSpace(accessToken)
	if accessToken == "" {
		return Identity{}, ErrInvalidToken
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.UserInfoURL, nil)
	if err != nil {
		return Identity{}, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := v.Client.Do(req)
	if err != nil {
		return Identity{}, fmt.Errorf("federation: userinfo request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return Identity{}, ErrInvalidToken
	case resp.StatusCode != http.StatusOK:
		return Identity{}, fmt.Errorf("federation: userinfo status %d", resp.StatusCode)
	}

	var info googleUserInfo
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&info); err != nil {
		return Identity{}, fmt.Errorf("federation: decode userinfo: %w", err)
	}

	if info.Sub == "" || info.Email == "" {
		return Identity{}, ErrInvalidToken
	}
	if !info.EmailVerified {
		return Identity{}, ErrUnverifiedEmail
	}

	return Identity{
		Provider: "google",
		Subject:  info.Sub,
		Email:    strings.ToLower(info.Email),
		Name:     strings.TrimSpace(info.Name),
	}, nil
}
