package authsdk

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// API paths.
const (
	PathRegister       = "/api/v1/users/register"
	PathLogin          = "/api/v1/users/login"
	PathGoogleLogin    = "/api/v1/users/google"
	PathLogout         = "/api/v1/users/logout"
	PathRefresh        = "/api/v1/users/refresh-token"
	PathChangePassword = "/api/v1/users/change-password"
	PathCurrentUser    = "/api/v1/users/current-user"
	PathForgotPassword = "/api/v1/users/forgot-password"
	PathResetPassword  = "/api/v1/users/reset-password/"
)

// SDKClient talks to the account session service. It covers the public
// endpoints and opens Sessions for the authenticated ones.
type SDKClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewSDKClient creates a client with a 10 second HTTP timeout.
func NewSDKClient(baseURL string) *SDKClient {
	return &SDKClient{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Register creates an account.
func (c *SDKClient) Register(ctx context.Context, req RegisterRequest) (*Profile, error) {
	resp, err := c.doJSON(ctx, http.MethodPost, PathRegister, "", req)
	if err != nil {
		return nil, err
	}

	var p Profile
	if err := decodeJSON(resp, &p, http.StatusCreated); err != nil {
		return nil, err
	}
	return &p, nil
}

// Login authenticates with an email or full name and a password.
func (c *SDKClient) Login(ctx context.Context, identifier, password string) (*Session, error) {
	return c.openSession(ctx, PathLogin, LoginRequest{Identifier: identifier, Password: password})
}

// LoginWithGoogle exchanges a Google OAuth access token for a session.
func (c *SDKClient) LoginWithGoogle(ctx context.Context, googleAccessToken string) (*Session, error) {
	return c.openSession(ctx, PathGoogleLogin, GoogleLoginRequest{AccessToken: googleAccessToken})
}

// Refresh exchanges a refresh token for a new pair. The presented token is
// spent whether or not the caller keeps the result.
func (c *SDKClient) Refresh(ctx context.Context, refreshToken string) (*SessionResponse, error) {
	resp, err := c.doJSON(ctx, http.MethodPost, PathRefresh, "", RefreshRequest{RefreshToken: refreshToken})
	if err != nil {
		return nil, err
	}

	var out SessionResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// ForgotPassword asks for a reset link to be sent to email.
func (c *SDKClient) ForgotPassword(ctx context.Context, email string) error {
	resp, err := c.doJSON(ctx, http.MethodPost, PathForgotPassword, "", ForgotPasswordRequest{Email: email})
	if err != nil {
		return err
	}
	return decodeJSON(resp, nil, http.StatusOK)
}

// ResetPassword sets a new password with the secret from a reset link.
func (c *SDKClient) ResetPassword(ctx context.Context, secret, newPassword string) error {
	path := PathResetPassword + url.PathEscape(secret)
	resp, err := c.doJSON(ctx, http.MethodPost, path, "", ResetPasswordRequest{NewPassword: newPassword})
	if err != nil {
		return err
	}
	return decodeJSON(resp, nil, http.StatusOK)
}

func (c *SDKClient) openSession(ctx context.Context, path string, body any) (*Session, error) {
	resp, err := c.doJSON(ctx, http.MethodPost, path, "", body)
	if err != nil {
		return nil, err
	}

	var out SessionResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return newSession(c, &out), nil
}
