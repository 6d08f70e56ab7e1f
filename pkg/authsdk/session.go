package authsdk

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"
)

// expiryBuffer refreshes a little before the access token actually expires.
const expiryBuffer = 30 * time.Second

// Session holds a token pair and refreshes the access token when it is
// about to expire. It is safe for concurrent use.
type Session struct {
	client *SDKClient

	mu           sync.RWMutex
	user         Profile
	accessToken  string
	refreshToken string
	expiresAt    time.Time
}

func newSession(client *SDKClient, resp *SessionResponse) *Session {
	s := &Session{client: client}
	s.update(resp)
	return s
}

func (s *Session) update(resp *SessionResponse) {
	s.user = resp.User
	s.accessToken = resp.AccessToken
	s.refreshToken = resp.RefreshToken
	s.expiresAt = resp.AccessTokenExpiresAt.Add(-expiryBuffer)
}

// User returns the profile returned at login or last refresh.
func (s *Session) User() Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

func (s *Session) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken
}

func (s *Session) RefreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refreshToken
}

// Refresh rotates the token pair now.
func (s *Session) Refresh(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshLocked(ctx)
}

func (s *Session) refreshLocked(ctx context.Context) error {
	if s.refreshToken == "" {
		return errors.New("authsdk: session has no refresh token")
	}
	resp, err := s.client.Refresh(ctx, s.refreshToken)
	if err != nil {
		return err
	}
	s.update(resp)
	return nil
}

// validToken returns an access token, refreshing first if it is due.
func (s *Session) validToken(ctx context.Context) (string, error) {
	s.mu.RLock()
	if time.Now().Before(s.expiresAt) {
		token := s.accessToken
		s.mu.RUnlock()
		return token, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	// Another goroutine may have refreshed while we waited.
	if time.Now().Before(s.expiresAt) {
		return s.accessToken, nil
	}
	if err := s.refreshLocked(ctx); err != nil {
		return "", err
	}
	return s.accessToken, nil
}

// CurrentUser fetches the authenticated account's profile.
func (s *Session) CurrentUser(ctx context.Context) (*Profile, error) {
	token, err := s.validToken(ctx)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.doJSON(ctx, http.MethodGet, PathCurrentUser, token, nil)
	if err != nil {
		return nil, err
	}

	var p Profile
	if err := decodeJSON(resp, &p, http.StatusOK); err != nil {
		return nil, err
	}
	return &p, nil
}

// ChangePassword replaces the account password.
func (s *Session) ChangePassword(ctx context.Context, oldPassword, newPassword string) error {
	token, err := s.validToken(ctx)
	if err != nil {
		return err
	}
	resp, err := s.client.doJSON(ctx, http.MethodPost, PathChangePassword, token, ChangePasswordRequest{
		OldPassword: oldPassword,
		NewPassword: newPassword,
	})
	if err != nil {
		return err
	}
	return decodeJSON(resp, nil, http.StatusOK)
}

// Logout ends the session on the server and forgets the tokens locally.
func (s *Session) Logout(ctx context.Context) error {
	token, err := s.validToken(ctx)
	if err != nil {
		return err
	}
	resp, err := s.client.doJSON(ctx, http.MethodPost, PathLogout, token, nil)
	if err != nil {
		return err
	}
	if err := decodeJSON(resp, nil, http.StatusOK); err != nil {
		return err
	}

	s.mu.Lock()
	s.accessToken, s.refreshToken, s.expiresAt = "", "", time.Time{}
	s.mu.Unlock()
	return nil
}
