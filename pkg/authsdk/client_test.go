package authsdk_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aussiebroadwan/affworld/pkg/authsdk"
	"github.com/stretchr/testify/require"
)

// fakeServer hands out access tokens that are already due for refresh, so
// every authenticated call goes through the refresh path first.
type fakeServer struct {
	refreshes atomic.Int32
}

func (f *fakeServer) handler() http.Handler {
	mux := http.NewServeMux()

	session := func(w http.ResponseWriter, access, refresh string) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(authsdk.SessionResponse{
			User:                 authsdk.Profile{ID: "acct-1", Email: "ann@x.com"},
			AccessToken:          access,
			RefreshToken:         refresh,
			AccessTokenExpiresAt: time.Now(),
		})
	}

	mux.HandleFunc("POST "+authsdk.PathRegister, func(w http.ResponseWriter, r *http.Request) {
		var req authsdk.RegisterRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			authsdk.ErrInvalidRequest.WriteError(w)
			return
		}
		if req.Email == "taken@x.com" {
			authsdk.ErrConflict.WriteError(w)
			return
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(authsdk.Profile{ID: "acct-1", FullName: req.FullName, Email: req.Email})
	})

	mux.HandleFunc("POST "+authsdk.PathLogin, func(w http.ResponseWriter, r *http.Request) {
		var req authsdk.LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			authsdk.ErrInvalidRequest.WriteError(w)
			return
		}
		if req.Password != "pw1" {
			authsdk.ErrInvalidCredentials.WriteError(w)
			return
		}
		session(w, "access-0", "refresh-0")
	})

	mux.HandleFunc("POST "+authsdk.PathRefresh, func(w http.ResponseWriter, r *http.Request) {
		var req authsdk.RefreshRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			authsdk.ErrInvalidRequest.WriteError(w)
			return
		}
		n := f.refreshes.Add(1)
		if req.RefreshToken != "refresh-"+itoa(n-1) {
			authsdk.ErrInvalidToken.WriteError(w)
			return
		}
		session(w, "access-"+itoa(n), "refresh-"+itoa(n))
	})

	mux.HandleFunc("GET "+authsdk.PathCurrentUser, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer access-"+itoa(f.refreshes.Load()) {
			authsdk.ErrInvalidToken.WriteError(w)
			return
		}
		_ = json.NewEncoder(w).Encode(authsdk.Profile{ID: "acct-1", Email: "ann@x.com"})
	})

	mux.HandleFunc("POST "+authsdk.PathResetPassword+"{token}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("token") != "good" {
			authsdk.ErrInvalidGrant.WriteError(w)
			return
		}
		_ = json.NewEncoder(w).Encode(authsdk.MessageResponse{Message: "ok"})
	})

	mux.HandleFunc("GET /livez", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(authsdk.HealthResponse{Status: "ok"})
	})

	return mux
}

func itoa(n int32) string { return strconv.Itoa(int(n)) }

func newClient(t *testing.T) (*authsdk.SDKClient, *fakeServer) {
	t.Helper()
	f := &fakeServer{}
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)
	return authsdk.NewSDKClient(srv.URL + "/"), f
}

func TestRegister(t *testing.T) {
	t.Parallel()
	c, _ := newClient(t)
	ctx := context.Background()

	p, err := c.Register(ctx, authsdk.RegisterRequest{FullName: "Ann", Email: "ann@x.com", Password: "pw1"})
	require.NoError(t, err)
	require.Equal(t, "Ann", p.FullName)

	_, err = c.Register(ctx, authsdk.RegisterRequest{FullName: "Ann", Email: "taken@x.com", Password: "pw1"})
	require.ErrorIs(t, err, authsdk.ErrConflict)

	var apiErr *authsdk.APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusConflict, apiErr.StatusCode)
}

func TestLoginFailure(t *testing.T) {
	t.Parallel()
	c, _ := newClient(t)

	_, err := c.Login(context.Background(), "ann@x.com", "wrong")
	require.ErrorIs(t, err, authsdk.ErrInvalidCredentials)
	require.NotErrorIs(t, err, authsdk.ErrInvalidToken)
}

func TestSessionRefreshesBeforeCalls(t *testing.T) {
	t.Parallel()
	c, f := newClient(t)
	ctx := context.Background()

	s, err := c.Login(ctx, "ann@x.com", "pw1")
	require.NoError(t, err)
	require.Equal(t, "acct-1", s.User().ID)

	p, err := s.CurrentUser(ctx)
	require.NoError(t, err)
	require.Equal(t, "ann@x.com", p.Email)
	require.Equal(t, int32(1), f.refreshes.Load())
	require.Equal(t, "refresh-1", s.RefreshToken())

	_, err = s.CurrentUser(ctx)
	require.NoError(t, err)
	require.Equal(t, int32(2), f.refreshes.Load())
}

func TestResetPassword(t *testing.T) {
	t.Parallel()
	c, _ := newClient(t)
	ctx := context.Background()

	require.NoError(t, c.ResetPassword(ctx, "good", "pw2"))
	require.ErrorIs(t, c.ResetPassword(ctx, "bad", "pw2"), authsdk.ErrInvalidGrant)
}

func TestLiveness(t *testing.T) {
	t.Parallel()
	c, _ := newClient(t)

	h, err := c.GetLiveness(context.Background())
	require.NoError(t, err)
	require.Equal(t, "ok", h.Status)

	_, err = c.GetReadiness(context.Background())
	var apiErr *authsdk.APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusNotFound, apiErr.StatusCode)
}
