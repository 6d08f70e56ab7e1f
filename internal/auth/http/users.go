package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/affworld/internal/auth/federation"
	"github.com/aussiebroadwan/affworld/internal/auth/service"
	"github.com/aussiebroadwan/affworld/pkg/authsdk"
	"github.com/aussiebroadwan/affworld/pkg/httpx"
	"github.com/aussiebroadwan/affworld/pkg/slogx"
)

type UsersHandler struct {
	Sessions       *service.SessionService
	Google         IdentityVerifier
	CookieSameSite http.SameSite
}

// HandleRegister godoc
//
//	@Summary		Register
//	@Description	Create a local account with a full name, email and password.
//	@Tags			Users
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.RegisterRequest	true	"fullName, email, password"
//	@Success		201		{object}	authsdk.Profile			"Created account"
//	@Failure		400		{object}	authsdk.APIError		"Missing field or malformed email"
//	@Failure		409		{object}	authsdk.APIError		"Email or full name already taken"
//	@Failure		429		{object}	authsdk.APIError		"Rate limit exceeded"
//	@Router			/api/v1/users/register [post].
func (h *UsersHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req authsdk.RegisterRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		authsdk.ErrInvalidRequest.WithDescription(err.Error()).WriteError(w)
		return
	}

	profile, err := h.Sessions.Register(r.Context(), service.RegisterInput{
		FullName: req.FullName,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, authsdk.Profile(profile))
}

// HandleLogin godoc
//
//	@Summary		Login
//	@Description	Authenticate with an email or full name and a password. Any previous session of the account ends.
//	@Tags			Users
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.LoginRequest	true	"identifier (or email / fullName), password"
//	@Success		200		{object}	authsdk.SessionResponse	"Profile and token pair, also set as cookies"
//	@Failure		400		{object}	authsdk.APIError		"Missing identifier or password"
//	@Failure		401		{object}	authsdk.APIError		"Invalid credentials"
//	@Failure		429		{object}	authsdk.APIError		"Rate limit exceeded"
//	@Router			/api/v1/users/login [post].
func (h *UsersHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req authsdk.LoginRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		authsdk.ErrInvalidRequest.WithDescription(err.Error()).WriteError(w)
		return
	}

	identifier := req.Identifier
	if identifier == "" {
		identifier = req.Email
	}
	if identifier == "" {
		identifier = req.FullName
	}

	sess, err := h.Sessions.Login(r.Context(), service.PasswordIdentity{
		Identifier: identifier,
		Password:   req.Password,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	h.writeSession(w, sess)
}

// HandleGoogleLogin godoc
//
//	@Summary		Login with Google
//	@Description	Exchange a Google OAuth access token for a session. The account is matched by verified email and created on first use.
//	@Tags			Users
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.GoogleLoginRequest	true	"accessToken"
//	@Success		200		{object}	authsdk.SessionResponse		"Profile and token pair, also set as cookies"
//	@Failure		400		{object}	authsdk.APIError			"Missing access token"
//	@Failure		401		{object}	authsdk.APIError			"Google rejected the token or the email is unverified"
//	@Failure		502		{object}	authsdk.APIError			"Google could not be reached"
//	@Router			/api/v1/users/google [post].
func (h *UsersHandler) HandleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req authsdk.GoogleLoginRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		authsdk.ErrInvalidRequest.WithDescription(err.Error()).WriteError(w)
		return
	}
	if strings.TrimSpace(req.AccessToken) == "" {
		authsdk.ErrInvalidRequest.WithDescription("accessToken is required").WriteError(w)
		return
	}

	identity, err := h.Google.Verify(ctx, req.AccessToken)
	switch {
	case errors.Is(err, federation.ErrInvalidToken):
		authsdk.ErrInvalidCredentials.WithDescription("google rejected the access token").WriteError(w)
		return
	case errors.Is(err, federation.ErrUnverifiedEmail):
		authsdk.ErrInvalidCredentials.WithDescription("google account email is not verified").WriteError(w)
		return
	case err != nil:
		log.Error("google verification failed", slog.Any("err", err))
		authsdk.NewAPIError(http.StatusBadGateway, authsdk.ErrorCodeServerError, "identity provider unavailable").WriteError(w)
		return
	}

	sess, err := h.Sessions.Login(ctx, service.VerifiedIdentity{
		Provider: identity.Provider,
		Email:    identity.Email,
		FullName: identity.Name,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	h.writeSession(w, sess)
}

// HandleRefresh godoc
//
//	@Summary		Refresh session
//	@Description	Rotate the refresh token. The token is read from the refreshToken cookie, or from the body when no cookie is sent. Each refresh token works once.
//	@Tags			Users
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.RefreshRequest	false	"refreshToken"
//	@Success		200		{object}	authsdk.SessionResponse	"Profile and rotated token pair, also set as cookies"
//	@Failure		401		{object}	authsdk.APIError		"Missing, expired, reused or revoked refresh token"
//	@Router			/api/v1/users/refresh-token [post].
func (h *UsersHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	var presented string
	if c, err := r.Cookie(CookieRefreshToken); err == nil {
		presented = c.Value
	}
	if strings.TrimSpace(presented) == "" {
		var req authsdk.RefreshRequest
		if err := httpx.DecodeJSON(w, r, &req); err != nil {
			authsdk.ErrInvalidRequest.WithDescription(err.Error()).WriteError(w)
			return
		}
		presented = req.RefreshToken
	}

	sess, err := h.Sessions.Refresh(r.Context(), presented)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	h.writeSession(w, sess)
}

// HandleLogout godoc
//
//	@Summary		Logout
//	@Description	End the current session and clear the session cookies.
//	@Tags			Users
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.MessageResponse	"Logged out"
//	@Failure		401	{object}	authsdk.APIError		"Invalid or missing access token"
//	@Router			/api/v1/users/logout [post].
func (h *UsersHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	accountID, _ := httpx.AccountIDFromContext(r.Context())

	if err := h.Sessions.Logout(r.Context(), accountID); err != nil {
		writeServiceError(w, r, err)
		return
	}

	clearSessionCookies(w, h.CookieSameSite)
	httpx.WriteJSON(w, http.StatusOK, authsdk.MessageResponse{Message: "User logged out"})
}

// HandleChangePassword godoc
//
//	@Summary		Change password
//	@Description	Replace the password after checking the current one.
//	@Tags			Users
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.ChangePasswordRequest	true	"oldPassword, newPassword"
//	@Success		200		{object}	authsdk.MessageResponse			"Password changed"
//	@Failure		400		{object}	authsdk.APIError				"Missing field"
//	@Failure		401		{object}	authsdk.APIError				"Wrong current password or invalid access token"
//	@Router			/api/v1/users/change-password [post].
func (h *UsersHandler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	accountID, _ := httpx.AccountIDFromContext(r.Context())

	var req authsdk.ChangePasswordRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		authsdk.ErrInvalidRequest.WithDescription(err.Error()).WriteError(w)
		return
	}

	if err := h.Sessions.ChangePassword(r.Context(), accountID, req.OldPassword, req.NewPassword); err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.MessageResponse{Message: "Password changed successfully"})
}

// HandleCurrentUser godoc
//
//	@Summary		Current user
//	@Description	Return the profile of the authenticated account.
//	@Tags			Users
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.Profile		"Account profile"
//	@Failure		401	{object}	authsdk.APIError	"Invalid or missing access token"
//	@Failure		404	{object}	authsdk.APIError	"Account no longer exists"
//	@Router			/api/v1/users/current-user [get].
func (h *UsersHandler) HandleCurrentUser(w http.ResponseWriter, r *http.Request) {
	accountID, _ := httpx.AccountIDFromContext(r.Context())

	profile, err := h.Sessions.CurrentAccount(r.Context(), accountID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.Profile(profile))
}

// HandleForgotPassword godoc
//
//	@Summary		Forgot password
//	@Description	Email a single-use reset link valid for a limited time. Unknown emails get the same answer unless the service is configured to reveal them.
//	@Tags			Users
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.ForgotPasswordRequest	true	"email"
//	@Success		200		{object}	authsdk.MessageResponse			"Reset link sent"
//	@Failure		400		{object}	authsdk.APIError				"Missing email"
//	@Failure		502		{object}	authsdk.APIError				"The message could not be delivered"
//	@Failure		429		{object}	authsdk.APIError				"Rate limit exceeded"
//	@Router			/api/v1/users/forgot-password [post].
func (h *UsersHandler) HandleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req authsdk.ForgotPasswordRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		authsdk.ErrInvalidRequest.WithDescription(err.Error()).WriteError(w)
		return
	}

	if err := h.Sessions.ForgotPassword(r.Context(), req.Email); err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.MessageResponse{Message: "Password reset link sent to your email"})
}

// HandleResetPassword godoc
//
//	@Summary		Reset password
//	@Description	Set a new password using the secret from a reset link. The secret works once.
//	@Tags			Users
//	@Accept			json
//	@Produce		json
//	@Param			token	path		string							true	"Reset secret from the emailed link"
//	@Param			request	body		authsdk.ResetPasswordRequest	true	"newPassword"
//	@Success		200		{object}	authsdk.MessageResponse			"Password reset"
//	@Failure		400		{object}	authsdk.APIError				"Missing password, or unknown, used or expired secret"
//	@Failure		429		{object}	authsdk.APIError				"Rate limit exceeded"
//	@Router			/api/v1/users/reset-password/{token} [post].
func (h *UsersHandler) HandleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req authsdk.ResetPasswordRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		authsdk.ErrInvalidRequest.WithDescription(err.Error()).WriteError(w)
		return
	}

	if err := h.Sessions.ResetPassword(r.Context(), r.PathValue("token"), req.NewPassword); err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.MessageResponse{Message: "Password reset successfully"})
}

func (h *UsersHandler) writeSession(w http.ResponseWriter, sess service.Session) {
	setSessionCookies(w, sess, h.CookieSameSite)
	httpx.WriteJSON(w, http.StatusOK, authsdk.SessionResponse{
		User:                  authsdk.Profile(sess.Account),
		AccessToken:           sess.Access.Value,
		RefreshToken:          sess.Refresh.Value,
		AccessTokenExpiresAt:  sess.Access.ExpiresAt,
		RefreshTokenExpiresAt: sess.Refresh.ExpiresAt,
	})
}
