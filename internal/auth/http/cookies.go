package http

import (
	"net/http"

	"github.com/aussiebroadwan/affworld/internal/auth/service"
)

// Session cookie names, shared with browser clients.
const (
	CookieAccessToken  = "accessToken"
	CookieRefreshToken = "refreshToken"
)

func setSessionCookies(w http.ResponseWriter, sess service.Session, sameSite http.SameSite) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieAccessToken,
		Value:    sess.Access.Value,
		Path:     "/",
		Expires:  sess.Access.ExpiresAt,
		HttpOnly: true,
		Secure:   true,
		SameSite: sameSite,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     CookieRefreshToken,
		Value:    sess.Refresh.Value,
		Path:     "/",
		Expires:  sess.Refresh.ExpiresAt,
		HttpOnly: true,
		Secure:   true,
		SameSite: sameSite,
	})
}

func clearSessionCookies(w http.ResponseWriter, sameSite http.SameSite) {
	for _, name := range []string{CookieAccessToken, CookieRefreshToken} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   true,
			SameSite: sameSite,
		})
	}
}
