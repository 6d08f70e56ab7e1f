package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/aussiebroadwan/affworld/internal/auth/mail"
	"github.com/aussiebroadwan/affworld/internal/auth/store"
	"github.com/aussiebroadwan/affworld/pkg/cryptox"
	"github.com/aussiebroadwan/affworld/pkg/slogx"
)

const resetSubject = "Password Reset Request"

// ChangePassword replaces the password of an authenticated account after
// checking the current one. The session survives unless
// RevokeSessionsOnPasswordChange is set.
func (s *SessionService) ChangePassword(ctx context.Context, accountID, oldPassword, newPassword string) (err error) {
	defer s.observe("change_password", time.Now(), &err)
	l := slogx.FromContext(ctx)

	if oldPassword == "" || strings.TrimSpace(newPassword) == "" {
		return fmt.Errorf("%w: old and new password are required", ErrValidation)
	}

	account, err := s.Store.Accounts().GetAccountByID(ctx, accountID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrAccountNotFound
	}
	if err != nil {
		return fmt.Errorf("load account: %w", err)
	}

	if !account.HasPassword() {
		return ErrInvalidCredentials
	}
	switch err := s.Hasher.VerifyPassword(oldPassword, account.PasswordHash); {
	case errors.Is(err, cryptox.ErrPasswordMismatch):
		return ErrInvalidCredentials
	case err != nil:
		return fmt.Errorf("verify password: %w", err)
	}

	hash, err := s.Hasher.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.Store.Accounts().UpdatePasswordHash(ctx, account.ID, hash, s.RevokeSessionsOnPasswordChange); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	l.Info("password changed",
		slog.String("account_id", account.ID),
		slog.Bool("sessions_revoked", s.RevokeSessionsOnPasswordChange),
	)
	return nil
}

// ForgotPassword issues a reset secret for the account with the given email
// and sends it as a link. Only a fingerprint of the secret is stored. If the
// message cannot be delivered the pending reset is withdrawn again, so no
// secret stays live that its owner never received.
func (s *SessionService) ForgotPassword(ctx context.Context, email string) (err error) {
	defer s.observe("forgot_password", time.Now(), &err)
	l := slogx.FromContext(ctx)
	accounts := s.Store.Accounts()

	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return fmt.Errorf("%w: email is required", ErrValidation)
	}

	account, err := accounts.GetAccountByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		if s.RevealUnknownAccounts {
			return ErrAccountNotFound
		}
		l.Debug("password reset requested for unknown email")
		return nil
	}
	if err != nil {
		return fmt.Errorf("lookup account: %w", err)
	}

	// 1. Mint the secret and record its fingerprint
	secret, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return err
	}
	tokenHash := cryptox.FingerprintToken(secret)
	expiresAt := s.now().Add(s.resetTTL())

	if err := accounts.SetPasswordReset(ctx, account.ID, tokenHash, expiresAt); err != nil {
		return fmt.Errorf("store password reset: %w", err)
	}

	// 2. Deliver, bounded by the delivery timeout
	sendCtx, cancel := context.WithTimeout(ctx, s.deliveryTimeout())
	defer cancel()

	sendErr := s.Mailer.Send(sendCtx, mail.Message{
		To:      account.Email,
		Subject: resetSubject,
		Body:    s.resetBody(secret),
	})
	if sendErr == nil {
		l.Info("password reset issued", slog.String("account_id", account.ID))
		return nil
	}

	// 3. Withdraw exactly the reset written above; a newer one is left alone
	l.Error("password reset delivery failed",
		slog.String("account_id", account.ID),
		slog.Any("error", sendErr),
	)

	clearCtx, cancelClear := context.WithTimeout(context.WithoutCancel(ctx), compensateTimeout)
	defer cancelClear()
	if err := accounts.ClearPasswordReset(clearCtx, account.ID, tokenHash); err != nil {
		l.Error("password reset rollback failed",
			slog.String("account_id", account.ID),
			slog.Any("error", err),
		)
	}
	return ErrDeliveryFailure
}

// ResetPassword sets a new password using a secret from a reset link. The
// lookup, expiry check and clearing of the reset happen in one store
// statement, so a secret can be used at most once.
func (s *SessionService) ResetPassword(ctx context.Context, secret, newPassword string) (err error) {
	defer s.observe("reset_password", time.Now(), &err)
	l := slogx.FromContext(ctx)

	if strings.TrimSpace(newPassword) == "" {
		return fmt.Errorf("%w: new password is required", ErrValidation)
	}
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return ErrInvalidOrExpiredToken
	}

	hash, err := s.Hasher.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	accountID, err := s.Store.Accounts().ConsumePasswordReset(ctx,
		cryptox.FingerprintToken(secret),
		s.now(),
		hash,
		s.RevokeSessionsOnPasswordChange,
	)
	if errors.Is(err, store.ErrNotFound) {
		return ErrInvalidOrExpiredToken
	}
	if err != nil {
		return fmt.Errorf("consume password reset: %w", err)
	}

	l.Info("password reset completed",
		slog.String("account_id", accountID),
		slog.Bool("sessions_revoked", s.RevokeSessionsOnPasswordChange),
	)
	return nil
}

func (s *SessionService) resetBody(secret string) string {
	link := strings.TrimRight(s.FrontendBaseURL, "/") + "/forgot-password/" + url.PathEscape(secret)

	var b strings.Builder
	b.WriteString("A password reset was requested for your account.\n\n")
	b.WriteString("Use the link below within ")
	b.WriteString(readableDuration(s.resetTTL()))
	b.WriteString(" to choose a new password:\n\n")
	b.WriteString(link)
	b.WriteString("\n\nIf you did not ask for this, you can ignore this message.\n")
	return b.String()
}

// readableDuration renders d for a message body: "15 minutes",
// "1 hour 30 minutes". Anything under a minute is spelled in seconds.
func readableDuration(d time.Duration) string {
	if d < time.Minute {
		return countOf(int(d/time.Second), "second")
	}

	d = d.Round(time.Minute)
	hours, minutes := int(d/time.Hour), int(d%time.Hour/time.Minute)
	switch {
	case hours == 0:
		return countOf(minutes, "minute")
	case minutes == 0:
		return countOf(hours, "hour")
	}
	return countOf(hours, "hour") + " " + countOf(minutes, "minute")
}

func countOf(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
