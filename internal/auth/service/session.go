// Package service implements the account session lifecycle: registration,
// login, refresh rotation, logout and the password change and reset flows.
//
// The service is the only writer of the refresh fingerprint and pending
// reset fields on an account. Every guarded write goes through a single
// conditional store statement, so no in-process locking is needed.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/aussiebroadwan/affworld/internal/auth/domain"
	"github.com/aussiebroadwan/affworld/internal/auth/mail"
	"github.com/aussiebroadwan/affworld/internal/auth/metrics"
	"github.com/aussiebroadwan/affworld/internal/auth/store"
	"github.com/aussiebroadwan/affworld/internal/auth/tokens"
	"github.com/aussiebroadwan/affworld/pkg/cryptox"
	"github.com/aussiebroadwan/affworld/pkg/slogx"
)

const (
	DefaultResetTTL        = 15 * time.Minute
	DefaultDeliveryTimeout = 10 * time.Second

	// compensateTimeout bounds the clean-up write after a failed delivery.
	// It runs detached from the request context.
	compensateTimeout = 5 * time.Second
)

type SessionService struct {
	Store   store.Store
	Codec   tokens.Codec
	Hasher  *cryptox.Hasher
	Mailer  mail.Sender
	Metrics *metrics.Metrics

	// FrontendBaseURL prefixes reset links: {base}/forgot-password/{secret}.
	FrontendBaseURL string
	ResetTTL        time.Duration
	DeliveryTimeout time.Duration

	// RevealUnknownAccounts makes Login and ForgotPassword report
	// ErrAccountNotFound for unknown accounts. Off by default, in which case
	// they answer as if the account existed.
	RevealUnknownAccounts bool

	// RevokeSessionsOnPasswordChange clears the refresh fingerprint whenever
	// the password is changed or reset.
	RevokeSessionsOnPasswordChange bool

	// Now is the clock. Nil means time.Now.
	Now func() time.Time

	decoyOnce sync.Once
	decoyHash string
}

// Session is the result of a login or refresh.
type Session struct {
	Account domain.Profile
	Access  tokens.Token
	Refresh tokens.Token
}

func (s *SessionService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *SessionService) resetTTL() time.Duration {
	if s.ResetTTL > 0 {
		return s.ResetTTL
	}
	return DefaultResetTTL
}

func (s *SessionService) deliveryTimeout() time.Duration {
	if s.DeliveryTimeout > 0 {
		return s.DeliveryTimeout
	}
	return DefaultDeliveryTimeout
}

// Login resolves identity to an account and starts a new session for it.
// Any session the account already had is superseded.
func (s *SessionService) Login(ctx context.Context, identity IdentitySource) (_ Session, err error) {
	defer s.observe("login", time.Now(), &err)
	l := slogx.FromContext(ctx)

	if identity == nil {
		return Session{}, fmt.Errorf("%w: no identity presented", ErrValidation)
	}

	account, err := identity.resolve(ctx, s)
	if err != nil {
		return Session{}, err
	}

	sess, err := s.startSession(ctx, account)
	if err != nil {
		return Session{}, err
	}

	l.Info("session started",
		slog.String("account_id", account.ID),
		slog.String("provider", identity.provider()),
	)
	return sess, nil
}

// Refresh exchanges a refresh token for a new access and refresh pair. The
// presented token is accepted only while its fingerprint is the one stored on
// the account, and the swap to the new fingerprint is a compare-and-set, so
// of two concurrent refreshes with the same token exactly one wins.
func (s *SessionService) Refresh(ctx context.Context, presented string) (_ Session, err error) {
	defer s.observe("refresh", time.Now(), &err)
	l := slogx.FromContext(ctx)
	now := s.now()

	presented = strings.TrimSpace(presented)
	if presented == "" {
		return Session{}, fmt.Errorf("%w: refresh token required", ErrUnauthorized)
	}

	claims, err := s.Codec.Verify(presented, tokens.Refresh, now)
	if err != nil {
		l.Debug("refresh token rejected", slog.String("reason", err.Error()))
		return Session{}, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}

	access, refresh, err := s.issuePair(claims.Subject, now)
	if err != nil {
		return Session{}, err
	}

	// The swap and the re-read commit together, so a failed read leaves the
	// presented token current.
	var account domain.Account
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		err := tx.Accounts().SwapRefreshFingerprint(ctx,
			claims.Subject,
			cryptox.FingerprintToken(presented),
			cryptox.FingerprintToken(refresh.Value),
		)
		if err != nil {
			return err
		}
		account, err = tx.Accounts().GetAccountByID(ctx, claims.Subject)
		return err
	})
	if errors.Is(err, store.ErrNotFound) {
		// Either the session was ended or this token was already rotated.
		l.Warn("refresh token not current", slog.String("account_id", claims.Subject))
		return Session{}, fmt.Errorf("%w: refresh token revoked or reused", ErrUnauthorized)
	}
	if err != nil {
		return Session{}, fmt.Errorf("rotate refresh fingerprint: %w", err)
	}

	l.Debug("session refreshed", slog.String("account_id", claims.Subject))
	return Session{Account: account.Profile(), Access: access, Refresh: refresh}, nil
}

// Logout ends the account's session. Ending a session that does not exist
// succeeds.
func (s *SessionService) Logout(ctx context.Context, accountID string) (err error) {
	defer s.observe("logout", time.Now(), &err)

	if strings.TrimSpace(accountID) == "" {
		return fmt.Errorf("%w: no authenticated account", ErrUnauthorized)
	}
	if err := s.Store.Accounts().ClearRefreshFingerprint(ctx, accountID); err != nil {
		return fmt.Errorf("clear refresh fingerprint: %w", err)
	}

	slogx.FromContext(ctx).Info("session ended", slog.String("account_id", accountID))
	return nil
}

// startSession is the one path that mints sessions, shared by every
// identity source.
func (s *SessionService) startSession(ctx context.Context, account domain.Account) (Session, error) {
	access, refresh, err := s.issuePair(account.ID, s.now())
	if err != nil {
		return Session{}, err
	}

	fp := cryptox.FingerprintToken(refresh.Value)
	if err := s.Store.Accounts().SetRefreshFingerprint(ctx, account.ID, fp); err != nil {
		return Session{}, fmt.Errorf("store refresh fingerprint: %w", err)
	}

	return Session{Account: account.Profile(), Access: access, Refresh: refresh}, nil
}

func (s *SessionService) issuePair(subject string, now time.Time) (tokens.Token, tokens.Token, error) {
	access, err := s.Codec.Issue(subject, tokens.Access, now)
	if err != nil {
		return tokens.Token{}, tokens.Token{}, fmt.Errorf("issue access token: %w", err)
	}
	refresh, err := s.Codec.Issue(subject, tokens.Refresh, now)
	if err != nil {
		return tokens.Token{}, tokens.Token{}, fmt.Errorf("issue refresh token: %w", err)
	}
	return access, refresh, nil
}

func (s *SessionService) observe(operation string, start time.Time, errp *error) {
	outcome := metrics.OutcomeSuccess
	switch {
	case *errp == nil:
	case IsClientError(*errp):
		outcome = metrics.OutcomeFailure
	default:
		outcome = metrics.OutcomeError
	}
	s.Metrics.ObserveOperation(operation, outcome, time.Since(start))
}

// burnPasswordCheck spends the same work as a real verification so unknown
// identifiers do not answer measurably faster than wrong passwords.
func (s *SessionService) burnPasswordCheck(password string) {
	s.decoyOnce.Do(func() {
		s.decoyHash, _ = s.Hasher.HashPassword("decoy")
	})
	if s.decoyHash != "" {
		_ = s.Hasher.VerifyPassword(password, s.decoyHash)
	}
}
