package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aussiebroadwan/affworld/internal/auth/domain"
	"github.com/aussiebroadwan/affworld/internal/auth/store"
	"github.com/aussiebroadwan/affworld/pkg/cryptox"
	"github.com/aussiebroadwan/affworld/pkg/idx"
	"github.com/aussiebroadwan/affworld/pkg/slogx"
)

// IdentitySource is something Login can turn into an account. The set is
// closed: local credentials and identities already verified by an external
// provider.
type IdentitySource interface {
	resolve(ctx context.Context, s *SessionService) (domain.Account, error)
	provider() string
}

// PasswordIdentity is an identifier (email or full name) and password pair.
type PasswordIdentity struct {
	Identifier string
	Password   string
}

func (PasswordIdentity) provider() string { return domain.ProviderLocal }

func (p PasswordIdentity) resolve(ctx context.Context, s *SessionService) (domain.Account, error) {
	l := slogx.FromContext(ctx)

	identifier := strings.TrimSpace(p.Identifier)
	if identifier == "" || p.Password == "" {
		return domain.Account{}, fmt.Errorf("%w: identifier and password are required", ErrValidation)
	}

	account, err := s.Store.Accounts().GetAccountByIdentifier(ctx, identifier)
	if errors.Is(err, store.ErrNotFound) {
		if s.RevealUnknownAccounts {
			return domain.Account{}, ErrAccountNotFound
		}
		s.burnPasswordCheck(p.Password)
		return domain.Account{}, ErrInvalidCredentials
	}
	if err != nil {
		return domain.Account{}, fmt.Errorf("lookup account: %w", err)
	}

	if !account.HasPassword() {
		// Federated accounts have no password to check against.
		s.burnPasswordCheck(p.Password)
		return domain.Account{}, ErrInvalidCredentials
	}

	switch err := s.Hasher.VerifyPassword(p.Password, account.PasswordHash); {
	case errors.Is(err, cryptox.ErrPasswordMismatch):
		l.Info("password login failed", slog.String("account_id", account.ID))
		return domain.Account{}, ErrInvalidCredentials
	case err != nil:
		return domain.Account{}, fmt.Errorf("verify password: %w", err)
	}

	if s.Hasher.NeedsRehash(account.PasswordHash) {
		s.upgradeHash(ctx, account, p.Password)
	}
	return account, nil
}

// upgradeHash re-hashes a password stored with bcrypt or outdated
// parameters. Failure only costs the upgrade, never the login.
func (s *SessionService) upgradeHash(ctx context.Context, account domain.Account, password string) {
	l := slogx.FromContext(ctx)

	hash, err := s.Hasher.HashPassword(password)
	if err == nil {
		err = s.Store.Accounts().UpdatePasswordHash(ctx, account.ID, hash, false)
	}
	if err != nil {
		l.Warn("password rehash failed", slog.String("account_id", account.ID), slog.Any("error", err))
		return
	}
	l.Info("password hash upgraded", slog.String("account_id", account.ID))
}

// VerifiedIdentity is an identity an external provider has already vouched
// for. An existing account with the same email is reused as is; otherwise a
// password-less account is created.
type VerifiedIdentity struct {
	Provider string
	Email    string
	FullName string
}

func (v VerifiedIdentity) provider() string {
	if v.Provider == "" {
		return domain.ProviderGoogle
	}
	return v.Provider
}

// maxNameAttempts bounds the retries when a provider's display name is
// already taken by another account.
const maxNameAttempts = 3

func (v VerifiedIdentity) resolve(ctx context.Context, s *SessionService) (domain.Account, error) {
	l := slogx.FromContext(ctx)
	accounts := s.Store.Accounts()

	email := strings.ToLower(strings.TrimSpace(v.Email))
	if email == "" {
		return domain.Account{}, fmt.Errorf("%w: verified identity has no email", ErrValidation)
	}

	account, err := accounts.GetAccountByEmail(ctx, email)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return domain.Account{}, fmt.Errorf("lookup account: %w", err)
	}

	baseName := strings.TrimSpace(v.FullName)
	if baseName == "" {
		baseName, _, _ = strings.Cut(email, "@")
	}

	now := s.now().UTC().Truncate(timeMillis)
	for attempt := range maxNameAttempts {
		id := idx.New()
		name := baseName
		if attempt > 0 {
			// ULID tails are random, so the suffix is unlikely to collide.
			tail := strings.ToLower(id.String())
			name = baseName + " " + tail[len(tail)-6:]
		}

		account = domain.Account{
			ID:           id.String(),
			FullName:     name,
			Email:        email,
			AuthProvider: v.provider(),
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		err = accounts.CreateAccount(ctx, account)
		if err == nil {
			l.Info("account created from verified identity",
				slog.String("account_id", account.ID),
				slog.String("provider", account.AuthProvider),
			)
			return account, nil
		}
		if !errors.Is(err, store.ErrAlreadyExists) {
			return domain.Account{}, fmt.Errorf("create account: %w", err)
		}

		// A concurrent login may have created the account for this email.
		existing, lookupErr := accounts.GetAccountByEmail(ctx, email)
		if lookupErr == nil {
			return existing, nil
		}
		if !errors.Is(lookupErr, store.ErrNotFound) {
			return domain.Account{}, fmt.Errorf("lookup account: %w", lookupErr)
		}
	}

	return domain.Account{}, fmt.Errorf("%w: could not allocate a unique name for %s", ErrConflict, email)
}
