package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/aussiebroadwan/affworld/internal/auth/domain"
	"github.com/aussiebroadwan/affworld/internal/auth/store"
	"github.com/aussiebroadwan/affworld/pkg/idx"
	"github.com/aussiebroadwan/affworld/pkg/slogx"
)

// Both stores keep at least millisecond precision.
const timeMillis = time.Millisecond

type RegisterInput struct {
	FullName string
	Email    string
	Password string
}

// Register creates a local account and returns it without secrets.
func (s *SessionService) Register(ctx context.Context, in RegisterInput) (_ domain.Profile, err error) {
	defer s.observe("register", time.Now(), &err)
	l := slogx.FromContext(ctx)

	// 1. Normalise and validate
	fullName := strings.TrimSpace(in.FullName)
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if fullName == "" || email == "" || strings.TrimSpace(in.Password) == "" {
		return domain.Profile{}, fmt.Errorf("%w: fullName, email and password are required", ErrValidation)
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return domain.Profile{}, fmt.Errorf("%w: email is malformed", ErrValidation)
	}

	// 2. Hash
	hash, err := s.Hasher.HashPassword(in.Password)
	if err != nil {
		return domain.Profile{}, fmt.Errorf("hash password: %w", err)
	}

	// 3. Insert; the store enforces uniqueness of email and name
	now := s.now().UTC().Truncate(timeMillis)
	account := domain.Account{
		ID:           idx.New().String(),
		FullName:     fullName,
		Email:        email,
		PasswordHash: hash,
		AuthProvider: domain.ProviderLocal,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.Store.Accounts().CreateAccount(ctx, account); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.Profile{}, fmt.Errorf("%w: email or name already registered", ErrConflict)
		}
		return domain.Profile{}, fmt.Errorf("create account: %w", err)
	}

	l.Info("account registered", slog.String("account_id", account.ID))
	return account.Profile(), nil
}

// CurrentAccount returns the profile of an authenticated account.
func (s *SessionService) CurrentAccount(ctx context.Context, accountID string) (domain.Profile, error) {
	account, err := s.Store.Accounts().GetAccountByID(ctx, accountID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Profile{}, ErrAccountNotFound
	}
	if err != nil {
		return domain.Profile{}, fmt.Errorf("load account: %w", err)
	}
	return account.Profile(), nil
}
