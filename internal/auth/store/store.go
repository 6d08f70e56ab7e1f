package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/affworld/internal/auth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite, postgres)
// implement this.
type Store interface {
	Accounts() Accounts

	ApplyMigrations() error

	// WithTx executes fn within a transaction. If fn returns an error the
	// transaction is rolled back, otherwise it is committed.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is the store as seen from inside WithTx. Repositories taken from it
// run on the transaction and must not be used after fn returns.
type Tx interface {
	Accounts() Accounts
}

// Accounts gives field-level access to account records. Every method that
// guards a credential is a single conditional statement, so concurrent
// callers racing on the same value see exactly one winner.
type Accounts interface {
	// CreateAccount inserts a new account. Returns ErrAlreadyExists when the
	// email or full name is taken.
	CreateAccount(ctx context.Context, a domain.Account) error

	GetAccountByID(ctx context.Context, id string) (domain.Account, error)
	GetAccountByEmail(ctx context.Context, email string) (domain.Account, error)

	// GetAccountByIdentifier matches either the email or the full name,
	// preferring an email match.
	GetAccountByIdentifier(ctx context.Context, identifier string) (domain.Account, error)

	// SetRefreshFingerprint overwrites the stored fingerprint unconditionally.
	SetRefreshFingerprint(ctx context.Context, id, fingerprint string) error

	// SwapRefreshFingerprint replaces current with next only if current is
	// still the stored value. Returns ErrNotFound otherwise.
	SwapRefreshFingerprint(ctx context.Context, id, current, next string) error

	// ClearRefreshFingerprint removes any stored fingerprint. Clearing an
	// already empty value is not an error.
	ClearRefreshFingerprint(ctx context.Context, id string) error

	// UpdatePasswordHash replaces the password hash and drops any pending
	// reset. With revokeSessions the refresh fingerprint is cleared as well.
	UpdatePasswordHash(ctx context.Context, id, hash string, revokeSessions bool) error

	// SetPasswordReset records a pending reset, replacing any previous one.
	SetPasswordReset(ctx context.Context, id, tokenHash string, expiresAt time.Time) error

	// ClearPasswordReset removes the pending reset only if it is still
	// tokenHash, so a newer request is never wiped out.
	ClearPasswordReset(ctx context.Context, id, tokenHash string) error

	// ConsumePasswordReset finds the account whose pending reset matches
	// tokenHash and has not expired at now, sets the new password hash and
	// clears the reset in one statement. Returns the account id, or
	// ErrNotFound when no live reset matches.
	ConsumePasswordReset(ctx context.Context, tokenHash string, now time.Time, newHash string, revokeSessions bool) (string, error)

	// PurgeExpiredPasswordResets clears resets that expired before now and
	// reports how many were cleared.
	PurgeExpiredPasswordResets(ctx context.Context, now time.Time) (int64, error)
}
