package postgres

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/aussiebroadwan/affworld/internal/auth/domain"
	"github.com/aussiebroadwan/affworld/internal/auth/store"
)

const accountColumns = `id, full_name, email, password_hash, auth_provider,
	refresh_token_fingerprint, password_reset_token_hash, password_reset_expires_at,
	created_at, updated_at`

type accountsRepo struct {
	db dbtx
}

func scanAccount(row *sql.Row) (domain.Account, error) {
	var (
		a                  domain.Account
		refreshFP, resetFP sql.NullString
		resetExp           sql.NullTime
	)
	err := row.Scan(
		&a.ID, &a.FullName, &a.Email, &a.PasswordHash, &a.AuthProvider,
		&refreshFP, &resetFP, &resetExp,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return domain.Account{}, mapNotFound(err)
	}

	a.RefreshTokenFingerprint = mapNullString(refreshFP)
	a.PasswordResetTokenHash = mapNullString(resetFP)
	a.PasswordResetExpiresAt = mapNullTimePtr(resetExp)
	a.CreatedAt = a.CreatedAt.UTC()
	a.UpdatedAt = a.UpdatedAt.UTC()
	return a, nil
}

func (r *accountsRepo) CreateAccount(ctx context.Context, a domain.Account) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	if a.UpdatedAt.IsZero() {
		a.UpdatedAt = a.CreatedAt
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO accounts (id, full_name, email, password_hash, auth_provider, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		a.ID, a.FullName, strings.ToLower(a.Email), a.PasswordHash, a.AuthProvider,
		a.CreatedAt, a.UpdatedAt,
	)
	return mapConstraint(err)
}

func (r *accountsRepo) GetAccountByID(ctx context.Context, id string) (domain.Account, error) {
	return scanAccount(r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id))
}

func (r *accountsRepo) GetAccountByEmail(ctx context.Context, email string) (domain.Account, error) {
	return scanAccount(r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE email = $1`, strings.ToLower(email)))
}

func (r *accountsRepo) GetAccountByIdentifier(ctx context.Context, identifier string) (domain.Account, error) {
	return scanAccount(r.db.QueryRowContext(ctx, `
		SELECT `+accountColumns+` FROM accounts
		WHERE email = $1 OR full_name = $2
		ORDER BY (email = $1) DESC
		LIMIT 1`,
		strings.ToLower(identifier), identifier,
	))
}

func (r *accountsRepo) SetRefreshFingerprint(ctx context.Context, id, fingerprint string) error {
	return r.execOne(ctx, `
		UPDATE accounts SET refresh_token_fingerprint = $1, updated_at = now()
		WHERE id = $2`,
		fingerprint, id,
	)
}

func (r *accountsRepo) SwapRefreshFingerprint(ctx context.Context, id, current, next string) error {
	return r.execOne(ctx, `
		UPDATE accounts SET refresh_token_fingerprint = $1, updated_at = now()
		WHERE id = $2 AND refresh_token_fingerprint = $3`,
		next, id, current,
	)
}

func (r *accountsRepo) ClearRefreshFingerprint(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE accounts SET refresh_token_fingerprint = NULL, updated_at = now()
		WHERE id = $1 AND refresh_token_fingerprint IS NOT NULL`,
		id,
	)
	return err
}

func (r *accountsRepo) UpdatePasswordHash(ctx context.Context, id, hash string, revokeSessions bool) error {
	return r.execOne(ctx, `
		UPDATE accounts SET
			password_hash = $1,
			password_reset_token_hash = NULL,
			password_reset_expires_at = NULL,
			refresh_token_fingerprint = CASE WHEN $2::boolean THEN NULL ELSE refresh_token_fingerprint END,
			updated_at = now()
		WHERE id = $3`,
		hash, revokeSessions, id,
	)
}

func (r *accountsRepo) SetPasswordReset(ctx context.Context, id, tokenHash string, expiresAt time.Time) error {
	err := r.execOne(ctx, `
		UPDATE accounts SET password_reset_token_hash = $1, password_reset_expires_at = $2, updated_at = now()
		WHERE id = $3`,
		tokenHash, expiresAt.UTC(), id,
	)
	return mapConstraint(err)
}

func (r *accountsRepo) ClearPasswordReset(ctx context.Context, id, tokenHash string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE accounts SET password_reset_token_hash = NULL, password_reset_expires_at = NULL, updated_at = now()
		WHERE id = $1 AND password_reset_token_hash = $2`,
		id, tokenHash,
	)
	return err
}

// ConsumePasswordReset relies on row locking: a second UPDATE racing on the
// same row re-evaluates its WHERE clause after the first commits and matches
// nothing.
func (r *accountsRepo) ConsumePasswordReset(
	ctx context.Context,
	tokenHash string,
	now time.Time,
	newHash string,
	revokeSessions bool,
) (string, error) {
	var id string
	err := r.db.QueryRowContext(ctx, `
		UPDATE accounts SET
			password_hash = $1,
			password_reset_token_hash = NULL,
			password_reset_expires_at = NULL,
			refresh_token_fingerprint = CASE WHEN $2::boolean THEN NULL ELSE refresh_token_fingerprint END,
			updated_at = now()
		WHERE password_reset_token_hash = $3 AND password_reset_expires_at > $4
		RETURNING id`,
		newHash, revokeSessions, tokenHash, now.UTC(),
	).Scan(&id)
	if err != nil {
		return "", mapNotFound(err)
	}
	return id, nil
}

func (r *accountsRepo) PurgeExpiredPasswordResets(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE accounts SET password_reset_token_hash = NULL, password_reset_expires_at = NULL
		WHERE password_reset_expires_at IS NOT NULL AND password_reset_expires_at <= $1`,
		now.UTC(),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *accountsRepo) execOne(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
