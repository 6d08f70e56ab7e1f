package sqlite

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
		resetExp           sql.NullInt64
		created, updated   int64
	)
	err := row.Scan(
		&a.ID, &a.FullName, &a.Email, &a.PasswordHash, &a.AuthProvider,
		&refreshFP, &resetFP, &resetExp,
		&created, &updated,
	)
	if err != nil {
		return domain.Account{}, mapNotFound(err)
	}

	a.RefreshTokenFingerprint = mapNullString(refreshFP)
	a.PasswordResetTokenHash = mapNullString(resetFP)
	a.PasswordResetExpiresAt = mapNullMillis(resetExp)
	a.CreatedAt = fromMillis(created)
	a.UpdatedAt = fromMillis(updated)
	return a, nil
}

func (r *accountsRepo) CreateAccount(ctx context.Context, a domain.Account) error {
	now := time.Now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	if a.UpdatedAt.IsZero() {
		a.UpdatedAt = a.CreatedAt
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO accounts (id, full_name, email, password_hash, auth_provider, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.FullName, strings.ToLower(a.Email), a.PasswordHash, a.AuthProvider,
		toMillis(a.CreatedAt), toMillis(a.UpdatedAt),
	)
	return mapConstraint(err)
}

func (r *accountsRepo) GetAccountByID(ctx context.Context, id string) (domain.Account, error) {
	return scanAccount(r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id))
}

func (r *accountsRepo) GetAccountByEmail(ctx context.Context, email string) (domain.Account, error) {
	return scanAccount(r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE email = ?`, strings.ToLower(email)))
}

func (r *accountsRepo) GetAccountByIdentifier(ctx context.Context, identifier string) (domain.Account, error) {
	email := strings.ToLower(identifier)
	return scanAccount(r.db.QueryRowContext(ctx, `
		SELECT `+accountColumns+` FROM accounts
		WHERE email = ? OR full_name = ?
		ORDER BY email = ? DESC
		LIMIT 1`,
		email, identifier, email,
	))
}

func (r *accountsRepo) SetRefreshFingerprint(ctx context.Context, id, fingerprint string) error {
	return r.execOne(ctx, `
		UPDATE accounts SET refresh_token_fingerprint = ?, updated_at = ?
		WHERE id = ?`,
		fingerprint, nowMillis(), id,
	)
}

func (r *accountsRepo) SwapRefreshFingerprint(ctx context.Context, id, current, next string) error {
	return r.execOne(ctx, `
		UPDATE accounts SET refresh_token_fingerprint = ?, updated_at = ?
		WHERE id = ? AND refresh_token_fingerprint = ?`,
		next, nowMillis(), id, current,
	)
}

func (r *accountsRepo) ClearRefreshFingerprint(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE accounts SET refresh_token_fingerprint = NULL, updated_at = ?
		WHERE id = ? AND refresh_token_fingerprint IS NOT NULL`,
		nowMillis(), id,
	)
	return err
}

func (r *accountsRepo) UpdatePasswordHash(ctx context.Context, id, hash string, revokeSessions bool) error {
	return r.execOne(ctx, `
		UPDATE accounts SET
			password_hash = ?,
			password_reset_token_hash = NULL,
			password_reset_expires_at = NULL,
			refresh_token_fingerprint = CASE WHEN ? THEN NULL ELSE refresh_token_fingerprint END,
			updated_at = ?
		WHERE id = ?`,
		hash, revokeSessions, nowMillis(), id,
	)
}

func (r *accountsRepo) SetPasswordReset(ctx context.Context, id, tokenHash string, expiresAt time.Time) error {
	err := r.execOne(ctx, `
		UPDATE accounts SET password_reset_token_hash = ?, password_reset_expires_at = ?, updated_at = ?
		WHERE id = ?`,
		mapStringNull(tokenHash), toMillis(expiresAt), nowMillis(), id,
	)
	return mapConstraint(err)
}

func (r *accountsRepo) ClearPasswordReset(ctx context.Context, id, tokenHash string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE accounts SET password_reset_token_hash = NULL, password_reset_expires_at = NULL, updated_at = ?
		WHERE id = ? AND password_reset_token_hash = ?`,
		nowMillis(), id, tokenHash,
	)
	return err
}

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
			password_hash = ?,
			password_reset_token_hash = NULL,
			password_reset_expires_at = NULL,
			refresh_token_fingerprint = CASE WHEN ? THEN NULL ELSE refresh_token_fingerprint END,
			updated_at = ?
		WHERE password_reset_token_hash = ? AND password_reset_expires_at > ?
		RETURNING id`,
		newHash, revokeSessions, toMillis(now), tokenHash, toMillis(now),
	).Scan(&id)
	if err != nil {
		return "", mapNotFound(err)
	}
	return id, nil
}

func (r *accountsRepo) PurgeExpiredPasswordResets(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE accounts SET password_reset_token_hash = NULL, password_reset_expires_at = NULL
		WHERE password_reset_expires_at IS NOT NULL AND password_reset_expires_at <= ?`,
		toMillis(now),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// execOne runs a single-row UPDATE and reports ErrNotFound when no row matched.
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

func nowMillis() int64 { return toMillis(time.Now()) }
