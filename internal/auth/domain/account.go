package domain

import "time"

// Auth providers recorded on an account.
const (
	ProviderLocal  = "local"
	ProviderGoogle = "google"
)

// Account is the durable user record. The session fields are written only by
// the session service.
type Account struct {
	ID           string
	FullName     string
	Email        string // stored lower-cased
	PasswordHash string // argon2id PHC; empty for accounts created by federated login
	AuthProvider string

	// RefreshTokenFingerprint is the SHA-256 fingerprint of the one refresh
	// token currently accepted for this account. Empty means no session.
	RefreshTokenFingerprint string

	// PasswordResetTokenHash and PasswordResetExpiresAt are set and cleared
	// together.
	PasswordResetTokenHash string
	PasswordResetExpiresAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasPassword reports whether the account can log in with a password.
func (a Account) HasPassword() bool { return a.PasswordHash != "" }

// Profile is the public view of an Account with every secret removed.
type Profile struct {
	ID           string    `json:"id"`
	FullName     string    `json:"fullName"`
	Email        string    `json:"email"`
	AuthProvider string    `json:"authProvider"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Profile strips secrets from the account.
func (a Account) Profile() Profile {
	return Profile{
		ID:           a.ID,
		FullName:     a.FullName,
		Email:        a.Email,
		AuthProvider: a.AuthProvider,
		CreatedAt:    a.CreatedAt,
		UpdatedAt:    a.UpdatedAt,
	}
}
