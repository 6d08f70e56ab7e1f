package cryptox

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestHasher(t *testing.T) *Hasher {
	t.Helper()
	return NewHasher("test-pepper", DefaultArgon2Params)
}

func TestHashPassword(t *testing.T) {
	t.Parallel()
	h := newTestHasher(t)

	tests := []struct {
		name     string
		password string
	}{
		{"simple password", "password123"},
		{"complex password", "P@ssw0rd!#$%^&*()"},
		{"long password", strings.Repeat("a", 100)},
		{"unicode password", "пароль🔒密码"},
		{"whitespace password", "   spaces   "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, err := h.HashPassword(tt.password)
			require.NoError(t, err)
			require.True(t, strings.HasPrefix(hash, "$argon2id$v=19$m=19456,t=2,p=1$"))

			parts := strings.Split(hash, "$")
			require.Len(t, parts, 6)
			require.NotEmpty(t, parts[4], "salt should not be empty")
			require.NotEmpty(t, parts[5], "hash should not be empty")

			require.NoError(t, h.VerifyPassword(tt.password, hash))
			require.NotContains(t, hash, tt.password)
		})
	}
}

func TestHashPassword_UniqueSalts(t *testing.T) {
	t.Parallel()
	h := newTestHasher(t)

	hash1, err := h.HashPassword("samepassword")
	require.NoError(t, err)
	hash2, err := h.HashPassword("samepassword")
	require.NoError(t, err)

	require.NotEqual(t, hash1, hash2, "hashes should differ due to unique salts")
}

func TestVerifyPassword_WrongPassword(t *testing.T) {
	t.Parallel()
	h := newTestHasher(t)

	hash, err := h.HashPassword("pw1")
	require.NoError(t, err)

	for _, candidate := range []string{"pw2", "PW1", "pw1 ", "", "pw"} {
		require.ErrorIs(t, h.VerifyPassword(candidate, hash), ErrPasswordMismatch, candidate)
	}
}

func TestVerifyPassword_PepperMatters(t *testing.T) {
	t.Parallel()

	hash, err := NewHasher("pepper-a", DefaultArgon2Params).HashPassword("pw1")
	require.NoError(t, err)

	err = NewHasher("pepper-b", DefaultArgon2Params).VerifyPassword("pw1", hash)
	require.ErrorIs(t, err, ErrPasswordMismatch)
}

func TestVerifyPassword_InvalidHashFormat(t *testing.T) {
	t.Parallel()
	h := newTestHasher(t)

	tests := []struct {
		name string
		hash string
	}{
		{"empty", ""},
		{"not phc", "plaintext"},
		{"wrong algorithm", "$argon2i$v=19$m=19456,t=2,p=1$c2FsdA$aGFzaA"},
		{"wrong version", "$argon2id$v=16$m=19456,t=2,p=1$c2FsdA$aGFzaA"},
		{"bad params", "$argon2id$v=19$m=x,t=2,p=1$c2FsdA$aGFzaA"},
		{"bad salt", "$argon2id$v=19$m=19456,t=2,p=1$!!!$aGFzaA"},
		{"too few parts", "$argon2id$v=19$c2FsdA$aGFzaA"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := h.VerifyPassword("pw", tt.hash)
			require.ErrorIs(t, err, ErrInvalidHash)
			require.NotErrorIs(t, err, ErrPasswordMismatch)
		})
	}
}

func TestVerifyPassword_LegacyBcrypt(t *testing.T) {
	t.Parallel()
	h := newTestHasher(t)

	legacy, err := bcrypt.GenerateFromPassword([]byte("pw1"), bcrypt.MinCost)
	require.NoError(t, err)

	require.NoError(t, h.VerifyPassword("pw1", string(legacy)))
	require.ErrorIs(t, h.VerifyPassword("wrong", string(legacy)), ErrPasswordMismatch)
	require.True(t, h.NeedsRehash(string(legacy)))
}

func TestNeedsRehash(t *testing.T) {
	t.Parallel()

	weak := NewHasher("p", Argon2Params{Memory: 8 * 1024, Iterations: 1, Parallelism: 1, KeyLength: 32, SaltLength: 16})
	strong := NewHasher("p", DefaultArgon2Params)

	weakHash, err := weak.HashPassword("pw")
	require.NoError(t, err)
	strongHash, err := strong.HashPassword("pw")
	require.NoError(t, err)

	require.True(t, strong.NeedsRehash(weakHash))
	require.False(t, strong.NeedsRehash(strongHash))
	require.True(t, strong.NeedsRehash("garbage"))
}

func TestLoadOrCreatePepper(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "secrets", "pepper")

	created, err := LoadOrCreatePepper(path)
	require.NoError(t, err)
	require.Len(t, created, 43)

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := LoadOrCreatePepper(path)
	require.NoError(t, err)
	require.Equal(t, created, loaded, "pepper must be stable across restarts")
}

func TestLoadOrCreatePepper_EmptyFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "pepper")
	require.NoError(t, os.WriteFile(path, []byte("\n"), 0600))

	_, err := LoadOrCreatePepper(path)
	require.Error(t, err)
}
