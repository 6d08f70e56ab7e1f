package tokens_test

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"
	"time"

	"github.com/aussiebroadwan/affworld/internal/auth/tokens"
	"github.com/aussiebroadwan/affworld/pkg/cryptox"
	"github.com/aussiebroadwan/affworld/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

const issuer = "affworld-test"

var lifetimes = tokens.Lifetimes{Access: 15 * time.Minute, Refresh: 7 * 24 * time.Hour}

func codecs(t *testing.T) map[string]tokens.Codec {
	t.Helper()

	access, err := jwtx.NewSignerHS256([]byte("access-secret-access-secret-0000"))
	require.NoError(t, err)
	refresh, err := jwtx.NewSignerHS256([]byte("refresh-secret-refresh-secret-00"))
	require.NoError(t, err)

	pemKey, err := cryptox.GenerateEd25519Key()
	require.NoError(t, err)
	ed, err := jwtx.NewSignerEdDSA(pemKey)
	require.NoError(t, err)

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	pc, err := tokens.NewPASETOCodec(priv, issuer, lifetimes)
	require.NoError(t, err)

	return map[string]tokens.Codec{
		"jwt-hs256": tokens.NewJWTCodec(access, refresh, issuer, lifetimes),
		"jwt-eddsa": tokens.NewJWTCodec(ed, ed, issuer, lifetimes),
		"paseto":    pc,
	}
}

func TestIssueAndVerify(t *testing.T) {
	t.Parallel()
	now := time.Date(2024, 5, 10, 8, 30, 0, 0, time.UTC)

	for name, codec := range codecs(t) {
		t.Run(name, func(t *testing.T) {
			for _, kind := range []tokens.Kind{tokens.Access, tokens.Refresh} {
				tok, err := codec.Issue("acct-1", kind, now)
				require.NoError(t, err)
				require.Equal(t, kind, tok.Kind)
				require.Equal(t, now, tok.IssuedAt)
				require.NotEmpty(t, tok.ID)

				claims, err := codec.Verify(tok.Value, kind, now)
				require.NoError(t, err)
				require.Equal(t, "acct-1", claims.Subject)
				require.Equal(t, kind, claims.Kind)
				require.Equal(t, tok.ID, claims.ID)
				require.True(t, claims.ExpiresAt.Equal(tok.ExpiresAt))
			}
		})
	}
}

func TestExpiryMonotonicity(t *testing.T) {
	t.Parallel()
	issued := time.Date(2024, 5, 10, 8, 30, 0, 0, time.UTC)

	for name, codec := range codecs(t) {
		t.Run(name, func(t *testing.T) {
			for _, kind := range []tokens.Kind{tokens.Access, tokens.Refresh} {
				ttl := lifetimes.Access
				if kind == tokens.Refresh {
					ttl = lifetimes.Refresh
				}

				tok, err := codec.Issue("acct-1", kind, issued)
				require.NoError(t, err)
				require.Equal(t, issued.Add(ttl), tok.ExpiresAt)

				for _, offset := range []time.Duration{0, time.Second, ttl / 2, ttl - time.Second, ttl - time.Millisecond} {
					_, err := codec.Verify(tok.Value, kind, issued.Add(offset))
					require.NoError(t, err, "offset %s", offset)
				}
				for _, offset := range []time.Duration{ttl, ttl + time.Millisecond, ttl + time.Hour, 10 * ttl} {
					_, err := codec.Verify(tok.Value, kind, issued.Add(offset))
					require.ErrorIs(t, err, tokens.ErrExpired, "offset %s", offset)
				}
			}
		})
	}
}

func TestExpiryFromFractionalIssueTime(t *testing.T) {
	t.Parallel()
	now := time.Date(2024, 5, 10, 8, 30, 0, 900_000_000, time.UTC)
	issued := now.Truncate(time.Second)

	for name, codec := range codecs(t) {
		t.Run(name, func(t *testing.T) {
			tok, err := codec.Issue("acct-1", tokens.Access, now)
			require.NoError(t, err)
			require.Equal(t, issued, tok.IssuedAt)
			require.Equal(t, issued.Add(lifetimes.Access), tok.ExpiresAt)

			_, err = codec.Verify(tok.Value, tokens.Access, tok.ExpiresAt.Add(-time.Nanosecond))
			require.NoError(t, err)

			// Lifetime counts from the truncated IssuedAt, so the token is
			// already gone half a second before now+lifetime.
			_, err = codec.Verify(tok.Value, tokens.Access, now.Add(lifetimes.Access-500*time.Millisecond))
			require.ErrorIs(t, err, tokens.ErrExpired)
			_, err = codec.Verify(tok.Value, tokens.Access, tok.ExpiresAt)
			require.ErrorIs(t, err, tokens.ErrExpired)
		})
	}
}

func TestVerifyMalformed(t *testing.T) {
	t.Parallel()
	now := time.Date(2024, 5, 10, 8, 30, 0, 0, time.UTC)
	all := codecs(t)

	for name, codec := range all {
		t.Run(name, func(t *testing.T) {
			access, err := codec.Issue("acct-1", tokens.Access, now)
			require.NoError(t, err)
			refresh, err := codec.Issue("acct-1", tokens.Refresh, now)
			require.NoError(t, err)

			_, err = codec.Verify("garbage", tokens.Access, now)
			require.ErrorIs(t, err, tokens.ErrMalformed)

			_, err = codec.Verify("", tokens.Refresh, now)
			require.ErrorIs(t, err, tokens.ErrMalformed)

			_, err = codec.Verify(access.Value, tokens.Refresh, now)
			require.ErrorIs(t, err, tokens.ErrMalformed, "access token must not pass as refresh")

			_, err = codec.Verify(refresh.Value, tokens.Access, now)
			require.ErrorIs(t, err, tokens.ErrMalformed, "refresh token must not pass as access")

			tampered := access.Value[:len(access.Value)-6] + "AAAAAA"
			_, err = codec.Verify(tampered, tokens.Access, now)
			require.ErrorIs(t, err, tokens.ErrMalformed)
			require.NotErrorIs(t, err, tokens.ErrExpired)
		})
	}

	t.Run("tokens from another codec", func(t *testing.T) {
		tok, err := all["jwt-eddsa"].Issue("acct-1", tokens.Access, now)
		require.NoError(t, err)

		_, err = all["jwt-hs256"].Verify(tok.Value, tokens.Access, now)
		require.ErrorIs(t, err, tokens.ErrMalformed)
		_, err = all["paseto"].Verify(tok.Value, tokens.Access, now)
		require.ErrorIs(t, err, tokens.ErrMalformed)
	})
}

func TestIssueUniqueWithinSecond(t *testing.T) {
	t.Parallel()
	now := time.Date(2024, 5, 10, 8, 30, 0, 0, time.UTC)

	for name, codec := range codecs(t) {
		t.Run(name, func(t *testing.T) {
			a, err := codec.Issue("acct-1", tokens.Refresh, now)
			require.NoError(t, err)
			b, err := codec.Issue("acct-1", tokens.Refresh, now)
			require.NoError(t, err)
			require.NotEqual(t, a.Value, b.Value)
		})
	}
}

func TestIssueUnknownKind(t *testing.T) {
	t.Parallel()
	for _, codec := range codecs(t) {
		_, err := codec.Issue("acct-1", tokens.Kind("id"), time.Now())
		require.Error(t, err)
	}
}
