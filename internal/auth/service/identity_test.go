package service_test

import (
	"context"
	"strings"
	"testing"

	"github.com/aussiebroadwan/affworld/internal/auth/domain"
	"github.com/aussiebroadwan/affworld/internal/auth/service"
	"github.com/stretchr/testify/require"
)

func TestVerifiedIdentityCreatesAccount(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	sess, err := f.svc.Login(ctx, service.VerifiedIdentity{Provider: "google", Email: "Bob@Y.com", FullName: "Bob"})
	require.NoError(t, err)
	require.Equal(t, "bob@y.com", sess.Account.Email)
	require.Equal(t, "Bob", sess.Account.FullName)
	require.Equal(t, domain.ProviderGoogle, sess.Account.AuthProvider)

	stored, err := f.store.Accounts().GetAccountByID(ctx, sess.Account.ID)
	require.NoError(t, err)
	require.False(t, stored.HasPassword())
	require.NotEmpty(t, stored.RefreshTokenFingerprint)

	// No password means no password login.
	_, err = f.svc.Login(ctx, service.PasswordIdentity{Identifier: "bob@y.com", Password: ""})
	require.ErrorIs(t, err, service.ErrValidation)
	_, err = f.svc.Login(ctx, service.PasswordIdentity{Identifier: "bob@y.com", Password: "anything"})
	require.ErrorIs(t, err, service.ErrInvalidCredentials)
}

func TestVerifiedIdentityReusesAccountByEmail(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	id := f.register(t, "Ann", "ann@x.com", "pw1")

	sess, err := f.svc.Login(ctx, service.VerifiedIdentity{Provider: "google", Email: "ann@x.com", FullName: "Ann Google"})
	require.NoError(t, err)
	require.Equal(t, id, sess.Account.ID)
	require.Equal(t, "Ann", sess.Account.FullName)

	// The local password still works afterwards.
	f.login(t, "ann@x.com", "pw1")
}

func TestVerifiedIdentityNameCollision(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	f.register(t, "Ann", "ann@x.com", "pw1")

	sess, err := f.svc.Login(ctx, service.VerifiedIdentity{Email: "ann@other.com", FullName: "Ann"})
	require.NoError(t, err)
	require.NotEqual(t, "Ann", sess.Account.FullName)
	require.True(t, strings.HasPrefix(sess.Account.FullName, "Ann "))
	require.Equal(t, "ann@other.com", sess.Account.Email)
}

func TestVerifiedIdentityWithoutName(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	sess, err := f.svc.Login(context.Background(), service.VerifiedIdentity{Email: "carol@z.com"})
	require.NoError(t, err)
	require.Equal(t, "carol", sess.Account.FullName)
}

func TestVerifiedIdentityRequiresEmail(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	_, err := f.svc.Login(context.Background(), service.VerifiedIdentity{FullName: "No Mail"})
	require.ErrorIs(t, err, service.ErrValidation)
}

func TestVerifiedIdentityRefreshes(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	sess, err := f.svc.Login(ctx, service.VerifiedIdentity{Email: "dan@z.com", FullName: "Dan"})
	require.NoError(t, err)

	next, err := f.svc.Refresh(ctx, sess.Refresh.Value)
	require.NoError(t, err)
	require.Equal(t, sess.Account.ID, next.Account.ID)
}
