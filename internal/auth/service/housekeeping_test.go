package service_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/aussiebroadwan/affworld/internal/auth/metrics"
	"github.com/aussiebroadwan/affworld/internal/auth/service"
	"github.com/stretchr/testify/require"
)

func TestHousekeepingSweep(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	id := f.register(t, "Ann", "ann@x.com", "pw1")
	require.NoError(t, f.svc.ForgotPassword(ctx, "ann@x.com"))

	hk := service.NewHousekeepingService(f.store, slog.New(slog.NewTextHandler(io.Discard, nil)), time.Hour)
	hk.Metrics = metrics.New()
	hk.Now = f.clock.Now

	require.Equal(t, int64(0), hk.Sweep(ctx), "live resets are kept")

	f.clock.Advance(16 * time.Minute)
	require.Equal(t, int64(1), hk.Sweep(ctx))

	stored, err := f.store.Accounts().GetAccountByID(ctx, id)
	require.NoError(t, err)
	require.Empty(t, stored.PasswordResetTokenHash)
	require.Nil(t, stored.PasswordResetExpiresAt)
}

func TestHousekeepingStartStop(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	hk := service.NewHousekeepingService(f.store, slog.New(slog.NewTextHandler(io.Discard, nil)), 0)
	require.Equal(t, time.Hour, hk.Interval)

	hk.Start()
	hk.Stop()
	hk.Stop()
}
