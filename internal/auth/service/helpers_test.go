package service_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/affworld/internal/auth/mail"
	"github.com/aussiebroadwan/affworld/internal/auth/service"
	"github.com/aussiebroadwan/affworld/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/affworld/internal/auth/tokens"
	"github.com/aussiebroadwan/affworld/pkg/cryptox"
	"github.com/aussiebroadwan/affworld/pkg/jwtx"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// fastArgon keeps the suite quick; production parameters are covered in cryptox.
var fastArgon = cryptox.Argon2Params{Memory: 1024, Iterations: 1, Parallelism: 1, KeyLength: 32, SaltLength: 16}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type outbox struct {
	mu   sync.Mutex
	sent []mail.Message
	err  error
}

func (o *outbox) Send(_ context.Context, msg mail.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return o.err
	}
	o.sent = append(o.sent, msg)
	return nil
}

func (o *outbox) Fail(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.err = err
}

func (o *outbox) Count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.sent)
}

// LastSecret pulls the reset secret out of the most recent link.
func (o *outbox) LastSecret(t *testing.T) string {
	t.Helper()
	o.mu.Lock()
	defer o.mu.Unlock()

	require.NotEmpty(t, o.sent, "no message sent")
	body := o.sent[len(o.sent)-1].Body

	_, rest, ok := strings.Cut(body, "/forgot-password/")
	require.True(t, ok, "no reset link in body")
	secret, _, _ := strings.Cut(rest, "\n")
	return secret
}

type fixture struct {
	svc   *service.SessionService
	store *sqlite.Store
	clock *clock
	mail  *outbox
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())
	t.Cleanup(func() { _ = st.Close() })

	access, err := jwtx.NewSignerHS256([]byte("access-secret-access-secret-0123"))
	require.NoError(t, err)
	refresh, err := jwtx.NewSignerHS256([]byte("refresh-secret-refresh-secret-01"))
	require.NoError(t, err)

	c := &clock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	box := &outbox{}

	svc := &service.SessionService{
		Store: st,
		Codec: tokens.NewJWTCodec(access, refresh, "https://auth.test", tokens.Lifetimes{
			Access:  15 * time.Minute,
			Refresh: 7 * 24 * time.Hour,
		}),
		Hasher:          cryptox.NewHasher("test-pepper", fastArgon),
		Mailer:          box,
		FrontendBaseURL: "https://app.test/",
		Now:             c.Now,
	}
	return &fixture{svc: svc, store: st, clock: c, mail: box}
}

func (f *fixture) register(t *testing.T, name, email, password string) string {
	t.Helper()
	p, err := f.svc.Register(context.Background(), service.RegisterInput{FullName: name, Email: email, Password: password})
	require.NoError(t, err)
	return p.ID
}

func (f *fixture) login(t *testing.T, identifier, password string) service.Session {
	t.Helper()
	sess, err := f.svc.Login(context.Background(), service.PasswordIdentity{Identifier: identifier, Password: password})
	require.NoError(t, err)
	return sess
}

var errSMTPDown = errors.New("smtp: connection refused")

func bcryptHash(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	return string(b), err
}

func errWrap(err error) error { return fmt.Errorf("outer: %w", err) }
