package services

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lostfound-board/apiserver/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIdentityService(t *testing.T, opts ...Option) *IdentityService {
	t.Helper()
	svc, err := NewIdentityService(store.NewMemoryUserRepository(), IdentityConfig{
		Secret:     "test-secret",
		TokenTTL:   time.Hour,
		BcryptCost: 4,
	}, append([]Option{WithLogger(discardLogger())}, opts...)...)
	require.NoError(t, err)
	return svc
}

func registerAlice(t *testing.T, svc *IdentityService) Session {
	t.Helper()
	session, err := svc.Register(context.Background(), Registration{
		Username:    "alice",
		Email:       "alice@example.com",
		DisplayName: "Alice",
		Password:    "wonderland",
	})
	require.NoError(t, err)
	return session
}

func TestNewIdentityServiceRequiresSecret(t *testing.T) {
	_, err := NewIdentityService(store.NewMemoryUserRepository(), IdentityConfig{Secret: "  "})
	assert.Error(t, err)
}

func TestRegisterIssuesResolvableToken(t *testing.T) {
	svc := newIdentityService(t)
	session := registerAlice(t, svc)

	assert.NotEmpty(t, session.Token)
	assert.NotEmpty(t, session.User.ID)
	assert.Equal(t, "alice", session.User.Username)
	assert.NotEqual(t, "wonderland", session.User.PasswordHash)

	userID, err := svc.Resolve(session.Token)
	require.NoError(t, err)
	assert.Equal(t, session.User.ID, userID)

	profile, err := svc.Profile(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", profile.Email)
}

func TestRegisterDuplicate(t *testing.T) {
	svc := newIdentityService(t)
	registerAlice(t, svc)

	_, err := svc.Register(context.Background(), Registration{
		Username: "ALICE",
		Email:    "another@example.com",
		Password: "password1",
	})
	assert.ErrorIs(t, err, ErrUsernameTaken)
}

func TestRegisterDefaultsUsernameToEmail(t *testing.T) {
	svc := newIdentityService(t)
	session, err := svc.Register(context.Background(), Registration{Email: "bob@example.com", Password: "hunter22"})
	require.NoError(t, err)
	assert.Equal(t, "bob@example.com", session.User.Username)
	assert.Equal(t, "bob@example.com", session.User.DisplayName)
}

func TestRegisterValidation(t *testing.T) {
	svc := newIdentityService(t)
	cases := map[string]Registration{
		"missing email":   {Username: "carol", Password: "secret1"},
		"bad email":       {Username: "carol", Email: "carol", Password: "secret1"},
		"short username":  {Username: "cj", Email: "c@example.com", Password: "secret1"},
		"spaced username": {Username: "carol c", Email: "c@example.com", Password: "secret1"},
		"short password":  {Username: "carol", Email: "c@example.com", Password: "abc"},
		"long password":   {Username: "carol", Email: "c@example.com", Password: string(make([]byte, 80))},
	}
	for name, reg := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), reg)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestAuthenticate(t *testing.T) {
	svc := newIdentityService(t)
	alice := registerAlice(t, svc)

	byName, err := svc.Authenticate(context.Background(), "alice", "wonderland")
	require.NoError(t, err)
	assert.Equal(t, alice.User.ID, byName.User.ID)

	byEmail, err := svc.Authenticate(context.Background(), "Alice@Example.com", "wonderland")
	require.NoError(t, err)
	assert.Equal(t, alice.User.ID, byEmail.User.ID)

	_, err = svc.Authenticate(context.Background(), "alice", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Authenticate(context.Background(), "nobody", "wonderland")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Authenticate(context.Background(), "", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestResolveRejectsBadTokens(t *testing.T) {
	svc := newIdentityService(t)
	session := registerAlice(t, svc)

	_, err := svc.Resolve("not-a-token")
	assert.ErrorIs(t, err, ErrUnauthorized)

	other := newIdentityService(t)
	other.secret = []byte("different-secret")
	_, err = other.Resolve(session.Token)
	assert.ErrorIs(t, err, ErrUnauthorized)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: session.User.ID})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = svc.Resolve(unsigned)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestResolveRejectsExpiredToken(t *testing.T) {
	issuedAt := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	now := issuedAt
	svc := newIdentityService(t, WithClock(func() time.Time { return now }))
	session := registerAlice(t, svc)

	now = issuedAt.Add(30 * time.Minute)
	_, err := svc.Resolve(session.Token)
	require.NoError(t, err)

	now = issuedAt.Add(2 * time.Hour)
	_, err = svc.Resolve(session.Token)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestProfileUnknownUser(t *testing.T) {
	svc := newIdentityService(t)
	_, err := svc.Profile(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrUnauthorized)
}
