package cmd

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/lostfound-board/apiserver/internal/services"
	"github.com/lostfound-board/apiserver/internal/store"
	"github.com/lostfound-board/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSeedDemoData(t *testing.T) {
	ctx := context.Background()
	users := store.NewMemoryUserRepository()
	items := store.NewMemoryItemRepository()
	cfg := services.IdentityConfig{BcryptCost: 4}

	seeded, err := seedDemoData(ctx, users, items, cfg, quietLogger())
	require.NoError(t, err)
	assert.True(t, seeded)

	user, err := users.GetByLogin(ctx, "demo@example.com")
	require.NoError(t, err)
	assert.Equal(t, "demo_user", user.Username)

	listed, total, err := items.List(ctx, types.ItemFilter{PostedBy: user.ID})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	for _, item := range listed {
		assert.Equal(t, types.ItemStatusActive, item.Status)
	}

	again, err := seedDemoData(ctx, users, items, cfg, quietLogger())
	require.NoError(t, err)
	assert.False(t, again)

	count, err := users.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	_, total, err = items.List(ctx, types.ItemFilter{})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
}

func TestSeedDemoUserCanLogIn(t *testing.T) {
	ctx := context.Background()
	users := store.NewMemoryUserRepository()
	_, err := seedDemoData(ctx, users, store.NewMemoryItemRepository(), services.IdentityConfig{BcryptCost: 4}, quietLogger())
	require.NoError(t, err)

	identity, err := services.NewIdentityService(users, services.IdentityConfig{Secret: "s", BcryptCost: 4})
	require.NoError(t, err)
	session, err := identity.Authenticate(ctx, "demo_user", demoUser.Password)
	require.NoError(t, err)
	assert.NotEmpty(t, session.Token)
}
