/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lostfound-board/apiserver/config"
	"github.com/lostfound-board/apiserver/internal/db"
	"github.com/lostfound-board/apiserver/internal/logging"
	"github.com/lostfound-board/apiserver/internal/services"
	"github.com/lostfound-board/apiserver/internal/store"
	"github.com/spf13/cobra"
)

var demoUser = services.Registration{
	Username:    "demo_user",
	Email:       "demo@example.com",
	DisplayName: "Demo User",
	Password:    "password123",
}

var demoItems = []services.NewItem{
	{
		Kind:        "lost",
		Title:       "Lost iPhone 13",
		Description: "Black iPhone 13 with blue case, lost near the library",
		Location:    "University Library",
	},
	{
		Kind:        "found",
		Title:       "Found Keys",
		Description: "Set of keys with Toyota keychain found in parking lot",
		Location:    "Main Parking Lot",
	},
}

// seedCmd represents the seed command
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Insert the demo user and sample items into an empty database",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		logger := logging.Setup(cfg.Log.Format, cfg.Log.Level)

		conn, err := db.Open(cmd.Context(), cfg.Database)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer conn.Close()

		seeded, err := seedDemoData(cmd.Context(),
			store.NewUserRepository(conn),
			store.NewItemRepository(conn),
			services.IdentityConfig{Secret: cfg.Auth.JWTSecret, BcryptCost: cfg.Auth.BcryptCost},
			logger)
		if err != nil {
			return err
		}
		if !seeded {
			logger.Info("users already exist, skipping seed")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
}

// seedDemoData creates the demo account and its items when no user exists yet.
// It reports whether anything was written.
func seedDemoData(ctx context.Context, users services.UserRepository, items services.ItemRepository, identityCfg services.IdentityConfig, logger *slog.Logger) (bool, error) {
	count, err := users.Count(ctx)
	if err != nil {
		return false, fmt.Errorf("count users: %w", err)
	}
	if count > 0 {
		return false, nil
	}

	if identityCfg.Secret == "" {
		identityCfg.Secret = "seed"
	}
	identity, err := services.NewIdentityService(users, identityCfg, services.WithLogger(logger))
	if err != nil {
		return false, err
	}
	session, err := identity.Register(ctx, demoUser)
	if err != nil {
		return false, fmt.Errorf("create demo user: %w", err)
	}

	itemService := services.NewItemService(items, nil, services.WithLogger(logger))
	for _, input := range demoItems {
		if _, err := itemService.Create(ctx, session.User.ID, input); err != nil {
			return false, fmt.Errorf("create item %q: %w", input.Title, err)
		}
	}

	logger.Info("sample data created",
		slog.String("user", session.User.Username),
		slog.Int("items", len(demoItems)))
	return true, nil
}
