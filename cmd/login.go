/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/lostfound-board/apiserver/internal/client"
	"github.com/spf13/cobra"
)

var (
	serverFlag    string
	loginPassword string
	loginRegister bool
	loginEmail    string
)

var loginCmd = &cobra.Command{
	Use:   "login <username-or-email>",
	Short: "Sign in to the board and save the token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadClientConfig()
		if err != nil {
			return err
		}

		password := loginPassword
		if password == "" {
			password = os.Getenv("LOSTFOUND_PASSWORD")
		}
		if password == "" {
			fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && line == "" {
				return fmt.Errorf("reading password: %w", err)
			}
			password = strings.TrimSpace(line)
		}
		if password == "" {
			return errors.New("password is required")
		}

		url := serverURL(cfg)
		c := client.New(url, "")
		var session client.Session
		if loginRegister {
			username, email := args[0], loginEmail
			if email == "" && strings.Contains(username, "@") {
				username, email = "", username
			}
			session, err = c.Register(cmd.Context(), username, email, "", password)
		} else {
			session, err = c.Login(cmd.Context(), args[0], password)
		}
		if err != nil {
			return err
		}

		cfg.ServerURL = url
		cfg.Token = session.Token
		cfg.Username = session.User.Username
		if err := saveClientConfig(cfg); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (token expires %s)\n",
			session.User.Username, session.ExpiresAt.Local().Format("2006-01-02 15:04"))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverFlag, "server", "", "API server URL (default from config or "+defaultServerURL+")")

	loginCmd.Flags().StringVarP(&loginPassword, "password", "p", "", "password (prompted when empty)")
	loginCmd.Flags().BoolVar(&loginRegister, "register", false, "create the account first")
	loginCmd.Flags().StringVar(&loginEmail, "email", "", "email for --register")
	rootCmd.AddCommand(loginCmd)
}
