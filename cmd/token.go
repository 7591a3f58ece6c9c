/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"fmt"

	"github.com/dlms-org/apiserver/config"
	"github.com/dlms-org/apiserver/internal/db"
	"github.com/dlms-org/apiserver/internal/handlers"
	"github.com/dlms-org/apiserver/internal/services"
	"github.com/dlms-org/apiserver/internal/store"
	"github.com/spf13/cobra"
)

var tokenUserID int

// tokenCmd mints a bearer token for an existing user.
var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint an API token for an existing user",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		if cfg.Auth.JWTSecret == "" {
			return errors.New("JWT_SECRET is required")
		}

		conn, err := db.Open(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer conn.Close()

		users := services.NewUserService(store.NewUserRepository(conn))
		user, err := users.GetByID(cmd.Context(), tokenUserID)
		if err != nil {
			return fmt.Errorf("user %d: %w", tokenUserID, err)
		}

		token, err := handlers.IssueToken(user.ID, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
		if err != nil {
			return fmt.Errorf("sign token: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tokenCmd)
	tokenCmd.Flags().IntVar(&tokenUserID, "user", 0, "id of the user the token is minted for")
	_ = tokenCmd.MarkFlagRequired("user")
}
