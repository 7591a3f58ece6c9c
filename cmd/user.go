/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"

	"github.com/dlms-org/apiserver/config"
	"github.com/dlms-org/apiserver/internal/db"
	"github.com/dlms-org/apiserver/internal/services"
	"github.com/dlms-org/apiserver/internal/store"
	"github.com/dlms-org/apiserver/types"
	"github.com/spf13/cobra"
)

var (
	userName  string
	userEmail string
	userRole  string
)

// userCmd groups user reference-record commands.
var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage user reference records",
}

var userCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a user record for a person known to the identity provider",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		conn, err := db.Open(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer conn.Close()

		users := services.NewUserService(store.NewUserRepository(conn))
		user, err := users.Create(cmd.Context(), types.User{Name: userName, Email: userEmail, Role: userRole})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "created user %d (%s, %s)\n", user.ID, user.Email, user.Role)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(userCmd)
	userCmd.AddCommand(userCreateCmd)

	userCreateCmd.Flags().StringVar(&userName, "name", "", "full name")
	userCreateCmd.Flags().StringVar(&userEmail, "email", "", "email address")
	userCreateCmd.Flags().StringVar(&userRole, "role", types.RoleUser, "user, admin, examiner or traffic_police")
	_ = userCreateCmd.MarkFlagRequired("name")
	_ = userCreateCmd.MarkFlagRequired("email")
}
