package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dkeye/voicechat/internal/app"
	"github.com/dkeye/voicechat/internal/server"
)

var (
	newUserName     string
	newUserPassword string
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage user accounts",
}

var userAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create a user account",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, blobs, err := server.OpenStores(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer store.Close()
		defer blobs.Close()

		u, err := app.NewUserDirectory(store).Register(cmd.Context(), newUserName, newUserPassword)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "created user %s (%s)\n", u.Username, u.ID)
		return nil
	},
}

func init() {
	userAddCmd.Flags().StringVar(&newUserName, "name", "", "username")
	userAddCmd.Flags().StringVar(&newUserPassword, "password", "", "password, 8 to 72 bytes")
	_ = userAddCmd.MarkFlagRequired("name")
	_ = userAddCmd.MarkFlagRequired("password")

	userCmd.AddCommand(userAddCmd)
	rootCmd.AddCommand(userCmd)
}
