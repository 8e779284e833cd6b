package cmd

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and drop the cached session",
	RunE: func(cmd *cobra.Command, args []string) error {
		cache := newSessionCache(newClient())
		if _, state := cache.Load(); !cache.IsAuthenticated() {
			pterm.Info.Printf("Not logged in (%s)\n", state)
			return nil
		}

		if err := cache.Logout(cmd.Context()); err != nil {
			pterm.Warning.Println("Local session removed, server sign out failed")
			return fmt.Errorf("logout: %w", err)
		}

		pterm.Success.Println("Logged out")
		return nil
	},
}
