package cmd

import (
	"errors"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Ask the server whether the cached token is still valid",
	RunE: func(cmd *cobra.Command, args []string) error {
		cache := newSessionCache(newClient())
		session, _ := cache.Load()
		if session == nil {
			return errors.New("not logged in")
		}

		resp, err := newClient().Verify(cmd.Context(), session.Token)
		if err != nil {
			return err
		}
		if !resp.Authenticated {
			pterm.Error.Printf("Token rejected: %s\n", resp.Error)
			return errors.New("token is not valid")
		}

		pterm.Success.Printf("Token valid for %s (%s)\n", resp.User.Username, resp.User.Role)
		return nil
	},
}
