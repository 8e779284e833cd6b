package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/2beens/portfolio/pkg/adminclient"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var (
	username string
	password string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in as a portfolio admin",
	Long: `Signs in with a username and password and caches the issued session.

The password is read from --password, then PORTFOLIO_ADMIN_PASSWORD,
and is prompted for when neither is set.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if username == "" {
			return errors.New("--username is required")
		}

		pass := password
		if pass == "" {
			pass = os.Getenv("PORTFOLIO_ADMIN_PASSWORD")
		}
		if pass == "" {
			var err error
			pass, err = pterm.DefaultInteractiveTextInput.WithMask("*").Show("Password")
			if err != nil {
				return fmt.Errorf("read password: %w", err)
			}
		}

		session, err := newSessionCache(newClient()).Login(cmd.Context(), username, pass)
		if err != nil {
			var limited *adminclient.RateLimitedError
			if errors.As(err, &limited) {
				return fmt.Errorf("too many login attempts, retry after %s", limited.RetryAfter)
			}
			return fmt.Errorf("login failed: %w", err)
		}

		pterm.Success.Printf("Logged in as %s (%s)\n", session.Identity.Username, session.Identity.Role)
		pterm.Info.Printf("Session expires at: %s\n", session.ExpiresAt.Local().Format(time.RFC1123))
		return nil
	},
}

func init() {
	loginCmd.Flags().StringVarP(&username, "username", "u", "", "admin username")
	loginCmd.Flags().StringVar(&password, "password", "", "admin password")
}
