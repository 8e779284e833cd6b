package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/2beens/portfolio/internal/auth"
	"github.com/2beens/portfolio/pkg/adminclient"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the cached admin and reconcile it with the server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cache := newSessionCache(newClient())
		state, err := cache.Resolve(cmd.Context())

		pterm.DefaultSection.Println("Admin Session")
		pterm.Info.Printf("State: %s\n", state)
		if err != nil {
			pterm.Warning.Println(reconcileWarning(err))
		}

		if state == adminclient.StateUnauthenticated {
			pterm.Info.Println("Not logged in.")
			return nil
		}

		session := cache.Session()
		pterm.Info.Printf("Username: %s\n", session.Identity.Username)
		if session.Identity.Email != "" {
			pterm.Info.Printf("Email: %s\n", session.Identity.Email)
		}
		pterm.Info.Printf("Role: %s\n", session.Identity.Role)
		pterm.Info.Printf("Expires at: %s\n", session.ExpiresAt.Local().Format(time.RFC1123))
		return nil
	},
}

// reconcileWarning tells a server that answered "no" apart from one that
// could not be asked.
func reconcileWarning(err error) string {
	switch {
	case errors.Is(err, auth.ErrNoSession):
		return "Server reports no active session, showing the cached identity"
	case errors.Is(err, auth.ErrNotFound):
		return "Admin not found in the registry, showing the cached identity"
	case errors.Is(err, adminclient.ErrSessionChanged):
		return "Session changed while it was being checked, run whoami again"
	default:
		return fmt.Sprintf("Could not reach the server: %s", err)
	}
}
