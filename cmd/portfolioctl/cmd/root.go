package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/2beens/portfolio/pkg/adminclient"
	"github.com/spf13/cobra"
)

// Version is set at build time via -ldflags.
var Version = "dev"

var (
	serverURL  string
	sessionDir string
)

var rootCmd = &cobra.Command{
	Use:   "portfolioctl",
	Short: "Portfolio admin CLI",
	Long: `portfolioctl signs an admin in and out of the portfolio service and
keeps a local copy of the session, so later calls can reuse it.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", envOr("PORTFOLIO_SERVER", "http://localhost:9000"), "portfolio service URL")
	rootCmd.PersistentFlags().StringVar(&sessionDir, "session-dir", defaultSessionDir(), "directory holding the cached admin session")
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(whoamiCmd)
	rootCmd.AddCommand(verifyCmd)
}

func newClient() *adminclient.Client {
	return adminclient.NewClient(serverURL).WithUserAgent("portfolioctl/" + Version)
}

func newSessionCache(client *adminclient.Client) *adminclient.SessionCache {
	return adminclient.NewSessionCache(adminclient.NewFileStore(sessionDir), client)
}

func defaultSessionDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "portfolioctl")
	}
	return ".portfolioctl"
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
