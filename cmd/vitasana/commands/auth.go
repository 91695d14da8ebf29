package commands

import (
	"log/slog"

	"github.com/spf13/cobra"

	"vitasana-backend/lib/serviceutil"
)

func init() {
	authCmd.AddCommand(authRefreshCmd)
	rootCmd.AddCommand(authCmd)
}

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Session management against the shop.",
}

var authRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Forces a fresh login and persists the new session cookies.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		session := newSession(cfg)

		config, err := session.RefreshCookies(cmd.Context())
		if err != nil {
			serviceutil.Fatal("login failed", err)
		}
		slog.Info("session refreshed", "cookies", len(config.Cookies))
	},
}
