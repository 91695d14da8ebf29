package commands

import (
	"github.com/spf13/cobra"

	"vitasana-backend/lib/serviceutil"
	"vitasana-backend/services/api"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serves the REST API for the dashboard.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		store := openStore(cfg)
		session := newSession(cfg)
		trk := newTracker(cfg, store)

		server := api.NewServer(api.Options{
			Store:   store,
			Scanner: newScanner(cfg, store, session),
			Tracker: trk,
			Orders:  newOrdersService(cfg, store, trk),
		})

		port := cfg.Server.Port
		if port == 0 {
			port = 8020
		}
		serviceutil.StartHttpServer(port, server.Router())
	},
}
