package commands

import (
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"vitasana-backend/lib/serviceutil"
	"vitasana-backend/services/discovery"
)

func init() {
	rootCmd.AddCommand(discoverCmd)
}

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Scrapes the public listing to seed the catalog.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		store := openStore(cfg)

		scraper := discovery.NewScraper(discovery.Options{
			Store:       store,
			BaseUrl:     cfg.Shop.BaseUrl,
			ListingPath: cfg.Shop.ListingPath,
			Workers:     cfg.Workers.Discovery,
		})

		t1 := time.Now()
		result, err := scraper.Run(cmd.Context())
		if err != nil {
			serviceutil.Fatal("discovery failed", err)
		}
		slog.Info("discovery finished",
			"pages", result.PagesScraped,
			"seen", result.ProductsSeen,
			"new", result.ProductsNew,
			"seconds", time.Since(t1).Seconds())
	},
}
