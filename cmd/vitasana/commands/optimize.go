package commands

import (
	"log/slog"

	"github.com/spf13/cobra"

	"vitasana-backend/lib/serviceutil"
	"vitasana-backend/services/optimizer"
)

func init() {
	rootCmd.AddCommand(optimizeCmd)
}

var optimizeCmd = &cobra.Command{
	Use:   "optimize",
	Short: "Regenerates the optimized prefix list from the known catalog.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		store := openStore(cfg)

		opt := optimizer.NewOptimizer(optimizer.Options{
			Store:     store,
			ListPath:  optimizedListPath(cfg),
			Semantics: querySemantics(cfg),
		})
		prefixes, err := opt.SaveOptimizedList(cmd.Context())
		if err != nil {
			serviceutil.Fatal("optimization failed", err)
		}
		slog.Info("prefix list written",
			"path", optimizedListPath(cfg), "prefixes", len(prefixes))
	},
}
