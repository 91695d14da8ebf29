package commands

import (
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"vitasana-backend/lib/serviceutil"
	"vitasana-backend/services/tracker"
)

func init() {
	rootCmd.AddCommand(monitorCmd)
}

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Re-checks stock and pricing for every known product.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		store := openStore(cfg)
		trk := newTracker(cfg, store)

		progress := tracker.NewProgress()
		t1 := time.Now()
		if err := trk.Run(cmd.Context(), progress); err != nil {
			serviceutil.Fatal("monitoring run failed", err)
		}

		snapshot := progress.Snapshot()
		slog.Info("monitoring finished",
			"checked", snapshot.Checked,
			"failed", snapshot.Failed,
			"seconds", time.Since(t1).Seconds())
	},
}
