package commands

import (
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"vitasana-backend/lib/serviceutil"
	"vitasana-backend/services/scanner"
	"vitasana-backend/services/tracker"
)

var scanOptimized *bool
var scanMonitor *bool

func init() {
	scanOptimized = scanCmd.Flags().Bool("optimized", false, "Scan only the saved optimized prefix list.")
	scanMonitor = scanCmd.Flags().Bool("monitor", false, "Run a monitoring pass after the scan.")
	rootCmd.AddCommand(scanCmd)
}

var scanCmd = &cobra.Command{
	Use:   "scan [--optimized] [--monitor]",
	Short: "Enumerates the shop catalog through the search endpoint.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		store := openStore(cfg)
		session := newSession(cfg)
		scn := newScanner(cfg, store, session)

		ctx := cmd.Context()
		progress := scanner.NewProgress()

		done := make(chan struct{})
		go reportScanProgress(progress, done)

		t1 := time.Now()
		err := scn.Run(ctx, scanner.RunOptions{Optimized: *scanOptimized}, progress)
		close(done)
		if err != nil {
			serviceutil.Fatal("scan failed", err)
		}

		snapshot := progress.Snapshot()
		slog.Info("scan finished",
			"items_found", snapshot.ItemsFound,
			"prefixes", snapshot.PrefixesProcessed,
			"seconds", time.Since(t1).Seconds())

		if *scanMonitor {
			trk := newTracker(cfg, store)
			if err := trk.Run(ctx, tracker.NewProgress()); err != nil {
				serviceutil.Fatal("monitoring pass failed", err)
			}
		}
	},
}

func reportScanProgress(progress *scanner.Progress, done chan struct{}) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			snapshot := progress.Snapshot()
			slog.Info("scan progress",
				"phase", snapshot.Phase,
				"items_found", snapshot.ItemsFound,
				"prefixes", snapshot.PrefixesProcessed,
				"prefixes_total", snapshot.PrefixesTotal)
		}
	}
}
