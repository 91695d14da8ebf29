package commands

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"vitasana-backend/lib/serviceutil"
	"vitasana-backend/services/auth"
	"vitasana-backend/services/scanner"
	"vitasana-backend/services/scheduler"
)

func init() {
	rootCmd.AddCommand(scheduleCmd)
}

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Runs optimized scans on the configured cadence until interrupted.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		store := openStore(cfg)
		session := newSession(cfg)
		scn := newScanner(cfg, store, session)

		sched, err := scheduler.NewScheduler(schedulerConfig(cfg), scanJob(session, scn))
		if err != nil {
			serviceutil.Fatal("invalid scheduler config", err)
		}
		sched.Run(cmd.Context())
	},
}

type sessionRefresher interface {
	RefreshCookies(ctx context.Context) (auth.SessionConfig, error)
}

// scanJob is the scheduled unit of work: refresh the session, then run
// an optimized scan. A failed refresh is logged but does not skip the
// scan, since a still-valid persisted session can carry it and a dead
// one surfaces from the scan itself.
func scanJob(session sessionRefresher, scn *scanner.Scanner) scheduler.Job {
	return func(ctx context.Context) error {
		// cookies go stale between runs, always start fresh
		if _, err := session.RefreshCookies(ctx); err != nil {
			slog.WarnContext(ctx, "session refresh failed, scanning with the existing session", "err", err)
		}
		progress := scanner.NewProgress()
		if err := scn.Run(ctx, scanner.RunOptions{Optimized: true}, progress); err != nil {
			return err
		}
		snapshot := progress.Snapshot()
		slog.InfoContext(ctx, "scheduled scan done",
			"items_found", snapshot.ItemsFound,
			"prefixes", snapshot.PrefixesProcessed)
		return nil
	}
}
