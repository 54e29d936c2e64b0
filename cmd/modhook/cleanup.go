package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/steveyegge/modhook/internal/storage"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Clean up old events and builds",
	Long:  `Remove events and builds beyond the configured retention limits.`,
}

var cleanupEventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Clean up old registry events",
	Long: `Delete old registry events according to the retention policy.

Executes three cleanup strategies in sequence:
  1. Orphans: Delete events of builds that have been pruned
  2. Time-based: Delete events older than the retention period
     (critical events are kept longer)
  3. Global: Enforce the global event count limit

Events of the newest build are never removed by steps 2 and 3.

Configuration is read from the events section of .modhook/config.yaml and
MODHOOK_EVENT_* environment variables.
Default retention: 30 days (regular), 90 days (critical), 100k global.

Examples:
  modhook cleanup events            # Run cleanup
  modhook cleanup events --vacuum   # Run cleanup and reclaim disk space
  modhook cleanup events --dry-run  # Show configuration and current counts`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		vacuum, _ := cmd.Flags().GetBool("vacuum")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()
		s := openStore(ctx)

		retention := cfg.Events
		fmt.Printf("Event Retention Configuration:\n")
		fmt.Printf("  Regular events: %d days\n", retention.RetentionDays)
		fmt.Printf("  Critical events: %d days\n", retention.RetentionCriticalDays)
		fmt.Printf("  Global limit: %s events\n", formatNumber(retention.GlobalLimitEvents))
		fmt.Printf("  Batch size: %d events/txn\n", retention.CleanupBatchSize)
		fmt.Println()

		before, err := s.GetEventCounts(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to get event counts: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Current state:\n")
		fmt.Printf("  Total events: %s\n", formatNumber(before.TotalEvents))
		fmt.Printf("  Builds with events: %s\n", formatNumber(len(before.EventsByBuild)))
		for _, sev := range []string{"critical", "error", "warning", "info"} {
			if n := before.EventsBySeverity[sev]; n > 0 {
				fmt.Printf("    %s: %s\n", sev, formatNumber(n))
			}
		}
		fmt.Println()

		if dryRun {
			fmt.Printf("%s\n", color.YellowString("DRY RUN MODE - No events were deleted"))
			return
		}

		// The explicit command runs even when automatic cleanup is disabled
		retention.CleanupEnabled = true

		start := time.Now()
		result, err := storage.RunEventCleanup(ctx, s, retention)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s Cleanup complete\n", green("✓"))
		fmt.Printf("  Deleted with pruned builds: %s\n", formatNumber(result.DeletedOrphaned))
		fmt.Printf("  Deleted by age: %s\n", formatNumber(result.DeletedByAge))
		fmt.Printf("  Deleted by global limit: %s\n", formatNumber(result.DeletedByLimit))
		fmt.Printf("  Events remaining: %s\n", formatNumber(result.RemainingEvents))
		fmt.Printf("  Time taken: %s\n", time.Since(start).Round(time.Millisecond))

		if vacuum {
			fmt.Printf("\nRunning VACUUM to reclaim disk space...\n")
			if err := s.VacuumDatabase(ctx); err != nil {
				fmt.Fprintf(os.Stderr, "Error: VACUUM failed: %v\n", err)
				os.Exit(1)
			}
			fmt.Printf("%s VACUUM complete\n", green("✓"))
		} else {
			fmt.Printf("\nNote: Use --vacuum to reclaim disk space\n")
		}
	},
}

var cleanupBuildsCmd = &cobra.Command{
	Use:   "builds",
	Short: "Prune stored builds beyond the retention limit",
	Long: `Delete the oldest stored builds, keeping the newest N by version.
N defaults to builds.keep from the configuration (0 keeps everything).
Events recorded against the pruned builds are deleted with them.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		keep := cfg.Builds.KeepBuilds
		if cmd.Flags().Changed("keep") {
			keep, _ = cmd.Flags().GetInt("keep")
		}
		if keep < 0 {
			fmt.Fprintf(os.Stderr, "Error: --keep cannot be negative\n")
			os.Exit(1)
		}

		lockPath, err := storage.AcquireExclusiveLock(cfg.DatabasePath, "prune builds", version)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer storage.ReleaseExclusiveLock(lockPath)

		ctx := context.Background()
		s := openStore(ctx)
		pruned, err := s.PruneBuilds(ctx, keep)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		orphaned, err := s.CleanupOrphanedEvents(ctx, cfg.Events.CleanupBatchSize)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to delete events of pruned builds: %v\n", err)
		}

		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s Pruned %d build(s), %s event(s)\n", green("✓"), len(pruned), formatNumber(orphaned))
		for _, id := range pruned {
			fmt.Printf("  %s\n", id)
		}
	},
}

func init() {
	cleanupEventsCmd.Flags().Bool("dry-run", false, "Show configuration and counts without deleting")
	cleanupEventsCmd.Flags().Bool("vacuum", false, "Run VACUUM after cleanup to reclaim disk space")
	cleanupBuildsCmd.Flags().Int("keep", 0, "Number of builds to keep (default: builds.keep)")

	cleanupCmd.AddCommand(cleanupEventsCmd)
	cleanupCmd.AddCommand(cleanupBuildsCmd)
	rootCmd.AddCommand(cleanupCmd)
}
